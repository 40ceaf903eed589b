package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/blockmart/blockmart-backend/pkg/db/models"
	"github.com/blockmart/blockmart-backend/pkg/enums"
	pkgerrors "github.com/blockmart/blockmart-backend/pkg/errors"
)

// ItemStats is the per-item sales readout for one lookback window.
type ItemStats struct {
	ItemID uuid.UUID       `json:"item_id"`
	Range  enums.DateRange `json:"range"`
	Units  int64           `json:"units"`
}

// Summary is the shop-wide sales readout for one lookback window.
type Summary struct {
	Range      enums.DateRange `json:"range"`
	TotalUnits int64           `json:"total_units"`
	Buyers     int64           `json:"buyers"`
	TopItems   []ItemCount     `json:"top_items"`
}

// Service answers sales questions from the purchase fact table.
type Service interface {
	RecordPurchase(ctx context.Context, userID string, itemID uuid.UUID, units int) error
	ItemStats(ctx context.Context, itemID uuid.UUID, dateRange enums.DateRange) (*ItemStats, error)
	ShopSummary(ctx context.Context, dateRange enums.DateRange) (*Summary, error)
}

type service struct {
	repo EventRepository
	now  func() time.Time
}

// NewService wires the analytics service.
func NewService(repo EventRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("event repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

// RecordPurchase writes one fact row per unit sold.
func (s *service) RecordPurchase(ctx context.Context, userID string, itemID uuid.UUID, units int) error {
	if userID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if itemID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	if units <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "units must be positive")
	}

	events := make([]models.PurchaseEvent, units)
	for i := range events {
		events[i] = models.PurchaseEvent{
			EventType: enums.EventTypePurchase,
			ItemID:    itemID,
			UserID:    userID,
		}
	}
	return s.repo.InsertBatch(ctx, events)
}

func (s *service) ItemStats(ctx context.Context, itemID uuid.UUID, dateRange enums.DateRange) (*ItemStats, error) {
	if itemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	if !dateRange.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown date range")
	}

	units, err := s.repo.CountByItem(ctx, itemID, s.cutoff(dateRange))
	if err != nil {
		return nil, err
	}
	return &ItemStats{ItemID: itemID, Range: dateRange, Units: units}, nil
}

func (s *service) ShopSummary(ctx context.Context, dateRange enums.DateRange) (*Summary, error) {
	if !dateRange.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown date range")
	}
	since := s.cutoff(dateRange)

	total, err := s.repo.CountAll(ctx, since)
	if err != nil {
		return nil, err
	}
	buyers, err := s.repo.DistinctBuyers(ctx, since)
	if err != nil {
		return nil, err
	}
	top, err := s.repo.TopItems(ctx, since, 10)
	if err != nil {
		return nil, err
	}
	return &Summary{Range: dateRange, TotalUnits: total, Buyers: buyers, TopItems: top}, nil
}

// cutoff maps a lookback window onto an absolute timestamp. The
// all-time window returns the zero time, which the repository treats
// as no cutoff at all.
func (s *service) cutoff(dateRange enums.DateRange) time.Time {
	now := s.now().UTC()
	switch dateRange {
	case enums.DateRangeWeek:
		return now.AddDate(0, 0, -7)
	case enums.DateRangeMonth:
		return now.AddDate(0, -1, 0)
	case enums.DateRangeYear:
		return now.AddDate(-1, 0, 0)
	default:
		return time.Time{}
	}
}
