package catalog

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/blockmart/blockmart-backend/pkg/db/models"
	pkgerrors "github.com/blockmart/blockmart-backend/pkg/errors"
)

// CreateItemInput captures the fields needed for a new listing.
type CreateItemInput struct {
	Name        string
	Price       decimal.Decimal
	Description string
	ImageURL    string
	Quantity    int
}

// Service manages the shop's item listings and stock levels.
type Service interface {
	Create(ctx context.Context, input CreateItemInput) (*models.Item, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Item, error)
	GetByName(ctx context.Context, name string) (*models.Item, error)
	List(ctx context.Context) ([]models.Item, error)
	Restock(ctx context.Context, id uuid.UUID, delta int) (*models.Item, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ExportCSV(ctx context.Context) ([]byte, error)
}

type service struct {
	repo ItemRepository
}

// NewService wires the catalog service.
func NewService(repo ItemRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("item repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, input CreateItemInput) (*models.Item, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item name required")
	}
	if !input.Price.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item price must be positive")
	}
	if input.Quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item quantity cannot be negative")
	}

	item := &models.Item{
		Name:        name,
		Price:       input.Price,
		Description: strings.TrimSpace(input.Description),
		Quantity:    input.Quantity,
	}
	if imageURL := strings.TrimSpace(input.ImageURL); imageURL != "" {
		item.ImageURL = &imageURL
	}
	created, err := s.repo.Create(ctx, item)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "item could not be created")
	}
	return created, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
		}
		return nil, err
	}
	return item, nil
}

func (s *service) GetByName(ctx context.Context, name string) (*models.Item, error) {
	if strings.TrimSpace(name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item name required")
	}
	item, err := s.repo.FindByName(ctx, strings.TrimSpace(name))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
		}
		return nil, err
	}
	return item, nil
}

func (s *service) List(ctx context.Context) ([]models.Item, error) {
	return s.repo.List(ctx)
}

// Restock adjusts stock by delta. Negative deltas are allowed down to
// zero so admins can correct overcounts.
func (s *service) Restock(ctx context.Context, id uuid.UUID, delta int) (*models.Item, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	if delta == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "restock delta cannot be zero")
	}

	affected, err := s.repo.AdjustQuantity(ctx, id, delta)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "stock adjustment would go negative or item is missing")
	}
	return s.Get(ctx, id)
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	return s.repo.Delete(ctx, id)
}

// ExportCSV renders the full catalog as name,price,quantity rows.
func (s *service) ExportCSV(ctx context.Context) ([]byte, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write([]string{"name", "price", "quantity"}); err != nil {
		return nil, err
	}
	for _, item := range items {
		record := []string{
			item.Name,
			item.Price.StringFixed(2),
			strconv.Itoa(item.Quantity),
		}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
