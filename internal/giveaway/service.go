package giveaway

import (
	"context"
	crand "crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/blockmart/blockmart-backend/internal/platform"
	"github.com/blockmart/blockmart-backend/pkg/db/models"
	pkgerrors "github.com/blockmart/blockmart-backend/pkg/errors"
	"github.com/blockmart/blockmart-backend/pkg/logger"
)

// creditGranter is the slice of the ledger the service needs.
type creditGranter interface {
	Credit(ctx context.Context, userID string, amount decimal.Decimal) (*models.User, error)
}

// announcer is the slice of the platform gateway the service needs.
type announcer interface {
	SendMessage(ctx context.Context, channelID, body string) (platform.Message, error)
}

// Options carries the drawing parameters from config.
type Options struct {
	Prize      decimal.Decimal
	Duration   time.Duration
	ChannelRef string
}

// Status is the public readout of the current drawing.
type Status struct {
	Giveaway *models.Giveaway `json:"giveaway"`
	Entrants int64            `json:"entrants"`
	Prize    decimal.Decimal  `json:"prize"`
}

// Service runs the rolling store-credit giveaway.
type Service interface {
	Current(ctx context.Context) (*Status, error)
	// Enter records the user's entry in the active drawing. Re-entering
	// the same drawing is a no-op.
	Enter(ctx context.Context, userID string) (bool, error)
	// Rotate ends expired drawings, pays the winners, and makes sure
	// exactly one drawing is active afterwards.
	Rotate(ctx context.Context) error
}

type service struct {
	repo    GiveawayRepository
	ledger  creditGranter
	gateway announcer
	opts    Options
	logger  *logger.Logger
	now     func() time.Time
	pick    func(n int) int
}

// NewService wires the giveaway service.
func NewService(repo GiveawayRepository, ledger creditGranter, gateway announcer, opts Options, log *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("giveaway repository required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("ledger required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("platform gateway required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if !opts.Prize.IsPositive() {
		return nil, fmt.Errorf("giveaway prize must be positive")
	}
	if opts.Duration <= 0 {
		return nil, fmt.Errorf("giveaway duration must be positive")
	}
	return &service{
		repo:    repo,
		ledger:  ledger,
		gateway: gateway,
		opts:    opts,
		logger:  log,
		now:     time.Now,
		pick:    drawIndex,
	}, nil
}

// drawIndex picks a winner slot with crypto/rand so the draw cannot be
// reproduced from a seed.
func drawIndex(n int) int {
	idx, err := crand.Int(crand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(idx.Int64())
}

func (s *service) Current(ctx context.Context) (*Status, error) {
	active, err := s.repo.FindActive(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no giveaway is running")
		}
		return nil, err
	}
	entrants, err := s.repo.CountEntrants(ctx, active.ID)
	if err != nil {
		return nil, err
	}
	return &Status{Giveaway: active, Entrants: entrants, Prize: s.opts.Prize}, nil
}

func (s *service) Enter(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	active, err := s.repo.FindActive(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, pkgerrors.New(pkgerrors.CodeNotFound, "no giveaway is running")
		}
		return false, err
	}
	if !active.EndsAt.After(s.now()) {
		return false, pkgerrors.New(pkgerrors.CodeStateConflict, "giveaway has already ended")
	}
	return s.repo.AddEntrant(ctx, active.ID, userID)
}

func (s *service) Rotate(ctx context.Context) error {
	now := s.now()

	expired, err := s.repo.FindExpiredActive(ctx, now)
	if err != nil {
		return err
	}
	for _, drawing := range expired {
		if err := s.settle(ctx, drawing); err != nil {
			return err
		}
	}

	// Keep exactly one drawing active.
	_, err = s.repo.FindActive(ctx)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		fresh := &models.Giveaway{EndsAt: now.Add(s.opts.Duration)}
		s.announce(ctx, fresh)
		if _, err := s.repo.Create(ctx, fresh); err != nil {
			return err
		}
		s.logger.Info(s.logger.WithField(ctx, "giveaway_id", fresh.ID.String()), "giveaway started")
		return nil
	}
	return err
}

// announce posts the drawing to the giveaway channel and caches the
// message reference on the row so the frontend can edit it later.
func (s *service) announce(ctx context.Context, drawing *models.Giveaway) {
	if s.opts.ChannelRef == "" {
		return
	}
	body := fmt.Sprintf("A $%s store-credit giveaway is live until %s. Enter now!",
		s.opts.Prize.StringFixed(2), drawing.EndsAt.UTC().Format(time.RFC1123))
	msg, err := s.gateway.SendMessage(ctx, s.opts.ChannelRef, body)
	if err != nil {
		s.logger.Warn(s.logger.WithField(ctx, "error", err.Error()), "giveaway announcement failed")
		return
	}
	if msg.ID != "" {
		messageID := msg.ID
		drawing.MessageID = &messageID
	}
}

func (s *service) settle(ctx context.Context, drawing models.Giveaway) error {
	entrants, err := s.repo.ListEntrants(ctx, drawing.ID)
	if err != nil {
		return err
	}

	var winnerID *string
	if len(entrants) > 0 {
		winner := entrants[s.pick(len(entrants))].UserID
		winnerID = &winner
	}

	affected, err := s.repo.MarkEnded(ctx, drawing.ID, winnerID)
	if err != nil {
		return err
	}
	if affected == 0 {
		// Another sweep settled this drawing first.
		return nil
	}

	logCtx := s.logger.WithField(ctx, "giveaway_id", drawing.ID.String())
	if winnerID == nil {
		s.logger.Info(logCtx, "giveaway ended with no entrants")
		return nil
	}

	if _, err := s.ledger.Credit(ctx, *winnerID, s.opts.Prize); err != nil {
		return fmt.Errorf("crediting giveaway prize: %w", err)
	}

	if s.opts.ChannelRef != "" {
		body := fmt.Sprintf("Giveaway winner: <@%s> takes $%s store credit. Congratulations!",
			*winnerID, s.opts.Prize.StringFixed(2))
		if _, err := s.gateway.SendMessage(ctx, s.opts.ChannelRef, body); err != nil {
			// The prize is already paid; a lost announcement is not
			// worth failing the sweep over.
			s.logger.Warn(s.logger.WithField(logCtx, "error", err.Error()), "giveaway announcement failed")
		}
	}

	s.logger.Info(s.logger.WithField(logCtx, "winner_id", *winnerID), "giveaway settled")
	return nil
}
