package ticket

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/blockmart/blockmart-backend/internal/platform"
	"github.com/blockmart/blockmart-backend/pkg/db/models"
	"github.com/blockmart/blockmart-backend/pkg/enums"
	pkgerrors "github.com/blockmart/blockmart-backend/pkg/errors"
	"github.com/blockmart/blockmart-backend/pkg/logger"
)

// channelProvisioner is the slice of the platform gateway the service
// needs.
type channelProvisioner interface {
	CreateChannel(ctx context.Context, categoryRef, name, userID string) (platform.Channel, error)
	ArchiveChannel(ctx context.Context, channelID, archiveCategoryRef string) error
	DeleteChannel(ctx context.Context, channelID string) error
	SendMessage(ctx context.Context, channelID, body string) (platform.Message, error)
}

// Options carries the channel category references from config.
type Options struct {
	CategoryRef        string
	ArchiveCategoryRef string
}

// Service manages support tickets and their backing channels.
type Service interface {
	Open(ctx context.Context, userID string) (*models.Ticket, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Ticket, error)
	ListOpen(ctx context.Context) ([]models.Ticket, error)
	Close(ctx context.Context, id uuid.UUID) (*models.Ticket, error)
	// Setup posts an agent-authored instruction message into an open
	// ticket's channel.
	Setup(ctx context.Context, id uuid.UUID, body string) (*models.Ticket, error)
	// PurgeClosedBefore deletes tickets closed before the cutoff along
	// with their archived channels. Returns the number of rows removed.
	PurgeClosedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type service struct {
	repo    TicketRepository
	gateway channelProvisioner
	opts    Options
	logger  *logger.Logger
	now     func() time.Time
}

// NewService wires the ticket service.
func NewService(repo TicketRepository, gateway channelProvisioner, opts Options, log *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ticket repository required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("platform gateway required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, gateway: gateway, opts: opts, logger: log, now: time.Now}, nil
}

// Open creates a ticket and provisions its channel. A user gets one
// open ticket at a time; asking again returns the existing one.
func (s *service) Open(ctx context.Context, userID string) (*models.Ticket, error) {
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	existing, err := s.repo.FindOpenByUser(ctx, userID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	ticket, err := s.repo.Create(ctx, &models.Ticket{UserID: userID})
	if err != nil {
		// The partial unique index catches the race where two opens
		// land at once.
		return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "a ticket is already open")
	}

	channel, err := s.gateway.CreateChannel(ctx, s.opts.CategoryRef, fmt.Sprintf("ticket-%s", shortID(ticket.ID)), userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ticket channel could not be created")
	}
	ticket.ChannelID = &channel.ID
	if err := s.repo.SetChannel(ctx, ticket.ID, channel.ID); err != nil {
		return nil, err
	}
	return ticket, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Ticket, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ticket id required")
	}
	ticket, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "ticket not found")
		}
		return nil, err
	}
	return ticket, nil
}

func (s *service) ListOpen(ctx context.Context) ([]models.Ticket, error) {
	return s.repo.ListOpen(ctx)
}

// Close flips the ticket to closed and moves its channel into the
// archive category. Closing twice is a no-op.
func (s *service) Close(ctx context.Context, id uuid.UUID) (*models.Ticket, error) {
	ticket, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	affected, err := s.repo.MarkClosed(ctx, id, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if affected > 0 && ticket.ChannelID != nil {
		if err := s.gateway.ArchiveChannel(ctx, *ticket.ChannelID, s.opts.ArchiveCategoryRef); err != nil {
			// Ticket state wins; a stuck channel gets cleaned up by the
			// retention purge.
			s.logger.Warn(s.logger.WithField(ctx, "error", err.Error()), "ticket channel archive failed")
		}
	}
	return s.repo.FindByID(ctx, id)
}

func (s *service) Setup(ctx context.Context, id uuid.UUID, body string) (*models.Ticket, error) {
	if body == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message body required")
	}
	ticket, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if ticket.Status != enums.TicketStatusOpen {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "ticket is closed")
	}
	if ticket.ChannelID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "ticket has no channel")
	}
	if _, err := s.gateway.SendMessage(ctx, *ticket.ChannelID, body); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ticket message could not be sent")
	}
	return ticket, nil
}

func (s *service) PurgeClosedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	stale, err := s.repo.ListClosedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	for _, ticket := range stale {
		if ticket.ChannelID == nil {
			continue
		}
		if err := s.gateway.DeleteChannel(ctx, *ticket.ChannelID); err != nil {
			s.logger.Warn(s.logger.WithField(ctx, "error", err.Error()), "ticket channel delete failed")
		}
	}
	return s.repo.DeleteClosedBefore(ctx, cutoff)
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}
