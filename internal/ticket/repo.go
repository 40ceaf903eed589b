package ticket

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/blockmart/blockmart-backend/pkg/db/models"
	"github.com/blockmart/blockmart-backend/pkg/enums"
)

// TicketRepository is the persistence surface for support tickets.
type TicketRepository interface {
	WithTx(tx *gorm.DB) TicketRepository
	Create(ctx context.Context, ticket *models.Ticket) (*models.Ticket, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Ticket, error)
	FindOpenByUser(ctx context.Context, userID string) (*models.Ticket, error)
	ListOpen(ctx context.Context) ([]models.Ticket, error)
	SetChannel(ctx context.Context, id uuid.UUID, channelID string) error
	MarkClosed(ctx context.Context, id uuid.UUID, closedAt time.Time) (int64, error)
	ListClosedBefore(ctx context.Context, cutoff time.Time) ([]models.Ticket, error)
	DeleteClosedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Repository persists tickets.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a ticket repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) TicketRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a new ticket. The partial unique index on open
// tickets rejects a second open ticket for the same user.
func (r *Repository) Create(ctx context.Context, ticket *models.Ticket) (*models.Ticket, error) {
	if ticket.ID == uuid.Nil {
		ticket.ID = uuid.New()
	}
	if ticket.Status == "" {
		ticket.Status = enums.TicketStatusOpen
	}
	if err := r.db.WithContext(ctx).Create(ticket).Error; err != nil {
		return nil, err
	}
	return ticket, nil
}

// FindByID loads one ticket.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Ticket, error) {
	var ticket models.Ticket
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&ticket).Error; err != nil {
		return nil, err
	}
	return &ticket, nil
}

// FindOpenByUser loads the user's open ticket, if any.
func (r *Repository) FindOpenByUser(ctx context.Context, userID string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, enums.TicketStatusOpen).
		First(&ticket).Error
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

// ListOpen returns every open ticket, oldest first.
func (r *Repository) ListOpen(ctx context.Context) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.TicketStatusOpen).
		Order("created_at ASC").
		Find(&tickets).Error
	return tickets, err
}

// SetChannel records the provisioned channel on the ticket.
func (r *Repository) SetChannel(ctx context.Context, id uuid.UUID, channelID string) error {
	return r.db.WithContext(ctx).
		Model(&models.Ticket{}).
		Where("id = ?", id).
		Update("channel_id", channelID).Error
}

// MarkClosed flips an open ticket to closed. The status guard makes
// a double close a no-op.
func (r *Repository) MarkClosed(ctx context.Context, id uuid.UUID, closedAt time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Ticket{}).
		Where("id = ? AND status = ?", id, enums.TicketStatusOpen).
		Updates(map[string]any{
			"status":    enums.TicketStatusClosed,
			"closed_at": closedAt,
		})
	return result.RowsAffected, result.Error
}

// ListClosedBefore returns tickets closed before the cutoff.
func (r *Repository) ListClosedBefore(ctx context.Context, cutoff time.Time) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := r.db.WithContext(ctx).
		Where("status = ? AND closed_at < ?", enums.TicketStatusClosed, cutoff).
		Find(&tickets).Error
	return tickets, err
}

// DeleteClosedBefore removes tickets closed before the cutoff.
func (r *Repository) DeleteClosedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("status = ? AND closed_at < ?", enums.TicketStatusClosed, cutoff).
		Delete(&models.Ticket{})
	return result.RowsAffected, result.Error
}
