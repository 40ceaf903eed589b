package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/blockmart/blockmart-backend/pkg/db/models"
	dbtypes "github.com/blockmart/blockmart-backend/pkg/db/types"
	"github.com/blockmart/blockmart-backend/pkg/enums"
)

// CartRepository is the persistence surface for carts. Status moves
// go through guarded updates so concurrent writers cannot double-apply
// a transition.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	Create(ctx context.Context, cart *models.Cart) (*models.Cart, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Cart, error)
	FindOpenByUser(ctx context.Context, userID string) (*models.Cart, error)
	FindByPaymentRef(ctx context.Context, ref string) (*models.Cart, error)
	List(ctx context.Context) ([]models.Cart, error)
	ListOpen(ctx context.Context) ([]models.Cart, error)
	ListPendingHosted(ctx context.Context) ([]models.Cart, error)
	ListInactiveOpenSince(ctx context.Context, cutoff time.Time) ([]models.Cart, error)
	UpdateLines(ctx context.Context, id uuid.UUID, lines dbtypes.CartLines, at time.Time) error
	SetChannel(ctx context.Context, id uuid.UUID, channelID string) error
	SetInvoice(ctx context.Context, id uuid.UUID, ref *string, method *enums.PaymentMethod, messageID *string) error
	ClearInvoice(ctx context.Context, id uuid.UUID) error
	AddCredit(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error
	SetDeliveryLocation(ctx context.Context, id uuid.UUID, location string) (int64, error)
	UpdateStatusGuarded(ctx context.Context, id uuid.UUID, from []enums.CartStatus, to enums.CartStatus) (int64, error)
	Touch(ctx context.Context, id uuid.UUID, at time.Time) error
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteByID(ctx context.Context, id uuid.UUID) error
}

// Repository persists carts.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a new cart. The partial unique index on open carts
// rejects a second open cart for the same user.
func (r *Repository) Create(ctx context.Context, cart *models.Cart) (*models.Cart, error) {
	if cart.ID == uuid.Nil {
		cart.ID = uuid.New()
	}
	if cart.Status == "" {
		cart.Status = enums.CartStatusActive
	}
	if cart.Lines == nil {
		cart.Lines = dbtypes.CartLines{}
	}
	if cart.LastActivityAt.IsZero() {
		cart.LastActivityAt = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(cart).Error; err != nil {
		return nil, err
	}
	return cart, nil
}

// FindByID loads one cart.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&cart).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

// FindOpenByUser loads the user's single open cart, if any.
func (r *Repository) FindOpenByUser(ctx context.Context, userID string) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status IN ?", userID, enums.OpenCartStatuses).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// FindByPaymentRef loads the cart carrying a processor reference.
func (r *Repository) FindByPaymentRef(ctx context.Context, ref string) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Where("payment_ref = ?", ref).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// List returns every cart, newest first.
func (r *Repository) List(ctx context.Context) ([]models.Cart, error) {
	var carts []models.Cart
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&carts).Error
	return carts, err
}

// ListOpen returns every non-terminal cart.
func (r *Repository) ListOpen(ctx context.Context) ([]models.Cart, error) {
	var carts []models.Cart
	err := r.db.WithContext(ctx).
		Where("status IN ?", enums.OpenCartStatuses).
		Find(&carts).Error
	return carts, err
}

// ListPendingHosted returns carts waiting on a hosted processor, the
// reconcile sweep's working set.
func (r *Repository) ListPendingHosted(ctx context.Context) ([]models.Cart, error) {
	var carts []models.Cart
	err := r.db.WithContext(ctx).
		Where("status = ? AND payment_ref IS NOT NULL AND payment_method IN ?",
			enums.CartStatusPendingPayment,
			[]enums.PaymentMethod{enums.PaymentMethodPayPal, enums.PaymentMethodSquare}).
		Find(&carts).Error
	return carts, err
}

// ListInactiveOpenSince returns open carts idle since before the cutoff.
func (r *Repository) ListInactiveOpenSince(ctx context.Context, cutoff time.Time) ([]models.Cart, error) {
	var carts []models.Cart
	err := r.db.WithContext(ctx).
		Where("status IN ? AND last_activity_at < ?", enums.OpenCartStatuses, cutoff).
		Find(&carts).Error
	return carts, err
}

// UpdateLines replaces the snapshot lines and bumps activity.
func (r *Repository) UpdateLines(ctx context.Context, id uuid.UUID, lines dbtypes.CartLines, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"lines":            lines,
			"last_activity_at": at,
		}).Error
}

// SetChannel records the provisioned channel on the cart.
func (r *Repository) SetChannel(ctx context.Context, id uuid.UUID, channelID string) error {
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", id).
		Update("channel_id", channelID).Error
}

// SetInvoice stores the outstanding payment attempt.
func (r *Repository) SetInvoice(ctx context.Context, id uuid.UUID, ref *string, method *enums.PaymentMethod, messageID *string) error {
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"payment_ref":        ref,
			"payment_method":     method,
			"invoice_message_id": messageID,
		}).Error
}

// ClearInvoice wipes the payment attempt and drops the cart back to
// active. Paid and terminal carts are left untouched.
func (r *Repository) ClearInvoice(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ? AND status IN ?", id, enums.PayableCartStatuses).
		Updates(map[string]any{
			"payment_ref":        nil,
			"payment_method":     nil,
			"invoice_message_id": nil,
			"status":             enums.CartStatusActive,
		}).Error
}

// AddCredit bumps the applied store credit.
func (r *Repository) AddCredit(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", id).
		Update("credit_applied", gorm.Expr("credit_applied + ?", amount)).Error
}

// SetDeliveryLocation records where a paid order was handed over.
func (r *Repository) SetDeliveryLocation(ctx context.Context, id uuid.UUID, location string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ? AND status = ?", id, enums.CartStatusPaid).
		Update("delivery_location", location)
	return result.RowsAffected, result.Error
}

// UpdateStatusGuarded moves the cart between states only when it still
// sits in one of the expected source states. Zero rows affected means
// another writer got there first.
func (r *Repository) UpdateStatusGuarded(ctx context.Context, id uuid.UUID, from []enums.CartStatus, to enums.CartStatus) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ? AND status IN ?", id, from).
		Update("status", to)
	return result.RowsAffected, result.Error
}

// Touch bumps the activity timestamp.
func (r *Repository) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", id).
		Update("last_activity_at", at).Error
}

// DeleteTerminalBefore removes completed and closed carts older than
// the cutoff.
func (r *Repository) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?",
			[]enums.CartStatus{enums.CartStatusCompleted, enums.CartStatusClosed}, cutoff).
		Delete(&models.Cart{})
	return result.RowsAffected, result.Error
}

// DeleteByID removes one cart.
func (r *Repository) DeleteByID(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Cart{}).Error
}
