package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/blockmart/blockmart-backend/internal/analytics"
	"github.com/blockmart/blockmart-backend/internal/catalog"
	"github.com/blockmart/blockmart-backend/internal/ledger"
	"github.com/blockmart/blockmart-backend/internal/payment"
	"github.com/blockmart/blockmart-backend/internal/platform"
	"github.com/blockmart/blockmart-backend/pkg/db/models"
	"github.com/blockmart/blockmart-backend/pkg/enums"
	pkgerrors "github.com/blockmart/blockmart-backend/pkg/errors"
	"github.com/blockmart/blockmart-backend/pkg/logger"
)

// txRunner is the slice of the DB client the service needs.
type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// tierEvaluator is the slice of the role tier service the cart needs.
type tierEvaluator interface {
	Evaluate(ctx context.Context, userID string) ([]string, error)
}

// shopStatusReader is the slice of the settings service the cart needs.
type shopStatusReader interface {
	ShopStatus(ctx context.Context) (enums.ShopStatus, error)
}

// cryptoQuoter is the slice of the payment package the crypto flow
// needs.
type cryptoQuoter interface {
	Quote(ctx context.Context, coin string, totalUSD decimal.Decimal) (*payment.CryptoQuote, error)
}

// Options carries the cart parameters from config.
type Options struct {
	PurchaseMinimum     decimal.Decimal
	CartCategoryRef     string
	ArchiveCategoryRef  string
	DeliveryPingRoleRef string
	PublicBaseURL       string
}

// CheckoutResult hands the buyer their hosted payment page.
type CheckoutResult struct {
	Cart       *models.Cart         `json:"cart"`
	PaymentURL string               `json:"payment_url"`
	Quote      *payment.CryptoQuote `json:"quote,omitempty"`
}

// Service owns the cart lifecycle from first item to settled order.
type Service interface {
	Get(ctx context.Context, userID string) (*models.Cart, error)
	AddItem(ctx context.Context, userID string, itemID uuid.UUID, quantity int) (*models.Cart, error)
	RemoveItem(ctx context.Context, userID string, itemID uuid.UUID, quantity int) (*models.Cart, error)
	ApplyCredit(ctx context.Context, userID string, amount decimal.Decimal) (*models.Cart, error)
	Checkout(ctx context.Context, userID string) (*CheckoutResult, error)
	SelectCrypto(ctx context.Context, userID, coin string) (*CheckoutResult, error)
	ConfirmCryptoSent(ctx context.Context, userID string) (*models.Cart, error)
	ConfirmCryptoOrder(ctx context.Context, cartID uuid.UUID) (*models.Cart, error)
	CancelInvoice(ctx context.Context, userID, reason string) (*models.Cart, error)
	CompleteOrder(ctx context.Context, cartID uuid.UUID) (*models.Cart, error)
	Close(ctx context.Context, userID string) (*models.Cart, error)
	Deliver(ctx context.Context, agentID string, cartID uuid.UUID, location string) (*models.Cart, error)
	ListAll(ctx context.Context) ([]models.Cart, error)
	ListInactiveSince(ctx context.Context, cutoff time.Time) ([]models.Cart, error)
	PurgeTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
	WipeAll(ctx context.Context) (int, error)
}

// Deps bundles the service's collaborators.
type Deps struct {
	Carts     CartRepository
	Items     catalog.ItemRepository
	Users     ledger.UserRepository
	Events    analytics.EventRepository
	Tiers     tierEvaluator
	Settings  shopStatusReader
	Processor payment.Processor
	Quoter    cryptoQuoter
	Gateway   platform.Gateway
	Tx        txRunner
	Locks     lockStore
	Logger    *logger.Logger
}

type service struct {
	deps Deps
	opts Options
	lock userLock
	now  func() time.Time
}

// NewService wires the cart service.
func NewService(deps Deps, opts Options) (Service, error) {
	switch {
	case deps.Carts == nil:
		return nil, fmt.Errorf("cart repository required")
	case deps.Items == nil:
		return nil, fmt.Errorf("item repository required")
	case deps.Users == nil:
		return nil, fmt.Errorf("user repository required")
	case deps.Events == nil:
		return nil, fmt.Errorf("event repository required")
	case deps.Tiers == nil:
		return nil, fmt.Errorf("tier evaluator required")
	case deps.Settings == nil:
		return nil, fmt.Errorf("settings reader required")
	case deps.Processor == nil:
		return nil, fmt.Errorf("payment processor required")
	case deps.Quoter == nil:
		return nil, fmt.Errorf("crypto quoter required")
	case deps.Gateway == nil:
		return nil, fmt.Errorf("platform gateway required")
	case deps.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case deps.Locks == nil:
		return nil, fmt.Errorf("lock store required")
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	if opts.PurchaseMinimum.IsNegative() {
		return nil, fmt.Errorf("purchase minimum cannot be negative")
	}
	return &service{
		deps: deps,
		opts: opts,
		lock: userLock{store: deps.Locks},
		now:  time.Now,
	}, nil
}

func (s *service) Get(ctx context.Context, userID string) (*models.Cart, error) {
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	cart, err := s.deps.Carts.FindOpenByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no open cart")
		}
		return nil, err
	}
	return cart, nil
}

// AddItem reserves stock and snapshots the item's price and name into
// the cart, provisioning the cart and its channel on first use.
func (s *service) AddItem(ctx context.Context, userID string, itemID uuid.UUID, quantity int) (*models.Cart, error) {
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if itemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	release, err := s.lock.acquire(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	cart, err := s.findOrProvision(ctx, userID)
	if err != nil {
		return nil, err
	}
	cart, err = s.requireMutable(ctx, cart)
	if err != nil {
		return nil, err
	}

	err = s.deps.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		items := s.deps.Items.WithTx(tx)
		affected, err := items.AdjustQuantity(ctx, itemID, -quantity)
		if err != nil {
			return err
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "not enough stock")
		}

		item, err := items.FindByID(ctx, itemID)
		if err != nil {
			return err
		}

		lines := cart.Lines.Clone()
		line := lines[itemID.String()]
		line.Quantity += quantity
		line.UnitPrice = item.Price
		line.Name = item.Name
		if existing, ok := cart.Lines[itemID.String()]; ok {
			// The snapshot taken at first add wins over later edits.
			line.UnitPrice = existing.UnitPrice
			line.Name = existing.Name
		}
		lines[itemID.String()] = line

		return s.deps.Carts.WithTx(tx).UpdateLines(ctx, cart.ID, lines, s.now().UTC())
	})
	if err != nil {
		return nil, err
	}
	return s.deps.Carts.FindByID(ctx, cart.ID)
}

// RemoveItem releases reserved stock back to the shelf and drops the
// line once it hits zero.
func (s *service) RemoveItem(ctx context.Context, userID string, itemID uuid.UUID, quantity int) (*models.Cart, error) {
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	release, err := s.lock.acquire(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	cart, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	cart, err = s.requireMutable(ctx, cart)
	if err != nil {
		return nil, err
	}

	line, ok := cart.Lines[itemID.String()]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item is not in the cart")
	}
	if quantity > line.Quantity {
		quantity = line.Quantity
	}

	err = s.deps.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.deps.Items.WithTx(tx).AdjustQuantity(ctx, itemID, quantity); err != nil {
			return err
		}

		lines := cart.Lines.Clone()
		line.Quantity -= quantity
		if line.Quantity <= 0 {
			delete(lines, itemID.String())
		} else {
			lines[itemID.String()] = line
		}
		return s.deps.Carts.WithTx(tx).UpdateLines(ctx, cart.ID, lines, s.now().UTC())
	})
	if err != nil {
		return nil, err
	}
	return s.deps.Carts.FindByID(ctx, cart.ID)
}

// ApplyCredit moves store credit onto the cart, capped at the
// outstanding total. A fully covered cart completes on the spot.
func (s *service) ApplyCredit(ctx context.Context, userID string, amount decimal.Decimal) (*models.Cart, error) {
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if !amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "credit amount must be positive")
	}

	release, err := s.lock.acquire(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	cart, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	cart, err = s.requireMutable(ctx, cart)
	if err != nil {
		return nil, err
	}

	outstanding := cart.Outstanding()
	if !outstanding.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "nothing outstanding on this cart")
	}
	applied := decimal.Min(amount, outstanding)

	err = s.deps.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		users := s.deps.Users.WithTx(tx)
		if _, err := users.FindOrCreate(ctx, userID); err != nil {
			return err
		}
		affected, err := users.Debit(ctx, userID, applied)
		if err != nil {
			return err
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient balance")
		}
		return s.deps.Carts.WithTx(tx).AddCredit(ctx, cart.ID, applied)
	})
	if err != nil {
		return nil, err
	}

	cart, err = s.deps.Carts.FindByID(ctx, cart.ID)
	if err != nil {
		return nil, err
	}
	if !cart.Outstanding().IsPositive() {
		return s.completeOrder(ctx, cart.ID)
	}
	return cart, nil
}

// Close walks an unpaid cart back: stock returns to the shelf, applied
// credit returns to the balance. A paid and delivered cart finishes as
// completed instead.
func (s *service) Close(ctx context.Context, userID string) (*models.Cart, error) {
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	release, err := s.lock.acquire(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	cart, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if cart.Status == enums.CartStatusPaid {
		if cart.DeliveryLocation == nil {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is paid and awaiting delivery")
		}
		if _, err := s.deps.Carts.UpdateStatusGuarded(ctx, cart.ID,
			[]enums.CartStatus{enums.CartStatusPaid}, enums.CartStatusCompleted); err != nil {
			return nil, err
		}
		s.archiveChannel(ctx, cart)
		return s.deps.Carts.FindByID(ctx, cart.ID)
	}

	if err := s.cancelInvoiceLocked(ctx, cart); err != nil {
		return nil, err
	}

	err = s.deps.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.restoreCart(ctx, tx, cart); err != nil {
			return err
		}
		affected, err := s.deps.Carts.WithTx(tx).UpdateStatusGuarded(ctx, cart.ID,
			enums.PayableCartStatuses, enums.CartStatusClosed)
		if err != nil {
			return err
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cart settled while closing")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.archiveChannel(ctx, cart)
	return s.deps.Carts.FindByID(ctx, cart.ID)
}

// Deliver records the handover of a paid order and credits the agent's
// delivery counter.
func (s *service) Deliver(ctx context.Context, agentID string, cartID uuid.UUID, location string) (*models.Cart, error) {
	if agentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "agent id required")
	}
	if location == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery location required")
	}

	cart, err := s.findCart(ctx, cartID)
	if err != nil {
		return nil, err
	}

	affected, err := s.deps.Carts.SetDeliveryLocation(ctx, cartID, location)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only paid orders can be delivered")
	}

	err = s.deps.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		users := s.deps.Users.WithTx(tx)
		if _, err := users.FindOrCreate(ctx, agentID); err != nil {
			return err
		}
		_, err := users.AddDeliveryValue(ctx, agentID, cart.Total())
		return err
	})
	if err != nil {
		return nil, err
	}

	if cart.ChannelID != nil {
		body := fmt.Sprintf("Your order has been delivered at %s. Close the cart to confirm receipt.", location)
		if _, err := s.deps.Gateway.SendMessage(ctx, *cart.ChannelID, body); err != nil {
			s.deps.Logger.Warn(s.deps.Logger.WithField(ctx, "error", err.Error()), "delivery notice failed")
		}
	}
	return s.deps.Carts.FindByID(ctx, cartID)
}

func (s *service) ListAll(ctx context.Context) ([]models.Cart, error) {
	return s.deps.Carts.List(ctx)
}

func (s *service) ListInactiveSince(ctx context.Context, cutoff time.Time) ([]models.Cart, error) {
	return s.deps.Carts.ListInactiveOpenSince(ctx, cutoff)
}

func (s *service) PurgeTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.deps.Carts.DeleteTerminalBefore(ctx, cutoff)
}

// WipeAll restores stock and refunds credit for every open cart, then
// deletes every cart row. Admin panic button.
func (s *service) WipeAll(ctx context.Context) (int, error) {
	open, err := s.deps.Carts.ListOpen(ctx)
	if err != nil {
		return 0, err
	}
	for i := range open {
		cart := open[i]
		if err := s.cancelInvoiceLocked(ctx, &cart); err != nil {
			return 0, err
		}
		if cart.Status != enums.CartStatusPaid {
			err = s.deps.Tx.WithTx(ctx, func(tx *gorm.DB) error {
				return s.restoreCart(ctx, tx, &cart)
			})
			if err != nil {
				return 0, err
			}
		}
		s.archiveChannel(ctx, &cart)
	}

	all, err := s.deps.Carts.List(ctx)
	if err != nil {
		return 0, err
	}
	for _, cart := range all {
		if err := s.deps.Carts.DeleteByID(ctx, cart.ID); err != nil {
			return 0, err
		}
	}
	return len(all), nil
}

// findOrProvision loads the user's open cart, creating the cart and
// its channel on first use.
func (s *service) findOrProvision(ctx context.Context, userID string) (*models.Cart, error) {
	cart, err := s.deps.Carts.FindOpenByUser(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	cart, err = s.deps.Carts.Create(ctx, &models.Cart{UserID: userID})
	if err != nil {
		// The partial unique index catches a concurrent first add.
		return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "a cart is already open")
	}

	channel, err := s.deps.Gateway.CreateChannel(ctx, s.opts.CartCategoryRef,
		fmt.Sprintf("cart-%s", shortID(cart.ID)), userID)
	if err != nil {
		s.deps.Logger.Warn(s.deps.Logger.WithField(ctx, "error", err.Error()), "cart channel provisioning failed")
		return cart, nil
	}
	cart.ChannelID = &channel.ID
	if err := s.deps.Carts.SetChannel(ctx, cart.ID, channel.ID); err != nil {
		return nil, err
	}
	return cart, nil
}

// requireMutable cancels any outstanding invoice and rejects carts
// past the point of no return.
func (s *service) requireMutable(ctx context.Context, cart *models.Cart) (*models.Cart, error) {
	if cart.Status == enums.CartStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is already paid")
	}
	if !cart.HasInvoice() && cart.Status == enums.CartStatusActive {
		return cart, nil
	}
	if err := s.cancelInvoiceLocked(ctx, cart); err != nil {
		return nil, err
	}
	return s.deps.Carts.FindByID(ctx, cart.ID)
}

// restoreCart puts every line's units back on the shelf and refunds
// applied credit inside the caller's transaction.
func (s *service) restoreCart(ctx context.Context, tx *gorm.DB, cart *models.Cart) error {
	items := s.deps.Items.WithTx(tx)
	for itemKey, line := range cart.Lines {
		itemID, err := uuid.Parse(itemKey)
		if err != nil {
			return fmt.Errorf("malformed line key %q: %w", itemKey, err)
		}
		// Restock tolerates items deleted after the snapshot.
		if _, err := items.AdjustQuantity(ctx, itemID, line.Quantity); err != nil {
			return err
		}
	}

	if cart.CreditApplied.IsPositive() {
		users := s.deps.Users.WithTx(tx)
		if _, err := users.FindOrCreate(ctx, cart.UserID); err != nil {
			return err
		}
		if _, err := users.Credit(ctx, cart.UserID, cart.CreditApplied); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) archiveChannel(ctx context.Context, cart *models.Cart) {
	if cart.ChannelID == nil {
		return
	}
	if err := s.deps.Gateway.ArchiveChannel(ctx, *cart.ChannelID, s.opts.ArchiveCategoryRef); err != nil {
		s.deps.Logger.Warn(s.deps.Logger.WithField(ctx, "error", err.Error()), "cart channel archive failed")
	}
}

func (s *service) findCart(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	if cartID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart id required")
	}
	cart, err := s.deps.Carts.FindByID(ctx, cartID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return nil, err
	}
	return cart, nil
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}
