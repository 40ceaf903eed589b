package cart

import (
	"context"
	"fmt"
	"net/url"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/blockmart/blockmart-backend/internal/payment"
	"github.com/blockmart/blockmart-backend/pkg/db/models"
	"github.com/blockmart/blockmart-backend/pkg/enums"
	pkgerrors "github.com/blockmart/blockmart-backend/pkg/errors"
)

// Checkout opens a hosted payment page for the outstanding total and
// parks the cart in pending_payment until the processor settles.
func (s *service) Checkout(ctx context.Context, userID string) (*CheckoutResult, error) {
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
	resuming := cart.PaymentRef != nil
	cart, err = s.prepareForInvoice(ctx, cart, resuming)
	if err != nil {
		return nil, err
	}

	outstanding := cart.Outstanding()
	if !outstanding.IsPositive() {
		// Credit covered everything; nothing left for the processor.
		done, err := s.completeOrder(ctx, cart.ID)
		if err != nil {
			return nil, err
		}
		return &CheckoutResult{Cart: done}, nil
	}

	checkout, err := s.deps.Processor.CreateCheckout(ctx, payment.CheckoutParams{
		ReferenceID: cart.ID.String(),
		Amount:      outstanding,
		Description: fmt.Sprintf("BlockMart order %s", shortID(cart.ID)),
		ReturnURL:   s.redirectURL("/payments/success", cart.ID),
		CancelURL:   s.redirectURL("/payments/cancel", cart.ID),
	})
	if err != nil {
		return nil, err
	}

	method := s.deps.Processor.Method()
	messageID := s.postInvoiceMessage(ctx, cart,
		fmt.Sprintf("Your total is $%s. Pay here: %s", outstanding.StringFixed(2), checkout.URL))

	if err := s.deps.Carts.SetInvoice(ctx, cart.ID, &checkout.Ref, &method, messageID); err != nil {
		return nil, err
	}
	if _, err := s.deps.Carts.UpdateStatusGuarded(ctx, cart.ID,
		[]enums.CartStatus{enums.CartStatusActive}, enums.CartStatusPendingPayment); err != nil {
		return nil, err
	}

	fresh, err := s.deps.Carts.FindByID(ctx, cart.ID)
	if err != nil {
		return nil, err
	}
	return &CheckoutResult{Cart: fresh, PaymentURL: checkout.URL}, nil
}

// SelectCrypto quotes the outstanding total in the chosen coin and
// parks the cart in pending_payment awaiting the manual flow.
func (s *service) SelectCrypto(ctx context.Context, userID, coin string) (*CheckoutResult, error) {
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
	cart, err = s.prepareForInvoice(ctx, cart, false)
	if err != nil {
		return nil, err
	}

	outstanding := cart.Outstanding()
	if !outstanding.IsPositive() {
		done, err := s.completeOrder(ctx, cart.ID)
		if err != nil {
			return nil, err
		}
		return &CheckoutResult{Cart: done}, nil
	}

	quote, err := s.deps.Quoter.Quote(ctx, coin, outstanding)
	if err != nil {
		return nil, err
	}

	method := enums.CryptoPaymentMethod(quote.Coin)
	messageID := s.postInvoiceMessage(ctx, cart,
		fmt.Sprintf("Send %s %s to %s, then confirm in the shop. Quote: $%s at $%s/%s.",
			quote.Amount.String(), quote.Coin, quote.Address,
			quote.TotalUSD.StringFixed(2), quote.PriceUSD.StringFixed(2), quote.Coin))

	if err := s.deps.Carts.SetInvoice(ctx, cart.ID, nil, &method, messageID); err != nil {
		return nil, err
	}
	if _, err := s.deps.Carts.UpdateStatusGuarded(ctx, cart.ID,
		[]enums.CartStatus{enums.CartStatusActive}, enums.CartStatusPendingPayment); err != nil {
		return nil, err
	}

	fresh, err := s.deps.Carts.FindByID(ctx, cart.ID)
	if err != nil {
		return nil, err
	}
	return &CheckoutResult{Cart: fresh, Quote: quote}, nil
}

// ConfirmCryptoSent moves a crypto invoice into manual verification
// once the buyer says the coins are on the way.
func (s *service) ConfirmCryptoSent(ctx context.Context, userID string) (*models.Cart, error) {
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
	if cart.PaymentMethod == nil || !cart.PaymentMethod.IsCrypto() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "no crypto invoice on this cart")
	}

	affected, err := s.deps.Carts.UpdateStatusGuarded(ctx, cart.ID,
		[]enums.CartStatus{enums.CartStatusPendingPayment}, enums.CartStatusPendingManualCheck)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cart is not awaiting a crypto payment")
	}
	return s.deps.Carts.FindByID(ctx, cart.ID)
}

// ConfirmCryptoOrder settles a manually verified crypto payment.
// Admin surface only.
func (s *service) ConfirmCryptoOrder(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	cart, err := s.findCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if cart.Status != enums.CartStatusPendingManualCheck {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cart is not awaiting manual verification")
	}
	return s.completeOrder(ctx, cartID)
}

// CancelInvoice voids the outstanding payment attempt and returns the
// cart to active.
func (s *service) CancelInvoice(ctx context.Context, userID, reason string) (*models.Cart, error) {
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
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is already paid")
	}

	if reason != "" {
		s.deps.Logger.Info(s.deps.Logger.WithFields(ctx, map[string]any{
			"cart_id": cart.ID.String(),
			"reason":  reason,
		}), "invoice cancelled")
	}
	if err := s.cancelInvoiceLocked(ctx, cart); err != nil {
		return nil, err
	}
	return s.deps.Carts.FindByID(ctx, cart.ID)
}

// CompleteOrder settles a cart exactly once. The status CAS inside the
// transaction means a webhook and a reconcile sweep racing here leaves
// one winner and one state conflict, with no doubled side effects.
func (s *service) CompleteOrder(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	return s.completeOrder(ctx, cartID)
}

func (s *service) completeOrder(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	cart, err := s.findCart(ctx, cartID)
	if err != nil {
		return nil, err
	}

	err = s.deps.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		affected, err := s.deps.Carts.WithTx(tx).UpdateStatusGuarded(ctx, cart.ID,
			enums.PayableCartStatuses, enums.CartStatusPaid)
		if err != nil {
			return err
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order already settled")
		}

		charged := cart.Total().Sub(cart.CreditApplied)
		if charged.IsPositive() {
			users := s.deps.Users.WithTx(tx)
			if _, err := users.FindOrCreate(ctx, cart.UserID); err != nil {
				return err
			}
			if _, err := users.AddLifetimeSpent(ctx, cart.UserID, charged); err != nil {
				return err
			}
		}

		return s.deps.Events.WithTx(tx).InsertBatch(ctx, purchaseEvents(cart))
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.deps.Tiers.Evaluate(ctx, cart.UserID); err != nil {
		s.deps.Logger.Warn(s.deps.Logger.WithField(ctx, "error", err.Error()), "tier evaluation failed")
	}

	if cart.ChannelID != nil {
		body := fmt.Sprintf("Payment received for order %s.", shortID(cart.ID))
		if s.opts.DeliveryPingRoleRef != "" {
			body = fmt.Sprintf("<@&%s> %s Ready for delivery.", s.opts.DeliveryPingRoleRef, body)
		}
		if _, err := s.deps.Gateway.SendMessage(ctx, *cart.ChannelID, body); err != nil {
			s.deps.Logger.Warn(s.deps.Logger.WithField(ctx, "error", err.Error()), "payment notice failed")
		}
	}

	return s.deps.Carts.FindByID(ctx, cart.ID)
}

// prepareForInvoice runs the shared checkout preamble: non-empty cart,
// shop open unless resuming, purchase minimum, stale invoice cleared.
func (s *service) prepareForInvoice(ctx context.Context, cart *models.Cart, resuming bool) (*models.Cart, error) {
	if cart.Status == enums.CartStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is already paid")
	}
	if cart.Lines.IsEmpty() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	if !resuming {
		status, err := s.deps.Settings.ShopStatus(ctx)
		if err != nil {
			return nil, err
		}
		if status != enums.ShopStatusOpen {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "the shop is closed")
		}
	}

	outstanding := cart.Outstanding()
	if outstanding.IsPositive() && outstanding.LessThan(s.opts.PurchaseMinimum) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("outstanding total is below the $%s minimum", s.opts.PurchaseMinimum.StringFixed(2)))
	}

	if cart.HasInvoice() {
		if err := s.cancelInvoiceLocked(ctx, cart); err != nil {
			return nil, err
		}
		return s.deps.Carts.FindByID(ctx, cart.ID)
	}
	return cart, nil
}

// cancelInvoiceLocked voids the processor checkout, deletes the
// invoice message, and clears the payment fields. Caller holds the
// user lock.
func (s *service) cancelInvoiceLocked(ctx context.Context, cart *models.Cart) error {
	if !cart.HasInvoice() {
		return nil
	}

	if cart.PaymentRef != nil && cart.PaymentMethod != nil && cart.PaymentMethod.IsHosted() {
		if err := s.deps.Processor.CancelCheckout(ctx, *cart.PaymentRef); err != nil {
			// A link that cannot be voided expires on its own; the
			// reconcile sweep drops anything that pays late.
			s.deps.Logger.Warn(s.deps.Logger.WithField(ctx, "error", err.Error()), "checkout void failed")
		}
	}
	if cart.InvoiceMessageID != nil && cart.ChannelID != nil {
		if err := s.deps.Gateway.DeleteMessage(ctx, *cart.ChannelID, *cart.InvoiceMessageID); err != nil {
			s.deps.Logger.Warn(s.deps.Logger.WithField(ctx, "error", err.Error()), "invoice message delete failed")
		}
	}
	return s.deps.Carts.ClearInvoice(ctx, cart.ID)
}

// postInvoiceMessage drops the invoice into the cart channel, if one
// exists. Message loss is tolerable; the API response carries the same
// link.
func (s *service) postInvoiceMessage(ctx context.Context, cart *models.Cart, body string) *string {
	if cart.ChannelID == nil {
		return nil
	}
	message, err := s.deps.Gateway.SendMessage(ctx, *cart.ChannelID, body)
	if err != nil {
		s.deps.Logger.Warn(s.deps.Logger.WithField(ctx, "error", err.Error()), "invoice message failed")
		return nil
	}
	return &message.ID
}

func (s *service) redirectURL(path string, cartID uuid.UUID) string {
	if s.opts.PublicBaseURL == "" {
		return ""
	}
	return fmt.Sprintf("%s%s?cart_id=%s", s.opts.PublicBaseURL, path, url.QueryEscape(cartID.String()))
}

func purchaseEvents(cart *models.Cart) []models.PurchaseEvent {
	events := make([]models.PurchaseEvent, 0, cart.Lines.Units())
	for itemKey, line := range cart.Lines {
		itemID, err := uuid.Parse(itemKey)
		if err != nil {
			continue
		}
		for i := 0; i < line.Quantity; i++ {
			events = append(events, models.PurchaseEvent{
				EventType: enums.EventTypePurchase,
				ItemID:    itemID,
				UserID:    cart.UserID,
			})
		}
	}
	return events
}
