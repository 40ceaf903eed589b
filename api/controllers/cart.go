package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/blockmart/blockmart-backend/api/middleware"
	"github.com/blockmart/blockmart-backend/api/responses"
	"github.com/blockmart/blockmart-backend/api/validators"
	cartsvc "github.com/blockmart/blockmart-backend/internal/cart"
	"github.com/blockmart/blockmart-backend/internal/payment"
	"github.com/blockmart/blockmart-backend/pkg/db/models"
	pkgerrors "github.com/blockmart/blockmart-backend/pkg/errors"
	"github.com/blockmart/blockmart-backend/pkg/logger"
)

type cartLineResponse struct {
	ItemID    string          `json:"item_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type cartResponse struct {
	ID               uuid.UUID          `json:"id"`
	UserID           string             `json:"user_id"`
	Status           string             `json:"status"`
	Lines            []cartLineResponse `json:"lines"`
	Total            decimal.Decimal    `json:"total"`
	CreditApplied    decimal.Decimal    `json:"credit_applied"`
	Outstanding      decimal.Decimal    `json:"outstanding"`
	PaymentMethod    *string            `json:"payment_method,omitempty"`
	DeliveryLocation *string            `json:"delivery_location,omitempty"`
	LastActivityAt   time.Time          `json:"last_activity_at"`
}

func newCartResponse(cart *models.Cart) cartResponse {
	lines := make([]cartLineResponse, 0, len(cart.Lines))
	for itemID, line := range cart.Lines {
		lines = append(lines, cartLineResponse{
			ItemID:    itemID,
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Subtotal:  line.Subtotal(),
		})
	}
	resp := cartResponse{
		ID:               cart.ID,
		UserID:           cart.UserID,
		Status:           string(cart.Status),
		Lines:            lines,
		Total:            cart.Total(),
		CreditApplied:    cart.CreditApplied,
		Outstanding:      cart.Outstanding(),
		DeliveryLocation: cart.DeliveryLocation,
		LastActivityAt:   cart.LastActivityAt,
	}
	if cart.PaymentMethod != nil {
		method := string(*cart.PaymentMethod)
		resp.PaymentMethod = &method
	}
	return resp
}

func newCartListResponse(carts []models.Cart) []cartResponse {
	out := make([]cartResponse, len(carts))
	for i := range carts {
		out[i] = newCartResponse(&carts[i])
	}
	return out
}

type checkoutResponse struct {
	Cart       cartResponse         `json:"cart"`
	PaymentURL string               `json:"payment_url,omitempty"`
	Quote      *payment.CryptoQuote `json:"quote,omitempty"`
}

func newCheckoutResponse(result *cartsvc.CheckoutResult) checkoutResponse {
	return checkoutResponse{
		Cart:       newCartResponse(result.Cart),
		PaymentURL: result.PaymentURL,
		Quote:      result.Quote,
	}
}

func callerID(r *http.Request, logg *logger.Logger, w http.ResponseWriter) (string, bool) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user context"))
		return "", false
	}
	return userID, true
}

func CartGet(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := callerID(r, logg, w)
		if !ok {
			return
		}
		cart, err := svc.Get(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(cart))
	}
}

type cartItemRequest struct {
	ItemID   uuid.UUID `json:"item_id" validate:"required"`
	Quantity int       `json:"quantity" validate:"required,min=1"`
}

func CartAddItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := callerID(r, logg, w)
		if !ok {
			return
		}
		var payload cartItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cart, err := svc.AddItem(r.Context(), userID, payload.ItemID, payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(cart))
	}
}

func CartRemoveItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := callerID(r, logg, w)
		if !ok {
			return
		}
		var payload cartItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cart, err := svc.RemoveItem(r.Context(), userID, payload.ItemID, payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(cart))
	}
}

type applyCreditRequest struct {
	Amount string `json:"amount" validate:"required"`
}

func CartApplyCredit(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := callerID(r, logg, w)
		if !ok {
			return
		}
		var payload applyCreditRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		amount, err := decimal.NewFromString(payload.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount"))
			return
		}
		cart, err := svc.ApplyCredit(r.Context(), userID, amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(cart))
	}
}

func CartCheckout(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := callerID(r, logg, w)
		if !ok {
			return
		}
		result, err := svc.Checkout(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCheckoutResponse(result))
	}
}

type selectCryptoRequest struct {
	Coin string `json:"coin" validate:"required"`
}

func CartSelectCrypto(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := callerID(r, logg, w)
		if !ok {
			return
		}
		var payload selectCryptoRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.SelectCrypto(r.Context(), userID, payload.Coin)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCheckoutResponse(result))
	}
}

func CartConfirmCryptoSent(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := callerID(r, logg, w)
		if !ok {
			return
		}
		cart, err := svc.ConfirmCryptoSent(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(cart))
	}
}

type cancelInvoiceRequest struct {
	Reason string `json:"reason"`
}

func CartCancelInvoice(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := callerID(r, logg, w)
		if !ok {
			return
		}
		var payload cancelInvoiceRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		reason := payload.Reason
		if reason == "" {
			reason = "cancelled by buyer"
		}
		cart, err := svc.CancelInvoice(r.Context(), userID, reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(cart))
	}
}

func CartClose(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := callerID(r, logg, w)
		if !ok {
			return
		}
		cart, err := svc.Close(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(cart))
	}
}

// Admin and agent surfaces.

func CartList(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		carts, err := svc.ListAll(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartListResponse(carts))
	}
}

func CartConfirmCryptoOrder(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cartID, err := parseUUIDParam(r, "cartID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cart, err := svc.ConfirmCryptoOrder(r.Context(), cartID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(cart))
	}
}

type deliverRequest struct {
	Location string `json:"location" validate:"required"`
}

func CartDeliver(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agentID, ok := callerID(r, logg, w)
		if !ok {
			return
		}
		cartID, err := parseUUIDParam(r, "cartID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload deliverRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cart, err := svc.Deliver(r.Context(), agentID, cartID, payload.Location)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(cart))
	}
}

func CartWipeAll(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wiped, err := svc.WipeAll(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int{"wiped": wiped})
	}
}
