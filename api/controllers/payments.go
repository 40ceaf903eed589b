package controllers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"html/template"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/blockmart/blockmart-backend/api/responses"
	"github.com/blockmart/blockmart-backend/pkg/db/models"
	"github.com/blockmart/blockmart-backend/pkg/enums"
	pkgerrors "github.com/blockmart/blockmart-backend/pkg/errors"
	"github.com/blockmart/blockmart-backend/pkg/logger"
)

const signatureHeader = "X-Webhook-Signature"

// orderSettler is the slice of the cart service the payment endpoints
// need to settle or void an order.
type orderSettler interface {
	CompleteOrder(ctx context.Context, cartID uuid.UUID) (*models.Cart, error)
	CancelInvoice(ctx context.Context, userID, reason string) (*models.Cart, error)
}

// cartLoader resolves a webhook reference to its cart row.
type cartLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Cart, error)
}

var paymentPageTemplate = template.Must(template.New("payment").Parse(`<!DOCTYPE html>
<html>
<head><title>BlockMart — {{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
<p>{{.Body}}</p>
<p>You can close this page and return to the shop.</p>
</body>
</html>
`))

type paymentPageData struct {
	Title string
	Body  string
}

func renderPaymentPage(w http.ResponseWriter, data paymentPageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = paymentPageTemplate.Execute(w, data)
}

// PaymentSuccessPage is the hosted processor's return URL. It only
// renders; the reconciler and webhook own the state transition.
func PaymentSuccessPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		renderPaymentPage(w, paymentPageData{
			Title: "Payment received",
			Body:  "Thanks! Your payment is being confirmed. Your order channel will update shortly.",
		})
	}
}

// PaymentCancelPage is the hosted processor's cancel URL.
func PaymentCancelPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		renderPaymentPage(w, paymentPageData{
			Title: "Payment cancelled",
			Body:  "No charge was made. Head back to your cart to try again.",
		})
	}
}

type webhookPayload struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

var (
	webhookSettledStatuses = map[string]bool{
		"confirmed": true,
		"finished":  true,
		"approved":  true,
		"completed": true,
	}
	webhookFailedStatuses = map[string]bool{
		"failed":         true,
		"refunded":       true,
		"expired":        true,
		"partially_paid": true,
	}
)

// PaymentWebhook converges webhook notifications onto the same
// idempotent settlement path the poller uses. Carts already settled or
// closed are acknowledged without action.
func PaymentWebhook(settler orderSettler, carts cartLoader, secret string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read webhook body"))
			return
		}

		if !verifySignature(secret, body, r.Header.Get(signatureHeader)) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook signature"))
			return
		}

		var payload webhookPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid webhook body"))
			return
		}

		cartID, err := uuid.Parse(payload.Reference)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid reference"))
			return
		}

		cart, err := carts.FindByID(r.Context(), cartID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		// The poller may have settled this cart already.
		switch cart.Status {
		case enums.CartStatusPaid, enums.CartStatusCompleted, enums.CartStatusClosed:
			responses.WriteSuccess(w, map[string]string{"status": "ignored"})
			return
		}

		status := strings.ToLower(strings.TrimSpace(payload.Status))
		switch {
		case webhookSettledStatuses[status]:
			if _, err := settler.CompleteOrder(r.Context(), cartID); err != nil {
				if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeStateConflict {
					responses.WriteSuccess(w, map[string]string{"status": "ignored"})
					return
				}
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteSuccess(w, map[string]string{"status": "settled"})
		case webhookFailedStatuses[status]:
			if _, err := settler.CancelInvoice(r.Context(), cart.UserID, "payment "+status); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteSuccess(w, map[string]string{"status": "cancelled"})
		default:
			responses.WriteSuccess(w, map[string]string{"status": "ignored"})
		}
	}
}

func verifySignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature))))
}
