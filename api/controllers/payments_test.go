package controllers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/blockmart/blockmart-backend/pkg/db/models"
	"github.com/blockmart/blockmart-backend/pkg/enums"
	"github.com/blockmart/blockmart-backend/pkg/logger"
)

const webhookTestSecret = "webhook-test-secret"

type fakeSettler struct {
	completed []uuid.UUID
	cancelled []string
	reasons   []string
}

func (f *fakeSettler) CompleteOrder(_ context.Context, cartID uuid.UUID) (*models.Cart, error) {
	f.completed = append(f.completed, cartID)
	return &models.Cart{ID: cartID, Status: enums.CartStatusPaid}, nil
}

func (f *fakeSettler) CancelInvoice(_ context.Context, userID, reason string) (*models.Cart, error) {
	f.cancelled = append(f.cancelled, userID)
	f.reasons = append(f.reasons, reason)
	return &models.Cart{UserID: userID, Status: enums.CartStatusActive}, nil
}

type fakeCartLoader struct {
	cart *models.Cart
}

func (f *fakeCartLoader) FindByID(context.Context, uuid.UUID) (*models.Cart, error) {
	return f.cart, nil
}

func sign(body string) string {
	mac := hmac.New(sha256.New, []byte(webhookTestSecret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func webhookRequest(body, signature string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", strings.NewReader(body))
	if signature != "" {
		req.Header.Set(signatureHeader, signature)
	}
	return req
}

func newWebhookHandler(settler *fakeSettler, cart *models.Cart) http.HandlerFunc {
	logg := logger.New(logger.Options{ServiceName: "controllers-test"})
	return PaymentWebhook(settler, &fakeCartLoader{cart: cart}, webhookTestSecret, logg)
}

func pendingWebhookCart() *models.Cart {
	return &models.Cart{
		ID:     uuid.New(),
		UserID: "buyer-1",
		Status: enums.CartStatusPendingPayment,
	}
}

func TestWebhookSettlesConfirmedPayment(t *testing.T) {
	cart := pendingWebhookCart()
	settler := &fakeSettler{}
	handler := newWebhookHandler(settler, cart)

	body := `{"reference":"` + cart.ID.String() + `","status":"confirmed"}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, webhookRequest(body, sign(body)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []uuid.UUID{cart.ID}, settler.completed)
}

func TestWebhookCancelsFailedPayment(t *testing.T) {
	cart := pendingWebhookCart()
	settler := &fakeSettler{}
	handler := newWebhookHandler(settler, cart)

	body := `{"reference":"` + cart.ID.String() + `","status":"expired"}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, webhookRequest(body, sign(body)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"buyer-1"}, settler.cancelled)
	assert.Equal(t, []string{"payment expired"}, settler.reasons)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	cart := pendingWebhookCart()
	settler := &fakeSettler{}
	handler := newWebhookHandler(settler, cart)

	body := `{"reference":"` + cart.ID.String() + `","status":"confirmed"}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, webhookRequest(body, "deadbeef"))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, settler.completed)
}

func TestWebhookRejectsMissingSignature(t *testing.T) {
	cart := pendingWebhookCart()
	settler := &fakeSettler{}
	handler := newWebhookHandler(settler, cart)

	body := `{"reference":"` + cart.ID.String() + `","status":"confirmed"}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, webhookRequest(body, ""))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookIgnoresSettledCarts(t *testing.T) {
	cart := pendingWebhookCart()
	cart.Status = enums.CartStatusPaid
	settler := &fakeSettler{}
	handler := newWebhookHandler(settler, cart)

	body := `{"reference":"` + cart.ID.String() + `","status":"confirmed"}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, webhookRequest(body, sign(body)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, settler.completed)
	assert.Contains(t, rec.Body.String(), "ignored")
}

func TestWebhookIgnoresUnknownStatus(t *testing.T) {
	cart := pendingWebhookCart()
	settler := &fakeSettler{}
	handler := newWebhookHandler(settler, cart)

	body := `{"reference":"` + cart.ID.String() + `","status":"processing"}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, webhookRequest(body, sign(body)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, settler.completed)
	assert.Empty(t, settler.cancelled)
}
