package square

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockmart/blockmart-backend/pkg/config"
	pkgerrors "github.com/blockmart/blockmart-backend/pkg/errors"
	"github.com/blockmart/blockmart-backend/pkg/logger"
)

func TestNewClient_Validation(t *testing.T) {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "square-test", Level: logger.ParseLevel("error")})

	_, err := NewClient(ctx, config.SquareConfig{Env: "sandbox", LocationID: "L1"}, logg)
	assert.ErrorIs(t, err, errAccessTokenRequired)

	_, err = NewClient(ctx, config.SquareConfig{AccessToken: "tok", Env: "sandbox"}, logg)
	assert.ErrorIs(t, err, errLocationRequired)

	_, err = NewClient(ctx, config.SquareConfig{AccessToken: "tok", Env: "staging", LocationID: "L1"}, logg)
	assert.Error(t, err)

	client, err := NewClient(ctx, config.SquareConfig{AccessToken: "tok", Env: "Sandbox", LocationID: "L1"}, logg)
	require.NoError(t, err)
	assert.Equal(t, "sandbox", client.Environment())
	assert.Equal(t, "L1", client.LocationID())
}

func TestNewIdempotencyKey(t *testing.T) {
	client := &Client{}
	key := client.NewIdempotencyKey("payment_link.create")
	assert.True(t, strings.HasPrefix(key, "payment_link.create-"))

	fallback := client.NewIdempotencyKey("  ")
	assert.True(t, strings.HasPrefix(fallback, "bm-"))
}

func TestPaymentLinkCreateParams_ToSquareRequest(t *testing.T) {
	params := PaymentLinkCreateParams{
		AmountCents: 1250,
		Currency:    "usd",
		Name:        "BlockMart order",
		RedirectURL: "https://shop.example/payments/success",
		PaymentNote: "cart abc",
	}

	req := params.toSquareRequest("L1", "key-123")
	require.NotNil(t, req.QuickPay)
	assert.Equal(t, "L1", req.QuickPay.LocationID)
	assert.Equal(t, "BlockMart order", req.QuickPay.Name)
	require.NotNil(t, req.QuickPay.PriceMoney)
	assert.Equal(t, int64(1250), *req.QuickPay.PriceMoney.Amount)
	assert.Equal(t, "USD", string(*req.QuickPay.PriceMoney.Currency))
	require.NotNil(t, req.CheckoutOptions)
	assert.Equal(t, "https://shop.example/payments/success", *req.CheckoutOptions.RedirectURL)
	assert.Equal(t, "key-123", *req.IdempotencyKey)
}

func TestDomainCodeForStatus(t *testing.T) {
	cases := map[int]pkgerrors.Code{
		http.StatusUnauthorized:        pkgerrors.CodeUnauthorized,
		http.StatusNotFound:            pkgerrors.CodeNotFound,
		http.StatusConflict:            pkgerrors.CodeConflict,
		http.StatusTooManyRequests:     pkgerrors.CodeRateLimit,
		http.StatusTeapot:              pkgerrors.CodeValidation,
		http.StatusBadGateway:          pkgerrors.CodeDependency,
		http.StatusInternalServerError: pkgerrors.CodeDependency,
	}
	for status, want := range cases {
		assert.Equal(t, want, domainCodeForStatus(status), "status %d", status)
	}
}

func TestRedact(t *testing.T) {
	client := &Client{}
	assert.Equal(t, "[REDACTED]", client.redact("access_token", "tok"))
	assert.Equal(t, "[REDACTED]", client.redact("cardNumber", "4111"))
	assert.Equal(t, "order-1", client.redact("order_id", "order-1"))
}
