package coingecko

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/blockmart/blockmart-backend/pkg/errors"
)

func TestUSDPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/simple/price", r.URL.Path)
		assert.Equal(t, "bitcoin", r.URL.Query().Get("ids"))
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currencies"))
		_, _ = w.Write([]byte(`{"bitcoin":{"usd":64123.55}}`))
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	price, err := client.USDPrice(context.Background(), "btc")
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("64123.55")), "got %s", price)
}

func TestUSDPrice_UnsupportedCoin(t *testing.T) {
	client := NewClient()
	_, err := client.USDPrice(context.Background(), "DOGE")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestUSDPrice_UpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	_, err := client.USDPrice(context.Background(), "ETH")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.As(err).Code())
}

func TestSupportedCoin(t *testing.T) {
	assert.True(t, SupportedCoin("btc"))
	assert.True(t, SupportedCoin(" LTC "))
	assert.False(t, SupportedCoin("XMR"))
}
