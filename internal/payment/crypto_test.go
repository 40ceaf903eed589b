package payment

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockmart/blockmart-backend/pkg/config"
	pkgerrors "github.com/blockmart/blockmart-backend/pkg/errors"
)

type fakeOracle struct {
	prices map[string]string
}

func (f *fakeOracle) USDPrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	price, ok := f.prices[symbol]
	if !ok {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeDependency, "price unavailable")
	}
	return decimal.RequireFromString(price), nil
}

func testWallets() config.CryptoConfig {
	return config.CryptoConfig{
		BTCAddress: "bc1-test-wallet",
		ETHAddress: "0x-test-wallet",
	}
}

func TestQuoteConvertsAtOraclePrice(t *testing.T) {
	oracle := &fakeOracle{prices: map[string]string{"BTC": "50000"}}
	quoter, err := NewCryptoQuoter(oracle, testWallets())
	require.NoError(t, err)

	quote, err := quoter.Quote(context.Background(), "btc", decimal.RequireFromString("25.00"))
	require.NoError(t, err)
	assert.Equal(t, "BTC", quote.Coin)
	assert.Equal(t, "bc1-test-wallet", quote.Address)
	assert.True(t, quote.Amount.Equal(decimal.RequireFromString("0.0005")))
	assert.True(t, quote.TotalUSD.Equal(decimal.RequireFromString("25.00")))
}

func TestQuoteRejectsUnsupportedCoin(t *testing.T) {
	quoter, err := NewCryptoQuoter(&fakeOracle{}, testWallets())
	require.NoError(t, err)

	_, err = quoter.Quote(context.Background(), "DOGE", decimal.RequireFromString("5.00"))
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestQuoteRequiresConfiguredWallet(t *testing.T) {
	oracle := &fakeOracle{prices: map[string]string{"LTC": "80"}}
	quoter, err := NewCryptoQuoter(oracle, testWallets())
	require.NoError(t, err)

	_, err = quoter.Quote(context.Background(), "LTC", decimal.RequireFromString("5.00"))
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
}
