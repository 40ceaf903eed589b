package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/blockmart/blockmart-backend/pkg/coingecko"
	"github.com/blockmart/blockmart-backend/pkg/config"
	pkgerrors "github.com/blockmart/blockmart-backend/pkg/errors"
)

// coinAmountPlaces is how far crypto amounts are carried; one satoshi
// of precision covers every supported coin.
const coinAmountPlaces = 8

// priceOracle is the slice of the CoinGecko client the quoter needs.
type priceOracle interface {
	USDPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// CryptoQuote tells a buyer exactly what to send and where.
type CryptoQuote struct {
	Coin     string          `json:"coin"`
	Address  string          `json:"address"`
	Amount   decimal.Decimal `json:"amount"`
	PriceUSD decimal.Decimal `json:"price_usd"`
	TotalUSD decimal.Decimal `json:"total_usd"`
}

// CryptoQuoter converts a USD total into a coin amount at the current
// oracle price.
type CryptoQuoter struct {
	oracle  priceOracle
	wallets config.CryptoConfig
}

// NewCryptoQuoter wires the quoter.
func NewCryptoQuoter(oracle priceOracle, wallets config.CryptoConfig) (*CryptoQuoter, error) {
	if oracle == nil {
		return nil, fmt.Errorf("price oracle required")
	}
	return &CryptoQuoter{oracle: oracle, wallets: wallets}, nil
}

// Quote prices the USD total in the requested coin. The amount is a
// point-in-time quote; manual verification settles the actual payment.
func (q *CryptoQuoter) Quote(ctx context.Context, coin string, totalUSD decimal.Decimal) (*CryptoQuote, error) {
	symbol := strings.ToUpper(strings.TrimSpace(coin))
	if !coingecko.SupportedCoin(symbol) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported coin")
	}
	if !totalUSD.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "total must be positive")
	}

	address := q.wallets.WalletAddress(symbol)
	if address == "" {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "no wallet configured for this coin")
	}

	price, err := q.oracle.USDPrice(ctx, symbol)
	if err != nil {
		return nil, err
	}

	amount := totalUSD.DivRound(price, coinAmountPlaces)
	return &CryptoQuote{
		Coin:     symbol,
		Address:  address,
		Amount:   amount,
		PriceUSD: price,
		TotalUSD: totalUSD,
	}, nil
}
