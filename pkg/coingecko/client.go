package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/blockmart/blockmart-backend/pkg/errors"
)

const (
	defaultBaseURL              = "https://api.coingecko.com/api/v3"
	responseBodyReadLimit int64 = 1 << 14
)

// coinIDs maps shop coin symbols to CoinGecko coin identifiers.
var coinIDs = map[string]string{
	"BTC": "bitcoin",
	"ETH": "ethereum",
	"LTC": "litecoin",
}

// Client queries CoinGecko's simple-price API for USD spot prices.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = strings.TrimSuffix(trimmed, "/")
		}
	}
}

// NewClient builds a CoinGecko client.
func NewClient(opts ...Option) *Client {
	client := &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    defaultBaseURL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client
}

// SupportedCoin reports whether the symbol has a CoinGecko mapping.
func SupportedCoin(symbol string) bool {
	_, ok := coinIDs[strings.ToUpper(strings.TrimSpace(symbol))]
	return ok
}

// USDPrice returns the current USD spot price for a coin symbol.
func (c *Client) USDPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	coinID, ok := coinIDs[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported coin %q", symbol))
	}

	query := url.Values{
		"ids":           {coinID},
		"vs_currencies": {"usd"},
		"precision":     {"full"},
	}
	endpoint := fmt.Sprintf("%s/simple/price?%s", c.baseURL, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build price request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute price request")
	}
	defer func() { _ = resp.Body.Close() }()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, pkgerrors.Wrap(
			pkgerrors.CodeDependency,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))),
			"price request failed",
		)
	}

	var payload map[string]map[string]json.Number
	if err := json.Unmarshal(raw, &payload); err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode price response")
	}

	quote, ok := payload[coinID]
	if !ok {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("no quote returned for %s", coinID))
	}
	usd, ok := quote["usd"]
	if !ok {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("no usd quote returned for %s", coinID))
	}

	price, err := decimal.NewFromString(usd.String())
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "parse usd quote")
	}
	if !price.IsPositive() {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("non-positive usd quote for %s", coinID))
	}
	return price, nil
}
