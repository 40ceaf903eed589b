package square

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	sqcheckout "github.com/square/square-go-sdk/checkout"
	sqclient "github.com/square/square-go-sdk/client"
	sqcore "github.com/square/square-go-sdk/core"
	sqoption "github.com/square/square-go-sdk/option"

	"github.com/blockmart/blockmart-backend/pkg/config"
	pkgerrors "github.com/blockmart/blockmart-backend/pkg/errors"
	"github.com/blockmart/blockmart-backend/pkg/logger"
)

const (
	sandboxEnv    = "sandbox"
	productionEnv = "production"
)

var (
	errAccessTokenRequired = errors.New("square access token is required")
	errLocationRequired    = errors.New("square location id is required")
	errInvalidSquareEnv    = fmt.Errorf("square environment must be %q or %q", sandboxEnv, productionEnv)
	errLoggerRequired      = errors.New("square logger is required")
)

var baseURLs = map[string]string{
	sandboxEnv:    "https://connect.squareupsandbox.com",
	productionEnv: "https://connect.squareup.com",
}

// Client exposes the Square payment-link primitives with centralized
// auth, logging, idempotency, and error mapping.
type Client struct {
	sdk         *sqclient.Client
	accessToken string
	environment string
	locationID  string
	baseURL     string
	logger      *logger.Logger
}

// NewClient initializes the Square wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.SquareConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	accessToken := strings.TrimSpace(cfg.AccessToken)
	if accessToken == "" {
		return nil, errAccessTokenRequired
	}

	locationID := strings.TrimSpace(cfg.LocationID)
	if locationID == "" {
		return nil, errLocationRequired
	}

	baseURL := baseURLs[env]
	sdk := sqclient.NewClient(
		sqoption.WithBaseURL(baseURL),
		sqoption.WithToken(accessToken),
	)

	c := &Client{
		sdk:         sdk,
		accessToken: accessToken,
		environment: env,
		locationID:  locationID,
		baseURL:     baseURL,
		logger:      logg,
	}

	logg.Info(ctx, "square client initialized")
	return c, nil
}

// Environment reports the normalized Square environment.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// LocationID returns the configured Square location.
func (c *Client) LocationID() string {
	if c == nil {
		return ""
	}
	return c.locationID
}

// NewIdempotencyKey returns a unique key for Square operations.
func (c *Client) NewIdempotencyKey(prefix string) string {
	key := strings.TrimSpace(prefix)
	if key == "" {
		key = "bm"
	}
	return fmt.Sprintf("%s-%s", key, uuid.NewString())
}

// CreatePaymentLink opens a hosted checkout page for the given amount
// and returns the link plus the backing order ID.
func (c *Client) CreatePaymentLink(ctx context.Context, params PaymentLinkCreateParams) (*sq.PaymentLink, error) {
	req := params.toSquareRequest(c.locationID, c.ensureIdempotencyKey("payment_link.create", params.IdempotencyKey))
	c.log(ctx, "request", "create_payment_link", map[string]any{
		"location_id": c.locationID,
		"amount":      params.AmountCents,
		"reference":   params.ReferenceID,
	})

	resp, err := c.sdk.Checkout.PaymentLinks.Create(ctx, req)
	if err != nil {
		c.log(ctx, "error", "create_payment_link", map[string]any{"error": err.Error()})
		return nil, c.mapSquareError(err, "create payment link")
	}

	link := resp.GetPaymentLink()
	c.log(ctx, "response", "create_payment_link", map[string]any{
		"payment_link_id": stringValue(link.GetID()),
		"order_id":        stringValue(link.GetOrderID()),
	})
	return link, nil
}

// GetOrder fetches the order backing a payment link.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*sq.Order, error) {
	req := &sq.GetOrdersRequest{OrderID: orderID}
	c.log(ctx, "request", "get_order", map[string]any{"order_id": orderID})

	resp, err := c.sdk.Orders.Get(ctx, req)
	if err != nil {
		c.log(ctx, "error", "get_order", map[string]any{"error": err.Error()})
		return nil, c.mapSquareError(err, "get order")
	}

	order := resp.GetOrder()
	c.log(ctx, "response", "get_order", map[string]any{
		"order_id": stringValue(order.GetID()),
		"state":    orderStateString(order.GetState()),
	})
	return order, nil
}

// DeletePaymentLink voids an outstanding link so the buyer cannot pay a
// cancelled invoice.
func (c *Client) DeletePaymentLink(ctx context.Context, paymentLinkID string) error {
	req := &sqcheckout.DeletePaymentLinksRequest{ID: paymentLinkID}
	c.log(ctx, "request", "delete_payment_link", map[string]any{"payment_link_id": paymentLinkID})

	if _, err := c.sdk.Checkout.PaymentLinks.Delete(ctx, req); err != nil {
		c.log(ctx, "error", "delete_payment_link", map[string]any{"error": err.Error()})
		return c.mapSquareError(err, "delete payment link")
	}

	c.log(ctx, "response", "delete_payment_link", map[string]any{"payment_link_id": paymentLinkID})
	return nil
}

func (c *Client) ensureIdempotencyKey(prefix, provided string) string {
	if strings.TrimSpace(provided) != "" {
		return provided
	}
	return c.NewIdempotencyKey(prefix)
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = c.redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("square %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("square %s", phase))
	}
}

func (c *Client) redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"card", "nonce", "token", "cvv", "cvc", "secret", "email", "phone"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}

func (c *Client) mapSquareError(err error, op string) error {
	if err == nil {
		return nil
	}
	var apiErr *sqcore.APIError
	if errors.As(err, &apiErr) {
		code := domainCodeForStatus(apiErr.StatusCode)
		for _, sqErr := range c.extractSquareErrors(apiErr) {
			if sqErr == nil {
				continue
			}
			if sqErr.Code == sq.ErrorCodeIdempotencyKeyReused {
				code = pkgerrors.CodeIdempotency
				break
			}
			if sqErr.Category == sq.ErrorCategoryAuthenticationError {
				code = pkgerrors.CodeUnauthorized
				break
			}
		}
		return pkgerrors.Wrap(code, err, fmt.Sprintf("square %s failed", op))
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("square %s failed", op))
}

func (c *Client) extractSquareErrors(apiErr *sqcore.APIError) []*sq.Error {
	if apiErr == nil {
		return nil
	}
	inner := apiErr.Unwrap()
	if inner == nil {
		return nil
	}
	raw := strings.TrimSpace(inner.Error())
	if raw == "" {
		return nil
	}
	var payload struct {
		Errors []*sq.Error `json:"errors"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil
	}
	return payload.Errors
}

func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case http.StatusForbidden:
		return pkgerrors.CodeForbidden
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusTooManyRequests:
		return pkgerrors.CodeRateLimit
	case http.StatusBadRequest:
		return pkgerrors.CodeValidation
	case http.StatusUnprocessableEntity:
		return pkgerrors.CodeStateConflict
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.CodeValidation
		}
		return pkgerrors.CodeDependency
	}
}

func stringValue(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func orderStateString(state *sq.OrderState) string {
	if state == nil {
		return ""
	}
	return string(*state)
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = sandboxEnv
	}
	switch env {
	case sandboxEnv, productionEnv:
		return env, nil
	default:
		return "", errInvalidSquareEnv
	}
}
