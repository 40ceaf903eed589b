package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/blockmart/blockmart-backend/pkg/config"
	pkgerrors "github.com/blockmart/blockmart-backend/pkg/errors"
	"github.com/blockmart/blockmart-backend/pkg/logger"
)

const (
	sandboxBaseURL = "https://api-m.sandbox.paypal.com"
	liveBaseURL    = "https://api-m.paypal.com"

	// Tokens are refreshed this long before PayPal's stated expiry so a
	// request never rides on a token about to lapse.
	tokenRefreshSlack = 300 * time.Second

	responseBodyReadLimit int64 = 1 << 16
)

// Order statuses returned by the v2 checkout API.
const (
	OrderStatusCreated   = "CREATED"
	OrderStatusSaved     = "SAVED"
	OrderStatusApproved  = "APPROVED"
	OrderStatusVoided    = "VOIDED"
	OrderStatusCompleted = "COMPLETED"
)

var (
	errCredentialsRequired = errors.New("paypal client id and secret are required")
	errLoggerRequired      = errors.New("paypal logger is required")
)

// Client wraps the PayPal v2 checkout REST API with token caching,
// logging, and error mapping.
type Client struct {
	httpClient *http.Client
	baseURL    string
	clientID   string
	secret     string
	brandName  string
	logger     *logger.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
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

// WithBaseURL overrides the environment-derived API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = strings.TrimSuffix(trimmed, "/")
		}
	}
}

// NewClient builds the PayPal client from configuration.
func NewClient(cfg config.PayPalConfig, logg *logger.Logger, opts ...Option) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	clientID := strings.TrimSpace(cfg.ClientID)
	secret := strings.TrimSpace(cfg.Secret)
	if clientID == "" || secret == "" {
		return nil, errCredentialsRequired
	}

	baseURL := sandboxBaseURL
	if cfg.Environment() == "live" {
		baseURL = liveBaseURL
	}

	client := &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    baseURL,
		clientID:   clientID,
		secret:     secret,
		brandName:  strings.TrimSpace(cfg.BrandName),
		logger:     logg,
	}

	if cfg.BaseURL != "" {
		WithBaseURL(cfg.BaseURL)(client)
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// CreateOrderParams describes one hosted checkout order.
type CreateOrderParams struct {
	ReferenceID string
	AmountUSD   string
	Description string
	ReturnURL   string
	CancelURL   string
}

// Order is the normalized slice of PayPal's order payload the shop
// cares about.
type Order struct {
	ID          string
	Status      string
	ApprovalURL string
}

// CreateOrder opens a v2 checkout order and returns its approval link.
func (c *Client) CreateOrder(ctx context.Context, params CreateOrderParams) (*Order, error) {
	if strings.TrimSpace(params.AmountUSD) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order amount is required")
	}

	payload := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"custom_id":   params.ReferenceID,
			"description": params.Description,
			"amount": map[string]string{
				"currency_code": "USD",
				"value":         params.AmountUSD,
			},
		}},
		"application_context": map[string]string{
			"brand_name":          c.brandName,
			"shipping_preference": "NO_SHIPPING",
			"user_action":         "PAY_NOW",
			"return_url":          params.ReturnURL,
			"cancel_url":          params.CancelURL,
		},
	}

	c.log(ctx, "request", "create_order", map[string]any{
		"reference": params.ReferenceID,
		"amount":    params.AmountUSD,
	})

	var resp orderResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v2/checkout/orders", payload, &resp); err != nil {
		c.log(ctx, "error", "create_order", map[string]any{"error": err.Error()})
		return nil, err
	}

	order := resp.toOrder()
	c.log(ctx, "response", "create_order", map[string]any{
		"order_id": order.ID,
		"status":   order.Status,
	})
	return order, nil
}

// GetOrder fetches the current status of an order.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	c.log(ctx, "request", "get_order", map[string]any{"order_id": orderID})

	var resp orderResponse
	path := "/v2/checkout/orders/" + url.PathEscape(orderID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		c.log(ctx, "error", "get_order", map[string]any{"error": err.Error()})
		return nil, err
	}

	order := resp.toOrder()
	c.log(ctx, "response", "get_order", map[string]any{
		"order_id": order.ID,
		"status":   order.Status,
	})
	return order, nil
}

// CaptureOrder captures an approved order. The returned status is
// COMPLETED once funds are secured.
func (c *Client) CaptureOrder(ctx context.Context, orderID string) (*Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	c.log(ctx, "request", "capture_order", map[string]any{"order_id": orderID})

	var resp orderResponse
	path := "/v2/checkout/orders/" + url.PathEscape(orderID) + "/capture"
	if err := c.doJSON(ctx, http.MethodPost, path, map[string]any{}, &resp); err != nil {
		c.log(ctx, "error", "capture_order", map[string]any{"error": err.Error()})
		return nil, err
	}

	order := resp.toOrder()
	c.log(ctx, "response", "capture_order", map[string]any{
		"order_id": order.ID,
		"status":   order.Status,
	})
	return order, nil
}

type orderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []struct {
		Href string `json:"href"`
		Rel  string `json:"rel"`
	} `json:"links"`
}

func (r orderResponse) toOrder() *Order {
	order := &Order{ID: r.ID, Status: r.Status}
	for _, link := range r.Links {
		if link.Rel == "approve" || link.Rel == "payer-action" {
			order.ApprovalURL = link.Href
			break
		}
	}
	return order
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload any, out any) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal paypal request")
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build paypal request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute paypal request")
	}
	defer func() { _ = resp.Body.Close() }()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return mapStatusError(resp.StatusCode, raw)
	}

	if out != nil && len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode paypal response")
		}
	}
	return nil
}

// token returns a cached OAuth token, minting a fresh one when the
// cached token is missing or inside the refresh slack window.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry.Add(-tokenRefreshSlack)) {
		return c.accessToken, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build paypal token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.clientID, c.secret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute paypal token request")
	}
	defer func() { _ = resp.Body.Close() }()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	if resp.StatusCode != http.StatusOK {
		return "", mapStatusError(resp.StatusCode, raw)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(raw, &tokenResp); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode paypal token response")
	}
	if tokenResp.AccessToken == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "paypal returned an empty access token")
	}

	c.accessToken = tokenResp.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	return c.accessToken, nil
}

func mapStatusError(status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	err := fmt.Errorf("status %d: %s", status, msg)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "paypal rejected credentials")
	case status == http.StatusNotFound:
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "paypal resource not found")
	case status == http.StatusUnprocessableEntity:
		return pkgerrors.Wrap(pkgerrors.CodePayment, err, "paypal refused the order")
	case status >= 400 && status < 500:
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "paypal rejected the request")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "paypal request failed")
	}
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
		logFields[k] = v
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("paypal %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("paypal %s", phase))
	}
}
