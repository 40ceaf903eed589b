package square

import (
	"strings"

	sq "github.com/square/square-go-sdk"
	sqcheckout "github.com/square/square-go-sdk/checkout"
)

// PaymentLinkCreateParams contains the fields needed to open a hosted
// checkout page for one cart.
type PaymentLinkCreateParams struct {
	AmountCents    int64
	Currency       string
	Name           string
	ReferenceID    string
	RedirectURL    string
	PaymentNote    string
	IdempotencyKey string
}

func (p PaymentLinkCreateParams) toSquareRequest(locationID, idempotencyKey string) *sqcheckout.CreatePaymentLinkRequest {
	req := &sqcheckout.CreatePaymentLinkRequest{
		IdempotencyKey: ptrString(idempotencyKey),
		QuickPay: &sq.QuickPay{
			Name:       p.quickPayName(),
			LocationID: locationID,
			PriceMoney: moneyPtr(p.AmountCents, p.Currency),
		},
	}
	if trimmed := strings.TrimSpace(p.RedirectURL); trimmed != "" {
		req.CheckoutOptions = &sq.CheckoutOptions{RedirectURL: ptrString(trimmed)}
	}
	if trimmed := strings.TrimSpace(p.PaymentNote); trimmed != "" {
		req.PaymentNote = ptrString(trimmed)
	}
	return req
}

func (p PaymentLinkCreateParams) quickPayName() string {
	if trimmed := strings.TrimSpace(p.Name); trimmed != "" {
		return trimmed
	}
	return "Order"
}

func ptrString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

func int64Ptr(value int64) *int64 {
	return &value
}

func currencyPtr(code string) *sq.Currency {
	trimmed := strings.ToUpper(strings.TrimSpace(code))
	if trimmed == "" {
		trimmed = "USD"
	}
	c := sq.Currency(trimmed)
	return &c
}

func moneyPtr(amount int64, currency string) *sq.Money {
	if amount == 0 {
		return nil
	}
	return &sq.Money{
		Amount:   int64Ptr(amount),
		Currency: currencyPtr(currency),
	}
}
