package payment

import (
	"context"
	"fmt"

	"github.com/blockmart/blockmart-backend/pkg/enums"
	pkgerrors "github.com/blockmart/blockmart-backend/pkg/errors"
	"github.com/blockmart/blockmart-backend/pkg/paypal"
)

// paypalAPI is the slice of the PayPal client the adapter needs.
type paypalAPI interface {
	CreateOrder(ctx context.Context, params paypal.CreateOrderParams) (*paypal.Order, error)
	GetOrder(ctx context.Context, orderID string) (*paypal.Order, error)
	CaptureOrder(ctx context.Context, orderID string) (*paypal.Order, error)
}

// PayPalProcessor drives checkouts through PayPal's v2 order API.
type PayPalProcessor struct {
	client paypalAPI
}

// NewPayPalProcessor wraps a PayPal client in the processor interface.
func NewPayPalProcessor(client paypalAPI) (*PayPalProcessor, error) {
	if client == nil {
		return nil, fmt.Errorf("paypal client required")
	}
	return &PayPalProcessor{client: client}, nil
}

func (p *PayPalProcessor) Method() enums.PaymentMethod {
	return enums.PaymentMethodPayPal
}

func (p *PayPalProcessor) CreateCheckout(ctx context.Context, params CheckoutParams) (*Checkout, error) {
	order, err := p.client.CreateOrder(ctx, paypal.CreateOrderParams{
		ReferenceID: params.ReferenceID,
		AmountUSD:   params.Amount.StringFixed(2),
		Description: params.Description,
		ReturnURL:   params.ReturnURL,
		CancelURL:   params.CancelURL,
	})
	if err != nil {
		return nil, err
	}
	if order.ApprovalURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "paypal order carried no approval link")
	}
	return &Checkout{Ref: order.ID, URL: order.ApprovalURL}, nil
}

func (p *PayPalProcessor) GetOrder(ctx context.Context, ref string) (*Order, error) {
	order, err := p.client.GetOrder(ctx, ref)
	if err != nil {
		return nil, err
	}
	return &Order{Ref: order.ID, State: paypalState(order.Status)}, nil
}

// Capture settles an approved order. PayPal keeps funds pending until
// the merchant captures explicitly.
func (p *PayPalProcessor) Capture(ctx context.Context, ref string) (*Order, error) {
	order, err := p.client.CaptureOrder(ctx, ref)
	if err != nil {
		return nil, err
	}
	return &Order{Ref: order.ID, State: paypalState(order.Status)}, nil
}

// CancelCheckout is a no-op: unapproved PayPal orders expire on their
// own and cannot be voided through the order API.
func (p *PayPalProcessor) CancelCheckout(context.Context, string) error {
	return nil
}

func paypalState(status string) OrderState {
	switch status {
	case paypal.OrderStatusCompleted:
		return OrderStateCompleted
	case paypal.OrderStatusApproved:
		return OrderStateApproved
	case paypal.OrderStatusVoided:
		return OrderStateFailed
	default:
		return OrderStatePending
	}
}
