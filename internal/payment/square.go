package payment

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/square/square-go-sdk"

	"github.com/blockmart/blockmart-backend/pkg/enums"
	pkgerrors "github.com/blockmart/blockmart-backend/pkg/errors"
	"github.com/blockmart/blockmart-backend/pkg/square"
)

// squareAPI is the slice of the Square client the adapter needs.
type squareAPI interface {
	CreatePaymentLink(ctx context.Context, params square.PaymentLinkCreateParams) (*sq.PaymentLink, error)
	GetOrder(ctx context.Context, orderID string) (*sq.Order, error)
	DeletePaymentLink(ctx context.Context, paymentLinkID string) error
}

// SquareProcessor drives checkouts through Square hosted payment links.
type SquareProcessor struct {
	client squareAPI
}

// NewSquareProcessor wraps a Square client in the processor interface.
func NewSquareProcessor(client squareAPI) (*SquareProcessor, error) {
	if client == nil {
		return nil, fmt.Errorf("square client required")
	}
	return &SquareProcessor{client: client}, nil
}

func (s *SquareProcessor) Method() enums.PaymentMethod {
	return enums.PaymentMethodSquare
}

func (s *SquareProcessor) CreateCheckout(ctx context.Context, params CheckoutParams) (*Checkout, error) {
	link, err := s.client.CreatePaymentLink(ctx, square.PaymentLinkCreateParams{
		AmountCents: params.Amount.Mul(centsPerDollar).IntPart(),
		Currency:    "USD",
		Name:        params.Description,
		ReferenceID: params.ReferenceID,
		RedirectURL: params.ReturnURL,
	})
	if err != nil {
		return nil, err
	}

	orderID := stringValue(link.GetOrderID())
	linkID := stringValue(link.GetID())
	url := stringValue(link.GetURL())
	if orderID == "" || linkID == "" || url == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "square payment link response was incomplete")
	}
	return &Checkout{Ref: composeSquareRef(orderID, linkID), URL: url}, nil
}

func (s *SquareProcessor) GetOrder(ctx context.Context, ref string) (*Order, error) {
	orderID, _, err := splitSquareRef(ref)
	if err != nil {
		return nil, err
	}
	order, err := s.client.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &Order{Ref: ref, State: squareState(order.GetState())}, nil
}

// Capture verifies settlement. Square payment links capture on their
// own once the buyer pays, so this re-reads the order and expects it
// to have landed.
func (s *SquareProcessor) Capture(ctx context.Context, ref string) (*Order, error) {
	order, err := s.GetOrder(ctx, ref)
	if err != nil {
		return nil, err
	}
	if order.State != OrderStateCompleted {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "square order has not completed")
	}
	return order, nil
}

func (s *SquareProcessor) CancelCheckout(ctx context.Context, ref string) error {
	_, linkID, err := splitSquareRef(ref)
	if err != nil {
		return err
	}
	return s.client.DeletePaymentLink(ctx, linkID)
}

// The stored reference carries both halves Square hands back: the
// order ID for polling and the link ID for voiding.
func composeSquareRef(orderID, linkID string) string {
	return orderID + ":" + linkID
}

func splitSquareRef(ref string) (orderID, linkID string, err error) {
	parts := strings.SplitN(ref, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", pkgerrors.New(pkgerrors.CodeValidation, "malformed square payment reference")
	}
	return parts[0], parts[1], nil
}

func squareState(state *sq.OrderState) OrderState {
	if state == nil {
		return OrderStatePending
	}
	switch *state {
	case sq.OrderStateCompleted:
		return OrderStateCompleted
	case sq.OrderStateCanceled:
		return OrderStateFailed
	default:
		return OrderStatePending
	}
}

func stringValue(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
