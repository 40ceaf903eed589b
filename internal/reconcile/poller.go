package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/blockmart/blockmart-backend/internal/cron"
	"github.com/blockmart/blockmart-backend/internal/payment"
	"github.com/blockmart/blockmart-backend/pkg/db/models"
	"github.com/blockmart/blockmart-backend/pkg/logger"
	"github.com/blockmart/blockmart-backend/pkg/metrics"
)

const defaultInterval = 15 * time.Second

// Sweep outcome labels.
const (
	outcomeCompleted = "completed"
	outcomeCaptured  = "captured"
	outcomeCancelled = "cancelled"
	outcomePending   = "pending"
	outcomeError     = "error"
)

// pendingLister is the slice of the cart repository the poller needs.
type pendingLister interface {
	ListPendingHosted(ctx context.Context) ([]models.Cart, error)
}

// cartSettler is the slice of the cart service the poller needs.
type cartSettler interface {
	CompleteOrder(ctx context.Context, cartID uuid.UUID) (*models.Cart, error)
	CancelInvoice(ctx context.Context, userID, reason string) (*models.Cart, error)
}

// PollerParams configure the payment reconciliation poller.
type PollerParams struct {
	Logger    *logger.Logger
	Carts     pendingLister
	Settler   cartSettler
	Processor payment.Processor
	Lock      cron.Lock
	Metrics   *metrics.ReconcileMetrics
	Interval  time.Duration
}

// Poller walks every cart stuck in pending_payment and asks the live
// processor what actually happened. It is the safety net under the
// webhook and the redirect: any of the three may settle an order, and
// the status CAS in the cart service keeps them from colliding.
type Poller struct {
	logg      *logger.Logger
	carts     pendingLister
	settler   cartSettler
	processor payment.Processor
	lock      cron.Lock
	metrics   *metrics.ReconcileMetrics
	interval  time.Duration
}

// NewPoller builds a reconciliation poller.
func NewPoller(params PollerParams) (*Poller, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart lister required")
	}
	if params.Settler == nil {
		return nil, fmt.Errorf("cart settler required")
	}
	if params.Processor == nil {
		return nil, fmt.Errorf("payment processor required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Poller{
		logg:      params.Logger,
		carts:     params.Carts,
		settler:   params.Settler,
		processor: params.Processor,
		lock:      params.Lock,
		metrics:   params.Metrics,
		interval:  interval,
	}, nil
}

// Run polls until the context is canceled.
func (p *Poller) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	p.sweepCycle(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logg.Info(ctx, "payment poller context canceled")
			return ctx.Err()
		case <-ticker.C:
			p.sweepCycle(ctx)
		}
	}
}

func (p *Poller) sweepCycle(ctx context.Context) {
	locked, err := p.lock.Acquire(ctx)
	if err != nil {
		p.logg.Error(ctx, "poller lock acquire failed", err)
		return
	}
	if !locked {
		return
	}
	defer func() {
		if relErr := p.lock.Release(ctx); relErr != nil {
			p.logg.Error(ctx, "failed to release poller lock", relErr)
		}
	}()

	start := time.Now()
	if err := p.Sweep(ctx); err != nil {
		p.logg.Error(ctx, "payment sweep failed", err)
	}
	p.metrics.ObserveSweep(time.Since(start))
}

// Sweep runs one reconciliation pass over every pending hosted cart.
func (p *Poller) Sweep(ctx context.Context) error {
	pending, err := p.carts.ListPendingHosted(ctx)
	if err != nil {
		return fmt.Errorf("list pending carts: %w", err)
	}

	for i := range pending {
		outcome := p.reconcile(ctx, &pending[i])
		p.metrics.IncOutcome(outcome)
	}
	return nil
}

func (p *Poller) reconcile(ctx context.Context, cart *models.Cart) string {
	cartCtx := p.logg.WithCartID(ctx, cart.ID.String())
	if cart.PaymentRef == nil {
		return outcomePending
	}

	order, err := p.processor.GetOrder(cartCtx, *cart.PaymentRef)
	if err != nil {
		p.logg.Error(cartCtx, "order poll failed", err)
		return outcomeError
	}

	switch order.State {
	case payment.OrderStateCompleted:
		if _, err := p.settler.CompleteOrder(cartCtx, cart.ID); err != nil {
			p.logg.Error(cartCtx, "order completion failed", err)
			return outcomeError
		}
		p.logg.Info(cartCtx, "order settled by poller")
		return outcomeCompleted

	case payment.OrderStateApproved:
		captured, err := p.processor.Capture(cartCtx, *cart.PaymentRef)
		if err != nil {
			p.logg.Error(cartCtx, "order capture failed", err)
			return p.cancelInvoice(cartCtx, cart, "payment capture failed")
		}
		if captured == nil || captured.State != payment.OrderStateCompleted {
			p.logg.Warn(cartCtx, "capture did not complete the order")
			return p.cancelInvoice(cartCtx, cart, "payment capture failed")
		}
		if _, err := p.settler.CompleteOrder(cartCtx, cart.ID); err != nil {
			p.logg.Error(cartCtx, "order completion failed", err)
			return outcomeError
		}
		p.logg.Info(cartCtx, "order captured and settled by poller")
		return outcomeCaptured

	case payment.OrderStateFailed:
		return p.cancelInvoice(cartCtx, cart, "payment failed at processor")

	default:
		return outcomePending
	}
}

// cancelInvoice voids the attempt and returns the cart to active so the
// buyer can retry with a fresh checkout.
func (p *Poller) cancelInvoice(ctx context.Context, cart *models.Cart, reason string) string {
	if _, err := p.settler.CancelInvoice(ctx, cart.UserID, reason); err != nil {
		p.logg.Error(ctx, "invoice cancel failed", err)
		return outcomeError
	}
	p.logg.Info(ctx, "dead invoice cancelled by poller")
	return outcomeCancelled
}
