package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/blockmart/blockmart-backend/pkg/logger"
	"go.uber.org/multierr"
)

type terminalCartDeleter interface {
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type closedTicketPurger interface {
	PurgeClosedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionPurgeJobParams configure the retention sweep.
type RetentionPurgeJobParams struct {
	Logger   *logger.Logger
	Carts    terminalCartDeleter
	Tickets  closedTicketPurger
	Window   time.Duration
	Interval time.Duration
}

// NewRetentionPurgeJob builds the job that deletes settled carts and
// closed tickets older than the retention window.
func NewRetentionPurgeJob(params RetentionPurgeJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Tickets == nil {
		return nil, fmt.Errorf("ticket service required")
	}
	window := params.Window
	if window <= 0 {
		window = 168 * time.Hour
	}
	interval := params.Interval
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &retentionPurgeJob{
		logg:     params.Logger,
		carts:    params.Carts,
		tickets:  params.Tickets,
		window:   window,
		interval: interval,
		now:      time.Now,
	}, nil
}

type retentionPurgeJob struct {
	logg     *logger.Logger
	carts    terminalCartDeleter
	tickets  closedTicketPurger
	window   time.Duration
	interval time.Duration
	now      func() time.Time
}

func (j *retentionPurgeJob) Name() string { return "retention-purge" }

func (j *retentionPurgeJob) Interval() time.Duration { return j.interval }

func (j *retentionPurgeJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.window)
	var errs []error

	carts, err := j.carts.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		errs = append(errs, fmt.Errorf("purge settled carts: %w", err))
	}
	tickets, err := j.tickets.PurgeClosedBefore(ctx, cutoff)
	if err != nil {
		errs = append(errs, fmt.Errorf("purge closed tickets: %w", err))
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"carts":   carts,
		"tickets": tickets,
	})
	j.logg.Info(logCtx, "retention purge sweep complete")
	return multierr.Combine(errs...)
}
