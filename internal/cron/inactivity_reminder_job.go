package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/blockmart/blockmart-backend/internal/platform"
	"github.com/blockmart/blockmart-backend/pkg/db/models"
	"github.com/blockmart/blockmart-backend/pkg/logger"
	"github.com/google/uuid"
)

const inactivityReminderBody = "Your cart is still open. Reply here to keep shopping or it may be cleared later."

type inactiveCartLister interface {
	ListInactiveOpenSince(ctx context.Context, cutoff time.Time) ([]models.Cart, error)
	Touch(ctx context.Context, id uuid.UUID, at time.Time) error
}

type reminderMessenger interface {
	SendMessage(ctx context.Context, channelID, body string) (platform.Message, error)
}

// InactivityReminderJobParams configure the stale-cart nudge sweep.
type InactivityReminderJobParams struct {
	Logger    *logger.Logger
	Carts     inactiveCartLister
	Gateway   reminderMessenger
	Threshold time.Duration
	Interval  time.Duration
}

// NewInactivityReminderJob builds the job that pings owners of open
// carts idle past the threshold. Sending a reminder counts as activity,
// so a cart is nudged at most once per threshold window.
func NewInactivityReminderJob(params InactivityReminderJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("platform gateway required")
	}
	threshold := params.Threshold
	if threshold <= 0 {
		threshold = 48 * time.Hour
	}
	interval := params.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	return &inactivityReminderJob{
		logg:      params.Logger,
		carts:     params.Carts,
		gateway:   params.Gateway,
		threshold: threshold,
		interval:  interval,
		now:       time.Now,
	}, nil
}

type inactivityReminderJob struct {
	logg      *logger.Logger
	carts     inactiveCartLister
	gateway   reminderMessenger
	threshold time.Duration
	interval  time.Duration
	now       func() time.Time
}

func (j *inactivityReminderJob) Name() string { return "inactivity-reminder" }

func (j *inactivityReminderJob) Interval() time.Duration { return j.interval }

func (j *inactivityReminderJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	cutoff := now.Add(-j.threshold)
	stale, err := j.carts.ListInactiveOpenSince(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("list inactive carts: %w", err)
	}
	reminded := 0
	for _, cart := range stale {
		if cart.ChannelID == nil {
			continue
		}
		if _, err := j.gateway.SendMessage(ctx, *cart.ChannelID, inactivityReminderBody); err != nil {
			logCtx := j.logg.WithCartID(ctx, cart.ID.String())
			j.logg.Error(logCtx, "failed to send inactivity reminder", err)
			continue
		}
		if err := j.carts.Touch(ctx, cart.ID, now); err != nil {
			return fmt.Errorf("touch cart after reminder: %w", err)
		}
		reminded++
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"count": reminded})
	j.logg.Info(logCtx, "inactivity reminder sweep complete")
	return nil
}
