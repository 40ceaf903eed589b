package cron

import (
	"context"
	"fmt"
	"time"
)

type giveawayRotator interface {
	Rotate(ctx context.Context) error
}

// GiveawayRotationJobParams configure the giveaway sweep.
type GiveawayRotationJobParams struct {
	Giveaways giveawayRotator
	Interval  time.Duration
}

// NewGiveawayRotationJob builds the job that settles expired drawings
// and opens a fresh one.
func NewGiveawayRotationJob(params GiveawayRotationJobParams) (Job, error) {
	if params.Giveaways == nil {
		return nil, fmt.Errorf("giveaway service required")
	}
	interval := params.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	return &giveawayRotationJob{
		giveaways: params.Giveaways,
		interval:  interval,
	}, nil
}

type giveawayRotationJob struct {
	giveaways giveawayRotator
	interval  time.Duration
}

func (j *giveawayRotationJob) Name() string { return "giveaway-rotation" }

func (j *giveawayRotationJob) Interval() time.Duration { return j.interval }

func (j *giveawayRotationJob) Run(ctx context.Context) error {
	return j.giveaways.Rotate(ctx)
}
