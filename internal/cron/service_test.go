package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/blockmart/blockmart-backend/pkg/logger"
)

type fakeLock struct {
	acquired bool
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.acquired {
		return false, nil
	}
	f.acquired = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error { f.acquired = false; return nil }

type testJob struct {
	name     string
	interval time.Duration
	err      error
	runs     int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Interval() time.Duration { return t.interval }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func newTestService(t *testing.T, registry *Registry) *Service {
	t.Helper()
	service, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test"}),
		Registry: registry,
		Lock:     &fakeLock{},
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return service
}

func TestServiceRunCycleRunsAllJobsEvenOnFailure(t *testing.T) {
	success := &testJob{name: "success"}
	failure := &testJob{name: "fail", err: errors.New("boom")}
	service := newTestService(t, NewRegistry(success, failure))

	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if success.runs != 1 {
		t.Fatalf("expected success job to run once, ran %d", success.runs)
	}
	if failure.runs != 1 {
		t.Fatalf("expected failure job to run once, ran %d", failure.runs)
	}
}

func TestServiceSkipsJobsWhoseCadenceHasNotElapsed(t *testing.T) {
	fast := &testJob{name: "fast", interval: time.Minute}
	slow := &testJob{name: "slow", interval: time.Hour}
	service := newTestService(t, NewRegistry(fast, slow))

	clock := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return clock }

	// first cycle: everything is due
	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if fast.runs != 1 || slow.runs != 1 {
		t.Fatalf("expected both jobs to run once, got fast=%d slow=%d", fast.runs, slow.runs)
	}

	// one minute later only the fast job is due again
	clock = clock.Add(time.Minute)
	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if fast.runs != 2 {
		t.Fatalf("expected fast job to run twice, ran %d", fast.runs)
	}
	if slow.runs != 1 {
		t.Fatalf("expected slow job to still have run once, ran %d", slow.runs)
	}

	// past the slow cadence both run
	clock = clock.Add(time.Hour)
	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if fast.runs != 3 || slow.runs != 2 {
		t.Fatalf("expected fast=3 slow=2, got fast=%d slow=%d", fast.runs, slow.runs)
	}
}

func TestServiceSkipsCycleWhenLockHeld(t *testing.T) {
	job := &testJob{name: "only"}
	service := newTestService(t, NewRegistry(job))
	service.lock = &fakeLock{acquired: true}

	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("expected no runs while lock held, got %d", job.runs)
	}
}
