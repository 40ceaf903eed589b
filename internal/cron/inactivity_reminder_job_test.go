package cron

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/blockmart/blockmart-backend/internal/platform"
	"github.com/blockmart/blockmart-backend/pkg/db/models"
	"github.com/blockmart/blockmart-backend/pkg/logger"
)

type fakeInactiveCarts struct {
	cutoffSeen time.Time
	carts      []models.Cart
	touched    []uuid.UUID
}

func (f *fakeInactiveCarts) ListInactiveOpenSince(_ context.Context, cutoff time.Time) ([]models.Cart, error) {
	f.cutoffSeen = cutoff
	return f.carts, nil
}

func (f *fakeInactiveCarts) Touch(_ context.Context, id uuid.UUID, _ time.Time) error {
	f.touched = append(f.touched, id)
	return nil
}

type fakeMessenger struct {
	sent        map[string]string
	failChannel string
}

func (f *fakeMessenger) SendMessage(_ context.Context, channelID, body string) (platform.Message, error) {
	if channelID == f.failChannel {
		return platform.Message{}, fmt.Errorf("channel gone")
	}
	if f.sent == nil {
		f.sent = make(map[string]string)
	}
	f.sent[channelID] = body
	return platform.Message{ID: "msg-" + channelID, ChannelID: channelID}, nil
}

func newReminderJob(t *testing.T, carts *fakeInactiveCarts, gateway *fakeMessenger) *inactivityReminderJob {
	t.Helper()
	jobIface, err := NewInactivityReminderJob(InactivityReminderJobParams{
		Logger:    logger.New(logger.Options{ServiceName: "cron-test"}),
		Carts:     carts,
		Gateway:   gateway,
		Threshold: 48 * time.Hour,
	})
	if err != nil {
		t.Fatalf("NewInactivityReminderJob: %v", err)
	}
	job, ok := jobIface.(*inactivityReminderJob)
	if !ok {
		t.Fatalf("expected inactivityReminderJob, got %T", jobIface)
	}
	return job
}

func strPtr(s string) *string { return &s }

func TestInactivityReminderNudgesStaleCarts(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	stale := models.Cart{ID: uuid.New(), UserID: "buyer-1", ChannelID: strPtr("chan-1")}
	orphan := models.Cart{ID: uuid.New(), UserID: "buyer-2"}
	carts := &fakeInactiveCarts{carts: []models.Cart{stale, orphan}}
	gateway := &fakeMessenger{}

	job := newReminderJob(t, carts, gateway)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got, want := carts.cutoffSeen, now.Add(-48*time.Hour); !got.Equal(want) {
		t.Fatalf("unexpected cutoff: got %s want %s", got, want)
	}
	if _, ok := gateway.sent["chan-1"]; !ok {
		t.Fatal("expected reminder in cart channel")
	}
	if len(gateway.sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(gateway.sent))
	}
	if len(carts.touched) != 1 || carts.touched[0] != stale.ID {
		t.Fatalf("expected only the reminded cart to be touched, got %v", carts.touched)
	}
}

func TestInactivityReminderContinuesPastSendFailure(t *testing.T) {
	broken := models.Cart{ID: uuid.New(), UserID: "buyer-1", ChannelID: strPtr("chan-broken")}
	healthy := models.Cart{ID: uuid.New(), UserID: "buyer-2", ChannelID: strPtr("chan-ok")}
	carts := &fakeInactiveCarts{carts: []models.Cart{broken, healthy}}
	gateway := &fakeMessenger{failChannel: "chan-broken"}

	job := newReminderJob(t, carts, gateway)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, ok := gateway.sent["chan-ok"]; !ok {
		t.Fatal("expected healthy cart to still get its reminder")
	}
	if len(carts.touched) != 1 || carts.touched[0] != healthy.ID {
		t.Fatalf("expected only the healthy cart to be touched, got %v", carts.touched)
	}
}
