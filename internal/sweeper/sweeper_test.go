package sweeper

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shehzadigill/gymcoachai-sub008/internal/domain"
	"github.com/shehzadigill/gymcoachai-sub008/internal/store"
)

type counter struct{ n atomic.Int64 }

func (c *counter) AddSwept(n int64) { c.n.Add(n) }

func seed(t *testing.T, s store.SessionStore, id string, stage domain.Stage, age time.Duration) {
	t.Helper()
	session := domain.NewConversationSession(id, "u1", time.Now().Add(-age))
	session.Stage = stage
	session.Version = 1
	if err := s.CreateSession(context.Background(), session); err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
}

func TestSweepRemovesOnlyAbandonedSessions(t *testing.T) {
	mem := store.NewMemory()
	seed(t, mem, "old-gathering", domain.StageGathering, 48*time.Hour)
	seed(t, mem, "old-preview", domain.StagePreview, 48*time.Hour)
	seed(t, mem, "old-complete", domain.StageComplete, 48*time.Hour)
	seed(t, mem, "old-cancelled", domain.StageCancelled, 48*time.Hour)
	seed(t, mem, "fresh", domain.StageGathering, time.Minute)

	c := &counter{}
	if got := Sweep(context.Background(), mem, 24*time.Hour, c); got != 2 {
		t.Fatalf("Sweep removed %d sessions, want 2", got)
	}
	if c.n.Load() != 2 {
		t.Errorf("counter = %d, want 2", c.n.Load())
	}

	for _, id := range []string{"old-gathering", "old-preview"} {
		if _, err := mem.GetSession(context.Background(), id); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("%s should be gone, got %v", id, err)
		}
	}
	for _, id := range []string{"old-complete", "old-cancelled", "fresh"} {
		if _, err := mem.GetSession(context.Background(), id); err != nil {
			t.Errorf("%s should survive: %v", id, err)
		}
	}
}

func TestSweepNothingToDo(t *testing.T) {
	mem := store.NewMemory()
	c := &counter{}
	if got := Sweep(context.Background(), mem, time.Hour, c); got != 0 {
		t.Fatalf("Sweep removed %d sessions, want 0", got)
	}
	if c.n.Load() != 0 {
		t.Errorf("counter should be untouched, got %d", c.n.Load())
	}
}

func TestStartStopsWithContext(t *testing.T) {
	mem := store.NewMemory()
	seed(t, mem, "old", domain.StageGathering, 48*time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := &counter{}
	Start(ctx, mem, 24*time.Hour, 10*time.Millisecond, c)

	deadline := time.Now().Add(2 * time.Second)
	for c.n.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if c.n.Load() != 1 {
		t.Fatalf("expected the background sweep to remove 1 session, got %d", c.n.Load())
	}
}
