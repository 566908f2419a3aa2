package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shehzadigill/gymcoachai-sub008/internal/domain"
)

func newSQLiteForTest(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sessionStores(t *testing.T) map[string]SessionStore {
	return map[string]SessionStore{
		"memory": NewMemory(),
		"sqlite": newSQLiteForTest(t),
	}
}

func newSession(id string) *domain.ConversationSession {
	now := time.Now()
	s := domain.NewConversationSession(id, "user-1", now)
	s.Stage = domain.StageGathering
	s.Version = 1
	s.AppendTurn(domain.RoleUser, "Build muscle", nil, now)
	return s
}

func TestSessionStoreCreateAndGet(t *testing.T) {
	for name, st := range sessionStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := st.CreateSession(ctx, newSession("conv-1")); err != nil {
				t.Fatalf("CreateSession failed: %v", err)
			}

			got, err := st.GetSession(ctx, "conv-1")
			if err != nil {
				t.Fatalf("GetSession failed: %v", err)
			}
			if got.Version != 1 || got.Stage != domain.StageGathering {
				t.Fatalf("unexpected session: version=%d stage=%s", got.Version, got.Stage)
			}
			if len(got.Turns) != 1 || got.Turns[0].Content != "Build muscle" {
				t.Fatalf("unexpected turns: %+v", got.Turns)
			}

			if err := st.CreateSession(ctx, newSession("conv-1")); !errors.Is(err, ErrVersionConflict) {
				t.Fatalf("expected ErrVersionConflict on duplicate create, got %v", err)
			}
		})
	}
}

func TestSessionStoreGetMissing(t *testing.T) {
	for name, st := range sessionStores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := st.GetSession(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestSessionStoreCompareAndSwap(t *testing.T) {
	for name, st := range sessionStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := st.CreateSession(ctx, newSession("conv-cas")); err != nil {
				t.Fatalf("CreateSession failed: %v", err)
			}

			first, _ := st.GetSession(ctx, "conv-cas")
			second, _ := st.GetSession(ctx, "conv-cas")

			first.Stage = domain.StagePreview
			first.Version = 2
			if err := st.UpdateSession(ctx, first, 1); err != nil {
				t.Fatalf("first update failed: %v", err)
			}

			second.Stage = domain.StageCancelled
			second.Version = 2
			if err := st.UpdateSession(ctx, second, 1); !errors.Is(err, ErrVersionConflict) {
				t.Fatalf("expected ErrVersionConflict for stale writer, got %v", err)
			}

			got, _ := st.GetSession(ctx, "conv-cas")
			if got.Stage != domain.StagePreview || got.Version != 2 {
				t.Fatalf("stale write leaked: stage=%s version=%d", got.Stage, got.Version)
			}
		})
	}
}

func TestSessionStoreRejectsVersionSkip(t *testing.T) {
	for name, st := range sessionStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newSession("conv-skip")
			if err := st.CreateSession(ctx, s); err != nil {
				t.Fatalf("CreateSession failed: %v", err)
			}
			s.Version = 5
			if err := st.UpdateSession(ctx, s, 1); err == nil {
				t.Fatal("expected error when version does not advance by one")
			}
		})
	}
}

func TestSessionStoreUpdateMissing(t *testing.T) {
	for name, st := range sessionStores(t) {
		t.Run(name, func(t *testing.T) {
			s := newSession("ghost")
			s.Version = 2
			if err := st.UpdateSession(context.Background(), s, 1); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestSessionStoreConcurrentWritersOneWins(t *testing.T) {
	for name, st := range sessionStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := st.CreateSession(ctx, newSession("conv-race")); err != nil {
				t.Fatalf("CreateSession failed: %v", err)
			}

			const writers = 8
			var wg sync.WaitGroup
			var mu sync.Mutex
			wins := 0
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					s, err := st.GetSession(ctx, "conv-race")
					if err != nil {
						return
					}
					next := s.Clone()
					next.Version = 2
					if err := st.UpdateSession(ctx, next, 1); err == nil {
						mu.Lock()
						wins++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()

			if wins != 1 {
				t.Fatalf("expected exactly one winning writer, got %d", wins)
			}
		})
	}
}

func TestSessionStoreDeleteStale(t *testing.T) {
	for name, st := range sessionStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			old := time.Now().Add(-2 * time.Hour)

			stale := newSession("stale")
			stale.UpdatedAt = old
			done := newSession("done")
			done.Stage = domain.StageComplete
			done.UpdatedAt = old
			fresh := newSession("fresh")

			for _, s := range []*domain.ConversationSession{stale, done, fresh} {
				if err := st.CreateSession(ctx, s); err != nil {
					t.Fatalf("CreateSession(%s) failed: %v", s.ID, err)
				}
			}

			deleted, err := st.DeleteStaleSessions(ctx, time.Hour)
			if err != nil {
				t.Fatalf("DeleteStaleSessions failed: %v", err)
			}
			if deleted != 1 {
				t.Fatalf("expected 1 deleted session, got %d", deleted)
			}
			if _, err := st.GetSession(ctx, "stale"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected stale session to be gone, got %v", err)
			}
			if _, err := st.GetSession(ctx, "done"); err != nil {
				t.Fatalf("terminal session should survive sweep: %v", err)
			}
		})
	}
}

func planRepositories(t *testing.T) map[string]PlanRepository {
	return map[string]PlanRepository{
		"memory": NewMemory(),
		"sqlite": newSQLiteForTest(t),
	}
}

func TestSavePlanIsIdempotent(t *testing.T) {
	for name, repo := range planRepositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			draft := &domain.PlanDraft{Name: "Strength", DurationWeeks: 4, FrequencyPerWeek: 3}

			first, err := repo.SavePlan(ctx, "conv-plan", "user-1", draft)
			if err != nil {
				t.Fatalf("SavePlan failed: %v", err)
			}
			if first == "" {
				t.Fatal("expected non-empty plan id")
			}

			draft.Name = "Changed"
			second, err := repo.SavePlan(ctx, "conv-plan", "user-1", draft)
			if err != nil {
				t.Fatalf("second SavePlan failed: %v", err)
			}
			if second != first {
				t.Fatalf("expected same plan id, got %q and %q", first, second)
			}

			plan, err := repo.GetPlan(ctx, first)
			if err != nil {
				t.Fatalf("GetPlan failed: %v", err)
			}
			if plan.Draft.Name != "Strength" {
				t.Fatalf("expected first draft to be kept, got %q", plan.Draft.Name)
			}
			if plan.ConversationID != "conv-plan" || plan.UserID != "user-1" {
				t.Fatalf("unexpected plan ownership: %+v", plan)
			}
		})
	}
}

func TestGetPlanMissing(t *testing.T) {
	for name, repo := range planRepositories(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := repo.GetPlan(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}
