// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shehzadigill/gymcoachai-sub008/internal/domain"
)

var (
	// ErrNotFound is returned when a session or plan does not exist.
	ErrNotFound = errors.New("not found")
	// ErrVersionConflict is returned when a compare-and-swap write loses.
	ErrVersionConflict = errors.New("version conflict")
)

// SessionStore persists conversation sessions with optimistic versioning.
type SessionStore interface {
	// GetSession retrieves a session by conversation ID.
	GetSession(ctx context.Context, id string) (*domain.ConversationSession, error)

	// CreateSession stores a new session. The session must carry version 1.
	// Returns ErrVersionConflict if the ID is already taken.
	CreateSession(ctx context.Context, session *domain.ConversationSession) error

	// UpdateSession replaces a session only if the stored version equals
	// expectedVersion. session.Version must be expectedVersion+1.
	UpdateSession(ctx context.Context, session *domain.ConversationSession, expectedVersion int64) error

	// DeleteStaleSessions removes non-terminal sessions not updated within olderThan.
	DeleteStaleSessions(ctx context.Context, olderThan time.Duration) (int64, error)

	// Ping verifies backend connectivity.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// PlanRepository durably stores approved plans.
type PlanRepository interface {
	// SavePlan stores the draft for a conversation and returns its plan ID.
	// Repeated calls with the same conversationID return the first plan ID.
	SavePlan(ctx context.Context, conversationID, userID string, draft *domain.PlanDraft) (string, error)

	// GetPlan retrieves a persisted plan by ID.
	GetPlan(ctx context.Context, planID string) (*domain.Plan, error)
}

func checkNextVersion(session *domain.ConversationSession, expectedVersion int64) error {
	if session.Version != expectedVersion+1 {
		return fmt.Errorf("session version %d must be %d", session.Version, expectedVersion+1)
	}
	return nil
}
