package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shehzadigill/gymcoachai-sub008/internal/domain"
)

// MemoryStore is a process-local SessionStore and PlanRepository with the
// same semantics as the durable backends. Values are copied on the way in
// and out.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*domain.ConversationSession
	plans    map[string]*domain.Plan
	// planByConversation is the idempotency index for SavePlan.
	planByConversation map[string]string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		sessions:           make(map[string]*domain.ConversationSession),
		plans:              make(map[string]*domain.Plan),
		planByConversation: make(map[string]string),
	}
}

// GetSession retrieves a session by conversation ID.
func (m *MemoryStore) GetSession(_ context.Context, id string) (*domain.ConversationSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

// CreateSession stores a new session at version 1.
func (m *MemoryStore) CreateSession(_ context.Context, session *domain.ConversationSession) error {
	if err := checkNextVersion(session, 0); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[session.ID]; exists {
		return ErrVersionConflict
	}
	m.sessions[session.ID] = session.Clone()
	return nil
}

// UpdateSession replaces a session if its stored version equals expectedVersion.
func (m *MemoryStore) UpdateSession(_ context.Context, session *domain.ConversationSession, expectedVersion int64) error {
	if err := checkNextVersion(session, expectedVersion); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.sessions[session.ID]
	if !ok {
		return ErrNotFound
	}
	if current.Version != expectedVersion {
		return ErrVersionConflict
	}
	m.sessions[session.ID] = session.Clone()
	return nil
}

// DeleteStaleSessions removes abandoned non-terminal sessions.
func (m *MemoryStore) DeleteStaleSessions(_ context.Context, olderThan time.Duration) (int64, error) {
	threshold := time.Now().Add(-olderThan)
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for id, s := range m.sessions {
		if s.Stage.IsTerminal() {
			continue
		}
		if s.UpdatedAt.Before(threshold) {
			delete(m.sessions, id)
			deleted++
		}
	}
	return deleted, nil
}

// Ping always succeeds.
func (m *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

// SavePlan stores an approved draft, once per conversation.
func (m *MemoryStore) SavePlan(_ context.Context, conversationID, userID string, draft *domain.PlanDraft) (string, error) {
	if conversationID == "" {
		return "", errors.New("conversation id is required")
	}
	if draft == nil {
		return "", errors.New("draft is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.planByConversation[conversationID]; ok {
		return id, nil
	}
	plan := &domain.Plan{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		UserID:         userID,
		Draft:          draft.Clone(),
		CreatedAt:      time.Now(),
	}
	m.plans[plan.ID] = plan
	m.planByConversation[conversationID] = plan.ID
	return plan.ID, nil
}

// GetPlan retrieves a persisted plan by ID.
func (m *MemoryStore) GetPlan(_ context.Context, planID string) (*domain.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	plan, ok := m.plans[planID]
	if !ok {
		return nil, ErrNotFound
	}
	c := *plan
	c.Draft = plan.Draft.Clone()
	return &c, nil
}

var (
	_ SessionStore   = (*MemoryStore)(nil)
	_ PlanRepository = (*MemoryStore)(nil)
)
