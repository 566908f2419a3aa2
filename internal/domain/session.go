// Package domain contains core domain types for the plan negotiation service.
package domain

import (
	"strings"
	"time"
)

// Stage is the discrete phase of a plan negotiation.
type Stage string

const (
	// StageInput is the initial stage before any session exists.
	StageInput Stage = "input"
	// StageGathering means the session exists but the draft is incomplete or absent.
	StageGathering Stage = "gathering"
	// StagePreview means the validator reports the draft approvable.
	StagePreview Stage = "preview"
	// StageSaving is the transient stage while approval is in flight.
	StageSaving Stage = "saving"
	// StageComplete is terminal: the plan has been persisted.
	StageComplete Stage = "complete"
	// StageCancelled is terminal: the session was ended locally.
	StageCancelled Stage = "cancelled"
)

// ParseStage normalizes a stage name. Unknown values report ok=false.
func ParseStage(raw string) (Stage, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "input":
		return StageInput, true
	case "gathering", "gathering_info", "clarify", "clarifying":
		return StageGathering, true
	case "preview", "ready", "review":
		return StagePreview, true
	case "saving":
		return StageSaving, true
	case "complete", "completed", "done":
		return StageComplete, true
	case "cancelled", "canceled":
		return StageCancelled, true
	default:
		return "", false
	}
}

// IsTerminal reports whether no further actions are legal in this stage.
func (s Stage) IsTerminal() bool {
	return s == StageComplete || s == StageCancelled
}

// Role identifies the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Reasoning is the oracle's rationale, kept apart from the user-facing message.
type Reasoning struct {
	Summary string   `json:"summary"`
	Steps   []string `json:"steps,omitempty"`
}

// Turn is a single conversational message. Turns are never edited after append.
type Turn struct {
	Role      Role       `json:"role"`
	Content   string     `json:"content"`
	Reasoning *Reasoning `json:"reasoning,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// ConversationSession is the durable unit of negotiation state.
type ConversationSession struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	Stage          Stage      `json:"stage"`
	Turns          []Turn     `json:"turns"`
	Draft          *PlanDraft `json:"draft,omitempty"`
	MissingFields  []string   `json:"missing_fields,omitempty"`
	Version        int64      `json:"version"`
	PlanID         string     `json:"plan_id,omitempty"`
	OracleThreadID string     `json:"oracle_thread_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// NewConversationSession returns a fresh session at version zero.
func NewConversationSession(id, userID string, now time.Time) *ConversationSession {
	return &ConversationSession{
		ID:        id,
		UserID:    userID,
		Stage:     StageInput,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a copy that can be mutated without touching the receiver.
func (s *ConversationSession) Clone() *ConversationSession {
	c := *s
	c.Turns = append([]Turn(nil), s.Turns...)
	c.MissingFields = append([]string(nil), s.MissingFields...)
	if s.Draft != nil {
		c.Draft = s.Draft.Clone()
	}
	return &c
}

// AppendTurn adds a turn to the history.
func (s *ConversationSession) AppendTurn(role Role, content string, reasoning *Reasoning, at time.Time) {
	s.Turns = append(s.Turns, Turn{
		Role:      role,
		Content:   content,
		Reasoning: reasoning,
		CreatedAt: at,
	})
}

// RecentTurns returns the last n turns from history.
func (s *ConversationSession) RecentTurns(n int) []Turn {
	if n >= len(s.Turns) {
		return s.Turns
	}
	return s.Turns[len(s.Turns)-n:]
}

// LastAssistantMessage returns the content of the most recent assistant turn.
func (s *ConversationSession) LastAssistantMessage() string {
	for i := len(s.Turns) - 1; i >= 0; i-- {
		if s.Turns[i].Role == RoleAssistant {
			return s.Turns[i].Content
		}
	}
	return ""
}
