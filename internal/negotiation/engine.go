// Package negotiation implements the plan negotiation state machine.
package negotiation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shehzadigill/gymcoachai-sub008/internal/domain"
	"github.com/shehzadigill/gymcoachai-sub008/internal/draft"
	"github.com/shehzadigill/gymcoachai-sub008/internal/generation"
	"github.com/shehzadigill/gymcoachai-sub008/internal/store"
)

const (
	opSubmit  = "submit"
	opModify  = "modify"
	opApprove = "approve"
	opCancel  = "cancel"

	// completeTimeout bounds the write that marks an approved conversation complete.
	completeTimeout = 5 * time.Second
)

// Recorder receives operation outcomes. internal/metrics implements it.
type Recorder interface {
	ObserveOperation(op, outcome string)
	ObserveGeneration(outcome string, elapsed time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) ObserveOperation(string, string)        {}
func (noopRecorder) ObserveGeneration(string, time.Duration) {}

// Config holds engine tuning.
type Config struct {
	GenerationTimeout  time.Duration
	PersistenceTimeout time.Duration
	Metrics            Recorder
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		GenerationTimeout:  60 * time.Second,
		PersistenceTimeout: 10 * time.Second,
	}
}

// SubmitRequest starts or continues a conversation.
type SubmitRequest struct {
	ConversationID string
	UserID         string
	Message        string
}

// ApproveRequest accepts the current preview.
type ApproveRequest struct {
	ConversationID   string
	UserID           string
	ConfirmationText string
}

// ModifyRequest sends a preview back for changes.
type ModifyRequest struct {
	ConversationID string
	UserID         string
	Instructions   string
}

// Outcome is the result of a successful operation.
type Outcome struct {
	ConversationID string
	Stage          domain.Stage
	Message        string
	Reasoning      *domain.Reasoning
	Draft          *domain.PlanDraft
	MissingFields  []string
	PlanID         string
	Version        int64
}

// Engine drives conversations through their stages. It holds no
// per-conversation state; every operation loads, decides, and commits
// through the session store with a version check.
type Engine struct {
	sessions store.SessionStore
	plans    store.PlanRepository
	gateway  generation.Gateway
	cfg      Config
	logger   *slog.Logger
	metrics  Recorder

	// inflight rejects a second operation on a conversation this process is
	// already working on before it reaches the oracle.
	inflight sync.Map

	now   func() time.Time
	newID func() string
}

// NewEngine creates a negotiation engine.
func NewEngine(sessions store.SessionStore, plans store.PlanRepository, gateway generation.Gateway, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultConfig()
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = defaults.GenerationTimeout
	}
	if cfg.PersistenceTimeout <= 0 {
		cfg.PersistenceTimeout = defaults.PersistenceTimeout
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = noopRecorder{}
	}
	return &Engine{
		sessions: sessions,
		plans:    plans,
		gateway:  gateway,
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Submit appends a user message and asks the oracle for the next step.
// Without a conversation ID a new conversation is started.
func (e *Engine) Submit(ctx context.Context, req SubmitRequest) (out *Outcome, err error) {
	defer func() { e.record(opSubmit, err) }()

	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, validationError("message is required")
	}
	if req.UserID == "" {
		return nil, validationError("user id is required")
	}

	var base *domain.ConversationSession
	if req.ConversationID == "" {
		base = domain.NewConversationSession(e.newID(), req.UserID, e.now())
	} else {
		release, lockErr := e.acquire(req.ConversationID)
		if lockErr != nil {
			return nil, lockErr
		}
		defer release()

		base, err = e.load(ctx, req.ConversationID, req.UserID)
		if err != nil {
			return nil, err
		}
		switch base.Stage {
		case domain.StageInput, domain.StageGathering:
		case domain.StagePreview:
			return nil, stateError("a plan is awaiting review; approve it or request changes")
		default:
			return nil, stateError("conversation is %s and cannot accept new messages", base.Stage)
		}
	}

	working := base.Clone()
	working.AppendTurn(domain.RoleUser, message, nil, e.now())
	return e.generate(ctx, opSubmit, base, working)
}

// Modify sends a preview back to gathering with new instructions and
// re-evaluates it exactly like Submit.
func (e *Engine) Modify(ctx context.Context, req ModifyRequest) (out *Outcome, err error) {
	defer func() { e.record(opModify, err) }()

	instructions := strings.TrimSpace(req.Instructions)
	if instructions == "" {
		return nil, validationError("instruction text is required")
	}
	if req.ConversationID == "" {
		return nil, validationError("conversation id is required")
	}

	release, err := e.acquire(req.ConversationID)
	if err != nil {
		return nil, err
	}
	defer release()

	base, err := e.load(ctx, req.ConversationID, req.UserID)
	if err != nil {
		return nil, err
	}
	if base.Stage != domain.StagePreview {
		return nil, stateError("modify requires a plan preview, conversation is %s", base.Stage)
	}

	working := base.Clone()
	working.Stage = domain.StageGathering
	working.AppendTurn(domain.RoleUser, instructions, nil, e.now())
	return e.generate(ctx, opModify, base, working)
}

// generate runs one oracle round on working and commits it against base.
func (e *Engine) generate(ctx context.Context, op string, base, working *domain.ConversationSession) (*Outcome, error) {
	logger := e.logger.With("op", op, "conversation_id", working.ID)

	genCtx, cancel := context.WithTimeout(ctx, e.cfg.GenerationTimeout)
	started := time.Now()
	res, err := e.gateway.Generate(genCtx, generation.Request{
		ConversationID: working.ID,
		ThreadID:       working.OracleThreadID,
		Turns:          working.Turns,
		Draft:          working.Draft,
		MissingFields:  working.MissingFields,
	})
	cancel()
	if err != nil {
		e.metrics.ObserveGeneration("error", time.Since(started))
		logger.Warn("Generation failed, nothing committed", "error", err)
		return nil, gatewayError(err)
	}
	e.metrics.ObserveGeneration("ok", time.Since(started))

	now := e.now()
	working.AppendTurn(domain.RoleAssistant, res.Message, res.Reasoning, now)
	if res.ThreadID != "" {
		working.OracleThreadID = res.ThreadID
	}
	if res.Draft != nil {
		working.Draft = res.Draft.Clone()
	}

	verdict := draft.Validate(working.Draft)
	working.Stage = resolveStage(working.Stage, res.Stage, verdict.Approvable)
	switch {
	case working.Stage == domain.StagePreview:
		working.MissingFields = nil
	case working.Draft == nil && len(res.MissingFields) > 0:
		working.MissingFields = mergeMissing(res.MissingFields)
	default:
		working.MissingFields = mergeMissing(verdict.Missing, res.MissingFields)
	}
	working.Version = base.Version + 1
	working.UpdatedAt = now

	if base.Version == 0 {
		err = e.sessions.CreateSession(ctx, working)
	} else {
		err = e.sessions.UpdateSession(ctx, working, base.Version)
	}
	if err != nil {
		return nil, e.commitError(ctx, logger, working.ID, err)
	}

	logger.Info("Negotiation advanced",
		"stage", working.Stage,
		"version", working.Version,
		"oracle_stage", res.Stage,
		"approvable", verdict.Approvable,
		"draft_notes", verdict.Notes,
	)
	return outcomeOf(working, res.Message, res.Reasoning), nil
}

// commitError explains a failed write. A lost CAS race against a cancel or
// completion means the result arrived late and is discarded.
func (e *Engine) commitError(ctx context.Context, logger *slog.Logger, conversationID string, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return notFoundError(conversationID)
	case errors.Is(err, store.ErrVersionConflict):
		current, loadErr := e.sessions.GetSession(ctx, conversationID)
		if loadErr == nil && current.Stage.IsTerminal() {
			logger.Info("Discarding late result for ended conversation", "stage", current.Stage)
			return stateError("conversation was %s while this request was in progress", current.Stage)
		}
		return concurrencyError("conversation was changed by another request, reload and retry", err)
	default:
		logger.Error("Failed to commit session", "error", err)
		return serviceError("failed to save conversation", err)
	}
}

// Approve persists the previewed draft. Repeating it on a completed
// conversation returns the stored plan ID without saving again.
//
// saving is held in process by the inflight guard and never written; the
// session record changes exactly once, from preview to complete, after the
// plan exists. A failed save leaves the record untouched.
func (e *Engine) Approve(ctx context.Context, req ApproveRequest) (out *Outcome, err error) {
	defer func() { e.record(opApprove, err) }()

	if req.ConversationID == "" {
		return nil, validationError("conversation id is required")
	}

	release, err := e.acquire(req.ConversationID)
	if err != nil {
		return nil, err
	}
	defer release()

	base, err := e.load(ctx, req.ConversationID, req.UserID)
	if err != nil {
		return nil, err
	}
	logger := e.logger.With("op", opApprove, "conversation_id", base.ID)

	switch base.Stage {
	case domain.StageComplete:
		logger.Debug("Approve on completed conversation", "plan_id", base.PlanID)
		return outcomeOf(base, base.LastAssistantMessage(), nil), nil
	case domain.StagePreview:
	default:
		return nil, stateError("approve requires a plan preview, conversation is %s", base.Stage)
	}

	if verdict := draft.Validate(base.Draft); !verdict.Approvable {
		return nil, stateError("draft is not approvable: %s", strings.Join(verdict.Missing, ", "))
	}

	logger.Debug("Saving plan", "stage", domain.StageSaving, "version", base.Version)
	saveCtx, cancel := context.WithTimeout(ctx, e.cfg.PersistenceTimeout)
	planID, saveErr := e.plans.SavePlan(saveCtx, base.ID, base.UserID, base.Draft)
	cancel()
	if saveErr != nil {
		logger.Warn("Plan save failed, conversation stays in preview", "error", saveErr)
		return nil, persistenceError(saveErr)
	}

	// The plan exists now; finish even if the caller has gone away.
	writeCtx, cancelWrite := context.WithTimeout(context.WithoutCancel(ctx), completeTimeout)
	defer cancelWrite()

	now := e.now()
	done := base.Clone()
	done.Stage = domain.StageComplete
	done.PlanID = planID
	if text := strings.TrimSpace(req.ConfirmationText); text != "" {
		done.AppendTurn(domain.RoleUser, text, nil, now)
	}
	message := fmt.Sprintf("Your plan %q has been saved.", base.Draft.Name)
	done.AppendTurn(domain.RoleAssistant, message, nil, now)
	done.Version = base.Version + 1
	done.UpdatedAt = now
	if err := e.sessions.UpdateSession(writeCtx, done, base.Version); err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			// Another approver finished first with the same idempotent save.
			current, loadErr := e.sessions.GetSession(writeCtx, base.ID)
			if loadErr == nil && current.Stage == domain.StageComplete && current.PlanID == planID {
				return outcomeOf(current, current.LastAssistantMessage(), nil), nil
			}
		}
		logger.Warn("Plan saved but conversation changed before completion", "plan_id", planID, "error", err)
		return nil, e.commitError(writeCtx, logger, base.ID, err)
	}

	logger.Info("Plan approved", "plan_id", planID, "version", done.Version)
	return outcomeOf(done, message, nil), nil
}

// Cancel ends a conversation without saving anything. Cancelling twice is
// a no-op. Cancel does not wait for in-flight generation or an in-flight
// approval; their late commits lose the version check and are discarded.
func (e *Engine) Cancel(ctx context.Context, conversationID, userID string) (out *Outcome, err error) {
	defer func() { e.record(opCancel, err) }()

	if conversationID == "" {
		return nil, validationError("conversation id is required")
	}

	base, err := e.load(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}

	if base.Stage == domain.StageCancelled {
		return outcomeOf(base, "Plan creation was cancelled.", nil), nil
	}
	if !canTransition(base.Stage, domain.StageCancelled) {
		return nil, stateError("conversation is %s and cannot be cancelled", base.Stage)
	}

	next := base.Clone()
	next.Stage = domain.StageCancelled
	next.Version = base.Version + 1
	next.UpdatedAt = e.now()
	if err := e.sessions.UpdateSession(ctx, next, base.Version); err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			if current, loadErr := e.sessions.GetSession(ctx, conversationID); loadErr == nil && current.Stage == domain.StageCancelled {
				return outcomeOf(current, "Plan creation was cancelled.", nil), nil
			}
		}
		return nil, e.commitError(ctx, e.logger.With("op", opCancel, "conversation_id", conversationID), conversationID, err)
	}

	e.logger.Info("Conversation cancelled", "conversation_id", conversationID, "from_stage", base.Stage)
	return outcomeOf(next, "Plan creation was cancelled.", nil), nil
}

// Get returns a snapshot of a conversation owned by userID.
func (e *Engine) Get(ctx context.Context, conversationID, userID string) (*domain.ConversationSession, error) {
	return e.load(ctx, conversationID, userID)
}

// Decide applies a single approval decision.
func (e *Engine) Decide(ctx context.Context, conversationID, userID string, decision domain.ApprovalDecision) (*Outcome, error) {
	switch decision.Kind {
	case domain.DecisionApprove:
		return e.Approve(ctx, ApproveRequest{ConversationID: conversationID, UserID: userID, ConfirmationText: decision.Instructions})
	case domain.DecisionModify:
		return e.Modify(ctx, ModifyRequest{ConversationID: conversationID, UserID: userID, Instructions: decision.Instructions})
	case domain.DecisionCancel:
		return e.Cancel(ctx, conversationID, userID)
	default:
		return nil, validationError("unknown decision %q", decision.Kind)
	}
}

func (e *Engine) load(ctx context.Context, conversationID, userID string) (*domain.ConversationSession, error) {
	session, err := e.sessions.GetSession(ctx, conversationID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFoundError(conversationID)
	}
	if err != nil {
		e.logger.Error("Failed to load session", "conversation_id", conversationID, "error", err)
		return nil, serviceError("failed to load conversation", err)
	}
	// Other users' conversations are indistinguishable from missing ones.
	if session.UserID != userID {
		return nil, notFoundError(conversationID)
	}
	return session, nil
}

func (e *Engine) acquire(conversationID string) (func(), error) {
	if _, busy := e.inflight.LoadOrStore(conversationID, struct{}{}); busy {
		return nil, concurrencyError("another request for this conversation is in progress", nil)
	}
	return func() { e.inflight.Delete(conversationID) }, nil
}

func (e *Engine) record(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(KindOf(err))
	}
	e.metrics.ObserveOperation(op, outcome)
}

func outcomeOf(s *domain.ConversationSession, message string, reasoning *domain.Reasoning) *Outcome {
	out := &Outcome{
		ConversationID: s.ID,
		Stage:          s.Stage,
		Message:        message,
		Reasoning:      reasoning,
		MissingFields:  append([]string(nil), s.MissingFields...),
		PlanID:         s.PlanID,
		Version:        s.Version,
	}
	if s.Draft != nil {
		out.Draft = s.Draft.Clone()
	}
	return out
}

func mergeMissing(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range lists {
		for _, m := range list {
			if _, ok := seen[m]; ok || m == "" {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	return out
}
