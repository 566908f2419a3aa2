package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shehzadigill/gymcoachai-sub008/internal/domain"
	"github.com/shehzadigill/gymcoachai-sub008/internal/identity"
	"github.com/shehzadigill/gymcoachai-sub008/internal/middleware"
	"github.com/shehzadigill/gymcoachai-sub008/internal/negotiation"
	"github.com/shehzadigill/gymcoachai-sub008/internal/store"
)

// Negotiator is the subset of negotiation.Engine the HTTP layer drives.
type Negotiator interface {
	Submit(ctx context.Context, req negotiation.SubmitRequest) (*negotiation.Outcome, error)
	Approve(ctx context.Context, req negotiation.ApproveRequest) (*negotiation.Outcome, error)
	Modify(ctx context.Context, req negotiation.ModifyRequest) (*negotiation.Outcome, error)
	Cancel(ctx context.Context, conversationID, userID string) (*negotiation.Outcome, error)
	Get(ctx context.Context, conversationID, userID string) (*domain.ConversationSession, error)
}

var _ Negotiator = (*negotiation.Engine)(nil)

// PlanHandler serves the plan negotiation endpoints.
type PlanHandler struct {
	engine       Negotiator
	plans        store.PlanRepository
	limiter      *middleware.RateLimiter
	maxBodyBytes int64
}

// NewPlanHandler creates a plan handler. limiter may be nil to disable
// throttling of the mutating endpoints.
func NewPlanHandler(engine Negotiator, plans store.PlanRepository, limiter *middleware.RateLimiter, maxBodyBytes int64) *PlanHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = 64 << 10
	}
	return &PlanHandler{engine: engine, plans: plans, limiter: limiter, maxBodyBytes: maxBodyBytes}
}

// RegisterRoutes registers plan routes on the router.
func (h *PlanHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/plans", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if h.limiter != nil {
				r.Use(middleware.RateLimit(h.limiter))
			}
			r.Post("/create", h.CreatePlan)
			r.Post("/approve", h.ApprovePlan)
			r.Post("/modify", h.ModifyPlan)
			r.Post("/cancel", h.CancelPlan)
		})
		r.Get("/conversations/{conversationID}", h.GetConversation)
		r.Get("/{planID}", h.GetPlan)
	})
}

type createPlanRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId,omitempty"`
}

type createPlanResponse struct {
	Stage          domain.Stage      `json:"stage"`
	ConversationID string            `json:"conversationId"`
	Message        string            `json:"message"`
	Reasoning      *domain.Reasoning `json:"reasoning,omitempty"`
	Draft          *domain.PlanDraft `json:"draft,omitempty"`
	MissingFields  []string          `json:"missingFields,omitempty"`
}

// CreatePlan starts a conversation or continues one with a new message.
func (h *PlanHandler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req createPlanRequest
	if !h.decode(w, r, &req) {
		return
	}

	out, err := h.engine.Submit(r.Context(), negotiation.SubmitRequest{
		ConversationID: req.ConversationID,
		UserID:         identity.UserIDFromContext(r.Context()),
		Message:        req.Message,
	})
	if err != nil {
		Error(w, err)
		return
	}

	OK(w, createPlanResponse{
		Stage:          out.Stage,
		ConversationID: out.ConversationID,
		Message:        out.Message,
		Reasoning:      out.Reasoning,
		Draft:          out.Draft,
		MissingFields:  out.MissingFields,
	})
}

type approvePlanRequest struct {
	ConversationID   string `json:"conversationId"`
	ConfirmationText string `json:"confirmationText"`
}

type approvePlanResponse struct {
	Stage   domain.Stage `json:"stage"`
	Message string       `json:"message"`
	PlanID  string       `json:"planId,omitempty"`
}

// ApprovePlan persists the conversation's current preview.
func (h *PlanHandler) ApprovePlan(w http.ResponseWriter, r *http.Request) {
	var req approvePlanRequest
	if !h.decode(w, r, &req) {
		return
	}

	out, err := h.engine.Approve(r.Context(), negotiation.ApproveRequest{
		ConversationID:   req.ConversationID,
		UserID:           identity.UserIDFromContext(r.Context()),
		ConfirmationText: req.ConfirmationText,
	})
	if err != nil {
		Error(w, err)
		return
	}

	OK(w, approvePlanResponse{Stage: out.Stage, Message: out.Message, PlanID: out.PlanID})
}

type modifyPlanRequest struct {
	ConversationID  string `json:"conversationId"`
	InstructionText string `json:"instructionText"`
}

type modifyPlanResponse struct {
	Stage          domain.Stage      `json:"stage"`
	ConversationID string            `json:"conversationId"`
	Message        string            `json:"message"`
	Draft          *domain.PlanDraft `json:"draft,omitempty"`
	MissingFields  []string          `json:"missingFields,omitempty"`
}

// ModifyPlan sends the preview back to the generator with instructions.
func (h *PlanHandler) ModifyPlan(w http.ResponseWriter, r *http.Request) {
	var req modifyPlanRequest
	if !h.decode(w, r, &req) {
		return
	}

	out, err := h.engine.Modify(r.Context(), negotiation.ModifyRequest{
		ConversationID: req.ConversationID,
		UserID:         identity.UserIDFromContext(r.Context()),
		Instructions:   req.InstructionText,
	})
	if err != nil {
		Error(w, err)
		return
	}

	OK(w, modifyPlanResponse{
		Stage:          out.Stage,
		ConversationID: out.ConversationID,
		Message:        out.Message,
		Draft:          out.Draft,
		MissingFields:  out.MissingFields,
	})
}

type cancelPlanRequest struct {
	ConversationID string `json:"conversationId"`
}

type cancelPlanResponse struct {
	Stage          domain.Stage `json:"stage"`
	ConversationID string       `json:"conversationId"`
	Message        string       `json:"message"`
}

// CancelPlan ends a conversation without saving.
func (h *PlanHandler) CancelPlan(w http.ResponseWriter, r *http.Request) {
	var req cancelPlanRequest
	if !h.decode(w, r, &req) {
		return
	}

	out, err := h.engine.Cancel(r.Context(), req.ConversationID, identity.UserIDFromContext(r.Context()))
	if err != nil {
		Error(w, err)
		return
	}

	OK(w, cancelPlanResponse{Stage: out.Stage, ConversationID: out.ConversationID, Message: out.Message})
}

type turnView struct {
	Role      domain.Role       `json:"role"`
	Content   string            `json:"content"`
	Reasoning *domain.Reasoning `json:"reasoning,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

type conversationView struct {
	ConversationID string            `json:"conversationId"`
	Stage          domain.Stage      `json:"stage"`
	Version        int64             `json:"version"`
	Turns          []turnView        `json:"turns"`
	Draft          *domain.PlanDraft `json:"draft,omitempty"`
	MissingFields  []string          `json:"missingFields,omitempty"`
	PlanID         string            `json:"planId,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// GetConversation returns the caller's conversation so a client can resume it.
func (h *PlanHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	session, err := h.engine.Get(r.Context(), chi.URLParam(r, "conversationID"), identity.UserIDFromContext(r.Context()))
	if err != nil {
		Error(w, err)
		return
	}

	turns := make([]turnView, 0, len(session.Turns))
	for _, t := range session.Turns {
		turns = append(turns, turnView{Role: t.Role, Content: t.Content, Reasoning: t.Reasoning, CreatedAt: t.CreatedAt})
	}
	OK(w, conversationView{
		ConversationID: session.ID,
		Stage:          session.Stage,
		Version:        session.Version,
		Turns:          turns,
		Draft:          session.Draft,
		MissingFields:  session.MissingFields,
		PlanID:         session.PlanID,
		CreatedAt:      session.CreatedAt,
		UpdatedAt:      session.UpdatedAt,
	})
}

type planView struct {
	PlanID         string            `json:"planId"`
	ConversationID string            `json:"conversationId"`
	Draft          *domain.PlanDraft `json:"draft"`
	CreatedAt      time.Time         `json:"createdAt"`
}

// GetPlan returns a saved plan owned by the caller.
func (h *PlanHandler) GetPlan(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "planID")
	plan, err := h.plans.GetPlan(r.Context(), planID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		slog.Error("Failed to load plan", "plan_id", planID, "error", err)
		Fail(w, http.StatusInternalServerError, string(negotiation.KindInternal), "failed to load plan", true)
		return
	}
	if err != nil || plan.UserID != identity.UserIDFromContext(r.Context()) {
		Fail(w, http.StatusNotFound, string(negotiation.KindNotFound), "plan not found", false)
		return
	}

	OK(w, planView{PlanID: plan.ID, ConversationID: plan.ConversationID, Draft: plan.Draft, CreatedAt: plan.CreatedAt})
}

// decode reads a size-limited JSON body into v, writing the failure
// response itself when it returns false.
func (h *PlanHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Fail(w, http.StatusRequestEntityTooLarge, string(negotiation.KindValidation), "request body too large", false)
			return false
		}
		Fail(w, http.StatusBadRequest, string(negotiation.KindValidation), "invalid request body", false)
		return false
	}
	return true
}
