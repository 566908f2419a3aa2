// Package generation is the client side of the external plan-generation oracle.
package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shehzadigill/gymcoachai-sub008/internal/domain"
)

var (
	// ErrUnavailable means the oracle could not be reached or timed out.
	ErrUnavailable = errors.New("generation oracle unavailable")
	// ErrRejected means the oracle answered with a failure or an unusable payload.
	ErrRejected = errors.New("generation oracle rejected request")
)

// Request carries the full turn history for one generation call.
type Request struct {
	ConversationID string
	// ThreadID is the oracle's own conversation handle from a previous call.
	ThreadID      string
	Turns         []domain.Turn
	Draft         *domain.PlanDraft
	MissingFields []string
}

// Result is the oracle's proposal. Stage is an untrusted hint.
type Result struct {
	Stage         string
	Message       string
	Reasoning     *domain.Reasoning
	Draft         *domain.PlanDraft
	MissingFields []string
	ThreadID      string
}

// Gateway calls the oracle. Implementations never retry.
type Gateway interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}

// HealthChecker is implemented by gateways that can report oracle health.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// wireResponse is the JSON shape shared by every oracle transport.
type wireResponse struct {
	Stage         string            `json:"stage"`
	Message       string            `json:"message"`
	Reasoning     *domain.Reasoning `json:"reasoning,omitempty"`
	Draft         *domain.PlanDraft `json:"draft,omitempty"`
	MissingFields []string          `json:"missing_fields,omitempty"`
	ThreadID      string            `json:"thread_id,omitempty"`
}

// decodeResult turns an oracle payload into a Result.
func decodeResult(payload []byte) (*Result, error) {
	var wire wireResponse
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrRejected, err)
	}
	if strings.TrimSpace(wire.Message) == "" {
		return nil, fmt.Errorf("%w: empty assistant message", ErrRejected)
	}
	if wire.Draft != nil {
		wire.Draft.Difficulty = domain.ParseDifficulty(string(wire.Draft.Difficulty))
	}
	return &Result{
		Stage:         wire.Stage,
		Message:       strings.TrimSpace(wire.Message),
		Reasoning:     wire.Reasoning,
		Draft:         wire.Draft,
		MissingFields: wire.MissingFields,
		ThreadID:      wire.ThreadID,
	}, nil
}

// wireRequest is the JSON shape sent to the oracle.
type wireRequest struct {
	ConversationID string            `json:"conversation_id"`
	ThreadID       string            `json:"thread_id,omitempty"`
	Turns          []wireTurn        `json:"turns"`
	Draft          *domain.PlanDraft `json:"draft,omitempty"`
	MissingFields  []string          `json:"missing_fields,omitempty"`
}

type wireTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func newWireRequest(req Request) wireRequest {
	turns := make([]wireTurn, 0, len(req.Turns))
	for _, t := range req.Turns {
		turns = append(turns, wireTurn{Role: string(t.Role), Content: t.Content})
	}
	return wireRequest{
		ConversationID: req.ConversationID,
		ThreadID:       req.ThreadID,
		Turns:          turns,
		Draft:          req.Draft,
		MissingFields:  req.MissingFields,
	}
}
