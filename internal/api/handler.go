// Package api provides HTTP handlers for the plan negotiation API.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shehzadigill/gymcoachai-sub008/internal/negotiation"
)

// Envelope is the response shape shared by every plan endpoint.
type Envelope struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

// APIError describes a failed request.
type APIError struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// OK writes a successful envelope.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, Envelope{Success: true, Data: data})
}

// Fail writes a failed envelope.
func Fail(w http.ResponseWriter, status int, kind, message string, retryable bool) {
	JSON(w, status, Envelope{Error: &APIError{Kind: kind, Message: message, Retryable: retryable}})
}

// Error writes err as a failed envelope with the status its kind maps to.
func Error(w http.ResponseWriter, err error) {
	var nerr *negotiation.Error
	if !errors.As(err, &nerr) {
		slog.Error("Unclassified handler error", "error", err)
		Fail(w, http.StatusInternalServerError, string(negotiation.KindInternal), "internal error", false)
		return
	}
	Fail(w, statusFor(nerr.Kind), string(nerr.Kind), nerr.Message, nerr.Retryable)
}

func statusFor(kind negotiation.Kind) int {
	switch kind {
	case negotiation.KindValidation:
		return http.StatusBadRequest
	case negotiation.KindNotFound:
		return http.StatusNotFound
	case negotiation.KindState, negotiation.KindConcurrency:
		return http.StatusConflict
	case negotiation.KindNetwork:
		return http.StatusServiceUnavailable
	case negotiation.KindService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
