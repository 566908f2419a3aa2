//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shehzadigill/gymcoachai-sub008/internal/negotiation"
)

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestErrorMapsKindsToStatus(t *testing.T) {
	tests := []struct {
		kind negotiation.Kind
		want int
	}{
		{negotiation.KindValidation, http.StatusBadRequest},
		{negotiation.KindNotFound, http.StatusNotFound},
		{negotiation.KindState, http.StatusConflict},
		{negotiation.KindConcurrency, http.StatusConflict},
		{negotiation.KindNetwork, http.StatusServiceUnavailable},
		{negotiation.KindService, http.StatusBadGateway},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		Error(w, &negotiation.Error{Kind: tt.kind, Message: "boom", Retryable: true})

		if w.Code != tt.want {
			t.Errorf("%s: expected status %d, got %d", tt.kind, tt.want, w.Code)
		}
		var env Envelope
		if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
			t.Fatalf("decode envelope: %v", err)
		}
		if env.Success || env.Error == nil || env.Error.Kind != string(tt.kind) || !env.Error.Retryable {
			t.Errorf("%s: unexpected envelope %+v", tt.kind, env)
		}
	}
}

func TestErrorHidesForeignErrors(t *testing.T) {
	w := httptest.NewRecorder()
	Error(w, errors.New("sql: connection reset by peer"))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	var env Envelope
	if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.Error == nil || env.Error.Message != "internal error" {
		t.Fatalf("expected generic message, got %+v", env.Error)
	}
}
