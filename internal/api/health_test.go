package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type stubOracle struct{ err error }

func (s stubOracle) Health(context.Context) error { return s.err }

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		sessions   error
		oracle     *stubOracle
		wantCode   int
		wantStatus string
		wantChecks map[string]string
	}{
		{
			name:       "all healthy",
			oracle:     &stubOracle{},
			wantCode:   http.StatusOK,
			wantStatus: "healthy",
			wantChecks: map[string]string{"api": "ok", "sessions": "ok", "generator": "ok"},
		},
		{
			name:       "no oracle health",
			wantCode:   http.StatusOK,
			wantStatus: "healthy",
			wantChecks: map[string]string{"api": "ok", "sessions": "ok"},
		},
		{
			name:       "store down",
			sessions:   errors.New("disk I/O error"),
			oracle:     &stubOracle{},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "degraded",
			wantChecks: map[string]string{"api": "ok", "sessions": "unreachable", "generator": "ok"},
		},
		{
			name:       "generator down",
			oracle:     &stubOracle{err: errors.New("connection refused")},
			wantCode:   http.StatusOK,
			wantStatus: "degraded",
			wantChecks: map[string]string{"api": "ok", "sessions": "ok", "generator": "unreachable"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(stubPinger{err: tt.sessions}, nil, time.Second)
			if tt.oracle != nil {
				h = NewHealthHandler(stubPinger{err: tt.sessions}, *tt.oracle, time.Second)
			}

			w := httptest.NewRecorder()
			h.Health(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

			if w.Code != tt.wantCode {
				t.Fatalf("status code = %d, want %d", w.Code, tt.wantCode)
			}
			var body struct {
				Status string            `json:"status"`
				Checks map[string]string `json:"checks"`
			}
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", body.Status, tt.wantStatus)
			}
			for k, v := range tt.wantChecks {
				if body.Checks[k] != v {
					t.Errorf("checks[%s] = %q, want %q", k, body.Checks[k], v)
				}
			}
			if len(body.Checks) != len(tt.wantChecks) {
				t.Errorf("checks = %v, want %v", body.Checks, tt.wantChecks)
			}
		})
	}
}
