package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GENERATION_BACKEND", "scripted")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.SessionStore != StoreSQLite {
		t.Errorf("SessionStore = %q, want sqlite", cfg.SessionStore)
	}
	if cfg.Generation.Timeout != 60*time.Second {
		t.Errorf("Generation.Timeout = %v, want 60s", cfg.Generation.Timeout)
	}
	if !cfg.IsDevelopment() {
		t.Error("expected development mode without FRONTEND_URL")
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("X_DURATION", "90s")
	if got := getEnvDuration("X_DURATION", time.Second); got != 90*time.Second {
		t.Errorf("got %v, want 90s", got)
	}
	t.Setenv("X_DURATION", "45")
	if got := getEnvDuration("X_DURATION", time.Second); got != 45*time.Second {
		t.Errorf("got %v, want 45s", got)
	}
	t.Setenv("X_DURATION", "soon")
	if got := getEnvDuration("X_DURATION", time.Second); got != time.Second {
		t.Errorf("got %v, want fallback", got)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Port:                "8080",
			DBPath:              "./data/plans.db",
			SessionStore:        StoreSQLite,
			Generation:          GenerationConfig{Backend: BackendScripted, Timeout: time.Minute},
			PersistenceTimeout:  10 * time.Second,
			SessionTTL:          time.Hour,
			RateLimitRequests:   10,
			RateLimitWindow:     time.Minute,
			MaxRequestBodyBytes: 1024,
		}
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("base config should be valid: %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"unknown store", func(c *Config) { c.SessionStore = "redis" }, "SESSION_STORE"},
		{"nats without url", func(c *Config) { c.SessionStore = StoreNATS; c.NATS.URL = "" }, "NATS_URL"},
		{"unknown backend", func(c *Config) { c.Generation.Backend = "magic" }, "GENERATION_BACKEND"},
		{"openai without key", func(c *Config) { c.Generation.Backend = BackendOpenAI; c.Generation.OpenAIModel = "m" }, "OPENAI_API_KEY"},
		{"grpc without addr", func(c *Config) { c.Generation.Backend = BackendGRPC }, "GENERATION_ADDR"},
		{"zero session ttl", func(c *Config) { c.SessionTTL = 0 }, "SESSION_TTL"},
		{"zero body limit", func(c *Config) { c.MaxRequestBodyBytes = 0 }, "MAX_REQUEST_BODY_BYTES"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error mentioning %s", err, tt.wantErr)
			}
		})
	}
}
