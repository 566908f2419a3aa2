// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Session store backends.
const (
	StoreSQLite = "sqlite"
	StoreNATS   = "nats"
	StoreMemory = "memory"
)

// Generation oracle backends.
const (
	BackendGRPC     = "grpc"
	BackendOpenAI   = "openai"
	BackendScripted = "scripted"
)

// Config holds all application configuration.
type Config struct {
	Port         string
	FrontendURL  string
	DBPath       string
	SessionStore string
	NATS         NATSConfig
	Generation   GenerationConfig

	PersistenceTimeout time.Duration
	SessionTTL         time.Duration

	RateLimitRequests   int
	RateLimitWindow     time.Duration
	MaxRequestBodyBytes int64
	MetricsEnabled      bool
}

// NATSConfig locates the JetStream key-value bucket for sessions.
type NATSConfig struct {
	URL    string
	Bucket string
}

// GenerationConfig selects and configures the plan generation oracle.
type GenerationConfig struct {
	Backend       string
	Addr          string
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string
	Timeout       time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		FrontendURL:  getEnv("FRONTEND_URL", ""),
		DBPath:       getEnv("DB_PATH", "./data/plans.db"),
		SessionStore: strings.ToLower(getEnv("SESSION_STORE", StoreSQLite)),
		NATS: NATSConfig{
			URL:    getEnv("NATS_URL", "nats://127.0.0.1:4222"),
			Bucket: getEnv("NATS_SESSION_BUCKET", "PLAN_SESSIONS"),
		},
		Generation: GenerationConfig{
			Backend:       strings.ToLower(getEnv("GENERATION_BACKEND", BackendGRPC)),
			Addr:          getEnv("GENERATION_ADDR", "localhost:50051"),
			OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
			OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
			Timeout:       getEnvDuration("GENERATION_TIMEOUT", 60*time.Second),
		},
		PersistenceTimeout:  getEnvDuration("PERSISTENCE_TIMEOUT", 10*time.Second),
		SessionTTL:          getEnvDuration("SESSION_TTL", 24*time.Hour),
		RateLimitRequests:   getEnvInt("RATE_LIMIT_REQUESTS", 20),
		RateLimitWindow:     getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		MaxRequestBodyBytes: int64(getEnvInt("MAX_REQUEST_BODY_BYTES", 64<<10)),
		MetricsEnabled:      getEnvBool("METRICS_ENABLED", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	switch c.SessionStore {
	case StoreSQLite, StoreMemory:
	case StoreNATS:
		if c.NATS.URL == "" {
			return fmt.Errorf("NATS_URL cannot be empty when SESSION_STORE=nats")
		}
	default:
		return fmt.Errorf("SESSION_STORE must be one of sqlite, nats, memory, got %q", c.SessionStore)
	}
	if c.SessionStore != StoreMemory && c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	switch c.Generation.Backend {
	case BackendScripted:
	case BackendGRPC:
		if c.Generation.Addr == "" {
			return fmt.Errorf("GENERATION_ADDR cannot be empty when GENERATION_BACKEND=grpc")
		}
	case BackendOpenAI:
		if c.Generation.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY cannot be empty when GENERATION_BACKEND=openai")
		}
		if c.Generation.OpenAIModel == "" {
			return fmt.Errorf("OPENAI_MODEL cannot be empty when GENERATION_BACKEND=openai")
		}
	default:
		return fmt.Errorf("GENERATION_BACKEND must be one of grpc, openai, scripted, got %q", c.Generation.Backend)
	}
	if c.Generation.Timeout <= 0 {
		return fmt.Errorf("GENERATION_TIMEOUT must be > 0")
	}
	if c.PersistenceTimeout <= 0 {
		return fmt.Errorf("PERSISTENCE_TIMEOUT must be > 0")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	if c.RateLimitRequests <= 0 || c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be > 0")
	}
	if c.MaxRequestBodyBytes <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_BYTES must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

// getEnvDuration accepts Go durations ("90s") or plain seconds ("90").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
