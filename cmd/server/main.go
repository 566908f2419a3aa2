// GymCoach plan negotiation server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/shehzadigill/gymcoachai-sub008/internal/api"
	"github.com/shehzadigill/gymcoachai-sub008/internal/config"
	"github.com/shehzadigill/gymcoachai-sub008/internal/generation"
	"github.com/shehzadigill/gymcoachai-sub008/internal/identity"
	"github.com/shehzadigill/gymcoachai-sub008/internal/metrics"
	"github.com/shehzadigill/gymcoachai-sub008/internal/middleware"
	"github.com/shehzadigill/gymcoachai-sub008/internal/negotiation"
	"github.com/shehzadigill/gymcoachai-sub008/internal/store"
	"github.com/shehzadigill/gymcoachai-sub008/internal/sweeper"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server",
		"port", cfg.Port,
		"dev", cfg.IsDevelopment(),
		"session_store", cfg.SessionStore,
		"generation_backend", cfg.Generation.Backend)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize dependencies.
	sessions, plans, closeStores, err := openStores(ctx, cfg, logger)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer closeStores()

	if err := sessions.Ping(ctx); err != nil {
		slog.Error("Session store health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Storage connected")

	gateway, closeGateway, err := openGateway(cfg, logger)
	if err != nil {
		slog.Error("Failed to initialize plan generator", "error", err)
		os.Exit(1)
	}
	defer closeGateway()

	var recorder *metrics.Metrics
	engineCfg := negotiation.Config{
		GenerationTimeout:  cfg.Generation.Timeout,
		PersistenceTimeout: cfg.PersistenceTimeout,
	}
	if cfg.MetricsEnabled {
		recorder = metrics.New()
		engineCfg.Metrics = recorder
	}
	engine := negotiation.NewEngine(sessions, plans, gateway, engineCfg, logger)

	limiter := middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)
	defer limiter.Stop()

	// Initialize handlers.
	planHandler := api.NewPlanHandler(engine, plans, limiter, cfg.MaxRequestBodyBytes)
	oracleHealth, _ := gateway.(generation.HealthChecker)
	healthHandler := api.NewHealthHandler(sessions, oracleHealth, 5*time.Second)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(allowedOrigins(cfg)))

	// Public routes.
	healthHandler.RegisterHealth(r)
	if recorder != nil {
		r.Handle("/metrics", recorder.Handler())
	}

	// Plan routes are scoped to the caller's identity.
	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(cfg.IsDevelopment()))
		planHandler.RegisterRoutes(r)
	})

	// The write timeout must outlast a generation round plus a plan save.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Generation.Timeout + cfg.PersistenceTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start session sweeper.
	var swept sweeper.SweptCounter
	if recorder != nil {
		swept = recorder
	}
	sweeper.Start(ctx, sessions, cfg.SessionTTL, sweeper.DefaultInterval, swept)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}

// openStores builds the session store and plan repository for the
// configured backend. NATS holds sessions only; plans always go to SQLite
// unless everything runs in memory.
func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.SessionStore, store.PlanRepository, func(), error) {
	switch cfg.SessionStore {
	case config.StoreMemory:
		slog.Warn("Using in-memory storage, data will not survive a restart")
		mem := store.NewMemory()
		return mem, mem, func() {}, nil

	case config.StoreNATS:
		kv, err := store.NewKV(ctx, cfg.NATS.URL, cfg.NATS.Bucket, logger)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open nats session store: %w", err)
		}
		db, err := store.NewSQLite(cfg.DBPath)
		if err != nil {
			closeQuietly("nats session store", kv.Close)
			return nil, nil, nil, fmt.Errorf("open plan database: %w", err)
		}
		return kv, db, func() {
			closeQuietly("nats session store", kv.Close)
			closeQuietly("plan database", db.Close)
		}, nil

	default:
		db, err := store.NewSQLite(cfg.DBPath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open database: %w", err)
		}
		return db, db, func() { closeQuietly("database", db.Close) }, nil
	}
}

func openGateway(cfg *config.Config, logger *slog.Logger) (generation.Gateway, func(), error) {
	switch cfg.Generation.Backend {
	case config.BackendScripted:
		slog.Warn("Using scripted plan generator")
		return generation.NewScripted(), func() {}, nil

	case config.BackendOpenAI:
		client, err := generation.NewOpenAIClient(generation.OpenAIConfig{
			APIKey:  cfg.Generation.OpenAIAPIKey,
			Model:   cfg.Generation.OpenAIModel,
			BaseURL: cfg.Generation.OpenAIBaseURL,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("Plan generator ready", "backend", "openai", "model", cfg.Generation.OpenAIModel)
		return client, func() {}, nil

	default:
		slog.Info("Connecting to plan generator via gRPC", "address", cfg.Generation.Addr)
		client, err := generation.NewGrpcClient(generation.DefaultGrpcClientConfig(cfg.Generation.Addr), logger)
		if err != nil {
			return nil, nil, err
		}
		return client, client.Close, nil
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if cfg.FrontendURL == "" {
		return []string{"*"}
	}
	return []string{cfg.FrontendURL}
}

func closeQuietly(name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		slog.Error("Failed to close "+name, "error", err)
	}
}
