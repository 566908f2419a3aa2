// Package sweeper removes abandoned conversations from the session store.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/shehzadigill/gymcoachai-sub008/internal/store"
)

// DefaultInterval is how often the sweeper looks for stale sessions.
const DefaultInterval = 5 * time.Minute

// SweptCounter receives the number of sessions removed per sweep.
type SweptCounter interface {
	AddSwept(n int64)
}

// Start runs a background goroutine that periodically deletes sessions
// untouched for longer than ttl. Completed and cancelled sessions are
// never swept. It stops when ctx is cancelled.
func Start(ctx context.Context, sessions store.SessionStore, ttl, interval time.Duration, counter SweptCounter) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Session sweeper started", "interval", interval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				Sweep(ctx, sessions, ttl, counter)
			case <-ctx.Done():
				slog.Info("Session sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

// Sweep runs a single cleanup pass and returns how many sessions it removed.
func Sweep(ctx context.Context, sessions store.SessionStore, ttl time.Duration, counter SweptCounter) int64 {
	deleted, err := sessions.DeleteStaleSessions(ctx, ttl)
	if err != nil {
		slog.Error("Session sweeper failed", "error", err)
		return 0
	}
	if deleted == 0 {
		return 0
	}

	slog.Info("Session sweeper removed stale sessions", "count", deleted)
	if counter != nil {
		counter.AddSwept(deleted)
	}
	return deleted
}
