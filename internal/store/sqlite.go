package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shehzadigill/gymcoachai-sub008/internal/domain"
	"github.com/shehzadigill/gymcoachai-sub008/internal/shared"
	_ "modernc.org/sqlite"
)

const (
	busyRetries   = 3
	busyBaseDelay = 50 * time.Millisecond
)

// SQLiteStore implements SessionStore and PlanRepository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed store.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Pragmas are applied per connection so every pooled conn waits on locks.
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS conversation_sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		stage TEXT NOT NULL,
		version INTEGER NOT NULL,
		payload_json TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_stage_updated ON conversation_sessions(stage, updated_at);

	CREATE TABLE IF NOT EXISTS plans (
		plan_id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL UNIQUE,
		user_id TEXT NOT NULL,
		draft_json TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// GetSession retrieves a session by conversation ID.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*domain.ConversationSession, error) {
	query := `SELECT version, payload_json FROM conversation_sessions WHERE id = ?`

	var version int64
	var payload string
	err := s.db.QueryRowContext(ctx, query, id).Scan(&version, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	var session domain.ConversationSession
	if err := json.Unmarshal([]byte(payload), &session); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	// The column is authoritative for CAS.
	session.Version = version
	return &session, nil
}

// CreateSession stores a new session at version 1.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *domain.ConversationSession) error {
	if err := checkNextVersion(session, 0); err != nil {
		return err
	}
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	query := `
	INSERT INTO conversation_sessions (id, user_id, stage, version, payload_json, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO NOTHING`

	var rows int64
	err = shared.RetryOnSQLiteConflict(ctx, "create session", busyRetries, busyBaseDelay, func() error {
		result, execErr := s.db.ExecContext(ctx, query,
			session.ID, session.UserID, string(session.Stage), session.Version, string(payload),
			session.CreatedAt.Unix(), session.UpdatedAt.Unix(),
		)
		if execErr != nil {
			return fmt.Errorf("insert session: %w", execErr)
		}
		rows, execErr = result.RowsAffected()
		return execErr
	})
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrVersionConflict
	}
	return nil
}

// UpdateSession replaces a session if its stored version equals expectedVersion.
func (s *SQLiteStore) UpdateSession(ctx context.Context, session *domain.ConversationSession, expectedVersion int64) error {
	if err := checkNextVersion(session, expectedVersion); err != nil {
		return err
	}
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	query := `
	UPDATE conversation_sessions
	SET stage = ?, version = ?, payload_json = ?, updated_at = ?
	WHERE id = ? AND version = ?`

	var rows int64
	err = shared.RetryOnSQLiteConflict(ctx, "update session", busyRetries, busyBaseDelay, func() error {
		result, execErr := s.db.ExecContext(ctx, query,
			string(session.Stage), session.Version, string(payload), session.UpdatedAt.Unix(),
			session.ID, expectedVersion,
		)
		if execErr != nil {
			return fmt.Errorf("update session: %w", execErr)
		}
		rows, execErr = result.RowsAffected()
		return execErr
	})
	if err != nil {
		return err
	}
	if rows > 0 {
		return nil
	}

	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM conversation_sessions WHERE id = ?`, session.ID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check session existence: %w", err)
	}
	slog.Debug("UpdateSession lost compare-and-swap", "conversation_id", session.ID, "expected_version", expectedVersion)
	return ErrVersionConflict
}

// DeleteStaleSessions removes abandoned non-terminal sessions.
func (s *SQLiteStore) DeleteStaleSessions(ctx context.Context, olderThan time.Duration) (int64, error) {
	threshold := time.Now().Add(-olderThan).Unix()
	query := `
	DELETE FROM conversation_sessions
	WHERE stage NOT IN (?, ?) AND updated_at < ?`

	var deleted int64
	err := shared.RetryOnSQLiteConflict(ctx, "delete stale sessions", busyRetries, 100*time.Millisecond, func() error {
		result, execErr := s.db.ExecContext(ctx, query,
			string(domain.StageComplete), string(domain.StageCancelled), threshold,
		)
		if execErr != nil {
			return fmt.Errorf("delete stale sessions: %w", execErr)
		}
		deleted, execErr = result.RowsAffected()
		return execErr
	})
	return deleted, err
}

var (
	_ SessionStore   = (*SQLiteStore)(nil)
	_ PlanRepository = (*SQLiteStore)(nil)
)
