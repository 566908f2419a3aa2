package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/shehzadigill/gymcoachai-sub008/internal/domain"
)

// DefaultSessionBucket is the JetStream KV bucket holding conversation sessions.
const DefaultSessionBucket = "PLAN_SESSIONS"

// KVStore implements SessionStore on a NATS JetStream key-value bucket.
// CAS is enforced twice: the decoded session version must match, and the
// bucket revision read alongside it must still be current at write time.
type KVStore struct {
	nc     *nats.Conn
	bucket jetstream.KeyValue
	logger *slog.Logger
}

// NewKV connects to NATS and creates (or reuses) the session bucket.
func NewKV(ctx context.Context, url, bucket string, logger *slog.Logger) (*KVStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if bucket == "" {
		bucket = DefaultSessionBucket
	}

	nc, err := nats.Connect(url,
		nats.Name("gymcoach-plan-sessions"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", url, err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("get jetstream: %w", err)
	}

	// CreateOrUpdateKeyValue is idempotent across replicas starting together.
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "Plan negotiation conversation sessions",
		History:     1,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create/update kv bucket: %w", err)
	}

	logger.Info("NATS session store ready", "url", url, "bucket", bucket)
	return &KVStore{nc: nc, bucket: kv, logger: logger}, nil
}

func (k *KVStore) load(ctx context.Context, id string) (*domain.ConversationSession, uint64, error) {
	entry, err := k.bucket.Get(ctx, id)
	if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted) {
		return nil, 0, ErrNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("get session %s: %w", id, err)
	}

	var session domain.ConversationSession
	if err := json.Unmarshal(entry.Value(), &session); err != nil {
		return nil, 0, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &session, entry.Revision(), nil
}

// GetSession retrieves a session by conversation ID.
func (k *KVStore) GetSession(ctx context.Context, id string) (*domain.ConversationSession, error) {
	session, _, err := k.load(ctx, id)
	return session, err
}

// CreateSession stores a new session at version 1.
func (k *KVStore) CreateSession(ctx context.Context, session *domain.ConversationSession) error {
	if err := checkNextVersion(session, 0); err != nil {
		return err
	}
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if _, err := k.bucket.Create(ctx, session.ID, data); err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return ErrVersionConflict
		}
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// UpdateSession replaces a session if its stored version equals expectedVersion.
func (k *KVStore) UpdateSession(ctx context.Context, session *domain.ConversationSession, expectedVersion int64) error {
	if err := checkNextVersion(session, expectedVersion); err != nil {
		return err
	}

	current, revision, err := k.load(ctx, session.ID)
	if err != nil {
		return err
	}
	if current.Version != expectedVersion {
		return ErrVersionConflict
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if _, err := k.bucket.Update(ctx, session.ID, data, revision); err != nil {
		if isWrongRevision(err) {
			return ErrVersionConflict
		}
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// DeleteStaleSessions removes abandoned non-terminal sessions.
func (k *KVStore) DeleteStaleSessions(ctx context.Context, olderThan time.Duration) (int64, error) {
	lister, err := k.bucket.ListKeys(ctx)
	if err != nil {
		return 0, fmt.Errorf("list session keys: %w", err)
	}
	defer func() {
		if stopErr := lister.Stop(); stopErr != nil {
			k.logger.Debug("failed to stop key lister", "error", stopErr)
		}
	}()

	threshold := time.Now().Add(-olderThan)
	var deleted int64
	for key := range lister.Keys() {
		session, revision, err := k.load(ctx, key)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			k.logger.Warn("skipping unreadable session during sweep", "conversation_id", key, "error", err)
			continue
		}
		if session.Stage.IsTerminal() || !session.UpdatedAt.Before(threshold) {
			continue
		}
		// LastRevision keeps a concurrent writer from losing its update.
		if err := k.bucket.Delete(ctx, key, jetstream.LastRevision(revision)); err != nil {
			if isWrongRevision(err) {
				continue
			}
			return deleted, fmt.Errorf("delete session %s: %w", key, err)
		}
		deleted++
	}
	return deleted, nil
}

// Ping verifies the NATS connection is up.
func (k *KVStore) Ping(_ context.Context) error {
	if !k.nc.IsConnected() {
		return fmt.Errorf("nats connection status: %s", k.nc.Status())
	}
	return nil
}

// Close drains the NATS connection.
func (k *KVStore) Close() error {
	if err := k.nc.Drain(); err != nil {
		return fmt.Errorf("drain nats connection: %w", err)
	}
	return nil
}

func isWrongRevision(err error) bool {
	if errors.Is(err, jetstream.ErrKeyExists) {
		return true
	}
	var apiErr *jetstream.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
}

var _ SessionStore = (*KVStore)(nil)
