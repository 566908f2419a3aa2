package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shehzadigill/gymcoachai-sub008/internal/domain"
	"github.com/shehzadigill/gymcoachai-sub008/internal/shared"
)

// SavePlan stores an approved draft, once per conversation.
func (s *SQLiteStore) SavePlan(ctx context.Context, conversationID, userID string, draft *domain.PlanDraft) (string, error) {
	if conversationID == "" {
		return "", errors.New("conversation id is required")
	}
	if draft == nil {
		return "", errors.New("draft is required")
	}
	draftJSON, err := json.Marshal(draft)
	if err != nil {
		return "", fmt.Errorf("encode draft: %w", err)
	}

	insert := `
	INSERT INTO plans (plan_id, conversation_id, user_id, draft_json, created_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(conversation_id) DO NOTHING`

	err = shared.RetryOnSQLiteConflict(ctx, "save plan", busyRetries, busyBaseDelay, func() error {
		_, execErr := s.db.ExecContext(ctx, insert,
			uuid.NewString(), conversationID, userID, string(draftJSON), time.Now().Unix(),
		)
		if execErr != nil {
			return fmt.Errorf("insert plan: %w", execErr)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	var planID string
	err = s.db.QueryRowContext(ctx, `SELECT plan_id FROM plans WHERE conversation_id = ?`, conversationID).Scan(&planID)
	if err != nil {
		return "", fmt.Errorf("read plan id: %w", err)
	}
	return planID, nil
}

// GetPlan retrieves a persisted plan by ID.
func (s *SQLiteStore) GetPlan(ctx context.Context, planID string) (*domain.Plan, error) {
	query := `SELECT plan_id, conversation_id, user_id, draft_json, created_at FROM plans WHERE plan_id = ?`

	var plan domain.Plan
	var draftJSON string
	var createdAt int64
	err := s.db.QueryRowContext(ctx, query, planID).Scan(
		&plan.ID, &plan.ConversationID, &plan.UserID, &draftJSON, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan plan row: %w", err)
	}

	var draft domain.PlanDraft
	if err := json.Unmarshal([]byte(draftJSON), &draft); err != nil {
		return nil, fmt.Errorf("decode plan %s: %w", planID, err)
	}
	plan.Draft = &draft
	plan.CreatedAt = time.Unix(createdAt, 0)
	return &plan, nil
}
