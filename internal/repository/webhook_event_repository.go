package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ozanyurt/crm-comms-service/internal/domain"
)

// WebhookEventRepository persists the raw delivery log. Rows are written
// before dispatch and never deleted here; the processed column stays false
// (the log is audit-only, not a processing-status ledger).
type WebhookEventRepository struct {
	db *sqlx.DB
}

func NewWebhookEventRepository(db *sqlx.DB) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

func (r *WebhookEventRepository) Create(ctx context.Context, eventType, payload string) (int64, error) {
	query := `
		INSERT INTO webhook_events (event_type, payload, processed, created_at)
		VALUES (?, ?, FALSE, CURRENT_TIMESTAMP)
	`

	result, err := r.db.ExecContext(ctx, query, eventType, payload)
	if err != nil {
		return 0, fmt.Errorf("failed to log webhook event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert id: %w", err)
	}

	return id, nil
}

// RecordError attaches a handler failure message to an already-logged
// delivery so the raw payload and its diagnosis live in the same row.
func (r *WebhookEventRepository) RecordError(ctx context.Context, id int64, message string) error {
	query := `UPDATE webhook_events SET error_message = ? WHERE id = ?`

	if _, err := r.db.ExecContext(ctx, query, message, id); err != nil {
		return fmt.Errorf("failed to record webhook error: %w", err)
	}

	return nil
}

func (r *WebhookEventRepository) List(ctx context.Context, page, pageSize int) ([]domain.WebhookEvent, int64, error) {
	offset := (page - 1) * pageSize

	var totalCount int64
	if err := r.db.GetContext(ctx, &totalCount, "SELECT COUNT(*) FROM webhook_events"); err != nil {
		return nil, 0, fmt.Errorf("failed to count webhook events: %w", err)
	}

	query := `
		SELECT id, event_type, payload, processed, error_message, created_at
		FROM webhook_events
		ORDER BY id DESC
		LIMIT ? OFFSET ?
	`

	var events []domain.WebhookEvent
	if err := r.db.SelectContext(ctx, &events, query, pageSize, offset); err != nil {
		return nil, 0, fmt.Errorf("failed to list webhook events: %w", err)
	}

	return events, totalCount, nil
}
