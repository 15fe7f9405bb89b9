package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ozanyurt/crm-comms-service/internal/domain"
)

// ActivityRepository handles database operations for activities. The
// openphone_id unique index is the idempotency guarantee: a duplicate
// delivery can never insert a second row for the same external id.
type ActivityRepository struct {
	db *sqlx.DB
}

func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

const activityColumns = `id, conversation_id, contact_id, openphone_id, activity_type, direction,
		status, body, duration_seconds, recording_url, ai_summary, ai_transcript, media_urls,
		created_at, updated_at`

func (r *ActivityRepository) GetByID(ctx context.Context, id int64) (*domain.Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities WHERE id = ?`

	var activity domain.Activity
	if err := r.db.GetContext(ctx, &activity, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}

	return &activity, nil
}

func (r *ActivityRepository) GetByOpenPhoneID(ctx context.Context, openPhoneID string) (*domain.Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities WHERE openphone_id = ?`

	var activity domain.Activity
	if err := r.db.GetContext(ctx, &activity, query, openPhoneID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get activity by openphone id: %w", err)
	}

	return &activity, nil
}

// Create inserts a new activity. A duplicate openphone_id returns
// domain.ErrAlreadyExists; the caller re-fetches and applies an update.
func (r *ActivityRepository) Create(ctx context.Context, activity *domain.Activity) (*domain.Activity, error) {
	query := `
		INSERT INTO activities (conversation_id, contact_id, openphone_id, activity_type, direction,
			status, body, duration_seconds, media_urls, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`

	result, err := r.db.ExecContext(ctx, query,
		activity.ConversationID, activity.ContactID, activity.OpenPhoneID,
		activity.ActivityType, activity.Direction, activity.Status, activity.Body,
		activity.DurationSeconds, activity.MediaURLs)
	if err != nil {
		if isDuplicateKey(err) {
			return nil, domain.ErrAlreadyExists
		}
		return nil, fmt.Errorf("failed to create activity: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	return r.GetByID(ctx, id)
}

// UpdateMessage applies a later message webhook to an existing row.
// Last-write-wins on the mutable fields.
func (r *ActivityRepository) UpdateMessage(ctx context.Context, id int64, status, body string, mediaURLs domain.StringList) error {
	query := `
		UPDATE activities
		SET status = ?, body = ?, media_urls = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	if _, err := r.db.ExecContext(ctx, query, status, body, mediaURLs, id); err != nil {
		return fmt.Errorf("failed to update message activity: %w", err)
	}

	return nil
}

// UpdateCall applies a later call webhook to an existing row.
func (r *ActivityRepository) UpdateCall(ctx context.Context, id int64, status string, durationSeconds int64) error {
	query := `
		UPDATE activities
		SET status = ?, duration_seconds = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	if _, err := r.db.ExecContext(ctx, query, status, durationSeconds, id); err != nil {
		return fmt.Errorf("failed to update call activity: %w", err)
	}

	return nil
}

func (r *ActivityRepository) SetRecordingURL(ctx context.Context, id int64, url string) error {
	query := `UPDATE activities SET recording_url = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

	if _, err := r.db.ExecContext(ctx, query, url, id); err != nil {
		return fmt.Errorf("failed to set recording url: %w", err)
	}

	return nil
}

func (r *ActivityRepository) SetAISummary(ctx context.Context, id int64, summary string) error {
	query := `UPDATE activities SET ai_summary = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

	if _, err := r.db.ExecContext(ctx, query, summary, id); err != nil {
		return fmt.Errorf("failed to set ai summary: %w", err)
	}

	return nil
}

func (r *ActivityRepository) SetAITranscript(ctx context.Context, id int64, transcript string) error {
	query := `UPDATE activities SET ai_transcript = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

	if _, err := r.db.ExecContext(ctx, query, transcript, id); err != nil {
		return fmt.Errorf("failed to set ai transcript: %w", err)
	}

	return nil
}

func (r *ActivityRepository) ListForConversation(ctx context.Context, conversationID int64, page, pageSize int) ([]domain.Activity, int64, error) {
	offset := (page - 1) * pageSize

	var totalCount int64
	countQuery := "SELECT COUNT(*) FROM activities WHERE conversation_id = ?"
	if err := r.db.GetContext(ctx, &totalCount, countQuery, conversationID); err != nil {
		return nil, 0, fmt.Errorf("failed to count activities: %w", err)
	}

	query := `
		SELECT ` + activityColumns + `
		FROM activities
		WHERE conversation_id = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`

	var activities []domain.Activity
	if err := r.db.SelectContext(ctx, &activities, query, conversationID, pageSize, offset); err != nil {
		return nil, 0, fmt.Errorf("failed to list activities: %w", err)
	}

	return activities, totalCount, nil
}
