package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ozanyurt/crm-comms-service/internal/domain"
)

// ConversationRepository handles database operations for conversations.
type ConversationRepository struct {
	db *sqlx.DB
}

func NewConversationRepository(db *sqlx.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

const conversationColumns = `id, contact_id, openphone_id, participants, last_activity_at, created_at, updated_at`

func (r *ConversationRepository) GetByID(ctx context.Context, id int64) (*domain.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = ?`

	var conv domain.Conversation
	if err := r.db.GetContext(ctx, &conv, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	return &conv, nil
}

func (r *ConversationRepository) GetByOpenPhoneID(ctx context.Context, openPhoneID string) (*domain.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE openphone_id = ?`

	var conv domain.Conversation
	if err := r.db.GetContext(ctx, &conv, query, openPhoneID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get conversation by openphone id: %w", err)
	}

	return &conv, nil
}

// GetLatestForContact returns the contact's most recently active
// conversation, or nil, nil when they have none. Used when an event carries
// no thread id.
func (r *ConversationRepository) GetLatestForContact(ctx context.Context, contactID int64) (*domain.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE contact_id = ?
		ORDER BY last_activity_at DESC
		LIMIT 1
	`

	var conv domain.Conversation
	if err := r.db.GetContext(ctx, &conv, query, contactID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest conversation: %w", err)
	}

	return &conv, nil
}

// Create inserts a new conversation. A duplicate openphone_id returns
// domain.ErrAlreadyExists.
func (r *ConversationRepository) Create(ctx context.Context, conv *domain.Conversation) (*domain.Conversation, error) {
	query := `
		INSERT INTO conversations (contact_id, openphone_id, participants, last_activity_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`

	lastActivity := conv.LastActivityAt
	if lastActivity.IsZero() {
		lastActivity = time.Now().UTC()
	}

	result, err := r.db.ExecContext(ctx, query,
		conv.ContactID, conv.OpenPhoneID, conv.Participants, lastActivity)
	if err != nil {
		if isDuplicateKey(err) {
			return nil, domain.ErrAlreadyExists
		}
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	return r.GetByID(ctx, id)
}

// SetOpenPhoneID backfills the external thread id onto a conversation that
// was created before the id was known. Only a NULL id is overwritten.
func (r *ConversationRepository) SetOpenPhoneID(ctx context.Context, id int64, openPhoneID string) error {
	query := `
		UPDATE conversations
		SET openphone_id = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND openphone_id IS NULL
	`

	if _, err := r.db.ExecContext(ctx, query, openPhoneID, id); err != nil {
		if isDuplicateKey(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("failed to backfill openphone id: %w", err)
	}

	return nil
}

// TouchLastActivity advances last_activity_at monotonically; an older
// timestamp from an out-of-order delivery never moves it backwards.
func (r *ConversationRepository) TouchLastActivity(ctx context.Context, id int64, at time.Time) error {
	query := `
		UPDATE conversations
		SET last_activity_at = GREATEST(last_activity_at, ?), updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	if _, err := r.db.ExecContext(ctx, query, at, id); err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}

	return nil
}

func (r *ConversationRepository) List(ctx context.Context, page, pageSize int) ([]domain.Conversation, int64, error) {
	offset := (page - 1) * pageSize

	var totalCount int64
	if err := r.db.GetContext(ctx, &totalCount, "SELECT COUNT(*) FROM conversations"); err != nil {
		return nil, 0, fmt.Errorf("failed to count conversations: %w", err)
	}

	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		ORDER BY last_activity_at DESC
		LIMIT ? OFFSET ?
	`

	var convs []domain.Conversation
	if err := r.db.SelectContext(ctx, &convs, query, pageSize, offset); err != nil {
		return nil, 0, fmt.Errorf("failed to list conversations: %w", err)
	}

	return convs, totalCount, nil
}
