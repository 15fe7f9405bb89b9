package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ozanyurt/crm-comms-service/internal/domain"
)

// ComplianceRepository persists the append-only contact flag event log and
// the opt-out audit trail. Neither table is ever updated in place.
type ComplianceRepository struct {
	db *sqlx.DB
}

func NewComplianceRepository(db *sqlx.DB) *ComplianceRepository {
	return &ComplianceRepository{db: db}
}

const flagEventColumns = `id, contact_id, flag_type, action, flag_reason, applies_to, expires_at, created_by, created_at`

// AppendFlagEvent appends one set/expire entry to the flag log.
func (r *ComplianceRepository) AppendFlagEvent(ctx context.Context, event *domain.ContactFlagEvent) (*domain.ContactFlagEvent, error) {
	query := `
		INSERT INTO contact_flag_events (contact_id, flag_type, action, flag_reason, applies_to, expires_at, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`

	result, err := r.db.ExecContext(ctx, query,
		event.ContactID, event.FlagType, event.Action, event.FlagReason,
		event.AppliesTo, event.ExpiresAt, event.CreatedBy)
	if err != nil {
		return nil, fmt.Errorf("failed to append flag event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	query = `SELECT ` + flagEventColumns + ` FROM contact_flag_events WHERE id = ?`
	var created domain.ContactFlagEvent
	if err := r.db.GetContext(ctx, &created, query, id); err != nil {
		return nil, fmt.Errorf("failed to get flag event: %w", err)
	}

	return &created, nil
}

// LatestFlagEvent returns the newest log entry for a (contact, flag type)
// pair, or nil, nil when the contact was never flagged. Current flag state
// is derived from this single row: the contact is flagged iff the entry is
// a "set" whose expires_at is NULL or in the future.
func (r *ComplianceRepository) LatestFlagEvent(ctx context.Context, contactID int64, flagType domain.FlagType) (*domain.ContactFlagEvent, error) {
	query := `
		SELECT ` + flagEventColumns + `
		FROM contact_flag_events
		WHERE contact_id = ? AND flag_type = ?
		ORDER BY id DESC
		LIMIT 1
	`

	var event domain.ContactFlagEvent
	if err := r.db.GetContext(ctx, &event, query, contactID, flagType); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest flag event: %w", err)
	}

	return &event, nil
}

func (r *ComplianceRepository) ListFlagEvents(ctx context.Context, contactID int64) ([]domain.ContactFlagEvent, error) {
	query := `
		SELECT ` + flagEventColumns + `
		FROM contact_flag_events
		WHERE contact_id = ?
		ORDER BY id DESC
	`

	var events []domain.ContactFlagEvent
	if err := r.db.SelectContext(ctx, &events, query, contactID); err != nil {
		return nil, fmt.Errorf("failed to list flag events: %w", err)
	}

	return events, nil
}

const auditColumns = `id, contact_id, phone_number, contact_name, opt_out_method, keyword_used, source, message_id, created_at`

func (r *ComplianceRepository) CreateAudit(ctx context.Context, audit *domain.OptOutAudit) (*domain.OptOutAudit, error) {
	query := `
		INSERT INTO opt_out_audits (contact_id, phone_number, contact_name, opt_out_method, keyword_used, source, message_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`

	result, err := r.db.ExecContext(ctx, query,
		audit.ContactID, audit.PhoneNumber, audit.ContactName,
		audit.OptOutMethod, audit.KeywordUsed, audit.Source, audit.MessageID)
	if err != nil {
		return nil, fmt.Errorf("failed to create opt-out audit: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	query = `SELECT ` + auditColumns + ` FROM opt_out_audits WHERE id = ?`
	var created domain.OptOutAudit
	if err := r.db.GetContext(ctx, &created, query, id); err != nil {
		return nil, fmt.Errorf("failed to get opt-out audit: %w", err)
	}

	return &created, nil
}

func (r *ComplianceRepository) ListAudits(ctx context.Context, page, pageSize int) ([]domain.OptOutAudit, int64, error) {
	offset := (page - 1) * pageSize

	var totalCount int64
	if err := r.db.GetContext(ctx, &totalCount, "SELECT COUNT(*) FROM opt_out_audits"); err != nil {
		return nil, 0, fmt.Errorf("failed to count audits: %w", err)
	}

	query := `
		SELECT ` + auditColumns + `
		FROM opt_out_audits
		ORDER BY id DESC
		LIMIT ? OFFSET ?
	`

	var audits []domain.OptOutAudit
	if err := r.db.SelectContext(ctx, &audits, query, pageSize, offset); err != nil {
		return nil, 0, fmt.Errorf("failed to list audits: %w", err)
	}

	return audits, totalCount, nil
}
