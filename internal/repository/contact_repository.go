package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ozanyurt/crm-comms-service/internal/domain"
)

// ContactRepository handles database operations for contacts.
type ContactRepository struct {
	db *sqlx.DB
}

func NewContactRepository(db *sqlx.DB) *ContactRepository {
	return &ContactRepository{db: db}
}

const contactColumns = `id, phone, first_name, last_name, email, auto_created, created_at, updated_at`

// GetByPhone returns nil, nil when no contact has the given (already
// normalized) phone number.
func (r *ContactRepository) GetByPhone(ctx context.Context, phone string) (*domain.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE phone = ?`

	var contact domain.Contact
	if err := r.db.GetContext(ctx, &contact, query, phone); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get contact by phone: %w", err)
	}

	return &contact, nil
}

func (r *ContactRepository) GetByID(ctx context.Context, id int64) (*domain.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE id = ?`

	var contact domain.Contact
	if err := r.db.GetContext(ctx, &contact, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}

	return &contact, nil
}

// Create inserts a new contact. A duplicate phone number returns
// domain.ErrAlreadyExists; the caller re-fetches by phone.
func (r *ContactRepository) Create(ctx context.Context, contact *domain.Contact) (*domain.Contact, error) {
	query := `
		INSERT INTO contacts (phone, first_name, last_name, email, auto_created, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`

	result, err := r.db.ExecContext(ctx, query,
		contact.Phone, contact.FirstName, contact.LastName, contact.Email, contact.AutoCreated)
	if err != nil {
		if isDuplicateKey(err) {
			return nil, domain.ErrAlreadyExists
		}
		return nil, fmt.Errorf("failed to create contact: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	return r.GetByID(ctx, id)
}

func (r *ContactRepository) Update(ctx context.Context, contact *domain.Contact) error {
	query := `
		UPDATE contacts
		SET first_name = ?, last_name = ?, email = ?, auto_created = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		contact.FirstName, contact.LastName, contact.Email, contact.AutoCreated, contact.ID)
	if err != nil {
		return fmt.Errorf("failed to update contact: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("no contact found with id %d", contact.ID)
	}

	return nil
}

func (r *ContactRepository) List(ctx context.Context, page, pageSize int) ([]domain.Contact, int64, error) {
	offset := (page - 1) * pageSize

	var totalCount int64
	if err := r.db.GetContext(ctx, &totalCount, "SELECT COUNT(*) FROM contacts"); err != nil {
		return nil, 0, fmt.Errorf("failed to count contacts: %w", err)
	}

	query := `
		SELECT ` + contactColumns + `
		FROM contacts
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`

	var contacts []domain.Contact
	if err := r.db.SelectContext(ctx, &contacts, query, pageSize, offset); err != nil {
		return nil, 0, fmt.Errorf("failed to list contacts: %w", err)
	}

	return contacts, totalCount, nil
}
