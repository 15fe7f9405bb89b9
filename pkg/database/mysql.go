package database

import (
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/ozanyurt/crm-comms-service/environments"
	"github.com/ozanyurt/crm-comms-service/pkg/logger"
)

func NewMySQLDB(cfg environments.DatabaseConfig) (*sqlx.DB, error) {
	dsn := fmt.Sprintf(
		"%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&collation=utf8mb4_unicode_ci",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName,
	)

	db, err := sqlx.Connect("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Verify connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Infof("Connected to MySQL database")
	return db, nil
}

// RunMigrations creates the schema. The unique indexes on contacts.phone,
// conversations.openphone_id and activities.openphone_id are load-bearing:
// they are the serialization points for concurrent duplicate webhooks.
func RunMigrations(db *sqlx.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS contacts (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			phone VARCHAR(20) NOT NULL,
			first_name VARCHAR(100) NOT NULL DEFAULT '',
			last_name VARCHAR(100) NOT NULL DEFAULT '',
			email VARCHAR(255) NOT NULL DEFAULT '',
			auto_created BOOLEAN NOT NULL DEFAULT FALSE,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			UNIQUE KEY ux_contacts_phone (phone)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`,

		`CREATE TABLE IF NOT EXISTS conversations (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			contact_id BIGINT NOT NULL,
			openphone_id VARCHAR(100),
			participants TEXT,
			last_activity_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			UNIQUE KEY ux_conversations_openphone_id (openphone_id),
			INDEX idx_conversations_contact (contact_id, last_activity_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`,

		`CREATE TABLE IF NOT EXISTS activities (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			conversation_id BIGINT NOT NULL,
			contact_id BIGINT NOT NULL,
			openphone_id VARCHAR(100) NOT NULL,
			activity_type VARCHAR(20) NOT NULL,
			direction VARCHAR(20) NOT NULL,
			status VARCHAR(50) NOT NULL DEFAULT '',
			body TEXT,
			duration_seconds BIGINT,
			recording_url VARCHAR(500),
			ai_summary TEXT,
			ai_transcript LONGTEXT,
			media_urls TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			UNIQUE KEY ux_activities_openphone_id (openphone_id),
			INDEX idx_activities_conversation (conversation_id, created_at),
			INDEX idx_activities_contact (contact_id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`,

		`CREATE TABLE IF NOT EXISTS contact_flag_events (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			contact_id BIGINT NOT NULL,
			flag_type VARCHAR(30) NOT NULL,
			action VARCHAR(10) NOT NULL,
			flag_reason VARCHAR(255) NOT NULL DEFAULT '',
			applies_to VARCHAR(10) NOT NULL DEFAULT 'sms',
			expires_at DATETIME,
			created_by VARCHAR(100) NOT NULL DEFAULT 'system',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_flag_events_contact (contact_id, flag_type, id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`,

		`CREATE TABLE IF NOT EXISTS opt_out_audits (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			contact_id BIGINT NOT NULL,
			phone_number VARCHAR(20) NOT NULL,
			contact_name VARCHAR(200) NOT NULL DEFAULT '',
			opt_out_method VARCHAR(30) NOT NULL,
			keyword_used VARCHAR(50) NOT NULL DEFAULT '',
			source VARCHAR(100) NOT NULL DEFAULT '',
			message_id VARCHAR(100) NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_audits_contact (contact_id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`,

		`CREATE TABLE IF NOT EXISTS webhook_events (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			event_type VARCHAR(100) NOT NULL,
			payload LONGTEXT NOT NULL,
			processed BOOLEAN NOT NULL DEFAULT FALSE,
			error_message TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_webhook_events_type (event_type),
			INDEX idx_webhook_events_created_at (created_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	logger.Infof("Database migrations completed")

	return nil
}

// SeedTestData inserts a handful of demo contacts for local development.
func SeedTestData(db *sqlx.DB) error {
	var count int

	err := db.Get(&count, "SELECT COUNT(*) FROM contacts")
	if err != nil {
		return err
	}

	if count > 0 {
		logger.Infof("Database already has %d contacts, skipping seed", count)
		return nil
	}

	testContacts := []struct {
		phone     string
		firstName string
		lastName  string
		email     string
	}{
		{"+14155550101", "Maria", "Santos", "maria.santos@example.com"},
		{"+14155550102", "James", "Whitfield", "jwhitfield@example.com"},
		{"+14155550103", "Priya", "Raman", "priya.r@example.com"},
		{"+14155550104", "Dan", "Kowalski", ""},
		{"+14155550105", "Lucille", "Tran", "lucille.tran@example.com"},
	}

	for _, c := range testContacts {
		_, err := db.Exec(
			"INSERT INTO contacts (phone, first_name, last_name, email, auto_created) VALUES (?, ?, ?, ?, FALSE)",
			c.phone, c.firstName, c.lastName, c.email,
		)
		if err != nil {
			return fmt.Errorf("failed to seed test data: %w", err)
		}
	}

	logger.Infof("Seeded %d test contacts", len(testContacts))
	return nil
}
