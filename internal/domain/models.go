package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrAlreadyExists is returned by repository Create methods when a unique
// constraint rejects the row. Callers re-fetch and continue as an update;
// the database is the serialization point for duplicate webhook deliveries.
var ErrAlreadyExists = errors.New("row already exists")

type ActivityType string

const (
	ActivityMessage ActivityType = "message"
	ActivityCall    ActivityType = "call"
)

type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

type FlagType string

const (
	FlagOptedOut     FlagType = "opted_out"
	FlagDoNotContact FlagType = "do_not_contact"
)

// FlagAction distinguishes the two kinds of entries in the append-only
// contact flag log: a flag being set and a flag being expired.
type FlagAction string

const (
	FlagActionSet    FlagAction = "set"
	FlagActionExpire FlagAction = "expire"
)

// StringList stores a JSON array in a TEXT column. sqlx has no native
// slice mapping, so the Valuer/Scanner pair does the encoding.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal string list: %w", err)
	}
	return string(data), nil
}

func (l *StringList) Scan(src any) error {
	if src == nil {
		*l = nil
		return nil
	}

	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for StringList", src)
	}

	if len(data) == 0 {
		*l = nil
		return nil
	}
	return json.Unmarshal(data, l)
}

// Contact is a person reachable at an E.164 phone number. Contacts created
// by the webhook pipeline carry the phone number as a placeholder name and
// AutoCreated=true so they can be told apart from manually entered ones.
type Contact struct {
	ID          int64     `db:"id" json:"id"`
	Phone       string    `db:"phone" json:"phone"`
	FirstName   string    `db:"first_name" json:"firstName"`
	LastName    string    `db:"last_name" json:"lastName"`
	Email       string    `db:"email" json:"email"`
	AutoCreated bool      `db:"auto_created" json:"autoCreated"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// Conversation groups activities between the business and one contact.
// OpenPhoneID is the provider's thread id; it can arrive later than the
// conversation itself and is backfilled once known.
type Conversation struct {
	ID             int64      `db:"id" json:"id"`
	ContactID      int64      `db:"contact_id" json:"contactId"`
	OpenPhoneID    *string    `db:"openphone_id" json:"openphoneId,omitempty"`
	Participants   StringList `db:"participants" json:"participants"`
	LastActivityAt time.Time  `db:"last_activity_at" json:"lastActivityAt"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updatedAt"`
}

// Activity is a single message or call. OpenPhoneID is the idempotency key:
// every webhook referencing the same external id lands on the same row.
type Activity struct {
	ID              int64        `db:"id" json:"id"`
	ConversationID  int64        `db:"conversation_id" json:"conversationId"`
	ContactID       int64        `db:"contact_id" json:"contactId"`
	OpenPhoneID     string       `db:"openphone_id" json:"openphoneId"`
	ActivityType    ActivityType `db:"activity_type" json:"activityType"`
	Direction       Direction    `db:"direction" json:"direction"`
	Status          string       `db:"status" json:"status"`
	Body            string       `db:"body" json:"body"`
	DurationSeconds *int64       `db:"duration_seconds" json:"durationSeconds,omitempty"`
	RecordingURL    *string      `db:"recording_url" json:"recordingUrl,omitempty"`
	AISummary       *string      `db:"ai_summary" json:"aiSummary,omitempty"`
	AITranscript    *string      `db:"ai_transcript" json:"aiTranscript,omitempty"`
	MediaURLs       StringList   `db:"media_urls" json:"mediaUrls"`
	CreatedAt       time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time    `db:"updated_at" json:"updatedAt"`
}

// ContactFlagEvent is one entry in the append-only compliance log. Setting a
// flag appends a "set" event; opting back in appends an "expire" event rather
// than mutating the original row, so the full history stays auditable.
type ContactFlagEvent struct {
	ID         int64      `db:"id" json:"id"`
	ContactID  int64      `db:"contact_id" json:"contactId"`
	FlagType   FlagType   `db:"flag_type" json:"flagType"`
	Action     FlagAction `db:"action" json:"action"`
	FlagReason string     `db:"flag_reason" json:"flagReason"`
	AppliesTo  string     `db:"applies_to" json:"appliesTo"`
	ExpiresAt  *time.Time `db:"expires_at" json:"expiresAt,omitempty"`
	CreatedBy  string     `db:"created_by" json:"createdBy"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
}

// OptOutAudit records one opt-out or opt-in decision, including the literal
// keyword that triggered it. Append-only.
type OptOutAudit struct {
	ID           int64     `db:"id" json:"id"`
	ContactID    int64     `db:"contact_id" json:"contactId"`
	PhoneNumber  string    `db:"phone_number" json:"phoneNumber"`
	ContactName  string    `db:"contact_name" json:"contactName"`
	OptOutMethod string    `db:"opt_out_method" json:"optOutMethod"`
	KeywordUsed  string    `db:"keyword_used" json:"keywordUsed"`
	Source       string    `db:"source" json:"source"`
	MessageID    string    `db:"message_id" json:"messageId"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// WebhookEvent is the raw delivery log, written before dispatch. It exists
// for audit and replay; Processed stays false (write-once) and ErrorMessage
// is filled in best-effort when a handler reports failure.
type WebhookEvent struct {
	ID           int64     `db:"id" json:"id"`
	EventType    string    `db:"event_type" json:"eventType"`
	Payload      string    `db:"payload" json:"payload"`
	Processed    bool      `db:"processed" json:"processed"`
	ErrorMessage *string   `db:"error_message" json:"errorMessage,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}
