package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ozanyurt/crm-comms-service/internal/domain"
)

// In-memory fakes shared by the service tests. They enforce the same
// unique-key semantics as the MySQL repositories so the duplicate-delivery
// paths can be exercised without a database.

type fakeContactStore struct {
	byPhone     map[string]*domain.Contact
	nextID      int64
	createCalls int
	failCreate  error
}

func newFakeContactStore() *fakeContactStore {
	return &fakeContactStore{byPhone: make(map[string]*domain.Contact)}
}

func (f *fakeContactStore) GetByPhone(_ context.Context, phone string) (*domain.Contact, error) {
	if c, ok := f.byPhone[phone]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeContactStore) Create(_ context.Context, contact *domain.Contact) (*domain.Contact, error) {
	f.createCalls++
	if f.failCreate != nil {
		return nil, f.failCreate
	}
	if _, ok := f.byPhone[contact.Phone]; ok {
		return nil, domain.ErrAlreadyExists
	}
	f.nextID++
	stored := *contact
	stored.ID = f.nextID
	f.byPhone[contact.Phone] = &stored
	copied := stored
	return &copied, nil
}

type fakeConversationStore struct {
	byID    map[int64]*domain.Conversation
	nextID  int64
	touched map[int64]time.Time
}

func newFakeConversationStore() *fakeConversationStore {
	return &fakeConversationStore{
		byID:    make(map[int64]*domain.Conversation),
		touched: make(map[int64]time.Time),
	}
}

func (f *fakeConversationStore) GetByOpenPhoneID(_ context.Context, openPhoneID string) (*domain.Conversation, error) {
	for _, c := range f.byID {
		if c.OpenPhoneID != nil && *c.OpenPhoneID == openPhoneID {
			copied := *c
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeConversationStore) GetLatestForContact(_ context.Context, contactID int64) (*domain.Conversation, error) {
	var latest *domain.Conversation
	for _, c := range f.byID {
		if c.ContactID != contactID {
			continue
		}
		if latest == nil || c.LastActivityAt.After(latest.LastActivityAt) {
			latest = c
		}
	}
	if latest == nil {
		return nil, nil
	}
	copied := *latest
	return &copied, nil
}

func (f *fakeConversationStore) Create(_ context.Context, conv *domain.Conversation) (*domain.Conversation, error) {
	if conv.OpenPhoneID != nil {
		for _, c := range f.byID {
			if c.OpenPhoneID != nil && *c.OpenPhoneID == *conv.OpenPhoneID {
				return nil, domain.ErrAlreadyExists
			}
		}
	}
	f.nextID++
	stored := *conv
	stored.ID = f.nextID
	f.byID[stored.ID] = &stored
	copied := stored
	return &copied, nil
}

func (f *fakeConversationStore) SetOpenPhoneID(_ context.Context, id int64, openPhoneID string) error {
	for _, c := range f.byID {
		if c.OpenPhoneID != nil && *c.OpenPhoneID == openPhoneID {
			return domain.ErrAlreadyExists
		}
	}
	c, ok := f.byID[id]
	if !ok {
		return fmt.Errorf("conversation %d not found", id)
	}
	c.OpenPhoneID = &openPhoneID
	return nil
}

func (f *fakeConversationStore) TouchLastActivity(_ context.Context, id int64, at time.Time) error {
	c, ok := f.byID[id]
	if !ok {
		return fmt.Errorf("conversation %d not found", id)
	}
	if at.After(c.LastActivityAt) {
		c.LastActivityAt = at
	}
	f.touched[id] = at
	return nil
}

type fakeActivityStore struct {
	byOpenPhoneID map[string]*domain.Activity
	nextID        int64
}

func newFakeActivityStore() *fakeActivityStore {
	return &fakeActivityStore{byOpenPhoneID: make(map[string]*domain.Activity)}
}

func (f *fakeActivityStore) GetByOpenPhoneID(_ context.Context, openPhoneID string) (*domain.Activity, error) {
	if a, ok := f.byOpenPhoneID[openPhoneID]; ok {
		copied := *a
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeActivityStore) Create(_ context.Context, activity *domain.Activity) (*domain.Activity, error) {
	if _, ok := f.byOpenPhoneID[activity.OpenPhoneID]; ok {
		return nil, domain.ErrAlreadyExists
	}
	f.nextID++
	stored := *activity
	stored.ID = f.nextID
	f.byOpenPhoneID[stored.OpenPhoneID] = &stored
	copied := stored
	return &copied, nil
}

func (f *fakeActivityStore) byID(id int64) *domain.Activity {
	for _, a := range f.byOpenPhoneID {
		if a.ID == id {
			return a
		}
	}
	return nil
}

func (f *fakeActivityStore) UpdateMessage(_ context.Context, id int64, status, body string, mediaURLs domain.StringList) error {
	a := f.byID(id)
	if a == nil {
		return fmt.Errorf("activity %d not found", id)
	}
	a.Status = status
	a.Body = body
	a.MediaURLs = mediaURLs
	return nil
}

func (f *fakeActivityStore) UpdateCall(_ context.Context, id int64, status string, durationSeconds int64) error {
	a := f.byID(id)
	if a == nil {
		return fmt.Errorf("activity %d not found", id)
	}
	a.Status = status
	a.DurationSeconds = &durationSeconds
	return nil
}

func (f *fakeActivityStore) SetRecordingURL(_ context.Context, id int64, url string) error {
	a := f.byID(id)
	if a == nil {
		return fmt.Errorf("activity %d not found", id)
	}
	a.RecordingURL = &url
	return nil
}

func (f *fakeActivityStore) SetAISummary(_ context.Context, id int64, summary string) error {
	a := f.byID(id)
	if a == nil {
		return fmt.Errorf("activity %d not found", id)
	}
	a.AISummary = &summary
	return nil
}

func (f *fakeActivityStore) SetAITranscript(_ context.Context, id int64, transcript string) error {
	a := f.byID(id)
	if a == nil {
		return fmt.Errorf("activity %d not found", id)
	}
	a.AITranscript = &transcript
	return nil
}

type fakeComplianceStore struct {
	flagEvents []domain.ContactFlagEvent
	audits     []domain.OptOutAudit
	nextID     int64
}

func newFakeComplianceStore() *fakeComplianceStore {
	return &fakeComplianceStore{}
}

func (f *fakeComplianceStore) AppendFlagEvent(_ context.Context, event *domain.ContactFlagEvent) (*domain.ContactFlagEvent, error) {
	f.nextID++
	stored := *event
	stored.ID = f.nextID
	stored.CreatedAt = time.Now()
	f.flagEvents = append(f.flagEvents, stored)
	copied := stored
	return &copied, nil
}

func (f *fakeComplianceStore) LatestFlagEvent(_ context.Context, contactID int64, flagType domain.FlagType) (*domain.ContactFlagEvent, error) {
	for i := len(f.flagEvents) - 1; i >= 0; i-- {
		e := f.flagEvents[i]
		if e.ContactID == contactID && e.FlagType == flagType {
			return &e, nil
		}
	}
	return nil, nil
}

func (f *fakeComplianceStore) ListFlagEvents(_ context.Context, contactID int64) ([]domain.ContactFlagEvent, error) {
	var out []domain.ContactFlagEvent
	for _, e := range f.flagEvents {
		if e.ContactID == contactID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeComplianceStore) CreateAudit(_ context.Context, audit *domain.OptOutAudit) (*domain.OptOutAudit, error) {
	f.nextID++
	stored := *audit
	stored.ID = f.nextID
	f.audits = append(f.audits, stored)
	copied := stored
	return &copied, nil
}

type sentSMS struct {
	to   string
	body string
}

type fakeSMSSender struct {
	sent    []sentSMS
	failErr error
}

func (f *fakeSMSSender) SendSMS(_ context.Context, to, body string, _ bool) error {
	if f.failErr != nil {
		return f.failErr
	}
	f.sent = append(f.sent, sentSMS{to: to, body: body})
	return nil
}

type fakeOptOutCache struct {
	values map[int64]bool
	sets   int
}

func newFakeOptOutCache() *fakeOptOutCache {
	return &fakeOptOutCache{values: make(map[int64]bool)}
}

func (f *fakeOptOutCache) GetOptOutStatus(_ context.Context, contactID int64) (bool, bool, error) {
	v, ok := f.values[contactID]
	return v, ok, nil
}

func (f *fakeOptOutCache) SetOptOutStatus(_ context.Context, contactID int64, optedOut bool) error {
	f.sets++
	f.values[contactID] = optedOut
	return nil
}

type fakeWebhookEventLog struct {
	deliveries []string
	errorsByID map[int64]string
	nextID     int64
	failCreate error
}

func newFakeWebhookEventLog() *fakeWebhookEventLog {
	return &fakeWebhookEventLog{errorsByID: make(map[int64]string)}
}

func (f *fakeWebhookEventLog) Create(_ context.Context, eventType, _ string) (int64, error) {
	if f.failCreate != nil {
		return 0, f.failCreate
	}
	f.nextID++
	f.deliveries = append(f.deliveries, eventType)
	return f.nextID, nil
}

func (f *fakeWebhookEventLog) RecordError(_ context.Context, id int64, message string) error {
	f.errorsByID[id] = message
	return nil
}

var errFakeStore = errors.New("store failure")
