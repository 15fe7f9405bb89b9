package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ozanyurt/crm-comms-service/internal/domain"
	"github.com/ozanyurt/crm-comms-service/pkg/phone"
)

type contactDirectory interface {
	GetByID(ctx context.Context, id int64) (*domain.Contact, error)
	GetByPhone(ctx context.Context, phone string) (*domain.Contact, error)
	Create(ctx context.Context, contact *domain.Contact) (*domain.Contact, error)
	Update(ctx context.Context, contact *domain.Contact) error
	List(ctx context.Context, page, pageSize int) ([]domain.Contact, int64, error)
}

type conversationDirectory interface {
	GetByID(ctx context.Context, id int64) (*domain.Conversation, error)
	List(ctx context.Context, page, pageSize int) ([]domain.Conversation, int64, error)
}

type activityDirectory interface {
	ListForConversation(ctx context.Context, conversationID int64, page, pageSize int) ([]domain.Activity, int64, error)
}

type auditDirectory interface {
	ListAudits(ctx context.Context, page, pageSize int) ([]domain.OptOutAudit, int64, error)
}

type deliveryLogReader interface {
	List(ctx context.Context, page, pageSize int) ([]domain.WebhookEvent, int64, error)
}

// ErrNotFound marks lookups for rows that do not exist; handlers map it to
// a 404.
var ErrNotFound = errors.New("not found")

// CRMService is the thin read/CRUD surface over the entities the webhook
// pipeline maintains. Nothing here mutates compliance state; that goes
// through OptOutService.
type CRMService struct {
	contacts      contactDirectory
	conversations conversationDirectory
	activities    activityDirectory
	audits        auditDirectory
	deliveries    deliveryLogReader
}

func NewCRMService(
	contacts contactDirectory,
	conversations conversationDirectory,
	activities activityDirectory,
	audits auditDirectory,
	deliveries deliveryLogReader,
) *CRMService {
	return &CRMService{
		contacts:      contacts,
		conversations: conversations,
		activities:    activities,
		audits:        audits,
		deliveries:    deliveries,
	}
}

func (s *CRMService) GetContact(ctx context.Context, id int64) (*domain.Contact, error) {
	contact, err := s.contacts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if contact == nil {
		return nil, fmt.Errorf("contact %d: %w", id, ErrNotFound)
	}
	return contact, nil
}

func (s *CRMService) ListContacts(ctx context.Context, page, pageSize int) ([]domain.Contact, int64, error) {
	return s.contacts.List(ctx, page, pageSize)
}

// CreateContact creates a manually entered contact. The phone is normalized
// first so manual entry and webhook auto-creation can never produce two rows
// for one number.
func (s *CRMService) CreateContact(ctx context.Context, rawPhone, firstName, lastName, email string) (*domain.Contact, error) {
	normalized, err := phone.NormalizeE164(rawPhone)
	if err != nil {
		return nil, fmt.Errorf("invalid phone number: %w", err)
	}

	return s.contacts.Create(ctx, &domain.Contact{
		Phone:     normalized,
		FirstName: firstName,
		LastName:  lastName,
		Email:     email,
	})
}

// UpdateContact overwrites the editable fields. Filling in a real name
// clears the auto-created marker.
func (s *CRMService) UpdateContact(ctx context.Context, id int64, firstName, lastName, email string) (*domain.Contact, error) {
	contact, err := s.GetContact(ctx, id)
	if err != nil {
		return nil, err
	}

	contact.FirstName = firstName
	contact.LastName = lastName
	contact.Email = email
	if firstName != "" && firstName != contact.Phone {
		contact.AutoCreated = false
	}

	if err := s.contacts.Update(ctx, contact); err != nil {
		return nil, err
	}

	return contact, nil
}

func (s *CRMService) ListConversations(ctx context.Context, page, pageSize int) ([]domain.Conversation, int64, error) {
	return s.conversations.List(ctx, page, pageSize)
}

func (s *CRMService) ListActivities(ctx context.Context, conversationID int64, page, pageSize int) ([]domain.Activity, int64, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, 0, err
	}
	if conv == nil {
		return nil, 0, fmt.Errorf("conversation %d: %w", conversationID, ErrNotFound)
	}
	return s.activities.ListForConversation(ctx, conversationID, page, pageSize)
}

func (s *CRMService) ListAudits(ctx context.Context, page, pageSize int) ([]domain.OptOutAudit, int64, error) {
	return s.audits.ListAudits(ctx, page, pageSize)
}

func (s *CRMService) ListWebhookEvents(ctx context.Context, page, pageSize int) ([]domain.WebhookEvent, int64, error) {
	return s.deliveries.List(ctx, page, pageSize)
}
