package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ozanyurt/crm-comms-service/internal/domain"
	"github.com/ozanyurt/crm-comms-service/pkg/logger"
	"github.com/ozanyurt/crm-comms-service/pkg/phone"
)

type contactStore interface {
	GetByPhone(ctx context.Context, phone string) (*domain.Contact, error)
	Create(ctx context.Context, contact *domain.Contact) (*domain.Contact, error)
}

type conversationStore interface {
	GetByOpenPhoneID(ctx context.Context, openPhoneID string) (*domain.Conversation, error)
	GetLatestForContact(ctx context.Context, contactID int64) (*domain.Conversation, error)
	Create(ctx context.Context, conv *domain.Conversation) (*domain.Conversation, error)
	SetOpenPhoneID(ctx context.Context, id int64, openPhoneID string) error
	TouchLastActivity(ctx context.Context, id int64, at time.Time) error
}

// Resolver turns raw phone numbers and external thread ids into the
// canonical Contact/Conversation rows. Lookup-then-create is not atomic
// against a concurrent duplicate webhook; when the database rejects a
// create with a unique-constraint violation the resolver re-fetches and
// proceeds with the winner's row.
type Resolver struct {
	contacts      contactStore
	conversations conversationStore
}

func NewResolver(contacts contactStore, conversations conversationStore) *Resolver {
	return &Resolver{contacts: contacts, conversations: conversations}
}

// GetOrCreateContact returns the contact for a phone number, creating a
// placeholder one on first sight. The placeholder carries the number as its
// name and AutoCreated=true so it is distinguishable from manual entries.
func (r *Resolver) GetOrCreateContact(ctx context.Context, rawPhone string) (*domain.Contact, error) {
	normalized, err := phone.NormalizeE164(rawPhone)
	if err != nil {
		return nil, fmt.Errorf("invalid phone number %q: %w", rawPhone, err)
	}

	contact, err := r.contacts.GetByPhone(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if contact != nil {
		return contact, nil
	}

	contact, err = r.contacts.Create(ctx, &domain.Contact{
		Phone:       normalized,
		FirstName:   normalized,
		AutoCreated: true,
	})
	if errors.Is(err, domain.ErrAlreadyExists) {
		// Lost the race to a concurrent delivery; the other row wins.
		contact, err = r.contacts.GetByPhone(ctx, normalized)
		if err != nil {
			return nil, err
		}
		if contact == nil {
			return nil, fmt.Errorf("contact %s vanished after duplicate-key create", normalized)
		}
		return contact, nil
	}
	if err != nil {
		return nil, err
	}

	logger.Infof("Auto-created contact %d for %s", contact.ID, normalized)
	return contact, nil
}

// GetOrCreateConversation resolves the thread for (contact, external thread
// id). Thread-id lookup wins; without a thread id the contact's most recent
// conversation is reused. A conversation created before its thread id was
// known gets the id backfilled so later events converge onto the same row.
func (r *Resolver) GetOrCreateConversation(ctx context.Context, contact *domain.Contact, threadID string, participants []string) (*domain.Conversation, error) {
	if threadID != "" {
		conv, err := r.conversations.GetByOpenPhoneID(ctx, threadID)
		if err != nil {
			return nil, err
		}
		if conv != nil {
			return conv, nil
		}
	}

	latest, err := r.conversations.GetLatestForContact(ctx, contact.ID)
	if err != nil {
		return nil, err
	}

	if latest != nil {
		if threadID == "" || (latest.OpenPhoneID != nil && *latest.OpenPhoneID == threadID) {
			return latest, nil
		}
		if latest.OpenPhoneID == nil {
			if err := r.conversations.SetOpenPhoneID(ctx, latest.ID, threadID); err != nil {
				if errors.Is(err, domain.ErrAlreadyExists) {
					return r.refetchByThreadID(ctx, threadID)
				}
				return nil, err
			}
			latest.OpenPhoneID = &threadID
			return latest, nil
		}
	}

	conv := &domain.Conversation{
		ContactID:    contact.ID,
		Participants: participants,
	}
	if threadID != "" {
		conv.OpenPhoneID = &threadID
	}

	created, err := r.conversations.Create(ctx, conv)
	if errors.Is(err, domain.ErrAlreadyExists) {
		return r.refetchByThreadID(ctx, threadID)
	}
	if err != nil {
		return nil, err
	}

	return created, nil
}

// TouchConversation advances the thread's last-activity clock; repository
// semantics guarantee it never moves backwards.
func (r *Resolver) TouchConversation(ctx context.Context, conversationID int64, at time.Time) error {
	return r.conversations.TouchLastActivity(ctx, conversationID, at)
}

func (r *Resolver) refetchByThreadID(ctx context.Context, threadID string) (*domain.Conversation, error) {
	conv, err := r.conversations.GetByOpenPhoneID(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, fmt.Errorf("conversation %s vanished after duplicate-key create", threadID)
	}
	return conv, nil
}
