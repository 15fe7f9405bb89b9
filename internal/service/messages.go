package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ozanyurt/crm-comms-service/internal/domain"
	"github.com/ozanyurt/crm-comms-service/pkg/logger"
)

type messageActivityStore interface {
	GetByOpenPhoneID(ctx context.Context, openPhoneID string) (*domain.Activity, error)
	Create(ctx context.Context, activity *domain.Activity) (*domain.Activity, error)
	UpdateMessage(ctx context.Context, id int64, status, body string, mediaURLs domain.StringList) error
}

type entityResolver interface {
	GetOrCreateContact(ctx context.Context, rawPhone string) (*domain.Contact, error)
	GetOrCreateConversation(ctx context.Context, contact *domain.Contact, threadID string, participants []string) (*domain.Conversation, error)
	TouchConversation(ctx context.Context, conversationID int64, at time.Time) error
}

type complianceGate interface {
	ProcessIncomingMessage(ctx context.Context, contact *domain.Contact, text, messageID, source string) (domain.OptOutResult, error)
}

// MessageService handles message.received / message.delivered /
// message.failed webhooks: idempotent upsert of the message Activity plus
// the synchronous compliance gate for inbound text.
type MessageService struct {
	activities messageActivityStore
	resolver   entityResolver
	optOut     complianceGate
}

func NewMessageService(activities messageActivityStore, resolver entityResolver, optOut complianceGate) *MessageService {
	return &MessageService{activities: activities, resolver: resolver, optOut: optOut}
}

func (s *MessageService) HandleMessageEvent(ctx context.Context, kind domain.EventKind, object json.RawMessage) domain.WebhookResult {
	var msg domain.MessageObject
	if err := json.Unmarshal(object, &msg); err != nil {
		return domain.ResultError("malformed message payload: " + err.Error())
	}
	if msg.ID == "" {
		return domain.ResultError("message payload missing id")
	}

	direction := domain.Direction(msg.Direction)
	if direction != domain.DirectionIncoming && direction != domain.DirectionOutgoing {
		return domain.ResultError("message payload has unknown direction: " + msg.Direction)
	}

	contactPhone := msg.From
	if direction == domain.DirectionOutgoing {
		if len(msg.To) == 0 {
			return domain.ResultError("outgoing message payload missing recipients")
		}
		contactPhone = msg.To[0]
	}
	if contactPhone == "" {
		return domain.ResultError("message payload missing sender")
	}

	contact, err := s.resolver.GetOrCreateContact(ctx, contactPhone)
	if err != nil {
		return domain.ResultError("failed to resolve contact: " + err.Error())
	}

	participants := append([]string{msg.From}, msg.To...)
	conv, err := s.resolver.GetOrCreateConversation(ctx, contact, msg.ConversationID, participants)
	if err != nil {
		return domain.ResultError("failed to resolve conversation: " + err.Error())
	}

	status := msg.Status
	if status == "" {
		status = "received"
	}

	mediaURLs := make(domain.StringList, 0, len(msg.Media))
	for _, m := range msg.Media {
		if m.URL != "" {
			mediaURLs = append(mediaURLs, m.URL)
		}
	}

	result, err := s.upsertMessage(ctx, conv, contact, &msg, direction, status, mediaURLs)
	if err != nil {
		return domain.ResultError(err.Error())
	}

	if err := s.resolver.TouchConversation(ctx, conv.ID, eventTime(msg.CreatedAt)); err != nil {
		logger.Warnf("failed to touch conversation %d: %v", conv.ID, err)
	}

	// Compliance gate: only genuinely inbound text can opt a contact out or
	// back in. Delivery receipts for our own messages never reach it.
	if kind == domain.KindMessageReceived && direction == domain.DirectionIncoming {
		optRes, err := s.optOut.ProcessIncomingMessage(ctx, contact, msg.Text, msg.ID, "openphone_webhook")
		if err != nil {
			res := domain.ResultError("compliance processing failed: " + err.Error())
			res.ActivityID = result.ActivityID
			return res
		}
		if optRes.Status != domain.OptOutStatusNone {
			result.OptOut = &optRes
		}
	}

	return result
}

func (s *MessageService) upsertMessage(
	ctx context.Context,
	conv *domain.Conversation,
	contact *domain.Contact,
	msg *domain.MessageObject,
	direction domain.Direction,
	status string,
	mediaURLs domain.StringList,
) (domain.WebhookResult, error) {
	existing, err := s.activities.GetByOpenPhoneID(ctx, msg.ID)
	if err != nil {
		return domain.WebhookResult{}, err
	}

	if existing != nil {
		if err := s.activities.UpdateMessage(ctx, existing.ID, status, msg.Text, mediaURLs); err != nil {
			return domain.WebhookResult{}, err
		}
		return domain.ResultUpdated(existing.ID), nil
	}

	created, err := s.activities.Create(ctx, &domain.Activity{
		ConversationID: conv.ID,
		ContactID:      contact.ID,
		OpenPhoneID:    msg.ID,
		ActivityType:   domain.ActivityMessage,
		Direction:      direction,
		Status:         status,
		Body:           msg.Text,
		MediaURLs:      mediaURLs,
	})
	if errors.Is(err, domain.ErrAlreadyExists) {
		// Duplicate delivery slipped past the lookup; fold into an update.
		existing, err = s.activities.GetByOpenPhoneID(ctx, msg.ID)
		if err != nil {
			return domain.WebhookResult{}, err
		}
		if err := s.activities.UpdateMessage(ctx, existing.ID, status, msg.Text, mediaURLs); err != nil {
			return domain.WebhookResult{}, err
		}
		return domain.ResultUpdated(existing.ID), nil
	}
	if err != nil {
		return domain.WebhookResult{}, err
	}

	result := domain.ResultCreated(created.ID)
	result.MediaCount = len(mediaURLs)
	return result, nil
}

// eventTime parses the provider timestamp, falling back to now; an
// unparseable timestamp should not fail the delivery.
func eventTime(raw string) time.Time {
	if raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t
		}
	}
	return time.Now().UTC()
}
