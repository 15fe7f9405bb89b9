package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/ozanyurt/crm-comms-service/internal/domain"
	"github.com/ozanyurt/crm-comms-service/pkg/logger"
	"github.com/ozanyurt/crm-comms-service/pkg/phone"
)

type callActivityStore interface {
	GetByOpenPhoneID(ctx context.Context, openPhoneID string) (*domain.Activity, error)
	Create(ctx context.Context, activity *domain.Activity) (*domain.Activity, error)
	UpdateCall(ctx context.Context, id int64, status string, durationSeconds int64) error
	SetRecordingURL(ctx context.Context, id int64, url string) error
	SetAISummary(ctx context.Context, id int64, summary string) error
	SetAITranscript(ctx context.Context, id int64, transcript string) error
}

// CallService handles call.completed/call.missed plus the three enrichment
// events that attach to a call afterwards. Enrichments arrive in any order,
// possibly before the call itself: a missing target is a skip, never an
// error, and every attachment is last-write-wins so replays converge.
type CallService struct {
	activities callActivityStore
	resolver   entityResolver

	// The business's own number, excluded when deriving the contact from
	// a call's participant list.
	businessNumber string
}

func NewCallService(activities callActivityStore, resolver entityResolver, businessNumber string) *CallService {
	normalized := businessNumber
	if businessNumber != "" {
		if n, err := phone.NormalizeE164(businessNumber); err == nil {
			normalized = n
		}
	}
	return &CallService{activities: activities, resolver: resolver, businessNumber: normalized}
}

func (s *CallService) HandleCallEvent(ctx context.Context, kind domain.EventKind, object json.RawMessage) domain.WebhookResult {
	var call domain.CallObject
	if err := json.Unmarshal(object, &call); err != nil {
		return domain.ResultError("malformed call payload: " + err.Error())
	}
	if call.ID == "" {
		return domain.ResultError("call payload missing id")
	}
	if len(call.Participants) == 0 {
		return domain.ResultError("call payload missing participants")
	}

	contactPhone := s.contactParticipant(call.Participants)

	contact, err := s.resolver.GetOrCreateContact(ctx, contactPhone)
	if err != nil {
		return domain.ResultError("failed to resolve contact: " + err.Error())
	}

	conv, err := s.resolver.GetOrCreateConversation(ctx, contact, call.ConversationID, call.Participants)
	if err != nil {
		return domain.ResultError("failed to resolve conversation: " + err.Error())
	}

	direction := domain.Direction(call.Direction)
	if direction != domain.DirectionIncoming && direction != domain.DirectionOutgoing {
		direction = domain.DirectionIncoming
	}

	status := call.Status
	if status == "" {
		if kind == domain.KindCallMissed {
			status = "missed"
		} else {
			status = "completed"
		}
	}

	result, err := s.upsertCall(ctx, conv, contact, &call, direction, status)
	if err != nil {
		return domain.ResultError(err.Error())
	}

	if err := s.resolver.TouchConversation(ctx, conv.ID, eventTime(call.CompletedAt)); err != nil {
		logger.Warnf("failed to touch conversation %d: %v", conv.ID, err)
	}

	return result
}

func (s *CallService) upsertCall(
	ctx context.Context,
	conv *domain.Conversation,
	contact *domain.Contact,
	call *domain.CallObject,
	direction domain.Direction,
	status string,
) (domain.WebhookResult, error) {
	existing, err := s.activities.GetByOpenPhoneID(ctx, call.ID)
	if err != nil {
		return domain.WebhookResult{}, err
	}

	if existing != nil {
		if err := s.activities.UpdateCall(ctx, existing.ID, status, call.Duration); err != nil {
			return domain.WebhookResult{}, err
		}
		return domain.ResultUpdated(existing.ID), nil
	}

	duration := call.Duration
	created, err := s.activities.Create(ctx, &domain.Activity{
		ConversationID:  conv.ID,
		ContactID:       contact.ID,
		OpenPhoneID:     call.ID,
		ActivityType:    domain.ActivityCall,
		Direction:       direction,
		Status:          status,
		DurationSeconds: &duration,
	})
	if errors.Is(err, domain.ErrAlreadyExists) {
		existing, err = s.activities.GetByOpenPhoneID(ctx, call.ID)
		if err != nil {
			return domain.WebhookResult{}, err
		}
		if err := s.activities.UpdateCall(ctx, existing.ID, status, call.Duration); err != nil {
			return domain.WebhookResult{}, err
		}
		return domain.ResultUpdated(existing.ID), nil
	}
	if err != nil {
		return domain.WebhookResult{}, err
	}

	return domain.ResultCreated(created.ID), nil
}

// HandleRecording attaches a recording URL to the call Activity. A missing
// call is expected (the recording may outrun call.completed, or the call
// predates webhook setup) and yields a skip, not a failure.
func (s *CallService) HandleRecording(ctx context.Context, object json.RawMessage) domain.WebhookResult {
	var rec domain.RecordingObject
	if err := json.Unmarshal(object, &rec); err != nil {
		return domain.ResultError("malformed recording payload: " + err.Error())
	}
	if rec.CallID == "" {
		return domain.ResultError("recording payload missing callId")
	}
	if rec.URL == "" {
		return domain.ResultError("recording payload missing url")
	}

	activity, result := s.lookupCall(ctx, rec.CallID, "recording")
	if activity == nil {
		return result
	}

	if err := s.activities.SetRecordingURL(ctx, activity.ID, rec.URL); err != nil {
		return domain.ResultError(err.Error())
	}

	return domain.ResultUpdated(activity.ID)
}

// HandleSummary attaches the AI summary, same lookup-or-skip rule.
func (s *CallService) HandleSummary(ctx context.Context, object json.RawMessage) domain.WebhookResult {
	var sum domain.SummaryObject
	if err := json.Unmarshal(object, &sum); err != nil {
		return domain.ResultError("malformed summary payload: " + err.Error())
	}
	if sum.CallID == "" {
		return domain.ResultError("summary payload missing callId")
	}

	activity, result := s.lookupCall(ctx, sum.CallID, "summary")
	if activity == nil {
		return result
	}

	if err := s.activities.SetAISummary(ctx, activity.ID, sum.Summary); err != nil {
		return domain.ResultError(err.Error())
	}

	return domain.ResultUpdated(activity.ID)
}

// HandleTranscript attaches the structured transcript as raw JSON; the full
// dialogue object is stored, not a flattened text rendering.
func (s *CallService) HandleTranscript(ctx context.Context, object json.RawMessage) domain.WebhookResult {
	var tr domain.TranscriptObject
	if err := json.Unmarshal(object, &tr); err != nil {
		return domain.ResultError("malformed transcript payload: " + err.Error())
	}
	if tr.CallID == "" {
		return domain.ResultError("transcript payload missing callId")
	}
	if len(tr.Transcript) == 0 {
		return domain.ResultError("transcript payload missing transcript")
	}

	activity, result := s.lookupCall(ctx, tr.CallID, "transcript")
	if activity == nil {
		return result
	}

	if err := s.activities.SetAITranscript(ctx, activity.ID, string(tr.Transcript)); err != nil {
		return domain.ResultError(err.Error())
	}

	return domain.ResultUpdated(activity.ID)
}

func (s *CallService) lookupCall(ctx context.Context, callID, enrichment string) (*domain.Activity, domain.WebhookResult) {
	activity, err := s.activities.GetByOpenPhoneID(ctx, callID)
	if err != nil {
		return nil, domain.ResultError(err.Error())
	}
	if activity == nil {
		logger.Warnf("%s arrived for unknown call %s, skipping", enrichment, callID)
		return nil, domain.ResultSkipped(domain.ReasonCallActivityNotFound)
	}
	return activity, domain.WebhookResult{}
}

// contactParticipant picks the participant that is not the business's own
// number; when that cannot be determined the first participant wins.
func (s *CallService) contactParticipant(participants []string) string {
	if s.businessNumber != "" {
		for _, p := range participants {
			if n, err := phone.NormalizeE164(p); err == nil && n != s.businessNumber {
				return p
			}
		}
	}
	return participants[0]
}
