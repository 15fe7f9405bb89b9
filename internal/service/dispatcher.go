package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ozanyurt/crm-comms-service/internal/domain"
	"github.com/ozanyurt/crm-comms-service/pkg/logger"
)

type webhookEventLog interface {
	Create(ctx context.Context, eventType, payload string) (int64, error)
	RecordError(ctx context.Context, id int64, message string) error
}

type messageEventHandler interface {
	HandleMessageEvent(ctx context.Context, kind domain.EventKind, object json.RawMessage) domain.WebhookResult
}

type callEventHandler interface {
	HandleCallEvent(ctx context.Context, kind domain.EventKind, object json.RawMessage) domain.WebhookResult
	HandleRecording(ctx context.Context, object json.RawMessage) domain.WebhookResult
	HandleSummary(ctx context.Context, object json.RawMessage) domain.WebhookResult
	HandleTranscript(ctx context.Context, object json.RawMessage) domain.WebhookResult
}

// Dispatcher is the entry point for provider webhooks. It logs every raw
// delivery (best-effort, audit logging never blocks business processing),
// routes on the closed EventKind enum, and converts anything that goes
// wrong into an error result; it never returns a Go error or panics to its
// caller. Deduplication lives in the handlers, keyed by external id.
type Dispatcher struct {
	events   webhookEventLog
	messages messageEventHandler
	calls    callEventHandler
}

func NewDispatcher(events webhookEventLog, messages messageEventHandler, calls callEventHandler) *Dispatcher {
	return &Dispatcher{events: events, messages: messages, calls: calls}
}

func (d *Dispatcher) ProcessWebhook(ctx context.Context, body []byte) (result domain.WebhookResult) {
	var ev domain.RawEvent
	parseErr := json.Unmarshal(body, &ev)

	eventType := ev.Type
	if eventType == "" {
		eventType = "invalid"
	}

	eventID := d.logDelivery(ctx, eventType, body)

	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("panic while processing %s webhook: %v", eventType, r)
			result = domain.ResultError(fmt.Sprintf("internal error: %v", r))
		}
		if result.Status == domain.StatusError && eventID != 0 {
			if err := d.events.RecordError(ctx, eventID, result.Message); err != nil {
				logger.Warnf("failed to record webhook error: %v", err)
			}
		}
	}()

	if parseErr != nil {
		return domain.ResultError("malformed webhook envelope: " + parseErr.Error())
	}

	kind := domain.ParseEventKind(ev.Type)
	switch kind {
	case domain.KindMessageReceived, domain.KindMessageDelivered, domain.KindMessageFailed:
		return d.messages.HandleMessageEvent(ctx, kind, ev.Data.Object)
	case domain.KindCallCompleted, domain.KindCallMissed:
		return d.calls.HandleCallEvent(ctx, kind, ev.Data.Object)
	case domain.KindCallRecordingCompleted:
		return d.calls.HandleRecording(ctx, ev.Data.Object)
	case domain.KindCallSummaryCompleted:
		return d.calls.HandleSummary(ctx, ev.Data.Object)
	case domain.KindCallTranscriptCompleted:
		return d.calls.HandleTranscript(ctx, ev.Data.Object)
	case domain.KindTokenValidated:
		return domain.WebhookResult{Status: domain.StatusSuccess, Message: "token validated"}
	case domain.KindUnknown:
		// New upstream event types appear without notice; they are not an
		// error source.
		logger.Infof("ignoring unrecognized webhook type %q", ev.Type)
		return domain.ResultIgnored(domain.ReasonUnknownEventType)
	}

	return domain.ResultIgnored(domain.ReasonUnknownEventType)
}

func (d *Dispatcher) logDelivery(ctx context.Context, eventType string, body []byte) int64 {
	if d.events == nil {
		return 0
	}
	id, err := d.events.Create(ctx, eventType, string(body))
	if err != nil {
		logger.Warnf("failed to log webhook delivery: %v", err)
		return 0
	}
	return id
}
