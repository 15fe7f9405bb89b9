package service

import (
	"context"
	"testing"

	"github.com/ozanyurt/crm-comms-service/internal/domain"
)

func TestDefaultOptOutRules_Classification(t *testing.T) {
	rules := DefaultOptOutRules()

	tests := []struct {
		text    string
		matches bool
	}{
		{"STOP", true},
		{"  stop  ", true},
		{"Stop sending me these", true},
		{"stopall", true},
		{"STOP ALL", true},
		{"unsubscribe", true},
		{"Unsubscribe me please", true},
		{"opt out", true},
		{"opt-out", true},
		{"remove me from your list", true},
		{"delete me", true},
		{"CANCEL", true},
		{"end", true},
		{"quit", true},

		{"I'll stop by tomorrow", false},
		{"can't stop thinking about it", false},
		{"the bus stop is around the corner", false},
		{"nonstop flights are better", false},
		{"please cancel the order", false},
		{"cancel my appointment", false},
		{"the meeting will end soon", false},
		{"remove the old filter first", false},
		{"click here to unsubscribe", false},
		{"hello there", false},
		{"", false},
	}

	for _, tt := range tests {
		if _, got := rules.Match(tt.text); got != tt.matches {
			t.Errorf("Match(%q) = %t, want %t", tt.text, got, tt.matches)
		}
	}
}

func TestDefaultOptInRules_Classification(t *testing.T) {
	rules := DefaultOptInRules()

	tests := []struct {
		text    string
		matches bool
	}{
		{"START", true},
		{"start sending again", true},
		{"unstop", true},
		{"subscribe", true},
		{"resume", true},
		{"opt in", true},
		{"opt-in", true},
		{"yes", true},

		// "yes" is exact-only, anything longer is just conversation.
		{"yes please do", false},
		// "unsubscribe" contains "subscribe" but is the opposite request.
		{"unsubscribe", false},
		{"I'd like to subscribe to the newsletter", false},
		{"hello", false},
	}

	for _, tt := range tests {
		if _, got := rules.Match(tt.text); got != tt.matches {
			t.Errorf("Match(%q) = %t, want %t", tt.text, got, tt.matches)
		}
	}
}

func testContact() *domain.Contact {
	return &domain.Contact{
		ID:        1,
		Phone:     "+14155550100",
		FirstName: "Ada",
		LastName:  "Lovelace",
	}
}

func TestProcessIncomingMessage_OptOutIsIdempotent(t *testing.T) {
	store := newFakeComplianceStore()
	sms := &fakeSMSSender{}
	svc := NewOptOutService(store, sms, nil)
	ctx := context.Background()
	contact := testContact()

	res, err := svc.ProcessIncomingMessage(ctx, contact, "STOP", "msg-1", "openphone_webhook")
	if err != nil {
		t.Fatalf("first STOP returned error: %v", err)
	}
	if res.Status != domain.OptOutStatusOptedOut {
		t.Fatalf("expected status opted_out, got %s", res.Status)
	}
	if !res.ConfirmationSent {
		t.Errorf("expected confirmation to be sent")
	}

	res, err = svc.ProcessIncomingMessage(ctx, contact, "STOP", "msg-2", "openphone_webhook")
	if err != nil {
		t.Fatalf("second STOP returned error: %v", err)
	}
	if res.Status != domain.OptOutStatusAlreadyOptedOut {
		t.Fatalf("expected status already_opted_out, got %s", res.Status)
	}

	// One flag event and one audit row no matter how many times STOP arrives.
	if len(store.flagEvents) != 1 {
		t.Errorf("expected 1 flag event, got %d", len(store.flagEvents))
	}
	if len(store.audits) != 1 {
		t.Errorf("expected 1 audit row, got %d", len(store.audits))
	}

	// The confirmation is still sent on the repeat request.
	if len(sms.sent) != 2 {
		t.Errorf("expected 2 confirmation messages, got %d", len(sms.sent))
	}
}

func TestProcessIncomingMessage_StopThenStartReversible(t *testing.T) {
	store := newFakeComplianceStore()
	sms := &fakeSMSSender{}
	svc := NewOptOutService(store, sms, nil)
	ctx := context.Background()
	contact := testContact()

	if _, err := svc.ProcessIncomingMessage(ctx, contact, "STOP", "msg-1", "openphone_webhook"); err != nil {
		t.Fatalf("STOP returned error: %v", err)
	}

	optedOut, err := svc.IsContactOptedOut(ctx, contact.ID)
	if err != nil {
		t.Fatalf("IsContactOptedOut returned error: %v", err)
	}
	if !optedOut {
		t.Fatalf("expected contact to be opted out after STOP")
	}

	res, err := svc.ProcessIncomingMessage(ctx, contact, "START", "msg-2", "openphone_webhook")
	if err != nil {
		t.Fatalf("START returned error: %v", err)
	}
	if res.Status != domain.OptOutStatusOptedIn {
		t.Fatalf("expected status opted_in, got %s", res.Status)
	}

	optedOut, err = svc.IsContactOptedOut(ctx, contact.ID)
	if err != nil {
		t.Fatalf("IsContactOptedOut returned error: %v", err)
	}
	if optedOut {
		t.Fatalf("expected contact to be opted back in after START")
	}

	// The log stays append-only: a "set" entry followed by an "expire" entry.
	if len(store.flagEvents) != 2 {
		t.Fatalf("expected 2 flag events, got %d", len(store.flagEvents))
	}
	if store.flagEvents[0].Action != domain.FlagActionSet {
		t.Errorf("expected first event action set, got %s", store.flagEvents[0].Action)
	}
	if store.flagEvents[1].Action != domain.FlagActionExpire {
		t.Errorf("expected second event action expire, got %s", store.flagEvents[1].Action)
	}

	if len(store.audits) != 2 {
		t.Fatalf("expected 2 audit rows, got %d", len(store.audits))
	}
	if store.audits[0].OptOutMethod != "sms_keyword" {
		t.Errorf("expected first audit method sms_keyword, got %s", store.audits[0].OptOutMethod)
	}
	if store.audits[1].OptOutMethod != "sms_opt_in" {
		t.Errorf("expected second audit method sms_opt_in, got %s", store.audits[1].OptOutMethod)
	}
}

func TestProcessIncomingMessage_ConfirmationFailureKeepsFlag(t *testing.T) {
	store := newFakeComplianceStore()
	sms := &fakeSMSSender{failErr: errFakeStore}
	svc := NewOptOutService(store, sms, nil)
	ctx := context.Background()
	contact := testContact()

	res, err := svc.ProcessIncomingMessage(ctx, contact, "STOP", "msg-1", "openphone_webhook")
	if err != nil {
		t.Fatalf("STOP returned error: %v", err)
	}
	if res.Status != domain.OptOutStatusOptedOut {
		t.Fatalf("expected status opted_out, got %s", res.Status)
	}
	if res.ConfirmationSent {
		t.Errorf("expected ConfirmationSent=false when the send fails")
	}

	// The flag and audit survive the failed confirmation.
	if len(store.flagEvents) != 1 {
		t.Errorf("expected 1 flag event, got %d", len(store.flagEvents))
	}
	if len(store.audits) != 1 {
		t.Errorf("expected 1 audit row, got %d", len(store.audits))
	}
}

func TestProcessIncomingMessage_OrdinaryTextDoesNothing(t *testing.T) {
	store := newFakeComplianceStore()
	sms := &fakeSMSSender{}
	svc := NewOptOutService(store, sms, nil)

	res, err := svc.ProcessIncomingMessage(context.Background(), testContact(), "see you at 3pm", "msg-1", "openphone_webhook")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != domain.OptOutStatusNone {
		t.Fatalf("expected status none, got %s", res.Status)
	}
	if len(store.flagEvents) != 0 || len(store.audits) != 0 || len(sms.sent) != 0 {
		t.Errorf("expected no side effects for ordinary text")
	}
}

func TestIsContactOptedOut_CacheShortCircuitsAndRefreshes(t *testing.T) {
	store := newFakeComplianceStore()
	cache := newFakeOptOutCache()
	svc := NewOptOutService(store, &fakeSMSSender{}, cache)
	ctx := context.Background()

	// A cached value wins even though the store has no events.
	cache.values[7] = true
	optedOut, err := svc.IsContactOptedOut(ctx, 7)
	if err != nil {
		t.Fatalf("IsContactOptedOut returned error: %v", err)
	}
	if !optedOut {
		t.Errorf("expected cached opted-out status to be used")
	}

	// A cache miss falls through to the store and refreshes the cache.
	optedOut, err = svc.IsContactOptedOut(ctx, 8)
	if err != nil {
		t.Fatalf("IsContactOptedOut returned error: %v", err)
	}
	if optedOut {
		t.Errorf("expected contact 8 to not be opted out")
	}
	if v, ok := cache.values[8]; !ok || v {
		t.Errorf("expected cache to be refreshed with false for contact 8")
	}
}

func TestApplyManualOptOut_RecordsOperatorAndSendsNothing(t *testing.T) {
	store := newFakeComplianceStore()
	sms := &fakeSMSSender{}
	svc := NewOptOutService(store, sms, nil)
	ctx := context.Background()
	contact := testContact()

	res, err := svc.ApplyManualOptOut(ctx, contact, "customer called in", "agent-42")
	if err != nil {
		t.Fatalf("ApplyManualOptOut returned error: %v", err)
	}
	if res.Status != domain.OptOutStatusOptedOut {
		t.Fatalf("expected status opted_out, got %s", res.Status)
	}

	if len(store.flagEvents) != 1 {
		t.Fatalf("expected 1 flag event, got %d", len(store.flagEvents))
	}
	if store.flagEvents[0].FlagReason != "customer called in" {
		t.Errorf("unexpected flag reason: %q", store.flagEvents[0].FlagReason)
	}
	if store.flagEvents[0].CreatedBy != "agent-42" {
		t.Errorf("unexpected created_by: %q", store.flagEvents[0].CreatedBy)
	}
	if store.audits[0].OptOutMethod != "manual" {
		t.Errorf("expected audit method manual, got %s", store.audits[0].OptOutMethod)
	}

	if len(sms.sent) != 0 {
		t.Errorf("manual opt-out must not send a confirmation SMS")
	}

	// Repeat is a no-op.
	res, err = svc.ApplyManualOptOut(ctx, contact, "again", "agent-42")
	if err != nil {
		t.Fatalf("repeat ApplyManualOptOut returned error: %v", err)
	}
	if res.Status != domain.OptOutStatusAlreadyOptedOut {
		t.Fatalf("expected status already_opted_out, got %s", res.Status)
	}
	if len(store.flagEvents) != 1 {
		t.Errorf("expected repeat to append nothing, got %d events", len(store.flagEvents))
	}
}
