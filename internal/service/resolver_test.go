package service

import (
	"context"
	"testing"
	"time"

	"github.com/ozanyurt/crm-comms-service/internal/domain"
)

func TestGetOrCreateContact_NormalizationConverges(t *testing.T) {
	contacts := newFakeContactStore()
	resolver := NewResolver(contacts, newFakeConversationStore())
	ctx := context.Background()

	// Three spellings of the same number must land on one contact row.
	first, err := resolver.GetOrCreateContact(ctx, "(415) 555-0100")
	if err != nil {
		t.Fatalf("GetOrCreateContact returned error: %v", err)
	}
	if first.Phone != "+14155550100" {
		t.Fatalf("expected normalized phone +14155550100, got %s", first.Phone)
	}
	if !first.AutoCreated {
		t.Errorf("expected auto-created placeholder contact")
	}
	if first.FirstName != "+14155550100" {
		t.Errorf("expected phone number as placeholder name, got %q", first.FirstName)
	}

	second, err := resolver.GetOrCreateContact(ctx, "14155550100")
	if err != nil {
		t.Fatalf("GetOrCreateContact returned error: %v", err)
	}
	third, err := resolver.GetOrCreateContact(ctx, "+14155550100")
	if err != nil {
		t.Fatalf("GetOrCreateContact returned error: %v", err)
	}

	if second.ID != first.ID || third.ID != first.ID {
		t.Errorf("expected one contact, got ids %d, %d, %d", first.ID, second.ID, third.ID)
	}
	if contacts.createCalls != 1 {
		t.Errorf("expected 1 create call, got %d", contacts.createCalls)
	}
}

func TestGetOrCreateContact_InvalidNumberRejected(t *testing.T) {
	resolver := NewResolver(newFakeContactStore(), newFakeConversationStore())

	if _, err := resolver.GetOrCreateContact(context.Background(), "not a number"); err == nil {
		t.Fatalf("expected error for unparseable phone number")
	}
}

func TestGetOrCreateContact_DuplicateCreateRefetches(t *testing.T) {
	contacts := newFakeContactStore()
	resolver := NewResolver(contacts, newFakeConversationStore())
	ctx := context.Background()

	// Another delivery wins the insert race between our lookup and create.
	winner := &domain.Contact{Phone: "+14155550100", FirstName: "+14155550100", AutoCreated: true}
	if _, err := contacts.Create(ctx, winner); err != nil {
		t.Fatalf("seed create failed: %v", err)
	}
	contacts.failCreate = domain.ErrAlreadyExists

	contact, err := resolver.GetOrCreateContact(ctx, "+14155550100")
	if err != nil {
		t.Fatalf("GetOrCreateContact returned error: %v", err)
	}
	if contact == nil || contact.Phone != "+14155550100" {
		t.Fatalf("expected the winner's row to be returned, got %+v", contact)
	}
}

func TestGetOrCreateConversation_ThreadIDWins(t *testing.T) {
	conversations := newFakeConversationStore()
	resolver := NewResolver(newFakeContactStore(), conversations)
	ctx := context.Background()
	contact := &domain.Contact{ID: 1, Phone: "+14155550100"}

	created, err := resolver.GetOrCreateConversation(ctx, contact, "thread-1", []string{"+14155550100", "+14155550111"})
	if err != nil {
		t.Fatalf("GetOrCreateConversation returned error: %v", err)
	}
	if created.OpenPhoneID == nil || *created.OpenPhoneID != "thread-1" {
		t.Fatalf("expected thread id to be stored, got %+v", created.OpenPhoneID)
	}

	again, err := resolver.GetOrCreateConversation(ctx, contact, "thread-1", nil)
	if err != nil {
		t.Fatalf("GetOrCreateConversation returned error: %v", err)
	}
	if again.ID != created.ID {
		t.Errorf("expected same conversation for same thread id, got %d and %d", created.ID, again.ID)
	}
}

func TestGetOrCreateConversation_ReusesLatestWithoutThreadID(t *testing.T) {
	conversations := newFakeConversationStore()
	resolver := NewResolver(newFakeContactStore(), conversations)
	ctx := context.Background()
	contact := &domain.Contact{ID: 1, Phone: "+14155550100"}

	existing, err := conversations.Create(ctx, &domain.Conversation{ContactID: contact.ID})
	if err != nil {
		t.Fatalf("seed create failed: %v", err)
	}

	conv, err := resolver.GetOrCreateConversation(ctx, contact, "", nil)
	if err != nil {
		t.Fatalf("GetOrCreateConversation returned error: %v", err)
	}
	if conv.ID != existing.ID {
		t.Errorf("expected latest conversation %d to be reused, got %d", existing.ID, conv.ID)
	}
}

func TestGetOrCreateConversation_BackfillsThreadID(t *testing.T) {
	conversations := newFakeConversationStore()
	resolver := NewResolver(newFakeContactStore(), conversations)
	ctx := context.Background()
	contact := &domain.Contact{ID: 1, Phone: "+14155550100"}

	// A conversation created before its thread id was known.
	existing, err := conversations.Create(ctx, &domain.Conversation{ContactID: contact.ID})
	if err != nil {
		t.Fatalf("seed create failed: %v", err)
	}

	conv, err := resolver.GetOrCreateConversation(ctx, contact, "thread-9", nil)
	if err != nil {
		t.Fatalf("GetOrCreateConversation returned error: %v", err)
	}
	if conv.ID != existing.ID {
		t.Fatalf("expected existing conversation %d, got %d", existing.ID, conv.ID)
	}
	if conv.OpenPhoneID == nil || *conv.OpenPhoneID != "thread-9" {
		t.Errorf("expected thread id to be backfilled, got %+v", conv.OpenPhoneID)
	}

	// Later deliveries with the thread id converge onto the same row.
	again, err := resolver.GetOrCreateConversation(ctx, contact, "thread-9", nil)
	if err != nil {
		t.Fatalf("GetOrCreateConversation returned error: %v", err)
	}
	if again.ID != existing.ID {
		t.Errorf("expected conversation %d, got %d", existing.ID, again.ID)
	}
}

func TestTouchConversation_NeverMovesBackwards(t *testing.T) {
	conversations := newFakeConversationStore()
	resolver := NewResolver(newFakeContactStore(), conversations)
	ctx := context.Background()

	conv, err := conversations.Create(ctx, &domain.Conversation{ContactID: 1})
	if err != nil {
		t.Fatalf("seed create failed: %v", err)
	}

	later := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	earlier := later.Add(-time.Hour)

	if err := resolver.TouchConversation(ctx, conv.ID, later); err != nil {
		t.Fatalf("TouchConversation returned error: %v", err)
	}
	if err := resolver.TouchConversation(ctx, conv.ID, earlier); err != nil {
		t.Fatalf("TouchConversation returned error: %v", err)
	}

	if got := conversations.byID[conv.ID].LastActivityAt; !got.Equal(later) {
		t.Errorf("expected last activity to stay at %v, got %v", later, got)
	}
}
