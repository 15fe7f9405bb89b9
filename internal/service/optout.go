package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ozanyurt/crm-comms-service/internal/domain"
	"github.com/ozanyurt/crm-comms-service/pkg/logger"
)

const (
	optOutConfirmationBody = "You have been unsubscribed and will no longer receive messages from us. Reply START to opt back in."
	optInConfirmationBody  = "You have been re-subscribed and will receive messages again. Reply STOP to opt out at any time."

	optOutMethodKeyword = "sms_keyword"
	optOutMethodOptIn   = "sms_opt_in"
	optOutMethodManual  = "manual"
)

// Small internal interfaces so the compliance pipeline can be tested with
// fakes instead of MySQL, Valkey and the SMS provider.
type complianceStore interface {
	AppendFlagEvent(ctx context.Context, event *domain.ContactFlagEvent) (*domain.ContactFlagEvent, error)
	LatestFlagEvent(ctx context.Context, contactID int64, flagType domain.FlagType) (*domain.ContactFlagEvent, error)
	ListFlagEvents(ctx context.Context, contactID int64) ([]domain.ContactFlagEvent, error)
	CreateAudit(ctx context.Context, audit *domain.OptOutAudit) (*domain.OptOutAudit, error)
}

type smsSender interface {
	SendSMS(ctx context.Context, to, body string, systemMessage bool) error
}

type optOutCache interface {
	GetOptOutStatus(ctx context.Context, contactID int64) (optedOut, found bool, err error)
	SetOptOutStatus(ctx context.Context, contactID int64, optedOut bool) error
}

// OptOutService is the compliance gate: it classifies inbound message text
// against the opt-out/opt-in keyword tables and applies the resulting state
// changes. It runs synchronously inside the webhook pipeline.
type OptOutService struct {
	compliance  complianceStore
	notifier    smsSender
	cache       optOutCache // nil when caching is disabled
	optOutRules *RuleSet
	optInRules  *RuleSet
}

func NewOptOutService(compliance complianceStore, notifier smsSender, cache optOutCache) *OptOutService {
	return &OptOutService{
		compliance:  compliance,
		notifier:    notifier,
		cache:       cache,
		optOutRules: DefaultOptOutRules(),
		optInRules:  DefaultOptInRules(),
	}
}

func (s *OptOutService) ContainsOptOutKeyword(text string) bool {
	_, ok := s.optOutRules.Match(text)
	return ok
}

func (s *OptOutService) ContainsOptInKeyword(text string) bool {
	_, ok := s.optInRules.Match(text)
	return ok
}

// IsContactOptedOut derives current state from the append-only flag log:
// opted out iff the latest opted_out entry is a "set" whose expiry is null
// or in the future. The cache is consulted first and refreshed on miss.
func (s *OptOutService) IsContactOptedOut(ctx context.Context, contactID int64) (bool, error) {
	if s.cache != nil {
		optedOut, found, err := s.cache.GetOptOutStatus(ctx, contactID)
		if err != nil {
			logger.Warnf("opt-out cache read failed for contact %d: %v", contactID, err)
		} else if found {
			return optedOut, nil
		}
	}

	event, err := s.compliance.LatestFlagEvent(ctx, contactID, domain.FlagOptedOut)
	if err != nil {
		return false, fmt.Errorf("failed to check opt-out status: %w", err)
	}

	optedOut := event != nil &&
		event.Action == domain.FlagActionSet &&
		(event.ExpiresAt == nil || event.ExpiresAt.After(time.Now()))

	s.cacheStatus(ctx, contactID, optedOut)

	return optedOut, nil
}

// ProcessIncomingMessage runs the compliance pipeline for one inbound
// message: opt-out check first, then opt-in. A failed confirmation send
// never rolls back the flag or audit writes.
func (s *OptOutService) ProcessIncomingMessage(ctx context.Context, contact *domain.Contact, text, messageID, source string) (domain.OptOutResult, error) {
	if keyword, ok := s.optOutRules.Match(text); ok {
		return s.applyOptOut(ctx, contact, keyword, messageID, source)
	}

	if keyword, ok := s.optInRules.Match(text); ok {
		return s.applyOptIn(ctx, contact, keyword, messageID, source)
	}

	return domain.OptOutResult{Status: domain.OptOutStatusNone}, nil
}

func (s *OptOutService) applyOptOut(ctx context.Context, contact *domain.Contact, keyword, messageID, source string) (domain.OptOutResult, error) {
	optedOut, err := s.IsContactOptedOut(ctx, contact.ID)
	if err != nil {
		return domain.OptOutResult{}, err
	}

	if optedOut {
		// No duplicate flag or audit rows; the confirmation is still sent
		// because from the sender's perspective the request is idempotent.
		sent := s.sendConfirmation(ctx, contact.Phone, optOutConfirmationBody)
		return domain.OptOutResult{
			Status:           domain.OptOutStatusAlreadyOptedOut,
			Keyword:          keyword,
			ConfirmationSent: sent,
		}, nil
	}

	_, err = s.compliance.AppendFlagEvent(ctx, &domain.ContactFlagEvent{
		ContactID:  contact.ID,
		FlagType:   domain.FlagOptedOut,
		Action:     domain.FlagActionSet,
		FlagReason: fmt.Sprintf("sms keyword: %s", keyword),
		AppliesTo:  "sms",
		CreatedBy:  "system",
	})
	if err != nil {
		return domain.OptOutResult{}, fmt.Errorf("failed to record opt-out flag: %w", err)
	}

	if _, err := s.compliance.CreateAudit(ctx, &domain.OptOutAudit{
		ContactID:    contact.ID,
		PhoneNumber:  contact.Phone,
		ContactName:  contactDisplayName(contact),
		OptOutMethod: optOutMethodKeyword,
		KeywordUsed:  keyword,
		Source:       source,
		MessageID:    messageID,
	}); err != nil {
		return domain.OptOutResult{}, fmt.Errorf("failed to record opt-out audit: %w", err)
	}

	s.cacheStatus(ctx, contact.ID, true)

	sent := s.sendConfirmation(ctx, contact.Phone, optOutConfirmationBody)

	logger.Infof("Contact %d opted out via keyword %q (confirmation sent: %t)", contact.ID, keyword, sent)

	return domain.OptOutResult{
		Status:           domain.OptOutStatusOptedOut,
		Keyword:          keyword,
		ConfirmationSent: sent,
	}, nil
}

func (s *OptOutService) applyOptIn(ctx context.Context, contact *domain.Contact, keyword, messageID, source string) (domain.OptOutResult, error) {
	optedOut, err := s.IsContactOptedOut(ctx, contact.ID)
	if err != nil {
		return domain.OptOutResult{}, err
	}

	if !optedOut {
		return domain.OptOutResult{
			Status:  domain.OptOutStatusAlreadyOptedIn,
			Keyword: keyword,
		}, nil
	}

	now := time.Now().UTC()
	_, err = s.compliance.AppendFlagEvent(ctx, &domain.ContactFlagEvent{
		ContactID:  contact.ID,
		FlagType:   domain.FlagOptedOut,
		Action:     domain.FlagActionExpire,
		FlagReason: fmt.Sprintf("sms keyword: %s", keyword),
		AppliesTo:  "sms",
		ExpiresAt:  &now,
		CreatedBy:  "system",
	})
	if err != nil {
		return domain.OptOutResult{}, fmt.Errorf("failed to record opt-in: %w", err)
	}

	if _, err := s.compliance.CreateAudit(ctx, &domain.OptOutAudit{
		ContactID:    contact.ID,
		PhoneNumber:  contact.Phone,
		ContactName:  contactDisplayName(contact),
		OptOutMethod: optOutMethodOptIn,
		KeywordUsed:  keyword,
		Source:       source,
		MessageID:    messageID,
	}); err != nil {
		return domain.OptOutResult{}, fmt.Errorf("failed to record opt-in audit: %w", err)
	}

	s.cacheStatus(ctx, contact.ID, false)

	sent := s.sendConfirmation(ctx, contact.Phone, optInConfirmationBody)

	logger.Infof("Contact %d opted back in via keyword %q (confirmation sent: %t)", contact.ID, keyword, sent)

	return domain.OptOutResult{
		Status:           domain.OptOutStatusOptedIn,
		Keyword:          keyword,
		ConfirmationSent: sent,
	}, nil
}

// ApplyManualOptOut records an operator-initiated opt-out. Idempotent in the
// same way as the keyword path; no confirmation SMS is sent.
func (s *OptOutService) ApplyManualOptOut(ctx context.Context, contact *domain.Contact, reason, createdBy string) (domain.OptOutResult, error) {
	optedOut, err := s.IsContactOptedOut(ctx, contact.ID)
	if err != nil {
		return domain.OptOutResult{}, err
	}
	if optedOut {
		return domain.OptOutResult{Status: domain.OptOutStatusAlreadyOptedOut}, nil
	}

	_, err = s.compliance.AppendFlagEvent(ctx, &domain.ContactFlagEvent{
		ContactID:  contact.ID,
		FlagType:   domain.FlagOptedOut,
		Action:     domain.FlagActionSet,
		FlagReason: reason,
		AppliesTo:  "sms",
		CreatedBy:  createdBy,
	})
	if err != nil {
		return domain.OptOutResult{}, fmt.Errorf("failed to record manual opt-out: %w", err)
	}

	if _, err := s.compliance.CreateAudit(ctx, &domain.OptOutAudit{
		ContactID:    contact.ID,
		PhoneNumber:  contact.Phone,
		ContactName:  contactDisplayName(contact),
		OptOutMethod: optOutMethodManual,
		Source:       createdBy,
	}); err != nil {
		return domain.OptOutResult{}, fmt.Errorf("failed to record manual opt-out audit: %w", err)
	}

	s.cacheStatus(ctx, contact.ID, true)

	return domain.OptOutResult{Status: domain.OptOutStatusOptedOut}, nil
}

func (s *OptOutService) FlagHistory(ctx context.Context, contactID int64) ([]domain.ContactFlagEvent, error) {
	return s.compliance.ListFlagEvents(ctx, contactID)
}

func (s *OptOutService) sendConfirmation(ctx context.Context, phone, body string) bool {
	if err := s.notifier.SendSMS(ctx, phone, body, true); err != nil {
		// The compliance decision must survive even when the
		// acknowledgement never leaves the building.
		logger.Warnf("confirmation SMS to %s failed: %v", phone, err)
		return false
	}
	return true
}

func (s *OptOutService) cacheStatus(ctx context.Context, contactID int64, optedOut bool) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetOptOutStatus(ctx, contactID, optedOut); err != nil {
		logger.Warnf("opt-out cache write failed for contact %d: %v", contactID, err)
	}
}

func contactDisplayName(contact *domain.Contact) string {
	return strings.TrimSpace(contact.FirstName + " " + contact.LastName)
}
