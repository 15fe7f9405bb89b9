package domain

type ResultStatus string

const (
	StatusCreated ResultStatus = "created"
	StatusUpdated ResultStatus = "updated"
	StatusSkipped ResultStatus = "skipped"
	StatusIgnored ResultStatus = "ignored"
	StatusError   ResultStatus = "error"
	StatusSuccess ResultStatus = "success"
)

// Reason codes for skipped/ignored results.
const (
	ReasonCallActivityNotFound = "call_activity_not_found"
	ReasonUnknownEventType     = "unknown_event_type"
)

// WebhookResult is what the core hands back to the HTTP boundary for one
// delivery. The boundary decides the transport status code; by policy it
// answers 200 even for error results so the provider does not retry-storm.
type WebhookResult struct {
	Status     ResultStatus  `json:"status"`
	Reason     string        `json:"reason,omitempty"`
	Message    string        `json:"message,omitempty"`
	ActivityID int64         `json:"activityId,omitempty"`
	MediaCount int           `json:"mediaCount,omitempty"`
	OptOut     *OptOutResult `json:"optOut,omitempty"`
}

func ResultCreated(activityID int64) WebhookResult {
	return WebhookResult{Status: StatusCreated, ActivityID: activityID}
}

func ResultUpdated(activityID int64) WebhookResult {
	return WebhookResult{Status: StatusUpdated, ActivityID: activityID}
}

func ResultSkipped(reason string) WebhookResult {
	return WebhookResult{Status: StatusSkipped, Reason: reason}
}

func ResultIgnored(reason string) WebhookResult {
	return WebhookResult{Status: StatusIgnored, Reason: reason}
}

func ResultError(message string) WebhookResult {
	return WebhookResult{Status: StatusError, Message: message}
}

type OptOutStatus string

const (
	OptOutStatusOptedOut        OptOutStatus = "opted_out"
	OptOutStatusAlreadyOptedOut OptOutStatus = "already_opted_out"
	OptOutStatusOptedIn         OptOutStatus = "opted_in"
	OptOutStatusAlreadyOptedIn  OptOutStatus = "already_opted_in"
	OptOutStatusNone            OptOutStatus = "none"
)

// OptOutResult reports the compliance gate's decision for one inbound
// message. ConfirmationSent is informational: a failed confirmation never
// rolls back the flag or audit writes.
type OptOutResult struct {
	Status           OptOutStatus `json:"status"`
	Keyword          string       `json:"keyword,omitempty"`
	ConfirmationSent bool         `json:"confirmationSent"`
}
