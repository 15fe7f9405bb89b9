package domain

import "encoding/json"

// EventKind is the closed set of provider event types this service reacts
// to. Routing happens over this enum with an exhaustive switch instead of a
// string→handler table, so a newly handled provider type has to be added
// here first.
type EventKind int

const (
	KindUnknown EventKind = iota
	KindMessageReceived
	KindMessageDelivered
	KindMessageFailed
	KindCallCompleted
	KindCallMissed
	KindCallRecordingCompleted
	KindCallSummaryCompleted
	KindCallTranscriptCompleted
	KindTokenValidated
)

// ParseEventKind maps a provider type string onto the enum. Anything not
// listed maps to KindUnknown, which the dispatcher treats as an ignorable
// delivery, not an error: the provider adds event types without notice.
func ParseEventKind(s string) EventKind {
	switch s {
	case "message.received":
		return KindMessageReceived
	case "message.delivered":
		return KindMessageDelivered
	case "message.failed":
		return KindMessageFailed
	case "call.completed":
		return KindCallCompleted
	case "call.missed":
		return KindCallMissed
	case "call.recording.completed":
		return KindCallRecordingCompleted
	case "call.summary.completed":
		return KindCallSummaryCompleted
	case "call.transcript.completed":
		return KindCallTranscriptCompleted
	case "token.validated":
		return KindTokenValidated
	default:
		return KindUnknown
	}
}

func (k EventKind) String() string {
	switch k {
	case KindMessageReceived:
		return "message.received"
	case KindMessageDelivered:
		return "message.delivered"
	case KindMessageFailed:
		return "message.failed"
	case KindCallCompleted:
		return "call.completed"
	case KindCallMissed:
		return "call.missed"
	case KindCallRecordingCompleted:
		return "call.recording.completed"
	case KindCallSummaryCompleted:
		return "call.summary.completed"
	case KindCallTranscriptCompleted:
		return "call.transcript.completed"
	case KindTokenValidated:
		return "token.validated"
	default:
		return "unknown"
	}
}

// RawEvent is the provider's webhook envelope: a type string and a nested
// object whose shape depends on the type.
type RawEvent struct {
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// MessageObject is the object payload for message.* events.
type MessageObject struct {
	ID             string   `json:"id"`
	ConversationID string   `json:"conversationId,omitempty"`
	Direction      string   `json:"direction"`
	From           string   `json:"from"`
	To             []string `json:"to"`
	Text           string   `json:"text"`
	Media          []Media  `json:"media"`
	Status         string   `json:"status"`
	CreatedAt      string   `json:"createdAt"`
}

type Media struct {
	URL  string `json:"url"`
	Type string `json:"type"`
}

// CallObject is the object payload for call.completed / call.missed.
type CallObject struct {
	ID             string   `json:"id"`
	ConversationID string   `json:"conversationId,omitempty"`
	Direction      string   `json:"direction"`
	Status         string   `json:"status"`
	Duration       int64    `json:"duration"`
	Participants   []string `json:"participants"`
	AnsweredAt     string   `json:"answeredAt"`
	CompletedAt    string   `json:"completedAt"`
}

// RecordingObject is the object payload for call.recording.completed.
type RecordingObject struct {
	CallID   string `json:"callId"`
	URL      string `json:"url"`
	Duration int64  `json:"duration"`
}

// SummaryObject is the object payload for call.summary.completed.
type SummaryObject struct {
	CallID    string   `json:"callId"`
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"keyPoints,omitempty"`
	Sentiment string   `json:"sentiment,omitempty"`
}

// TranscriptObject is the object payload for call.transcript.completed.
// Transcript is kept as raw JSON: the full structured dialogue is stored,
// not a flattened text rendering.
type TranscriptObject struct {
	CallID     string          `json:"callId"`
	Transcript json.RawMessage `json:"transcript"`
}
