package events

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated     EventType = "ticket_created"
	EventTriageCompleted   EventType = "triage_completed"
	EventSuggestionUpdated EventType = "suggestion_updated"
	EventReplySent         EventType = "reply_sent"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type   domain.AuditActor `json:"type"`
	UserID *string           `json:"user_id,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Title         string `json:"title"`
	CreatedBy     string `json:"created_by"`
	CorrelationID string `json:"correlation_id"`
}

// TriageCompletedPayload payload.
type TriageCompletedPayload struct {
	SuggestionID string                `json:"suggestion_id"`
	Category     domain.TicketCategory `json:"category"`
	Confidence   float64               `json:"confidence"`
	AutoClosed   bool                  `json:"auto_closed"`
}

// SuggestionUpdatedPayload payload.
type SuggestionUpdatedPayload struct {
	SuggestionID string  `json:"suggestion_id"`
	Template     string  `json:"template"`
	Confidence   float64 `json:"confidence"`
}

// ReplySentPayload payload.
type ReplySentPayload struct {
	ReplyID    string                 `json:"reply_id"`
	AuthorKind domain.ReplyAuthorKind `json:"author_kind"`
	Resolved   bool                   `json:"resolved"`
}
