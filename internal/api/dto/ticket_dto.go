package dto

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// TicketSummary response.
type TicketSummary struct {
	ID           string                 `json:"id"`
	Title        string                 `json:"title"`
	Status       domain.TicketStatus    `json:"status"`
	Category     *domain.TicketCategory `json:"category"`
	AssigneeID   *string                `json:"assignee_id,omitempty"`
	SuggestionID *string                `json:"suggestion_id,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// TicketDetailResponse provides full ticket info including its reply
// thread.
type TicketDetailResponse struct {
	TicketSummary
	Description string          `json:"description"`
	Replies     []ReplyResponse `json:"replies"`
}

// ReplyResponse represents one entry of the reply thread.
type ReplyResponse struct {
	ID            string                 `json:"id"`
	AuthorKind    domain.ReplyAuthorKind `json:"author_kind"`
	AuthorID      *string                `json:"author_id,omitempty"`
	Body          string                 `json:"body"`
	AutoGenerated bool                   `json:"auto_generated"`
	SuggestionID  *string                `json:"suggestion_id,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
}

// TicketReplyRequest is the requester follow-up payload.
type TicketReplyRequest struct {
	Message string `json:"message"`
	Reopen  bool   `json:"reopen"`
}

// AssignTicketRequest payload.
type AssignTicketRequest struct {
	AssigneeID string `json:"assignee_id"`
}

// AuditEventResponse is one audit trail entry.
type AuditEventResponse struct {
	ID            string             `json:"id"`
	CorrelationID string             `json:"correlation_id"`
	Actor         domain.AuditActor  `json:"actor"`
	Action        domain.AuditAction `json:"action"`
	Meta          map[string]any     `json:"meta,omitempty"`
	Timestamp     time.Time          `json:"timestamp"`
}
