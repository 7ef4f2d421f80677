package domain

import "time"

// ReplyAuthorKind indicates who authored a reply.
type ReplyAuthorKind string

const (
	ReplyAuthorSystem ReplyAuthorKind = "system"
	ReplyAuthorAgent  ReplyAuthorKind = "agent"
	ReplyAuthorUser   ReplyAuthorKind = "user"
)

// Reply is a message attached to a ticket. AuthorID is nil for
// system-generated replies. Replies are never mutated once created.
type Reply struct {
	ID            string
	TicketID      string
	AuthorID      *string
	AuthorKind    ReplyAuthorKind
	Body          string
	AutoGenerated bool
	SuggestionID  *string
	CreatedAt     time.Time
}
