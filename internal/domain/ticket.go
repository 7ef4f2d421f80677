package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
//
// The triage pipeline only moves tickets between open, waiting_human and
// resolved; closed is a terminal state reserved for administrative action.
type TicketStatus string

const (
	TicketStatusOpen         TicketStatus = "open"
	TicketStatusWaitingHuman TicketStatus = "waiting_human"
	TicketStatusResolved     TicketStatus = "resolved"
	TicketStatusClosed       TicketStatus = "closed"
)

// TicketCategory is the closed set of triage categories.
type TicketCategory string

const (
	CategoryBilling  TicketCategory = "billing"
	CategoryTech     TicketCategory = "tech"
	CategoryShipping TicketCategory = "shipping"
	CategoryOther    TicketCategory = "other"
)

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID           string
	Title        string
	Description  string
	Category     *TicketCategory
	Status       TicketStatus
	CreatedBy    string
	AssigneeID   *string
	SuggestionID *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
