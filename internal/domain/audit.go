package domain

import "time"

// AuditActor identifies who performed an audited action.
type AuditActor string

const (
	ActorSystem AuditActor = "system"
	ActorUser   AuditActor = "user"
	ActorAgent  AuditActor = "agent"
)

// AuditAction is the closed vocabulary of audit action tags. The exact
// strings are part of the external contract; consumers parse them.
type AuditAction string

const (
	ActionTicketCreated         AuditAction = "TICKET_CREATED"
	ActionTriageStarted         AuditAction = "TRIAGE_STARTED"
	ActionAgentClassified       AuditAction = "AGENT_CLASSIFIED"
	ActionKBRetrieved           AuditAction = "KB_RETRIEVED"
	ActionDraftGenerated        AuditAction = "DRAFT_GENERATED"
	ActionAutoClosed            AuditAction = "AUTO_CLOSED"
	ActionAutoReplySent         AuditAction = "AUTO_REPLY_SENT"
	ActionAssignedToHuman       AuditAction = "ASSIGNED_TO_HUMAN"
	ActionTriageCompleted       AuditAction = "TRIAGE_COMPLETED"
	ActionSuggestionRegenerated AuditAction = "SUGGESTION_REGENERATED"
	ActionSuggestionUpdated     AuditAction = "SUGGESTION_UPDATED"
	ActionAgentReplySent        AuditAction = "AGENT_REPLY_SENT"
	ActionTicketResolved        AuditAction = "TICKET_RESOLVED"
	ActionReplySent             AuditAction = "REPLY_SENT"
	ActionAssigned              AuditAction = "ASSIGNED"
)

// AuditEvent is one immutable fact about pipeline progress. Events are
// append-only and ordered by timestamp within a correlation id.
type AuditEvent struct {
	ID            string
	TicketID      string
	CorrelationID string
	Actor         AuditActor
	Action        AuditAction
	Meta          map[string]any
	Timestamp     time.Time
}
