package dto

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// SuggestionResponse exposes a triage outcome to agents.
type SuggestionResponse struct {
	ID                string                `json:"id"`
	TicketID          string                `json:"ticket_id"`
	PredictedCategory domain.TicketCategory `json:"predicted_category"`
	ArticleIDs        []string              `json:"article_ids"`
	DraftReply        string                `json:"draft_reply"`
	Confidence        float64               `json:"confidence"`
	AutoClosed        bool                  `json:"auto_closed"`
	ModelInfo         ModelInfoResponse     `json:"model_info"`
	CreatedAt         time.Time             `json:"created_at"`
	UpdatedAt         time.Time             `json:"updated_at"`
}

// ModelInfoResponse records suggestion provenance.
type ModelInfoResponse struct {
	Provider      string `json:"provider"`
	Model         string `json:"model"`
	PromptVersion string `json:"prompt_version"`
	LatencyMs     int64  `json:"latency_ms"`
}

// SuggestionDetailResponse bundles a suggestion with its ticket and the
// cited articles for the agent review screen.
type SuggestionDetailResponse struct {
	Suggestion SuggestionResponse `json:"suggestion"`
	Ticket     TicketSummary      `json:"ticket"`
	Articles   []ArticleResponse  `json:"articles"`
}

// TriageRequest asks for a pipeline run on an existing ticket.
type TriageRequest struct {
	TicketID string `json:"ticket_id"`
}

// SendAgentReplyRequest payload. Empty custom_reply sends the draft.
type SendAgentReplyRequest struct {
	CustomReply string `json:"custom_reply"`
	Resolve     bool   `json:"resolve"`
}

// RegenerateSuggestionRequest payload. Empty template keeps the default.
type RegenerateSuggestionRequest struct {
	Template string `json:"template"`
}

// AgentReplyResponse bundles the records touched by a reply dispatch.
type AgentReplyResponse struct {
	Reply  ReplyResponse `json:"reply"`
	Ticket TicketSummary `json:"ticket"`
}
