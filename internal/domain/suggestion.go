package domain

import "time"

// ModelInfo records provenance for a generated suggestion.
type ModelInfo struct {
	Provider      string `json:"provider"`
	Model         string `json:"model"`
	PromptVersion string `json:"prompt_version"`
	LatencyMs     int64  `json:"latency_ms"`
}

// AgentSuggestion is the persisted outcome of one triage run: predicted
// category, cited articles, the drafted reply and the auto-close decision.
// Regeneration updates the row in place rather than creating a new one.
type AgentSuggestion struct {
	ID                string
	TicketID          string
	PredictedCategory TicketCategory
	ArticleIDs        []string
	DraftReply        string
	Confidence        float64
	AutoClosed        bool
	ModelInfo         ModelInfo
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
