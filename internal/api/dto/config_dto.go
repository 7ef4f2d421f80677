package dto

// TriageSettingsRequest is the admin payload for runtime triage
// settings. Pointers distinguish omitted fields from zero values.
type TriageSettingsRequest struct {
	AutoCloseEnabled    *bool    `json:"auto_close_enabled"`
	ConfidenceThreshold *float64 `json:"confidence_threshold"`
}

// TriageSettingsResponse payload.
type TriageSettingsResponse struct {
	AutoCloseEnabled    bool    `json:"auto_close_enabled"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
}
