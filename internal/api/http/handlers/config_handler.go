package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/triage"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// ConfigHandler exposes runtime triage settings to admins. Updates take
// effect on the next triage run without a restart.
type ConfigHandler struct {
	settings *triage.SettingsStore
}

// NewConfigHandler constructs handler.
func NewConfigHandler(settings *triage.SettingsStore) *ConfigHandler {
	return &ConfigHandler{settings: settings}
}

// GetTriageSettings GET /api/config/triage.
func (h *ConfigHandler) GetTriageSettings(c *fiber.Ctx) error {
	settings, err := h.settings.TriageSettings(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TriageSettingsResponse{
		AutoCloseEnabled:    settings.AutoCloseEnabled,
		ConfidenceThreshold: settings.ConfidenceThreshold,
	}})
}

// UpdateTriageSettings PUT /api/config/triage. Omitted fields keep
// their current value.
func (h *ConfigHandler) UpdateTriageSettings(c *fiber.Ctx) error {
	var req dto.TriageSettingsRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	settings, err := h.settings.TriageSettings(c.UserContext())
	if err != nil {
		return err
	}
	if req.AutoCloseEnabled != nil {
		settings.AutoCloseEnabled = *req.AutoCloseEnabled
	}
	if req.ConfidenceThreshold != nil {
		if *req.ConfidenceThreshold < 0 || *req.ConfidenceThreshold > 1 {
			return apperrors.NewValidationError("confidence_threshold must be within [0,1]", map[string]any{
				"confidence_threshold": *req.ConfidenceThreshold,
			})
		}
		settings.ConfidenceThreshold = *req.ConfidenceThreshold
	}
	h.settings.Update(settings)

	return c.JSON(fiber.Map{"data": dto.TriageSettingsResponse{
		AutoCloseEnabled:    settings.AutoCloseEnabled,
		ConfidenceThreshold: settings.ConfidenceThreshold,
	}})
}
