package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/triage"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// AgentHandler exposes the suggestion review surface for support
// agents: pending queue, detail view, reply dispatch and regeneration.
type AgentHandler struct {
	orchestrator *triage.Orchestrator
}

// NewAgentHandler constructs handler.
func NewAgentHandler(orchestrator *triage.Orchestrator) *AgentHandler {
	return &AgentHandler{orchestrator: orchestrator}
}

// Triage POST /api/agent/triage. Runs the pipeline synchronously on an
// existing ticket, for tickets created before the pipeline existed or
// whose background run failed. Returns the resulting suggestion.
func (h *AgentHandler) Triage(c *fiber.Ctx) error {
	var req dto.TriageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.TicketID == "" {
		return apperrors.NewValidationError("ticket_id required", nil)
	}

	suggestion, err := h.orchestrator.Run(c.UserContext(), req.TicketID, correlationID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": suggestionResponse(suggestion)})
}

// ListPending GET /api/agent/suggestions.
func (h *AgentHandler) ListPending(c *fiber.Ctx) error {
	filter := repository.SuggestionFilter{}
	if category := c.Query("category"); category != "" {
		parsed := domain.TicketCategory(category)
		filter.Category = &parsed
	}
	if minConf := c.Query("min_confidence"); minConf != "" {
		parsed, err := strconv.ParseFloat(minConf, 64)
		if err != nil {
			return apperrors.NewValidationError("invalid min_confidence", nil)
		}
		filter.MinConfidence = &parsed
	}
	if maxAgeHours := parseInt(c.Query("max_age_hours"), 0); maxAgeHours > 0 {
		age := time.Duration(maxAgeHours) * time.Hour
		filter.MaxAge = &age
	}
	filter.Limit = parseInt(c.Query("limit"), 50)

	suggestions, err := h.orchestrator.PendingSuggestions(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.SuggestionResponse, 0, len(suggestions))
	for i := range suggestions {
		items = append(items, suggestionResponse(&suggestions[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetSuggestion GET /api/agent/suggestions/:id.
func (h *AgentHandler) GetSuggestion(c *fiber.Ctx) error {
	detail, err := h.orchestrator.Suggestion(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}

	articles := make([]dto.ArticleResponse, 0, len(detail.Articles))
	for i := range detail.Articles {
		articles = append(articles, articleResponse(&detail.Articles[i]))
	}
	return c.JSON(fiber.Map{"data": dto.SuggestionDetailResponse{
		Suggestion: suggestionResponse(detail.Suggestion),
		Ticket:     ticketSummary(detail.Ticket),
		Articles:   articles,
	}})
}

// GetSuggestionByTicket GET /api/agent/tickets/:id/suggestion.
func (h *AgentHandler) GetSuggestionByTicket(c *fiber.Ctx) error {
	suggestion, err := h.orchestrator.SuggestionByTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": suggestionResponse(suggestion)})
}

// SendReply POST /api/agent/suggestions/:id/reply.
func (h *AgentHandler) SendReply(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.SendAgentReplyRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	result, err := h.orchestrator.SendReply(c.UserContext(), triage.SendReplyInput{
		SuggestionID:  c.Params("id"),
		AgentID:       principal.User.ID,
		CustomReply:   req.CustomReply,
		CorrelationID: correlationID(c),
		ResolveTicket: req.Resolve,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.AgentReplyResponse{
		Reply:  replyResponse(result.Reply),
		Ticket: ticketSummary(result.Ticket),
	}})
}

// Regenerate POST /api/agent/suggestions/:id/regenerate. Re-drafts
// with the requested template, updating the suggestion in place.
func (h *AgentHandler) Regenerate(c *fiber.Ctx) error {
	var req dto.RegenerateSuggestionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	detail, err := h.orchestrator.Suggestion(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	suggestion, err := h.orchestrator.Regenerate(c.UserContext(), detail.Ticket.ID, correlationID(c), req.Template)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": suggestionResponse(suggestion)})
}

func correlationID(c *fiber.Ctx) string {
	if id := c.Get("X-Correlation-Id"); id != "" {
		return id
	}
	return uuid.NewString()
}

func suggestionResponse(s *domain.AgentSuggestion) dto.SuggestionResponse {
	return dto.SuggestionResponse{
		ID:                s.ID,
		TicketID:          s.TicketID,
		PredictedCategory: s.PredictedCategory,
		ArticleIDs:        s.ArticleIDs,
		DraftReply:        s.DraftReply,
		Confidence:        s.Confidence,
		AutoClosed:        s.AutoClosed,
		ModelInfo: dto.ModelInfoResponse{
			Provider:      s.ModelInfo.Provider,
			Model:         s.ModelInfo.Model,
			PromptVersion: s.ModelInfo.PromptVersion,
			LatencyMs:     s.ModelInfo.LatencyMs,
		},
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func articleResponse(article *domain.Article) dto.ArticleResponse {
	return dto.ArticleResponse{
		ID:        article.ID,
		Title:     article.Title,
		Body:      article.Body,
		Tags:      article.Tags,
		Status:    article.Status,
		UpdatedAt: article.UpdatedAt,
	}
}
