package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/audit"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/service"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// TicketsHandler manages requester-facing ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
	auditor *audit.Recorder
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService, auditor *audit.Recorder) *TicketsHandler {
	return &TicketsHandler{service: ticketService, auditor: auditor}
}

// CreateTicket POST /api/tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, correlationID, err := h.service.CreateTicket(c.UserContext(), principal.User.ID, service.TicketCreateInput{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"data":           ticketSummary(ticket),
		"correlation_id": correlationID,
	})
}

// ListTickets GET /api/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	filter := service.TicketListFilter{}
	if status := c.Query("status"); status != "" {
		parsed := domain.TicketStatus(status)
		filter.Status = &parsed
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize

	tickets, err := h.service.ListTickets(c.UserContext(), principal.User.ID, principal.Role(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /api/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	ticket, replies, err := h.service.GetTicket(c.UserContext(), principal.User.ID, principal.Role(), c.Params("id"))
	if err != nil {
		return err
	}

	detail := dto.TicketDetailResponse{
		TicketSummary: ticketSummary(ticket),
		Description:   ticket.Description,
		Replies:       make([]dto.ReplyResponse, 0, len(replies)),
	}
	for i := range replies {
		detail.Replies = append(detail.Replies, replyResponse(&replies[i]))
	}
	return c.JSON(fiber.Map{"data": detail})
}

// Reply POST /api/tickets/:id/reply. Requester follow-up that reopens
// the ticket or confirms resolution.
func (h *TicketsHandler) Reply(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.TicketReplyRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.service.Reply(c.UserContext(), principal.User.ID, c.Params("id"), req.Message, req.Reopen)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// Assign POST /api/tickets/:id/assign.
func (h *TicketsHandler) Assign(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.AssignTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.AssigneeID == "" {
		return apperrors.NewValidationError("assignee_id required", nil)
	}

	ticket, err := h.service.Assign(c.UserContext(), principal.User.ID, c.Params("id"), req.AssigneeID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// Audit GET /api/tickets/:id/audit. Trail is returned oldest first.
func (h *TicketsHandler) Audit(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	// Ownership check rides on GetTicket's access rules.
	ticket, _, err := h.service.GetTicket(c.UserContext(), principal.User.ID, principal.Role(), c.Params("id"))
	if err != nil {
		return err
	}

	events, err := h.auditor.List(c.UserContext(), ticket.ID)
	if err != nil {
		return err
	}
	items := make([]dto.AuditEventResponse, 0, len(events))
	for _, event := range events {
		items = append(items, dto.AuditEventResponse{
			ID:            event.ID,
			CorrelationID: event.CorrelationID,
			Actor:         event.Actor,
			Action:        event.Action,
			Meta:          event.Meta,
			Timestamp:     event.Timestamp,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func ticketSummary(ticket *domain.Ticket) dto.TicketSummary {
	return dto.TicketSummary{
		ID:           ticket.ID,
		Title:        ticket.Title,
		Status:       ticket.Status,
		Category:     ticket.Category,
		AssigneeID:   ticket.AssigneeID,
		SuggestionID: ticket.SuggestionID,
		CreatedAt:    ticket.CreatedAt,
		UpdatedAt:    ticket.UpdatedAt,
	}
}

func replyResponse(reply *domain.Reply) dto.ReplyResponse {
	return dto.ReplyResponse{
		ID:            reply.ID,
		AuthorKind:    reply.AuthorKind,
		AuthorID:      reply.AuthorID,
		Body:          reply.Body,
		AutoGenerated: reply.AutoGenerated,
		SuggestionID:  reply.SuggestionID,
		CreatedAt:     reply.CreatedAt,
	}
}
