package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/audit"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/retry"
	"github.com/spec-kit/helpdesk/internal/worker"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// TriageRunner kicks off an automated triage run for a ticket.
type TriageRunner interface {
	Run(ctx context.Context, ticketID, correlationID string) (*domain.AgentSuggestion, error)
}

// TicketService coordinates ticket workflows for requesters and wires
// newly created tickets into the triage pipeline.
type TicketService struct {
	tickets    repository.TicketRepository
	replies    repository.ReplyRepository
	auditor    *audit.Recorder
	triage     TriageRunner
	pool       *worker.Pool
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	ReplyRepo  repository.ReplyRepository
	Auditor    *audit.Recorder
	Triage     TriageRunner
	Pool       *worker.Pool
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:    deps.TicketRepo,
		replies:    deps.ReplyRepo,
		auditor:    deps.Auditor,
		triage:     deps.Triage,
		pool:       deps.Pool,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
}

// TicketListFilter describes listing filters.
type TicketListFilter struct {
	Status *domain.TicketStatus
	Limit  int
	Offset int
}

// CreateTicket persists a new open ticket, records the audit trail
// start and schedules a triage run in the background. The returned
// correlation id ties together everything the run will log.
func (s *TicketService) CreateTicket(ctx context.Context, userID string, input TicketCreateInput) (*domain.Ticket, string, error) {
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	if title == "" {
		return nil, "", apperrors.NewValidationError("title is required", nil)
	}
	if description == "" {
		return nil, "", apperrors.NewValidationError("description is required", nil)
	}

	ticket := &domain.Ticket{
		Title:       title,
		Description: description,
		Status:      domain.TicketStatusOpen,
		CreatedBy:   userID,
	}
	_, err := retry.Do(ctx, s.logger, "create ticket", retry.StoragePolicy(),
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.tickets.Create(ctx, ticket)
		})
	if err != nil {
		return nil, "", err
	}

	correlationID := uuid.NewString()
	s.auditor.Record(ctx, ticket.ID, correlationID, domain.ActorUser, domain.ActionTicketCreated, map[string]any{
		"title":     ticket.Title,
		"createdBy": userID,
	})
	s.publish(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    events.Actor{Type: domain.ActorUser, UserID: &userID},
		Payload: events.TicketCreatedPayload{
			Title:         ticket.Title,
			CreatedBy:     userID,
			CorrelationID: correlationID,
		},
	})

	// The triage run outlives the HTTP request that created the ticket.
	bg := context.WithoutCancel(ctx)
	submitted := s.pool.Submit(bg, "ticket triage", func(ctx context.Context) {
		if _, err := s.triage.Run(ctx, ticket.ID, correlationID); err != nil {
			s.logger.Error("triage run failed",
				zap.String("ticket_id", ticket.ID),
				zap.String("correlation_id", correlationID),
				zap.Error(err))
		}
	})
	if !submitted {
		s.logger.Warn("triage not scheduled, worker pool closed",
			zap.String("ticket_id", ticket.ID))
	}

	return ticket, correlationID, nil
}

// ListTickets returns tickets visible to the caller. End users only see
// their own; agents and admins see everything.
func (s *TicketService) ListTickets(ctx context.Context, userID string, role domain.UserRole, filter TicketListFilter) ([]domain.Ticket, error) {
	repoFilter := repository.TicketFilter{
		Status: filter.Status,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}
	if role == domain.RoleUser {
		repoFilter.CreatedBy = &userID
	}
	return retry.Do(ctx, s.logger, "list tickets", retry.StoragePolicy(),
		func(ctx context.Context) ([]domain.Ticket, error) {
			return s.tickets.List(ctx, repoFilter)
		})
}

// GetTicket loads one ticket with its replies, enforcing ownership for
// end users.
func (s *TicketService) GetTicket(ctx context.Context, userID string, role domain.UserRole, ticketID string) (*domain.Ticket, []domain.Reply, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, nil, err
	}
	if role == domain.RoleUser && ticket.CreatedBy != userID {
		return nil, nil, apperrors.NewForbidden("not your ticket")
	}

	replies, err := s.replies.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, nil, err
	}
	return ticket, replies, nil
}

// Reply handles the requester follow-up endpoint: the message reopens
// the ticket or confirms resolution. Only the audit trail keeps the
// message body; no reply row is written for requester follow-ups.
func (s *TicketService) Reply(ctx context.Context, userID, ticketID, message string, reopen bool) (*domain.Ticket, error) {
	if strings.TrimSpace(message) == "" {
		return nil, apperrors.NewValidationError("message is required", nil)
	}

	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.CreatedBy != userID {
		return nil, apperrors.NewForbidden("not your ticket")
	}

	if reopen {
		ticket.Status = domain.TicketStatusOpen
	} else {
		ticket.Status = domain.TicketStatusResolved
	}
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, err
	}

	s.auditor.Record(ctx, ticket.ID, uuid.NewString(), domain.ActorUser, domain.ActionReplySent, map[string]any{
		"body":   message,
		"reopen": reopen,
	})
	return ticket, nil
}

// Assign sets the human assignee on a ticket.
func (s *TicketService) Assign(ctx context.Context, actorID, ticketID, assigneeID string) (*domain.Ticket, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	ticket.AssigneeID = &assigneeID
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, err
	}

	s.auditor.Record(ctx, ticket.ID, uuid.NewString(), domain.ActorAgent, domain.ActionAssigned, map[string]any{
		"assigneeId": assigneeID,
		"assignedBy": actorID,
	})
	return ticket, nil
}

func (s *TicketService) loadTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, err
	}
	return ticket, nil
}

func (s *TicketService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
