package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/audit"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/worker"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

type fakeTicketRepo struct {
	tickets map[string]*domain.Ticket
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{tickets: map[string]*domain.Ticket{}}
}

func (f *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	ticket.ID = uuid.NewString()
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	clone := *ticket
	f.tickets[ticket.ID] = &clone
	return nil
}

func (f *fakeTicketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	if _, ok := f.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	clone := *ticket
	f.tickets[ticket.ID] = &clone
	return nil
}

func (f *fakeTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	ticket, ok := f.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *ticket
	return &clone, nil
}

func (f *fakeTicketRepo) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	var out []domain.Ticket
	for _, t := range f.tickets {
		if filter.CreatedBy != nil && t.CreatedBy != *filter.CreatedBy {
			continue
		}
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

type fakeReplyRepo struct {
	replies []domain.Reply
}

func (f *fakeReplyRepo) Create(_ context.Context, reply *domain.Reply) error {
	reply.ID = uuid.NewString()
	f.replies = append(f.replies, *reply)
	return nil
}

func (f *fakeReplyRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Reply, error) {
	var out []domain.Reply
	for _, r := range f.replies {
		if r.TicketID == ticketID {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeAuditRepo struct {
	events []domain.AuditEvent
}

func (f *fakeAuditRepo) Append(_ context.Context, event *domain.AuditEvent) error {
	f.events = append(f.events, *event)
	return nil
}

func (f *fakeAuditRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.AuditEvent, error) {
	var out []domain.AuditEvent
	for _, e := range f.events {
		if e.TicketID == ticketID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeTriage struct {
	runs atomic.Int64
	last atomic.Value
}

func (f *fakeTriage) Run(_ context.Context, ticketID, correlationID string) (*domain.AgentSuggestion, error) {
	f.runs.Add(1)
	f.last.Store(ticketID + "/" + correlationID)
	return &domain.AgentSuggestion{TicketID: ticketID}, nil
}

func newTicketService(t *testing.T) (*TicketService, *fakeTicketRepo, *fakeAuditRepo, *fakeTriage, *worker.Pool) {
	t.Helper()

	tickets := newFakeTicketRepo()
	auditRepo := &fakeAuditRepo{}
	triage := &fakeTriage{}
	pool := worker.NewPool(2, zap.NewNop())

	svc := NewTicketService(TicketDependencies{
		TicketRepo: tickets,
		ReplyRepo:  &fakeReplyRepo{},
		Auditor:    audit.NewRecorder(auditRepo, zap.NewNop(), nil),
		Triage:     triage,
		Pool:       pool,
		Logger:     zap.NewNop(),
	})
	return svc, tickets, auditRepo, triage, pool
}

func TestCreateTicketSchedulesTriage(t *testing.T) {
	svc, tickets, auditRepo, triage, pool := newTicketService(t)

	ticket, correlationID, err := svc.CreateTicket(context.Background(), "user-1", TicketCreateInput{
		Title:       "Refund for double charge",
		Description: "I was charged twice for order #1234",
	})
	require.NoError(t, err)
	require.NotEmpty(t, ticket.ID)
	require.NotEmpty(t, correlationID)
	require.Equal(t, domain.TicketStatusOpen, ticket.Status)

	pool.Drain()
	require.Equal(t, int64(1), triage.runs.Load())
	require.Equal(t, ticket.ID+"/"+correlationID, triage.last.Load())

	stored, err := tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.Equal(t, "user-1", stored.CreatedBy)

	require.Len(t, auditRepo.events, 1)
	require.Equal(t, domain.ActionTicketCreated, auditRepo.events[0].Action)
	require.Equal(t, domain.ActorUser, auditRepo.events[0].Actor)
	require.Equal(t, correlationID, auditRepo.events[0].CorrelationID)
}

func TestCreateTicketValidatesInput(t *testing.T) {
	svc, _, _, triage, pool := newTicketService(t)

	_, _, err := svc.CreateTicket(context.Background(), "user-1", TicketCreateInput{Title: "  "})
	require.Error(t, err)
	require.Equal(t, 400, apperrors.StatusOf(err))

	pool.Drain()
	require.Equal(t, int64(0), triage.runs.Load())
}

func TestListTicketsScopesEndUsersToOwnTickets(t *testing.T) {
	svc, tickets, _, _, pool := newTicketService(t)
	defer pool.Drain()

	for _, owner := range []string{"user-1", "user-1", "user-2"} {
		require.NoError(t, tickets.Create(context.Background(), &domain.Ticket{
			Title: "t", Description: "d", Status: domain.TicketStatusOpen, CreatedBy: owner,
		}))
	}

	mine, err := svc.ListTickets(context.Background(), "user-1", domain.RoleUser, TicketListFilter{})
	require.NoError(t, err)
	require.Len(t, mine, 2)

	all, err := svc.ListTickets(context.Background(), "agent-1", domain.RoleAgent, TicketListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func TestGetTicketForbidsOtherUsers(t *testing.T) {
	svc, tickets, _, _, pool := newTicketService(t)
	defer pool.Drain()

	ticket := &domain.Ticket{Title: "t", Description: "d", Status: domain.TicketStatusOpen, CreatedBy: "user-1"}
	require.NoError(t, tickets.Create(context.Background(), ticket))

	_, _, err := svc.GetTicket(context.Background(), "user-2", domain.RoleUser, ticket.ID)
	require.Equal(t, 403, apperrors.StatusOf(err))

	_, _, err = svc.GetTicket(context.Background(), "agent-1", domain.RoleAgent, ticket.ID)
	require.NoError(t, err)
}

func TestReplyReopensOrResolves(t *testing.T) {
	svc, tickets, auditRepo, _, pool := newTicketService(t)
	defer pool.Drain()

	ticket := &domain.Ticket{Title: "t", Description: "d", Status: domain.TicketStatusResolved, CreatedBy: "user-1"}
	require.NoError(t, tickets.Create(context.Background(), ticket))

	updated, err := svc.Reply(context.Background(), "user-1", ticket.ID, "still broken", true)
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusOpen, updated.Status)

	updated, err = svc.Reply(context.Background(), "user-1", ticket.ID, "thanks, fixed", false)
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusResolved, updated.Status)

	var replySent int
	for _, e := range auditRepo.events {
		if e.Action == domain.ActionReplySent {
			replySent++
			require.NotEmpty(t, e.Meta["body"])
		}
	}
	require.Equal(t, 2, replySent)
}

func TestReplyRejectsNonOwner(t *testing.T) {
	svc, tickets, _, _, pool := newTicketService(t)
	defer pool.Drain()

	ticket := &domain.Ticket{Title: "t", Description: "d", Status: domain.TicketStatusOpen, CreatedBy: "user-1"}
	require.NoError(t, tickets.Create(context.Background(), ticket))

	_, err := svc.Reply(context.Background(), "user-2", ticket.ID, "hello", false)
	require.Equal(t, 403, apperrors.StatusOf(err))
}

func TestAssignRecordsAudit(t *testing.T) {
	svc, tickets, auditRepo, _, pool := newTicketService(t)
	defer pool.Drain()

	ticket := &domain.Ticket{Title: "t", Description: "d", Status: domain.TicketStatusWaitingHuman, CreatedBy: "user-1"}
	require.NoError(t, tickets.Create(context.Background(), ticket))

	updated, err := svc.Assign(context.Background(), "admin-1", ticket.ID, "agent-1")
	require.NoError(t, err)
	require.NotNil(t, updated.AssigneeID)
	require.Equal(t, "agent-1", *updated.AssigneeID)

	last := auditRepo.events[len(auditRepo.events)-1]
	require.Equal(t, domain.ActionAssigned, last.Action)
	require.Equal(t, "agent-1", last.Meta["assigneeId"])
}
