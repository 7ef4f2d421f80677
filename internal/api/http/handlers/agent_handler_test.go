package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/audit"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/triage"
)

type stubTicketRepo struct {
	tickets map[string]*domain.Ticket
}

func (s *stubTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	clone := *ticket
	s.tickets[ticket.ID] = &clone
	return nil
}

func (s *stubTicketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	if _, ok := s.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	clone := *ticket
	s.tickets[ticket.ID] = &clone
	return nil
}

func (s *stubTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	ticket, ok := s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *ticket
	return &clone, nil
}

func (s *stubTicketRepo) List(_ context.Context, _ repository.TicketFilter) ([]domain.Ticket, error) {
	return nil, nil
}

type stubSuggestionRepo struct {
	suggestions map[string]*domain.AgentSuggestion
	creates     int
}

func (s *stubSuggestionRepo) Create(_ context.Context, sg *domain.AgentSuggestion) error {
	s.creates++
	sg.ID = "sugg-1"
	sg.CreatedAt = time.Now()
	clone := *sg
	s.suggestions[sg.ID] = &clone
	return nil
}

func (s *stubSuggestionRepo) Update(_ context.Context, sg *domain.AgentSuggestion) error {
	clone := *sg
	s.suggestions[sg.ID] = &clone
	return nil
}

func (s *stubSuggestionRepo) GetByID(_ context.Context, id string) (*domain.AgentSuggestion, error) {
	sg, ok := s.suggestions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *sg
	return &clone, nil
}

func (s *stubSuggestionRepo) GetByTicket(_ context.Context, _ string) (*domain.AgentSuggestion, error) {
	return nil, pgx.ErrNoRows
}

func (s *stubSuggestionRepo) ListPending(_ context.Context, _ repository.SuggestionFilter) ([]domain.AgentSuggestion, error) {
	return nil, nil
}

type stubReplyRepo struct{}

func (s *stubReplyRepo) Create(_ context.Context, reply *domain.Reply) error {
	reply.ID = "reply-1"
	return nil
}

func (s *stubReplyRepo) ListByTicket(_ context.Context, _ string) ([]domain.Reply, error) {
	return nil, nil
}

type stubArticleRepo struct{}

func (s *stubArticleRepo) Create(_ context.Context, _ *domain.Article) error { return nil }
func (s *stubArticleRepo) Update(_ context.Context, _ *domain.Article) error { return nil }
func (s *stubArticleRepo) Delete(_ context.Context, _ string) error          { return nil }
func (s *stubArticleRepo) GetByID(_ context.Context, _ string) (*domain.Article, error) {
	return nil, pgx.ErrNoRows
}
func (s *stubArticleRepo) GetByIDs(_ context.Context, _ []string) ([]domain.Article, error) {
	return nil, nil
}
func (s *stubArticleRepo) Search(_ context.Context, _ string, _ int) ([]domain.Article, error) {
	return nil, nil
}
func (s *stubArticleRepo) ListPublished(_ context.Context, _ int) ([]domain.Article, error) {
	return nil, nil
}

type stubAuditRepo struct {
	events []domain.AuditEvent
}

func (s *stubAuditRepo) Append(_ context.Context, event *domain.AuditEvent) error {
	s.events = append(s.events, *event)
	return nil
}

func (s *stubAuditRepo) ListByTicket(_ context.Context, _ string) ([]domain.AuditEvent, error) {
	return s.events, nil
}

func newTriageApp(t *testing.T) (*fiber.App, *stubTicketRepo, *stubSuggestionRepo, *stubAuditRepo) {
	t.Helper()

	tickets := &stubTicketRepo{tickets: map[string]*domain.Ticket{}}
	suggestions := &stubSuggestionRepo{suggestions: map[string]*domain.AgentSuggestion{}}
	auditRepo := &stubAuditRepo{}
	logger := zap.NewNop()

	orchestrator := triage.NewOrchestrator(triage.Dependencies{
		TicketRepo:     tickets,
		SuggestionRepo: suggestions,
		ReplyRepo:      &stubReplyRepo{},
		ArticleRepo:    &stubArticleRepo{},
		Classifier:     triage.NewKeywordClassifier(),
		Retriever:      triage.NewArticleRetriever(&stubArticleRepo{}, logger),
		Drafter:        triage.NewDrafter(nil),
		Auditor:        audit.NewRecorder(auditRepo, logger, nil),
		Settings:       triage.NewSettingsStore(triage.Settings{AutoCloseEnabled: true, ConfidenceThreshold: 0.78}),
		Logger:         logger,
	})

	handler := NewAgentHandler(orchestrator)
	app := fiber.New()
	app.Post("/api/agent/triage", handler.Triage)
	return app, tickets, suggestions, auditRepo
}

func postTriage(t *testing.T, app *fiber.App, body string) (int, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(fiber.MethodPost, "/api/agent/triage", bytes.NewBufferString(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var parsed map[string]any
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &parsed)
	}
	return resp.StatusCode, parsed
}

func TestTriageEndpointRunsPipeline(t *testing.T) {
	app, tickets, suggestions, auditRepo := newTriageApp(t)
	tickets.tickets["t1"] = &domain.Ticket{
		ID:          "t1",
		Title:       "Refund for double charge",
		Description: "I was charged twice for order #1234",
		Status:      domain.TicketStatusOpen,
		CreatedBy:   "user-1",
	}

	status, body := postTriage(t, app, `{"ticket_id":"t1"}`)
	require.Equal(t, fiber.StatusOK, status)

	data, ok := body["data"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "t1", data["ticket_id"])
	require.Equal(t, string(domain.CategoryBilling), data["predicted_category"])
	require.Equal(t, true, data["auto_closed"])

	require.Equal(t, 1, suggestions.creates)
	stored, err := tickets.GetByID(context.Background(), "t1")
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusResolved, stored.Status)

	require.NotEmpty(t, auditRepo.events)
	require.Equal(t, domain.ActionTriageStarted, auditRepo.events[0].Action)
}

func TestTriageEndpointRequiresTicketID(t *testing.T) {
	app, _, suggestions, _ := newTriageApp(t)

	postTriage(t, app, `{}`)
	require.Equal(t, 0, suggestions.creates)
}

func TestTriageEndpointUnknownTicket(t *testing.T) {
	app, _, suggestions, auditRepo := newTriageApp(t)

	status, _ := postTriage(t, app, `{"ticket_id":"missing"}`)
	require.NotEqual(t, fiber.StatusOK, status)
	require.Equal(t, 0, suggestions.creates)
	require.Empty(t, auditRepo.events)
}
