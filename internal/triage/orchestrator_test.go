package triage

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/audit"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// --- in-memory fakes ---

type memTicketRepo struct {
	tickets map[string]*domain.Ticket
	nextID  int
}

func newMemTicketRepo() *memTicketRepo {
	return &memTicketRepo{tickets: map[string]*domain.Ticket{}}
}

func (m *memTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	m.nextID++
	ticket.ID = "ticket-" + string(rune('0'+m.nextID))
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	clone := *ticket
	m.tickets[ticket.ID] = &clone
	return nil
}

func (m *memTicketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	if _, ok := m.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	clone := *ticket
	m.tickets[ticket.ID] = &clone
	return nil
}

func (m *memTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	ticket, ok := m.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *ticket
	return &clone, nil
}

func (m *memTicketRepo) List(_ context.Context, _ repository.TicketFilter) ([]domain.Ticket, error) {
	var out []domain.Ticket
	for _, t := range m.tickets {
		out = append(out, *t)
	}
	return out, nil
}

type memSuggestionRepo struct {
	suggestions map[string]*domain.AgentSuggestion
	creates     int
	updates     int
	nextID      int
}

func newMemSuggestionRepo() *memSuggestionRepo {
	return &memSuggestionRepo{suggestions: map[string]*domain.AgentSuggestion{}}
}

func (m *memSuggestionRepo) Create(_ context.Context, s *domain.AgentSuggestion) error {
	m.creates++
	m.nextID++
	s.ID = "sugg-" + string(rune('0'+m.nextID))
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt
	clone := *s
	m.suggestions[s.ID] = &clone
	return nil
}

func (m *memSuggestionRepo) Update(_ context.Context, s *domain.AgentSuggestion) error {
	if _, ok := m.suggestions[s.ID]; !ok {
		return pgx.ErrNoRows
	}
	m.updates++
	clone := *s
	m.suggestions[s.ID] = &clone
	return nil
}

func (m *memSuggestionRepo) GetByID(_ context.Context, id string) (*domain.AgentSuggestion, error) {
	s, ok := m.suggestions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *s
	return &clone, nil
}

func (m *memSuggestionRepo) GetByTicket(_ context.Context, ticketID string) (*domain.AgentSuggestion, error) {
	var latest *domain.AgentSuggestion
	for _, s := range m.suggestions {
		if s.TicketID != ticketID {
			continue
		}
		if latest == nil || s.CreatedAt.After(latest.CreatedAt) {
			latest = s
		}
	}
	if latest == nil {
		return nil, pgx.ErrNoRows
	}
	clone := *latest
	return &clone, nil
}

func (m *memSuggestionRepo) ListPending(_ context.Context, _ repository.SuggestionFilter) ([]domain.AgentSuggestion, error) {
	var out []domain.AgentSuggestion
	for _, s := range m.suggestions {
		if !s.AutoClosed {
			out = append(out, *s)
		}
	}
	return out, nil
}

type memReplyRepo struct {
	replies []domain.Reply
}

func (m *memReplyRepo) Create(_ context.Context, reply *domain.Reply) error {
	reply.ID = "reply-" + string(rune('0'+len(m.replies)+1))
	reply.CreatedAt = time.Now()
	m.replies = append(m.replies, *reply)
	return nil
}

func (m *memReplyRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Reply, error) {
	var out []domain.Reply
	for _, r := range m.replies {
		if r.TicketID == ticketID {
			out = append(out, r)
		}
	}
	return out, nil
}

type memArticleRepo struct {
	searchResults []domain.Article
	searchErrs    []error
}

func (m *memArticleRepo) Create(_ context.Context, _ *domain.Article) error { return nil }
func (m *memArticleRepo) Update(_ context.Context, _ *domain.Article) error { return nil }
func (m *memArticleRepo) Delete(_ context.Context, _ string) error          { return nil }
func (m *memArticleRepo) GetByID(_ context.Context, _ string) (*domain.Article, error) {
	return nil, pgx.ErrNoRows
}

func (m *memArticleRepo) GetByIDs(_ context.Context, ids []string) ([]domain.Article, error) {
	var out []domain.Article
	for _, a := range m.searchResults {
		for _, id := range ids {
			if a.ID == id {
				out = append(out, a)
			}
		}
	}
	return out, nil
}

func (m *memArticleRepo) Search(_ context.Context, _ string, limit int) ([]domain.Article, error) {
	if len(m.searchErrs) > 0 {
		err := m.searchErrs[0]
		m.searchErrs = m.searchErrs[1:]
		return nil, err
	}
	if len(m.searchResults) > limit {
		return m.searchResults[:limit], nil
	}
	return m.searchResults, nil
}

func (m *memArticleRepo) ListPublished(_ context.Context, _ int) ([]domain.Article, error) {
	return m.searchResults, nil
}

type memAuditRepo struct {
	events []domain.AuditEvent
}

func (m *memAuditRepo) Append(_ context.Context, event *domain.AuditEvent) error {
	m.events = append(m.events, *event)
	return nil
}

func (m *memAuditRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.AuditEvent, error) {
	var out []domain.AuditEvent
	for _, e := range m.events {
		if e.TicketID == ticketID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (m *memAuditRepo) actions(correlationID string) []domain.AuditAction {
	var out []domain.AuditAction
	for _, e := range m.events {
		if e.CorrelationID == correlationID {
			out = append(out, e.Action)
		}
	}
	return out
}

// --- harness ---

type harness struct {
	orch        *Orchestrator
	tickets     *memTicketRepo
	suggestions *memSuggestionRepo
	replies     *memReplyRepo
	articles    *memArticleRepo
	auditRepo   *memAuditRepo
	settings    *SettingsStore
}

func newHarness(t *testing.T, settings Settings) *harness {
	t.Helper()

	tickets := newMemTicketRepo()
	suggestions := newMemSuggestionRepo()
	replies := &memReplyRepo{}
	articles := &memArticleRepo{}
	auditRepo := &memAuditRepo{}
	store := NewSettingsStore(settings)

	// Monotonic clock so audit ordering assertions are strict.
	current := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		current = current.Add(time.Millisecond)
		return current
	}

	logger := zap.NewNop()
	orch := NewOrchestrator(Dependencies{
		TicketRepo:     tickets,
		SuggestionRepo: suggestions,
		ReplyRepo:      replies,
		ArticleRepo:    articles,
		Classifier:     NewKeywordClassifier(),
		Retriever:      NewArticleRetriever(articles, logger),
		Drafter:        NewDrafter(clock),
		Auditor:        audit.NewRecorder(auditRepo, logger, clock),
		Settings:       store,
		Logger:         logger,
		Clock:          clock,
	})
	return &harness{
		orch:        orch,
		tickets:     tickets,
		suggestions: suggestions,
		replies:     replies,
		articles:    articles,
		auditRepo:   auditRepo,
		settings:    store,
	}
}

func (h *harness) createTicket(t *testing.T, title, description string) *domain.Ticket {
	t.Helper()
	ticket := &domain.Ticket{
		Title:       title,
		Description: description,
		Status:      domain.TicketStatusOpen,
		CreatedBy:   "user-1",
	}
	require.NoError(t, h.tickets.Create(context.Background(), ticket))
	return ticket
}

// --- tests ---

func TestRunAutoClosesHighConfidenceTicket(t *testing.T) {
	h := newHarness(t, Settings{AutoCloseEnabled: true, ConfidenceThreshold: 0.78})
	h.articles.searchResults = []domain.Article{
		{ID: "a1", Title: "Refund policy", Body: "How refunds work.", Status: domain.ArticleStatusPublished},
	}
	ticket := h.createTicket(t, "Refund for double charge", "I was charged twice for order #1234")

	suggestion, err := h.orch.Run(context.Background(), ticket.ID, "corr-1")
	require.NoError(t, err)

	require.Equal(t, domain.CategoryBilling, suggestion.PredictedCategory)
	require.GreaterOrEqual(t, suggestion.Confidence, 0.8)
	require.True(t, suggestion.AutoClosed)
	require.Equal(t, []string{"a1"}, suggestion.ArticleIDs)
	require.Equal(t, "stub", suggestion.ModelInfo.Provider)
	require.Equal(t, "heuristic", suggestion.ModelInfo.Model)
	require.Equal(t, "v1", suggestion.ModelInfo.PromptVersion)
	require.Greater(t, suggestion.ModelInfo.LatencyMs, int64(0))

	stored, err := h.tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusResolved, stored.Status)
	require.NotNil(t, stored.Category)
	require.Equal(t, domain.CategoryBilling, *stored.Category)
	require.NotNil(t, stored.SuggestionID)
	require.Equal(t, suggestion.ID, *stored.SuggestionID)

	replies, err := h.replies.ListByTicket(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.Len(t, replies, 1)
	require.Equal(t, domain.ReplyAuthorSystem, replies[0].AuthorKind)
	require.True(t, replies[0].AutoGenerated)
	require.Nil(t, replies[0].AuthorID)
	require.Equal(t, suggestion.DraftReply, replies[0].Body)

	actions := h.auditRepo.actions("corr-1")
	require.Equal(t, []domain.AuditAction{
		domain.ActionTriageStarted,
		domain.ActionAgentClassified,
		domain.ActionKBRetrieved,
		domain.ActionDraftGenerated,
		domain.ActionAutoClosed,
		domain.ActionAutoReplySent,
		domain.ActionTriageCompleted,
	}, actions)

	// AUTO_REPLY_SENT carries the sent body for trail consumers.
	for _, e := range h.auditRepo.events {
		if e.Action == domain.ActionAutoReplySent {
			require.Equal(t, suggestion.DraftReply, e.Meta["replyBody"])
		}
	}
}

func TestRunAssignsLowConfidenceTicketToHuman(t *testing.T) {
	h := newHarness(t, Settings{AutoCloseEnabled: true, ConfidenceThreshold: 0.78})
	ticket := h.createTicket(t, "Help me", "Something is wrong")

	suggestion, err := h.orch.Run(context.Background(), ticket.ID, "corr-2")
	require.NoError(t, err)

	require.Equal(t, domain.CategoryOther, suggestion.PredictedCategory)
	require.Equal(t, 0.5, suggestion.Confidence)
	require.False(t, suggestion.AutoClosed)

	stored, err := h.tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusWaitingHuman, stored.Status)

	replies, err := h.replies.ListByTicket(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.Empty(t, replies)

	actions := h.auditRepo.actions("corr-2")
	require.Contains(t, actions, domain.ActionAssignedToHuman)
	require.NotContains(t, actions, domain.ActionAutoClosed)
	require.NotContains(t, actions, domain.ActionAutoReplySent)
}

func TestRunRespectsAutoCloseDisabled(t *testing.T) {
	h := newHarness(t, Settings{AutoCloseEnabled: false, ConfidenceThreshold: 0.5})
	ticket := h.createTicket(t, "Refund for double charge", "I was charged twice")

	suggestion, err := h.orch.Run(context.Background(), ticket.ID, "corr-3")
	require.NoError(t, err)

	require.False(t, suggestion.AutoClosed)
	stored, _ := h.tickets.GetByID(context.Background(), ticket.ID)
	require.Equal(t, domain.TicketStatusWaitingHuman, stored.Status)
}

func TestRunAuditOrderingWithinCorrelation(t *testing.T) {
	h := newHarness(t, Settings{AutoCloseEnabled: true, ConfidenceThreshold: 0.78})
	ticket := h.createTicket(t, "Refund please", "charged twice")

	_, err := h.orch.Run(context.Background(), ticket.ID, "corr-4")
	require.NoError(t, err)

	events, err := h.auditRepo.ListByTicket(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.NotEmpty(t, events)

	// Exactly one TRIAGE_STARTED first and one TRIAGE_COMPLETED last,
	// strictly ascending timestamps throughout.
	require.Equal(t, domain.ActionTriageStarted, events[0].Action)
	require.Equal(t, domain.ActionTriageCompleted, events[len(events)-1].Action)
	started, completed := 0, 0
	for i, e := range events {
		if e.Action == domain.ActionTriageStarted {
			started++
		}
		if e.Action == domain.ActionTriageCompleted {
			completed++
		}
		if i > 0 {
			require.True(t, events[i-1].Timestamp.Before(e.Timestamp))
		}
	}
	require.Equal(t, 1, started)
	require.Equal(t, 1, completed)
}

func TestRunTicketNotFound(t *testing.T) {
	h := newHarness(t, Settings{AutoCloseEnabled: true, ConfidenceThreshold: 0.78})

	_, err := h.orch.Run(context.Background(), "missing", "corr-5")
	require.Error(t, err)

	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	require.Equal(t, "NOT_FOUND", domainErr.Code)
	// NotFound is a client error: the run must not be retried, so no
	// audit trail is produced at all.
	require.Empty(t, h.auditRepo.events)
}

func TestRunRetriesTransientRetrievalFailure(t *testing.T) {
	h := newHarness(t, Settings{AutoCloseEnabled: true, ConfidenceThreshold: 0.78})
	ticket := h.createTicket(t, "Refund please", "charged twice")

	// One connection failure, then success: the storage policy inside
	// the retriever absorbs it without failing the run.
	h.articles.searchErrs = []error{errors.New("connection reset by peer")}

	_, err := h.orch.Run(context.Background(), ticket.ID, "corr-6")
	require.NoError(t, err)

	stored, _ := h.tickets.GetByID(context.Background(), ticket.ID)
	require.Equal(t, domain.TicketStatusResolved, stored.Status)
}

func TestRegenerateReusesExistingSuggestionRow(t *testing.T) {
	h := newHarness(t, Settings{AutoCloseEnabled: false, ConfidenceThreshold: 0.78})
	ticket := h.createTicket(t, "Refund for double charge", "charged twice")

	first, err := h.orch.Run(context.Background(), ticket.ID, "corr-7")
	require.NoError(t, err)
	statusBefore := domain.TicketStatusWaitingHuman

	regenerated, err := h.orch.Regenerate(context.Background(), ticket.ID, "corr-8", "urgent")
	require.NoError(t, err)

	require.Equal(t, first.ID, regenerated.ID)
	require.Equal(t, 1, h.suggestions.creates)
	require.Equal(t, 1, h.suggestions.updates)
	require.Equal(t, "v1-urgent", regenerated.ModelInfo.PromptVersion)
	require.Contains(t, regenerated.DraftReply, "billing support line")

	stored, _ := h.tickets.GetByID(context.Background(), ticket.ID)
	require.Equal(t, statusBefore, stored.Status)

	actions := h.auditRepo.actions("corr-8")
	require.Equal(t, []domain.AuditAction{
		domain.ActionSuggestionRegenerated,
		domain.ActionSuggestionUpdated,
	}, actions)
}

func TestRegenerateCreatesRowWhenNoneExists(t *testing.T) {
	h := newHarness(t, Settings{AutoCloseEnabled: false, ConfidenceThreshold: 0.78})
	ticket := h.createTicket(t, "Refund for double charge", "charged twice")

	suggestion, err := h.orch.Regenerate(context.Background(), ticket.ID, "corr-9", "")
	require.NoError(t, err)

	require.Equal(t, 1, h.suggestions.creates)
	require.Equal(t, 0, h.suggestions.updates)
	require.False(t, suggestion.AutoClosed)
	require.Equal(t, "v1-default", suggestion.ModelInfo.PromptVersion)

	stored, _ := h.tickets.GetByID(context.Background(), ticket.ID)
	require.Equal(t, domain.TicketStatusOpen, stored.Status)
}

func TestSendReplyUsesDraftAndResolves(t *testing.T) {
	h := newHarness(t, Settings{AutoCloseEnabled: false, ConfidenceThreshold: 0.78})
	ticket := h.createTicket(t, "Refund for double charge", "charged twice")

	suggestion, err := h.orch.Run(context.Background(), ticket.ID, "corr-10")
	require.NoError(t, err)

	result, err := h.orch.SendReply(context.Background(), SendReplyInput{
		SuggestionID:  suggestion.ID,
		AgentID:       "agent-1",
		CorrelationID: "corr-11",
		ResolveTicket: true,
	})
	require.NoError(t, err)

	require.Equal(t, suggestion.DraftReply, result.Reply.Body)
	require.Equal(t, domain.ReplyAuthorAgent, result.Reply.AuthorKind)
	require.False(t, result.Reply.AutoGenerated)
	require.Equal(t, domain.TicketStatusResolved, result.Ticket.Status)

	actions := h.auditRepo.actions("corr-11")
	require.Equal(t, []domain.AuditAction{
		domain.ActionAgentReplySent,
		domain.ActionTicketResolved,
	}, actions)
}

func TestSendReplyCustomTextWithoutResolving(t *testing.T) {
	h := newHarness(t, Settings{AutoCloseEnabled: false, ConfidenceThreshold: 0.78})
	ticket := h.createTicket(t, "Refund for double charge", "charged twice")

	suggestion, err := h.orch.Run(context.Background(), ticket.ID, "corr-12")
	require.NoError(t, err)

	result, err := h.orch.SendReply(context.Background(), SendReplyInput{
		SuggestionID:  suggestion.ID,
		AgentID:       "agent-1",
		CustomReply:   "Let me look into this for you.",
		CorrelationID: "corr-13",
		ResolveTicket: false,
	})
	require.NoError(t, err)

	require.Equal(t, "Let me look into this for you.", result.Reply.Body)
	require.Equal(t, domain.TicketStatusWaitingHuman, result.Ticket.Status)

	actions := h.auditRepo.actions("corr-13")
	require.Equal(t, []domain.AuditAction{domain.ActionAgentReplySent}, actions)
}

func TestSendReplySuggestionNotFound(t *testing.T) {
	h := newHarness(t, Settings{AutoCloseEnabled: false, ConfidenceThreshold: 0.78})

	_, err := h.orch.SendReply(context.Background(), SendReplyInput{
		SuggestionID:  "missing",
		AgentID:       "agent-1",
		CorrelationID: "corr-14",
	})
	require.Error(t, err)

	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	require.Equal(t, "NOT_FOUND", domainErr.Code)
}

func TestSuggestionDetailPopulatesTicketAndArticles(t *testing.T) {
	h := newHarness(t, Settings{AutoCloseEnabled: false, ConfidenceThreshold: 0.78})
	h.articles.searchResults = []domain.Article{
		{ID: "a1", Title: "Refund policy", Body: "How refunds work.", Status: domain.ArticleStatusPublished},
	}
	ticket := h.createTicket(t, "Refund for double charge", "charged twice")

	suggestion, err := h.orch.Run(context.Background(), ticket.ID, "corr-15")
	require.NoError(t, err)

	detail, err := h.orch.Suggestion(context.Background(), suggestion.ID)
	require.NoError(t, err)
	require.Equal(t, ticket.ID, detail.Ticket.ID)
	require.Len(t, detail.Articles, 1)
	require.Equal(t, "a1", detail.Articles[0].ID)
}
