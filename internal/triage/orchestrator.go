// Package triage implements the automated pipeline that classifies a
// ticket, retrieves reference material, drafts a reply and decides
// whether to resolve automatically or hand the ticket to a human.
package triage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/audit"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/retry"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

const (
	providerStub   = "stub"
	modelHeuristic = "heuristic"
	promptVersion  = "v1"
)

// Orchestrator sequences the triage pipeline and owns all ticket status
// transitions made by automation.
//
// Concurrent runs for different tickets are fully independent. A
// regeneration racing a triage run on the same ticket is resolved by
// last-writer-wins on the suggestion row; there is no optimistic
// version guard, matching v1 semantics.
type Orchestrator struct {
	tickets     repository.TicketRepository
	suggestions repository.SuggestionRepository
	replies     repository.ReplyRepository
	articles    repository.ArticleRepository
	classifier  Classifier
	retriever   Retriever
	drafter     *Drafter
	auditor     *audit.Recorder
	settings    SettingsProvider
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	clock       func() time.Time
}

// Dependencies bundles collaborators for the orchestrator.
type Dependencies struct {
	TicketRepo     repository.TicketRepository
	SuggestionRepo repository.SuggestionRepository
	ReplyRepo      repository.ReplyRepository
	ArticleRepo    repository.ArticleRepository
	Classifier     Classifier
	Retriever      Retriever
	Drafter        *Drafter
	Auditor        *audit.Recorder
	Settings       SettingsProvider
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
	Clock          func() time.Time
}

// NewOrchestrator constructs the orchestrator.
func NewOrchestrator(deps Dependencies) *Orchestrator {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Orchestrator{
		tickets:     deps.TicketRepo,
		suggestions: deps.SuggestionRepo,
		replies:     deps.ReplyRepo,
		articles:    deps.ArticleRepo,
		classifier:  deps.Classifier,
		retriever:   deps.Retriever,
		drafter:     deps.Drafter,
		auditor:     deps.Auditor,
		settings:    deps.Settings,
		dispatcher:  deps.Dispatcher,
		logger:      deps.Logger,
		clock:       clock,
	}
}

// Run executes one triage run for the ticket. The whole run is retried
// once on unexpected server-class failure; NotFound and validation
// failures are surfaced immediately.
func (o *Orchestrator) Run(ctx context.Context, ticketID, correlationID string) (*domain.AgentSuggestion, error) {
	suggestion, err := retry.Do(ctx, o.logger, "ticket triage", retry.TriagePolicy(),
		func(ctx context.Context) (*domain.AgentSuggestion, error) {
			return o.runOnce(ctx, ticketID, correlationID)
		})
	if err != nil {
		observability.TriageRuns.WithLabelValues("failed").Inc()
		return nil, err
	}
	return suggestion, nil
}

func (o *Orchestrator) runOnce(ctx context.Context, ticketID, correlationID string) (*domain.AgentSuggestion, error) {
	started := o.clock()

	ticket, err := o.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	o.auditor.Record(ctx, ticketID, correlationID, domain.ActorSystem, domain.ActionTriageStarted, nil)

	text := ticket.Title + " " + ticket.Description

	cls := o.classifier.Classify(text)
	o.auditor.Record(ctx, ticketID, correlationID, domain.ActorSystem, domain.ActionAgentClassified, map[string]any{
		"predictedCategory": cls.Category,
		"confidence":        cls.Confidence,
	})

	articles, err := o.retriever.Retrieve(ctx, text)
	if err != nil {
		return nil, err
	}
	o.auditor.Record(ctx, ticketID, correlationID, domain.ActorSystem, domain.ActionKBRetrieved, map[string]any{
		"articleIds": articleIDs(articles),
	})

	draft := o.drafter.Draft(ticket, cls.Category, articles, DefaultTemplate)
	o.auditor.Record(ctx, ticketID, correlationID, domain.ActorSystem, domain.ActionDraftGenerated, map[string]any{
		"citations": draft.CitationIDs,
	})

	settings, err := o.settings.TriageSettings(ctx)
	if err != nil {
		return nil, err
	}
	autoClose := settings.AutoCloseEnabled && cls.Confidence >= settings.ConfidenceThreshold

	suggestion := &domain.AgentSuggestion{
		TicketID:          ticket.ID,
		PredictedCategory: cls.Category,
		ArticleIDs:        articleIDs(articles),
		DraftReply:        draft.Body,
		Confidence:        cls.Confidence,
		AutoClosed:        autoClose,
		ModelInfo: domain.ModelInfo{
			Provider:      providerStub,
			Model:         modelHeuristic,
			PromptVersion: promptVersion,
			LatencyMs:     o.clock().Sub(started).Milliseconds(),
		},
	}
	if err := o.suggestions.Create(ctx, suggestion); err != nil {
		return nil, err
	}

	category := cls.Category
	ticket.Category = &category
	ticket.SuggestionID = &suggestion.ID

	if autoClose {
		ticket.Status = domain.TicketStatusResolved
		reply := &domain.Reply{
			TicketID:      ticket.ID,
			AuthorKind:    domain.ReplyAuthorSystem,
			Body:          draft.Body,
			AutoGenerated: true,
			SuggestionID:  &suggestion.ID,
		}
		if err := o.replies.Create(ctx, reply); err != nil {
			return nil, err
		}
		o.auditor.Record(ctx, ticketID, correlationID, domain.ActorSystem, domain.ActionAutoClosed, map[string]any{
			"confidence": cls.Confidence,
			"threshold":  settings.ConfidenceThreshold,
		})
		o.auditor.Record(ctx, ticketID, correlationID, domain.ActorSystem, domain.ActionAutoReplySent, map[string]any{
			"replyBody": reply.Body,
		})
	} else {
		ticket.Status = domain.TicketStatusWaitingHuman
		o.auditor.Record(ctx, ticketID, correlationID, domain.ActorSystem, domain.ActionAssignedToHuman, nil)
	}

	if err := o.tickets.Update(ctx, ticket); err != nil {
		return nil, err
	}
	o.auditor.Record(ctx, ticketID, correlationID, domain.ActorSystem, domain.ActionTriageCompleted, nil)

	if autoClose {
		observability.TriageRuns.WithLabelValues("auto_closed").Inc()
	} else {
		observability.TriageRuns.WithLabelValues("assigned").Inc()
	}
	o.publish(ctx, events.Event{
		Type:     events.EventTriageCompleted,
		TicketID: ticket.ID,
		Actor:    events.Actor{Type: domain.ActorSystem},
		Payload: events.TriageCompletedPayload{
			SuggestionID: suggestion.ID,
			Category:     cls.Category,
			Confidence:   cls.Confidence,
			AutoClosed:   autoClose,
		},
	})

	o.logger.Info("triage completed",
		zap.String("ticket_id", ticket.ID),
		zap.String("correlation_id", correlationID),
		zap.String("category", string(cls.Category)),
		zap.Float64("confidence", cls.Confidence),
		zap.Bool("auto_closed", autoClose))

	return suggestion, nil
}

// Regenerate re-runs classification, retrieval and drafting with the
// requested template, updating the existing suggestion row in place (or
// creating one if none exists). Ticket status is never changed here.
func (o *Orchestrator) Regenerate(ctx context.Context, ticketID, correlationID, templateName string) (*domain.AgentSuggestion, error) {
	if templateName == "" {
		templateName = DefaultTemplate
	}
	return retry.Do(ctx, o.logger, "regenerate suggestion", retry.StoragePolicy(),
		func(ctx context.Context) (*domain.AgentSuggestion, error) {
			return o.regenerateOnce(ctx, ticketID, correlationID, templateName)
		})
}

func (o *Orchestrator) regenerateOnce(ctx context.Context, ticketID, correlationID, templateName string) (*domain.AgentSuggestion, error) {
	ticket, err := o.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	o.auditor.Record(ctx, ticketID, correlationID, domain.ActorAgent, domain.ActionSuggestionRegenerated, map[string]any{
		"template": templateName,
	})

	text := ticket.Title + " " + ticket.Description
	cls := o.classifier.Classify(text)

	articles, err := o.retriever.Retrieve(ctx, text)
	if err != nil {
		return nil, err
	}

	draft := o.drafter.Draft(ticket, cls.Category, articles, templateName)
	version := promptVersion + "-" + templateName

	suggestion, err := o.suggestions.GetByTicket(ctx, ticket.ID)
	switch {
	case err == nil:
		suggestion.PredictedCategory = cls.Category
		suggestion.ArticleIDs = articleIDs(articles)
		suggestion.DraftReply = draft.Body
		suggestion.Confidence = cls.Confidence
		suggestion.ModelInfo.PromptVersion = version
		if err := o.suggestions.Update(ctx, suggestion); err != nil {
			return nil, err
		}
	case errors.Is(err, pgx.ErrNoRows):
		suggestion = &domain.AgentSuggestion{
			TicketID:          ticket.ID,
			PredictedCategory: cls.Category,
			ArticleIDs:        articleIDs(articles),
			DraftReply:        draft.Body,
			Confidence:        cls.Confidence,
			AutoClosed:        false,
			ModelInfo: domain.ModelInfo{
				Provider:      providerStub,
				Model:         modelHeuristic,
				PromptVersion: version,
			},
		}
		if err := o.suggestions.Create(ctx, suggestion); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	o.auditor.Record(ctx, ticketID, correlationID, domain.ActorAgent, domain.ActionSuggestionUpdated, map[string]any{
		"suggestionId": suggestion.ID,
		"template":     templateName,
		"confidence":   cls.Confidence,
	})
	o.publish(ctx, events.Event{
		Type:     events.EventSuggestionUpdated,
		TicketID: ticket.ID,
		Actor:    events.Actor{Type: domain.ActorAgent},
		Payload: events.SuggestionUpdatedPayload{
			SuggestionID: suggestion.ID,
			Template:     templateName,
			Confidence:   cls.Confidence,
		},
	})

	return suggestion, nil
}

// SendReplyInput describes an agent reply dispatch.
type SendReplyInput struct {
	SuggestionID  string
	AgentID       string
	CustomReply   string
	CorrelationID string
	ResolveTicket bool
}

// ReplyResult bundles the records touched by a reply dispatch.
type ReplyResult struct {
	Reply      *domain.Reply
	Ticket     *domain.Ticket
	Suggestion *domain.AgentSuggestion
}

// SendReply creates an agent-authored reply from a suggestion (or the
// agent's custom text) and moves the ticket to resolved or
// waiting_human per the resolve flag.
func (o *Orchestrator) SendReply(ctx context.Context, input SendReplyInput) (*ReplyResult, error) {
	return retry.Do(ctx, o.logger, "send agent reply", retry.StoragePolicy(),
		func(ctx context.Context) (*ReplyResult, error) {
			return o.sendReplyOnce(ctx, input)
		})
}

func (o *Orchestrator) sendReplyOnce(ctx context.Context, input SendReplyInput) (*ReplyResult, error) {
	suggestion, err := o.suggestions.GetByID(ctx, input.SuggestionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("agent suggestion", map[string]any{"suggestion_id": input.SuggestionID})
		}
		return nil, err
	}

	ticket, err := o.loadTicket(ctx, suggestion.TicketID)
	if err != nil {
		return nil, err
	}

	body := input.CustomReply
	if body == "" {
		body = suggestion.DraftReply
	}

	agentID := input.AgentID
	reply := &domain.Reply{
		TicketID:      ticket.ID,
		AuthorID:      &agentID,
		AuthorKind:    domain.ReplyAuthorAgent,
		Body:          body,
		AutoGenerated: false,
		SuggestionID:  &suggestion.ID,
	}
	if err := o.replies.Create(ctx, reply); err != nil {
		return nil, err
	}

	if input.ResolveTicket {
		ticket.Status = domain.TicketStatusResolved
	} else {
		ticket.Status = domain.TicketStatusWaitingHuman
	}
	if err := o.tickets.Update(ctx, ticket); err != nil {
		return nil, err
	}

	o.auditor.Record(ctx, ticket.ID, input.CorrelationID, domain.ActorAgent, domain.ActionAgentReplySent, map[string]any{
		"replyId":      reply.ID,
		"suggestionId": suggestion.ID,
		"customReply":  input.CustomReply != "",
		"resolved":     input.ResolveTicket,
	})
	if input.ResolveTicket {
		o.auditor.Record(ctx, ticket.ID, input.CorrelationID, domain.ActorAgent, domain.ActionTicketResolved, map[string]any{
			"resolvedBy":   input.AgentID,
			"suggestionId": suggestion.ID,
		})
	}

	o.publish(ctx, events.Event{
		Type:     events.EventReplySent,
		TicketID: ticket.ID,
		Actor:    events.Actor{Type: domain.ActorAgent, UserID: &agentID},
		Payload: events.ReplySentPayload{
			ReplyID:    reply.ID,
			AuthorKind: domain.ReplyAuthorAgent,
			Resolved:   input.ResolveTicket,
		},
	})

	return &ReplyResult{Reply: reply, Ticket: ticket, Suggestion: suggestion}, nil
}

// SuggestionDetail is a suggestion with its ticket and cited articles
// populated for agent review.
type SuggestionDetail struct {
	Suggestion *domain.AgentSuggestion
	Ticket     *domain.Ticket
	Articles   []domain.Article
}

// Suggestion loads one suggestion with its ticket and articles.
func (o *Orchestrator) Suggestion(ctx context.Context, suggestionID string) (*SuggestionDetail, error) {
	return retry.Do(ctx, o.logger, "get agent suggestion", retry.StoragePolicy(),
		func(ctx context.Context) (*SuggestionDetail, error) {
			suggestion, err := o.suggestions.GetByID(ctx, suggestionID)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return nil, apperrors.NewNotFound("agent suggestion", map[string]any{"suggestion_id": suggestionID})
				}
				return nil, err
			}
			ticket, err := o.loadTicket(ctx, suggestion.TicketID)
			if err != nil {
				return nil, err
			}
			articles, err := o.articles.GetByIDs(ctx, suggestion.ArticleIDs)
			if err != nil {
				return nil, err
			}
			return &SuggestionDetail{Suggestion: suggestion, Ticket: ticket, Articles: articles}, nil
		})
}

// SuggestionByTicket loads the latest suggestion for a ticket.
func (o *Orchestrator) SuggestionByTicket(ctx context.Context, ticketID string) (*domain.AgentSuggestion, error) {
	suggestion, err := o.suggestions.GetByTicket(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("agent suggestion", map[string]any{"ticket_id": ticketID})
		}
		return nil, err
	}
	return suggestion, nil
}

// PendingSuggestions lists suggestions awaiting agent review, newest
// first.
func (o *Orchestrator) PendingSuggestions(ctx context.Context, filter repository.SuggestionFilter) ([]domain.AgentSuggestion, error) {
	return retry.Do(ctx, o.logger, "get pending suggestions", retry.StoragePolicy(),
		func(ctx context.Context) ([]domain.AgentSuggestion, error) {
			return o.suggestions.ListPending(ctx, filter)
		})
}

func (o *Orchestrator) loadTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := o.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, err
	}
	return ticket, nil
}

func (o *Orchestrator) publish(ctx context.Context, event events.Event) {
	if o.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = o.clock()
	}
	_ = o.dispatcher.Publish(ctx, event)
}

func articleIDs(articles []domain.Article) []string {
	ids := make([]string, 0, len(articles))
	for _, article := range articles {
		ids = append(ids, article.ID)
	}
	return ids
}
