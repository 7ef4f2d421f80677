package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// SuggestionFilter narrows pending-suggestion listings.
type SuggestionFilter struct {
	Category      *domain.TicketCategory
	MinConfidence *float64
	MaxAge        *time.Duration
	Limit         int
}

// SuggestionRepository persists triage outcomes.
type SuggestionRepository interface {
	Create(ctx context.Context, suggestion *domain.AgentSuggestion) error
	Update(ctx context.Context, suggestion *domain.AgentSuggestion) error
	GetByID(ctx context.Context, id string) (*domain.AgentSuggestion, error)
	GetByTicket(ctx context.Context, ticketID string) (*domain.AgentSuggestion, error)
	ListPending(ctx context.Context, filter SuggestionFilter) ([]domain.AgentSuggestion, error)
}

type suggestionRepository struct {
	pool *pgxpool.Pool
}

// NewSuggestionRepository instantiates repository.
func NewSuggestionRepository(pool *pgxpool.Pool) SuggestionRepository {
	return &suggestionRepository{pool: pool}
}

const suggestionColumns = `id, ticket_id, predicted_category, article_ids, draft_reply, confidence, auto_closed,
        model_provider, model_name, prompt_version, latency_ms, created_at, updated_at`

func (r *suggestionRepository) Create(ctx context.Context, suggestion *domain.AgentSuggestion) error {
	const query = `
        INSERT INTO agent_suggestions (ticket_id, predicted_category, article_ids, draft_reply, confidence, auto_closed,
            model_provider, model_name, prompt_version, latency_ms)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		suggestion.TicketID,
		suggestion.PredictedCategory,
		suggestion.ArticleIDs,
		suggestion.DraftReply,
		suggestion.Confidence,
		suggestion.AutoClosed,
		suggestion.ModelInfo.Provider,
		suggestion.ModelInfo.Model,
		suggestion.ModelInfo.PromptVersion,
		suggestion.ModelInfo.LatencyMs,
	).Scan(&suggestion.ID, &suggestion.CreatedAt, &suggestion.UpdatedAt)
}

func (r *suggestionRepository) Update(ctx context.Context, suggestion *domain.AgentSuggestion) error {
	const query = `
        UPDATE agent_suggestions SET predicted_category=$1, article_ids=$2, draft_reply=$3, confidence=$4,
            auto_closed=$5, model_provider=$6, model_name=$7, prompt_version=$8, latency_ms=$9, updated_at=NOW()
        WHERE id=$10`
	cmd, err := r.pool.Exec(ctx, query,
		suggestion.PredictedCategory,
		suggestion.ArticleIDs,
		suggestion.DraftReply,
		suggestion.Confidence,
		suggestion.AutoClosed,
		suggestion.ModelInfo.Provider,
		suggestion.ModelInfo.Model,
		suggestion.ModelInfo.PromptVersion,
		suggestion.ModelInfo.LatencyMs,
		suggestion.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *suggestionRepository) GetByID(ctx context.Context, id string) (*domain.AgentSuggestion, error) {
	query := fmt.Sprintf(`SELECT %s FROM agent_suggestions WHERE id=$1`, suggestionColumns)
	return r.fetchSingle(ctx, query, id)
}

func (r *suggestionRepository) GetByTicket(ctx context.Context, ticketID string) (*domain.AgentSuggestion, error) {
	query := fmt.Sprintf(`SELECT %s FROM agent_suggestions WHERE ticket_id=$1 ORDER BY created_at DESC LIMIT 1`, suggestionColumns)
	return r.fetchSingle(ctx, query, ticketID)
}

func (r *suggestionRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.AgentSuggestion, error) {
	var suggestion domain.AgentSuggestion
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&suggestion.ID,
		&suggestion.TicketID,
		&suggestion.PredictedCategory,
		&suggestion.ArticleIDs,
		&suggestion.DraftReply,
		&suggestion.Confidence,
		&suggestion.AutoClosed,
		&suggestion.ModelInfo.Provider,
		&suggestion.ModelInfo.Model,
		&suggestion.ModelInfo.PromptVersion,
		&suggestion.ModelInfo.LatencyMs,
		&suggestion.CreatedAt,
		&suggestion.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &suggestion, nil
}

func (r *suggestionRepository) ListPending(ctx context.Context, filter SuggestionFilter) ([]domain.AgentSuggestion, error) {
	clauses := []string{"auto_closed=false"}
	args := []any{}

	if filter.Category != nil {
		args = append(args, *filter.Category)
		clauses = append(clauses, fmt.Sprintf("predicted_category=$%d", len(args)))
	}
	if filter.MinConfidence != nil {
		args = append(args, *filter.MinConfidence)
		clauses = append(clauses, fmt.Sprintf("confidence >= $%d", len(args)))
	}
	if filter.MaxAge != nil {
		args = append(args, time.Now().Add(-*filter.MaxAge))
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf(`SELECT %s FROM agent_suggestions WHERE %s ORDER BY created_at DESC LIMIT %d`,
		suggestionColumns, strings.Join(clauses, " AND "), limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AgentSuggestion
	for rows.Next() {
		var suggestion domain.AgentSuggestion
		if err := rows.Scan(
			&suggestion.ID,
			&suggestion.TicketID,
			&suggestion.PredictedCategory,
			&suggestion.ArticleIDs,
			&suggestion.DraftReply,
			&suggestion.Confidence,
			&suggestion.AutoClosed,
			&suggestion.ModelInfo.Provider,
			&suggestion.ModelInfo.Model,
			&suggestion.ModelInfo.PromptVersion,
			&suggestion.ModelInfo.LatencyMs,
			&suggestion.CreatedAt,
			&suggestion.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, suggestion)
	}
	return result, rows.Err()
}
