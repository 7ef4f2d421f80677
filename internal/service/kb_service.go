package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/retry"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

const defaultSearchLimit = 20

// KBService manages the knowledge base articles the triage pipeline
// retrieves from.
type KBService struct {
	articles repository.ArticleRepository
	logger   *zap.Logger
}

// NewKBService constructs the service.
func NewKBService(articles repository.ArticleRepository, logger *zap.Logger) *KBService {
	return &KBService{articles: articles, logger: logger}
}

// ArticleInput describes article create and update payloads.
type ArticleInput struct {
	Title  string
	Body   string
	Tags   []string
	Status domain.ArticleStatus
}

// CreateArticle validates and persists a new article.
func (s *KBService) CreateArticle(ctx context.Context, input ArticleInput) (*domain.Article, error) {
	article, err := articleFromInput(input)
	if err != nil {
		return nil, err
	}
	if err := s.articles.Create(ctx, article); err != nil {
		return nil, err
	}
	return article, nil
}

// UpdateArticle replaces an article's content.
func (s *KBService) UpdateArticle(ctx context.Context, id string, input ArticleInput) (*domain.Article, error) {
	existing, err := s.GetArticle(ctx, id)
	if err != nil {
		return nil, err
	}

	updated, err := articleFromInput(input)
	if err != nil {
		return nil, err
	}
	updated.ID = existing.ID
	if err := s.articles.Update(ctx, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteArticle removes an article.
func (s *KBService) DeleteArticle(ctx context.Context, id string) error {
	if err := s.articles.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("article", map[string]any{"article_id": id})
		}
		return err
	}
	return nil
}

// GetArticle loads one article.
func (s *KBService) GetArticle(ctx context.Context, id string) (*domain.Article, error) {
	article, err := s.articles.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("article", map[string]any{"article_id": id})
		}
		return nil, err
	}
	return article, nil
}

// Search runs a full-text query over published articles. An empty query
// lists recent published articles instead.
func (s *KBService) Search(ctx context.Context, query string, limit int) ([]domain.Article, error) {
	if limit <= 0 || limit > 100 {
		limit = defaultSearchLimit
	}
	query = strings.TrimSpace(query)

	return retry.Do(ctx, s.logger, "search KB articles", retry.StoragePolicy(),
		func(ctx context.Context) ([]domain.Article, error) {
			if query == "" {
				return s.articles.ListPublished(ctx, limit)
			}
			return s.articles.Search(ctx, query, limit)
		})
}

func articleFromInput(input ArticleInput) (*domain.Article, error) {
	title := strings.TrimSpace(input.Title)
	body := strings.TrimSpace(input.Body)
	if title == "" {
		return nil, apperrors.NewValidationError("title is required", nil)
	}
	if body == "" {
		return nil, apperrors.NewValidationError("body is required", nil)
	}

	status := input.Status
	switch status {
	case "":
		status = domain.ArticleStatusDraft
	case domain.ArticleStatusDraft, domain.ArticleStatusPublished:
	default:
		return nil, apperrors.NewValidationError("invalid article status", map[string]any{
			"status": status,
		})
	}

	return &domain.Article{
		Title:  title,
		Body:   body,
		Tags:   input.Tags,
		Status: status,
	}, nil
}
