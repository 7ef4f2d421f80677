package triage

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/retry"
)

const maxReferences = 3

// Retriever looks up a small ranked set of knowledge-base entries
// relevant to ticket text. An empty result is a valid outcome, not a
// failure.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]domain.Article, error)
}

type articleRetriever struct {
	articles repository.ArticleRepository
	logger   *zap.Logger
}

// NewArticleRetriever builds a retriever over the article store.
func NewArticleRetriever(articles repository.ArticleRepository, logger *zap.Logger) Retriever {
	return &articleRetriever{articles: articles, logger: logger}
}

func (r *articleRetriever) Retrieve(ctx context.Context, query string) ([]domain.Article, error) {
	return retry.Do(ctx, r.logger, "retrieve KB articles", retry.StoragePolicy(),
		func(ctx context.Context) ([]domain.Article, error) {
			return r.articles.Search(ctx, query, maxReferences)
		})
}
