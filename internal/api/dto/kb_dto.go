package dto

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// ArticleRequest is the create/update payload for KB articles.
type ArticleRequest struct {
	Title  string               `json:"title"`
	Body   string               `json:"body"`
	Tags   []string             `json:"tags"`
	Status domain.ArticleStatus `json:"status"`
}

// ArticleResponse payload.
type ArticleResponse struct {
	ID        string               `json:"id"`
	Title     string               `json:"title"`
	Body      string               `json:"body"`
	Tags      []string             `json:"tags"`
	Status    domain.ArticleStatus `json:"status"`
	UpdatedAt time.Time            `json:"updated_at"`
}
