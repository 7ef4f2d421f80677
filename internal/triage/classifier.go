package triage

import (
	"strings"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// Classification is the outcome of scoring ticket text.
type Classification struct {
	Category   domain.TicketCategory
	Confidence float64
	Matches    int
}

// Classifier maps ticket text to a category and a confidence score.
// The keyword scorer below is a deliberate placeholder; a model-backed
// implementation can be swapped in without touching the orchestrator.
type Classifier interface {
	Classify(text string) Classification
}

// categoryOrder fixes tie-breaking: the first declared category wins.
var categoryOrder = []domain.TicketCategory{
	domain.CategoryBilling,
	domain.CategoryTech,
	domain.CategoryShipping,
}

var categoryKeywords = map[domain.TicketCategory][]string{
	domain.CategoryBilling:  {"refund", "invoice", "payment", "charged", "credit", "billing"},
	domain.CategoryTech:     {"error", "bug", "stack", "crash", "500", "login", "auth", "issue"},
	domain.CategoryShipping: {"delivery", "shipment", "tracking", "package", "courier", "delayed"},
}

type keywordClassifier struct{}

// NewKeywordClassifier returns the heuristic keyword scorer.
func NewKeywordClassifier() Classifier {
	return keywordClassifier{}
}

// Classify counts keyword hits per category. The category with the
// highest count wins; zero hits fall back to "other" with confidence
// pinned at 0.5. Otherwise confidence is min(1, 0.5 + 0.15*hits).
func (keywordClassifier) Classify(text string) Classification {
	lower := strings.ToLower(text)

	best := domain.CategoryOther
	max := 0
	for _, category := range categoryOrder {
		count := 0
		for _, keyword := range categoryKeywords[category] {
			if strings.Contains(lower, keyword) {
				count++
			}
		}
		if count > max {
			max = count
			best = category
		}
	}

	if best == domain.CategoryOther {
		return Classification{Category: domain.CategoryOther, Confidence: 0.5}
	}

	confidence := 0.5 + 0.15*float64(max)
	if confidence > 1 {
		confidence = 1
	}
	return Classification{Category: best, Confidence: confidence, Matches: max}
}
