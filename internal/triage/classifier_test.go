package triage

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/domain"
)

func TestClassifyKeywordHits(t *testing.T) {
	classifier := NewKeywordClassifier()

	tests := []struct {
		name           string
		text           string
		wantCategory   domain.TicketCategory
		wantConfidence float64
	}{
		{
			name:           "billing with two hits",
			text:           "Refund for double charge I was charged twice for order #1234",
			wantCategory:   domain.CategoryBilling,
			wantConfidence: 0.8,
		},
		{
			name:           "tech issue",
			text:           "Getting a 500 error on login",
			wantCategory:   domain.CategoryTech,
			wantConfidence: 0.95,
		},
		{
			name:           "shipping delay",
			text:           "My package delivery is delayed",
			wantCategory:   domain.CategoryShipping,
			wantConfidence: 0.95,
		},
		{
			name:           "no keyword match falls back to other",
			text:           "Help me Something is wrong",
			wantCategory:   domain.CategoryOther,
			wantConfidence: 0.5,
		},
		{
			name:           "confidence caps at one",
			text:           "refund invoice payment charged credit billing",
			wantCategory:   domain.CategoryBilling,
			wantConfidence: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifier.Classify(tt.text)
			require.Equal(t, tt.wantCategory, got.Category)
			require.InDelta(t, tt.wantConfidence, got.Confidence, 1e-9)
		})
	}
}

func TestClassifyTieBreaksByDeclarationOrder(t *testing.T) {
	classifier := NewKeywordClassifier()

	// One billing hit and one tech hit: billing is declared first.
	got := classifier.Classify("refund after the crash")
	require.Equal(t, domain.CategoryBilling, got.Category)
}

func TestClassifyIsCaseInsensitive(t *testing.T) {
	classifier := NewKeywordClassifier()

	got := classifier.Classify("REFUND REQUESTED")
	require.Equal(t, domain.CategoryBilling, got.Category)
}
