package triage

import (
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// DefaultTemplate is used by the automated pipeline; agents may request
// a different one on regeneration.
const DefaultTemplate = "default"

// replyTemplates is keyed (category, template name). Lookup falls back
// to the category's default, then to the global "other" default when the
// category is unrecognized.
var replyTemplates = map[domain.TicketCategory]map[string]string{
	domain.CategoryBilling: {
		"default": "{greeting}\n\nThank you for contacting us about your billing inquiry: \"{ticketTitle}\".\n\n{articleSection}\n\n{closingSection}",
		"urgent":  "{greeting}\n\nWe understand billing issues can be concerning. We've reviewed your ticket: \"{ticketTitle}\".\n\n{articleSection}\n\nFor immediate assistance, you can also call our billing support line.\n\n{closingSection}",
	},
	domain.CategoryTech: {
		"default":  "{greeting}\n\nThank you for reporting the technical issue: \"{ticketTitle}\".\n\n{articleSection}\n\n{closingSection}",
		"detailed": "{greeting}\n\nWe've received your technical support request: \"{ticketTitle}\".\n\n{articleSection}\n\nIf these resources don't resolve the issue, please provide additional details such as:\n- Steps to reproduce the problem\n- Error messages (if any)\n- Your browser/device information\n\n{closingSection}",
	},
	domain.CategoryShipping: {
		"default": "{greeting}\n\nThank you for your shipping inquiry: \"{ticketTitle}\".\n\n{articleSection}\n\n{closingSection}",
	},
	domain.CategoryOther: {
		"default": "{greeting}\n\nThank you for contacting us regarding: \"{ticketTitle}\".\n\n{articleSection}\n\n{closingSection}",
	},
}

// Draft is a rendered reply plus the articles it cites.
type Draft struct {
	Body         string
	CitationIDs  []string
	Template     string
	ArticleCount int
}

// Drafter renders structured replies from a template, the ticket and the
// retrieved references. The clock is injectable because the time-of-day
// greeting is the only non-deterministic input.
type Drafter struct {
	clock func() time.Time
}

// NewDrafter builds a drafter. A nil clock defaults to time.Now.
func NewDrafter(clock func() time.Time) *Drafter {
	if clock == nil {
		clock = time.Now
	}
	return &Drafter{clock: clock}
}

// Draft renders a reply for the ticket using the named template.
func (d *Drafter) Draft(ticket *domain.Ticket, category domain.TicketCategory, articles []domain.Article, templateName string) Draft {
	template := lookupTemplate(category, templateName)

	body := template
	body = strings.Replace(body, "{greeting}", d.greeting(), 1)
	body = strings.Replace(body, "{ticketTitle}", ticket.Title, 1)
	body = strings.Replace(body, "{articleSection}", articleSection(articles), 1)
	body = strings.Replace(body, "{closingSection}", closingSection(len(articles) > 0), 1)

	citations := make([]string, 0, len(articles))
	for _, article := range articles {
		citations = append(citations, article.ID)
	}

	return Draft{
		Body:         body,
		CitationIDs:  citations,
		Template:     templateName,
		ArticleCount: len(articles),
	}
}

func lookupTemplate(category domain.TicketCategory, templateName string) string {
	if byName, ok := replyTemplates[category]; ok {
		if template, ok := byName[templateName]; ok {
			return template
		}
		if template, ok := byName[DefaultTemplate]; ok {
			return template
		}
	}
	return replyTemplates[domain.CategoryOther][DefaultTemplate]
}

func (d *Drafter) greeting() string {
	hour := d.clock().Hour()
	switch {
	case hour < 12:
		return "Good morning,"
	case hour < 17:
		return "Good afternoon,"
	default:
		return "Good evening,"
	}
}

func articleSection(articles []domain.Article) string {
	if len(articles) == 0 {
		return "We're reviewing your request and will route it to the appropriate specialist for personalized assistance."
	}

	refs := make([]string, 0, len(articles))
	for i, article := range articles {
		refs = append(refs, fmt.Sprintf("%d. **%s**\n   %s", i+1, article.Title, summarize(article.Body)))
	}
	return "Based on our knowledge base, here are some resources that may help:\n\n" + strings.Join(refs, "\n\n")
}

func summarize(body string) string {
	const max = 150
	if len(body) <= max {
		return body
	}
	return body[:max] + "..."
}

func closingSection(hasArticles bool) string {
	if hasArticles {
		return "If these resources resolve your issue, you can mark this ticket as resolved. Otherwise, our support team will follow up with you shortly.\n\nBest regards,\nSmart Helpdesk Support Team"
	}
	return "Our support team will review your request and get back to you within 24 hours.\n\nBest regards,\nSmart Helpdesk Support Team"
}
