// Package audit maintains the append-only trail of pipeline events.
// Recording is observability, not correctness-critical state: a failed
// append is logged and swallowed so it can never abort the step that
// triggered it.
package audit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
)

// Recorder appends immutable, correlated events describing pipeline steps.
type Recorder struct {
	repo   repository.AuditRepository
	logger *zap.Logger
	clock  func() time.Time
}

// NewRecorder builds a recorder. A nil clock defaults to time.Now.
func NewRecorder(repo repository.AuditRepository, logger *zap.Logger, clock func() time.Time) *Recorder {
	if clock == nil {
		clock = time.Now
	}
	return &Recorder{repo: repo, logger: logger, clock: clock}
}

// Record appends one event. Failures are logged, never returned.
func (r *Recorder) Record(ctx context.Context, ticketID, correlationID string, actor domain.AuditActor, action domain.AuditAction, meta map[string]any) {
	if meta == nil {
		meta = map[string]any{}
	}
	event := &domain.AuditEvent{
		TicketID:      ticketID,
		CorrelationID: correlationID,
		Actor:         actor,
		Action:        action,
		Meta:          meta,
		Timestamp:     r.clock(),
	}
	if err := r.repo.Append(ctx, event); err != nil {
		r.logger.Warn("audit append failed",
			zap.String("ticket_id", ticketID),
			zap.String("correlation_id", correlationID),
			zap.String("action", string(action)),
			zap.Error(err))
	}
}

// List returns all events for a ticket, ascending by timestamp.
func (r *Recorder) List(ctx context.Context, ticketID string) ([]domain.AuditEvent, error) {
	return r.repo.ListByTicket(ctx, ticketID)
}
