package retry

import (
	"math"
	"time"

	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/observability"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// Policy describes how an operation is retried. Policies are constructed
// once by the named constructors below and passed explicitly; callers
// choose which policy applies, there is no global default.
type Policy struct {
	Name          string
	MaxAttempts   int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	RetryIf       func(error) bool
}

// Delay computes the backoff before the given 1-based attempt is retried:
// min(base * factor^(attempt-1), max).
func (p Policy) Delay(attempt int) time.Duration {
	backoff := float64(p.BaseDelay) * math.Pow(p.BackoffFactor, float64(attempt-1))
	if capped := float64(p.MaxDelay); backoff > capped {
		backoff = capped
	}
	return time.Duration(backoff)
}

// StoragePolicy retries connection and timeout class failures against
// the durable store.
func StoragePolicy() Policy {
	return Policy{
		Name:          "storage",
		MaxAttempts:   3,
		BaseDelay:     500 * time.Millisecond,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2,
		RetryIf:       apperrors.IsConnectionFailure,
	}
}

// TriagePolicy retries a whole triage run once, but never retries
// failures that carry an explicit client-error status.
func TriagePolicy() Policy {
	return Policy{
		Name:          "triage",
		MaxAttempts:   2,
		BaseDelay:     time.Second,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2,
		RetryIf: func(err error) bool {
			status := apperrors.StatusOf(err)
			return status == 0 || status >= 500
		},
	}
}

// ExternalPolicy retries calls to external services on network errors
// and server-class status codes.
func ExternalPolicy() Policy {
	return Policy{
		Name:          "external",
		MaxAttempts:   3,
		BaseDelay:     2 * time.Second,
		MaxDelay:      8 * time.Second,
		BackoffFactor: 2,
		RetryIf: func(err error) bool {
			if apperrors.IsConnectionFailure(err) {
				return true
			}
			return apperrors.StatusOf(err) >= 500
		},
	}
}

// Do executes op under the given policy. On failure it backs off and
// retries until the policy's predicate rejects the error or attempts are
// exhausted; the last underlying error is returned unchanged so callers
// can inspect the root cause. Backoff sleeps are context-aware: a
// cancelled context stops further attempts.
func Do[T any](ctx context.Context, logger *zap.Logger, name string, policy Policy, op func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		observability.RetryAttempts.WithLabelValues(policy.Name).Inc()

		result, err := op(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info("operation succeeded after retry",
					zap.String("operation", name),
					zap.Int("attempt", attempt))
			}
			return result, nil
		}
		lastErr = err

		if attempt == policy.MaxAttempts || !policy.RetryIf(err) {
			logger.Error("operation failed",
				zap.String("operation", name),
				zap.String("policy", policy.Name),
				zap.Int("attempts", attempt),
				zap.Error(err))
			return zero, lastErr
		}

		delay := policy.Delay(attempt)
		logger.Warn("operation failed, retrying",
			zap.String("operation", name),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", policy.MaxAttempts),
			zap.Duration("delay", delay),
			zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			logger.Warn("retry abandoned, context done",
				zap.String("operation", name),
				zap.Error(ctx.Err()))
			return zero, lastErr
		}
	}

	return zero, lastErr
}
