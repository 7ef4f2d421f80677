package idempotency

import (
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/observability"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

const (
	// HeaderKey carries the client-chosen idempotency key.
	HeaderKey = "Idempotency-Key"
	// HeaderReplay marks a response served from the cache.
	HeaderReplay = "X-Idempotent-Replay"
)

var keyPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,255}$`)

// ActorResolver yields a stable identifier for the caller, or "" when
// the request is unauthenticated.
type ActorResolver func(c *fiber.Ctx) string

// Guard is the fiber middleware enforcing at-most-once execution for
// mutating requests that carry an idempotency key.
//
// The cache key is scoped actor:method:path:key so different callers
// (or the same key on different routes) never collide. Concurrent
// duplicates serialize on a per-key mutex: the first request executes,
// the second replays its cached response.
type Guard struct {
	store     Store
	actor     ActorResolver
	retention time.Duration
	logger    *zap.Logger

	mu       sync.Mutex
	inflight map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewGuard constructs the middleware.
func NewGuard(store Store, actor ActorResolver, retention time.Duration, logger *zap.Logger) *Guard {
	return &Guard{
		store:     store,
		actor:     actor,
		retention: retention,
		logger:    logger,
		inflight:  map[string]*keyLock{},
	}
}

// Handle wraps downstream handlers with the replay cache.
func (g *Guard) Handle(c *fiber.Ctx) error {
	switch c.Method() {
	case fiber.MethodPost, fiber.MethodPut, fiber.MethodPatch:
	default:
		return c.Next()
	}

	key := c.Get(HeaderKey)
	if key == "" {
		// Ticket and triage mutations must be idempotent even when the
		// client forgot the header, so one is synthesized. The request
		// still executes exactly once; it just cannot be replayed.
		if !syntheticKeyPath(c.Path()) {
			return c.Next()
		}
		key = uuid.NewString()
	} else if !keyPattern.MatchString(key) {
		return apperrors.NewValidationError("invalid idempotency key", map[string]any{
			"header": HeaderKey,
			"rule":   "1-255 characters: letters, digits, underscore, hyphen",
		})
	}

	composite := g.compositeKey(c, key)

	lock := g.acquire(composite)
	lock.mu.Lock()
	defer func() {
		lock.mu.Unlock()
		g.release(composite, lock)
	}()

	if cached, ok, err := g.store.Get(c.UserContext(), composite); err != nil {
		g.logger.Warn("idempotency cache read failed", zap.Error(err))
	} else if ok {
		observability.IdempotentReplays.Inc()
		c.Set(HeaderReplay, "true")
		if cached.ContentType != "" {
			c.Set(fiber.HeaderContentType, cached.ContentType)
		}
		return c.Status(cached.Status).Send(cached.Body)
	}

	if err := c.Next(); err != nil {
		return err
	}

	status := c.Response().StatusCode()
	if status >= fiber.StatusInternalServerError {
		// Server failures stay uncached so a retry gets a fresh attempt.
		return nil
	}

	body := make([]byte, len(c.Response().Body()))
	copy(body, c.Response().Body())
	cached := &CachedResponse{
		Status:      status,
		Body:        body,
		ContentType: string(c.Response().Header.ContentType()),
		CreatedAt:   time.Now(),
	}
	if err := g.store.Set(c.UserContext(), composite, cached, g.retention); err != nil {
		g.logger.Warn("idempotency cache write failed", zap.Error(err))
	}
	return nil
}

func (g *Guard) compositeKey(c *fiber.Ctx, key string) string {
	actor := "anonymous"
	if g.actor != nil {
		if id := g.actor(c); id != "" {
			actor = id
		}
	}
	return actor + ":" + c.Method() + ":" + c.Path() + ":" + key
}

func (g *Guard) acquire(composite string) *keyLock {
	g.mu.Lock()
	defer g.mu.Unlock()

	lock, ok := g.inflight[composite]
	if !ok {
		lock = &keyLock{}
		g.inflight[composite] = lock
	}
	lock.refs++
	return lock
}

func (g *Guard) release(composite string, lock *keyLock) {
	g.mu.Lock()
	defer g.mu.Unlock()

	lock.refs--
	if lock.refs == 0 {
		delete(g.inflight, composite)
	}
}

func syntheticKeyPath(path string) bool {
	return strings.Contains(path, "/tickets") || strings.Contains(path, "/triage")
}
