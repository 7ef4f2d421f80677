package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/helpdesk/internal/api/http"
	"github.com/spec-kit/helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk/internal/audit"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/idempotency"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/persistence"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/service"
	"github.com/spec-kit/helpdesk/internal/triage"
	"github.com/spec-kit/helpdesk/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	suggestionRepo := repository.NewSuggestionRepository(pool)
	replyRepo := repository.NewReplyRepository(pool)
	articleRepo := repository.NewArticleRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)
	userRepo := repository.NewUserRepository(pool)

	auditor := audit.NewRecorder(auditRepo, logger, nil)
	dispatcher := events.NewInMemoryDispatcher()
	settings := triage.NewSettingsStore(triage.Settings{
		AutoCloseEnabled:    cfg.Triage.AutoCloseEnabled,
		ConfidenceThreshold: cfg.Triage.ConfidenceThreshold,
	})

	orchestrator := triage.NewOrchestrator(triage.Dependencies{
		TicketRepo:     ticketRepo,
		SuggestionRepo: suggestionRepo,
		ReplyRepo:      replyRepo,
		ArticleRepo:    articleRepo,
		Classifier:     triage.NewKeywordClassifier(),
		Retriever:      triage.NewArticleRetriever(articleRepo, logger),
		Drafter:        triage.NewDrafter(nil),
		Auditor:        auditor,
		Settings:       settings,
		Dispatcher:     dispatcher,
		Logger:         logger,
	})

	workerPool := worker.NewPool(cfg.Triage.WorkerPoolSize, logger)

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo: ticketRepo,
		ReplyRepo:  replyRepo,
		Auditor:    auditor,
		Triage:     orchestrator,
		Pool:       workerPool,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	kbService := service.NewKBService(articleRepo, logger)
	authService := service.NewAuthService(cfg, userRepo)
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	notificationService.RegisterHandlers()

	idempotencyStore := newIdempotencyStore(ctx, redis, logger)
	guard := idempotency.NewGuard(idempotencyStore, auth.ActorID, cfg.Idempotency.Retention(), logger)
	go sweepIdempotency(ctx, idempotencyStore, cfg.Idempotency.SweepInterval(), logger)

	authMiddleware := auth.NewMiddleware(authService.TokenManager(), userRepo)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Users:          handlers.NewUsersHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService, auditor),
		Agent:          handlers.NewAgentHandler(orchestrator),
		KB:             handlers.NewKBHandler(kbService),
		Config:         handlers.NewConfigHandler(settings),
		AuthMiddleware: authMiddleware,
		Guard:          guard,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
	workerPool.Drain()
}

// newIdempotencyStore prefers Redis so replay caches survive restarts,
// falling back to process memory when Redis is unreachable.
func newIdempotencyStore(ctx context.Context, redis *persistence.Redis, logger *zap.Logger) idempotency.Store {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := redis.Ping(pingCtx); err != nil {
		logger.Warn("redis unavailable, idempotency cache held in memory", zap.Error(err))
		return idempotency.NewMemoryStore(nil)
	}
	return idempotency.NewRedisStore(redis.Client)
}

func sweepIdempotency(ctx context.Context, store idempotency.Store, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			removed, err := store.Purge(ctx, now)
			if err != nil {
				logger.Warn("idempotency sweep failed", zap.Error(err))
			} else if removed > 0 {
				logger.Debug("idempotency sweep", zap.Int("removed", removed))
			}
		}
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
