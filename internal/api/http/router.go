package http

import (
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/idempotency"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	Agent          *handlers.AgentHandler
	KB             *handlers.KBHandler
	Config         *handlers.ConfigHandler
	AuthMiddleware *auth.Middleware
	Guard          *idempotency.Guard
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")
	api.Post("/auth/register", cfg.Users.Register)
	api.Post("/auth/login", cfg.Users.Login)

	// Guard runs after auth so replay caches are scoped per caller.
	protected := api.Group("", cfg.AuthMiddleware.Handle, cfg.Guard.Handle)
	protected.Get("/me", cfg.Users.Me)

	protected.Post("/tickets", cfg.Tickets.CreateTicket)
	protected.Get("/tickets", cfg.Tickets.ListTickets)
	protected.Get("/tickets/:id", cfg.Tickets.GetTicket)
	protected.Post("/tickets/:id/reply", cfg.Tickets.Reply)
	protected.Get("/tickets/:id/audit", cfg.Tickets.Audit)
	protected.Post("/tickets/:id/assign",
		auth.RequireRoles(domain.RoleAgent, domain.RoleAdmin), cfg.Tickets.Assign)

	agent := protected.Group("/agent", auth.RequireRoles(domain.RoleAgent, domain.RoleAdmin))
	agent.Post("/triage", cfg.Agent.Triage)
	agent.Get("/suggestions", cfg.Agent.ListPending)
	agent.Get("/suggestions/:id", cfg.Agent.GetSuggestion)
	agent.Post("/suggestions/:id/reply", cfg.Agent.SendReply)
	agent.Post("/suggestions/:id/regenerate", cfg.Agent.Regenerate)
	agent.Get("/tickets/:id/suggestion", cfg.Agent.GetSuggestionByTicket)

	protected.Get("/kb/search", cfg.KB.Search)
	protected.Get("/kb/articles/:id", cfg.KB.GetArticle)
	kbAdmin := protected.Group("/kb", auth.RequireRoles(domain.RoleAdmin))
	kbAdmin.Post("/articles", cfg.KB.CreateArticle)
	kbAdmin.Put("/articles/:id", cfg.KB.UpdateArticle)
	kbAdmin.Delete("/articles/:id", cfg.KB.DeleteArticle)

	config := protected.Group("/config", auth.RequireRoles(domain.RoleAdmin))
	config.Get("/triage", cfg.Config.GetTriageSettings)
	config.Put("/triage", cfg.Config.UpdateTriageSettings)
}
