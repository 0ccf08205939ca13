package server

import (
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"
)

func addRoutes(r chi.Router, logger *slog.Logger, deps Deps) {
	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("Fragment Forge API", "/openapi.json", "/docs"))
	if deps.Health != nil {
		r.Mount("/healthz", deps.Health)
	}

	r.Post("/api/login", handleLogin(logger, deps.Profiles, deps.Tokens, deps.Sessions))

	// Player routes: the session is resolved from the Bearer token.
	r.Route("/api/game", func(r chi.Router) {
		r.Use(sessionMiddleware(logger, deps.Tokens, deps.Sessions))
		r.Get("/state", handleGameState())
		r.Post("/start", handleStart())
		r.Post("/answer", handleAnswer())
		r.Post("/finish", handleFinish())
		r.Post("/reset", handleReset())
		r.Get("/rooms/{room}", handleRoom())
		r.Get("/session", handleExport())
		r.Get("/summary", handleSummary())
		r.Get("/events", handleEvents(deps.Broker))
	})

	r.With(sessionMiddleware(logger, deps.Tokens, deps.Sessions)).Get("/ws/state", handleStateStream(logger, deps.Broker))

	if deps.Admin.enabled() {
		r.Route("/api/admin", func(r chi.Router) {
			r.Use(adminAuthMiddleware(deps.Admin))
			r.Get("/sessions", handleAdminListSessions(deps.Sessions, deps.Broker))
			r.Get("/sessions/{id}/export", handleAdminExport(deps.Sessions))
			r.Post("/sessions/{id}/reset", handleAdminReset(logger, deps.Sessions))
			r.Put("/sessions/{id}/profile", handleAdminProfile(logger, deps.Profiles, deps.Tokens))
			if deps.Rounds != nil {
				r.Get("/sessions/{id}/round", handleAdminRound(deps.Rounds))
			}
		})
	} else {
		logger.Info("operator endpoints disabled, no admin credentials configured")
	}

	if deps.SPADir != "" {
		if info, err := os.Stat(deps.SPADir); err == nil && info.IsDir() {
			logger.Info("serving SPA", "dir", deps.SPADir)
			r.NotFound(handleSPA(deps.SPADir))
		}
	}
}
