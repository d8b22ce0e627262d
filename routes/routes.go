package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/Dosada05/tournament-engine/docs"
	"github.com/Dosada05/tournament-engine/handlers"
	"github.com/Dosada05/tournament-engine/metrics"
	"github.com/Dosada05/tournament-engine/middleware"
)

type Handlers struct {
	Tournament *handlers.TournamentHandler
	Team       *handlers.TeamHandler
	Bracket    *handlers.BracketHandler
	Match      *handlers.MatchHandler
	Veto       *handlers.VetoHandler
	Admin      *handlers.AdminHandler
	WebSocket  *handlers.WebSocketHandler
}

type Options struct {
	JWTSecret      []byte
	AllowedOrigins []string
	VetoLimiter    *middleware.UserRateLimiter
	Metrics        *metrics.Metrics
}

func SetupRoutes(router chi.Router, h Handlers, opts Options) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authenticate := middleware.Authenticate(opts.JWTSecret)
	adminOnly := middleware.RequireRole(middleware.RoleAdmin)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	router.Handle("/metrics", opts.Metrics.Handler())
	router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	// WebSocket подписки; долгоживущие соединения не проходят через таймаут
	router.Get("/ws/tournaments/{tournamentID}", h.WebSocket.ServeTournament)
	router.Get("/ws/veto/{sessionID}", h.WebSocket.ServeVeto)

	router.Route("/api", func(r chi.Router) {
		r.Use(chiMiddleware.Timeout(15 * time.Second))

		r.Route("/tournaments", func(r chi.Router) {
			r.Get("/", h.Tournament.ListHandler)
			r.Get("/{tournamentID}", h.Tournament.GetByIDHandler)
			r.Get("/{tournamentID}/teams", h.Team.ListHandler)
			r.Get("/{tournamentID}/bracket", h.Bracket.GetHandler)
			r.Get("/{tournamentID}/bracket/health", h.Bracket.HealthHandler)

			r.Group(func(r chi.Router) {
				r.Use(authenticate)
				r.Post("/{tournamentID}/teams", h.Team.RegisterHandler)
			})

			// Организационные действия только для администраторов
			r.Group(func(r chi.Router) {
				r.Use(authenticate)
				r.Use(adminOnly)
				r.Post("/", h.Tournament.CreateHandler)
				r.Patch("/{tournamentID}/status", h.Tournament.UpdateStatusHandler)
				r.Post("/{tournamentID}/seeds", h.Team.SeedHandler)
				r.Post("/{tournamentID}/bracket", h.Bracket.GenerateHandler)
				r.Post("/{tournamentID}/bracket/repair", h.Bracket.RepairHandler)
			})
		})

		r.Route("/matches/{matchID}", func(r chi.Router) {
			r.Get("/", h.Match.GetHandler)

			r.Group(func(r chi.Router) {
				r.Use(authenticate)
				r.Use(adminOnly)
				r.Post("/start", h.Match.StartHandler)
				r.Post("/complete", h.Match.CompleteHandler)
				r.Post("/veto", h.Veto.StartHandler)
			})
		})

		r.Route("/veto/{sessionID}", func(r chi.Router) {
			r.Get("/", h.Veto.GetStateHandler)

			r.Group(func(r chi.Router) {
				r.Use(authenticate)
				r.Use(middleware.RateLimitByUser(opts.VetoLimiter, opts.Metrics))
				r.Post("/actions", h.Veto.SubmitActionHandler)
			})
		})

		r.Route("/admin/veto", func(r chi.Router) {
			r.Use(authenticate)
			r.Use(adminOnly)
			r.Get("/audit", h.Admin.AuditVetoHandler)
			r.Post("/{sessionID}/resync", h.Admin.ResyncVetoHandler)
			r.Post("/{sessionID}/reset", h.Admin.ResetVetoHandler)
			r.Post("/{sessionID}/complete", h.Admin.CompleteVetoHandler)
		})
	})
}
