package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// DefaultRequestTimeout bounds the handling time of one request.
const DefaultRequestTimeout = 15 * time.Second

type RouterConfig struct {
	Auth       *AuthHandler
	Members    *MemberHandler
	RendezVous *RendezVousHandler
	Groups     *GroupHandler
	Activity   *ActivityHandler
	// Sessions validates tokens of every route except login.
	Sessions       TokenValidator
	AllowedOrigins []string
	RequestTimeout time.Duration
	Logger         *slog.Logger
	Middleware     []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := defaultLogger(cfg.Logger)
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(RequestLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(timeout))
	router.Use(CORS(cfg.AllowedOrigins))
	for _, mw := range cfg.Middleware {
		if mw != nil {
			router.Use(mw)
		}
	}
	router.Use(middleware.Heartbeat("/ping"))

	if cfg.Auth != nil {
		router.Post("/sessions", cfg.Auth.CreateSession)
		router.Delete("/sessions/current", cfg.Auth.DeleteCurrentSession)
	}

	router.Group(func(r chi.Router) {
		if cfg.Sessions != nil {
			r.Use(RequireSession(cfg.Sessions, logger))
		}

		if cfg.Members != nil {
			r.Route("/members", func(r chi.Router) {
				r.Get("/", cfg.Members.Search)
				r.Post("/", cfg.Members.Create)
			})
		}

		if cfg.RendezVous != nil {
			r.Route("/rendez-vous", func(r chi.Router) {
				r.Get("/", cfg.RendezVous.List)
				r.Post("/", cfg.RendezVous.Create)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", cfg.RendezVous.Get)
					r.Patch("/", cfg.RendezVous.Update)
					r.Delete("/", cfg.RendezVous.Delete)
					r.Put("/votes", cfg.RendezVous.CastVotes)
					r.Get("/resolution", cfg.RendezVous.Resolution)
					r.Post("/confirm", cfg.RendezVous.Confirm)
					r.Post("/cancel", cfg.RendezVous.Cancel)
				})
			})
		}

		if cfg.Groups != nil {
			r.Route("/groups/{id}", func(r chi.Router) {
				r.Get("/", cfg.Groups.Get)
				r.Put("/rendez-vous", cfg.Groups.SetRendezVous)
			})
		}

		if cfg.Activity != nil {
			r.Get("/activity", cfg.Activity.Activities)
			r.Get("/notifications", cfg.Activity.Notifications)
		}
	})

	return router
}
