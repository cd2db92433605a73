package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/nikhilbhutani/revisionrag/internal/api/handlers"
	"github.com/nikhilbhutani/revisionrag/internal/api/middleware"
	"github.com/nikhilbhutani/revisionrag/internal/auth"
	"github.com/nikhilbhutani/revisionrag/internal/config"
	"github.com/nikhilbhutani/revisionrag/internal/document"
	"github.com/nikhilbhutani/revisionrag/internal/generation"
	"github.com/nikhilbhutani/revisionrag/internal/rag"
)

// Services are the wired application services the routes call.
type Services struct {
	Documents  *document.Service
	Generation *generation.Service
	Assembler  *rag.Assembler
	Usage      handlers.UsageReader
	Settings   handlers.SettingsStore
	Health     map[string]handlers.Pinger
}

type Router struct {
	mux     *chi.Mux
	cfg     *config.Config
	jwt     *auth.JWTMiddleware
	svc     Services
	limiter *middleware.RateLimiter
}

func NewRouter(cfg *config.Config, svc Services) *Router {
	return &Router{
		mux:     chi.NewRouter(),
		cfg:     cfg,
		jwt:     auth.NewJWTMiddleware(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer),
		svc:     svc,
		limiter: middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst),
	}
}

// Close stops background work owned by the router.
func (rt *Router) Close() {
	rt.limiter.Close()
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(rt.cfg.Server.AllowedOrigins))

	// Health endpoints (no auth)
	health := handlers.NewHealthHandler(rt.svc.Health)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.jwt.Authenticate)

		docH := handlers.NewDocumentHandler(rt.svc.Documents)
		r.Route("/documents", func(r chi.Router) {
			r.With(rt.limiter.Limit).Post("/", docH.Upload)
			r.Get("/", docH.List)
			r.Get("/{id}", docH.Get)
			r.Delete("/{id}", docH.Delete)
			r.With(rt.limiter.Limit).Post("/{id}/retry", docH.Retry)
		})

		genH := handlers.NewGenerateHandler(rt.svc.Generation)
		r.With(rt.limiter.Limit).Post("/generate", genH.Generate)

		searchH := handlers.NewSearchHandler(rt.svc.Assembler, rt.cfg.RAG.SearchLimit)
		r.Post("/search", searchH.Search)

		usageH := handlers.NewUsageHandler(rt.svc.Usage)
		r.Get("/usage", usageH.Usage)

		settingsH := handlers.NewSettingsHandler(rt.svc.Settings)
		r.Route("/settings", func(r chi.Router) {
			r.Get("/", settingsH.Get)
			r.Put("/", settingsH.Update)
		})
	})

	return r
}
