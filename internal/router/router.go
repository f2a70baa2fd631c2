package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	appMiddleware "github.com/FACorreiaa/minimarket-auth/app/middleware"
	"github.com/FACorreiaa/minimarket-auth/internal/api/auth"
	"github.com/FACorreiaa/minimarket-auth/internal/api/ghost"
	"github.com/FACorreiaa/minimarket-auth/internal/api/user"
	"github.com/FACorreiaa/minimarket-auth/internal/types"
)

// Config contains dependencies needed for the router setup
type Config struct {
	AuthHandler  *auth.AuthHandler
	UserHandler  *user.HandlerImpl
	GhostHandler *ghost.HandlerImpl
	Logger       *slog.Logger

	// The admin routes are mounted only when both of these are set.
	AuthenticateMiddleware func(http.Handler) http.Handler
	RoleResolver           appMiddleware.RoleResolver

	AllowedOrigins  []string
	RateLimit       int
	RateLimitWindow time.Duration
}

// SetupRouter initializes and configures the main application router.
// Server-wide middleware (like logger, requestID, recoverer) are expected
// to be applied *before* mounting this router in main.go.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any major browsers
	}))

	r.Use(appMiddleware.NoCache)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		slog.InfoContext(r.Context(), "Root endpoint hit")
		w.Write([]byte("Mini Market API is running"))
	})

	// Heartbeat/Health check endpoint
	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	r.Get("/api-docs/*", httpSwagger.WrapHandler)

	r.Route("/api", func(r chi.Router) {
		// Credential endpoints are throttled per client IP.
		r.Route("/auth", func(r chi.Router) {
			if cfg.RateLimit > 0 {
				window := cfg.RateLimitWindow
				if window <= 0 {
					window = time.Minute
				}
				r.Use(httprate.LimitByIP(cfg.RateLimit, window))
			}
			r.Post("/register", cfg.AuthHandler.Register)
			r.Post("/login", cfg.AuthHandler.Login)
		})

		r.Get("/users", cfg.UserHandler.ListUsers)

		if cfg.AuthenticateMiddleware != nil && cfg.RoleResolver != nil && cfg.GhostHandler != nil {
			logger := cfg.Logger
			if logger == nil {
				logger = slog.Default()
			}
			r.Route("/admin", func(r chi.Router) {
				r.Use(cfg.AuthenticateMiddleware)
				r.Use(appMiddleware.RequireRole(logger, cfg.RoleResolver, types.RoleAdmin))
				r.Get("/ghosts", cfg.GhostHandler.ScanGhosts)
			})
		}
	})

	return r
}
