package container

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	database "github.com/FACorreiaa/minimarket-auth/app/db"
	appMiddleware "github.com/FACorreiaa/minimarket-auth/app/middleware"
	"github.com/FACorreiaa/minimarket-auth/app/observability/metrics"
	"github.com/FACorreiaa/minimarket-auth/config"
	"github.com/FACorreiaa/minimarket-auth/internal/api/auth"
	"github.com/FACorreiaa/minimarket-auth/internal/api/ghost"
	"github.com/FACorreiaa/minimarket-auth/internal/api/identity"
	"github.com/FACorreiaa/minimarket-auth/internal/api/user"
	"github.com/FACorreiaa/minimarket-auth/internal/events"
	"github.com/FACorreiaa/minimarket-auth/internal/router"
)

// Container holds all application dependencies
type Container struct {
	Config        *config.Config
	Logger        *slog.Logger
	Pool          *pgxpool.Pool
	ConnectionURL string

	Identities   identity.Store
	Profiles     user.ProfileRepo
	Publisher    events.Publisher
	UserService  user.UserService
	GhostScanner *ghost.Scanner

	AuthHandler  *auth.AuthHandler
	UserHandler  *user.HandlerImpl
	GhostHandler *ghost.HandlerImpl

	closeEvents func()
}

// NewIdentityStore builds the credential store selected by identity.provider.
func NewIdentityStore(cfg *config.Config, db database.Querier, logger *slog.Logger, m *metrics.AppMetrics) (identity.Store, error) {
	switch cfg.Identity.Provider {
	case config.IdentityProviderGoTrue:
		logger.Info("Using hosted identity provider", slog.String("url", cfg.Identity.GoTrue.URL))
		return identity.NewGoTrueClient(cfg.Identity.GoTrue, logger), nil
	case config.IdentityProviderPostgres, "":
		tokens, err := identity.NewTokenIssuer(cfg.JWT)
		if err != nil {
			return nil, err
		}
		logger.Info("Using Postgres identity store")
		return identity.NewPostgresStore(db, tokens, cfg.Identity.BcryptCost, logger, m), nil
	default:
		return nil, fmt.Errorf("unknown identity provider %q", cfg.Identity.Provider)
	}
}

// NewContainer initializes and returns a new dependency container
func NewContainer(cfg *config.Config, logger *slog.Logger) (*Container, error) {
	// Initialize database
	dbConfig, err := database.NewDatabaseConfig(cfg, logger)
	if err != nil {
		logger.Error("Failed to generate database config", slog.Any("error", err))
		return nil, err
	}

	pool, err := database.Init(dbConfig.ConnectionURL, logger)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.Any("error", err))
		return nil, err
	}

	// nil when metrics were never initialised; every recorder tolerates that
	m := metrics.Get()

	identities, err := NewIdentityStore(cfg, pool, logger, m)
	if err != nil {
		pool.Close()
		logger.Error("Failed to initialize identity store", slog.Any("error", err))
		return nil, err
	}

	publisher, closeEvents, err := events.Connect(cfg.Events.NATS.URL, cfg.Events.NATS.SubjectPrefix, cfg.Observability.ServiceName, logger)
	if err != nil {
		pool.Close()
		logger.Error("Failed to connect event publisher", slog.Any("error", err))
		return nil, err
	}

	c := Wire(cfg, logger, identities, user.NewPostgresProfileRepo(pool, logger, m), publisher, m)
	c.Pool = pool
	c.ConnectionURL = dbConfig.ConnectionURL
	c.closeEvents = closeEvents
	return c, nil
}

// Wire assembles services and handlers on top of already constructed stores.
func Wire(cfg *config.Config, logger *slog.Logger, identities identity.Store, profiles user.ProfileRepo, publisher events.Publisher, m *metrics.AppMetrics) *Container {
	if publisher == nil {
		publisher = events.Noop{}
	}

	userService := user.NewUserService(profiles, logger)
	authService := auth.NewAuthService(identities, profiles, publisher, cfg.Identity, logger, m)
	scanner := ghost.NewScanner(identities, profiles, cfg.Identity.ListPerPage, logger)

	return &Container{
		Config:       cfg,
		Logger:       logger,
		Identities:   identities,
		Profiles:     profiles,
		Publisher:    publisher,
		UserService:  userService,
		GhostScanner: scanner,
		AuthHandler:  auth.NewAuthHandler(authService, logger),
		UserHandler:  user.NewHandlerImpl(userService, logger),
		GhostHandler: ghost.NewHandlerImpl(scanner, logger),
	}
}

// RouterConfig maps the container onto the router's dependencies.
func (c *Container) RouterConfig() *router.Config {
	rc := &router.Config{
		AuthHandler:     c.AuthHandler,
		UserHandler:     c.UserHandler,
		GhostHandler:    c.GhostHandler,
		Logger:          c.Logger,
		RoleResolver:    c.UserService.RoleOf,
		AllowedOrigins:  c.Config.CORS.AllowedOrigins,
		RateLimit:       c.Config.RateLimit.Requests,
		RateLimitWindow: c.Config.RateLimit.Window,
	}
	if c.Config.JWT.SecretKey != "" {
		rc.AuthenticateMiddleware = appMiddleware.Authenticate(c.Logger, c.Config.JWT)
	} else {
		c.Logger.Warn("jwt.secretKey is empty, admin routes are disabled")
	}
	return rc
}

// Close releases all resources held by the container
func (c *Container) Close() {
	if c.closeEvents != nil {
		c.closeEvents()
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
}

// WaitForDB waits for the database to be ready
func (c *Container) WaitForDB(ctx context.Context) bool {
	return database.WaitForDB(ctx, c.Pool, c.Logger)
}

// RunMigrations runs database migrations
func (c *Container) RunMigrations() error {
	return database.RunMigrations(c.ConnectionURL, c.Logger)
}
