package di

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/credlock/credlock/internal/app"
	"github.com/credlock/credlock/internal/challenge"
	"github.com/credlock/credlock/internal/config"
	"github.com/credlock/credlock/internal/database"
	"github.com/credlock/credlock/internal/health"
	"github.com/credlock/credlock/internal/http/handler"
	"github.com/credlock/credlock/internal/http/middleware"
	"github.com/credlock/credlock/internal/http/router"
	"github.com/credlock/credlock/internal/observability"
	"github.com/credlock/credlock/internal/repository"
	"github.com/credlock/credlock/internal/security"
	"github.com/credlock/credlock/internal/service"
)

var ConfigSet = wire.NewSet(config.Load)

var ObservabilitySet = wire.NewSet(
	provideObservabilityRuntime,
	provideAppLogger,
)

var RuntimeInfraSet = wire.NewSet(
	provideRuntimeDB,
	provideRedisClient,
	provideChallengeStore,
	provideReadinessProbeRunner,
)

var RepositorySet = wire.NewSet(
	repository.NewUserRepository,
	repository.NewAuthenticatorRepository,
)

var SecuritySet = wire.NewSet(
	provideSessionManager,
	provideCookieManager,
)

var ServiceSet = wire.NewSet(
	service.NewAuthService,
	service.NewWebAuthnService,
	wire.Bind(new(service.AuthServiceInterface), new(*service.AuthService)),
	wire.Bind(new(service.WebAuthnServiceInterface), new(*service.WebAuthnService)),
)

var HTTPSet = wire.NewSet(
	handler.NewAuthHandler,
	handler.NewWebAuthnHandler,
	provideGlobalRateLimiter,
	provideAuthRateLimiter,
	provideRouterDependencies,
	router.NewRouter,
	provideHTTPServer,
)

var AppSet = wire.NewSet(provideApp)

type MigrationRunner struct {
	db *gorm.DB
}

func NewMigrationRunner(db *gorm.DB) *MigrationRunner {
	return &MigrationRunner{db: db}
}

func (m *MigrationRunner) Run() error {
	if err := database.Migrate(m.db); err != nil {
		return err
	}
	fmt.Println("migration complete")
	return nil
}

func provideObservabilityRuntime(cfg *config.Config) (*observability.Runtime, error) {
	bootstrapLogger := observability.NewBootstrapLogger(cfg)
	return observability.InitRuntime(context.Background(), cfg, bootstrapLogger)
}

func provideAppLogger(cfg *config.Config, runtime *observability.Runtime) *slog.Logger {
	return observability.InitLogger(cfg, runtime.LoggerProvider)
}

func provideOpenDB(cfg *config.Config) (*gorm.DB, error) {
	return database.Open(cfg)
}

func provideRuntimeDB(cfg *config.Config) (*gorm.DB, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func provideRedisClient(cfg *config.Config) redis.UniversalClient {
	if !cfg.RateLimitRedisEnabled && cfg.ChallengeStoreBackend != "redis" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

func provideChallengeStore(cfg *config.Config, redisClient redis.UniversalClient) challenge.Store {
	if cfg.ChallengeStoreBackend == "redis" && redisClient != nil {
		return challenge.NewRedisStore(redisClient, "credlock:webauthn:challenge")
	}
	return challenge.NewMemoryStore()
}

func provideSessionManager(cfg *config.Config) *security.SessionManager {
	return security.NewSessionManager(cfg.SessionSecret, cfg.SessionTTL)
}

func provideCookieManager(cfg *config.Config) *security.CookieManager {
	return security.NewCookieManager(cfg.CookieDomain, cfg.CookieSecure, cfg.CookieSameSite)
}

func provideGlobalRateLimiter(cfg *config.Config, redisClient redis.UniversalClient) router.GlobalRateLimiterFunc {
	if cfg.RateLimitRedisEnabled && redisClient != nil {
		redisLimiter := middleware.NewRedisFixedWindowLimiter(redisClient, cfg.RateLimitRedisPrefix+":api")
		return router.GlobalRateLimiterFunc(middleware.NewDistributedRateLimiter(
			redisLimiter,
			cfg.APIRateLimitPerMin,
			time.Minute,
			middleware.FailOpen,
			"api",
		).Middleware())
	}
	return router.GlobalRateLimiterFunc(middleware.NewRateLimiter(cfg.APIRateLimitPerMin, time.Minute, "api").Middleware())
}

func provideAuthRateLimiter(cfg *config.Config, redisClient redis.UniversalClient) router.AuthRateLimiterFunc {
	if cfg.RateLimitRedisEnabled && redisClient != nil {
		redisLimiter := middleware.NewRedisFixedWindowLimiter(redisClient, cfg.RateLimitRedisPrefix+":auth")
		return router.AuthRateLimiterFunc(middleware.NewDistributedRateLimiter(
			redisLimiter,
			cfg.AuthRateLimitPerMin,
			time.Minute,
			middleware.FailClosed,
			"auth",
		).Middleware())
	}
	return router.AuthRateLimiterFunc(middleware.NewRateLimiter(cfg.AuthRateLimitPerMin, time.Minute, "auth").Middleware())
}

func provideRouterDependencies(
	authHandler *handler.AuthHandler,
	webauthnHandler *handler.WebAuthnHandler,
	globalRateLimiter router.GlobalRateLimiterFunc,
	authRateLimiter router.AuthRateLimiterFunc,
	readiness *health.ProbeRunner,
	cfg *config.Config,
) router.Dependencies {
	return router.Dependencies{
		AuthHandler:       authHandler,
		WebAuthnHandler:   webauthnHandler,
		CORSOrigins:       cfg.CORSAllowedOrigins,
		APIRateLimitRPM:   cfg.APIRateLimitPerMin,
		AuthRateLimitRPM:  cfg.AuthRateLimitPerMin,
		GlobalRateLimiter: globalRateLimiter,
		AuthRateLimiter:   authRateLimiter,
		Readiness:         readiness,
		EnableOTelHTTP:    cfg.OTELMetricsEnabled || cfg.OTELTracingEnabled,
	}
}

func provideHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           h,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func provideReadinessProbeRunner(cfg *config.Config, db *gorm.DB, redisClient redis.UniversalClient) *health.ProbeRunner {
	checkers := make([]health.Checker, 0, 2)
	if c := health.NewDBChecker(db); c != nil {
		checkers = append(checkers, c)
	}
	if redisClient != nil {
		if c := health.NewRedisChecker(redisClient); c != nil {
			checkers = append(checkers, c)
		}
	}
	return health.NewProbeRunner(cfg.ReadinessProbeTimeout, cfg.ServerStartGracePeriod, checkers...)
}

func provideApp(
	cfg *config.Config,
	logger *slog.Logger,
	server *http.Server,
	runtime *observability.Runtime,
	db *gorm.DB,
	redisClient redis.UniversalClient,
	readiness *health.ProbeRunner,
) *app.App {
	return app.New(cfg, logger, server, runtime, db, redisClient, readiness)
}
