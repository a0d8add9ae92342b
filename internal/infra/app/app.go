package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/arklim/medportal-api/internal/core/port"
	"github.com/arklim/medportal-api/internal/infra/config"
	"github.com/arklim/medportal-api/internal/infra/database"
	kafkainfra "github.com/arklim/medportal-api/internal/infra/kafka"
	"github.com/arklim/medportal-api/internal/infra/logger"
	"github.com/arklim/medportal-api/internal/infra/mailer"
	redisinfra "github.com/arklim/medportal-api/internal/infra/redis"
	"github.com/arklim/medportal-api/internal/infra/security"
	"github.com/arklim/medportal-api/internal/infra/telemetry"
	cacherepo "github.com/arklim/medportal-api/internal/repository/cache"
	postgresrepo "github.com/arklim/medportal-api/internal/repository/postgres"
	redisrepo "github.com/arklim/medportal-api/internal/repository/redis"
	"github.com/arklim/medportal-api/internal/transport/http/middleware"
	"github.com/arklim/medportal-api/internal/transport/http/routes"
	"github.com/arklim/medportal-api/internal/usecase"
)

// Application owns the HTTP engine and every long-lived connection behind it.
type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	tracer   *telemetry.TracerProvider
	producer *kafkainfra.Producer
}

// New builds the application graph from cfg.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &Application{cfg: cfg, logger: log}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	a.tracer, err = telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	a.pool, err = database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if cfg.Postgres.AutoMigrate {
		if err := database.MigratePool(ctx, a.pool, log); err != nil {
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
	}

	a.redis, err = redisinfra.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}

	hasher, err := security.NewArgon2Hasher(argon2Config(cfg.Argon2))
	if err != nil {
		return nil, fmt.Errorf("configure argon2: %w", err)
	}

	policy := security.NewPasswordPolicy(passwordPolicyConfig(cfg.Password))

	issuer, err := security.NewTokenIssuer(security.TokenIssuerConfig{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
		TTL:    cfg.JWT.AccessTokenTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("init token issuer: %w", err)
	}

	sender, err := mailer.NewSMTPSender(cfg.SMTP, log)
	if err != nil {
		return nil, fmt.Errorf("init smtp sender: %w", err)
	}
	notifier, err := mailer.NewNotifier(sender, cfg.App.PublicURL, cfg.App.ResetURL)
	if err != nil {
		return nil, fmt.Errorf("init notifier: %w", err)
	}

	repos := postgresrepo.NewRepositories(a.pool)
	roles := cacherepo.NewRoleRepository(repos.Roles, cfg.Cache.RoleTTL, cfg.Cache.CleanupInterval)

	redisClient := a.redis.Client()
	resetTokens := redisrepo.NewResetTokenRepository(redisClient, cfg.Redis.ResetTokenPrefix)
	revocations := redisrepo.NewRevocationRepository(redisClient, cfg.Redis.RevocationPrefix)

	rateLimitWindow := cfg.RateLimit.WindowDuration
	if rateLimitWindow <= 0 {
		rateLimitWindow = time.Minute
	}
	rateLimitStore := redisrepo.NewRateLimitRepository(redisClient, redisrepo.SlidingWindowConfig{
		KeyPrefix: cfg.Redis.RateLimitPrefix,
		TTL:       rateLimitWindow * 2,
	})
	rateLimiter := middleware.NewRateLimiter(rateLimitStore, log)

	var events port.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			events = kafkainfra.NewStubPublisher(log)
		} else {
			a.producer = producer
			events = kafkainfra.NewEventPublisher(producer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		events = kafkainfra.NewStubPublisher(log)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Registerer: registry})
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}
	identityMetrics, err := telemetry.NewIdentityMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("init identity metrics: %w", err)
	}

	identityService, err := usecase.NewIdentityService(usecase.IdentityDependencies{
		Accounts:      repos.Accounts,
		Transactor:    repos.Transactor,
		Roles:         roles,
		Profiles:      repos.Profiles,
		Hasher:        hasher,
		Policy:        policy,
		Notifier:      notifier,
		ResetTokens:   resetTokens,
		Events:        events,
		Metrics:       identityMetrics,
		ResetTokenTTL: cfg.Verification.ResetTokenTTL,
		Logger:        log,
	})
	if err != nil {
		return nil, fmt.Errorf("init identity service: %w", err)
	}

	authService, err := usecase.NewAuthService(repos.Accounts, roles, hasher, issuer, revocations, log)
	if err != nil {
		return nil, fmt.Errorf("init auth service: %w", err)
	}

	a.engine = routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: rateLimiter,
		Metrics:     httpMetrics,
		Gatherer:    registry,
		Auth:        authService,
		Identity:    identityService,
		Database:    a.pool,
		Cache:       a.redis,
	})

	ok = true
	return a, nil
}

// Run serves HTTP until ctx is cancelled, then drains in-flight requests.
func (a *Application) Run(ctx context.Context) error {
	defer a.close()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       durationOr(a.cfg.App.ReadTimeout, 30*time.Second),
		WriteTimeout:      durationOr(a.cfg.App.WriteTimeout, 30*time.Second),
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting medportal API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), durationOr(a.cfg.App.ShutdownTimeout, 10*time.Second))
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		a.logger.Info("server stopped")
		return nil
	case err := <-serverErrCh:
		return err
	}
}

func (a *Application) close() {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("close kafka producer", zap.Error(err))
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(context.Background()); err != nil {
			a.logger.Warn("shutdown tracer provider", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

// argon2Config overlays the configured parameters on the production defaults.
func argon2Config(settings config.Argon2Settings) security.Argon2Config {
	out := security.DefaultArgon2Config()
	if settings.Memory > 0 {
		out.Memory = settings.Memory
	}
	if settings.Iterations > 0 {
		out.Iterations = settings.Iterations
	}
	if settings.Parallelism > 0 {
		out.Parallelism = settings.Parallelism
	}
	if settings.SaltLength > 0 {
		out.SaltLength = settings.SaltLength
	}
	if settings.KeyLength > 0 {
		out.KeyLength = settings.KeyLength
	}
	return out
}

// passwordPolicyConfig maps settings verbatim so deployments can relax individual rules with zeros.
func passwordPolicyConfig(settings config.PasswordSettings) security.PasswordPolicyConfig {
	if !settings.Enforce {
		return security.PasswordPolicyConfig{}
	}
	return security.PasswordPolicyConfig{
		MinLength:           settings.MinLength,
		MinCharacterClasses: settings.MinCharacterClasses,
		MinStrength:         settings.MinStrength,
	}
}

func durationOr(value, fallback time.Duration) time.Duration {
	if value > 0 {
		return value
	}
	return fallback
}
