package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dealerhub/internal/core/ports"
	"dealerhub/internal/core/services"
	httphandlers "dealerhub/internal/handlers/http"
	"dealerhub/internal/infrastructure/backend"
	"dealerhub/internal/infrastructure/directory"
	"dealerhub/internal/infrastructure/distributed"
	"dealerhub/internal/infrastructure/middleware"
	"dealerhub/internal/infrastructure/monitoring"
	"dealerhub/internal/infrastructure/repositories"
	"dealerhub/pkg/circuitbreaker"
	"dealerhub/pkg/config"
	"dealerhub/pkg/logger"
	"dealerhub/pkg/retry"
	"dealerhub/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	loginGateTTL          = 30 * time.Second
	activeSessionInterval = 30 * time.Second
	readinessTimeout      = 2 * time.Second
)

func main() {
	startTime := time.Now()

	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// Logger is not configured yet.
		zap.NewExample().Sugar().Fatalw("failed to load configuration", "path", *configPath, "error", err)
	}

	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracerProvider, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialise tracing", "error", err)
	}

	repoFactory := repositories.NewRepositoryFactory(ctx, cfg, log)
	sessionRepo := repoFactory.CreateSessionRepository()
	revocationRepo := repoFactory.CreateRevocationRepository()

	collector := monitoring.NewPrometheusCollector(prometheus.DefaultRegisterer)
	health := monitoring.NewHealthChecker()
	health.AddPingCheck("repositories", repoFactory.HealthCheck, readinessTimeout)

	// Identity provider: the backend API when configured, the local
	// directory otherwise.
	var (
		provider ports.IdentityProvider
		gateway  ports.ResourceGateway
		users    *directory.Provider
	)
	if cfg.UsesBackend() {
		client, err := backend.NewClient(backendConfig(cfg, collector), log)
		if err != nil {
			log.Fatalw("failed to create backend client", "error", err)
		}
		collector.RecordBreakerState(client.Breaker().Name(), client.Breaker().State())
		health.AddBreakerCheck(client.Breaker())

		provider = backend.NewIdentityProvider(client)
		gateway = client
		log.Infow("authenticating against backend", "base_url", cfg.Backend.BaseURL)
	} else {
		users, err = directory.NewProvider(cfg.Directory.UsersFile, log)
		if err != nil {
			log.Fatalw("failed to load user directory", "path", cfg.Directory.UsersFile, "error", err)
		}
		provider = users
		log.Infow("authenticating against local directory", "path", cfg.Directory.UsersFile)
	}

	tokens := services.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	sessionStore := services.NewSessionStore(sessionRepo, revocationRepo, provider, tokens, services.SessionStoreConfig{
		TTL:                cfg.Auth.SessionTTL,
		ValidationInterval: cfg.Auth.ValidationInterval,
	}, log).WithMetrics(collector)
	defer sessionStore.Close()

	if repoFactory.UsesRedis() {
		instanceID := uuid.NewString()
		eventBus := distributed.NewEventBus(repoFactory.RedisClient(), instanceID, log)
		sessionStore.WithEvents(eventBus).
			WithLoginGate(distributed.NewLoginGate(repoFactory.RedisClient(), loginGateTTL, log))

		go func() {
			if err := eventBus.Subscribe(ctx, distributed.SessionClosedHandler(sessionStore)); err != nil && ctx.Err() == nil {
				log.Errorw("session event subscription stopped", "error", err)
			}
		}()
		log.Infow("cluster session events enabled", "instance_id", instanceID)
	}

	go collector.ReportActiveSessions(ctx, sessionRepo, activeSessionInterval, log)

	guard := services.NewRouteGuard(cfg.Auth.LoginPath, cfg.Auth.AccessDeniedPath)
	navigation := services.NewNavigationService(guard)
	cookie := middleware.CookieConfig{
		Name:   cfg.Auth.CookieName,
		Domain: cfg.Auth.CookieDomain,
		Secure: cfg.Auth.CookieSecure,
	}

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		middleware.RecoveryMiddleware(log),
		middleware.RequestIDMiddleware(),
		middleware.TracingMiddleware(),
		middleware.RequestLoggingMiddleware(logger.NewContextLogger(zapLogger), collector),
		middleware.ErrorHandlerMiddleware(log),
		middleware.SessionMiddleware(sessionStore, cookie, log),
	)

	httphandlers.NewAuthHandler(sessionStore, navigation, cookie,
		middleware.NewLoginRateLimitMiddleware(cfg, collector), log).SetupRoutes(router)
	httphandlers.NewDashboardHandler(guard, navigation, collector).SetupRoutes(router)
	if gateway != nil {
		httphandlers.NewResourceHandler(gateway, sessionStore, guard, cookie, collector, collector, log).
			SetupRoutes(router)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    monitoring.StatusHealthy,
			"timestamp": time.Now(),
			"uptime":    time.Since(startTime).Round(time.Second).String(),
		})
	})
	router.GET("/ready", func(c *gin.Context) {
		status := health.CheckAll(c.Request.Context())
		code := http.StatusOK
		if status.Status != monitoring.StatusHealthy {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	})
	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
		log.Info("Prometheus metrics enabled")
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("starting dealerhub portal", "address", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

wait:
	for {
		select {
		case err := <-serverErr:
			log.Fatalw("server failed", "error", err)
		case sig := <-sigChan:
			if sig == syscall.SIGHUP {
				reloadDirectory(users, log)
				continue
			}
			log.Infow("received shutdown signal", "signal", sig)
			break wait
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("error force closing server", "error", closeErr)
		}
	} else {
		log.Info("server shutdown gracefully")
	}

	cancel()
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error shutting down tracer", "error", err)
	}
	if err := repoFactory.Close(); err != nil {
		log.Errorw("error closing repository factory", "error", err)
	}

	log.Info("dealerhub portal stopped")
}

func backendConfig(cfg *config.Config, collector *monitoring.PrometheusCollector) backend.ClientConfig {
	policy := retry.DefaultPolicy()
	policy.Enabled = cfg.Backend.Retry.Enabled
	policy.MaxAttempts = cfg.Backend.Retry.MaxAttempts
	policy.InitialDelay = cfg.Backend.Retry.InitialDelay
	policy.MaxDelay = cfg.Backend.Retry.MaxDelay

	breaker := circuitbreaker.DefaultConfig("backend")
	breaker.FailureThreshold = cfg.Backend.CircuitBreaker.FailureThreshold
	breaker.SuccessThreshold = cfg.Backend.CircuitBreaker.SuccessThreshold
	breaker.OpenTimeout = cfg.Backend.CircuitBreaker.OpenTimeout
	breaker.MaxRequestsHalfOpen = cfg.Backend.CircuitBreaker.MaxRequestsHalfOpen

	return backend.ClientConfig{
		BaseURL:        cfg.Backend.BaseURL,
		Timeout:        cfg.Backend.Timeout,
		Retry:          policy,
		Breaker:        breaker,
		OnBreakerState: collector.RecordBreakerState,
	}
}

func reloadDirectory(users *directory.Provider, log *zap.SugaredLogger) {
	if users == nil {
		log.Info("SIGHUP ignored, no local directory in use")
		return
	}
	if err := users.Reload(); err != nil {
		log.Errorw("failed to reload user directory, keeping previous users", "error", err)
		return
	}
	log.Info("user directory reloaded")
}
