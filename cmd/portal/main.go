// cmd/portal/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/adapters/connectivity"
	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/adapters/db"
	redis_a "github.com/Colin-nwk/ubuxa-agent-sub000/internal/adapters/redis_adapter"
	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/core/ports"
	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/core/services"
	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/handlers"
	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/handlers/middleware"
	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/pkg/config"
	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/pkg/logger"
	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/workers"
)

// Build information injected at compile time
var (
	Version   = "dev"
	BuildTime = "unknown"
	GoVersion = "unknown"
)

func main() {
	slogger := logger.SetupLogger("debug", "json")

	slogger.Info("starting agent portal",
		slog.String("version", Version),
		slog.String("build_time", BuildTime),
		slog.String("go_version", GoVersion),
	)

	cfg, err := config.Load(slogger)
	if err != nil {
		slogger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Reconfigure logger with loaded settings
	slogger = logger.SetupLogger(cfg.App.LogLevel, cfg.App.LogFormat)
	slogger.Info("configuration loaded",
		slog.String("environment", cfg.App.Environment),
		slog.String("log_level", cfg.App.LogLevel),
		slog.String("connectivity_mode", cfg.Connectivity.Mode),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.AWS.SecretName != "" {
		provider, err := config.NewAWSSecretsManager(ctx, cfg.AWS.Region, cfg.AWS.SecretName, slogger)
		if err != nil {
			slogger.Error("failed to create secrets manager", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if err := config.ApplySecrets(ctx, cfg, provider); err != nil {
			slogger.Error("failed to apply secrets", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	deps, err := initializeDependencies(ctx, cfg, slogger)
	if err != nil {
		slogger.Error("failed to initialize dependencies", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer deps.cleanup()

	deps.monitor.Start(ctx)

	server := setupHTTPServer(cfg, deps, slogger)

	serverErrors := make(chan error, 1)
	go func() {
		slogger.Info("starting HTTP server", slog.String("address", cfg.GetServerAddress()))
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slogger.Error("server error", slog.String("error", err.Error()))
		}
	case sig := <-shutdown:
		slogger.Info("shutdown signal received", slog.String("signal", sig.String()))

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slogger.Error("failed to gracefully shutdown server", slog.String("error", err.Error()))
			server.Close()
		}
	}

	// Stop the monitor before the store closes so no pass is left mid-drain
	deps.monitor.Stop()
	slogger.Info("server shutdown complete")
}

// dependencies holds all application dependencies
type dependencies struct {
	store          *db.Store
	probe          *connectivity.Probe
	redisClient    *redis.Client
	asynqClient    *asynq.Client
	asynqInspector *asynq.Inspector
	monitor        *services.ConnectivityMonitor
	routes         handlers.Routes
}

func (d *dependencies) cleanup() {
	if d.probe != nil {
		d.probe.Stop()
	}
	if d.asynqInspector != nil {
		d.asynqInspector.Close()
	}
	if d.asynqClient != nil {
		d.asynqClient.Close()
	}
	if d.redisClient != nil {
		d.redisClient.Close()
	}
	if d.store != nil {
		d.store.Close()
	}
}

func initializeDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*dependencies, error) {
	deps := &dependencies{}

	logger.Info("opening local store", slog.String("path", cfg.Store.Path))

	store := db.NewStore(&db.Config{
		Path:               cfg.Store.Path,
		BusyTimeout:        cfg.Store.BusyTimeout,
		MaxOpenConns:       cfg.Store.MaxOpenConns,
		EnableQueryLogging: cfg.Store.EnableQueryLogging,
		MigrationRetries:   cfg.Store.MigrationRetries,
	}, logger)
	deps.store = store
	if err := store.Initialize(ctx); err != nil {
		return deps, fmt.Errorf("failed to initialize store: %w", err)
	}

	provider, toggle, err := newConnectivityProvider(ctx, cfg, deps, logger)
	if err != nil {
		return deps, err
	}

	// The cache is optional. A nil interface keeps the reference service on the store.
	var cache ports.CacheRepository
	if cfg.Redis.Enabled {
		logger.Info("connecting to Redis", slog.String("address", cfg.GetRedisAddress()))

		redisClient := redis.NewClient(&redis.Options{
			Addr:         cfg.GetRedisAddress(),
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			MaxRetries:   cfg.Redis.MaxRetries,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		})
		deps.redisClient = redisClient

		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, reference reads will hit the store",
				slog.String("error", err.Error()))
		}
		cache = redis_a.NewCache(redisClient, cfg.Redis.TTL, logger)
	}

	var queueOpts []services.SyncQueueOption
	var inspector handlers.QueueInspector
	if cfg.Sync.ReplayEnabled {
		logger.Info("initializing Asynq client", slog.String("queue", cfg.Sync.ReplayQueue))

		asynqRedisOpt := asynq.RedisClientOpt{
			Addr:     cfg.Asynq.RedisAddr,
			Password: cfg.Asynq.RedisPassword,
			DB:       cfg.Asynq.RedisDB,
		}
		deps.asynqClient = asynq.NewClient(asynqRedisOpt)
		deps.asynqInspector = asynq.NewInspector(asynqRedisOpt)
		inspector = deps.asynqInspector

		replayer := workers.NewAsynqReplayer(deps.asynqClient, workers.ReplayConfig{
			Queue:        cfg.Sync.ReplayQueue,
			MaxRetry:     cfg.Sync.ReplayMaxRetry,
			TaskDeadline: cfg.Sync.ReplayTaskDeadline,
		}, logger)
		queueOpts = append(queueOpts, services.WithReplayer(replayer))
	}

	clock := services.SystemClock{}
	queue := services.NewSyncQueueManager(store, clock, logger, queueOpts...)

	deps.monitor = services.NewConnectivityMonitor(provider, queue, clock, services.MonitorConfig{
		TickInterval:   cfg.Sync.TickInterval,
		SimulatedDelay: cfg.Sync.SimulatedDelay,
	}, logger)

	refs := services.NewReferenceService(store, cache, cfg.Redis.TTL, logger)
	sales := services.NewSalesService(store, queue, provider, clock, logger,
		services.WithSaleIDAttempts(cfg.Sync.SaleIDMaxAttempts),
		services.WithReferenceInvalidation(refs),
	)

	deps.routes = handlers.Routes{
		Collections: handlers.NewCollectionsHandler(refs, logger),
		Sales:       handlers.NewSalesHandler(sales, clock, logger),
		Sync:        handlers.NewSyncHandler(deps.monitor, toggle, logger),
	}
	if cfg.Server.EnableHealthCheck {
		deps.routes.Health = handlers.NewHealthHandler(store, cache, inspector, deps.monitor, cfg, logger)
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// newConnectivityProvider returns the configured provider. The toggle is nil
// unless connectivity is set manually.
func newConnectivityProvider(
	ctx context.Context,
	cfg *config.Config,
	deps *dependencies,
	logger *slog.Logger,
) (ports.ConnectivityProvider, handlers.ConnectivityToggle, error) {
	switch cfg.Connectivity.Mode {
	case "probe":
		probe, err := connectivity.NewProbe(connectivity.ProbeConfig{
			URL:      cfg.Connectivity.ProbeURL,
			Interval: cfg.Connectivity.ProbeInterval,
			Timeout:  cfg.Connectivity.ProbeTimeout,
			Initial:  cfg.Connectivity.InitialOnline,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create connectivity probe: %w", err)
		}
		probe.Start(ctx)
		deps.probe = probe
		return probe, nil, nil
	default:
		manual := connectivity.NewManual(cfg.Connectivity.InitialOnline, logger)
		return manual, manual, nil
	}
}

func setupHTTPServer(cfg *config.Config, deps *dependencies, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux, deps.routes)

	chain := []middleware.Middleware{
		middleware.RequestID(cfg.Security.RequestIDHeader),
		middleware.Logger(logger),
		middleware.Recovery(logger),
	}
	if cfg.Security.RateLimitRequests > 0 {
		chain = append(chain, middleware.RateLimit(cfg.Security.RateLimitRequests, cfg.Security.RateLimitDuration))
	}
	if len(cfg.Security.AllowedOrigins) > 0 {
		chain = append(chain, middleware.CORS(cfg.Security.AllowedOrigins))
	}
	if cfg.Security.SecureHeaders {
		chain = append(chain, middleware.SecureHeaders)
	}
	if cfg.Server.MaxBodyBytes > 0 {
		chain = append(chain, middleware.MaxBodyBytes(cfg.Server.MaxBodyBytes))
	}

	return &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        middleware.Chain(mux, chain...),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}
}
