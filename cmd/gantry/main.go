package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/gantry/pkg/api"
	"github.com/platinummonkey/gantry/pkg/async"
	"github.com/platinummonkey/gantry/pkg/audit"
	"github.com/platinummonkey/gantry/pkg/config"
	"github.com/platinummonkey/gantry/pkg/fixtures"
	"github.com/platinummonkey/gantry/pkg/metadata"
	"github.com/platinummonkey/gantry/pkg/middleware"
	"github.com/platinummonkey/gantry/pkg/observability"
	"github.com/platinummonkey/gantry/pkg/query"
	"github.com/platinummonkey/gantry/pkg/security"
	"github.com/platinummonkey/gantry/pkg/storage"
	"github.com/platinummonkey/gantry/pkg/storage/sqlstore"
)

const statsInterval = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	flagSet := pflag.NewFlagSet("gantry", pflag.ContinueOnError)
	flagSet.StringVar(&cfg.Server.Port, "port", cfg.Server.Port, "API listen port")
	flagSet.StringVar(&cfg.Server.HealthPort, "health-port", cfg.Server.HealthPort, "health and metrics listen port")
	flagSet.StringVar(&cfg.Storage.Driver, "db-driver", cfg.Storage.Driver, "database driver (sqlite3, postgres)")
	flagSet.StringVar(&cfg.Storage.DSN, "db-dsn", cfg.Storage.DSN, "database connection string")
	flagSet.StringVar(&cfg.API.OverlayFile, "overlay", cfg.API.OverlayFile, "YAML metadata overlay file")
	flagSet.StringVar(&cfg.API.TokensFile, "tokens", cfg.API.TokensFile, "YAML bearer token file")
	flagSet.BoolVar(&cfg.API.Seed, "seed", cfg.API.Seed, "load the demo fixtures on startup")
	flagSet.BoolVar(&cfg.API.RecreateSchema, "recreate-schema", cfg.API.RecreateSchema, "drop and create every table on startup")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)
	defer func() {
		if err := shutdown.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Error("shutdown finished with errors")
		}
	}()

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
		SampleRatio:    cfg.Observability.OTelSampleRatio,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	if providers != nil {
		shutdown.Register("otel", func(ctx context.Context) error {
			return observability.ShutdownOTel(ctx, providers, logger)
		})
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	reg, err := loadRegistry(cfg.API.OverlayFile)
	if err != nil {
		return err
	}

	dialect, err := query.ParseDialect(cfg.Storage.Driver)
	if err != nil {
		return err
	}
	conn, err := sqlstore.NewConnectionManager(sqlstore.ConnectionConfig{
		Dialect:     dialect,
		PrimaryDSN:  cfg.Storage.DSN,
		ReplicaDSNs: cfg.Storage.ReplicaDSNs,
		MaxConns:    cfg.Storage.MaxConns,
		MinConns:    cfg.Storage.MinConns,
		Timeout:     cfg.Storage.Timeout,
		MaxLifetime: 30 * time.Minute,
		MaxIdleTime: 5 * time.Minute,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	conn.StartHealthCheckRoutine(ctx, 30*time.Second, logger)

	storeOpts := []sqlstore.Option{sqlstore.WithLogger(logger)}
	if metrics != nil {
		storeOpts = append(storeOpts, sqlstore.WithMetrics(metrics))
	}
	var store storage.Store = sqlstore.New(conn, reg, storeOpts...)

	health := observability.NewHealthChecker(cfg.Observability.OTelServiceVersion)
	health.AddCheck("database", true, conn.HealthCheck)

	var redisClient *storage.RedisClient
	if cfg.Storage.RedisURL != "" {
		redisClient, err = storage.NewRedisClient(cfg.Storage)
		if err != nil {
			store.Close()
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		health.AddCheck("redis", false, redisClient.Ping)
	}
	if cfg.Storage.CacheEnabled {
		cacheOpts := []storage.CacheOption{storage.WithCacheLogger(logger)}
		if metrics != nil {
			cacheOpts = append(cacheOpts, storage.WithCacheMetrics(metrics))
		}
		store = storage.NewCachedStore(store, cfg.Storage, redisClient, cacheOpts...)
	} else if redisClient != nil {
		shutdown.Register("redis", func(context.Context) error { return redisClient.Close() })
	}
	shutdown.Register("store", func(context.Context) error { return store.Close() })

	if err := prepareDatabase(ctx, cfg.API, reg, store, logger); err != nil {
		return err
	}

	if cfg.API.ResetSchedule != "" {
		resetter := fixtures.NewResetter(reg, store, logger)
		if err := resetter.Schedule(cfg.API.ResetSchedule); err != nil {
			return err
		}
		resetter.Start()
		shutdown.Register("fixture reset", resetter.Stop)
		logger.WithField("schedule", cfg.API.ResetSchedule).Info("scheduled fixture reset")
	}

	if metrics != nil {
		async.Every(ctx, logger, statsInterval, "pool stats", func(context.Context) error {
			metrics.RecordDBStats(conn.Primary().Stats())
			if redisClient != nil {
				metrics.RecordRedisStats(redisClient.PoolStats())
			}
			return nil
		})
	}

	serverOpts := []api.Option{
		api.WithLogger(logger),
		api.WithHealth(health),
		api.WithRoleHierarchy(security.DefaultHierarchy),
		api.WithMaxBodyBytes(cfg.API.MaxBodyBytes),
		api.WithAPIInfo(cfg.Observability.OTelServiceName, cfg.Observability.OTelServiceVersion),
	}
	if metrics != nil {
		serverOpts = append(serverOpts, api.WithMetrics(metrics, registry))
	}
	if providers != nil {
		serverOpts = append(serverOpts, api.WithTracing())
	}
	if len(cfg.API.CORSOrigins) > 0 {
		serverOpts = append(serverOpts, api.WithCORS(cfg.API.CORSOrigins...))
	}
	if cfg.API.TokensFile != "" {
		tokens, err := security.LoadTokenFile(cfg.API.TokensFile)
		if err != nil {
			return err
		}
		logger.WithField("tokens", tokens.Len()).Info("loaded bearer tokens")
		if _, err := security.WatchTokenFile(ctx, cfg.API.TokensFile, tokens, logger); err != nil {
			logger.WithError(err).Warn("bearer tokens will not be reloaded")
		}
		serverOpts = append(serverOpts, api.WithTokens(tokens))
	}
	if auditLogger, err := newAuditLogger(ctx, cfg.API, conn); err != nil {
		return err
	} else if auditLogger != nil {
		shutdown.Register("audit", func(context.Context) error { return auditLogger.Close() })
		serverOpts = append(serverOpts, api.WithAudit(auditLogger))
	}
	if cfg.API.RateLimitRequests > 0 {
		user, anonymous := rateLimiters(ctx, cfg.API, redisClient)
		serverOpts = append(serverOpts, api.WithRateLimit(user, anonymous))
	}

	apiServer, err := api.NewServer(reg, store, serverOpts...)
	if err != nil {
		return fmt.Errorf("failed to create API server: %w", err)
	}

	httpServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      apiServer,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	healthServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:           healthRouter(health, registry),
		ReadHeaderTimeout: 5 * time.Second,
	}
	shutdown.Register("health server", healthServer.Shutdown)
	shutdown.Register("api server", httpServer.Shutdown)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.WithField("addr", httpServer.Addr).WithField("resources", len(reg.Resources())).Info("starting API server")
		return serve(httpServer)
	})
	group.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("starting health server")
		return serve(healthServer)
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		return shutdown.Shutdown(context.Background())
	})

	return group.Wait()
}

func serve(server *http.Server) error {
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s: %w", server.Addr, err)
	}
	return nil
}

func loadRegistry(overlayFile string) (*metadata.Registry, error) {
	if overlayFile == "" {
		return fixtures.NewRegistry()
	}
	overlay, err := metadata.LoadOverlayFile(overlayFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load overlay: %w", err)
	}
	return fixtures.NewRegistry(overlay)
}

func prepareDatabase(ctx context.Context, cfg config.APIConfig, reg *metadata.Registry, store storage.Store, logger *observability.Logger) error {
	if cfg.RecreateSchema {
		if err := store.RecreateSchema(ctx, reg.Resources()); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
		logger.Info("schema recreated")
	}
	if cfg.Seed {
		if err := fixtures.SeedDemo(ctx, storage.NewManager(store, reg)); err != nil {
			return fmt.Errorf("failed to seed fixtures: %w", err)
		}
		logger.Info("demo fixtures loaded")
	}
	return nil
}

func newAuditLogger(ctx context.Context, cfg config.APIConfig, conn *sqlstore.ConnectionManager) (audit.Logger, error) {
	var loggers []audit.Logger
	if cfg.AuditDir != "" {
		fileLogger, err := audit.NewFileLogger(audit.FileLoggerConfig{BasePath: cfg.AuditDir})
		if err != nil {
			return nil, err
		}
		loggers = append(loggers, fileLogger)
	}
	if cfg.AuditDatabase {
		dbLogger, err := audit.NewDBLogger(ctx, conn.Primary(), conn.Dialect())
		if err != nil {
			return nil, err
		}
		loggers = append(loggers, dbLogger)
	}
	switch len(loggers) {
	case 0:
		return nil, nil
	case 1:
		return loggers[0], nil
	default:
		return audit.NewMultiLogger(loggers...), nil
	}
}

func rateLimiters(ctx context.Context, cfg config.APIConfig, redisClient *storage.RedisClient) (user, anonymous middleware.Limiter) {
	limits := &middleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimitRequests,
		WindowDuration:    cfg.RateLimitWindow,
		BurstSize:         cfg.RateLimitBurst,
	}
	if redisClient != nil {
		return middleware.NewDistributedRateLimiter(redisClient.Client(), limits, "gantry:ratelimit:user"),
			middleware.NewDistributedRateLimiter(redisClient.Client(), limits, "gantry:ratelimit:anon")
	}

	userLimiter := middleware.NewRateLimiter(limits)
	anonLimiter := middleware.NewRateLimiter(limits)
	userLimiter.StartCleanup(ctx)
	anonLimiter.StartCleanup(ctx)
	return userLimiter, anonLimiter
}

func healthRouter(health *observability.HealthChecker, registry *prometheus.Registry) http.Handler {
	router := mux.NewRouter()
	observability.RegisterHealthRoutes(router, health)
	router.Handle("/metrics", observability.MetricsHandler(registry))
	return router
}
