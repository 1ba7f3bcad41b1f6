// Package observability provides structured logging, Prometheus metrics,
// OpenTelemetry tracing, health probes, and shutdown coordination.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("resource", "Dummy").Info("schema created")
//
// Request scoped loggers travel in the context:
//
//	ctx = observability.WithLogger(ctx, logger.WithField("request_id", id))
//	observability.FromContext(ctx).Debug("filter ignored")
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	router.Use(observability.HTTPMetricsMiddleware(metrics))
//	router.Handle("/metrics", observability.MetricsHandler(registry))
//
// HTTP metrics are labelled with the matched route template, so every item
// of a resource shares a single series.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(version)
//	checker.AddCheck("database", true, store.HealthCheck)
//	checker.AddCheck("redis", false, redisClient.Ping)
//	observability.RegisterHealthRoutes(router, checker)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "gantry",
//	}, logger)
//	shutdown.Register("otel", func(ctx context.Context) error {
//		return observability.ShutdownOTel(ctx, providers, logger)
//	})
package observability
