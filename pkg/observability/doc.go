// Package observability provides structured logging, Prometheus metrics, and OpenTelemetry tracing.
//
// # Structured Logging
//
//	logger, err := observability.NewLogger("info", "json", os.Stdout)
//	logger.WithFields(logrus.Fields{"op": op, "org_id": orgID}).Error("Failed to approve join request")
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	gateway := authz.NewGateway(sessions, store, logger, authz.WithDecisionCounter(metrics.AuthzDecisionsTotal))
//	router.Handle("/metrics", observability.MetricsHandler(registry))
//
// # Tracing
//
// StartTelemetry installs global tracer and meter providers exporting over
// OTLP gRPC. It returns a nil *Telemetry when disabled; the otel globals then
// stay no-ops and Shutdown on the nil value does nothing.
//
// # Health
//
// HealthChecker pings Postgres and Redis. Redis is optional: a failing Redis
// reports degraded, a failing database reports unhealthy and 503.
package observability
