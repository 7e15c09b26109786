package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/hiregate/pkg/api"
	"github.com/platinummonkey/hiregate/pkg/audit"
	"github.com/platinummonkey/hiregate/pkg/auth"
	"github.com/platinummonkey/hiregate/pkg/authz"
	"github.com/platinummonkey/hiregate/pkg/config"
	"github.com/platinummonkey/hiregate/pkg/invitelinks"
	"github.com/platinummonkey/hiregate/pkg/joinrequests"
	"github.com/platinummonkey/hiregate/pkg/middleware"
	"github.com/platinummonkey/hiregate/pkg/observability"
	"github.com/platinummonkey/hiregate/pkg/orgcache"
	"github.com/platinummonkey/hiregate/pkg/orgs"
	"github.com/platinummonkey/hiregate/pkg/pipeline"
	"github.com/platinummonkey/hiregate/pkg/scheduler"
	"github.com/platinummonkey/hiregate/pkg/storage/postgres"
)

var version = "dev"

const replicaCheckInterval = 30 * time.Second

func main() {
	configFile := flag.String("config", "", "Path to a YAML config file (overrides HIREGATE_CONFIG_FILE)")
	flag.Parse()

	if *configFile != "" {
		os.Setenv("HIREGATE_CONFIG_FILE", *configFile)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	logger, err := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat, os.Stdout)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to create logger")
	}

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("hiregate exited with error")
	}
}

func run(cfg *config.Config, logger *logrus.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetry, err := observability.StartTelemetry(ctx, cfg.Observability.OTel, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	// Database
	conns, err := postgres.NewConnectionManager(postgres.ConnectionConfig{
		PrimaryURL:  cfg.Database.URL,
		ReplicaURLs: cfg.Database.ReplicaURLs,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		Timeout:     cfg.Database.Timeout,
	}, logger)
	if err != nil {
		return err
	}
	if cfg.Database.EnsureSchema {
		if err := postgres.EnsureSchema(ctx, conns.Primary()); err != nil {
			conns.Close()
			return err
		}
		logger.Info("Database schema ensured")
	}
	conns.StartHealthCheckRoutine(ctx, replicaCheckInterval)
	db := conns.Primary()

	// Redis backs shared rate limits when configured.
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		redisClient, err = postgres.NewRedisClient(ctx, postgres.RedisConfig{
			URL:        cfg.Redis.URL,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			MaxRetries: cfg.Redis.MaxRetries,
			PoolSize:   cfg.Redis.PoolSize,
		})
		if err != nil {
			conns.Close()
			return err
		}
		logger.Info("Connected to Redis")
	}

	sessions, err := newSessionProvider(cfg.Identity)
	if err != nil {
		conns.Close()
		return err
	}

	store := orgs.NewStore(db).WithReadPool(conns)

	dbSink, err := audit.NewDBSink(db)
	if err != nil {
		conns.Close()
		return err
	}
	dbSink.WithReadPool(conns)
	var sink audit.Sink = dbSink
	if cfg.Audit.LogEntries {
		sink = audit.NewMultiSink(dbSink, audit.NewLogSink(logger))
	}
	recorder := audit.NewAsyncRecorder(sink, logger,
		audit.WithTimeout(cfg.Audit.WriteTimeout),
		audit.WithFailureCounter(metrics.AuditFailuresTotal),
	)

	gateway := authz.NewGateway(sessions, store, logger, authz.WithDecisionCounter(metrics.AuthzDecisionsTotal))

	health := observability.NewHealthChecker(db, redisClient, version)

	var admission []func(http.Handler) http.Handler
	if cfg.RateLimit.Enabled {
		admission = append(admission, newRateLimiter(ctx, cfg.RateLimit, redisClient, health, metrics, logger).Handler)
	}
	if len(cfg.Demo.Slugs) > 0 {
		demoOrgs, err := orgcache.New(cfg.Demo.CacheSize, store.ResolveSlug)
		if err != nil {
			conns.Close()
			return err
		}
		admission = append(admission, middleware.NewDemoGuard(cfg.Demo.Slugs, demoOrgs, sessions, logger).Handler)
		logger.WithField("slugs", cfg.Demo.Slugs).Info("Demo read-only guard enabled")
	}

	deps := api.Deps{
		Gateway:        gateway,
		Store:          store,
		InviteLinks:    invitelinks.NewService(store, recorder, logger),
		JoinRequests:   joinrequests.NewService(store, recorder, logger, joinrequests.WithCooldown(cfg.JoinRequests.Cooldown)),
		Pipeline:       pipeline.NewService(store, recorder, logger),
		Activity:       dbSink,
		Recorder:       recorder,
		Logger:         logger,
		PublicBaseURL:  cfg.Invites.PublicBaseURL,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Health:         health,
		Admission:      admission,
	}
	if cfg.Observability.MetricsEnabled {
		deps.Metrics = metrics
		deps.Registry = registry
	}
	server := api.NewServer(deps)

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched, err = scheduler.New(cfg.Scheduler.StatsSpec, store, db, metrics, logger)
		if err != nil {
			conns.Close()
			return err
		}
		sched.Start()
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      otelhttp.NewHandler(server, "hiregate"),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	if sched != nil {
		shutdown.RegisterShutdownFunc(sched.Stop)
	}
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		// Pending activity writes need the database.
		return recorder.Close()
	})
	if redisClient != nil {
		shutdown.RegisterShutdownFunc(func(context.Context) error { return redisClient.Close() })
	}
	shutdown.RegisterShutdownFunc(func(context.Context) error { return conns.Close() })
	shutdown.RegisterShutdownFunc(telemetry.Shutdown)

	serveErr := make(chan error, 1)
	go func() {
		defer observability.RecoverPanic(logger, "http.serve")
		logger.WithFields(logrus.Fields{
			"addr":    httpServer.Addr,
			"version": version,
		}).Info("Starting hiregate server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	waitErr := make(chan error, 1)
	go func() { waitErr <- shutdown.WaitForShutdown(ctx) }()

	select {
	case err := <-serveErr:
		cancel()
		return errors.Join(fmt.Errorf("server failed: %w", err), <-waitErr)
	case err := <-waitErr:
		return err
	}
}

func newSessionProvider(cfg config.IdentityConfig) (auth.SessionProvider, error) {
	switch cfg.Mode {
	case config.IdentityOIDC:
		return auth.NewOIDCProvider(cfg.OIDC)
	default:
		var opts []auth.JWTOption
		if cfg.JWTIssuer != "" {
			opts = append(opts, auth.WithIssuer(cfg.JWTIssuer))
		}
		if cfg.JWTAudience != "" {
			opts = append(opts, auth.WithAudience(cfg.JWTAudience))
		}
		return auth.NewJWTProvider(cfg.JWTSecret, opts...)
	}
}

func newRateLimiter(ctx context.Context, cfg config.RateLimitConfig, redisClient *redis.Client, health *observability.HealthChecker, metrics *observability.Metrics, logger logrus.FieldLogger) *middleware.RateLimitMiddleware {
	read, write := cfg.Read, cfg.Write

	var readLimiter, writeLimiter middleware.Limiter
	if redisClient != nil {
		distributed := middleware.NewDistributedRateLimiter(redisClient, &read, "ratelimit:read")
		readLimiter = distributed
		writeLimiter = middleware.NewDistributedRateLimiter(redisClient, &write, "ratelimit:write")
		health.AddCheck("ratelimit", distributed.HealthCheck)
	} else {
		r := middleware.NewRateLimiter(&read)
		w := middleware.NewRateLimiter(&write)
		r.StartCleanup(ctx)
		w.StartCleanup(ctx)
		readLimiter, writeLimiter = r, w
	}

	return middleware.NewRateLimitMiddleware(readLimiter, writeLimiter, logger,
		middleware.WithRejectionCounter(metrics.RateLimitRejectTotal))
}
