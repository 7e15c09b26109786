package observability

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger("debug", "json", &buf)
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

	logger.WithField("org_id", "org-1").Info("hello")
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "org-1", entry["org_id"])

	_, err = NewLogger("loud", "json", nil)
	assert.Error(t, err)
	_, err = NewLogger("info", "xml", nil)
	assert.Error(t, err)
}

func TestWithTraceContext(t *testing.T) {
	logger, hook := test.NewNullLogger()

	WithTraceContext(context.Background(), logger).Info("no span")
	assert.NotContains(t, hook.LastEntry().Data, "trace_id")

	tp := sdktrace.NewTracerProvider()
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	WithTraceContext(ctx, logger).Info("with span")
	assert.Equal(t, span.SpanContext().TraceID().String(), hook.LastEntry().Data["trace_id"])
}

func TestRecoverPanic(t *testing.T) {
	logger, hook := test.NewNullLogger()
	func() {
		defer RecoverPanic(logger, "stats refresh")
		panic("boom")
	}()
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "boom", hook.LastEntry().Data["panic"])
	assert.Equal(t, "stats refresh", hook.LastEntry().Data["context"])
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	router := mux.NewRouter()
	router.Use(HTTPMetricsMiddleware(metrics))
	router.HandleFunc("/api/members/{userId}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}).Methods("DELETE")
	router.Handle("/metrics", MetricsHandler(registry))

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("DELETE", "/api/members/u1", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("DELETE", "/api/members/u2", nil))

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("DELETE", "/api/members/{userId}", "404")))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "hiregate_http_requests_total")
}

func TestUpdateDBStats(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	metrics.UpdateDBStats(sql.DBStats{OpenConnections: 5, InUse: 2, Idle: 3, WaitCount: 7})
	assert.Equal(t, float64(5), testutil.ToFloat64(metrics.DBConnectionsOpen))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.DBConnectionsInUse))
	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.DBConnectionsIdle))
	assert.Equal(t, float64(7), testutil.ToFloat64(metrics.DBConnectionsWaited))
}

func TestHealthChecker(t *testing.T) {
	t.Run("no dependencies", func(t *testing.T) {
		status := NewHealthChecker(nil, nil, "v1").Check(context.Background())
		assert.Equal(t, StatusHealthy, status.Status)
		assert.Equal(t, "v1", status.Version)
	})

	t.Run("database down is unhealthy", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		mock.ExpectQuery("SELECT 1").WillReturnError(errors.New("connection refused"))

		checker := NewHealthChecker(db, nil, "v1")
		w := httptest.NewRecorder()
		checker.Readiness(w, httptest.NewRequest("GET", "/healthz", nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), "connection refused")
	})

	t.Run("redis down is degraded", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
		defer client.Close()
		mr.Close()

		checker := NewHealthChecker(db, client, "v1")
		w := httptest.NewRecorder()
		checker.Readiness(w, httptest.NewRequest("GET", "/healthz", nil))
		assert.Equal(t, http.StatusOK, w.Code)

		var status HealthStatus
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
		assert.Equal(t, StatusDegraded, status.Status)
		assert.Equal(t, StatusHealthy, status.Dependencies["database"].Status)
		assert.Equal(t, StatusUnhealthy, status.Dependencies["redis"].Status)
	})

	t.Run("failing extra check is degraded", func(t *testing.T) {
		checker := NewHealthChecker(nil, nil, "v1")
		checker.AddCheck("ratelimit", func(context.Context) error { return errors.New("script missing") })
		checker.AddCheck("cache", func(context.Context) error { return nil })

		w := httptest.NewRecorder()
		checker.Readiness(w, httptest.NewRequest("GET", "/healthz", nil))
		assert.Equal(t, http.StatusOK, w.Code)

		var status HealthStatus
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
		assert.Equal(t, StatusDegraded, status.Status)
		assert.Equal(t, StatusUnhealthy, status.Dependencies["ratelimit"].Status)
		assert.Equal(t, "script missing", status.Dependencies["ratelimit"].Message)
		assert.Equal(t, StatusHealthy, status.Dependencies["cache"].Status)
	})

	t.Run("liveness", func(t *testing.T) {
		w := httptest.NewRecorder()
		NewHealthChecker(nil, nil, "v1").Liveness(w, httptest.NewRequest("GET", "/livez", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestShutdownManager(t *testing.T) {
	logger, _ := test.NewNullLogger()

	t.Run("runs functions in order", func(t *testing.T) {
		sm := NewShutdownManager(logger, nil, time.Second)
		var order []int
		sm.RegisterShutdownFunc(func(context.Context) error { order = append(order, 1); return nil })
		sm.RegisterShutdownFunc(func(context.Context) error { order = append(order, 2); return nil })

		require.NoError(t, sm.Shutdown(context.Background()))
		assert.Equal(t, []int{1, 2}, order)
	})

	t.Run("collects errors", func(t *testing.T) {
		sm := NewShutdownManager(logger, nil, time.Second)
		boom := errors.New("flush failed")
		sm.RegisterShutdownFunc(func(context.Context) error { return boom })
		ran := false
		sm.RegisterShutdownFunc(func(context.Context) error { ran = true; return nil })

		err := sm.Shutdown(context.Background())
		assert.ErrorIs(t, err, boom)
		assert.True(t, ran)
	})

	t.Run("stops the server", func(t *testing.T) {
		sm := NewShutdownManager(logger, &http.Server{Handler: http.NotFoundHandler()}, 0)
		assert.Equal(t, 30*time.Second, sm.shutdownTimeout)
		require.NoError(t, sm.Shutdown(context.Background()))
	})

	t.Run("context cancellation triggers shutdown", func(t *testing.T) {
		sm := NewShutdownManager(logger, nil, time.Second)
		called := false
		sm.RegisterShutdownFunc(func(context.Context) error { called = true; return nil })

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		require.NoError(t, sm.WaitForShutdown(ctx))
		assert.True(t, called)
	})
}

func TestStartTelemetryDisabled(t *testing.T) {
	logger, _ := test.NewNullLogger()
	tel, err := StartTelemetry(context.Background(), OTelConfig{}, logger)
	require.NoError(t, err)
	assert.Nil(t, tel)
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), Sampler(0).Description())
	assert.Equal(t, sdktrace.AlwaysSample().Description(), Sampler(1).Description())
	assert.Contains(t, Sampler(0.25).Description(), "TraceIDRatioBased{0.25}")
}
