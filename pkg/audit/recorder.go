package audit

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// AsyncRecorder writes activity in the background. Callers never wait on the
// sink and never see its errors; failures are logged and counted.
type AsyncRecorder struct {
	sink     Sink
	logger   logrus.FieldLogger
	timeout  time.Duration
	failures prometheus.Counter

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// RecorderOption configures an AsyncRecorder
type RecorderOption func(*AsyncRecorder)

// WithTimeout bounds each background write (default 5s).
func WithTimeout(d time.Duration) RecorderOption {
	return func(r *AsyncRecorder) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithFailureCounter counts writes that failed.
func WithFailureCounter(c prometheus.Counter) RecorderOption {
	return func(r *AsyncRecorder) {
		r.failures = c
	}
}

// NewAsyncRecorder wraps sink in a fire-and-forget recorder
func NewAsyncRecorder(sink Sink, logger logrus.FieldLogger, opts ...RecorderOption) *AsyncRecorder {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	r := &AsyncRecorder{
		sink:    sink,
		logger:  logger,
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record schedules the write. The write outlives the caller's cancellation
// but not the recorder's timeout.
func (r *AsyncRecorder) Record(ctx context.Context, activity *Activity) {
	if activity == nil {
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.logger.WithFields(logrus.Fields{
			"action":      activity.Action,
			"resource_id": activity.ResourceID,
		}).Warn("Activity dropped after recorder closed")
		return
	}

	bg := context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		writeCtx, cancel := context.WithTimeout(bg, r.timeout)
		defer cancel()

		if err := r.sink.Record(writeCtx, activity); err != nil {
			if r.failures != nil {
				r.failures.Inc()
			}
			r.logger.WithError(err).WithFields(logrus.Fields{
				"org_id":        activity.OrganizationID,
				"action":        activity.Action,
				"resource_type": activity.ResourceType,
				"resource_id":   activity.ResourceID,
			}).Error("Failed to record activity")
		}
	}()
}

// Close stops accepting activity and waits for pending writes.
func (r *AsyncRecorder) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.wg.Wait()
	return nil
}
