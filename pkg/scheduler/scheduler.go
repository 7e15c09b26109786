// Package scheduler runs periodic background jobs on a cron schedule.
package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/hiregate/pkg/observability"
)

// DefaultStatsSpec refreshes the stats gauges once a minute.
const DefaultStatsSpec = "@every 1m"

const jobTimeout = 30 * time.Second

// StatsSource counts the onboarding backlog.
type StatsSource interface {
	CountPendingJoinRequests(ctx context.Context) (int, error)
	CountActiveInviteLinks(ctx context.Context) (int, error)
}

// Scheduler manages cron job scheduling
type Scheduler struct {
	cron    *cron.Cron
	source  StatsSource
	db      *sql.DB
	metrics *observability.Metrics
	logger  logrus.FieldLogger
}

// New registers the stats job at spec. db is optional; when set its pool
// statistics are exported with each run.
func New(spec string, source StatsSource, db *sql.DB, metrics *observability.Metrics, logger logrus.FieldLogger) (*Scheduler, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if spec == "" {
		spec = DefaultStatsSpec
	}

	s := &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		source:  source,
		db:      db,
		metrics: metrics,
		logger:  logger.WithField("component", "scheduler"),
	}

	if _, err := s.cron.AddFunc(spec, s.runStats); err != nil {
		return nil, fmt.Errorf("failed to register stats job %q: %w", spec, err)
	}
	return s, nil
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.logger.WithField("jobs", len(s.cron.Entries())).Info("Scheduler started")
	s.cron.Start()
}

// Stop stops scheduling new runs and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		s.logger.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) runStats() {
	defer observability.RecoverPanic(s.logger, "scheduler.stats")

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if err := s.RefreshStats(ctx); err != nil {
		s.logger.WithError(err).Warn("Failed to refresh stats")
	}
}

// RefreshStats updates the backlog gauges and pool statistics once.
func (s *Scheduler) RefreshStats(ctx context.Context) error {
	if s.db != nil {
		s.metrics.UpdateDBStats(s.db.Stats())
	}

	pending, err := s.source.CountPendingJoinRequests(ctx)
	if err != nil {
		return err
	}
	s.metrics.PendingJoinRequests.Set(float64(pending))

	links, err := s.source.CountActiveInviteLinks(ctx)
	if err != nil {
		return err
	}
	s.metrics.ActiveInviteLinks.Set(float64(links))

	s.logger.WithFields(logrus.Fields{
		"pending_join_requests": pending,
		"active_invite_links":   links,
	}).Debug("Stats refreshed")
	return nil
}
