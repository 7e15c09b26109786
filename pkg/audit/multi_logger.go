package audit

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
)

// MultiSink records to several sinks in order
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink creates a sink that writes to every destination
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// Record writes to every sink even if one fails and joins the errors.
func (m *MultiSink) Record(ctx context.Context, activity *Activity) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Record(ctx, activity); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink writes activity as structured log entries.
type LogSink struct {
	logger logrus.FieldLogger
}

// NewLogSink creates a sink backed by a logrus logger
func NewLogSink(logger logrus.FieldLogger) *LogSink {
	return &LogSink{logger: logger}
}

// Record logs the activity at info level.
func (s *LogSink) Record(_ context.Context, activity *Activity) error {
	s.logger.WithFields(logrus.Fields{
		"org_id":        activity.OrganizationID,
		"actor_id":      activity.ActorID,
		"action":        activity.Action,
		"resource_type": activity.ResourceType,
		"resource_id":   activity.ResourceID,
		"metadata":      activity.Metadata,
	}).Info("activity")
	return nil
}
