package audit

import (
	"context"
)

// Sink is the interface for recording activity
type Sink interface {
	// Record appends one activity entry
	Record(ctx context.Context, activity *Activity) error
}

// Recorder records activity without making the caller wait or fail.
type Recorder interface {
	// Record schedules the entry for writing. It never returns an error;
	// write failures are logged.
	Record(ctx context.Context, activity *Activity)
}

// contextKey is the type for context keys
type contextKey string

// RecorderKey is the context key for the activity recorder
const RecorderKey contextKey = "audit_recorder"

// WithRecorder adds a recorder to the context
func WithRecorder(ctx context.Context, r Recorder) context.Context {
	return context.WithValue(ctx, RecorderKey, r)
}

// FromContext retrieves the recorder from context
func FromContext(ctx context.Context) Recorder {
	if r, ok := ctx.Value(RecorderKey).(Recorder); ok {
		return r
	}
	// Return a no-op recorder if none is set
	return Discard
}

// Discard drops every activity.
var Discard Recorder = noOpRecorder{}

type noOpRecorder struct{}

func (noOpRecorder) Record(context.Context, *Activity) {}
