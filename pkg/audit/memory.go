package audit

import (
	"context"
	"sync"
)

// MemoryRecorder keeps activity in memory. Useful in tests and local runs.
type MemoryRecorder struct {
	mu         sync.Mutex
	activities []Activity
}

// Record stores a copy of the activity.
func (m *MemoryRecorder) Record(_ context.Context, activity *Activity) {
	if activity == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activities = append(m.activities, *activity)
}

// Activities returns everything recorded so far.
func (m *MemoryRecorder) Activities() []Activity {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Activity, len(m.activities))
	copy(out, m.activities)
	return out
}
