// Package lazy builds expensive clients on first use.
package lazy

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ErrNotConfigured is returned by Get before Configure has been called.
var ErrNotConfigured = errors.New("lazy: handle not configured")

// Handle memoizes the first successful result of a build function. Concurrent
// first calls share a single build; a failed build is retried on the next Get.
// A build that finishes after Configure replaced it is returned to its own
// callers but never memoized.
type Handle[T any] struct {
	mu    sync.RWMutex
	build func(context.Context) (T, error)
	gen   uint64
	value T
	ready bool
	group singleflight.Group
}

// Configure sets the build function and forgets any previously built value.
func (h *Handle[T]) Configure(build func(context.Context) (T, error)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var zero T
	h.build = build
	h.gen++
	h.value = zero
	h.ready = false
}

// Get returns the built value, building it if needed.
func (h *Handle[T]) Get(ctx context.Context) (T, error) {
	h.mu.RLock()
	if h.ready {
		v := h.value
		h.mu.RUnlock()
		return v, nil
	}
	build, gen := h.build, h.gen
	h.mu.RUnlock()

	var zero T
	if build == nil {
		return zero, ErrNotConfigured
	}

	v, err, _ := h.group.Do(strconv.FormatUint(gen, 10), func() (interface{}, error) {
		h.mu.RLock()
		if h.ready && h.gen == gen {
			v := h.value
			h.mu.RUnlock()
			return v, nil
		}
		h.mu.RUnlock()

		v, err := build(ctx)
		if err != nil {
			return nil, err
		}

		h.mu.Lock()
		if h.gen == gen {
			h.value = v
			h.ready = true
		}
		h.mu.Unlock()
		return v, nil
	})
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

// Ready reports whether a value has been built.
func (h *Handle[T]) Ready() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ready
}
