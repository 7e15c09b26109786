package lazy

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandle_NotConfigured(t *testing.T) {
	var h Handle[string]
	_, err := h.Get(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.False(t, h.Ready())
}

func TestHandle_ConcurrentFirstCallsShareOneBuild(t *testing.T) {
	var builds int32
	var h Handle[*int]
	h.Configure(func(context.Context) (*int, error) {
		atomic.AddInt32(&builds, 1)
		time.Sleep(20 * time.Millisecond)
		n := 42
		return &n, nil
	})

	const callers = 10
	results := make([]*int, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := h.Get(context.Background())
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&builds))
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
	assert.True(t, h.Ready())
}

func TestHandle_FailedBuildIsRetried(t *testing.T) {
	attempts := 0
	var h Handle[string]
	h.Configure(func(context.Context) (string, error) {
		attempts++
		if attempts == 1 {
			return "", errors.New("issuer unreachable")
		}
		return "client", nil
	})

	_, err := h.Get(context.Background())
	require.Error(t, err)
	assert.False(t, h.Ready())

	v, err := h.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "client", v)

	v, err = h.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "client", v)
	assert.Equal(t, 2, attempts)
}

func TestHandle_ConfigureResets(t *testing.T) {
	var h Handle[string]
	h.Configure(func(context.Context) (string, error) { return "a", nil })
	v, _ := h.Get(context.Background())
	assert.Equal(t, "a", v)

	h.Configure(func(context.Context) (string, error) { return "b", nil })
	v, _ = h.Get(context.Background())
	assert.Equal(t, "b", v)
}

func TestHandle_ConfigureDuringBuildDropsStaleResult(t *testing.T) {
	var h Handle[string]
	started := make(chan struct{})
	release := make(chan struct{})
	h.Configure(func(context.Context) (string, error) {
		close(started)
		<-release
		return "old-issuer", nil
	})

	done := make(chan string)
	go func() {
		v, err := h.Get(context.Background())
		assert.NoError(t, err)
		done <- v
	}()
	<-started

	h.Configure(func(context.Context) (string, error) {
		return "new-issuer", nil
	})
	close(release)

	// The caller that started the old build still gets its result.
	assert.Equal(t, "old-issuer", <-done)
	assert.False(t, h.Ready())

	v, err := h.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new-issuer", v)
	assert.True(t, h.Ready())
}
