package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/hiregate/pkg/auth"
	"github.com/platinummonkey/hiregate/pkg/orgcache"
)

var demoSessions = auth.SessionProviderFunc(func(_ context.Context, token string) (*auth.Session, error) {
	switch token {
	case "demo-user":
		return &auth.Session{UserID: "u1", ActiveOrganizationID: "org-demo"}, nil
	case "real-user":
		return &auth.Session{UserID: "u2", ActiveOrganizationID: "org-real"}, nil
	case "no-org":
		return &auth.Session{UserID: "u3"}, nil
	}
	return nil, auth.ErrInvalidSession
})

func newDemoHandler(t *testing.T, resolve orgcache.Resolver) http.Handler {
	cache, err := orgcache.New(8, resolve)
	require.NoError(t, err)
	logger, _ := test.NewNullLogger()
	guard := NewDemoGuard([]string{"demo", " "}, cache, demoSessions, logger)
	return guard.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
}

func TestDemoGuard(t *testing.T) {
	var lookups int32
	h := newDemoHandler(t, func(_ context.Context, slug string) (string, bool, error) {
		atomic.AddInt32(&lookups, 1)
		if slug == "demo" {
			return "org-demo", true, nil
		}
		return "", false, nil
	})

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"write in demo org", "POST", "/api/invite-links", "demo-user", http.StatusForbidden},
		{"delete in demo org", "DELETE", "/api/members/u9", "demo-user", http.StatusForbidden},
		{"patch in demo org", "PATCH", "/api/jobs/j1/status", "demo-user", http.StatusForbidden},
		{"read in demo org", "GET", "/api/members", "demo-user", http.StatusNoContent},
		{"auth routes exempt", "POST", "/api/auth/sign-out", "demo-user", http.StatusNoContent},
		{"non-api path", "POST", "/webhooks", "demo-user", http.StatusNoContent},
		{"other org", "POST", "/api/invite-links", "real-user", http.StatusNoContent},
		{"no active org", "POST", "/api/organizations", "no-org", http.StatusNoContent},
		{"unauthenticated", "POST", "/api/invite-links", "", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.token != "" {
				r.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusForbidden {
				assert.Contains(t, w.Body.String(), `"code":"PREVIEW_READ_ONLY"`)
				assert.Contains(t, w.Body.String(), "read-only demo")
			}
		})
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&lookups), "resolved id is cached")
}

func TestDemoGuard_UnresolvedSlugPassesThrough(t *testing.T) {
	var lookups int32
	h := newDemoHandler(t, func(context.Context, string) (string, bool, error) {
		atomic.AddInt32(&lookups, 1)
		return "", false, nil
	})

	for i := 0; i < 2; i++ {
		r := httptest.NewRequest("POST", "/api/invite-links", nil)
		r.Header.Set("Authorization", "Bearer demo-user")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		assert.Equal(t, http.StatusNoContent, w.Code)
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&lookups), "misses are not cached")
}

func TestDemoGuard_ResolverErrorPassesThrough(t *testing.T) {
	h := newDemoHandler(t, func(context.Context, string) (string, bool, error) {
		return "", false, errors.New("connection refused")
	})

	r := httptest.NewRequest("POST", "/api/invite-links", nil)
	r.Header.Set("Authorization", "Bearer demo-user")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestDemoGuard_HandsResolvedSessionOn(t *testing.T) {
	cache, err := orgcache.New(8, func(context.Context, string) (string, bool, error) {
		return "org-demo", true, nil
	})
	require.NoError(t, err)

	var calls int32
	counting := auth.SessionProviderFunc(func(ctx context.Context, token string) (*auth.Session, error) {
		atomic.AddInt32(&calls, 1)
		return demoSessions(ctx, token)
	})
	logger, _ := test.NewNullLogger()

	var seen *auth.Session
	h := NewDemoGuard([]string{"demo"}, cache, counting, logger).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = auth.ResolvedSession(r.Context(), auth.TokenFromRequest(r))
		w.WriteHeader(http.StatusNoContent)
	}))

	r := httptest.NewRequest("POST", "/api/invite-links", nil)
	r.Header.Set("Authorization", "Bearer real-user")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusNoContent, w.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "u2", seen.UserID)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDemoGuard_WarnsOncePerOutage(t *testing.T) {
	var found atomic.Bool
	cache, err := orgcache.New(8, func(context.Context, string) (string, bool, error) {
		if found.Load() {
			return "org-demo", true, nil
		}
		return "", false, nil
	})
	require.NoError(t, err)
	logger, hook := test.NewNullLogger()
	h := NewDemoGuard([]string{"demo"}, cache, demoSessions, logger).Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	write := func() int {
		r := httptest.NewRequest("POST", "/api/invite-links", nil)
		r.Header.Set("Authorization", "Bearer real-user")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w.Code
	}

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusNoContent, write())
	}
	warnings := 0
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warnings++
		}
	}
	assert.Equal(t, 1, warnings)

	found.Store(true)
	assert.Equal(t, http.StatusNoContent, write())
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
}
