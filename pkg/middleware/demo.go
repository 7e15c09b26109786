package middleware

import (
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/hiregate/pkg/apperr"
	"github.com/platinummonkey/hiregate/pkg/auth"
	"github.com/platinummonkey/hiregate/pkg/httputil"
	"github.com/platinummonkey/hiregate/pkg/orgcache"
)

const msgReadOnlyDemo = "This is a read-only demo so you can explore the interface. " +
	"Editing is disabled here, but it's fully unlocked when you self-host."

// DemoGuard rejects writes made while the caller's active organization is one
// of the configured demo organizations. Reads and /api/auth/ are untouched.
type DemoGuard struct {
	slugs    []string
	orgs     *orgcache.Cache
	sessions auth.SessionProvider
	logger   logrus.FieldLogger
	// unresolved is set while no slug resolves; it limits the warning to
	// one per outage.
	unresolved atomic.Bool
}

// NewDemoGuard creates a guard for the organizations named by slugs.
func NewDemoGuard(slugs []string, orgs *orgcache.Cache, sessions auth.SessionProvider, logger logrus.FieldLogger) *DemoGuard {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	cleaned := make([]string, 0, len(slugs))
	for _, s := range slugs {
		if s = strings.TrimSpace(s); s != "" {
			cleaned = append(cleaned, s)
		}
	}
	return &DemoGuard{slugs: cleaned, orgs: orgs, sessions: sessions, logger: logger}
}

// Handler wraps an HTTP handler with the read-only check.
func (g *DemoGuard) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isWrite(r.Method) || !strings.HasPrefix(r.URL.Path, "/api/") || strings.HasPrefix(r.URL.Path, "/api/auth/") {
			next.ServeHTTP(w, r)
			return
		}

		demoIDs := g.demoOrganizationIDs(r)
		if len(demoIDs) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		// Unauthenticated requests are rejected later by the gateway.
		token := auth.TokenFromRequest(r)
		session, err := g.sessions.GetSession(r.Context(), token)
		if err != nil || session == nil {
			next.ServeHTTP(w, r)
			return
		}
		r = r.WithContext(auth.WithResolvedSession(r.Context(), token, session))
		if !session.HasActiveOrganization() {
			next.ServeHTTP(w, r)
			return
		}

		if _, ok := demoIDs[session.ActiveOrganizationID]; ok {
			httputil.WriteAppError(w, r, g.logger, apperr.New(apperr.KindReadOnly, "middleware.DemoGuard", msgReadOnlyDemo))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (g *DemoGuard) demoOrganizationIDs(r *http.Request) map[string]struct{} {
	ids := make(map[string]struct{}, len(g.slugs))
	for _, slug := range g.slugs {
		id, found, err := g.orgs.GetOrResolve(r.Context(), slug)
		if err != nil {
			g.logger.WithError(err).WithField("slug", slug).Warn("Failed to resolve demo organization")
			continue
		}
		if found {
			ids[id] = struct{}{}
		}
	}
	if len(ids) == 0 && len(g.slugs) > 0 {
		if !g.unresolved.Swap(true) {
			g.logger.WithField("slugs", g.slugs).Warn("No demo organization found, writes are not blocked")
		}
		return ids
	}
	if g.unresolved.Swap(false) {
		g.logger.WithField("slugs", g.slugs).Info("Demo organization resolved, writes are blocked again")
	}
	return ids
}

func isWrite(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}
