package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/hiregate/pkg/apperr"
	"github.com/platinummonkey/hiregate/pkg/auth"
	"github.com/platinummonkey/hiregate/pkg/authz"
	"github.com/platinummonkey/hiregate/pkg/contextkeys"
	"github.com/platinummonkey/hiregate/pkg/rbac"
)

type staticRoles map[string]rbac.Role

func (s staticRoles) GetMemberRole(_ context.Context, orgID, userID string) (rbac.Role, error) {
	if role, ok := s[orgID+"|"+userID]; ok {
		return role, nil
	}
	return "", apperr.New(apperr.KindNotFound, "", "Member not found")
}

func newTestGateway() *authz.Gateway {
	sessions := auth.SessionProviderFunc(func(_ context.Context, token string) (*auth.Session, error) {
		switch token {
		case "":
			return nil, auth.ErrNoSession
		case "admin":
			return &auth.Session{UserID: "u-admin", ActiveOrganizationID: "org-1"}, nil
		case "member":
			return &auth.Session{UserID: "u-member", ActiveOrganizationID: "org-1"}, nil
		case "no-org":
			return &auth.Session{UserID: "u-new"}, nil
		}
		return nil, auth.ErrInvalidSession
	})
	roles := staticRoles{"org-1|u-admin": rbac.RoleAdmin, "org-1|u-member": rbac.RoleMember}
	logger, _ := test.NewNullLogger()
	return authz.NewGateway(sessions, roles, logger)
}

func serve(h http.Handler, token string) *httptest.ResponseRecorder {
	r := httptest.NewRequest("POST", "/api/x", nil)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestRequireSession(t *testing.T) {
	logger, _ := test.NewNullLogger()
	var seen *auth.Session
	h := RequireSession(newTestGateway(), logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = authz.SessionFromContext(r.Context())
		assert.Equal(t, seen.UserID, contextkeys.GetUserID(r.Context()))
		w.WriteHeader(http.StatusNoContent)
	}))

	w := serve(h, "no-org")
	assert.Equal(t, http.StatusNoContent, w.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "u-new", seen.UserID)

	w = serve(h, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"Unauthorized","code":"UNAUTHENTICATED"}`, w.Body.String())
}

func TestRequirePermission(t *testing.T) {
	logger, _ := test.NewNullLogger()
	gw := newTestGateway()
	var principal *authz.Principal
	h := RequirePermission(gw, rbac.Require(rbac.ResourceInvitation, rbac.ActionCreate), logger)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal = authz.PrincipalFromContext(r.Context())
			w.WriteHeader(http.StatusNoContent)
		}))

	w := serve(h, "admin")
	assert.Equal(t, http.StatusNoContent, w.Code)
	require.NotNil(t, principal)
	assert.Equal(t, rbac.RoleAdmin, principal.Role)
	assert.Equal(t, "org-1", principal.OrganizationID)

	assert.Equal(t, http.StatusForbidden, serve(h, "member").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(h, "bogus").Code)

	w = serve(h, "no-org")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "NO_ACTIVE_ORGANIZATION")
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = contextkeys.GetRequestID(r.Context())
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get(RequestIDHeader))

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set(RequestIDHeader, "upstream-123")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, "upstream-123", seen)
}
