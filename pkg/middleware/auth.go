package middleware

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/hiregate/pkg/auth"
	"github.com/platinummonkey/hiregate/pkg/authz"
	"github.com/platinummonkey/hiregate/pkg/contextkeys"
	"github.com/platinummonkey/hiregate/pkg/httputil"
	"github.com/platinummonkey/hiregate/pkg/rbac"
)

// RequireSession rejects requests without a valid session and stores the
// session in the request context.
func RequireSession(gw *authz.Gateway, logger logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := gw.Authenticate(r.Context(), auth.TokenFromRequest(r))
			if err != nil {
				httputil.WriteAppError(w, r, logger, err)
				return
			}
			ctx := contextkeys.WithSession(r.Context(), session)
			ctx = contextkeys.WithUserID(ctx, session.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission authorizes the caller in their active organization
// against req and stores the resulting principal in the request context. An
// empty req requires membership only.
func RequirePermission(gw *authz.Gateway, req rbac.Request, logger logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := gw.Authorize(r.Context(), auth.TokenFromRequest(r), req)
			if err != nil {
				httputil.WriteAppError(w, r, logger, err)
				return
			}
			ctx := contextkeys.WithPrincipal(r.Context(), principal)
			ctx = contextkeys.WithUserID(ctx, principal.UserID())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
