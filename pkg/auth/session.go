package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrNoSession means the request carried no session token.
	ErrNoSession = errors.New("no session")
	// ErrInvalidSession means the token was present but rejected by the provider.
	ErrInvalidSession = errors.New("invalid or expired session")
)

// Session is the identity attached to a request by the identity provider.
type Session struct {
	UserID               string    `json:"userId"`
	Email                string    `json:"email,omitempty"`
	Name                 string    `json:"name,omitempty"`
	ActiveOrganizationID string    `json:"activeOrganizationId,omitempty"`
	ExpiresAt            time.Time `json:"expiresAt"`
}

// HasActiveOrganization reports whether the session has selected an organization.
func (s *Session) HasActiveOrganization() bool {
	return s != nil && s.ActiveOrganizationID != ""
}

// SessionProvider resolves an opaque session token to a Session.
// Implementations return ErrNoSession for an empty token and ErrInvalidSession
// for a token they reject; any other error is a provider failure.
type SessionProvider interface {
	GetSession(ctx context.Context, token string) (*Session, error)
}

// SessionProviderFunc adapts a function to SessionProvider
type SessionProviderFunc func(ctx context.Context, token string) (*Session, error)

// GetSession calls f(ctx, token).
func (f SessionProviderFunc) GetSession(ctx context.Context, token string) (*Session, error) {
	return f(ctx, token)
}

type resolvedKey struct{}

type resolved struct {
	token   string
	session *Session
}

// WithResolvedSession records that token already resolved to session during
// this request, so later middleware can skip a second provider round trip.
func WithResolvedSession(ctx context.Context, token string, session *Session) context.Context {
	return context.WithValue(ctx, resolvedKey{}, resolved{token: token, session: session})
}

// ResolvedSession returns the session recorded for exactly this token.
func ResolvedSession(ctx context.Context, token string) (*Session, bool) {
	r, ok := ctx.Value(resolvedKey{}).(resolved)
	if !ok || r.session == nil || r.token != token {
		return nil, false
	}
	return r.session, true
}

// TokenFromRequest returns the bearer token from the Authorization header, or ""
// when the header is missing or malformed.
func TokenFromRequest(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	// Format: "Bearer <token>"
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
