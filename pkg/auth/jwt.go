package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionClaims are the claims carried by an HS256 session token.
type SessionClaims struct {
	Email                string `json:"email,omitempty"`
	Name                 string `json:"name,omitempty"`
	ActiveOrganizationID string `json:"activeOrganizationId,omitempty"`
	jwt.RegisteredClaims
}

// JWTProvider validates session tokens signed with a shared secret by the
// identity provider.
type JWTProvider struct {
	secret   []byte
	issuer   string
	audience string
	now      func() time.Time
}

// JWTOption configures a JWTProvider
type JWTOption func(*JWTProvider)

// WithIssuer requires tokens to carry the given iss claim.
func WithIssuer(issuer string) JWTOption {
	return func(p *JWTProvider) { p.issuer = issuer }
}

// WithAudience requires tokens to carry the given aud claim.
func WithAudience(audience string) JWTOption {
	return func(p *JWTProvider) { p.audience = audience }
}

// WithJWTClock overrides the clock used for expiry checks.
func WithJWTClock(now func() time.Time) JWTOption {
	return func(p *JWTProvider) { p.now = now }
}

// NewJWTProvider creates a provider for tokens signed with secret.
func NewJWTProvider(secret string, opts ...JWTOption) (*JWTProvider, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	p := &JWTProvider{secret: []byte(secret), now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// GetSession implements SessionProvider.
func (p *JWTProvider) GetSession(_ context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrNoSession
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(p.now),
		jwt.WithExpirationRequired(),
	}
	if p.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(p.issuer))
	}
	if p.audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(p.audience))
	}

	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSession
		}
		return p.secret, nil
	}, parserOpts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: token has expired", ErrInvalidSession)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidSession
	}

	session := &Session{
		UserID:               claims.Subject,
		Email:                claims.Email,
		Name:                 claims.Name,
		ActiveOrganizationID: claims.ActiveOrganizationID,
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}

// Issue signs a session token. Used by local tooling and tests; production
// tokens are minted by the identity provider.
func (p *JWTProvider) Issue(s *Session, ttl time.Duration) (string, error) {
	now := p.now()
	claims := SessionClaims{
		Email:                s.Email,
		Name:                 s.Name,
		ActiveOrganizationID: s.ActiveOrganizationID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.UserID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	if p.issuer != "" {
		claims.Issuer = p.issuer
	}
	if p.audience != "" {
		claims.Audience = jwt.ClaimStrings{p.audience}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(p.secret)
}
