// Package auth resolves session tokens to identities.
//
// Identity lives with an external provider; this package only verifies what the
// provider issued. Two SessionProvider implementations are included:
//
//	JWTProvider   HS256 tokens signed with a secret shared with the provider
//	OIDCProvider  ID tokens verified against an OpenID Connect issuer's keys
//
// The OIDC issuer is discovered lazily on first use, so the service starts even
// when the provider is briefly unreachable.
//
// A provider returns ErrNoSession for an empty token and wraps ErrInvalidSession
// for tokens it rejects. Any other error is a provider failure and must not be
// reported to the client as a bad token.
package auth
