package authz

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/hiregate/pkg/apperr"
	"github.com/platinummonkey/hiregate/pkg/auth"
	"github.com/platinummonkey/hiregate/pkg/contextkeys"
	"github.com/platinummonkey/hiregate/pkg/rbac"
)

// Decision outcomes, used as the metric label.
const (
	OutcomeAllowed              = "allowed"
	OutcomeUnauthenticated      = "unauthenticated"
	OutcomeNoActiveOrganization = "no_active_organization"
	OutcomeForbidden            = "forbidden"
	OutcomeError                = "error"
)

const (
	msgUnauthorized   = "Unauthorized"
	msgNoActiveOrg    = "No active organization"
	msgForbidden      = "Forbidden"
	msgNotMember      = "You are not a member of this organization"
	msgIdPUnreachable = "Identity provider unavailable"
)

// RoleResolver returns a user's role in an organization. A user who is not a
// member is reported with an error of kind NotFound.
type RoleResolver interface {
	GetMemberRole(ctx context.Context, orgID, userID string) (rbac.Role, error)
}

// Principal is an authenticated caller acting in an organization.
type Principal struct {
	Session        *auth.Session `json:"session"`
	OrganizationID string        `json:"organizationId"`
	Role           rbac.Role     `json:"role"`
}

// UserID returns the caller's user id.
func (p *Principal) UserID() string {
	if p == nil || p.Session == nil {
		return ""
	}
	return p.Session.UserID
}

// Gateway is the single entry point for authentication and authorization.
type Gateway struct {
	sessions  auth.SessionProvider
	roles     RoleResolver
	logger    logrus.FieldLogger
	decisions *prometheus.CounterVec
	tracer    trace.Tracer
}

// Option configures a Gateway
type Option func(*Gateway)

// WithDecisionCounter counts every decision by outcome label.
func WithDecisionCounter(c *prometheus.CounterVec) Option {
	return func(g *Gateway) { g.decisions = c }
}

// WithTracer overrides the tracer used for decision spans.
func WithTracer(t trace.Tracer) Option {
	return func(g *Gateway) { g.tracer = t }
}

// NewGateway creates a new Gateway
func NewGateway(sessions auth.SessionProvider, roles RoleResolver, logger logrus.FieldLogger, opts ...Option) *Gateway {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	g := &Gateway{
		sessions: sessions,
		roles:    roles,
		logger:   logger,
		tracer:   otel.Tracer("github.com/platinummonkey/hiregate/pkg/authz"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Authenticate resolves the session behind token. It does not require an
// active organization.
func (g *Gateway) Authenticate(ctx context.Context, token string) (*auth.Session, error) {
	ctx, span := g.tracer.Start(ctx, "authz.Authenticate")
	defer span.End()

	session, err := g.authenticate(ctx, token)
	if err != nil {
		g.finish(span, outcomeOf(err), err)
		return nil, err
	}
	span.SetAttributes(attribute.String("user.id", session.UserID))
	g.finish(span, OutcomeAllowed, nil)
	return session, nil
}

// Authorize authenticates token, requires an active organization and checks
// the caller's role there against req. An empty req requires membership only.
func (g *Gateway) Authorize(ctx context.Context, token string, req rbac.Request) (*Principal, error) {
	const op = "authz.Authorize"

	ctx, span := g.tracer.Start(ctx, op)
	defer span.End()

	session, err := g.authenticate(ctx, token)
	if err != nil {
		g.finish(span, outcomeOf(err), err)
		return nil, err
	}
	span.SetAttributes(attribute.String("user.id", session.UserID))

	if !session.HasActiveOrganization() {
		err := apperr.New(apperr.KindNoActiveOrganization, op, msgNoActiveOrg)
		g.finish(span, OutcomeNoActiveOrganization, err)
		return nil, err
	}
	orgID := session.ActiveOrganizationID
	span.SetAttributes(attribute.String("organization.id", orgID))

	role, err := g.roles.GetMemberRole(ctx, orgID, session.UserID)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			err := apperr.New(apperr.KindForbidden, op, msgNotMember)
			g.finish(span, OutcomeForbidden, err)
			return nil, err
		}
		err = apperr.FromStore(op, err)
		g.logger.WithError(err).WithFields(logrus.Fields{
			"op":      op,
			"org_id":  orgID,
			"user_id": session.UserID,
		}).Error("Failed to resolve member role")
		g.finish(span, OutcomeError, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("member.role", string(role)))

	if !rbac.Check(role, req) {
		decision := rbac.Explain(role, req)
		denied := make([]string, len(decision.Denied))
		for i, p := range decision.Denied {
			denied[i] = p.String()
		}
		span.SetAttributes(attribute.StringSlice("authz.denied", denied))
		g.logger.WithFields(logrus.Fields{
			"op":      op,
			"org_id":  orgID,
			"user_id": session.UserID,
			"role":    string(role),
			"denied":  denied,
		}).Debug(decision.Reason)

		err := apperr.New(apperr.KindForbidden, op, msgForbidden)
		g.finish(span, OutcomeForbidden, err)
		return nil, err
	}

	g.finish(span, OutcomeAllowed, nil)
	return &Principal{Session: session, OrganizationID: orgID, Role: role}, nil
}

func (g *Gateway) authenticate(ctx context.Context, token string) (*auth.Session, error) {
	const op = "authz.Authenticate"

	if session, ok := auth.ResolvedSession(ctx, token); ok && session.UserID != "" {
		return session, nil
	}

	session, err := g.sessions.GetSession(ctx, token)
	switch {
	case err == nil && session != nil && session.UserID != "":
		return session, nil
	case err == nil, errors.Is(err, auth.ErrNoSession), errors.Is(err, auth.ErrInvalidSession):
		return nil, apperr.New(apperr.KindUnauthenticated, op, msgUnauthorized)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, apperr.Wrap(apperr.KindUnavailable, op, err)
	default:
		g.logger.WithError(err).WithField("op", op).Error("Identity provider failure")
		return nil, &apperr.Error{Kind: apperr.KindUnavailable, Op: op, Message: msgIdPUnreachable, Err: err}
	}
}

func (g *Gateway) finish(span trace.Span, outcome string, err error) {
	span.SetAttributes(attribute.String("authz.outcome", outcome))
	if err != nil && outcome == OutcomeError {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if g.decisions != nil {
		g.decisions.WithLabelValues(outcome).Inc()
	}
}

func outcomeOf(err error) string {
	switch apperr.KindOf(err) {
	case apperr.KindUnauthenticated:
		return OutcomeUnauthenticated
	case apperr.KindNoActiveOrganization:
		return OutcomeNoActiveOrganization
	case apperr.KindForbidden:
		return OutcomeForbidden
	default:
		return OutcomeError
	}
}

// PrincipalFromContext returns the principal stored by the permission middleware.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(contextkeys.PrincipalKey).(*Principal)
	return p
}

// SessionFromContext returns the session stored by the session middleware.
func SessionFromContext(ctx context.Context) *auth.Session {
	if s, ok := ctx.Value(contextkeys.SessionKey).(*auth.Session); ok {
		return s
	}
	if p := PrincipalFromContext(ctx); p != nil {
		return p.Session
	}
	return nil
}
