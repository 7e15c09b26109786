package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/hiregate/pkg/apperr"
	"github.com/platinummonkey/hiregate/pkg/audit"
	"github.com/platinummonkey/hiregate/pkg/authz"
	"github.com/platinummonkey/hiregate/pkg/httputil"
	"github.com/platinummonkey/hiregate/pkg/invitelinks"
	"github.com/platinummonkey/hiregate/pkg/joinrequests"
	"github.com/platinummonkey/hiregate/pkg/middleware"
	"github.com/platinummonkey/hiregate/pkg/observability"
	"github.com/platinummonkey/hiregate/pkg/orgs"
	"github.com/platinummonkey/hiregate/pkg/pipeline"
	"github.com/platinummonkey/hiregate/pkg/rbac"
)

// ActivityLister reads an organization's activity log.
type ActivityLister interface {
	List(ctx context.Context, orgID string, limit int) ([]*audit.Activity, error)
}

// Deps are the collaborators the server routes to. Metrics, Registry,
// Health, Activity and Admission are optional.
type Deps struct {
	Gateway      *authz.Gateway
	Store        *orgs.Store
	InviteLinks  *invitelinks.Service
	JoinRequests *joinrequests.Service
	Pipeline     *pipeline.Service
	Activity     ActivityLister
	Recorder     audit.Recorder
	Logger       logrus.FieldLogger

	// PublicBaseURL, when set, is used to build shareable invite URLs.
	PublicBaseURL  string
	AllowedOrigins []string

	Metrics  *observability.Metrics
	Registry *prometheus.Registry
	Health   *observability.HealthChecker

	// Admission runs after request logging and before routing, in order.
	// Typically the rate limiter and the demo guard.
	Admission []func(http.Handler) http.Handler
}

// Server represents our API server
type Server struct {
	gateway       *authz.Gateway
	store         *orgs.Store
	invites       *invitelinks.Service
	joins         *joinrequests.Service
	pipeline      *pipeline.Service
	activity      ActivityLister
	recorder      audit.Recorder
	logger        logrus.FieldLogger
	publicBaseURL string
	metrics       *observability.Metrics
	registry      *prometheus.Registry
	health        *observability.HealthChecker

	router  *mux.Router
	handler http.Handler
}

// NewServer creates a new API server
func NewServer(d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	recorder := d.Recorder
	if recorder == nil {
		recorder = audit.FromContext(context.Background())
	}

	s := &Server{
		gateway:       d.Gateway,
		store:         d.Store,
		invites:       d.InviteLinks,
		joins:         d.JoinRequests,
		pipeline:      d.Pipeline,
		activity:      d.Activity,
		recorder:      recorder,
		logger:        logger,
		publicBaseURL: d.PublicBaseURL,
		metrics:       d.Metrics,
		registry:      d.Registry,
		health:        d.Health,
		router:        mux.NewRouter(),
	}
	s.setupRoutes()

	chain := []func(http.Handler) http.Handler{
		httputil.RecoveryMiddleware(logger),
		middleware.RequestID,
		httputil.LoggingMiddleware(logger),
		httputil.CORSMiddleware(d.AllowedOrigins),
		httputil.MaxBytesMiddleware(httputil.MaxBodyBytes),
	}
	chain = append(chain, d.Admission...)
	s.handler = httputil.Chain(chain...)(s.router)

	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	if s.metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.metrics))
	}
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, apperr.New(apperr.KindNotFound, "", "Not found"))
	})

	api := s.router.PathPrefix("/api").Subrouter()

	// Invite links
	api.Handle("/invite-links", s.withPermission(rbac.Require(rbac.ResourceInvitation, rbac.ActionCreate), s.createInviteLink)).Methods(http.MethodPost)
	api.Handle("/invite-links", s.withPermission(rbac.Require(rbac.ResourceInvitation, rbac.ActionCreate), s.listInviteLinks)).Methods(http.MethodGet)
	api.Handle("/invite-links/accept", s.withSession(s.acceptInviteLink)).Methods(http.MethodPost)
	api.HandleFunc("/invite-links/info/{token}", s.getInviteLinkInfo).Methods(http.MethodGet)
	api.Handle("/invite-links/{id}", s.withPermission(rbac.Require(rbac.ResourceInvitation, rbac.ActionCancel), s.revokeInviteLink)).Methods(http.MethodDelete)

	// Join requests
	api.Handle("/join-requests", s.withSession(s.submitJoinRequest)).Methods(http.MethodPost)
	api.Handle("/join-requests", s.withPermission(rbac.Require(rbac.ResourceInvitation, rbac.ActionCreate), s.listJoinRequests)).Methods(http.MethodGet)
	api.Handle("/join-requests/{id}/approve", s.withPermission(rbac.Require(rbac.ResourceInvitation, rbac.ActionCreate), s.approveJoinRequest)).Methods(http.MethodPost)
	api.Handle("/join-requests/{id}/reject", s.withPermission(rbac.Require(rbac.ResourceInvitation, rbac.ActionCancel), s.rejectJoinRequest)).Methods(http.MethodPost)

	// Status updates
	api.Handle("/jobs/{id}/status", s.withPermission(rbac.Require(rbac.ResourceJob, rbac.ActionUpdate), s.updateJobStatus)).Methods(http.MethodPatch)
	api.Handle("/applications/{id}/status", s.withPermission(rbac.Require(rbac.ResourceApplication, rbac.ActionUpdate), s.updateApplicationStatus)).Methods(http.MethodPatch)
	api.HandleFunc("/status-transitions", s.getStatusTransitions).Methods(http.MethodGet)

	// Organizations and members
	api.Handle("/org-search", s.withSession(s.searchOrganizations)).Methods(http.MethodGet)
	api.Handle("/organizations", s.withSession(s.createOrganization)).Methods(http.MethodPost)
	api.Handle("/members", s.withPermission(rbac.Request{}, s.listMembers)).Methods(http.MethodGet)
	api.Handle("/members/{userId}", s.withPermission(rbac.Require(rbac.ResourceMember, rbac.ActionDelete), s.removeMember)).Methods(http.MethodDelete)
	api.Handle("/activity-log", s.withPermission(rbac.Require(rbac.ResourceActivityLog, rbac.ActionRead), s.listActivity)).Methods(http.MethodGet)

	// Operational endpoints
	if s.registry != nil {
		s.router.Handle("/metrics", observability.MetricsHandler(s.registry)).Methods(http.MethodGet)
	}
	if s.health != nil {
		s.router.HandleFunc("/healthz", s.health.Readiness).Methods(http.MethodGet)
		s.router.HandleFunc("/livez", s.health.Liveness).Methods(http.MethodGet)
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Router returns the underlying router, without the outer middleware chain.
func (s *Server) Router() *mux.Router {
	return s.router
}

func (s *Server) withSession(h http.HandlerFunc) http.Handler {
	return middleware.RequireSession(s.gateway, s.logger)(h)
}

func (s *Server) withPermission(req rbac.Request, h http.HandlerFunc) http.Handler {
	return middleware.RequirePermission(s.gateway, req, s.logger)(h)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	httputil.WriteAppError(w, r, observability.WithTraceContext(r.Context(), s.logger), err)
}

// principal returns the authorized caller. Routes wrapped with withPermission
// always have one.
func principal(r *http.Request) *authz.Principal {
	return authz.PrincipalFromContext(r.Context())
}

type successResponse struct {
	Success bool `json:"success"`
}
