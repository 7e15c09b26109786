package api

import (
	"net/http"

	"github.com/platinummonkey/hiregate/pkg/authz"
	"github.com/platinummonkey/hiregate/pkg/httputil"
)

type joinRequestBody struct {
	OrganizationID string `json:"organizationId"`
	Message        string `json:"message"`
}

// submitJoinRequest asks to join an organization the caller is not part of
func (s *Server) submitJoinRequest(w http.ResponseWriter, r *http.Request) {
	var req joinRequestBody
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	session := authz.SessionFromContext(r.Context())
	submitted, err := s.joins.Submit(r.Context(), session.UserID, req.OrganizationID, req.Message)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteCreated(w, submitted)
}

// listJoinRequests lists pending requests for the caller's organization
func (s *Server) listJoinRequests(w http.ResponseWriter, r *http.Request) {
	pending, err := s.joins.List(r.Context(), principal(r).OrganizationID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, pending)
}

func (s *Server) approveJoinRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	p := principal(r)
	approval, err := s.joins.Approve(r.Context(), p.OrganizationID, p.UserID(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, approval)
}

func (s *Server) rejectJoinRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	p := principal(r)
	if err := s.joins.Reject(r.Context(), p.OrganizationID, p.UserID(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, successResponse{Success: true})
}
