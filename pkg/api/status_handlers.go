package api

import (
	"net/http"
	"strings"

	"github.com/platinummonkey/hiregate/pkg/httputil"
	"github.com/platinummonkey/hiregate/pkg/transitions"
)

type statusUpdateRequest struct {
	Status string `json:"status"`
}

// parseStatus reads the target status, writing a 400 when it is missing.
func parseStatus(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req statusUpdateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return "", false
	}
	status := strings.TrimSpace(req.Status)
	if status == "" {
		httputil.WriteBadRequest(w, "status is required")
		return "", false
	}
	return status, true
}

func (s *Server) updateJobStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	status, ok := parseStatus(w, r)
	if !ok {
		return
	}

	p := principal(r)
	job, err := s.pipeline.UpdateJobStatus(r.Context(), p.OrganizationID, p.UserID(), id, status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, job)
}

func (s *Server) updateApplicationStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	status, ok := parseStatus(w, r)
	if !ok {
		return
	}

	p := principal(r)
	app, err := s.pipeline.UpdateApplicationStatus(r.Context(), p.OrganizationID, p.UserID(), id, status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, app)
}

// getStatusTransitions serves the transition tables so clients can render
// only the moves the server will accept.
func (s *Server) getStatusTransitions(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, transitions.Snapshot())
}
