package api

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/hiregate/pkg/audit"
	"github.com/platinummonkey/hiregate/pkg/authz"
	"github.com/platinummonkey/hiregate/pkg/httputil"
	"github.com/platinummonkey/hiregate/pkg/orgs"
)

const defaultActivityLimit = 50

// searchOrganizations finds organizations a signed-in user could ask to join
func (s *Server) searchOrganizations(w http.ResponseWriter, r *http.Request) {
	results, err := s.store.SearchOrganizations(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, results)
}

// createOrganization creates an organization owned by the caller
func (s *Server) createOrganization(w http.ResponseWriter, r *http.Request) {
	var req orgs.CreateOrgRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	session := authz.SessionFromContext(r.Context())
	org, owner, err := s.store.CreateOrganization(r.Context(), req, session.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.recorder.Record(r.Context(), &audit.Activity{
		OrganizationID: org.ID,
		ActorID:        session.UserID,
		Action:         audit.ActionCreated,
		ResourceType:   audit.ResourceOrganization,
		ResourceID:     org.ID,
		Metadata:       map[string]interface{}{"name": org.Name, "slug": org.Slug},
	})
	s.logger.WithFields(logrus.Fields{
		"org_id":  org.ID,
		"user_id": session.UserID,
		"slug":    org.Slug,
	}).Info("Organization created")

	httputil.WriteCreated(w, struct {
		*orgs.Organization
		Member *orgs.Member `json:"member"`
	}{org, owner})
}

func (s *Server) listMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.store.ListMembers(r.Context(), principal(r).OrganizationID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, members)
}

// removeMember removes a user from the caller's organization
func (s *Server) removeMember(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathStringOrError(w, r, "userId")
	if !ok {
		return
	}

	p := principal(r)
	removed, err := s.store.RemoveMember(r.Context(), p.OrganizationID, userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.recorder.Record(r.Context(), &audit.Activity{
		OrganizationID: p.OrganizationID,
		ActorID:        p.UserID(),
		Action:         audit.ActionDeleted,
		ResourceType:   audit.ResourceMember,
		ResourceID:     removed.ID,
		Metadata:       map[string]interface{}{"removedUser": removed.UserID, "role": string(removed.Role)},
	})
	httputil.WriteSuccess(w, successResponse{Success: true})
}

type activityPage struct {
	Data  []*audit.Activity `json:"data"`
	Limit int               `json:"limit"`
}

// listActivity returns the most recent activity of the caller's organization
func (s *Server) listActivity(w http.ResponseWriter, r *http.Request) {
	limit, err := httputil.ParseQueryInt(r, "limit", defaultActivityLimit)
	if err != nil || limit < 1 || limit > 200 {
		httputil.WriteBadRequest(w, "limit must be between 1 and 200")
		return
	}

	if s.activity == nil {
		httputil.WriteSuccess(w, activityPage{Data: []*audit.Activity{}, Limit: limit})
		return
	}

	activities, err := s.activity.List(r.Context(), principal(r).OrganizationID, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, activityPage{Data: activities, Limit: limit})
}
