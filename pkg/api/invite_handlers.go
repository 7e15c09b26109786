package api

import (
	"net/http"
	"strings"

	"github.com/platinummonkey/hiregate/pkg/authz"
	"github.com/platinummonkey/hiregate/pkg/httputil"
	"github.com/platinummonkey/hiregate/pkg/invitelinks"
)

// inviteLinkResponse is a link plus its shareable URL when one can be built.
type inviteLinkResponse struct {
	*invitelinks.Link
	URL string `json:"url,omitempty"`
}

type acceptInviteRequest struct {
	Token string `json:"token"`
}

func (s *Server) inviteURL(token string) string {
	if s.publicBaseURL == "" {
		return ""
	}
	return strings.TrimRight(s.publicBaseURL, "/") + "/join/" + token
}

// createInviteLink issues a new link for the caller's organization
func (s *Server) createInviteLink(w http.ResponseWriter, r *http.Request) {
	p := principal(r)

	var params invitelinks.CreateParams
	if !httputil.ParseJSONOrError(w, r, &params) {
		return
	}
	params.OrganizationID = p.OrganizationID
	params.ActorID = p.UserID()

	link, err := s.invites.Create(r.Context(), params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	httputil.WriteCreated(w, inviteLinkResponse{Link: link, URL: s.inviteURL(link.Token)})
}

// listInviteLinks lists the organization's non-revoked links
func (s *Server) listInviteLinks(w http.ResponseWriter, r *http.Request) {
	links, err := s.invites.List(r.Context(), principal(r).OrganizationID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]inviteLinkResponse, 0, len(links))
	for _, l := range links {
		out = append(out, inviteLinkResponse{Link: l, URL: s.inviteURL(l.Token)})
	}
	httputil.WriteSuccess(w, out)
}

// revokeInviteLink revokes one of the organization's links
func (s *Server) revokeInviteLink(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	p := principal(r)
	if err := s.invites.Revoke(r.Context(), p.OrganizationID, p.UserID(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, successResponse{Success: true})
}

// getInviteLinkInfo returns what an anonymous visitor may see about a link
func (s *Server) getInviteLinkInfo(w http.ResponseWriter, r *http.Request) {
	token, ok := httputil.ParsePathStringOrError(w, r, "token")
	if !ok {
		return
	}

	info, err := s.invites.GetPublicInfo(r.Context(), token)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, info)
}

// acceptInviteLink redeems a link for the signed-in user
func (s *Server) acceptInviteLink(w http.ResponseWriter, r *http.Request) {
	var req acceptInviteRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	session := authz.SessionFromContext(r.Context())
	acceptance, err := s.invites.Accept(r.Context(), strings.TrimSpace(req.Token), session.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, acceptance)
}
