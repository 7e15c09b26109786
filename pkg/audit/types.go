package audit

import (
	"time"
)

// Action is what happened to a resource.
type Action string

const (
	ActionCreated       Action = "created"
	ActionUpdated       Action = "updated"
	ActionDeleted       Action = "deleted"
	ActionStatusChanged Action = "status_changed"
)

// ResourceType names the kind of resource an activity touched.
type ResourceType string

const (
	ResourceOrganization ResourceType = "organization"
	ResourceMember       ResourceType = "member"
	ResourceInviteLink   ResourceType = "invite_link"
	ResourceJoinRequest  ResourceType = "join_request"
	ResourceJob          ResourceType = "job"
	ResourceApplication  ResourceType = "application"
)

// Activity is one append-only entry in an organization's activity log.
type Activity struct {
	ID             string                 `json:"id"`
	OrganizationID string                 `json:"organizationId"`
	ActorID        string                 `json:"actorId"`
	Action         Action                 `json:"action"`
	ResourceType   ResourceType           `json:"resourceType"`
	ResourceID     string                 `json:"resourceId"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt      time.Time              `json:"createdAt"`
}
