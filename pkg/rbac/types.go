package rbac

// Resource represents a resource type in the system
type Resource string

const (
	ResourceOrganization Resource = "organization"
	ResourceMember       Resource = "member"
	ResourceInvitation   Resource = "invitation"
	ResourceJob          Resource = "job"
	ResourceCandidate    Resource = "candidate"
	ResourceApplication  Resource = "application"
	ResourceDocument     Resource = "document"
	ResourceComment      Resource = "comment"
	ResourceActivityLog  Resource = "activityLog"
)

// Action represents an action that can be performed on a resource
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionCancel Action = "cancel"
)

// Permission represents a specific permission (resource + action)
type Permission struct {
	Resource Resource `json:"resource"`
	Action   Action   `json:"action"`
}

// String returns a string representation of the permission
func (p Permission) String() string {
	return string(p.Resource) + ":" + string(p.Action)
}

// Role is a member's role within one organization.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Roles returns the fixed set of roles.
func Roles() []Role {
	return []Role{RoleOwner, RoleAdmin, RoleMember}
}

// Valid reports whether r is one of the fixed roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember:
		return true
	}
	return false
}

// ParseRole converts a stored role string. Unknown values are rejected.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	return r, r.Valid()
}

// Request is a set of (resource, actions) pairs that must all be granted.
type Request map[Resource][]Action

// Require builds a single-pair request.
func Require(resource Resource, actions ...Action) Request {
	return Request{resource: actions}
}

// catalogue is the closed set of resources and the actions each supports.
var catalogue = map[Resource][]Action{
	ResourceOrganization: {ActionUpdate, ActionDelete},
	ResourceMember:       {ActionCreate, ActionUpdate, ActionDelete},
	ResourceInvitation:   {ActionCreate, ActionCancel},
	ResourceJob:          {ActionCreate, ActionRead, ActionUpdate, ActionDelete},
	ResourceCandidate:    {ActionCreate, ActionRead, ActionUpdate, ActionDelete},
	ResourceApplication:  {ActionCreate, ActionRead, ActionUpdate, ActionDelete},
	ResourceDocument:     {ActionCreate, ActionRead, ActionDelete},
	ResourceComment:      {ActionCreate, ActionRead, ActionUpdate, ActionDelete},
	ResourceActivityLog:  {ActionRead},
}

// resourceOrder fixes iteration order for Catalogue and Grants.
var resourceOrder = []Resource{
	ResourceOrganization,
	ResourceMember,
	ResourceInvitation,
	ResourceJob,
	ResourceCandidate,
	ResourceApplication,
	ResourceDocument,
	ResourceComment,
	ResourceActivityLog,
}

// grants lists what each role is allowed. Anything absent is denied.
var grants = map[Role][]Permission{
	RoleOwner: allOf(catalogue),
	RoleAdmin: without(allOf(catalogue), Permission{ResourceOrganization, ActionDelete}),
	RoleMember: {
		{ResourceJob, ActionRead},
		{ResourceCandidate, ActionCreate},
		{ResourceCandidate, ActionRead},
		{ResourceCandidate, ActionUpdate},
		{ResourceApplication, ActionCreate},
		{ResourceApplication, ActionRead},
		{ResourceApplication, ActionUpdate},
		{ResourceDocument, ActionCreate},
		{ResourceDocument, ActionRead},
		{ResourceComment, ActionCreate},
		{ResourceComment, ActionRead},
		{ResourceComment, ActionDelete},
		{ResourceActivityLog, ActionRead},
	},
}

func allOf(c map[Resource][]Action) []Permission {
	var perms []Permission
	for _, res := range resourceOrder {
		for _, act := range c[res] {
			perms = append(perms, Permission{Resource: res, Action: act})
		}
	}
	return perms
}

func without(perms []Permission, drop Permission) []Permission {
	out := make([]Permission, 0, len(perms))
	for _, p := range perms {
		if p != drop {
			out = append(out, p)
		}
	}
	return out
}
