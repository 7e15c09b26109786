package orgs

import (
	"time"

	"github.com/platinummonkey/hiregate/pkg/apperr"
	"github.com/platinummonkey/hiregate/pkg/rbac"
)

// Organization represents a tenant
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"createdAt"`
}

// User is an identity owned by the external identity provider.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
}

// Member represents a user's membership in an organization
type Member struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	OrganizationID string    `json:"organizationId"`
	Role           rbac.Role `json:"role"`
	CreatedAt      time.Time `json:"createdAt"`
}

// MemberDetail is a Member joined with the public fields of its user.
type MemberDetail struct {
	Member
	UserName  string `json:"userName"`
	UserEmail string `json:"userEmail"`
	UserImage string `json:"userImage,omitempty"`
}

// SearchResult is the public projection returned by organization search.
type SearchResult struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// CreateOrgRequest is the input for creating an organization with its first owner.
type CreateOrgRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug,omitempty"`
}

const (
	// MaxSearchResults caps organization search to limit enumeration.
	MaxSearchResults = 5
	// MinSearchLength is the shortest search term that runs a query.
	MinSearchLength = 2
	maxNameLength   = 100
	maxSlugLength   = 60
)

var (
	ErrOrganizationNotFound = apperr.New(apperr.KindNotFound, "", "Organization not found")
	ErrUserNotFound         = apperr.New(apperr.KindNotFound, "", "User not found")
	ErrMemberNotFound       = apperr.New(apperr.KindNotFound, "", "Member not found")
	ErrSlugTaken            = apperr.New(apperr.KindConflict, "", "An organization with this slug already exists")
	ErrLastOwner            = apperr.New(apperr.KindConflict, "", "Cannot remove the last owner of an organization")
)
