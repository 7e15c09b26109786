package joinrequests

import (
	"time"

	"github.com/platinummonkey/hiregate/pkg/rbac"
)

// Status is the lifecycle state of a join request
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

const (
	// MaxMessageLength is the longest message a requester may attach, after trimming.
	MaxMessageLength = 500
	// DefaultCooldown is how long a rejected requester must wait before asking again.
	DefaultCooldown = 7 * 24 * time.Hour
	maxOrgIDLength  = 256
)

// Request is a user's request to join an organization
type Request struct {
	ID             string     `json:"id"`
	UserID         string     `json:"userId"`
	OrganizationID string     `json:"organizationId"`
	Message        string     `json:"message,omitempty"`
	Status         Status     `json:"status"`
	ReviewedByID   *string    `json:"reviewedById,omitempty"`
	ReviewedAt     *time.Time `json:"reviewedAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// Submitted is returned to the requester after a successful submit.
type Submitted struct {
	ID               string    `json:"id"`
	Status           Status    `json:"status"`
	CreatedAt        time.Time `json:"createdAt"`
	OrganizationName string    `json:"organizationName"`
}

// Pending is the reviewer-facing projection of a pending request.
type Pending struct {
	ID        string    `json:"id"`
	Message   string    `json:"message,omitempty"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UserName  string    `json:"userName"`
	UserEmail string    `json:"userEmail"`
	UserImage string    `json:"userImage,omitempty"`
}

// Approval is the result of approving a request
type Approval struct {
	MemberID string    `json:"memberId"`
	Role     rbac.Role `json:"role"`
}
