package invitelinks

import (
	"time"

	"github.com/platinummonkey/hiregate/pkg/rbac"
)

const (
	// DefaultExpiresInHours is used when a link is created without an expiry.
	DefaultExpiresInHours = 168
	MaxExpiresInHours     = 720
	MaxUsesLimit          = 10000
	// MaxTokenLength bounds tokens accepted from clients.
	MaxTokenLength = 128
	tokenBytes     = 32
)

// Link is a shareable invite link
type Link struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organizationId"`
	CreatedByID    string     `json:"createdById"`
	CreatedByName  string     `json:"createdByName,omitempty"`
	Token          string     `json:"token"`
	Role           rbac.Role  `json:"role"`
	MaxUses        *int       `json:"maxUses"`
	UseCount       int        `json:"useCount"`
	ExpiresAt      time.Time  `json:"expiresAt"`
	RevokedAt      *time.Time `json:"revokedAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	// Active is set by List; expired and used-up links stay listed until revoked.
	Active bool `json:"active"`
}

// Valid reports whether the link can still admit someone at now.
func (l *Link) Valid(now time.Time) bool {
	return l.RevokedAt == nil && l.ExpiresAt.After(now) && !l.Exhausted()
}

// Exhausted reports whether the link has reached its use limit.
func (l *Link) Exhausted() bool {
	return l.MaxUses != nil && l.UseCount >= *l.MaxUses
}

// CreateParams is the input for issuing a link
type CreateParams struct {
	OrganizationID string    `json:"-"`
	ActorID        string    `json:"-"`
	Role           rbac.Role `json:"role,omitempty"`
	MaxUses        *int      `json:"maxUses,omitempty"`
	ExpiresInHours *int      `json:"expiresInHours,omitempty"`
}

// PublicInfo is what an unauthenticated visitor may learn about a link.
type PublicInfo struct {
	OrganizationName string    `json:"organizationName"`
	OrganizationSlug string    `json:"organizationSlug"`
	Role             rbac.Role `json:"role"`
	InvitedByName    string    `json:"invitedByName,omitempty"`
	ExpiresAt        time.Time `json:"expiresAt"`
}

// Acceptance is the result of redeeming a link
type Acceptance struct {
	OrganizationID   string    `json:"organizationId"`
	OrganizationName string    `json:"organizationName"`
	Role             rbac.Role `json:"role"`
	MemberID         string    `json:"memberId"`
}
