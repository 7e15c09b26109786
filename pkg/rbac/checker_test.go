package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// expectedGrants is written out independently of grants so the table test
// catches accidental edits to either.
var expectedGrants = map[Role]map[string]bool{
	RoleOwner: {
		"organization:update": true, "organization:delete": true,
		"member:create": true, "member:update": true, "member:delete": true,
		"invitation:create": true, "invitation:cancel": true,
		"job:create": true, "job:read": true, "job:update": true, "job:delete": true,
		"candidate:create": true, "candidate:read": true, "candidate:update": true, "candidate:delete": true,
		"application:create": true, "application:read": true, "application:update": true, "application:delete": true,
		"document:create": true, "document:read": true, "document:delete": true,
		"comment:create": true, "comment:read": true, "comment:update": true, "comment:delete": true,
		"activityLog:read": true,
	},
	RoleAdmin: {
		"organization:update": true,
		"member:create": true, "member:update": true, "member:delete": true,
		"invitation:create": true, "invitation:cancel": true,
		"job:create": true, "job:read": true, "job:update": true, "job:delete": true,
		"candidate:create": true, "candidate:read": true, "candidate:update": true, "candidate:delete": true,
		"application:create": true, "application:read": true, "application:update": true, "application:delete": true,
		"document:create": true, "document:read": true, "document:delete": true,
		"comment:create": true, "comment:read": true, "comment:update": true, "comment:delete": true,
		"activityLog:read": true,
	},
	RoleMember: {
		"job:read": true,
		"candidate:create": true, "candidate:read": true, "candidate:update": true,
		"application:create": true, "application:read": true, "application:update": true,
		"document:create": true, "document:read": true,
		"comment:create": true, "comment:read": true, "comment:delete": true,
		"activityLog:read": true,
	},
}

func TestCheckExhaustive(t *testing.T) {
	for _, role := range Roles() {
		for _, p := range Catalogue() {
			want := expectedGrants[role][p.String()]
			got := Check(role, Require(p.Resource, p.Action))
			assert.Equalf(t, want, got, "%s on %s", role, p)
		}
	}
}

func TestCatalogueSize(t *testing.T) {
	assert.Len(t, Catalogue(), 27)
	assert.Len(t, Grants(RoleOwner), 27)
	assert.Len(t, Grants(RoleAdmin), 26)
	assert.Len(t, Grants(RoleMember), 13)
}

func TestCheckDeniesUnknown(t *testing.T) {
	tests := []struct {
		name string
		role Role
		req  Request
	}{
		{"unknown role", Role("superuser"), Require(ResourceJob, ActionRead)},
		{"empty role", Role(""), Require(ResourceJob, ActionRead)},
		{"unknown resource", RoleOwner, Require(Resource("billing"), ActionRead)},
		{"unknown action", RoleOwner, Require(ResourceJob, Action("publish"))},
		{"action not in resource catalogue", RoleOwner, Require(ResourceActivityLog, ActionDelete)},
		{"cancel on job", RoleOwner, Require(ResourceJob, ActionCancel)},
		{"unknown resource without actions", RoleMember, Request{Resource("bogus"): {}}},
		{"nil action list", RoleMember, Request{ResourceOrganization: nil}},
		{"empty action list", RoleMember, Request{ResourceInvitation: {}}},
		{"empty action list for owner", RoleOwner, Request{ResourceJob: {}}},
		{"empty list beside a granted pair", RoleOwner, Request{ResourceJob: {ActionRead}, ResourceMember: {}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, Check(tt.role, tt.req))
		})
	}
}

func TestCheckMultiplePairs(t *testing.T) {
	req := Request{
		ResourceCandidate: {ActionRead, ActionUpdate},
		ResourceComment:   {ActionCreate},
	}
	assert.True(t, Check(RoleMember, req))

	req[ResourceCandidate] = append(req[ResourceCandidate], ActionDelete)
	assert.False(t, Check(RoleMember, req))
	assert.True(t, Check(RoleAdmin, req))
}

func TestCheckEmptyRequest(t *testing.T) {
	assert.True(t, Check(RoleMember, Request{}))
	assert.True(t, Check(RoleMember, nil))
	assert.False(t, Check(Role("ghost"), Request{}))
}

func TestAdminCannotDeleteOrganization(t *testing.T) {
	assert.False(t, Allowed(RoleAdmin, Permission{ResourceOrganization, ActionDelete}))
	assert.True(t, Allowed(RoleAdmin, Permission{ResourceOrganization, ActionUpdate}))
	assert.True(t, Allowed(RoleOwner, Permission{ResourceOrganization, ActionDelete}))
}

func TestMemberCannotManageInvites(t *testing.T) {
	assert.False(t, Allowed(RoleMember, Permission{ResourceInvitation, ActionCreate}))
	assert.False(t, Allowed(RoleMember, Permission{ResourceInvitation, ActionCancel}))
	assert.False(t, Allowed(RoleMember, Permission{ResourceMember, ActionDelete}))
}

func TestExplain(t *testing.T) {
	result := Explain(RoleMember, Request{
		ResourceJob:        {ActionRead, ActionUpdate},
		ResourceInvitation: {ActionCreate},
	})
	require.NotNil(t, result)
	assert.False(t, result.Allowed)
	assert.Equal(t, []Permission{
		{ResourceInvitation, ActionCreate},
		{ResourceJob, ActionUpdate},
	}, result.Denied)

	ok := Explain(RoleOwner, Require(ResourceOrganization, ActionDelete))
	assert.True(t, ok.Allowed)
	assert.Contains(t, ok.Reason, "owner")

	bare := Explain(RoleOwner, Request{ResourceJob: {ActionRead}, ResourceMember: nil})
	assert.False(t, bare.Allowed)
	assert.Equal(t, []Permission{{Resource: ResourceMember}}, bare.Denied)

	unknown := Explain(Role("x"), Request{})
	assert.False(t, unknown.Allowed)
	assert.Contains(t, unknown.Reason, "unknown role")
}

func TestParseRole(t *testing.T) {
	r, ok := ParseRole("admin")
	assert.True(t, ok)
	assert.Equal(t, RoleAdmin, r)

	_, ok = ParseRole("Admin")
	assert.False(t, ok)
}

func TestPermissionString(t *testing.T) {
	assert.Equal(t, "activityLog:read", Permission{ResourceActivityLog, ActionRead}.String())
}

func TestGrantsUnknownRole(t *testing.T) {
	assert.Nil(t, Grants(Role("nobody")))
}
