// Package rbac provides the static role-based permission table for hiregate organizations.
//
// # Overview
//
// Every organization member holds exactly one of three fixed roles: owner, admin or
// member. A permission is a (resource, action) pair drawn from a closed catalogue:
//
//	organization  update, delete
//	member        create, update, delete
//	invitation    create, cancel
//	job           create, read, update, delete
//	candidate     create, read, update, delete
//	application   create, read, update, delete
//	document      create, read, delete
//	comment       create, read, update, delete
//	activityLog   read
//
// # Deny by default
//
// The table is built once at package initialisation with an explicit decision for
// every (role, catalogue pair). Initialisation panics if a grant names a pair that is
// not in the catalogue, so a typo can never silently widen or narrow access. Pairs
// outside the catalogue, and roles outside the fixed three, are always denied.
//
// # Usage
//
//	if !rbac.Check(role, rbac.Require(rbac.ResourceInvitation, rbac.ActionCreate)) {
//	    return apperr.New(apperr.KindForbidden, op, "Forbidden")
//	}
//
// Check has no I/O and is safe for concurrent use.
package rbac
