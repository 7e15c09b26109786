// Package authz is the authorization gateway every protected operation goes through.
//
// Authorize runs three steps in order and stops at the first failure:
//
//	1. resolve the session            -> Unauthenticated
//	2. require an active organization -> NoActiveOrganization
//	3. look up the member role and
//	   evaluate the permission table  -> Forbidden
//
// Authenticate runs step 1 only, for operations open to any signed-in user.
// The gateway never writes; it reads the session provider and the member role.
package authz
