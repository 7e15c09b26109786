// Package orgs is the membership store for hiregate tenants.
//
// # Overview
//
// It owns organizations, the read side of users (identities live with the external
// identity provider) and members: the (user, organization, role) rows every
// authorization decision starts from. A user holds at most one membership per
// organization, enforced by a unique constraint and relied on by InsertMember,
// which inserts with ON CONFLICT DO NOTHING and reports whether a row was written.
//
// # Transactions
//
// RunInTx wraps a function in a transaction that commits only on a nil return.
// Services that must change several rows atomically (accepting an invite link,
// approving a join request) pass the *sql.Tx to the Querier-taking methods:
//
//	err := store.RunInTx(ctx, func(tx *sql.Tx) error {
//		member, inserted, err := store.InsertMember(ctx, tx, userID, orgID, rbac.RoleMember)
//		...
//	})
//
// # Timestamps
//
// Rows are stamped with the store clock (WithClock) rather than the database's
// NOW(), so validity checks and writes agree on the current time.
//
// # Related Packages
//
//   - pkg/rbac: roles and the permission table
//   - pkg/invitelinks, pkg/joinrequests: the two onboarding paths
package orgs
