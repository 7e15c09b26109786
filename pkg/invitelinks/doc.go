// Package invitelinks issues and redeems shareable organization invite links.
//
// A link carries a role (admin or member), an optional use limit and an expiry.
// Accepting a link increments its use count and inserts the membership in one
// transaction; the increment is conditional, so concurrent accepts can never push
// use_count past max_uses.
package invitelinks
