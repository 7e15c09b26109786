package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema is the DDL for every table hiregate owns. It sticks to the subset of SQL
// shared by PostgreSQL and SQLite so the same statements back the test databases.
// Timestamps are written by the application clock, never by the database.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	image TEXT,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS organizations (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	slug TEXT NOT NULL UNIQUE,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS members (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	organization_id TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
	role TEXT NOT NULL CHECK (role IN ('owner', 'admin', 'member')),
	created_at TIMESTAMP NOT NULL,
	UNIQUE (user_id, organization_id)
);

CREATE INDEX IF NOT EXISTS members_organization_idx ON members (organization_id);

CREATE TABLE IF NOT EXISTS invite_links (
	id TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
	created_by_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	token TEXT NOT NULL UNIQUE,
	role TEXT NOT NULL CHECK (role IN ('admin', 'member')),
	max_uses INTEGER,
	use_count INTEGER NOT NULL DEFAULT 0,
	expires_at TIMESTAMP NOT NULL,
	revoked_at TIMESTAMP,
	created_at TIMESTAMP NOT NULL,
	CHECK (max_uses IS NULL OR use_count <= max_uses)
);

CREATE INDEX IF NOT EXISTS invite_links_organization_idx ON invite_links (organization_id);

CREATE TABLE IF NOT EXISTS join_requests (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	organization_id TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
	message TEXT,
	status TEXT NOT NULL CHECK (status IN ('pending', 'approved', 'rejected')),
	reviewed_by_id TEXT REFERENCES users(id) ON DELETE SET NULL,
	reviewed_at TIMESTAMP,
	created_at TIMESTAMP NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS join_requests_one_pending_idx
	ON join_requests (user_id, organization_id) WHERE status = 'pending';

CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
	title TEXT NOT NULL,
	status TEXT NOT NULL CHECK (status IN ('draft', 'open', 'closed', 'archived')),
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS applications (
	id TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
	job_id TEXT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
	candidate_id TEXT NOT NULL,
	status TEXT NOT NULL CHECK (status IN ('new', 'screening', 'interview', 'offer', 'hired', 'rejected')),
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS activity_log (
	id TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	actor_id TEXT NOT NULL,
	action TEXT NOT NULL,
	resource_type TEXT NOT NULL,
	resource_id TEXT NOT NULL,
	metadata TEXT,
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS activity_log_organization_idx ON activity_log (organization_id, created_at);
`

// EnsureSchema creates any missing tables and indexes.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
