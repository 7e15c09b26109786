// Package storagetest provides throwaway databases and seed helpers for tests.
package storagetest

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/platinummonkey/hiregate/pkg/storage/postgres"
)

// Now is the fixed instant seed helpers stamp rows with.
var Now = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

// OpenSQLite returns a file-backed SQLite database with the schema applied.
// A single connection serializes writers the way row locks would on PostgreSQL.
func OpenSQLite(t *testing.T) *sql.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "hiregate.db") + "?_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	if err := postgres.EnsureSchema(context.Background(), db); err != nil {
		db.Close()
		t.Fatalf("Failed to apply schema: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// CreateUser inserts a user and returns its id.
func CreateUser(t *testing.T, db *sql.DB, email, name string) string {
	t.Helper()
	id := uuid.NewString()
	exec(t, db, `INSERT INTO users (id, email, name, created_at) VALUES ($1, $2, $3, $4)`, id, email, name, Now)
	return id
}

// CreateOrganization inserts an organization and returns its id.
func CreateOrganization(t *testing.T, db *sql.DB, name, slug string) string {
	t.Helper()
	id := uuid.NewString()
	exec(t, db, `INSERT INTO organizations (id, name, slug, created_at) VALUES ($1, $2, $3, $4)`, id, name, slug, Now)
	return id
}

// AddMember inserts a membership row and returns its id.
func AddMember(t *testing.T, db *sql.DB, userID, orgID, role string) string {
	t.Helper()
	id := uuid.NewString()
	exec(t, db, `INSERT INTO members (id, user_id, organization_id, role, created_at) VALUES ($1, $2, $3, $4, $5)`,
		id, userID, orgID, role, Now)
	return id
}

// InviteLink describes a seeded invite link.
type InviteLink struct {
	OrganizationID string
	CreatedByID    string
	Token          string
	Role           string
	MaxUses        *int
	UseCount       int
	ExpiresAt      time.Time
	RevokedAt      *time.Time
}

// CreateInviteLink inserts an invite link and returns its id.
func CreateInviteLink(t *testing.T, db *sql.DB, l InviteLink) string {
	t.Helper()
	id := uuid.NewString()
	if l.Token == "" {
		l.Token = uuid.NewString()
	}
	if l.Role == "" {
		l.Role = "member"
	}
	if l.ExpiresAt.IsZero() {
		l.ExpiresAt = Now.Add(7 * 24 * time.Hour)
	}
	exec(t, db, `INSERT INTO invite_links (id, organization_id, created_by_id, token, role, max_uses, use_count, expires_at, revoked_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		id, l.OrganizationID, l.CreatedByID, l.Token, l.Role, l.MaxUses, l.UseCount, l.ExpiresAt, l.RevokedAt, Now)
	return id
}

// CreateJoinRequest inserts a join request with the given status and returns its id.
func CreateJoinRequest(t *testing.T, db *sql.DB, userID, orgID, status string, reviewedAt *time.Time) string {
	t.Helper()
	id := uuid.NewString()
	exec(t, db, `INSERT INTO join_requests (id, user_id, organization_id, message, status, reviewed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, userID, orgID, nil, status, reviewedAt, Now)
	return id
}

// CreateJob inserts a job and returns its id.
func CreateJob(t *testing.T, db *sql.DB, orgID, title, status string) string {
	t.Helper()
	id := uuid.NewString()
	exec(t, db, `INSERT INTO jobs (id, organization_id, title, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, orgID, title, status, Now, Now)
	return id
}

// CreateApplication inserts an application and returns its id.
func CreateApplication(t *testing.T, db *sql.DB, orgID, jobID, status string) string {
	t.Helper()
	id := uuid.NewString()
	exec(t, db, `INSERT INTO applications (id, organization_id, job_id, candidate_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, orgID, jobID, uuid.NewString(), status, Now, Now)
	return id
}

// Count returns SELECT COUNT(*) for the given query.
func Count(t *testing.T, db *sql.DB, query string, args ...interface{}) int {
	t.Helper()
	var n int
	if err := db.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("Failed to count: %v", err)
	}
	return n
}

// IntPtr returns a pointer to n.
func IntPtr(n int) *int {
	return &n
}

// TimePtr returns a pointer to ts.
func TimePtr(ts time.Time) *time.Time {
	return &ts
}

func exec(t *testing.T, db *sql.DB, query string, args ...interface{}) {
	t.Helper()
	if _, err := db.Exec(query, args...); err != nil {
		t.Fatalf("Failed to seed: %v", err)
	}
}
