package orgs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/platinummonkey/hiregate/pkg/apperr"
	"github.com/platinummonkey/hiregate/pkg/rbac"
)

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// ReadPool hands out handles for reads that tolerate replica lag.
type ReadPool interface {
	Replica() *sql.DB
}

// Store is the membership store: organizations, users and members.
type Store struct {
	db    *sql.DB
	reads ReadPool
	now   func() time.Time
}

// NewStore creates a new Store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock replaces the clock used to stamp rows.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// WithReadPool sends search and member listing to pool. Authorization and
// every write stay on the primary.
func (s *Store) WithReadPool(pool ReadPool) *Store {
	s.reads = pool
	return s
}

func (s *Store) reader() *sql.DB {
	if s.reads == nil {
		return s.db
	}
	return s.reads.Replica()
}

// DB returns the underlying handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Now returns the store clock's current time in UTC.
func (s *Store) Now() time.Time {
	return s.now().UTC()
}

// RunInTx runs fn in a transaction. The transaction commits only when fn
// returns nil; errors and panics roll it back.
func (s *Store) RunInTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CreateOrganization creates an organization and makes ownerID its owner in one transaction.
func (s *Store) CreateOrganization(ctx context.Context, req CreateOrgRequest, ownerID string) (*Organization, *Member, error) {
	const op = "orgs.CreateOrganization"

	name := strings.TrimSpace(req.Name)
	if name == "" || len(name) > maxNameLength {
		return nil, nil, apperr.New(apperr.KindInvalidInput, op, fmt.Sprintf("Name must be between 1 and %d characters", maxNameLength))
	}

	slug := generateSlug(req.Slug)
	if slug == "" {
		slug = generateSlug(name)
	}
	if slug == "" {
		return nil, nil, apperr.New(apperr.KindInvalidInput, op, "Slug must contain at least one letter or digit")
	}

	org := &Organization{
		ID:        uuid.NewString(),
		Name:      name,
		Slug:      slug,
		CreatedAt: s.Now(),
	}

	var owner *Member
	err := s.RunInTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO organizations (id, name, slug, created_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (slug) DO NOTHING
		`, org.ID, org.Name, org.Slug, org.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create organization: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return ErrSlugTaken
		}

		member, inserted, err := s.InsertMember(ctx, tx, ownerID, org.ID, rbac.RoleOwner)
		if err != nil {
			return err
		}
		if !inserted {
			return apperr.New(apperr.KindConflict, op, "Owner membership already exists")
		}
		owner = member
		return nil
	})
	if err != nil {
		return nil, nil, classify(op, err)
	}

	return org, owner, nil
}

// GetOrganization retrieves an organization by ID
func (s *Store) GetOrganization(ctx context.Context, id string) (*Organization, error) {
	return s.getOrganization(ctx, s.db, `WHERE id = $1`, id)
}

// GetOrganizationBySlug retrieves an organization by slug
func (s *Store) GetOrganizationBySlug(ctx context.Context, slug string) (*Organization, error) {
	return s.getOrganization(ctx, s.db, `WHERE slug = $1`, slug)
}

func (s *Store) getOrganization(ctx context.Context, q Querier, where string, arg string) (*Organization, error) {
	query := `SELECT id, name, slug, created_at FROM organizations ` + where

	org := &Organization{}
	err := q.QueryRowContext(ctx, query, arg).Scan(&org.ID, &org.Name, &org.Slug, &org.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrganizationNotFound
	}
	if err != nil {
		return nil, apperr.FromStore("orgs.GetOrganization", fmt.Errorf("failed to get organization: %w", err))
	}
	return org, nil
}

// ResolveSlug returns the id of the organization with the given slug.
// A missing organization is reported as found=false, not an error.
func (s *Store) ResolveSlug(ctx context.Context, slug string) (string, bool, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM organizations WHERE slug = $1`, slug).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve slug: %w", err)
	}
	return id, true, nil
}

// GetUser retrieves a user by ID
func (s *Store) GetUser(ctx context.Context, id string) (*User, error) {
	user := &User{}
	var image sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT id, email, name, image FROM users WHERE id = $1`, id).
		Scan(&user.ID, &user.Email, &user.Name, &image)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, apperr.FromStore("orgs.GetUser", fmt.Errorf("failed to get user: %w", err))
	}
	user.Image = image.String
	return user, nil
}

// GetMemberRole returns the caller's role in an organization.
func (s *Store) GetMemberRole(ctx context.Context, orgID, userID string) (rbac.Role, error) {
	var role string
	err := s.db.QueryRowContext(ctx, `
		SELECT role FROM members WHERE organization_id = $1 AND user_id = $2
	`, orgID, userID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrMemberNotFound
	}
	if err != nil {
		return "", apperr.FromStore("orgs.GetMemberRole", fmt.Errorf("failed to get member role: %w", err))
	}

	r, ok := rbac.ParseRole(role)
	if !ok {
		return "", apperr.Wrap(apperr.KindInternal, "orgs.GetMemberRole", fmt.Errorf("unknown stored role %q", role))
	}
	return r, nil
}

// IsMember reports whether userID belongs to orgID.
func (s *Store) IsMember(ctx context.Context, q Querier, orgID, userID string) (bool, error) {
	if q == nil {
		q = s.db
	}
	var id string
	err := q.QueryRowContext(ctx, `
		SELECT id FROM members WHERE organization_id = $1 AND user_id = $2
	`, orgID, userID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return true, nil
}

// InsertMember adds a membership unless one already exists for the pair.
// inserted is false when the (user, organization) pair was already present.
func (s *Store) InsertMember(ctx context.Context, q Querier, userID, orgID string, role rbac.Role) (*Member, bool, error) {
	if !role.Valid() {
		return nil, false, apperr.New(apperr.KindInvalidInput, "orgs.InsertMember", fmt.Sprintf("invalid role %q", role))
	}

	member := &Member{
		ID:             uuid.NewString(),
		UserID:         userID,
		OrganizationID: orgID,
		Role:           role,
		CreatedAt:      s.Now(),
	}

	var id string
	err := q.QueryRowContext(ctx, `
		INSERT INTO members (id, user_id, organization_id, role, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, organization_id) DO NOTHING
		RETURNING id
	`, member.ID, member.UserID, member.OrganizationID, string(member.Role), member.CreatedAt).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to add member: %w", err)
	}
	return member, true, nil
}

// ListMembers returns every member of an organization with user details.
func (s *Store) ListMembers(ctx context.Context, orgID string) ([]*MemberDetail, error) {
	rows, err := s.reader().QueryContext(ctx, `
		SELECT m.id, m.user_id, m.organization_id, m.role, m.created_at, u.name, u.email, u.image
		FROM members m
		JOIN users u ON u.id = m.user_id
		WHERE m.organization_id = $1
		ORDER BY m.created_at ASC
	`, orgID)
	if err != nil {
		return nil, apperr.FromStore("orgs.ListMembers", fmt.Errorf("failed to list members: %w", err))
	}
	defer rows.Close()

	members := []*MemberDetail{}
	for rows.Next() {
		m := &MemberDetail{}
		var role string
		var image sql.NullString
		if err := rows.Scan(&m.ID, &m.UserID, &m.OrganizationID, &role, &m.CreatedAt, &m.UserName, &m.UserEmail, &image); err != nil {
			return nil, apperr.FromStore("orgs.ListMembers", fmt.Errorf("failed to scan member: %w", err))
		}
		m.Role = rbac.Role(role)
		m.UserImage = image.String
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.FromStore("orgs.ListMembers", err)
	}

	return members, nil
}

// RemoveMember removes a user from an organization. The last owner cannot be removed.
func (s *Store) RemoveMember(ctx context.Context, orgID, userID string) (*Member, error) {
	const op = "orgs.RemoveMember"

	var removed *Member
	err := s.RunInTx(ctx, func(tx *sql.Tx) error {
		m := &Member{}
		var role string
		err := tx.QueryRowContext(ctx, `
			SELECT id, user_id, organization_id, role, created_at
			FROM members WHERE organization_id = $1 AND user_id = $2
		`, orgID, userID).Scan(&m.ID, &m.UserID, &m.OrganizationID, &role, &m.CreatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrMemberNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get member: %w", err)
		}
		m.Role = rbac.Role(role)

		if m.Role == rbac.RoleOwner {
			var owners int
			if err := tx.QueryRowContext(ctx, `
				SELECT COUNT(*) FROM members WHERE organization_id = $1 AND role = $2
			`, orgID, string(rbac.RoleOwner)).Scan(&owners); err != nil {
				return fmt.Errorf("failed to count owners: %w", err)
			}
			if owners <= 1 {
				return ErrLastOwner
			}
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM members WHERE id = $1`, m.ID)
		if err != nil {
			return fmt.Errorf("failed to remove member: %w", err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return ErrMemberNotFound
		}
		removed = m
		return nil
	})
	if err != nil {
		return nil, classify(op, err)
	}
	return removed, nil
}

// CountPendingJoinRequests and CountActiveInviteLinks feed the stats gauges.
func (s *Store) CountPendingJoinRequests(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM join_requests WHERE status = 'pending'`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count pending join requests: %w", err)
	}
	return n, nil
}

func (s *Store) CountActiveInviteLinks(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM invite_links
		WHERE revoked_at IS NULL AND expires_at > $1 AND (max_uses IS NULL OR use_count < max_uses)
	`, s.Now()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count active invite links: %w", err)
	}
	return n, nil
}

// classify turns store errors into typed errors for callers.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperr.As(err); ok {
		return err
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Name() {
		case "unique_violation":
			return apperr.Wrap(apperr.KindConflict, op, err)
		case "foreign_key_violation":
			return &apperr.Error{Kind: apperr.KindNotFound, Op: op, Message: "Referenced record not found", Err: err}
		}
	}
	return apperr.FromStore(op, err)
}

// generateSlug lowercases name, turns whitespace and underscores into single
// dashes and drops everything else that is not a letter or digit.
func generateSlug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			dash = false
		case r == ' ' || r == '-' || r == '_' || r == '\t':
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	slug := strings.TrimRight(b.String(), "-")
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}
	return slug
}
