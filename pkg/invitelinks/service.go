package invitelinks

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/hiregate/pkg/apperr"
	"github.com/platinummonkey/hiregate/pkg/audit"
	"github.com/platinummonkey/hiregate/pkg/orgs"
	"github.com/platinummonkey/hiregate/pkg/rbac"
)

const (
	msgInvalidLink   = "Invalid or expired invite link"
	msgExhausted     = "This invite link has reached its maximum number of uses"
	msgNoLongerValid = "This invite link is no longer valid"
	msgAlreadyMember = "You are already a member of this organization"
)

// Service issues, inspects, redeems and revokes invite links
type Service struct {
	store    *orgs.Store
	recorder audit.Recorder
	logger   logrus.FieldLogger
}

// NewService creates a new invite link service
func NewService(store *orgs.Store, recorder audit.Recorder, logger logrus.FieldLogger) *Service {
	if recorder == nil {
		recorder = audit.Discard
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{store: store, recorder: recorder, logger: logger}
}

// Create issues a new link for the organization. The caller must already hold
// invitation:create.
func (s *Service) Create(ctx context.Context, p CreateParams) (*Link, error) {
	const op = "invitelinks.Create"

	if p.Role == "" {
		p.Role = rbac.RoleMember
	}
	if p.Role != rbac.RoleAdmin && p.Role != rbac.RoleMember {
		return nil, apperr.New(apperr.KindInvalidInput, op, "Role must be admin or member")
	}
	if p.MaxUses != nil && (*p.MaxUses < 1 || *p.MaxUses > MaxUsesLimit) {
		return nil, apperr.New(apperr.KindInvalidInput, op, fmt.Sprintf("maxUses must be between 1 and %d", MaxUsesLimit))
	}
	hours := DefaultExpiresInHours
	if p.ExpiresInHours != nil {
		hours = *p.ExpiresInHours
	}
	if hours < 1 || hours > MaxExpiresInHours {
		return nil, apperr.New(apperr.KindInvalidInput, op, fmt.Sprintf("expiresInHours must be between 1 and %d", MaxExpiresInHours))
	}

	token, err := generateToken()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, op, fmt.Errorf("failed to generate token: %w", err))
	}

	now := s.store.Now()
	link := &Link{
		ID:             uuid.NewString(),
		OrganizationID: p.OrganizationID,
		CreatedByID:    p.ActorID,
		Token:          token,
		Role:           p.Role,
		MaxUses:        p.MaxUses,
		ExpiresAt:      now.Add(time.Duration(hours) * time.Hour),
		CreatedAt:      now,
	}

	_, err = s.store.DB().ExecContext(ctx, `
		INSERT INTO invite_links (id, organization_id, created_by_id, token, role, max_uses, use_count, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, link.ID, link.OrganizationID, link.CreatedByID, link.Token, string(link.Role), link.MaxUses, 0, link.ExpiresAt, link.CreatedAt)
	if err != nil {
		return nil, apperr.FromStore(op, fmt.Errorf("failed to create invite link: %w", err))
	}

	s.recorder.Record(ctx, &audit.Activity{
		OrganizationID: link.OrganizationID,
		ActorID:        link.CreatedByID,
		Action:         audit.ActionCreated,
		ResourceType:   audit.ResourceInviteLink,
		ResourceID:     link.ID,
		Metadata:       map[string]interface{}{"role": link.Role, "maxUses": link.MaxUses},
	})

	return link, nil
}

// GetPublicInfo describes a link to an unauthenticated visitor. Unknown, revoked,
// expired and exhausted links are indistinguishable.
func (s *Service) GetPublicInfo(ctx context.Context, token string) (*PublicInfo, error) {
	const op = "invitelinks.GetPublicInfo"

	if err := validateToken(op, token); err != nil {
		return nil, err
	}

	var (
		info     PublicInfo
		role     string
		inviter  sql.NullString
		maxUses  sql.NullInt64
		useCount int
	)
	err := s.store.DB().QueryRowContext(ctx, `
		SELECT o.name, o.slug, l.role, u.name, l.expires_at, l.max_uses, l.use_count
		FROM invite_links l
		JOIN organizations o ON o.id = l.organization_id
		LEFT JOIN users u ON u.id = l.created_by_id
		WHERE l.token = $1 AND l.revoked_at IS NULL AND l.expires_at > $2
	`, token, s.store.Now()).Scan(&info.OrganizationName, &info.OrganizationSlug, &role, &inviter, &info.ExpiresAt, &maxUses, &useCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.KindNotFound, op, msgInvalidLink)
	}
	if err != nil {
		return nil, apperr.FromStore(op, fmt.Errorf("failed to get invite link: %w", err))
	}
	if maxUses.Valid && int64(useCount) >= maxUses.Int64 {
		return nil, apperr.New(apperr.KindNotFound, op, msgInvalidLink)
	}

	info.Role = rbac.Role(role)
	info.InvitedByName = inviter.String
	return &info, nil
}

// Accept redeems a link for userID. The use-count increment and the membership
// insert commit together or not at all.
func (s *Service) Accept(ctx context.Context, token, userID string) (*Acceptance, error) {
	const op = "invitelinks.Accept"

	if err := validateToken(op, token); err != nil {
		return nil, err
	}

	now := s.store.Now()
	link, err := s.findUnexpired(ctx, token, now)
	if err != nil {
		return nil, err
	}
	if link.Exhausted() {
		return nil, apperr.New(apperr.KindExhausted, op, msgExhausted)
	}

	isMember, err := s.store.IsMember(ctx, nil, link.OrganizationID, userID)
	if err != nil {
		return nil, apperr.FromStore(op, err)
	}
	if isMember {
		return nil, apperr.New(apperr.KindConflict, op, msgAlreadyMember)
	}

	org, err := s.store.GetOrganization(ctx, link.OrganizationID)
	if err != nil {
		return nil, err
	}

	var member *orgs.Member
	err = s.store.RunInTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE invite_links SET use_count = use_count + 1
			WHERE id = $1
			  AND revoked_at IS NULL
			  AND expires_at > $2
			  AND (max_uses IS NULL OR use_count < max_uses)
		`, link.ID, now)
		if err != nil {
			return fmt.Errorf("failed to claim invite link: %w", err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return apperr.New(apperr.KindGone, op, msgNoLongerValid)
		}

		m, inserted, err := s.store.InsertMember(ctx, tx, userID, link.OrganizationID, link.Role)
		if err != nil {
			return err
		}
		if !inserted {
			return apperr.New(apperr.KindConflict, op, msgAlreadyMember)
		}
		member = m
		return nil
	})
	if err != nil {
		return nil, apperr.FromStore(op, err)
	}

	s.recorder.Record(ctx, &audit.Activity{
		OrganizationID: link.OrganizationID,
		ActorID:        userID,
		Action:         audit.ActionCreated,
		ResourceType:   audit.ResourceMember,
		ResourceID:     member.ID,
		Metadata: map[string]interface{}{
			"joinMethod":   "invite_link",
			"inviteLinkId": link.ID,
			"role":         link.Role,
		},
	})

	s.logger.WithFields(logrus.Fields{
		"org_id":         link.OrganizationID,
		"user_id":        userID,
		"invite_link_id": link.ID,
	}).Info("Invite link accepted")

	return &Acceptance{
		OrganizationID:   link.OrganizationID,
		OrganizationName: org.Name,
		Role:             link.Role,
		MemberID:         member.ID,
	}, nil
}

// List returns the organization's non-revoked links, oldest first.
func (s *Service) List(ctx context.Context, orgID string) ([]*Link, error) {
	const op = "invitelinks.List"

	rows, err := s.store.DB().QueryContext(ctx, `
		SELECT l.id, l.organization_id, l.created_by_id, l.token, l.role, l.max_uses, l.use_count,
		       l.expires_at, l.revoked_at, l.created_at, u.name
		FROM invite_links l
		LEFT JOIN users u ON u.id = l.created_by_id
		WHERE l.organization_id = $1 AND l.revoked_at IS NULL
		ORDER BY l.created_at ASC
	`, orgID)
	if err != nil {
		return nil, apperr.FromStore(op, fmt.Errorf("failed to list invite links: %w", err))
	}
	defer rows.Close()

	now := s.store.Now()
	links := []*Link{}
	for rows.Next() {
		var creator sql.NullString
		link, err := scanLink(rows, &creator)
		if err != nil {
			return nil, apperr.FromStore(op, err)
		}
		link.CreatedByName = creator.String
		link.Active = link.Valid(now)
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.FromStore(op, err)
	}

	return links, nil
}

// Revoke marks a link revoked. Revoking an unknown or already revoked link is NotFound.
func (s *Service) Revoke(ctx context.Context, orgID, actorID, linkID string) error {
	const op = "invitelinks.Revoke"

	result, err := s.store.DB().ExecContext(ctx, `
		UPDATE invite_links SET revoked_at = $1
		WHERE id = $2 AND organization_id = $3 AND revoked_at IS NULL
	`, s.store.Now(), linkID, orgID)
	if err != nil {
		return apperr.FromStore(op, fmt.Errorf("failed to revoke invite link: %w", err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperr.FromStore(op, fmt.Errorf("failed to get rows affected: %w", err))
	}
	if rowsAffected == 0 {
		return apperr.New(apperr.KindNotFound, op, "Invite link not found")
	}

	s.recorder.Record(ctx, &audit.Activity{
		OrganizationID: orgID,
		ActorID:        actorID,
		Action:         audit.ActionDeleted,
		ResourceType:   audit.ResourceInviteLink,
		ResourceID:     linkID,
	})

	return nil
}

func (s *Service) findUnexpired(ctx context.Context, token string, now time.Time) (*Link, error) {
	row := s.store.DB().QueryRowContext(ctx, `
		SELECT id, organization_id, created_by_id, token, role, max_uses, use_count,
		       expires_at, revoked_at, created_at
		FROM invite_links
		WHERE token = $1 AND revoked_at IS NULL AND expires_at > $2
	`, token, now)

	link, err := scanLink(row, nil)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.KindNotFound, "invitelinks.Accept", msgInvalidLink)
	}
	if err != nil {
		return nil, apperr.FromStore("invitelinks.Accept", err)
	}
	return link, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanLink(row scanner, creator *sql.NullString) (*Link, error) {
	link := &Link{}
	var (
		role      string
		maxUses   sql.NullInt64
		revokedAt sql.NullTime
	)

	dest := []interface{}{
		&link.ID, &link.OrganizationID, &link.CreatedByID, &link.Token, &role, &maxUses, &link.UseCount,
		&link.ExpiresAt, &revokedAt, &link.CreatedAt,
	}
	if creator != nil {
		dest = append(dest, creator)
	}

	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan invite link: %w", err)
	}

	link.Role = rbac.Role(role)
	if maxUses.Valid {
		n := int(maxUses.Int64)
		link.MaxUses = &n
	}
	if revokedAt.Valid {
		t := revokedAt.Time
		link.RevokedAt = &t
	}
	return link, nil
}

func validateToken(op, token string) error {
	if token == "" || len(token) > MaxTokenLength {
		return apperr.New(apperr.KindInvalidInput, op, "Invalid token")
	}
	return nil
}

// generateToken returns 32 random bytes, hex encoded
func generateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
