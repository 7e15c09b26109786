package joinrequests

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/hiregate/pkg/apperr"
	"github.com/platinummonkey/hiregate/pkg/audit"
	"github.com/platinummonkey/hiregate/pkg/orgs"
	"github.com/platinummonkey/hiregate/pkg/rbac"
)

const (
	msgAlreadyMember     = "You are already a member of this organization"
	msgUserAlreadyMember = "User is already a member of this organization"
	msgAlreadyPending    = "You already have a pending request to join this organization"
	msgCooldown          = "Your previous request was recently declined. Please wait before reapplying."
	msgNotFound          = "Join request not found or already processed"
	msgAlreadyProcessed  = "Request was already processed"
	msgApproveFailed     = "Failed to approve join request. Please try again."
)

// Option configures a Service
type Option func(*Service)

// WithCooldown overrides how long a rejected requester must wait.
func WithCooldown(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.cooldown = d
		}
	}
}

// Service handles join request submission and review
type Service struct {
	store    *orgs.Store
	recorder audit.Recorder
	logger   logrus.FieldLogger
	cooldown time.Duration
}

// NewService creates a new join request service
func NewService(store *orgs.Store, recorder audit.Recorder, logger logrus.FieldLogger, opts ...Option) *Service {
	if recorder == nil {
		recorder = audit.Discard
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &Service{store: store, recorder: recorder, logger: logger, cooldown: DefaultCooldown}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit files a request from userID to join orgID.
func (s *Service) Submit(ctx context.Context, userID, orgID, message string) (*Submitted, error) {
	const op = "joinrequests.Submit"

	if orgID == "" || len(orgID) > maxOrgIDLength {
		return nil, apperr.New(apperr.KindInvalidInput, op, "organizationId is required")
	}
	message = strings.TrimSpace(message)
	if utf8.RuneCountInString(message) > MaxMessageLength {
		return nil, apperr.New(apperr.KindInvalidInput, op, fmt.Sprintf("Message must be at most %d characters", MaxMessageLength))
	}

	org, err := s.store.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}

	isMember, err := s.store.IsMember(ctx, nil, orgID, userID)
	if err != nil {
		return nil, apperr.FromStore(op, err)
	}
	if isMember {
		return nil, apperr.New(apperr.KindConflict, op, msgAlreadyMember)
	}

	db := s.store.DB()
	now := s.store.Now()

	var existing string
	err = db.QueryRowContext(ctx, `
		SELECT id FROM join_requests
		WHERE user_id = $1 AND organization_id = $2 AND status = 'pending'
	`, userID, orgID).Scan(&existing)
	switch {
	case err == nil:
		return nil, apperr.New(apperr.KindConflict, op, msgAlreadyPending)
	case !errors.Is(err, sql.ErrNoRows):
		return nil, apperr.FromStore(op, fmt.Errorf("failed to check pending request: %w", err))
	}

	var recent int
	err = db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM join_requests
		WHERE user_id = $1 AND organization_id = $2 AND status = 'rejected' AND reviewed_at > $3
	`, userID, orgID, now.Add(-s.cooldown)).Scan(&recent)
	if err != nil {
		return nil, apperr.FromStore(op, fmt.Errorf("failed to check recent rejections: %w", err))
	}
	if recent > 0 {
		return nil, apperr.New(apperr.KindTooManyRequests, op, msgCooldown)
	}

	var msg interface{}
	if message != "" {
		msg = message
	}

	created := &Submitted{
		ID:               uuid.NewString(),
		Status:           StatusPending,
		CreatedAt:        now,
		OrganizationName: org.Name,
	}
	var id string
	err = db.QueryRowContext(ctx, `
		INSERT INTO join_requests (id, user_id, organization_id, message, status, created_at)
		VALUES ($1, $2, $3, $4, 'pending', $5)
		ON CONFLICT (user_id, organization_id) WHERE status = 'pending' DO NOTHING
		RETURNING id
	`, created.ID, userID, orgID, msg, now).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.KindConflict, op, msgAlreadyPending)
	}
	if err != nil {
		return nil, apperr.FromStore(op, fmt.Errorf("failed to create join request: %w", err))
	}

	return created, nil
}

// Approve admits the requester as a member. If they already belong to the
// organization the request is closed as rejected instead.
func (s *Service) Approve(ctx context.Context, orgID, actorID, requestID string) (*Approval, error) {
	const op = "joinrequests.Approve"

	req, userName, err := s.findPending(ctx, op, orgID, requestID)
	if err != nil {
		return nil, err
	}

	now := s.store.Now()

	isMember, err := s.store.IsMember(ctx, nil, orgID, req.UserID)
	if err != nil {
		return nil, s.approveFailure(op, requestID, err)
	}
	if isMember {
		if _, err := s.markReviewed(ctx, s.store.DB(), StatusRejected, actorID, now, requestID, orgID); err != nil {
			s.logger.WithError(err).WithField("join_request_id", requestID).Warn("Failed to auto-reject join request")
		}
		return nil, apperr.New(apperr.KindConflict, op, msgUserAlreadyMember)
	}

	var member *orgs.Member
	err = s.store.RunInTx(ctx, func(tx *sql.Tx) error {
		updated, err := s.markReviewed(ctx, tx, StatusApproved, actorID, now, requestID, orgID)
		if err != nil {
			return err
		}
		if !updated {
			return apperr.New(apperr.KindConflict, op, msgAlreadyProcessed)
		}

		m, inserted, err := s.store.InsertMember(ctx, tx, req.UserID, orgID, rbac.RoleMember)
		if err != nil {
			return err
		}
		if !inserted {
			return apperr.New(apperr.KindConflict, op, msgUserAlreadyMember)
		}
		member = m
		return nil
	})
	if err != nil {
		return nil, s.approveFailure(op, requestID, err)
	}

	s.recorder.Record(ctx, &audit.Activity{
		OrganizationID: orgID,
		ActorID:        actorID,
		Action:         audit.ActionCreated,
		ResourceType:   audit.ResourceMember,
		ResourceID:     member.ID,
		Metadata: map[string]interface{}{
			"joinMethod":    "join_request",
			"joinRequestId": requestID,
			"approvedUser":  userName,
		},
	})

	return &Approval{MemberID: member.ID, Role: member.Role}, nil
}

// Reject closes a pending request.
func (s *Service) Reject(ctx context.Context, orgID, actorID, requestID string) error {
	const op = "joinrequests.Reject"

	updated, err := s.markReviewed(ctx, s.store.DB(), StatusRejected, actorID, s.store.Now(), requestID, orgID)
	if err != nil {
		return apperr.FromStore(op, err)
	}
	if !updated {
		return apperr.New(apperr.KindNotFound, op, msgNotFound)
	}

	s.recorder.Record(ctx, &audit.Activity{
		OrganizationID: orgID,
		ActorID:        actorID,
		Action:         audit.ActionDeleted,
		ResourceType:   audit.ResourceMember,
		ResourceID:     requestID,
		Metadata: map[string]interface{}{
			"decision":      string(StatusRejected),
			"joinRequestId": requestID,
		},
	})

	return nil
}

// List returns the organization's pending requests, oldest first.
func (s *Service) List(ctx context.Context, orgID string) ([]*Pending, error) {
	const op = "joinrequests.List"

	rows, err := s.store.DB().QueryContext(ctx, `
		SELECT jr.id, jr.message, jr.status, jr.created_at, u.name, u.email, u.image
		FROM join_requests jr
		JOIN users u ON u.id = jr.user_id
		WHERE jr.organization_id = $1 AND jr.status = 'pending'
		ORDER BY jr.created_at ASC
	`, orgID)
	if err != nil {
		return nil, apperr.FromStore(op, fmt.Errorf("failed to list join requests: %w", err))
	}
	defer rows.Close()

	requests := []*Pending{}
	for rows.Next() {
		var (
			p       Pending
			status  string
			message sql.NullString
			image   sql.NullString
		)
		if err := rows.Scan(&p.ID, &message, &status, &p.CreatedAt, &p.UserName, &p.UserEmail, &image); err != nil {
			return nil, apperr.FromStore(op, fmt.Errorf("failed to scan join request: %w", err))
		}
		p.Status = Status(status)
		p.Message = message.String
		p.UserImage = image.String
		requests = append(requests, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.FromStore(op, err)
	}

	return requests, nil
}

// Get returns a request scoped to its organization.
func (s *Service) Get(ctx context.Context, orgID, requestID string) (*Request, error) {
	const op = "joinrequests.Get"

	var (
		req        Request
		status     string
		message    sql.NullString
		reviewedBy sql.NullString
		reviewedAt sql.NullTime
	)
	err := s.store.DB().QueryRowContext(ctx, `
		SELECT id, user_id, organization_id, message, status, reviewed_by_id, reviewed_at, created_at
		FROM join_requests
		WHERE id = $1 AND organization_id = $2
	`, requestID, orgID).Scan(&req.ID, &req.UserID, &req.OrganizationID, &message, &status, &reviewedBy, &reviewedAt, &req.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.KindNotFound, op, "Join request not found")
	}
	if err != nil {
		return nil, apperr.FromStore(op, fmt.Errorf("failed to get join request: %w", err))
	}

	req.Status = Status(status)
	req.Message = message.String
	if reviewedBy.Valid {
		req.ReviewedByID = &reviewedBy.String
	}
	if reviewedAt.Valid {
		t := reviewedAt.Time
		req.ReviewedAt = &t
	}
	return &req, nil
}

func (s *Service) findPending(ctx context.Context, op, orgID, requestID string) (*Request, string, error) {
	req := &Request{}
	var userName string
	err := s.store.DB().QueryRowContext(ctx, `
		SELECT jr.id, jr.user_id, jr.organization_id, u.name
		FROM join_requests jr
		JOIN users u ON u.id = jr.user_id
		WHERE jr.id = $1 AND jr.organization_id = $2 AND jr.status = 'pending'
	`, requestID, orgID).Scan(&req.ID, &req.UserID, &req.OrganizationID, &userName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", apperr.New(apperr.KindNotFound, op, msgNotFound)
	}
	if err != nil {
		return nil, "", s.approveFailure(op, requestID, fmt.Errorf("failed to get join request: %w", err))
	}
	req.Status = StatusPending
	return req, userName, nil
}

// markReviewed moves a pending request to status. It reports false when the
// request was not pending in orgID.
func (s *Service) markReviewed(ctx context.Context, q orgs.Querier, status Status, actorID string, now time.Time, requestID, orgID string) (bool, error) {
	result, err := q.ExecContext(ctx, `
		UPDATE join_requests SET status = $1, reviewed_by_id = $2, reviewed_at = $3
		WHERE id = $4 AND organization_id = $5 AND status = 'pending'
	`, string(status), actorID, now, requestID, orgID)
	if err != nil {
		return false, fmt.Errorf("failed to update join request: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// approveFailure passes typed errors through and hides everything else behind
// a retryable message.
func (s *Service) approveFailure(op, requestID string, err error) error {
	if _, ok := apperr.As(err); ok {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperr.FromStore(op, err)
	}
	s.logger.WithError(err).WithField("join_request_id", requestID).Error("Failed to approve join request")
	return &apperr.Error{Kind: apperr.KindInternal, Op: op, Message: msgApproveFailed, Err: err}
}
