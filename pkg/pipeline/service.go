package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/hiregate/pkg/apperr"
	"github.com/platinummonkey/hiregate/pkg/audit"
	"github.com/platinummonkey/hiregate/pkg/orgs"
	"github.com/platinummonkey/hiregate/pkg/transitions"
)

// Service applies status changes to jobs and applications
type Service struct {
	store    *orgs.Store
	recorder audit.Recorder
	logger   logrus.FieldLogger
}

// NewService creates a new pipeline service
func NewService(store *orgs.Store, recorder audit.Recorder, logger logrus.FieldLogger) *Service {
	if recorder == nil {
		recorder = audit.Discard
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{store: store, recorder: recorder, logger: logger}
}

// GetJob returns a job scoped to its organization.
func (s *Service) GetJob(ctx context.Context, orgID, jobID string) (*Job, error) {
	job := &Job{}
	err := s.store.DB().QueryRowContext(ctx, `
		SELECT id, organization_id, title, status, created_at, updated_at
		FROM jobs WHERE id = $1 AND organization_id = $2
	`, jobID, orgID).Scan(&job.ID, &job.OrganizationID, &job.Title, &job.Status, &job.CreatedAt, &job.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.KindNotFound, "pipeline.GetJob", "Not found")
	}
	if err != nil {
		return nil, apperr.FromStore("pipeline.GetJob", fmt.Errorf("failed to get job: %w", err))
	}
	return job, nil
}

// GetApplication returns an application scoped to its organization.
func (s *Service) GetApplication(ctx context.Context, orgID, applicationID string) (*Application, error) {
	app := &Application{}
	err := s.store.DB().QueryRowContext(ctx, `
		SELECT id, organization_id, job_id, candidate_id, status, created_at, updated_at
		FROM applications WHERE id = $1 AND organization_id = $2
	`, applicationID, orgID).Scan(&app.ID, &app.OrganizationID, &app.JobID, &app.CandidateID, &app.Status, &app.CreatedAt, &app.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.KindNotFound, "pipeline.GetApplication", "Not found")
	}
	if err != nil {
		return nil, apperr.FromStore("pipeline.GetApplication", fmt.Errorf("failed to get application: %w", err))
	}
	return app, nil
}

// UpdateJobStatus moves a job to status `to`.
func (s *Service) UpdateJobStatus(ctx context.Context, orgID, actorID, jobID, to string) (*Job, error) {
	const op = "pipeline.UpdateJobStatus"

	current, err := s.GetJob(ctx, orgID, jobID)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, op, transitions.KindJob, "jobs", orgID, jobID, current.Status, to); err != nil {
		return nil, err
	}
	s.recordChange(ctx, orgID, actorID, audit.ResourceJob, jobID, current.Status, to)

	return s.GetJob(ctx, orgID, jobID)
}

// UpdateApplicationStatus moves an application to status `to`.
func (s *Service) UpdateApplicationStatus(ctx context.Context, orgID, actorID, applicationID, to string) (*Application, error) {
	const op = "pipeline.UpdateApplicationStatus"

	current, err := s.GetApplication(ctx, orgID, applicationID)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, op, transitions.KindApplication, "applications", orgID, applicationID, current.Status, to); err != nil {
		return nil, err
	}
	s.recordChange(ctx, orgID, actorID, audit.ResourceApplication, applicationID, current.Status, to)

	return s.GetApplication(ctx, orgID, applicationID)
}

// apply validates from -> to and writes it only if the row still holds from.
// table is one of the fixed table names above, never user input.
func (s *Service) apply(ctx context.Context, op string, kind transitions.Kind, table, orgID, id, from, to string) error {
	if !transitions.IsState(kind, to) {
		return apperr.Newf(apperr.KindInvalidInput, op, "Unknown %s status %q", kind, to)
	}
	if err := transitions.Validate(kind, from, to); err != nil {
		return err
	}

	result, err := s.store.DB().ExecContext(ctx, `
		UPDATE `+table+` SET status = $1, updated_at = $2
		WHERE id = $3 AND organization_id = $4 AND status = $5
	`, to, s.store.Now(), id, orgID, from)
	if err != nil {
		return apperr.FromStore(op, fmt.Errorf("failed to update %s status: %w", kind, err))
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperr.FromStore(op, fmt.Errorf("failed to get rows affected: %w", err))
	}
	if rowsAffected == 0 {
		return apperr.Newf(apperr.KindConflict, op, "The %s was changed by someone else. Reload and try again.", kind)
	}

	s.logger.WithFields(logrus.Fields{
		"op":     op,
		"org_id": orgID,
		"id":     id,
		"from":   from,
		"to":     to,
	}).Debug("Status updated")
	return nil
}

func (s *Service) recordChange(ctx context.Context, orgID, actorID string, resource audit.ResourceType, id, from, to string) {
	activity := &audit.Activity{
		OrganizationID: orgID,
		ActorID:        actorID,
		Action:         audit.ActionUpdated,
		ResourceType:   resource,
		ResourceID:     id,
	}
	if from != to {
		activity.Action = audit.ActionStatusChanged
		activity.Metadata = map[string]interface{}{"from": from, "to": to}
	}
	s.recorder.Record(ctx, activity)
}
