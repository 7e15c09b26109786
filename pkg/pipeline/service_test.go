package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/hiregate/pkg/apperr"
	"github.com/platinummonkey/hiregate/pkg/audit"
	"github.com/platinummonkey/hiregate/pkg/orgs"
	"github.com/platinummonkey/hiregate/pkg/storage/storagetest"
	"github.com/platinummonkey/hiregate/pkg/transitions"
)

func newTestService(t *testing.T) (*Service, *audit.MemoryRecorder, string, func() string) {
	db := storagetest.OpenSQLite(t)
	later := storagetest.Now.Add(time.Hour)
	store := orgs.NewStore(db).WithClock(func() time.Time { return later })
	rec := &audit.MemoryRecorder{}
	orgID := storagetest.CreateOrganization(t, db, "Acme Corp", "acme-corp")
	jobID := storagetest.CreateJob(t, db, orgID, "Backend Engineer", transitions.JobDraft)
	newApp := func() string {
		return storagetest.CreateApplication(t, db, orgID, jobID, transitions.ApplicationNew)
	}
	return NewService(store, rec, nil), rec, orgID, newApp
}

func TestUpdateApplicationStatus(t *testing.T) {
	svc, rec, orgID, newApp := newTestService(t)
	ctx := context.Background()

	t.Run("allowed transition", func(t *testing.T) {
		appID := newApp()
		app, err := svc.UpdateApplicationStatus(ctx, orgID, "user-1", appID, transitions.ApplicationScreening)
		require.NoError(t, err)
		assert.Equal(t, transitions.ApplicationScreening, app.Status)
		assert.True(t, app.UpdatedAt.Equal(storagetest.Now.Add(time.Hour)))

		activities := rec.Activities()
		last := activities[len(activities)-1]
		assert.Equal(t, audit.ActionStatusChanged, last.Action)
		assert.Equal(t, "new", last.Metadata["from"])
		assert.Equal(t, "screening", last.Metadata["to"])
	})

	t.Run("disallowed transition lists allowed targets", func(t *testing.T) {
		appID := newApp()
		_, err := svc.UpdateApplicationStatus(ctx, orgID, "user-1", appID, transitions.ApplicationHired)
		require.Error(t, err)
		assert.Equal(t, apperr.KindInvalidTransition, apperr.KindOf(err))

		ae, ok := apperr.As(err)
		require.True(t, ok)
		assert.Equal(t, []string{"screening", "interview", "rejected"}, ae.Allowed)
		assert.Equal(t, `Cannot transition from "new" to "hired". Allowed: screening, interview, rejected`, ae.Message)

		app, err := svc.GetApplication(ctx, orgID, appID)
		require.NoError(t, err)
		assert.Equal(t, transitions.ApplicationNew, app.Status)
	})

	t.Run("same status is an update", func(t *testing.T) {
		appID := newApp()
		_, err := svc.UpdateApplicationStatus(ctx, orgID, "user-1", appID, transitions.ApplicationNew)
		require.NoError(t, err)

		activities := rec.Activities()
		last := activities[len(activities)-1]
		assert.Equal(t, audit.ActionUpdated, last.Action)
		assert.Nil(t, last.Metadata)
	})

	t.Run("unknown status", func(t *testing.T) {
		_, err := svc.UpdateApplicationStatus(ctx, orgID, "user-1", newApp(), "withdrawn")
		assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
	})

	t.Run("other organization", func(t *testing.T) {
		_, err := svc.UpdateApplicationStatus(ctx, "other-org", "user-1", newApp(), transitions.ApplicationScreening)
		assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	})
}

func TestUpdateJobStatus(t *testing.T) {
	db := storagetest.OpenSQLite(t)
	store := orgs.NewStore(db).WithClock(func() time.Time { return storagetest.Now })
	svc := NewService(store, nil, nil)
	ctx := context.Background()
	orgID := storagetest.CreateOrganization(t, db, "Acme Corp", "acme-corp")

	archived := storagetest.CreateJob(t, db, orgID, "Designer", transitions.JobArchived)

	job, err := svc.UpdateJobStatus(ctx, orgID, "user-1", archived, transitions.JobDraft)
	require.NoError(t, err)
	assert.Equal(t, transitions.JobDraft, job.Status)

	_, err = svc.UpdateJobStatus(ctx, orgID, "user-1", archived, transitions.JobClosed)
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidTransition, apperr.KindOf(err))
	assert.Equal(t, 422, apperr.KindOf(err).HTTPStatus())
}

func TestUpdateJobStatus_ConcurrentChangeConflicts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := orgs.NewStore(db).WithClock(func() time.Time { return storagetest.Now })
	svc := NewService(store, nil, nil)

	mock.ExpectQuery("SELECT (.+) FROM jobs").
		WithArgs("job-1", "org-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "organization_id", "title", "status", "created_at", "updated_at"}).
			AddRow("job-1", "org-1", "Engineer", "open", storagetest.Now, storagetest.Now))
	mock.ExpectExec("UPDATE jobs SET status").
		WithArgs("closed", storagetest.Now, "job-1", "org-1", "open").
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err = svc.UpdateJobStatus(context.Background(), "org-1", "user-1", "job-1", transitions.JobClosed)
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
