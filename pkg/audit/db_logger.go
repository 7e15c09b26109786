package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DBSink appends activity to the activity_log table
type DBSink struct {
	db    *sql.DB
	reads interface{ Replica() *sql.DB }
	now   func() time.Time
}

// NewDBSink creates a new database-backed sink
func NewDBSink(db *sql.DB) (*DBSink, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &DBSink{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// WithReadPool serves List from pool's replicas. Record always writes to the primary.
func (s *DBSink) WithReadPool(pool interface{ Replica() *sql.DB }) *DBSink {
	s.reads = pool
	return s
}

// Record inserts one activity entry, filling in ID and CreatedAt when unset.
func (s *DBSink) Record(ctx context.Context, activity *Activity) error {
	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = s.now()
	}

	var metadata sql.NullString
	if activity.Metadata != nil {
		b, err := json.Marshal(activity.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		metadata = sql.NullString{String: string(b), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activity_log (id, organization_id, actor_id, action, resource_type, resource_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, activity.ID, activity.OrganizationID, activity.ActorID, string(activity.Action),
		string(activity.ResourceType), activity.ResourceID, metadata, activity.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record activity: %w", err)
	}

	return nil
}

// List returns an organization's most recent activity, newest first.
func (s *DBSink) List(ctx context.Context, orgID string, limit int) ([]*Activity, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	reader := s.db
	if s.reads != nil {
		reader = s.reads.Replica()
	}
	rows, err := reader.QueryContext(ctx, `
		SELECT id, organization_id, actor_id, action, resource_type, resource_id, metadata, created_at
		FROM activity_log
		WHERE organization_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, orgID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	defer rows.Close()

	activities := []*Activity{}
	for rows.Next() {
		a := &Activity{}
		var action, resourceType string
		var metadata sql.NullString
		if err := rows.Scan(&a.ID, &a.OrganizationID, &a.ActorID, &action, &resourceType, &a.ResourceID, &metadata, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		a.Action = Action(action)
		a.ResourceType = ResourceType(resourceType)
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &a.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		activities = append(activities, a)
	}

	return activities, rows.Err()
}
