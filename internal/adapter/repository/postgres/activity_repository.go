package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/srgjo27/custodia/internal/core/domain"
)

const activitySchema = `
CREATE TABLE IF NOT EXISTS activities (
	id         UUID PRIMARY KEY,
	type       TEXT NOT NULL,
	locker_id  INTEGER,
	item       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS activities_created_at_idx ON activities (created_at DESC);
`

// ActivityRepository keeps the activity log in Postgres so it survives kiosk
// reinstalls. Reconciliation never reads it.
type ActivityRepository struct {
	db *sql.DB
}

func NewActivityRepository(db *sql.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

func (r *ActivityRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, activitySchema); err != nil {
		return fmt.Errorf("failed to create activities table: %w", err)
	}
	return nil
}

func (r *ActivityRepository) Append(ctx context.Context, activity domain.Activity) error {
	item, err := json.Marshal(activity.Item)
	if err != nil {
		return fmt.Errorf("failed to encode activity item: %w", err)
	}

	query := `
	INSERT INTO activities (id, type, locker_id, item, created_at)
	VALUES ($1, $2, $3, $4, $5)
	`

	var lockerID sql.NullInt64
	if activity.LockerID != nil {
		lockerID = sql.NullInt64{Int64: int64(*activity.LockerID), Valid: true}
	}

	_, err = r.db.ExecContext(ctx, query, activity.ID, activity.Type, lockerID, item, activity.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert activity %s: %w", activity.ID, err)
	}

	return nil
}

// List returns the newest activities first. A limit of zero or less returns all of them.
func (r *ActivityRepository) List(ctx context.Context, limit int) ([]domain.Activity, error) {
	query := `
	SELECT id, type, locker_id, item, created_at
	FROM activities
	ORDER BY created_at DESC
	`
	args := []any{}
	if limit > 0 {
		query += "LIMIT $1"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	activities := []domain.Activity{}
	for rows.Next() {
		var (
			a        domain.Activity
			lockerID sql.NullInt64
			item     []byte
		)
		if err := rows.Scan(&a.ID, &a.Type, &lockerID, &item, &a.Timestamp); err != nil {
			return nil, err
		}
		if lockerID.Valid {
			id := int(lockerID.Int64)
			a.LockerID = &id
		}
		if err := json.Unmarshal(item, &a.Item); err != nil {
			return nil, fmt.Errorf("failed to decode activity %s: %w", a.ID, err)
		}
		activities = append(activities, a)
	}

	return activities, rows.Err()
}
