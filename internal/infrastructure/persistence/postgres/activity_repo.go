// Package postgres implements the PostgreSQL persistence layer for EduPulse Analytics.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/edupulse/edupulse-analytics/internal/domain/analytics"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVITY REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ActivityRepository implements analytics.ActivityRepository for PostgreSQL.
type ActivityRepository struct {
	conn *Connection
}

// NewActivityRepository creates a new ActivityRepository.
func NewActivityRepository(conn *Connection) *ActivityRepository {
	return &ActivityRepository{conn: conn}
}

// SaveActivity appends one activity row. The activity log is append-only.
func (r *ActivityRepository) SaveActivity(ctx context.Context, activity *analytics.UserActivity) error {
	query := `
		INSERT INTO user_activities (
			id, user_id, action, resource_type, resource_id,
			duration_seconds, metadata, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	metadataJSON, err := json.Marshal(activity.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal activity metadata: %w", err)
	}

	_, err = r.conn.Exec(ctx, query,
		activity.ID,
		activity.UserID,
		activity.Action,
		activity.ResourceType,
		activity.ResourceID,
		activity.Duration,
		metadataJSON,
		activity.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to save activity: %w", err)
	}

	return nil
}

// GetActivitiesByUser returns a user's activities in [from, to), newest first.
func (r *ActivityRepository) GetActivitiesByUser(ctx context.Context, userID string, from, to time.Time) ([]*analytics.UserActivity, error) {
	query := `
		SELECT id, user_id, action, resource_type, resource_id,
			   duration_seconds, metadata, occurred_at
		FROM user_activities
		WHERE user_id = $1 AND occurred_at >= $2 AND occurred_at < $3
		ORDER BY occurred_at DESC
	`

	rows, err := r.conn.Query(ctx, query, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities: %w", err)
	}
	defer rows.Close()

	return scanActivities(rows)
}

// CountActiveUsers returns the number of distinct users with activity since cutoff.
func (r *ActivityRepository) CountActiveUsers(ctx context.Context, since time.Time) (int, error) {
	query := `SELECT COUNT(DISTINCT user_id) FROM user_activities WHERE occurred_at >= $1`

	var count int
	if err := r.conn.QueryRow(ctx, query, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count active users: %w", err)
	}
	return count, nil
}

// CountByAction returns the number of activities with the given action since cutoff.
func (r *ActivityRepository) CountByAction(ctx context.Context, action string, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM user_activities WHERE action = $1 AND occurred_at >= $2`

	var count int
	if err := r.conn.QueryRow(ctx, query, action, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count activities by action: %w", err)
	}
	return count, nil
}

// CountInteractions returns the number of interaction activities since cutoff.
func (r *ActivityRepository) CountInteractions(ctx context.Context, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM user_activities WHERE action = ANY($1) AND occurred_at >= $2`

	actions := make([]string, 0, len(analytics.InteractionActions))
	for action := range analytics.InteractionActions {
		actions = append(actions, action)
	}

	var count int
	if err := r.conn.QueryRow(ctx, query, actions, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count interactions: %w", err)
	}
	return count, nil
}

// AvgDuration returns the mean activity duration in seconds since cutoff.
func (r *ActivityRepository) AvgDuration(ctx context.Context, since time.Time) (float64, error) {
	query := `
		SELECT COALESCE(AVG(duration_seconds), 0)
		FROM user_activities
		WHERE occurred_at >= $1
	`

	var avg float64
	if err := r.conn.QueryRow(ctx, query, since).Scan(&avg); err != nil {
		return 0, fmt.Errorf("failed to compute average duration: %w", err)
	}
	return avg, nil
}

// GetActivityStatsSince groups activity since cutoff by user, keeping only
// users with fewer than maxCount activities.
func (r *ActivityRepository) GetActivityStatsSince(ctx context.Context, since time.Time, maxCount int) ([]*analytics.ActivityStats, error) {
	query := `
		SELECT user_id, COUNT(*) AS activity_count, MAX(occurred_at) AS last_activity
		FROM user_activities
		WHERE occurred_at >= $1
		GROUP BY user_id
		HAVING COUNT(*) < $2
		ORDER BY activity_count ASC
	`

	rows, err := r.conn.Query(ctx, query, since, maxCount)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity stats: %w", err)
	}
	defer rows.Close()

	var stats []*analytics.ActivityStats
	for rows.Next() {
		s := &analytics.ActivityStats{}
		if err := rows.Scan(&s.UserID, &s.ActivityCount, &s.LastActivity); err != nil {
			return nil, fmt.Errorf("failed to scan activity stats: %w", err)
		}
		stats = append(stats, s)
	}

	return stats, rows.Err()
}

// scanActivities scans activity rows including the JSONB metadata column.
func scanActivities(rows pgx.Rows) ([]*analytics.UserActivity, error) {
	var activities []*analytics.UserActivity
	for rows.Next() {
		a := &analytics.UserActivity{}
		var metadataJSON []byte

		err := rows.Scan(
			&a.ID,
			&a.UserID,
			&a.Action,
			&a.ResourceType,
			&a.ResourceID,
			&a.Duration,
			&metadataJSON,
			&a.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}

		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &a.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal activity metadata: %w", err)
			}
		}

		activities = append(activities, a)
	}

	return activities, rows.Err()
}
