package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/edupulse/edupulse-analytics/internal/domain/analytics"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENGAGEMENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// EngagementRepository implements analytics.EngagementRepository for PostgreSQL.
type EngagementRepository struct {
	conn *Connection
}

// NewEngagementRepository creates a new EngagementRepository.
func NewEngagementRepository(conn *Connection) *EngagementRepository {
	return &EngagementRepository{conn: conn}
}

// UpsertEngagement inserts or updates the row for (UserID, CourseID).
func (r *EngagementRepository) UpsertEngagement(ctx context.Context, e *analytics.CourseEngagement) error {
	query := `
		INSERT INTO course_engagements (
			id, user_id, course_id, progress, time_spent_seconds,
			last_accessed, completed_at, rating
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, course_id) DO UPDATE SET
			progress = EXCLUDED.progress,
			time_spent_seconds = EXCLUDED.time_spent_seconds,
			last_accessed = EXCLUDED.last_accessed,
			completed_at = EXCLUDED.completed_at,
			rating = EXCLUDED.rating,
			updated_at = NOW()
	`

	_, err := r.conn.Exec(ctx, query,
		e.ID,
		e.UserID,
		e.CourseID,
		e.Progress,
		e.TimeSpent,
		e.LastAccessed,
		e.CompletedAt,
		e.Rating,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert engagement: %w", err)
	}

	return nil
}

// GetEngagement returns the row for (user, course), ErrNotFound if absent.
func (r *EngagementRepository) GetEngagement(ctx context.Context, userID, courseID string) (*analytics.CourseEngagement, error) {
	query := `
		SELECT id, user_id, course_id, progress, time_spent_seconds,
			   last_accessed, completed_at, rating
		FROM course_engagements
		WHERE user_id = $1 AND course_id = $2
	`

	e := &analytics.CourseEngagement{}
	err := r.conn.QueryRow(ctx, query, userID, courseID).Scan(
		&e.ID,
		&e.UserID,
		&e.CourseID,
		&e.Progress,
		&e.TimeSpent,
		&e.LastAccessed,
		&e.CompletedAt,
		&e.Rating,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, analytics.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get engagement: %w", err)
	}

	return e, nil
}

// GetEngagementsByUser returns all engagement rows for a user.
func (r *EngagementRepository) GetEngagementsByUser(ctx context.Context, userID string) ([]*analytics.CourseEngagement, error) {
	query := `
		SELECT id, user_id, course_id, progress, time_spent_seconds,
			   last_accessed, completed_at, rating
		FROM course_engagements
		WHERE user_id = $1
		ORDER BY last_accessed DESC
	`

	rows, err := r.conn.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query engagements: %w", err)
	}
	defer rows.Close()

	return scanEngagements(rows)
}

// SummarizeByCourse aggregates engagement per course for rows accessed since cutoff.
func (r *EngagementRepository) SummarizeByCourse(ctx context.Context, since time.Time) ([]*analytics.CourseEngagementSummary, error) {
	query := `
		SELECT course_id, AVG(progress) AS avg_progress, COUNT(DISTINCT user_id) AS active_students
		FROM course_engagements
		WHERE last_accessed >= $1
		GROUP BY course_id
		ORDER BY active_students DESC
	`

	rows, err := r.conn.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize engagement: %w", err)
	}
	defer rows.Close()

	var summaries []*analytics.CourseEngagementSummary
	for rows.Next() {
		s := &analytics.CourseEngagementSummary{}
		if err := rows.Scan(&s.CourseID, &s.AvgProgress, &s.ActiveStudents); err != nil {
			return nil, fmt.Errorf("failed to scan engagement summary: %w", err)
		}
		summaries = append(summaries, s)
	}

	return summaries, rows.Err()
}

func scanEngagements(rows pgx.Rows) ([]*analytics.CourseEngagement, error) {
	var engagements []*analytics.CourseEngagement
	for rows.Next() {
		e := &analytics.CourseEngagement{}
		err := rows.Scan(
			&e.ID,
			&e.UserID,
			&e.CourseID,
			&e.Progress,
			&e.TimeSpent,
			&e.LastAccessed,
			&e.CompletedAt,
			&e.Rating,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan engagement: %w", err)
		}
		engagements = append(engagements, e)
	}

	return engagements, rows.Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRepository implements analytics.ProgressRepository for PostgreSQL.
type ProgressRepository struct {
	conn *Connection
}

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(conn *Connection) *ProgressRepository {
	return &ProgressRepository{conn: conn}
}

// UpsertProgress inserts or updates the row for (UserID, LearningPathID).
func (r *ProgressRepository) UpsertProgress(ctx context.Context, p *analytics.StudentProgress) error {
	query := `
		INSERT INTO student_progress (
			id, user_id, learning_path_id, progress, current_milestone,
			time_spent_seconds, started_at, last_activity, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, learning_path_id) DO UPDATE SET
			progress = EXCLUDED.progress,
			current_milestone = EXCLUDED.current_milestone,
			time_spent_seconds = EXCLUDED.time_spent_seconds,
			last_activity = EXCLUDED.last_activity,
			completed_at = EXCLUDED.completed_at,
			updated_at = NOW()
	`

	_, err := r.conn.Exec(ctx, query,
		p.ID,
		p.UserID,
		p.LearningPathID,
		p.Progress,
		p.CurrentMilestone,
		p.TimeSpent,
		p.StartedAt,
		p.LastActivity,
		p.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert progress: %w", err)
	}

	return nil
}

// GetProgress returns the row for (user, path), ErrNotFound if absent.
func (r *ProgressRepository) GetProgress(ctx context.Context, userID, learningPathID string) (*analytics.StudentProgress, error) {
	query := `
		SELECT id, user_id, learning_path_id, progress, current_milestone,
			   time_spent_seconds, started_at, last_activity, completed_at
		FROM student_progress
		WHERE user_id = $1 AND learning_path_id = $2
	`

	p := &analytics.StudentProgress{}
	err := r.conn.QueryRow(ctx, query, userID, learningPathID).Scan(
		&p.ID,
		&p.UserID,
		&p.LearningPathID,
		&p.Progress,
		&p.CurrentMilestone,
		&p.TimeSpent,
		&p.StartedAt,
		&p.LastActivity,
		&p.CompletedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, analytics.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}

	return p, nil
}

// GetActiveProgress returns rows with activity since cutoff, optionally
// filtered by user (empty userID means all users).
func (r *ProgressRepository) GetActiveProgress(ctx context.Context, userID string, since time.Time) ([]*analytics.StudentProgress, error) {
	query := `
		SELECT id, user_id, learning_path_id, progress, current_milestone,
			   time_spent_seconds, started_at, last_activity, completed_at
		FROM student_progress
		WHERE last_activity >= $1 AND ($2 = '' OR user_id = $2)
		ORDER BY last_activity DESC
	`

	rows, err := r.conn.Query(ctx, query, since, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query active progress: %w", err)
	}
	defer rows.Close()

	return scanProgress(rows)
}

// GetStalledProgress returns rows with progress below the threshold that
// were started at or before the cutoff.
func (r *ProgressRepository) GetStalledProgress(ctx context.Context, maxProgress float64, startedBefore time.Time) ([]*analytics.StudentProgress, error) {
	query := `
		SELECT id, user_id, learning_path_id, progress, current_milestone,
			   time_spent_seconds, started_at, last_activity, completed_at
		FROM student_progress
		WHERE progress < $1 AND started_at <= $2 AND completed_at IS NULL
		ORDER BY started_at ASC
	`

	rows, err := r.conn.Query(ctx, query, maxProgress, startedBefore)
	if err != nil {
		return nil, fmt.Errorf("failed to query stalled progress: %w", err)
	}
	defer rows.Close()

	return scanProgress(rows)
}

func scanProgress(rows pgx.Rows) ([]*analytics.StudentProgress, error) {
	var records []*analytics.StudentProgress
	for rows.Next() {
		p := &analytics.StudentProgress{}
		err := rows.Scan(
			&p.ID,
			&p.UserID,
			&p.LearningPathID,
			&p.Progress,
			&p.CurrentMilestone,
			&p.TimeSpent,
			&p.StartedAt,
			&p.LastActivity,
			&p.CompletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan progress: %w", err)
		}
		records = append(records, p)
	}

	return records, rows.Err()
}
