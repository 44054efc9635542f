package analytics

import (
	"context"
	"time"
)

// ActivityRepository is the append-only activity log.
type ActivityRepository interface {
	// SaveActivity appends one activity row.
	SaveActivity(ctx context.Context, activity *UserActivity) error

	// GetActivitiesByUser returns a user's activities in [from, to), newest first.
	GetActivitiesByUser(ctx context.Context, userID string, from, to time.Time) ([]*UserActivity, error)

	// CountActiveUsers returns the number of distinct users with activity since cutoff.
	CountActiveUsers(ctx context.Context, since time.Time) (int, error)

	// CountByAction returns the number of activities with the given action since cutoff.
	CountByAction(ctx context.Context, action string, since time.Time) (int, error)

	// CountInteractions returns the number of interaction activities since cutoff.
	CountInteractions(ctx context.Context, since time.Time) (int, error)

	// AvgDuration returns the mean activity duration in seconds since cutoff.
	AvgDuration(ctx context.Context, since time.Time) (float64, error)

	// GetActivityStatsSince groups activity since cutoff by user, returning
	// per-user counts and last-activity timestamps for users with fewer than
	// maxCount activities. Used by the engagement-drop heuristic.
	GetActivityStatsSince(ctx context.Context, since time.Time, maxCount int) ([]*ActivityStats, error)
}

// EngagementRepository stores per-(user, course) engagement rows.
type EngagementRepository interface {
	// UpsertEngagement inserts or updates the row for (UserID, CourseID).
	UpsertEngagement(ctx context.Context, engagement *CourseEngagement) error

	// GetEngagement returns the row for (user, course), ErrNotFound if absent.
	GetEngagement(ctx context.Context, userID, courseID string) (*CourseEngagement, error)

	// GetEngagementsByUser returns all engagement rows for a user.
	GetEngagementsByUser(ctx context.Context, userID string) ([]*CourseEngagement, error)

	// SummarizeByCourse aggregates engagement per course for rows accessed since cutoff.
	SummarizeByCourse(ctx context.Context, since time.Time) ([]*CourseEngagementSummary, error)
}

// ProgressRepository stores per-(user, learning path) progress rows.
type ProgressRepository interface {
	// UpsertProgress inserts or updates the row for (UserID, LearningPathID).
	UpsertProgress(ctx context.Context, progress *StudentProgress) error

	// GetProgress returns the row for (user, path), ErrNotFound if absent.
	GetProgress(ctx context.Context, userID, learningPathID string) (*StudentProgress, error)

	// GetActiveProgress returns rows with activity since cutoff, optionally
	// filtered by user (empty userID means all users).
	GetActiveProgress(ctx context.Context, userID string, since time.Time) ([]*StudentProgress, error)

	// GetStalledProgress returns rows with progress below the threshold that
	// were started at or before the cutoff. Used by the low-progress heuristic.
	GetStalledProgress(ctx context.Context, maxProgress float64, startedBefore time.Time) ([]*StudentProgress, error)
}

// MetricsRepository stores system metric rows and analytics snapshots.
type MetricsRepository interface {
	// SaveMetrics appends metric rows; each call writes new timestamped rows.
	SaveMetrics(ctx context.Context, metrics []*SystemMetric) error

	// SaveSnapshot appends one analytics snapshot row.
	SaveSnapshot(ctx context.Context, snapshot *AnalyticsSnapshot) error

	// DeleteSnapshotsBefore removes snapshots older than cutoff, returning
	// the number of rows deleted.
	DeleteSnapshotsBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// IntegrationLogRepository records external-system interactions.
type IntegrationLogRepository interface {
	// SaveLog appends one integration log row.
	SaveLog(ctx context.Context, log *IntegrationLog) error
}
