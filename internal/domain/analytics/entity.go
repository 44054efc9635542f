// Package analytics defines the domain model for EduPulse Analytics:
// activity events, engagement and progress records, metric rows, and
// the repository contracts the infrastructure layer implements.
package analytics

import (
	"time"

	"github.com/google/uuid"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVITY
// ══════════════════════════════════════════════════════════════════════════════

// Activity actions with special meaning for engagement classification.
const (
	ActionPageView        = "page_view"
	ActionUnknown         = "unknown"
	ActionModuleCompleted = "module_completed"
	ActionMilestoneDone   = "milestone_completed"
)

// InteractionActions is the set of actions counted as interactions.
var InteractionActions = map[string]bool{
	"click":        true,
	"scroll":       true,
	"video_play":   true,
	"quiz_attempt": true,
}

// IsInteraction reports whether an action counts as an interaction.
func IsInteraction(action string) bool {
	return InteractionActions[action]
}

// UserActivity is a single recorded user action.
// Rows are append-only; the activity log is never updated in place.
type UserActivity struct {
	ID           string         `json:"id"`
	UserID       string         `json:"user_id"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
	Duration     int            `json:"duration"` // seconds
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// NewUserActivity builds an activity row from a raw event payload.
// Missing fields default to neutral values rather than rejecting the event.
func NewUserActivity(userID string, event map[string]any, at time.Time) *UserActivity {
	a := &UserActivity{
		ID:           uuid.NewString(),
		UserID:       userID,
		Action:       ActionUnknown,
		ResourceType: ActionUnknown,
		Timestamp:    at,
	}

	if v, ok := event["action"].(string); ok && v != "" {
		a.Action = v
	}
	if v, ok := event["resource_type"].(string); ok && v != "" {
		a.ResourceType = v
	}
	if v, ok := event["resource_id"].(string); ok {
		a.ResourceID = v
	}
	a.Duration = EventDuration(event)
	if v, ok := event["metadata"].(map[string]any); ok {
		a.Metadata = v
	}

	return a
}

// EventDuration extracts the duration field from a raw event payload.
// JSON numbers decode as float64; integers are accepted for events built in code.
func EventDuration(event map[string]any) int {
	switch v := event["duration"].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

// ActivityStats is a per-user activity rollup used by the alert evaluator.
type ActivityStats struct {
	UserID        string
	ActivityCount int
	LastActivity  time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// ENGAGEMENT & PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

// CourseEngagement tracks a user's engagement with a single course.
// One row per (user, course); updated in place as events arrive.
type CourseEngagement struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	CourseID     string     `json:"course_id"`
	Progress     float64    `json:"progress"`   // 0-100
	TimeSpent    int        `json:"time_spent"` // seconds
	LastAccessed time.Time  `json:"last_accessed"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	Rating       *float64   `json:"rating,omitempty"`
}

// StudentProgress tracks a user's progress through a learning path.
// One row per (user, learning path).
type StudentProgress struct {
	ID               string     `json:"id"`
	UserID           string     `json:"user_id"`
	LearningPathID   string     `json:"learning_path_id"`
	Progress         float64    `json:"progress"` // 0-100
	CurrentMilestone int        `json:"current_milestone"`
	TimeSpent        int        `json:"time_spent"` // seconds
	StartedAt        time.Time  `json:"started_at"`
	LastActivity     time.Time  `json:"last_activity"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// CourseEngagementSummary is a per-course aggregate over a time window.
type CourseEngagementSummary struct {
	CourseID       string  `json:"course_id"`
	AvgProgress    float64 `json:"avg_progress"`
	ActiveStudents int     `json:"active_students"`
}

// ══════════════════════════════════════════════════════════════════════════════
// METRICS & SNAPSHOTS
// ══════════════════════════════════════════════════════════════════════════════

// Well-known system metric names.
const (
	MetricActiveSessions = "active_sessions"
	MetricQueuedEvents   = "total_engagement_events"
	MetricSendFailures   = "push_send_failures"
	MetricSystemHealth   = "system_health"
)

// SystemMetric is one timestamped gauge reading. Rows are append-only:
// each write is a new row, never an upsert.
type SystemMetric struct {
	ID        string         `json:"id"`
	Name      string         `json:"metric_name"`
	Value     float64        `json:"metric_value"`
	Unit      string         `json:"metric_unit"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewSystemMetric creates a gauge reading stamped at the given time.
func NewSystemMetric(name string, value float64, unit string, at time.Time) *SystemMetric {
	return &SystemMetric{
		ID:        uuid.NewString(),
		Name:      name,
		Value:     value,
		Unit:      unit,
		Timestamp: at,
	}
}

// AnalyticsSnapshot is a periodic rollup row kept for historical analysis.
type AnalyticsSnapshot struct {
	ID           string         `json:"id"`
	SnapshotType string         `json:"snapshot_type"` // hourly, daily
	SnapshotDate time.Time      `json:"snapshot_date"`
	UserID       string         `json:"user_id,omitempty"` // empty for system-wide
	Metrics      map[string]any `json:"metrics"`
	CreatedAt    time.Time      `json:"created_at"`
}

// IntegrationLog records one interaction with an external system (LMS sync).
type IntegrationLog struct {
	ID              string         `json:"id"`
	IntegrationType string         `json:"integration_type"`
	Action          string         `json:"action"`
	Status          string         `json:"status"` // success, error, pending
	UserID          string         `json:"user_id,omitempty"`
	Timestamp       time.Time      `json:"timestamp"`
	RequestData     map[string]any `json:"request_data,omitempty"`
	ResponseData    map[string]any `json:"response_data,omitempty"`
	ErrorMessage    string         `json:"error_message,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// ALERTS
// ══════════════════════════════════════════════════════════════════════════════

// Alert types and severities.
const (
	AlertEngagementDrop = "engagement_drop"
	AlertLowProgress    = "low_progress"

	RiskHigh   = "high"
	RiskMedium = "medium"
)

// Alert is an ephemeral at-risk flag produced by the alert evaluator.
// Alerts are computed on demand and never persisted.
type Alert struct {
	Type           string  `json:"type"`
	UserID         string  `json:"user_id"`
	LearningPathID string  `json:"learning_path_id,omitempty"`
	RiskLevel      string  `json:"risk_level"`
	RiskScore      float64 `json:"risk_score,omitempty"`
	Progress       float64 `json:"progress,omitempty"`
	ActivityCount  int     `json:"activity_count,omitempty"`
	LastActivity   string  `json:"last_activity,omitempty"`
	StartedAt      string  `json:"started_at,omitempty"`
	Recommendation string  `json:"recommendation"`
}
