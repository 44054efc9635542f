package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/edupulse/edupulse-analytics/internal/domain/analytics"
	"github.com/edupulse/edupulse-analytics/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// COLLABORATOR CONTRACTS
// ══════════════════════════════════════════════════════════════════════════════

// Cache is the slice of the cache collaborator the realtime core needs:
// opaque string values with per-key expiration.
type Cache interface {
	SetString(ctx context.Context, key, value string, ttl time.Duration) error
	GetString(ctx context.Context, key string) (string, error)
}

// Cache TTLs for realtime data.
const (
	// TTLLiveEvent is how long a transient event record stays in the cache.
	TTLLiveEvent = time.Hour

	// TTLHourlyAggregate is how long an hourly aggregate stays in the cache.
	TTLHourlyAggregate = 24 * time.Hour

	// TTLRealtimeAnalytics is how long cached per-user analytics stay fresh.
	TTLRealtimeAnalytics = 5 * time.Minute
)

// LiveEventKey builds the cache key for one transient event record.
func LiveEventKey(userID string, at time.Time) string {
	return fmt.Sprintf("live_event:%s:%d", userID, at.UnixNano())
}

// UserMetricsKey builds the cache key for an hourly aggregate.
func UserMetricsKey(userID, hourBucket string) string {
	return fmt.Sprintf("user_metrics:%s:%s", userID, hourBucket)
}

// RealtimeAnalyticsKey builds the cache key for cached per-user analytics.
func RealtimeAnalyticsKey(userID string) string {
	return fmt.Sprintf("analytics:%s:realtime", userID)
}

// AnalyticsChannel names the push channel carrying a user's analytics updates.
func AnalyticsChannel(userID string) string {
	return "analytics:" + userID
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVICE
// ══════════════════════════════════════════════════════════════════════════════

// Config holds tunables for the realtime core.
type Config struct {
	// MaxBufferedEvents caps each user's event queue (drop-oldest overflow).
	MaxBufferedEvents int

	// SessionTimeout is the inactivity threshold for session eviction.
	SessionTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxBufferedEvents: DefaultMaxBufferedEvents,
		SessionTimeout:    30 * time.Minute,
	}
}

// Service is the event ingestion pipeline plus the live dashboard queries.
// It owns no background loops itself; the scheduler jobs drive draining,
// broadcasting, reaping, and metric persistence against it.
type Service struct {
	registry *Registry
	tracker  *EngagementTracker
	buffers  *EventBuffers

	cache       Cache
	activities  analytics.ActivityRepository
	engagements analytics.EngagementRepository
	progress    analytics.ProgressRepository

	alerts *AlertEvaluator

	config    Config
	logger    *slog.Logger
	startedAt time.Time
	now       func() time.Time
}

// NewService wires the realtime core together.
func NewService(
	registry *Registry,
	cache Cache,
	activities analytics.ActivityRepository,
	engagements analytics.EngagementRepository,
	progress analytics.ProgressRepository,
	config Config,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if config.MaxBufferedEvents <= 0 {
		config.MaxBufferedEvents = DefaultMaxBufferedEvents
	}
	if config.SessionTimeout <= 0 {
		config.SessionTimeout = 30 * time.Minute
	}

	return &Service{
		registry:    registry,
		tracker:     NewEngagementTracker(),
		buffers:     NewEventBuffers(config.MaxBufferedEvents),
		cache:       cache,
		activities:  activities,
		engagements: engagements,
		progress:    progress,
		alerts:      NewAlertEvaluator(activities, progress, logger),
		config:      config,
		logger:      logger,
		startedAt:   time.Now().UTC(),
		now:         timeutil.Now,
	}
}

// Registry exposes the connection registry for the transport layer.
func (s *Service) Registry() *Registry { return s.registry }

// Tracker exposes the engagement tracker for the scheduler jobs.
func (s *Service) Tracker() *EngagementTracker { return s.tracker }

// Buffers exposes the event buffers for the scheduler jobs.
func (s *Service) Buffers() *EventBuffers { return s.buffers }

// Alerts exposes the alert evaluator.
func (s *Service) Alerts() *AlertEvaluator { return s.alerts }

// ══════════════════════════════════════════════════════════════════════════════
// INGESTION PIPELINE
// ══════════════════════════════════════════════════════════════════════════════

// TrackLiveEvent runs the ingestion pipeline for one inbound event:
// timestamp, transient cache write, buffer append, session marker,
// engagement counters, and role fan-out. Every step after timestamping
// is independent; a cache outage is logged and does not stop the rest.
func (s *Service) TrackLiveEvent(ctx context.Context, userID string, event Event) {
	now := s.now()

	record := map[string]any{
		"user_id":   userID,
		"timestamp": timeutil.FormatRFC3339(now),
	}
	for k, v := range event {
		record[k] = v
	}
	if data, err := json.Marshal(record); err != nil {
		s.logger.Error("live event marshal failed", "user_id", userID, "error", err)
	} else if err := s.cache.SetString(ctx, LiveEventKey(userID, now), string(data), TTLLiveEvent); err != nil {
		s.logger.Error("live event cache write failed", "user_id", userID, "error", err)
	}

	s.buffers.Append(userID, BufferedEvent{Timestamp: now, Event: event})
	s.tracker.MarkActive(userID, now)
	s.tracker.Record(userID, event, now)

	message := UserEvent(userID, event, now)
	s.registry.BroadcastToRole(RoleAdmin, message)
	s.registry.BroadcastToRole(RoleTeacher, message)
}

// ProcessEvent persists one event to the store: an append-only activity
// row plus engagement/progress updates when the payload names a course or
// learning path. Store failures abandon the write for this event only.
func (s *Service) ProcessEvent(ctx context.Context, userID string, event Event) error {
	now := s.now()

	activity := analytics.NewUserActivity(userID, event, now)
	if err := s.activities.SaveActivity(ctx, activity); err != nil {
		return fmt.Errorf("save activity: %w", err)
	}

	if courseID, ok := event["course_id"].(string); ok && courseID != "" {
		if err := s.updateCourseEngagement(ctx, userID, courseID, event, now); err != nil {
			s.logger.Error("course engagement update failed",
				"user_id", userID, "course_id", courseID, "error", err)
		}
	}

	if pathID, ok := event["learning_path_id"].(string); ok && pathID != "" {
		if err := s.updatePathProgress(ctx, userID, pathID, event, now); err != nil {
			s.logger.Error("learning path progress update failed",
				"user_id", userID, "learning_path_id", pathID, "error", err)
		}
	}

	s.publishRealtimeAnalytics(ctx, userID)

	return nil
}

// publishRealtimeAnalytics refreshes the cached per-user snapshot after a
// persisted event and pushes it to the user's analytics channel. Best
// effort: failures are logged and never surface to the triggering event.
func (s *Service) publishRealtimeAnalytics(ctx context.Context, userID string) {
	snapshot, err := s.GetUserAnalytics(ctx, userID, "1h")
	if err != nil {
		s.logger.Error("realtime analytics refresh failed", "user_id", userID, "error", err)
		return
	}

	if data, err := json.Marshal(snapshot); err != nil {
		s.logger.Error("realtime analytics marshal failed", "user_id", userID, "error", err)
	} else if err := s.cache.SetString(ctx, RealtimeAnalyticsKey(userID), string(data), TTLRealtimeAnalytics); err != nil {
		s.logger.Error("realtime analytics cache write failed", "user_id", userID, "error", err)
	}

	s.registry.BroadcastToChannel(AnalyticsChannel(userID), AnalyticsUpdate(snapshot, s.now()))
}

func (s *Service) updateCourseEngagement(ctx context.Context, userID, courseID string, event Event, now time.Time) error {
	engagement, err := s.engagements.GetEngagement(ctx, userID, courseID)
	if err != nil {
		if !analytics.IsNotFound(err) {
			return err
		}
		engagement = &analytics.CourseEngagement{
			UserID:   userID,
			CourseID: courseID,
		}
	}

	if event.Action() == analytics.ActionModuleCompleted {
		increment := 5.0
		if v, ok := event["progress_increment"].(float64); ok {
			increment = v
		}
		engagement.Progress = math.Min(100, engagement.Progress+increment)
	}
	engagement.TimeSpent += event.Duration()
	engagement.LastAccessed = now
	if engagement.Progress >= 100 && engagement.CompletedAt == nil {
		engagement.CompletedAt = &now
	}

	return s.engagements.UpsertEngagement(ctx, engagement)
}

func (s *Service) updatePathProgress(ctx context.Context, userID, pathID string, event Event, now time.Time) error {
	progress, err := s.progress.GetProgress(ctx, userID, pathID)
	if err != nil {
		if !analytics.IsNotFound(err) {
			return err
		}
		progress = &analytics.StudentProgress{
			UserID:         userID,
			LearningPathID: pathID,
			StartedAt:      now,
		}
	}

	if event.Action() == analytics.ActionMilestoneDone {
		increment := 10.0
		if v, ok := event["progress_increment"].(float64); ok {
			increment = v
		}
		progress.CurrentMilestone++
		progress.Progress = math.Min(100, progress.Progress+increment)
	}
	progress.TimeSpent += event.Duration()
	progress.LastActivity = now
	if progress.Progress >= 100 && progress.CompletedAt == nil {
		progress.CompletedAt = &now
	}

	return s.progress.UpsertProgress(ctx, progress)
}

// ══════════════════════════════════════════════════════════════════════════════
// LIVE QUERIES
// ══════════════════════════════════════════════════════════════════════════════

// ActivitySummary condenses a user's recent activity rows.
type ActivitySummary struct {
	TotalActivities  int    `json:"total_activities"`
	TotalTime        int    `json:"total_time"`
	MostCommonAction string `json:"most_common_action,omitempty"`
	UniqueResources  int    `json:"unique_resources"`
}

// UserAnalytics is the per-user realtime analytics snapshot.
type UserAnalytics struct {
	UserID           string                        `json:"user_id"`
	Timeframe        string                        `json:"timeframe"`
	ActivitySummary  ActivitySummary               `json:"activity_summary"`
	CourseEngagement []*analytics.CourseEngagement `json:"course_engagement"`
	GeneratedAt      string                        `json:"generated_at"`
}

// GetUserAnalytics computes one user's realtime view over the timeframe:
// a summary of their recent activity plus every course engagement row.
func (s *Service) GetUserAnalytics(ctx context.Context, userID, timeframe string) (*UserAnalytics, error) {
	now := s.now()
	cutoff := timeutil.TimeframeCutoff(now, timeframe)

	activities, err := s.activities.GetActivitiesByUser(ctx, userID, cutoff, now)
	if err != nil {
		return nil, fmt.Errorf("load activities: %w", err)
	}
	engagements, err := s.engagements.GetEngagementsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load engagements: %w", err)
	}

	return &UserAnalytics{
		UserID:           userID,
		Timeframe:        timeframe,
		ActivitySummary:  summarizeActivities(activities),
		CourseEngagement: engagements,
		GeneratedAt:      timeutil.FormatRFC3339(now),
	}, nil
}

func summarizeActivities(activities []*analytics.UserActivity) ActivitySummary {
	summary := ActivitySummary{TotalActivities: len(activities)}

	actionCounts := make(map[string]int)
	resources := make(map[string]struct{})
	for _, a := range activities {
		summary.TotalTime += a.Duration
		actionCounts[a.Action]++
		if a.ResourceID != "" {
			resources[a.ResourceID] = struct{}{}
		}
	}

	top := 0
	for action, count := range actionCounts {
		if count > top {
			top = count
			summary.MostCommonAction = action
		}
	}
	summary.UniqueResources = len(resources)
	return summary
}

// EngagementMetrics is the realtime engagement view over a timeframe.
type EngagementMetrics struct {
	ActiveUsers      int                                  `json:"active_users"`
	PageViews        int                                  `json:"page_views"`
	Interactions     int                                  `json:"interactions"`
	AvgSessionTime   float64                              `json:"avg_session_time"`
	InteractionRate  float64                              `json:"interaction_rate"`
	CourseEngagement []*analytics.CourseEngagementSummary `json:"course_engagement"`
	Timestamp        string                               `json:"timestamp"`
}

// GetEngagementMetrics computes realtime engagement over the timeframe
// ("90m", "2h", "3d", "1w"; anything else defaults to one hour).
func (s *Service) GetEngagementMetrics(ctx context.Context, timeframe string) (*EngagementMetrics, error) {
	now := s.now()
	cutoff := timeutil.TimeframeCutoff(now, timeframe)

	activeUsers, err := s.activities.CountActiveUsers(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("count active users: %w", err)
	}
	pageViews, err := s.activities.CountByAction(ctx, analytics.ActionPageView, cutoff)
	if err != nil {
		return nil, fmt.Errorf("count page views: %w", err)
	}
	interactions, err := s.activities.CountInteractions(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("count interactions: %w", err)
	}
	avgSession, err := s.activities.AvgDuration(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("avg session time: %w", err)
	}
	courses, err := s.engagements.SummarizeByCourse(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("course engagement: %w", err)
	}

	return &EngagementMetrics{
		ActiveUsers:      activeUsers,
		PageViews:        pageViews,
		Interactions:     interactions,
		AvgSessionTime:   avgSession,
		InteractionRate:  engagementRate(interactions, pageViews),
		CourseEngagement: courses,
		Timestamp:        timeutil.FormatRFC3339(now),
	}, nil
}

// ProgressTracking is the live learning-path progress view.
type ProgressTracking struct {
	TotalLearningPaths int                `json:"total_learning_paths"`
	CompletedPaths     int                `json:"completed_paths"`
	InProgressPaths    int                `json:"in_progress_paths"`
	CompletionRate     float64            `json:"completion_rate"`
	AverageProgress    float64            `json:"average_progress"`
	RecentCompletions  []RecentCompletion `json:"recent_completions"`
	Timestamp          string             `json:"timestamp"`
}

// RecentCompletion is a learning path completed within the last hour.
type RecentCompletion struct {
	UserID         string  `json:"user_id"`
	LearningPathID string  `json:"learning_path_id"`
	Progress       float64 `json:"progress"`
	CompletedAt    string  `json:"completed_at"`
}

// GetProgressTracking summarizes learning-path progress with activity in
// the last 24 hours, for one user or (empty userID) all users.
func (s *Service) GetProgressTracking(ctx context.Context, userID string) (*ProgressTracking, error) {
	now := s.now()

	rows, err := s.progress.GetActiveProgress(ctx, userID, now.Add(-24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("active progress: %w", err)
	}

	tracking := &ProgressTracking{
		TotalLearningPaths: len(rows),
		RecentCompletions:  make([]RecentCompletion, 0),
		Timestamp:          timeutil.FormatRFC3339(now),
	}

	var progressSum float64
	recentCutoff := now.Add(-time.Hour)
	for _, row := range rows {
		progressSum += row.Progress
		switch {
		case row.Progress >= 100:
			tracking.CompletedPaths++
		case row.Progress > 0:
			tracking.InProgressPaths++
		}
		if row.CompletedAt != nil && !row.CompletedAt.Before(recentCutoff) {
			tracking.RecentCompletions = append(tracking.RecentCompletions, RecentCompletion{
				UserID:         row.UserID,
				LearningPathID: row.LearningPathID,
				Progress:       row.Progress,
				CompletedAt:    timeutil.FormatRFC3339(*row.CompletedAt),
			})
		}
	}

	total := math.Max(float64(len(rows)), 1)
	tracking.CompletionRate = float64(tracking.CompletedPaths) / total * 100
	tracking.AverageProgress = progressSum / total

	return tracking, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DASHBOARDS
// ══════════════════════════════════════════════════════════════════════════════

// GetDashboardData assembles the live dashboard for a user by role.
// Each section degrades independently; a failed query leaves its section
// empty rather than failing the whole dashboard.
func (s *Service) GetDashboardData(ctx context.Context, userID, role string) map[string]any {
	switch role {
	case RoleAdmin:
		return s.adminDashboard(ctx)
	case RoleTeacher:
		return s.teacherDashboard(ctx)
	default:
		return s.studentDashboard(ctx, userID)
	}
}

func (s *Service) adminDashboard(ctx context.Context) map[string]any {
	dashboard := map[string]any{
		"active_users":  s.tracker.ActiveCount(),
		"system_status": s.SystemStatus(),
	}
	s.fillSharedSections(ctx, dashboard)
	return dashboard
}

func (s *Service) teacherDashboard(ctx context.Context) map[string]any {
	dashboard := map[string]any{}
	s.fillSharedSections(ctx, dashboard)
	return dashboard
}

func (s *Service) fillSharedSections(ctx context.Context, dashboard map[string]any) {
	if metrics, err := s.GetEngagementMetrics(ctx, "1h"); err != nil {
		s.logger.Error("dashboard engagement metrics failed", "error", err)
	} else {
		dashboard["engagement_metrics"] = metrics
	}
	if tracking, err := s.GetProgressTracking(ctx, ""); err != nil {
		s.logger.Error("dashboard progress tracking failed", "error", err)
	} else {
		dashboard["progress_tracking"] = tracking
	}
	if alerts, err := s.alerts.Evaluate(ctx, s.now()); err != nil {
		s.logger.Error("dashboard alerts failed", "error", err)
	} else {
		dashboard["predictive_alerts"] = alerts
	}
}

func (s *Service) studentDashboard(ctx context.Context, userID string) map[string]any {
	dashboard := map[string]any{}
	if tracking, err := s.GetProgressTracking(ctx, userID); err != nil {
		s.logger.Error("dashboard progress tracking failed", "user_id", userID, "error", err)
	} else {
		dashboard["progress_tracking"] = tracking
	}

	if summary, ok := s.tracker.Summary(userID, s.now()); ok {
		dashboard["engagement_summary"] = summary
	} else {
		dashboard["engagement_summary"] = map[string]any{}
	}

	return dashboard
}

// SystemStatus reports in-process gauges for the admin dashboard.
func (s *Service) SystemStatus() map[string]any {
	return map[string]any{
		"active_sessions":     s.tracker.ActiveCount(),
		"metrics_buffer_size": s.buffers.QueuedCount(),
		"push_send_failures":  s.registry.SendFailures(),
		"uptime_seconds":      int(time.Since(s.startedAt).Seconds()),
	}
}
