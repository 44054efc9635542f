package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edupulse/edupulse-analytics/internal/domain/analytics"
)

func newTestService(cache Cache, activities *fakeActivityRepo, engagements *fakeEngagementRepo, progress *fakeProgressRepo) *Service {
	return NewService(
		NewRegistry(nil),
		cache,
		activities,
		engagements,
		progress,
		DefaultConfig(),
		nil,
	)
}

func TestService_TrackLiveEvent(t *testing.T) {
	cache := newFakeCache()
	service := newTestService(cache, &fakeActivityRepo{}, newFakeEngagementRepo(), newFakeProgressRepo())

	staff := &fakeTransport{}
	service.Registry().Connect("t1", RoleTeacher, staff)

	service.TrackLiveEvent(context.Background(), "u1", Event{"action": "page_view"})

	// Event is buffered for aggregation and cached as a live record
	assert.Equal(t, 1, service.Buffers().QueuedCount())
	assert.Len(t, cache.values, 1)
	for key, value := range cache.values {
		assert.Contains(t, key, "live_event:u1:")
		var record map[string]any
		require.NoError(t, json.Unmarshal([]byte(value), &record))
		assert.Equal(t, "u1", record["user_id"])
		assert.Equal(t, "page_view", record["action"])
		assert.NotEmpty(t, record["timestamp"])
	}

	// Session counters observe it
	assert.Equal(t, 1, service.Tracker().ActiveCount())

	// Staff connections receive the fan-out after their welcome message
	counts := staff.typeCounts()
	assert.Equal(t, 1, counts[MsgUserEvent])
	assert.Equal(t, 2, staff.messageCount())
}

func TestService_TrackLiveEvent_CacheOutage(t *testing.T) {
	cache := newFakeCache()
	cache.errs = true
	service := newTestService(cache, &fakeActivityRepo{}, newFakeEngagementRepo(), newFakeProgressRepo())

	// A cache failure never loses the event for aggregation
	service.TrackLiveEvent(context.Background(), "u1", Event{"action": "click"})

	assert.Equal(t, 1, service.Buffers().QueuedCount())
	assert.Equal(t, 1, service.Tracker().ActiveCount())
}

func TestService_ProcessEvent_SavesActivity(t *testing.T) {
	activities := &fakeActivityRepo{}
	service := newTestService(newFakeCache(), activities, newFakeEngagementRepo(), newFakeProgressRepo())

	err := service.ProcessEvent(context.Background(), "u1", Event{"action": "page_view"})
	require.NoError(t, err)

	require.Len(t, activities.activities, 1)
	assert.Equal(t, "u1", activities.activities[0].UserID)
	assert.Equal(t, "page_view", activities.activities[0].Action)
}

func TestService_ProcessEvent_CourseEngagement(t *testing.T) {
	engagements := newFakeEngagementRepo()
	service := newTestService(newFakeCache(), &fakeActivityRepo{}, engagements, newFakeProgressRepo())
	ctx := context.Background()

	err := service.ProcessEvent(ctx, "u1", Event{
		"action":    "module_completed",
		"course_id": "go-101",
		"duration":  float64(300),
	})
	require.NoError(t, err)

	row, err := engagements.GetEngagement(ctx, "u1", "go-101")
	require.NoError(t, err)
	assert.Equal(t, 5.0, row.Progress)
	assert.Equal(t, 300, row.TimeSpent)
	assert.Nil(t, row.CompletedAt)

	// Progress caps at 100 and sets the completion timestamp
	for i := 0; i < 25; i++ {
		err = service.ProcessEvent(ctx, "u1", Event{
			"action":    "module_completed",
			"course_id": "go-101",
		})
		require.NoError(t, err)
	}

	row, err = engagements.GetEngagement(ctx, "u1", "go-101")
	require.NoError(t, err)
	assert.Equal(t, 100.0, row.Progress)
	assert.NotNil(t, row.CompletedAt)
}

func TestService_ProcessEvent_CustomIncrement(t *testing.T) {
	engagements := newFakeEngagementRepo()
	service := newTestService(newFakeCache(), &fakeActivityRepo{}, engagements, newFakeProgressRepo())
	ctx := context.Background()

	err := service.ProcessEvent(ctx, "u1", Event{
		"action":             "module_completed",
		"course_id":          "go-101",
		"progress_increment": float64(40),
	})
	require.NoError(t, err)

	row, err := engagements.GetEngagement(ctx, "u1", "go-101")
	require.NoError(t, err)
	assert.Equal(t, 40.0, row.Progress)
}

func TestService_ProcessEvent_PathProgress(t *testing.T) {
	progress := newFakeProgressRepo()
	service := newTestService(newFakeCache(), &fakeActivityRepo{}, newFakeEngagementRepo(), progress)
	ctx := context.Background()

	err := service.ProcessEvent(ctx, "u1", Event{
		"action":           "milestone_completed",
		"learning_path_id": "backend-track",
	})
	require.NoError(t, err)

	row, err := progress.GetProgress(ctx, "u1", "backend-track")
	require.NoError(t, err)
	assert.Equal(t, 10.0, row.Progress)
	assert.Equal(t, 1, row.CurrentMilestone)
	assert.False(t, row.StartedAt.IsZero())
}

func TestService_ProcessEvent_PublishesRealtimeAnalytics(t *testing.T) {
	cache := newFakeCache()
	service := newTestService(cache, &fakeActivityRepo{}, newFakeEngagementRepo(), newFakeProgressRepo())

	viewer := &fakeTransport{}
	registry := service.Registry()
	registry.Connect("u1", RoleStudent, viewer)
	registry.Subscribe("u1", []string{AnalyticsChannel("u1")})

	err := service.ProcessEvent(context.Background(), "u1", Event{
		"action":      "page_view",
		"resource_id": "lesson-9",
		"duration":    float64(30),
	})
	require.NoError(t, err)

	// The refreshed snapshot lands in the cache under the realtime key
	raw, ok := cache.values[RealtimeAnalyticsKey("u1")]
	require.True(t, ok)
	var snapshot UserAnalytics
	require.NoError(t, json.Unmarshal([]byte(raw), &snapshot))
	assert.Equal(t, "u1", snapshot.UserID)
	assert.Equal(t, "1h", snapshot.Timeframe)
	assert.Equal(t, 1, snapshot.ActivitySummary.TotalActivities)
	assert.Equal(t, 30, snapshot.ActivitySummary.TotalTime)
	assert.Equal(t, "page_view", snapshot.ActivitySummary.MostCommonAction)
	assert.Equal(t, 1, snapshot.ActivitySummary.UniqueResources)

	// Subscribers on the user's analytics channel get the push
	counts := viewer.typeCounts()
	assert.Equal(t, 1, counts[MsgAnalyticsUpdate])
}

func TestService_GetEngagementMetrics(t *testing.T) {
	activities := &fakeActivityRepo{}
	service := newTestService(newFakeCache(), activities, newFakeEngagementRepo(), newFakeProgressRepo())
	ctx := context.Background()
	now := time.Now().UTC()

	for _, action := range []string{"page_view", "page_view", "click", "quiz_attempt"} {
		require.NoError(t, activities.SaveActivity(ctx, analytics.NewUserActivity("u1", map[string]any{"action": action}, now)))
	}

	metrics, err := service.GetEngagementMetrics(ctx, "1h")
	require.NoError(t, err)

	assert.Equal(t, 1, metrics.ActiveUsers)
	assert.Equal(t, 2, metrics.PageViews)
	assert.Equal(t, 2, metrics.Interactions)
	assert.Equal(t, 100.0, metrics.InteractionRate)
	assert.NotEmpty(t, metrics.Timestamp)
}

func TestService_GetProgressTracking(t *testing.T) {
	progress := newFakeProgressRepo()
	service := newTestService(newFakeCache(), &fakeActivityRepo{}, newFakeEngagementRepo(), progress)
	ctx := context.Background()
	now := time.Now().UTC()

	completedAt := now.Add(-30 * time.Minute)
	require.NoError(t, progress.UpsertProgress(ctx, &analytics.StudentProgress{
		UserID: "u1", LearningPathID: "p1", Progress: 100,
		LastActivity: now, CompletedAt: &completedAt,
	}))
	require.NoError(t, progress.UpsertProgress(ctx, &analytics.StudentProgress{
		UserID: "u1", LearningPathID: "p2", Progress: 50, LastActivity: now,
	}))
	require.NoError(t, progress.UpsertProgress(ctx, &analytics.StudentProgress{
		UserID: "u2", LearningPathID: "p3", Progress: 0, LastActivity: now,
	}))

	tracking, err := service.GetProgressTracking(ctx, "")
	require.NoError(t, err)

	assert.Equal(t, 3, tracking.TotalLearningPaths)
	assert.Equal(t, 1, tracking.CompletedPaths)
	assert.Equal(t, 1, tracking.InProgressPaths)
	assert.InDelta(t, 33.33, tracking.CompletionRate, 0.01)
	assert.Equal(t, 50.0, tracking.AverageProgress)
	require.Len(t, tracking.RecentCompletions, 1)
	assert.Equal(t, "p1", tracking.RecentCompletions[0].LearningPathID)
}

func TestService_GetProgressTracking_Empty(t *testing.T) {
	service := newTestService(newFakeCache(), &fakeActivityRepo{}, newFakeEngagementRepo(), newFakeProgressRepo())

	tracking, err := service.GetProgressTracking(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, 0, tracking.TotalLearningPaths)
	assert.Equal(t, 0.0, tracking.CompletionRate)
	assert.Equal(t, 0.0, tracking.AverageProgress)
}

func TestService_GetDashboardData_ByRole(t *testing.T) {
	service := newTestService(newFakeCache(), &fakeActivityRepo{}, newFakeEngagementRepo(), newFakeProgressRepo())
	ctx := context.Background()

	admin := service.GetDashboardData(ctx, "a1", RoleAdmin)
	assert.Contains(t, admin, "active_users")
	assert.Contains(t, admin, "system_status")
	assert.Contains(t, admin, "engagement_metrics")
	assert.Contains(t, admin, "predictive_alerts")

	teacher := service.GetDashboardData(ctx, "t1", RoleTeacher)
	assert.NotContains(t, teacher, "system_status")
	assert.Contains(t, teacher, "engagement_metrics")

	student := service.GetDashboardData(ctx, "s1", RoleStudent)
	assert.Contains(t, student, "progress_tracking")
	assert.Contains(t, student, "engagement_summary")
	assert.NotContains(t, student, "engagement_metrics")
}

func TestService_SystemStatus(t *testing.T) {
	service := newTestService(newFakeCache(), &fakeActivityRepo{}, newFakeEngagementRepo(), newFakeProgressRepo())

	service.TrackLiveEvent(context.Background(), "u1", Event{"action": "page_view"})

	status := service.SystemStatus()
	assert.Equal(t, 1, status["active_sessions"])
	assert.Equal(t, 1, status["metrics_buffer_size"])
	assert.Equal(t, int64(0), status["push_send_failures"])
}
