package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edupulse/edupulse-analytics/internal/domain/analytics"
)

func TestAlertEvaluator_EngagementDrop(t *testing.T) {
	now := time.Date(2025, 3, 7, 12, 0, 0, 0, time.UTC)

	activities := &fakeActivityRepo{
		stats: []*analytics.ActivityStats{
			// 4 idle days, 1 activity: 4*0.3 + 4*0.2 = 2.0, clamped to 1.0
			{UserID: "risky", ActivityCount: 1, LastActivity: now.Add(-4 * 24 * time.Hour)},
			// 1 idle day, 4 activities: 0.3 + 0.2 = 0.5, below threshold
			{UserID: "fine", ActivityCount: 4, LastActivity: now.Add(-24 * time.Hour)},
			// 2 idle days, 3 activities: 0.6 + 0.4 = 1.0 clamped, high
			{UserID: "idle", ActivityCount: 3, LastActivity: now.Add(-2 * 24 * time.Hour)},
		},
	}
	evaluator := NewAlertEvaluator(activities, newFakeProgressRepo(), nil)

	alerts, err := evaluator.Evaluate(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, alerts, 2)

	byUser := make(map[string]*analytics.Alert)
	for _, a := range alerts {
		byUser[a.UserID] = a
	}

	risky := byUser["risky"]
	require.NotNil(t, risky)
	assert.Equal(t, analytics.AlertEngagementDrop, risky.Type)
	assert.Equal(t, analytics.RiskHigh, risky.RiskLevel)
	assert.Equal(t, 1.0, risky.RiskScore)
	assert.Equal(t, 1, risky.ActivityCount)

	assert.NotContains(t, byUser, "fine")
	assert.Contains(t, byUser, "idle")
}

func TestAlertEvaluator_MediumRisk(t *testing.T) {
	now := time.Date(2025, 3, 7, 12, 0, 0, 0, time.UTC)

	activities := &fakeActivityRepo{
		stats: []*analytics.ActivityStats{
			// 1 idle day, 3 activities: 0.3 + 0.4 = 0.7, medium
			{UserID: "slipping", ActivityCount: 3, LastActivity: now.Add(-24 * time.Hour)},
		},
	}
	evaluator := NewAlertEvaluator(activities, newFakeProgressRepo(), nil)

	alerts, err := evaluator.Evaluate(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	assert.Equal(t, analytics.RiskMedium, alerts[0].RiskLevel)
	assert.InDelta(t, 0.7, alerts[0].RiskScore, 1e-9)
}

func TestAlertEvaluator_LowProgress(t *testing.T) {
	now := time.Date(2025, 3, 7, 12, 0, 0, 0, time.UTC)

	progress := newFakeProgressRepo()
	progress.stalled = []*analytics.StudentProgress{
		{
			UserID:         "stuck",
			LearningPathID: "path-1",
			Progress:       15,
			StartedAt:      now.Add(-8 * 24 * time.Hour),
		},
	}
	evaluator := NewAlertEvaluator(&fakeActivityRepo{}, progress, nil)

	alerts, err := evaluator.Evaluate(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	alert := alerts[0]
	assert.Equal(t, analytics.AlertLowProgress, alert.Type)
	assert.Equal(t, "stuck", alert.UserID)
	assert.Equal(t, "path-1", alert.LearningPathID)
	assert.Equal(t, analytics.RiskMedium, alert.RiskLevel)
	assert.Equal(t, 15.0, alert.Progress)
}

func TestAlertEvaluator_NoAlerts(t *testing.T) {
	evaluator := NewAlertEvaluator(&fakeActivityRepo{}, newFakeProgressRepo(), nil)

	alerts, err := evaluator.Evaluate(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Empty(t, alerts)
}
