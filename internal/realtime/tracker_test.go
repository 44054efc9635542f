package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEngagementTracker_Record(t *testing.T) {
	tracker := NewEngagementTracker()
	now := time.Date(2025, 3, 7, 12, 0, 0, 0, time.UTC)

	tracker.Record("u1", Event{"action": "page_view"}, now)
	tracker.Record("u1", Event{"action": "page_view"}, now.Add(time.Minute))
	tracker.Record("u1", Event{"action": "page_view"}, now.Add(2*time.Minute))
	tracker.Record("u1", Event{"action": "click", "duration": float64(5)}, now.Add(3*time.Minute))
	tracker.Record("u1", Event{"action": "click", "duration": float64(5)}, now.Add(4*time.Minute))

	summary, ok := tracker.Summary("u1", now.Add(5*time.Minute))
	assert.True(t, ok)
	assert.Equal(t, 3, summary.PageViews)
	assert.Equal(t, 2, summary.Interactions)
	assert.Equal(t, 10, summary.TimeSpent)
	assert.Equal(t, 300.0, summary.SessionDuration)
	assert.Equal(t, 66.67, summary.EngagementRate)
}

func TestEngagementTracker_RateWithoutPageViews(t *testing.T) {
	tracker := NewEngagementTracker()
	now := time.Now().UTC()

	// Floor of one page view keeps the rate finite
	tracker.Record("u1", Event{"action": "click"}, now)
	tracker.Record("u1", Event{"action": "scroll"}, now)

	summary, ok := tracker.Summary("u1", now)
	assert.True(t, ok)
	assert.Equal(t, 0, summary.PageViews)
	assert.Equal(t, 200.0, summary.EngagementRate)
}

func TestEngagementTracker_UnknownActions(t *testing.T) {
	tracker := NewEngagementTracker()
	now := time.Now().UTC()

	tracker.Record("u1", Event{"action": "page_blur", "duration": float64(30)}, now)
	tracker.Record("u1", Event{}, now)

	summary, ok := tracker.Summary("u1", now)
	assert.True(t, ok)
	assert.Equal(t, 0, summary.PageViews)
	assert.Equal(t, 0, summary.Interactions)
	assert.Equal(t, 30, summary.TimeSpent)
}

func TestEngagementTracker_SummaryUnknownUser(t *testing.T) {
	tracker := NewEngagementTracker()

	_, ok := tracker.Summary("missing", time.Now().UTC())
	assert.False(t, ok)
}

func TestEngagementTracker_EvictStale(t *testing.T) {
	tracker := NewEngagementTracker()
	now := time.Date(2025, 3, 7, 12, 0, 0, 0, time.UTC)

	tracker.MarkActive("stale", now.Add(-31*time.Minute))
	tracker.Record("stale", Event{"action": "page_view"}, now.Add(-31*time.Minute))
	tracker.MarkActive("fresh", now.Add(-29*time.Minute))
	tracker.Record("fresh", Event{"action": "page_view"}, now.Add(-29*time.Minute))

	evicted := tracker.EvictStale(now, 30*time.Minute)

	assert.Equal(t, 1, evicted)
	assert.Equal(t, 1, tracker.ActiveCount())

	_, ok := tracker.Summary("stale", now)
	assert.False(t, ok)
	_, ok = tracker.Summary("fresh", now)
	assert.True(t, ok)
}

func TestEngagementTracker_LastSeen(t *testing.T) {
	tracker := NewEngagementTracker()
	now := time.Now().UTC()

	tracker.MarkActive("u1", now)

	seen, ok := tracker.LastSeen("u1")
	assert.True(t, ok)
	assert.Equal(t, now, seen)

	_, ok = tracker.LastSeen("u2")
	assert.False(t, ok)
}
