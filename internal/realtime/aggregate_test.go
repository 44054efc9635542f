package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputeHourlyAggregate(t *testing.T) {
	now := time.Date(2025, 3, 7, 14, 30, 0, 0, time.UTC)

	events := []BufferedEvent{
		{Timestamp: now, Event: Event{"action": "page_view"}},
		{Timestamp: now, Event: Event{"action": "page_view", "duration": float64(10)}},
		{Timestamp: now, Event: Event{"action": "click"}},
		{Timestamp: now, Event: Event{"action": "quiz_attempt", "duration": float64(120)}},
		{Timestamp: now, Event: Event{"action": "page_blur"}},
	}

	agg := ComputeHourlyAggregate("u1", events, now)

	assert.Equal(t, "u1", agg.UserID)
	assert.Equal(t, "2025030714", agg.Hour)
	assert.Equal(t, 5, agg.EventCount)
	assert.Equal(t, 130, agg.TotalDuration)
	assert.Equal(t, 2, agg.PageViews)
	assert.Equal(t, 2, agg.Interactions)
}

func TestComputeHourlyAggregate_Empty(t *testing.T) {
	now := time.Date(2025, 3, 7, 14, 30, 0, 0, time.UTC)

	agg := ComputeHourlyAggregate("u1", nil, now)

	assert.Equal(t, 0, agg.EventCount)
	assert.Equal(t, 0, agg.PageViews)
	assert.Equal(t, "2025030714", agg.Hour)
}
