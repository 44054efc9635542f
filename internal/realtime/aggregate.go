package realtime

import (
	"time"

	"github.com/edupulse/edupulse-analytics/internal/domain/analytics"
	"github.com/edupulse/edupulse-analytics/pkg/timeutil"
)

// HourlyAggregate is the per-user rollup written to the cache each drain
// cycle, keyed by (user, hour bucket). Recomputing within the same hour
// overwrites the previous value.
type HourlyAggregate struct {
	UserID        string `json:"user_id"`
	Hour          string `json:"hour"` // YYYYMMDDHH
	EventCount    int    `json:"event_count"`
	TotalDuration int    `json:"total_duration"`
	PageViews     int    `json:"page_views"`
	Interactions  int    `json:"interactions"`
}

// ComputeHourlyAggregate rolls up one user's drained events into the hour
// bucket containing now, using the same classification rules as the
// engagement tracker.
func ComputeHourlyAggregate(userID string, events []BufferedEvent, now time.Time) HourlyAggregate {
	agg := HourlyAggregate{
		UserID:     userID,
		Hour:       timeutil.HourBucket(now),
		EventCount: len(events),
	}

	for _, buffered := range events {
		agg.TotalDuration += buffered.Event.Duration()
		switch action := buffered.Event.Action(); {
		case action == analytics.ActionPageView:
			agg.PageViews++
		case analytics.IsInteraction(action):
			agg.Interactions++
		}
	}

	return agg
}
