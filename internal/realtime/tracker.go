package realtime

import (
	"math"
	"sync"
	"time"

	"github.com/edupulse/edupulse-analytics/internal/domain/analytics"
)

// trackerEntry accumulates session-scoped counters for one user.
type trackerEntry struct {
	sessionStart time.Time
	pageViews    int
	interactions int
	timeSpent    int
}

// EngagementSummary is a read-only view of one user's live session.
type EngagementSummary struct {
	SessionDuration float64 `json:"session_duration"` // seconds
	PageViews       int     `json:"page_views"`
	Interactions    int     `json:"interactions"`
	TimeSpent       int     `json:"total_time_spent"`
	EngagementRate  float64 `json:"engagement_rate"`
}

// EngagementTracker keeps per-user session counters and last-seen markers
// in memory. Entries appear lazily on first event and are evicted by the
// session reaper once inactive past a threshold.
//
// The counter map and the marker map are distinct on purpose: markers are
// what the reaper and the active-user gauge read, counters are what the
// dashboards read. Both are updated together on every recorded event.
type EngagementTracker struct {
	mu       sync.RWMutex
	entries  map[string]*trackerEntry
	lastSeen map[string]time.Time
}

// NewEngagementTracker creates an empty tracker.
func NewEngagementTracker() *EngagementTracker {
	return &EngagementTracker{
		entries:  make(map[string]*trackerEntry),
		lastSeen: make(map[string]time.Time),
	}
}

// MarkActive updates the user's last-seen marker.
func (t *EngagementTracker) MarkActive(userID string, at time.Time) {
	t.mu.Lock()
	t.lastSeen[userID] = at
	t.mu.Unlock()
}

// Record classifies one event into the user's session counters, creating
// the entry on first sight. Unclassified actions only contribute their
// duration, if any; nothing here errors.
func (t *EngagementTracker) Record(userID string, event Event, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[userID]
	if !ok {
		entry = &trackerEntry{sessionStart: now}
		t.entries[userID] = entry
	}

	switch action := event.Action(); {
	case action == analytics.ActionPageView:
		entry.pageViews++
	case analytics.IsInteraction(action):
		entry.interactions++
	}

	if event.HasDuration() {
		entry.timeSpent += event.Duration()
	}
}

// Summary returns the user's session summary. The second return is false
// for unknown users; callers render that as an empty result, not an error.
func (t *EngagementTracker) Summary(userID string, now time.Time) (EngagementSummary, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	entry, ok := t.entries[userID]
	if !ok {
		return EngagementSummary{}, false
	}

	return EngagementSummary{
		SessionDuration: now.Sub(entry.sessionStart).Seconds(),
		PageViews:       entry.pageViews,
		Interactions:    entry.interactions,
		TimeSpent:       entry.timeSpent,
		EngagementRate:  engagementRate(entry.interactions, entry.pageViews),
	}, true
}

// engagementRate is interactions over page views (floor 1) as a percent,
// rounded to two decimals.
func engagementRate(interactions, pageViews int) float64 {
	rate := float64(interactions) / math.Max(float64(pageViews), 1) * 100
	return math.Round(rate*100) / 100
}

// EvictStale removes every user whose last-seen marker is older than
// threshold relative to now, together with its counter entry. Returns the
// number of users evicted. Safe to run concurrently with Record.
func (t *EngagementTracker) EvictStale(now time.Time, threshold time.Duration) int {
	cutoff := now.Add(-threshold)

	t.mu.Lock()
	defer t.mu.Unlock()

	evicted := 0
	for userID, seen := range t.lastSeen {
		if seen.Before(cutoff) {
			delete(t.lastSeen, userID)
			delete(t.entries, userID)
			evicted++
		}
	}
	return evicted
}

// ActiveCount returns the number of live session markers.
func (t *EngagementTracker) ActiveCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.lastSeen)
}

// LastSeen returns the user's marker timestamp, zero when absent.
func (t *EngagementTracker) LastSeen(userID string) (time.Time, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	seen, ok := t.lastSeen[userID]
	return seen, ok
}
