package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/edupulse/edupulse-analytics/internal/domain/analytics"
)

// fakeTransport records delivered messages and can be forced to fail.
type fakeTransport struct {
	mu       sync.Mutex
	messages []any
	pings    int
	closed   bool
	failWith error
}

func (t *fakeTransport) WriteJSON(v any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failWith != nil {
		return t.failWith
	}
	t.messages = append(t.messages, v)
	return nil
}

func (t *fakeTransport) Ping() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failWith != nil {
		return t.failWith
	}
	t.pings++
	return nil
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// fail makes every subsequent write and ping return err.
func (t *fakeTransport) fail(err error) {
	t.mu.Lock()
	t.failWith = err
	t.mu.Unlock()
}

func (t *fakeTransport) messageCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.messages)
}

// typeCounts tallies delivered messages by their wire type field.
func (t *fakeTransport) typeCounts() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	counts := make(map[string]int)
	for _, raw := range t.messages {
		if msg, ok := raw.(Message); ok {
			if typ, ok := msg["type"].(string); ok {
				counts[typ]++
			}
		}
	}
	return counts
}

// fakeCache is an in-memory realtime cache.
type fakeCache struct {
	mu     sync.Mutex
	values map[string]string
	errs   bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: make(map[string]string)}
}

func (c *fakeCache) SetString(ctx context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.errs {
		return errors.New("cache unavailable")
	}
	c.values[key] = value
	return nil
}

func (c *fakeCache) GetString(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.errs {
		return "", errors.New("cache unavailable")
	}
	v, ok := c.values[key]
	if !ok {
		return "", errors.New("cache miss")
	}
	return v, nil
}

// fakeActivityRepo implements analytics.ActivityRepository in memory.
type fakeActivityRepo struct {
	mu         sync.Mutex
	activities []*analytics.UserActivity
	stats      []*analytics.ActivityStats
	saveErr    error
}

func (r *fakeActivityRepo) SaveActivity(ctx context.Context, a *analytics.UserActivity) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.mu.Lock()
	r.activities = append(r.activities, a)
	r.mu.Unlock()
	return nil
}

func (r *fakeActivityRepo) GetActivitiesByUser(ctx context.Context, userID string, from, to time.Time) ([]*analytics.UserActivity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*analytics.UserActivity
	for _, a := range r.activities {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeActivityRepo) CountActiveUsers(ctx context.Context, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]bool)
	for _, a := range r.activities {
		seen[a.UserID] = true
	}
	return len(seen), nil
}

func (r *fakeActivityRepo) CountByAction(ctx context.Context, action string, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, a := range r.activities {
		if a.Action == action {
			count++
		}
	}
	return count, nil
}

func (r *fakeActivityRepo) CountInteractions(ctx context.Context, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, a := range r.activities {
		if analytics.IsInteraction(a.Action) {
			count++
		}
	}
	return count, nil
}

func (r *fakeActivityRepo) AvgDuration(ctx context.Context, since time.Time) (float64, error) {
	return 0, nil
}

func (r *fakeActivityRepo) GetActivityStatsSince(ctx context.Context, since time.Time, maxCount int) ([]*analytics.ActivityStats, error) {
	return r.stats, nil
}

// fakeEngagementRepo implements analytics.EngagementRepository in memory,
// keyed by user+course.
type fakeEngagementRepo struct {
	mu   sync.Mutex
	rows map[string]*analytics.CourseEngagement
}

func newFakeEngagementRepo() *fakeEngagementRepo {
	return &fakeEngagementRepo{rows: make(map[string]*analytics.CourseEngagement)}
}

func (r *fakeEngagementRepo) UpsertEngagement(ctx context.Context, e *analytics.CourseEngagement) error {
	r.mu.Lock()
	r.rows[e.UserID+"/"+e.CourseID] = e
	r.mu.Unlock()
	return nil
}

func (r *fakeEngagementRepo) GetEngagement(ctx context.Context, userID, courseID string) (*analytics.CourseEngagement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.rows[userID+"/"+courseID]
	if !ok {
		return nil, analytics.ErrNotFound
	}
	return e, nil
}

func (r *fakeEngagementRepo) GetEngagementsByUser(ctx context.Context, userID string) ([]*analytics.CourseEngagement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*analytics.CourseEngagement
	for _, e := range r.rows {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeEngagementRepo) SummarizeByCourse(ctx context.Context, since time.Time) ([]*analytics.CourseEngagementSummary, error) {
	return nil, nil
}

// fakeProgressRepo implements analytics.ProgressRepository in memory,
// keyed by user+path.
type fakeProgressRepo struct {
	mu      sync.Mutex
	rows    map[string]*analytics.StudentProgress
	stalled []*analytics.StudentProgress
}

func newFakeProgressRepo() *fakeProgressRepo {
	return &fakeProgressRepo{rows: make(map[string]*analytics.StudentProgress)}
}

func (r *fakeProgressRepo) UpsertProgress(ctx context.Context, p *analytics.StudentProgress) error {
	r.mu.Lock()
	r.rows[p.UserID+"/"+p.LearningPathID] = p
	r.mu.Unlock()
	return nil
}

func (r *fakeProgressRepo) GetProgress(ctx context.Context, userID, pathID string) (*analytics.StudentProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rows[userID+"/"+pathID]
	if !ok {
		return nil, analytics.ErrNotFound
	}
	return p, nil
}

func (r *fakeProgressRepo) GetActiveProgress(ctx context.Context, userID string, since time.Time) ([]*analytics.StudentProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*analytics.StudentProgress
	for _, p := range r.rows {
		if userID == "" || p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakeProgressRepo) GetStalledProgress(ctx context.Context, maxProgress float64, startedBefore time.Time) ([]*analytics.StudentProgress, error) {
	return r.stalled, nil
}
