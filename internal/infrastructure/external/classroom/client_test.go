package classroom

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edupulse/edupulse-analytics/internal/domain/analytics"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

type memActivityRepo struct {
	activities []*analytics.UserActivity
}

func (r *memActivityRepo) SaveActivity(_ context.Context, a *analytics.UserActivity) error {
	r.activities = append(r.activities, a)
	return nil
}

func (r *memActivityRepo) GetActivitiesByUser(context.Context, string, time.Time, time.Time) ([]*analytics.UserActivity, error) {
	return nil, nil
}

func (r *memActivityRepo) CountActiveUsers(context.Context, time.Time) (int, error) { return 0, nil }

func (r *memActivityRepo) CountByAction(context.Context, string, time.Time) (int, error) {
	return 0, nil
}

func (r *memActivityRepo) CountInteractions(context.Context, time.Time) (int, error) { return 0, nil }

func (r *memActivityRepo) AvgDuration(context.Context, time.Time) (float64, error) { return 0, nil }

func (r *memActivityRepo) GetActivityStatsSince(context.Context, time.Time, int) ([]*analytics.ActivityStats, error) {
	return nil, nil
}

type memLogRepo struct {
	logs []*analytics.IntegrationLog
}

func (r *memLogRepo) SaveLog(_ context.Context, l *analytics.IntegrationLog) error {
	r.logs = append(r.logs, l)
	return nil
}

func newTestClient(baseURL string, activities analytics.ActivityRepository, logs analytics.IntegrationLogRepository) *Client {
	cfg := DefaultClientConfig(baseURL)
	cfg.AccessToken = "test-token"
	cfg.Timeout = 5 * time.Second
	return NewClient(cfg, activities, logs)
}

// ─────────────────────────────────────────────────────────────────────────────
// DTO parsing
// ─────────────────────────────────────────────────────────────────────────────

func TestCourseDTO_Parsing(t *testing.T) {
	raw := `{
		"id": "c-101",
		"name": "Intro to Algorithms",
		"section": "A",
		"descriptionHeading": "Sorting and searching",
		"courseState": "ACTIVE",
		"creationTime": "2025-01-10T08:00:00Z"
	}`

	var course CourseDTO
	err := json.Unmarshal([]byte(raw), &course)
	require.NoError(t, err)

	assert.Equal(t, "c-101", course.ID)
	assert.Equal(t, "Intro to Algorithms", course.Name)
	assert.Equal(t, "A", course.Section)
	assert.Equal(t, "Sorting and searching", course.Description)
	assert.Equal(t, "ACTIVE", course.CourseState)
}

func TestSubmissionDTO_Parsing(t *testing.T) {
	raw := `{
		"id": "sub-1",
		"courseId": "c-101",
		"courseWorkId": "cw-7",
		"userId": "student-9",
		"state": "TURNED_IN",
		"assignedGrade": 87.5,
		"late": true
	}`

	var sub SubmissionDTO
	err := json.Unmarshal([]byte(raw), &sub)
	require.NoError(t, err)

	assert.Equal(t, "sub-1", sub.ID)
	assert.Equal(t, "cw-7", sub.CourseWorkID)
	assert.Equal(t, "student-9", sub.UserID)
	assert.Equal(t, "TURNED_IN", sub.State)
	assert.Equal(t, 87.5, sub.AssignedGrade)
	assert.True(t, sub.Late)
}

func TestDateDTO_Time(t *testing.T) {
	var nilDate *DateDTO
	assert.True(t, nilDate.Time().IsZero())
	assert.True(t, (&DateDTO{}).Time().IsZero())

	due := &DateDTO{Year: 2025, Month: 3, Day: 14}
	assert.Equal(t, time.Date(2025, time.March, 14, 0, 0, 0, 0, time.UTC), due.Time())
}

// ─────────────────────────────────────────────────────────────────────────────
// Sync operations
// ─────────────────────────────────────────────────────────────────────────────

func TestClient_SyncCourses_Paginated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "/v1/courses", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("pageToken") == "" {
			fmt.Fprint(w, `{"courses":[{"id":"c-1","name":"Math","courseState":"ACTIVE"}],"nextPageToken":"page-2"}`)
			return
		}
		fmt.Fprint(w, `{"courses":[{"id":"c-2","name":"Physics","courseState":"ACTIVE"}]}`)
	}))
	defer server.Close()

	logs := &memLogRepo{}
	client := newTestClient(server.URL, nil, logs)

	result, err := client.SyncCourses(context.Background(), "teacher-1")
	require.NoError(t, err)

	assert.Equal(t, "success", result.Status)
	assert.Equal(t, 2, result.CoursesSynced)
	assert.Equal(t, "c-1", result.Courses[0].ID)
	assert.Equal(t, "c-2", result.Courses[1].ID)

	require.Len(t, logs.logs, 1)
	assert.Equal(t, "classroom", logs.logs[0].IntegrationType)
	assert.Equal(t, "sync_courses", logs.logs[0].Action)
	assert.Equal(t, "success", logs.logs[0].Status)
	assert.Equal(t, "teacher-1", logs.logs[0].UserID)
}

func TestClient_SyncSubmissions_TracksTurnedIn(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/courses/c-1/courseWork/cw-1/studentSubmissions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"studentSubmissions":[
			{"id":"sub-1","courseId":"c-1","courseWorkId":"cw-1","userId":"student-1","state":"TURNED_IN","late":true},
			{"id":"sub-2","courseId":"c-1","courseWorkId":"cw-1","userId":"student-2","state":"CREATED"}
		]}`)
	}))
	defer server.Close()

	activities := &memActivityRepo{}
	client := newTestClient(server.URL, activities, nil)

	result, err := client.SyncSubmissions(context.Background(), "c-1", "cw-1")
	require.NoError(t, err)
	assert.Equal(t, 2, result.SubmissionsSynced)

	// Only the turned-in submission becomes an activity row.
	require.Len(t, activities.activities, 1)
	activity := activities.activities[0]
	assert.Equal(t, "student-1", activity.UserID)
	assert.Equal(t, "assignment_submitted", activity.Action)
	assert.Equal(t, "assignment", activity.ResourceType)
	assert.Equal(t, "cw-1", activity.ResourceID)
	assert.Equal(t, true, activity.Metadata["late"])
}

func TestClient_NotConfigured(t *testing.T) {
	cfg := DefaultClientConfig("https://classroom.example.com")
	client := NewClient(cfg, nil, nil)

	assert.False(t, client.Enabled())

	_, err := client.SyncCourses(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestClient_APIClientErrorNotRetried(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	logs := &memLogRepo{}
	client := newTestClient(server.URL, nil, logs)

	_, err := client.SyncAssignments(context.Background(), "missing", "u1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAPIFailure)
	assert.Equal(t, 1, calls)

	require.Len(t, logs.logs, 1)
	assert.Equal(t, "error", logs.logs[0].Status)
}
