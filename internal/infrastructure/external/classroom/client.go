// Package classroom implements the LMS classroom API client.
// It synchronizes courses, assignments and student submissions into the
// analytics store and records every exchange in the integration log.
package classroom

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/edupulse/edupulse-analytics/internal/domain/analytics"
	"github.com/edupulse/edupulse-analytics/pkg/circuitbreaker"
	"github.com/edupulse/edupulse-analytics/pkg/retry"

	"github.com/google/uuid"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrNotConfigured is returned when the client has no credentials.
	ErrNotConfigured = errors.New("classroom: client not configured")

	// ErrAPIFailure is returned for non-2xx API responses.
	ErrAPIFailure = errors.New("classroom: api request failed")
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the classroom API client.
type ClientConfig struct {
	// BaseURL is the classroom API base URL.
	BaseURL string

	// AccessToken is the OAuth2 bearer token. An empty token leaves the
	// client disabled; sync operations return ErrNotConfigured.
	AccessToken string

	// Timeout is the HTTP request timeout.
	Timeout time.Duration

	// PageSize is the page size for list endpoints.
	PageSize int

	// Logger for structured logging.
	Logger *slog.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL:  baseURL,
		Timeout:  30 * time.Second,
		PageSize: 100,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the classroom API client.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	logger     *slog.Logger
	retrier    *retry.Retrier
	breaker    *circuitbreaker.CircuitBreaker

	activities analytics.ActivityRepository
	logs       analytics.IntegrationLogRepository
}

// NewClient creates a new classroom API client. The activity repository
// receives submission events discovered during sync; the log repository
// records every sync attempt.
func NewClient(
	config ClientConfig,
	activities analytics.ActivityRepository,
	logs analytics.IntegrationLogRepository,
) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.PageSize <= 0 {
		config.PageSize = 100
	}

	logger := config.Logger
	breaker := circuitbreaker.ClassroomAPIBreaker(func(name string, from, to circuitbreaker.State) {
		logger.Warn("circuit breaker state changed",
			"breaker", name,
			"from", from.String(),
			"to", to.String(),
		)
	})

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger:     logger,
		retrier:    retry.ClassroomAPIRetrier(),
		breaker:    breaker,
		activities: activities,
		logs:       logs,
	}
}

// Enabled reports whether the client has credentials to talk to the API.
func (c *Client) Enabled() bool {
	return c.config.BaseURL != "" && c.config.AccessToken != ""
}

// ══════════════════════════════════════════════════════════════════════════════
// SYNC OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// SyncCourses fetches all courses from the classroom API.
func (c *Client) SyncCourses(ctx context.Context, userID string) (*CoursesSyncResult, error) {
	if !c.Enabled() {
		return nil, ErrNotConfigured
	}

	courses, err := c.listCourses(ctx)
	if err != nil {
		c.logIntegration(ctx, "sync_courses", "error", userID, nil, err)
		return nil, fmt.Errorf("sync courses: %w", err)
	}

	c.logIntegration(ctx, "sync_courses", "success", userID, map[string]any{
		"courses_synced": len(courses),
	}, nil)

	return &CoursesSyncResult{
		Status:        "success",
		CoursesSynced: len(courses),
		Courses:       courses,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// SyncAssignments fetches all coursework for a course.
func (c *Client) SyncAssignments(ctx context.Context, courseID, userID string) (*AssignmentsSyncResult, error) {
	if !c.Enabled() {
		return nil, ErrNotConfigured
	}

	assignments, err := c.listAssignments(ctx, courseID)
	if err != nil {
		c.logIntegration(ctx, "sync_assignments", "error", userID, map[string]any{
			"course_id": courseID,
		}, err)
		return nil, fmt.Errorf("sync assignments: %w", err)
	}

	c.logIntegration(ctx, "sync_assignments", "success", userID, map[string]any{
		"course_id":          courseID,
		"assignments_synced": len(assignments),
	}, nil)

	return &AssignmentsSyncResult{
		Status:            "success",
		AssignmentsSynced: len(assignments),
		Assignments:       assignments,
		Timestamp:         time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// SyncSubmissions fetches student submissions for an assignment and records
// each turned-in submission as an activity for the submitting student.
func (c *Client) SyncSubmissions(ctx context.Context, courseID, assignmentID string) (*SubmissionsSyncResult, error) {
	if !c.Enabled() {
		return nil, ErrNotConfigured
	}

	submissions, err := c.listSubmissions(ctx, courseID, assignmentID)
	if err != nil {
		c.logIntegration(ctx, "sync_submissions", "error", "", map[string]any{
			"course_id":     courseID,
			"assignment_id": assignmentID,
		}, err)
		return nil, fmt.Errorf("sync submissions: %w", err)
	}

	for _, sub := range submissions {
		c.trackSubmission(ctx, sub)
	}

	c.logIntegration(ctx, "sync_submissions", "success", "", map[string]any{
		"course_id":          courseID,
		"assignment_id":      assignmentID,
		"submissions_synced": len(submissions),
	}, nil)

	return &SubmissionsSyncResult{
		Status:            "success",
		SubmissionsSynced: len(submissions),
		Submissions:       submissions,
		Timestamp:         time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// trackSubmission saves a turned-in submission as an activity row.
// Failures are logged and skipped; one bad row must not abort the sync.
func (c *Client) trackSubmission(ctx context.Context, sub SubmissionDTO) {
	if c.activities == nil || sub.State != "TURNED_IN" || sub.UserID == "" {
		return
	}

	activity := &analytics.UserActivity{
		ID:           uuid.NewString(),
		UserID:       sub.UserID,
		Action:       "assignment_submitted",
		ResourceType: "assignment",
		ResourceID:   sub.CourseWorkID,
		Timestamp:    time.Now().UTC(),
		Metadata: map[string]any{
			"course_id":     sub.CourseID,
			"submission_id": sub.ID,
			"late":          sub.Late,
		},
	}

	if err := c.activities.SaveActivity(ctx, activity); err != nil {
		c.logger.Error("failed to track submission activity",
			"user_id", sub.UserID,
			"submission_id", sub.ID,
			"error", err,
		)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// LIST ENDPOINTS
// ══════════════════════════════════════════════════════════════════════════════

func (c *Client) listCourses(ctx context.Context) ([]CourseDTO, error) {
	var all []CourseDTO
	pageToken := ""

	for {
		params := url.Values{}
		params.Set("pageSize", fmt.Sprint(c.config.PageSize))
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		var page listCoursesResponse
		if err := c.doRequest(ctx, "/v1/courses?"+params.Encode(), &page); err != nil {
			return nil, err
		}

		all = append(all, page.Courses...)
		if page.NextPageToken == "" {
			return all, nil
		}
		pageToken = page.NextPageToken
	}
}

func (c *Client) listAssignments(ctx context.Context, courseID string) ([]AssignmentDTO, error) {
	var all []AssignmentDTO
	pageToken := ""

	for {
		params := url.Values{}
		params.Set("pageSize", fmt.Sprint(c.config.PageSize))
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		path := fmt.Sprintf("/v1/courses/%s/courseWork?%s", url.PathEscape(courseID), params.Encode())

		var page listAssignmentsResponse
		if err := c.doRequest(ctx, path, &page); err != nil {
			return nil, err
		}

		all = append(all, page.CourseWork...)
		if page.NextPageToken == "" {
			return all, nil
		}
		pageToken = page.NextPageToken
	}
}

func (c *Client) listSubmissions(ctx context.Context, courseID, assignmentID string) ([]SubmissionDTO, error) {
	var all []SubmissionDTO
	pageToken := ""

	for {
		params := url.Values{}
		params.Set("pageSize", fmt.Sprint(c.config.PageSize))
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		path := fmt.Sprintf("/v1/courses/%s/courseWork/%s/studentSubmissions?%s",
			url.PathEscape(courseID), url.PathEscape(assignmentID), params.Encode())

		var page listSubmissionsResponse
		if err := c.doRequest(ctx, path, &page); err != nil {
			return nil, err
		}

		all = append(all, page.StudentSubmissions...)
		if page.NextPageToken == "" {
			return all, nil
		}
		pageToken = page.NextPageToken
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// doRequest performs a GET request through the circuit breaker and retrier.
func (c *Client) doRequest(ctx context.Context, path string, result interface{}) error {
	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.retrier.Do(ctx, func(ctx context.Context) error {
			return c.doSingleRequest(ctx, path, result)
		})
	})
}

// doSingleRequest performs a single HTTP GET request.
func (c *Client) doSingleRequest(ctx context.Context, path string, result interface{}) error {
	fullURL := c.config.BaseURL + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return retry.Permanent(fmt.Errorf("create request: %w", err))
	}

	req.Header.Set("Authorization", "Bearer "+c.config.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return retry.Retryable(fmt.Errorf("%w: status %d", ErrAPIFailure, resp.StatusCode))
	case resp.StatusCode >= 400:
		// Client errors will not succeed on retry
		return retry.Permanent(fmt.Errorf("%w: status %d: %s", ErrAPIFailure, resp.StatusCode, string(respBody)))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return retry.Permanent(fmt.Errorf("unmarshal response: %w", err))
		}
	}

	return nil
}

// logIntegration records a sync attempt in the integration log.
// Logging failures are swallowed; the sync result matters more.
func (c *Client) logIntegration(ctx context.Context, action, status, userID string, data map[string]any, opErr error) {
	if c.logs == nil {
		return
	}

	row := &analytics.IntegrationLog{
		ID:              uuid.NewString(),
		IntegrationType: "classroom",
		Action:          action,
		Status:          status,
		UserID:          userID,
		Timestamp:       time.Now().UTC(),
		RequestData:     data,
	}
	if opErr != nil {
		row.ErrorMessage = opErr.Error()
	}

	if err := c.logs.SaveLog(ctx, row); err != nil {
		c.logger.Error("failed to save integration log", "action", action, "error", err)
	}
}
