package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/edupulse/edupulse-analytics/internal/realtime"
	"github.com/edupulse/edupulse-analytics/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot handles GET / requests.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSONError(w, http.StatusNotFound, "not_found", "The requested resource was not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": "edupulse-analytics",
		"version": "1.0.0",
		"status":  "running",
		"uptime":  s.Uptime().String(),
	})
}

// handleHealth handles GET /health requests with dependency checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	healthy := true

	if s.deps.Database != nil {
		if err := s.deps.Database.Ping(ctx); err != nil {
			checks["database"] = "unhealthy: " + err.Error()
			healthy = false
		} else {
			checks["database"] = "healthy"
		}
	} else {
		checks["database"] = "not_configured"
	}

	if s.deps.Cache != nil {
		if err := s.deps.Cache.Ping(ctx); err != nil {
			checks["cache"] = "unhealthy: " + err.Error()
			healthy = false
		} else {
			checks["cache"] = "healthy"
		}
	} else {
		checks["cache"] = "not_configured"
	}

	status := "healthy"
	statusCode := http.StatusOK
	if !healthy {
		status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, map[string]interface{}{
		"status":    status,
		"checks":    checks,
		"realtime":  s.deps.Service.SystemStatus(),
		"timestamp": time.Now().UTC(),
	})
}

// handleReady handles GET /ready requests (readiness probe).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if s.deps.Database != nil {
		if err := s.deps.Database.Ping(ctx); err != nil {
			writeJSONError(w, http.StatusServiceUnavailable, "not_ready", "Database is not reachable")
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles GET /live requests (liveness probe).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// EVENT TRACKING
// ══════════════════════════════════════════════════════════════════════════════

// trackEventRequest is the body of POST /api/realtime/track-event.
type trackEventRequest struct {
	UserID string         `json:"user_id"`
	Event  realtime.Event `json:"event_data"`
}

// handleTrackEvent ingests a single activity event: it is cached and
// buffered immediately and then run through the persistence pipeline.
func (s *Server) handleTrackEvent(w http.ResponseWriter, r *http.Request) {
	var req trackEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Request body must be valid JSON")
		return
	}

	if req.UserID == "" {
		writeJSONError(w, http.StatusBadRequest, "validation_error", "user_id is required")
		return
	}
	if req.Event == nil {
		writeJSONError(w, http.StatusBadRequest, "validation_error", "event_data is required")
		return
	}

	s.deps.Service.TrackLiveEvent(r.Context(), req.UserID, req.Event)

	if err := s.deps.Service.ProcessEvent(r.Context(), req.UserID, req.Event); err != nil {
		s.logger.Error("event processing failed",
			logger.UserID(req.UserID),
			logger.EventAction(req.Event.Action()),
			logger.Err(err),
		)
		writeJSONError(w, http.StatusInternalServerError, "processing_failed", "Event could not be processed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "tracked",
		"user_id":   req.UserID,
		"action":    req.Event.Action(),
		"timestamp": time.Now().UTC(),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// DASHBOARDS & METRICS
// ══════════════════════════════════════════════════════════════════════════════

// handleDashboard handles GET /api/realtime/dashboard/{user_id}.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	if userID == "" {
		writeJSONError(w, http.StatusBadRequest, "validation_error", "user_id is required")
		return
	}

	role := getQueryParam(r, "role", realtime.RoleStudent)

	dashboard := s.deps.Service.GetDashboardData(r.Context(), userID, role)
	writeJSON(w, http.StatusOK, dashboard)
}

// handleEngagementMetrics handles GET /api/realtime/engagement-metrics.
func (s *Server) handleEngagementMetrics(w http.ResponseWriter, r *http.Request) {
	timeframe := getQueryParam(r, "timeframe", "1h")

	metrics, err := s.deps.Service.GetEngagementMetrics(r.Context(), timeframe)
	if err != nil {
		s.logger.Error("engagement metrics query failed", logger.Err(err))
		writeJSONError(w, http.StatusInternalServerError, "query_failed", "Could not compute engagement metrics")
		return
	}

	writeJSON(w, http.StatusOK, metrics)
}

// handleProgressTracking handles GET /api/realtime/progress-tracking.
// An empty user_id returns progress across all active learners.
func (s *Server) handleProgressTracking(w http.ResponseWriter, r *http.Request) {
	userID := getQueryParam(r, "user_id", "")

	tracking, err := s.deps.Service.GetProgressTracking(r.Context(), userID)
	if err != nil {
		s.logger.Error("progress tracking query failed",
			logger.UserID(userID),
			logger.Err(err),
		)
		writeJSONError(w, http.StatusInternalServerError, "query_failed", "Could not compute progress tracking")
		return
	}

	writeJSON(w, http.StatusOK, tracking)
}

// handlePredictiveAlerts handles GET /api/realtime/predictive-alerts.
func (s *Server) handlePredictiveAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.deps.Service.Alerts().Evaluate(r.Context(), time.Now().UTC())
	if err != nil {
		s.logger.Error("alert evaluation failed", logger.Err(err))
		writeJSONError(w, http.StatusInternalServerError, "query_failed", "Could not evaluate alerts")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"alerts":       alerts,
		"alert_count":  len(alerts),
		"generated_at": time.Now().UTC(),
	})
}

// handleConnectionStats handles GET /api/realtime/connection-stats.
func (s *Server) handleConnectionStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Registry.Stats())
}

// ══════════════════════════════════════════════════════════════════════════════
// LMS INTEGRATION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleSyncCourses handles POST /api/realtime/integrations/classroom/sync-courses.
func (s *Server) handleSyncCourses(w http.ResponseWriter, r *http.Request) {
	if s.deps.Classroom == nil || !s.deps.Classroom.Enabled() {
		writeJSONError(w, http.StatusServiceUnavailable, "integration_disabled", "Classroom integration is not configured")
		return
	}

	userID := getQueryParam(r, "user_id", "")

	result, err := s.deps.Classroom.SyncCourses(r.Context(), userID)
	if err != nil {
		s.logger.Error("course sync failed", logger.Err(err))
		writeJSONError(w, http.StatusBadGateway, "sync_failed", "Course synchronization failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleSyncAssignments handles POST /api/realtime/integrations/classroom/sync-assignments/{course_id}.
func (s *Server) handleSyncAssignments(w http.ResponseWriter, r *http.Request) {
	if s.deps.Classroom == nil || !s.deps.Classroom.Enabled() {
		writeJSONError(w, http.StatusServiceUnavailable, "integration_disabled", "Classroom integration is not configured")
		return
	}

	courseID := r.PathValue("course_id")
	if courseID == "" {
		writeJSONError(w, http.StatusBadRequest, "validation_error", "course_id is required")
		return
	}

	userID := getQueryParam(r, "user_id", "")

	result, err := s.deps.Classroom.SyncAssignments(r.Context(), courseID, userID)
	if err != nil {
		s.logger.Error("assignment sync failed",
			logger.CourseID(courseID),
			logger.Err(err),
		)
		writeJSONError(w, http.StatusBadGateway, "sync_failed", "Assignment synchronization failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleSyncSubmissions handles POST /api/realtime/integrations/classroom/sync-submissions/{course_id}/{assignment_id}.
func (s *Server) handleSyncSubmissions(w http.ResponseWriter, r *http.Request) {
	if s.deps.Classroom == nil || !s.deps.Classroom.Enabled() {
		writeJSONError(w, http.StatusServiceUnavailable, "integration_disabled", "Classroom integration is not configured")
		return
	}

	courseID := r.PathValue("course_id")
	assignmentID := r.PathValue("assignment_id")
	if courseID == "" || assignmentID == "" {
		writeJSONError(w, http.StatusBadRequest, "validation_error", "course_id and assignment_id are required")
		return
	}

	result, err := s.deps.Classroom.SyncSubmissions(r.Context(), courseID, assignmentID)
	if err != nil {
		s.logger.Error("submission sync failed",
			logger.CourseID(courseID),
			logger.String("assignment_id", assignmentID),
			logger.Err(err),
		)
		writeJSONError(w, http.StatusBadGateway, "sync_failed", "Submission synchronization failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// AI INSIGHT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// aiInsightsRequest is the body of POST /api/realtime/ai/insights.
type aiInsightsRequest struct {
	UserID  string         `json:"user_id"`
	Prompt  string         `json:"prompt"`
	Context map[string]any `json:"context,omitempty"`
}

// handleAIInsights handles POST /api/realtime/ai/insights.
func (s *Server) handleAIInsights(w http.ResponseWriter, r *http.Request) {
	if s.deps.Gemini == nil || !s.deps.Gemini.Enabled() {
		writeJSONError(w, http.StatusServiceUnavailable, "integration_disabled", "AI insights are not configured")
		return
	}

	var req aiInsightsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Request body must be valid JSON")
		return
	}

	if req.UserID == "" || req.Prompt == "" {
		writeJSONError(w, http.StatusBadRequest, "validation_error", "user_id and prompt are required")
		return
	}

	insights, err := s.deps.Gemini.GenerateInsights(r.Context(), req.Prompt, req.UserID, req.Context)
	if err != nil {
		s.logger.Error("insight generation failed",
			logger.UserID(req.UserID),
			logger.Err(err),
		)
		writeJSONError(w, http.StatusBadGateway, "generation_failed", "Insight generation failed")
		return
	}

	writeJSON(w, http.StatusOK, insights)
}

// handleAIRecommendations handles GET /api/realtime/ai/recommendations/{user_id}.
// Recommendations are grounded on the user's live engagement summary when
// one exists; a cold user still gets the generic fallback set.
func (s *Server) handleAIRecommendations(w http.ResponseWriter, r *http.Request) {
	if s.deps.Gemini == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "integration_disabled", "AI recommendations are not configured")
		return
	}

	userID := r.PathValue("user_id")
	if userID == "" {
		writeJSONError(w, http.StatusBadRequest, "validation_error", "user_id is required")
		return
	}

	limit := getQueryParamInt(r, "limit", 5)
	if limit < 1 || limit > 20 {
		limit = 5
	}

	history := make(map[string]any)
	if summary, ok := s.deps.Service.Tracker().Summary(userID, time.Now().UTC()); ok {
		history["engagement"] = summary
	}

	recs, err := s.deps.Gemini.GetSmartRecommendations(r.Context(), userID, history, limit)
	if err != nil {
		s.logger.Error("recommendation generation failed",
			logger.UserID(userID),
			logger.Err(err),
		)
		writeJSONError(w, http.StatusBadGateway, "generation_failed", "Recommendation generation failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":         userID,
		"recommendations": recs,
		"count":           len(recs),
	})
}
