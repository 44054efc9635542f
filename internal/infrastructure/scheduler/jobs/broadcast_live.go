package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/edupulse/edupulse-analytics/internal/realtime"
)

// ══════════════════════════════════════════════════════════════════════════════
// BROADCAST LIVE JOB
// ══════════════════════════════════════════════════════════════════════════════

// BroadcastLiveJob pushes a periodic live_update to every connected admin and
// teacher. The update carries two snapshots, recent engagement and platform
// progress, computed independently so one failing half never blocks the other.
type BroadcastLiveJob struct {
	service *realtime.Service
	logger  *slog.Logger

	config BroadcastLiveConfig
}

// BroadcastLiveConfig contains configuration for the broadcast job.
type BroadcastLiveConfig struct {
	// Interval between broadcasts.
	Interval time.Duration

	// Timeframe is the engagement window included in each update.
	Timeframe string
}

// DefaultBroadcastLiveConfig returns sensible defaults.
func DefaultBroadcastLiveConfig() BroadcastLiveConfig {
	return BroadcastLiveConfig{
		Interval:  30 * time.Second,
		Timeframe: "15m",
	}
}

// NewBroadcastLiveJob creates the broadcast job.
func NewBroadcastLiveJob(service *realtime.Service, config BroadcastLiveConfig, logger *slog.Logger) *BroadcastLiveJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &BroadcastLiveJob{
		service: service,
		config:  config,
		logger:  logger,
	}
}

// Name returns the unique name of the job.
func (j *BroadcastLiveJob) Name() string {
	return "broadcast_live"
}

// Description returns a human-readable description of the job.
func (j *BroadcastLiveJob) Description() string {
	return "Pushes periodic live engagement and progress updates to admins and teachers"
}

// Run computes the snapshots and broadcasts them.
func (j *BroadcastLiveJob) Run(ctx context.Context) error {
	now := time.Now().UTC()

	var engagement, progress any

	metrics, err := j.service.GetEngagementMetrics(ctx, j.config.Timeframe)
	if err != nil {
		j.logger.Warn("engagement snapshot unavailable for live update", "error", err)
	} else {
		engagement = metrics
	}

	tracking, err := j.service.GetProgressTracking(ctx, "")
	if err != nil {
		j.logger.Warn("progress snapshot unavailable for live update", "error", err)
	} else {
		progress = tracking
	}

	// Nothing to say this cycle.
	if engagement == nil && progress == nil {
		return nil
	}

	update := realtime.LiveUpdate(engagement, progress, now)
	registry := j.service.Registry()
	registry.BroadcastToRole(realtime.RoleAdmin, update)
	registry.BroadcastToRole(realtime.RoleTeacher, update)

	return nil
}
