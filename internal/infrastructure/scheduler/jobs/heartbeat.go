package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/edupulse/edupulse-analytics/internal/realtime"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEARTBEAT JOB
// ══════════════════════════════════════════════════════════════════════════════

// HeartbeatJob pings every registered connection and disconnects the ones
// whose transport has gone away. This is the active counterpart to the
// passive cleanup that happens when a push fails.
type HeartbeatJob struct {
	registry *realtime.Registry
	logger   *slog.Logger

	config HeartbeatConfig
}

// HeartbeatConfig contains configuration for the heartbeat job.
type HeartbeatConfig struct {
	// Interval between ping sweeps.
	Interval time.Duration
}

// DefaultHeartbeatConfig returns sensible defaults.
func DefaultHeartbeatConfig() HeartbeatConfig {
	return HeartbeatConfig{
		Interval: 30 * time.Second,
	}
}

// NewHeartbeatJob creates the heartbeat job.
func NewHeartbeatJob(registry *realtime.Registry, config HeartbeatConfig, logger *slog.Logger) *HeartbeatJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &HeartbeatJob{
		registry: registry,
		config:   config,
		logger:   logger,
	}
}

// Name returns the unique name of the job.
func (j *HeartbeatJob) Name() string {
	return "heartbeat"
}

// Description returns a human-readable description of the job.
func (j *HeartbeatJob) Description() string {
	return "Pings all realtime connections and drops the dead ones"
}

// Run performs one ping sweep.
func (j *HeartbeatJob) Run(ctx context.Context) error {
	pinged, removed := j.registry.PingAll()
	if removed > 0 {
		j.logger.Info("dead connections removed during heartbeat",
			"pinged", pinged,
			"removed", removed,
		)
	}
	return nil
}
