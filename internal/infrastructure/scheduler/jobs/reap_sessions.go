package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/edupulse/edupulse-analytics/internal/realtime"
)

// ══════════════════════════════════════════════════════════════════════════════
// REAP SESSIONS JOB
// ══════════════════════════════════════════════════════════════════════════════

// ReapSessionsJob evicts engagement sessions that have gone quiet for longer
// than the session timeout. Eviction drops both the session counters and the
// active marker, so a returning user starts a fresh session.
type ReapSessionsJob struct {
	service *realtime.Service
	logger  *slog.Logger

	config ReapSessionsConfig
}

// ReapSessionsConfig contains configuration for the session reaper.
type ReapSessionsConfig struct {
	// Interval between reaper runs.
	Interval time.Duration

	// SessionTimeout is the idle duration after which a session is stale.
	SessionTimeout time.Duration
}

// DefaultReapSessionsConfig returns sensible defaults.
func DefaultReapSessionsConfig() ReapSessionsConfig {
	return ReapSessionsConfig{
		Interval:       5 * time.Minute,
		SessionTimeout: 30 * time.Minute,
	}
}

// NewReapSessionsJob creates the session reaper job.
func NewReapSessionsJob(service *realtime.Service, config ReapSessionsConfig, logger *slog.Logger) *ReapSessionsJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReapSessionsJob{
		service: service,
		config:  config,
		logger:  logger,
	}
}

// Name returns the unique name of the job.
func (j *ReapSessionsJob) Name() string {
	return "reap_sessions"
}

// Description returns a human-readable description of the job.
func (j *ReapSessionsJob) Description() string {
	return "Evicts engagement sessions idle past the session timeout"
}

// Run evicts stale sessions.
func (j *ReapSessionsJob) Run(ctx context.Context) error {
	removed := j.service.Tracker().EvictStale(time.Now().UTC(), j.config.SessionTimeout)
	if removed > 0 {
		j.logger.Info("stale sessions reaped",
			"removed", removed,
			"remaining", j.service.Tracker().ActiveCount(),
		)
	}
	return nil
}
