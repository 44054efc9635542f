package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/edupulse/edupulse-analytics/internal/domain/analytics"
)

// ══════════════════════════════════════════════════════════════════════════════
// CLEANUP OLD DATA JOB
// ══════════════════════════════════════════════════════════════════════════════

// CleanupOldDataJob prunes analytics snapshots older than the retention
// window. Runs on a nightly cron so the delete lands off-peak.
type CleanupOldDataJob struct {
	metrics analytics.MetricsRepository
	logger  *slog.Logger

	config CleanupOldDataConfig
}

// CleanupOldDataConfig contains configuration for the cleanup job.
type CleanupOldDataConfig struct {
	// CronExpression is when the cleanup runs (default: 03:00 daily).
	CronExpression string

	// Retention is how long snapshots are kept.
	Retention time.Duration
}

// DefaultCleanupOldDataConfig returns sensible defaults.
func DefaultCleanupOldDataConfig() CleanupOldDataConfig {
	return CleanupOldDataConfig{
		CronExpression: "0 3 * * *",
		Retention:      90 * 24 * time.Hour,
	}
}

// NewCleanupOldDataJob creates the cleanup job.
func NewCleanupOldDataJob(metrics analytics.MetricsRepository, config CleanupOldDataConfig, logger *slog.Logger) *CleanupOldDataJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupOldDataJob{
		metrics: metrics,
		config:  config,
		logger:  logger,
	}
}

// Name returns the unique name of the job.
func (j *CleanupOldDataJob) Name() string {
	return "cleanup_old_data"
}

// Description returns a human-readable description of the job.
func (j *CleanupOldDataJob) Description() string {
	return "Prunes analytics snapshots past the retention window"
}

// Run deletes expired snapshots.
func (j *CleanupOldDataJob) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-j.config.Retention)

	deleted, err := j.metrics.DeleteSnapshotsBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("cleanup snapshots: %w", err)
	}

	if deleted > 0 {
		j.logger.Info("old snapshots pruned",
			"deleted", deleted,
			"cutoff", cutoff.Format(time.RFC3339),
		)
	}
	return nil
}
