package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/edupulse/edupulse-analytics/internal/domain/analytics"
	"github.com/edupulse/edupulse-analytics/internal/realtime"
)

// ══════════════════════════════════════════════════════════════════════════════
// PERSIST METRICS JOB
// ══════════════════════════════════════════════════════════════════════════════

// PersistMetricsJob writes point-in-time operational gauges to the metrics
// store. Rows are append-only; each run adds a fresh timestamped reading
// rather than updating the previous one.
type PersistMetricsJob struct {
	service *realtime.Service
	metrics analytics.MetricsRepository
	logger  *slog.Logger

	config PersistMetricsConfig
}

// PersistMetricsConfig contains configuration for the metrics persister.
type PersistMetricsConfig struct {
	// Interval between persistence runs.
	Interval time.Duration
}

// DefaultPersistMetricsConfig returns sensible defaults.
func DefaultPersistMetricsConfig() PersistMetricsConfig {
	return PersistMetricsConfig{
		Interval: 5 * time.Minute,
	}
}

// NewPersistMetricsJob creates the metrics persister job.
func NewPersistMetricsJob(
	service *realtime.Service,
	metrics analytics.MetricsRepository,
	config PersistMetricsConfig,
	logger *slog.Logger,
) *PersistMetricsJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &PersistMetricsJob{
		service: service,
		metrics: metrics,
		config:  config,
		logger:  logger,
	}
}

// Name returns the unique name of the job.
func (j *PersistMetricsJob) Name() string {
	return "persist_metrics"
}

// Description returns a human-readable description of the job.
func (j *PersistMetricsJob) Description() string {
	return "Appends operational gauges (sessions, queue depth, send failures) to the metrics store"
}

// Run samples the gauges and persists them.
func (j *PersistMetricsJob) Run(ctx context.Context) error {
	now := time.Now().UTC()
	registry := j.service.Registry()

	rows := []*analytics.SystemMetric{
		analytics.NewSystemMetric(analytics.MetricActiveSessions,
			float64(j.service.Tracker().ActiveCount()), "count", now),
		analytics.NewSystemMetric(analytics.MetricQueuedEvents,
			float64(j.service.Buffers().QueuedCount()), "count", now),
		analytics.NewSystemMetric(analytics.MetricSendFailures,
			float64(registry.SendFailures()), "count", now),
		// A row per cycle marks the process as alive; gaps in the series
		// show when it was not.
		analytics.NewSystemMetric(analytics.MetricSystemHealth, 1.0, "status", now),
	}

	if err := j.metrics.SaveMetrics(ctx, rows); err != nil {
		return fmt.Errorf("persist metrics: %w", err)
	}

	j.logger.Debug("operational metrics persisted", "rows", len(rows))
	return nil
}
