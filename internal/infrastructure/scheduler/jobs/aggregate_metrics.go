// Package jobs contains implementations of scheduled jobs for EduPulse Analytics.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/edupulse/edupulse-analytics/internal/realtime"
)

// ══════════════════════════════════════════════════════════════════════════════
// AGGREGATE METRICS JOB
// ══════════════════════════════════════════════════════════════════════════════

// AggregateMetricsJob drains the queued live events and rolls them up into
// per-user hourly aggregates stored in the cache.
//
// Draining swaps the whole buffer map out, so event tracking never blocks
// behind aggregation. Events that arrive while the job runs land in the
// fresh map and are picked up on the next cycle.
type AggregateMetricsJob struct {
	service *realtime.Service
	cache   realtime.Cache
	logger  *slog.Logger

	config AggregateMetricsConfig

	lastRunStats atomic.Value // *AggregateMetricsStats
}

// AggregateMetricsConfig contains configuration for the aggregation job.
type AggregateMetricsConfig struct {
	// Interval between aggregation runs.
	Interval time.Duration

	// CacheTTL is how long each hourly aggregate stays cached.
	CacheTTL time.Duration
}

// DefaultAggregateMetricsConfig returns sensible defaults.
func DefaultAggregateMetricsConfig() AggregateMetricsConfig {
	return AggregateMetricsConfig{
		Interval: 10 * time.Second,
		CacheTTL: realtime.TTLHourlyAggregate,
	}
}

// AggregateMetricsStats contains statistics from an aggregation run.
type AggregateMetricsStats struct {
	StartedAt       time.Time
	Duration        time.Duration
	UsersAggregated int
	EventsProcessed int
	CacheFailures   int
}

// NewAggregateMetricsJob creates the aggregation job.
func NewAggregateMetricsJob(
	service *realtime.Service,
	cache realtime.Cache,
	config AggregateMetricsConfig,
	logger *slog.Logger,
) *AggregateMetricsJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &AggregateMetricsJob{
		service: service,
		cache:   cache,
		config:  config,
		logger:  logger,
	}
}

// Name returns the unique name of the job.
func (j *AggregateMetricsJob) Name() string {
	return "aggregate_metrics"
}

// Description returns a human-readable description of the job.
func (j *AggregateMetricsJob) Description() string {
	return "Rolls queued live events into per-user hourly aggregates in the cache"
}

// Run executes one aggregation cycle.
func (j *AggregateMetricsJob) Run(ctx context.Context) error {
	startedAt := time.Now().UTC()
	stats := &AggregateMetricsStats{StartedAt: startedAt}
	defer func() {
		stats.Duration = time.Since(startedAt)
		j.lastRunStats.Store(stats)
	}()

	drained := j.service.Buffers().DrainAll()
	if len(drained) == 0 {
		return nil
	}

	for userID, events := range drained {
		agg := realtime.ComputeHourlyAggregate(userID, events, startedAt)
		stats.EventsProcessed += agg.EventCount

		payload, err := json.Marshal(agg)
		if err != nil {
			stats.CacheFailures++
			j.logger.Error("failed to encode hourly aggregate",
				"user_id", userID,
				"error", err,
			)
			continue
		}

		key := realtime.UserMetricsKey(userID, agg.Hour)
		if err := j.cache.SetString(ctx, key, string(payload), j.config.CacheTTL); err != nil {
			stats.CacheFailures++
			j.logger.Error("failed to cache hourly aggregate",
				"user_id", userID,
				"key", key,
				"error", err,
			)
			continue
		}

		stats.UsersAggregated++
	}

	j.logger.Debug("aggregation cycle completed",
		"users", stats.UsersAggregated,
		"events", stats.EventsProcessed,
		"cache_failures", stats.CacheFailures,
	)

	if stats.CacheFailures > 0 {
		return fmt.Errorf("aggregation completed with %d cache failures", stats.CacheFailures)
	}
	return nil
}

// LastRunStats returns statistics from the most recent run, or nil.
func (j *AggregateMetricsJob) LastRunStats() *AggregateMetricsStats {
	v, _ := j.lastRunStats.Load().(*AggregateMetricsStats)
	return v
}
