package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/edupulse/edupulse-analytics/internal/domain/analytics"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// METRICS REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// MetricsRepository implements analytics.MetricsRepository for PostgreSQL.
type MetricsRepository struct {
	conn *Connection
}

// NewMetricsRepository creates a new MetricsRepository.
func NewMetricsRepository(conn *Connection) *MetricsRepository {
	return &MetricsRepository{conn: conn}
}

// SaveMetrics appends metric rows in a single batch.
// Each call writes new timestamped rows, never an upsert.
func (r *MetricsRepository) SaveMetrics(ctx context.Context, metrics []*analytics.SystemMetric) error {
	if len(metrics) == 0 {
		return nil
	}

	query := `
		INSERT INTO system_metrics (id, metric_name, metric_value, metric_unit, metadata, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	batch := &pgx.Batch{}
	for _, m := range metrics {
		metadataJSON, err := json.Marshal(m.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metric metadata: %w", err)
		}
		batch.Queue(query, m.ID, m.Name, m.Value, m.Unit, metadataJSON, m.Timestamp)
	}

	results := r.conn.Pool().SendBatch(ctx, batch)
	defer results.Close()

	for range metrics {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to save metrics batch: %w", err)
		}
	}

	return nil
}

// SaveSnapshot appends one analytics snapshot row.
func (r *MetricsRepository) SaveSnapshot(ctx context.Context, snapshot *analytics.AnalyticsSnapshot) error {
	query := `
		INSERT INTO analytics_snapshots (id, snapshot_type, snapshot_date, user_id, metrics, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	metricsJSON, err := json.Marshal(snapshot.Metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot metrics: %w", err)
	}

	_, err = r.conn.Exec(ctx, query,
		snapshot.ID,
		snapshot.SnapshotType,
		snapshot.SnapshotDate,
		snapshot.UserID,
		metricsJSON,
		snapshot.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	return nil
}

// DeleteSnapshotsBefore removes snapshots older than cutoff and returns
// the number of rows deleted.
func (r *MetricsRepository) DeleteSnapshotsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	query := `DELETE FROM analytics_snapshots WHERE snapshot_date < $1`

	tag, err := r.conn.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old snapshots: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// INTEGRATION LOG REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// IntegrationLogRepository implements analytics.IntegrationLogRepository for PostgreSQL.
type IntegrationLogRepository struct {
	conn *Connection
}

// NewIntegrationLogRepository creates a new IntegrationLogRepository.
func NewIntegrationLogRepository(conn *Connection) *IntegrationLogRepository {
	return &IntegrationLogRepository{conn: conn}
}

// SaveLog appends one integration log row.
func (r *IntegrationLogRepository) SaveLog(ctx context.Context, log *analytics.IntegrationLog) error {
	query := `
		INSERT INTO integration_logs (
			id, integration_type, action, status, user_id,
			request_data, response_data, error_message, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	requestJSON, err := json.Marshal(log.RequestData)
	if err != nil {
		return fmt.Errorf("failed to marshal request data: %w", err)
	}
	responseJSON, err := json.Marshal(log.ResponseData)
	if err != nil {
		return fmt.Errorf("failed to marshal response data: %w", err)
	}

	_, err = r.conn.Exec(ctx, query,
		log.ID,
		log.IntegrationType,
		log.Action,
		log.Status,
		log.UserID,
		requestJSON,
		responseJSON,
		log.ErrorMessage,
		log.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to save integration log: %w", err)
	}

	return nil
}
