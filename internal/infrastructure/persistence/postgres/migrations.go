// Package postgres implements the PostgreSQL persistence layer for EduPulse Analytics.
package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE USER ACTIVITIES
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create user activities table
-- Version: 001

CREATE TABLE IF NOT EXISTS user_activities (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id VARCHAR(100) NOT NULL,
    action VARCHAR(50) NOT NULL,
    resource_type VARCHAR(50) NOT NULL DEFAULT 'unknown',
    resource_id VARCHAR(100) NOT NULL DEFAULT '',
    duration_seconds INTEGER NOT NULL DEFAULT 0,
    metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
    occurred_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_duration CHECK (duration_seconds >= 0)
);

-- Indexes for common queries
CREATE INDEX IF NOT EXISTS idx_user_activities_user_id ON user_activities(user_id);
CREATE INDEX IF NOT EXISTS idx_user_activities_occurred_at ON user_activities(occurred_at);
CREATE INDEX IF NOT EXISTS idx_user_activities_action_time ON user_activities(action, occurred_at);
CREATE INDEX IF NOT EXISTS idx_user_activities_user_time ON user_activities(user_id, occurred_at DESC);
`

const migration001Down = `
DROP TABLE IF EXISTS user_activities;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE ENGAGEMENT AND PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create course engagement and learning path progress tables
-- Version: 002

CREATE TABLE IF NOT EXISTS course_engagements (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id VARCHAR(100) NOT NULL,
    course_id VARCHAR(100) NOT NULL,
    progress DOUBLE PRECISION NOT NULL DEFAULT 0,
    time_spent_seconds INTEGER NOT NULL DEFAULT 0,
    last_accessed TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    completed_at TIMESTAMP WITH TIME ZONE,
    rating DOUBLE PRECISION,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_progress CHECK (progress >= 0 AND progress <= 100),
    CONSTRAINT valid_rating CHECK (rating IS NULL OR (rating >= 0 AND rating <= 5)),
    CONSTRAINT uq_engagement_user_course UNIQUE (user_id, course_id)
);

CREATE INDEX IF NOT EXISTS idx_course_engagements_user ON course_engagements(user_id);
CREATE INDEX IF NOT EXISTS idx_course_engagements_course ON course_engagements(course_id);
CREATE INDEX IF NOT EXISTS idx_course_engagements_accessed ON course_engagements(last_accessed);

CREATE TABLE IF NOT EXISTS student_progress (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id VARCHAR(100) NOT NULL,
    learning_path_id VARCHAR(100) NOT NULL,
    progress DOUBLE PRECISION NOT NULL DEFAULT 0,
    current_milestone INTEGER NOT NULL DEFAULT 0,
    time_spent_seconds INTEGER NOT NULL DEFAULT 0,
    started_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    last_activity TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    completed_at TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_path_progress CHECK (progress >= 0 AND progress <= 100),
    CONSTRAINT uq_progress_user_path UNIQUE (user_id, learning_path_id)
);

CREATE INDEX IF NOT EXISTS idx_student_progress_user ON student_progress(user_id);
CREATE INDEX IF NOT EXISTS idx_student_progress_activity ON student_progress(last_activity);
CREATE INDEX IF NOT EXISTS idx_student_progress_stalled ON student_progress(progress, started_at);
`

const migration002Down = `
DROP TABLE IF EXISTS student_progress;
DROP TABLE IF EXISTS course_engagements;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE METRICS AND SNAPSHOTS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create system metrics, analytics snapshots and integration logs
-- Version: 003

CREATE TABLE IF NOT EXISTS system_metrics (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    metric_name VARCHAR(100) NOT NULL,
    metric_value DOUBLE PRECISION NOT NULL,
    metric_unit VARCHAR(30) NOT NULL DEFAULT 'count',
    metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
    recorded_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_system_metrics_name_time ON system_metrics(metric_name, recorded_at DESC);

CREATE TABLE IF NOT EXISTS analytics_snapshots (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    snapshot_type VARCHAR(30) NOT NULL,
    snapshot_date TIMESTAMP WITH TIME ZONE NOT NULL,
    user_id VARCHAR(100) NOT NULL DEFAULT '',
    metrics JSONB NOT NULL DEFAULT '{}'::jsonb,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_snapshot_type CHECK (snapshot_type IN ('hourly', 'daily'))
);

CREATE INDEX IF NOT EXISTS idx_analytics_snapshots_date ON analytics_snapshots(snapshot_date);
CREATE INDEX IF NOT EXISTS idx_analytics_snapshots_type_date ON analytics_snapshots(snapshot_type, snapshot_date DESC);

CREATE TABLE IF NOT EXISTS integration_logs (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    integration_type VARCHAR(50) NOT NULL,
    action VARCHAR(100) NOT NULL,
    status VARCHAR(20) NOT NULL,
    user_id VARCHAR(100) NOT NULL DEFAULT '',
    request_data JSONB NOT NULL DEFAULT '{}'::jsonb,
    response_data JSONB NOT NULL DEFAULT '{}'::jsonb,
    error_message TEXT NOT NULL DEFAULT '',
    occurred_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_log_status CHECK (status IN ('success', 'error', 'pending'))
);

CREATE INDEX IF NOT EXISTS idx_integration_logs_type_time ON integration_logs(integration_type, occurred_at DESC);
`

const migration003Down = `
DROP TABLE IF EXISTS integration_logs;
DROP TABLE IF EXISTS analytics_snapshots;
DROP TABLE IF EXISTS system_metrics;
`
