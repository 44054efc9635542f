package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/edupulse/edupulse-analytics/internal/domain/analytics"
	"github.com/edupulse/edupulse-analytics/pkg/timeutil"
)

// Alert heuristic constants. These are fixed design values, not
// configuration; changing them changes which users get flagged.
const (
	// engagementWindow is how far back the engagement-drop scan looks.
	engagementWindow = 3 * 24 * time.Hour

	// minActivityCount is the activity floor below which a user is scanned.
	minActivityCount = 5

	// riskPerIdleDay and riskPerMissingActivity weight the risk score.
	riskPerIdleDay         = 0.3
	riskPerMissingActivity = 0.2

	// alertRiskThreshold and highRiskThreshold gate emission and severity.
	alertRiskThreshold = 0.6
	highRiskThreshold  = 0.8

	// lowProgressCeiling and lowProgressAge define the low-progress scan.
	lowProgressCeiling = 20.0
	lowProgressAge     = 7 * 24 * time.Hour
)

// AlertEvaluator flags at-risk users with two heuristics: an
// engagement-drop scan over recent activity and a low-progress scan over
// stalled learning paths. Alerts are ephemeral; nothing is persisted.
type AlertEvaluator struct {
	activities analytics.ActivityRepository
	progress   analytics.ProgressRepository
	logger     *slog.Logger
}

// NewAlertEvaluator creates an evaluator over the given repositories.
func NewAlertEvaluator(
	activities analytics.ActivityRepository,
	progress analytics.ProgressRepository,
	logger *slog.Logger,
) *AlertEvaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &AlertEvaluator{
		activities: activities,
		progress:   progress,
		logger:     logger,
	}
}

// Evaluate runs both heuristics and concatenates their results.
func (e *AlertEvaluator) Evaluate(ctx context.Context, now time.Time) ([]*analytics.Alert, error) {
	alerts, err := e.engagementDropAlerts(ctx, now)
	if err != nil {
		return nil, err
	}

	lowProgress, err := e.lowProgressAlerts(ctx, now)
	if err != nil {
		return nil, err
	}

	return append(alerts, lowProgress...), nil
}

// engagementDropAlerts flags users with fewer than minActivityCount
// activities in the window whose risk score clears the threshold.
// risk = min(days_idle*0.3 + (5-count)*0.2, 1.0), emitted above 0.6,
// "high" above 0.8, "medium" otherwise.
func (e *AlertEvaluator) engagementDropAlerts(ctx context.Context, now time.Time) ([]*analytics.Alert, error) {
	stats, err := e.activities.GetActivityStatsSince(ctx, now.Add(-engagementWindow), minActivityCount)
	if err != nil {
		return nil, fmt.Errorf("activity stats: %w", err)
	}

	alerts := make([]*analytics.Alert, 0)
	for _, stat := range stats {
		idleDays := timeutil.DaysSince(now, stat.LastActivity)
		risk := math.Min(
			float64(idleDays)*riskPerIdleDay+
				float64(minActivityCount-stat.ActivityCount)*riskPerMissingActivity,
			1.0,
		)
		if risk <= alertRiskThreshold {
			continue
		}

		level := analytics.RiskMedium
		if risk > highRiskThreshold {
			level = analytics.RiskHigh
		}

		alerts = append(alerts, &analytics.Alert{
			Type:           analytics.AlertEngagementDrop,
			UserID:         stat.UserID,
			RiskLevel:      level,
			RiskScore:      risk,
			ActivityCount:  stat.ActivityCount,
			LastActivity:   timeutil.FormatRFC3339(stat.LastActivity),
			Recommendation: "Immediate intervention recommended",
		})
	}

	return alerts, nil
}

// lowProgressAlerts flags every learning path below the progress ceiling
// that was started at least lowProgressAge ago, at medium severity.
func (e *AlertEvaluator) lowProgressAlerts(ctx context.Context, now time.Time) ([]*analytics.Alert, error) {
	rows, err := e.progress.GetStalledProgress(ctx, lowProgressCeiling, now.Add(-lowProgressAge))
	if err != nil {
		return nil, fmt.Errorf("stalled progress: %w", err)
	}

	alerts := make([]*analytics.Alert, 0, len(rows))
	for _, row := range rows {
		alerts = append(alerts, &analytics.Alert{
			Type:           analytics.AlertLowProgress,
			UserID:         row.UserID,
			LearningPathID: row.LearningPathID,
			RiskLevel:      analytics.RiskMedium,
			Progress:       row.Progress,
			StartedAt:      timeutil.FormatRFC3339(row.StartedAt),
			Recommendation: "Consider providing additional support or resources",
		})
	}

	return alerts, nil
}
