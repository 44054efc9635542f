package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureFlags_Defaults(t *testing.T) {
	ff := LoadFeatureFlags()

	assert.True(t, ff.IsEnabled(FeatureRealtimeWebsocketPush, nil))
	assert.True(t, ff.IsEnabled(FeatureAlertsEngagementDrop, nil))
	assert.True(t, ff.IsEnabled(FeatureIntegrationClassroom, nil))

	// Gemini ships as a 50% gradual rollout.
	features := ff.GetAllFeatures()
	require.Contains(t, features, FeatureIntegrationGemini)
	assert.Equal(t, 50, features[FeatureIntegrationGemini].RolloutPercent)

	assert.False(t, ff.IsEnabled("does.not.exist", nil))
}

func TestFeatureFlags_EnvOverride(t *testing.T) {
	t.Setenv("FEATURE_INTEGRATION_GEMINI", "false")
	t.Setenv("FEATURE_ANALYTICS_SNAPSHOTS", "25")

	ff := LoadFeatureFlags()

	assert.False(t, ff.IsEnabled(FeatureIntegrationGemini, nil))

	features := ff.GetAllFeatures()
	assert.Equal(t, 25, features[FeatureAnalyticsSnapshots].RolloutPercent)
	assert.True(t, features[FeatureAnalyticsSnapshots].Enabled)
}

func TestFeatureFlags_FeatureNameToEnvKey(t *testing.T) {
	assert.Equal(t, "FEATURE_INTEGRATION_GEMINI", featureNameToEnvKey("integration.gemini"))
	assert.Equal(t, "FEATURE_ALERTS_LOW_PROGRESS", featureNameToEnvKey("alerts.low_progress"))
}

func TestFeatureFlags_RolloutBucketing(t *testing.T) {
	ff := LoadFeatureFlags()
	require.NoError(t, ff.SetRolloutPercent(FeatureIntegrationGemini, 50))

	// Consistent hashing keeps each user in the same bucket across calls.
	ctx := &FeatureContext{UserID: "user-42"}
	first := ff.IsEnabled(FeatureIntegrationGemini, ctx)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ff.IsEnabled(FeatureIntegrationGemini, ctx))
	}

	// 0% excludes everyone, 100% includes everyone.
	require.NoError(t, ff.SetRolloutPercent(FeatureIntegrationGemini, 0))
	assert.False(t, ff.IsEnabled(FeatureIntegrationGemini, ctx))

	require.NoError(t, ff.SetRolloutPercent(FeatureIntegrationGemini, 100))
	assert.True(t, ff.IsEnabled(FeatureIntegrationGemini, ctx))
}

func TestFeatureFlags_UserOverride(t *testing.T) {
	ff := LoadFeatureFlags()
	require.NoError(t, ff.DisableFeature(FeatureAlertsLowProgress))

	ctx := &FeatureContext{UserID: "qa-1"}
	assert.False(t, ff.IsEnabled(FeatureAlertsLowProgress, ctx))

	// Per-user override wins over the global state.
	ff.SetUserOverride("qa-1", FeatureAlertsLowProgress, true)
	assert.True(t, ff.IsEnabled(FeatureAlertsLowProgress, ctx))
	assert.False(t, ff.IsEnabled(FeatureAlertsLowProgress, &FeatureContext{UserID: "other"}))

	ff.ClearUserOverrides("qa-1")
	assert.False(t, ff.IsEnabled(FeatureAlertsLowProgress, ctx))
}

func TestFeatureFlags_AdminSeesEverything(t *testing.T) {
	ff := LoadFeatureFlags()
	require.NoError(t, ff.DisableFeature(FeatureIntegrationClassroom))

	admin := &FeatureContext{UserID: "admin-1", Role: "admin", IsAdmin: true}
	assert.True(t, ff.IsEnabled(FeatureIntegrationClassroom, admin))
	assert.False(t, ff.IsEnabled(FeatureIntegrationClassroom, &FeatureContext{UserID: "s1"}))
}

func TestFeatureFlags_SetRolloutPercent_Validation(t *testing.T) {
	ff := LoadFeatureFlags()

	assert.ErrorIs(t, ff.SetRolloutPercent("does.not.exist", 10), ErrFeatureNotFound)
	assert.ErrorIs(t, ff.SetRolloutPercent(FeatureIntegrationGemini, 101), ErrInvalidRolloutPercent)
	assert.ErrorIs(t, ff.SetRolloutPercent(FeatureIntegrationGemini, -1), ErrInvalidRolloutPercent)
}

func TestFeatureFlags_ConvenienceChecks(t *testing.T) {
	ff := LoadFeatureFlags()
	assert.True(t, ff.AlertsEnabled(nil))
	assert.True(t, ff.IntegrationsEnabled(nil))

	require.NoError(t, ff.DisableFeature(FeatureAlertsEngagementDrop))
	require.NoError(t, ff.DisableFeature(FeatureAlertsLowProgress))
	assert.False(t, ff.AlertsEnabled(nil))
}
