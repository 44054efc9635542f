package config

import (
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FeatureFlags manages feature toggles and gradual rollouts.
// Supports percentage rollout, per-user overrides, and time-based
// activation windows.
type FeatureFlags struct {
	mu sync.RWMutex

	// Core features
	features map[string]*Feature

	// Override rules (for testing/debugging)
	userOverrides map[string]map[string]bool // userID -> feature -> enabled
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Rollout percentage (0-100)
	// Users are assigned based on hash of their ID
	RolloutPercent int

	// Time-based activation
	EnabledFrom  *time.Time
	EnabledUntil *time.Time
}

// FeatureContext provides context for feature flag evaluation.
type FeatureContext struct {
	UserID  string // Platform user ID
	Role    string // admin, teacher, student
	IsAdmin bool   // Admin users get all features
}

// Predefined feature flag names.
const (
	// === Realtime Features ===
	FeatureRealtimeWebsocketPush = "realtime.websocket_push" // Live push channel
	FeatureRealtimeLiveBroadcast = "realtime.live_broadcast" // Periodic staff broadcasts
	FeatureRealtimeUserEvents    = "realtime.user_events"    // Fan out tracked events to subscribers

	// === Alert Features ===
	FeatureAlertsEngagementDrop = "alerts.engagement_drop" // Predictive disengagement alerts
	FeatureAlertsLowProgress    = "alerts.low_progress"    // Stalled learning path alerts

	// === Integration Features ===
	FeatureIntegrationClassroom = "integration.classroom" // Google Classroom sync
	FeatureIntegrationGemini    = "integration.gemini"    // AI insights and recommendations

	// === Analytics Features ===
	FeatureAnalyticsSnapshots = "analytics.snapshots" // Hourly snapshot persistence
	FeatureAnalyticsCleanup   = "analytics.cleanup"   // Nightly retention cleanup
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:      make(map[string]*Feature),
		userOverrides: make(map[string]map[string]bool),
	}

	ff.initializeDefaults()
	ff.loadFromEnvironment()

	return ff
}

// initializeDefaults sets up all features with default values.
func (ff *FeatureFlags) initializeDefaults() {
	// Realtime features are the core of the product, on by default
	ff.features[FeatureRealtimeWebsocketPush] = &Feature{
		Name:           FeatureRealtimeWebsocketPush,
		Description:    "Websocket push channel for live dashboards",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureRealtimeLiveBroadcast] = &Feature{
		Name:           FeatureRealtimeLiveBroadcast,
		Description:    "Periodic metric broadcasts to staff connections",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureRealtimeUserEvents] = &Feature{
		Name:           FeatureRealtimeUserEvents,
		Description:    "Fan tracked events out to channel subscribers",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// Alert features
	ff.features[FeatureAlertsEngagementDrop] = &Feature{
		Name:           FeatureAlertsEngagementDrop,
		Description:    "Predictive disengagement risk alerts",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureAlertsLowProgress] = &Feature{
		Name:           FeatureAlertsLowProgress,
		Description:    "Stalled learning path alerts",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// Integrations depend on credentials and roll out gradually
	ff.features[FeatureIntegrationClassroom] = &Feature{
		Name:           FeatureIntegrationClassroom,
		Description:    "Google Classroom course and submission sync",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureIntegrationGemini] = &Feature{
		Name:           FeatureIntegrationGemini,
		Description:    "AI insights and study recommendations",
		Enabled:        true,
		RolloutPercent: 50, // Gradual rollout
	}

	// Analytics persistence
	ff.features[FeatureAnalyticsSnapshots] = &Feature{
		Name:           FeatureAnalyticsSnapshots,
		Description:    "Hourly analytics snapshot persistence",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureAnalyticsCleanup] = &Feature{
		Name:           FeatureAnalyticsCleanup,
		Description:    "Nightly snapshot retention cleanup",
		Enabled:        true,
		RolloutPercent: 100,
	}
}

// loadFromEnvironment loads feature flag overrides from env vars.
// Format: FEATURE_<NAME>=true|false|<percent>
// Example: FEATURE_INTEGRATION_GEMINI=true
// Example: FEATURE_INTEGRATION_GEMINI=50 (50% rollout)
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		envKey := featureNameToEnvKey(name)
		if val := os.Getenv(envKey); val != "" {
			// Try parsing as boolean
			if b, err := strconv.ParseBool(val); err == nil {
				feature.Enabled = b
				if b {
					feature.RolloutPercent = 100
				} else {
					feature.RolloutPercent = 0
				}
				continue
			}

			// Try parsing as percentage
			if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
				feature.Enabled = p > 0
				feature.RolloutPercent = p
			}
		}
	}
}

// featureNameToEnvKey converts feature name to environment variable key.
// "integration.gemini" -> "FEATURE_INTEGRATION_GEMINI"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is enabled for the given context.
func (ff *FeatureFlags) IsEnabled(featureName string, ctx *FeatureContext) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	// Check user overrides first
	if ctx != nil && ctx.UserID != "" {
		if userOverrides, ok := ff.userOverrides[ctx.UserID]; ok {
			if enabled, ok := userOverrides[featureName]; ok {
				return enabled
			}
		}
	}

	feature, ok := ff.features[featureName]
	if !ok {
		return false
	}

	// Admin users get all features
	if ctx != nil && ctx.IsAdmin {
		return true
	}

	if !feature.Enabled {
		return false
	}

	// Check time-based activation
	now := time.Now()
	if feature.EnabledFrom != nil && now.Before(*feature.EnabledFrom) {
		return false
	}
	if feature.EnabledUntil != nil && now.After(*feature.EnabledUntil) {
		return false
	}

	// Check rollout percentage
	if feature.RolloutPercent < 100 && ctx != nil && ctx.UserID != "" {
		return ff.isInRollout(ctx.UserID, featureName, feature.RolloutPercent)
	}

	return feature.RolloutPercent > 0
}

// isInRollout determines if a user is in the rollout percentage.
// Uses consistent hashing so users stay in their bucket.
func (ff *FeatureFlags) isInRollout(userID, featureName string, percent int) bool {
	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(userID))
	hash := h.Sum32()

	// Map to 0-99 range
	bucket := int(hash % 100)

	return bucket < percent
}

// SetUserOverride sets a feature override for a specific user.
// Useful for testing and debugging.
func (ff *FeatureFlags) SetUserOverride(userID, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if _, ok := ff.userOverrides[userID]; !ok {
		ff.userOverrides[userID] = make(map[string]bool)
	}
	ff.userOverrides[userID][featureName] = enabled
}

// ClearUserOverrides removes all overrides for a user.
func (ff *FeatureFlags) ClearUserOverrides(userID string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.userOverrides, userID)
}

// SetRolloutPercent updates the rollout percentage for a feature.
// Thread-safe for live updates.
func (ff *FeatureFlags) SetRolloutPercent(featureName string, percent int) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}

	if percent < 0 || percent > 100 {
		return ErrInvalidRolloutPercent
	}

	feature.RolloutPercent = percent
	feature.Enabled = percent > 0

	return nil
}

// EnableFeature enables a feature at 100% rollout.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 100)
}

// DisableFeature disables a feature completely.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 0)
}

// GetAllFeatures returns a copy of all feature configurations.
func (ff *FeatureFlags) GetAllFeatures() map[string]*Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make(map[string]*Feature, len(ff.features))
	for k, v := range ff.features {
		featureCopy := *v
		result[k] = &featureCopy
	}
	return result
}

// --- Convenience methods for common checks ---

// AlertsEnabled checks if any alert features are enabled.
func (ff *FeatureFlags) AlertsEnabled(ctx *FeatureContext) bool {
	return ff.IsEnabled(FeatureAlertsEngagementDrop, ctx) ||
		ff.IsEnabled(FeatureAlertsLowProgress, ctx)
}

// IntegrationsEnabled checks if any external integrations are enabled.
func (ff *FeatureFlags) IntegrationsEnabled(ctx *FeatureContext) bool {
	return ff.IsEnabled(FeatureIntegrationClassroom, ctx) ||
		ff.IsEnabled(FeatureIntegrationGemini, ctx)
}

// --- Errors ---

var (
	ErrFeatureNotFound       = &FeatureFlagError{Message: "feature not found"}
	ErrInvalidRolloutPercent = &FeatureFlagError{Message: "rollout percent must be 0-100"}
)

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
