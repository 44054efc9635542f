package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseTimeframe(t *testing.T) {
	tests := []struct {
		input string
		hours float64
	}{
		{"90m", 1.5},
		{"30m", 0.5},
		{"1h", 1},
		{"2h", 2},
		{"24h", 24},
		{"3d", 72},
		{"1w", 168},
		{"", 1},
		{"h", 1},
		{"abc", 1},
		{"12x", 1},
		{"x2h", 1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.hours, ParseTimeframe(tt.input), "input %q", tt.input)
	}
}

func TestHourBucket(t *testing.T) {
	at := time.Date(2025, 3, 7, 14, 45, 12, 0, time.UTC)
	assert.Equal(t, "2025030714", HourBucket(at))

	// Non-UTC input buckets by its UTC hour
	loc := time.FixedZone("UTC+5", 5*3600)
	local := time.Date(2025, 3, 7, 2, 0, 0, 0, loc)
	assert.Equal(t, "2025030621", HourBucket(local))
}

func TestParseHourBucket_RoundTrip(t *testing.T) {
	at := time.Date(2025, 3, 7, 14, 0, 0, 0, time.UTC)

	parsed, err := ParseHourBucket(HourBucket(at))
	assert.NoError(t, err)
	assert.True(t, parsed.Equal(at))

	_, err = ParseHourBucket("not-a-bucket")
	assert.Error(t, err)
}

func TestStartOfHourAndDay(t *testing.T) {
	at := time.Date(2025, 3, 7, 14, 45, 12, 999, time.UTC)

	assert.Equal(t, time.Date(2025, 3, 7, 14, 0, 0, 0, time.UTC), StartOfHour(at))
	assert.Equal(t, time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC), StartOfDay(at))
}

func TestTimeframeCutoff(t *testing.T) {
	now := time.Date(2025, 3, 7, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, now.Add(-2*time.Hour), TimeframeCutoff(now, "2h"))
	assert.Equal(t, now.Add(-90*time.Minute), TimeframeCutoff(now, "90m"))
	assert.Equal(t, now.Add(-time.Hour), TimeframeCutoff(now, "garbage"))
}

func TestDaysSince(t *testing.T) {
	now := time.Date(2025, 3, 7, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, DaysSince(now, now))
	assert.Equal(t, 0, DaysSince(now, now.Add(-12*time.Hour)))
	assert.Equal(t, 3, DaysSince(now, now.Add(-3*24*time.Hour)))
	assert.Equal(t, 0, DaysSince(now, now.Add(24*time.Hour)))
}

func TestIsSameHour(t *testing.T) {
	base := time.Date(2025, 3, 7, 14, 5, 0, 0, time.UTC)

	assert.True(t, IsSameHour(base, base.Add(50*time.Minute)))
	assert.False(t, IsSameHour(base, base.Add(time.Hour)))
}
