// Package timeutil provides time helpers for EduPulse Analytics.
// All analytics timestamps are UTC; hour buckets and timeframe strings
// are the two time formats shared across the aggregation and query layers.
// No external dependencies - uses only standard library.
package timeutil

import (
	"strconv"
	"time"
)

// HourBucketLayout is the layout for hourly aggregate keys (YYYYMMDDHH).
const HourBucketLayout = "2006010215"

// Now returns the current time in UTC.
func Now() time.Time {
	return time.Now().UTC()
}

// HourBucket returns the hour-bucket key (YYYYMMDDHH, UTC) for t.
func HourBucket(t time.Time) string {
	return t.UTC().Format(HourBucketLayout)
}

// ParseHourBucket parses an hour-bucket key back into its starting time.
func ParseHourBucket(bucket string) (time.Time, error) {
	return time.ParseInLocation(HourBucketLayout, bucket, time.UTC)
}

// StartOfHour truncates t to the beginning of its hour.
func StartOfHour(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour)
}

// StartOfDay returns midnight UTC of the day containing t.
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseTimeframe converts a timeframe string into hours.
// Accepted suffixes: m (minutes), h (hours), d (days), w (weeks).
// Unrecognized input defaults to 1 hour.
func ParseTimeframe(timeframe string) float64 {
	if len(timeframe) < 2 {
		return 1
	}

	value, err := strconv.Atoi(timeframe[:len(timeframe)-1])
	if err != nil {
		return 1
	}

	switch timeframe[len(timeframe)-1] {
	case 'm':
		return float64(value) / 60
	case 'h':
		return float64(value)
	case 'd':
		return float64(value) * 24
	case 'w':
		return float64(value) * 24 * 7
	default:
		return 1
	}
}

// TimeframeCutoff returns the instant `timeframe` before now.
func TimeframeCutoff(now time.Time, timeframe string) time.Time {
	hours := ParseTimeframe(timeframe)
	return now.Add(-time.Duration(hours * float64(time.Hour)))
}

// DaysSince returns the number of whole days elapsed between t and now.
func DaysSince(now, t time.Time) int {
	if t.After(now) {
		return 0
	}
	return int(now.Sub(t).Hours() / 24)
}

// IsSameHour reports whether two instants fall in the same UTC hour bucket.
func IsSameHour(t1, t2 time.Time) bool {
	return StartOfHour(t1).Equal(StartOfHour(t2))
}

// FormatRFC3339 renders t as the wire timestamp used in push messages.
func FormatRFC3339(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
