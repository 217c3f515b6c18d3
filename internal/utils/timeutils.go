package utils

import "time"

// EpochMillis converts a time to Unix epoch milliseconds.
func EpochMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// FromEpochMillis converts Unix epoch milliseconds back to a time.Time in UTC.
func FromEpochMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// ParseTimestamp accepts either an RFC3339 string or empty input, returning
// epoch milliseconds. Empty input yields the fallback.
func ParseTimestamp(s string, fallback int64) (int64, error) {
	if s == "" {
		return fallback, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, NewAppError("utils.ParseTimestamp", "invalid RFC3339 timestamp", err)
	}
	return t.UnixMilli(), nil
}

// ClampRange ensures start <= end, swapping when callers pass them reversed.
func ClampRange(start, end int64) (int64, int64) {
	if end < start {
		return end, start
	}
	return start, end
}
