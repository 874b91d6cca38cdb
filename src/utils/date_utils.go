package utils

import "time"

// ParseRFC3339 parses a persisted RFC3339 timestamp. Returns zero time for
// empty or unparsable input so callers can sort those rows last.
func ParseRFC3339(dateStr string) time.Time {
	if dateStr == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, dateStr)
	if err != nil {
		return time.Time{}
	}
	return t
}
