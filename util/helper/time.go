// util/helper/time.go
package helper_util

import (
	"fmt"
	"time"
)

// ParseTime parses an RFC3339 timestamp. An empty string is the zero time.
func ParseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

// ParseQueryTime accepts RFC3339 or a duration counted back from now,
// e.g. "15m".
func ParseQueryTime(value string, now time.Time) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	if d, err := time.ParseDuration(value); err == nil {
		return now.Add(-d), nil
	}
	return time.Time{}, fmt.Errorf("invalid time %q: want RFC3339 or a duration", value)
}
