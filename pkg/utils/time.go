package utils

import "time"

// Now returns current time (useful for mocking in tests)
var Now = time.Now

// SecondsUntil returns the whole seconds from now until t, never negative.
func SecondsUntil(now, t time.Time) int64 {
	remaining := t.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int64(remaining / time.Second)
}
