// Package backoff computes the delay between attempts against a resource that
// is still deploying.
package backoff

import "time"

const (
	// First is the delay before the first retry.
	First = 100 * time.Millisecond
	// Cap is the largest delay between attempts.
	Cap = 10240 * time.Millisecond

	unit       = 10 * time.Millisecond
	lastGrowth = 6
)

// Delay returns the wait before retry number attempt, counting from zero.
// Attempts 1 through 6 double from 320ms to 10.24s; later attempts stay at Cap.
func Delay(attempt int) time.Duration {
	switch {
	case attempt <= 0:
		return First
	case attempt <= lastGrowth:
		return unit << uint(attempt+4)
	default:
		return Cap
	}
}

// Sequence returns the first n delays.
func Sequence(n int) []time.Duration {
	out := make([]time.Duration, n)
	for i := range out {
		out[i] = Delay(i)
	}
	return out
}
