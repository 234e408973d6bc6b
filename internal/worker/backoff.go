package worker

import (
	"math"
	"math/rand/v2"
	"time"
)

const (
	defaultBaseBackoff = 2 * time.Second
	maxBackoff         = 5 * time.Minute
)

// Backoff doubles base per attempt (attempt 0 waits base), caps at
// maxBackoff and adds up to 250ms of jitter.
func Backoff(attempt int, base time.Duration) time.Duration {
	if base <= 0 {
		base = defaultBaseBackoff
	}

	delay := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	if delay > maxBackoff || delay <= 0 {
		delay = maxBackoff
	}

	return delay + time.Duration(rand.IntN(250))*time.Millisecond
}
