package connection

import (
	"math"
	"time"
)

// Backoff returns min(initial × factor^attempt, max).
func Backoff(attempt int, initial time.Duration, factor float64, max time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := float64(initial) * math.Pow(factor, float64(attempt))
	if d >= float64(max) || math.IsInf(d, 1) || math.IsNaN(d) {
		return max
	}
	return time.Duration(d)
}
