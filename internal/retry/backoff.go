package retry

import "time"

// ExponentialBackoff returns delay based on attempt number.
// The delay doubles with each attempt: base * 2^attempt
func ExponentialBackoff(attempt int, base time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return base * (1 << attempt)
}

// CappedBackoff is ExponentialBackoff bounded by max. A non-positive max disables the bound.
func CappedBackoff(attempt int, base, max time.Duration) time.Duration {
	// past 30 doublings the shift overflows for any useful base
	if attempt > 30 {
		attempt = 30
	}
	d := ExponentialBackoff(attempt, base)
	if max > 0 && (d > max || d <= 0) {
		return max
	}
	return d
}
