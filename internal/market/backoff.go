package market

import "time"

const (
	baseDelay = 1 * time.Second
	maxDelay  = 30 * time.Second
)

// Backoff returns baseDelay × 2^retry, capped at maxDelay.
// A negative retry returns baseDelay.
func Backoff(retry int) time.Duration {
	if retry < 0 {
		return baseDelay
	}
	// 2^5 s already exceeds maxDelay; avoids shift overflow.
	if retry > 5 {
		return maxDelay
	}
	d := baseDelay * time.Duration(1<<retry)
	if d > maxDelay {
		return maxDelay
	}
	return d
}
