package routing

import (
	"math"
	"regexp"
	"strconv"
	"time"
)

var retryAfterPattern = regexp.MustCompile(`(?i)retry[- ]after[:\s]+(\d+)`)

// Backoff returns the delay before retrying after the given 1-based attempt
// failed with err.
//
// A "retry-after: N" hint in the error message wins and is only capped by
// MaxDelay. Otherwise the delay is BaseDelay*2^(attempt-1), perturbed by a
// uniform draw in ±JitterFactor of that value and capped by MaxDelay.
func (c RetryConfig) Backoff(attempt int, err error, random func() float64) time.Duration {
	if hint, ok := RetryAfterHint(err); ok {
		return min(hint, c.MaxDelay)
	}

	if attempt < 1 {
		attempt = 1
	}
	exponential := float64(c.BaseDelay) * math.Pow(2, float64(attempt-1))
	jitter := exponential * c.JitterFactor
	delay := exponential + (random()*2-1)*jitter

	if delay > float64(c.MaxDelay) {
		return c.MaxDelay
	}
	if delay < 0 {
		return 0
	}
	return time.Duration(delay)
}

// RetryAfterHint extracts a "retry-after: N" (seconds) hint from an error message.
func RetryAfterHint(err error) (time.Duration, bool) {
	if err == nil {
		return 0, false
	}
	m := retryAfterPattern.FindStringSubmatch(err.Error())
	if m == nil {
		return 0, false
	}
	secs, convErr := strconv.ParseInt(m[1], 10, 64)
	if convErr != nil || secs > int64(math.MaxInt64/time.Second) {
		return time.Duration(math.MaxInt64), true
	}
	return time.Duration(secs) * time.Second, true
}
