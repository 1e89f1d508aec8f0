package budget

import (
	"math"
	"strconv"
	"strings"

	"github.com/vietddude/gqlgate/internal/core/domain"
	"github.com/vietddude/gqlgate/internal/core/metrics"
)

// Quota headers sent by the remote API.
const (
	HeaderRemaining  = "x-ratelimit-remaining"
	HeaderLimit      = "x-ratelimit-limit"
	HeaderReset      = "x-ratelimit-reset"
	HeaderRetryAfter = "retry-after"
)

// lowQuotaPercent is the remaining share below which a warning is logged.
const lowQuotaPercent = 20.0

// UpdateFromHeaders records the quota reported in a response. Missing or
// empty headers leave the previous value in place.
func (l *RateLimiter) UpdateFromHeaders(headers domain.Headers) {
	remaining, hasRemaining := nonEmpty(headers, HeaderRemaining)
	reset, hasReset := nonEmpty(headers, HeaderReset)
	retryAfter, hasRetryAfter := nonEmpty(headers, HeaderRetryAfter)

	l.mu.Lock()
	if hasRemaining {
		v := parseHeaderInt(remaining)
		l.apiRemainingHour = &v
	}
	if hasReset {
		v := parseHeaderInt(reset)
		l.apiResetTime = &v
	}
	if hasRetryAfter {
		v := parseHeaderInt(retryAfter)
		l.apiRetryAfter = &v
		l.retryAfterSeenAt = l.now()
	}

	var left float64
	known := l.apiRemainingHour != nil
	if known {
		left = *l.apiRemainingHour
	}
	l.mu.Unlock()

	if !known || math.IsNaN(left) {
		return
	}
	metrics.APIRemainingQuota.Set(left)

	percent := left / float64(l.cfg.MaxRequestsPerHour) * 100
	if percent < lowQuotaPercent {
		l.log.Warn("Low quota warning",
			"remaining", int64(left),
			"percent", strconv.FormatFloat(percent, 'f', 1, 64),
		)
	}
}

func nonEmpty(headers domain.Headers, name string) (string, bool) {
	v, ok := headers.Get(name)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// parseHeaderInt reads a leading integer: optional whitespace and sign
// followed by digits, ignoring trailing characters. A value without leading
// digits is NaN.
func parseHeaderInt(s string) float64 {
	s = strings.TrimLeft(s, " \t\r\n")
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
