package routing

import (
	"context"
	"errors"
	"strings"
)

// Substring groups checked in order. The first group that matches decides,
// so a message naming both a timeout and a 404 is retryable.
var (
	networkPatterns = []string{
		"network",
		"timeout",
		"econnrefused",
		"econnreset",
		"etimedout",
		"dns",
	}
	rateLimitPatterns = []string{
		"rate limit",
		"429",
	}
	serverPatterns = []string{
		"500",
		"502",
		"503",
		"504",
		"internal server error",
		"bad gateway",
		"service unavailable",
		"gateway timeout",
	}
	requestTimeoutPatterns = []string{
		"408",
		"request timeout",
	}
	clientPatterns = []string{
		"400",
		"401",
		"403",
		"404",
		"422",
		"bad request",
		"unauthorized",
		"forbidden",
		"not found",
		"validation",
	}
)

// IsRetryableError reports whether err looks transient.
//
// Classification is textual: the transport surfaces nothing but messages.
// Unknown messages are treated as transient. Cancellation is never retried;
// a deadline may belong to a single attempt, so it is left to the text checks.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	msg := strings.ToLower(err.Error())

	switch {
	case containsAny(msg, networkPatterns):
		return true
	case containsAny(msg, rateLimitPatterns):
		return true
	case containsAny(msg, serverPatterns):
		return true
	case containsAny(msg, requestTimeoutPatterns):
		return true
	case containsAny(msg, clientPatterns):
		return false
	default:
		return true
	}
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
