// Package rpc provides a quota-aware client for a remote GraphQL API.
//
// This package offers:
//   - Sliding-window admission control (hourly and per-minute)
//   - FIFO queueing while throttled
//   - Retries with exponential backoff and Retry-After hints
//   - Batches with partial-failure semantics
//
// # Quick Start
//
//	import "github.com/vietddude/gqlgate/internal/infra/rpc"
//
//	sender := rpc.NewHTTPProvider("linear", endpoint, 30*time.Second,
//	    provider.WithAuthorization(apiKey))
//	client := rpc.New(sender, rpc.DefaultLimiterConfig(), rpc.DefaultRetryConfig)
//
//	data, err := client.Execute(ctx, `query { viewer { id } }`, nil)
//
// # Package Structure
//
//   - provider/ - Raw transport (HTTPProvider)
//   - routing/  - Retry engine, backoff policy, error classification
//   - budget/   - Rate limiter and quota header ingestion
//
// Most types are re-exported at the root level for convenience.
package rpc

import (
	"time"

	"github.com/vietddude/gqlgate/internal/infra/rpc/budget"
	"github.com/vietddude/gqlgate/internal/infra/rpc/provider"
	"github.com/vietddude/gqlgate/internal/infra/rpc/routing"
)

// =============================================================================
// Re-exported types from provider package
// =============================================================================

// Sender performs one raw request against the remote API.
type Sender = provider.Sender

// SenderFunc adapts a function to Sender.
type SenderFunc = provider.SenderFunc

// Response is the successful result of one raw request.
type Response = provider.Response

// HTTPProvider implements Sender for GraphQL over HTTP.
type HTTPProvider = provider.HTTPProvider

// NewHTTPProvider creates a new GraphQL-over-HTTP sender.
func NewHTTPProvider(name, endpoint string, timeout time.Duration, opts ...provider.HTTPOption) *HTTPProvider {
	return provider.NewHTTPProvider(name, endpoint, timeout, opts...)
}

// =============================================================================
// Re-exported types from routing package
// =============================================================================

// RetryConfig defines retry behavior.
type RetryConfig = routing.RetryConfig

// Retrier executes operations with exponential backoff.
type Retrier = routing.Retrier

// DefaultRetryConfig provides sensible retry defaults.
var DefaultRetryConfig = routing.DefaultRetryConfig

// IsRetryableError reports whether err is worth another attempt.
var IsRetryableError = routing.IsRetryableError

// =============================================================================
// Re-exported types from budget package
// =============================================================================

// LimiterConfig holds rate limiter configuration.
type LimiterConfig = budget.Config

// RateLimiter admits requests against sliding windows.
type RateLimiter = budget.RateLimiter

// RateLimitError is returned when a slot is unavailable and queueing is off.
type RateLimitError = budget.RateLimitError

// LimiterStatus is a snapshot of rate limiter state.
type LimiterStatus = budget.Status

// ErrLimiterReset is returned to queued callers when the limiter is reset.
var ErrLimiterReset = budget.ErrLimiterReset

// DefaultLimiterConfig returns the default rate limits.
func DefaultLimiterConfig() LimiterConfig {
	return budget.DefaultConfig()
}

// New builds a Client with its own limiter and retrier.
func New(sender Sender, limits LimiterConfig, retry RetryConfig, opts ...ClientOption) *Client {
	return NewClient(sender, budget.NewRateLimiter(limits), routing.NewRetrier(retry), opts...)
}
