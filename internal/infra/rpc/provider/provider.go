// Package provider implements the raw transport to the remote GraphQL API.
//
// This package contains:
//   - Sender interface: one raw request, no retries or admission control
//   - HTTPProvider: GraphQL over HTTP implementation with health tracking
package provider

import (
	"context"
	"encoding/json"
	"time"

	"github.com/vietddude/gqlgate/internal/core/domain"
)

// Response is the successful result of one raw request.
type Response struct {
	Data    json.RawMessage
	Headers domain.Headers
}

// Sender performs exactly one request against the remote API.
type Sender interface {
	Send(ctx context.Context, document string, variables map[string]any) (*Response, error)
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, document string, variables map[string]any) (*Response, error)

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, document string, variables map[string]any) (*Response, error) {
	return f(ctx, document, variables)
}

// HealthStatus represents the health state of a provider.
type HealthStatus struct {
	Available     bool          `json:"available"`
	Latency       time.Duration `json:"latency"`
	ErrorRate     float64       `json:"error_rate"`
	LastSuccessAt time.Time     `json:"last_success_at"`
	LastFailureAt time.Time     `json:"last_failure_at"`
	Throttled429  int           `json:"throttled_429"`
}
