// Package health exposes gateway health and rate limit status over HTTP.
package health

import (
	"github.com/vietddude/gqlgate/internal/infra/rpc/budget"
	"github.com/vietddude/gqlgate/internal/infra/rpc/provider"
)

// SystemStatus represents the overall health state of the gateway.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// WarningLevel grades quota usage.
type WarningLevel string

const (
	LevelNormal   WarningLevel = "normal"
	LevelWarning  WarningLevel = "warning"
	LevelCritical WarningLevel = "critical"
)

// Usage thresholds, in percent.
const (
	warningPercent  = 80.0
	criticalPercent = 95.0
)

// Usage contains local window counts and their share of the configured limits.
type Usage struct {
	RequestsThisHour   int     `json:"requests_this_hour"`
	RequestsThisMinute int     `json:"requests_this_minute"`
	HourlyPercent      float64 `json:"hourly_usage_percent"`
	MinutePercent      float64 `json:"minute_usage_percent"`
}

// Quota contains the values last reported by the remote API.
type Quota struct {
	RemainingHour   *int64 `json:"remaining_hour"`
	RemainingMinute *int64 `json:"remaining_minute"`
	ResetTime       string `json:"reset_time"`
	RetryAfter      string `json:"retry_after,omitempty"`
}

// RateLimitReport is the payload of the /ratelimit endpoint.
type RateLimitReport struct {
	WarningLevel WarningLevel  `json:"warning_level"`
	Throttled    bool          `json:"is_throttled"`
	Queued       int           `json:"queued"`
	Usage        Usage         `json:"usage"`
	Quota        Quota         `json:"quota"`
	Limits       budget.Config `json:"limits"`
}

// Report contains the full gateway health report.
type Report struct {
	Status         SystemStatus           `json:"status"`
	WarningLevel   WarningLevel           `json:"warning_level"`
	Throttled      bool                   `json:"is_throttled"`
	FailedRequests int                    `json:"failed_requests"`
	Provider       *provider.HealthStatus `json:"provider,omitempty"`
}
