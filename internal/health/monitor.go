package health

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/vietddude/gqlgate/internal/infra/rpc/budget"
	"github.com/vietddude/gqlgate/internal/infra/rpc/provider"
)

// QuotaSource exposes rate limiter state.
type QuotaSource interface {
	Status() budget.Status
	IsThrottled() bool
	Config() budget.Config
}

// FailureCounter counts journaled failed requests.
type FailureCounter interface {
	Count(ctx context.Context) (int, error)
}

// ProviderHealth reports transport health.
type ProviderHealth interface {
	GetHealth() provider.HealthStatus
}

// Monitor aggregates health status from the gateway components.
type Monitor struct {
	quota    QuotaSource
	failures FailureCounter
	provider ProviderHealth
	log      *slog.Logger
	now      func() time.Time
	cacheTTL time.Duration

	mu         sync.Mutex
	lastCheck  time.Time
	lastReport *Report
}

// MonitorOption customizes a Monitor.
type MonitorOption func(*Monitor)

// WithFailureCounter includes journaled failures in the report.
func WithFailureCounter(f FailureCounter) MonitorOption {
	return func(m *Monitor) { m.failures = f }
}

// WithProvider includes transport health in the report.
func WithProvider(p ProviderHealth) MonitorOption {
	return func(m *Monitor) { m.provider = p }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) MonitorOption {
	return func(m *Monitor) { m.log = log }
}

// WithCacheTTL sets how long a health report is reused.
func WithCacheTTL(d time.Duration) MonitorOption {
	return func(m *Monitor) { m.cacheTTL = d }
}

// NewMonitor creates a new health monitor.
func NewMonitor(quota QuotaSource, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		quota:    quota,
		log:      slog.Default(),
		now:      time.Now,
		cacheTTL: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RateLimit builds the rate limit report and logs when usage is high.
func (m *Monitor) RateLimit() RateLimitReport {
	status := m.quota.Status()
	limits := m.quota.Config()

	hourly := percent(status.RequestsThisHour, limits.MaxRequestsPerHour)
	minute := percent(status.RequestsThisMinute, limits.MaxRequestsPerMinute)

	// Remaining quota counts as used share; unknown means nothing used.
	apiUsed := 0.0
	if status.RemainingHour != nil {
		apiUsed = 100 - float64(*status.RemainingHour)/float64(limits.MaxRequestsPerHour)*100
	}

	worst := math.Max(hourly, math.Max(minute, apiUsed))
	level := levelFor(worst)

	switch level {
	case LevelCritical:
		m.log.Error("Rate limit usage critical", "usage_percent", round1(worst))
	case LevelWarning:
		m.log.Warn("Rate limit usage high", "usage_percent", round1(worst))
	}

	return RateLimitReport{
		WarningLevel: level,
		Throttled:    m.quota.IsThrottled(),
		Queued:       status.Queued,
		Usage: Usage{
			RequestsThisHour:   status.RequestsThisHour,
			RequestsThisMinute: status.RequestsThisMinute,
			HourlyPercent:      round1(hourly),
			MinutePercent:      round1(minute),
		},
		Quota: Quota{
			RemainingHour:   status.RemainingHour,
			RemainingMinute: status.RemainingMinute,
			ResetTime:       m.formatReset(status.ResetTime),
			RetryAfter:      formatRetryAfter(status.RetryAfter),
		},
		Limits: limits,
	}
}

// CheckHealth builds the health report. Reports are cached for the
// configured TTL.
func (m *Monitor) CheckHealth(ctx context.Context) Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if m.lastReport != nil && now.Sub(m.lastCheck) < m.cacheTTL {
		return *m.lastReport
	}

	rl := m.RateLimit()
	report := Report{
		Status:       StatusHealthy,
		WarningLevel: rl.WarningLevel,
		Throttled:    rl.Throttled,
	}

	if m.failures != nil {
		count, err := m.failures.Count(ctx)
		if err != nil {
			m.log.Warn("Failed to count failed requests", "error", err)
		} else {
			report.FailedRequests = count
		}
	}

	if m.provider != nil {
		h := m.provider.GetHealth()
		report.Provider = &h
	}

	// Evaluate Status
	switch {
	case rl.WarningLevel == LevelCritical:
		report.Status = StatusCritical
	case rl.WarningLevel == LevelWarning,
		rl.Throttled,
		report.Provider != nil && !report.Provider.Available:
		report.Status = StatusDegraded
	}

	m.lastCheck = now
	m.lastReport = &report
	return report
}

func (m *Monitor) formatReset(reset *int64) string {
	if reset == nil {
		return "unknown"
	}
	at := time.Unix(*reset, 0).UTC()
	in := int64(at.Sub(m.now()).Seconds())
	return fmt.Sprintf("%s (in %ds)", at.Format(time.RFC3339), in)
}

func formatRetryAfter(v *int64) string {
	if v == nil || *v <= 0 {
		return ""
	}
	return fmt.Sprintf("%ds", *v)
}

func levelFor(usage float64) WarningLevel {
	switch {
	case usage >= criticalPercent:
		return LevelCritical
	case usage >= warningPercent:
		return LevelWarning
	default:
		return LevelNormal
	}
}

func percent(n, limit int) float64 {
	if limit <= 0 {
		return 0
	}
	return float64(n) / float64(limit) * 100
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
