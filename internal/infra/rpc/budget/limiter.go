// Package budget handles API quota tracking and request admission.
//
// This package contains:
//   - RateLimiter: sliding-window admission controller with FIFO queueing
//   - header ingestion for quota values reported by the remote API
//   - Status: snapshot for monitoring endpoints
package budget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/gqlgate/internal/core/metrics"
)

const (
	hourWindow   = time.Hour
	minuteWindow = time.Minute
)

// ErrLimiterReset is returned to queued callers when the limiter is reset.
var ErrLimiterReset = errors.New("rate limiter reset")

// Config holds rate limiter configuration.
type Config struct {
	MaxRequestsPerHour   int     `yaml:"max_requests_per_hour"   json:"max_per_hour"`
	MaxRequestsPerMinute int     `yaml:"max_requests_per_minute" json:"max_per_minute"`
	SafetyMargin         float64 `yaml:"safety_margin"           json:"safety_margin"` // throttle at this fraction of the limit
	EnableQueueing       bool    `yaml:"enable_queueing"         json:"enable_queueing"`
}

// DefaultConfig returns limits matching the remote API's published quota.
func DefaultConfig() Config {
	return Config{
		MaxRequestsPerHour:   1000,
		MaxRequestsPerMinute: 100,
		SafetyMargin:         0.9,
		EnableQueueing:       true,
	}
}

// RateLimitError is returned when a slot is not available and queueing is disabled.
type RateLimitError struct {
	Wait time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit reached, wait %dms before retrying", e.Wait.Milliseconds())
}

// Status is a point-in-time view of limiter state.
type Status struct {
	RequestsThisHour   int    `json:"requests_this_hour"`
	RequestsThisMinute int    `json:"requests_this_minute"`
	RemainingHour      *int64 `json:"remaining_hour,omitempty"`
	RemainingMinute    *int64 `json:"remaining_minute,omitempty"`
	ResetTime          *int64 `json:"reset_time,omitempty"`  // unix seconds
	RetryAfter         *int64 `json:"retry_after,omitempty"` // seconds
	Queued             int    `json:"queued"`
}

type waiter struct {
	ready      chan error
	enqueuedAt time.Time
}

// RateLimiter admits outbound requests against hourly and per-minute
// sliding windows and the quota last reported by the API.
type RateLimiter struct {
	cfg   Config
	log   *slog.Logger
	now   func() time.Time
	after func(time.Duration) <-chan time.Time

	mu     sync.Mutex
	hourly []time.Time
	minute []time.Time

	// API reported values; nil until observed, NaN when the header was garbage.
	apiRemainingHour   *float64
	apiRemainingMinute *float64
	apiResetTime       *float64
	apiRetryAfter      *float64
	retryAfterSeenAt   time.Time

	queue    []*waiter
	draining bool
	stop     chan struct{} // closed by Reset to end the current drain loop
}

// Option customizes a RateLimiter.
type Option func(*RateLimiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *RateLimiter) { l.now = now }
}

// WithTimer overrides how the drain loop sleeps.
func WithTimer(after func(time.Duration) <-chan time.Time) Option {
	return func(l *RateLimiter) { l.after = after }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(l *RateLimiter) { l.log = log }
}

// NewRateLimiter creates a limiter. Non-positive limits and an out of range
// safety margin fall back to DefaultConfig values.
func NewRateLimiter(cfg Config, opts ...Option) *RateLimiter {
	def := DefaultConfig()
	if cfg.MaxRequestsPerHour <= 0 {
		cfg.MaxRequestsPerHour = def.MaxRequestsPerHour
	}
	if cfg.MaxRequestsPerMinute <= 0 {
		cfg.MaxRequestsPerMinute = def.MaxRequestsPerMinute
	}
	if cfg.SafetyMargin <= 0 || cfg.SafetyMargin > 1 {
		cfg.SafetyMargin = def.SafetyMargin
	}

	l := &RateLimiter{
		cfg:   cfg,
		log:   slog.Default(),
		now:   time.Now,
		after: time.After,
		stop:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Config returns the effective configuration.
func (l *RateLimiter) Config() Config {
	return l.cfg
}

// Acquire blocks until the caller may send one request.
//
// It returns immediately when below every threshold. Otherwise it either
// fails with *RateLimitError (queueing disabled) or joins the FIFO queue.
// A queued caller leaves the queue when ctx is done, or fails with
// ErrLimiterReset when Reset is called.
func (l *RateLimiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	now := l.now()
	l.purge(now)
	wait := l.waitTime(now)

	// Arrivals never overtake callers that are already queued.
	if wait <= 0 && len(l.queue) == 0 {
		l.record(now)
		l.mu.Unlock()
		metrics.AdmissionsTotal.WithLabelValues("immediate").Inc()
		return nil
	}

	if !l.cfg.EnableQueueing {
		l.mu.Unlock()
		metrics.AdmissionsTotal.WithLabelValues("rejected").Inc()
		return &RateLimitError{Wait: wait}
	}

	w := &waiter{ready: make(chan error, 1), enqueuedAt: now}
	l.queue = append(l.queue, w)
	metrics.QueueDepth.Set(float64(len(l.queue)))
	if !l.draining {
		l.draining = true
		go l.drain(l.stop)
	}
	l.mu.Unlock()
	metrics.AdmissionsTotal.WithLabelValues("queued").Inc()

	select {
	case err := <-w.ready:
		return err
	case <-ctx.Done():
		l.mu.Lock()
		removed := l.removeWaiter(w)
		l.mu.Unlock()
		if removed {
			return ctx.Err()
		}
		// Admitted (or reset) while we were giving up.
		return <-w.ready
	}
}

// IsThrottled reports whether the next Acquire would have to wait.
func (l *RateLimiter) IsThrottled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.waitTime(l.now()) > 0
}

// Status returns current window counts and API reported quota.
func (l *RateLimiter) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.purge(l.now())
	return Status{
		RequestsThisHour:   len(l.hourly),
		RequestsThisMinute: len(l.minute),
		RemainingHour:      reported(l.apiRemainingHour),
		RemainingMinute:    reported(l.apiRemainingMinute),
		ResetTime:          reported(l.apiResetTime),
		RetryAfter:         reported(l.apiRetryAfter),
		Queued:             len(l.queue),
	}
}

// Reset clears all tracked state. Queued callers fail with ErrLimiterReset
// and the running drain loop exits.
func (l *RateLimiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, w := range l.queue {
		w.ready <- ErrLimiterReset
	}
	if len(l.queue) > 0 {
		l.log.Warn("Rate limiter reset with queued requests", "dropped", len(l.queue))
	}
	l.queue = nil
	metrics.QueueDepth.Set(0)

	close(l.stop)
	l.stop = make(chan struct{})
	l.draining = false

	l.hourly = nil
	l.minute = nil
	l.apiRemainingHour = nil
	l.apiRemainingMinute = nil
	l.apiResetTime = nil
	l.apiRetryAfter = nil
	l.retryAfterSeenAt = time.Time{}
}

// drain admits queued callers one at a time in FIFO order. Only one drain
// loop runs per stop channel; Reset closes the channel to end it.
func (l *RateLimiter) drain(stop chan struct{}) {
	for {
		l.mu.Lock()
		if stopped(stop) {
			l.mu.Unlock()
			return
		}
		if len(l.queue) == 0 {
			l.draining = false
			l.mu.Unlock()
			return
		}
		now := l.now()
		l.purge(now)
		wait := l.waitTime(now)
		queued := len(l.queue)
		l.mu.Unlock()

		if wait > 0 {
			l.log.Info("Throttling: waiting before next request", "wait", wait, "queued", queued)
			select {
			case <-l.after(wait):
			case <-stop:
				return
			}
		}

		l.mu.Lock()
		if stopped(stop) {
			l.mu.Unlock()
			return
		}
		if len(l.queue) > 0 {
			w := l.queue[0]
			l.queue[0] = nil
			l.queue = l.queue[1:]
			l.record(l.now())
			w.ready <- nil
			metrics.QueueDepth.Set(float64(len(l.queue)))
		}
		l.mu.Unlock()
	}
}

// waitTime computes how long the next admission must wait. It does not
// modify the windows, so callers that want purged state purge first.
func (l *RateLimiter) waitTime(now time.Time) time.Duration {
	if l.apiRetryAfter != nil && *l.apiRetryAfter > 0 {
		until := l.retryAfterSeenAt.Add(seconds(*l.apiRetryAfter))
		if wait := until.Sub(now); wait > 0 {
			return wait
		}
	}

	minute := inWindow(l.minute, now, minuteWindow)
	if len(minute) > 0 && len(minute) >= l.threshold(l.cfg.MaxRequestsPerMinute) {
		if wait := minute[0].Add(minuteWindow).Sub(now); wait > 0 {
			return wait
		}
	}

	hourly := inWindow(l.hourly, now, hourWindow)
	if len(hourly) > 0 && len(hourly) >= l.threshold(l.cfg.MaxRequestsPerHour) {
		if wait := hourly[0].Add(hourWindow).Sub(now); wait > 0 {
			return wait
		}
	}

	if l.apiRemainingHour != nil && *l.apiRemainingHour == 0 &&
		l.apiResetTime != nil && *l.apiResetTime > 0 {
		reset := time.UnixMilli(int64(*l.apiResetTime * 1000))
		if wait := reset.Sub(now); wait > 0 {
			return wait
		}
	}

	return 0
}

func (l *RateLimiter) threshold(limit int) int {
	return int(math.Floor(float64(limit) * l.cfg.SafetyMargin))
}

func (l *RateLimiter) purge(now time.Time) {
	l.hourly = inWindow(l.hourly, now, hourWindow)
	l.minute = inWindow(l.minute, now, minuteWindow)
}

func (l *RateLimiter) record(now time.Time) {
	l.hourly = append(l.hourly, now)
	l.minute = append(l.minute, now)
}

func (l *RateLimiter) removeWaiter(w *waiter) bool {
	for i, q := range l.queue {
		if q == w {
			l.queue = append(l.queue[:i], l.queue[i+1:]...)
			metrics.QueueDepth.Set(float64(len(l.queue)))
			return true
		}
	}
	return false
}

// inWindow returns the suffix of ts newer than now-window. ts is oldest first.
func inWindow(ts []time.Time, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	i := sort.Search(len(ts), func(i int) bool { return ts[i].After(cutoff) })
	return ts[i:]
}

func stopped(stop chan struct{}) bool {
	select {
	case <-stop:
		return true
	default:
		return false
	}
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

func reported(v *float64) *int64 {
	if v == nil || math.IsNaN(*v) {
		return nil
	}
	n := int64(*v)
	return &n
}
