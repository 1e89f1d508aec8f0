package budget

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/gqlgate/internal/core/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// gatedTimer returns a timer hook that fires only when the test sends on gate,
// advancing the fake clock by the requested duration first.
func gatedTimer(clock *fakeClock, gate <-chan struct{}) func(time.Duration) <-chan time.Time {
	return func(d time.Duration) <-chan time.Time {
		out := make(chan time.Time, 1)
		go func() {
			<-gate
			clock.Advance(d)
			out <- clock.Now()
		}()
		return out
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestRateLimiter_RejectsAtThresholdWithoutQueueing(t *testing.T) {
	l := NewRateLimiter(Config{
		MaxRequestsPerHour:   1000,
		MaxRequestsPerMinute: 10,
		SafetyMargin:         0.9,
		EnableQueueing:       false,
	}, WithLogger(quietLogger()))

	ctx := context.Background()
	for i := 1; i <= 9; i++ {
		require.NoError(t, l.Acquire(ctx), "call %d should be admitted", i)
	}

	err := l.Acquire(ctx)
	require.Error(t, err)

	var rle *RateLimitError
	require.True(t, errors.As(err, &rle))
	assert.Greater(t, rle.Wait, time.Duration(0))
	assert.Contains(t, err.Error(), "rate limit")

	status := l.Status()
	assert.Equal(t, 9, status.RequestsThisMinute, "rejected call must not be recorded")
	assert.Equal(t, 9, status.RequestsThisHour)
	assert.True(t, l.IsThrottled())
}

func TestRateLimiter_WindowsSlide(t *testing.T) {
	clock := newFakeClock()
	l := NewRateLimiter(Config{
		MaxRequestsPerHour:   1000,
		MaxRequestsPerMinute: 100,
		SafetyMargin:         1,
	}, WithClock(clock.Now), WithLogger(quietLogger()))

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Acquire(ctx))
		clock.Advance(time.Second)
	}

	status := l.Status()
	assert.Equal(t, 5, status.RequestsThisMinute)
	assert.Equal(t, 5, status.RequestsThisHour)

	clock.Advance(61 * time.Second)
	status = l.Status()
	assert.Equal(t, 0, status.RequestsThisMinute)
	assert.Equal(t, 5, status.RequestsThisHour)

	clock.Advance(time.Hour)
	status = l.Status()
	assert.Equal(t, 0, status.RequestsThisHour)
}

func TestRateLimiter_HourThreshold(t *testing.T) {
	clock := newFakeClock()
	l := NewRateLimiter(Config{
		MaxRequestsPerHour:   4,
		MaxRequestsPerMinute: 100,
		SafetyMargin:         0.5,
	}, WithClock(clock.Now), WithLogger(quietLogger()))

	ctx := context.Background()
	require.NoError(t, l.Acquire(ctx))
	clock.Advance(2 * time.Minute)
	require.NoError(t, l.Acquire(ctx))

	err := l.Acquire(ctx)
	var rle *RateLimitError
	require.True(t, errors.As(err, &rle))
	// Oldest entry ages out 58 minutes from now.
	assert.Equal(t, 58*time.Minute, rle.Wait)
}

func TestRateLimiter_UpdateFromHeadersAndReset(t *testing.T) {
	var buf bytes.Buffer
	l := NewRateLimiter(DefaultConfig(), WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))

	l.UpdateFromHeaders(domain.NewHeaders(map[string]string{"x-ratelimit-remaining": "150"}))

	status := l.Status()
	require.NotNil(t, status.RemainingHour)
	assert.Equal(t, int64(150), *status.RemainingHour)
	assert.Contains(t, buf.String(), "Low quota warning")

	l.Reset()
	assert.Nil(t, l.Status().RemainingHour)
}

func TestRateLimiter_HeaderParsing(t *testing.T) {
	l := NewRateLimiter(DefaultConfig(), WithLogger(quietLogger()))

	headers := domain.Headers{}
	headers.Set("X-RateLimit-Remaining", "900", "1")
	headers.Set("X-RateLimit-Reset", "1768480000abc")
	l.UpdateFromHeaders(headers)

	status := l.Status()
	require.NotNil(t, status.RemainingHour)
	assert.Equal(t, int64(900), *status.RemainingHour, "first value of a list wins")
	require.NotNil(t, status.ResetTime)
	assert.Equal(t, int64(1768480000), *status.ResetTime, "trailing garbage is ignored")

	// Absent headers keep previous values.
	l.UpdateFromHeaders(domain.NewHeaders(map[string]string{"content-type": "application/json"}))
	require.NotNil(t, l.Status().RemainingHour)
	assert.Equal(t, int64(900), *l.Status().RemainingHour)

	// Unparsable values replace the field with not-a-number, never an error.
	l.UpdateFromHeaders(domain.NewHeaders(map[string]string{"x-ratelimit-remaining": "lots"}))
	assert.Nil(t, l.Status().RemainingHour)
	assert.False(t, l.IsThrottled())
}

func TestParseHeaderInt(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"42", "42"},
		{"  7", "7"},
		{"-3", "-3"},
		{"12.9", "12"},
		{"abc", "NaN"},
		{"", "NaN"},
	}

	for _, tt := range tests {
		got := strconv.FormatFloat(parseHeaderInt(tt.in), 'f', -1, 64)
		assert.Equal(t, tt.want, got, "parseHeaderInt(%q)", tt.in)
	}
}

func TestRateLimiter_APIQuotaExhausted(t *testing.T) {
	clock := newFakeClock()
	l := NewRateLimiter(DefaultConfig(), WithClock(clock.Now), WithLogger(quietLogger()))

	resetAt := clock.Now().Add(30 * time.Second).Unix()
	l.UpdateFromHeaders(domain.NewHeaders(map[string]string{
		"x-ratelimit-remaining": "0",
		"x-ratelimit-reset":     strconv.FormatInt(resetAt, 10),
	}))
	assert.True(t, l.IsThrottled())

	clock.Advance(31 * time.Second)
	assert.False(t, l.IsThrottled(), "reset time has passed")
}

func TestRateLimiter_RetryAfterCooldown(t *testing.T) {
	clock := newFakeClock()
	l := NewRateLimiter(Config{EnableQueueing: false}, WithClock(clock.Now), WithLogger(quietLogger()))

	l.UpdateFromHeaders(domain.NewHeaders(map[string]string{"Retry-After": "2"}))
	require.NotNil(t, l.Status().RetryAfter)
	assert.Equal(t, int64(2), *l.Status().RetryAfter)

	err := l.Acquire(context.Background())
	var rle *RateLimitError
	require.True(t, errors.As(err, &rle))
	assert.Equal(t, 2*time.Second, rle.Wait)

	clock.Advance(2 * time.Second)
	assert.NoError(t, l.Acquire(context.Background()))
}

func TestRateLimiter_QueueIsFIFO(t *testing.T) {
	clock := newFakeClock()
	gate := make(chan struct{})
	l := NewRateLimiter(Config{
		MaxRequestsPerHour:   1000,
		MaxRequestsPerMinute: 1,
		SafetyMargin:         1,
		EnableQueueing:       true,
	}, WithClock(clock.Now), WithTimer(gatedTimer(clock, gate)), WithLogger(quietLogger()))

	ctx := context.Background()
	require.NoError(t, l.Acquire(ctx))

	admitted := make(chan int, 3)
	for i := 0; i < 3; i++ {
		go func(id int) {
			if err := l.Acquire(ctx); err == nil {
				admitted <- id
			}
		}(i)
		require.Eventually(t, func() bool { return l.Status().Queued == i+1 },
			time.Second, time.Millisecond)
	}

	for want := 0; want < 3; want++ {
		gate <- struct{}{}
		select {
		case got := <-admitted:
			assert.Equal(t, want, got)
		case <-time.After(time.Second):
			t.Fatalf("waiter %d was not admitted", want)
		}
	}

	assert.Equal(t, 0, l.Status().Queued)
	assert.Equal(t, 1, l.Status().RequestsThisMinute)
	assert.Equal(t, 4, l.Status().RequestsThisHour)
}

func TestRateLimiter_ResetFailsQueuedWaiters(t *testing.T) {
	clock := newFakeClock()
	gate := make(chan struct{})
	l := NewRateLimiter(Config{
		MaxRequestsPerMinute: 1,
		SafetyMargin:         1,
		EnableQueueing:       true,
	}, WithClock(clock.Now), WithTimer(gatedTimer(clock, gate)), WithLogger(quietLogger()))

	ctx := context.Background()
	require.NoError(t, l.Acquire(ctx))

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() { errs <- l.Acquire(ctx) }()
	}
	require.Eventually(t, func() bool { return l.Status().Queued == 2 },
		time.Second, time.Millisecond)

	l.Reset()

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, <-errs, ErrLimiterReset)
	}

	status := l.Status()
	assert.Equal(t, 0, status.Queued)
	assert.Equal(t, 0, status.RequestsThisMinute)
	assert.NoError(t, l.Acquire(ctx), "limiter is usable after reset")
}

func TestRateLimiter_QueuedWaiterHonorsContext(t *testing.T) {
	clock := newFakeClock()
	gate := make(chan struct{})
	l := NewRateLimiter(Config{
		MaxRequestsPerMinute: 1,
		SafetyMargin:         1,
		EnableQueueing:       true,
	}, WithClock(clock.Now), WithTimer(gatedTimer(clock, gate)), WithLogger(quietLogger()))

	require.NoError(t, l.Acquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() { errs <- l.Acquire(ctx) }()
	require.Eventually(t, func() bool { return l.Status().Queued == 1 },
		time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-errs, context.Canceled)
	assert.Equal(t, 0, l.Status().Queued)
	assert.Equal(t, 1, l.Status().RequestsThisHour)
}

func TestRateLimiter_Concurrency(t *testing.T) {
	l := NewRateLimiter(Config{
		MaxRequestsPerHour:   10000,
		MaxRequestsPerMinute: 1000,
		SafetyMargin:         1,
	}, WithLogger(quietLogger()))

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Acquire(context.Background())
			l.IsThrottled()
			l.Status()
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, l.Status().RequestsThisHour)
}

func TestNewRateLimiter_Defaults(t *testing.T) {
	l := NewRateLimiter(Config{SafetyMargin: 2})
	cfg := l.Config()
	assert.Equal(t, 1000, cfg.MaxRequestsPerHour)
	assert.Equal(t, 100, cfg.MaxRequestsPerMinute)
	assert.Equal(t, 0.9, cfg.SafetyMargin)
}
