// Package control wires the gateway components together and manages their
// lifecycle.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/vietddude/gqlgate/internal/core/config"
	"github.com/vietddude/gqlgate/internal/health"
	redisclient "github.com/vietddude/gqlgate/internal/infra/redis"
	"github.com/vietddude/gqlgate/internal/infra/rpc"
	"github.com/vietddude/gqlgate/internal/infra/rpc/budget"
	"github.com/vietddude/gqlgate/internal/infra/rpc/provider"
	"github.com/vietddude/gqlgate/internal/infra/rpc/routing"
)

// quotaReportInterval is how often the quota status is evaluated in the
// background so high usage shows up in logs without anyone polling.
const quotaReportInterval = 30 * time.Second

// Gateway is the main application struct. It owns one limiter, one retrier
// and one client shared by every caller.
type Gateway struct {
	cfg          config.AppConfig
	provider     *provider.HTTPProvider
	limiter      *budget.RateLimiter
	client       *rpc.Client
	journal      *redisclient.FailedRequestRepo
	redisClient  *redisclient.Client
	healthMon    *health.Monitor
	healthServer *health.Server
	log          *slog.Logger
}

// Option customizes a Gateway.
type Option func(*gatewayOptions)

type gatewayOptions struct {
	log        *slog.Logger
	httpClient *http.Client
}

// WithLogger sets the logger used by every component.
func WithLogger(log *slog.Logger) Option {
	return func(o *gatewayOptions) { o.log = log }
}

// WithHTTPClient replaces the transport's HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *gatewayOptions) { o.httpClient = c }
}

// NewGateway creates a Gateway with all dependencies initialized.
func NewGateway(cfg config.AppConfig, opts ...Option) (*Gateway, error) {
	o := gatewayOptions{log: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	log := o.log

	if cfg.API.Endpoint == "" {
		return nil, errors.New("api endpoint is required")
	}

	// 1. Transport
	httpOpts := []provider.HTTPOption{provider.WithAuthorization(cfg.API.Authorization())}
	if o.httpClient != nil {
		httpOpts = append(httpOpts, provider.WithHTTPClient(o.httpClient))
	}
	sender := provider.NewHTTPProvider(cfg.API.Name, cfg.API.Endpoint, cfg.API.Timeout, httpOpts...)

	// 2. Admission control and retries
	limiter := budget.NewRateLimiter(cfg.RateLimit, budget.WithLogger(log))
	retrier := routing.NewRetrier(cfg.Retry, routing.WithLogger(log))

	// 3. Failure journal (optional)
	var redisClient *redisclient.Client
	var journal *redisclient.FailedRequestRepo
	clientOpts := []rpc.ClientOption{rpc.WithLogger(log)}
	monitorOpts := []health.MonitorOption{health.WithLogger(log), health.WithProvider(sender)}

	if cfg.Redis.URL != "" {
		var err error
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			log.Warn("Failed to connect to Redis, failure journal disabled", "error", err)
		} else {
			journal = redisclient.NewFailedRequestRepo(redisClient, cfg.Redis.KeyPrefix, cfg.Redis.TTL)
			clientOpts = append(clientOpts, rpc.WithJournal(journal))
			monitorOpts = append(monitorOpts, health.WithFailureCounter(journal))
			log.Info("Failure journal enabled", "prefix", cfg.Redis.KeyPrefix)
		}
	}

	client := rpc.NewClient(sender, limiter, retrier, clientOpts...)

	// 4. Monitoring surface
	healthMon := health.NewMonitor(limiter, monitorOpts...)
	healthServer := health.NewServer(healthMon, cfg.Server.Port)

	g := &Gateway{
		cfg:          cfg,
		provider:     sender,
		limiter:      limiter,
		client:       client,
		journal:      journal,
		redisClient:  redisClient,
		healthMon:    healthMon,
		healthServer: healthServer,
		log:          log,
	}

	healthServer.Handle("/graphql", http.HandlerFunc(g.handleGraphQL))
	healthServer.Handle("/batch", http.HandlerFunc(g.handleBatch))
	healthServer.Handle("/failures", http.HandlerFunc(g.handleFailures))

	return g, nil
}

// Client returns the shared request client.
func (g *Gateway) Client() *rpc.Client {
	return g.client
}

// Monitor returns the health monitor.
func (g *Gateway) Monitor() *health.Monitor {
	return g.healthMon
}

// Handler returns the HTTP routes served by Start.
func (g *Gateway) Handler() http.Handler {
	return g.healthServer.Handler()
}

// Start starts the HTTP server and background tasks. It does not block.
func (g *Gateway) Start(ctx context.Context) error {
	go func() {
		if err := g.healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.log.Error("Health server failed", "error", err)
		}
	}()

	go g.runQuotaReporter(ctx)

	g.log.Info("Gateway started",
		"port", g.cfg.Server.Port,
		"endpoint", g.cfg.API.Endpoint,
		"max_per_hour", g.limiter.Config().MaxRequestsPerHour,
		"max_per_minute", g.limiter.Config().MaxRequestsPerMinute,
	)
	return nil
}

// Stop stops the gateway. Requests still queued in the limiter fail with
// rpc.ErrLimiterReset.
func (g *Gateway) Stop(ctx context.Context) error {
	g.log.Info("Stopping Gateway...")

	err := g.healthServer.Stop(ctx)
	g.limiter.Reset()

	if cerr := g.provider.Close(); cerr != nil {
		g.log.Warn("Failed to close provider", "error", cerr)
	}

	// Close Redis
	if g.redisClient != nil {
		if cerr := g.redisClient.Close(); cerr != nil {
			g.log.Warn("Failed to close Redis", "error", cerr)
		}
	}

	if err != nil {
		return fmt.Errorf("stop health server: %w", err)
	}
	return nil
}

func (g *Gateway) runQuotaReporter(ctx context.Context) {
	ticker := time.NewTicker(quotaReportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report := g.healthMon.RateLimit()
			g.log.Debug("Quota status",
				"level", report.WarningLevel,
				"requests_this_hour", report.Usage.RequestsThisHour,
				"queued", report.Queued,
			)
		}
	}
}
