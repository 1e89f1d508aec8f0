package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/gqlgate/internal/core/domain"
	"github.com/vietddude/gqlgate/internal/core/metrics"
	"github.com/vietddude/gqlgate/internal/infra/rpc/budget"
	"github.com/vietddude/gqlgate/internal/infra/rpc/provider"
	"github.com/vietddude/gqlgate/internal/infra/rpc/routing"
)

// OperationError is returned when a request fails permanently or exhausts
// its retries.
type OperationError struct {
	Err error
}

func (e *OperationError) Error() string {
	return "graphql operation failed: " + e.Err.Error()
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// FailureJournal records requests that could not be completed.
type FailureJournal interface {
	Add(ctx context.Context, fr *domain.FailedRequest) error
}

// Client is the high-level interface for making GraphQL calls.
// This is what application layers should use.
type Client struct {
	sender  provider.Sender
	limiter *budget.RateLimiter
	retrier *routing.Retrier
	journal FailureJournal
	log     *slog.Logger
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithJournal records failed requests in j.
func WithJournal(j FailureJournal) ClientOption {
	return func(c *Client) { c.journal = j }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) ClientOption {
	return func(c *Client) { c.log = log }
}

// NewClient creates a new client. The limiter and retrier are shared by every
// request made through it.
func NewClient(
	sender provider.Sender,
	limiter *budget.RateLimiter,
	retrier *routing.Retrier,
	opts ...ClientOption,
) *Client {
	c := &Client{
		sender:  sender,
		limiter: limiter,
		retrier: retrier,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Limiter returns the shared rate limiter.
func (c *Client) Limiter() *budget.RateLimiter {
	return c.limiter
}

// Execute runs one GraphQL request with admission control and retries.
func (c *Client) Execute(ctx context.Context, document string, variables map[string]any) (json.RawMessage, error) {
	return c.ExecuteItem(ctx, domain.BatchItem{Document: document, Variables: variables})
}

// ExecuteItem is Execute with an operation name used for logs.
func (c *Client) ExecuteItem(ctx context.Context, item domain.BatchItem) (json.RawMessage, error) {
	return c.execute(ctx, item, -1)
}

func (c *Client) execute(ctx context.Context, item domain.BatchItem, batchIndex int) (json.RawMessage, error) {
	name := item.Name()
	requestID := uuid.NewString()
	start := time.Now()

	// A slot is taken per attempt so retries count against the quota too.
	var data json.RawMessage
	trace, err := c.retrier.Do(ctx, name, func(ctx context.Context) error {
		if err := c.limiter.Acquire(ctx); err != nil {
			return err
		}
		resp, err := c.sender.Send(ctx, item.Document, item.Variables)
		if err != nil {
			return err
		}
		c.limiter.UpdateFromHeaders(resp.Headers)
		data = resp.Data
		return nil
	})

	metrics.RequestLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		failureType := classifyFailure(err)
		metrics.RequestsTotal.WithLabelValues(string(failureType)).Inc()
		c.log.Debug("GraphQL request failed",
			"request_id", requestID,
			"operation", name,
			"attempts", trace.Attempts,
			"error", err,
		)
		c.record(ctx, &domain.FailedRequest{
			ID:            requestID,
			OperationName: name,
			Document:      item.Document,
			Error:         err.Error(),
			FailureType:   failureType,
			Attempts:      trace.Attempts,
			BatchIndex:    batchIndex,
			CreatedAt:     time.Now().Unix(),
		})
		return nil, &OperationError{Err: err}
	}

	metrics.RequestsTotal.WithLabelValues("success").Inc()
	c.log.Debug("GraphQL request completed",
		"request_id", requestID,
		"operation", name,
		"attempts", trace.Attempts,
		"duration", time.Since(start),
	)
	return data, nil
}

func (c *Client) record(ctx context.Context, fr *domain.FailedRequest) {
	if c.journal == nil {
		return
	}
	// The caller's context may already be done; the journal write should not be.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := c.journal.Add(ctx, fr); err != nil {
		c.log.Warn("Failed to journal failed request", "request_id", fr.ID, "error", err)
	}
}

func classifyFailure(err error) domain.FailureType {
	var rle *budget.RateLimitError
	switch {
	case errors.As(err, &rle), errors.Is(err, budget.ErrLimiterReset):
		return domain.FailureTypeAdmission
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return domain.FailureTypeCanceled
	case routing.IsRetryableError(err):
		return domain.FailureTypeTransient
	default:
		return domain.FailureTypePermanent
	}
}
