package rpc

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/vietddude/gqlgate/internal/core/domain"
	"github.com/vietddude/gqlgate/internal/core/metrics"
)

// BatchError is returned when every item of a batch failed.
type BatchError struct {
	Errors []error
}

func (e *BatchError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return "all batch queries failed: " + strings.Join(msgs, "; ")
}

func (e *BatchError) Unwrap() []error {
	return e.Errors
}

// BatchQuery executes items in order. Failed items leave a nil slot in the
// result; the call only fails when every item failed.
func (c *Client) BatchQuery(ctx context.Context, items []domain.BatchItem) ([]json.RawMessage, error) {
	switch len(items) {
	case 0:
		return []json.RawMessage{}, nil
	case 1:
		data, err := c.ExecuteItem(ctx, items[0])
		if err != nil {
			return nil, err
		}
		return []json.RawMessage{data}, nil
	}

	results := make([]json.RawMessage, len(items))
	var errs []error
	details := make(map[int]string)

	for i, item := range items {
		data, err := c.execute(ctx, item, i)
		if err != nil {
			errs = append(errs, err)
			details[i] = err.Error()
			metrics.BatchItemFailures.Inc()
			continue
		}
		results[i] = data
	}

	if len(errs) == len(items) {
		return nil, &BatchError{Errors: errs}
	}

	if len(errs) > 0 {
		c.log.Warn("Batch queries failed",
			"failed", len(errs),
			"total", len(items),
			"details", details,
		)
	}

	return results, nil
}
