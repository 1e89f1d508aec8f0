package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/gqlgate/internal/core/domain"
)

const defaultTTL = 24 * time.Hour

// FailedRequestRepo journals failed GraphQL requests in Redis. Entries are
// stored as JSON with a TTL and indexed in a sorted set by creation time.
type FailedRequestRepo struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewFailedRequestRepo creates a new Redis-backed failure journal.
func NewFailedRequestRepo(client *Client, prefix string, ttl time.Duration) *FailedRequestRepo {
	if prefix == "" {
		prefix = "gqlgate"
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &FailedRequestRepo{
		rdb:    client.rdb,
		prefix: prefix,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Key helpers
func (r *FailedRequestRepo) indexKey() string {
	return fmt.Sprintf("%s:failed_requests", r.prefix)
}

func (r *FailedRequestRepo) entryKey(id string) string {
	return fmt.Sprintf("%s:failed_request:%s", r.prefix, id)
}

// Add stores a failed request.
func (r *FailedRequestRepo) Add(ctx context.Context, fr *domain.FailedRequest) error {
	data, err := json.Marshal(fr)
	if err != nil {
		return fmt.Errorf("failed to marshal failed request: %w", err)
	}

	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, r.entryKey(fr.ID), data, r.ttl)
	pipe.ZAdd(ctx, r.indexKey(), redis.Z{
		Score:  float64(fr.CreatedAt),
		Member: fr.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store failed request: %w", err)
	}
	return nil
}

// Get returns one entry, or nil when it does not exist or has expired.
func (r *FailedRequestRepo) Get(ctx context.Context, id string) (*domain.FailedRequest, error) {
	data, err := r.rdb.Get(ctx, r.entryKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get failed request: %w", err)
	}

	var fr domain.FailedRequest
	if err := json.Unmarshal(data, &fr); err != nil {
		return nil, fmt.Errorf("failed to unmarshal failed request: %w", err)
	}
	return &fr, nil
}

// Recent returns up to limit entries, newest first. A non-positive limit
// returns everything.
func (r *FailedRequestRepo) Recent(ctx context.Context, limit int) ([]*domain.FailedRequest, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	ids, err := r.rdb.ZRevRange(ctx, r.indexKey(), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("zrevrange failed: %w", err)
	}

	entries := make([]*domain.FailedRequest, 0, len(ids))
	for _, id := range ids {
		fr, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if fr == nil {
			// Data expired but ID still indexed, remove it
			r.rdb.ZRem(ctx, r.indexKey(), id)
			continue
		}
		entries = append(entries, fr)
	}
	return entries, nil
}

// Remove deletes one entry.
func (r *FailedRequestRepo) Remove(ctx context.Context, id string) error {
	if err := r.rdb.ZRem(ctx, r.indexKey(), id).Err(); err != nil {
		return fmt.Errorf("failed to remove from index: %w", err)
	}
	if err := r.rdb.Del(ctx, r.entryKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete failed request: %w", err)
	}
	return nil
}

// Count returns the number of entries that have not expired yet. Index
// members older than the TTL are dropped first.
func (r *FailedRequestRepo) Count(ctx context.Context) (int, error) {
	if err := r.pruneIndex(ctx); err != nil {
		return 0, err
	}
	count, err := r.rdb.ZCard(ctx, r.indexKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("zcard failed: %w", err)
	}
	return int(count), nil
}

// pruneIndex removes index members whose entries are past the TTL.
func (r *FailedRequestRepo) pruneIndex(ctx context.Context) error {
	cutoff := r.now().Add(-r.ttl).Unix()
	upper := "(" + strconv.FormatInt(cutoff, 10)
	if err := r.rdb.ZRemRangeByScore(ctx, r.indexKey(), "-inf", upper).Err(); err != nil {
		return fmt.Errorf("zremrangebyscore failed: %w", err)
	}
	return nil
}
