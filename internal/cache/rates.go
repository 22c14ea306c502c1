package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"yourobc-billing/internal/core"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateCache stores resolved quotes in one Redis hash per currency pair,
// keyed by day. Transport errors are logged and treated as misses.
type RateCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

var _ core.RateCache = (*RateCache)(nil)

func NewRateCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RateCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateCache{client: client, ttl: ttl, logger: logger}
}

func pairKey(from, to string) string {
	return fmt.Sprintf("billing:rate:%s:%s", from, to)
}

func dayField(day time.Time) string {
	return day.UTC().Format("2006-01-02")
}

func (c *RateCache) Get(ctx context.Context, from, to string, day time.Time) (core.RateQuote, bool) {
	data, err := c.client.HGet(ctx, pairKey(from, to), dayField(day)).Bytes()
	if err == redis.Nil {
		return core.RateQuote{}, false
	}
	if err != nil {
		c.logger.Warn("rate cache read failed", zap.String("pair", from+"/"+to), zap.Error(err))
		return core.RateQuote{}, false
	}

	var q core.RateQuote
	if err := json.Unmarshal(data, &q); err != nil {
		c.logger.Warn("rate cache entry corrupt", zap.String("pair", from+"/"+to), zap.Error(err))
		return core.RateQuote{}, false
	}
	return q, true
}

func (c *RateCache) Set(ctx context.Context, from, to string, day time.Time, q core.RateQuote) {
	data, err := json.Marshal(q)
	if err != nil {
		c.logger.Warn("rate cache encode failed", zap.Error(err))
		return
	}

	key := pairKey(from, to)
	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, key, dayField(day), data)
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("rate cache write failed", zap.String("pair", from+"/"+to), zap.Error(err))
	}
}

// InvalidatePair drops both directions, since either one can feed an
// inverse resolution of the other.
func (c *RateCache) InvalidatePair(ctx context.Context, from, to string) {
	if err := c.client.Del(ctx, pairKey(from, to), pairKey(to, from)).Err(); err != nil {
		c.logger.Warn("rate cache invalidation failed", zap.String("pair", from+"/"+to), zap.Error(err))
	}
}

// Flush drops every cached pair. Writers that bypass the rate service, such
// as the seed command, call it after committing.
func (c *RateCache) Flush(ctx context.Context) (int, error) {
	var keys []string
	iter := c.client.Scan(ctx, 0, pairKey("*", "*"), 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("failed to scan rate cache keys: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return 0, fmt.Errorf("failed to flush rate cache: %w", err)
	}
	return len(keys), nil
}
