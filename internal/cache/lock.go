package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"yourobc-billing/internal/core"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Locker adapts redislock to core.Locker.
type Locker struct {
	client *redislock.Client
	logger *zap.Logger
}

var _ core.Locker = (*Locker)(nil)

func NewLocker(client *redis.Client, logger *zap.Logger) *Locker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Locker{client: redislock.New(client), logger: logger}
}

// Lock obtains key without retrying. A held lock yields
// core.ErrRefreshInProgress.
func (l *Locker) Lock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	lock, err := l.client.Obtain(ctx, key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return func() {}, core.ErrRefreshInProgress
	}
	if err != nil {
		return func() {}, fmt.Errorf("failed to obtain lock %s: %w", key, err)
	}

	return func() {
		// Release on a fresh context: the request context may already be done.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.logger.Warn("failed to release lock", zap.String("key", key), zap.Error(err))
		}
	}, nil
}
