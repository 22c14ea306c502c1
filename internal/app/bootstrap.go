package app

import (
	"context"
	"fmt"

	"yourobc-billing/internal/cache"
	"yourobc-billing/internal/config"
	"yourobc-billing/internal/core"
	"yourobc-billing/internal/db"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Runtime is a fully wired ApplicationService plus the connections it owns.
type Runtime struct {
	Service ApplicationService
	Pool    *pgxpool.Pool
	Redis   *redis.Client
}

// Close releases the pool and the Redis client.
func (r *Runtime) Close() {
	if r.Redis != nil {
		_ = r.Redis.Close()
	}
	if r.Pool != nil {
		r.Pool.Close()
	}
}

// Bootstrap connects to PostgreSQL (and Redis when configured) and wires the
// core services. A Redis connection failure is logged and the service runs
// without the rate cache and refresh lock.
func Bootstrap(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Runtime, error) {
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	rt := &Runtime{Pool: pool}

	resolverOpts := []core.ResolverOption{core.WithResolverLogger(log.Named("rates"))}
	var locker core.Locker
	if cfg.RedisEnabled() {
		client, err := cache.Connect(ctx, cfg.RedisAddress, cfg.RedisPassword)
		if err != nil {
			log.Warn("redis unavailable, continuing without rate cache", zap.Error(err))
		} else {
			rt.Redis = client
			resolverOpts = append(resolverOpts, core.WithRateCache(cache.NewRateCache(client, cfg.RateCacheTTL, log.Named("rate_cache"))))
			locker = cache.NewLocker(client, log.Named("lock"))
		}
	}

	audit := core.NewAuditLog()
	resolver := core.NewRateResolver(core.NewRateStore(pool), resolverOpts...)
	numbering := core.NewInvoiceNumberingService(pool, audit, log.Named("numbering"), nil)

	rt.Service = NewAppService(Services{
		Users:     core.NewUserService(pool),
		Invoices:  core.NewInvoiceService(pool, resolver, numbering, audit, log.Named("invoices"), nil),
		Numbering: numbering,
		Rates:     core.NewExchangeRateService(pool, resolver, audit, log.Named("rates")),
		Dashboard: core.NewDashboardService(pool, locker, audit, log.Named("dashboard"), nil),
	})
	return rt, nil
}
