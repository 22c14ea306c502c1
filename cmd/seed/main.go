// seed loads a small demo data set: one user per role, two customers, a
// delivered shipment awaiting its invoice, partner invoice tracking rows and
// EUR/USD rates for the last week. Every statement is an upsert, so the
// command can be re-run.
//
// Usage: SEED_PASSWORD=... go run ./cmd/seed
package main

import (
	"context"
	"os"
	"time"

	"yourobc-billing/internal/cache"
	"yourobc-billing/internal/config"
	"yourobc-billing/internal/core"
	"yourobc-billing/internal/db"
	"yourobc-billing/internal/logger"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config", zap.Error(err))
	}
	log := logger.New(logger.ForEnvironment(cfg.Env, cfg.LogLevel, cfg.LogFormat)).Named("seed")
	defer log.Sync()

	password := os.Getenv("SEED_PASSWORD")
	if len(password) < 8 {
		log.Fatal("SEED_PASSWORD must be set to at least 8 characters")
	}
	if cfg.IsProduction() {
		log.Fatal("refusing to seed a production database")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, 2)
	if err != nil {
		log.Fatal("connect", zap.Error(err))
	}
	defer pool.Close()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal("hash password", zap.Error(err))
	}

	err = db.WithTx(ctx, pool, func(tx pgx.Tx) error {
		if err := seedUsers(ctx, tx, string(hash)); err != nil {
			return err
		}
		if err := seedCustomersAndShipments(ctx, tx); err != nil {
			return err
		}
		return seedRates(ctx, tx, time.Now().UTC())
	})
	if err != nil {
		log.Error("seed failed", zap.Error(err))
		pool.Close()
		os.Exit(1)
	}
	log.Info("seed complete")

	if cfg.RedisEnabled() {
		flushRateCache(ctx, cfg, log)
	}
}

// flushRateCache drops quotes cached before the seeded rates existed. The
// seed has already committed, so failures only warn.
func flushRateCache(ctx context.Context, cfg *config.Config, log *zap.Logger) {
	client, err := cache.Connect(ctx, cfg.RedisAddress, cfg.RedisPassword)
	if err != nil {
		log.Warn("rate cache not flushed", zap.Error(err))
		return
	}
	defer client.Close()

	n, err := cache.NewRateCache(client, cfg.RateCacheTTL, log).Flush(ctx)
	if err != nil {
		log.Warn("rate cache not flushed", zap.Error(err))
		return
	}
	log.Info("rate cache flushed", zap.Int("pairs", n))
}

func seedUsers(ctx context.Context, tx pgx.Tx, hash string) error {
	users := []struct{ id, username, role string }{
		{"seed-user-admin", "admin", core.RoleAdmin},
		{"seed-user-accounting", "accounting", core.RoleAccounting},
		{"seed-user-operations", "operations", core.RoleOperations},
		{"seed-user-viewer", "viewer", core.RoleViewer},
	}
	for _, u := range users {
		_, err := tx.Exec(ctx, `
			INSERT INTO users (id, username, email, password_hash, role)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (username) DO UPDATE
			SET password_hash = EXCLUDED.password_hash, role = EXCLUDED.role, is_active = true`,
			u.id, u.username, u.username+"@example.com", hash, u.role,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func seedCustomersAndShipments(ctx context.Context, tx pgx.Tx) error {
	if _, err := tx.Exec(ctx, `
		INSERT INTO customers (id, company_name, payment_terms, currency) VALUES
			('seed-cust-acme', 'Acme Logistics GmbH', 14, 'EUR'),
			('seed-cust-globex', 'Globex Corp', NULL, 'USD')
		ON CONFLICT (id) DO UPDATE
		SET company_name = EXCLUDED.company_name, payment_terms = EXCLUDED.payment_terms`); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO shipments (id, shipment_number, customer_id, origin, destination,
			agreed_price_amount, agreed_price_currency, agreed_price_exchange_rate,
			status, completed_at, pod_received_at)
		VALUES
			('seed-ship-1', 'SHP-0001', 'seed-cust-acme', 'Hamburg', 'Milan',
				1250.00, 'EUR', 1, 'delivered', NOW() - INTERVAL '1 day', NOW()),
			('seed-ship-2', 'SHP-0002', 'seed-cust-globex', 'Frankfurt', 'Chicago',
				4800.00, 'USD', 0.91, 'delivered', NOW() - INTERVAL '2 days', NOW() - INTERVAL '1 day'),
			('seed-ship-3', 'SHP-0003', 'seed-cust-globex', 'Rotterdam', 'Boston',
				2300.00, 'USD', NULL, 'delivered', NOW() - INTERVAL '1 day', NOW())
		ON CONFLICT (id) DO NOTHING`); err != nil {
		return err
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO incoming_invoice_tracking (id, shipment_id, partner_name, status, expected_amount, currency)
		VALUES
			('seed-track-1', 'seed-ship-1', 'Alpine Carriers', 'missing', 640.00, 'EUR'),
			('seed-track-2', 'seed-ship-2', 'Atlantic Air Freight', 'received', 2100.00, 'USD')
		ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status`)
	return err
}

func seedRates(ctx context.Context, tx pgx.Tx, now time.Time) error {
	for i := 0; i < 7; i++ {
		day := now.AddDate(0, 0, -i).Truncate(24 * time.Hour)
		_, err := tx.Exec(ctx, `
			INSERT INTO exchange_rates (id, from_currency, to_currency, rate, date, source, created_by)
			VALUES ($1, 'EUR', 'USD', 1.0850, $2, 'seed', 'seed-user-admin')
			ON CONFLICT DO NOTHING`,
			"seed-rate-eurusd-"+day.Format("20060102"), day,
		)
		if err != nil {
			return err
		}
	}
	return nil
}
