// migrate applies pending SQL migrations. The schema compiled into the binary
// is used unless -dir points at a directory of NNN_*.sql files.
//
// Usage: go run ./cmd/migrate [-dir path]
package main

import (
	"context"
	"flag"
	"io/fs"
	"os"
	"time"

	"yourobc-billing/internal/config"
	"yourobc-billing/internal/db"
	"yourobc-billing/internal/logger"
	"yourobc-billing/migrations"

	"go.uber.org/zap"
)

func main() {
	dir := flag.String("dir", "", "directory containing NNN_*.sql files (default: embedded schema)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config", zap.Error(err))
	}
	log := logger.New(logger.ForEnvironment(cfg.Env, cfg.LogLevel, cfg.LogFormat)).Named("migrate")
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, 2)
	if err != nil {
		log.Fatal("connect", zap.Error(err))
	}
	defer pool.Close()

	var source fs.FS = migrations.Files
	if *dir != "" {
		source = os.DirFS(*dir)
	}

	if err := db.Migrate(ctx, pool, source, log); err != nil {
		log.Error("migration failed", zap.Error(err))
		pool.Close()
		os.Exit(1)
	}
	log.Info("all migrations processed")
}
