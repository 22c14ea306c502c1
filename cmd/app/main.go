package main

import (
	"context"
	"os"

	"yourobc-billing/internal/adapters/cli"
	"yourobc-billing/internal/app"
	"yourobc-billing/internal/config"
	"yourobc-billing/internal/logger"

	"go.uber.org/zap"
)

func main() {
	log := zap.NewNop()

	factory := func(ctx context.Context) (app.ApplicationService, func(), error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, nil, err
		}
		log = logger.New(logger.ForEnvironment(cfg.Env, cfg.LogLevel, cfg.LogFormat)).Named("cli")
		rt, err := app.Bootstrap(ctx, cfg, log)
		if err != nil {
			return nil, nil, err
		}
		return rt.Service, func() {
			rt.Close()
			_ = log.Sync()
		}, nil
	}

	if err := cli.NewRootCommand(factory).ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
