package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"swapnet/config"
	"swapnet/coordinator"
	"swapnet/workers"
	"swapnet/workers/handlers"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config.yml", "path to the YAML configuration")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// reading config error is fatal
		fmt.Println(err)
		os.Exit(2)
	}

	logger, err := config.NewLogger(cfg)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}

	err = run(cfg, logger)
	if err != nil {
		logger.Error("server stopped", zap.Error(err))
	}
	_ = logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

// run returns once the HTTP service stops; the store is closed on every path.
func run(cfg *config.Configuration, logger *zap.Logger) error {
	logger.Info("starting swap coordinator")

	coord, err := coordinator.FromConfig(cfg, logger)
	if err != nil {
		return fmt.Errorf("cannot set up coordinator: %w", err)
	}
	defer coord.Store().Close()

	// without persistence do not continue
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = coord.Store().Ping(ctx)
	cancel()
	if err != nil {
		return fmt.Errorf("redis unavailable at %s: %w", cfg.Redis.Addr(), err)
	}

	api := &handlers.API{
		Coordinator: coord,
		Store:       coord.Store(),
		Logger:      logger,
	}

	if err := workers.Worker_HTTP(cfg, workers.NewRouter(api), logger); err != nil {
		return fmt.Errorf("HTTP service failed: %w", err)
	}
	return nil
}
