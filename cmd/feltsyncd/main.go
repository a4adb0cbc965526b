package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"feltsync/internal/config"
	"feltsync/internal/logging"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("feltsyncd failed", logging.Error(err))
		os.Exit(1)
	}
}
