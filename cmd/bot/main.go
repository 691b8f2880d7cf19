package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"taskbot/internal/app"
	"taskbot/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("init app: %v", err)
	}

	if err := a.Run(ctx); err != nil {
		log.Fatalf("run: %v", err)
	}
}
