// Package main is the entry point for the docledger background worker.
// It relays the postgres outbox and dead-letters messages that keep failing.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"docledger/internal/app"
	"docledger/internal/config"
	"docledger/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" {
		fmt.Println("required environment variable DATABASE_URL not set")
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.Development(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("starting docledger worker")

	a, err := app.NewPostgres(ctx, cfg)
	if err != nil {
		log.Fatalw("failed to connect", "error", err)
	}
	defer a.Close()

	relayer := app.NewRelayer(a.Relay, nil, cfg.OutboxInterval, cfg.OutboxBatchSize, log)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		relayer.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		reportPoolStats(ctx, a)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

func reportPoolStats(ctx context.Context, a *app.App) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Pool.LogStats(ctx)
		}
	}
}
