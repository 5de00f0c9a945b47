// Package main is the entry point for the docledger API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"docledger/internal/app"
	"docledger/internal/config"
	v1 "docledger/internal/infrastructure/http/v1"
	"docledger/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
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

	log.Info("starting docledger server")

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalw("failed to wire engine", "error", err)
	}
	defer a.Close()
	log.Infow("store ready", "store", a.Store)

	// With the memory store nothing else can see the outbox, so relay in-process.
	var wg sync.WaitGroup
	if a.Store == app.StoreMemory {
		relayer := app.NewRelayer(a.Relay, nil, cfg.OutboxInterval, cfg.OutboxBatchSize, log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			relayer.Run(ctx)
		}()
	}

	router := v1.NewRouter(v1.RouterConfig{
		Documents: a.Documents,
		Stock:     a.Stock,
		Loyalty:   a.Loyalty,
		Catalog:   a.Catalog,
		Store:     a.Store,
		Checker:   a.Checker,
		Logger:    log,
		Debug:     cfg.Development(),
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", cfg.Port, "store", a.Store)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	cancel()
	wg.Wait()

	log.Info("server stopped")
}
