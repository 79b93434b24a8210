package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/mattjoyce/convrelay/internal/analysis"
	"github.com/mattjoyce/convrelay/internal/api"
	"github.com/mattjoyce/convrelay/internal/config"
	"github.com/mattjoyce/convrelay/internal/events"
	"github.com/mattjoyce/convrelay/internal/lock"
	"github.com/mattjoyce/convrelay/internal/log"
	"github.com/mattjoyce/convrelay/internal/queue"
	"github.com/mattjoyce/convrelay/internal/storage"
	"github.com/mattjoyce/convrelay/internal/store"
	"github.com/mattjoyce/convrelay/internal/webhook"
)

const version = "0.2.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "start":
		os.Exit(runStart(args))
	case "version":
		fmt.Printf("convrelay version %s\n", version)
		os.Exit(0)
	case "help", "--help", "-h":
		printUsage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`convrelay - Conversational AI webhook relay

Receives signed post-call webhooks, persists the payloads, and serves
them back newest-first over HTTP.

Usage:
  convrelay <command> [flags]

Commands:
  start     Run the relay in the foreground
  version   Show version information
  help      Show this help message

Start flags:
  --config PATH   Path to YAML configuration (optional; env vars override)
`)
}

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	// Local .env, if present, feeds the env overlay.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel)
	logger := log.WithComponent("main")
	logger.Info("convrelay starting", "version", version, "listen", cfg.Listen())

	if cfg.Webhook.Secret == "" {
		logger.Warn("webhook secret not configured; ingestion will reject all deliveries")
	}

	// One writer per data dir: a second instance would double-process tasks.
	pidLock, err := lock.AcquirePIDLock(filepath.Join(cfg.Store.DataDir, ".convrelay.pid"))
	if err != nil {
		logger.Error("failed to acquire PID lock (another instance may be running)", "error", err)
		return 1
	}
	defer pidLock.Release()

	st, err := store.NewFileStore(cfg.Store.DataDir, log.WithComponent("store"))
	if err != nil {
		logger.Error("failed to initialize record store", "dir", cfg.Store.DataDir, "error", err)
		return 1
	}
	logger.Info("record store ready", "dir", cfg.Store.DataDir)

	hub := events.NewHub(100)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 2)

	deps := webhook.Deps{
		Store:  st,
		Audio:  st,
		Events: hub,
	}

	if cfg.Tasks.Enabled {
		db, err := storage.OpenSQLite(ctx, cfg.Tasks.Path)
		if err != nil {
			logger.Error("failed to open task database", "path", cfg.Tasks.Path, "error", err)
			return 1
		}
		defer db.Close()
		logger.Info("task database opened", "path", cfg.Tasks.Path)

		q := queue.New(db)
		deps.Tasks = q

		analyzer, err := analysis.New(cfg.Store.AnalysisDir, log.WithComponent("analysis"))
		if err != nil {
			logger.Error("failed to initialize analyzer", "dir", cfg.Store.AnalysisDir, "error", err)
			return 1
		}

		worker := queue.NewWorker(q, cfg.Tasks.TickInterval, cfg.Tasks.BackoffBase, log.WithComponent("worker"))
		worker.Register(queue.KindAnalyzeTranscription, analyzer)

		go func() {
			if err := worker.Run(ctx); err != nil && err != context.Canceled {
				errCh <- fmt.Errorf("worker: %w", err)
			}
		}()
		logger.Info("task worker started", "tick", cfg.Tasks.TickInterval)
	} else {
		logger.Info("task processing disabled")
	}

	ingest := webhook.NewHandler(webhook.Config{
		Secret:          cfg.Webhook.Secret,
		MaxSkewSeconds:  cfg.Webhook.MaxSkewSeconds,
		MaxBodySize:     cfg.Webhook.MaxBodySize,
		TaskMaxAttempts: cfg.Tasks.MaxAttempts,
	}, deps, log.WithComponent("webhook"))

	server := api.New(api.Config{
		Listen:         cfg.Listen(),
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	}, st, ingest, hub, log.WithComponent("api"))

	go func() {
		if err := server.Start(ctx); err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("server: %w", err)
		}
	}()

	logger.Info("convrelay running (press Ctrl+C to stop)")

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	case err := <-errCh:
		logger.Error("component failed", "error", err)
		cancel()
		return 1
	}

	logger.Info("convrelay stopped")
	return 0
}
