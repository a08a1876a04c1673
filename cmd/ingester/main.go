package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/stock-prices/internal/alphavantage"
	"github.com/rickgao/stock-prices/internal/config"
	"github.com/rickgao/stock-prices/internal/database"
	"github.com/rickgao/stock-prices/internal/normalize"
	"github.com/rickgao/stock-prices/internal/pipeline"
	"github.com/rickgao/stock-prices/internal/scheduler"
	"github.com/rickgao/stock-prices/internal/store"
	"github.com/rickgao/stock-prices/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to config file (environment only when empty)")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before the config; missing is fine")
	once := flag.Bool("once", false, "run a single pass and exit")
	symbolsFlag := flag.String("symbols", "", "comma-separated symbols, overrides config")
	flag.Parse()

	// Bootstrap logger until the configured one exists
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	if err := config.LoadDotEnv(*envFile); err != nil {
		logger.Error("failed to load env file", "path", *envFile, "error", err)
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *symbolsFlag != "" {
		cfg.Symbols = config.ParseSymbols(*symbolsFlag)
		if len(cfg.Symbols) == 0 {
			logger.Error("no symbols in -symbols", "value", *symbolsFlag)
			os.Exit(1)
		}
	}

	// Set up structured logging
	logger, err = newLogger(cfg.Log, os.Stdout)
	if err != nil {
		slog.Error("failed to build logger", "error", err)
		os.Exit(1)
	}
	logger = logger.With("instance_id", cfg.Instance.ID)
	slog.SetDefault(logger)

	logger.Info("starting ingester",
		version.LogAttrs(),
		"config", *configPath,
		"symbols", cfg.Symbols,
		"once", *once,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Connect to database
	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"database", cfg.Database.Name,
		"table", cfg.Database.Table,
	)

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, cfg.Database.Table); err != nil {
		logger.Error("failed to migrate schema", "error", err)
		os.Exit(1)
	}

	logger.Info("database connected")

	// Build the pipeline
	client := alphavantage.NewClient(
		cfg.Provider.BaseURL,
		cfg.Provider.APIKey,
		alphavantage.WithLogger(logger),
		alphavantage.WithTimeout(cfg.Provider.Timeout),
		alphavantage.WithRetries(cfg.Provider.MaxRetries, cfg.Provider.BackoffBase),
		alphavantage.WithFunction(cfg.Provider.Function),
		alphavantage.WithOutputSize(cfg.Provider.OutputSize),
		alphavantage.WithRateLimit(cfg.Provider.RequestsPerMinute),
	)

	normalizer := normalize.New(alphavantage.FieldsFor(client.Function()), logger)

	sink := store.NewSink(store.Config{
		Table: cfg.Database.Table,
		Mode:  store.WriteMode(cfg.Pipeline.WriteMode),
	}, pool, logger)

	runner := pipeline.New(pipeline.Config{
		Concurrency: cfg.Pipeline.Concurrency,
	}, client, normalizer, sink, logger)

	symbols := cfg.Symbols
	runFunc := func(ctx context.Context) {
		runner.RunOnce(ctx, symbols)
	}

	if *once {
		report := runner.RunOnce(ctx, symbols)
		if report.Count(pipeline.StatusFailed) > 0 {
			pool.Close()
			os.Exit(2)
		}
		return
	}

	// Start the scheduler
	loc, err := time.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		logger.Error("failed to load timezone", "timezone", cfg.Schedule.Timezone, "error", err)
		os.Exit(1)
	}

	sched := scheduler.New(scheduler.Config{
		Cron:       cfg.Schedule.Cron,
		Location:   loc,
		RunOnStart: cfg.Schedule.RunOnStart,
	}, runFunc, logger)

	if err := sched.Start(ctx); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := sched.Stop(shutdownCtx); err != nil {
			logger.Warn("scheduler did not stop cleanly", "error", err)
		}
	}()

	// Start health server
	var healthServer *http.Server
	if !cfg.Health.Disabled {
		healthServer = &http.Server{
			Addr: fmt.Sprintf(":%d", cfg.Health.Port),
			Handler: createHealthHandler(healthDeps{
				db:        pool,
				reports:   runner,
				sink:      sink,
				scheduler: sched,
			}, logger),
		}

		go func() {
			logger.Info("starting health server", "port", cfg.Health.Port)
			if err := healthServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				logger.Error("health server error", "error", err)
			}
		}()
	}

	logger.Info("ingester running",
		"cron", cfg.Schedule.Cron,
		"timezone", cfg.Schedule.Timezone,
		"next_run", sched.NextRun(),
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	if healthServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		healthServer.Shutdown(shutdownCtx)
	}

	logger.Info("ingester stopped")
}
