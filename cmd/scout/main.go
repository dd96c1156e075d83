package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"linkedin-scout/config"
	"linkedin-scout/internal/api"
	"linkedin-scout/internal/browser"
	"linkedin-scout/internal/core"
	"linkedin-scout/internal/extract"
	"linkedin-scout/internal/human"
	"linkedin-scout/internal/pipeline"
	"linkedin-scout/internal/rating"
	"linkedin-scout/internal/repository"
	"linkedin-scout/internal/schedule"
	"linkedin-scout/internal/session"
	"linkedin-scout/pkg/utils"
)

var (
	configPath = flag.String("config", "config/config.yaml", "Path to configuration file")
	targetURL  = flag.String("url", "", "Profile URL to scrape once and exit")
	headful    = flag.Bool("headful", false, "Run the browser with a visible window")
)

func main() {
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(logger); err != nil {
		logger.Fatal("Scout failed", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	started := time.Now()

	logger.Info("LinkedIn Scout - Starting",
		zap.String("version", "1.0.0"),
		zap.String("selector_revision", extract.Revision),
	)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if *headful {
		cfg.Browser.Headless = false
	}
	logger.Info("Configuration loaded", zap.String("config_path", *configPath))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	logger.Info("Initializing components...")

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	repo, err := repository.NewSQLiteRepository(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize repository: %w", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Error("Failed to close repository", zap.Error(err))
		}
	}()
	logger.Info("Repository initialized", zap.String("db_path", cfg.Database.Path))

	humanizer := human.New(cfg.Human)

	// The browser launches lazily on the first job; boot stays fast and a
	// missing Chrome binary surfaces as a job error, not a crash.
	mgr := browser.NewManager(cfg, humanizer, logger)
	defer func() {
		if err := mgr.Close(); err != nil {
			logger.Error("Failed to close browser", zap.Error(err))
		}
	}()
	logger.Info("Browser manager initialized", zap.Bool("headless", cfg.Browser.Headless))

	store := session.New(cfg, logger)

	var rater core.RaterPort
	if cfg.Rating.Enabled {
		rater = rating.New(cfg.Rating, logger)
		logger.Info("Profile rating enabled", zap.String("model", cfg.Rating.Model))
	}

	pipe := pipeline.New(cfg, mgr, store, repo, rater, logger)

	sched := schedule.New(cfg, pipe, repo, logger)
	defer sched.Close()
	logger.Info("Scheduler started",
		zap.Duration("min_job_interval", cfg.Scheduler.MinJobInterval),
		zap.Int("queue_size", cfg.Scheduler.QueueSize))

	defer func() {
		logger.Info("Scout stopped", zap.String("uptime", utils.FormatDuration(time.Since(started))))
	}()

	if *targetURL != "" {
		return runOnce(ctx, sched, *targetURL, logger)
	}
	return runServer(ctx, cfg, sched, mgr, repo, logger)
}

// runOnce scrapes a single profile and prints the result as JSON.
func runOnce(ctx context.Context, sched core.SchedulerPort, url string, logger *zap.Logger) error {
	logger.Info("Running one-shot scrape", zap.String("url", url))

	result, err := sched.Schedule(ctx, url)

	data, merr := json.MarshalIndent(result, "", "  ")
	if merr != nil {
		return fmt.Errorf("failed to render result: %w", merr)
	}
	fmt.Println(string(data))

	if err != nil {
		return err
	}
	logger.Info("Scrape finished",
		zap.String("outcome", string(result.Outcome)),
		zap.Int("entries", len(result.Experience)))
	return nil
}

// runServer serves the HTTP API until a shutdown signal arrives.
func runServer(ctx context.Context, cfg *core.Config, sched core.SchedulerPort, mgr core.BrowserPort, repo core.RepositoryPort, logger *zap.Logger) error {
	srv := api.New(cfg, sched, mgr, repo, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("API shutdown was not clean", zap.Error(err))
	}
	return nil
}
