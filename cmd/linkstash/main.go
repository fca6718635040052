package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"linkstash/internal/backfill"
	"linkstash/internal/bot"
	"linkstash/internal/config"
	"linkstash/internal/scraper"
	"linkstash/internal/storage"
)

const gcInterval = 10 * time.Minute

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup always runs.
func run() int {
	// --- Configuration Loading ---
	cfg, err := config.LoadConfig("./configs")
	if err == nil {
		err = cfg.ValidateForBot()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		return 1
	}

	// --- Logger Setup ---
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(cfg.Level())

	log.WithFields(logrus.Fields{
		"badgerdb_path":    cfg.BadgerDBPath,
		"http_timeout":     cfg.HTTPTimeout,
		"render_timeout":   cfg.RenderTimeout,
		"fetch_rate_limit": cfg.FetchRateLimit,
	}).Info("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Initialize Components ---
	badgerRepo, err := storage.NewBadgerRepository(cfg.BadgerDBPath, log)
	if err != nil {
		log.WithError(err).Error("Failed to initialize database")
		return 1
	}
	go badgerRepo.RunGC(ctx, gcInterval)

	repo := storage.NewSerialRepository(badgerRepo, log)
	defer func() {
		log.Info("Closing database...")
		if err := repo.Close(); err != nil {
			log.WithError(err).Error("Error closing database")
		}
	}()

	orchestrator, browser := scraper.NewPipeline(scraper.Settings{
		HTTPTimeout:   cfg.HTTPTimeout,
		UserAgent:     cfg.UserAgent,
		RateLimit:     cfg.FetchRateLimit,
		ChromeBin:     cfg.ChromeBin,
		Width:         cfg.ScreenshotWidth,
		Height:        cfg.ScreenshotHeight,
		SettleDelay:   cfg.ScreenshotSettleDelay,
		RenderTimeout: cfg.RenderTimeout,
	}, log)
	defer func() {
		if err := browser.Close(); err != nil {
			log.WithError(err).Error("Error closing browser")
		}
	}()

	backfiller := backfill.New(orchestrator, repo, log)

	botHandler, err := bot.NewHandler(cfg, repo, backfiller, log)
	if err != nil {
		log.WithError(err).Error("Failed to initialize Telegram bot handler")
		return 1
	}

	// --- Application Startup ---
	log.Info("Starting linkstash...")
	go botHandler.Start(ctx)
	log.Info("linkstash is running. Press Ctrl+C to exit.")

	<-ctx.Done()

	log.Info("Shutting down linkstash...")
	stop()
	return 0
}
