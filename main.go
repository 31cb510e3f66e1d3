package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"booking-pipeline/browser"
	"booking-pipeline/config"
	"booking-pipeline/models"
	"booking-pipeline/pipeline"
	"booking-pipeline/scraper/booking"
	"booking-pipeline/services"
	"booking-pipeline/storage"
	"booking-pipeline/utils"

	"go.uber.org/zap"
)

// main runs exactly one scrape cycle. Scheduling (e.g. every 8 hours) is the
// external trigger's job; this binary is what it invokes.
func main() {
	cfg := config.Load()

	logger, err := utils.NewLogger(cfg.Development)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	// A termination signal stops the cycle at the next listing boundary;
	// per-listing transactions keep storage consistent either way.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	params := models.SearchParams{
		Location: cfg.Location,
		CheckIn:  cfg.CheckIn,
		CheckOut: cfg.CheckOut,
		Adults:   cfg.Adults,
	}
	logger.Info("accommodation scrape cycle",
		zap.String("location", params.Location),
		zap.Time("check_in", params.CheckIn),
		zap.Time("check_out", params.CheckOut),
		zap.Int("adults", params.Adults))

	db, err := storage.NewDB(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal("cannot connect to PostgreSQL", zap.Error(err))
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	session, err := browser.NewSession(browser.Options{
		Headless:    cfg.Headless,
		NavTimeout:  time.Duration(cfg.NavTimeoutSec) * time.Second,
		WaitTimeout: time.Duration(cfg.WaitTimeoutSec) * time.Second,
		MaxRetries:  cfg.MaxRetries,
		RateDelay:   time.Duration(cfg.RateLimitDelay) * time.Millisecond,
	}, logger)
	if err != nil {
		logger.Fatal("cannot start browser session", zap.Error(err))
	}
	defer session.Close()

	orchestrator := pipeline.New(
		booking.NewDiscoverer(session, cfg.BookingURL, cfg.MaxSearchPages, logger),
		booking.NewExtractor(session, logger),
		services.NewNormalizer(logger),
		storage.NewLoader(db, logger),
		storage.NewSnapshotWriter(cfg.SnapshotDir, logger),
		logger,
	)

	summary, err := orchestrator.RunCycle(ctx, params)
	if err != nil {
		logger.Fatal("cycle aborted", zap.Error(err))
	}

	services.PrintRunReport(summary)
}
