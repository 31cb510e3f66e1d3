package pipeline

import (
	"context"
	"errors"
	"time"

	"booking-pipeline/browser"
	"booking-pipeline/models"
	"booking-pipeline/scraper/booking"
	"booking-pipeline/services"
	"booking-pipeline/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Cycle phases, logged as the run progresses.
const (
	phaseDiscovering      = "DISCOVERING"
	phaseFetchingListings = "FETCHING_LISTINGS"
	phaseRunComplete      = "RUN_COMPLETE"
)

// Discoverer yields the listing URLs for one search.
type Discoverer interface {
	Discover(ctx context.Context, params models.SearchParams) ([]string, error)
}

// Extractor turns one listing URL into a raw record.
type Extractor interface {
	Extract(ctx context.Context, url string) (*models.RawRecord, error)
}

// Orchestrator sequences one cycle: discover, then fetch/extract/normalize/
// load each listing. Per-listing failures are counted and logged, never
// fatal; only a discovery failure aborts the cycle.
type Orchestrator struct {
	discoverer Discoverer
	extractor  Extractor
	normalizer *services.Normalizer
	store      storage.Store
	snapshots  storage.SnapshotSink
	insights   *services.InsightService
	logger     *zap.Logger

	runTime time.Time // zero means "now"
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

// WithRunTime pins the run timestamp used for the observation dedup key.
// Replaying a cycle with the same run time must not grow the fact table.
func WithRunTime(t time.Time) Option {
	return func(o *Orchestrator) { o.runTime = t }
}

// New wires up an Orchestrator.
func New(discoverer Discoverer, extractor Extractor, normalizer *services.Normalizer, store storage.Store, snapshots storage.SnapshotSink, logger *zap.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		discoverer: discoverer,
		extractor:  extractor,
		normalizer: normalizer,
		store:      store,
		snapshots:  snapshots,
		insights:   services.NewInsightService(logger),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RunCycle executes one end-to-end cycle for the given search parameters and
// returns its summary. Best-effort completion: the cycle captures as much as
// the source allows and reports the rest as failures.
func (o *Orchestrator) RunCycle(ctx context.Context, params models.SearchParams) (*models.RunSummary, error) {
	runTime := o.runTime
	if runTime.IsZero() {
		runTime = time.Now().UTC().Truncate(time.Second)
	}

	run := &models.ScrapeRun{
		ID:        uuid.New(),
		StartedAt: runTime,
		Params:    params,
	}
	if err := o.store.CreateRun(ctx, run); err != nil {
		return nil, err
	}

	started := time.Now()
	o.logger.Info("cycle started",
		zap.String("run_id", run.ID.String()),
		zap.String("phase", phaseDiscovering),
		zap.String("location", params.Location))

	links, err := o.discoverer.Discover(ctx, params)
	if err != nil {
		// No listings to process: the whole cycle aborts, but the audit row
		// still records the attempt.
		o.finishRun(ctx, run, started)
		return nil, err
	}
	run.LinksDiscovered = len(links)

	o.logger.Info("processing listings",
		zap.String("phase", phaseFetchingListings),
		zap.Int("links", len(links)))

	var staged []*models.StagedListing
	for _, link := range links {
		// A terminated cycle stops cleanly at a listing boundary; everything
		// written so far is already committed per listing.
		if ctx.Err() != nil {
			o.logger.Warn("cycle interrupted", zap.Int("processed", run.ListingsParsed+run.ListingsFailed))
			break
		}

		listing, err := o.processListing(ctx, link, params, run.ID, runTime)
		if err != nil {
			run.ListingsFailed++
			stage := stageOf(err)
			o.logger.Warn("listing failed",
				zap.String("listing", link),
				zap.String("stage", stage),
				zap.Error(err))
			if recErr := o.store.RecordFailure(ctx, run.ID, booking.ExternalIDFromURL(link), stage, err.Error()); recErr != nil {
				o.logger.Error("failed to record listing failure", zap.Error(recErr))
			}
			continue
		}
		staged = append(staged, listing)
		run.ListingsParsed++
	}

	summary := o.finishRun(ctx, run, started)
	summary.Insights = o.insights.Generate(staged)

	if len(staged) > 0 && o.snapshots != nil {
		if _, err := o.snapshots.WriteSnapshot(run, staged); err != nil {
			o.logger.Error("snapshot failed", zap.Error(err))
		}
	}

	if summary.StructuralBreakage {
		o.logger.Error("no listing could be fetched from a non-empty discovery set; site layout likely changed",
			zap.Int("discovered", summary.Discovered))
	}

	o.logger.Info("cycle finished",
		zap.String("phase", phaseRunComplete),
		zap.Int("discovered", summary.Discovered),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Duration("duration", summary.Duration))
	return summary, nil
}

// processListing runs the fetch → extract → normalize → load chain for one
// listing URL.
func (o *Orchestrator) processListing(ctx context.Context, link string, params models.SearchParams, runID uuid.UUID, runTime time.Time) (*models.StagedListing, error) {
	rec, err := o.extractor.Extract(ctx, link)
	if err != nil {
		return nil, err
	}

	listing, err := o.normalizer.Normalize(rec, params, runID, runTime)
	if err != nil {
		return nil, err
	}

	if err := o.store.ApplyListing(ctx, listing); err != nil {
		return nil, err
	}
	return listing, nil
}

func (o *Orchestrator) finishRun(ctx context.Context, run *models.ScrapeRun, started time.Time) *models.RunSummary {
	now := time.Now().UTC()
	run.FinishedAt = &now

	// The cycle context may already be cancelled when an interrupted run gets
	// here; the audit row must still be finalized, counts and finished_at are
	// most valuable for exactly those runs.
	if err := o.store.CompleteRun(context.WithoutCancel(ctx), run); err != nil {
		o.logger.Error("failed to finalize scrape run", zap.Error(err))
	}

	return &models.RunSummary{
		RunID:              run.ID,
		Params:             run.Params,
		StartedAt:          run.StartedAt,
		Duration:           time.Since(started),
		Discovered:         run.LinksDiscovered,
		Succeeded:          run.ListingsParsed,
		Failed:             run.ListingsFailed,
		StructuralBreakage: run.LinksDiscovered > 0 && run.ListingsParsed == 0,
	}
}

// stageOf classifies a per-listing failure for the error log.
func stageOf(err error) string {
	var fetchErr *browser.FetchError
	var normErr *services.NormalizationError
	var loadErr *storage.LoadError
	switch {
	case errors.As(err, &fetchErr):
		return "fetch"
	case errors.As(err, &normErr):
		return "normalize"
	case errors.As(err, &loadErr):
		return "load"
	default:
		return "extract"
	}
}
