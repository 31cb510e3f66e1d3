package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"booking-pipeline/browser"
	"booking-pipeline/models"
	"booking-pipeline/scraper/booking"
	"booking-pipeline/services"
	"booking-pipeline/storage"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeDiscoverer struct {
	links []string
	err   error
}

func (d *fakeDiscoverer) Discover(context.Context, models.SearchParams) ([]string, error) {
	return d.links, d.err
}

// fakeExtractor serves full records for every URL except the ones listed as
// down, which fail with a fetch timeout.
type fakeExtractor struct {
	down map[string]bool
}

func (e *fakeExtractor) Extract(_ context.Context, url string) (*models.RawRecord, error) {
	if e.down[url] {
		return nil, &browser.FetchError{URL: url, Reason: browser.ReasonTimeout}
	}
	id := booking.ExternalIDFromURL(url)
	return &models.RawRecord{
		ExternalID:   models.Present(id),
		URL:          url,
		Name:         models.Present("Listing " + id),
		Address:      models.Present("Kirchengasse 41, 1070 Vienna, Austria"),
		PropertyType: models.Present("Entire apartment"),
		Price:        models.Present(120.0),
		Currency:     models.Present("EUR"),
	}, nil
}

type recordedFailure struct {
	externalID string
	stage      string
}

// memStore mimics the loader's idempotence: observations are keyed by the
// dedup tuple, dimensions by their natural keys.
type memStore struct {
	mu           sync.Mutex
	runs         map[uuid.UUID]*models.ScrapeRun
	observations map[string]struct{}
	properties   map[string]struct{}
	failures     []recordedFailure
}

func newMemStore() *memStore {
	return &memStore{
		runs:         make(map[uuid.UUID]*models.ScrapeRun),
		observations: make(map[string]struct{}),
		properties:   make(map[string]struct{}),
	}
}

func (s *memStore) CreateRun(_ context.Context, run *models.ScrapeRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *run
	s.runs[run.ID] = &copied
	return nil
}

func (s *memStore) CompleteRun(_ context.Context, run *models.ScrapeRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *run
	s.runs[run.ID] = &copied
	return nil
}

func (s *memStore) ApplyListing(_ context.Context, staged *models.StagedListing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.properties[staged.Property.ExternalID] = struct{}{}
	obs := staged.Observation
	key := fmt.Sprintf("%s|%s|%s|%s|%d",
		staged.Property.ExternalID,
		obs.ObservedAt.Format(time.RFC3339),
		obs.CheckIn.Format("2006-01-02"),
		obs.CheckOut.Format("2006-01-02"),
		obs.Adults)
	s.observations[key] = struct{}{}
	return nil
}

func (s *memStore) RecordFailure(_ context.Context, _ uuid.UUID, externalID, stage, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, recordedFailure{externalID: externalID, stage: stage})
	return nil
}

// ctxStore fails like a real database client when its context is cancelled.
// It can cancel the cycle itself after a number of applied listings, which
// lands the cancellation exactly on a listing boundary.
type ctxStore struct {
	inner       *memStore
	cancelAfter int
	cancel      context.CancelFunc
	applies     int
}

func (s *ctxStore) CreateRun(ctx context.Context, run *models.ScrapeRun) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.inner.CreateRun(ctx, run)
}

func (s *ctxStore) CompleteRun(ctx context.Context, run *models.ScrapeRun) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.inner.CompleteRun(ctx, run)
}

func (s *ctxStore) ApplyListing(ctx context.Context, staged *models.StagedListing) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.inner.ApplyListing(ctx, staged); err != nil {
		return err
	}
	s.applies++
	if s.cancel != nil && s.applies == s.cancelAfter {
		s.cancel()
	}
	return nil
}

func (s *ctxStore) RecordFailure(ctx context.Context, runID uuid.UUID, externalID, stage, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.inner.RecordFailure(ctx, runID, externalID, stage, reason)
}

type memSnapshots struct {
	writes int
	rows   int
}

func (s *memSnapshots) WriteSnapshot(_ *models.ScrapeRun, listings []*models.StagedListing) (string, error) {
	s.writes++
	s.rows = len(listings)
	return "snapshot.csv", nil
}

func listingURLs(slugs ...string) []string {
	urls := make([]string, len(slugs))
	for i, slug := range slugs {
		urls[i] = "https://www.booking.com/hotel/at/" + slug + ".en-gb.html"
	}
	return urls
}

func newTestOrchestrator(d Discoverer, e Extractor, store storage.Store, sink storage.SnapshotSink, opts ...Option) *Orchestrator {
	return New(d, e, services.NewNormalizer(zap.NewNop()), store, sink, zap.NewNop(), opts...)
}

func TestRunCycleCountsSuccessesAndFailures(t *testing.T) {
	links := listingURLs("a", "b", "c", "d", "e")
	store := newMemStore()
	snapshots := &memSnapshots{}

	o := newTestOrchestrator(
		&fakeDiscoverer{links: links},
		&fakeExtractor{down: map[string]bool{links[2]: true}},
		store, snapshots,
	)

	summary, err := o.RunCycle(context.Background(), models.SearchParams{Location: "Vienna", Adults: 2})
	require.NoError(t, err)

	assert.Equal(t, 5, summary.Discovered)
	assert.Equal(t, 4, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.False(t, summary.StructuralBreakage)

	assert.Len(t, store.observations, 4)
	assert.Len(t, store.properties, 4)

	require.Len(t, store.failures, 1)
	assert.Equal(t, "at/c", store.failures[0].externalID)
	assert.Equal(t, "fetch", store.failures[0].stage)

	// audit row carries the final counts
	run := store.runs[summary.RunID]
	require.NotNil(t, run)
	assert.Equal(t, 5, run.LinksDiscovered)
	assert.Equal(t, 4, run.ListingsParsed)
	assert.Equal(t, 1, run.ListingsFailed)
	require.NotNil(t, run.FinishedAt)

	assert.Equal(t, 1, snapshots.writes)
	assert.Equal(t, 4, snapshots.rows)

	require.NotNil(t, summary.Insights)
	assert.Equal(t, 4, summary.Insights.Priced)
	assert.InDelta(t, 120, summary.Insights.AvgPrice, 0.001)
}

func TestRunCycleReplayDoesNotGrowFacts(t *testing.T) {
	links := listingURLs("a", "b", "c")
	store := newMemStore()
	runTime := time.Date(2026, 8, 30, 4, 0, 0, 0, time.UTC)
	params := models.SearchParams{
		Location: "Vienna",
		CheckIn:  time.Date(2026, 9, 29, 0, 0, 0, 0, time.UTC),
		CheckOut: time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC),
		Adults:   2,
	}

	for i := 0; i < 2; i++ {
		o := newTestOrchestrator(
			&fakeDiscoverer{links: links},
			&fakeExtractor{},
			store, &memSnapshots{},
			WithRunTime(runTime),
		)
		_, err := o.RunCycle(context.Background(), params)
		require.NoError(t, err)
	}

	// same run time, same stay parameters: the fact table must not grow
	assert.Len(t, store.observations, 3)
	assert.Len(t, store.properties, 3)
}

func TestRunCycleAbortsOnDiscoveryFailure(t *testing.T) {
	store := newMemStore()
	discErr := &booking.DiscoveryError{Location: "Vienna"}

	o := newTestOrchestrator(
		&fakeDiscoverer{err: discErr},
		&fakeExtractor{},
		store, &memSnapshots{},
	)

	_, err := o.RunCycle(context.Background(), models.SearchParams{Location: "Vienna"})
	require.ErrorAs(t, err, &discErr)

	// the audit row still records the aborted attempt
	require.Len(t, store.runs, 1)
	for _, run := range store.runs {
		require.NotNil(t, run.FinishedAt)
		assert.Zero(t, run.LinksDiscovered)
	}
	assert.Empty(t, store.observations)
}

func TestRunCycleFlagsStructuralBreakage(t *testing.T) {
	links := listingURLs("a", "b")
	down := map[string]bool{links[0]: true, links[1]: true}
	snapshots := &memSnapshots{}

	o := newTestOrchestrator(
		&fakeDiscoverer{links: links},
		&fakeExtractor{down: down},
		newMemStore(), snapshots,
	)

	summary, err := o.RunCycle(context.Background(), models.SearchParams{Location: "Vienna"})
	require.NoError(t, err)

	assert.True(t, summary.StructuralBreakage)
	assert.Equal(t, 2, summary.Failed)
	assert.Equal(t, 0, snapshots.writes)
}

func TestRunCycleStopsAtListingBoundaryOnCancel(t *testing.T) {
	links := listingURLs("a", "b", "c", "d")
	store := newMemStore()

	ctx, cancel := context.WithCancel(context.Background())
	extractor := &cancellingExtractor{inner: &fakeExtractor{}, cancelAfter: 2, cancel: cancel}

	o := newTestOrchestrator(&fakeDiscoverer{links: links}, extractor, store, &memSnapshots{})

	summary, err := o.RunCycle(ctx, models.SearchParams{Location: "Vienna"})
	require.NoError(t, err)

	// two listings were committed before the signal, the rest never started
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 0, summary.Failed)
	assert.Len(t, store.observations, 2)
}

func TestRunCycleFinalizesAuditRowAfterCancel(t *testing.T) {
	links := listingURLs("a", "b", "c", "d")
	store := newMemStore()

	ctx, cancel := context.WithCancel(context.Background())

	o := newTestOrchestrator(
		&fakeDiscoverer{links: links},
		&fakeExtractor{},
		&ctxStore{inner: store, cancelAfter: 2, cancel: cancel}, &memSnapshots{},
	)

	summary, err := o.RunCycle(ctx, models.SearchParams{Location: "Vienna"})
	require.NoError(t, err)

	// the interrupted run's audit row still carries final counts, even though
	// the cycle context is cancelled by the time the run is finalized
	run := store.runs[summary.RunID]
	require.NotNil(t, run)
	require.NotNil(t, run.FinishedAt)
	assert.Equal(t, 4, run.LinksDiscovered)
	assert.Equal(t, 2, run.ListingsParsed)
	assert.Equal(t, 0, run.ListingsFailed)
}

// cancellingExtractor cancels the cycle context after n successful extracts.
type cancellingExtractor struct {
	inner       *fakeExtractor
	cancelAfter int
	cancel      context.CancelFunc
	calls       int
}

func (e *cancellingExtractor) Extract(ctx context.Context, url string) (*models.RawRecord, error) {
	e.calls++
	if e.calls == e.cancelAfter {
		defer e.cancel()
	}
	return e.inner.Extract(ctx, url)
}
