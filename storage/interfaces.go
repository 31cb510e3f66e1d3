package storage

import (
	"context"

	"booking-pipeline/models"

	"github.com/google/uuid"
)

// Store is what the orchestrator needs from persistent storage. The Loader
// implements it against PostgreSQL; tests substitute an in-memory fake.
type Store interface {
	CreateRun(ctx context.Context, run *models.ScrapeRun) error
	CompleteRun(ctx context.Context, run *models.ScrapeRun) error
	ApplyListing(ctx context.Context, staged *models.StagedListing) error
	RecordFailure(ctx context.Context, runID uuid.UUID, externalID, stage, reason string) error
}

// SnapshotSink receives the cycle's normalized rows for external archival.
type SnapshotSink interface {
	WriteSnapshot(run *models.ScrapeRun, listings []*models.StagedListing) (string, error)
}
