package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"booking-pipeline/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgreSQL error classes the loader reacts to.
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// Write operations within one listing's transaction.
const (
	opLocation    = "location"
	opProperty    = "property"
	opAmenities   = "amenities"
	opObservation = "observation"
)

// LoadError reports a constraint violation other than the expected dedup
// no-op. It aborts one listing's write, never the cycle.
type LoadError struct {
	ExternalID string
	Op         string
	Err        error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s failed at %s: %v", e.ExternalID, e.Op, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Loader is the sole writer to persistent storage. Dimension writes are
// upsert-by-natural-key and immutable after first write; fact writes are
// insert-if-key-absent, which makes a cycle idempotent under retry or replay.
type Loader struct {
	db     *DB
	logger *zap.Logger
}

// NewLoader creates a Loader on top of the cycle's DB handle.
func NewLoader(db *DB, logger *zap.Logger) *Loader {
	return &Loader{db: db, logger: logger}
}

// CreateRun inserts the audit row for a starting cycle.
func (l *Loader) CreateRun(ctx context.Context, run *models.ScrapeRun) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO scrape_runs (id, started_at, location, check_in, check_out, adults)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		run.ID, run.StartedAt, run.Params.Location,
		run.Params.CheckIn, run.Params.CheckOut, run.Params.Adults,
	)
	if err != nil {
		return fmt.Errorf("failed to create scrape run: %w", err)
	}
	return nil
}

// CompleteRun fills in the counts once the cycle reaches RUN_COMPLETE.
func (l *Loader) CompleteRun(ctx context.Context, run *models.ScrapeRun) error {
	_, err := l.db.ExecContext(ctx, `
		UPDATE scrape_runs
		SET finished_at = $2, links_discovered = $3, listings_parsed = $4, listings_failed = $5
		WHERE id = $1`,
		run.ID, run.FinishedAt, run.LinksDiscovered, run.ListingsParsed, run.ListingsFailed,
	)
	if err != nil {
		return fmt.Errorf("failed to complete scrape run: %w", err)
	}
	return nil
}

// ApplyListing writes one staged listing in a single transaction: Location,
// Property and Amenity dimensions first, then the PriceObservation fact. A
// duplicate fact key means the observation was already recorded this run and
// is skipped silently.
func (l *Loader) ApplyListing(ctx context.Context, staged *models.StagedListing) error {
	externalID := staged.Property.ExternalID

	return l.db.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		locID, err := l.ensureLocation(ctx, tx, &staged.Location)
		if err != nil {
			return l.asLoadError(externalID, opLocation, err)
		}
		staged.Property.LocationID = locID

		propID, err := l.ensureProperty(ctx, tx, &staged.Property)
		if err != nil {
			return l.asLoadError(externalID, opProperty, err)
		}
		staged.Property.ID = propID
		staged.Observation.PropertyID = propID

		if err := l.linkAmenities(ctx, tx, propID, staged.Amenities); err != nil {
			return l.asLoadError(externalID, opAmenities, err)
		}

		if err := l.insertObservation(ctx, tx, externalID, &staged.Observation); err != nil {
			return l.asLoadError(externalID, opObservation, err)
		}
		return nil
	})
}

// RecordFailure persists a per-listing failure for later inspection, outside
// the listing transaction so it survives the rollback.
func (l *Loader) RecordFailure(ctx context.Context, runID uuid.UUID, externalID, stage, reason string) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO load_errors (run_id, external_id, stage, reason)
		VALUES ($1, $2, $3, $4)`,
		runID, nullString(externalID), stage, reason,
	)
	if err != nil {
		return fmt.Errorf("failed to record failure: %w", err)
	}
	return nil
}

// ensureLocation resolves the location dimension row, inserting it on first
// reference. Existing rows are never overwritten: a transient bad scrape must
// not clobber corrected descriptive data.
func (l *Loader) ensureLocation(ctx context.Context, tx *sqlx.Tx, loc *models.Location) (int64, error) {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO locations (city, district, address_key, geohash, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (address_key) DO NOTHING`,
		loc.City, nullString(loc.District), loc.AddressKey,
		nullString(loc.Geohash), loc.Latitude, loc.Longitude,
	)
	if err != nil {
		return 0, err
	}

	var id int64
	if err := tx.GetContext(ctx, &id,
		`SELECT id FROM locations WHERE address_key = $1`, loc.AddressKey); err != nil {
		return 0, err
	}
	loc.ID = id
	return id, nil
}

func (l *Loader) ensureProperty(ctx context.Context, tx *sqlx.Tx, prop *models.Property) (int64, error) {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO properties (external_id, name, url, location_id, property_type, room_type, room_count, max_guests, first_seen)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (external_id) DO NOTHING`,
		prop.ExternalID, prop.Name, prop.URL, prop.LocationID,
		nullString(prop.PropertyType), prop.RoomType,
		prop.RoomCount, prop.MaxGuests, prop.FirstSeen,
	)
	if err != nil {
		return 0, err
	}

	var id int64
	if err := tx.GetContext(ctx, &id,
		`SELECT id FROM properties WHERE external_id = $1`, prop.ExternalID); err != nil {
		return 0, err
	}
	return id, nil
}

func (l *Loader) linkAmenities(ctx context.Context, tx *sqlx.Tx, propID int64, labels []string) error {
	for _, label := range labels {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO amenities (label) VALUES ($1) ON CONFLICT (label) DO NOTHING`, label)
		if err != nil {
			return err
		}

		var amenityID int64
		if err := tx.GetContext(ctx, &amenityID,
			`SELECT id FROM amenities WHERE label = $1`, label); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO property_amenities (property_id, amenity_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING`,
			propID, amenityID)
		if err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) insertObservation(ctx context.Context, tx *sqlx.Tx, externalID string, obs *models.PriceObservation) error {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO price_observations (property_id, run_id, observed_at, check_in, check_out, adults, price, currency, available)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT ON CONSTRAINT price_observations_dedup DO NOTHING`,
		obs.PropertyID, obs.RunID, obs.ObservedAt,
		obs.CheckIn, obs.CheckOut, obs.Adults,
		obs.Price, nullString(obs.Currency), obs.Available,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		l.logger.Debug("observation already recorded for this run, skipping",
			zap.String("listing", externalID))
	}
	return nil
}

// asLoadError wraps storage failures into the loader's error type. A duplicate
// fact key means the observation was already recorded for this run and is an
// idempotent no-op. A unique violation anywhere else aborts the listing: the
// transaction is already doomed at that point, and swallowing the error would
// commit a rollback while reporting success.
func (l *Loader) asLoadError(externalID, op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqUniqueViolation:
			if op == opObservation {
				l.logger.Debug("observation already recorded, skipping",
					zap.String("listing", externalID))
				return nil
			}
		case pqForeignKeyViolation:
			l.logger.Error("staged dimension missing for listing",
				zap.String("listing", externalID),
				zap.String("op", op))
		}
	}
	return &LoadError{ExternalID: externalID, Op: op, Err: err}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
