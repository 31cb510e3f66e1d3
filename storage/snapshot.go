package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"booking-pipeline/models"

	"go.uber.org/zap"
)

// SnapshotWriter dumps the cycle's normalized rows to a timestamped CSV file
// for the external backup collaborator to pick up.
type SnapshotWriter struct {
	dir    string
	logger *zap.Logger
}

// NewSnapshotWriter creates a SnapshotWriter targeting dir.
func NewSnapshotWriter(dir string, logger *zap.Logger) *SnapshotWriter {
	return &SnapshotWriter{dir: dir, logger: logger}
}

// WriteSnapshot writes one flat file per cycle, named after the run start
// time, and returns its path.
func (w *SnapshotWriter) WriteSnapshot(run *models.ScrapeRun, listings []*models.StagedListing) (string, error) {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	path := filepath.Join(w.dir, run.StartedAt.Format("2006-01-02-15-04-05")+".csv")
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create snapshot file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"run_id", "external_id", "name", "property_type", "room_type",
		"room_count", "max_guests", "city", "district", "address_key", "geohash",
		"amenities", "check_in", "check_out", "adults",
		"price", "currency", "available", "observed_at",
	}
	if err := writer.Write(header); err != nil {
		return "", fmt.Errorf("failed to write snapshot header: %w", err)
	}

	for _, l := range listings {
		obs := l.Observation
		price := ""
		if obs.Price != nil {
			price = strconv.FormatFloat(*obs.Price, 'f', 2, 64)
		}
		row := []string{
			run.ID.String(),
			l.Property.ExternalID,
			l.Property.Name,
			l.Property.PropertyType,
			strconv.Itoa(l.Property.RoomType),
			intOrEmpty(l.Property.RoomCount),
			intOrEmpty(l.Property.MaxGuests),
			l.Location.City,
			l.Location.District,
			l.Location.AddressKey,
			l.Location.Geohash,
			strings.Join(l.Amenities, ";"),
			obs.CheckIn.Format("2006-01-02"),
			obs.CheckOut.Format("2006-01-02"),
			strconv.Itoa(obs.Adults),
			price,
			obs.Currency,
			strconv.FormatBool(obs.Available),
			obs.ObservedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
		if err := writer.Write(row); err != nil {
			w.logger.Error("failed to write snapshot row",
				zap.String("listing", l.Property.ExternalID),
				zap.Error(err))
		}
	}

	w.logger.Info("snapshot written", zap.String("path", path), zap.Int("rows", len(listings)))
	return path, nil
}

func intOrEmpty(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
