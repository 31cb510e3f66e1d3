package models

import (
	"time"

	"github.com/google/uuid"
)

// Location is a shared dimension row: one per distinct normalized address
// key. Created on first reference, never deleted.
type Location struct {
	ID         int64
	City       string
	District   string
	AddressKey string // natural key: folded city|district|geohash prefix
	Geohash    string
	Latitude   *float64
	Longitude  *float64
}

// Property is one row per physical accommodation, keyed by the stable
// external identifier from the listing URL.
type Property struct {
	ID           int64
	ExternalID   string
	Name         string
	URL          string
	LocationID   int64
	PropertyType string
	RoomType     int // classified room type, see services.ClassifyRoomType
	RoomCount    *int
	MaxGuests    *int
	FirstSeen    time.Time
}

// PriceObservation is an append-only fact: one quoted price for one property
// and one set of stay parameters, observed during one run. The tuple
// (PropertyID, ObservedAt, CheckIn, CheckOut, Adults) is the dedup key.
type PriceObservation struct {
	ID         int64
	PropertyID int64
	RunID      uuid.UUID
	ObservedAt time.Time
	CheckIn    time.Time
	CheckOut   time.Time
	Adults     int
	Price      *float64 // nil when the page showed no price
	Currency   string
	Available  bool
}

// StagedListing bundles everything the Normalizer produced for one raw record,
// ready for the Loader to apply in a single transaction. Dimension IDs are
// unresolved (zero) until the Loader fills them in.
type StagedListing struct {
	Location    Location
	Property    Property
	Amenities   []string // normalized labels
	Observation PriceObservation
}

// ScrapeRun is the append-only audit row for one orchestrator cycle.
type ScrapeRun struct {
	ID         uuid.UUID
	StartedAt  time.Time
	FinishedAt *time.Time
	Params     SearchParams

	LinksDiscovered int
	ListingsParsed  int
	ListingsFailed  int
}

// RunSummary is the per-cycle observability surface: counts plus the
// structural-breakage flag for runs where nothing could be fetched out of a
// non-empty discovery set.
type RunSummary struct {
	RunID      uuid.UUID
	Params     SearchParams
	StartedAt  time.Time
	Duration   time.Duration
	Discovered int
	Succeeded  int
	Failed     int

	// StructuralBreakage is set when every fetch failed despite a non-empty
	// discovery set, which usually means the site layout changed.
	StructuralBreakage bool

	Insights *CycleInsights
}

// CycleInsights holds price statistics computed over one cycle's staged
// listings.
type CycleInsights struct {
	Observations int
	Priced       int
	Unavailable  int
	AvgPrice     float64
	MinPrice     float64
	MaxPrice     float64
	ByDistrict   map[string]int
}
