package services

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"booking-pipeline/models"

	"github.com/google/uuid"
	"github.com/mmcloughlin/geohash"
	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// geohashKeyPrecision keeps the location key coarse enough that two scrapes
// of the same building land on the same dimension row.
const geohashKeyPrecision = 6

// NormalizationError marks a raw record that cannot be linked to a Property
// and is therefore dropped from the cycle.
type NormalizationError struct {
	URL    string
	Reason string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("cannot normalize %s: %s", e.URL, e.Reason)
}

// Normalizer maps raw extracted records into staged relational rows. It never
// touches storage; the Loader owns all writes.
type Normalizer struct {
	logger *zap.Logger
}

// NewNormalizer creates a new Normalizer.
func NewNormalizer(logger *zap.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// Normalize builds the staged entities for one raw record: a Location and
// Property upsert candidate, normalized amenity labels and exactly one
// PriceObservation keyed by (property, run time, stay parameters).
//
// A record without its external identifier is rejected: there is nothing to
// attach the observation to.
func (n *Normalizer) Normalize(rec *models.RawRecord, params models.SearchParams, runID uuid.UUID, runTime time.Time) (*models.StagedListing, error) {
	if !rec.ExternalID.Ok() {
		return nil, &NormalizationError{URL: rec.URL, Reason: "missing external identifier"}
	}

	loc := n.buildLocation(rec, params)
	prop := n.buildProperty(rec, runTime)

	staged := &models.StagedListing{
		Location:  loc,
		Property:  prop,
		Amenities: CanonicalAmenities(rec.Amenities.Or(nil)),
		Observation: models.PriceObservation{
			RunID:      runID,
			ObservedAt: runTime,
			CheckIn:    params.CheckIn,
			CheckOut:   params.CheckOut,
			Adults:     params.Adults,
			Currency:   rec.Currency.Or(""),
		},
	}

	// Missing or malformed price stays a partial fact: the observation is
	// kept with a null price and flagged unavailable, preserving the signal
	// that the stay could not be booked at this price point.
	if rec.Price.Ok() {
		price := rec.Price.Value
		staged.Observation.Price = &price
		staged.Observation.Available = true
	} else {
		n.logger.Debug("price missing, keeping partial observation",
			zap.String("listing", prop.ExternalID),
			zap.Int("state", int(rec.Price.State)))
	}

	return staged, nil
}

func (n *Normalizer) buildLocation(rec *models.RawRecord, params models.SearchParams) models.Location {
	loc := models.Location{City: strings.TrimSpace(params.Location)}

	if rec.Address.Ok() {
		loc.District = ExtractDistrict(rec.Address.Value, loc.City)
	}
	if rec.Latitude.Ok() && rec.Longitude.Ok() {
		lat, lng := rec.Latitude.Value, rec.Longitude.Value
		loc.Latitude = &lat
		loc.Longitude = &lng
		loc.Geohash = geohash.EncodeWithPrecision(lat, lng, geohashKeyPrecision)
	}
	loc.AddressKey = LocationKey(loc)
	return loc
}

func (n *Normalizer) buildProperty(rec *models.RawRecord, runTime time.Time) models.Property {
	prop := models.Property{
		ExternalID:   rec.ExternalID.Value,
		Name:         rec.Name.Or(rec.ExternalID.Value),
		URL:          rec.URL,
		PropertyType: rec.PropertyType.Or(""),
		RoomType:     ClassifyRoomType(rec.PropertyType.Or(""), rec.Name.Or(""), rec.RoomName.Or("")),
		FirstSeen:    runTime,
	}
	if rec.RoomCount.Ok() {
		v := rec.RoomCount.Value
		prop.RoomCount = &v
	}
	if rec.MaxGuests.Ok() {
		v := rec.MaxGuests.Value
		prop.MaxGuests = &v
	}
	return prop
}

// LocationKey builds the natural key a Location is deduplicated by:
// folded city, district and the coarse geohash. Two records for the same
// block resolve to the same row even when their address strings differ in
// accents or casing.
func LocationKey(loc models.Location) string {
	parts := []string{FoldKey(loc.City)}
	if loc.District != "" {
		parts = append(parts, FoldKey(loc.District))
	}
	if loc.Geohash != "" {
		parts = append(parts, loc.Geohash[:4])
	}
	return strings.Join(parts, "|")
}

var keyFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// FoldKey lowercases a string and strips diacritics so natural keys survive
// inconsistent source spellings ("Landstraße" vs "Landstrasse").
func FoldKey(s string) string {
	s = strings.ReplaceAll(s, "ß", "ss")
	folded, _, err := transform.String(keyFolder, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(strings.TrimSpace(folded))

	var b strings.Builder
	lastDash := false
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastDash = false
		case !lastDash && b.Len() > 0:
			b.WriteRune('-')
			lastDash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

var postalRegex = regexp.MustCompile(`\b(\d)(\d{2})(\d)\b`)

// ExtractDistrict pulls a district number out of a postal address. European
// city postal codes encode the district in the middle digits of the four
// digit code directly preceding the city name ("Landstraße, 1030 Vienna").
func ExtractDistrict(address, city string) string {
	scope := address
	if city != "" {
		if i := strings.Index(strings.ToLower(address), strings.ToLower(city)); i >= 0 {
			scope = address[:i]
		}
	}
	matches := postalRegex.FindAllStringSubmatch(scope, -1)
	if len(matches) == 0 {
		return ""
	}
	district := strings.TrimPrefix(matches[len(matches)-1][2], "0")
	return district
}
