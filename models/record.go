package models

import "time"

// FieldState tells whether a field was found on the page and parsed cleanly.
type FieldState int

const (
	FieldAbsent FieldState = iota
	FieldPresent
	FieldMalformed // found on the page but not parseable
)

// Field holds one extracted value together with its extraction outcome, so a
// missing or renamed element never aborts the rest of the record.
type Field[T any] struct {
	Value T
	State FieldState
}

// Present wraps a successfully parsed value.
func Present[T any](v T) Field[T] {
	return Field[T]{Value: v, State: FieldPresent}
}

// Absent marks a field that was not found on the page.
func Absent[T any]() Field[T] {
	return Field[T]{State: FieldAbsent}
}

// Malformed marks a field that was found but could not be parsed.
func Malformed[T any]() Field[T] {
	return Field[T]{State: FieldMalformed}
}

// Ok reports whether the field carries a usable value.
func (f Field[T]) Ok() bool {
	return f.State == FieldPresent
}

// Or returns the field value, or fallback when the field is absent/malformed.
func (f Field[T]) Or(fallback T) T {
	if f.State == FieldPresent {
		return f.Value
	}
	return fallback
}

// SearchParams is the configuration for one discovery search: where, when and
// for how many guests.
type SearchParams struct {
	Location string
	CheckIn  time.Time
	CheckOut time.Time
	Adults   int
}

// RawRecord is the unprocessed output of extracting one listing page. Every
// target field is either a parsed value or an explicit absent/malformed
// marker.
type RawRecord struct {
	ExternalID Field[string] // stable slug from the listing URL
	URL        string

	Name         Field[string]
	RoomName     Field[string]
	Address      Field[string]
	Latitude     Field[float64]
	Longitude    Field[float64]
	PropertyType Field[string]
	RoomCount    Field[int]
	MaxGuests    Field[int]

	Price       Field[float64]
	Currency    Field[string]
	RatingScore Field[float64]
	RatingCount Field[int]

	Amenities Field[[]string]

	ScrapedAt time.Time
}
