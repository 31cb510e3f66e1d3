package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalAmenity(t *testing.T) {
	cases := []struct {
		label string
		want  string
	}{
		{"Television", "tv"},
		{"Flat-screen TV", "tv"},
		{"Lift", "elevator"},
		{"Free WiFi", "wifi"},
		{"Tea/Coffee maker", "coffee"},
		{"Fitness centre", "gym"},
		// unmapped labels are kept, slugified
		{"Soundproof rooms", "soundproof_rooms"},
		{"Ski-to-door access", "ski_to_door_access"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CanonicalAmenity(tc.label), "label=%q", tc.label)
	}
}

func TestCanonicalAmenitiesDeduplicates(t *testing.T) {
	got := CanonicalAmenities([]string{"Television", "Flat-screen TV", "Kitchen", "Kitchenette", "  "})
	assert.Equal(t, []string{"tv", "kitchen"}, got)
}
