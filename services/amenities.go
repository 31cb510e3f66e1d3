package services

import "strings"

// amenitySynonyms maps source labels onto the canonical amenity vocabulary
// the analytics layer expects. Labels without an entry are kept, slugified.
var amenitySynonyms = map[string]string{
	"television":        "tv",
	"flat-screen tv":    "tv",
	"lift":              "elevator",
	"refrigerator":      "fridge",
	"hairdryer":         "hair_dryer",
	"hair dryer":        "hair_dryer",
	"air conditioning":  "air_conditioning",
	"hot tub":           "hot_tub",
	"hot tub/jacuzzi":   "hot_tub",
	"barbecue":          "bbq",
	"bbq facilities":    "bbq",
	"coffee maker":      "coffee",
	"coffee machine":    "coffee",
	"tea/coffee maker":  "coffee",
	"patio":             "balcony",
	"terrace":           "balcony",
	"outdoor furniture": "furniture",
	"swimming pool":     "pool",
	"free wifi":         "wifi",
	"fitness centre":    "gym",
	"fitness center":    "gym",
	"kitchenette":       "kitchen",
}

// CanonicalAmenity normalizes one observed amenity label.
func CanonicalAmenity(label string) string {
	key := strings.ToLower(strings.TrimSpace(label))
	if canonical, ok := amenitySynonyms[key]; ok {
		return canonical
	}
	return strings.ReplaceAll(FoldKey(key), "-", "_")
}

// CanonicalAmenities normalizes and deduplicates a list of observed labels,
// preserving first-seen order.
func CanonicalAmenities(labels []string) []string {
	seen := make(map[string]struct{}, len(labels))
	var out []string
	for _, label := range labels {
		canonical := CanonicalAmenity(label)
		if canonical == "" {
			continue
		}
		if _, dup := seen[canonical]; dup {
			continue
		}
		seen[canonical] = struct{}{}
		out = append(out, canonical)
	}
	return out
}
