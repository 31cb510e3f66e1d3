package booking

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	numberRegex    = regexp.MustCompile(`-?\d[\d.,\x{202f}\x{00a0} ]*`)
	intRegex       = regexp.MustCompile(`\d[\d.,\x{00a0}]*`)
	latLngRegex    = regexp.MustCompile(`^\s*(-?\d+(?:\.\d+)?)\s*,\s*(-?\d+(?:\.\d+)?)\s*$`)
	bedroomRegex   = regexp.MustCompile(`(?i)(\d+)\s*bedroom`)
	maxGuestsRegex = regexp.MustCompile(`(?i)max[.:]?\s*(?:persons|guests|people)?[.:]?\s*(\d+)`)
)

// currencySymbols maps the symbols seen in quoted prices to ISO codes.
var currencySymbols = []struct {
	symbol string
	code   string
}{
	{"US$", "USD"},
	{"€", "EUR"},
	{"$", "USD"},
	{"£", "GBP"},
	{"CHF", "CHF"},
	{"zł", "PLN"},
	{"Kč", "CZK"},
}

// CurrencyOf detects the currency of a raw price string.
func CurrencyOf(raw string) (string, bool) {
	for _, c := range currencySymbols {
		if strings.Contains(raw, c.symbol) {
			return c.code, true
		}
	}
	return "", false
}

// ParseLocalizedFloat extracts a number from a raw page string, tolerating
// currency symbols, non-breaking spaces, thousands separators and decimal
// commas ("€ 1.234,56", "$1,234.56", "1 234,56").
func ParseLocalizedFloat(raw string) (float64, error) {
	match := numberRegex.FindString(raw)
	if match == "" {
		return 0, fmt.Errorf("no number in %q", raw)
	}
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f':
			return -1
		}
		return r
	}, match)
	cleaned = strings.TrimRight(cleaned, ".,")

	lastComma := strings.LastIndex(cleaned, ",")
	lastDot := strings.LastIndex(cleaned, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		// Both present: the later one is the decimal separator.
		if lastComma > lastDot {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case lastComma >= 0:
		// Lone comma: decimal if followed by 1-2 digits, thousands otherwise.
		if len(cleaned)-lastComma-1 <= 2 {
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case lastDot >= 0:
		// Lone dot followed by exactly 3 digits is a thousands separator.
		if len(cleaned)-lastDot-1 == 3 && strings.Count(cleaned, ".") == 1 {
			// "1.234" is ambiguous; prices on the target site use it as a
			// thousands separator.
			cleaned = strings.ReplaceAll(cleaned, ".", "")
		}
	}

	return strconv.ParseFloat(cleaned, 64)
}

// ParseLocalizedInt extracts an integer such as a review count ("1,932
// reviews") from a raw page string.
func ParseLocalizedInt(raw string) (int, error) {
	match := intRegex.FindString(raw)
	if match == "" {
		return 0, fmt.Errorf("no number in %q", raw)
	}
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '.', ',', '\u00a0':
			return -1
		}
		return r
	}, match)
	return strconv.Atoi(cleaned)
}

// ParseLatLng splits a "48.2082,16.3738" coordinate attribute.
func ParseLatLng(raw string) (lat, lng float64, err error) {
	m := latLngRegex.FindStringSubmatch(raw)
	if m == nil {
		return 0, 0, fmt.Errorf("no coordinates in %q", raw)
	}
	lat, err = strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, 0, err
	}
	lng, err = strconv.ParseFloat(m[2], 64)
	if err != nil {
		return 0, 0, err
	}
	return lat, lng, nil
}

// ExternalIDFromURL derives the stable listing identifier from a detail page
// URL: "/hotel/at/altstadt-vienna.en-gb.html" -> "at/altstadt-vienna".
func ExternalIDFromURL(rawURL string) string {
	path := rawURL
	if i := strings.Index(path, "://"); i >= 0 {
		path = path[i+3:]
		if j := strings.Index(path, "/"); j >= 0 {
			path = path[j:]
		}
	}
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	const marker = "/hotel/"
	i := strings.Index(path, marker)
	if i < 0 {
		return ""
	}
	id := path[i+len(marker):]
	id = strings.TrimSuffix(id, ".html")
	// strip the language tag: "at/altstadt-vienna.en-gb" -> "at/altstadt-vienna"
	if j := strings.LastIndex(id, "."); j >= 0 {
		id = id[:j]
	}
	if id == "" || strings.HasSuffix(id, "/") {
		return ""
	}
	return id
}
