package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocalizedFloat(t *testing.T) {
	cases := []struct {
		raw  string
		want float64
	}{
		{"€ 1.234,56", 1234.56},
		{"$1,234.56", 1234.56},
		{"1 234,56", 1234.56},
		{"€ 89", 89},
		{"8.4", 8.4},
		{"US$120", 120},
		{"€ 1.234", 1234},
		{"129,00", 129},
		{"4,5", 4.5},
	}
	for _, tc := range cases {
		got, err := ParseLocalizedFloat(tc.raw)
		require.NoError(t, err, "raw=%q", tc.raw)
		assert.InDelta(t, tc.want, got, 0.001, "raw=%q", tc.raw)
	}
}

func TestParseLocalizedFloatRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "no price shown", "—"} {
		_, err := ParseLocalizedFloat(raw)
		assert.Error(t, err, "raw=%q", raw)
	}
}

func TestParseLocalizedInt(t *testing.T) {
	got, err := ParseLocalizedInt("1,932 reviews")
	require.NoError(t, err)
	assert.Equal(t, 1932, got)

	got, err = ParseLocalizedInt("2.071 reviews")
	require.NoError(t, err)
	assert.Equal(t, 2071, got)
}

func TestCurrencyOf(t *testing.T) {
	code, ok := CurrencyOf("€ 123")
	require.True(t, ok)
	assert.Equal(t, "EUR", code)

	code, ok = CurrencyOf("US$99")
	require.True(t, ok)
	assert.Equal(t, "USD", code)

	_, ok = CurrencyOf("123")
	assert.False(t, ok)
}

func TestParseLatLng(t *testing.T) {
	lat, lng, err := ParseLatLng("48.2082,16.3738")
	require.NoError(t, err)
	assert.InDelta(t, 48.2082, lat, 0.0001)
	assert.InDelta(t, 16.3738, lng, 0.0001)

	_, _, err = ParseLatLng("not-coordinates")
	assert.Error(t, err)
}

func TestExternalIDFromURL(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://www.booking.com/hotel/at/altstadt-vienna.en-gb.html", "at/altstadt-vienna"},
		{"https://www.booking.com/hotel/at/altstadt-vienna.en-gb.html?label=x#map", "at/altstadt-vienna"},
		{"/hotel/at/sacher.html", "at/sacher"},
		{"https://www.booking.com/searchresults.html", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ExternalIDFromURL(tc.url), "url=%q", tc.url)
	}
}
