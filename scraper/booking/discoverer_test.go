package booking

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"

	"booking-pipeline/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func searchParams() models.SearchParams {
	return models.SearchParams{Location: "Vienna", Adults: 2}
}

func resultsPage(slugs ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, slug := range slugs {
		fmt.Fprintf(&b,
			`<div data-testid="property-card"><a data-testid="title-link" href="/hotel/at/%s.en-gb.html?ucfs=1"></a></div>`,
			slug)
	}
	b.WriteString("</body></html>")
	return b.String()
}

const emptyResultsPage = `<html><body><h1 aria-live="assertive">Vienna: 0 properties found</h1></body></html>`

// pagedSource simulates the unpartitioned search: pages keyed by offset,
// every rating partition empty.
func pagedSource(pages map[string]string) *fakeSource {
	return &fakeSource{load: func(raw string) (string, error) {
		u, err := url.Parse(raw)
		if err != nil {
			return "", err
		}
		q := u.Query()
		if q.Get("nflt") != "" {
			return emptyResultsPage, nil
		}
		if page, ok := pages[q.Get("offset")]; ok {
			return page, nil
		}
		return emptyResultsPage, nil
	}}
}

func TestDiscoverDeduplicatesAcrossPages(t *testing.T) {
	src := pagedSource(map[string]string{
		"":    resultsPage("a", "b"),
		"25":  resultsPage("c", "a"),
		"50":  resultsPage("a", "b", "c"),
		"75":  resultsPage("a", "b"),
		"100": resultsPage("d"), // never reached: two stale pages end the partition
	})
	d := NewDiscoverer(src, "https://www.booking.com", 40, zap.NewNop())

	links, err := d.Discover(context.Background(), searchParams())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://www.booking.com/hotel/at/a.en-gb.html",
		"https://www.booking.com/hotel/at/b.en-gb.html",
		"https://www.booking.com/hotel/at/c.en-gb.html",
	}, links)

	// 4 pages for the base partition, 1 empty page per rating partition.
	assert.Len(t, src.hits, 4+5)
}

func TestDiscoverEmptyResultIsNotAnError(t *testing.T) {
	src := &fakeSource{load: func(string) (string, error) { return emptyResultsPage, nil }}
	d := NewDiscoverer(src, "https://www.booking.com", 40, zap.NewNop())

	links, err := d.Discover(context.Background(), searchParams())
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestDiscoverFailsWhenNoPageLoads(t *testing.T) {
	src := &fakeSource{load: func(string) (string, error) { return "", errors.New("net::ERR_CONNECTION_RESET") }}
	d := NewDiscoverer(src, "https://www.booking.com", 40, zap.NewNop())

	_, err := d.Discover(context.Background(), searchParams())

	var discErr *DiscoveryError
	require.ErrorAs(t, err, &discErr)
	assert.Equal(t, "Vienna", discErr.Location)
}

func TestDiscoverIgnoresNonListingLinks(t *testing.T) {
	page := `<html><body>
<div data-testid="property-card"><a data-testid="title-link" href="/hotel/at/real.en-gb.html"></a></div>
<div data-testid="property-card"><a href="/searchresults.en-gb.html?page=2"></a></div>
<div data-testid="property-card"><span>no link at all</span></div>
</body></html>`
	src := pagedSource(map[string]string{"": page})
	d := NewDiscoverer(src, "https://www.booking.com", 40, zap.NewNop())

	links, err := d.Discover(context.Background(), searchParams())
	require.NoError(t, err)
	assert.Equal(t, []string{"https://www.booking.com/hotel/at/real.en-gb.html"}, links)
}
