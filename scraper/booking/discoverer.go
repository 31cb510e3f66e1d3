package booking

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"booking-pipeline/browser"
	"booking-pipeline/models"
	"booking-pipeline/utils"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const resultsPerPage = 25

// ratingClasses partitions the search by star rating. The site caps how many
// results one search exposes, so six narrower searches recover listings a
// single broad one would drop.
var ratingClasses = []int{0, 1, 2, 3, 4, 5}

// DiscoveryError means the search itself could not be completed: no search
// page loaded at all. An empty but reachable result set is not an error.
type DiscoveryError struct {
	Location string
	Err      error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discovery for %q failed: %v", e.Location, e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// Discoverer pages through search results and collects the set of unique
// listing URLs for one run.
type Discoverer struct {
	src      browser.DocumentSource
	baseURL  string
	maxPages int
	logger   *zap.Logger
}

// NewDiscoverer creates a Discoverer reading pages through src.
func NewDiscoverer(src browser.DocumentSource, baseURL string, maxPages int, logger *zap.Logger) *Discoverer {
	return &Discoverer{src: src, baseURL: baseURL, maxPages: maxPages, logger: logger}
}

// Discover returns the deduplicated listing URLs for the given search. It
// walks every rating partition and stops a partition once a page is empty or
// two consecutive pages yield nothing new. A search that legitimately finds
// nothing returns an empty slice; a search whose pages never load returns a
// DiscoveryError.
func (d *Discoverer) Discover(ctx context.Context, params models.SearchParams) ([]string, error) {
	tracker := utils.NewURLTracker()
	partitionsLoaded := 0
	var lastErr error

	for _, rating := range ratingClasses {
		loaded, err := d.discoverPartition(ctx, params, rating, tracker)
		if err != nil {
			lastErr = err
			d.logger.Warn("rating partition failed",
				zap.Int("rating", rating),
				zap.Error(err))
			continue
		}
		if loaded {
			partitionsLoaded++
		}
	}

	if partitionsLoaded == 0 && lastErr != nil {
		return nil, &DiscoveryError{Location: params.Location, Err: lastErr}
	}

	links := tracker.Values()
	d.logger.Info("discovery complete",
		zap.String("location", params.Location),
		zap.Int("links", len(links)))
	return links, nil
}

// discoverPartition pages through one rating class. Returns true once at
// least one page of the partition loaded, even if it held no results.
func (d *Discoverer) discoverPartition(ctx context.Context, params models.SearchParams, rating int, tracker *utils.URLTracker) (bool, error) {
	stalePages := 0
	loaded := false

	for page := 0; page < d.maxPages; page++ {
		pageURL := d.searchURL(params, rating, page*resultsPerPage)

		html, err := d.src.Load(ctx, pageURL, PropertyCardSelector)
		if err != nil {
			if !loaded {
				return false, err
			}
			// Later pages failing just ends the partition early.
			d.logger.Warn("search page failed, ending partition",
				zap.Int("rating", rating),
				zap.Int("page", page),
				zap.Error(err))
			return true, nil
		}
		loaded = true

		links, err := extractListingLinks(html, d.baseURL)
		if err != nil {
			return true, err
		}
		if len(links) == 0 {
			break
		}

		fresh := 0
		for _, link := range links {
			if tracker.Add(link) {
				fresh++
			}
		}
		d.logger.Debug("search page parsed",
			zap.Int("rating", rating),
			zap.Int("page", page),
			zap.Int("links", len(links)),
			zap.Int("new", fresh))

		// Duplicate or stale pages must not paginate forever: two full pages
		// without a single new identifier terminate the partition.
		if fresh == 0 {
			stalePages++
			if stalePages >= 2 {
				break
			}
		} else {
			stalePages = 0
		}
	}
	return loaded, nil
}

// searchURL builds one search results URL for the given rating partition and
// result offset.
func (d *Discoverer) searchURL(params models.SearchParams, rating, offset int) string {
	q := url.Values{}
	q.Set("ss", params.Location)
	q.Set("checkin", params.CheckIn.Format("2006-01-02"))
	q.Set("checkout", params.CheckOut.Format("2006-01-02"))
	q.Set("group_adults", fmt.Sprintf("%d", params.Adults))
	q.Set("no_rooms", "1")
	q.Set("group_children", "0")
	q.Set("lang", "en-gb")
	if rating > 0 {
		q.Set("nflt", fmt.Sprintf("class=%d", rating))
	}
	if offset > 0 {
		q.Set("offset", fmt.Sprintf("%d", offset))
	}
	return d.baseURL + "/searchresults.en-gb.html?" + q.Encode()
}

// extractListingLinks pulls the detail page links out of one search results
// page and normalizes them: absolute, no query, no fragment.
func extractListingLinks(html, baseURL string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var links []string
	doc.Find(PropertyCardSelector).Each(func(_ int, card *goquery.Selection) {
		href, exists := card.Find(CardLinkSelector).First().Attr("href")
		if !exists {
			return
		}
		link := normalizeListingURL(href, baseURL)
		if link != "" {
			links = append(links, link)
		}
	})
	return links, nil
}

func normalizeListingURL(href, baseURL string) string {
	if i := strings.IndexAny(href, "?#"); i >= 0 {
		href = href[:i]
	}
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "/") {
		href = baseURL + href
	}
	if !strings.Contains(href, "/hotel/") {
		return ""
	}
	return href
}
