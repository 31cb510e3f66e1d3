package booking

import (
	"context"
	"regexp"
	"strings"
	"time"

	"booking-pipeline/browser"
	"booking-pipeline/models"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// Extractor turns one listing page into a RawRecord. Every field is read
// independently, so a renamed or missing element costs that field, not the
// record.
type Extractor struct {
	src    browser.DocumentSource
	logger *zap.Logger
}

// NewExtractor creates an Extractor reading pages through src.
func NewExtractor(src browser.DocumentSource, logger *zap.Logger) *Extractor {
	return &Extractor{src: src, logger: logger}
}

// Extract fetches the listing page at url and returns its raw record. Only a
// fetch failure is an error; extraction itself degrades per field.
func (e *Extractor) Extract(ctx context.Context, url string) (*models.RawRecord, error) {
	html, err := e.src.Load(ctx, url, HotelNameSelector)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	rec := e.ExtractDocument(doc, url)
	return rec, nil
}

// ExtractDocument extracts a raw record from an already parsed document.
// Split out so tests can feed fixture HTML without a browser.
func (e *Extractor) ExtractDocument(doc *goquery.Document, url string) *models.RawRecord {
	rec := &models.RawRecord{
		URL:       url,
		ScrapedAt: time.Now().UTC(),
	}

	if id := ExternalIDFromURL(url); id != "" {
		rec.ExternalID = models.Present(id)
	} else {
		rec.ExternalID = models.Absent[string]()
	}

	rec.Name = e.textField(doc, HotelNameSelector, "name")
	rec.RoomName = e.textField(doc, RoomNameSelector, "room_name")
	rec.Address = e.textField(doc, AddressSelector, "address")
	rec.PropertyType = e.textField(doc, PropertyTypeSelector, "property_type")

	rec.RatingScore = e.floatField(doc, RatingScoreSelector, "rating_score")
	rec.RatingCount = e.intField(doc, RatingCountSelector, "rating_count")
	rec.Price, rec.Currency = e.priceField(doc)
	rec.Latitude, rec.Longitude = e.latLngField(doc)
	rec.RoomCount = e.regexIntField(doc, RoomConfigSelector, bedroomRegex, "room_count")
	rec.MaxGuests = e.regexIntField(doc, OccupancySelector, maxGuestsRegex, "max_guests")
	rec.Amenities = e.amenitiesField(doc)

	return rec
}

func (e *Extractor) textField(doc *goquery.Document, selector, name string) models.Field[string] {
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		e.logger.Debug("field not found", zap.String("field", name))
		return models.Absent[string]()
	}
	text := strings.TrimSpace(sel.Text())
	if text == "" {
		return models.Absent[string]()
	}
	return models.Present(text)
}

func (e *Extractor) floatField(doc *goquery.Document, selector, name string) models.Field[float64] {
	raw := e.textField(doc, selector, name)
	if !raw.Ok() {
		return models.Absent[float64]()
	}
	v, err := ParseLocalizedFloat(raw.Value)
	if err != nil {
		e.logger.Debug("field unparseable", zap.String("field", name), zap.String("raw", raw.Value))
		return models.Malformed[float64]()
	}
	return models.Present(v)
}

func (e *Extractor) intField(doc *goquery.Document, selector, name string) models.Field[int] {
	raw := e.textField(doc, selector, name)
	if !raw.Ok() {
		return models.Absent[int]()
	}
	v, err := ParseLocalizedInt(raw.Value)
	if err != nil {
		e.logger.Debug("field unparseable", zap.String("field", name), zap.String("raw", raw.Value))
		return models.Malformed[int]()
	}
	return models.Present(v)
}

func (e *Extractor) priceField(doc *goquery.Document) (models.Field[float64], models.Field[string]) {
	raw := e.textField(doc, PriceSelector, "price")
	if !raw.Ok() {
		return models.Absent[float64](), models.Absent[string]()
	}

	currency := models.Absent[string]()
	if code, ok := CurrencyOf(raw.Value); ok {
		currency = models.Present(code)
	}

	v, err := ParseLocalizedFloat(raw.Value)
	if err != nil {
		e.logger.Debug("price unparseable", zap.String("raw", raw.Value))
		return models.Malformed[float64](), currency
	}
	return models.Present(v), currency
}

func (e *Extractor) latLngField(doc *goquery.Document) (models.Field[float64], models.Field[float64]) {
	attr, exists := doc.Find(LatLngSelector).First().Attr(LatLngAttr)
	if !exists {
		return models.Absent[float64](), models.Absent[float64]()
	}
	lat, lng, err := ParseLatLng(attr)
	if err != nil {
		e.logger.Debug("coordinates unparseable", zap.String("raw", attr))
		return models.Malformed[float64](), models.Malformed[float64]()
	}
	return models.Present(lat), models.Present(lng)
}

func (e *Extractor) regexIntField(doc *goquery.Document, selector string, re *regexp.Regexp, name string) models.Field[int] {
	found := models.Absent[int]()
	doc.Find(selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		m := re.FindStringSubmatch(sel.Text())
		if m == nil {
			return true
		}
		v, err := ParseLocalizedInt(m[1])
		if err != nil {
			found = models.Malformed[int]()
			return true
		}
		found = models.Present(v)
		return false
	})
	if found.State == models.FieldAbsent {
		e.logger.Debug("field not found", zap.String("field", name))
	}
	return found
}

// amenitiesField unions the highlight badges with the facilities list. An
// empty page section means "absent", not "no amenities": the distinction
// keeps a transient layout change from wiping amenity links.
func (e *Extractor) amenitiesField(doc *goquery.Document) models.Field[[]string] {
	var labels []string
	seen := make(map[string]struct{})
	collect := func(_ int, sel *goquery.Selection) {
		label := strings.TrimSpace(sel.Text())
		if label == "" {
			return
		}
		if _, dup := seen[label]; dup {
			return
		}
		seen[label] = struct{}{}
		labels = append(labels, label)
	}
	doc.Find(AmenityBadgeSelector).Each(collect)
	doc.Find(AmenityFacilitySelector).Each(collect)

	if len(labels) == 0 {
		return models.Absent[[]string]()
	}
	return models.Present(labels)
}
