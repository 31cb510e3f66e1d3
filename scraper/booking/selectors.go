package booking

// CSS selectors used across the scraper.
// Centralising them makes future updates trivial: the target site renames
// classes often, so most fields carry a fallback chain.
const (
	// Search results page
	PropertyCardSelector = `div[data-testid="property-card"]`
	CardLinkSelector     = `a[data-testid="title-link"], a[href*="/hotel/"]`
	ResultHeaderSelector = `h1[aria-live="assertive"]`

	// Detail page: the name heading doubles as the page-ready selector
	HotelNameSelector = `h2[data-testid="title"], h2.pp-header__title`
	RoomNameSelector  = `span.hprt-roomtype-icon-link`
	AddressSelector   = `span[data-testid="address"], span.hp_address_subtitle`
	LatLngSelector    = `[data-atlas-latlng]`
	LatLngAttr        = "data-atlas-latlng"

	RatingScoreSelector = `div[data-testid="review-score-component"] div.f13857cc8c, div.f13857cc8c.e008572b71`
	RatingCountSelector = `div[data-testid="review-score-component"] div.b290e5dfa6, div.b290e5dfa6.a5cc9f664c`

	PriceSelector        = `span.prco-valign-middle-helper, span[data-testid="price-and-discounted-price"]`
	PropertyTypeSelector = `span.bui-badge.bui-badge--outline.room_highlight_badge--without_borders`

	AmenityBadgeSelector    = `div.hprt-facilities-block span.bui-badge--outline`
	AmenityFacilitySelector = `ul.hprt-facilities-others span.hprt-facilities-facility`

	OccupancySelector  = `div.hprt-occupancy-occupancy-info span.bui-u-sr-only, span[data-testid="occupancy-config"]`
	RoomConfigSelector = `div.hprt-roomtype-bed, div[data-testid="room-config"]`
)
