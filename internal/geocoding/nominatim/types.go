package nominatim

// SearchParams contains the parameters of a forward geocoding request.
// Zero values are omitted from the request so the provider defaults apply.
type SearchParams struct {
	Query string
	// CountryCodes limits results to specific countries (comma-separated ISO 3166-1 alpha-2 codes, e.g. "de,at")
	CountryCodes string
	// Viewbox is passed through verbatim as "left,top,right,bottom"
	Viewbox string
	// Bounded restricts results to the viewbox instead of merely biasing them
	Bounded bool
	// Limit caps the number of results (0 leaves the provider default, max: 50)
	Limit int
}

// ReverseParams contains the parameters of a reverse geocoding request.
type ReverseParams struct {
	Lat float64
	Lon float64
	// Zoom is the Nominatim detail level (0-18), not the map zoom
	Zoom           int
	ExtraTags      bool
	NameDetails    bool
	AddressDetails bool
}

// Place is a single result of the search and reverse endpoints (format=jsonv2).
type Place struct {
	PlaceID     int64   `json:"place_id"`
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	DisplayName string  `json:"display_name"`
	Name        string  `json:"name,omitempty"`
	Type        string  `json:"type"`
	Category    string  `json:"category,omitempty"`
	Importance  float64 `json:"importance,omitempty"`
	OSMID       int64   `json:"osm_id"`
	OSMType     string  `json:"osm_type"`
	// BoundingBox is [south, north, west, east] as decimal strings
	BoundingBox []string `json:"boundingbox,omitempty"`
	// Address holds the structured address parts keyed by OSM component name
	// (road, house_number, postcode, city, town, state, country_code, ...)
	Address   map[string]string `json:"address,omitempty"`
	ExtraTags map[string]string `json:"extratags,omitempty"`
}

// reverseResponse wraps the reverse endpoint payload, which reports "no match"
// as a 200 response carrying an error message.
type reverseResponse struct {
	Place
	Error string `json:"error,omitempty"`
}
