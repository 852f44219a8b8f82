package widget

import (
	"strconv"
	"strings"

	"github.com/Togather-Foundation/geowidget/internal/geocoding"
	"github.com/Togather-Foundation/geowidget/internal/sanitize"
)

// BaseInstanceID is the id of the first map on a form.
const BaseInstanceID = "geolocation-nominatim-map"

// IDAllocator issues instance ids unique within one form render:
// geolocation-nominatim-map, geolocation-nominatim-map--2, ...
// It is not safe for concurrent use; allocate one per render.
type IDAllocator struct {
	seen map[string]int
}

// NewIDAllocator creates an allocator for one form render.
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{seen: make(map[string]int)}
}

// Next returns a fresh id derived from base (BaseInstanceID when empty).
func (a *IDAllocator) Next(base string) string {
	if base == "" {
		base = BaseInstanceID
	}
	a.seen[base]++
	if n := a.seen[base]; n > 1 {
		return base + "--" + strconv.Itoa(n)
	}
	return base
}

// StoredValue is a persisted coordinate field value as it comes back from
// storage or a submitted form: untrusted text.
type StoredValue struct {
	Lat string `json:"lat"`
	Lng string `json:"lng"`
}

// ParseStoredCoordinate returns the stored coordinate, or false when either
// part is empty, non-numeric or out of range.
func ParseStoredCoordinate(v StoredValue) (geocoding.Coordinate, bool) {
	lat, err := strconv.ParseFloat(strings.TrimSpace(v.Lat), 64)
	if err != nil {
		return geocoding.Coordinate{}, false
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(v.Lng), 64)
	if err != nil {
		return geocoding.Coordinate{}, false
	}
	c := geocoding.Coordinate{Lat: lat, Lng: lng}
	if !c.Valid() {
		return geocoding.Coordinate{}, false
	}
	return c, true
}

// WidgetConfig describes one rendered map instance. It is built once per
// form render and not modified afterwards.
type WidgetConfig struct {
	InstanceID      string                `json:"id"`
	Zoom            int                   `json:"zoom"`
	CenterLat       float64               `json:"centerLat"`
	CenterLng       float64               `json:"centerLng"`
	Stored          *geocoding.Coordinate `json:"stored,omitempty"`
	Label           string                `json:"label"`
	TileServerURL   string                `json:"tileServerUrl"`
	ServiceURL      string                `json:"serviceUrl"`
	PopulateAddress bool                  `json:"setAddressField"`
	CountryFilter   string                `json:"limitCountryCodes"`
	ViewboxFilter   string                `json:"limitViewbox"`
}

// Center is the initial map center.
func (c WidgetConfig) Center() geocoding.Coordinate {
	return geocoding.Coordinate{Lat: c.CenterLat, Lng: c.CenterLng}
}

// Filters are the forward-search constraints of this instance.
func (c WidgetConfig) Filters() geocoding.Filters {
	return geocoding.Filters{CountryCodes: c.CountryFilter, Viewbox: c.ViewboxFilter}
}

// Resolve combines settings with the stored field value. The map centers on
// the stored coordinate when there is one, else on the configured center.
func Resolve(settings Settings, stored StoredValue, label string, ids *IDAllocator) WidgetConfig {
	cfg := WidgetConfig{
		InstanceID:      ids.Next(BaseInstanceID),
		Zoom:            settings.Zoom,
		CenterLat:       settings.CenterLat,
		CenterLng:       settings.CenterLng,
		Label:           sanitize.Text(label),
		TileServerURL:   settings.TileServerURL,
		ServiceURL:      settings.ServiceURL,
		PopulateAddress: settings.SetAddressField,
		CountryFilter:   strings.TrimSpace(settings.LimitCountryCodes),
		ViewboxFilter:   strings.TrimSpace(settings.LimitViewbox),
	}

	if c, ok := ParseStoredCoordinate(stored); ok {
		cfg.Stored = &c
		cfg.CenterLat = c.Lat
		cfg.CenterLng = c.Lng
	}

	return cfg
}
