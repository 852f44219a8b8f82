package widget

import "github.com/Togather-Foundation/geowidget/internal/geocoding"

// TileAttribution is shown on every map, per the OSM tile usage policy.
const TileAttribution = `&copy; <a href="http://osm.org/copyright">OpenStreetMap</a> contributors`

// NoticeLevel grades a transient message shown over the map.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
)

// MapOptions describes the initial map view.
type MapOptions struct {
	Center      geocoding.Coordinate `json:"center"`
	Zoom        int                  `json:"zoom"`
	TileURL     string               `json:"tile_url"`
	Attribution string               `json:"attribution"`
}

// LocateOptions configures the "locate me" control.
type LocateOptions struct {
	FlyTo bool `json:"fly_to"`
}

// Marker is the single coordinate marker of a map.
type Marker struct {
	Position  geocoding.Coordinate `json:"position"`
	Popup     string               `json:"popup"`
	Draggable bool                 `json:"draggable"`
}

// View is the current map viewport as last reported by the client.
type View struct {
	Center geocoding.Coordinate `json:"center"`
	Zoom   int                  `json:"zoom"`
}

// Surface is the map capability of one widget instance. Implementations
// render the calls in a map library; the controller never talks to one
// directly.
type Surface interface {
	// Initialized reports whether Render has already run for this instance.
	Initialized() bool
	Render(opts MapOptions)
	AddLocateControl(opts LocateOptions)
	PlaceMarker(m Marker)
	RemoveMarker()
	FitBounds(bbox geocoding.BoundingBox)
	PanTo(c geocoding.Coordinate)
	// Circle draws an accuracy circle of radius meters.
	Circle(center geocoding.Coordinate, radius float64)
	Suggestions(query string, results []geocoding.GeoResult)
	Notice(level NoticeLevel, message string)
	View() View
}
