// Package session carries widget events from the browser to the controllers
// of a rendered form and their commands back, over one WebSocket per form.
package session

import (
	"github.com/Togather-Foundation/geowidget/internal/geocoding"
	"github.com/Togather-Foundation/geowidget/internal/widget"
)

// EventType names an inbound browser event.
type EventType string

const (
	EventInit              EventType = "init"
	EventClick             EventType = "click"
	EventDragEnd           EventType = "dragend"
	EventSearch            EventType = "search"
	EventSearchClosed      EventType = "search_closed"
	EventSelect            EventType = "select"
	EventLocationFound     EventType = "locationfound"
	EventView              EventType = "view"
	EventAddressRerendered EventType = "address_rerendered"
)

// Event is one message from the browser. Instance names the widget it is
// for; address_rerendered is form-wide and carries no instance.
type Event struct {
	Type     EventType `json:"type"`
	Instance string    `json:"instance,omitempty"`

	Lat      float64 `json:"lat,omitempty"`
	Lng      float64 `json:"lng,omitempty"`
	Zoom     int     `json:"zoom,omitempty"`
	Accuracy float64 `json:"accuracy,omitempty"`
	Query    string  `json:"query,omitempty"`
	Index    int     `json:"index,omitempty"`
	Country  string  `json:"country,omitempty"`

	// Mounted is set on init when the browser already shows this map,
	// e.g. after a reconnect. Marker is the position of the marker it shows.
	Mounted bool                  `json:"mounted,omitempty"`
	Marker  *geocoding.Coordinate `json:"marker,omitempty"`
}

// Coordinate returns the event position.
func (e Event) Coordinate() geocoding.Coordinate {
	return geocoding.Coordinate{Lat: e.Lat, Lng: e.Lng}
}

// CommandType names an outbound command.
type CommandType string

const (
	CommandRender        CommandType = "render"
	CommandLocateControl CommandType = "locate_control"
	CommandPlaceMarker   CommandType = "place_marker"
	CommandRemoveMarker  CommandType = "remove_marker"
	CommandFitBounds     CommandType = "fit_bounds"
	CommandPanTo         CommandType = "pan_to"
	CommandCircle        CommandType = "circle"
	CommandSetValue      CommandType = "set_value"
	CommandSelectOption  CommandType = "select_option"
	CommandSuggestions   CommandType = "suggestions"
	CommandNotice        CommandType = "notice"
)

// Command is one message to the browser. Only the fields of its type are set.
type Command struct {
	Type     CommandType `json:"type"`
	Instance string      `json:"instance,omitempty"`

	Map     *widget.MapOptions     `json:"map,omitempty"`
	Locate  *widget.LocateOptions  `json:"locate,omitempty"`
	Marker  *widget.Marker         `json:"marker,omitempty"`
	Bounds  *geocoding.BoundingBox `json:"bounds,omitempty"`
	Center  *geocoding.Coordinate  `json:"center,omitempty"`
	Radius  float64                `json:"radius,omitempty"`
	Query   string                 `json:"query,omitempty"`
	Results []Suggestion           `json:"results,omitempty"`

	Selector string `json:"selector,omitempty"`
	Value    string `json:"value,omitempty"`
	Trigger  bool   `json:"trigger,omitempty"`

	Level   widget.NoticeLevel `json:"level,omitempty"`
	Message string             `json:"message,omitempty"`
}

// Suggestion is a search result as listed under the search box. The browser
// picks one by index.
type Suggestion struct {
	Index int                  `json:"index"`
	Label string               `json:"label"`
	Point geocoding.Coordinate `json:"point"`
}

func suggestions(results []geocoding.GeoResult) []Suggestion {
	out := make([]Suggestion, len(results))
	for i, r := range results {
		out[i] = Suggestion{Index: i, Label: r.Label, Point: r.Coordinate}
	}
	return out
}
