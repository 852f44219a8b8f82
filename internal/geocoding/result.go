package geocoding

import (
	"fmt"
	"math"
	"strconv"
)

// Coordinate is a WGS84 position in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the coordinate lies within WGS84 bounds.
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180 &&
		!math.IsNaN(c.Lat) && !math.IsNaN(c.Lng)
}

func (c Coordinate) String() string {
	return strconv.FormatFloat(c.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lng, 'f', -1, 64)
}

// BoundingBox is the spatial extent of a result.
type BoundingBox struct {
	South float64 `json:"south"`
	North float64 `json:"north"`
	West  float64 `json:"west"`
	East  float64 `json:"east"`
}

// Corners returns the south-west and north-east corners, the order map
// libraries expect for fitBounds.
func (b BoundingBox) Corners() [2]Coordinate {
	return [2]Coordinate{{Lat: b.South, Lng: b.West}, {Lat: b.North, Lng: b.East}}
}

// GeoResult is the normalized result of a forward search or a reverse lookup.
// Downstream code never sees provider payloads.
type GeoResult struct {
	Coordinate  Coordinate   `json:"coordinate"`
	BoundingBox *BoundingBox `json:"bbox,omitempty"`
	// Label is the plain-text name of the result.
	Label string `json:"label"`
	// HTML is an optional sanitized multi-line rendering of the address.
	HTML    string            `json:"html,omitempty"`
	Address map[string]string `json:"address,omitempty"`
}

// PopupContent is what the marker popup shows: the HTML rendering when
// present, else the label.
func (r GeoResult) PopupContent() string {
	if r.HTML != "" {
		return r.HTML
	}
	return r.Label
}

const earthRadiusMeters = 6371008.8

// Distance returns the great-circle distance between a and b in meters.
func Distance(a, b Coordinate) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := lat2 - lat1
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

func parseBoundingBox(values []string) (*BoundingBox, error) {
	if len(values) == 0 {
		return nil, nil
	}
	if len(values) != 4 {
		return nil, fmt.Errorf("bounding box has %d values, want 4", len(values))
	}

	var parsed [4]float64
	for i, v := range values {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid bounding box value %q: %w", v, err)
		}
		parsed[i] = f
	}

	return &BoundingBox{South: parsed[0], North: parsed[1], West: parsed[2], East: parsed[3]}, nil
}
