package widget

import (
	"context"

	"github.com/Togather-Foundation/geowidget/internal/geocoding"
)

// fakeSurface records every call as an op name and keeps the marker count.
type fakeSurface struct {
	initialized bool
	renders     int
	controls    int
	markers     []Marker
	ops         []string
	bounds      []geocoding.BoundingBox
	pans        []geocoding.Coordinate
	circles     []float64
	suggestions [][]geocoding.GeoResult
	notices     []string
	view        View
}

func (s *fakeSurface) Initialized() bool { return s.initialized }

func (s *fakeSurface) Render(opts MapOptions) {
	s.initialized = true
	s.renders++
	s.view = View{Center: opts.Center, Zoom: opts.Zoom}
	s.ops = append(s.ops, "render")
}

func (s *fakeSurface) AddLocateControl(LocateOptions) {
	s.controls++
	s.ops = append(s.ops, "locate_control")
}

func (s *fakeSurface) PlaceMarker(m Marker) {
	s.markers = append(s.markers, m)
	s.ops = append(s.ops, "place_marker")
}

func (s *fakeSurface) RemoveMarker() {
	if len(s.markers) > 0 {
		s.markers = s.markers[:len(s.markers)-1]
	}
	s.ops = append(s.ops, "remove_marker")
}

func (s *fakeSurface) FitBounds(b geocoding.BoundingBox) {
	s.bounds = append(s.bounds, b)
	s.ops = append(s.ops, "fit_bounds")
}

func (s *fakeSurface) PanTo(c geocoding.Coordinate) {
	s.pans = append(s.pans, c)
	s.view.Center = c
	s.ops = append(s.ops, "pan_to")
}

func (s *fakeSurface) Circle(_ geocoding.Coordinate, radius float64) {
	s.circles = append(s.circles, radius)
	s.ops = append(s.ops, "circle")
}

func (s *fakeSurface) Suggestions(_ string, results []geocoding.GeoResult) {
	s.suggestions = append(s.suggestions, results)
	s.ops = append(s.ops, "suggestions")
}

func (s *fakeSurface) Notice(_ NoticeLevel, message string) {
	s.notices = append(s.notices, message)
	s.ops = append(s.ops, "notice")
}

func (s *fakeSurface) View() View { return s.view }

type reverseCall struct {
	coord geocoding.Coordinate
	zoom  int
	ctx   context.Context
}

type fakeGeocoder struct {
	searchResults  []geocoding.GeoResult
	reverseResults []geocoding.GeoResult
	err            error
	searches       []string
	reverses       []reverseCall
	onReverse      func()
}

func (g *fakeGeocoder) Search(_ context.Context, query string) ([]geocoding.GeoResult, error) {
	g.searches = append(g.searches, query)
	if g.err != nil {
		return nil, g.err
	}
	if len(g.searchResults) == 0 {
		return nil, geocoding.ErrNoResults
	}
	return g.searchResults, nil
}

func (g *fakeGeocoder) Reverse(ctx context.Context, coord geocoding.Coordinate, zoom int) ([]geocoding.GeoResult, error) {
	g.reverses = append(g.reverses, reverseCall{coord: coord, zoom: zoom, ctx: ctx})
	if g.onReverse != nil {
		g.onReverse()
	}
	if g.err != nil {
		return nil, g.err
	}
	if len(g.reverseResults) == 0 {
		return nil, geocoding.ErrNoResults
	}
	return g.reverseResults, nil
}

// queueScheduler runs work immediately but holds completions until flushed,
// so tests control completion order.
type queueScheduler struct {
	pending []func()
}

func (q *queueScheduler) Schedule(work func() func()) {
	if complete := work(); complete != nil {
		q.pending = append(q.pending, complete)
	}
}

func (q *queueScheduler) complete(i int) {
	fn := q.pending[i]
	q.pending[i] = func() {}
	fn()
}
