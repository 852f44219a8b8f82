package session

import (
	"github.com/Togather-Foundation/geowidget/internal/geocoding"
	"github.com/Togather-Foundation/geowidget/internal/widget"
)

// remoteSurface renders one widget instance in the browser by sending
// commands. It keeps the viewport the browser last reported.
type remoteSurface struct {
	instance    string
	send        func(Command)
	initialized bool
	view        widget.View
}

var _ widget.Surface = (*remoteSurface)(nil)

func newRemoteSurface(instance string, send func(Command)) *remoteSurface {
	return &remoteSurface{instance: instance, send: send}
}

func (s *remoteSurface) cmd(t CommandType) Command {
	return Command{Type: t, Instance: s.instance}
}

func (s *remoteSurface) Initialized() bool { return s.initialized }

// mounted records that the browser already shows the map.
func (s *remoteSurface) mounted(view widget.View) {
	s.initialized = true
	s.view = view
}

func (s *remoteSurface) Render(opts widget.MapOptions) {
	s.initialized = true
	s.view = widget.View{Center: opts.Center, Zoom: opts.Zoom}
	c := s.cmd(CommandRender)
	c.Map = &opts
	s.send(c)
}

func (s *remoteSurface) AddLocateControl(opts widget.LocateOptions) {
	c := s.cmd(CommandLocateControl)
	c.Locate = &opts
	s.send(c)
}

func (s *remoteSurface) PlaceMarker(m widget.Marker) {
	c := s.cmd(CommandPlaceMarker)
	c.Marker = &m
	s.send(c)
}

func (s *remoteSurface) RemoveMarker() {
	s.send(s.cmd(CommandRemoveMarker))
}

func (s *remoteSurface) FitBounds(bbox geocoding.BoundingBox) {
	c := s.cmd(CommandFitBounds)
	c.Bounds = &bbox
	s.send(c)
}

func (s *remoteSurface) PanTo(center geocoding.Coordinate) {
	s.view.Center = center
	c := s.cmd(CommandPanTo)
	c.Center = &center
	s.send(c)
}

func (s *remoteSurface) Circle(center geocoding.Coordinate, radius float64) {
	c := s.cmd(CommandCircle)
	c.Center = &center
	c.Radius = radius
	s.send(c)
}

func (s *remoteSurface) Suggestions(query string, results []geocoding.GeoResult) {
	c := s.cmd(CommandSuggestions)
	c.Query = query
	c.Results = suggestions(results)
	s.send(c)
}

func (s *remoteSurface) Notice(level widget.NoticeLevel, message string) {
	c := s.cmd(CommandNotice)
	c.Level = level
	c.Message = message
	s.send(c)
}

func (s *remoteSurface) View() widget.View { return s.view }

// viewChanged records a viewport reported by the browser.
func (s *remoteSurface) viewChanged(view widget.View) {
	s.view = view
}
