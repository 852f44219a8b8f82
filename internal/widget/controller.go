package widget

import (
	"context"
	"errors"
	"time"

	"github.com/Togather-Foundation/geowidget/internal/form"
	"github.com/Togather-Foundation/geowidget/internal/geocoding"
	"github.com/Togather-Foundation/geowidget/internal/metrics"
	"github.com/rs/zerolog"
)

// DefaultSuppressClickFor is how long map clicks are ignored after a search
// suggestion was picked, so the click that closes the suggestion list is not
// taken as a reverse lookup request.
const DefaultSuppressClickFor = 500 * time.Millisecond

// Notices shown when the geocoding provider fails. Empty results are silent.
const (
	noticeRateLimited = "The geocoding service is busy. Please try again in a moment."
	noticeUnavailable = "The geocoding service could not be reached. The map still works; try again later."
)

// Geocoder is the lookup capability the controller needs.
// *geocoding.Dispatcher implements it.
type Geocoder interface {
	Search(ctx context.Context, query string) ([]geocoding.GeoResult, error)
	Reverse(ctx context.Context, coord geocoding.Coordinate, zoom int) ([]geocoding.GeoResult, error)
}

// Scheduler runs lookups off the caller's goroutine. The completion returned
// by work must be run on the goroutine that owns the controller.
type Scheduler interface {
	Schedule(work func() (complete func()))
}

// InlineScheduler runs work and its completion synchronously.
type InlineScheduler struct{}

func (InlineScheduler) Schedule(work func() func()) {
	if complete := work(); complete != nil {
		complete()
	}
}

// sequence tracks the latest issued lookup of one kind. Issuing a new lookup
// cancels the previous one; completions of older lookups are discarded.
type sequence struct {
	n      uint64
	cancel context.CancelFunc
}

func (s *sequence) next(parent context.Context) (uint64, context.Context) {
	s.stop()
	ctx, cancel := context.WithCancel(parent)
	s.n++
	s.cancel = cancel
	return s.n, ctx
}

// invalidate discards whatever is in flight without issuing a new lookup.
func (s *sequence) invalidate() {
	s.stop()
	s.n++
}

func (s *sequence) stop() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *sequence) current(n uint64) bool {
	return s.n == n
}

// Controller owns the map and marker of one widget instance. Its methods
// must be called from a single goroutine (the session event loop); lookups
// run through the Scheduler and complete on that same goroutine.
type Controller struct {
	cfg       WidgetConfig
	surface   Surface
	geocoder  Geocoder
	region    form.Region
	update    UpdateFunc
	scheduler Scheduler
	selector  geocoding.Selector
	now       func() time.Time
	window    time.Duration
	logger    zerolog.Logger
	ctx       context.Context

	marker      *Marker
	result      geocoding.GeoResult
	suggestions []geocoding.GeoResult

	// click suppression, per instance
	searching           bool
	suppressClicksUntil time.Time

	reverseSeq sequence
	searchSeq  sequence
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithSuppressClickFor sets the post-selection click suppression window.
func WithSuppressClickFor(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.window = d
		}
	}
}

// WithSelector sets the reverse lookup result selection. Default FirstResult.
func WithSelector(s geocoding.Selector) Option {
	return func(c *Controller) {
		if s != nil {
			c.selector = s
		}
	}
}

// WithScheduler sets how lookups are run. Default InlineScheduler.
func WithScheduler(s Scheduler) Option {
	return func(c *Controller) { c.scheduler = s }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) { c.logger = l.With().Str("instance", c.cfg.InstanceID).Logger() }
}

// NewController creates a controller. ctx bounds every lookup it issues.
func NewController(ctx context.Context, cfg WidgetConfig, surface Surface, geocoder Geocoder, region form.Region, update UpdateFunc, opts ...Option) *Controller {
	c := &Controller{
		cfg:       cfg,
		surface:   surface,
		geocoder:  geocoder,
		region:    region,
		update:    update,
		scheduler: InlineScheduler{},
		selector:  geocoding.FirstResult,
		now:       time.Now,
		window:    DefaultSuppressClickFor,
		logger:    zerolog.Nop(),
		ctx:       ctx,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the instance configuration.
func (c *Controller) Config() WidgetConfig {
	return c.cfg
}

// Marker returns the live marker, if any.
func (c *Controller) Marker() (Marker, bool) {
	if c.marker == nil {
		return Marker{}, false
	}
	return *c.marker, true
}

// Initialize renders the map with its locate control. It does nothing when
// the surface is already initialized. A stored coordinate is reverse
// geocoded so the marker and popup reflect it.
func (c *Controller) Initialize() {
	if c.surface.Initialized() {
		c.logger.Debug().Msg("surface already initialized, skipping")
		return
	}

	c.surface.Render(MapOptions{
		Center:      c.cfg.Center(),
		Zoom:        c.cfg.Zoom,
		TileURL:     c.cfg.TileServerURL,
		Attribution: TileAttribution,
	})
	c.surface.AddLocateControl(LocateOptions{FlyTo: true})

	if c.cfg.Stored != nil {
		c.reverse(*c.cfg.Stored)
	}
}

// SetMarker replaces the marker with one for result. The marker sits at
// explicit when given, else at the result coordinate; the map pans to the
// result coordinate either way.
func (c *Controller) SetMarker(result geocoding.GeoResult, explicit *geocoding.Coordinate) {
	if c.marker != nil {
		c.surface.RemoveMarker()
		c.marker = nil
	}

	for _, role := range form.TextRoles {
		c.region.SetAddressInput(role, "")
	}

	pos := result.Coordinate
	if explicit != nil {
		pos = *explicit
	}

	m := Marker{Position: pos, Popup: result.PopupContent(), Draggable: true}
	c.surface.PlaceMarker(m)
	c.marker = &m
	c.result = result

	c.surface.PanTo(result.Coordinate)
	c.update(m, c.surface.View(), result)
}

// Restore adopts a marker the surface already shows at pos, as after a
// reconnect. Nothing is drawn and the hidden inputs are left alone.
func (c *Controller) Restore(pos geocoding.Coordinate) {
	if !pos.Valid() {
		return
	}
	c.marker = &Marker{Position: pos, Draggable: true}
	c.result = geocoding.GeoResult{Coordinate: pos}
}

// DragEnd handles the marker being dropped at coord. Hidden inputs are
// updated before the reverse lookup is issued. Only a marker can be dragged,
// so an untracked one is adopted at coord.
func (c *Controller) DragEnd(coord geocoding.Coordinate) {
	metrics.WidgetEventsTotal.WithLabelValues("dragend").Inc()
	if !coord.Valid() {
		return
	}
	if c.marker == nil {
		c.Restore(coord)
	}

	c.marker.Position = coord
	c.update(*c.marker, c.surface.View(), c.result)
	c.reverse(coord)
}

// Click handles a map click. It is ignored while a search is open and for
// the suppression window after a suggestion was picked.
func (c *Controller) Click(coord geocoding.Coordinate) {
	metrics.WidgetEventsTotal.WithLabelValues("click").Inc()
	if c.ClicksSuppressed() {
		metrics.WidgetClicksSuppressedTotal.Inc()
		return
	}
	c.reverse(coord)
}

// ClicksSuppressed reports whether a map click would be ignored now.
func (c *Controller) ClicksSuppressed() bool {
	return c.searching || c.now().Before(c.suppressClicksUntil)
}

// LocationFound handles the locate control finding the user. accuracy is in
// meters; the circle drawn has half that radius.
func (c *Controller) LocationFound(coord geocoding.Coordinate, accuracy float64) {
	metrics.WidgetEventsTotal.WithLabelValues("locationfound").Inc()
	c.surface.Circle(coord, accuracy/2)
	c.reverse(coord)
}

// StartSearch marks the search box as in use. Map clicks are ignored until
// the search ends.
func (c *Controller) StartSearch() {
	c.searching = true
}

// Search looks up query and shows the results as suggestions.
func (c *Controller) Search(query string) {
	metrics.WidgetEventsTotal.WithLabelValues("search").Inc()
	c.StartSearch()

	seq, ctx := c.searchSeq.next(c.ctx)
	c.scheduler.Schedule(func() func() {
		results, err := c.geocoder.Search(ctx, query)
		return func() {
			if !c.searchSeq.current(seq) {
				metrics.WidgetStaleResultsTotal.Inc()
				return
			}
			c.searchSeq.stop()
			if err != nil && !errors.Is(err, geocoding.ErrNoResults) {
				c.fail("forward", err)
				return
			}
			c.suggestions = results
			c.surface.Suggestions(query, results)
		}
	})
}

// SelectSuggestion applies the suggestion at index: the view fits its
// bounding box and the marker moves to its center. Clicks stay suppressed
// for the suppression window.
func (c *Controller) SelectSuggestion(index int) {
	metrics.WidgetEventsTotal.WithLabelValues("select").Inc()
	if index < 0 || index >= len(c.suggestions) {
		return
	}
	result := c.suggestions[index]

	// A reverse lookup still in flight must not move the marker away.
	c.reverseSeq.invalidate()

	if result.BoundingBox != nil {
		c.surface.FitBounds(*result.BoundingBox)
	}
	c.SetMarker(result, nil)
	c.endSearch()
}

// CancelSearch handles the suggestion list closing without a pick.
func (c *Controller) CancelSearch() {
	if !c.searching {
		return
	}
	c.searchSeq.invalidate()
	c.endSearch()
}

func (c *Controller) endSearch() {
	c.searching = false
	c.suppressClicksUntil = c.now().Add(c.window)
}

// Close cancels lookups in flight.
func (c *Controller) Close() {
	c.reverseSeq.invalidate()
	c.searchSeq.invalidate()
}

func (c *Controller) reverse(coord geocoding.Coordinate) {
	if !coord.Valid() {
		return
	}

	zoom := c.surface.View().Zoom
	seq, ctx := c.reverseSeq.next(c.ctx)
	c.scheduler.Schedule(func() func() {
		results, err := c.geocoder.Reverse(ctx, coord, zoom)
		return func() {
			if !c.reverseSeq.current(seq) {
				metrics.WidgetStaleResultsTotal.Inc()
				return
			}
			c.reverseSeq.stop()
			if err != nil {
				c.fail("reverse", err)
				return
			}
			result, ok := c.selector(coord, results)
			if !ok {
				c.logger.Debug().Stringer("coordinate", coord).Msg("no acceptable reverse geocoding result")
				return
			}
			c.SetMarker(result, &coord)
		}
	})
}

// fail leaves the marker untouched. Provider failures surface as a notice.
func (c *Controller) fail(kind string, err error) {
	switch {
	case errors.Is(err, geocoding.ErrNoResults),
		errors.Is(err, context.Canceled),
		errors.Is(err, geocoding.ErrInvalidRequest):
		c.logger.Debug().Err(err).Str("type", kind).Msg("geocoding produced nothing")
	case errors.Is(err, geocoding.ErrRateLimited):
		c.logger.Warn().Err(err).Str("type", kind).Msg("geocoding rate limited")
		c.surface.Notice(NoticeWarning, noticeRateLimited)
	default:
		c.logger.Warn().Err(err).Str("type", kind).Msg("geocoding failed")
		c.surface.Notice(NoticeWarning, noticeUnavailable)
	}
}
