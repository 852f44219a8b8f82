package geocoding

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Togather-Foundation/geowidget/internal/geocoding/nominatim"
	"github.com/Togather-Foundation/geowidget/internal/metrics"
	"github.com/Togather-Foundation/geowidget/internal/sanitize"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "github.com/Togather-Foundation/geowidget/internal/geocoding"

// FilteredSearchLimit is the result cap applied whenever a country or
// viewbox filter is configured.
const FilteredSearchLimit = 2

var (
	// ErrNoResults is returned when the provider found nothing.
	ErrNoResults = errors.New("no geocoding results found")
	// ErrProviderUnavailable wraps network failures and provider 5xx responses.
	ErrProviderUnavailable = errors.New("geocoding provider unavailable")
	// ErrRateLimited is returned when the provider keeps rejecting requests.
	ErrRateLimited = errors.New("geocoding provider rate limited")
	// ErrInvalidRequest is returned for empty queries and out-of-range coordinates.
	ErrInvalidRequest = errors.New("invalid geocoding request")
)

// Provider is the search and reverse capability of a geocoding service.
type Provider interface {
	Search(ctx context.Context, params nominatim.SearchParams) ([]nominatim.Place, error)
	Reverse(ctx context.Context, params nominatim.ReverseParams) ([]nominatim.Place, error)
}

// Filters constrain forward search for one widget instance.
type Filters struct {
	// CountryCodes is a comma-separated list of ISO 3166-1 alpha-2 codes.
	CountryCodes string
	// Viewbox is "left,top,right,bottom".
	Viewbox string
}

// Active reports whether any filter is set.
func (f Filters) Active() bool {
	return strings.TrimSpace(f.CountryCodes) != "" || strings.TrimSpace(f.Viewbox) != ""
}

// Dispatcher runs forward and reverse lookups against a Provider and
// normalizes every answer into GeoResult.
type Dispatcher struct {
	provider Provider
	filters  Filters
	logger   zerolog.Logger
}

// NewDispatcher creates a dispatcher bound to one widget instance's filters.
func NewDispatcher(provider Provider, filters Filters, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		provider: provider,
		filters:  filters,
		logger:   logger.With().Str("component", "geocoding").Logger(),
	}
}

// SearchParams builds the provider request for query. Either filter being set
// turns on countrycodes, viewbox, bounded and the result cap together.
func (d *Dispatcher) SearchParams(query string) nominatim.SearchParams {
	params := nominatim.SearchParams{Query: strings.TrimSpace(query)}
	if d.filters.Active() {
		params.CountryCodes = strings.TrimSpace(d.filters.CountryCodes)
		params.Viewbox = strings.TrimSpace(d.filters.Viewbox)
		params.Bounded = true
		params.Limit = FilteredSearchLimit
	}
	return params
}

// ReverseParams builds the provider request for a reverse lookup at coord
// with the current map zoom.
func ReverseParams(coord Coordinate, zoom int) nominatim.ReverseParams {
	return nominatim.ReverseParams{
		Lat:            coord.Lat,
		Lon:            coord.Lng,
		Zoom:           zoom,
		ExtraTags:      true,
		NameDetails:    false,
		AddressDetails: true,
	}
}

// Search resolves query to results in provider rank order.
func (d *Dispatcher) Search(ctx context.Context, query string) ([]GeoResult, error) {
	params := d.SearchParams(query)
	if params.Query == "" {
		return nil, fmt.Errorf("%w: query cannot be empty", ErrInvalidRequest)
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "geocoding.search")
	defer span.End()
	span.SetAttributes(
		attribute.Bool("geocoding.filtered", d.filters.Active()),
		attribute.Int("geocoding.limit", params.Limit),
	)

	start := time.Now()
	places, err := d.provider.Search(ctx, params)
	metrics.GeocodingLatency.WithLabelValues("forward").Observe(time.Since(start).Seconds())

	results, err := d.finish(ctx, "forward", places, err)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		d.logger.Debug().Err(err).Str("query", params.Query).Msg("forward geocoding failed")
		return nil, err
	}

	span.SetAttributes(attribute.Int("geocoding.results", len(results)))
	return results, nil
}

// Reverse resolves coord to results in provider rank order. zoom is the map
// zoom level, which the provider uses as address detail level.
func (d *Dispatcher) Reverse(ctx context.Context, coord Coordinate, zoom int) ([]GeoResult, error) {
	if !coord.Valid() {
		return nil, fmt.Errorf("%w: coordinate %s out of range", ErrInvalidRequest, coord)
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "geocoding.reverse")
	defer span.End()
	span.SetAttributes(attribute.Int("geocoding.zoom", zoom))

	start := time.Now()
	places, err := d.provider.Reverse(ctx, ReverseParams(coord, zoom))
	metrics.GeocodingLatency.WithLabelValues("reverse").Observe(time.Since(start).Seconds())

	results, err := d.finish(ctx, "reverse", places, err)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		d.logger.Debug().Err(err).Stringer("coordinate", coord).Msg("reverse geocoding failed")
		return nil, err
	}

	return results, nil
}

func (d *Dispatcher) finish(ctx context.Context, kind string, places []nominatim.Place, err error) ([]GeoResult, error) {
	if err != nil {
		err = classify(ctx, err)
		metrics.GeocodingRequestsTotal.WithLabelValues(kind, outcome(err)).Inc()
		return nil, err
	}

	results := make([]GeoResult, 0, len(places))
	for _, p := range places {
		r, perr := Normalize(p)
		if perr != nil {
			d.logger.Warn().Err(perr).Int64("place_id", p.PlaceID).Msg("skipping malformed geocoding result")
			continue
		}
		results = append(results, r)
	}

	if len(results) == 0 {
		metrics.GeocodingRequestsTotal.WithLabelValues(kind, "not_found").Inc()
		return nil, ErrNoResults
	}

	metrics.GeocodingRequestsTotal.WithLabelValues(kind, "success").Inc()
	return results, nil
}

// Normalize converts a provider place into a GeoResult.
func Normalize(p nominatim.Place) (GeoResult, error) {
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return GeoResult{}, fmt.Errorf("invalid latitude %q: %w", p.Lat, err)
	}
	lng, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return GeoResult{}, fmt.Errorf("invalid longitude %q: %w", p.Lon, err)
	}

	bbox, err := parseBoundingBox(p.BoundingBox)
	if err != nil {
		return GeoResult{}, err
	}

	label := p.DisplayName
	if label == "" {
		label = p.Name
	}

	var address map[string]string
	if len(p.Address) > 0 {
		address = make(map[string]string, len(p.Address))
		for k, v := range p.Address {
			address[k] = v
		}
	}

	return GeoResult{
		Coordinate:  Coordinate{Lat: lat, Lng: lng},
		BoundingBox: bbox,
		Label:       sanitize.Text(label),
		HTML:        addressHTML(address),
		Address:     address,
	}, nil
}

func classify(ctx context.Context, err error) error {
	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, nominatim.ErrRateLimited):
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	case errors.Is(err, nominatim.ErrInvalidRequest):
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	default:
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrProviderUnavailable):
		return "unavailable"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
