package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Togather-Foundation/geowidget/internal/config"
	"github.com/Togather-Foundation/geowidget/internal/geocoding/nominatim"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	searchParams  []nominatim.SearchParams
	reverseParams []nominatim.ReverseParams
	places        []nominatim.Place
	err           error
}

func (f *fakeProvider) Search(_ context.Context, params nominatim.SearchParams) ([]nominatim.Place, error) {
	f.searchParams = append(f.searchParams, params)
	return f.places, f.err
}

func (f *fakeProvider) Reverse(_ context.Context, params nominatim.ReverseParams) ([]nominatim.Place, error) {
	f.reverseParams = append(f.reverseParams, params)
	return f.places, f.err
}

func springfield() nominatim.Place {
	return nominatim.Place{
		PlaceID:     7,
		Lat:         "44.0462",
		Lon:         "-123.0220",
		DisplayName: "42, Main St, Springfield, Oregon, 12345, United States",
		BoundingBox: []string{"44.04", "44.05", "-123.03", "-123.01"},
		Address: map[string]string{
			"house_number": "42",
			"road":         "Main St",
			"city":         "Springfield",
			"state":        "Oregon",
			"postcode":     "12345",
			"country":      "United States",
			"country_code": "us",
		},
	}
}

func TestDispatcher_SearchParams_FilterCoupling(t *testing.T) {
	tests := []struct {
		name    string
		filters Filters
		want    nominatim.SearchParams
	}{
		{
			name:    "no filters",
			filters: Filters{},
			want:    nominatim.SearchParams{Query: "main st"},
		},
		{
			name:    "country only turns on bounding",
			filters: Filters{CountryCodes: "de,at"},
			want:    nominatim.SearchParams{Query: "main st", CountryCodes: "de,at", Bounded: true, Limit: 2},
		},
		{
			name:    "viewbox only",
			filters: Filters{Viewbox: "13.0,52.6,13.8,52.3"},
			want:    nominatim.SearchParams{Query: "main st", Viewbox: "13.0,52.6,13.8,52.3", Bounded: true, Limit: 2},
		},
		{
			name:    "both",
			filters: Filters{CountryCodes: "de", Viewbox: "13.0,52.6,13.8,52.3"},
			want: nominatim.SearchParams{
				Query: "main st", CountryCodes: "de", Viewbox: "13.0,52.6,13.8,52.3", Bounded: true, Limit: 2,
			},
		},
		{
			name:    "whitespace-only filters are unset",
			filters: Filters{CountryCodes: "  ", Viewbox: " "},
			want:    nominatim.SearchParams{Query: "main st"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDispatcher(&fakeProvider{}, tt.filters, zerolog.Nop())
			assert.Equal(t, tt.want, d.SearchParams("  main st "))
		})
	}
}

func TestDispatcher_Search_Normalizes(t *testing.T) {
	provider := &fakeProvider{places: []nominatim.Place{springfield()}}
	d := NewDispatcher(provider, Filters{}, zerolog.Nop())

	results, err := d.Search(context.Background(), "Main St 42 Springfield")
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, Coordinate{Lat: 44.0462, Lng: -123.0220}, r.Coordinate)
	require.NotNil(t, r.BoundingBox)
	assert.Equal(t, BoundingBox{South: 44.04, North: 44.05, West: -123.03, East: -123.01}, *r.BoundingBox)
	assert.Equal(t, "42, Main St, Springfield, Oregon, 12345, United States", r.Label)
	assert.Equal(t, "Main St", r.Address["road"])
	assert.Equal(t,
		`Main St 42<br><span class="geocoder-address-detail">12345 Springfield</span><br><span class="geocoder-address-context">Oregon United States</span>`,
		r.HTML)
	assert.Equal(t, r.HTML, r.PopupContent())
}

func TestDispatcher_Search_EmptyQuery(t *testing.T) {
	provider := &fakeProvider{}
	d := NewDispatcher(provider, Filters{}, zerolog.Nop())

	_, err := d.Search(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Empty(t, provider.searchParams, "provider must not be called")
}

func TestDispatcher_Reverse_Params(t *testing.T) {
	provider := &fakeProvider{places: []nominatim.Place{springfield()}}
	d := NewDispatcher(provider, Filters{CountryCodes: "us"}, zerolog.Nop())

	_, err := d.Reverse(context.Background(), Coordinate{Lat: 44.05, Lng: -123.02}, 16)
	require.NoError(t, err)
	require.Len(t, provider.reverseParams, 1)

	p := provider.reverseParams[0]
	assert.Equal(t, 44.05, p.Lat)
	assert.Equal(t, -123.02, p.Lon)
	assert.Equal(t, 16, p.Zoom)
	assert.True(t, p.ExtraTags)
	assert.False(t, p.NameDetails)
	assert.True(t, p.AddressDetails)
}

func TestDispatcher_Reverse_NoResults(t *testing.T) {
	d := NewDispatcher(&fakeProvider{places: []nominatim.Place{}}, Filters{}, zerolog.Nop())

	results, err := d.Reverse(context.Background(), Coordinate{Lat: 0, Lng: 0}, 10)
	assert.ErrorIs(t, err, ErrNoResults)
	assert.Nil(t, results)
}

func TestDispatcher_Reverse_InvalidCoordinate(t *testing.T) {
	provider := &fakeProvider{}
	d := NewDispatcher(provider, Filters{}, zerolog.Nop())

	_, err := d.Reverse(context.Background(), Coordinate{Lat: 95, Lng: 0}, 10)
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Empty(t, provider.reverseParams)
}

func TestDispatcher_SkipsMalformedPlaces(t *testing.T) {
	bad := springfield()
	bad.Lat = "north"
	provider := &fakeProvider{places: []nominatim.Place{bad, springfield()}}
	d := NewDispatcher(provider, Filters{}, zerolog.Nop())

	results, err := d.Search(context.Background(), "springfield")
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestDispatcher_ClassifiesProviderErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "rate limited", err: fmt.Errorf("search geocoding: %w", nominatim.ErrRateLimited), want: ErrRateLimited},
		{name: "unavailable", err: fmt.Errorf("x: %w", nominatim.ErrUnavailable), want: ErrProviderUnavailable},
		{name: "unknown", err: errors.New("boom"), want: ErrProviderUnavailable},
		{name: "bad request", err: fmt.Errorf("x: %w", nominatim.ErrInvalidRequest), want: ErrInvalidRequest},
		{name: "canceled", err: context.Canceled, want: context.Canceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDispatcher(&fakeProvider{err: tt.err}, Filters{}, zerolog.Nop())
			_, err := d.Search(context.Background(), "anything")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNormalize_FallsBackToName(t *testing.T) {
	r, err := Normalize(nominatim.Place{Lat: "1.5", Lon: "2.5", Name: "Town <b>Hall</b>"})
	require.NoError(t, err)
	assert.Equal(t, "Town Hall", r.Label)
	assert.Nil(t, r.BoundingBox)
	assert.Empty(t, r.HTML)
	assert.Equal(t, "Town Hall", r.PopupContent())
}

func TestNormalize_InvalidBoundingBox(t *testing.T) {
	_, err := Normalize(nominatim.Place{Lat: "1", Lon: "2", BoundingBox: []string{"1", "2"}})
	assert.Error(t, err)
}

func TestDispatcher_AgainstNominatimServer(t *testing.T) {
	var gotQuery map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]nominatim.Place{springfield()})
	}))
	defer server.Close()

	providers := NewProviders(config.GeocodingConfig{
		ServiceURL: server.URL + "/",
		Email:      "test@example.com",
		RateLimit:  100,
		Timeout:    time.Second,
	})

	d := NewDispatcher(providers.For(""), Filters{CountryCodes: "us"}, zerolog.Nop())
	results, err := d.Search(context.Background(), "springfield")
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, "us", gotQuery["countrycodes"])
	assert.Equal(t, "1", gotQuery["bounded"])
	assert.Equal(t, "2", gotQuery["limit"])
}

func TestProviders_SharesClientPerServiceURL(t *testing.T) {
	providers := NewProviders(config.GeocodingConfig{ServiceURL: "https://nominatim.example.org/", Timeout: time.Second})

	a := providers.For("")
	b := providers.For("https://nominatim.example.org")
	c := providers.For("https://other.example.org/")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, "https://other.example.org", c.(*nominatim.Client).BaseURL())
}
