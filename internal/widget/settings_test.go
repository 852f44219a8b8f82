package widget

import (
	"errors"
	"testing"
	"time"

	"github.com/Togather-Foundation/geowidget/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()

	assert.Equal(t, 12, s.Zoom)
	assert.Zero(t, s.CenterLat)
	assert.Zero(t, s.CenterLng)
	assert.False(t, s.SetAddressField)
	assert.Empty(t, s.LimitCountryCodes)
	assert.Empty(t, s.LimitViewbox)
	assert.Equal(t, "http://{s}.tile.osm.org/{z}/{x}/{y}.png", s.TileServerURL)
	assert.Equal(t, "https://nominatim.openstreetmap.org/", s.ServiceURL)
	assert.NoError(t, s.Validate())
}

func TestDefaultsFrom(t *testing.T) {
	s := DefaultsFrom(
		config.WidgetConfig{Zoom: 5, CenterLat: 52.5, CenterLng: 13.4, SuppressClickFor: time.Second},
		config.GeocodingConfig{ServiceURL: "https://geo.example.com/"},
	)

	assert.Equal(t, 5, s.Zoom)
	assert.Equal(t, 52.5, s.CenterLat)
	assert.Equal(t, DefaultTileServerURL, s.TileServerURL)
	assert.Equal(t, "https://geo.example.com/", s.ServiceURL)
}

func TestSettings_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
		field  string
	}{
		{name: "zoom too high", mutate: func(s *Settings) { s.Zoom = 19 }, field: "zoom"},
		{name: "negative zoom", mutate: func(s *Settings) { s.Zoom = -1 }, field: "zoom"},
		{name: "latitude out of range", mutate: func(s *Settings) { s.CenterLat = 91 }, field: "center_lat"},
		{name: "longitude out of range", mutate: func(s *Settings) { s.CenterLng = -181 }, field: "center_lng"},
		{name: "bad country list", mutate: func(s *Settings) { s.LimitCountryCodes = "germany" }, field: "limit_countrycodes"},
		{name: "bad viewbox", mutate: func(s *Settings) { s.LimitViewbox = "1,2,3" }, field: "limit_viewbox"},
		{name: "tile url without placeholders", mutate: func(s *Settings) { s.TileServerURL = "https://tiles.example.com/" }, field: "tileServerUrl"},
		{name: "missing service url", mutate: func(s *Settings) { s.ServiceURL = "" }, field: "serviceUrl"},
		{name: "service url with query", mutate: func(s *Settings) { s.ServiceURL = "https://x.example.com/?a=1" }, field: "serviceUrl"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(&s)

			err := s.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidSettings))

			var fields FieldErrors
			require.True(t, errors.As(err, &fields))
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestSettings_ValidFilters(t *testing.T) {
	s := DefaultSettings()
	s.LimitCountryCodes = "de,at"
	s.LimitViewbox = "13.08,52.68,13.76,52.33"
	s.SetAddressField = true
	s.Zoom = 18

	assert.NoError(t, s.Validate())
}

func TestFieldErrors_Error(t *testing.T) {
	err := FieldErrors{"zoom": "must be at most 18", "center_lat": "must be at least -90"}
	assert.Equal(t, "invalid widget settings: center_lat: must be at least -90; zoom: must be at most 18", err.Error())
}
