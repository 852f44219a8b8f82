package widget

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/Togather-Foundation/geowidget/internal/config"
	"github.com/Togather-Foundation/geowidget/internal/validation"
	"github.com/go-playground/validator/v10"
)

// Defaults of the settings schema.
const (
	DefaultZoom          = 12
	DefaultTileServerURL = "http://{s}.tile.osm.org/{z}/{x}/{y}.png"
	DefaultServiceURL    = "https://nominatim.openstreetmap.org/"
)

// Settings are the per-widget options an administrator edits.
// JSON names match the persisted settings schema.
type Settings struct {
	Zoom              int     `json:"zoom" yaml:"zoom" validate:"min=0,max=18"`
	CenterLat         float64 `json:"center_lat" yaml:"center_lat" validate:"gte=-90,lte=90"`
	CenterLng         float64 `json:"center_lng" yaml:"center_lng" validate:"gte=-180,lte=180"`
	SetAddressField   bool    `json:"set_address_field" yaml:"set_address_field"`
	LimitCountryCodes string  `json:"limit_countrycodes" yaml:"limit_countrycodes" validate:"omitempty,countrycodes"`
	LimitViewbox      string  `json:"limit_viewbox" yaml:"limit_viewbox" validate:"omitempty,viewbox"`
	TileServerURL     string  `json:"tileServerUrl" yaml:"tileServerUrl" validate:"required,tileurl"`
	ServiceURL        string  `json:"serviceUrl" yaml:"serviceUrl" validate:"required,serviceurl"`
}

// DefaultSettings returns the settings a new widget starts with.
func DefaultSettings() Settings {
	return Settings{
		Zoom:          DefaultZoom,
		TileServerURL: DefaultTileServerURL,
		ServiceURL:    DefaultServiceURL,
	}
}

// DefaultsFrom returns DefaultSettings overridden by site-wide configuration.
func DefaultsFrom(w config.WidgetConfig, g config.GeocodingConfig) Settings {
	s := DefaultSettings()
	s.Zoom = w.Zoom
	s.CenterLat = w.CenterLat
	s.CenterLng = w.CenterLng
	if w.TileServerURL != "" {
		s.TileServerURL = w.TileServerURL
	}
	if g.ServiceURL != "" {
		s.ServiceURL = g.ServiceURL
	}
	return s
}

// ErrInvalidSettings is wrapped by every settings validation failure.
var ErrInvalidSettings = errors.New("invalid widget settings")

// FieldErrors maps settings field names (JSON names) to the failed rule.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+e[f])
	}
	return fmt.Sprintf("%s: %s", ErrInvalidSettings, strings.Join(parts, "; "))
}

func (e FieldErrors) Unwrap() error {
	return ErrInvalidSettings
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validation.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

var ruleMessages = map[string]string{
	"min":          "must be at least %s",
	"max":          "must be at most %s",
	"gte":          "must be at least %s",
	"lte":          "must be at most %s",
	"required":     "is required",
	"countrycodes": "must be a comma-separated list of 2-letter country codes",
	"viewbox":      "must be four comma-separated numbers: left,top,right,bottom",
	"tileurl":      "must be an http(s) URL containing {z}, {x} and {y}",
	"serviceurl":   "must be an http(s) URL without query or fragment",
}

// Validate checks the settings. The error is a FieldErrors.
func (s Settings) Validate() error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}

	out := make(FieldErrors, len(verrs))
	for _, fe := range verrs {
		msg, ok := ruleMessages[fe.Tag()]
		if !ok {
			msg = "is invalid"
		}
		if strings.Contains(msg, "%s") {
			msg = fmt.Sprintf(msg, fe.Param())
		}
		out[fe.Field()] = msg
	}
	return out
}
