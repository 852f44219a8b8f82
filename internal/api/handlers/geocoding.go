package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/Togather-Foundation/geowidget/internal/api/problem"
	"github.com/Togather-Foundation/geowidget/internal/geocoding"
	"github.com/Togather-Foundation/geowidget/internal/validation"
	"github.com/rs/zerolog"
)

// OSMAttribution is the attribution string required by OpenStreetMap usage policy
const OSMAttribution = "Data © OpenStreetMap contributors, ODbL 1.0"

// defaultReverseZoom is the address detail level used when the caller sends none.
const defaultReverseZoom = 18

// ProviderSource hands out the geocoding provider for a service URL.
type ProviderSource interface {
	For(serviceURL string) geocoding.Provider
}

// GeocodingHandler exposes the dispatcher as JSON for clients that do not
// hold a widget session.
type GeocodingHandler struct {
	Providers ProviderSource
	Env       string
	Logger    zerolog.Logger
}

// NewGeocodingHandler creates a new geocoding handler.
func NewGeocodingHandler(providers ProviderSource, env string, logger zerolog.Logger) *GeocodingHandler {
	return &GeocodingHandler{
		Providers: providers,
		Env:       env,
		Logger:    logger,
	}
}

type geocodeResponse struct {
	Results     []geocoding.GeoResult `json:"results"`
	Attribution string                `json:"attribution"`
}

// Search handles GET /api/v1/geocode/search.
// Query params:
//   - q: free-form query (required)
//   - countrycodes: comma-separated ISO 3166-1 alpha-2 codes (optional)
//   - viewbox: left,top,right,bottom (optional)
func (h *GeocodingHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	query := strings.TrimSpace(q.Get("q"))
	if query == "" {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation,
			"Missing required parameter",
			errors.New("query parameter 'q' is required"),
			h.Env)
		return
	}

	filters := geocoding.Filters{
		CountryCodes: strings.TrimSpace(q.Get("countrycodes")),
		Viewbox:      strings.TrimSpace(q.Get("viewbox")),
	}
	if filters.CountryCodes != "" {
		if err := validation.ValidateCountryCodes(filters.CountryCodes); err != nil {
			h.invalidParam(w, r, "countrycodes", err)
			return
		}
	}
	if filters.Viewbox != "" {
		if err := validation.ValidateViewbox(filters.Viewbox); err != nil {
			h.invalidParam(w, r, "viewbox", err)
			return
		}
	}

	d := geocoding.NewDispatcher(h.Providers.For(""), filters, h.Logger)
	results, err := d.Search(r.Context(), query)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, geocodeResponse{Results: results, Attribution: OSMAttribution})
}

// Reverse handles GET /api/v1/geocode/reverse.
// Query params:
//   - lat: latitude (required, -90..90)
//   - lon: longitude (required, -180..180)
//   - zoom: address detail level 0..18 (optional, default 18)
func (h *GeocodingHandler) Reverse(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	lat, err := strconv.ParseFloat(strings.TrimSpace(q.Get("lat")), 64)
	if err != nil {
		h.invalidParam(w, r, "lat", err)
		return
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(q.Get("lon")), 64)
	if err != nil {
		h.invalidParam(w, r, "lon", err)
		return
	}

	zoom := defaultReverseZoom
	if raw := strings.TrimSpace(q.Get("zoom")); raw != "" {
		zoom, err = strconv.Atoi(raw)
		if err != nil || zoom < 0 || zoom > 18 {
			h.invalidParam(w, r, "zoom", fmt.Errorf("zoom must be an integer between 0 and 18"))
			return
		}
	}

	d := geocoding.NewDispatcher(h.Providers.For(""), geocoding.Filters{}, h.Logger)
	results, err := d.Reverse(r.Context(), geocoding.Coordinate{Lat: lat, Lng: lon}, zoom)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, geocodeResponse{Results: results, Attribution: OSMAttribution})
}

func (h *GeocodingHandler) invalidParam(w http.ResponseWriter, r *http.Request, name string, err error) {
	problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation,
		"Invalid parameter",
		err,
		h.Env,
		problem.WithErrors(map[string]any{name: err.Error()}))
}

func (h *GeocodingHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, geocoding.ErrInvalidRequest):
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid geocoding request", err, h.Env)
	case errors.Is(err, geocoding.ErrNoResults):
		problem.Write(w, r, http.StatusNotFound, problem.TypeNoResults, "No results found", err, h.Env,
			problem.WithDetail("No geocoding results found for the given query"))
	case errors.Is(err, geocoding.ErrRateLimited):
		w.Header().Set("Retry-After", "1")
		problem.Write(w, r, http.StatusServiceUnavailable, problem.TypeRateLimited, "Geocoding provider is rate limiting", err, h.Env)
	case errors.Is(err, geocoding.ErrProviderUnavailable):
		problem.Write(w, r, http.StatusBadGateway, problem.TypeUpstream, "Geocoding provider unavailable", err, h.Env)
	default:
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Geocoding failed", err, h.Env)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
