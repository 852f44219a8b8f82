package cmd

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/Togather-Foundation/geowidget/internal/geocoding"
	"github.com/Togather-Foundation/geowidget/internal/validation"
)

const brandenburgGate = `{
	"place_id": 1,
	"lat": "52.5162746",
	"lon": "13.3777041",
	"display_name": "Brandenburger Tor, Pariser Platz, Mitte, Berlin, 10117, Deutschland",
	"type": "attraction",
	"boundingbox": ["52.5161", "52.5164", "13.3775", "13.3779"],
	"address": {"road": "Pariser Platz", "city": "Berlin", "postcode": "10117", "country_code": "de"}
}`

// fakeNominatim answers /search and /reverse. The returned func reports the
// query string of the last request.
func fakeNominatim(t *testing.T, empty bool) (*httptest.Server, func() string) {
	t.Helper()
	var (
		mu        sync.Mutex
		lastQuery string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		lastQuery = r.URL.RawQuery
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/search" && empty:
			_, _ = w.Write([]byte(`[]`))
		case r.URL.Path == "/search":
			_, _ = w.Write([]byte("[" + brandenburgGate + "]"))
		case r.URL.Path == "/reverse":
			_, _ = w.Write([]byte(brandenburgGate))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server, func() string {
		mu.Lock()
		defer mu.Unlock()
		return lastQuery
	}
}

func TestGeocodeSearchText(t *testing.T) {
	isolateEnv(t)
	server, lastQuery := fakeNominatim(t, false)

	output, err := execute(t, "geocode", "search", "Brandenburger", "Tor",
		"--service-url", server.URL, "--countrycodes", "de", "--format", "text")
	if err != nil {
		t.Fatalf("geocode search: %v", err)
	}

	if !strings.Contains(output, "1. Brandenburger Tor, Pariser Platz") {
		t.Errorf("unexpected output:\n%s", output)
	}
	if !strings.Contains(output, "52.5162746,13.3777041") {
		t.Errorf("expected coordinate in output:\n%s", output)
	}
	if !strings.Contains(lastQuery(), "countrycodes=de") || !strings.Contains(lastQuery(), "q=Brandenburger+Tor") {
		t.Errorf("unexpected upstream query %q", lastQuery())
	}
}

func TestGeocodeReverseJSON(t *testing.T) {
	isolateEnv(t)
	server, lastQuery := fakeNominatim(t, false)

	output, err := execute(t, "geocode", "reverse", "52.5163", "13.3777", "--zoom", "16", "--service-url", server.URL)
	if err != nil {
		t.Fatalf("geocode reverse: %v", err)
	}

	var results []geocoding.GeoResult
	if err := json.Unmarshal([]byte(output), &results); err != nil {
		t.Fatalf("decode output: %v\n%s", err, output)
	}
	if len(results) != 1 || results[0].Address["city"] != "Berlin" {
		t.Errorf("unexpected results: %+v", results)
	}
	if !strings.Contains(lastQuery(), "zoom=16") {
		t.Errorf("expected zoom in upstream query, got %q", lastQuery())
	}
}

func TestGeocodeErrors(t *testing.T) {
	isolateEnv(t)
	server, _ := fakeNominatim(t, true)

	tests := []struct {
		name    string
		args    []string
		wantErr error
		wantMsg string
	}{
		{
			name:    "no results",
			args:    []string{"geocode", "search", "nowhere", "--service-url", server.URL},
			wantErr: geocoding.ErrNoResults,
		},
		{
			name:    "invalid country codes",
			args:    []string{"geocode", "search", "x", "--countrycodes", "deu"},
			wantErr: validation.ErrInvalidCountryCodes,
		},
		{
			name:    "invalid viewbox",
			args:    []string{"geocode", "search", "x", "--viewbox", "1,2,3"},
			wantErr: validation.ErrInvalidViewbox,
		},
		{
			name:    "invalid latitude",
			args:    []string{"geocode", "reverse", "north", "13"},
			wantMsg: "invalid latitude",
		},
		{
			name:    "unknown format",
			args:    []string{"geocode", "search", "x", "--service-url", server.URL, "--format", "xml"},
			wantMsg: "unknown format",
		},
		{
			name:    "missing query",
			args:    []string{"geocode", "search"},
			wantMsg: "requires at least 1 arg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %v, want it to mention %q", err, tt.wantMsg)
			}
		})
	}
}
