package handlers

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Togather-Foundation/geowidget/internal/form"
	"github.com/Togather-Foundation/geowidget/internal/widget"
)

func TestForms_ShowNewEntity(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/entities/e1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	doc := parseHTML(t, rec)

	maps := doc.Find(".geolocation-map")
	require.Equal(t, 2, maps.Length())
	first, _ := maps.Eq(0).Attr("data-instance")
	second, _ := maps.Eq(1).Attr("data-instance")
	assert.Equal(t, widget.BaseInstanceID, first)
	assert.NotEqual(t, first, second)

	token, ok := doc.Find("form.entity-form").Attr("data-geowidget-form")
	require.True(t, ok)
	registered, release, ok := f.registry.Attach(token)
	require.True(t, ok, "rendered form token must be registered")
	release()
	assert.Equal(t, "e1", registered.EntityID)
	assert.Len(t, registered.Widgets, 2)

	assert.Equal(t, 1, doc.Find("."+form.AddressContainerClass+" select.country").Length())
}

func TestForms_RootRendersDemoEntity(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	action, _ := parseHTML(t, rec).Find("form.entity-form").Attr("action")
	assert.Equal(t, "/entities/"+DemoEntityID, action)
}

func TestForms_SubmitAndReload(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/entities/e1", url.Values{
		"title":                        {"Town hall"},
		"location[lat]":                {"52.516"},
		"location[lng]":                {"13.377"},
		"location[zoom]":               {"16"},
		"address[country]":             {"US"},
		"address[postal-code]":         {"10001"},
		"address[locality]":            {"New York"},
		"address[administrative-area]": {"NY"},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/entities/e1?saved=1", rec.Header().Get("Location"))

	value, err := f.repo.GetValue(ctx(), "e1", "location")
	require.NoError(t, err)
	assert.Equal(t, "52.516", value.Lat)
	assert.Equal(t, "16", value.Zoom)

	entity, err := f.repo.GetEntity(ctx(), "e1")
	require.NoError(t, err)
	assert.Equal(t, "Town hall", entity.Title)
	require.NotNil(t, entity.Address)
	assert.Equal(t, "US", entity.Address.Country)
	assert.Equal(t, "NY", entity.Address.AdministrativeArea)

	rec = f.do(t, http.MethodGet, "/entities/e1?saved=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	doc := parseHTML(t, rec)

	assert.Equal(t, 1, doc.Find(".flash").Length())
	lat, _ := doc.Find("input." + form.LatClass + "." + form.ForClass(widget.BaseInstanceID)).Attr("value")
	assert.Equal(t, "52.516", lat)
	postal, _ := doc.Find("input.postal-code").Attr("value")
	assert.Equal(t, "10001", postal)
	country, _ := doc.Find("select.country option[selected]").Attr("value")
	assert.Equal(t, "US", country)

	token, _ := doc.Find("form.entity-form").Attr("data-geowidget-form")
	registered, release, ok := f.registry.Attach(token)
	require.True(t, ok)
	defer release()
	cfg, ok := registered.Widget(widget.BaseInstanceID)
	require.True(t, ok)
	require.NotNil(t, cfg.Stored)
	assert.InDelta(t, 52.516, cfg.Stored.Lat, 1e-9)
	assert.Equal(t, "Town hall", cfg.Label)
}

func TestForms_EntityIDTooLong(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/entities/"+strings.Repeat("x", maxEntityIDLength+1), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestForms_AddressFragment(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		country    string
		wantStatus int
		wantAreas  bool
	}{
		{country: "US", wantStatus: http.StatusOK, wantAreas: true},
		{country: "de", wantStatus: http.StatusOK, wantAreas: false},
		{country: "none", wantStatus: http.StatusOK, wantAreas: false},
		{country: "ZZ", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.country, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, "/address/"+tt.country, nil)
			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus != http.StatusOK {
				assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
				return
			}
			doc := parseHTML(t, rec)
			assert.Equal(t, 1, doc.Find(".address-container").Length())
			assert.Equal(t, tt.wantAreas, doc.Find("select.administrative-area").Length() == 1)
		})
	}
}
