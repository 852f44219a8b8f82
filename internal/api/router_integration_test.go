package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Togather-Foundation/geowidget/internal/address"
	"github.com/Togather-Foundation/geowidget/internal/api/middleware"
	"github.com/Togather-Foundation/geowidget/internal/auth"
	"github.com/Togather-Foundation/geowidget/internal/config"
	"github.com/Togather-Foundation/geowidget/internal/geocoding"
	"github.com/Togather-Foundation/geowidget/internal/geocoding/nominatim"
	"github.com/Togather-Foundation/geowidget/internal/session"
	"github.com/Togather-Foundation/geowidget/internal/storage"
	"github.com/Togather-Foundation/geowidget/internal/storage/memory"
	"github.com/Togather-Foundation/geowidget/internal/widget"
)

type noResultsProvider struct{}

func (noResultsProvider) Search(context.Context, nominatim.SearchParams) ([]nominatim.Place, error) {
	return nil, nil
}

func (noResultsProvider) Reverse(context.Context, nominatim.ReverseParams) ([]nominatim.Place, error) {
	return nil, nil
}

type staticProviders struct{}

func (staticProviders) For(string) geocoding.Provider { return noResultsProvider{} }

type testApp struct {
	server   *httptest.Server
	client   *http.Client
	repo     *memory.Repository
	registry *session.Registry
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	cfg := config.Config{
		Environment: "test",
		RateLimit:   config.RateLimitConfig{PublicPerMinute: 1000, GeocodePerMinute: 1000},
		Widget:      config.WidgetConfig{Zoom: 12},
		CSRF:        config.CSRFConfig{AuthKey: "0123456789abcdef0123456789abcdef"},
		Auth: config.AuthConfig{
			JWTSecret:         "router-test-jwt-secret-0123456789abcdef",
			JWTExpiry:         time.Hour,
			AdminUsername:     "admin",
			AdminPasswordHash: testAdminHash(t),
		},
	}

	repo := memory.New()
	registry := session.NewRegistry(time.Minute)
	hub := session.NewHub(registry, func(cfg widget.WidgetConfig) widget.Geocoder {
		return geocoding.NewDispatcher(noResultsProvider{}, cfg.Filters(), zerolog.Nop())
	}, address.NewBridge(zerolog.Nop()), zerolog.Nop())

	handler, err := NewRouter(Deps{
		Config:    cfg,
		Logger:    zerolog.Nop(),
		Repo:      repo,
		Registry:  registry,
		Hub:       hub,
		Providers: staticProviders{},
		Build:     BuildInfo{Version: "test"},
	})
	require.NoError(t, err)

	server := httptest.NewServer(handler)
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		hub.CloseAll()
		server.Close()
	})

	return &testApp{
		server:   server,
		client:   &http.Client{Jar: jar},
		repo:     repo,
		registry: registry,
	}
}

const testAdminPassword = "correct horse battery staple"

func testAdminHash(t *testing.T) string {
	t.Helper()
	hash, err := auth.HashPassword(testAdminPassword, bcrypt.MinCost)
	require.NoError(t, err)
	return hash
}

// csrfToken reads the CSRF field of the first form on the page at path.
func (a *testApp) csrfToken(t *testing.T, path string) string {
	t.Helper()
	res := a.get(t, path)
	require.Equal(t, http.StatusOK, res.StatusCode)
	doc, err := goquery.NewDocumentFromReader(res.Body)
	require.NoError(t, err)
	token, ok := doc.Find(`input[name="` + middleware.CSRFFieldName() + `"]`).First().Attr("value")
	require.True(t, ok)
	require.NotEmpty(t, token)
	return token
}

func settingsForm(token, serviceURL string) url.Values {
	return url.Values{
		middleware.CSRFFieldName(): {token},
		"zoom":                     {"14"},
		"center_lat":               {"0"},
		"center_lng":               {"0"},
		"limit_countrycodes":       {""},
		"limit_viewbox":            {""},
		"tileServerUrl":            {widget.DefaultTileServerURL},
		"serviceUrl":               {serviceURL},
	}
}

func (a *testApp) get(t *testing.T, path string) *http.Response {
	t.Helper()
	res, err := a.client.Get(a.server.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Body.Close() })
	return res
}

func TestRouter_AmbientHeaders(t *testing.T) {
	app := newTestApp(t)

	res := app.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.NotEmpty(t, res.Header.Get("X-Request-ID"))
	assert.Equal(t, middleware.ContentSecurityPolicy, res.Header.Get("Content-Security-Policy"))

	res = app.get(t, "/metrics")
	require.Equal(t, http.StatusOK, res.StatusCode)
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "geowidget_http_requests_total")

	res = app.get(t, "/version")
	require.Equal(t, http.StatusOK, res.StatusCode)
	var version versionResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&version))
	assert.Equal(t, "test", version.Version)

	res = app.get(t, "/static/geowidget.js")
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestRouter_FormSubmitRequiresCSRFToken(t *testing.T) {
	app := newTestApp(t)

	res, err := app.client.PostForm(app.server.URL+"/entities/e1", url.Values{"title": {"x"}})
	require.NoError(t, err)
	_ = res.Body.Close()
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	res = app.get(t, "/entities/e1")
	require.Equal(t, http.StatusOK, res.StatusCode)
	doc, err := goquery.NewDocumentFromReader(res.Body)
	require.NoError(t, err)
	token, ok := doc.Find(`input[name="` + middleware.CSRFFieldName() + `"]`).Attr("value")
	require.True(t, ok)
	require.NotEmpty(t, token)

	res, err = app.client.PostForm(app.server.URL+"/entities/e1", url.Values{
		middleware.CSRFFieldName(): {token},
		"title":                    {"Saved title"},
		"location[lat]":            {"1.5"},
		"location[lng]":            {"2.5"},
	})
	require.NoError(t, err)
	_ = res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode, "redirect is followed to the form")

	value, err := app.repo.GetValue(context.Background(), "e1", "location")
	require.NoError(t, err)
	assert.Equal(t, "1.5", value.Lat)
}

func TestRouter_GeocodeNoResults(t *testing.T) {
	app := newTestApp(t)

	res := app.get(t, "/api/v1/geocode/search?q=nowhere")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Equal(t, "application/problem+json", res.Header.Get("Content-Type"))
}

func TestRouter_UnknownFormSession(t *testing.T) {
	app := newTestApp(t)

	res := app.get(t, "/ws/forms/01ARZ3NDEKTSV4RRFFQ69G5FAV")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestRouter_WidgetSessionThroughMiddleware(t *testing.T) {
	app := newTestApp(t)

	res := app.get(t, "/")
	require.Equal(t, http.StatusOK, res.StatusCode)
	doc, err := goquery.NewDocumentFromReader(res.Body)
	require.NoError(t, err)

	token, ok := doc.Find("form.entity-form").Attr("data-geowidget-form")
	require.True(t, ok)
	instance, ok := doc.Find(".geolocation-map").First().Attr("data-instance")
	require.True(t, ok)

	wsURL := "ws" + strings.TrimPrefix(app.server.URL, "http") + "/ws/forms/" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(session.Event{Type: session.EventInit, Instance: instance}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var cmd session.Command
	require.NoError(t, conn.ReadJSON(&cmd))
	assert.Equal(t, session.CommandRender, cmd.Type)
	assert.Equal(t, instance, cmd.Instance)
	require.NotNil(t, cmd.Map)
	assert.Equal(t, 12, cmd.Map.Zoom)
}

func TestRouter_AdminSettingsRequireLogin(t *testing.T) {
	app := newTestApp(t)

	res := app.get(t, "/admin/widgets/location/settings")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, middleware.AdminLoginPath, res.Request.URL.Path, "anonymous view is sent to the login form")
	assert.Equal(t, "/admin/widgets/location/settings", res.Request.URL.Query().Get("next"))

	token := app.csrfToken(t, middleware.AdminLoginPath)
	res, err := app.client.PostForm(app.server.URL+"/admin/widgets/location/settings",
		settingsForm(token, "http://169.254.169.254/latest/"))
	require.NoError(t, err)
	_ = res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, "application/problem+json", res.Header.Get("Content-Type"))

	_, err = app.repo.GetSettings(context.Background(), "location")
	assert.ErrorIs(t, err, storage.ErrNotFound, "rejected write leaves settings untouched")
}

func TestRouter_AdminSettingsForgedCookie(t *testing.T) {
	app := newTestApp(t)

	forged := auth.NewJWTManager([]byte("some-other-secret-0123456789abcdef"), time.Hour, "geowidget")
	value, err := forged.Generate("admin", auth.RoleAdmin)
	require.NoError(t, err)
	serverURL, err := url.Parse(app.server.URL + "/admin")
	require.NoError(t, err)
	app.client.Jar.SetCookies(serverURL, []*http.Cookie{{Name: middleware.AdminAuthCookieName, Value: value, Path: "/admin"}})

	token := app.csrfToken(t, middleware.AdminLoginPath)
	res, err := app.client.PostForm(app.server.URL+"/admin/widgets/location/settings",
		settingsForm(token, "http://169.254.169.254/latest/"))
	require.NoError(t, err)
	_ = res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestRouter_AdminLoginThenSave(t *testing.T) {
	app := newTestApp(t)

	token := app.csrfToken(t, middleware.AdminLoginPath)
	res, err := app.client.PostForm(app.server.URL+middleware.AdminLoginPath, url.Values{
		middleware.CSRFFieldName(): {token},
		"username":                 {"admin"},
		"password":                 {testAdminPassword},
		"next":                     {"/admin/widgets/location/settings"},
	})
	require.NoError(t, err)
	_ = res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "/admin/widgets/location/settings", res.Request.URL.Path)

	token = app.csrfToken(t, "/admin/widgets/location/settings")
	res, err = app.client.PostForm(app.server.URL+"/admin/widgets/location/settings",
		settingsForm(token, "https://geocode.example.org/"))
	require.NoError(t, err)
	_ = res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	saved, err := app.repo.GetSettings(context.Background(), "location")
	require.NoError(t, err)
	assert.Equal(t, 14, saved.Zoom)
	assert.Equal(t, "https://geocode.example.org/", saved.ServiceURL)

	token = app.csrfToken(t, "/admin/widgets/location/settings")
	res, err = app.client.PostForm(app.server.URL+"/admin/logout", url.Values{middleware.CSRFFieldName(): {token}})
	require.NoError(t, err)
	_ = res.Body.Close()

	res, err = app.client.PostForm(app.server.URL+"/admin/widgets/location/settings",
		settingsForm(token, widget.DefaultServiceURL))
	require.NoError(t, err)
	_ = res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode, "logout ends the admin session")
}
