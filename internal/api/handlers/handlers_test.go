package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Togather-Foundation/geowidget/internal/audit"
	"github.com/Togather-Foundation/geowidget/internal/auth"
	"github.com/Togather-Foundation/geowidget/internal/session"
	"github.com/Togather-Foundation/geowidget/internal/storage/memory"
	"github.com/Togather-Foundation/geowidget/internal/widget"
	"github.com/Togather-Foundation/geowidget/web"
)

const testAdminPassword = "correct horse battery staple"

type fixture struct {
	repo     *memory.Repository
	registry *session.Registry
	forms    *FormsHandler
	settings *SettingsHandler
	admin    *AdminAuthHandler
	jwt      *auth.JWTManager
	auditLog *bytes.Buffer
	mux      *http.ServeMux
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	tmpl, err := web.Templates()
	require.NoError(t, err)

	f := &fixture{
		repo:     memory.New(),
		registry: session.NewRegistry(time.Minute),
		auditLog: &bytes.Buffer{},
	}
	f.forms = NewFormsHandler(f.repo, f.registry, tmpl, widget.DefaultSettings(), "test")
	f.settings = NewSettingsHandler(f.repo, tmpl, widget.DefaultSettings(), audit.NewLogger(zerolog.New(f.auditLog)), "test")

	hash, err := auth.HashPassword(testAdminPassword, bcrypt.MinCost)
	require.NoError(t, err)
	f.jwt = auth.NewJWTManager([]byte("handlers-test-secret-0123456789abcdef"), time.Hour, "geowidget")
	f.admin = NewAdminAuthHandler(f.jwt, auth.Credentials{Username: "admin", PasswordHash: hash}, tmpl, audit.NewLogger(zerolog.New(f.auditLog)), "test")

	f.mux = http.NewServeMux()
	f.mux.HandleFunc("GET /{$}", f.forms.Show)
	f.mux.HandleFunc("GET /entities/{id}", f.forms.Show)
	f.mux.HandleFunc("POST /entities/{id}", f.forms.Submit)
	f.mux.HandleFunc("GET /address/{country}", f.forms.AddressForm)
	f.mux.HandleFunc("GET /admin/widgets/{key}/settings", f.settings.Show)
	f.mux.HandleFunc("POST /admin/widgets/{key}/settings", f.settings.Save)
	f.mux.HandleFunc("GET /admin/login", f.admin.LoginPage)
	f.mux.HandleFunc("POST /admin/login", f.admin.Login)
	f.mux.HandleFunc("POST /admin/logout", f.admin.Logout)
	return f
}

func (f *fixture) do(t *testing.T, method, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func parseHTML(t *testing.T, rec *httptest.ResponseRecorder) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(rec.Body)
	require.NoError(t, err)
	return doc
}

func ctx() context.Context { return context.Background() }
