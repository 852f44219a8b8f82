package api

import (
	"crypto/rand"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/Togather-Foundation/geowidget/internal/api/handlers"
	"github.com/Togather-Foundation/geowidget/internal/api/middleware"
	"github.com/Togather-Foundation/geowidget/internal/audit"
	"github.com/Togather-Foundation/geowidget/internal/auth"
	"github.com/Togather-Foundation/geowidget/internal/config"
	"github.com/Togather-Foundation/geowidget/internal/metrics"
	"github.com/Togather-Foundation/geowidget/internal/session"
	"github.com/Togather-Foundation/geowidget/internal/storage"
	"github.com/Togather-Foundation/geowidget/internal/widget"
	"github.com/Togather-Foundation/geowidget/web"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	Config config.Config
	Logger zerolog.Logger
	Repo   storage.Repository
	// Pool is nil when Repo is the in-memory store.
	Pool      *pgxpool.Pool
	Registry  *session.Registry
	Hub       *session.Hub
	Providers handlers.ProviderSource
	Build     BuildInfo
}

// NewRouter builds the HTTP handler: routes plus the middleware chain.
func NewRouter(deps Deps) (http.Handler, error) {
	cfg := deps.Config
	logger := deps.Logger

	tmpl, err := web.Templates()
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	csrfKey, err := csrfAuthKey(cfg.CSRF, logger)
	if err != nil {
		return nil, err
	}

	jwtSecret, err := adminJWTSecret(cfg.Auth, logger)
	if err != nil {
		return nil, err
	}
	jwtManager := auth.NewJWTManager(jwtSecret, cfg.Auth.JWTExpiry, "geowidget")
	credentials := auth.Credentials{Username: cfg.Auth.AdminUsername, PasswordHash: cfg.Auth.AdminPasswordHash}
	if !credentials.Enabled() {
		logger.Warn().Msg("ADMIN_PASSWORD_HASH not set; admin pages cannot be reached")
	}

	defaults := widget.DefaultsFrom(cfg.Widget, cfg.Geocoding)
	auditLog := audit.NewLogger(logger)

	forms := handlers.NewFormsHandler(deps.Repo, deps.Registry, tmpl, defaults, cfg.Environment)
	settings := handlers.NewSettingsHandler(deps.Repo, tmpl, defaults, auditLog, cfg.Environment)
	adminAuth := handlers.NewAdminAuthHandler(jwtManager, credentials, tmpl, auditLog, cfg.Environment)
	geocode := handlers.NewGeocodingHandler(deps.Providers, cfg.Environment, logger)
	sessions := handlers.NewSessionHandler(deps.Hub, cfg.Environment)
	health := handlers.NewHealthChecker(deps.Repo, deps.Pool, deps.Hub, deps.Build.Version, deps.Build.GitCommit)

	csrf := middleware.CSRFProtection(csrfKey, cfg.CSRF.Secure)
	limit := middleware.RateLimit(cfg.RateLimit)
	geocodeTier := middleware.WithRateLimitTierHandler(middleware.TierGeocode)
	formBody := middleware.FormRequestSize()
	admin := middleware.AdminAuthCookie(jwtManager, cfg.Environment)

	mux := http.NewServeMux()
	mux.Handle("/healthz", handlers.Healthz())
	mux.Handle("/readyz", handlers.Readyz(deps.Repo))
	mux.Handle("GET /health", health.Health())
	mux.Handle("/version", VersionHandler(deps.Build))
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	mux.Handle("/static/", web.StaticHandler())

	mux.Handle("GET /{$}", limit(csrf(http.HandlerFunc(forms.Show))))
	mux.Handle("/entities/{id}", limit(csrf(methodMux(map[string]http.Handler{
		http.MethodGet:  http.HandlerFunc(forms.Show),
		http.MethodPost: formBody(http.HandlerFunc(forms.Submit)),
	}))))
	mux.Handle("GET /address/{country}", limit(http.HandlerFunc(forms.AddressForm)))
	mux.Handle(middleware.AdminLoginPath, limit(csrf(methodMux(map[string]http.Handler{
		http.MethodGet:  http.HandlerFunc(adminAuth.LoginPage),
		http.MethodPost: formBody(http.HandlerFunc(adminAuth.Login)),
	}))))
	mux.Handle("POST /admin/logout", limit(csrf(http.HandlerFunc(adminAuth.Logout))))
	mux.Handle("/admin/widgets/{key}/settings", limit(csrf(admin(methodMux(map[string]http.Handler{
		http.MethodGet:  http.HandlerFunc(settings.Show),
		http.MethodPost: formBody(http.HandlerFunc(settings.Save)),
	})))))

	mux.Handle("GET /api/v1/geocode/search", geocodeTier(limit(http.HandlerFunc(geocode.Search))))
	mux.Handle("GET /api/v1/geocode/reverse", geocodeTier(limit(http.HandlerFunc(geocode.Reverse))))

	mux.Handle("GET /ws/forms/{form}", limit(http.HandlerFunc(sessions.Serve)))

	var handler http.Handler = metrics.HTTPMiddleware(mux)
	handler = middleware.SecurityHeaders(cfg.IsProduction())(handler)
	handler = middleware.RequestLogging(logger)(handler)
	handler = middleware.Tracing(handler)
	handler = middleware.CorrelationID(logger)(handler)
	return handler, nil
}

// csrfAuthKey returns the configured key, or a random one outside production.
// A random key invalidates open forms on restart.
func csrfAuthKey(cfg config.CSRFConfig, logger zerolog.Logger) ([]byte, error) {
	if cfg.AuthKey != "" {
		if len(cfg.AuthKey) != 32 {
			return nil, fmt.Errorf("CSRF_AUTH_KEY must be exactly 32 bytes, got %d", len(cfg.AuthKey))
		}
		return []byte(cfg.AuthKey), nil
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate CSRF key: %w", err)
	}
	logger.Warn().Msg("CSRF_AUTH_KEY not set; using a random key for this process")
	return key, nil
}

// adminJWTSecret returns the configured secret, or a random one outside
// production. A random secret logs every administrator out on restart.
func adminJWTSecret(cfg config.AuthConfig, logger zerolog.Logger) ([]byte, error) {
	if cfg.JWTSecret != "" {
		return []byte(cfg.JWTSecret), nil
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate JWT secret: %w", err)
	}
	logger.Warn().Msg("JWT_SECRET not set; using a random secret for this process")
	return secret, nil
}

func methodMux(handlers map[string]http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := handlers[r.Method]; ok {
			handler.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Allow", allowedMethods(handlers))
		w.WriteHeader(http.StatusMethodNotAllowed)
	})
}

func allowedMethods(handlers map[string]http.Handler) string {
	methods := make([]string, 0, len(handlers))
	for method := range handlers {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return strings.Join(methods, ", ")
}
