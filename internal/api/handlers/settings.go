package handlers

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/Togather-Foundation/geowidget/internal/api/middleware"
	"github.com/Togather-Foundation/geowidget/internal/audit"
	"github.com/Togather-Foundation/geowidget/internal/api/problem"
	"github.com/Togather-Foundation/geowidget/internal/storage"
	"github.com/Togather-Foundation/geowidget/internal/widget"
	"github.com/Togather-Foundation/geowidget/web"
	"github.com/rs/zerolog"
)

var widgetKeyPattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// SettingsHandler renders and saves the per-field widget settings form.
type SettingsHandler struct {
	Repo      storage.Repository
	Templates *template.Template
	Defaults  widget.Settings
	Audit     *audit.Logger
	Env       string
}

func NewSettingsHandler(repo storage.Repository, tmpl *template.Template, defaults widget.Settings, auditLog *audit.Logger, env string) *SettingsHandler {
	return &SettingsHandler{Repo: repo, Templates: tmpl, Defaults: defaults, Audit: auditLog, Env: env}
}

// Show handles GET /admin/widgets/{key}/settings.
func (h *SettingsHandler) Show(w http.ResponseWriter, r *http.Request) {
	key, ok := h.key(w, r)
	if !ok {
		return
	}

	settings, err := storage.SettingsOrDefault(r.Context(), h.Repo, key, h.Defaults)
	if err != nil {
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Failed to load settings", err, h.Env)
		return
	}

	h.render(w, r, http.StatusOK, web.SettingsPage{
		Key:      key,
		Settings: settings,
		Saved:    r.URL.Query().Get("saved") == "1",
	})
}

// Save handles POST /admin/widgets/{key}/settings. Invalid input re-renders
// the form with per-field messages and status 422.
func (h *SettingsHandler) Save(w http.ResponseWriter, r *http.Request) {
	key, ok := h.key(w, r)
	if !ok {
		return
	}

	if err := r.ParseForm(); err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid form submission", err, h.Env)
		return
	}

	settings, fieldErrs := parseSettings(r.PostForm)
	if err := settings.Validate(); err != nil {
		var verrs widget.FieldErrors
		if !errors.As(err, &verrs) {
			problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid settings", err, h.Env)
			return
		}
		for field, msg := range verrs {
			if _, seen := fieldErrs[field]; !seen {
				fieldErrs[field] = msg
			}
		}
	}
	if len(fieldErrs) > 0 {
		h.audit(r, key, audit.StatusFailure, nil, map[string]string(fieldErrs))
		h.render(w, r, http.StatusUnprocessableEntity, web.SettingsPage{Key: key, Settings: settings, Errors: fieldErrs})
		return
	}

	previous, err := storage.SettingsOrDefault(r.Context(), h.Repo, key, h.Defaults)
	if err != nil {
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Failed to load settings", err, h.Env)
		return
	}
	if err := h.Repo.SaveSettings(r.Context(), key, settings); err != nil {
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Failed to save settings", err, h.Env)
		return
	}
	changes, err := audit.Diff(previous, settings)
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Str("widget", key).Msg("settings diff failed")
	}
	h.audit(r, key, audit.StatusSuccess, changes, nil)

	http.Redirect(w, r, fmt.Sprintf("/admin/widgets/%s/settings?saved=1", key), http.StatusSeeOther)
}

func (h *SettingsHandler) audit(r *http.Request, key, status string, changes map[string]audit.Change, details map[string]string) {
	var actor string
	if claims := middleware.AdminClaims(r); claims != nil {
		actor = claims.Subject
	}
	h.Audit.LogFromRequest(r, audit.Entry{
		Action:       "widget.settings.update",
		Actor:        actor,
		ResourceType: "widget_settings",
		ResourceID:   key,
		RequestID:    middleware.GetRequestID(r.Context()),
		Status:       status,
		Changes:      changes,
		Details:      details,
	})
}

func (h *SettingsHandler) render(w http.ResponseWriter, r *http.Request, status int, page web.SettingsPage) {
	page.CSRFName = middleware.CSRFFieldName()
	page.CSRFToken = middleware.CSRFToken(r)
	renderHTML(w, r, h.Templates, "settings_form.html", status, page, h.Env)
}

func (h *SettingsHandler) key(w http.ResponseWriter, r *http.Request) (string, bool) {
	key := r.PathValue("key")
	if !widgetKeyPattern.MatchString(key) {
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Unknown widget", nil, h.Env,
			problem.WithDetail("Widget keys are lowercase letters, digits and underscores"))
		return "", false
	}
	return key, true
}

// parseSettings reads the submitted form. Numbers that do not parse are
// reported under their field name; the rest is left to Settings.Validate.
func parseSettings(values url.Values) (widget.Settings, widget.FieldErrors) {
	errs := widget.FieldErrors{}
	s := widget.Settings{
		SetAddressField:   values.Get("set_address_field") != "",
		LimitCountryCodes: strings.TrimSpace(values.Get("limit_countrycodes")),
		LimitViewbox:      strings.TrimSpace(values.Get("limit_viewbox")),
		TileServerURL:     strings.TrimSpace(values.Get("tileServerUrl")),
		ServiceURL:        strings.TrimSpace(values.Get("serviceUrl")),
	}

	if zoom, err := strconv.Atoi(strings.TrimSpace(values.Get("zoom"))); err != nil {
		errs["zoom"] = "must be a whole number"
	} else {
		s.Zoom = zoom
	}
	if lat, err := parseFloatField(values, "center_lat"); err != nil {
		errs["center_lat"] = "must be a number"
	} else {
		s.CenterLat = lat
	}
	if lng, err := parseFloatField(values, "center_lng"); err != nil {
		errs["center_lng"] = "must be a number"
	} else {
		s.CenterLng = lng
	}

	return s, errs
}

func parseFloatField(values url.Values, name string) (float64, error) {
	raw := strings.TrimSpace(values.Get(name))
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseFloat(raw, 64)
}
