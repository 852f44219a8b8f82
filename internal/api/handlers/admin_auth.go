package handlers

import (
	"errors"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/Togather-Foundation/geowidget/internal/api/middleware"
	"github.com/Togather-Foundation/geowidget/internal/api/problem"
	"github.com/Togather-Foundation/geowidget/internal/audit"
	"github.com/Togather-Foundation/geowidget/internal/auth"
	"github.com/Togather-Foundation/geowidget/web"
)

// defaultAdminLanding is where a login without a next target ends up.
const defaultAdminLanding = "/admin/widgets/location/settings"

// AdminAuthHandler logs the administrator in and out with an HttpOnly
// token cookie.
type AdminAuthHandler struct {
	JWT         *auth.JWTManager
	Credentials auth.Credentials
	Templates   *template.Template
	Audit       *audit.Logger
	Env         string
}

func NewAdminAuthHandler(manager *auth.JWTManager, creds auth.Credentials, tmpl *template.Template, auditLog *audit.Logger, env string) *AdminAuthHandler {
	return &AdminAuthHandler{JWT: manager, Credentials: creds, Templates: tmpl, Audit: auditLog, Env: env}
}

// LoginPage handles GET /admin/login.
func (h *AdminAuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	next := middleware.SafeNext(r.URL.Query().Get("next"), defaultAdminLanding)

	// Already logged in
	if cookie, err := r.Cookie(middleware.AdminAuthCookieName); err == nil && cookie.Value != "" {
		if claims, err := h.JWT.Validate(cookie.Value); err == nil && auth.IsAdmin(claims.Role) {
			http.Redirect(w, r, next, http.StatusFound)
			return
		}
	}

	h.render(w, r, http.StatusOK, web.LoginPage{Next: next})
}

// Login handles POST /admin/login.
func (h *AdminAuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid form submission", err, h.Env)
		return
	}
	username := strings.TrimSpace(r.PostForm.Get("username"))
	next := middleware.SafeNext(r.PostForm.Get("next"), defaultAdminLanding)

	if err := h.Credentials.Verify(username, r.PostForm.Get("password")); err != nil {
		h.audit(r, username, audit.StatusFailure, err)
		page := web.LoginPage{Username: username, Next: next, Error: "Invalid username or password."}
		if errors.Is(err, auth.ErrLoginDisabled) {
			page.Error = ""
			page.Disabled = true
		}
		h.render(w, r, http.StatusUnauthorized, page)
		return
	}

	token, err := h.JWT.Generate(username, auth.RoleAdmin)
	if err != nil {
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", err, h.Env)
		return
	}
	h.audit(r, username, audit.StatusSuccess, nil)

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AdminAuthCookieName,
		Value:    token,
		Path:     "/admin",
		Expires:  time.Now().Add(h.JWT.Expiry()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, next, http.StatusSeeOther)
}

// Logout handles POST /admin/logout.
func (h *AdminAuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AdminAuthCookieName,
		Value:    "",
		Path:     "/admin",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, middleware.AdminLoginPath, http.StatusSeeOther)
}

func (h *AdminAuthHandler) audit(r *http.Request, username, status string, err error) {
	entry := audit.Entry{
		Action:    "admin.login",
		Actor:     username,
		RequestID: middleware.GetRequestID(r.Context()),
		Status:    status,
	}
	if err != nil {
		entry.Details = map[string]string{"reason": err.Error()}
	}
	h.Audit.LogFromRequest(r, entry)
}

func (h *AdminAuthHandler) render(w http.ResponseWriter, r *http.Request, status int, page web.LoginPage) {
	if !h.Credentials.Enabled() {
		page.Disabled = true
	}
	page.CSRFName = middleware.CSRFFieldName()
	page.CSRFToken = middleware.CSRFToken(r)
	renderHTML(w, r, h.Templates, "login.html", status, page, h.Env)
}
