package middleware

import (
	"net/http"

	"github.com/Togather-Foundation/geowidget/internal/api/problem"
	"github.com/gorilla/csrf"
)

// CSRFProtection guards the HTML forms (entity form, widget settings) with
// gorilla/csrf double-submit tokens. JSON and WebSocket routes are not
// wrapped; the WebSocket relies on the form token and the origin check.
//
// When secure is false the requests are marked as plaintext HTTP so the
// referer check does not demand https in development.
func CSRFProtection(authKey []byte, secure bool) func(http.Handler) http.Handler {
	protect := csrf.Protect(authKey,
		csrf.Secure(secure),
		csrf.Path("/"),
		csrf.HttpOnly(true),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.ErrorHandler(http.HandlerFunc(csrfErrorHandler)),
	)

	return func(next http.Handler) http.Handler {
		protected := protect(next)
		if secure {
			return protected
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			protected.ServeHTTP(w, csrf.PlaintextHTTPRequest(r))
		})
	}
}

func csrfErrorHandler(w http.ResponseWriter, r *http.Request) {
	problem.Write(w, r, http.StatusForbidden,
		problem.TypeCSRF,
		"CSRF token validation failed",
		csrf.FailureReason(r),
		"")
}

// CSRFToken extracts the CSRF token from the request context for embedding in forms
func CSRFToken(r *http.Request) string {
	return csrf.Token(r)
}

// CSRFFieldName returns the name attribute for the CSRF token hidden field
func CSRFFieldName() string {
	return "gorilla.csrf.Token"
}
