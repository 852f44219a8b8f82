package middleware

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/Togather-Foundation/geowidget/internal/api/problem"
	"github.com/Togather-Foundation/geowidget/internal/auth"
)

// AdminAuthCookieName holds the admin session token.
const AdminAuthCookieName = "geowidget_admin_token"

// AdminLoginPath is where unauthenticated page views are sent.
const AdminLoginPath = "/admin/login"

type contextKeyAuth string

const adminClaimsKey contextKeyAuth = "adminClaims"

// AdminAuthCookie requires a valid admin token cookie. Page views without
// one are redirected to the login form; any other method is refused with
// 401 so a rejected write is never mistaken for success.
func AdminAuthCookie(manager *auth.JWTManager, env string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if manager == nil {
				problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Unauthorized", nil, env)
				return
			}

			var claims *auth.Claims
			cookie, err := r.Cookie(AdminAuthCookieName)
			if err == nil && strings.TrimSpace(cookie.Value) != "" {
				claims, err = manager.Validate(cookie.Value)
			}
			if claims == nil {
				if r.Method == http.MethodGet || r.Method == http.MethodHead {
					http.Redirect(w, r, LoginRedirect(r.URL.RequestURI()), http.StatusFound)
					return
				}
				if err == nil {
					err = auth.ErrMissingToken
				}
				problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Authentication required", err, env)
				return
			}

			if !auth.IsAdmin(claims.Role) {
				problem.Write(w, r, http.StatusForbidden, problem.TypeForbidden, "Insufficient permissions", nil, env)
				return
			}

			next.ServeHTTP(w, r.WithContext(contextWithAdminClaims(r.Context(), claims)))
		})
	}
}

// LoginRedirect returns the login URL that comes back to next afterwards.
func LoginRedirect(next string) string {
	return AdminLoginPath + "?next=" + url.QueryEscape(next)
}

// SafeNext returns next when it is a local path, else the fallback.
func SafeNext(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, `\`) {
		return fallback
	}
	return next
}

func contextWithAdminClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, adminClaimsKey, claims)
}

func AdminClaims(r *http.Request) *auth.Claims {
	if r == nil {
		return nil
	}
	if claims, ok := r.Context().Value(adminClaimsKey).(*auth.Claims); ok {
		return claims
	}
	return nil
}
