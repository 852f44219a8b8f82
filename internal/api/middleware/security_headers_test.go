package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSecurityHeaders_AllHeaders(t *testing.T) {
	handler := SecurityHeaders(false)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/entities/e1", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	tests := []struct {
		header   string
		expected string
	}{
		{"X-Frame-Options", "DENY"},
		{"X-Content-Type-Options", "nosniff"},
		{"Referrer-Policy", "strict-origin-when-cross-origin"},
		{"Content-Security-Policy", ContentSecurityPolicy},
	}

	for _, tt := range tests {
		if got := rec.Header().Get(tt.header); got != tt.expected {
			t.Errorf("expected %s: %s, got %s", tt.header, tt.expected, got)
		}
	}

	csp := rec.Header().Get("Content-Security-Policy")
	for _, directive := range []string{"connect-src 'self' ws: wss:", "script-src 'self' https://unpkg.com"} {
		if !strings.Contains(csp, directive) {
			t.Errorf("CSP missing %q", directive)
		}
	}
}

func TestSecurityHeaders_HSTS(t *testing.T) {
	tests := []struct {
		name         string
		requireHTTPS bool
		tls          bool
		want         bool
	}{
		{name: "development", requireHTTPS: false, tls: true, want: false},
		{name: "production over TLS", requireHTTPS: true, tls: true, want: true},
		{name: "production over plain HTTP", requireHTTPS: true, tls: false, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := SecurityHeaders(tt.requireHTTPS)(okHandler())

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.tls {
				req.TLS = &tls.ConnectionState{}
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			got := rec.Header().Get("Strict-Transport-Security") != ""
			if got != tt.want {
				t.Errorf("HSTS set = %v, want %v", got, tt.want)
			}
		})
	}
}
