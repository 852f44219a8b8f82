package middleware

import (
	"net/http"
)

const (
	// DefaultMaxBodySize bounds form posts: a handful of coordinates and an address.
	DefaultMaxBodySize int64 = 64 << 10
)

// RequestSize limits the size of incoming request bodies with
// http.MaxBytesReader. Handlers see an error from the body reader once the
// limit is crossed and answer 413.
func RequestSize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// FormRequestSize applies DefaultMaxBodySize.
func FormRequestSize() func(http.Handler) http.Handler {
	return RequestSize(DefaultMaxBodySize)
}
