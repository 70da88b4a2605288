package middleware

import (
	"net/http"
)

// DefaultMaxBodySize caps request bodies at 1MB. Events, tasks, and budget
// items are all small JSON documents.
const DefaultMaxBodySize int64 = 1 << 20

// RequestSize limits the size of incoming request bodies via
// http.MaxBytesReader. Bodies over the limit fail the first read with 413.
func RequestSize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

			next.ServeHTTP(w, r)
		})
	}
}
