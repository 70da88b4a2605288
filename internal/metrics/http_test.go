package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestHTTPMiddlewareRecordsRequests(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle("GET /ping/{id}", HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "GET /ping/{id}", "418"))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping/42", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)

	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "GET /ping/{id}", "418"))
	require.Equal(t, before+1, after)
}

func TestHTTPMiddlewareDefaultsStatusToOK(t *testing.T) {
	handler := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "200"))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bare", nil))

	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "200"))
	require.Equal(t, before+1, after)
}
