package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kok-dashboard/pkg/logging"
	"kok-dashboard/pkg/metrics"
)

func assertCORS(t *testing.T, h http.Header) {
	t.Helper()
	assert.Equal(t, "*", h.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Content-Type,Authorization", h.Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "GET,PUT,POST,DELETE,OPTIONS", h.Get("Access-Control-Allow-Methods"))
}

func TestCORS_EveryResponse(t *testing.T) {
	router := mux.NewRouter()
	router.HandleFunc("/ok", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})
	router.HandleFunc("/boom", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "Error loading page: boom", http.StatusInternalServerError)
	})
	handler := CORS(router)

	for _, path := range []string{"/ok", "/boom", "/missing"} {
		t.Run(path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
			assertCORS(t, rec.Header())
		})
	}
}

func TestCORS_Preflight(t *testing.T) {
	called := false
	handler := CORS(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/stations", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, called)
	assertCORS(t, rec.Header())
}

func TestRecovery(t *testing.T) {
	m := metrics.NewCollector("test", prometheus.NewRegistry())
	handler := Recovery(logging.NewNopLogger(), m)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("template exploded")
	}))

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/station/KK01", nil))
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Internal server error")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.APIErrorsTotal.WithLabelValues("panic", "/station/KK01")))
}

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = logging.RequestID(r.Context())
	}))

	t.Run("propagates caller id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "req-42")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, "req-42", seen)
		assert.Equal(t, "req-42", rec.Header().Get(RequestIDHeader))
	})

	t.Run("generates when absent", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
	})
}

func TestAccessLog(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewStructuredLogger("test", "0", logging.InfoLevel)
	logger.SetOutput(&buf)
	m := metrics.NewCollector("test", prometheus.NewRegistry())

	router := mux.NewRouter()
	router.HandleFunc("/station/{code}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	handler := RequestID(AccessLog(logger, m, router)(router))

	req := httptest.NewRequest(http.MethodGet, "/station/ZZ99", nil)
	req.Header.Set(RequestIDHeader, "req-7")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.APIRequestsTotal.WithLabelValues("/station/{code}", "GET", "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.APIRequestsTotal.WithLabelValues("unmatched", "GET", "404")))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var entry logging.LogEntry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "req-7", entry.RequestID)
	assert.Equal(t, "[HTTP_REQUEST] Request served", entry.Message)
	assert.Equal(t, "/station/ZZ99", entry.Fields["path"])
	assert.Equal(t, float64(404), entry.Fields["status"])
}

func TestWrap_PanicIsLoggedAndCounted(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewStructuredLogger("test", "0", logging.InfoLevel)
	logger.SetOutput(&buf)
	m := metrics.NewCollector("test", prometheus.NewRegistry())

	router := mux.NewRouter()
	router.HandleFunc("/station/{code}", func(http.ResponseWriter, *http.Request) {
		panic("template exploded")
	})
	handler := Wrap(router, logger, m)

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/station/KK01", nil))
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assertCORS(t, rec.Header())
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.APIRequestsTotal.WithLabelValues("/station/{code}", "GET", "500")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.APIErrorsTotal.WithLabelValues("panic", "/station/KK01")))

	var access *logging.LogEntry
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry logging.LogEntry
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if strings.HasPrefix(entry.Message, "[HTTP_REQUEST]") {
			access = &entry
		}
	}
	require.NotNil(t, access, buf.String())
	assert.Equal(t, "[HTTP_REQUEST] Request failed", access.Message)
	assert.Equal(t, float64(500), access.Fields["status"])
	assert.Equal(t, rec.Header().Get(RequestIDHeader), access.RequestID)
}
