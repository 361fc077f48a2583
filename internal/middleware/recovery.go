package middleware

import (
	"fmt"
	"net/http"

	"kok-dashboard/pkg/logging"
	"kok-dashboard/pkg/metrics"
)

// Recovery turns a handler panic into a plain text 500
func Recovery(logger *logging.StructuredLogger, metricsCollector *metrics.Collector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logger.Error(r.Context(), "[PANIC_RECOVERED] Handler panicked", logging.Fields{
					"method": r.Method,
					"path":   r.URL.Path,
				}, fmt.Errorf("panic: %v", rec))
				metricsCollector.RecordAPIError("panic", r.URL.Path)

				w.Header().Set("Content-Type", "text/plain; charset=utf-8")
				w.WriteHeader(http.StatusInternalServerError)
				fmt.Fprintln(w, "Internal server error")
			}()
			next.ServeHTTP(w, r)
		})
	}
}
