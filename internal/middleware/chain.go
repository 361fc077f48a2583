package middleware

import (
	"net/http"

	"github.com/gorilla/mux"

	"kok-dashboard/pkg/logging"
	"kok-dashboard/pkg/metrics"
)

// Wrap applies the server middleware around router. Recovery sits innermost so
// a panicking handler still reaches AccessLog as a 500, and CORS wraps the
// router itself so unmatched routes carry the headers too.
func Wrap(router *mux.Router, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) http.Handler {
	var handler http.Handler = router
	handler = Recovery(logger, metricsCollector)(handler)
	handler = AccessLog(logger, metricsCollector, router)(handler)
	handler = CORS(handler)
	return RequestID(handler)
}
