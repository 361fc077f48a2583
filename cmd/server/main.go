package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kok-dashboard/internal/config"
	"kok-dashboard/internal/handlers"
	"kok-dashboard/internal/middleware"
	"kok-dashboard/internal/repository"
	"kok-dashboard/internal/services"
	"kok-dashboard/pkg/database"
	"kok-dashboard/pkg/logging"
	"kok-dashboard/pkg/metrics"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("kok-dashboard", version, logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[STARTUP] Starting monitoring dashboard", logging.Fields{
		"version":     version,
		"server_host": cfg.Server.Host,
		"server_port": cfg.Server.Port,
		"db_driver":   cfg.Database.Driver,
		"db_path":     cfg.Database.Path,
	})

	metricsCollector := metrics.NewCollector("kok_dashboard", prometheus.DefaultRegisterer)

	// The store is opened lazily; every request acquires and releases its own connection.
	db, err := database.Open(cfg.StoreConfig(), logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to open database", logging.Fields{}, err)
	}
	defer db.Close()

	if err := db.HealthCheck(ctx); err != nil {
		logger.Warn(ctx, "[STARTUP_DB_UNREACHABLE] Store not reachable, requests will fail until it is", logging.Fields{
			"error": err.Error(),
		})
	}

	if err := metricsCollector.RegisterDBStats(db.DB().DB, cfg.Database.Driver); err != nil {
		logger.Warn(ctx, "[STARTUP_METRICS] Failed to register database stats collector", logging.Fields{
			"error": err.Error(),
		})
	}

	stationRepo := repository.NewStationRepository(db, logger, metricsCollector)

	stationService := services.NewStationService(stationRepo, logger, metricsCollector, cfg.Dashboard.StationCacheTTL)
	detailService := services.NewDetailService(stationService, stationRepo, logger, metricsCollector, cfg.Dashboard.DropEmptyChartRows)

	dashboardHandler := handlers.NewDashboardHandler(stationService, detailService, stationRepo, logger, metricsCollector, clockwork.NewRealClock())

	router := mux.NewRouter()
	dashboardHandler.RegisterRoutes(router)
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      middleware.Wrap(router, logger, metricsCollector),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info(ctx, "[SERVER_START] HTTP server listening", logging.Fields{
			"address": server.Addr,
		})

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "[SERVER_ERROR] Server failed", logging.Fields{}, err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "[SHUTDOWN] Shutting down server...", logging.Fields{})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "[SHUTDOWN_ERROR] Server forced to shutdown", logging.Fields{}, err)
	}

	logger.Info(ctx, "[SHUTDOWN_COMPLETE] Server stopped", logging.Fields{})
}
