package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"kok-dashboard/internal/config"
	"kok-dashboard/internal/importer"
	"kok-dashboard/pkg/database"
	"kok-dashboard/pkg/logging"
	"kok-dashboard/pkg/metrics"
)

func main() {
	csvDir := flag.String("csv-dir", ".", "Directory containing station.csv, water_raw_melted.csv and soil_raw_melted.csv")
	dbPath := flag.String("db", "", "SQLite file to create (defaults to DB_PATH)")
	stripBOM := flag.Bool("strip-bom", false, "Drop a leading byte order mark from each CSV before import")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("kok-importer", "1.0.0", logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[IMPORTER_START] Starting CSV import", logging.Fields{
		"csv_dir":   *csvDir,
		"db_driver": cfg.Database.Driver,
		"db_path":   cfg.Database.Path,
		"strip_bom": *stripBOM,
	})

	metricsCollector := metrics.NewCollector("kok_importer", prometheus.NewRegistry())

	// Drop-and-recreate: an SQLite store is rebuilt from an empty file, a
	// Postgres store has each table dropped by the importer.
	if cfg.Database.Driver == database.DriverSQLite {
		if err := os.Remove(cfg.Database.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Fatal(ctx, "[IMPORTER_ERROR] Failed to remove existing store", logging.Fields{
				"db_path": cfg.Database.Path,
			}, err)
		}
	}

	dbConfig := cfg.StoreConfig()
	dbConfig.ReadOnly = false
	dbConfig.MaxOpenConns = 1

	db, err := database.Open(dbConfig, logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[IMPORTER_ERROR] Failed to open database", logging.Fields{}, err)
	}
	defer db.Close()

	im := importer.New(db, logger, metricsCollector, clockwork.NewRealClock())
	im.StripBOM = *stripBOM

	result, err := im.ImportDirectory(ctx, *csvDir, importer.DefaultSources)
	if err != nil {
		logger.Fatal(ctx, "[IMPORTER_ERROR] Import failed", logging.Fields{}, err)
	}

	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("IMPORT COMPLETE")
	fmt.Println(strings.Repeat("=", 60))
	for _, t := range result.Tables {
		fmt.Printf("%-14s %6d rows  %2d columns  (%s)\n", t.Table, t.Rows, len(t.Columns), t.File)
	}
	for _, path := range result.Missing {
		fmt.Printf("missing        %s\n", path)
	}
	fmt.Printf("Total Rows:    %d\n", result.TotalRows)
	fmt.Printf("Duration:      %v\n", result.Duration)
	if cfg.Database.Driver == database.DriverSQLite {
		fmt.Printf("Store:         %s\n", cfg.Database.Path)
	}
}
