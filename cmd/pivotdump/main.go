package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"

	"kok-dashboard/internal/config"
	"kok-dashboard/internal/pivot"
	"kok-dashboard/internal/repository"
	"kok-dashboard/internal/services"
	"kok-dashboard/pkg/database"
	"kok-dashboard/pkg/logging"
	"kok-dashboard/pkg/metrics"
)

func main() {
	code := flag.String("station", "", "Station code to dump")
	flag.Parse()

	if strings.TrimSpace(*code) == "" {
		fmt.Fprintln(os.Stderr, "usage: pivotdump -station CODE")
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("kok-pivotdump", "1.0.0", logging.ParseLevel(cfg.Logging.Level))
	logger.SetOutput(os.Stderr)
	metricsCollector := metrics.NewCollector("kok_pivotdump", prometheus.NewRegistry())

	db, err := database.Open(cfg.StoreConfig(), logger, metricsCollector)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	repo := repository.NewStationRepository(db, logger, metricsCollector)
	stations := services.NewStationService(repo, logger, metricsCollector, 0)
	details := services.NewDetailService(stations, repo, logger, metricsCollector, cfg.Dashboard.DropEmptyChartRows)

	detail, found, err := details.Get(context.Background(), *code)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading station: %v\n", err)
		os.Exit(1)
	}
	if !found {
		fmt.Fprintf(os.Stderr, "station not found: %s\n", *code)
		os.Exit(1)
	}

	s := detail.Station
	fmt.Printf("%s  %s  %s / %s / %s / %s\n", s.Code, s.River, s.Location, s.Tambon, s.Amphoe, s.Province)
	printTable(os.Stdout, "WATER", detail.Water)
	printTable(os.Stdout, "SOIL", detail.Soil)
}

func printTable(out io.Writer, title string, table *pivot.Table) {
	fmt.Fprintf(out, "\n%s\n", title)
	if table.Empty() {
		fmt.Fprintln(out, "(no data)")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	header := []string{"parameter"}
	if table.Units != nil {
		header = append(header, "unit")
	}
	header = append(header, table.Keys()...)
	fmt.Fprintln(w, strings.Join(header, "\t"))

	for _, row := range table.Rows {
		cells := []string{row.Parameter}
		if table.Units != nil {
			cells = append(cells, row.Unit)
		}
		for _, key := range table.Keys() {
			if v := row.CheckValues[key]; v != nil {
				cells = append(cells, *v)
			} else {
				cells = append(cells, "-")
			}
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	w.Flush()
}
