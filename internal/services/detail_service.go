package services

import (
	"context"

	"kok-dashboard/internal/models"
	"kok-dashboard/internal/pivot"
	"kok-dashboard/internal/repository"
	"kok-dashboard/pkg/logging"
	"kok-dashboard/pkg/metrics"
)

// DetailService assembles a station with its water and soil pivot tables
type DetailService struct {
	stations *StationService
	repo     repository.StationRepository
	logger   *logging.StructuredLogger
	metrics  *metrics.Collector

	dropEmptyChartRows bool
}

// StationDetail is everything the station detail page renders
type StationDetail struct {
	Station *models.Station `json:"station"`
	Water   *pivot.Table    `json:"water"`
	Soil    *pivot.Table    `json:"soil"`
}

// NewDetailService creates a new detail service
func NewDetailService(stations *StationService, repo repository.StationRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector, dropEmptyChartRows bool) *DetailService {
	return &DetailService{
		stations:           stations,
		repo:               repo,
		logger:             logger,
		metrics:            metricsCollector,
		dropEmptyChartRows: dropEmptyChartRows,
	}
}

// Get loads the station and both pivot tables. found is false when no station
// has the code; the measurement tables are not queried in that case.
func (s *DetailService) Get(ctx context.Context, code string) (detail *StationDetail, found bool, err error) {
	station, found, err := s.stations.GetByCode(ctx, code)
	if err != nil || !found {
		return nil, found, err
	}

	water, err := s.Pivot(ctx, models.DatasetWater, code)
	if err != nil {
		return nil, true, err
	}

	soil, err := s.Pivot(ctx, models.DatasetSoil, code)
	if err != nil {
		return nil, true, err
	}

	return &StationDetail{Station: station, Water: water, Soil: soil}, true, nil
}

// Pivot loads one dataset of a station and reshapes it
func (s *DetailService) Pivot(ctx context.Context, dataset models.Dataset, code string) (*pivot.Table, error) {
	log := s.logger.WithFields(logging.Fields{
		"dataset":      dataset,
		"station_code": code,
	})

	rows, err := s.repo.ListMeasurements(ctx, dataset, code)
	if err != nil {
		log.Error(ctx, "[PIVOT_LOAD_ERROR] Failed to load measurements", logging.Fields{}, err)
		return nil, err
	}

	timer := s.metrics.NewTimer(s.metrics.PivotBuildDuration.WithLabelValues(string(dataset)))
	opts := pivot.OptionsFor(dataset)
	opts.DropEmptyChartRows = s.dropEmptyChartRows
	table := pivot.Build(rows, opts)
	timer.ObserveDuration()

	s.metrics.RecordPivot(string(dataset), len(table.Parameters), len(table.CheckNumbers))

	log.Debug(ctx, "[PIVOT_BUILT] Pivot table built", logging.Fields{
		"rows":          len(rows),
		"parameters":    len(table.Parameters),
		"check_numbers": len(table.CheckNumbers),
	})

	return table, nil
}
