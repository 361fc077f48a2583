package services

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/patrickmn/go-cache"

	"kok-dashboard/internal/models"
	"kok-dashboard/internal/repository"
	"kok-dashboard/pkg/logging"
	"kok-dashboard/pkg/metrics"
)

const stationsCacheKey = "stations"

// StationService is the station directory: listing, lookup, and the derived
// filter sets used by the list page.
type StationService struct {
	repo    repository.StationRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
	cache   *cache.Cache // nil when caching is disabled
}

// StationListView is everything the station list page renders
type StationListView struct {
	Stations  []*models.Station        `json:"stations"`
	Filters   models.StationFilters    `json:"filters"`
	Hierarchy models.LocationHierarchy `json:"location_hierarchy"`
}

// NewStationService creates a new station service. A positive cacheTTL keeps the
// station list in memory for that long; zero reads the store on every call.
func NewStationService(repo repository.StationRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector, cacheTTL time.Duration) *StationService {
	s := &StationService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
	if cacheTTL > 0 {
		s.cache = cache.New(cacheTTL, 2*cacheTTL)
	}
	return s
}

// ListAll returns every station sorted by (river, station code)
func (s *StationService) ListAll(ctx context.Context) ([]*models.Station, error) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(stationsCacheKey); ok {
			s.metrics.RecordCacheLookup(true)
			return cached.([]*models.Station), nil
		}
		s.metrics.RecordCacheLookup(false)
	}

	stations, err := s.repo.ListStations(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.SetDefault(stationsCacheKey, stations)
	}
	return stations, nil
}

// GetByCode looks a station up by its trimmed code. A missing station is
// reported through found=false, not as an error.
func (s *StationService) GetByCode(ctx context.Context, code string) (station *models.Station, found bool, err error) {
	station, err = s.repo.GetStationByCode(ctx, code)
	if repository.IsNotFound(err) {
		s.logger.Debug(ctx, "[STATION_NOT_FOUND] No station with code", logging.Fields{
			"station_code": code,
		})
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return station, true, nil
}

// ListView loads the stations and derives the list page's filters
func (s *StationService) ListView(ctx context.Context) (*StationListView, error) {
	stations, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	return &StationListView{
		Stations:  stations,
		Filters:   DeriveFilters(stations),
		Hierarchy: BuildHierarchy(stations),
	}, nil
}

// DeriveFilters collects the non-empty rivers, provinces, tambons and amphoes,
// each de-duplicated and sorted independently.
func DeriveFilters(stations []*models.Station) models.StationFilters {
	rivers := make(map[string]struct{})
	provinces := make(map[string]struct{})
	tambons := make(map[string]struct{})
	amphoes := make(map[string]struct{})

	for _, st := range stations {
		addNonEmpty(rivers, st.River)
		addNonEmpty(provinces, st.Province)
		addNonEmpty(tambons, st.Tambon)
		addNonEmpty(amphoes, st.Amphoe)
	}

	return models.StationFilters{
		Rivers:    sortedKeys(rivers),
		Provinces: sortedKeys(provinces),
		Tambons:   sortedKeys(tambons),
		Amphoes:   sortedKeys(amphoes),
	}
}

// BuildHierarchy nests tambons under amphoes under provinces. Stations missing
// any of the three levels are skipped.
func BuildHierarchy(stations []*models.Station) models.LocationHierarchy {
	sets := make(map[string]map[string]map[string]struct{})
	for _, st := range stations {
		if st.Province == "" || st.Amphoe == "" || st.Tambon == "" {
			continue
		}
		amphoes, ok := sets[st.Province]
		if !ok {
			amphoes = make(map[string]map[string]struct{})
			sets[st.Province] = amphoes
		}
		tambons, ok := amphoes[st.Amphoe]
		if !ok {
			tambons = make(map[string]struct{})
			amphoes[st.Amphoe] = tambons
		}
		tambons[st.Tambon] = struct{}{}
	}

	hierarchy := make(models.LocationHierarchy, len(sets))
	for province, amphoes := range sets {
		hierarchy[province] = make(map[string][]string, len(amphoes))
		for amphoe, tambons := range amphoes {
			hierarchy[province][amphoe] = sortedKeys(tambons)
		}
	}
	return hierarchy
}

func addNonEmpty(set map[string]struct{}, v string) {
	if v != "" {
		set[v] = struct{}{}
	}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsLoadError reports whether err came from the store rather than from a lookup miss
func IsLoadError(err error) bool {
	var le *repository.LoadError
	return errors.As(err, &le)
}
