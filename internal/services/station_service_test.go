package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kok-dashboard/internal/models"
	"kok-dashboard/internal/repository"
	"kok-dashboard/internal/testutil"
	"kok-dashboard/pkg/logging"
)

// --- mocks ---

type mockRepository struct {
	stations     []*models.Station
	measurements map[models.Dataset][]*models.MeasurementRow
	err          error

	listCalls        int
	measurementCalls int
}

func (m *mockRepository) ListStations(_ context.Context) ([]*models.Station, error) {
	m.listCalls++
	if m.err != nil {
		return nil, m.err
	}
	return m.stations, nil
}

func (m *mockRepository) GetStationByCode(_ context.Context, code string) (*models.Station, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, s := range m.stations {
		if s.Code == code {
			return s, nil
		}
	}
	return nil, &repository.NotFoundError{Resource: "station", ID: code}
}

func (m *mockRepository) ListMeasurements(_ context.Context, dataset models.Dataset, _ string) ([]*models.MeasurementRow, error) {
	m.measurementCalls++
	if m.err != nil {
		return nil, m.err
	}
	return m.measurements[dataset], nil
}

func (m *mockRepository) HealthCheck(_ context.Context) error { return m.err }

func sampleStations() []*models.Station {
	return []*models.Station{
		{ID: 1, River: "กก", Code: "KK01", Tambon: "ท่าตอน", Amphoe: "แม่อาย", Province: "เชียงใหม่"},
		{ID: 2, River: "กก", Code: "KK02", Tambon: "มะลิกา", Amphoe: "แม่อาย", Province: "เชียงใหม่"},
		{ID: 3, River: "กก", Code: "KK03", Tambon: "ท่าตอน", Amphoe: "แม่อาย", Province: "เชียงใหม่"},
		{ID: 4, River: "สาย", Code: "SA01", Tambon: "เวียงพางคำ", Amphoe: "แม่สาย", Province: "เชียงราย"},
		{ID: 5, River: "", Code: "XX01", Tambon: "", Amphoe: "เมืองเชียงราย", Province: "เชียงราย"},
	}
}

func newStationService(repo repository.StationRepository, ttl time.Duration) *StationService {
	return NewStationService(repo, logging.NewNopLogger(), testutil.Metrics(), ttl)
}

func TestDeriveFilters(t *testing.T) {
	filters := DeriveFilters(sampleStations())

	assert.Equal(t, []string{"กก", "สาย"}, filters.Rivers)
	assert.Equal(t, []string{"เชียงราย", "เชียงใหม่"}, filters.Provinces)
	assert.Equal(t, []string{"ท่าตอน", "มะลิกา", "เวียงพางคำ"}, filters.Tambons)
	assert.Equal(t, []string{"เมืองเชียงราย", "แม่สาย", "แม่อาย"}, filters.Amphoes)
}

func TestDeriveFilters_Empty(t *testing.T) {
	filters := DeriveFilters(nil)

	assert.Empty(t, filters.Rivers)
	assert.NotNil(t, filters.Rivers)
}

func TestBuildHierarchy(t *testing.T) {
	hierarchy := BuildHierarchy(sampleStations())

	want := models.LocationHierarchy{
		"เชียงใหม่": {
			"แม่อาย": {"ท่าตอน", "มะลิกา"},
		},
		"เชียงราย": {
			"แม่สาย": {"เวียงพางคำ"},
		},
	}
	assert.Equal(t, want, hierarchy)
}

func TestGetByCode(t *testing.T) {
	svc := newStationService(&mockRepository{stations: sampleStations()}, 0)
	ctx := context.Background()

	station, found, err := svc.GetByCode(ctx, "KK02")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(2), station.ID)

	station, found, err = svc.GetByCode(ctx, "NOPE")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, station)
}

func TestGetByCode_LoadFailure(t *testing.T) {
	loadErr := &repository.LoadError{Op: "get station", Err: errors.New("disk I/O error")}
	svc := newStationService(&mockRepository{err: loadErr}, 0)

	_, found, err := svc.GetByCode(context.Background(), "KK01")
	assert.False(t, found)
	require.Error(t, err)
	assert.True(t, IsLoadError(err))
}

func TestListAll_Cache(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		repo := &mockRepository{stations: sampleStations()}
		svc := newStationService(repo, 0)

		for i := 0; i < 2; i++ {
			_, err := svc.ListAll(context.Background())
			require.NoError(t, err)
		}
		assert.Equal(t, 2, repo.listCalls)
	})

	t.Run("enabled", func(t *testing.T) {
		repo := &mockRepository{stations: sampleStations()}
		svc := newStationService(repo, time.Minute)

		for i := 0; i < 3; i++ {
			stations, err := svc.ListAll(context.Background())
			require.NoError(t, err)
			assert.Len(t, stations, 5)
		}
		assert.Equal(t, 1, repo.listCalls)
	})

	t.Run("errors are not cached", func(t *testing.T) {
		repo := &mockRepository{err: errors.New("boom")}
		svc := newStationService(repo, time.Minute)

		_, err := svc.ListAll(context.Background())
		require.Error(t, err)

		repo.err = nil
		repo.stations = sampleStations()
		stations, err := svc.ListAll(context.Background())
		require.NoError(t, err)
		assert.Len(t, stations, 5)
	})
}

func TestListView_FromStore(t *testing.T) {
	db := testutil.NewStore(t, testutil.DefaultCSVs())
	repo := repository.NewStationRepository(db, logging.NewNopLogger(), testutil.Metrics())
	svc := newStationService(repo, 0)

	view, err := svc.ListView(context.Background())
	require.NoError(t, err)

	assert.Len(t, view.Stations, 5)
	assert.Equal(t, []string{"กก", "รวก", "สาย"}, view.Filters.Rivers)
	assert.Equal(t, []string{"เชียงราย", "เชียงใหม่"}, view.Filters.Provinces)
	assert.Equal(t, []string{"ท่าตอน"}, view.Hierarchy["เชียงใหม่"]["แม่อาย"])
	assert.Equal(t, []string{"เวียงพางคำ"}, view.Hierarchy["เชียงราย"]["แม่สาย"])
	assert.Equal(t, []string{"รอบเวียง"}, view.Hierarchy["เชียงราย"]["เมืองเชียงราย"])
}
