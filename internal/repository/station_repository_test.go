package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kok-dashboard/internal/importer"
	"kok-dashboard/internal/models"
	"kok-dashboard/internal/testutil"
	"kok-dashboard/pkg/database"
	"kok-dashboard/pkg/logging"
)

func newTestRepository(t *testing.T, files map[string]string) StationRepository {
	t.Helper()
	db := testutil.NewStore(t, files)
	return NewStationRepository(db, logging.NewNopLogger(), testutil.Metrics())
}

func TestListStations_SortedAndTrimmed(t *testing.T) {
	repo := newTestRepository(t, testutil.DefaultCSVs())

	stations, err := repo.ListStations(context.Background())
	require.NoError(t, err)

	codes := make([]string, 0, len(stations))
	for _, s := range stations {
		codes = append(codes, s.Code)
	}
	assert.Equal(t, []string{"KK01", "KK02", "KK03", "RK01", "SA01"}, codes)

	kk02 := stations[1]
	assert.Equal(t, "กก", kk02.River)
	assert.Equal(t, "สะพานบ้านท่าตอน", kk02.Location)
	assert.Equal(t, "ท่าตอน", kk02.Tambon)
	assert.Equal(t, "แม่อาย", kk02.Amphoe)
	assert.Equal(t, "เชียงใหม่", kk02.Province)
	assert.NotZero(t, kk02.ID)

	rk01 := stations[3]
	assert.Empty(t, rk01.Location)
	assert.Empty(t, rk01.Province)
}

func TestGetStationByCode_RoundTrip(t *testing.T) {
	repo := newTestRepository(t, testutil.DefaultCSVs())
	ctx := context.Background()

	stations, err := repo.ListStations(ctx)
	require.NoError(t, err)

	for _, want := range stations {
		got, err := repo.GetStationByCode(ctx, want.Code)
		require.NoError(t, err, want.Code)
		assert.Equal(t, want, got)
	}
}

func TestGetStationByCode_Matching(t *testing.T) {
	repo := newTestRepository(t, testutil.DefaultCSVs())
	ctx := context.Background()

	t.Run("surrounding whitespace is ignored", func(t *testing.T) {
		s, err := repo.GetStationByCode(ctx, "  KK01 ")
		require.NoError(t, err)
		assert.Equal(t, "KK01", s.Code)
	})

	t.Run("stored whitespace is ignored", func(t *testing.T) {
		s, err := repo.GetStationByCode(ctx, "KK02")
		require.NoError(t, err)
		assert.Equal(t, "KK02", s.Code)
	})

	t.Run("casing is significant", func(t *testing.T) {
		_, err := repo.GetStationByCode(ctx, "kk01")
		assert.True(t, IsNotFound(err))
	})

	t.Run("unknown code", func(t *testing.T) {
		s, err := repo.GetStationByCode(ctx, "ZZ99")
		assert.Nil(t, s)
		require.Error(t, err)
		assert.True(t, IsNotFound(err))
		assert.Equal(t, "station not found: ZZ99", err.Error())
	})
}

// irregularWhitespaceCSVs adds stations whose stored codes end in a tab and a
// no-break space, each with one water row stored the same way.
func irregularWhitespaceCSVs() map[string]string {
	files := testutil.DefaultCSVs()
	files["station.csv"] += "กก,KK09\t,ท้ายน้ำ,ท่าตอน,แม่อาย,เชียงใหม่\n" +
		"กก,KK10\u00a0,ท้ายน้ำ,ท่าตอน,แม่อาย,เชียงใหม่\n"
	files["water_raw_melted.csv"] += "pH,KK09\t,จุดที่ 1,1,6.8,6.8,pH unit\n" +
		"pH,\u00a0KK10\u00a0,จุดที่ 1,1,6.9,6.9,pH unit\n"
	return files
}

func TestGetStationByCode_IrregularWhitespace(t *testing.T) {
	repo := newTestRepository(t, irregularWhitespaceCSVs())
	ctx := context.Background()

	stations, err := repo.ListStations(ctx)
	require.NoError(t, err)
	require.Len(t, stations, 7)

	for _, code := range []string{"KK09", "KK10"} {
		t.Run(code, func(t *testing.T) {
			s, err := repo.GetStationByCode(ctx, code)
			require.NoError(t, err)
			assert.Equal(t, code, s.Code)
		})
	}
}

func TestListMeasurements_IrregularWhitespace(t *testing.T) {
	repo := newTestRepository(t, irregularWhitespaceCSVs())

	tests := []struct {
		code string
		want float64
	}{
		{"KK09", 6.8},
		{"KK10", 6.9},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			rows, err := repo.ListMeasurements(context.Background(), models.DatasetWater, tt.code)
			require.NoError(t, err)
			require.Len(t, rows, 1)
			assert.Equal(t, tt.want, rows[0].NumericValue)
		})
	}
}

func TestListMeasurements_Water(t *testing.T) {
	repo := newTestRepository(t, testutil.DefaultCSVs())

	rows, err := repo.ListMeasurements(context.Background(), models.DatasetWater, "KK01")
	require.NoError(t, err)
	require.Len(t, rows, 4)

	// "A" casts to 0 and therefore leads the integer ordering
	assert.Equal(t, "DO", rows[0].Parameter)
	assert.Equal(t, "A", rows[0].CheckNumber)
	assert.Equal(t, "mg/l", rows[0].Unit)

	assert.Equal(t, "pH", rows[1].Parameter)
	assert.Equal(t, "1", rows[1].CheckNumber)
	assert.Equal(t, "จุดที่ 1", rows[1].Location)

	assert.Equal(t, "DO", rows[2].Parameter)
	require.NotNil(t, rows[2].DisplayValue)
	assert.Equal(t, "6.0", *rows[2].DisplayValue)
	assert.Equal(t, 6.0, rows[2].NumericValue)

	assert.Equal(t, "pH", rows[3].Parameter)
	assert.Equal(t, 7.5, rows[3].NumericValue)
}

func TestListMeasurements_WaterStoredCodeIsTrimmed(t *testing.T) {
	repo := newTestRepository(t, testutil.DefaultCSVs())

	rows, err := repo.ListMeasurements(context.Background(), models.DatasetWater, "KK02")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 7.0, rows[0].NumericValue)
}

func TestListMeasurements_Soil(t *testing.T) {
	repo := newTestRepository(t, testutil.DefaultCSVs())

	rows, err := repo.ListMeasurements(context.Background(), models.DatasetSoil, "KK01")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "ตะกั่ว", rows[0].Parameter)
	assert.Equal(t, "ครั้งที่ 1", rows[0].CheckNumber)
	assert.Equal(t, "แคดเมียม", rows[1].Parameter)
	require.NotNil(t, rows[1].DisplayValue)
	assert.Empty(t, *rows[1].DisplayValue)
	assert.Zero(t, rows[1].NumericValue)
	assert.Equal(t, "ครั้งที่ 2", rows[2].CheckNumber)

	for _, r := range rows {
		assert.Empty(t, r.Unit)
	}
}

func TestListMeasurements_UnknownStation(t *testing.T) {
	repo := newTestRepository(t, testutil.DefaultCSVs())

	rows, err := repo.ListMeasurements(context.Background(), models.DatasetSoil, "ZZ99")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestListMeasurements_UnknownDataset(t *testing.T) {
	repo := newTestRepository(t, testutil.DefaultCSVs())

	_, err := repo.ListMeasurements(context.Background(), models.Dataset("air"), "KK01")
	assert.Error(t, err)
}

func TestBOMFreeStore(t *testing.T) {
	dir := testutil.WriteCSVs(t, testutil.DefaultCSVs())
	path := filepath.Join(dir, "clean.db")

	rw, err := database.Open(&database.Config{Driver: database.DriverSQLite, Path: path, MaxOpenConns: 1},
		logging.NewNopLogger(), testutil.Metrics())
	require.NoError(t, err)

	im := importer.New(rw, logging.NewNopLogger(), testutil.Metrics(), clockwork.NewFakeClock())
	im.StripBOM = true
	_, err = im.ImportDirectory(context.Background(), dir, importer.DefaultSources)
	require.NoError(t, err)
	require.NoError(t, rw.Close())

	repo := NewStationRepository(testutil.OpenReadOnly(t, path), logging.NewNopLogger(), testutil.Metrics())

	stations, err := repo.ListStations(context.Background())
	require.NoError(t, err)
	assert.Len(t, stations, 5)
	assert.Equal(t, "กก", stations[0].River)

	rows, err := repo.ListMeasurements(context.Background(), models.DatasetWater, "KK01")
	require.NoError(t, err)
	assert.Len(t, rows, 4)
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing store", func(t *testing.T) {
		db := testutil.OpenReadOnly(t, filepath.Join(t.TempDir(), "absent.db"))
		repo := NewStationRepository(db, logging.NewNopLogger(), testutil.Metrics())

		_, err := repo.ListStations(context.Background())
		require.Error(t, err)

		var loadErr *LoadError
		assert.True(t, errors.As(err, &loadErr))
		assert.False(t, IsNotFound(err))
	})

	t.Run("unexpected schema", func(t *testing.T) {
		files := testutil.DefaultCSVs()
		files["station.csv"] = "แม่น้ำ,สถานี\nกก,KK01\n"
		repo := newTestRepository(t, files)

		_, err := repo.GetStationByCode(context.Background(), "KK01")
		require.Error(t, err)

		var loadErr *LoadError
		require.True(t, errors.As(err, &loadErr))
		assert.Contains(t, err.Error(), "บริเวณที่เก็บ")
	})

	t.Run("missing table", func(t *testing.T) {
		files := testutil.DefaultCSVs()
		delete(files, "soil_raw_melted.csv")
		repo := newTestRepository(t, files)

		_, err := repo.ListMeasurements(context.Background(), models.DatasetSoil, "KK01")
		var loadErr *LoadError
		assert.True(t, errors.As(err, &loadErr))
	})
}
