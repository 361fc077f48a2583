// Package testutil builds throwaway on-disk stores for package tests.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"kok-dashboard/internal/importer"
	"kok-dashboard/pkg/database"
	"kok-dashboard/pkg/logging"
	"kok-dashboard/pkg/metrics"
)

const bom = "\ufeff"

// StationCSV holds five stations across three rivers; RK01 has no location data.
const StationCSV = bom + `แม่น้ำ,สถานี,บริเวณที่เก็บ,ตำบล,อำเภอ,จังหวัด
กก, KK02 ,สะพานบ้านท่าตอน,ท่าตอน,แม่อาย,เชียงใหม่
กก,KK01,ต้นน้ำ,ท่าตอน,แม่อาย,เชียงใหม่
กก,KK03,ในเมือง,รอบเวียง,เมืองเชียงราย,เชียงราย
สาย,SA01,ด่านแม่สาย,เวียงพางคำ,แม่สาย,เชียงราย
รวก,RK01,,,,
`

// WaterCSV carries KK01 rows, including a non-numeric check number, and one KK02 row.
const WaterCSV = bom + `สิ่งที่ตรวจ,สถานี,ที่ตั้ง,ครั้งที่ตรวจ,ค่าที่ได้,ค่าที่วัดได้,หน่วย
pH,KK01,จุดที่ 1,1,7.2,7.2,pH unit
pH,KK01,จุดที่ 1,2,7.5,7.5,pH unit
DO,KK01,จุดที่ 1,2, 6.0 ,6.0,mg/L
DO,KK01,จุดที่ 1,A,5.5,5.5,mg/l
pH, KK02 ,จุดที่ 1,1,7.0,7.0,pH unit
`

// SoilCSV carries KK01 rows with "ครั้งที่ N" check labels.
const SoilCSV = `สถานี,บริเวณจุดเก็บ,สารที่ตรวจ,ครั้งที่ตรวจ,ค่าที่ได้,ค่าที่วัดได้
KK01,แปลงที่ 1,ตะกั่ว,ครั้งที่ 2,12,12
KK01,แปลงที่ 1,ตะกั่ว,ครั้งที่ 1,10,10
KK01,แปลงที่ 1,แคดเมียม,ครั้งที่ 1,,
`

// DefaultCSVs is the standard fixture keyed by file name
func DefaultCSVs() map[string]string {
	return map[string]string{
		"station.csv":          StationCSV,
		"water_raw_melted.csv": WaterCSV,
		"soil_raw_melted.csv":  SoilCSV,
	}
}

// Metrics returns a collector bound to a private registry
func Metrics() *metrics.Collector {
	return metrics.NewCollector("test", prometheus.NewRegistry())
}

// WriteCSVs writes files into a fresh temporary directory and returns it
func WriteCSVs(t testing.TB, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}
	return dir
}

// NewStore imports files into a temporary SQLite file and returns a read-only
// handle to it, closed when the test ends.
func NewStore(t testing.TB, files map[string]string) *database.DB {
	t.Helper()
	dir := WriteCSVs(t, files)
	path := filepath.Join(dir, "kok_data.db")
	logger := logging.NewNopLogger()
	m := Metrics()

	rw, err := database.Open(&database.Config{
		Driver:       database.DriverSQLite,
		Path:         path,
		MaxOpenConns: 1,
	}, logger, m)
	require.NoError(t, err)

	im := importer.New(rw, logger, m, clockwork.NewFakeClock())
	_, err = im.ImportDirectory(context.Background(), dir, importer.DefaultSources)
	require.NoError(t, err)
	require.NoError(t, rw.Close())

	return OpenReadOnly(t, path)
}

// OpenReadOnly opens an existing SQLite file the way the server does
func OpenReadOnly(t testing.TB, path string) *database.DB {
	t.Helper()
	db, err := database.Open(&database.Config{
		Driver:       database.DriverSQLite,
		Path:         path,
		ReadOnly:     true,
		MaxOpenConns: 2,
	}, logging.NewNopLogger(), Metrics())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}
