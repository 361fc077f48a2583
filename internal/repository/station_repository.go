package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"kok-dashboard/internal/models"
	"kok-dashboard/pkg/database"
	"kok-dashboard/pkg/logging"
	"kok-dashboard/pkg/metrics"
)

// StationRepository provides read access to stations and their measurements
type StationRepository interface {
	// ListStations returns every station ordered by (river, station code)
	ListStations(ctx context.Context) ([]*models.Station, error)
	// GetStationByCode matches the trimmed station code exactly
	GetStationByCode(ctx context.Context, code string) (*models.Station, error)
	// ListMeasurements returns a station's rows of one dataset in store order
	ListMeasurements(ctx context.Context, dataset models.Dataset, code string) ([]*models.MeasurementRow, error)

	HealthCheck(ctx context.Context) error
}

// stationRecord is a raw station_data row before trimming
type stationRecord struct {
	ID       int64          `db:"id"`
	River    sql.NullString `db:"river"`
	Code     sql.NullString `db:"station"`
	Location sql.NullString `db:"location"`
	Tambon   sql.NullString `db:"tambon"`
	Amphoe   sql.NullString `db:"amphoe"`
	Province sql.NullString `db:"province"`
}

func (r *stationRecord) toModel() *models.Station {
	return &models.Station{
		ID:       r.ID,
		River:    trimmed(r.River),
		Code:     trimmed(r.Code),
		Location: trimmed(r.Location),
		Tambon:   trimmed(r.Tambon),
		Amphoe:   trimmed(r.Amphoe),
		Province: trimmed(r.Province),
	}
}

// measurementRecord is a raw water_data or soil_data row before trimming.
// Soil rows leave Unit NULL.
type measurementRecord struct {
	Parameter    sql.NullString `db:"parameter"`
	Location     sql.NullString `db:"location"`
	CheckNumber  sql.NullString `db:"check_number"`
	Value        sql.NullString `db:"value"`
	NumericValue sql.NullString `db:"numeric_value"`
	Unit         sql.NullString `db:"unit"`
	Station      sql.NullString `db:"station"`
}

func (r *measurementRecord) toModel() *models.MeasurementRow {
	return &models.MeasurementRow{
		Parameter:    trimmed(r.Parameter),
		Location:     trimmed(r.Location),
		CheckNumber:  trimmed(r.CheckNumber),
		DisplayValue: trimmedPtr(r.Value),
		NumericValue: models.ParseNumericValue(trimmedPtr(r.NumericValue)),
		Unit:         trimmed(r.Unit),
	}
}

// trimmed is the single trim-on-read step applied to every text field
func trimmed(ns sql.NullString) string {
	if !ns.Valid {
		return ""
	}
	return strings.TrimSpace(ns.String)
}

func trimmedPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := strings.TrimSpace(ns.String)
	return &s
}

// stationRepository implements StationRepository
type stationRepository struct {
	db      *database.DB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewStationRepository creates a new station repository
func NewStationRepository(db *database.DB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) StationRepository {
	return &stationRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

var stationColumns = []string{colID, colRiver, colStationCode, colStationLoc, colTambon, colAmphoe, colProvince}

func stationSelect(cols columnSet) string {
	return fmt.Sprintf(`
		SELECT
			%s AS id,
			%s AS river,
			%s AS station,
			%s AS location,
			%s AS tambon,
			%s AS amphoe,
			%s AS province
		FROM %s`,
		cols[colID], cols[colRiver], cols[colStationCode], cols[colStationLoc],
		cols[colTambon], cols[colAmphoe], cols[colProvince],
		database.QuoteIdent(tableStations),
	)
}

// ListStations retrieves all stations
func (r *stationRepository) ListStations(ctx context.Context) ([]*models.Station, error) {
	var records []stationRecord

	err := r.db.WithConn(ctx, func(conn *database.Conn) error {
		cols, err := resolveColumns(ctx, conn, tableStations, stationColumns...)
		if err != nil {
			return err
		}

		query := stationSelect(cols) + fmt.Sprintf(" ORDER BY %s, %s", cols[colRiver], cols[colStationCode])
		return conn.SelectContext(ctx, "list_stations", &records, query)
	})
	if err != nil {
		return nil, &LoadError{Op: "list stations", Err: err}
	}

	stations := make([]*models.Station, 0, len(records))
	for i := range records {
		stations = append(stations, records[i].toModel())
	}

	// The store orders untrimmed text; re-sort on the trimmed values.
	sort.SliceStable(stations, func(i, j int) bool {
		if stations[i].River != stations[j].River {
			return stations[i].River < stations[j].River
		}
		return stations[i].Code < stations[j].Code
	})

	r.logger.Debug(ctx, "[REPO_LIST_STATIONS] Stations loaded", logging.Fields{
		"count": len(stations),
	})

	return stations, nil
}

// GetStationByCode retrieves a station by its code. Stored codes are compared
// after the same trimming every row gets in toModel, not with SQL TRIM.
func (r *stationRepository) GetStationByCode(ctx context.Context, code string) (*models.Station, error) {
	code = strings.TrimSpace(code)
	var records []stationRecord

	err := r.db.WithConn(ctx, func(conn *database.Conn) error {
		cols, err := resolveColumns(ctx, conn, tableStations, stationColumns...)
		if err != nil {
			return err
		}

		query := stationSelect(cols) + fmt.Sprintf(" ORDER BY %s", cols[colID])
		return conn.SelectContext(ctx, "get_station", &records, query)
	})
	if err != nil {
		return nil, &LoadError{Op: "get station", Err: err}
	}

	for i := range records {
		if trimmed(records[i].Code) == code {
			return records[i].toModel(), nil
		}
	}

	return nil, &NotFoundError{
		Resource: "station",
		ID:       code,
	}
}

// measurementQuery describes where a dataset lives and how it is ordered
type measurementQuery struct {
	table        string
	parameterCol string
	locationCol  string
	withUnit     bool
	// numericCheckOrder orders by the integer value of the check number instead of its text
	numericCheckOrder bool
}

var measurementQueries = map[models.Dataset]measurementQuery{
	models.DatasetWater: {
		table:             tableWater,
		parameterCol:      colWaterParam,
		locationCol:       colWaterLocation,
		withUnit:          true,
		numericCheckOrder: true,
	},
	models.DatasetSoil: {
		table:        tableSoil,
		parameterCol: colSoilParam,
		locationCol:  colSoilLocation,
	},
}

// ListMeasurements retrieves the measurement rows of one station and dataset
func (r *stationRepository) ListMeasurements(ctx context.Context, dataset models.Dataset, code string) ([]*models.MeasurementRow, error) {
	q, ok := measurementQueries[dataset]
	if !ok {
		return nil, fmt.Errorf("unknown dataset %q", dataset)
	}
	code = strings.TrimSpace(code)
	queryType := "list_" + string(dataset)

	var records []measurementRecord

	err := r.db.WithConn(ctx, func(conn *database.Conn) error {
		wanted := []string{q.parameterCol, q.locationCol, colCheckNumber, colValue, colNumericValue, colStationCode}
		if q.withUnit {
			wanted = append(wanted, colUnit)
		}
		cols, err := resolveColumns(ctx, conn, q.table, wanted...)
		if err != nil {
			return err
		}

		unit := "NULL"
		if q.withUnit {
			unit = cols[colUnit]
		}
		checkOrder := cols[colCheckNumber]
		if q.numericCheckOrder {
			checkOrder = r.db.IntegerSortExpr(checkOrder)
		}

		query := fmt.Sprintf(`
			SELECT
				%s AS parameter,
				%s AS location,
				%s AS check_number,
				%s AS value,
				%s AS numeric_value,
				%s AS unit,
				%s AS station
			FROM %s
			ORDER BY %s, %s`,
			cols[q.parameterCol], cols[q.locationCol], cols[colCheckNumber],
			cols[colValue], cols[colNumericValue], unit,
			cols[colStationCode],
			database.QuoteIdent(q.table),
			checkOrder, cols[q.parameterCol],
		)
		return conn.SelectContext(ctx, queryType, &records, query)
	})
	if err != nil {
		return nil, &LoadError{Op: "list " + string(dataset) + " measurements", Err: err}
	}

	// Station codes are matched on the trimmed value, as in GetStationByCode.
	rows := make([]*models.MeasurementRow, 0)
	for i := range records {
		if trimmed(records[i].Station) != code {
			continue
		}
		rows = append(rows, records[i].toModel())
	}

	r.logger.Debug(ctx, "[REPO_LIST_MEASUREMENTS] Measurements loaded", logging.Fields{
		"dataset":      dataset,
		"station_code": code,
		"count":        len(rows),
	})

	return rows, nil
}

// HealthCheck performs a repository health check
func (r *stationRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}
