package repository

import (
	"context"
	"fmt"
	"strings"

	"kok-dashboard/pkg/database"
)

// Table names as created by the importer
const (
	tableStations = "station_data"
	tableWater    = "water_data"
	tableSoil     = "soil_data"
)

// Logical column names as they appear in the CSV headers
const (
	colID            = "id"
	colRiver         = "แม่น้ำ"
	colStationCode   = "สถานี"
	colStationLoc    = "บริเวณที่เก็บ"
	colTambon        = "ตำบล"
	colAmphoe        = "อำเภอ"
	colProvince      = "จังหวัด"
	colWaterParam    = "สิ่งที่ตรวจ"
	colWaterLocation = "ที่ตั้ง"
	colSoilParam     = "สารที่ตรวจ"
	colSoilLocation  = "บริเวณจุดเก็บ"
	colCheckNumber   = "ครั้งที่ตรวจ"
	colValue         = "ค่าที่ได้"
	colNumericValue  = "ค่าที่วัดได้"
	colUnit          = "หน่วย"
)

const byteOrderMark = "\ufeff"

// normalizeColumn strips byte order marks and surrounding whitespace. CSV exports
// from spreadsheet tools leave a BOM glued to the first header.
func normalizeColumn(name string) string {
	return strings.TrimSpace(strings.ReplaceAll(name, byteOrderMark, ""))
}

// columnSet maps logical column names to the names stored in a table
type columnSet map[string]string

// resolveColumns reads the stored column names of table and returns the quoted
// identifier for each wanted logical name.
func resolveColumns(ctx context.Context, conn *database.Conn, table string, wanted ...string) (columnSet, error) {
	stored, err := conn.Columns(ctx, table)
	if err != nil {
		return nil, err
	}

	byLogical := make(map[string]string, len(stored))
	for _, name := range stored {
		logical := normalizeColumn(name)
		if _, dup := byLogical[logical]; !dup {
			byLogical[logical] = name
		}
	}

	cols := make(columnSet, len(wanted))
	for _, w := range wanted {
		name, ok := byLogical[w]
		if !ok {
			return nil, fmt.Errorf("table %s has no column %q", table, w)
		}
		cols[w] = database.QuoteIdent(name)
	}
	return cols, nil
}
