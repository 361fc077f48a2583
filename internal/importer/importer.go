// Package importer loads the monitoring CSV exports into the relational store.
// Every run rebuilds the target tables from scratch.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"kok-dashboard/pkg/database"
	"kok-dashboard/pkg/logging"
	"kok-dashboard/pkg/metrics"
)

// Source pairs a CSV file with the table it populates
type Source struct {
	File  string
	Table string
}

// DefaultSources are the three exports the dashboard reads
var DefaultSources = []Source{
	{File: "water_raw_melted.csv", Table: "water_data"},
	{File: "soil_raw_melted.csv", Table: "soil_data"},
	{File: "station.csv", Table: "station_data"},
}

// Result contains import statistics
type Result struct {
	Tables    []TableResult
	Missing   []string
	TotalRows int
	Duration  time.Duration
}

// TableResult contains per-table import statistics
type TableResult struct {
	File    string
	Table   string
	Columns []string
	Rows    int
}

// Importer writes CSV files into tables
type Importer struct {
	db      *database.DB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
	clock   clockwork.Clock

	// StripBOM decodes the file according to a leading byte order mark (UTF-8 or
	// UTF-16) and drops it. Off by default: the first header keeps the BOM, which
	// readers resolve at query time.
	StripBOM bool
}

// New creates a new importer
func New(db *database.DB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector, clock clockwork.Clock) *Importer {
	return &Importer{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
		clock:   clock,
	}
}

// ImportDirectory imports every source found in dir. Missing files are reported
// in the result and skipped.
func (im *Importer) ImportDirectory(ctx context.Context, dir string, sources []Source) (*Result, error) {
	start := im.clock.Now()
	result := &Result{}

	for _, src := range sources {
		path := filepath.Join(dir, src.File)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			result.Missing = append(result.Missing, path)
			im.metrics.RecordImportError("missing_file")
			im.logger.WithFields(logging.Fields{"file": path, "table": src.Table}).
				Warn(ctx, "[IMPORT_MISSING] CSV file not found", logging.Fields{})
			continue
		}

		tableResult, err := im.ImportFile(ctx, path, src.Table)
		if err != nil {
			return nil, fmt.Errorf("failed to import %s: %w", path, err)
		}

		result.Tables = append(result.Tables, *tableResult)
		result.TotalRows += tableResult.Rows
	}

	result.Duration = im.clock.Since(start)
	im.metrics.ImportDuration.Observe(result.Duration.Seconds())

	im.logger.Info(ctx, "[IMPORT_COMPLETE] CSV import completed", logging.Fields{
		"tables":           len(result.Tables),
		"missing":          len(result.Missing),
		"total_rows":       result.TotalRows,
		"duration_seconds": result.Duration.Seconds(),
	})

	return result, nil
}

// ImportFile replaces table with the contents of the CSV file at path
func (im *Importer) ImportFile(ctx context.Context, path, table string) (*TableResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if im.StripBOM {
		r = transform.NewReader(f, unicode.BOMOverride(transform.Nop))
	}

	var result *TableResult
	err = im.db.WithConn(ctx, func(conn *database.Conn) error {
		var importErr error
		result, importErr = im.importReader(ctx, conn, r, table)
		return importErr
	})
	if err != nil {
		im.metrics.RecordImportError("table_error")
		return nil, err
	}

	result.File = path
	im.logger.WithFields(logging.Fields{"file": path, "table": table}).Info(ctx, "[IMPORT_TABLE] Table created", logging.Fields{
		"columns": len(result.Columns),
		"rows":    result.Rows,
	})

	return result, nil
}

func (im *Importer) importReader(ctx context.Context, conn *database.Conn, r io.Reader, table string) (*TableResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	columns := make([]string, len(header))
	quoted := make([]string, len(header))
	defs := make([]string, len(header))
	placeholders := make([]string, len(header))
	for i, col := range header {
		columns[i] = strings.TrimSpace(col)
		quoted[i] = database.QuoteIdent(columns[i])
		defs[i] = quoted[i] + " TEXT"
		placeholders[i] = "?"
	}

	tx, err := conn.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+database.QuoteIdent(table)); err != nil {
		return nil, fmt.Errorf("failed to drop table: %w", err)
	}

	create := fmt.Sprintf("CREATE TABLE %s (\n\t%s,\n\t%s\n)",
		database.QuoteIdent(table), im.db.AutoIncrementPK(), strings.Join(defs, ",\n\t"))
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		database.QuoteIdent(table), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))
	stmt, err := tx.PrepareContext(ctx, tx.Rebind(insert))
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	result := &TableResult{Table: table, Columns: columns}
	args := make([]interface{}, len(columns))
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", result.Rows+2, err)
		}

		// Short rows are padded with empty text, long rows truncated to the header.
		for i := range args {
			if i < len(record) {
				args[i] = record[i]
			} else {
				args[i] = ""
			}
		}

		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return nil, fmt.Errorf("failed to insert row %d: %w", result.Rows+2, err)
		}
		result.Rows++
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	im.metrics.ImportRowsTotal.WithLabelValues(table).Add(float64(result.Rows))
	return result, nil
}
