package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"kok-dashboard/pkg/logging"
	"kok-dashboard/pkg/metrics"
)

// Supported database/sql driver names
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Config holds database connection configuration
type Config struct {
	Driver          string
	Path            string // sqlite file path
	URL             string // postgres connection string
	ReadOnly        bool
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DSN returns the driver specific data source name
func (c *Config) DSN() string {
	switch c.Driver {
	case DriverPostgres:
		return c.URL
	default:
		if c.ReadOnly {
			return "file:" + c.Path + "?mode=ro"
		}
		return c.Path
	}
}

// DB wraps sqlx.DB with logging and metrics. Work is done on connections acquired
// through WithConn, so every unit of work releases its connection on return.
type DB struct {
	db      *sqlx.DB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
	config  *Config
}

// Open prepares a database handle. Connections are established lazily; call
// HealthCheck to verify the store is reachable.
func Open(cfg *Config, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) (*DB, error) {
	if cfg.Driver != DriverSQLite && cfg.Driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := sqlx.Open(cfg.Driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	logger.Info(context.Background(), "[DB_INIT] Database handle prepared", logging.Fields{
		"driver":         cfg.Driver,
		"path":           cfg.Path,
		"read_only":      cfg.ReadOnly,
		"max_open_conns": cfg.MaxOpenConns,
		"max_idle_conns": cfg.MaxIdleConns,
	})

	return &DB{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
		config:  cfg,
	}, nil
}

// Close closes the database handle
func (d *DB) Close() error {
	d.logger.Info(context.Background(), "[DB_CLOSE] Closing database", logging.Fields{
		"driver": d.config.Driver,
	})
	return d.db.Close()
}

// DB returns the underlying sqlx.DB instance
func (d *DB) DB() *sqlx.DB {
	return d.db
}

// Driver returns the configured driver name
func (d *DB) Driver() string {
	return d.config.Driver
}

// HealthCheck performs a database health check
func (d *DB) HealthCheck(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := d.db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	return nil
}

// WithConn acquires a dedicated connection, runs fn on it and releases the
// connection on every exit path.
func (d *DB) WithConn(ctx context.Context, fn func(*Conn) error) error {
	conn, err := d.db.Connx(ctx)
	if err != nil {
		d.metrics.RecordDBError("connect_error")
		d.logger.Error(ctx, "[DB_CONN_ERROR] Failed to acquire connection", logging.Fields{
			"driver": d.config.Driver,
		}, err)
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	return fn(&Conn{conn: conn, owner: d})
}

// Conn is a single database connection scoped to one unit of work
type Conn struct {
	conn  *sqlx.Conn
	owner *DB
}

// SelectContext executes a query that returns multiple rows and scans them into dest.
// Placeholders are written as '?' and rebound for the active driver.
func (c *Conn) SelectContext(ctx context.Context, queryType string, dest interface{}, query string, args ...interface{}) error {
	timer := time.Now()
	defer func() {
		duration := time.Since(timer)
		c.owner.metrics.DBQueryDuration.WithLabelValues(queryType).Observe(duration.Seconds())

		c.owner.logger.Debug(ctx, "[DB_QUERY] Query executed", logging.Fields{
			"query_type":  queryType,
			"duration_ms": duration.Milliseconds(),
		})
	}()

	err := c.conn.SelectContext(ctx, dest, c.conn.Rebind(query), args...)
	if err != nil {
		c.owner.metrics.RecordDBError("select_error")
		c.owner.logger.Error(ctx, "[DB_SELECT_ERROR] Select query failed", logging.Fields{
			"query_type": queryType,
			"query":      query,
		}, err)
		return err
	}

	return nil
}

// ExecContext executes a statement on this connection
func (c *Conn) ExecContext(ctx context.Context, queryType, query string, args ...interface{}) (sql.Result, error) {
	timer := time.Now()
	defer func() {
		c.owner.metrics.DBQueryDuration.WithLabelValues(queryType).Observe(time.Since(timer).Seconds())
	}()

	result, err := c.conn.ExecContext(ctx, c.conn.Rebind(query), args...)
	if err != nil {
		c.owner.metrics.RecordDBError("exec_error")
		c.owner.logger.Error(ctx, "[DB_EXEC_ERROR] Command failed", logging.Fields{
			"query_type": queryType,
		}, err)
		return nil, err
	}

	return result, nil
}

// Columns returns the column names of table exactly as stored, in table order
func (c *Conn) Columns(ctx context.Context, table string) ([]string, error) {
	rows, err := c.conn.QueryxContext(ctx, "SELECT * FROM "+QuoteIdent(table)+" LIMIT 0")
	if err != nil {
		c.owner.metrics.RecordDBError("columns_error")
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	defer rows.Close()

	return rows.Columns()
}

// BeginTx begins a new transaction on this connection
func (c *Conn) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	tx, err := c.conn.BeginTxx(ctx, nil)
	if err != nil {
		c.owner.metrics.RecordDBError("transaction_begin_error")
		c.owner.logger.Error(ctx, "[DB_TX_ERROR] Failed to begin transaction", logging.Fields{}, err)
		return nil, err
	}

	return tx, nil
}

// IntegerSortExpr returns an expression ordering a text column by its integer value.
// Text that does not look like an integer sorts as 0 on both drivers.
func (d *DB) IntegerSortExpr(column string) string {
	if d.config.Driver == DriverPostgres {
		return fmt.Sprintf(`CASE WHEN TRIM(%[1]s) ~ '^[+-]?[0-9]+$' THEN CAST(TRIM(%[1]s) AS NUMERIC) ELSE 0 END`, column)
	}
	return fmt.Sprintf("CAST(%s AS INTEGER)", column)
}

// AutoIncrementPK returns the column definition for a surrogate integer key named id
func (d *DB) AutoIncrementPK() string {
	if d.config.Driver == DriverPostgres {
		return "id SERIAL PRIMARY KEY"
	}
	return "id INTEGER PRIMARY KEY AUTOINCREMENT"
}

// QuoteIdent quotes an SQL identifier with double quotes
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
