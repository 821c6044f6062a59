// Package driver wraps a pooled database/sql connection for one dialect.
// Every query and transaction is tracked in an in-memory table so the pool
// can be drained gracefully on shutdown; health checks and a pool-utilization
// monitor run as optional background tasks.
package driver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"launchpad/internal/dialect"
)

// DefaultMaxConnections bounds the pool when the configuration does not.
const DefaultMaxConnections = 20

// ErrDraining is returned to new callers once a drain has begun.
var ErrDraining = errors.New("driver is draining; no new queries accepted")

// Config holds everything needed to open a driver. URL is the sole required
// field.
type Config struct {
	// URL is the connection string (postgres://, mysql://, sqlite://).
	URL string
	// Max bounds the pool size; zero means DefaultMaxConnections.
	Max int
	// IdleTimeout recycles idle connections; zero keeps the sql.DB default.
	IdleTimeout time.Duration
	// ConnectTimeout bounds the initial connectivity probe.
	ConnectTimeout time.Duration
	// HealthCheck configures the optional periodic health task.
	HealthCheck HealthCheckConfig
}

// QueryResult carries the rows of one query as generic records.
type QueryResult struct {
	Rows     []map[string]any
	RowCount int
}

// ExecResult carries the outcome of one statement execution.
type ExecResult struct {
	RowCount int64
}

// PoolStats is a snapshot of pool usage.
type PoolStats struct {
	Open      int
	InUse     int
	Idle      int
	WaitCount int64
	Max       int
}

// Driver is a pooled connection to one database.
type Driver struct {
	db      *sql.DB
	d       dialect.Dialect
	cfg     Config
	tracker *queryTracker
	health  *healthChecker
}

// Open parses the connection URL, opens the pool, and verifies connectivity.
func Open(cfg Config) (*Driver, error) {
	dialectType, dsn, err := ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	d, err := dialect.New(dialectType)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialectType, err)
	}

	max := cfg.Max
	if max <= 0 {
		max = DefaultMaxConnections
	}
	db.SetMaxOpenConns(max)
	if cfg.IdleTimeout > 0 {
		db.SetConnMaxIdleTime(cfg.IdleTimeout)
	}

	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialectType, err)
	}

	drv := &Driver{
		db:      db,
		d:       d,
		cfg:     cfg,
		tracker: newQueryTracker(),
	}
	drv.health = newHealthChecker(drv, cfg.HealthCheck)
	if cfg.HealthCheck.Enabled {
		drv.StartHealthChecks()
	}
	return drv, nil
}

// Dialect returns the dialect the driver was opened for.
func (drv *Driver) Dialect() dialect.Dialect {
	return drv.d
}

// DB exposes the underlying pool for collaborators (introspector, tests).
func (drv *Driver) DB() *sql.DB {
	return drv.db
}

// IsDraining reports whether a drain is in progress or finished.
func (drv *Driver) IsDraining() bool {
	return drv.tracker.isDraining()
}

// GetActiveQueryCount returns the number of queries currently executing.
func (drv *Driver) GetActiveQueryCount() int {
	return drv.tracker.activeCount()
}

// GetPoolStats snapshots pool usage.
func (drv *Driver) GetPoolStats() PoolStats {
	s := drv.db.Stats()
	max := drv.cfg.Max
	if max <= 0 {
		max = DefaultMaxConnections
	}
	return PoolStats{
		Open:      s.OpenConnections,
		InUse:     s.InUse,
		Idle:      s.Idle,
		WaitCount: s.WaitCount,
		Max:       max,
	}
}

// Query runs a read statement and materializes its rows.
func (drv *Driver) Query(ctx context.Context, query string, params ...any) (*QueryResult, error) {
	if drv.tracker.isDraining() {
		return nil, ErrDraining
	}
	conn, err := drv.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = conn.Close() }()

	id := drv.tracker.track(query, drv.backendPID(ctx, conn))
	defer drv.tracker.untrack(id)

	rows, err := conn.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanRows(rows)
}

// Execute runs a write statement and reports affected rows.
func (drv *Driver) Execute(ctx context.Context, query string, params ...any) (*ExecResult, error) {
	if drv.tracker.isDraining() {
		return nil, ErrDraining
	}
	conn, err := drv.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = conn.Close() }()

	id := drv.tracker.track(query, drv.backendPID(ctx, conn))
	defer drv.tracker.untrack(id)

	res, err := conn.ExecContext(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		affected = 0
	}
	return &ExecResult{RowCount: affected}, nil
}

// Tx is the client handed to a transaction callback. All statements run on
// the one pinned connection.
type Tx struct {
	tx *sql.Tx
}

// Query runs a read statement inside the transaction.
func (t *Tx) Query(ctx context.Context, query string, params ...any) (*QueryResult, error) {
	rows, err := t.tx.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanRows(rows)
}

// Execute runs a write statement inside the transaction.
func (t *Tx) Execute(ctx context.Context, query string, params ...any) (*ExecResult, error) {
	res, err := t.tx.ExecContext(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		affected = 0
	}
	return &ExecResult{RowCount: affected}, nil
}

// Transaction reserves one connection, begins a transaction, and runs fn.
// Success commits; any failure rolls back. The reservation is released on
// every exit path.
func (drv *Driver) Transaction(ctx context.Context, fn func(tx *Tx) error) error {
	if drv.tracker.isDraining() {
		return ErrDraining
	}
	conn, err := drv.db.Conn(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	id := drv.tracker.track("BEGIN", drv.backendPID(ctx, conn))
	defer drv.tracker.untrack(id)

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(&Tx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

// Close shuts the pool down immediately. Use DrainAndClose for a graceful
// stop.
func (drv *Driver) Close() error {
	drv.health.stop()
	return drv.db.Close()
}

// backendPID asks the server for the connection's backend identifier so a
// drain can cancel the query from another connection. SQLite has no backend
// processes.
func (drv *Driver) backendPID(ctx context.Context, conn *sql.Conn) int {
	var q string
	switch drv.d.Name() {
	case dialect.Postgres:
		q = "SELECT pg_backend_pid()"
	case dialect.MySQL:
		q = "SELECT CONNECTION_ID()"
	default:
		return 0
	}
	var pid int
	if err := conn.QueryRowContext(ctx, q).Scan(&pid); err != nil {
		return 0
	}
	return pid
}

func scanRows(rows *sql.Rows) (*QueryResult, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &QueryResult{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[col] = v
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	result.RowCount = len(result.Rows)
	return result, nil
}
