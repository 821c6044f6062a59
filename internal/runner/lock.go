package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudflare/backoff"

	"launchpad/internal/dialect"
)

// advisoryLockKey distinguishes the migration lock from any other advisory
// lock in the database. Arbitrary constant, stable across releases.
const advisoryLockKey int64 = 0x6c700d1f

// mysqlLockName is the documented GET_LOCK key.
const mysqlLockName = "lp_migrations_lock"

// sqliteLockTable realizes the cooperative lock as a single-row table:
// holding the row is holding the lock.
const sqliteLockTable = "lp_migration_lock"

// acquireLock serializes migration application across processes: a session
// advisory lock on Postgres, GET_LOCK on MySQL, and a lock-row insert on
// SQLite. The returned function releases the lock.
func (r *Runner) acquireLock(ctx context.Context) (func(), error) {
	switch r.d.Name() {
	case dialect.Postgres:
		return r.acquirePostgresLock(ctx)
	case dialect.MySQL:
		return r.acquireMySQLLock(ctx)
	default:
		return r.acquireSQLiteLock(ctx)
	}
}

func (r *Runner) acquirePostgresLock(ctx context.Context) (func(), error) {
	if _, err := r.drv.Query(ctx, "SELECT pg_advisory_lock($1)", advisoryLockKey); err != nil {
		return nil, fmt.Errorf("acquire migration lock: %w", err)
	}
	return func() {
		_, _ = r.drv.Query(context.Background(), "SELECT pg_advisory_unlock($1)", advisoryLockKey)
	}, nil
}

func (r *Runner) acquireMySQLLock(ctx context.Context) (func(), error) {
	timeout := int(r.LockTimeout.Seconds())
	if timeout <= 0 {
		timeout = 600
	}
	res, err := r.drv.Query(ctx, "SELECT GET_LOCK(?, ?)", mysqlLockName, timeout)
	if err != nil {
		return nil, fmt.Errorf("acquire migration lock: %w", err)
	}
	if len(res.Rows) == 0 || anyInt64(firstValue(res.Rows[0])) != 1 {
		return nil, fmt.Errorf("migration lock %q held by another session", mysqlLockName)
	}
	return func() {
		_, _ = r.drv.Query(context.Background(), "SELECT RELEASE_LOCK(?)", mysqlLockName)
	}, nil
}

// acquireSQLiteLock inserts the lock row, backing off while another process
// holds it.
func (r *Runner) acquireSQLiteLock(ctx context.Context) (func(), error) {
	table := r.d.QuoteIdentifier(sqliteLockTable)
	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (id INTEGER PRIMARY KEY CHECK (id = 1), locked_at TEXT NOT NULL)", table)
	if _, err := r.drv.Execute(ctx, ddl); err != nil {
		return nil, fmt.Errorf("ensure lock table: %w", err)
	}

	deadline := time.Now().Add(r.LockTimeout)
	b := backoff.New(5*time.Second, 50*time.Millisecond)
	for {
		_, err := r.drv.Execute(ctx,
			fmt.Sprintf("INSERT INTO %s (id, locked_at) VALUES (1, datetime('now'))", table))
		if err == nil {
			return func() {
				_, _ = r.drv.Execute(context.Background(), fmt.Sprintf("DELETE FROM %s WHERE id = 1", table))
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("migration lock timed out after %s: %w", r.LockTimeout, err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(b.Duration()):
		}
	}
}

func firstValue(row map[string]any) any {
	for _, v := range row {
		return v
	}
	return nil
}
