package driver

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openSQLite(t *testing.T) *Driver {
	t.Helper()
	path := filepath.Join(t.TempDir(), "driver_test.db")
	drv, err := Open(Config{URL: "sqlite://" + path, Max: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = drv.Close() })
	return drv
}

func TestQueryAndExecute(t *testing.T) {
	drv := openSQLite(t)
	ctx := context.Background()

	_, err := drv.Execute(ctx, "CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT)")
	require.NoError(t, err)

	res, err := drv.Execute(ctx, "INSERT INTO notes (body) VALUES (?), (?)", "first", "second")
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.RowCount)

	rows, err := drv.Query(ctx, "SELECT body FROM notes ORDER BY id")
	require.NoError(t, err)
	assert.Equal(t, 2, rows.RowCount)
	assert.Equal(t, "first", rows.Rows[0]["body"])
}

func TestTransactionCommitAndRollback(t *testing.T) {
	drv := openSQLite(t)
	ctx := context.Background()

	_, err := drv.Execute(ctx, "CREATE TABLE counters (n INTEGER)")
	require.NoError(t, err)

	err = drv.Transaction(ctx, func(tx *Tx) error {
		_, err := tx.Execute(ctx, "INSERT INTO counters (n) VALUES (1)")
		return err
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = drv.Transaction(ctx, func(tx *Tx) error {
		if _, err := tx.Execute(ctx, "INSERT INTO counters (n) VALUES (2)"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	rows, err := drv.Query(ctx, "SELECT n FROM counters")
	require.NoError(t, err)
	assert.Equal(t, 1, rows.RowCount, "rolled-back insert is invisible")
}

func TestHealthCheck(t *testing.T) {
	drv := openSQLite(t)

	status := drv.HealthCheck(context.Background())
	assert.True(t, status.Healthy)
	assert.Empty(t, status.Error)
	assert.False(t, status.LastCheckedAt.IsZero())
	assert.True(t, drv.IsHealthy())

	last, ok := drv.LastHealthStatus()
	require.True(t, ok)
	assert.True(t, last.Healthy)
}

func TestPoolStats(t *testing.T) {
	drv := openSQLite(t)
	stats := drv.GetPoolStats()
	assert.Equal(t, 4, stats.Max)
}

func TestDrainAndCloseIdle(t *testing.T) {
	drv := openSQLite(t)
	ctx := context.Background()

	var phases []DrainPhase
	result := drv.DrainAndClose(ctx, DrainOptions{
		Timeout: 200_000_000, // 200ms
		OnProgress: func(p DrainProgress) {
			phases = append(phases, p.Phase)
			assert.NotEmpty(t, p.EventID)
		},
	})

	assert.True(t, result.Success)
	assert.Equal(t, 0, result.CancelledQueries)
	assert.Contains(t, phases, PhaseDraining)
	assert.Contains(t, phases, PhaseClosing)
	assert.Equal(t, PhaseComplete, phases[len(phases)-1])

	// Once draining, new queries are refused.
	_, err := drv.Query(ctx, "SELECT 1")
	require.ErrorIs(t, err, ErrDraining)
	assert.True(t, drv.IsDraining())
}

func TestActiveQueryCountReturnsToZero(t *testing.T) {
	drv := openSQLite(t)
	ctx := context.Background()

	_, err := drv.Query(ctx, "SELECT 1")
	require.NoError(t, err)
	assert.Equal(t, 0, drv.GetActiveQueryCount())
}
