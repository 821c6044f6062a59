package runner_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"launchpad/internal/driver"
	"launchpad/internal/introspect"
	"launchpad/internal/runner"
	"launchpad/internal/testutils"
)

func writeMigration(t *testing.T, dir, module, name, content string) {
	t.Helper()
	moduleDir := filepath.Join(dir, module)
	require.NoError(t, os.MkdirAll(moduleDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(moduleDir, name), []byte(content), 0o644))
}

func TestRunnerRoundTripPostgres(t *testing.T) {
	testutils.SkipUnlessIntegration(t)

	ctx := context.Background()
	url := testutils.StartPostgres(t)

	drv, err := driver.Open(driver.Config{URL: url})
	require.NoError(t, err)
	defer func() { _ = drv.Close() }()

	dir := t.TempDir()
	writeMigration(t, dir, "core", "20240101000000__create_widgets.sql", `-- up
CREATE TABLE widgets (
  id UUID PRIMARY KEY,
  app_id TEXT NOT NULL,
  organization_id TEXT NOT NULL,
  label TEXT
);
-- down
DROP TABLE widgets;
`)
	writeMigration(t, dir, "core", "20240102000000__index_widgets.sql", `-- up
CREATE INDEX idx_widgets_app_id ON widgets (app_id);
-- down
DROP INDEX idx_widgets_app_id;
`)

	r := runner.New(drv, dir)

	// Apply everything.
	applied, err := r.Up(ctx, runner.UpOptions{})
	require.NoError(t, err)
	require.Len(t, applied, 2)

	// The table is visible to the introspector; lp_ tables are not.
	tables, err := introspect.Tables(ctx, drv, drv.Dialect(), introspect.Options{})
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, "widgets", tables[0].Name)

	// Second up is a no-op.
	again, err := r.Up(ctx, runner.UpOptions{})
	require.NoError(t, err)
	assert.Empty(t, again)

	// Verify passes on an untouched ledger.
	require.NoError(t, r.Verify(ctx))

	// Down all migrations returns the database to its initial shape and
	// empties the ledger.
	reverted, err := r.Down(ctx, runner.DownOptions{Steps: 2})
	require.NoError(t, err)
	require.Len(t, reverted, 2)

	tables, err = introspect.Tables(ctx, drv, drv.Dialect(), introspect.Options{})
	require.NoError(t, err)
	assert.Empty(t, tables)

	entries, err := r.Status(ctx)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, e.Applied)
	}
}

func TestRunnerVerifyDetectsTampering(t *testing.T) {
	testutils.SkipUnlessIntegration(t)

	ctx := context.Background()
	url := testutils.StartPostgres(t)

	drv, err := driver.Open(driver.Config{URL: url})
	require.NoError(t, err)
	defer func() { _ = drv.Close() }()

	dir := t.TempDir()
	path := filepath.Join(dir, "core", "20240101000000__seed.sql")
	writeMigration(t, dir, "core", "20240101000000__seed.sql", "-- up\nCREATE TABLE seeded (id INT);\n-- down\nDROP TABLE seeded;\n")

	r := runner.New(drv, dir)
	_, err = r.Up(ctx, runner.UpOptions{})
	require.NoError(t, err)

	// Rewrite the file after apply.
	require.NoError(t, os.WriteFile(path, []byte("-- up\nCREATE TABLE seeded (id BIGINT);\n-- down\nDROP TABLE seeded;\n"), 0o644))

	err = r.Verify(ctx)
	var tampered *runner.TamperedError
	require.ErrorAs(t, err, &tampered)
	assert.Equal(t, []int64{20240101000000}, tampered.Versions)
}
