package collector

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeMigration(t *testing.T, dir, module, name, content string) {
	t.Helper()
	moduleDir := filepath.Join(dir, module)
	require.NoError(t, os.MkdirAll(moduleDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(moduleDir, name), []byte(content), 0o644))
}

func TestCollectOrdersByVersionThenModule(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "billing", "20240102000000__add_invoices.sql", "-- up\nCREATE TABLE invoices (id INT);\n-- down\nDROP TABLE invoices;\n")
	writeMigration(t, dir, "auth", "20240102000000__add_sessions.sql", "-- up\nCREATE TABLE sessions (id INT);\n")
	writeMigration(t, dir, "auth", "20240101000000__add_users.sql", "-- up\nCREATE TABLE users (id INT);\n")

	files, err := New(dir).Collect()
	require.NoError(t, err)
	require.Len(t, files, 3)

	assert.Equal(t, "add_users", files[0].Name)
	// Same version: module name breaks the tie alphabetically.
	assert.Equal(t, "auth", files[1].ModuleName)
	assert.Equal(t, "add_sessions", files[1].Name)
	assert.Equal(t, "billing", files[2].ModuleName)
}

func TestCollectParsesSections(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "core", "20240101000000__init.sql", `-- up
CREATE TABLE a (id INT);
CREATE TABLE b (id INT);
-- down
DROP TABLE b;
DROP TABLE a;
`)

	files, err := New(dir).Collect()
	require.NoError(t, err)
	require.Len(t, files, 1)

	f := files[0]
	assert.Equal(t, int64(20240101000000), f.Version)
	assert.Equal(t, "init", f.Name)
	assert.Equal(t, "core", f.ModuleName)
	require.Len(t, f.UpSQL, 2)
	require.Len(t, f.DownSQL, 2)
	assert.Equal(t, "DROP TABLE b", f.DownSQL[0])
}

func TestCollectSkipsFilesWithoutUpSection(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "core", "20240101000000__no_marker.sql", "CREATE TABLE a (id INT);\n")
	writeMigration(t, dir, "core", "20240102000000__ok.sql", "-- up\nSELECT 1;\n")

	files, err := New(dir).Collect()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "ok", files[0].Name)
}

func TestCollectIgnoresNonMatchingNames(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "core", "README.md", "not sql")
	writeMigration(t, dir, "core", "notversioned.sql", "-- up\nSELECT 1;\n")
	writeMigration(t, dir, "core", "20240101000000__ok.sql", "-- up\nSELECT 1;\n")

	files, err := New(dir).Collect()
	require.NoError(t, err)
	require.Len(t, files, 1)
}

func TestCollectMissingBaseDir(t *testing.T) {
	files, err := New(filepath.Join(t.TempDir(), "missing")).Collect()
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestCollectCaseInsensitiveMarkers(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "core", "20240101000000__mixed.sql", "-- UP\nSELECT 1;\n--   Down\nSELECT 2;\n")

	files, err := New(dir).Collect()
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Len(t, files[0].UpSQL, 1)
	require.Len(t, files[0].DownSQL, 1)
}

func TestChecksumStableAcrossReparses(t *testing.T) {
	dir := t.TempDir()
	content := "-- up\nCREATE TABLE a (id INT);\n-- down\nDROP TABLE a;\n"
	writeMigration(t, dir, "core", "20240101000000__a.sql", content)

	first, err := New(dir).Collect()
	require.NoError(t, err)
	second, err := New(dir).Collect()
	require.NoError(t, err)
	assert.Equal(t, first[0].Checksum(), second[0].Checksum())
	assert.Len(t, first[0].Checksum(), 64)
}
