package output

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"launchpad/internal/core"
	"launchpad/internal/diff"
	"launchpad/internal/dialect"
)

func sampleResult(t *testing.T) *diff.Result {
	t.Helper()
	target := &core.SchemaDefinition{Tables: []*core.TableDefinition{{
		Name: "users",
		Columns: []*core.ColumnDefinition{
			{Name: "id", Type: core.TypeUUID, PrimaryKey: true},
		},
	}}}
	current := &core.SchemaDefinition{Tables: []*core.TableDefinition{{
		Name: "legacy",
		Columns: []*core.ColumnDefinition{
			{Name: "id", Type: core.TypeInteger, PrimaryKey: true},
		},
	}}}
	r, err := diff.Diff(current, target, dialect.MustNew(dialect.Postgres), diff.Options{})
	require.NoError(t, err)
	return r
}

func TestNewFormatter(t *testing.T) {
	for _, name := range []string{"", "human", "json", "sql", "JSON"} {
		f, err := NewFormatter(name)
		require.NoError(t, err, name)
		require.NotNil(t, f)
	}
	_, err := NewFormatter("yaml")
	require.Error(t, err)
}

func TestHumanFormat(t *testing.T) {
	f, _ := NewFormatter("human")
	out, err := f.FormatDiff(sampleResult(t))
	require.NoError(t, err)

	assert.Contains(t, out, "+---")
	assert.Contains(t, out, "Tables added")
	assert.Contains(t, out, "+ table users")
	assert.Contains(t, out, "- table legacy (BREAKING)")
}

func TestHumanFormatNoDifferences(t *testing.T) {
	f, _ := NewFormatter("human")
	out, err := f.FormatDiff(&diff.Result{})
	require.NoError(t, err)
	assert.Equal(t, "No schema differences.\n", out)
}

func TestJSONFormatRoundTrips(t *testing.T) {
	f, _ := NewFormatter("json")
	out, err := f.FormatDiff(sampleResult(t))
	require.NoError(t, err)

	var decoded diff.Result
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.True(t, decoded.HasDifferences)
	assert.Equal(t, 1, decoded.Summary.TablesAdded)
	assert.Equal(t, 1, decoded.Summary.TablesDropped)
}

func TestSQLFormatBlocks(t *testing.T) {
	f, _ := NewFormatter("sql")
	out, err := f.FormatDiff(sampleResult(t))
	require.NoError(t, err)

	assert.Contains(t, out, "-- up\n")
	assert.Contains(t, out, "-- down\n")
	assert.Contains(t, out, `CREATE TABLE "users"`)
	assert.Contains(t, out, `DROP TABLE IF EXISTS "legacy";`)
	// Every statement is ;-terminated.
	for _, line := range []string{`DROP TABLE IF EXISTS "users";`} {
		assert.Contains(t, out, line)
	}
}
