package dialect

import (
	"fmt"

	"launchpad/internal/core"
)

// sqliteUUIDDefault assembles a UUIDv4-shaped string from randomblob output.
// SQLite has no native UUID generator.
const sqliteUUIDDefault = "(lower(hex(randomblob(4)) || '-' || hex(randomblob(2)) || '-4' || " +
	"substr(hex(randomblob(2)),2) || '-' || substr('89ab',abs(random()) % 4 + 1, 1) || " +
	"substr(hex(randomblob(2)),2) || '-' || hex(randomblob(6))))"

const sqliteRecreateHint = "recreate the table with the new shape and copy rows across"

type sqlite struct{}

func (s *sqlite) Name() Type         { return SQLite }
func (s *sqlite) DriverName() string { return "sqlite3" }

func (s *sqlite) SupportsTransactionalDDL() bool { return true }
func (s *sqlite) SupportsReturning() bool        { return true }

func (s *sqlite) MapType(t core.ColumnType) string {
	switch t {
	case core.TypeUUID, core.TypeString, core.TypeText:
		return "TEXT"
	case core.TypeInteger, core.TypeBigint, core.TypeBoolean:
		return "INTEGER"
	case core.TypeFloat, core.TypeDecimal:
		return "REAL"
	case core.TypeDatetime, core.TypeDate, core.TypeTime:
		return "TEXT"
	case core.TypeJSON:
		return "TEXT"
	case core.TypeBinary:
		return "BLOB"
	default:
		return "TEXT"
	}
}

func (s *sqlite) QuoteIdentifier(name string) string {
	return quoteWith(name, '"')
}

func (s *sqlite) Placeholder(_ int) string {
	return "?"
}

func (s *sqlite) RewriteDefault(expr string) string {
	switch expr {
	case "gen_random_uuid()":
		return sqliteUUIDDefault
	case "now()", "NOW()":
		return "datetime('now')"
	default:
		return expr
	}
}

func (s *sqlite) CreateTable(t *core.TableDefinition) (string, error) {
	return buildCreateTable(s, t, inlineForeignKeys)
}

func (s *sqlite) DropTable(name string) string {
	return "DROP TABLE IF EXISTS " + s.QuoteIdentifier(name)
}

func (s *sqlite) AddColumn(table string, c *core.ColumnDefinition) (string, error) {
	def, err := columnDefinition(s, c, inlineForeignKeys)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", s.QuoteIdentifier(table), def), nil
}

func (s *sqlite) DropColumn(table, column string) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", s.QuoteIdentifier(table), s.QuoteIdentifier(column)), nil
}

func (s *sqlite) AlterColumn(_ string, _, _ *core.ColumnDefinition) ([]string, error) {
	return nil, &UnsupportedFeatureError{Dialect: SQLite, Feature: "ALTER COLUMN", Hint: sqliteRecreateHint}
}

func (s *sqlite) CreateIndex(table string, idx *core.IndexDefinition) string {
	return buildCreateIndex(s, table, idx)
}

func (s *sqlite) DropIndex(_, name string) (string, error) {
	return "DROP INDEX IF EXISTS " + s.QuoteIdentifier(name), nil
}

func (s *sqlite) AddForeignKey(_, _ string, _ *core.Reference) (string, error) {
	return "", &UnsupportedFeatureError{Dialect: SQLite, Feature: "adding a foreign key after table creation", Hint: sqliteRecreateHint}
}

func (s *sqlite) DropForeignKey(_, _ string) (string, error) {
	return "", &UnsupportedFeatureError{Dialect: SQLite, Feature: "dropping a foreign key", Hint: sqliteRecreateHint}
}

func (s *sqlite) IntrospectTablesQuery() string {
	return `SELECT name
FROM sqlite_master
WHERE type = 'table'
ORDER BY name`
}

// The PRAGMA-based queries take the table name as a format argument; PRAGMA
// does not accept bound parameters.
func (s *sqlite) IntrospectColumnsQuery() string {
	return "PRAGMA table_info(%s)"
}

func (s *sqlite) IntrospectIndexesQuery() string {
	return "PRAGMA index_list(%s)"
}

const sqliteIndexColumnsQuery = "PRAGMA index_info(%s)"

const sqliteForeignKeysQuery = "PRAGMA foreign_key_list(%s)"
