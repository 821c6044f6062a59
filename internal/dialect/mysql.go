package dialect

import (
	"fmt"

	"launchpad/internal/core"
)

type mysql struct{}

func (m *mysql) Name() Type         { return MySQL }
func (m *mysql) DriverName() string { return "mysql" }

// MySQL commits implicitly around every DDL statement.
func (m *mysql) SupportsTransactionalDDL() bool { return false }
func (m *mysql) SupportsReturning() bool        { return false }

func (m *mysql) MapType(t core.ColumnType) string {
	switch t {
	case core.TypeUUID:
		return "CHAR(36)"
	case core.TypeString:
		return "VARCHAR(255)"
	case core.TypeText:
		return "TEXT"
	case core.TypeInteger:
		return "INT"
	case core.TypeBigint:
		return "BIGINT"
	case core.TypeFloat:
		return "DOUBLE"
	case core.TypeDecimal:
		return "DECIMAL(10,2)"
	case core.TypeBoolean:
		return "TINYINT(1)"
	case core.TypeDatetime:
		return "DATETIME"
	case core.TypeDate:
		return "DATE"
	case core.TypeTime:
		return "TIME"
	case core.TypeJSON:
		return "JSON"
	case core.TypeBinary:
		return "BLOB"
	default:
		return "VARCHAR(255)"
	}
}

func (m *mysql) QuoteIdentifier(name string) string {
	return quoteWith(name, '`')
}

func (m *mysql) Placeholder(_ int) string {
	return "?"
}

func (m *mysql) RewriteDefault(expr string) string {
	switch expr {
	case "gen_random_uuid()":
		return "(UUID())"
	default:
		return expr
	}
}

func (m *mysql) CreateTable(t *core.TableDefinition) (string, error) {
	return buildCreateTable(m, t, constraintForeignKeys)
}

func (m *mysql) DropTable(name string) string {
	return "DROP TABLE IF EXISTS " + m.QuoteIdentifier(name)
}

func (m *mysql) AddColumn(table string, c *core.ColumnDefinition) (string, error) {
	def, err := columnDefinition(m, c, constraintForeignKeys)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", m.QuoteIdentifier(table), def), nil
}

func (m *mysql) DropColumn(table, column string) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", m.QuoteIdentifier(table), m.QuoteIdentifier(column)), nil
}

// AlterColumn uses MODIFY COLUMN, which restates the full definition.
func (m *mysql) AlterColumn(table string, _, newCol *core.ColumnDefinition) ([]string, error) {
	def, err := columnDefinition(m, newCol, constraintForeignKeys)
	if err != nil {
		return nil, err
	}
	return []string{fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s", m.QuoteIdentifier(table), def)}, nil
}

// CreateIndex drops the partial predicate: MySQL has no partial indexes.
func (m *mysql) CreateIndex(table string, idx *core.IndexDefinition) string {
	stripped := *idx
	stripped.Where = ""
	return buildCreateIndex(m, table, &stripped)
}

func (m *mysql) DropIndex(table, name string) (string, error) {
	if table == "" {
		return "", fmt.Errorf("mysql DROP INDEX requires a table name for index %q", name)
	}
	return fmt.Sprintf("ALTER TABLE %s DROP INDEX %s", m.QuoteIdentifier(table), m.QuoteIdentifier(name)), nil
}

func (m *mysql) AddForeignKey(table, column string, ref *core.Reference) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s(%s)%s",
		m.QuoteIdentifier(table),
		m.QuoteIdentifier(foreignKeyName(table, column)),
		m.QuoteIdentifier(column),
		m.QuoteIdentifier(ref.Table),
		m.QuoteIdentifier(ref.Column),
		referentialClauses(ref)), nil
}

func (m *mysql) DropForeignKey(table, constraint string) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s DROP FOREIGN KEY %s", m.QuoteIdentifier(table), m.QuoteIdentifier(constraint)), nil
}

func (m *mysql) IntrospectTablesQuery() string {
	return `SELECT table_name
FROM information_schema.tables
WHERE table_schema = DATABASE()
  AND table_type = 'BASE TABLE'
ORDER BY table_name`
}

func (m *mysql) IntrospectColumnsQuery() string {
	return `SELECT
    column_name,
    data_type,
    column_type,
    is_nullable,
    column_default,
    character_maximum_length,
    numeric_precision,
    numeric_scale,
    extra
FROM information_schema.columns
WHERE table_schema = DATABASE()
  AND table_name = ?
ORDER BY ordinal_position`
}

func (m *mysql) IntrospectIndexesQuery() string {
	return `SELECT
    index_name,
    column_name,
    non_unique,
    index_type
FROM information_schema.statistics
WHERE table_schema = DATABASE()
  AND table_name = ?
ORDER BY index_name, seq_in_index`
}

const mysqlForeignKeysQuery = `SELECT
    kcu.constraint_name,
    kcu.column_name,
    kcu.referenced_table_name,
    kcu.referenced_column_name,
    rc.delete_rule,
    rc.update_rule
FROM information_schema.key_column_usage kcu
JOIN information_schema.referential_constraints rc
  ON rc.constraint_name = kcu.constraint_name
 AND rc.constraint_schema = kcu.table_schema
WHERE kcu.table_schema = DATABASE()
  AND kcu.table_name = ?
  AND kcu.referenced_table_name IS NOT NULL
ORDER BY kcu.constraint_name, kcu.ordinal_position`
