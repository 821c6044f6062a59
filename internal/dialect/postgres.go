package dialect

import (
	"fmt"
	"strings"

	"launchpad/internal/core"
)

type postgres struct{}

func (p *postgres) Name() Type         { return Postgres }
func (p *postgres) DriverName() string { return "postgres" }

func (p *postgres) SupportsTransactionalDDL() bool { return true }
func (p *postgres) SupportsReturning() bool        { return true }

func (p *postgres) MapType(t core.ColumnType) string {
	switch t {
	case core.TypeUUID:
		return "UUID"
	case core.TypeString, core.TypeText:
		return "TEXT"
	case core.TypeInteger:
		return "INTEGER"
	case core.TypeBigint:
		return "BIGINT"
	case core.TypeFloat:
		return "DOUBLE PRECISION"
	case core.TypeDecimal:
		return "NUMERIC"
	case core.TypeBoolean:
		return "BOOLEAN"
	case core.TypeDatetime:
		return "TIMESTAMPTZ"
	case core.TypeDate:
		return "DATE"
	case core.TypeTime:
		return "TIME"
	case core.TypeJSON:
		return "JSONB"
	case core.TypeBinary:
		return "BYTEA"
	default:
		return "TEXT"
	}
}

func (p *postgres) QuoteIdentifier(name string) string {
	return quoteWith(name, '"')
}

func (p *postgres) Placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

func (p *postgres) RewriteDefault(expr string) string {
	// gen_random_uuid() and now() are native.
	return expr
}

func (p *postgres) CreateTable(t *core.TableDefinition) (string, error) {
	return buildCreateTable(p, t, inlineForeignKeys)
}

func (p *postgres) DropTable(name string) string {
	return "DROP TABLE IF EXISTS " + p.QuoteIdentifier(name)
}

func (p *postgres) AddColumn(table string, c *core.ColumnDefinition) (string, error) {
	def, err := columnDefinition(p, c, inlineForeignKeys)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", p.QuoteIdentifier(table), def), nil
}

func (p *postgres) DropColumn(table, column string) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", p.QuoteIdentifier(table), p.QuoteIdentifier(column)), nil
}

// AlterColumn returns one statement per changed aspect. Type, nullability,
// and default cannot be combined in a single ALTER COLUMN action.
func (p *postgres) AlterColumn(table string, oldCol, newCol *core.ColumnDefinition) ([]string, error) {
	qt := p.QuoteIdentifier(table)
	qc := p.QuoteIdentifier(newCol.Name)
	var stmts []string

	if oldCol == nil || oldCol.Type != newCol.Type {
		native := p.MapType(newCol.Type)
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s USING %s::%s", qt, qc, native, qc, native))
	}
	if oldCol == nil || oldCol.Nullable != newCol.Nullable {
		if newCol.Nullable {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP NOT NULL", qt, qc))
		} else {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET NOT NULL", qt, qc))
		}
	}
	oldDefault := defaultExpr(p, oldCol)
	newDefault := defaultExpr(p, newCol)
	if oldDefault != newDefault {
		if newDefault == "" {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP DEFAULT", qt, qc))
		} else {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET DEFAULT %s", qt, qc, newDefault))
		}
	}
	return stmts, nil
}

func (p *postgres) CreateIndex(table string, idx *core.IndexDefinition) string {
	return buildCreateIndex(p, table, idx)
}

func (p *postgres) DropIndex(_, name string) (string, error) {
	return "DROP INDEX IF EXISTS " + p.QuoteIdentifier(name), nil
}

func (p *postgres) AddForeignKey(table, column string, ref *core.Reference) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s(%s)%s",
		p.QuoteIdentifier(table),
		p.QuoteIdentifier(foreignKeyName(table, column)),
		p.QuoteIdentifier(column),
		p.QuoteIdentifier(ref.Table),
		p.QuoteIdentifier(ref.Column),
		referentialClauses(ref)), nil
}

func (p *postgres) DropForeignKey(table, constraint string) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s", p.QuoteIdentifier(table), p.QuoteIdentifier(constraint)), nil
}

func (p *postgres) IntrospectTablesQuery() string {
	return `SELECT table_name
FROM information_schema.tables
WHERE table_schema = current_schema()
  AND table_type = 'BASE TABLE'
ORDER BY table_name`
}

func (p *postgres) IntrospectColumnsQuery() string {
	return `SELECT
    c.column_name,
    c.data_type,
    c.udt_name,
    c.is_nullable,
    c.column_default,
    c.character_maximum_length,
    c.numeric_precision,
    c.numeric_scale,
    c.is_identity,
    c.identity_generation
FROM information_schema.columns c
WHERE c.table_schema = current_schema()
  AND c.table_name = $1
ORDER BY c.ordinal_position`
}

func (p *postgres) IntrospectIndexesQuery() string {
	return `SELECT
    i.relname AS index_name,
    a.attname AS column_name,
    ix.indisunique AS is_unique,
    ix.indisprimary AS is_primary,
    am.amname AS index_type
FROM pg_class t
JOIN pg_index ix ON t.oid = ix.indrelid
JOIN pg_class i ON i.oid = ix.indexrelid
JOIN pg_am am ON i.relam = am.oid
JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
WHERE t.relname = $1
  AND t.relkind = 'r'
ORDER BY i.relname, array_position(ix.indkey, a.attnum)`
}

// postgresForeignKeysQuery is consumed by the introspector alongside the
// interface queries.
const postgresForeignKeysQuery = `SELECT
    tc.constraint_name,
    kcu.column_name,
    ccu.table_name AS referenced_table,
    ccu.column_name AS referenced_column,
    rc.delete_rule,
    rc.update_rule
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON tc.constraint_name = kcu.constraint_name
 AND tc.table_schema = kcu.table_schema
JOIN information_schema.constraint_column_usage ccu
  ON ccu.constraint_name = tc.constraint_name
 AND ccu.table_schema = tc.table_schema
JOIN information_schema.referential_constraints rc
  ON rc.constraint_name = tc.constraint_name
 AND rc.constraint_schema = tc.table_schema
WHERE tc.constraint_type = 'FOREIGN KEY'
  AND tc.table_schema = current_schema()
  AND tc.table_name = $1
ORDER BY tc.constraint_name, kcu.ordinal_position`

func defaultExpr(d Dialect, c *core.ColumnDefinition) string {
	if c == nil || c.Default == nil {
		return ""
	}
	return d.RewriteDefault(strings.TrimSpace(*c.Default))
}
