package dialect

import (
	"fmt"
	"strings"

	"launchpad/internal/core"
)

// fkMode controls where CREATE TABLE places foreign keys: inline on the
// column (Postgres, SQLite) or as trailing CONSTRAINT clauses (MySQL).
type fkMode int

const (
	inlineForeignKeys fkMode = iota
	constraintForeignKeys
)

// columnDefinition renders one column clause of a CREATE TABLE or ADD COLUMN
// statement.
func columnDefinition(d Dialect, c *core.ColumnDefinition, mode fkMode) (string, error) {
	if !core.ValidColumnType(c.Type) {
		return "", fmt.Errorf("column %s: unknown type %q", c.Name, c.Type)
	}
	var sb strings.Builder
	sb.WriteString(d.QuoteIdentifier(c.Name))
	sb.WriteByte(' ')
	sb.WriteString(d.MapType(c.Type))

	if !c.Nullable {
		sb.WriteString(" NOT NULL")
	}
	if c.Unique {
		sb.WriteString(" UNIQUE")
	}
	if expr := defaultExpr(d, c); expr != "" {
		sb.WriteString(" DEFAULT ")
		sb.WriteString(expr)
	}
	if c.References != nil && mode == inlineForeignKeys {
		sb.WriteString(" REFERENCES ")
		sb.WriteString(d.QuoteIdentifier(c.References.Table))
		sb.WriteByte('(')
		sb.WriteString(d.QuoteIdentifier(c.References.Column))
		sb.WriteByte(')')
		sb.WriteString(referentialClauses(c.References))
	}
	return sb.String(), nil
}

// buildCreateTable renders CREATE TABLE with one clause per column in
// declaration order, an inline PRIMARY KEY on the single key column, or a
// trailing PRIMARY KEY clause for composite keys.
func buildCreateTable(d Dialect, t *core.TableDefinition, mode fkMode) (string, error) {
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("table %s has no columns", t.Name)
	}
	pk := t.PrimaryKeyColumns()
	composite := len(pk) > 1

	clauses := make([]string, 0, len(t.Columns)+2)
	for _, c := range t.Columns {
		def, err := columnDefinition(d, c, mode)
		if err != nil {
			return "", fmt.Errorf("table %s: %w", t.Name, err)
		}
		if !composite && c.PrimaryKey {
			def += " PRIMARY KEY"
		}
		clauses = append(clauses, def)
	}

	if composite {
		quoted := make([]string, len(pk))
		for i, col := range pk {
			quoted[i] = d.QuoteIdentifier(col)
		}
		clauses = append(clauses, "PRIMARY KEY ("+strings.Join(quoted, ", ")+")")
	}

	if mode == constraintForeignKeys {
		for _, c := range t.Columns {
			if c.References == nil {
				continue
			}
			clauses = append(clauses, fmt.Sprintf("CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s(%s)%s",
				d.QuoteIdentifier(foreignKeyName(t.Name, c.Name)),
				d.QuoteIdentifier(c.Name),
				d.QuoteIdentifier(c.References.Table),
				d.QuoteIdentifier(c.References.Column),
				referentialClauses(c.References)))
		}
	}

	var sb strings.Builder
	sb.WriteString("CREATE TABLE ")
	sb.WriteString(d.QuoteIdentifier(t.Name))
	sb.WriteString(" (\n  ")
	sb.WriteString(strings.Join(clauses, ",\n  "))
	sb.WriteString("\n)")
	return sb.String(), nil
}

// buildCreateIndex renders CREATE [UNIQUE] INDEX with the resolved index
// name and an optional partial predicate.
func buildCreateIndex(d Dialect, table string, idx *core.IndexDefinition) string {
	var sb strings.Builder
	sb.WriteString("CREATE ")
	if idx.Unique {
		sb.WriteString("UNIQUE ")
	}
	sb.WriteString("INDEX ")
	sb.WriteString(d.QuoteIdentifier(idx.ResolvedName(table)))
	sb.WriteString(" ON ")
	sb.WriteString(d.QuoteIdentifier(table))
	sb.WriteString(" (")
	for i, col := range idx.Columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(d.QuoteIdentifier(col))
	}
	sb.WriteByte(')')
	if idx.Where != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(idx.Where)
	}
	return sb.String()
}
