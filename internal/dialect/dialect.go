// Package dialect provides a unified interface over the supported SQL
// dialects. Each dialect is a pure DDL and convention mapper: semantic type
// mapping, identifier quoting, parameter placeholders, default-token
// rewriting, and the catalog queries the introspector runs. Emitters never
// touch a connection.
package dialect

import (
	"fmt"
	"strings"

	"launchpad/internal/core"
)

// Type identifies a supported SQL dialect.
type Type string

const (
	Postgres Type = "postgres"
	MySQL    Type = "mysql"
	SQLite   Type = "sqlite"
)

// Types returns all supported dialect values.
func Types() []Type {
	return []Type{Postgres, MySQL, SQLite}
}

// Parse normalizes a dialect string. It accepts the common aliases found in
// connection strings (postgresql, pg, mariadb, sqlite3).
func Parse(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "postgres", "postgresql", "pg":
		return Postgres, nil
	case "mysql", "mariadb":
		return MySQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return "", &NotSupportedError{Dialect: s}
	}
}

// Dialect is the capability set one SQL flavor exposes to the rest of the
// engine. One implementation struct exists per dialect; New selects it with
// a plain switch.
type Dialect interface {
	// Name returns the dialect identifier.
	Name() Type
	// DriverName returns the database/sql driver registration name.
	DriverName() string

	// MapType maps a semantic column type to the native SQL type.
	MapType(t core.ColumnType) string
	// QuoteIdentifier quotes an identifier, splitting dotted paths and
	// passing expressions and * through unchanged.
	QuoteIdentifier(name string) string
	// Placeholder returns the parameter placeholder for 1-based position n.
	Placeholder(n int) string
	// RewriteDefault rewrites the recognized dialect-neutral default tokens
	// (gen_random_uuid(), now()) into native expressions.
	RewriteDefault(expr string) string
	// SupportsTransactionalDDL reports whether DDL participates in
	// transactions on this dialect.
	SupportsTransactionalDDL() bool
	// SupportsReturning reports whether the dialect accepts a RETURNING
	// clause on writes.
	SupportsReturning() bool

	// CreateTable emits the CREATE TABLE statement for a declared table.
	CreateTable(t *core.TableDefinition) (string, error)
	// DropTable emits the DROP TABLE statement.
	DropTable(name string) string
	// AddColumn emits the ALTER TABLE … ADD COLUMN statement.
	AddColumn(table string, c *core.ColumnDefinition) (string, error)
	// DropColumn emits the ALTER TABLE … DROP COLUMN statement.
	DropColumn(table, column string) (string, error)
	// AlterColumn emits the statements that transform old into new. The
	// result is a list: Postgres splits type, nullability, and default
	// changes into separate statements.
	AlterColumn(table string, oldCol, newCol *core.ColumnDefinition) ([]string, error)
	// CreateIndex emits the CREATE INDEX statement.
	CreateIndex(table string, idx *core.IndexDefinition) string
	// DropIndex emits the DROP INDEX statement. MySQL requires the table
	// name and errors without it.
	DropIndex(table, name string) (string, error)
	// AddForeignKey emits the statement adding a foreign key on an existing
	// column.
	AddForeignKey(table, column string, ref *core.Reference) (string, error)
	// DropForeignKey emits the statement dropping a named foreign key.
	DropForeignKey(table, constraint string) (string, error)

	// IntrospectTablesQuery returns the catalog query listing user tables.
	IntrospectTablesQuery() string
	// IntrospectColumnsQuery returns the catalog query listing the columns
	// of one table (one positional parameter, or a format string for the
	// PRAGMA-based SQLite path).
	IntrospectColumnsQuery() string
	// IntrospectIndexesQuery returns the catalog query listing the indexes
	// of one table.
	IntrospectIndexesQuery() string
}

// New returns the dialect implementation for t.
func New(t Type) (Dialect, error) {
	switch t {
	case Postgres:
		return &postgres{}, nil
	case MySQL:
		return &mysql{}, nil
	case SQLite:
		return &sqlite{}, nil
	default:
		return nil, &NotSupportedError{Dialect: string(t)}
	}
}

// MustNew is New for statically known dialects; it panics on an unknown type.
func MustNew(t Type) Dialect {
	d, err := New(t)
	if err != nil {
		panic(err)
	}
	return d
}

// NotSupportedError reports a dialect outside the supported set.
type NotSupportedError struct {
	Dialect string
}

func (e *NotSupportedError) Error() string {
	return fmt.Sprintf("dialect %q is not supported (supported: postgres, mysql, sqlite)", e.Dialect)
}

// UnsupportedFeatureError reports an operation a dialect cannot express.
type UnsupportedFeatureError struct {
	Dialect Type
	Feature string
	Hint    string
}

func (e *UnsupportedFeatureError) Error() string {
	msg := fmt.Sprintf("%s does not support %s", e.Dialect, e.Feature)
	if e.Hint != "" {
		msg += ": " + e.Hint
	}
	return msg
}

// quoteWith quotes an identifier with the given quote rune, splitting dotted
// paths so each segment is quoted separately. The literal * passes through,
// as does anything that looks like a SQL expression: a string containing a
// parenthesis or a case-insensitive " as " alias.
func quoteWith(name string, quote byte) string {
	if name == "*" {
		return name
	}
	if strings.ContainsRune(name, '(') || strings.Contains(strings.ToLower(name), " as ") {
		return name
	}
	q := string(quote)
	escaped := q + q
	segments := strings.Split(name, ".")
	for i, seg := range segments {
		segments[i] = q + strings.ReplaceAll(seg, q, escaped) + q
	}
	return strings.Join(segments, ".")
}

// referentialClauses appends ON DELETE / ON UPDATE clauses to a REFERENCES
// expression.
func referentialClauses(ref *core.Reference) string {
	var sb strings.Builder
	if ref.OnDelete != "" {
		sb.WriteString(" ON DELETE ")
		sb.WriteString(string(ref.OnDelete))
	}
	if ref.OnUpdate != "" {
		sb.WriteString(" ON UPDATE ")
		sb.WriteString(string(ref.OnUpdate))
	}
	return sb.String()
}

// foreignKeyName produces the deterministic constraint name for an inline
// reference: fk_<table>_<column>.
func foreignKeyName(table, column string) string {
	return fmt.Sprintf("fk_%s_%s", strings.ToLower(table), strings.ToLower(column))
}
