// Package introspect reads live database metadata back into the declarative
// schema model. Each dialect has its own catalog reader; the entry point
// selects it by dialect and applies the shared table filtering.
package introspect

import (
	"context"
	"fmt"
	"strings"

	"launchpad/internal/core"
	"launchpad/internal/dialect"
	"launchpad/internal/driver"
)

// Querier is the read surface the introspector needs. *driver.Driver and its
// transaction client both satisfy it.
type Querier interface {
	Query(ctx context.Context, query string, params ...any) (*driver.QueryResult, error)
}

// IntrospectedColumn is one column as reported by the catalog.
type IntrospectedColumn struct {
	Name               string  `json:"name"`
	DataType           string  `json:"dataType"`
	UDTName            string  `json:"udtName,omitempty"`
	IsNullable         bool    `json:"isNullable"`
	DefaultValue       *string `json:"defaultValue,omitempty"`
	MaxLength          *int64  `json:"maxLength,omitempty"`
	NumericPrecision   *int64  `json:"numericPrecision,omitempty"`
	NumericScale       *int64  `json:"numericScale,omitempty"`
	IsIdentity         bool    `json:"isIdentity"`
	IdentityGeneration string  `json:"identityGeneration,omitempty"`
}

// IntrospectedIndex is one index as reported by the catalog.
type IntrospectedIndex struct {
	Name       string   `json:"name"`
	Columns    []string `json:"columns"`
	IsUnique   bool     `json:"isUnique"`
	IsPrimary  bool     `json:"isPrimary"`
	Type       string   `json:"type,omitempty"`
	Expression string   `json:"expression,omitempty"`
}

// IntrospectedForeignKey is one foreign key as reported by the catalog.
type IntrospectedForeignKey struct {
	Name              string   `json:"name"`
	Columns           []string `json:"columns"`
	ReferencedTable   string   `json:"referencedTable"`
	ReferencedColumns []string `json:"referencedColumns"`
	OnDelete          string   `json:"onDelete,omitempty"`
	OnUpdate          string   `json:"onUpdate,omitempty"`
}

// IntrospectedTable is one live table with everything the diff engine needs.
type IntrospectedTable struct {
	Name        string                   `json:"name"`
	Columns     []IntrospectedColumn     `json:"columns"`
	Indexes     []IntrospectedIndex      `json:"indexes"`
	ForeignKeys []IntrospectedForeignKey `json:"foreignKeys"`
	PrimaryKey  []string                 `json:"primaryKey"`
	Constraints []string                 `json:"constraints,omitempty"`
}

// Options tunes introspection.
type Options struct {
	// IncludeLaunchpadTables keeps the engine's own lp_ tables in the
	// result. System catalogs (pg_, sql_, sqlite_) stay filtered either way.
	IncludeLaunchpadTables bool
}

// Tables reads the full set of user tables for the querier's dialect.
func Tables(ctx context.Context, q Querier, d dialect.Dialect, opts Options) ([]IntrospectedTable, error) {
	var (
		tables []IntrospectedTable
		err    error
	)
	switch d.Name() {
	case dialect.Postgres:
		tables, err = introspectPostgres(ctx, q, d)
	case dialect.MySQL:
		tables, err = introspectMySQL(ctx, q, d)
	case dialect.SQLite:
		tables, err = introspectSQLite(ctx, q, d)
	default:
		return nil, &dialect.NotSupportedError{Dialect: string(d.Name())}
	}
	if err != nil {
		return nil, err
	}

	filtered := tables[:0]
	for _, t := range tables {
		if isSystemTable(t.Name) {
			continue
		}
		if !opts.IncludeLaunchpadTables && strings.HasPrefix(t.Name, "lp_") {
			continue
		}
		filtered = append(filtered, t)
	}
	return filtered, nil
}

func isSystemTable(name string) bool {
	return strings.HasPrefix(name, "pg_") ||
		strings.HasPrefix(name, "sql_") ||
		strings.HasPrefix(name, "sqlite_")
}

// ToSchemaDefinition converts introspected tables back into the declarative
// model so the diff engine can compare live state against a declared schema.
func ToSchemaDefinition(tables []IntrospectedTable) *core.SchemaDefinition {
	schema := &core.SchemaDefinition{}
	for _, t := range tables {
		schema.Tables = append(schema.Tables, tableToDefinition(t))
	}
	return schema
}

func tableToDefinition(t IntrospectedTable) *core.TableDefinition {
	def := &core.TableDefinition{Name: t.Name}

	singlePK := ""
	if len(t.PrimaryKey) == 1 {
		singlePK = t.PrimaryKey[0]
	} else if len(t.PrimaryKey) > 1 {
		def.PrimaryKey = append([]string(nil), t.PrimaryKey...)
	}

	uniqueCols := singleColumnUniqueIndexes(t)
	fkByColumn := singleColumnForeignKeys(t)

	for _, c := range t.Columns {
		col := &core.ColumnDefinition{
			Name:       c.Name,
			Type:       core.ClassifyDataType(c.DataType, c.UDTName),
			Nullable:   c.IsNullable,
			PrimaryKey: c.Name == singlePK,
			Unique:     uniqueCols[c.Name] && c.Name != singlePK,
		}
		if c.DefaultValue != nil {
			col.Default = core.StringPtr(*c.DefaultValue)
		}
		if fk, ok := fkByColumn[c.Name]; ok {
			col.References = &core.Reference{
				Table:    fk.ReferencedTable,
				Column:   fk.ReferencedColumns[0],
				OnDelete: core.ReferentialAction(strings.ToUpper(fk.OnDelete)),
				OnUpdate: core.ReferentialAction(strings.ToUpper(fk.OnUpdate)),
			}
		}
		def.Columns = append(def.Columns, col)
	}

	for _, idx := range t.Indexes {
		if idx.IsPrimary {
			continue
		}
		// Single-column unique indexes surfaced as the column's Unique flag.
		if idx.IsUnique && len(idx.Columns) == 1 && uniqueCols[idx.Columns[0]] {
			continue
		}
		def.Indexes = append(def.Indexes, &core.IndexDefinition{
			Name:    idx.Name,
			Columns: append([]string(nil), idx.Columns...),
			Unique:  idx.IsUnique,
		})
	}
	return def
}

func singleColumnUniqueIndexes(t IntrospectedTable) map[string]bool {
	out := make(map[string]bool)
	for _, idx := range t.Indexes {
		if idx.IsUnique && !idx.IsPrimary && len(idx.Columns) == 1 {
			out[idx.Columns[0]] = true
		}
	}
	return out
}

func singleColumnForeignKeys(t IntrospectedTable) map[string]IntrospectedForeignKey {
	out := make(map[string]IntrospectedForeignKey)
	for _, fk := range t.ForeignKeys {
		if len(fk.Columns) == 1 && len(fk.ReferencedColumns) == 1 {
			out[fk.Columns[0]] = fk
		}
	}
	return out
}

// Row-value coercion helpers. Catalog values arrive as whatever the driver
// hands back: strings, int64s, bools, or nil.

func rowString(row map[string]any, key string) string {
	switch v := row[key].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

func rowStringPtr(row map[string]any, key string) *string {
	if row[key] == nil {
		return nil
	}
	s := rowString(row, key)
	return &s
}

func rowBool(row map[string]any, key string) bool {
	switch v := row[key].(type) {
	case bool:
		return v
	case int64:
		return v != 0
	case string:
		lower := strings.ToLower(v)
		return lower == "yes" || lower == "true" || lower == "t" || lower == "1"
	default:
		return false
	}
}

func rowInt64Ptr(row map[string]any, key string) *int64 {
	switch v := row[key].(type) {
	case int64:
		return &v
	case int:
		n := int64(v)
		return &n
	case string:
		var n int64
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return &n
		}
		return nil
	default:
		return nil
	}
}

func rowInt64(row map[string]any, key string) int64 {
	if p := rowInt64Ptr(row, key); p != nil {
		return *p
	}
	return 0
}
