// Package core contains the single source of truth for the declarative
// schema model. It provides a structured representation of tables, columns,
// indexes, and references that every other layer (dialects, diff engine,
// registry, introspection) consumes and produces.
package core

import (
	"fmt"
	"strings"
)

// ColumnType is the closed set of semantic column types. Dialects map each
// value to a native SQL type; the introspector classifies native types back
// into this set.
type ColumnType string

const (
	TypeUUID     ColumnType = "uuid"
	TypeString   ColumnType = "string"
	TypeText     ColumnType = "text"
	TypeInteger  ColumnType = "integer"
	TypeBigint   ColumnType = "bigint"
	TypeFloat    ColumnType = "float"
	TypeDecimal  ColumnType = "decimal"
	TypeBoolean  ColumnType = "boolean"
	TypeDatetime ColumnType = "datetime"
	TypeDate     ColumnType = "date"
	TypeTime     ColumnType = "time"
	TypeJSON     ColumnType = "json"
	TypeBinary   ColumnType = "binary"
)

// ColumnTypes returns all semantic column types.
func ColumnTypes() []ColumnType {
	return []ColumnType{
		TypeUUID, TypeString, TypeText, TypeInteger, TypeBigint,
		TypeFloat, TypeDecimal, TypeBoolean, TypeDatetime, TypeDate,
		TypeTime, TypeJSON, TypeBinary,
	}
}

// ValidColumnType reports whether t is one of the semantic column types.
func ValidColumnType(t ColumnType) bool {
	for _, known := range ColumnTypes() {
		if known == t {
			return true
		}
	}
	return false
}

// ReferentialAction is the action taken on a referencing row when the
// referenced row is deleted or updated.
type ReferentialAction string

const (
	RefActionCascade  ReferentialAction = "CASCADE"
	RefActionSetNull  ReferentialAction = "SET NULL"
	RefActionRestrict ReferentialAction = "RESTRICT"
	RefActionNoAction ReferentialAction = "NO ACTION"
)

// Reference is a foreign-key target declared inline on a column.
type Reference struct {
	// Table is the referenced table name.
	Table string `json:"table"`
	// Column is the referenced column name.
	Column string `json:"column"`
	// OnDelete is the referential action when the referenced row is deleted.
	OnDelete ReferentialAction `json:"onDelete,omitempty"`
	// OnUpdate is the referential action when the referenced row is updated.
	OnUpdate ReferentialAction `json:"onUpdate,omitempty"`
}

// ColumnDefinition describes one column of a declared table.
type ColumnDefinition struct {
	// Name is the column identifier as declared in the schema.
	Name string `json:"name"`
	// Type is the semantic column type; dialects map it to native SQL.
	Type ColumnType `json:"type"`
	// Nullable indicates whether the column allows NULL values.
	Nullable bool `json:"nullable,omitempty"`
	// PrimaryKey marks the column as the table's single-column primary key.
	// Composite keys are declared on the table instead.
	PrimaryKey bool `json:"primaryKey,omitempty"`
	// Unique marks the column as carrying a UNIQUE constraint.
	Unique bool `json:"unique,omitempty"`
	// Default is the dialect-neutral DEFAULT expression (nil means no
	// default). The tokens gen_random_uuid() and now()/NOW() are rewritten
	// per dialect at emission time.
	Default *string `json:"default,omitempty"`
	// References declares an inline foreign key to another table's column.
	References *Reference `json:"references,omitempty"`
	// Tenant marks the column as a tenant-scoping column. The registry
	// requires it on app_id and organization_id.
	Tenant bool `json:"tenant,omitempty"`
}

// IndexDefinition describes one index of a declared table.
type IndexDefinition struct {
	// Name is the index identifier. Empty means the generated default
	// idx_<table>_<col1>_<col2>… is used.
	Name string `json:"name,omitempty"`
	// Columns lists the indexed column names in order.
	Columns []string `json:"columns"`
	// Unique marks the index as a UNIQUE index.
	Unique bool `json:"unique,omitempty"`
	// Where is an optional partial-index predicate.
	Where string `json:"where,omitempty"`
}

// DefaultIndexName produces the generated name for an index on the given
// table: idx_<table>_<col1>_<col2>…
func DefaultIndexName(table string, columns []string) string {
	return "idx_" + table + "_" + strings.Join(columns, "_")
}

// ResolvedName returns the index name, falling back to the generated default.
func (i *IndexDefinition) ResolvedName(table string) string {
	if i.Name != "" {
		return i.Name
	}
	return DefaultIndexName(table, i.Columns)
}

// TableDefinition describes one declared table. Column order is significant:
// generated DDL lists columns in declaration order.
type TableDefinition struct {
	// Name is the table identifier.
	Name string `json:"name"`
	// Columns lists the table's columns in declaration order.
	Columns []*ColumnDefinition `json:"columns"`
	// Indexes lists the table's secondary indexes.
	Indexes []*IndexDefinition `json:"indexes,omitempty"`
	// PrimaryKey declares a composite primary key. It is consulted only
	// when more than one column participates; a single-column key uses the
	// column's PrimaryKey flag.
	PrimaryKey []string `json:"primaryKey,omitempty"`
}

// SchemaDefinition is a complete declared schema: an ordered set of tables.
type SchemaDefinition struct {
	Tables []*TableDefinition `json:"tables"`
}

// FindTable looks for a table by name inside a schema.
func (s *SchemaDefinition) FindTable(name string) *TableDefinition {
	if s == nil {
		return nil
	}
	for _, t := range s.Tables {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// FindColumn looks for a column by name inside a table.
func (t *TableDefinition) FindColumn(name string) *ColumnDefinition {
	for _, c := range t.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// FindIndex looks for an index by resolved name inside a table.
func (t *TableDefinition) FindIndex(name string) *IndexDefinition {
	for _, i := range t.Indexes {
		if i.ResolvedName(t.Name) == name {
			return i
		}
	}
	return nil
}

// PrimaryKeyColumns returns the effective primary-key column list: the
// explicit composite list when it names more than one column, otherwise the
// single column flagged PrimaryKey.
func (t *TableDefinition) PrimaryKeyColumns() []string {
	if len(t.PrimaryKey) > 1 {
		return t.PrimaryKey
	}
	for _, c := range t.Columns {
		if c.PrimaryKey {
			return []string{c.Name}
		}
	}
	return nil
}

// String returns a short human description of the table.
func (t *TableDefinition) String() string {
	return fmt.Sprintf("Table: %s (%d cols, %d indexes)", t.Name, len(t.Columns), len(t.Indexes))
}

// Equal reports whether two column definitions are structurally equal. It
// compares type, nullability, uniqueness, default expression, and the
// foreign-key reference; the tenant and primary-key flags do not participate
// because they never change in place.
func (c *ColumnDefinition) Equal(other *ColumnDefinition) bool {
	if c == nil || other == nil {
		return c == other
	}
	if c.Type != other.Type {
		return false
	}
	if c.Nullable != other.Nullable {
		return false
	}
	if c.Unique != other.Unique {
		return false
	}
	if ptrStr(c.Default) != ptrStr(other.Default) {
		return false
	}
	return referencesEqual(c.References, other.References)
}

func referencesEqual(a, b *Reference) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Table == b.Table &&
		a.Column == b.Column &&
		a.OnDelete == b.OnDelete &&
		a.OnUpdate == b.OnUpdate
}

// Equal reports whether two index definitions cover the same columns with the
// same uniqueness and predicate.
func (i *IndexDefinition) Equal(other *IndexDefinition) bool {
	if i == nil || other == nil {
		return i == other
	}
	if i.Unique != other.Unique || i.Where != other.Where {
		return false
	}
	if len(i.Columns) != len(other.Columns) {
		return false
	}
	for n := range i.Columns {
		if i.Columns[n] != other.Columns[n] {
			return false
		}
	}
	return true
}

func ptrStr(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// StringPtr returns a pointer to s. Convenience for declaring defaults.
func StringPtr(s string) *string {
	return &s
}
