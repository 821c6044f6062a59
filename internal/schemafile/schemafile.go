// Package schemafile reads declarative schema definitions from disk. Two
// formats exist: a TOML format with one [[tables]] array entry per table,
// and the canonical JSON serialization of core.SchemaDefinition.
package schemafile

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"launchpad/internal/core"
)

// schemaFile is the top-level TOML document.
type schemaFile struct {
	Tables []tomlTable `toml:"tables"`
}

// tomlTable maps one [[tables]] entry. Column order in the file is the
// declaration order of the generated DDL.
type tomlTable struct {
	Name       string       `toml:"name"`
	PrimaryKey []string     `toml:"primary_key"`
	Columns    []tomlColumn `toml:"columns"`
	Indexes    []tomlIndex  `toml:"indexes"`
}

// tomlColumn maps [[tables.columns]].
type tomlColumn struct {
	Name       string `toml:"name"`
	Type       string `toml:"type"`
	Nullable   bool   `toml:"nullable"`
	PrimaryKey bool   `toml:"primary_key"`
	Unique     bool   `toml:"unique"`
	Tenant     bool   `toml:"tenant"`

	// Default accepts string, bool, or number; everything normalizes to a
	// string expression.
	Default any `toml:"default"`

	// References is inline foreign-key shorthand in "table.column" format.
	References string `toml:"references"`
	OnDelete   string `toml:"on_delete"`
	OnUpdate   string `toml:"on_update"`
}

// tomlIndex maps [[tables.indexes]].
type tomlIndex struct {
	Name    string   `toml:"name"`
	Columns []string `toml:"columns"`
	Unique  bool     `toml:"unique"`
	Where   string   `toml:"where"`
}

// Load reads a schema definition, selecting the format by file extension
// (.toml, or .json for the canonical serialization).
func Load(path string) (*core.SchemaDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file %q: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return parseTOML(data)
	case ".json":
		return parseJSON(data)
	default:
		return nil, fmt.Errorf("schema file %q: unsupported extension; use .toml or .json", path)
	}
}

// Parse reads a TOML schema from a reader.
func Parse(r io.Reader) (*core.SchemaDefinition, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return parseTOML(data)
}

func parseJSON(data []byte) (*core.SchemaDefinition, error) {
	var schema core.SchemaDefinition
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("decode schema json: %w", err)
	}
	return &schema, nil
}

func parseTOML(data []byte) (*core.SchemaDefinition, error) {
	var sf schemaFile
	if err := toml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("decode schema toml: %w", err)
	}

	schema := &core.SchemaDefinition{}
	for _, t := range sf.Tables {
		table, err := convertTable(t)
		if err != nil {
			return nil, err
		}
		schema.Tables = append(schema.Tables, table)
	}
	return schema, nil
}

func convertTable(t tomlTable) (*core.TableDefinition, error) {
	if strings.TrimSpace(t.Name) == "" {
		return nil, fmt.Errorf("table with no name")
	}
	table := &core.TableDefinition{
		Name:       t.Name,
		PrimaryKey: t.PrimaryKey,
	}

	for _, c := range t.Columns {
		col, err := convertColumn(t.Name, c)
		if err != nil {
			return nil, err
		}
		table.Columns = append(table.Columns, col)
	}

	for _, i := range t.Indexes {
		table.Indexes = append(table.Indexes, &core.IndexDefinition{
			Name:    i.Name,
			Columns: i.Columns,
			Unique:  i.Unique,
			Where:   i.Where,
		})
	}
	return table, nil
}

func convertColumn(table string, c tomlColumn) (*core.ColumnDefinition, error) {
	col := &core.ColumnDefinition{
		Name:       c.Name,
		Type:       core.ColumnType(c.Type),
		Nullable:   c.Nullable,
		PrimaryKey: c.PrimaryKey,
		Unique:     c.Unique,
		Tenant:     c.Tenant,
	}

	if c.Default != nil {
		expr, err := defaultToString(c.Default)
		if err != nil {
			return nil, fmt.Errorf("table %s column %s: %w", table, c.Name, err)
		}
		col.Default = core.StringPtr(expr)
	}

	if c.References != "" {
		refTable, refColumn, ok := splitReference(c.References)
		if !ok {
			return nil, fmt.Errorf("table %s column %s: bad reference %q; use \"table.column\"", table, c.Name, c.References)
		}
		col.References = &core.Reference{
			Table:    refTable,
			Column:   refColumn,
			OnDelete: core.ReferentialAction(strings.ToUpper(strings.TrimSpace(c.OnDelete))),
			OnUpdate: core.ReferentialAction(strings.ToUpper(strings.TrimSpace(c.OnUpdate))),
		}
	}
	return col, nil
}

func defaultToString(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case bool:
		if t {
			return "TRUE", nil
		}
		return "FALSE", nil
	case int64:
		return fmt.Sprintf("%d", t), nil
	case float64:
		return fmt.Sprintf("%g", t), nil
	default:
		return "", fmt.Errorf("unsupported default value type %T", v)
	}
}

// splitReference splits "table.column" at the last dot.
func splitReference(ref string) (table, column string, ok bool) {
	ref = strings.TrimSpace(ref)
	dot := strings.LastIndex(ref, ".")
	if dot <= 0 || dot >= len(ref)-1 {
		return "", "", false
	}
	return ref[:dot], ref[dot+1:], true
}
