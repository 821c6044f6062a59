package introspect

import (
	"context"
	"fmt"
	"strings"

	"launchpad/internal/dialect"
)

func introspectPostgres(ctx context.Context, q Querier, d dialect.Dialect) ([]IntrospectedTable, error) {
	names, err := tableNames(ctx, q, d.IntrospectTablesQuery(), "table_name")
	if err != nil {
		return nil, err
	}

	tables := make([]IntrospectedTable, 0, len(names))
	for _, name := range names {
		table := IntrospectedTable{Name: name}

		cols, err := q.Query(ctx, d.IntrospectColumnsQuery(), name)
		if err != nil {
			return nil, fmt.Errorf("introspect columns of %s: %w", name, err)
		}
		for _, row := range cols.Rows {
			table.Columns = append(table.Columns, IntrospectedColumn{
				Name:               rowString(row, "column_name"),
				DataType:           rowString(row, "data_type"),
				UDTName:            rowString(row, "udt_name"),
				IsNullable:         rowBool(row, "is_nullable"),
				DefaultValue:       rowStringPtr(row, "column_default"),
				MaxLength:          rowInt64Ptr(row, "character_maximum_length"),
				NumericPrecision:   rowInt64Ptr(row, "numeric_precision"),
				NumericScale:       rowInt64Ptr(row, "numeric_scale"),
				IsIdentity:         rowBool(row, "is_identity"),
				IdentityGeneration: rowString(row, "identity_generation"),
			})
		}

		idx, err := q.Query(ctx, d.IntrospectIndexesQuery(), name)
		if err != nil {
			return nil, fmt.Errorf("introspect indexes of %s: %w", name, err)
		}
		table.Indexes = groupIndexRows(idx.Rows, "index_name", "column_name", func(row map[string]any) (bool, bool, string) {
			return rowBool(row, "is_unique"), rowBool(row, "is_primary"), rowString(row, "index_type")
		})
		for _, i := range table.Indexes {
			if i.IsPrimary {
				table.PrimaryKey = append([]string(nil), i.Columns...)
			}
		}

		fks, err := q.Query(ctx, dialect.ForeignKeysQuery(d), name)
		if err != nil {
			return nil, fmt.Errorf("introspect foreign keys of %s: %w", name, err)
		}
		table.ForeignKeys = groupForeignKeyRows(fks.Rows,
			"constraint_name", "column_name", "referenced_table", "referenced_column", "delete_rule", "update_rule")

		tables = append(tables, table)
	}
	return tables, nil
}

func tableNames(ctx context.Context, q Querier, query, column string) ([]string, error) {
	res, err := q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("introspect tables: %w", err)
	}
	names := make([]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		name := rowString(row, column)
		if name == "" {
			// MySQL reports TABLE_NAME in upper case depending on server
			// configuration.
			name = rowString(row, strings.ToUpper(column))
		}
		if name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

// groupIndexRows folds one row-per-column index listings into one entry per
// index, preserving column order.
func groupIndexRows(rows []map[string]any, nameKey, columnKey string, attrs func(map[string]any) (unique, primary bool, indexType string)) []IntrospectedIndex {
	var out []IntrospectedIndex
	byName := make(map[string]int)
	for _, row := range rows {
		name := rowString(row, nameKey)
		if name == "" {
			continue
		}
		pos, ok := byName[name]
		if !ok {
			unique, primary, indexType := attrs(row)
			out = append(out, IntrospectedIndex{
				Name:      name,
				IsUnique:  unique,
				IsPrimary: primary,
				Type:      indexType,
			})
			pos = len(out) - 1
			byName[name] = pos
		}
		if col := rowString(row, columnKey); col != "" {
			out[pos].Columns = append(out[pos].Columns, col)
		}
	}
	return out
}

// groupForeignKeyRows folds one row-per-column FK listings into one entry per
// constraint.
func groupForeignKeyRows(rows []map[string]any, nameKey, columnKey, refTableKey, refColumnKey, deleteKey, updateKey string) []IntrospectedForeignKey {
	var out []IntrospectedForeignKey
	byName := make(map[string]int)
	for _, row := range rows {
		name := rowString(row, nameKey)
		if name == "" {
			continue
		}
		pos, ok := byName[name]
		if !ok {
			out = append(out, IntrospectedForeignKey{
				Name:            name,
				ReferencedTable: rowString(row, refTableKey),
				OnDelete:        rowString(row, deleteKey),
				OnUpdate:        rowString(row, updateKey),
			})
			pos = len(out) - 1
			byName[name] = pos
		}
		out[pos].Columns = append(out[pos].Columns, rowString(row, columnKey))
		out[pos].ReferencedColumns = append(out[pos].ReferencedColumns, rowString(row, refColumnKey))
	}
	return out
}
