package introspect

import (
	"context"
	"fmt"
	"strings"

	"launchpad/internal/dialect"
)

func introspectMySQL(ctx context.Context, q Querier, d dialect.Dialect) ([]IntrospectedTable, error) {
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
			extra := strings.ToLower(rowString(row, "extra"))
			table.Columns = append(table.Columns, IntrospectedColumn{
				Name:             rowString(row, "column_name"),
				DataType:         rowString(row, "data_type"),
				UDTName:          rowString(row, "column_type"),
				IsNullable:       rowBool(row, "is_nullable"),
				DefaultValue:     rowStringPtr(row, "column_default"),
				MaxLength:        rowInt64Ptr(row, "character_maximum_length"),
				NumericPrecision: rowInt64Ptr(row, "numeric_precision"),
				NumericScale:     rowInt64Ptr(row, "numeric_scale"),
				IsIdentity:       strings.Contains(extra, "auto_increment"),
			})
		}

		idx, err := q.Query(ctx, d.IntrospectIndexesQuery(), name)
		if err != nil {
			return nil, fmt.Errorf("introspect indexes of %s: %w", name, err)
		}
		table.Indexes = groupIndexRows(idx.Rows, "index_name", "column_name", func(row map[string]any) (bool, bool, string) {
			unique := rowInt64(row, "non_unique") == 0
			primary := strings.EqualFold(rowString(row, "index_name"), "PRIMARY")
			return unique, primary, rowString(row, "index_type")
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
			"constraint_name", "column_name", "referenced_table_name", "referenced_column_name", "delete_rule", "update_rule")

		tables = append(tables, table)
	}
	return tables, nil
}
