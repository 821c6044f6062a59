package introspect

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"launchpad/internal/dialect"
)

// introspectSQLite drives the PRAGMA family. PRAGMA takes no bound
// parameters, so table and index names are interpolated after quoting.
func introspectSQLite(ctx context.Context, q Querier, d dialect.Dialect) ([]IntrospectedTable, error) {
	names, err := tableNames(ctx, q, d.IntrospectTablesQuery(), "name")
	if err != nil {
		return nil, err
	}

	tables := make([]IntrospectedTable, 0, len(names))
	for _, name := range names {
		table := IntrospectedTable{Name: name}
		quoted := d.QuoteIdentifier(name)

		cols, err := q.Query(ctx, fmt.Sprintf(d.IntrospectColumnsQuery(), quoted))
		if err != nil {
			return nil, fmt.Errorf("introspect columns of %s: %w", name, err)
		}
		type pkEntry struct {
			name string
			rank int64
		}
		var pk []pkEntry
		for _, row := range cols.Rows {
			colName := rowString(row, "name")
			table.Columns = append(table.Columns, IntrospectedColumn{
				Name:         colName,
				DataType:     rowString(row, "type"),
				IsNullable:   rowInt64(row, "notnull") == 0,
				DefaultValue: rowStringPtr(row, "dflt_value"),
			})
			if rank := rowInt64(row, "pk"); rank > 0 {
				pk = append(pk, pkEntry{name: colName, rank: rank})
			}
		}
		sort.Slice(pk, func(i, j int) bool { return pk[i].rank < pk[j].rank })
		for _, e := range pk {
			table.PrimaryKey = append(table.PrimaryKey, e.name)
		}

		idxList, err := q.Query(ctx, fmt.Sprintf(d.IntrospectIndexesQuery(), quoted))
		if err != nil {
			return nil, fmt.Errorf("introspect indexes of %s: %w", name, err)
		}
		for _, row := range idxList.Rows {
			idxName := rowString(row, "name")
			origin := rowString(row, "origin")
			if strings.HasPrefix(idxName, "sqlite_") {
				continue
			}
			members, err := q.Query(ctx, fmt.Sprintf(dialect.SQLiteIndexColumnsQuery(), d.QuoteIdentifier(idxName)))
			if err != nil {
				return nil, fmt.Errorf("introspect index %s: %w", idxName, err)
			}
			idx := IntrospectedIndex{
				Name:      idxName,
				IsUnique:  rowInt64(row, "unique") != 0,
				IsPrimary: origin == "pk",
			}
			for _, m := range members.Rows {
				if col := rowString(m, "name"); col != "" {
					idx.Columns = append(idx.Columns, col)
				}
			}
			table.Indexes = append(table.Indexes, idx)
		}

		fks, err := q.Query(ctx, fmt.Sprintf(dialect.ForeignKeysQuery(d), quoted))
		if err != nil {
			return nil, fmt.Errorf("introspect foreign keys of %s: %w", name, err)
		}
		byID := make(map[int64]int)
		for _, row := range fks.Rows {
			id := rowInt64(row, "id")
			pos, ok := byID[id]
			if !ok {
				table.ForeignKeys = append(table.ForeignKeys, IntrospectedForeignKey{
					Name:            fmt.Sprintf("fk_%s_%d", name, id),
					ReferencedTable: rowString(row, "table"),
					OnDelete:        rowString(row, "on_delete"),
					OnUpdate:        rowString(row, "on_update"),
				})
				pos = len(table.ForeignKeys) - 1
				byID[id] = pos
			}
			fk := &table.ForeignKeys[pos]
			fk.Columns = append(fk.Columns, rowString(row, "from"))
			fk.ReferencedColumns = append(fk.ReferencedColumns, rowString(row, "to"))
		}

		tables = append(tables, table)
	}
	return tables, nil
}
