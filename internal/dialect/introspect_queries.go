package dialect

// ForeignKeysQuery returns the catalog query listing the foreign keys of one
// table for the given dialect. It lives beside the interface queries rather
// than on the interface because the SQLite path needs a second PRAGMA for
// index membership, which the introspector drives directly.
func ForeignKeysQuery(d Dialect) string {
	switch d.Name() {
	case Postgres:
		return postgresForeignKeysQuery
	case MySQL:
		return mysqlForeignKeysQuery
	default:
		return sqliteForeignKeysQuery
	}
}

// SQLiteIndexColumnsQuery is the PRAGMA listing the member columns of one
// SQLite index (format argument: index name).
func SQLiteIndexColumnsQuery() string {
	return sqliteIndexColumnsQuery
}
