package compiler

import (
	"fmt"
	"sort"
	"strings"

	"launchpad/internal/dialect"
)

// Compiler emits parameterized SQL for one dialect. Tenant injection is on
// unless explicitly disabled at construction.
type Compiler struct {
	d            dialect.Dialect
	injectTenant bool
	appIDColumn  string
	orgIDColumn  string
}

// Option tunes a compiler at construction.
type Option func(*Compiler)

// WithoutTenantInjection disables the forced tenant predicates. Reserved for
// engine-internal queries against the lp_ tables.
func WithoutTenantInjection() Option {
	return func(c *Compiler) { c.injectTenant = false }
}

// WithTenantColumns overrides the tenant column names.
func WithTenantColumns(appIDColumn, orgIDColumn string) Option {
	return func(c *Compiler) {
		c.appIDColumn = appIDColumn
		c.orgIDColumn = orgIDColumn
	}
}

// New builds a compiler for the dialect.
func New(d dialect.Dialect, opts ...Option) *Compiler {
	c := &Compiler{
		d:            d,
		injectTenant: true,
		appIDColumn:  "app_id",
		orgIDColumn:  "organization_id",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// paramList assigns placeholders in emission order, starting at 1.
type paramList struct {
	d      dialect.Dialect
	values []any
}

func (p *paramList) add(v any) string {
	p.values = append(p.values, v)
	return p.d.Placeholder(len(p.values))
}

// Compile emits one statement. With injection enabled a tenant context is
// mandatory.
func (c *Compiler) Compile(ast *QueryAST, tc *TenantContext) (*Compiled, error) {
	if c.injectTenant && tc == nil {
		return nil, ErrTenantContextRequired
	}

	switch ast.Type {
	case Select:
		return c.compileSelect(ast, tc)
	case Insert:
		return c.compileInsert(ast, tc)
	case Update:
		return c.compileUpdate(ast, tc)
	case Delete:
		return c.compileDelete(ast, tc)
	default:
		return nil, &UnsupportedQueryTypeError{Type: ast.Type}
	}
}

func (c *Compiler) compileSelect(ast *QueryAST, tc *TenantContext) (*Compiled, error) {
	p := &paramList{d: c.d}
	var sb strings.Builder

	sb.WriteString("SELECT ")
	if len(ast.Columns) == 0 {
		sb.WriteString("*")
	} else {
		sb.WriteString(strings.Join(ast.Columns, ", "))
	}
	sb.WriteString(" FROM ")
	sb.WriteString(c.d.QuoteIdentifier(ast.Table))

	for _, j := range ast.Joins {
		kind := strings.ToUpper(strings.TrimSpace(j.Kind))
		switch kind {
		case "", "INNER":
			kind = "INNER JOIN"
		case "LEFT":
			kind = "LEFT JOIN"
		default:
			kind += " JOIN"
		}
		fmt.Fprintf(&sb, " %s %s ON %s = %s",
			kind,
			c.d.QuoteIdentifier(j.Table),
			c.d.QuoteIdentifier(ast.Table+"."+j.LocalColumn),
			c.d.QuoteIdentifier(j.Table+"."+j.ForeignColumn))
	}

	where, err := c.whereClause(ast, tc, p)
	if err != nil {
		return nil, err
	}
	sb.WriteString(where)

	if len(ast.GroupBy) > 0 {
		quoted := make([]string, len(ast.GroupBy))
		for i, g := range ast.GroupBy {
			quoted[i] = c.d.QuoteIdentifier(g)
		}
		sb.WriteString(" GROUP BY ")
		sb.WriteString(strings.Join(quoted, ", "))
	}

	if len(ast.Having) > 0 {
		having, err := c.conditions(ast.Having, p)
		if err != nil {
			return nil, err
		}
		sb.WriteString(" HAVING ")
		sb.WriteString(having)
	}

	orderBy, err := c.orderByClause(ast.OrderBy)
	if err != nil {
		return nil, err
	}
	sb.WriteString(orderBy)

	if ast.Limit != nil {
		fmt.Fprintf(&sb, " LIMIT %d", *ast.Limit)
	}
	if ast.Offset != nil {
		fmt.Fprintf(&sb, " OFFSET %d", *ast.Offset)
	}

	return &Compiled{SQL: sb.String(), Params: p.values}, nil
}

func (c *Compiler) compileInsert(ast *QueryAST, tc *TenantContext) (*Compiled, error) {
	rows := ast.DataRows
	if rows == nil && len(ast.Data) > 0 {
		rows = []map[string]any{ast.Data}
	}
	if len(rows) == 0 {
		return nil, ErrEmptyInsert
	}

	columns := c.insertColumns(rows[0])
	p := &paramList{d: c.d}

	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(c.d.QuoteIdentifier(ast.Table))
	sb.WriteString(" (")
	for i, col := range columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(c.d.QuoteIdentifier(col))
	}
	sb.WriteString(") VALUES ")

	for i, row := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for j, col := range columns {
			if j > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(p.add(c.insertValue(row, col, tc)))
		}
		sb.WriteByte(')')
	}

	if ast.OnConflict != nil {
		clause, err := c.onConflictClause(ast.OnConflict, columns)
		if err != nil {
			return nil, err
		}
		sb.WriteString(clause)
	}

	returning, err := c.returningClause(ast.Returning)
	if err != nil {
		return nil, err
	}
	sb.WriteString(returning)

	return &Compiled{SQL: sb.String(), Params: p.values}, nil
}

// insertColumns orders the emitted column list: tenant columns first, then
// the caller's keys sorted. Caller-supplied tenant keys collapse into the
// injected ones.
func (c *Compiler) insertColumns(row map[string]any) []string {
	keys := make([]string, 0, len(row))
	for k := range row {
		if c.injectTenant && (k == c.appIDColumn || k == c.orgIDColumn) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if c.injectTenant {
		return append([]string{c.appIDColumn, c.orgIDColumn}, keys...)
	}
	return keys
}

// insertValue resolves one cell. Tenant columns always take the context
// value, overriding anything the caller supplied.
func (c *Compiler) insertValue(row map[string]any, col string, tc *TenantContext) any {
	if c.injectTenant {
		switch col {
		case c.appIDColumn:
			return tc.AppID
		case c.orgIDColumn:
			return tc.OrganizationID
		}
	}
	return row[col]
}

func (c *Compiler) compileUpdate(ast *QueryAST, tc *TenantContext) (*Compiled, error) {
	if len(ast.Data) == 0 {
		return nil, ErrEmptyInsert
	}
	p := &paramList{d: c.d}

	keys := make([]string, 0, len(ast.Data))
	for k := range ast.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("UPDATE ")
	sb.WriteString(c.d.QuoteIdentifier(ast.Table))
	sb.WriteString(" SET ")
	for i, k := range keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(c.d.QuoteIdentifier(k))
		sb.WriteString(" = ")
		sb.WriteString(p.add(ast.Data[k]))
	}

	where, err := c.whereClause(ast, tc, p)
	if err != nil {
		return nil, err
	}
	sb.WriteString(where)

	returning, err := c.returningClause(ast.Returning)
	if err != nil {
		return nil, err
	}
	sb.WriteString(returning)

	return &Compiled{SQL: sb.String(), Params: p.values}, nil
}

func (c *Compiler) compileDelete(ast *QueryAST, tc *TenantContext) (*Compiled, error) {
	p := &paramList{d: c.d}

	var sb strings.Builder
	sb.WriteString("DELETE FROM ")
	sb.WriteString(c.d.QuoteIdentifier(ast.Table))

	where, err := c.whereClause(ast, tc, p)
	if err != nil {
		return nil, err
	}
	sb.WriteString(where)

	returning, err := c.returningClause(ast.Returning)
	if err != nil {
		return nil, err
	}
	sb.WriteString(returning)

	return &Compiled{SQL: sb.String(), Params: p.values}, nil
}

// whereClause builds the full WHERE: forced tenant predicates first, user
// predicates after. With joins present the tenant columns are qualified with
// the base table.
func (c *Compiler) whereClause(ast *QueryAST, tc *TenantContext, p *paramList) (string, error) {
	var clauses []string

	if c.injectTenant {
		appCol, orgCol := c.appIDColumn, c.orgIDColumn
		if len(ast.Joins) > 0 {
			appCol = ast.Table + "." + appCol
			orgCol = ast.Table + "." + orgCol
		}
		clauses = append(clauses,
			fmt.Sprintf("%s = %s", c.d.QuoteIdentifier(appCol), p.add(tc.AppID)),
			fmt.Sprintf("AND %s = %s", c.d.QuoteIdentifier(orgCol), p.add(tc.OrganizationID)))
	}

	for _, cond := range ast.Where {
		sql, err := c.condition(cond, p)
		if err != nil {
			return "", err
		}
		if len(clauses) == 0 {
			clauses = append(clauses, sql)
			continue
		}
		connector := "AND"
		if strings.EqualFold(cond.Connector, "OR") {
			connector = "OR"
		}
		clauses = append(clauses, connector+" "+sql)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " "), nil
}

// conditions builds a bare predicate list (HAVING).
func (c *Compiler) conditions(conds []Condition, p *paramList) (string, error) {
	var clauses []string
	for _, cond := range conds {
		sql, err := c.condition(cond, p)
		if err != nil {
			return "", err
		}
		if len(clauses) == 0 {
			clauses = append(clauses, sql)
			continue
		}
		connector := "AND"
		if strings.EqualFold(cond.Connector, "OR") {
			connector = "OR"
		}
		clauses = append(clauses, connector+" "+sql)
	}
	return strings.Join(clauses, " "), nil
}

func (c *Compiler) condition(cond Condition, p *paramList) (string, error) {
	col := c.d.QuoteIdentifier(cond.Column)
	op := strings.ToUpper(strings.TrimSpace(cond.Op))

	switch op {
	case "IS NULL", "IS NOT NULL":
		return fmt.Sprintf("%s %s", col, op), nil
	case "IN", "NOT IN":
		values := asSlice(cond.Value)
		if len(values) == 0 {
			// Vacuous predicates: IN () matches nothing, NOT IN ()
			// matches everything.
			if op == "IN" {
				return "1 = 0", nil
			}
			return "1 = 1", nil
		}
		placeholders := make([]string, len(values))
		for i, v := range values {
			placeholders[i] = p.add(v)
		}
		return fmt.Sprintf("%s %s (%s)", col, op, strings.Join(placeholders, ", ")), nil
	case "":
		op = "="
	}
	return fmt.Sprintf("%s %s %s", col, op, p.add(cond.Value)), nil
}

func (c *Compiler) orderByClause(terms []OrderBy) (string, error) {
	if len(terms) == 0 {
		return "", nil
	}
	parts := make([]string, len(terms))
	for i, term := range terms {
		direction := strings.ToUpper(strings.TrimSpace(term.Direction))
		if direction == "" {
			direction = "ASC"
		}
		if direction != "ASC" && direction != "DESC" {
			return "", &InvalidOrderDirectionError{Direction: term.Direction}
		}
		parts[i] = c.d.QuoteIdentifier(term.Column) + " " + direction
	}
	return " ORDER BY " + strings.Join(parts, ", "), nil
}

func (c *Compiler) returningClause(cols []string) (string, error) {
	if len(cols) == 0 {
		return "", nil
	}
	if !c.d.SupportsReturning() {
		return "", &dialect.UnsupportedFeatureError{Dialect: c.d.Name(), Feature: "RETURNING"}
	}
	quoted := make([]string, len(cols))
	for i, col := range cols {
		quoted[i] = c.d.QuoteIdentifier(col)
	}
	return " RETURNING " + strings.Join(quoted, ", "), nil
}

// onConflictClause emits the dialect upsert clause. Postgres and SQLite use
// ON CONFLICT; MySQL uses ON DUPLICATE KEY UPDATE, with the idempotent
// id = id form standing in for DO NOTHING.
func (c *Compiler) onConflictClause(oc *OnConflict, insertedColumns []string) (string, error) {
	updateCols := oc.UpdateColumns
	if len(updateCols) == 0 {
		conflict := make(map[string]bool, len(oc.Columns))
		for _, col := range oc.Columns {
			conflict[col] = true
		}
		for _, col := range insertedColumns {
			if !conflict[col] {
				updateCols = append(updateCols, col)
			}
		}
	}

	if c.d.Name() == dialect.MySQL {
		if oc.Action == ConflictNothing {
			return " ON DUPLICATE KEY UPDATE id = id", nil
		}
		parts := make([]string, len(updateCols))
		for i, col := range updateCols {
			q := c.d.QuoteIdentifier(col)
			parts[i] = fmt.Sprintf("%s = VALUES(%s)", q, q)
		}
		return " ON DUPLICATE KEY UPDATE " + strings.Join(parts, ", "), nil
	}

	quoted := make([]string, len(oc.Columns))
	for i, col := range oc.Columns {
		quoted[i] = c.d.QuoteIdentifier(col)
	}
	target := fmt.Sprintf(" ON CONFLICT (%s)", strings.Join(quoted, ", "))

	if oc.Action == ConflictNothing {
		return target + " DO NOTHING", nil
	}
	parts := make([]string, len(updateCols))
	for i, col := range updateCols {
		q := c.d.QuoteIdentifier(col)
		parts[i] = fmt.Sprintf("%s = EXCLUDED.%s", q, q)
	}
	return target + " DO UPDATE SET " + strings.Join(parts, ", "), nil
}

// asSlice normalizes the common slice shapes a caller may hand to IN.
func asSlice(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case []int:
		out := make([]any, len(t))
		for i, n := range t {
			out[i] = n
		}
		return out
	case []int64:
		out := make([]any, len(t))
		for i, n := range t {
			out[i] = n
		}
		return out
	default:
		return []any{v}
	}
}
