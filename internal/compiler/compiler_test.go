package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"launchpad/internal/dialect"
)

func ctx() *TenantContext {
	return &TenantContext{AppID: "test-app", OrganizationID: "org-123"}
}

func pgCompiler() *Compiler {
	return New(dialect.MustNew(dialect.Postgres))
}

func myCompiler() *Compiler {
	return New(dialect.MustNew(dialect.MySQL))
}

func TestSelectInjectsTenantPredicates(t *testing.T) {
	ast := &QueryAST{Type: Select, Table: "users", Columns: []string{"id", "name"}}
	out, err := pgCompiler().Compile(ast, ctx())
	require.NoError(t, err)

	assert.Equal(t, `SELECT id, name FROM "users" WHERE "app_id" = $1 AND "organization_id" = $2`, out.SQL)
	assert.Equal(t, []any{"test-app", "org-123"}, out.Params)
}

func TestSelectParameterOrdering(t *testing.T) {
	ast := &QueryAST{
		Type: Select, Table: "users", Columns: []string{"id", "name"},
		Where: []Condition{
			{Column: "status", Op: "=", Value: "active"},
			{Column: "role", Op: "=", Value: "admin"},
			{Column: "age", Op: ">", Value: 18},
		},
	}
	out, err := pgCompiler().Compile(ast, ctx())
	require.NoError(t, err)

	assert.Equal(t, []any{"test-app", "org-123", "active", "admin", 18}, out.Params)
	// Placeholders form the contiguous sequence $1..$5.
	for _, ph := range []string{"$1", "$2", "$3", "$4", "$5"} {
		assert.Contains(t, out.SQL, ph)
	}
	assert.NotContains(t, out.SQL, "$6")
}

func TestCompileRequiresTenantContext(t *testing.T) {
	ast := &QueryAST{Type: Select, Table: "users"}
	_, err := pgCompiler().Compile(ast, nil)
	require.ErrorIs(t, err, ErrTenantContextRequired)
}

func TestCompileWithoutInjection(t *testing.T) {
	c := New(dialect.MustNew(dialect.Postgres), WithoutTenantInjection())
	out, err := c.Compile(&QueryAST{Type: Select, Table: "lp_migrations"}, nil)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "lp_migrations"`, out.SQL)
	assert.Empty(t, out.Params)
}

func TestCustomTenantColumns(t *testing.T) {
	c := New(dialect.MustNew(dialect.Postgres), WithTenantColumns("application_id", "org_id"))
	out, err := c.Compile(&QueryAST{Type: Select, Table: "users"}, ctx())
	require.NoError(t, err)
	assert.Contains(t, out.SQL, `"application_id" = $1`)
	assert.Contains(t, out.SQL, `"org_id" = $2`)
}

func TestSelectWithJoinQualifiesTenantColumns(t *testing.T) {
	ast := &QueryAST{
		Type: Select, Table: "users", Columns: []string{"users.id", "orders.total"},
		Joins: []Join{{Table: "orders", LocalColumn: "id", ForeignColumn: "user_id"}},
	}
	out, err := pgCompiler().Compile(ast, ctx())
	require.NoError(t, err)

	assert.Contains(t, out.SQL, `INNER JOIN "orders" ON "users"."id" = "orders"."user_id"`)
	assert.Contains(t, out.SQL, `WHERE "users"."app_id" = $1 AND "users"."organization_id" = $2`)
}

func TestWhereOrConnector(t *testing.T) {
	ast := &QueryAST{
		Type: Select, Table: "users",
		Where: []Condition{
			{Column: "role", Op: "=", Value: "admin"},
			{Column: "role", Op: "=", Value: "owner", Connector: "OR"},
		},
	}
	out, err := pgCompiler().Compile(ast, ctx())
	require.NoError(t, err)
	assert.Contains(t, out.SQL, `AND "role" = $3 OR "role" = $4`)
}

func TestWhereNullChecksConsumeNoValues(t *testing.T) {
	ast := &QueryAST{
		Type: Select, Table: "users",
		Where: []Condition{
			{Column: "deleted_at", Op: "IS NULL"},
			{Column: "confirmed_at", Op: "IS NOT NULL"},
		},
	}
	out, err := pgCompiler().Compile(ast, ctx())
	require.NoError(t, err)

	assert.Contains(t, out.SQL, `"deleted_at" IS NULL`)
	assert.Contains(t, out.SQL, `"confirmed_at" IS NOT NULL`)
	assert.Len(t, out.Params, 2, "only the tenant params")
}

func TestWhereInSpreadsValues(t *testing.T) {
	ast := &QueryAST{
		Type: Select, Table: "users",
		Where: []Condition{{Column: "status", Op: "IN", Value: []string{"active", "trial"}}},
	}
	out, err := pgCompiler().Compile(ast, ctx())
	require.NoError(t, err)

	assert.Contains(t, out.SQL, `"status" IN ($3, $4)`)
	assert.Equal(t, []any{"test-app", "org-123", "active", "trial"}, out.Params)
}

func TestWhereEmptyInAndNotIn(t *testing.T) {
	ast := &QueryAST{
		Type: Select, Table: "users",
		Where: []Condition{{Column: "status", Op: "IN", Value: []string{}}},
	}
	out, err := pgCompiler().Compile(ast, ctx())
	require.NoError(t, err)
	assert.Contains(t, out.SQL, "1 = 0")
	assert.Len(t, out.Params, 2)

	ast.Where = []Condition{{Column: "status", Op: "NOT IN", Value: []string{}}}
	out, err = pgCompiler().Compile(ast, ctx())
	require.NoError(t, err)
	assert.Contains(t, out.SQL, "1 = 1")
	assert.Len(t, out.Params, 2)
}

func TestOrderByNormalization(t *testing.T) {
	ast := &QueryAST{
		Type: Select, Table: "users",
		OrderBy: []OrderBy{{Column: "name", Direction: "desc"}, {Column: "id"}},
	}
	out, err := pgCompiler().Compile(ast, ctx())
	require.NoError(t, err)
	assert.Contains(t, out.SQL, `ORDER BY "name" DESC, "id" ASC`)
}

func TestOrderByInvalidDirection(t *testing.T) {
	ast := &QueryAST{
		Type: Select, Table: "users",
		OrderBy: []OrderBy{{Column: "name", Direction: "sideways"}},
	}
	_, err := pgCompiler().Compile(ast, ctx())
	var dirErr *InvalidOrderDirectionError
	require.ErrorAs(t, err, &dirErr)
	assert.Equal(t, "sideways", dirErr.Direction)
}

func TestOrderByMaliciousColumnIsQuoted(t *testing.T) {
	ast := &QueryAST{
		Type: Select, Table: "users",
		OrderBy: []OrderBy{{Column: "name; DROP TABLE users", Direction: "ASC"}},
	}
	out, err := pgCompiler().Compile(ast, ctx())
	require.NoError(t, err)
	// Identifier quoting neutralizes the injection attempt.
	assert.Contains(t, out.SQL, `ORDER BY "name; DROP TABLE users" ASC`)
}

func TestInsertInjectsTenantColumns(t *testing.T) {
	ast := &QueryAST{
		Type: Insert, Table: "users",
		Data: map[string]any{"name": "Test", "email": "t@e.com"},
	}
	out, err := pgCompiler().Compile(ast, ctx())
	require.NoError(t, err)

	assert.Equal(t,
		`INSERT INTO "users" ("app_id", "organization_id", "email", "name") VALUES ($1, $2, $3, $4)`,
		out.SQL)
	assert.Equal(t, []any{"test-app", "org-123", "t@e.com", "Test"}, out.Params)
}

func TestInsertCallerCannotShadowTenantValues(t *testing.T) {
	ast := &QueryAST{
		Type: Insert, Table: "users",
		Data: map[string]any{"name": "Test", "app_id": "evil", "organization_id": "evil-org"},
	}
	out, err := pgCompiler().Compile(ast, ctx())
	require.NoError(t, err)

	assert.Equal(t, []any{"test-app", "org-123", "Test"}, out.Params)
	assert.NotContains(t, out.Params, "evil")
}

func TestBatchInsert(t *testing.T) {
	ast := &QueryAST{
		Type: Insert, Table: "users",
		DataRows: []map[string]any{
			{"name": "a"},
			{"name": "b"},
		},
	}
	out, err := pgCompiler().Compile(ast, ctx())
	require.NoError(t, err)

	assert.Contains(t, out.SQL, `VALUES ($1, $2, $3), ($4, $5, $6)`)
	assert.Equal(t, []any{"test-app", "org-123", "a", "test-app", "org-123", "b"}, out.Params)
}

func TestEmptyInsertRejected(t *testing.T) {
	_, err := pgCompiler().Compile(&QueryAST{Type: Insert, Table: "users", DataRows: []map[string]any{}}, ctx())
	require.ErrorIs(t, err, ErrEmptyInsert)

	_, err = pgCompiler().Compile(&QueryAST{Type: Insert, Table: "users"}, ctx())
	require.ErrorIs(t, err, ErrEmptyInsert)
}

func TestMySQLInsertOnDuplicateKey(t *testing.T) {
	ast := &QueryAST{
		Type: Insert, Table: "users",
		Data:       map[string]any{"name": "Test", "email": "t@e.com"},
		OnConflict: &OnConflict{Columns: []string{"email"}, Action: ConflictUpdate},
	}
	out, err := myCompiler().Compile(ast, ctx())
	require.NoError(t, err)

	assert.Contains(t, out.SQL, "ON DUPLICATE KEY UPDATE")
	assert.Contains(t, out.SQL, "`users`")
	assert.Contains(t, out.SQL, "`name` = VALUES(`name`)")
	assert.NotContains(t, out.SQL, "`email` = VALUES(`email`)", "conflict columns excluded from update set")
	assert.NotContains(t, out.SQL, "$1", "mysql uses ? placeholders")
}

func TestMySQLConflictNothingIsIdempotentUpdate(t *testing.T) {
	ast := &QueryAST{
		Type: Insert, Table: "users",
		Data:       map[string]any{"email": "t@e.com"},
		OnConflict: &OnConflict{Columns: []string{"email"}, Action: ConflictNothing},
	}
	out, err := myCompiler().Compile(ast, ctx())
	require.NoError(t, err)
	assert.Contains(t, out.SQL, "ON DUPLICATE KEY UPDATE id = id")
}

func TestPostgresOnConflict(t *testing.T) {
	ast := &QueryAST{
		Type: Insert, Table: "users",
		Data:       map[string]any{"email": "t@e.com", "name": "Test"},
		OnConflict: &OnConflict{Columns: []string{"email"}, Action: ConflictUpdate},
	}
	out, err := pgCompiler().Compile(ast, ctx())
	require.NoError(t, err)

	assert.Contains(t, out.SQL, `ON CONFLICT ("email") DO UPDATE SET`)
	assert.Contains(t, out.SQL, `"name" = EXCLUDED."name"`)

	ast.OnConflict.Action = ConflictNothing
	out, err = pgCompiler().Compile(ast, ctx())
	require.NoError(t, err)
	assert.Contains(t, out.SQL, `ON CONFLICT ("email") DO NOTHING`)
}

func TestReturningSupport(t *testing.T) {
	ast := &QueryAST{
		Type: Insert, Table: "users",
		Data:      map[string]any{"name": "Test"},
		Returning: []string{"id"},
	}
	out, err := pgCompiler().Compile(ast, ctx())
	require.NoError(t, err)
	assert.Contains(t, out.SQL, `RETURNING "id"`)

	_, err = myCompiler().Compile(ast, ctx())
	var featErr *dialect.UnsupportedFeatureError
	require.ErrorAs(t, err, &featErr)
}

func TestUpdatePrependsTenantPredicates(t *testing.T) {
	ast := &QueryAST{
		Type: Update, Table: "users",
		Data:  map[string]any{"name": "Renamed"},
		Where: []Condition{{Column: "id", Op: "=", Value: "u1"}},
	}
	out, err := pgCompiler().Compile(ast, ctx())
	require.NoError(t, err)

	assert.Equal(t,
		`UPDATE "users" SET "name" = $1 WHERE "app_id" = $2 AND "organization_id" = $3 AND "id" = $4`,
		out.SQL)
	assert.Equal(t, []any{"Renamed", "test-app", "org-123", "u1"}, out.Params)
}

func TestDeletePrependsTenantPredicates(t *testing.T) {
	ast := &QueryAST{
		Type: Delete, Table: "users",
		Where: []Condition{{Column: "id", Op: "=", Value: "u1"}},
	}
	out, err := pgCompiler().Compile(ast, ctx())
	require.NoError(t, err)

	assert.Equal(t,
		`DELETE FROM "users" WHERE "app_id" = $1 AND "organization_id" = $2 AND "id" = $3`,
		out.SQL)
}

func TestUnsupportedQueryType(t *testing.T) {
	_, err := pgCompiler().Compile(&QueryAST{Type: "truncate", Table: "users"}, ctx())
	var typeErr *UnsupportedQueryTypeError
	require.ErrorAs(t, err, &typeErr)
}

func TestSelectLimitOffset(t *testing.T) {
	limit, offset := 10, 20
	ast := &QueryAST{Type: Select, Table: "users", Limit: &limit, Offset: &offset}
	out, err := pgCompiler().Compile(ast, ctx())
	require.NoError(t, err)
	assert.Contains(t, out.SQL, "LIMIT 10 OFFSET 20")
}

func TestSelectExpressionColumnsPassThrough(t *testing.T) {
	ast := &QueryAST{Type: Select, Table: "users", Columns: []string{"COUNT(*)"}}
	out, err := pgCompiler().Compile(ast, ctx())
	require.NoError(t, err)
	assert.Contains(t, out.SQL, "SELECT COUNT(*) FROM")
}
