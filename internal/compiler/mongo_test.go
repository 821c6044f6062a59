package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.mongodb.org/mongo-driver/v2/bson"

	"launchpad/internal/dialect"
)

func TestMongoFindInjectsTenantFields(t *testing.T) {
	ast := &QueryAST{
		Type: Select, Table: "users", Columns: []string{"id", "name"},
		Where: []Condition{{Column: "status", Op: "=", Value: "active"}},
	}
	op, err := pgCompiler().CompileMongo(ast, ctx())
	require.NoError(t, err)

	assert.Equal(t, "find", op.Operation)
	assert.Equal(t, "users", op.Collection)
	assert.Equal(t, "test-app", op.Filter["app_id"])
	assert.Equal(t, "org-123", op.Filter["organization_id"])
	assert.Equal(t, "active", op.Filter["status"])
	assert.Equal(t, bson.M{"id": 1, "name": 1}, op.Projection)
}

func TestMongoRequiresTenantContext(t *testing.T) {
	_, err := pgCompiler().CompileMongo(&QueryAST{Type: Select, Table: "users"}, nil)
	require.ErrorIs(t, err, ErrTenantContextRequired)
}

func TestMongoCountStar(t *testing.T) {
	ast := &QueryAST{Type: Select, Table: "users", Columns: []string{"COUNT(*)"}}
	op, err := pgCompiler().CompileMongo(ast, ctx())
	require.NoError(t, err)
	assert.Equal(t, "countDocuments", op.Operation)
}

func TestMongoOperatorMapping(t *testing.T) {
	tests := []struct {
		op   string
		want bson.M
	}{
		{"!=", bson.M{"$ne": 5}},
		{">", bson.M{"$gt": 5}},
		{">=", bson.M{"$gte": 5}},
		{"<", bson.M{"$lt": 5}},
		{"<=", bson.M{"$lte": 5}},
	}
	for _, tt := range tests {
		expr := mongoCondition(Condition{Column: "n", Op: tt.op, Value: 5})
		assert.Equal(t, bson.M{"n": tt.want}, expr, tt.op)
	}

	in := mongoCondition(Condition{Column: "s", Op: "IN", Value: []string{"a", "b"}})
	assert.Equal(t, bson.M{"s": bson.M{"$in": []any{"a", "b"}}}, in)

	nin := mongoCondition(Condition{Column: "s", Op: "NOT IN", Value: []string{"a"}})
	assert.Equal(t, bson.M{"s": bson.M{"$nin": []any{"a"}}}, nin)
}

func TestMongoLikeBecomesRegex(t *testing.T) {
	expr := mongoCondition(Condition{Column: "name", Op: "LIKE", Value: "jo%n_doe"})
	assert.Equal(t, bson.M{"name": bson.M{"$regex": "jo.*n.doe"}}, expr)

	// Regex metacharacters are escaped before wildcard translation.
	expr = mongoCondition(Condition{Column: "name", Op: "LIKE", Value: "a.b%"})
	assert.Equal(t, bson.M{"name": bson.M{"$regex": `a\.b.*`}}, expr)

	expr = mongoCondition(Condition{Column: "name", Op: "ILIKE", Value: "Jo%"})
	assert.Equal(t, bson.M{"name": bson.M{"$regex": "Jo.*", "$options": "i"}}, expr)
}

func TestMongoNullChecks(t *testing.T) {
	isNull := mongoCondition(Condition{Column: "deleted_at", Op: "IS NULL"})
	assert.Equal(t, bson.M{"deleted_at": nil}, isNull)

	notNull := mongoCondition(Condition{Column: "deleted_at", Op: "IS NOT NULL"})
	assert.Equal(t, bson.M{"deleted_at": bson.M{"$ne": nil}}, notNull)
}

func TestMongoOrClausesCollected(t *testing.T) {
	ast := &QueryAST{
		Type: Select, Table: "users",
		Where: []Condition{
			{Column: "status", Op: "=", Value: "active"},
			{Column: "role", Op: "=", Value: "admin", Connector: "OR"},
			{Column: "role", Op: "=", Value: "owner", Connector: "OR"},
		},
	}
	op, err := pgCompiler().CompileMongo(ast, ctx())
	require.NoError(t, err)

	andParts, ok := op.Filter["$and"].([]bson.M)
	require.True(t, ok, "AND and OR parts combine under $and")
	require.Len(t, andParts, 2)
	assert.Equal(t, "active", andParts[0]["status"])
	orParts, ok := andParts[1]["$or"].([]bson.M)
	require.True(t, ok)
	assert.Len(t, orParts, 2)
}

func TestMongoJoinBecomesAggregate(t *testing.T) {
	ast := &QueryAST{
		Type: Select, Table: "users", Columns: []string{"id"},
		Joins: []Join{{Table: "orders", LocalColumn: "id", ForeignColumn: "user_id"}},
	}
	op, err := pgCompiler().CompileMongo(ast, ctx())
	require.NoError(t, err)

	assert.Equal(t, "aggregate", op.Operation)
	require.NotEmpty(t, op.Pipeline)
	// $match with tenant fields leads the pipeline.
	match := op.Pipeline[0]["$match"].(bson.M)
	assert.Equal(t, "test-app", match["app_id"])

	var lookup, unwind bool
	for _, stage := range op.Pipeline {
		if l, ok := stage["$lookup"].(bson.M); ok {
			lookup = true
			assert.Equal(t, "orders", l["from"])
			assert.Equal(t, "id", l["localField"])
			assert.Equal(t, "user_id", l["foreignField"])
		}
		if _, ok := stage["$unwind"]; ok {
			unwind = true
		}
	}
	assert.True(t, lookup)
	assert.True(t, unwind)
}

func TestMongoGroupByAndHaving(t *testing.T) {
	limit := 5
	ast := &QueryAST{
		Type: Select, Table: "orders",
		GroupBy: []string{"status"},
		Having:  []Condition{{Column: "count", Op: ">", Value: 10}},
		OrderBy: []OrderBy{{Column: "status", Direction: "DESC"}},
		Limit:   &limit,
	}
	op, err := pgCompiler().CompileMongo(ast, ctx())
	require.NoError(t, err)
	require.Equal(t, "aggregate", op.Operation)

	var hasGroup, hasPostMatch, hasSort, hasLimit bool
	seenGroup := false
	for _, stage := range op.Pipeline {
		if g, ok := stage["$group"].(bson.M); ok {
			hasGroup = true
			seenGroup = true
			id := g["_id"].(bson.M)
			assert.Equal(t, "$status", id["status"])
		}
		if m, ok := stage["$match"].(bson.M); ok && seenGroup {
			hasPostMatch = true
			assert.Equal(t, bson.M{"$gt": 10}, m["count"])
		}
		if _, ok := stage["$sort"]; ok {
			hasSort = true
		}
		if _, ok := stage["$limit"]; ok {
			hasLimit = true
		}
	}
	assert.True(t, hasGroup)
	assert.True(t, hasPostMatch)
	assert.True(t, hasSort)
	assert.True(t, hasLimit)
}

func TestMongoInsertOverwritesTenantFields(t *testing.T) {
	ast := &QueryAST{
		Type: Insert, Table: "users",
		Data: map[string]any{"name": "Test", "app_id": "evil"},
	}
	op, err := pgCompiler().CompileMongo(ast, ctx())
	require.NoError(t, err)

	assert.Equal(t, "insertOne", op.Operation)
	require.Len(t, op.Documents, 1)
	assert.Equal(t, "test-app", op.Documents[0]["app_id"])
	assert.Equal(t, "org-123", op.Documents[0]["organization_id"])
}

func TestMongoInsertMany(t *testing.T) {
	ast := &QueryAST{
		Type:     Insert,
		Table:    "users",
		DataRows: []map[string]any{{"name": "a"}, {"name": "b"}},
	}
	op, err := pgCompiler().CompileMongo(ast, ctx())
	require.NoError(t, err)
	assert.Equal(t, "insertMany", op.Operation)
	assert.Len(t, op.Documents, 2)
}

func TestMongoUpdateAndDelete(t *testing.T) {
	update := &QueryAST{
		Type: Update, Table: "users",
		Data:  map[string]any{"name": "x"},
		Where: []Condition{{Column: "id", Op: "=", Value: "u1"}},
	}
	op, err := pgCompiler().CompileMongo(update, ctx())
	require.NoError(t, err)
	assert.Equal(t, "updateMany", op.Operation)
	assert.Equal(t, bson.M{"$set": bson.M{"name": "x"}}, op.Update)
	assert.Equal(t, "u1", op.Filter["id"])

	del := &QueryAST{Type: Delete, Table: "users"}
	op, err = pgCompiler().CompileMongo(del, ctx())
	require.NoError(t, err)
	assert.Equal(t, "deleteMany", op.Operation)
	assert.Equal(t, "test-app", op.Filter["app_id"])
}

func TestMongoSortDirections(t *testing.T) {
	ast := &QueryAST{
		Type: Select, Table: "users",
		OrderBy: []OrderBy{{Column: "name", Direction: "desc"}, {Column: "id", Direction: "asc"}},
	}
	op, err := pgCompiler().CompileMongo(ast, ctx())
	require.NoError(t, err)

	require.Len(t, op.Sort, 2)
	assert.Equal(t, bson.E{Key: "name", Value: -1}, op.Sort[0])
	assert.Equal(t, bson.E{Key: "id", Value: 1}, op.Sort[1])
}

func TestMongoInvalidSortDirection(t *testing.T) {
	ast := &QueryAST{
		Type: Select, Table: "users",
		OrderBy: []OrderBy{{Column: "name", Direction: "up"}},
	}
	_, err := pgCompiler().CompileMongo(ast, ctx())
	var dirErr *InvalidOrderDirectionError
	require.ErrorAs(t, err, &dirErr)
}

func TestMongoEmulatesDialectIndependence(t *testing.T) {
	// The Mongo path ignores the SQL dialect entirely.
	ast := &QueryAST{Type: Select, Table: "users"}
	pgOp, err := New(dialect.MustNew(dialect.Postgres)).CompileMongo(ast, ctx())
	require.NoError(t, err)
	myOp, err := New(dialect.MustNew(dialect.MySQL)).CompileMongo(ast, ctx())
	require.NoError(t, err)
	assert.Equal(t, pgOp, myOp)
}
