package compiler

import (
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// MongoOperation is the dialect-neutral description of one MongoDB call.
type MongoOperation struct {
	// Operation is the collection method: find, aggregate, countDocuments,
	// insertOne, insertMany, updateMany, or deleteMany.
	Operation  string   `json:"operation"`
	Collection string   `json:"collection"`
	Filter     bson.M   `json:"filter,omitempty"`
	Projection bson.M   `json:"projection,omitempty"`
	Sort       bson.D   `json:"sort,omitempty"`
	Skip       *int     `json:"skip,omitempty"`
	Limit      *int     `json:"limit,omitempty"`
	Pipeline   []bson.M `json:"pipeline,omitempty"`
	Documents  []bson.M `json:"documents,omitempty"`
	Update     bson.M   `json:"update,omitempty"`
}

// CompileMongo translates the same AST the SQL path accepts into a MongoDB
// operation, applying the same mandatory tenant scoping.
func (c *Compiler) CompileMongo(ast *QueryAST, tc *TenantContext) (*MongoOperation, error) {
	if c.injectTenant && tc == nil {
		return nil, ErrTenantContextRequired
	}

	switch ast.Type {
	case Select:
		return c.mongoSelect(ast, tc)
	case Insert:
		return c.mongoInsert(ast, tc)
	case Update:
		return c.mongoUpdate(ast, tc)
	case Delete:
		return c.mongoDelete(ast, tc)
	default:
		return nil, &UnsupportedQueryTypeError{Type: ast.Type}
	}
}

func (c *Compiler) mongoSelect(ast *QueryAST, tc *TenantContext) (*MongoOperation, error) {
	filter := c.mongoFilter(ast.Where, tc)

	if isCountStar(ast.Columns) {
		return &MongoOperation{
			Operation:  "countDocuments",
			Collection: ast.Table,
			Filter:     filter,
		}, nil
	}

	if len(ast.Joins) > 0 || len(ast.GroupBy) > 0 || len(ast.Having) > 0 {
		return c.mongoAggregate(ast, filter)
	}

	op := &MongoOperation{
		Operation:  "find",
		Collection: ast.Table,
		Filter:     filter,
		Skip:       ast.Offset,
		Limit:      ast.Limit,
	}
	if len(ast.Columns) > 0 {
		op.Projection = bson.M{}
		for _, col := range ast.Columns {
			op.Projection[col] = 1
		}
	}
	sortDoc, err := mongoSort(ast.OrderBy)
	if err != nil {
		return nil, err
	}
	op.Sort = sortDoc
	return op, nil
}

// mongoAggregate builds the pipeline form: $match, one $lookup+$unwind per
// join, $group, a post-group $match for HAVING, then $sort/$skip/$limit and
// $project.
func (c *Compiler) mongoAggregate(ast *QueryAST, filter bson.M) (*MongoOperation, error) {
	var pipeline []bson.M

	if len(filter) > 0 {
		pipeline = append(pipeline, bson.M{"$match": filter})
	}

	for _, j := range ast.Joins {
		pipeline = append(pipeline,
			bson.M{"$lookup": bson.M{
				"from":         j.Table,
				"localField":   j.LocalColumn,
				"foreignField": j.ForeignColumn,
				"as":           j.Table,
			}},
			bson.M{"$unwind": "$" + j.Table})
	}

	if len(ast.GroupBy) > 0 {
		id := bson.M{}
		for _, g := range ast.GroupBy {
			id[g] = "$" + g
		}
		pipeline = append(pipeline, bson.M{"$group": bson.M{"_id": id, "count": bson.M{"$sum": 1}}})
	}

	if len(ast.Having) > 0 {
		pipeline = append(pipeline, bson.M{"$match": c.mongoConditions(ast.Having)})
	}

	sortDoc, err := mongoSort(ast.OrderBy)
	if err != nil {
		return nil, err
	}
	if len(sortDoc) > 0 {
		pipeline = append(pipeline, bson.M{"$sort": sortDoc})
	}
	if ast.Offset != nil {
		pipeline = append(pipeline, bson.M{"$skip": *ast.Offset})
	}
	if ast.Limit != nil {
		pipeline = append(pipeline, bson.M{"$limit": *ast.Limit})
	}
	if len(ast.Columns) > 0 && !isCountStar(ast.Columns) {
		project := bson.M{}
		for _, col := range ast.Columns {
			project[col] = 1
		}
		pipeline = append(pipeline, bson.M{"$project": project})
	}

	return &MongoOperation{
		Operation:  "aggregate",
		Collection: ast.Table,
		Pipeline:   pipeline,
	}, nil
}

func (c *Compiler) mongoInsert(ast *QueryAST, tc *TenantContext) (*MongoOperation, error) {
	rows := ast.DataRows
	single := false
	if rows == nil && len(ast.Data) > 0 {
		rows = []map[string]any{ast.Data}
		single = true
	}
	if len(rows) == 0 {
		return nil, ErrEmptyInsert
	}

	docs := make([]bson.M, len(rows))
	for i, row := range rows {
		doc := bson.M{}
		for k, v := range row {
			doc[k] = v
		}
		if c.injectTenant {
			doc[c.appIDColumn] = tc.AppID
			doc[c.orgIDColumn] = tc.OrganizationID
		}
		docs[i] = doc
	}

	operation := "insertMany"
	if single {
		operation = "insertOne"
	}
	return &MongoOperation{Operation: operation, Collection: ast.Table, Documents: docs}, nil
}

func (c *Compiler) mongoUpdate(ast *QueryAST, tc *TenantContext) (*MongoOperation, error) {
	if len(ast.Data) == 0 {
		return nil, ErrEmptyInsert
	}
	set := bson.M{}
	for k, v := range ast.Data {
		set[k] = v
	}
	return &MongoOperation{
		Operation:  "updateMany",
		Collection: ast.Table,
		Filter:     c.mongoFilter(ast.Where, tc),
		Update:     bson.M{"$set": set},
	}, nil
}

func (c *Compiler) mongoDelete(ast *QueryAST, tc *TenantContext) (*MongoOperation, error) {
	return &MongoOperation{
		Operation:  "deleteMany",
		Collection: ast.Table,
		Filter:     c.mongoFilter(ast.Where, tc),
	}, nil
}

// mongoFilter merges the tenant fields with the user conditions. OR clauses
// collect into one top-level $or; when both AND and OR parts exist they
// combine under $and.
func (c *Compiler) mongoFilter(conds []Condition, tc *TenantContext) bson.M {
	and := bson.M{}
	if c.injectTenant {
		and[c.appIDColumn] = tc.AppID
		and[c.orgIDColumn] = tc.OrganizationID
	}

	var or []bson.M
	for _, cond := range conds {
		expr := mongoCondition(cond)
		if strings.EqualFold(cond.Connector, "OR") {
			or = append(or, expr)
			continue
		}
		for k, v := range expr {
			and[k] = v
		}
	}

	switch {
	case len(or) == 0:
		return and
	case len(and) == 0:
		return bson.M{"$or": or}
	default:
		return bson.M{"$and": []bson.M{and, {"$or": or}}}
	}
}

// mongoConditions merges the HAVING conditions into one document, without
// tenant fields. Connectors are ignored (no $or is built), and a later
// condition on the same field replaces an earlier one.
func (c *Compiler) mongoConditions(conds []Condition) bson.M {
	out := bson.M{}
	for _, cond := range conds {
		for k, v := range mongoCondition(cond) {
			out[k] = v
		}
	}
	return out
}

func mongoCondition(cond Condition) bson.M {
	op := strings.ToUpper(strings.TrimSpace(cond.Op))
	switch op {
	case "", "=":
		return bson.M{cond.Column: cond.Value}
	case "!=", "<>":
		return bson.M{cond.Column: bson.M{"$ne": cond.Value}}
	case ">":
		return bson.M{cond.Column: bson.M{"$gt": cond.Value}}
	case ">=":
		return bson.M{cond.Column: bson.M{"$gte": cond.Value}}
	case "<":
		return bson.M{cond.Column: bson.M{"$lt": cond.Value}}
	case "<=":
		return bson.M{cond.Column: bson.M{"$lte": cond.Value}}
	case "IN":
		return bson.M{cond.Column: bson.M{"$in": asSlice(cond.Value)}}
	case "NOT IN":
		return bson.M{cond.Column: bson.M{"$nin": asSlice(cond.Value)}}
	case "LIKE":
		return bson.M{cond.Column: bson.M{"$regex": likeToRegex(cond.Value)}}
	case "ILIKE":
		return bson.M{cond.Column: bson.M{"$regex": likeToRegex(cond.Value), "$options": "i"}}
	case "IS NULL":
		return bson.M{cond.Column: nil}
	case "IS NOT NULL":
		return bson.M{cond.Column: bson.M{"$ne": nil}}
	default:
		return bson.M{cond.Column: cond.Value}
	}
}

// mongoSort maps ORDER BY terms onto a sort document, with the same
// direction validation the SQL path applies.
func mongoSort(terms []OrderBy) (bson.D, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	sortDoc := make(bson.D, 0, len(terms))
	for _, term := range terms {
		direction := strings.ToUpper(strings.TrimSpace(term.Direction))
		value := 1
		switch direction {
		case "", "ASC":
		case "DESC":
			value = -1
		default:
			return nil, &InvalidOrderDirectionError{Direction: term.Direction}
		}
		sortDoc = append(sortDoc, bson.E{Key: term.Column, Value: value})
	}
	return sortDoc, nil
}

var regexMeta = regexp.MustCompile(`[.^$*+?()\[\]{}|\\]`)

// likeToRegex escapes regex metacharacters, then rewrites the SQL wildcards:
// % becomes .* and _ becomes .
func likeToRegex(v any) string {
	s, _ := v.(string)
	escaped := regexMeta.ReplaceAllString(s, `\$0`)
	escaped = strings.ReplaceAll(escaped, "%", ".*")
	escaped = strings.ReplaceAll(escaped, "_", ".")
	return escaped
}

func isCountStar(columns []string) bool {
	return len(columns) == 1 && strings.EqualFold(strings.ReplaceAll(columns[0], " ", ""), "COUNT(*)")
}
