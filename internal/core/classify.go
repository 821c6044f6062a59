package core

import (
	"strings"
)

type classifyRule struct {
	columnType ColumnType
	match      func(string) bool
}

func containsAny(subs ...string) func(string) bool {
	return func(s string) bool {
		for _, sub := range subs {
			if strings.Contains(s, sub) {
				return true
			}
		}
		return false
	}
}

// Rule order matters: bigint must win over the generic "int" containment,
// datetime over date/time, jsonb over text.
var classifyRules = []classifyRule{
	{TypeBigint, containsAny("bigint", "int8")},
	{TypeInteger, func(s string) bool {
		return strings.Contains(s, "int") && !strings.Contains(s, "interval")
	}},
	{TypeFloat, containsAny("float", "double", "real")},
	{TypeDecimal, containsAny("numeric", "decimal")},
	{TypeBoolean, containsAny("boolean", "bool")},
	{TypeDatetime, containsAny("timestamp", "datetime")},
	{TypeDate, containsAny("date")},
	{TypeTime, containsAny("time")},
	{TypeJSON, containsAny("json", "jsonb")},
	{TypeBinary, containsAny("bytea", "blob", "binary")},
	{TypeText, containsAny("text")},
}

// ClassifyDataType maps a native data_type/udt_name pair reported by a
// database catalog back into the semantic type set. The classifier is a
// deterministic first-match scan over the lowercased pair; anything
// unrecognized is a string.
func ClassifyDataType(dataType, udtName string) ColumnType {
	combined := strings.ToLower(strings.TrimSpace(dataType)) + " " + strings.ToLower(strings.TrimSpace(udtName))
	if strings.Contains(combined, "uuid") {
		return TypeUUID
	}
	for _, rule := range classifyRules {
		if rule.match(combined) {
			return rule.columnType
		}
	}
	return TypeString
}
