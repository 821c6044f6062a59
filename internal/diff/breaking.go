package diff

import (
	"launchpad/internal/core"
)

// typeRank orders semantic types by how much data they can carry. A modify
// whose target type has a lower rank than the source type risks truncation
// and is classified breaking.
var typeRank = map[core.ColumnType]int{
	core.TypeUUID:     0,
	core.TypeBoolean:  1,
	core.TypeInteger:  2,
	core.TypeBigint:   3,
	core.TypeFloat:    4,
	core.TypeDecimal:  5,
	core.TypeString:   6,
	core.TypeText:     7,
	core.TypeDate:     8,
	core.TypeTime:     9,
	core.TypeDatetime: 10,
	core.TypeJSON:     11,
	core.TypeBinary:   12,
}

// isBreakingModify classifies a column modification. Tightening nullability
// from nullable to non-null breaks existing NULL rows; narrowing the type
// rank risks data loss.
func isBreakingModify(oldCol, newCol *core.ColumnDefinition) bool {
	if oldCol.Nullable && !newCol.Nullable {
		return true
	}
	if oldCol.Type != newCol.Type {
		oldRank, okOld := typeRank[oldCol.Type]
		newRank, okNew := typeRank[newCol.Type]
		if okOld && okNew && newRank < oldRank {
			return true
		}
	}
	return false
}
