package output

import (
	"fmt"
	"strings"

	"launchpad/internal/core"
	"launchpad/internal/diff"
)

type humanFormatter struct{}

// FormatDiff renders an ASCII-framed summary block followed by one line per
// change: + for additions, - for removals, ~ for modifications, with a
// (BREAKING) suffix where the change is classified breaking.
func (humanFormatter) FormatDiff(r *diff.Result) (string, error) {
	if r == nil || !r.HasDifferences {
		return "No schema differences.\n", nil
	}

	var sb strings.Builder
	sb.WriteString("+----------------------------------+\n")
	sb.WriteString("| Schema Diff                      |\n")
	sb.WriteString("+----------------------------------+\n")
	writeCount(&sb, "Tables added", r.Summary.TablesAdded)
	writeCount(&sb, "Tables dropped", r.Summary.TablesDropped)
	writeCount(&sb, "Columns added", r.Summary.ColumnsAdded)
	writeCount(&sb, "Columns dropped", r.Summary.ColumnsDropped)
	writeCount(&sb, "Columns modified", r.Summary.ColumnsModified)
	writeCount(&sb, "Indexes added", r.Summary.IndexesAdded)
	writeCount(&sb, "Indexes dropped", r.Summary.IndexesDropped)
	writeCount(&sb, "Foreign keys added", r.Summary.ForeignKeysAdded)
	writeCount(&sb, "Foreign keys dropped", r.Summary.ForeignKeysDropped)
	sb.WriteString("+----------------------------------+\n\n")

	for _, c := range r.Changes {
		fmt.Fprintf(&sb, "%s %s%s\n", changePrefix(c.Kind), describeChange(c), breakingSuffix(c))
	}

	if len(r.BreakingChanges) > 0 {
		fmt.Fprintf(&sb, "\n%d breaking change(s); re-run with --force to apply.\n", len(r.BreakingChanges))
	}
	return sb.String(), nil
}

func writeCount(sb *strings.Builder, label string, n int) {
	if n == 0 {
		return
	}
	fmt.Fprintf(sb, "| %-24s %7d |\n", label, n)
}

func changePrefix(kind core.ChangeKind) string {
	switch kind {
	case core.ChangeTableAdd, core.ChangeColumnAdd, core.ChangeIndexAdd, core.ChangeForeignKeyAdd:
		return "+"
	case core.ChangeTableDrop, core.ChangeColumnDrop, core.ChangeIndexDrop, core.ChangeForeignKeyDrop:
		return "-"
	default:
		return "~"
	}
}

func describeChange(c *core.SchemaChange) string {
	switch c.Kind {
	case core.ChangeTableAdd:
		return fmt.Sprintf("table %s", c.Table)
	case core.ChangeTableDrop:
		return fmt.Sprintf("table %s", c.Table)
	case core.ChangeColumnAdd, core.ChangeColumnDrop, core.ChangeColumnModify:
		return fmt.Sprintf("column %s.%s", c.Table, c.Object)
	case core.ChangeIndexAdd, core.ChangeIndexDrop:
		return fmt.Sprintf("index %s on %s", c.Object, c.Table)
	case core.ChangeForeignKeyAdd, core.ChangeForeignKeyDrop:
		return fmt.Sprintf("foreign key %s on %s", c.Object, c.Table)
	default:
		return fmt.Sprintf("%s %s.%s", c.Kind, c.Table, c.Object)
	}
}

func breakingSuffix(c *core.SchemaChange) string {
	if c.Breaking {
		return " (BREAKING)"
	}
	return ""
}
