package output

import (
	"strings"

	"launchpad/internal/diff"
)

type sqlFormatter struct{}

// FormatDiff renders the forward DDL as a -- up block and the reverse DDL,
// in reverse change order, as a -- down block. Every statement is
// ;-terminated.
func (sqlFormatter) FormatDiff(r *diff.Result) (string, error) {
	if r == nil || !r.HasDifferences {
		return "-- no changes\n", nil
	}

	var sb strings.Builder
	sb.WriteString("-- up\n")
	for _, c := range r.Changes {
		for _, stmt := range c.UpSQL {
			sb.WriteString(terminate(stmt))
			sb.WriteByte('\n')
		}
	}

	sb.WriteString("\n-- down\n")
	for i := len(r.Changes) - 1; i >= 0; i-- {
		for _, stmt := range r.Changes[i].DownSQL {
			sb.WriteString(terminate(stmt))
			sb.WriteByte('\n')
		}
	}
	return sb.String(), nil
}
