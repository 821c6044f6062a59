// Package output renders diff results for people and machines. Three formats
// exist: human text, JSON, and SQL.
package output

import (
	"fmt"
	"strings"

	"launchpad/internal/diff"
)

// Format is an enum of the available output formats.
type Format string

const (
	FormatHuman Format = "human"
	FormatJSON  Format = "json"
	FormatSQL   Format = "sql"
)

// Formatter renders one diff result.
type Formatter interface {
	FormatDiff(r *diff.Result) (string, error)
}

// NewFormatter selects a formatter by name. Empty defaults to human.
func NewFormatter(name string) (Formatter, error) {
	switch Format(strings.ToLower(strings.TrimSpace(name))) {
	case "", FormatHuman:
		return humanFormatter{}, nil
	case FormatJSON:
		return jsonFormatter{}, nil
	case FormatSQL:
		return sqlFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s; use 'human', 'json', or 'sql'", name)
	}
}

func terminate(stmt string) string {
	stmt = strings.TrimSpace(stmt)
	if !strings.HasSuffix(stmt, ";") {
		stmt += ";"
	}
	return stmt
}
