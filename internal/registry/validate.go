// Package registry validates declared schemas and reconciles them against
// live database state, persisting content-addressed schema records.
package registry

import (
	"fmt"

	"launchpad/internal/core"
)

// Required columns on every registered table. The two tenant columns must
// carry the tenant flag so the compiler can scope queries to them.
var requiredColumns = []string{"id", "app_id", "organization_id"}

// ValidationError reports a schema that violates the registry invariants.
type ValidationError struct {
	Table  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("schema validation failed for table %q: %s", e.Table, e.Reason)
}

// Validate enforces the registry invariants on a declared schema:
// every table carries id, app_id, and organization_id; the tenant columns
// are flagged; primary keys are declared consistently; index column names
// resolve; references name a table and a column (targets are not resolved).
func Validate(s *core.SchemaDefinition) error {
	if s == nil || len(s.Tables) == 0 {
		return &ValidationError{Table: "", Reason: "schema has no tables"}
	}

	for _, t := range s.Tables {
		if err := validateTable(s, t); err != nil {
			return err
		}
	}
	return nil
}

func validateTable(s *core.SchemaDefinition, t *core.TableDefinition) error {
	if len(t.Columns) == 0 {
		return &ValidationError{Table: t.Name, Reason: "table has no columns"}
	}

	for _, name := range requiredColumns {
		if t.FindColumn(name) == nil {
			return &ValidationError{Table: t.Name, Reason: fmt.Sprintf("missing required column %q", name)}
		}
	}
	for _, name := range []string{"app_id", "organization_id"} {
		if !t.FindColumn(name).Tenant {
			return &ValidationError{Table: t.Name, Reason: fmt.Sprintf("column %q must carry the tenant flag", name)}
		}
	}

	seen := make(map[string]bool, len(t.Columns))
	flagged := 0
	for _, c := range t.Columns {
		if seen[c.Name] {
			return &ValidationError{Table: t.Name, Reason: fmt.Sprintf("duplicate column %q", c.Name)}
		}
		seen[c.Name] = true

		if !core.ValidColumnType(c.Type) {
			return &ValidationError{Table: t.Name, Reason: fmt.Sprintf("column %q has unknown type %q", c.Name, c.Type)}
		}
		if c.PrimaryKey {
			flagged++
		}
		if c.References != nil {
			if c.References.Table == "" || c.References.Column == "" {
				return &ValidationError{Table: t.Name, Reason: fmt.Sprintf("column %q has an incomplete reference", c.Name)}
			}
			// The target either exists in this schema or is assumed
			// pre-existing; it is not looked up.
		}
	}

	// A single PK column uses the column flag; composite keys use the
	// table's explicit list.
	if flagged > 1 {
		return &ValidationError{Table: t.Name, Reason: "multiple primaryKey flags; declare a composite key on the table instead"}
	}
	if len(t.PrimaryKey) == 1 {
		return &ValidationError{Table: t.Name, Reason: "single-column composite key; flag the column primaryKey instead"}
	}
	for _, col := range t.PrimaryKey {
		if !seen[col] {
			return &ValidationError{Table: t.Name, Reason: fmt.Sprintf("composite key names unknown column %q", col)}
		}
	}

	for _, idx := range t.Indexes {
		if len(idx.Columns) == 0 {
			return &ValidationError{Table: t.Name, Reason: "index with no columns"}
		}
		for _, col := range idx.Columns {
			if !seen[col] {
				return &ValidationError{Table: t.Name, Reason: fmt.Sprintf("index %q names unknown column %q", idx.ResolvedName(t.Name), col)}
			}
		}
	}
	return nil
}
