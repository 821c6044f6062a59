package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"launchpad/internal/core"
	"launchpad/internal/dialect"
	"launchpad/internal/diff"
	"launchpad/internal/driver"
)

// DefaultTable is the schema registry table name.
const DefaultTable = "lp_schema_registry"

// MigrationResult reports the application of one schema change.
type MigrationResult struct {
	Version  int64         `json:"version"`
	Name     string        `json:"name"`
	Success  bool          `json:"success"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// BreakingChangeError blocks a register that would apply breaking changes
// without force.
type BreakingChangeError struct {
	Changes []*core.SchemaChange
}

func (e *BreakingChangeError) Error() string {
	return fmt.Sprintf("schema has %d breaking change(s); pass force to apply", len(e.Changes))
}

// Registry reconciles declared schemas against one database.
type Registry struct {
	drv *driver.Driver
	d   dialect.Dialect

	// Table overrides the registry table name.
	Table string
	// Force permits breaking changes.
	Force bool
}

// New builds a registry over an open driver.
func New(drv *driver.Driver) *Registry {
	return &Registry{drv: drv, d: drv.Dialect(), Table: DefaultTable}
}

// Register validates the schema, diffs it against the persisted state for
// (appID, schemaName), applies the forward DDL, and upserts the registry
// row. The second registration of an identical schema is a no-op.
func (r *Registry) Register(ctx context.Context, appID, schemaName, version string, schema *core.SchemaDefinition) ([]MigrationResult, error) {
	if err := r.ensureTable(ctx); err != nil {
		return nil, err
	}
	if err := Validate(schema); err != nil {
		return nil, err
	}

	current, err := r.currentSchema(ctx, appID, schemaName)
	if err != nil {
		return nil, err
	}

	d, err := diff.Diff(current, schema, r.d, diff.Options{})
	if err != nil {
		return nil, err
	}
	if !d.HasDifferences {
		return nil, nil
	}
	if len(d.BreakingChanges) > 0 && !r.Force {
		return nil, &BreakingChangeError{Changes: d.BreakingChanges}
	}

	checksum, err := core.SchemaChecksum(schema)
	if err != nil {
		return nil, err
	}
	payload, err := core.CanonicalJSON(schema)
	if err != nil {
		return nil, err
	}

	if r.d.SupportsTransactionalDDL() {
		var results []MigrationResult
		err := r.drv.Transaction(ctx, func(tx *driver.Tx) error {
			var txErr error
			results, txErr = applyChanges(ctx, tx, d.Changes)
			if txErr != nil {
				return txErr
			}
			return r.upsertRow(ctx, tx, appID, schemaName, version, string(payload), checksum)
		})
		return results, err
	}

	results, err := applyChanges(ctx, r.drv, d.Changes)
	if err != nil {
		return results, err
	}
	if err := r.upsertRow(ctx, r.drv, appID, schemaName, version, string(payload), checksum); err != nil {
		return results, err
	}
	return results, nil
}

type executor interface {
	Execute(ctx context.Context, query string, params ...any) (*driver.ExecResult, error)
}

// applyChanges runs each change's forward DDL in order. The first failure
// abandons the batch; its result carries the error.
func applyChanges(ctx context.Context, c executor, changes []*core.SchemaChange) ([]MigrationResult, error) {
	version := time.Now().UTC().Unix()
	results := make([]MigrationResult, 0, len(changes))
	for _, change := range changes {
		start := time.Now()
		result := MigrationResult{
			Version: version,
			Name:    fmt.Sprintf("%s_%s_%s", change.Kind, change.Table, change.Object),
		}
		var failed error
		for _, stmt := range change.UpSQL {
			if _, err := c.Execute(ctx, stmt); err != nil {
				failed = err
				break
			}
		}
		result.Duration = time.Since(start)
		result.Success = failed == nil
		if failed != nil {
			result.Error = failed.Error()
			results = append(results, result)
			return results, fmt.Errorf("apply %s on %s: %w", change.Kind, change.Table, failed)
		}
		results = append(results, result)
	}
	return results, nil
}

func (r *Registry) tableIdent() string {
	table := r.Table
	if table == "" {
		table = DefaultTable
	}
	return r.d.QuoteIdentifier(table)
}

func (r *Registry) ensureTable(ctx context.Context) error {
	textType, timeType, timeDefault := "TEXT", "TIMESTAMPTZ", "now()"
	keyType := "TEXT"
	switch r.d.Name() {
	case dialect.MySQL:
		keyType, timeType, timeDefault = "VARCHAR(128)", "DATETIME", "CURRENT_TIMESTAMP"
	case dialect.SQLite:
		timeType, timeDefault = "TEXT", "(datetime('now'))"
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  app_id %s NOT NULL,
  schema_name %s NOT NULL,
  version %s NOT NULL,
  schema %s NOT NULL,
  checksum %s NOT NULL,
  created_at %s NOT NULL DEFAULT %s,
  updated_at %s NOT NULL DEFAULT %s,
  PRIMARY KEY (app_id, schema_name)
)`, r.tableIdent(), keyType, keyType, textType, textType, textType, timeType, timeDefault, timeType, timeDefault)
	if _, err := r.drv.Execute(ctx, ddl); err != nil {
		return fmt.Errorf("ensure schema registry: %w", err)
	}
	return nil
}

// currentSchema loads the persisted schema for (appID, schemaName), or nil
// when none has been registered.
func (r *Registry) currentSchema(ctx context.Context, appID, schemaName string) (*core.SchemaDefinition, error) {
	query := fmt.Sprintf("SELECT schema FROM %s WHERE app_id = %s AND schema_name = %s",
		r.tableIdent(), r.d.Placeholder(1), r.d.Placeholder(2))
	res, err := r.drv.Query(ctx, query, appID, schemaName)
	if err != nil {
		return nil, fmt.Errorf("read schema registry: %w", err)
	}
	if len(res.Rows) == 0 {
		return nil, nil
	}

	raw, _ := res.Rows[0]["schema"].(string)
	if raw == "" {
		return nil, nil
	}
	var schema core.SchemaDefinition
	if err := json.Unmarshal([]byte(raw), &schema); err != nil {
		return nil, fmt.Errorf("corrupt schema registry row for %s/%s: %w", appID, schemaName, err)
	}
	return &schema, nil
}

func (r *Registry) upsertRow(ctx context.Context, c executor, appID, schemaName, version, payload, checksum string) error {
	now := time.Now().UTC()
	var query string
	switch r.d.Name() {
	case dialect.MySQL:
		query = fmt.Sprintf(
			"INSERT INTO %s (app_id, schema_name, version, `schema`, checksum, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?) "+
				"ON DUPLICATE KEY UPDATE version = VALUES(version), `schema` = VALUES(`schema`), checksum = VALUES(checksum), updated_at = VALUES(updated_at)",
			r.tableIdent())
	default:
		query = fmt.Sprintf(
			"INSERT INTO %s (app_id, schema_name, version, schema, checksum, created_at, updated_at) VALUES (%s) "+
				"ON CONFLICT (app_id, schema_name) DO UPDATE SET version = EXCLUDED.version, schema = EXCLUDED.schema, checksum = EXCLUDED.checksum, updated_at = EXCLUDED.updated_at",
			r.tableIdent(), placeholderList(r.d, 7))
	}
	_, err := c.Execute(ctx, query, appID, schemaName, version, payload, checksum, now, now)
	return err
}

func placeholderList(d dialect.Dialect, n int) string {
	out := ""
	for i := 1; i <= n; i++ {
		if i > 1 {
			out += ", "
		}
		out += d.Placeholder(i)
	}
	return out
}
