package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"launchpad/internal/core"
	"launchpad/internal/dialect"
)

// ensureLedger creates the ledger table when missing. The primary key spans
// (version, scope, template_key, module_name); the nullable qualifiers are
// stored as empty strings so the key treats "absent" as a distinct value.
func (r *Runner) ensureLedger(ctx context.Context) error {
	var ddl string
	switch r.d.Name() {
	case dialect.Postgres:
		ddl = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  version BIGINT NOT NULL,
  name TEXT NOT NULL,
  scope TEXT NOT NULL DEFAULT 'core',
  template_key TEXT NOT NULL DEFAULT '',
  module_name TEXT NOT NULL DEFAULT '',
  checksum TEXT NOT NULL,
  up_sql TEXT NOT NULL,
  down_sql TEXT NOT NULL,
  applied_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  executed_by TEXT,
  PRIMARY KEY (version, scope, template_key, module_name)
)`, r.ledgerIdent())
	case dialect.MySQL:
		ddl = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  version BIGINT NOT NULL,
  name VARCHAR(255) NOT NULL,
  scope VARCHAR(32) NOT NULL DEFAULT 'core',
  template_key VARCHAR(128) NOT NULL DEFAULT '',
  module_name VARCHAR(128) NOT NULL DEFAULT '',
  checksum CHAR(64) NOT NULL,
  up_sql JSON NOT NULL,
  down_sql JSON NOT NULL,
  applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  executed_by VARCHAR(255) NULL,
  PRIMARY KEY (version, scope, template_key, module_name)
)`, r.ledgerIdent())
	default:
		ddl = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  version INTEGER NOT NULL,
  name TEXT NOT NULL,
  scope TEXT NOT NULL DEFAULT 'core',
  template_key TEXT NOT NULL DEFAULT '',
  module_name TEXT NOT NULL DEFAULT '',
  checksum TEXT NOT NULL,
  up_sql TEXT NOT NULL,
  down_sql TEXT NOT NULL,
  applied_at TEXT NOT NULL DEFAULT (datetime('now')),
  executed_by TEXT,
  PRIMARY KEY (version, scope, template_key, module_name)
)`, r.ledgerIdent())
	}
	_, err := r.drv.Execute(ctx, ddl)
	if err != nil {
		return fmt.Errorf("ensure ledger table: %w", err)
	}
	return nil
}

func (r *Runner) ledgerIdent() string {
	table := r.LedgerTable
	if table == "" {
		table = DefaultLedgerTable
	}
	return r.d.QuoteIdentifier(table)
}

func (r *Runner) insertLedgerRow(ctx context.Context, c dbc, rec *core.MigrationRecord) error {
	upJSON, err := json.Marshal(rec.UpSQL)
	if err != nil {
		return err
	}
	downJSON, err := json.Marshal(rec.DownSQL)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (version, name, scope, template_key, module_name, checksum, up_sql, down_sql, applied_at, executed_by) VALUES (%s)",
		r.ledgerIdent(), r.placeholders(10))
	_, err = c.Execute(ctx, query,
		rec.Version, rec.Name, string(rec.Scope), rec.TemplateKey, rec.ModuleName,
		rec.Checksum, string(upJSON), string(downJSON), rec.AppliedAt, rec.ExecutedBy)
	return err
}

func (r *Runner) deleteLedgerRow(ctx context.Context, c dbc, rec *core.MigrationRecord) error {
	query := fmt.Sprintf(
		"DELETE FROM %s WHERE version = %s AND scope = %s AND template_key = %s AND module_name = %s",
		r.ledgerIdent(),
		r.d.Placeholder(1), r.d.Placeholder(2), r.d.Placeholder(3), r.d.Placeholder(4))
	_, err := c.Execute(ctx, query, rec.Version, string(rec.Scope), rec.TemplateKey, rec.ModuleName)
	return err
}

func (r *Runner) appliedVersions(ctx context.Context, scope core.MigrationScope, templateKey string) (map[int64]bool, error) {
	records, err := r.appliedRecords(ctx, scope, templateKey)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]bool, len(records))
	for _, rec := range records {
		out[rec.Version] = true
	}
	return out, nil
}

// appliedRecords loads the ledger partition for one scope/template, version
// ascending.
func (r *Runner) appliedRecords(ctx context.Context, scope core.MigrationScope, templateKey string) ([]*core.MigrationRecord, error) {
	query := fmt.Sprintf(
		"SELECT version, name, scope, template_key, module_name, checksum, up_sql, down_sql, applied_at, executed_by FROM %s WHERE scope = %s AND template_key = %s ORDER BY version",
		r.ledgerIdent(), r.d.Placeholder(1), r.d.Placeholder(2))
	res, err := r.drv.Query(ctx, query, string(scope), templateKey)
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}

	records := make([]*core.MigrationRecord, 0, len(res.Rows))
	for _, row := range res.Rows {
		rec, err := ledgerRowToRecord(row)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func ledgerRowToRecord(row map[string]any) (*core.MigrationRecord, error) {
	rec := &core.MigrationRecord{
		Version:     anyInt64(row["version"]),
		Name:        anyString(row["name"]),
		Scope:       core.MigrationScope(anyString(row["scope"])),
		TemplateKey: anyString(row["template_key"]),
		ModuleName:  anyString(row["module_name"]),
		Checksum:    anyString(row["checksum"]),
		ExecutedBy:  anyString(row["executed_by"]),
		AppliedAt:   anyTime(row["applied_at"]),
	}
	if err := json.Unmarshal([]byte(anyString(row["up_sql"])), &rec.UpSQL); err != nil {
		return nil, fmt.Errorf("ledger row %d: bad up_sql: %w", rec.Version, err)
	}
	if down := anyString(row["down_sql"]); down != "" {
		if err := json.Unmarshal([]byte(down), &rec.DownSQL); err != nil {
			return nil, fmt.Errorf("ledger row %d: bad down_sql: %w", rec.Version, err)
		}
	}
	return rec, nil
}

func (r *Runner) placeholders(n int) string {
	out := ""
	for i := 1; i <= n; i++ {
		if i > 1 {
			out += ", "
		}
		out += r.d.Placeholder(i)
	}
	return out
}

func anyString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

func anyInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		var n int64
		_, _ = fmt.Sscanf(t, "%d", &n)
		return n
	case []byte:
		var n int64
		_, _ = fmt.Sscanf(string(t), "%d", &n)
		return n
	default:
		return 0
	}
}

func anyTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
			if ts, err := time.Parse(layout, t); err == nil {
				return ts
			}
		}
	case []byte:
		return anyTime(string(t))
	}
	return time.Time{}
}
