// Package runner applies and reverts file-based migrations under a
// cooperative lock, recording every applied migration in a tamper-detecting
// ledger table.
package runner

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"time"

	"github.com/google/uuid"

	"launchpad/internal/collector"
	"launchpad/internal/core"
	"launchpad/internal/dialect"
	"launchpad/internal/driver"
)

const (
	// DefaultLedgerTable is the migration ledger table name.
	DefaultLedgerTable = "lp_migrations"
	// DefaultModuleTable is the module registry table name.
	DefaultModuleTable = "lp_module_registry"
)

// dbc is the statement surface shared by the driver and its transaction
// client; the runner uses it so one code path serves both.
type dbc interface {
	Query(ctx context.Context, query string, params ...any) (*driver.QueryResult, error)
	Execute(ctx context.Context, query string, params ...any) (*driver.ExecResult, error)
}

// Runner applies migrations against one database.
type Runner struct {
	drv       *driver.Driver
	d         dialect.Dialect
	collector *collector.Collector

	// LedgerTable overrides the ledger table name.
	LedgerTable string
	// ModuleTable overrides the module registry table name.
	ModuleTable string
	// ExecutedBy is recorded on every applied migration.
	ExecutedBy string
	// LockTimeout bounds the wait for the cooperative lock.
	LockTimeout time.Duration
}

// New builds a runner over an open driver and a migrations directory. A nil
// driver is accepted for the file-only operations (Create).
func New(drv *driver.Driver, migrationsDir string) *Runner {
	var d dialect.Dialect
	if drv != nil {
		d = drv.Dialect()
	}
	return &Runner{
		drv:         drv,
		d:           d,
		collector:   collector.New(migrationsDir),
		LedgerTable: DefaultLedgerTable,
		ModuleTable: DefaultModuleTable,
		ExecutedBy:  defaultExecutor(),
		LockTimeout: 10 * time.Minute,
	}
}

// defaultExecutor identifies who ran the migration: user@host, or a random
// id when neither is available.
func defaultExecutor() string {
	host, _ := os.Hostname()
	name := ""
	if u, err := user.Current(); err == nil {
		name = u.Username
	}
	if name == "" && host == "" {
		return uuid.NewString()
	}
	if name == "" {
		name = "unknown"
	}
	if host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("%s@%s", name, host)
}

// UpOptions configures an up run.
type UpOptions struct {
	// Steps caps how many pending migrations apply; zero means all.
	Steps int
	// ToVersion stops before any migration with a greater version; zero
	// means no bound.
	ToVersion int64
	// DryRun reports the plan without executing.
	DryRun bool
	// Scope selects the ledger partition; empty means core.
	Scope core.MigrationScope
	// TemplateKey qualifies template-scoped migrations.
	TemplateKey string
	// Module restricts the run to one module's files.
	Module string
}

// DownOptions configures a down run.
type DownOptions struct {
	// Steps caps how many applied migrations revert; zero means one.
	Steps int
	// ToVersion reverts every migration with a greater version; zero means
	// only Steps applies.
	ToVersion int64
	// DryRun reports the plan without executing.
	DryRun bool
	Scope  core.MigrationScope
	// TemplateKey qualifies template-scoped migrations.
	TemplateKey string
}

func (o UpOptions) scope() core.MigrationScope {
	if o.Scope == "" {
		return core.ScopeCore
	}
	return o.Scope
}

func (o DownOptions) scope() core.MigrationScope {
	if o.Scope == "" {
		return core.ScopeCore
	}
	return o.Scope
}

// Up applies pending migrations in global order and returns the records
// written to the ledger (or, on dry run, the records that would be written).
func (r *Runner) Up(ctx context.Context, opts UpOptions) ([]*core.MigrationRecord, error) {
	files, err := r.collectFiles(opts.Module)
	if err != nil {
		return nil, err
	}

	if err := r.ensureLedger(ctx); err != nil {
		return nil, err
	}

	applied, err := r.appliedVersions(ctx, opts.scope(), opts.TemplateKey)
	if err != nil {
		return nil, err
	}

	plan := planUp(files, applied, opts)
	if opts.DryRun || len(plan) == 0 {
		return recordsForPlan(plan, opts.scope(), opts.TemplateKey), nil
	}

	unlock, err := r.acquireLock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var done []*core.MigrationRecord
	for _, f := range plan {
		rec, err := r.applyOne(ctx, f, opts.scope(), opts.TemplateKey)
		if err != nil {
			return done, fmt.Errorf("apply %d__%s: %w", f.Version, f.Name, err)
		}
		done = append(done, rec)
	}
	return done, nil
}

// Down reverts applied migrations in reverse order, removing their ledger
// rows.
func (r *Runner) Down(ctx context.Context, opts DownOptions) ([]*core.MigrationRecord, error) {
	if err := r.ensureLedger(ctx); err != nil {
		return nil, err
	}

	records, err := r.appliedRecords(ctx, opts.scope(), opts.TemplateKey)
	if err != nil {
		return nil, err
	}

	plan := planDown(records, opts)
	if opts.DryRun || len(plan) == 0 {
		return plan, nil
	}

	unlock, err := r.acquireLock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var done []*core.MigrationRecord
	for _, rec := range plan {
		if err := r.revertOne(ctx, rec); err != nil {
			return done, fmt.Errorf("revert %d__%s: %w", rec.Version, rec.Name, err)
		}
		done = append(done, rec)
	}
	return done, nil
}

// applyOne runs one migration's statements, computes the checksum, and
// writes the ledger row. On dialects with transactional DDL everything
// happens in one transaction; on MySQL a mid-migration failure leaves
// partial DDL applied and no ledger row.
func (r *Runner) applyOne(ctx context.Context, f *collector.MigrationFile, scope core.MigrationScope, templateKey string) (*core.MigrationRecord, error) {
	rec := f.Record(scope, templateKey)
	rec.AppliedAt = time.Now().UTC()
	rec.ExecutedBy = r.ExecutedBy

	run := func(c dbc) error {
		for _, stmt := range f.UpSQL {
			if _, err := c.Execute(ctx, stmt); err != nil {
				return err
			}
		}
		return r.insertLedgerRow(ctx, c, rec)
	}

	if r.d.SupportsTransactionalDDL() {
		err := r.drv.Transaction(ctx, func(tx *driver.Tx) error {
			return run(tx)
		})
		return rec, err
	}
	return rec, run(r.drv)
}

// revertOne mirrors applyOne: down statements in declared order, then the
// ledger row is deleted.
func (r *Runner) revertOne(ctx context.Context, rec *core.MigrationRecord) error {
	run := func(c dbc) error {
		for _, stmt := range rec.DownSQL {
			if _, err := c.Execute(ctx, stmt); err != nil {
				return err
			}
		}
		return r.deleteLedgerRow(ctx, c, rec)
	}

	if r.d.SupportsTransactionalDDL() {
		return r.drv.Transaction(ctx, func(tx *driver.Tx) error {
			return run(tx)
		})
	}
	return run(r.drv)
}

func (r *Runner) collectFiles(module string) ([]*collector.MigrationFile, error) {
	if module != "" {
		return r.collector.CollectModule(module)
	}
	return r.collector.Collect()
}

// Create scaffolds a new migration file in the module directory and returns
// its path.
func (r *Runner) Create(name, module string) (string, error) {
	if module == "" {
		module = "core"
	}
	dir := fmt.Sprintf("%s/%s", r.collector.BaseDir, module)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	version := time.Now().UTC().Format("20060102150405")
	path := fmt.Sprintf("%s/%s__%s.sql", dir, version, name)
	content := "-- up\n\n-- down\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", err
	}
	return path, nil
}
