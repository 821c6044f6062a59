package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"launchpad/internal/core"
	"launchpad/internal/dialect"
)

// ensureModuleTable creates the module registry when missing.
func (r *Runner) ensureModuleTable(ctx context.Context) error {
	nameType, jsonType, timeType, timeDefault := "TEXT", "TEXT", "TIMESTAMPTZ", "now()"
	switch r.d.Name() {
	case dialect.MySQL:
		nameType, jsonType, timeType, timeDefault = "VARCHAR(128)", "JSON", "DATETIME", "CURRENT_TIMESTAMP"
	case dialect.SQLite:
		timeType, timeDefault = "TEXT", "(datetime('now'))"
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  name %s NOT NULL PRIMARY KEY,
  display_name TEXT,
  description TEXT,
  version TEXT,
  dependencies %s NOT NULL,
  migration_prefix TEXT,
  created_at %s NOT NULL DEFAULT %s
)`, r.moduleIdent(), nameType, jsonType, timeType, timeDefault)
	if _, err := r.drv.Execute(ctx, ddl); err != nil {
		return fmt.Errorf("ensure module registry: %w", err)
	}
	return nil
}

func (r *Runner) moduleIdent() string {
	table := r.ModuleTable
	if table == "" {
		table = DefaultModuleTable
	}
	return r.d.QuoteIdentifier(table)
}

// RegisterModule upserts one module record.
func (r *Runner) RegisterModule(ctx context.Context, m *core.Module) error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("module name is required")
	}
	if err := r.ensureModuleTable(ctx); err != nil {
		return err
	}
	deps, err := json.Marshal(m.Dependencies)
	if err != nil {
		return err
	}

	del := fmt.Sprintf("DELETE FROM %s WHERE name = %s", r.moduleIdent(), r.d.Placeholder(1))
	if _, err := r.drv.Execute(ctx, del, m.Name); err != nil {
		return err
	}
	ins := fmt.Sprintf(
		"INSERT INTO %s (name, display_name, description, version, dependencies, migration_prefix, created_at) VALUES (%s)",
		r.moduleIdent(), r.placeholders(7))
	_, err = r.drv.Execute(ctx, ins,
		m.Name, m.DisplayName, m.Description, m.Version, string(deps), m.MigrationPrefix, time.Now().UTC())
	return err
}

// ListModules returns every registered module, name ascending.
func (r *Runner) ListModules(ctx context.Context) ([]*core.Module, error) {
	if err := r.ensureModuleTable(ctx); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(
		"SELECT name, display_name, description, version, dependencies, migration_prefix FROM %s ORDER BY name",
		r.moduleIdent())
	res, err := r.drv.Query(ctx, query)
	if err != nil {
		return nil, err
	}

	modules := make([]*core.Module, 0, len(res.Rows))
	for _, row := range res.Rows {
		m := &core.Module{
			Name:            anyString(row["name"]),
			DisplayName:     anyString(row["display_name"]),
			Description:     anyString(row["description"]),
			Version:         anyString(row["version"]),
			MigrationPrefix: anyString(row["migration_prefix"]),
		}
		if deps := anyString(row["dependencies"]); deps != "" {
			if err := json.Unmarshal([]byte(deps), &m.Dependencies); err != nil {
				return nil, fmt.Errorf("module %s: bad dependencies: %w", m.Name, err)
			}
		}
		modules = append(modules, m)
	}
	return modules, nil
}

// UpModules applies every registered module's migrations in a
// dependency-respecting order.
func (r *Runner) UpModules(ctx context.Context, opts UpOptions) ([]*core.MigrationRecord, error) {
	modules, err := r.ListModules(ctx)
	if err != nil {
		return nil, err
	}
	order, err := TopoSort(modules)
	if err != nil {
		return nil, err
	}

	var done []*core.MigrationRecord
	for _, name := range order {
		moduleOpts := opts
		moduleOpts.Module = name
		records, err := r.Up(ctx, moduleOpts)
		done = append(done, records...)
		if err != nil {
			return done, fmt.Errorf("module %s: %w", name, err)
		}
	}
	return done, nil
}

// CycleError reports a dependency cycle between modules.
type CycleError struct {
	Members []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("module dependency cycle: %s", strings.Join(e.Members, " -> "))
}

// TopoSort orders modules so every module follows its dependencies.
// Dependencies on unregistered modules are ignored (assumed pre-applied);
// cycles are rejected with their members named. Ties resolve by name for a
// deterministic order.
func TopoSort(modules []*core.Module) ([]string, error) {
	byName := make(map[string]*core.Module, len(modules))
	names := make([]string, 0, len(modules))
	for _, m := range modules {
		byName[m.Name] = m
		names = append(names, m.Name)
	}
	sort.Strings(names)

	const (
		unvisited = 0
		visiting  = 1
		visited   = 2
	)
	state := make(map[string]int, len(modules))
	var order []string
	var stack []string

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case visited:
			return nil
		case visiting:
			// Trim the stack to the cycle entry point.
			start := 0
			for i, n := range stack {
				if n == name {
					start = i
					break
				}
			}
			return &CycleError{Members: append(append([]string{}, stack[start:]...), name)}
		}
		state[name] = visiting
		stack = append(stack, name)

		m := byName[name]
		deps := append([]string(nil), m.Dependencies...)
		sort.Strings(deps)
		for _, dep := range deps {
			if _, ok := byName[dep]; !ok {
				continue
			}
			if err := visit(dep); err != nil {
				return err
			}
		}

		stack = stack[:len(stack)-1]
		state[name] = visited
		order = append(order, name)
		return nil
	}

	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return order, nil
}
