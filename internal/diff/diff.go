// Package diff computes the structural difference between two declarative
// schemas and turns it into an ordered list of typed changes, each carrying
// forward and reverse DDL and a breaking-change classification.
package diff

import (
	"fmt"
	"time"

	"launchpad/internal/core"
	"launchpad/internal/dialect"
)

// Summary counts changes by kind.
type Summary struct {
	TablesAdded        int `json:"tablesAdded"`
	TablesDropped      int `json:"tablesDropped"`
	ColumnsAdded       int `json:"columnsAdded"`
	ColumnsDropped     int `json:"columnsDropped"`
	ColumnsModified    int `json:"columnsModified"`
	IndexesAdded       int `json:"indexesAdded"`
	IndexesDropped     int `json:"indexesDropped"`
	ForeignKeysAdded   int `json:"foreignKeysAdded"`
	ForeignKeysDropped int `json:"foreignKeysDropped"`
}

// GeneratedMigration is the flattened migration a diff can produce.
type GeneratedMigration struct {
	Version  string   `json:"version"`
	UpSQL    []string `json:"upSql"`
	DownSQL  []string `json:"downSql"`
	Checksum string   `json:"checksum"`
}

// Result is the outcome of one diff run.
type Result struct {
	HasDifferences  bool                 `json:"hasDifferences"`
	Summary         Summary              `json:"summary"`
	Changes         []*core.SchemaChange `json:"changes"`
	BreakingChanges []*core.SchemaChange `json:"breakingChanges"`
	Migration       *GeneratedMigration  `json:"migration,omitempty"`
}

// Options tunes a diff run.
type Options struct {
	// GenerateMigration flattens the changes into an up/down migration.
	GenerateMigration bool
}

// Diff compares current (possibly nil: an empty database) against target and
// returns the ordered change list. Tables are visited in declared order;
// current-only tables follow in their own order.
func Diff(current, target *core.SchemaDefinition, d dialect.Dialect, opts Options) (*Result, error) {
	if target == nil {
		target = &core.SchemaDefinition{}
	}
	if current == nil {
		current = &core.SchemaDefinition{}
	}

	r := &Result{}

	for _, nt := range target.Tables {
		ot := current.FindTable(nt.Name)
		if ot == nil {
			if err := r.addTable(d, nt); err != nil {
				return nil, err
			}
			continue
		}
		if err := r.compareTable(d, ot, nt); err != nil {
			return nil, err
		}
	}

	for _, ot := range current.Tables {
		if target.FindTable(ot.Name) == nil {
			if err := r.dropTable(d, ot); err != nil {
				return nil, err
			}
		}
	}

	for _, c := range r.Changes {
		if c.Breaking {
			r.BreakingChanges = append(r.BreakingChanges, c)
		}
	}
	r.HasDifferences = len(r.Changes) > 0

	if opts.GenerateMigration && r.HasDifferences {
		r.Migration = generateMigration(r.Changes)
	}
	return r, nil
}

func (r *Result) addTable(d dialect.Dialect, t *core.TableDefinition) error {
	createSQL, err := d.CreateTable(t)
	if err != nil {
		return fmt.Errorf("table %s: %w", t.Name, err)
	}
	r.Changes = append(r.Changes, &core.SchemaChange{
		Kind:    core.ChangeTableAdd,
		Table:   t.Name,
		Object:  t.Name,
		UpSQL:   []string{createSQL},
		DownSQL: []string{d.DropTable(t.Name)},
	})
	r.Summary.TablesAdded++

	for _, idx := range t.Indexes {
		if err := r.addIndex(d, t.Name, idx); err != nil {
			return err
		}
	}
	return nil
}

func (r *Result) dropTable(d dialect.Dialect, t *core.TableDefinition) error {
	createSQL, err := d.CreateTable(t)
	if err != nil {
		return fmt.Errorf("table %s: %w", t.Name, err)
	}
	down := []string{createSQL}
	for _, idx := range t.Indexes {
		down = append(down, d.CreateIndex(t.Name, idx))
	}
	r.Changes = append(r.Changes, &core.SchemaChange{
		Kind:     core.ChangeTableDrop,
		Table:    t.Name,
		Object:   t.Name,
		Breaking: true,
		UpSQL:    []string{d.DropTable(t.Name)},
		DownSQL:  down,
	})
	r.Summary.TablesDropped++
	return nil
}

func (r *Result) compareTable(d dialect.Dialect, ot, nt *core.TableDefinition) error {
	// Added and modified columns, in target declaration order.
	for _, nc := range nt.Columns {
		oc := ot.FindColumn(nc.Name)
		if oc == nil {
			if err := r.addColumn(d, nt.Name, nc); err != nil {
				return err
			}
			continue
		}
		if !oc.Equal(nc) {
			if err := r.modifyColumn(d, nt.Name, oc, nc); err != nil {
				return err
			}
		}
	}

	// Removed columns, in current declaration order.
	for _, oc := range ot.Columns {
		if nt.FindColumn(oc.Name) == nil {
			if err := r.dropColumn(d, nt.Name, oc); err != nil {
				return err
			}
		}
	}

	return r.compareIndexes(d, ot, nt)
}

// addColumn splits the foreign key into its own change on dialects that can
// add constraints after the fact; SQLite keeps it inline because that is its
// only chance.
func (r *Result) addColumn(d dialect.Dialect, table string, c *core.ColumnDefinition) error {
	inlineOnly := d.Name() == dialect.SQLite

	emitCol := c
	if c.References != nil && !inlineOnly {
		stripped := *c
		stripped.References = nil
		emitCol = &stripped
	}

	addSQL, err := d.AddColumn(table, emitCol)
	if err != nil {
		return fmt.Errorf("column %s.%s: %w", table, c.Name, err)
	}
	dropSQL, err := d.DropColumn(table, c.Name)
	if err != nil {
		return err
	}
	r.Changes = append(r.Changes, &core.SchemaChange{
		Kind:      core.ChangeColumnAdd,
		Table:     table,
		Object:    c.Name,
		UpSQL:     []string{addSQL},
		DownSQL:   []string{dropSQL},
		NewColumn: c,
	})
	r.Summary.ColumnsAdded++

	if c.References != nil && !inlineOnly {
		fkUp, err := d.AddForeignKey(table, c.Name, c.References)
		if err != nil {
			return err
		}
		fkName := fmt.Sprintf("fk_%s_%s", table, c.Name)
		fkDown, err := d.DropForeignKey(table, fkName)
		if err != nil {
			return err
		}
		r.Changes = append(r.Changes, &core.SchemaChange{
			Kind:    core.ChangeForeignKeyAdd,
			Table:   table,
			Object:  fkName,
			UpSQL:   []string{fkUp},
			DownSQL: []string{fkDown},
		})
		r.Summary.ForeignKeysAdded++
	}
	return nil
}

func (r *Result) dropColumn(d dialect.Dialect, table string, c *core.ColumnDefinition) error {
	dropSQL, err := d.DropColumn(table, c.Name)
	if err != nil {
		return err
	}
	addSQL, err := d.AddColumn(table, c)
	if err != nil {
		return fmt.Errorf("column %s.%s: %w", table, c.Name, err)
	}
	r.Changes = append(r.Changes, &core.SchemaChange{
		Kind:      core.ChangeColumnDrop,
		Table:     table,
		Object:    c.Name,
		Breaking:  true,
		UpSQL:     []string{dropSQL},
		DownSQL:   []string{addSQL},
		OldColumn: c,
	})
	r.Summary.ColumnsDropped++
	return nil
}

func (r *Result) modifyColumn(d dialect.Dialect, table string, oc, nc *core.ColumnDefinition) error {
	up, err := d.AlterColumn(table, oc, nc)
	if err != nil {
		return fmt.Errorf("column %s.%s: %w", table, nc.Name, err)
	}
	down, err := d.AlterColumn(table, nc, oc)
	if err != nil {
		return fmt.Errorf("column %s.%s: %w", table, nc.Name, err)
	}
	r.Changes = append(r.Changes, &core.SchemaChange{
		Kind:      core.ChangeColumnModify,
		Table:     table,
		Object:    nc.Name,
		Breaking:  isBreakingModify(oc, nc),
		UpSQL:     up,
		DownSQL:   down,
		OldColumn: oc,
		NewColumn: nc,
	})
	r.Summary.ColumnsModified++
	return nil
}

func (r *Result) compareIndexes(d dialect.Dialect, ot, nt *core.TableDefinition) error {
	oldByName := make(map[string]*core.IndexDefinition, len(ot.Indexes))
	for _, idx := range ot.Indexes {
		oldByName[idx.ResolvedName(ot.Name)] = idx
	}
	newByName := make(map[string]*core.IndexDefinition, len(nt.Indexes))
	for _, idx := range nt.Indexes {
		newByName[idx.ResolvedName(nt.Name)] = idx
	}

	for _, idx := range nt.Indexes {
		name := idx.ResolvedName(nt.Name)
		old, ok := oldByName[name]
		if !ok {
			if err := r.addIndex(d, nt.Name, idx); err != nil {
				return err
			}
			continue
		}
		if !old.Equal(idx) {
			// Replace in place: drop then recreate.
			if err := r.dropIndex(d, nt.Name, old); err != nil {
				return err
			}
			if err := r.addIndex(d, nt.Name, idx); err != nil {
				return err
			}
		}
	}

	for _, idx := range ot.Indexes {
		if _, ok := newByName[idx.ResolvedName(ot.Name)]; !ok {
			if err := r.dropIndex(d, ot.Name, idx); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Result) addIndex(d dialect.Dialect, table string, idx *core.IndexDefinition) error {
	name := idx.ResolvedName(table)
	dropSQL, err := d.DropIndex(table, name)
	if err != nil {
		return err
	}
	r.Changes = append(r.Changes, &core.SchemaChange{
		Kind:    core.ChangeIndexAdd,
		Table:   table,
		Object:  name,
		UpSQL:   []string{d.CreateIndex(table, idx)},
		DownSQL: []string{dropSQL},
	})
	r.Summary.IndexesAdded++
	return nil
}

func (r *Result) dropIndex(d dialect.Dialect, table string, idx *core.IndexDefinition) error {
	name := idx.ResolvedName(table)
	dropSQL, err := d.DropIndex(table, name)
	if err != nil {
		return err
	}
	r.Changes = append(r.Changes, &core.SchemaChange{
		Kind:    core.ChangeIndexDrop,
		Table:   table,
		Object:  name,
		UpSQL:   []string{dropSQL},
		DownSQL: []string{d.CreateIndex(table, idx)},
	})
	r.Summary.IndexesDropped++
	return nil
}

// generateMigration flattens changes into up statements in order and down
// statements in reverse change order.
func generateMigration(changes []*core.SchemaChange) *GeneratedMigration {
	m := &GeneratedMigration{
		Version: time.Now().UTC().Format("20060102150405"),
	}
	for _, c := range changes {
		m.UpSQL = append(m.UpSQL, c.UpSQL...)
	}
	for i := len(changes) - 1; i >= 0; i-- {
		m.DownSQL = append(m.DownSQL, changes[i].DownSQL...)
	}
	m.Checksum = core.StatementsChecksum(m.UpSQL, m.DownSQL)
	return m
}
