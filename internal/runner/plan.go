package runner

import (
	"launchpad/internal/collector"
	"launchpad/internal/core"
)

// planUp selects the pending migrations an up run will apply, honoring the
// step cap and the version bound.
func planUp(files []*collector.MigrationFile, applied map[int64]bool, opts UpOptions) []*collector.MigrationFile {
	var plan []*collector.MigrationFile
	for _, f := range files {
		if applied[f.Version] {
			continue
		}
		if opts.ToVersion > 0 && f.Version > opts.ToVersion {
			break
		}
		plan = append(plan, f)
		if opts.Steps > 0 && len(plan) == opts.Steps {
			break
		}
	}
	return plan
}

// planDown selects the applied migrations a down run will revert, newest
// first. Without options exactly one reverts; ToVersion reverts everything
// above it.
func planDown(records []*core.MigrationRecord, opts DownOptions) []*core.MigrationRecord {
	// Newest first.
	ordered := make([]*core.MigrationRecord, len(records))
	copy(ordered, records)
	for i, j := 0, len(ordered)-1; i < j; i, j = i+1, j-1 {
		ordered[i], ordered[j] = ordered[j], ordered[i]
	}

	steps := opts.Steps
	if steps <= 0 && opts.ToVersion <= 0 {
		steps = 1
	}

	var plan []*core.MigrationRecord
	for _, rec := range ordered {
		if opts.ToVersion > 0 && rec.Version <= opts.ToVersion {
			break
		}
		plan = append(plan, rec)
		if steps > 0 && len(plan) == steps {
			break
		}
	}
	return plan
}

func recordsForPlan(plan []*collector.MigrationFile, scope core.MigrationScope, templateKey string) []*core.MigrationRecord {
	records := make([]*core.MigrationRecord, 0, len(plan))
	for _, f := range plan {
		records = append(records, f.Record(scope, templateKey))
	}
	return records
}
