package runner

import (
	"context"
	"fmt"
	"sort"
	"time"

	"launchpad/internal/core"
)

// StatusEntry describes one migration's position in the ledger.
type StatusEntry struct {
	Version    int64
	Name       string
	ModuleName string
	Applied    bool
	AppliedAt  time.Time
	ExecutedBy string
	ChecksumOK bool
}

// Status merges the files on disk with the ledger: pending files, applied
// rows, and applied rows whose files have since changed or disappeared.
func (r *Runner) Status(ctx context.Context) ([]StatusEntry, error) {
	files, err := r.collector.Collect()
	if err != nil {
		return nil, err
	}
	if err := r.ensureLedger(ctx); err != nil {
		return nil, err
	}
	applied, err := r.appliedRecords(ctx, core.ScopeCore, "")
	if err != nil {
		return nil, err
	}

	appliedByVersion := make(map[int64]*core.MigrationRecord, len(applied))
	for _, rec := range applied {
		appliedByVersion[rec.Version] = rec
	}

	var entries []StatusEntry
	seen := make(map[int64]bool)
	for _, f := range files {
		seen[f.Version] = true
		entry := StatusEntry{
			Version:    f.Version,
			Name:       f.Name,
			ModuleName: f.ModuleName,
			ChecksumOK: true,
		}
		if rec, ok := appliedByVersion[f.Version]; ok {
			entry.Applied = true
			entry.AppliedAt = rec.AppliedAt
			entry.ExecutedBy = rec.ExecutedBy
			entry.ChecksumOK = rec.Checksum == f.Checksum()
		}
		entries = append(entries, entry)
	}

	// Ledger rows without a file on disk.
	for _, rec := range applied {
		if seen[rec.Version] {
			continue
		}
		entries = append(entries, StatusEntry{
			Version:    rec.Version,
			Name:       rec.Name,
			ModuleName: rec.ModuleName,
			Applied:    true,
			AppliedAt:  rec.AppliedAt,
			ExecutedBy: rec.ExecutedBy,
			ChecksumOK: false,
		})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Version < entries[j].Version })
	return entries, nil
}

// TamperedError lists ledger rows whose checksums no longer match the files
// on disk.
type TamperedError struct {
	Versions []int64
}

func (e *TamperedError) Error() string {
	return fmt.Sprintf("migration checksum mismatch: versions %v have been modified after apply", e.Versions)
}

// Verify recomputes every applied migration's checksum from its file and
// reports mismatches as tampering.
func (r *Runner) Verify(ctx context.Context) error {
	entries, err := r.Status(ctx)
	if err != nil {
		return err
	}
	var tampered []int64
	for _, e := range entries {
		if e.Applied && !e.ChecksumOK {
			tampered = append(tampered, e.Version)
		}
	}
	if len(tampered) > 0 {
		return &TamperedError{Versions: tampered}
	}
	return nil
}
