package driver

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"launchpad/internal/dialect"
)

// DrainPhase names the stages a graceful shutdown moves through.
type DrainPhase string

const (
	PhaseDraining   DrainPhase = "draining"
	PhaseCancelling DrainPhase = "cancelling"
	PhaseClosing    DrainPhase = "closing"
	PhaseComplete   DrainPhase = "complete"
)

// DrainProgress is one progress event during a drain.
type DrainProgress struct {
	EventID       string
	Phase         DrainPhase
	ActiveQueries int
	Message       string
}

// DrainOptions configures DrainAndClose.
type DrainOptions struct {
	// Timeout bounds the wait for in-flight queries before force-cancel.
	Timeout time.Duration
	// ForceCancelOnTimeout, nil or true, cancels stragglers at the deadline.
	ForceCancelOnTimeout *bool
	// OnProgress receives phase events.
	OnProgress func(DrainProgress)
}

// DrainResult summarizes a completed drain.
type DrainResult struct {
	Success          bool
	CompletedQueries int64
	CancelledQueries int
	ElapsedMs        int64
}

const drainPollInterval = 25 * time.Millisecond

// DrainAndClose stops accepting new queries, waits up to the timeout for
// active queries to finish, force-cancels stragglers when allowed, and
// closes the pool. Cancellation is best effort: failures are reported in the
// progress stream but never block shutdown.
func (drv *Driver) DrainAndClose(ctx context.Context, opts DrainOptions) DrainResult {
	start := time.Now()
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	forceCancel := opts.ForceCancelOnTimeout == nil || *opts.ForceCancelOnTimeout

	progress := func(phase DrainPhase, msg string) {
		if opts.OnProgress == nil {
			return
		}
		opts.OnProgress(DrainProgress{
			EventID:       uuid.NewString(),
			Phase:         phase,
			ActiveQueries: drv.tracker.activeCount(),
			Message:       msg,
		})
	}

	drv.health.stop()
	drv.tracker.setDraining()
	completedBefore := drv.tracker.completedCount()
	progress(PhaseDraining, "waiting for active queries")

	deadline := time.Now().Add(timeout)
	for drv.tracker.activeCount() > 0 && time.Now().Before(deadline) {
		if err := sleepCtx(ctx, drainPollInterval); err != nil {
			break
		}
	}

	cancelled := 0
	if remaining := drv.tracker.snapshot(); len(remaining) > 0 && forceCancel {
		progress(PhaseCancelling, fmt.Sprintf("cancelling %d queries", len(remaining)))
		for _, q := range remaining {
			if err := drv.cancelBackend(ctx, q.BackendPID); err != nil {
				progress(PhaseCancelling, fmt.Sprintf("cancel query %d failed: %v", q.ID, err))
			}
			drv.tracker.markCancelled(q.ID)
			cancelled++
		}
	}

	progress(PhaseClosing, "closing pool")
	closeErr := drv.db.Close()

	result := DrainResult{
		Success:          closeErr == nil,
		CompletedQueries: drv.tracker.completedCount() - completedBefore,
		CancelledQueries: cancelled,
		ElapsedMs:        time.Since(start).Milliseconds(),
	}
	progress(PhaseComplete, "drain complete")
	return result
}

// cancelBackend issues the dialect-appropriate cancellation for a tracked
// backend PID.
func (drv *Driver) cancelBackend(ctx context.Context, pid int) error {
	if pid == 0 {
		return fmt.Errorf("backend pid unknown")
	}
	switch drv.d.Name() {
	case dialect.Postgres:
		_, err := drv.db.ExecContext(ctx, "SELECT pg_cancel_backend($1)", pid)
		return err
	case dialect.MySQL:
		_, err := drv.db.ExecContext(ctx, fmt.Sprintf("KILL QUERY %d", pid))
		return err
	default:
		return fmt.Errorf("cancellation not supported on %s", drv.d.Name())
	}
}
