// Package compact implements the parallel full-heap compaction backstop
// (§4.6): a stop-the-world mark with no TAMS optimization, header-encoded
// (with table fallback) forwarding, and the forward/adjust/compact phase
// split of the "new" pipeline (§9 design note).
package compact

import (
	"context"
	"time"

	"github.com/orizon-lang/g1core/internal/heap"
	"github.com/orizon-lang/g1core/internal/mark"
	"github.com/orizon-lang/g1core/internal/worker"
)

// FullMark runs phase 1 (§4.6): every region's TAMS is pushed to its own
// End() first, so the marker's Grey never treats any address as
// implicitly live — the whole heap is retraced from the supplied roots.
// m must already have SetHeapRange called to cover every committed
// region; SATB is irrelevant here (the mutator is stopped) and left
// untouched.
func FullMark(ctx context.Context, pool *worker.Pool, m *mark.Marker, grid *heap.Grid, scanRoots func(grey func(addr uint64))) error {
	grid.Iterate(func(r *heap.Region) { r.SetTAMS(r.End()) })

	root := m.Task(0)
	scanRoots(func(addr uint64) { m.Grey(root, addr) })

	term := worker.NewTerminator(pool.ActiveWorkers())

	return pool.RunTask(ctx, func(workerID int) {
		markUntilDone(m, workerID, term)
	})
}

// markUntilDone drives one worker's do_marking_step loop, re-entering the
// overflow-recovery barrier whenever the shared stack overflowed, until
// the step completes with no overflow pending (§4.3.6 applied to a STW
// full mark instead of the concurrent cycle).
func markUntilDone(m *mark.Marker, workerID int, term *worker.Terminator) {
	for {
		task := m.Task(workerID)
		m.DoMarkingStep(task, time.Hour, true, false, term)

		if m.HasOverflown() {
			m.RecoverFromOverflow(task)
			continue
		}

		return
	}
}
