package worker

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Terminator coordinates work-stealing quiescence detection across a
// fixed set of workers (§4.7): a worker that has drained its own queue
// offers termination; it keeps re-checking should_exit_termination while
// peers may still publish work, and the terminator declares quiescence
// only once every worker has offered simultaneously.
type Terminator struct {
	mu       sync.Mutex
	expected int
	offering int
	exited   bool

	// ShouldAbort, when non-nil, is consulted by OfferTermination;
	// returning true (marking aborted, overflow, …) ends the
	// termination protocol early with a false ("not quiesced") result.
	ShouldAbort func() bool
}

// NewTerminator creates a terminator for expected workers.
func NewTerminator(expected int) *Terminator {
	return &Terminator{expected: expected}
}

// Reset sets the expected worker count at the start of a new phase
// (§4.7: "resets its expected-worker count at the start of each phase").
func (t *Terminator) Reset(expected int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.expected = expected
	t.offering = 0
	t.exited = false
}

// OfferTermination is called by a worker whose local queue just went
// empty. hasLocalWork is re-evaluated by the caller each spin (it
// reflects whether a steal attempt since the last offer produced new
// work); OfferTermination loops internally, spinning/yielding, until
// either every worker is simultaneously offering (quiescence, returns
// true) or ShouldAbort fires (returns false).
func (t *Terminator) OfferTermination(hasLocalWork func() bool) bool {
	t.mu.Lock()
	t.offering++
	allOffering := t.offering >= t.expected
	t.mu.Unlock()

	for {
		if t.ShouldAbort != nil && t.ShouldAbort() {
			t.withdraw()
			return false
		}

		t.mu.Lock()
		allOffering = t.offering >= t.expected
		exited := t.exited
		t.mu.Unlock()

		if exited {
			return true
		}

		if allOffering {
			t.mu.Lock()
			t.exited = true
			t.mu.Unlock()

			return true
		}

		if hasLocalWork != nil && hasLocalWork() {
			t.withdraw()
			return false
		}

		runtime.Gosched()
	}
}

func (t *Terminator) withdraw() {
	t.mu.Lock()
	if t.offering > 0 {
		t.offering--
	}
	t.mu.Unlock()
}

// BarrierSync is a simple all-workers-must-arrive barrier, used for the
// two-phase overflow-recovery handshake (§4.3.6) where the teacher's
// conceptual model is WorkerThreadsBarrierSync (grounded on
// original_source's gc/shared/workerUtils.hpp).
type BarrierSync struct {
	mu        sync.Mutex
	cond      *sync.Cond
	nWorkers  int
	completed int
	aborted   atomic.Bool
}

// NewBarrierSync creates a barrier for nWorkers participants.
func NewBarrierSync(nWorkers int) *BarrierSync {
	b := &BarrierSync{nWorkers: nWorkers}
	b.cond = sync.NewCond(&b.mu)

	return b
}

// SetWorkers resets the participant count before first use in a phase.
func (b *BarrierSync) SetWorkers(n int) {
	b.mu.Lock()
	b.nWorkers = n
	b.completed = 0
	b.aborted.Store(false)
	b.mu.Unlock()
}

// Enter blocks until every participant has entered, or the barrier is
// aborted. Returns false if aborted.
func (b *BarrierSync) Enter() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.completed++
	if b.completed >= b.nWorkers {
		b.cond.Broadcast()
		return !b.aborted.Load()
	}

	for b.completed < b.nWorkers && !b.aborted.Load() {
		b.cond.Wait()
	}

	return !b.aborted.Load()
}

// Abort releases every waiting participant immediately (used by
// concurrent_cycle_abort, §5 Cancellation).
func (b *BarrierSync) Abort() {
	b.mu.Lock()
	b.aborted.Store(true)
	b.cond.Broadcast()
	b.mu.Unlock()
}
