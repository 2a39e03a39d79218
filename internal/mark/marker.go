package mark

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/orizon-lang/g1core/internal/heap"
	"github.com/orizon-lang/g1core/internal/worker"
)

// Phase is the marker's own sub-state, nested under the engine's Idle ->
// ConcMark -> Remark sequence (§4.3).
type Phase uint8

const (
	Idle Phase = iota
	InitialMark
	RootScanDone
	MarkComplete
	MarkOverflow
	RemarkDone
)

// ObjectScanner is the external object-graph collaborator (§6.1):
// oop_iterate for a live object at addr, invoking visit(ref) for every
// outgoing reference slot, and Size for its word count. Array objects are
// sliced by the marker itself via SliceHint.
type ObjectScanner interface {
	Size(addr uint64) uint64
	// Scan invokes visit once per outgoing reference slot in [start,
	// start+length) of the object at addr (length is the full object for
	// non-array objects, after which ok is returned false meaning "no
	// further slices").
	Scan(addr, start, length uint64, visit func(ref uint64)) (remaining uint64, hasMore bool)
}

// arraySliceChunk bounds how many slots a single slice task covers before
// pushing a continuation slice entry (§4.3.4: "scan header + a prefix of
// slots, push a slice entry if more remains").
const arraySliceChunk = 1024

// regionStats is a worker-private closed-hash cache of region-id ->
// partial live-bytes, flushed into the global array at remark (§4.3.1).
type regionStats struct {
	m map[heap.RegionID]uint64
}

func newRegionStats() *regionStats { return &regionStats{m: make(map[heap.RegionID]uint64)} }

func (s *regionStats) add(id heap.RegionID, bytes uint64) { s.m[id] += bytes }

// Task is a per-worker marking context (§4.3.1).
type WorkerTask struct {
	ID          int
	queue       *Queue
	regionLimit uint64
	curRegion   *heap.Region
	stats       *regionStats
	aborted     bool
	timedOut    bool

	wordsScanned uint64
}

// Marker is the parallel SATB marker (§4.3). It owns the shared finger,
// the bitmap, the overflow stack, and the per-worker tasks; the
// concurrent-mark thread and worker pool invocations of do_marking_step
// all operate through this struct.
type Marker struct {
	mu sync.Mutex

	phase atomic.Uint32

	grid    *heap.Grid
	bitmap  *Bitmap
	scanner ObjectScanner
	satb    *SATBQueue

	finger    atomic.Uint64
	heapStart uint64
	heapEnd   uint64

	overflow *OverflowStack
	tasks    []*WorkerTask

	hasOverflown atomic.Bool
	hasAborted   atomic.Bool

	firstBarrier  *worker.BarrierSync
	secondBarrier *worker.BarrierSync

	// clockInterval is how many words scanned between regular_clock_call
	// checks (§4.3.3 step 6).
	clockInterval uint64
}

// Config fixes the marker's shape.
type Config struct {
	Grid             *heap.Grid
	Bitmap           *Bitmap
	Scanner          ObjectScanner
	SATB             *SATBQueue
	MaxWorkers       int
	OverflowMaxChunk int
	ClockIntervalWords uint64
}

func NewMarker(cfg Config) *Marker {
	m := &Marker{
		grid:          cfg.Grid,
		bitmap:        cfg.Bitmap,
		scanner:       cfg.Scanner,
		satb:          cfg.SATB,
		overflow:      NewOverflowStack(cfg.OverflowMaxChunk),
		firstBarrier:  worker.NewBarrierSync(cfg.MaxWorkers),
		secondBarrier: worker.NewBarrierSync(cfg.MaxWorkers),
		clockInterval: cfg.ClockIntervalWords,
	}

	if m.clockInterval == 0 {
		m.clockInterval = 8192
	}

	m.tasks = make([]*WorkerTask, cfg.MaxWorkers)
	for i := range m.tasks {
		m.tasks[i] = &WorkerTask{ID: i, queue: NewQueue(), stats: newRegionStats()}
	}

	m.phase.Store(uint32(Idle))

	return m
}

func (m *Marker) Phase() Phase { return Phase(m.phase.Load()) }

// PreConcurrentStart installs TAMS snapshots for every region (freezing
// the watermark objects above which are implicitly live, §3.2) and
// activates the SATB barrier; corresponds to the Idle ->
// InitialMark transition.
func (m *Marker) PreConcurrentStart() {
	m.grid.Iterate(func(r *heap.Region) { r.SetTAMSFromTop() })

	m.satb.SetActive(true)
	m.finger.Store(m.heapStart)
	m.hasOverflown.Store(false)
	m.hasAborted.Store(false)
	m.phase.Store(uint32(InitialMark))
}

// SetHeapRange fixes the address range the finger sweeps; called once
// at marker construction time from the engine (kept separate from
// NewMarker so tests can build a Marker before the grid is fully sized).
func (m *Marker) SetHeapRange(start, end uint64) {
	m.heapStart, m.heapEnd = start, end
	m.finger.Store(start)
}

// RootScanComplete transitions InitialMark -> RootScanDone once root
// regions have been scanned for old-region references (the "root region
// scan" of §Glossary).
func (m *Marker) RootScanComplete() { m.phase.Store(uint32(RootScanDone)) }

// claimRegion implements §4.3.2: loop reading the finger, computing the
// region it falls in, and CAS-advancing the finger to that region's end.
// Returns nil if there is no more work (finger reached heap end, or the
// claimed region has no mark range below TAMS).
func (m *Marker) claimRegion() *heap.Region {
	for {
		finger := m.finger.Load()
		if finger >= m.heapEnd {
			return nil
		}

		id := m.grid.AddrToRegion(heap.Addr(finger))
		r := m.grid.Region(id)
		end := uint64(r.End())

		if !m.finger.CompareAndSwap(finger, end) {
			continue
		}

		bottom, tams := uint64(r.Bottom()), uint64(r.TAMS())
		if tams > bottom {
			return r
		}
		// Nothing to mark in this region; try again from the new finger.
	}
}

// Grey marks object o live, per §4.3.4. If o is at or above its region's
// TAMS it is implicitly live and nothing is recorded. Otherwise it
// attempts the 0->1 bitmap transition; only the winner of that CAS
// enqueues the object and credits its size to the worker's region-stats
// cache.
func (m *Marker) Grey(task *WorkerTask, addr uint64) {
	id := m.grid.AddrToRegion(heap.Addr(addr))
	r := m.grid.Region(id)

	if addr >= uint64(r.TAMS()) {
		return
	}

	if !m.bitmap.TrySetBit(addr) {
		return
	}

	size := m.scanner.Size(addr)
	task.stats.add(id, size*8)
	task.queue.PushLocal(Task{Kind: TaskObject, Obj: addr})
}

func (m *Marker) greySlice(task *WorkerTask, base, start, length uint64) {
	task.queue.PushLocal(Task{Kind: TaskSlice, Obj: base, Start: start, Length: length})
}

// scanOne processes a single task entry, invoking the object scanner and
// graying every reference it finds not yet marked (§4.3.4: large arrays
// are sliced into further Task entries rather than scanned in one call).
func (m *Marker) scanOne(task *WorkerTask, t Task) {
	switch t.Kind {
	case TaskObject:
		length := m.scanner.Size(t.Obj)
		if length > arraySliceChunk {
			length = arraySliceChunk
		}

		remaining, hasMore := m.scanner.Scan(t.Obj, 0, length, func(ref uint64) {
			m.Grey(task, ref)
		})

		if hasMore {
			m.greySlice(task, t.Obj, length, remaining)
		}
	case TaskSlice:
		length := t.Length
		if length > arraySliceChunk {
			length = arraySliceChunk
		}

		remaining, hasMore := m.scanner.Scan(t.Obj, t.Start, length, func(ref uint64) {
			m.Grey(task, ref)
		})

		if hasMore {
			m.greySlice(task, t.Obj, t.Start+length, remaining)
		}
	}

	task.wordsScanned += arraySliceChunk
}

// DoMarkingStep implements §4.3.3. It returns when the step completes
// naturally, times out, or aborts due to overflow/cancellation; the
// caller (the concurrent-mark thread, or the worker pool during remark)
// re-invokes it in a loop until the task reports done.
func (m *Marker) DoMarkingStep(task *WorkerTask, timeTarget time.Duration, doTermination, isSerial bool, term *worker.Terminator) {
	deadline := timeNow().Add(timeTarget)
	task.aborted = false
	task.timedOut = false

	// Step 1: enter pending SATB buffers.
	m.drainSATB(task, 64)

	// Step 2: drain the local queue into the global overflow stack in
	// chunk-sized pushes, then refill from the overflow stack partially —
	// up to one chunk's worth, leaving whatever else is buffered there
	// for other workers to steal, per §4.3.3 step 2.
	var buf []Task

	task.queue.DrainTo(0, func(t Task) { buf = append(buf, t) })

	for len(buf) > 0 {
		n := chunkSize
		if n > len(buf) {
			n = len(buf)
		}

		if m.overflow.PushChunk(buf[:n]) {
			m.signalOverflow()
			task.aborted = true

			return
		}

		buf = buf[n:]
	}

	if chunk, ok := m.overflow.PopChunk(); ok {
		for _, t := range chunk {
			task.queue.PushLocal(t)
		}
	}

	if m.checkClock(task, deadline) {
		return
	}

	for {
		if task.curRegion != nil {
			if m.sweepRegion(task, deadline) {
				return
			}

			continue
		}

		r := m.claimRegion()
		if r == nil {
			break
		}

		task.curRegion = r
		task.regionLimit = uint64(r.TAMS())
	}

	// Step 4: totally drain local queue, then global stack.
	for {
		t, ok := task.queue.PopLocal()
		if !ok {
			break
		}

		m.scanOne(task, t)

		if m.checkClock(task, deadline) {
			return
		}
	}

	// Step 5: termination.
	if doTermination && !isSerial && term != nil {
		stole := true
		for stole {
			stole = m.tryStealInto(task)
		}

		term.OfferTermination(func() bool {
			return task.queue.Len() > 0
		})
	}
}

// sweepRegion sweeps the bitmap from the worker's local finger to the
// claimed region's TAMS limit, applying Grey/scanOne to every marked
// object found, and gives up the region once the sweep completes
// (§4.3.3 step 3).
func (m *Marker) sweepRegion(task *WorkerTask, deadline time.Time) (aborted bool) {
	r := task.curRegion
	from := uint64(r.Bottom())

	for {
		addr, found := m.bitmap.FindNextMarkedAddr(from, task.regionLimit)
		if !found {
			task.curRegion = nil
			return false
		}

		m.scanOne(task, Task{Kind: TaskObject, Obj: addr})

		size := m.scanner.Size(addr)
		from = addr + size*8

		if m.checkClock(task, deadline) {
			return true
		}
	}
}

// tryStealInto attempts one steal from a pseudo-random victim into
// task's local queue (§4.7).
func (m *Marker) tryStealInto(task *WorkerTask) bool {
	n := len(m.tasks)
	if n <= 1 {
		return false
	}

	start := task.ID
	for i := 1; i < n; i++ {
		victim := m.tasks[(start+i)%n]
		if victim == task {
			continue
		}

		if t, ok := task.queue.StealFrom(victim.queue); ok {
			task.queue.PushLocal(t)
			return true
		}
	}

	return false
}

func (m *Marker) drainSATB(task *WorkerTask, max int) {
	for _, buf := range m.satb.DrainBatch(max) {
		for _, ref := range buf {
			// §4.3.5: a SATB entry is graded and enqueued unconditionally,
			// without requiring it still be reachable.
			m.Grey(task, ref)
		}
	}
}

// checkClock implements the regular clock call (§4.3.3 step 6): every
// clockInterval words scanned, check overflow/abort/timeout/SATB
// backlog, aborting the step if any fire.
func (m *Marker) checkClock(task *WorkerTask, deadline time.Time) bool {
	if task.wordsScanned < m.clockInterval {
		return false
	}

	task.wordsScanned = 0

	if m.hasOverflown.Load() || m.hasAborted.Load() {
		task.aborted = true
		return true
	}

	if timeNow().After(deadline) {
		task.timedOut = true
		task.aborted = true

		return true
	}

	if m.satb.PendingCount() > 16 {
		m.drainSATB(task, 16)
	}

	return false
}

// signalOverflow marks the shared state overflown; the caller (the
// worker that hit the stack cap) then enters the two-phase barrier
// handshake via RecoverFromOverflow (§4.3.6).
func (m *Marker) signalOverflow() {
	m.hasOverflown.Store(true)
	m.phase.Store(uint32(MarkOverflow))
}

// RecoverFromOverflow runs the two-phase overflow barrier for one
// worker: every worker must call this once after observing
// hasOverflown. Worker 0 performs the reset between the two barrier
// waits (§4.3.6).
func (m *Marker) RecoverFromOverflow(task *WorkerTask) {
	m.firstBarrier.Enter()

	if task.ID == 0 {
		task.queue = NewQueue()
		m.overflow.Reset()
		m.finger.Store(m.heapStart)
		m.hasOverflown.Store(false)

		for _, t := range m.tasks {
			t.curRegion = nil
			t.aborted = false
			t.timedOut = false
		}
	}

	m.secondBarrier.Enter()

	m.phase.Store(uint32(RootScanDone))
}

// HasOverflown reports the shared overflow flag.
func (m *Marker) HasOverflown() bool { return m.hasOverflown.Load() }

// Abort implements concurrent_cycle_abort (§5 Cancellation): sets
// has_aborted, releases both overflow barriers so waiting workers exit,
// and deactivates the SATB buffer.
func (m *Marker) Abort() {
	m.hasAborted.Store(true)
	m.firstBarrier.Abort()
	m.secondBarrier.Abort()
	m.satb.SetActive(false)
	m.phase.Store(uint32(Idle))
}

// Task returns the per-worker context for workerID, for callers
// dispatching through worker.Pool.
func (m *Marker) Task(workerID int) *WorkerTask { return m.tasks[workerID] }

// Bitmap returns the marker's single shared mark bitmap. Unlike tasks,
// which are per-worker, the bitmap itself has no per-worker split — every
// bit belongs to exactly one address regardless of which worker marked
// it, so callers outside this package (full compaction's later phases,
// in particular) that need to re-walk live objects read this same bitmap
// from every worker.
func (m *Marker) Bitmap() *Bitmap { return m.bitmap }

// FlushStatsInto copies every worker's cached live-bytes contributions
// into the grid's authoritative per-region live-bytes counters (§4.3.7
// step 6-7).
func (m *Marker) FlushStatsInto(fn func(id heap.RegionID, liveBytes uint64)) {
	totals := make(map[heap.RegionID]uint64)

	for _, t := range m.tasks {
		for id, b := range t.stats.m {
			totals[id] += b
		}

		t.stats = newRegionStats()
	}

	for id, b := range totals {
		fn(id, b)
	}
}

var timeNow = time.Now
