package gc

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/orizon-lang/g1core/internal/compact"
	"github.com/orizon-lang/g1core/internal/cset"
	"github.com/orizon-lang/g1core/internal/evac"
	"github.com/orizon-lang/g1core/internal/gcevent"
	"github.com/orizon-lang/g1core/internal/heap"
	"github.com/orizon-lang/g1core/internal/mark"
	"github.com/orizon-lang/g1core/internal/worker"
)

// Phase is the outer collector state machine's phase (§2): Idle between
// pauses, YoungPause/MixedPause during a stop-the-world evacuation,
// ConcMark/Remark/Cleanup across one concurrent-marking cycle, and
// FullGC for the compacting backstop. This is distinct from
// mark.Phase, which only tracks the marker's own sub-state within
// ConcMark/Remark.
type Phase uint8

const (
	Idle Phase = iota
	YoungPause
	ConcMark
	Remark
	Cleanup
	MixedPause
	FullGC
)

func (p Phase) String() string {
	switch p {
	case YoungPause:
		return "young-pause"
	case ConcMark:
		return "conc-mark"
	case Remark:
		return "remark"
	case Cleanup:
		return "cleanup"
	case MixedPause:
		return "mixed-pause"
	case FullGC:
		return "full-gc"
	default:
		return "idle"
	}
}

// Config wires every external collaborator the engine needs to run a
// complete cycle. Object-model contracts (ObjectHeader, ReferenceTask
// factories) are supplied by the embedding runtime; the phase packages
// underneath (mark, evac, compact) only see the narrower slice of this
// contract each one actually touches (§6.1).
type Config struct {
	Grid   *heap.Grid
	Pool   *worker.Pool
	Marker *mark.Marker

	Chooser cset.ChooserConfig
	Pacing  *cset.PacingPredictor

	EvacPause     *evac.Pause
	CompactEngine *compact.Engine

	RefProcessor ReferenceProcessor
	Weak         WeakProcessor

	Events *gcevent.Bus

	// MarkStepTarget bounds one DoMarkingStep call's time budget (§4.3.3).
	MarkStepTarget time.Duration

	KeepPinnedCount uint32
}

// Engine is the outer collector: it owns the current phase and
// sequences the phase packages against one shared Config. Grounded on
// the teacher's gcavoidance.Engine and ActorSystem shape — a small
// mutex-guarded coordinator wrapping atomics for the hot-path fields
// (here, phase) rather than a channel-driven actor loop, since every
// call here already runs inside an explicit pause or a single
// concurrent-mark goroutine, not a mailbox of arbitrary messages.
type Engine struct {
	mu  sync.Mutex
	cfg Config

	phase atomic.Uint32

	candidates *cset.Candidates

	cycles atomic.Uint64
}

func NewEngine(cfg Config) *Engine {
	if cfg.MarkStepTarget <= 0 {
		cfg.MarkStepTarget = 10 * time.Millisecond
	}

	e := &Engine{cfg: cfg, candidates: cset.NewCandidates()}
	e.phase.Store(uint32(Idle))

	return e
}

func (e *Engine) Phase() Phase { return Phase(e.phase.Load()) }

func (e *Engine) setPhase(p Phase) {
	e.phase.Store(uint32(p))
	e.cfg.Events.Emit(gcevent.Info, "gc.phase", 0, gcevent.F("phase", p.String()))
}

// RunYoungPause executes one fully-young evacuation pause over eden and
// survivor regions (§4.1, §4.5). No old regions are ever included in a
// young pause's initial set. Every region that fully evacuated is freed
// back to the grid afterward (destination regions the evacuator
// allocated along the way already carry the right Survivor/Old kind, so
// they need no extra bookkeeping here); a region that held a
// self-forwarded object instead survives as Old and joins the retained
// candidate list (§4.5 step 7).
func (e *Engine) RunYoungPause(ctx context.Context, eden, survivor []heap.RegionID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.setPhase(YoungPause)
	defer e.setPhase(Idle)

	start := time.Now()

	cs := cset.NewCollectionSet(eden, survivor)

	retained, err := e.cfg.EvacPause.Run(ctx, cs)
	if err != nil {
		return WrapPhase(YoungPause, err)
	}

	retainedSet := regionSet(retained)
	e.freeFullyEvacuated(cs, retainedSet)
	e.addFreshlyRetained(retained)

	if e.cfg.Pacing != nil {
		e.cfg.Pacing.Observe(e.copiedBytesEstimate(cs), time.Since(start).Nanoseconds())
	}

	return nil
}

// regionSet builds a membership set from a region-ID slice for O(1)
// lookups during post-pause reclamation.
func regionSet(ids []heap.RegionID) map[heap.RegionID]bool {
	m := make(map[heap.RegionID]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}

	return m
}

// freeFullyEvacuated returns every region of cs not present in
// retainedSet to the grid's Free set: these evacuated cleanly, so
// nothing in them survives the pause (§4.5 step 7).
func (e *Engine) freeFullyEvacuated(cs *cset.CollectionSet, retainedSet map[heap.RegionID]bool) {
	for _, id := range cs.All() {
		if retainedSet[id] {
			continue
		}

		e.cfg.Grid.FreeRegion(id)
	}
}

// addFreshlyRetained folds every region in retained that isn't already
// tracked as a retained candidate into the retained list (§4.4).
func (e *Engine) addFreshlyRetained(retained []heap.RegionID) {
	for _, id := range retained {
		if e.candidates.ClassOf(id) == cset.Retained {
			continue
		}

		e.candidates.AddRetained(id, 0)
	}
}

// StartConcurrentMark begins a marking cycle (§3.2, §4.3): snapshots
// TAMS, arms the SATB barrier, and drives every worker's DoMarkingStep
// loop to completion. Root-region scanning is the caller's
// responsibility before this is invoked (it happens during the
// initial-mark pause, outside this engine's pause machinery, since it
// piggybacks on a young pause in the reference design this is
// grounded on).
func (e *Engine) StartConcurrentMark(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.setPhase(ConcMark)

	e.cfg.Marker.PreConcurrentStart()
	e.cfg.Marker.RootScanComplete()

	numWorkers := e.cfg.Pool.ActiveWorkers()
	term := worker.NewTerminator(numWorkers)

	err := e.cfg.Pool.RunTask(ctx, func(workerID int) {
		task := e.cfg.Marker.Task(workerID)

		for {
			e.cfg.Marker.DoMarkingStep(task, e.cfg.MarkStepTarget, true, false, term)

			if e.cfg.Marker.HasOverflown() {
				e.cfg.Marker.RecoverFromOverflow(task)
				continue
			}

			return
		}
	})
	if err != nil {
		return WrapPhase(ConcMark, err)
	}

	return nil
}

// Remark executes the §4.3.7 remark pause: drain whatever SATB entries
// accumulated since the last concurrent step, mark to a fixed point
// under a stop-the-world pause, process references and weak storage,
// flush per-worker live-byte statistics into the grid, reclaim any
// region that turned out fully empty, and finally build the next
// marking candidate list.
func (e *Engine) Remark(ctx context.Context, refTask ReferenceTask, isAlive func(addr uint64) bool) (ReferenceStats, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.setPhase(Remark)

	numWorkers := e.cfg.Pool.ActiveWorkers()
	term := worker.NewTerminator(numWorkers)

	// Step 1-4: drain SATB and mark to a fixed point, serially-flavored
	// (isSerial=false still uses the pool, but every worker's step target
	// is generous since this runs inside a STW pause with no mutator
	// concurrency to race against).
	err := e.cfg.Pool.RunTask(ctx, func(workerID int) {
		task := e.cfg.Marker.Task(workerID)
		e.cfg.Marker.DoMarkingStep(task, e.cfg.MarkStepTarget, true, false, term)
	})
	if err != nil {
		return ReferenceStats{}, WrapPhase(Remark, err)
	}

	// Step 5: reference processing.
	var stats ReferenceStats
	if e.cfg.RefProcessor != nil && refTask != nil {
		stats = e.cfg.RefProcessor.ProcessDiscoveredReferences(refTask, noopPhaseTimes{})
	}

	// Step 6: weak-storage processing.
	if e.cfg.Weak != nil && isAlive != nil {
		if err := e.cfg.Weak.Process(ctx, e.cfg.Pool, isAlive); err != nil {
			return stats, WrapPhase(Remark, err)
		}
	}

	// Step 7: flush live-byte stats and reclaim fully-empty regions.
	var emptied []heap.RegionID

	e.cfg.Marker.FlushStatsInto(func(id heap.RegionID, liveBytes uint64) {
		r := e.cfg.Grid.Region(id)
		r.SetLiveBytes(liveBytes)

		if liveBytes == 0 && r.Kind() == heap.Old {
			emptied = append(emptied, id)
		}
	})

	for _, id := range emptied {
		e.cfg.Grid.FreeRegion(id)
	}

	// Step 8: build the next marking candidate list.
	list := cset.BuildMarkingList(ctx, e.cfg.Grid, e.cfg.Pool, e.candidates, e.cfg.Chooser)
	e.candidates.SetMarking(list)

	e.setPhase(Cleanup)
	e.setPhase(Idle)

	return stats, nil
}

// RunMixedPause runs one mixed evacuation pause: eden/survivor plus as
// many old regions pulled off the front of the marking candidate list
// as maxOldRegions allows (§4.4, §4.5). As with RunYoungPause, every
// cset region that fully evacuated is freed back to the grid afterward;
// a previously-retained region that self-forwards again has its
// unreclaimed count bumped (and is dropped from the retained list
// entirely once KeepPinnedCount is reached, per §4.4), while a region
// self-forwarding for the first time joins the retained list.
func (e *Engine) RunMixedPause(ctx context.Context, eden, survivor []heap.RegionID, maxOldRegions int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.setPhase(MixedPause)
	defer e.setPhase(Idle)

	cs := cset.NewCollectionSet(eden, survivor)

	marking := e.candidates.Marking()
	for i := 0; i < len(marking) && i < maxOldRegions; i++ {
		cs.AddInitialOld(marking[i].Region)
		e.candidates.RemoveMarking(marking[i].Region)
	}

	priorRetained := e.candidates.Retained()
	for _, c := range priorRetained {
		cs.AddInitialOld(c.Region)
	}

	start := time.Now()

	newlyRetained, err := e.cfg.EvacPause.Run(ctx, cs)
	if err != nil {
		return WrapPhase(MixedPause, err)
	}

	newlyRetainedSet := regionSet(newlyRetained)

	// givenUp holds regions that just hit KeepPinnedCount: they stay Old
	// forever but stop being specially retried, so they must not be
	// re-added to the retained list below.
	givenUp := make(map[heap.RegionID]bool)

	for _, c := range priorRetained {
		if newlyRetainedSet[c.Region] {
			if e.candidates.NoteUnreclaimed(c.Region, e.cfg.KeepPinnedCount) {
				givenUp[c.Region] = true
			}

			continue
		}

		e.candidates.RemoveRetained(c.Region)
	}

	e.freeFullyEvacuated(cs, newlyRetainedSet)

	for _, id := range newlyRetained {
		if givenUp[id] {
			continue
		}

		if e.candidates.ClassOf(id) == cset.Retained {
			continue
		}

		e.candidates.AddRetained(id, 0)
	}

	if e.cfg.Pacing != nil {
		e.cfg.Pacing.Observe(e.copiedBytesEstimate(cs), time.Since(start).Nanoseconds())
	}

	return nil
}

// RunFullGC drives the parallel-compaction backstop (§4.6): every
// surviving region's new top is already written by compact.Engine.Run
// directly into the grid, so this only needs to fold the outcome back
// into region bookkeeping — regions that ended up entirely empty return
// to the free set, and every surviving region becomes Old (a full GC
// collapses the young/old distinction, since nothing young survives a
// whole-heap compaction uncounted).
func (e *Engine) RunFullGC(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.setPhase(FullGC)
	defer e.setPhase(Idle)

	regions, _, err := e.cfg.CompactEngine.Run(ctx)
	if err != nil {
		return WrapPhase(FullGC, err)
	}

	for _, cr := range regions {
		r := e.cfg.Grid.Region(cr.ID)

		// FullMark pushed TAMS to End() so nothing was implicitly live
		// during the retrace (§4.6.1); pull it back down to the
		// compacted top now that the cycle is over, or CheckInvariant
		// below would see a stale TAMS above the new, smaller top.
		r.SetTAMS(r.Top())

		if !r.CheckInvariant() {
			return WrapPhase(FullGC, fmt.Errorf("%w: region %d", ErrInvariantViolation, cr.ID))
		}

		if r.Top() == r.Bottom() {
			e.cfg.Grid.FreeRegion(cr.ID)
			continue
		}

		r.SetKind(heap.Old)
		r.SetContainingSet(heap.SetOld)
		r.SetRemSetState(heap.Complete)
	}

	e.candidates = cset.NewCandidates()
	e.cycles.Add(1)

	return nil
}

// Cycles reports how many full-GC cycles this engine has completed, for
// diagnostics.
func (e *Engine) Cycles() uint64 { return e.cycles.Load() }

// copiedBytesEstimate approximates one pause's copied bytes from the
// grains of every region in cs, feeding the pacing predictor a rough
// cost signal (§C supplement); Pause.Run reports the regions it touched
// and an error, not exact copied byte counts.
func (e *Engine) copiedBytesEstimate(cs *cset.CollectionSet) uint64 {
	grain := e.cfg.Grid.GrainWords() * 8

	return uint64(cs.Len()) * grain
}

// noopPhaseTimes discards sub-phase timing, used when the caller has no
// gcevent sink wired for reference-processing timing detail.
type noopPhaseTimes struct{}

func (noopPhaseTimes) RecordSubPhase(name string, nanos int64) {}
