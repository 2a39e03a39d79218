// Package heap implements the region-grid heap model: a fixed array of
// equal-sized regions, their typed lifecycle, and the free/old/humongous
// set accounting that the collector partitions the address space with.
package heap

import (
	"sync"
	"sync/atomic"
)

// RegionID identifies a region by its index in the grid.
type RegionID uint32

// NoRegion is the sentinel for "no region" (used in intrusive list links).
const NoRegion RegionID = ^RegionID(0)

// Kind is the type a region currently holds.
type Kind uint8

const (
	Free Kind = iota
	Eden
	Survivor
	Old
	StartsHumongous
	ContinuesHumongous
	Archive
)

func (k Kind) String() string {
	switch k {
	case Free:
		return "free"
	case Eden:
		return "eden"
	case Survivor:
		return "survivor"
	case Old:
		return "old"
	case StartsHumongous:
		return "starts-humongous"
	case ContinuesHumongous:
		return "continues-humongous"
	case Archive:
		return "archive"
	default:
		return "unknown"
	}
}

// RemSetState tracks whether a region's remembered set is being maintained.
type RemSetState uint8

const (
	Untracked RemSetState = iota
	Updating
	Complete
)

// ContainingSet records which top-level set currently owns a region.
type ContainingSet uint8

const (
	SetNone ContainingSet = iota
	SetFree
	SetOld
	SetHumongous
)

// Region is one fixed-size slice of the heap grid. Addr fields are word
// offsets from the heap base, not raw pointers — g1core never hands out
// unsafe.Pointer to mutator code, only offsets, since the object layer
// itself is an external collaborator (§6.1).
type Region struct {
	mu sync.Mutex

	id RegionID

	kind atomic.Uint32 // Kind, accessed with acquire/release per §5

	bottom Addr
	end    Addr
	top    atomic.Uint64 // Addr, current allocation watermark

	tams      atomic.Uint64 // Addr, frozen at concurrent-mark start
	liveBytes atomic.Uint64

	pinned atomic.Int32

	remSetState atomic.Uint32
	containing  atomic.Uint32

	humongousStart RegionID // for ContinuesHumongous, index of the StartsHumongous

	// intrusive list links, by index; NoRegion means "not linked"
	prev RegionID
	next RegionID
}

// Addr is a word offset from the heap base.
type Addr uint64

func newRegion(id RegionID, bottom, end Addr) *Region {
	r := &Region{id: id, bottom: bottom, end: end, prev: NoRegion, next: NoRegion}
	r.kind.Store(uint32(Free))
	r.top.Store(uint64(bottom))
	r.tams.Store(uint64(bottom))
	r.remSetState.Store(uint32(Untracked))
	r.containing.Store(uint32(SetNone))

	return r
}

func (r *Region) ID() RegionID { return r.id }
func (r *Region) Bottom() Addr { return r.bottom }
func (r *Region) End() Addr    { return r.end }
func (r *Region) Top() Addr    { return Addr(r.top.Load()) }
func (r *Region) TAMS() Addr   { return Addr(r.tams.Load()) }

func (r *Region) SetTop(a Addr) { r.top.Store(uint64(a)) }

// TryBumpAllocate claims words words of space by CAS-advancing top,
// returning the allocated base address. Evacuation uses this to lay
// copied objects out contiguously without an external lock (§4.5); it
// fails once the request would cross end, the caller's cue to retry in
// a different (or freshly allocated) destination region.
func (r *Region) TryBumpAllocate(words uint64) (Addr, bool) {
	for {
		cur := r.top.Load()
		next := cur + words

		if Addr(next) > r.end {
			return 0, false
		}

		if r.top.CompareAndSwap(cur, next) {
			return Addr(cur), true
		}
	}
}

// SetTAMSFromTop freezes TAMS at the region's current top, as done at
// concurrent-mark initial-mark (§3.2).
func (r *Region) SetTAMSFromTop() { r.tams.Store(r.top.Load()) }

// SetTAMS sets TAMS to an arbitrary address. Full compaction's mark phase
// uses this to push TAMS to End() for every region (§4.6): nothing should
// be treated as implicitly live, since the whole heap is retraced from
// scratch with no prior snapshot to trust.
func (r *Region) SetTAMS(a Addr) { r.tams.Store(uint64(a)) }

func (r *Region) Kind() Kind { return Kind(r.kind.Load()) }

// SetKind performs the type transition with release semantics so that any
// worker observing the new kind via an acquire load also observes every
// write that happened before the transition (§5 ordering guarantees).
func (r *Region) SetKind(k Kind) { r.kind.Store(uint32(k)) }

func (r *Region) LiveBytes() uint64        { return r.liveBytes.Load() }
func (r *Region) SetLiveBytes(b uint64)    { r.liveBytes.Store(b) }
func (r *Region) AddLiveBytes(b uint64)    { r.liveBytes.Add(b) }

func (r *Region) PinnedCount() int32 { return r.pinned.Load() }
func (r *Region) Pin()               { r.pinned.Add(1) }
func (r *Region) Unpin()             { r.pinned.Add(-1) }

func (r *Region) RemSetState() RemSetState     { return RemSetState(r.remSetState.Load()) }
func (r *Region) SetRemSetState(s RemSetState) { r.remSetState.Store(uint32(s)) }

func (r *Region) ContainingSet() ContainingSet     { return ContainingSet(r.containing.Load()) }
func (r *Region) SetContainingSet(s ContainingSet) { r.containing.Store(uint32(s)) }

// Evacuable reports whether this region may be picked for the collection
// set outside a full compaction (§3.2 invariant).
func (r *Region) Evacuable() bool {
	if r.Kind() == Old || r.Kind() == StartsHumongous || r.Kind() == ContinuesHumongous {
		if r.RemSetState() == Untracked {
			return false
		}
	}

	return r.PinnedCount() == 0
}

// IsEmpty reports whether the region currently holds no live allocation
// watermark above its bottom.
func (r *Region) IsEmpty() bool { return r.Top() == r.bottom }

// checkInvariant validates bottom <= TAMS <= top <= end; used by debug
// assertions and property tests (§8, InvariantViolation in §7).
func (r *Region) checkInvariant() bool {
	t, top, end := r.TAMS(), r.Top(), r.end
	return r.bottom <= t && t <= top && top <= end
}

// CheckInvariant is checkInvariant exported for callers outside this
// package (internal/gc's fatal invariant-violation path, §7) that need to
// assert region well-formedness between phases without reimplementing
// the bottom <= TAMS <= top <= end check.
func (r *Region) CheckInvariant() bool { return r.checkInvariant() }
