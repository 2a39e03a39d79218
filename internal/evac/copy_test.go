package evac

import (
	"testing"

	"github.com/orizon-lang/g1core/internal/heap"
)

// fakeMover is a trivial object model: every object is 1 word, with a
// fixed reference list looked up by address; CopyTo carries the source's
// reference list over to the destination address.
type fakeMover struct {
	refs map[uint64][]uint64
}

func (f *fakeMover) Size(addr uint64) uint64 { return 1 }

func (f *fakeMover) CopyTo(src, dst, words uint64) {
	if rs, ok := f.refs[src]; ok {
		f.refs[dst] = append([]uint64(nil), rs...)
	}
}

func (f *fakeMover) ForEachRef(addr uint64, update func(ref uint64) uint64) {
	rs := f.refs[addr]
	for i, r := range rs {
		rs[i] = update(r)
	}
}

func buildTestGridForEvac(t *testing.T, maxRegions uint32) *heap.Grid {
	t.Helper()

	cfg := heap.Config{GrainWords: 64, MaxRegions: maxRegions, WordSizeBits: 3}
	backing := heap.NewSliceStorage(uint64(maxRegions) * cfg.GrainWords * 8)

	g, err := heap.NewGrid(cfg, backing)
	if err != nil {
		t.Fatalf("NewGrid: %v", err)
	}

	return g
}

func TestCopyAndPushEvacuatesAndForwards(t *testing.T) {
	g := buildTestGridForEvac(t, 3)

	mover := &fakeMover{refs: map[uint64][]uint64{0: {8}}}
	forward := NewForwardingTable()
	alloc := NewAllocator(g, 1)

	inCSet := func(addr uint64) bool { return addr == 0 }

	ev := &Evacuator{
		Mover:   mover,
		Forward: forward,
		Alloc:   alloc,
		InCSet:  inCSet,
	}

	to := ev.CopyAndPush(0, 0)
	if to == 0 {
		t.Fatal("expected object to be evacuated to a new address")
	}

	fwd, ok := forward.Lookup(0)
	if !ok || fwd != to {
		t.Fatalf("expected forwarding table to record %d, got (%d, %v)", to, fwd, ok)
	}
}

func TestCopyAndPushSkipsObjectsOutsideCSet(t *testing.T) {
	g := buildTestGridForEvac(t, 3)

	mover := &fakeMover{refs: map[uint64][]uint64{}}
	forward := NewForwardingTable()
	alloc := NewAllocator(g, 1)

	ev := &Evacuator{
		Mover:   mover,
		Forward: forward,
		Alloc:   alloc,
		InCSet:  func(addr uint64) bool { return false },
	}

	to := ev.CopyAndPush(0, 42)
	if to != 42 {
		t.Fatalf("expected unchanged address for non-cset object, got %d", to)
	}

	if _, ok := forward.Lookup(42); ok {
		t.Fatal("expected no forwarding entry for a skipped object")
	}
}

func TestCopyAndPushReturnsWinnerOnRace(t *testing.T) {
	g := buildTestGridForEvac(t, 3)

	mover := &fakeMover{refs: map[uint64][]uint64{}}
	forward := NewForwardingTable()
	alloc := NewAllocator(g, 1)

	ev := &Evacuator{
		Mover:   mover,
		Forward: forward,
		Alloc:   alloc,
		InCSet:  func(addr uint64) bool { return true },
	}

	// Pre-install a winning forward, simulating another worker having
	// already evacuated this object.
	forward.Install(0, 999)

	to := ev.CopyAndPush(0, 0)
	if to != 999 {
		t.Fatalf("expected to observe the already-installed forward 999, got %d", to)
	}
}

func TestUpdateRefsOfRewritesSlotsThroughCopyAndPush(t *testing.T) {
	g := buildTestGridForEvac(t, 3)

	mover := &fakeMover{refs: map[uint64][]uint64{0: {8}}}
	forward := NewForwardingTable()
	alloc := NewAllocator(g, 1)

	forward.Install(8, 1000) // ref 8 already evacuated to 1000

	ev := &Evacuator{
		Mover:   mover,
		Forward: forward,
		Alloc:   alloc,
		InCSet:  func(addr uint64) bool { return true },
	}

	ev.UpdateRefsOf(0, 0)

	if mover.refs[0][0] != 1000 {
		t.Fatalf("expected slot rewritten to 1000, got %d", mover.refs[0][0])
	}
}
