package compact

import (
	"testing"

	"github.com/orizon-lang/g1core/internal/heap"
	"github.com/orizon-lang/g1core/internal/mark"
)

// threeRegions builds three adjacent 64-word CompactionRegions starting
// at address 0, matching buildTestGridForCompact's GrainWords.
func threeRegions() []CompactionRegion {
	const grain = 64

	var out []CompactionRegion

	for i := heap.RegionID(0); i < 3; i++ {
		bottom := heap.Addr(uint64(i) * grain)
		out = append(out, CompactionRegion{ID: i, Bottom: bottom, Top: bottom + grain, End: bottom + grain})
	}

	return out
}

func TestWorkerStripeStridesByWorkerID(t *testing.T) {
	regions := threeRegions()

	s0 := workerStripe(0, 2, regions)
	s1 := workerStripe(1, 2, regions)

	if len(s0) != 2 || s0[0].ID != 0 || s0[1].ID != 2 {
		t.Fatalf("worker 0 stripe = %+v, want regions 0 and 2", s0)
	}

	if len(s1) != 1 || s1[0].ID != 1 {
		t.Fatalf("worker 1 stripe = %+v, want region 1", s1)
	}
}

func TestAssignForwardsSlidesObjectsDownWithinStripe(t *testing.T) {
	regions := threeRegions()
	io := newFakeHeaderIO(2)
	table := NewForwardTable(io)

	bitmap := mark.NewBitmap(0, 3*64, 0)
	// Two live 2-word objects in region 0: the first already sits at the
	// compaction point and needs no forward; the second has a 30-word
	// dead gap before it and must slide down to directly follow the first.
	bitmap.TrySetBit(0)
	bitmap.TrySetBit(32)

	AssignForwards(0, 1, regions, bitmap, io, table)

	h0, ok := table.Lookup(0)
	if ok {
		t.Fatalf("first live object should stay in place (no forward installed), got %+v", h0)
	}

	h1, ok := table.Lookup(32)
	if !ok {
		t.Fatal("second live object should have a forward installed")
	}

	if h1.DestRegion != 0 || h1.DestOffset != 2 {
		t.Fatalf("second object forward = %+v, want {DestRegion:0 DestOffset:2}", h1)
	}
}

func TestAssignForwardsAdvancesDestinationAcrossRegionsInStripe(t *testing.T) {
	regions := threeRegions()
	io := newFakeHeaderIO(64) // one 64-word object per region: each must land in its own region
	table := NewForwardTable(io)

	bitmap := mark.NewBitmap(0, 3*64, 0)
	bitmap.TrySetBit(0)
	bitmap.TrySetBit(64)
	bitmap.TrySetBit(128)

	AssignForwards(0, 1, regions, bitmap, io, table)

	for _, addr := range []uint64{0, 64, 128} {
		if _, ok := table.Lookup(addr); ok {
			t.Fatalf("object at %d should not move (each region holds exactly one full-region object)", addr)
		}
	}
}

func TestAssignForwardsPanicsWhenStripeCannotHoldAllLiveData(t *testing.T) {
	// A single-region stripe whose End is artificially short of its Top:
	// three 2-word live objects need 6 words of destination space but the
	// region only offers 2, so the destination chain must run out.
	regions := []CompactionRegion{{ID: 0, Bottom: 0, Top: 64, End: 2}}
	io := newFakeHeaderIO(2)
	table := NewForwardTable(io)

	bitmap := mark.NewBitmap(0, 64, 0)
	bitmap.TrySetBit(0)
	bitmap.TrySetBit(2)
	bitmap.TrySetBit(4)

	defer func() {
		if recover() == nil {
			t.Fatal("expected AssignForwards to panic when the stripe is exhausted")
		}
	}()

	AssignForwards(0, 1, regions, bitmap, io, table)
}
