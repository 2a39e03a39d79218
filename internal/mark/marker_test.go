package mark

import (
	"testing"
	"time"

	"github.com/orizon-lang/g1core/internal/heap"
)

// fakeScanner is a tiny object graph: each object is 1 word (8 bytes) and
// has a fixed reference list looked up by address.
type fakeScanner struct {
	refs map[uint64][]uint64
}

func (f *fakeScanner) Size(addr uint64) uint64 { return 1 }

func (f *fakeScanner) Scan(addr, start, length uint64, visit func(ref uint64)) (uint64, bool) {
	rs := f.refs[addr]
	for i, r := range rs {
		if uint64(i) < start {
			continue
		}

		if uint64(i) >= start+length {
			break
		}

		visit(r)
	}

	return 0, false
}

func buildTestMarker(t *testing.T) (*Marker, *heap.Grid) {
	t.Helper()

	cfg := heap.Config{GrainWords: 64, MaxRegions: 2, WordSizeBits: 3}
	backing := heap.NewSliceStorage(uint64(cfg.MaxRegions) * cfg.GrainWords * 8)

	g, err := heap.NewGrid(cfg, backing)
	if err != nil {
		t.Fatalf("NewGrid: %v", err)
	}

	id, err := g.AllocateRegion(heap.Old)
	if err != nil {
		t.Fatalf("AllocateRegion: %v", err)
	}

	r := g.Region(id)
	r.SetTop(r.Bottom() + 24) // live objects at 0, 8 and 16 all lie below TAMS
	r.SetTAMSFromTop()

	totalWords := uint64(cfg.MaxRegions) * cfg.GrainWords
	bitmap := NewBitmap(0, totalWords, 3)

	scanner := &fakeScanner{refs: map[uint64][]uint64{
		0: {8},
		8: {16},
	}}

	satb := NewSATBQueue()

	m := NewMarker(Config{
		Grid:               g,
		Bitmap:             bitmap,
		Scanner:            scanner,
		SATB:               satb,
		MaxWorkers:         1,
		OverflowMaxChunk:   4,
		ClockIntervalWords: 1 << 30, // effectively disable the clock for this test
	})
	m.SetHeapRange(0, totalWords)

	return m, g
}

func TestMarkerTracesReachableGraphFromRoot(t *testing.T) {
	m, _ := buildTestMarker(t)

	task := m.Task(0)
	m.Grey(task, 0) // root reference to object at word 0

	m.DoMarkingStep(task, time.Second, false, true, nil)

	for _, addr := range []uint64{0, 8, 16} {
		if !m.bitmap.IsMarked(addr) {
			t.Fatalf("expected %d marked", addr)
		}
	}

	if task.queue.Len() != 0 {
		t.Fatalf("expected local queue drained, got len %d", task.queue.Len())
	}
}

func TestMarkerImplicitlyLiveAboveTAMS(t *testing.T) {
	m, g := buildTestMarker(t)

	r := g.Region(0)
	// Bump top (new allocation) without moving TAMS, simulating an
	// object created after initial-mark (§3.2: implicitly live above TAMS).
	r.SetTop(r.Top() + 1)

	task := m.Task(0)
	m.Grey(task, uint64(r.TAMS())) // at TAMS, not below it

	if m.bitmap.IsMarked(uint64(r.TAMS())) {
		t.Fatal("object at/above TAMS must not be bitmap-marked")
	}

	if task.queue.Len() != 0 {
		t.Fatal("object at/above TAMS must not be enqueued")
	}
}

func TestClaimRegionAdvancesFingerAndSkipsEmptyRegions(t *testing.T) {
	m, g := buildTestMarker(t)

	// Second region has no allocation (TAMS == bottom), so claimRegion
	// must skip it and eventually return nil once the finger passes it.
	second := g.Region(1)
	if second.TAMS() != second.Bottom() {
		t.Fatalf("expected untouched second region, tams=%v bottom=%v", second.TAMS(), second.Bottom())
	}

	r := m.claimRegion()
	if r == nil || r.ID() != 0 {
		t.Fatalf("expected to claim region 0 first, got %v", r)
	}

	r2 := m.claimRegion()
	if r2 != nil {
		t.Fatalf("expected no further claimable region, got %v", r2)
	}
}
