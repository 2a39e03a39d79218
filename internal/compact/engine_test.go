package compact

import (
	"context"
	"testing"

	"github.com/orizon-lang/g1core/internal/heap"
	"github.com/orizon-lang/g1core/internal/mark"
	"github.com/orizon-lang/g1core/internal/worker"
)

func TestEngineRunCompactsAndRewritesReferences(t *testing.T) {
	g := buildTestGridForCompact(t, 2)

	oldID, err := g.AllocateRegion(heap.Old)
	if err != nil {
		t.Fatalf("AllocateRegion: %v", err)
	}

	r := g.Region(oldID)
	bottom := uint64(r.Bottom())

	// Two live 1-word objects with a dead gap between them: a root at
	// bottom, and an object at bottom+32 reachable only from the root,
	// which must slide down to directly follow it.
	r.SetTop(heap.Addr(bottom + 40))
	r.SetTAMSFromTop()

	io := newFakeHeaderIO(1)
	scanner := &fakeFullMarkScanner{refs: map[uint64][]uint64{bottom: {bottom + 32}}}
	rewriter := &fakeRewriter{refs: map[uint64][]uint64{bottom: {bottom + 32}}}
	mover := &fakeCompactMover{}

	totalWords := uint64(2) * 64
	bitmap := mark.NewBitmap(0, totalWords, 0)
	satb := mark.NewSATBQueue()

	m := mark.NewMarker(mark.Config{
		Grid:               g,
		Bitmap:             bitmap,
		Scanner:            scanner,
		SATB:               satb,
		MaxWorkers:         1,
		OverflowMaxChunk:   4,
		ClockIntervalWords: 1 << 30,
	})
	m.SetHeapRange(0, totalWords)

	pool := worker.NewPool(1)

	engine := NewEngine(EngineConfig{
		Grid:                         g,
		Pool:                         pool,
		Marker:                       m,
		HeaderIO:                     io,
		Rewriter:                     rewriter,
		Mover:                        mover,
		ObjectStartGranularityWords:  1,
		ScanRoots: func(grey func(addr uint64)) {
			grey(bottom)
		},
	})

	regions, starts, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(regions) != 1 || regions[0].ID != oldID {
		t.Fatalf("Run returned regions %+v, want just %d", regions, oldID)
	}

	if len(mover.copies) != 1 {
		t.Fatalf("expected exactly one physical copy, got %d: %+v", len(mover.copies), mover.copies)
	}

	c := mover.copies[0]
	if c[0] != bottom+32 || c[1] != bottom+1 || c[2] != 1 {
		t.Fatalf("copy = %v, want [%d %d 1]", c, bottom+32, bottom+1)
	}

	gotRef := rewriter.refs[bottom][0]
	if gotRef != bottom+1 {
		t.Fatalf("root's rewritten reference = %d, want %d", gotRef, bottom+1)
	}

	if got := uint64(g.Region(oldID).Top()); got != bottom+2 {
		t.Fatalf("region top after Run = %d, want %d", got, bottom+2)
	}

	if _, ok := starts[oldID]; !ok {
		t.Fatal("expected an object-start table for the surviving region")
	}
}
