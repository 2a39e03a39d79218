package cset

import (
	"context"
	"testing"

	"github.com/orizon-lang/g1core/internal/heap"
	"github.com/orizon-lang/g1core/internal/worker"
)

func buildTestGrid(t *testing.T, numOld int) *heap.Grid {
	t.Helper()

	cfg := heap.Config{GrainWords: 64, MaxRegions: uint32(numOld) + 1, WordSizeBits: 3}
	backing := heap.NewSliceStorage(uint64(cfg.MaxRegions) * cfg.GrainWords * 8)

	g, err := heap.NewGrid(cfg, backing)
	if err != nil {
		t.Fatalf("NewGrid: %v", err)
	}

	for i := 0; i < numOld; i++ {
		id, err := g.AllocateRegion(heap.Old)
		if err != nil {
			t.Fatalf("AllocateRegion: %v", err)
		}

		g.Region(id).SetRemSetState(heap.Complete)
	}

	return g
}

func TestBuildMarkingListSkipsHighLiveAndOrdersByEfficiency(t *testing.T) {
	g := buildTestGrid(t, 3)

	grainBytes := g.GrainWords() * 8

	// region 0: mostly dead (high reclaimable, high efficiency)
	g.Region(0).SetLiveBytes(grainBytes / 10)
	// region 1: half live
	g.Region(1).SetLiveBytes(grainBytes / 2)
	// region 2: above the live threshold, must be skipped
	g.Region(2).SetLiveBytes(grainBytes * 95 / 100)

	existing := NewCandidates()
	pool := worker.NewPool(2)

	cfg := ChooserConfig{
		LiveThresholdPercent: 90,
		MinOldCSetLength:     0,
		AllowedWaste:         0,
	}

	got := BuildMarkingList(context.Background(), g, pool, existing, cfg)

	if len(got) != 2 {
		t.Fatalf("expected 2 candidates (region 2 skipped), got %d: %+v", len(got), got)
	}

	if got[0].Region != 0 {
		t.Fatalf("expected region 0 (most reclaimable) first, got %+v", got[0])
	}

	if got[1].Region != 1 {
		t.Fatalf("expected region 1 second, got %+v", got[1])
	}
}

func TestBuildMarkingListSkipsAlreadyCandidateAndActiveAlloc(t *testing.T) {
	g := buildTestGrid(t, 2)

	existing := NewCandidates()
	existing.SetMarking([]Candidate{{Region: 0, GCEfficiency: 1}})

	pool := worker.NewPool(1)

	cfg := ChooserConfig{
		LiveThresholdPercent: 100,
		MinOldCSetLength:     0,
		AllowedWaste:         1 << 30,
		ActiveOldAllocRegion: 1,
		HasActiveOldAlloc:    true,
	}

	got := BuildMarkingList(context.Background(), g, pool, existing, cfg)

	if len(got) != 0 {
		t.Fatalf("expected no candidates (0 already candidate, 1 active alloc), got %+v", got)
	}
}

func TestPruneRespectsMinOldCSetLength(t *testing.T) {
	sorted := []Candidate{
		{Region: 0, GCEfficiency: 100},
		{Region: 1, GCEfficiency: 50},
		{Region: 2, GCEfficiency: 10},
	}

	var cleared []heap.RegionID

	cfg := ChooserConfig{
		MinOldCSetLength: 2,
		AllowedWaste:     1 << 30,
		CardSetClear:     func(id heap.RegionID) { cleared = append(cleared, id) },
	}

	got := prune(sorted, cfg)

	if len(got) != 2 {
		t.Fatalf("expected prune to stop at MinOldCSetLength=2, got %d", len(got))
	}

	if len(cleared) != 1 || cleared[0] != 2 {
		t.Fatalf("expected region 2 cleared, got %+v", cleared)
	}
}

func TestPruneStopsAtAllowedWaste(t *testing.T) {
	sorted := []Candidate{
		{Region: 0, GCEfficiency: 100, ReclaimableBytes: 100},
		{Region: 1, GCEfficiency: 50, ReclaimableBytes: 50},
		{Region: 2, GCEfficiency: 10, ReclaimableBytes: 10},
	}

	cfg := ChooserConfig{
		MinOldCSetLength: 0,
		AllowedWaste:     10, // only the single worst (efficiency 10) fits the budget
	}

	got := prune(sorted, cfg)

	if len(got) != 2 {
		t.Fatalf("expected only the worst candidate pruned, got %d remaining", len(got))
	}
}
