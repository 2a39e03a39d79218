package cset

import (
	"context"
	"sort"
	"sync"

	"github.com/orizon-lang/g1core/internal/heap"
	"github.com/orizon-lang/g1core/internal/worker"
)

// ChooserConfig fixes the pruning/skip thresholds for BuildMarkingList
// (§4.4).
type ChooserConfig struct {
	LiveThresholdPercent int // skip regions at/above this % live
	MinOldCSetLength     int // prune stops once candidates would drop below this
	AllowedWaste         uint64

	// PredictedCopyCost estimates the pause-time cost of evacuating r,
	// the denominator of gc_efficiency (§Glossary).
	PredictedCopyCost func(r *heap.Region) float64

	// ActiveOldAllocRegion, if set, is skipped (§4.4 step 3): the region
	// currently being bump-allocated into for promotions.
	ActiveOldAllocRegion heap.RegionID
	HasActiveOldAlloc    bool

	CardSetClear func(heap.RegionID)
}

// BuildMarkingList runs the §4.4 parallel-build-then-sort-then-prune
// algorithm over every committed region in grid, returning the resulting
// marking candidate list (already pruned).
func BuildMarkingList(ctx context.Context, grid *heap.Grid, pool *worker.Pool, existing *Candidates, cfg ChooserConfig) []Candidate {
	var mu sync.Mutex

	var collected []Candidate

	claimer := heap.NewClaimer(grid.MaxRegions(), 16)

	grainBytes := grid.GrainWords() * 8

	_ = pool.RunTask(ctx, func(workerID int) {
		var local []Candidate

		grid.ParIterateFromWorkerOffset(func(r *heap.Region) {
			if c, ok := evaluateCandidate(r, existing, grainBytes, cfg); ok {
				local = append(local, c)
			}
		}, claimer, uint32(workerID))

		if len(local) > 0 {
			mu.Lock()
			collected = append(collected, local...)
			mu.Unlock()
		}
	})

	sort.Slice(collected, func(i, j int) bool { return collected[i].GCEfficiency > collected[j].GCEfficiency })

	return prune(collected, cfg)
}

func evaluateCandidate(r *heap.Region, existing *Candidates, grainBytes uint64, cfg ChooserConfig) (Candidate, bool) {
	// Step 1: skip if not Old, or already a cset candidate.
	if r.Kind() != heap.Old {
		return Candidate{}, false
	}

	if existing.ClassOf(r.ID()) != NotCandidate {
		return Candidate{}, false
	}

	// Step 2: skip if remset tracking isn't complete.
	if r.RemSetState() != heap.Complete {
		return Candidate{}, false
	}

	// Step 3: skip the active old allocation region.
	if cfg.HasActiveOldAlloc && r.ID() == cfg.ActiveOldAllocRegion {
		return Candidate{}, false
	}

	// Step 4: skip regions at/above the live-data threshold.
	liveBytes := r.LiveBytes()
	threshold := grainBytes * uint64(cfg.LiveThresholdPercent) / 100

	if liveBytes >= threshold {
		return Candidate{}, false
	}

	reclaimable := grainBytes - liveBytes

	cost := 1.0
	if cfg.PredictedCopyCost != nil {
		cost = cfg.PredictedCopyCost(r)
	}

	if cost <= 0 {
		cost = 1.0
	}

	return Candidate{Region: r.ID(), GCEfficiency: float64(reclaimable) / cost, ReclaimableBytes: reclaimable}, true
}

// prune removes candidates from the worst-efficiency end while the count
// stays at or above MinOldCSetLength and cumulative removed reclaimable
// bytes stays at or below AllowedWaste (§4.4 prune). Caller's
// CardSetClear is invoked for every pruned region.
func prune(sorted []Candidate, cfg ChooserConfig) []Candidate {
	removedWaste := uint64(0)

	end := len(sorted)
	for end > cfg.MinOldCSetLength {
		worst := sorted[end-1]
		waste := worst.ReclaimableBytes

		if removedWaste+waste > cfg.AllowedWaste {
			break
		}

		removedWaste += waste
		end--

		if cfg.CardSetClear != nil {
			cfg.CardSetClear(worst.Region)
		}
	}

	return sorted[:end]
}
