package compact

import "github.com/orizon-lang/g1core/internal/heap"

// CompactionRegion is one region considered for a full-compaction cycle:
// its grid index plus a snapshot of bottom/top/end taken at summary time,
// so later phases see a stable view even as top is rewritten mid-compact.
type CompactionRegion struct {
	ID             heap.RegionID
	Bottom, Top, End heap.Addr
}

// Summarize builds phase 1's region list (§4.6 summary): every
// non-humongous, non-empty region in index order. Full compaction does
// not distinguish Eden/Survivor/Old the way a mixed pause does — the
// whole heap is one compaction space. Humongous regions are excluded;
// they are never moved, only reclaimed outright when found dead
// (§Glossary).
//
// Unlike the legacy summary-based pipeline, this "new" forward-first
// pipeline (chosen per the spec's design note) does not select a dense
// prefix: every live region is eligible to both source and host
// compacted objects, and phase 2 (AssignForwards) slides each worker's
// own striped share of this list into itself.
func Summarize(grid *heap.Grid) []CompactionRegion {
	var regions []CompactionRegion

	grid.Iterate(func(r *heap.Region) {
		switch r.Kind() {
		case heap.StartsHumongous, heap.ContinuesHumongous, heap.Free:
			return
		}

		if r.Top() == r.Bottom() {
			return
		}

		regions = append(regions, CompactionRegion{ID: r.ID(), Bottom: r.Bottom(), Top: r.Top(), End: r.End()})
	})

	return regions
}
