package compact

import (
	"github.com/orizon-lang/g1core/internal/heap"
	"github.com/orizon-lang/g1core/internal/mark"
)

// RefRewriter is the external object-graph collaborator for phase 3
// (§6.1): update is invoked once per outgoing reference slot of the
// object at addr and must persist update's return value back into the
// slot.
type RefRewriter interface {
	ForEachRef(addr uint64, update func(ref uint64) uint64)
}

// AdjustPointers runs phase 3 for one worker's striped share of regions
// (§4.6 adjust): every live object's outgoing references are resolved
// through the forward table and rewritten in place, whether or not the
// object itself is moving — pointer adjustment and physical movement are
// deliberately separate passes so phase 4 can copy without re-deriving
// any addresses.
func AdjustPointers(workerID, numWorkers int, regions []CompactionRegion, bitmap *mark.Bitmap, io HeaderIO, grid *heap.Grid, table *ForwardTable, rewriter RefRewriter) {
	stripe := workerStripe(workerID, numWorkers, regions)

	for _, r := range stripe {
		addr := uint64(r.Bottom)
		top := uint64(r.Top)

		for {
			cur, found := bitmap.FindNextMarkedAddr(addr, top)
			if !found {
				break
			}

			rewriter.ForEachRef(cur, func(ref uint64) uint64 {
				h, ok := table.Lookup(ref)
				if !ok {
					return ref
				}

				return uint64(grid.Region(h.DestRegion).Bottom()) + h.DestOffset
			})

			addr = cur + io.Words(cur)
		}
	}
}
