package compact

import (
	"github.com/orizon-lang/g1core/internal/heap"
	"github.com/orizon-lang/g1core/internal/mark"
)

// Mover is phase 4's external collaborator: it performs the actual
// bytewise copy of a live object from src to dst (§6.1). This package's
// own per-worker striping guarantees dst <= src for every object moved
// within a single worker's chain — a worker never lets its destination
// region index run ahead of its own source scan — so CopyTo only needs
// forward-direction overlap safety, not a full bidirectional memmove; no
// separate shadow-copy buffer is needed to make that safe (see DESIGN.md).
type Mover interface {
	CopyTo(src, dst, words uint64)
}

// ObjectStartTable maps a destination word address to the start of the
// (possibly multi-granule) object that covers it, at a fixed
// granularity, so later scans of a compacted region can find object
// boundaries without walking from the region's bottom every time.
type ObjectStartTable struct {
	base             uint64
	granularityWords uint64
	firstObjStart    []uint64
}

const noObjectStart = ^uint64(0)

// NewObjectStartTable allocates a table covering words words starting at
// base, at the given granularity.
func NewObjectStartTable(base, words, granularityWords uint64) *ObjectStartTable {
	n := (words + granularityWords - 1) / granularityWords

	t := &ObjectStartTable{base: base, granularityWords: granularityWords, firstObjStart: make([]uint64, n)}
	for i := range t.firstObjStart {
		t.firstObjStart[i] = noObjectStart
	}

	return t
}

// UpdateForBlock records that [start, end) belongs to one object.
func (t *ObjectStartTable) UpdateForBlock(start, end uint64) {
	first := (start - t.base) / t.granularityWords
	last := (end - 1 - t.base) / t.granularityWords

	for i := first; i <= last; i++ {
		t.firstObjStart[i] = start
	}
}

// ObjectStartCovering returns the start address of the object covering
// addr, if one has been recorded.
func (t *ObjectStartTable) ObjectStartCovering(addr uint64) (uint64, bool) {
	idx := (addr - t.base) / t.granularityWords
	v := t.firstObjStart[idx]

	if v == noObjectStart {
		return 0, false
	}

	return v, true
}

// Compact runs phase 4 for one worker's striped share of regions (§4.6
// compact): every marked object is physically copied to the destination
// AssignForwards computed for it (objects that never moved are skipped);
// each destination region's top is advanced to front the highest address
// written into it, and its object-start table is refreshed.
func Compact(workerID, numWorkers int, regions []CompactionRegion, bitmap *mark.Bitmap, io HeaderIO, grid *heap.Grid, table *ForwardTable, mover Mover, starts map[heap.RegionID]*ObjectStartTable) {
	stripe := workerStripe(workerID, numWorkers, regions)

	newTop := make(map[heap.RegionID]uint64, len(stripe))
	for _, r := range stripe {
		newTop[r.ID] = uint64(r.Bottom)
	}

	for _, src := range stripe {
		addr := uint64(src.Bottom)
		top := uint64(src.Top)

		for {
			cur, found := bitmap.FindNextMarkedAddr(addr, top)
			if !found {
				break
			}

			size := io.Words(cur)

			destID := src.ID
			destAddr := cur

			if h, ok := table.Lookup(cur); ok {
				destID = h.DestRegion
				destAddr = uint64(grid.Region(destID).Bottom()) + h.DestOffset
				mover.CopyTo(cur, destAddr, size)
			}

			if st, ok := starts[destID]; ok {
				st.UpdateForBlock(destAddr, destAddr+size)
			}

			if destAddr+size > newTop[destID] {
				newTop[destID] = destAddr + size
			}

			addr = cur + size
		}
	}

	for id, top := range newTop {
		grid.Region(id).SetTop(heap.Addr(top))
	}
}
