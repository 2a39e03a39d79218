package compact

import "github.com/orizon-lang/g1core/internal/mark"

// workerStripe returns the subsequence of regions this worker owns,
// striped across numWorkers the same way claim_region strides the
// concurrent marker's region range (§4.1), so source and destination
// walks agree on ownership without any shared claim counter.
func workerStripe(workerID, numWorkers int, regions []CompactionRegion) []CompactionRegion {
	var out []CompactionRegion

	for i := workerID; i < len(regions); i += numWorkers {
		out = append(out, regions[i])
	}

	return out
}

// AssignForwards runs phase 2 (§4.6 forward) for one worker: walk this
// worker's striped regions in order, bitmap-tracing every marked object,
// and slide each one down into the same striped chain of regions —
// a worker's own assigned regions double as its exclusive destination
// space, so no two workers ever target the same region and phase 4 needs
// no cross-worker synchronization to physically copy.
func AssignForwards(workerID, numWorkers int, regions []CompactionRegion, bitmap *mark.Bitmap, io HeaderIO, table *ForwardTable) {
	stripe := workerStripe(workerID, numWorkers, regions)
	if len(stripe) == 0 {
		return
	}

	destIdx := 0
	destBase := uint64(stripe[0].Bottom)
	point := destBase
	destEnd := uint64(stripe[0].End)

	for _, src := range stripe {
		addr := uint64(src.Bottom)
		top := uint64(src.Top)

		for {
			cur, found := bitmap.FindNextMarkedAddr(addr, top)
			if !found {
				break
			}

			size := io.Words(cur)

			for point+size > destEnd {
				destIdx++
				if destIdx >= len(stripe) {
					panic("compact: destination chain exhausted mid forward pass")
				}

				destBase = uint64(stripe[destIdx].Bottom)
				point = destBase
				destEnd = uint64(stripe[destIdx].End)
			}

			if cur != point {
				table.Install(cur, ForwardHeader{DestRegion: stripe[destIdx].ID, DestOffset: point - destBase})
			}

			point += size
			addr = cur + size
		}
	}
}
