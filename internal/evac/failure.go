package evac

import (
	"errors"

	"github.com/orizon-lang/g1core/internal/heap"
)

// ErrObjectTooLargeForRegion is returned when a single object's word
// count exceeds a destination region's remaining capacity.
var ErrObjectTooLargeForRegion = errors.New("evac: object too large for destination region")

// SelfForward installs addr->addr in the forwarding table: the §4.5
// evacuation-failure path taken when every destination region is out of
// space. The object is left exactly where it is; later readers of the
// forwarding table still get a valid address back, just the original
// one, rather than having to special-case "evacuation failed" at every
// call site.
func SelfForward(t *ForwardingTable, addr uint64) uint64 {
	to, _ := t.Install(addr, addr)
	return to
}

// IsSelfForward reports whether addr currently resolves to itself.
func IsSelfForward(t *ForwardingTable, addr uint64) bool {
	fwd, ok := t.Lookup(addr)
	return ok && fwd == addr
}

// FailureRecovery implements remove_self_forwards (§4.5): the
// post-evacuation walk over every collection-set region that saw at
// least one allocation failure, converting regions that held
// self-forwarded objects from "about to be freed" into retained old
// regions so their survivors aren't lost.
type FailureRecovery struct {
	Grid     *heap.Grid
	Forward  *ForwardingTable
	Mover    ObjectMover
	Retained func(id heap.RegionID)
}

// RemoveSelfForwards walks each region in csetRegions from bottom to its
// recorded top, looking for self-forwarded objects. A region with at
// least one survives as Old with remset tracking restored instead of
// being freed; Retained is invoked for every such region so the caller
// can add it to the retained candidate list (§4.4), and the same
// regions are returned so a caller with no Retained callback wired can
// still tell which of csetRegions survived the pause.
func (f *FailureRecovery) RemoveSelfForwards(csetRegions []heap.RegionID) []heap.RegionID {
	var retained []heap.RegionID

	for _, id := range csetRegions {
		r := f.Grid.Region(id)

		addr := uint64(r.Bottom())
		top := uint64(r.Top())

		sawFailure := false

		for addr < top {
			if IsSelfForward(f.Forward, addr) {
				sawFailure = true
			}

			addr += f.Mover.Size(addr)
		}

		if !sawFailure {
			continue
		}

		r.SetKind(heap.Old)
		r.SetRemSetState(heap.Complete)
		r.SetContainingSet(heap.SetOld)

		retained = append(retained, id)

		if f.Retained != nil {
			f.Retained(id)
		}
	}

	return retained
}
