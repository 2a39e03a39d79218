package heap

import "sync/atomic"

// AttrBit is one flag in the region-attribute table (§3.3): a byte per
// region encoding a fast O(1) classifier consulted on every reference
// scanned during evacuation, so it must never require a lock.
type AttrBit uint8

const (
	AttrInCSet AttrBit = 1 << iota
	AttrYoung
	AttrOld
	AttrHumongousCandidate
	AttrRemSetTracked
	AttrPinned
	AttrNewSurvivor
)

// AttributeTable is one atomic byte per region.
type AttributeTable struct {
	bits []atomic.Uint32 // one Uint32 per region for portable CAS; low byte used
}

// NewAttributeTable allocates a table for n regions, all-zero.
func NewAttributeTable(n uint32) *AttributeTable {
	return &AttributeTable{bits: make([]atomic.Uint32, n)}
}

// Get loads the current attribute byte with acquire semantics.
func (t *AttributeTable) Get(id RegionID) AttrBit {
	return AttrBit(t.bits[id].Load())
}

// Set stores the attribute byte with release semantics (§5 ordering:
// region-attr writes release, readers acquire).
func (t *AttributeTable) Set(id RegionID, v AttrBit) {
	t.bits[id].Store(uint32(v))
}

func (t *AttributeTable) Has(id RegionID, bit AttrBit) bool {
	return t.Get(id)&bit != 0
}

// Refresh recomputes the attribute byte for a region from its current
// authoritative state (kind, remset state, pinned count). Called whenever
// a region transitions kind, joins/leaves the cset, or changes remset
// state, so the fast classifier never lags behind by more than one such
// transition.
func (t *AttributeTable) Refresh(id RegionID, r *Region) {
	var v AttrBit

	switch r.Kind() {
	case Eden, Survivor:
		v |= AttrYoung
	case Old:
		v |= AttrOld
	case StartsHumongous, ContinuesHumongous:
		v |= AttrHumongousCandidate
	}

	if r.RemSetState() == Complete {
		v |= AttrRemSetTracked
	}

	if r.PinnedCount() > 0 {
		v |= AttrPinned
	}

	t.Set(id, v)
}

// MarkInCSet / ClearInCSet flip the in-cset bit without disturbing the
// rest of the byte, used when a region joins or leaves the current
// collection set (§3.6).
func (t *AttributeTable) MarkInCSet(id RegionID) {
	for {
		old := t.bits[id].Load()
		if t.bits[id].CompareAndSwap(old, old|uint32(AttrInCSet)) {
			return
		}
	}
}

func (t *AttributeTable) ClearInCSet(id RegionID) {
	for {
		old := t.bits[id].Load()
		if t.bits[id].CompareAndSwap(old, old&^uint32(AttrInCSet)) {
			return
		}
	}
}

// TopAtRebuildStartTable records, per region, the `top` watermark at the
// moment remembered-set rebuild began (§3.3), so rebuild can scan only the
// newly-allocated tail.
type TopAtRebuildStartTable struct {
	vals []atomic.Uint64
}

func NewTopAtRebuildStartTable(n uint32) *TopAtRebuildStartTable {
	return &TopAtRebuildStartTable{vals: make([]atomic.Uint64, n)}
}

func (t *TopAtRebuildStartTable) Get(id RegionID) Addr   { return Addr(t.vals[id].Load()) }
func (t *TopAtRebuildStartTable) Set(id RegionID, a Addr) { t.vals[id].Store(uint64(a)) }
