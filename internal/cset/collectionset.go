package cset

import (
	"github.com/orizon-lang/g1core/internal/heap"
)

// CollectionSet is the single mutable array-plus-counters structure an
// evacuation pause consumes (§3.6). Entries [0, EdenLen) are Eden
// regions, [EdenLen, EdenLen+SurvivorLen) are Survivor regions, and
// [EdenLen+SurvivorLen, EdenLen+SurvivorLen+InitialOldLen) are the
// initial old regions chosen for this increment — young entries always
// precede old entries. OptionalOld holds old regions that may be added
// mid-pause if time remains (§4.4's "optional old regions").
type CollectionSet struct {
	regions []heap.RegionID

	EdenLen      int
	SurvivorLen  int
	InitialOldLen int

	OptionalOld []heap.RegionID
}

// NewCollectionSet builds the young generation prefix of a collection
// set; old regions are appended afterward via AddInitialOld.
func NewCollectionSet(eden, survivor []heap.RegionID) *CollectionSet {
	cs := &CollectionSet{
		regions:     append(append([]heap.RegionID(nil), eden...), survivor...),
		EdenLen:     len(eden),
		SurvivorLen: len(survivor),
	}

	return cs
}

// AddInitialOld appends an old region to the fixed (non-optional)
// portion of the set, preserving the young-precedes-old invariant since
// old entries are only ever appended after the young prefix is fixed.
func (cs *CollectionSet) AddInitialOld(id heap.RegionID) {
	cs.regions = append(cs.regions, id)
	cs.InitialOldLen++
}

// AddOptionalOld appends a region to the separate optional-old list,
// considered for inclusion only if the pause has time budget left
// (§4.4).
func (cs *CollectionSet) AddOptionalOld(id heap.RegionID) {
	cs.OptionalOld = append(cs.OptionalOld, id)
}

// PromoteOptional moves the next optional-old region into the active
// set, for use when an evacuation pause decides to take another round
// (§4.5 "optional rounds").
func (cs *CollectionSet) PromoteOptional() (heap.RegionID, bool) {
	if len(cs.OptionalOld) == 0 {
		return 0, false
	}

	id := cs.OptionalOld[0]
	cs.OptionalOld = cs.OptionalOld[1:]
	cs.regions = append(cs.regions, id)
	cs.InitialOldLen++

	return id, true
}

// Len returns the total number of regions currently in the active set
// (young + initial old), excluding OptionalOld entries not yet promoted.
func (cs *CollectionSet) Len() int { return len(cs.regions) }

// Eden returns the Eden slice of the active set.
func (cs *CollectionSet) Eden() []heap.RegionID { return cs.regions[:cs.EdenLen] }

// Survivor returns the Survivor slice of the active set.
func (cs *CollectionSet) Survivor() []heap.RegionID {
	return cs.regions[cs.EdenLen : cs.EdenLen+cs.SurvivorLen]
}

// Old returns the old slice of the active set. PromoteOptional counts
// each promoted optional region into InitialOldLen, so promoted regions
// are included here.
func (cs *CollectionSet) Old() []heap.RegionID {
	start := cs.EdenLen + cs.SurvivorLen
	return cs.regions[start : start+cs.InitialOldLen]
}

// AllOld returns every old region currently active, including those
// promoted from OptionalOld during this pause.
func (cs *CollectionSet) AllOld() []heap.RegionID {
	start := cs.EdenLen + cs.SurvivorLen
	return cs.regions[start:]
}

// All returns every active region in the set, young entries before old,
// including any old regions promoted from OptionalOld (§4.5 step 7: the
// full set a pause must account for once it completes, as opposed to
// AllOld's old-only view).
func (cs *CollectionSet) All() []heap.RegionID { return cs.regions }

// Contains reports whether id is part of the active set (young, initial
// old, or promoted optional old).
func (cs *CollectionSet) Contains(id heap.RegionID) bool {
	for _, r := range cs.regions {
		if r == id {
			return true
		}
	}

	return false
}
