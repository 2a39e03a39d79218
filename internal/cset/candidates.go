// Package cset implements collection-set selection: the marking/retained
// candidate lists, the parallel build-and-prune chooser, and the mutable
// collection-set array itself (§3.6, §3.7, §4.4).
package cset

import (
	"sort"
	"sync"

	"github.com/orizon-lang/g1core/internal/heap"
)

// Classification is the §3.7 contains_map value for O(1) lookup of a
// region's candidacy status.
type Classification uint8

const (
	NotCandidate Classification = iota
	Marking
	Retained
)

// Candidate is one entry in a candidate list (§3.7). ReclaimableBytes is
// carried alongside GCEfficiency so pruning can weigh AllowedWaste in
// actual bytes instead of recovering it from efficiency, which is
// reclaimable bytes divided by a generally non-unit predicted-cost
// factor.
type Candidate struct {
	Region           heap.RegionID
	GCEfficiency     float64
	ReclaimableBytes uint64
	UnreclaimedCount uint32
}

// Candidates holds the two ordered candidate lists plus the O(1)
// classifier (§3.7).
type Candidates struct {
	mu sync.Mutex

	marking  []Candidate
	retained []Candidate
	class    map[heap.RegionID]Classification
}

func NewCandidates() *Candidates {
	return &Candidates{class: make(map[heap.RegionID]Classification)}
}

// ClassOf reports a region's current candidacy classification.
func (c *Candidates) ClassOf(id heap.RegionID) Classification {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.class[id]
}

// SetMarking replaces the marking list, already sorted decreasing by
// GCEfficiency, and rebuilds the classifier entries for it.
func (c *Candidates) SetMarking(list []Candidate) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, old := range c.marking {
		if c.class[old.Region] == Marking {
			delete(c.class, old.Region)
		}
	}

	c.marking = list

	for _, cand := range c.marking {
		c.class[cand.Region] = Marking
	}
}

// Marking returns a copy of the current marking candidate list.
func (c *Candidates) Marking() []Candidate {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]Candidate(nil), c.marking...)
}

// Retained returns a copy of the current retained candidate list.
func (c *Candidates) Retained() []Candidate {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]Candidate(nil), c.retained...)
}

// AddRetained appends a region that self-forwarded during the last
// evacuation to the retained list (§4.4 Retained list).
func (c *Candidates) AddRetained(id heap.RegionID, efficiency float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.retained = append(c.retained, Candidate{Region: id, GCEfficiency: efficiency})
	sort.Slice(c.retained, func(i, j int) bool { return c.retained[i].GCEfficiency > c.retained[j].GCEfficiency })
	c.class[id] = Retained
}

// NoteUnreclaimed increments a retained region's unreclaimed-attempt
// counter, dropping it from the list once it reaches keepPinnedCount
// (§4.4: "unconditionally tried... until num_unreclaimed_count >=
// keep_pinned_count, then dropped").
func (c *Candidates) NoteUnreclaimed(id heap.RegionID, keepPinnedCount uint32) (dropped bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.retained {
		if c.retained[i].Region != id {
			continue
		}

		c.retained[i].UnreclaimedCount++
		if c.retained[i].UnreclaimedCount >= keepPinnedCount {
			c.retained = append(c.retained[:i], c.retained[i+1:]...)
			delete(c.class, id)

			return true
		}

		return false
	}

	return false
}

// RemoveMarking removes id from the marking list (e.g. it was pruned, or
// selected into an increment) and clears its classification.
func (c *Candidates) RemoveMarking(id heap.RegionID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.marking {
		if c.marking[i].Region == id {
			c.marking = append(c.marking[:i], c.marking[i+1:]...)
			break
		}
	}

	if c.class[id] == Marking {
		delete(c.class, id)
	}
}

// RemoveRetained removes id from the retained list outright (selected
// into an increment).
func (c *Candidates) RemoveRetained(id heap.RegionID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.retained {
		if c.retained[i].Region == id {
			c.retained = append(c.retained[:i], c.retained[i+1:]...)
			break
		}
	}

	if c.class[id] == Retained {
		delete(c.class, id)
	}
}
