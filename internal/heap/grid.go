package heap

import (
	"errors"
	"fmt"
	"math/bits"
	"sync"
	"sync/atomic"
)

// ErrHeapExhausted is returned when no Free region is available and the
// committed heap cannot be expanded further (§4.1, §7 AllocationExhausted).
var ErrHeapExhausted = errors.New("heap: exhausted")

// Config fixes the grid's shape at init; it never changes afterward.
type Config struct {
	GrainWords   uint64 // region size in words, must be a power of two
	MaxRegions   uint32
	WordSizeBits uint8 // log2(bytes per word), normally 3 for 64-bit
}

// Grid is the fixed heap_start..heap_start+MaxRegions*GrainBytes address
// range, partitioned into Region entries. It owns the sole allocation of
// the region array; every other component holds RegionID handles, never
// pointers into this slice, so the grid can be resized/reasoned about
// without chasing back-references (§9 design note on cyclic ownership).
type Grid struct {
	cfg Config

	grainBytes  uint64
	log2Grain   uint8
	heapStart   Addr
	committedTo RegionID // regions [0, committedTo) are backed by storage

	mu      sync.Mutex // guards commit/expand and bulk region-array ops
	regions []*Region

	backing Storage

	free       *FreeRegionSet
	oldCount   atomic.Int64
	humCount   atomic.Int64
	youngCount atomic.Int64

	attrs *AttributeTable
}

// NewGrid builds an all-Free grid of cfg.MaxRegions regions, with no
// storage committed yet. Storage backing is supplied by a Storage
// implementation (see storage.go) so the grid is agnostic to whether pages
// come from an mmap reservation or a plain Go slice.
func NewGrid(cfg Config, backing Storage) (*Grid, error) {
	if cfg.GrainWords == 0 || cfg.GrainWords&(cfg.GrainWords-1) != 0 {
		return nil, fmt.Errorf("heap: GrainWords must be a power of two, got %d", cfg.GrainWords)
	}

	if cfg.MaxRegions == 0 {
		return nil, errors.New("heap: MaxRegions must be positive")
	}

	wordBytes := uint64(1) << cfg.WordSizeBits
	grainBytes := cfg.GrainWords * wordBytes

	g := &Grid{
		cfg:        cfg,
		grainBytes: grainBytes,
		log2Grain:  uint8(bits.TrailingZeros64(cfg.GrainWords)),
		backing:    backing,
		regions:    make([]*Region, cfg.MaxRegions),
		attrs:      NewAttributeTable(cfg.MaxRegions),
	}
	g.free = newFreeRegionSet()
	g.free.attach(g)

	for i := uint32(0); i < cfg.MaxRegions; i++ {
		id := RegionID(i)
		bottom := Addr(uint64(i) * cfg.GrainWords)
		end := bottom + Addr(cfg.GrainWords)
		g.regions[i] = newRegion(id, bottom, end)
	}

	return g, nil
}

// GrainWords returns the fixed region size in words.
func (g *Grid) GrainWords() uint64 { return g.cfg.GrainWords }

// MaxRegions returns the grid's fixed capacity.
func (g *Grid) MaxRegions() uint32 { return uint32(len(g.regions)) }

// Region returns the region at id; callers must treat the RegionID as an
// opaque handle and never assume the backing array is stable across a
// grid resize (it is: the array is sized once at NewGrid, but future
// growth would require revisiting this).
func (g *Grid) Region(id RegionID) *Region { return g.regions[id] }

// Attributes returns the region-attribute side table (§3.3).
func (g *Grid) Attributes() *AttributeTable { return g.attrs }

// AddrToRegion maps an address to its containing region index (§4.1).
func (g *Grid) AddrToRegion(a Addr) RegionID {
	return RegionID(uint64(a) >> g.log2Grain)
}

// ensureCommitted grows committed storage to cover at least n regions,
// expanding the backing store in region-sized steps under the heap mutex.
func (g *Grid) ensureCommitted(n RegionID) error {
	if n <= g.committedTo {
		return nil
	}

	want := uint64(n) * g.grainBytes

	if err := g.backing.Grow(want); err != nil {
		return fmt.Errorf("heap: expand commit to %d regions: %w", n, err)
	}

	g.committedTo = n

	return nil
}

// AllocateRegion pops one Free region, promoting it to kind, committing
// storage if necessary (§4.1).
func (g *Grid) AllocateRegion(kind Kind) (RegionID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	id, ok := g.free.popLowest()
	if !ok {
		next := g.committedTo + 1
		if uint32(next) > g.MaxRegions() {
			return 0, ErrHeapExhausted
		}

		if err := g.ensureCommitted(next); err != nil {
			return 0, err
		}

		id = g.committedTo - 1
	}

	r := g.regions[id]
	r.SetKind(kind)
	r.SetTop(r.Bottom())
	r.SetTAMSFromTop()
	r.SetLiveBytes(0)

	switch kind {
	case Old:
		r.SetContainingSet(SetOld)
		g.oldCount.Add(1)
	case Eden, Survivor:
		g.youngCount.Add(1)
	}

	g.attrs.Refresh(id, r)

	return id, nil
}

// AllocateHumongous reserves ceil(wordSize/GrainWords) contiguous Free
// regions, marking the first StartsHumongous and the rest
// ContinuesHumongous (§4.1).
func (g *Grid) AllocateHumongous(wordSize uint64) (RegionID, error) {
	n := (wordSize + g.cfg.GrainWords - 1) / g.cfg.GrainWords
	if n == 0 {
		n = 1
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	first, ok := g.free.removeContiguousRun(uint32(n))
	if !ok {
		next := g.committedTo + RegionID(n)
		if uint32(next) > g.MaxRegions() {
			return 0, ErrHeapExhausted
		}

		if err := g.ensureCommitted(next); err != nil {
			return 0, err
		}

		first = g.committedTo - RegionID(n)
	}

	for i := uint32(0); i < uint32(n); i++ {
		id := first + RegionID(i)
		r := g.regions[id]

		if i == 0 {
			r.SetKind(StartsHumongous)
		} else {
			r.SetKind(ContinuesHumongous)
			r.humongousStart = first
		}

		r.SetTop(r.End())
		r.SetTAMSFromTop()
		r.SetContainingSet(SetHumongous)
		g.attrs.Refresh(id, r)
	}

	g.humCount.Add(int64(n))

	return first, nil
}

// FreeRegion clears a single non-humongous region and returns it to the
// Free set (§4.1).
func (g *Grid) FreeRegion(id RegionID) {
	g.mu.Lock()
	defer g.mu.Unlock()

	r := g.regions[id]

	switch r.Kind() {
	case Old:
		g.oldCount.Add(-1)
	case Eden, Survivor:
		g.youngCount.Add(-1)
	}

	r.SetKind(Free)
	r.SetTop(r.Bottom())
	r.SetTAMSFromTop()
	r.SetLiveBytes(0)
	r.SetRemSetState(Untracked)
	r.SetContainingSet(SetFree)
	g.attrs.Refresh(id, r)
	g.free.insertOrdered(id)
}

// FreeHumongousRegion frees a StartsHumongous region and every
// ContinuesHumongous region that follows it, iterating the continuation
// chain (§4.1).
func (g *Grid) FreeHumongousRegion(id RegionID) {
	r := g.regions[id]
	if r.Kind() != StartsHumongous {
		panic("heap: FreeHumongousRegion called on non-StartsHumongous region")
	}

	n := int64(0)

	cur := id + 1
	for cur < RegionID(len(g.regions)) && g.regions[cur].Kind() == ContinuesHumongous {
		g.freeHumongousMember(cur)
		n++
		cur++
	}

	g.freeHumongousMember(id)
	n++

	g.humCount.Add(-n)
}

func (g *Grid) freeHumongousMember(id RegionID) {
	g.mu.Lock()
	defer g.mu.Unlock()

	r := g.regions[id]
	r.SetKind(Free)
	r.SetTop(r.Bottom())
	r.SetTAMSFromTop()
	r.SetLiveBytes(0)
	r.SetRemSetState(Untracked)
	r.SetContainingSet(SetFree)
	r.humongousStart = NoRegion
	g.attrs.Refresh(id, r)
	g.free.insertOrdered(id)
}

// FreeSet exposes the free list for set-level operations (append_ordered,
// remove_with_node_index, …) described in §4.1.
func (g *Grid) FreeSet() *FreeRegionSet { return g.free }

func (g *Grid) OldCount() int64   { return g.oldCount.Load() }
func (g *Grid) HumCount() int64   { return g.humCount.Load() }
func (g *Grid) YoungCount() int64 { return g.youngCount.Load() }

// Iterate calls fn for every committed region in index order.
func (g *Grid) Iterate(fn func(*Region)) {
	for i := RegionID(0); i < g.committedTo; i++ {
		fn(g.regions[i])
	}
}

// Claimer hands out contiguous stripes of region indices via CAS, so a
// fixed pool of workers can partition a parallel region walk without a
// lock (§4.1).
type Claimer struct {
	next      atomic.Uint32
	total     uint32
	stripeLen uint32
}

// NewClaimer creates a claimer over [0, total) with the given stripe size.
func NewClaimer(total, stripeLen uint32) *Claimer {
	if stripeLen == 0 {
		stripeLen = 1
	}

	return &Claimer{total: total, stripeLen: stripeLen}
}

// ClaimStripe atomically claims the next stripe, returning [start, end)
// and false once the range is exhausted.
func (c *Claimer) ClaimStripe() (start, end uint32, ok bool) {
	for {
		cur := c.next.Load()
		if cur >= c.total {
			return 0, 0, false
		}

		next := cur + c.stripeLen
		if next > c.total {
			next = c.total
		}

		if c.next.CompareAndSwap(cur, next) {
			return cur, next, true
		}
	}
}

// ParIterateFromWorkerOffset partitions the committed region range into
// stripes claimed by the shared claimer; within each claimed stripe a
// worker begins scanning at a worker-specific rotation offset to reduce
// lock-step contention on the same stripe boundary (§4.1).
func (g *Grid) ParIterateFromWorkerOffset(fn func(*Region), claimer *Claimer, workerID uint32) {
	total := uint32(g.committedTo)
	if total == 0 {
		return
	}

	offset := workerID % total

	for {
		start, end, ok := claimer.ClaimStripe()
		if !ok {
			return
		}

		if end > total {
			end = total
		}

		if start >= end {
			continue
		}

		n := end - start
		for i := uint32(0); i < n; i++ {
			idx := start + (i+offset)%n
			fn(g.regions[idx])
		}
	}
}
