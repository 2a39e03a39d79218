package evac

import (
	"sync"

	"github.com/orizon-lang/g1core/internal/heap"
)

// ObjectMover is the evacuation-pause external collaborator (§6.1): it
// knows how to size and physically copy objects, and to walk and rewrite
// an object's outgoing reference slots in place.
type ObjectMover interface {
	Size(addr uint64) uint64
	CopyTo(src, dst, words uint64)
	// ForEachRef invokes update once per outgoing reference slot of the
	// object at addr. update returns the slot's replacement value (the
	// forwarding address, if the referent was evacuated), which
	// ForEachRef must write back into the slot before returning.
	ForEachRef(addr uint64, update func(ref uint64) uint64)
}

// Destination is which generation a survivor object copies into.
type Destination uint8

const (
	ToSurvivor Destination = iota
	ToOld
)

// Allocator hands out per-worker PLAB-style bump regions so copy targets
// for different workers never contend on the same region's top pointer
// (§4.5, grounded on the teacher's region-granular bump allocation in
// region_alloc.go generalized here to a per-destination-kind PLAB).
type Allocator struct {
	mu   sync.Mutex
	grid *heap.Grid

	survivorPLAB []*heap.Region // indexed by workerID
	oldPLAB      []*heap.Region
}

// NewAllocator prepares an allocator for up to maxWorkers concurrent
// evacuating workers.
func NewAllocator(grid *heap.Grid, maxWorkers int) *Allocator {
	return &Allocator{
		grid:         grid,
		survivorPLAB: make([]*heap.Region, maxWorkers),
		oldPLAB:      make([]*heap.Region, maxWorkers),
	}
}

// Allocate claims words contiguous words in a worker-private PLAB,
// grabbing a fresh region from the grid's Free set when the current one
// can't fit the request.
func (a *Allocator) Allocate(workerID int, dest Destination, words uint64) (heap.Addr, heap.RegionID, error) {
	var (
		plab *[]*heap.Region
		kind heap.Kind
	)

	if dest == ToSurvivor {
		plab, kind = &a.survivorPLAB, heap.Survivor
	} else {
		plab, kind = &a.oldPLAB, heap.Old
	}

	if r := (*plab)[workerID]; r != nil {
		if addr, ok := r.TryBumpAllocate(words); ok {
			return addr, r.ID(), nil
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	id, err := a.grid.AllocateRegion(kind)
	if err != nil {
		return 0, 0, err
	}

	r := a.grid.Region(id)

	addr, ok := r.TryBumpAllocate(words)
	if !ok {
		return 0, 0, ErrObjectTooLargeForRegion
	}

	(*plab)[workerID] = r

	return addr, id, nil
}

// Evacuator runs the copy-and-push closure over a single object,
// installing a forwarding pointer for it and pushing the new copy onto
// the worker's task queue via PushTask, so the caller's drain loop can
// later rewrite that copy's outgoing references with UpdateRefsOf (§4.5).
type Evacuator struct {
	Mover    ObjectMover
	Forward  *ForwardingTable
	Alloc    *Allocator
	InCSet   func(addr uint64) bool
	AgeOf    func(addr uint64) (age int, tenureAge int)
	PushTask func(addr uint64)
}

// CopyAndPush evacuates the object at addr if it is in the collection
// set and not already forwarded, copying it into the appropriate
// destination and pushing the copy via PushTask; its outgoing references
// are rewritten later, by UpdateRefsOf. It returns the address the
// caller's own reference slot should be updated to point at: addr itself
// if addr is outside the collection set, the existing forwardee if addr
// was already forwarded or another worker won the forwarding race, the
// self-forwarded addr if no destination space could be allocated (see
// failure.go), and otherwise the new copy's address.
func (e *Evacuator) CopyAndPush(workerID int, addr uint64) uint64 {
	if !e.InCSet(addr) {
		return addr
	}

	if fwd, ok := e.Forward.Lookup(addr); ok {
		return fwd
	}

	words := e.Mover.Size(addr)

	age, tenureAge := 0, 15
	if e.AgeOf != nil {
		age, tenureAge = e.AgeOf(addr)
	}

	dest := ToSurvivor
	if age >= tenureAge {
		dest = ToOld
	}

	dst, _, err := e.Alloc.Allocate(workerID, dest, words)
	if err != nil {
		return SelfForward(e.Forward, addr)
	}

	winner, won := e.Forward.Install(addr, uint64(dst))
	if !won {
		return winner
	}

	e.Mover.CopyTo(addr, uint64(dst), words)

	if e.PushTask != nil {
		e.PushTask(uint64(dst))
	}

	return winner
}

// UpdateRefsOf rewrites every outgoing reference of the (already copied)
// object at addr, evacuating each referent via CopyAndPush as needed.
func (e *Evacuator) UpdateRefsOf(workerID int, addr uint64) {
	e.Mover.ForEachRef(addr, func(ref uint64) uint64 {
		return e.CopyAndPush(workerID, ref)
	})
}
