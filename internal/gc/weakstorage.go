package gc

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/orizon-lang/g1core/internal/worker"
)

// weakStorageBlockSlots is the number of slots per block, one bit per
// slot in the block's allocated-bitmask — grounded on
// oopStorage.cpp's Block, which packs BitsPerWord entries per block and
// tracks occupancy with a single CAS'd bitmask.
const weakStorageBlockSlots = 64

// weakBlock is one fixed-capacity segment of slots.
type weakBlock struct {
	slots     [weakStorageBlockSlots]uint64
	allocated atomic.Uint64 // bit i set => slots[i] holds a live entry
}

// allocate claims the first free slot in the block via the same
// CAS-the-bitmask loop oopStorage.cpp's Block::allocate uses, returning
// its index and false if the block is full.
func (b *weakBlock) allocate(addr uint64) (index int, ok bool) {
	for {
		cur := b.allocated.Load()
		if cur == ^uint64(0) {
			return 0, false
		}

		idx := trailingZerosComplement(cur)
		next := cur | (uint64(1) << idx)

		if b.allocated.CompareAndSwap(cur, next) {
			b.slots[idx] = addr
			return idx, true
		}
	}
}

func trailingZerosComplement(bitmask uint64) int {
	inv := ^bitmask
	n := 0

	for inv&1 == 0 {
		inv >>= 1
		n++
	}

	return n
}

func (b *weakBlock) release(index int) {
	for {
		cur := b.allocated.Load()
		next := cur &^ (uint64(1) << index)

		if b.allocated.CompareAndSwap(cur, next) {
			return
		}
	}
}

// WeakStorage is a minimal segmented-array weak-oop storage implementing
// the §6.3 contract, grounded on oopStorage.cpp's block-list-of-slots
// structure generalized to a growable slice of blocks rather than an
// intrusive free/allocate list (this package has no policy need for
// oopStorage's block-reuse list, only the "iterate and clear dead
// entries" operation the weak processor contract requires).
type WeakStorage struct {
	mu     sync.Mutex
	blocks []*weakBlock
}

func NewWeakStorage() *WeakStorage {
	return &WeakStorage{}
}

// Register adds a new weak slot holding addr, returning a handle the
// caller can later use with Unregister.
func (s *WeakStorage) Register(addr uint64) (blockIdx, slotIdx int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, b := range s.blocks {
		if idx, ok := b.allocate(addr); ok {
			return i, idx
		}
	}

	b := &weakBlock{}
	idx, _ := b.allocate(addr)
	s.blocks = append(s.blocks, b)

	return len(s.blocks) - 1, idx
}

// Unregister frees a previously registered slot.
func (s *WeakStorage) Unregister(blockIdx, slotIdx int) {
	s.mu.Lock()
	b := s.blocks[blockIdx]
	s.mu.Unlock()

	b.release(slotIdx)
}

// Process implements the WeakProcessor contract (§6.3): iterate every
// slot across every block, calling isAlive once per occupied slot and
// clearing ones whose referent is dead. Blocks are processed in a single
// worker-pool dispatch, striped across workers by worker id, matching the
// "safe to call from any STW phase" requirement by doing no allocation
// and taking no lock per slot (only release() CASes the bitmask).
func (s *WeakStorage) Process(ctx context.Context, pool *worker.Pool, isAlive func(addr uint64) bool) error {
	s.mu.Lock()
	blocks := append([]*weakBlock(nil), s.blocks...)
	s.mu.Unlock()

	numWorkers := pool.ActiveWorkers()

	return pool.RunTask(ctx, func(workerID int) {
		for i := workerID; i < len(blocks); i += numWorkers {
			b := blocks[i]
			mask := b.allocated.Load()

			for idx := 0; idx < weakStorageBlockSlots; idx++ {
				if mask&(uint64(1)<<idx) == 0 {
					continue
				}

				if !isAlive(b.slots[idx]) {
					b.release(idx)
				}
			}
		}
	})
}

// Len returns the total number of occupied slots across all blocks, for
// tests and diagnostics.
func (s *WeakStorage) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0

	for _, b := range s.blocks {
		n += popcount64(b.allocated.Load())
	}

	return n
}

func popcount64(v uint64) int {
	n := 0

	for v != 0 {
		v &= v - 1
		n++
	}

	return n
}
