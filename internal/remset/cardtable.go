// Package remset implements the card-attribution side tables: the
// heap-wide card table and, per Old/Humongous region, an opaque card set
// recording which cards elsewhere in the heap hold references into it
// (§3.3, §4.2).
package remset

import (
	"sync/atomic"
)

// CardState is the per-card byte stored in the heap-wide card table.
type CardState uint8

const (
	Clean CardState = iota
	Dirty
	Young // covers a young region; never worth refining
)

// CardBytes is the fixed card size in bytes (§Glossary: "a small fixed
// span, typically 512 bytes").
const CardBytes = 512

// CardAddr is a card index within the whole heap's card table.
type CardAddr uint64

// CardTable is one byte per CardBytes-sized subregion of the heap,
// written by the mutator's post-write barrier (§6.4) and consumed by the
// refinement threads that translate dirty cards into CardSet insertions.
type CardTable struct {
	cards []atomic.Uint32 // CardState, one per card; Uint32 for portable CAS
	base  uint64          // heap base address in bytes
}

// NewCardTable allocates a table covering heapBytes bytes of heap
// starting at baseAddr.
func NewCardTable(baseAddr, heapBytes uint64) *CardTable {
	n := (heapBytes + CardBytes - 1) / CardBytes
	return &CardTable{cards: make([]atomic.Uint32, n), base: baseAddr}
}

// CardOf maps a byte address to its card index.
func (t *CardTable) CardOf(addr uint64) CardAddr {
	return CardAddr((addr - t.base) / CardBytes)
}

// Dirty marks the card covering addr as dirty (§6.4 post-write barrier).
func (t *CardTable) Dirty(addr uint64) {
	t.cards[t.CardOf(addr)].Store(uint32(Dirty))
}

// State returns the current state of a card.
func (t *CardTable) State(c CardAddr) CardState {
	return CardState(t.cards[c].Load())
}

// MarkYoung flags every card in [fromAddr, toAddr) as belonging to a young
// region, so refinement threads skip them outright.
func (t *CardTable) MarkYoung(fromAddr, toAddr uint64) {
	from, to := t.CardOf(fromAddr), t.CardOf(toAddr)
	for c := from; c < to; c++ {
		t.cards[c].Store(uint32(Young))
	}
}

// ClearRange resets every card in [fromAddr, toAddr) to Clean, used when a
// region is reclaimed or re-purposed.
func (t *CardTable) ClearRange(fromAddr, toAddr uint64) {
	from, to := t.CardOf(fromAddr), t.CardOf(toAddr)
	for c := from; c < to; c++ {
		t.cards[c].Store(uint32(Clean))
	}
}

// ClaimDirtyChunk scans [from, to) for dirty cards, clears each one it
// yields (so concurrent refinement doesn't reprocess it), and calls visit
// once per card address found. Used by the refinement pass that drains
// the mutator's post-write barrier output.
func (t *CardTable) ClaimDirtyChunk(from, to CardAddr, visit func(CardAddr)) {
	for c := from; c < to; c++ {
		if t.cards[c].CompareAndSwap(uint32(Dirty), uint32(Clean)) {
			visit(c)
		}
	}
}
