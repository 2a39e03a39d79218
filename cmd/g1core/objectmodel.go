package main

import (
	"github.com/orizon-lang/g1core/internal/heap"
	"github.com/orizon-lang/g1core/internal/remset"
)

// nullObjectModel is a stand-in for the object-layout collaborator §1
// explicitly leaves external: object/class layout and reference-
// processor policy are the embedding runtime's responsibility, not this
// engine's. This entry point has no mutator allocating real objects, so
// every phase package's narrow slice of that contract (mark.ObjectScanner,
// evac.ObjectMover, compact.HeaderIO/RefRewriter/Mover,
// evac.RootScanner/CardScanner) is satisfied here by a model with no
// objects and no roots, just enough to drive a full cycle over an empty
// heap end to end. A real embedder supplies its own implementation
// backed by its actual object headers.
type nullObjectModel struct{}

func (nullObjectModel) Size(addr uint64) uint64 { return 0 }

func (nullObjectModel) Scan(addr, start, length uint64, visit func(ref uint64)) (uint64, bool) {
	return 0, false
}

func (nullObjectModel) CopyTo(src, dst, words uint64) {}

func (nullObjectModel) ForEachRef(addr uint64, update func(ref uint64) uint64) {}

func (nullObjectModel) Words(addr uint64) uint64 { return 0 }

func (nullObjectModel) ReadHeaderWords(addr uint64) (uint64, uint64) { return 0, 0 }

func (nullObjectModel) WriteHeaderWords(addr uint64, word0, word1 uint64) {}

func (nullObjectModel) ScanRoots(update func(ref uint64) uint64) {}

func (nullObjectModel) ScanCard(c remset.CardAddr, update func(ref uint64) uint64) {}

func (nullObjectModel) ScanRegion(id heap.RegionID, update func(ref uint64) uint64) {}
