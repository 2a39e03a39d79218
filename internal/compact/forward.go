package compact

import (
	"sync"

	"github.com/orizon-lang/g1core/internal/heap"
)

// forwardedTagBit marks word0 of a header encoding as holding a valid
// forward, distinguishing it from an object's ordinary (untouched)
// header contents.
const forwardedTagBit = uint64(1) << 63

// ForwardHeader is the destination a compacted object moves to: which
// region, and its word offset from that region's bottom.
type ForwardHeader struct {
	DestRegion heap.RegionID
	DestOffset uint64
}

// EncodeHeader packs h into the two header words HotSpot would install
// directly on the object (§9 Open Question: two-word-header model). word0
// carries the tag bit plus the destination region id; word1 carries the
// full destination word offset.
func EncodeHeader(h ForwardHeader) (word0, word1 uint64) {
	return forwardedTagBit | uint64(h.DestRegion), h.DestOffset
}

// DecodeHeader is EncodeHeader's inverse; ok is false if word0 doesn't
// carry the forwarded tag (§8 property 5: encode/decode round-trip).
func DecodeHeader(word0, word1 uint64) (ForwardHeader, bool) {
	if word0&forwardedTagBit == 0 {
		return ForwardHeader{}, false
	}

	return ForwardHeader{DestRegion: heap.RegionID(word0 &^ forwardedTagBit), DestOffset: word1}, true
}

// HeaderIO is the external object-header collaborator (§6.1): the two
// header words of an object at addr, and the object's size in words (an
// object shorter than two words can't hold the encoding and must use the
// fallback table instead).
type HeaderIO interface {
	Words(addr uint64) uint64
	ReadHeaderWords(addr uint64) (word0, word1 uint64)
	WriteHeaderWords(addr uint64, word0, word1 uint64)
}

// ForwardTable installs and resolves forwards, preferring the
// header-encoded path and falling back to a side table (grounded on
// evac.ForwardingTable's sync.Map idiom) for objects too small to carry
// the two-word encoding.
type ForwardTable struct {
	io       HeaderIO
	fallback sync.Map // uint64(addr) -> ForwardHeader
}

func NewForwardTable(io HeaderIO) *ForwardTable {
	return &ForwardTable{io: io}
}

// Install records addr's destination, using the header-encoded path when
// the object is at least two words, the table otherwise.
func (t *ForwardTable) Install(addr uint64, dest ForwardHeader) {
	if t.io.Words(addr) >= 2 {
		w0, w1 := EncodeHeader(dest)
		t.io.WriteHeaderWords(addr, w0, w1)

		return
	}

	t.fallback.Store(addr, dest)
}

// Lookup resolves addr's forward, if any, trying the header-encoded path
// first.
func (t *ForwardTable) Lookup(addr uint64) (ForwardHeader, bool) {
	if t.io.Words(addr) >= 2 {
		w0, w1 := t.io.ReadHeaderWords(addr)
		return DecodeHeader(w0, w1)
	}

	v, ok := t.fallback.Load(addr)
	if !ok {
		return ForwardHeader{}, false
	}

	return v.(ForwardHeader), true
}

// Clear discards every fallback-table mapping between full-GC cycles.
// Forwards encoded in object headers are not touched.
func (t *ForwardTable) Clear() {
	t.fallback.Range(func(k, _ any) bool {
		t.fallback.Delete(k)
		return true
	})
}
