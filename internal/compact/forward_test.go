package compact

import (
	"testing"

	"github.com/orizon-lang/g1core/internal/heap"
)

func TestEncodeDecodeHeaderRoundTrip(t *testing.T) {
	cases := []ForwardHeader{
		{DestRegion: 0, DestOffset: 0},
		{DestRegion: 7, DestOffset: 1234},
		{DestRegion: heap.RegionID(^uint32(0) >> 1), DestOffset: 0xdeadbeef},
	}

	for _, h := range cases {
		w0, w1 := EncodeHeader(h)

		got, ok := DecodeHeader(w0, w1)
		if !ok {
			t.Fatalf("DecodeHeader(%x, %x) reported not-forwarded for %+v", w0, w1, h)
		}

		if got != h {
			t.Fatalf("round trip = %+v, want %+v", got, h)
		}
	}
}

func TestDecodeHeaderRejectsUntaggedWord(t *testing.T) {
	if _, ok := DecodeHeader(0, 0); ok {
		t.Fatal("DecodeHeader(0, 0) should report not-forwarded")
	}
}

// fakeHeaderIO is a tiny object model: every object is wordsPerObj words,
// with a two-word mutable header at its own address.
type fakeHeaderIO struct {
	wordsPerObj uint64
	headers     map[uint64][2]uint64
}

func newFakeHeaderIO(wordsPerObj uint64) *fakeHeaderIO {
	return &fakeHeaderIO{wordsPerObj: wordsPerObj, headers: make(map[uint64][2]uint64)}
}

func (f *fakeHeaderIO) Words(addr uint64) uint64 { return f.wordsPerObj }

func (f *fakeHeaderIO) ReadHeaderWords(addr uint64) (uint64, uint64) {
	h := f.headers[addr]
	return h[0], h[1]
}

func (f *fakeHeaderIO) WriteHeaderWords(addr uint64, w0, w1 uint64) {
	f.headers[addr] = [2]uint64{w0, w1}
}

func TestForwardTableUsesHeaderEncodingWhenObjectIsTwoWordsOrMore(t *testing.T) {
	io := newFakeHeaderIO(2)
	table := NewForwardTable(io)

	dest := ForwardHeader{DestRegion: 3, DestOffset: 16}
	table.Install(40, dest)

	got, ok := table.Lookup(40)
	if !ok || got != dest {
		t.Fatalf("Lookup = (%+v, %v), want (%+v, true)", got, ok, dest)
	}

	if len(io.headers) != 1 {
		t.Fatalf("expected header write for a two-word object, got %d header writes", len(io.headers))
	}
}

func TestForwardTableFallsBackForSubTwoWordObjects(t *testing.T) {
	io := newFakeHeaderIO(1)
	table := NewForwardTable(io)

	dest := ForwardHeader{DestRegion: 1, DestOffset: 8}
	table.Install(40, dest)

	if len(io.headers) != 0 {
		t.Fatalf("one-word object must not use the header path, got %d header writes", len(io.headers))
	}

	got, ok := table.Lookup(40)
	if !ok || got != dest {
		t.Fatalf("Lookup = (%+v, %v), want (%+v, true)", got, ok, dest)
	}
}

func TestForwardTableClearDropsFallbackEntries(t *testing.T) {
	io := newFakeHeaderIO(1)
	table := NewForwardTable(io)

	table.Install(40, ForwardHeader{DestRegion: 1, DestOffset: 8})
	table.Clear()

	if _, ok := table.Lookup(40); ok {
		t.Fatal("Lookup should fail after Clear")
	}
}
