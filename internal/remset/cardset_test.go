package remset

import "testing"

func TestCardSetCoarsensToRangesThenHowl(t *testing.T) {
	s := NewCardSet()

	for i := CardAddr(0); i < sparseToRangeThreshold+1; i++ {
		s.RecordReference(i, 0)
	}

	if s.kind != repRanges {
		t.Fatalf("kind = %v, want repRanges after exceeding sparse threshold", s.kind)
	}

	// Force enough disjoint ranges to trip the howl threshold.
	for i := 0; i < rangeToHowlThreshold+2; i++ {
		s.RecordReference(CardAddr((i+1)*100), 0)
	}

	if s.kind != repHowl {
		t.Fatalf("kind = %v, want repHowl after exceeding range threshold", s.kind)
	}

	isHowl := s.IterateForMerge(func(CardAddr) {
		t.Fatal("howl representation must not enumerate individual cards")
	})
	if !isHowl {
		t.Fatal("IterateForMerge should report isHowl=true")
	}
}

func TestCardSetIterateForMergeSparse(t *testing.T) {
	s := NewCardSet()
	s.RecordReference(5, 0)
	s.RecordReference(9, 0)

	seen := map[CardAddr]bool{}
	isHowl := s.IterateForMerge(func(c CardAddr) { seen[c] = true })

	if isHowl {
		t.Fatal("expected sparse representation, not howl")
	}

	if !seen[5] || !seen[9] {
		t.Fatalf("missing recorded cards, got %v", seen)
	}
}

func TestCardSetClearResetsToEmpty(t *testing.T) {
	s := NewCardSet()
	s.RecordReference(1, 0)
	s.Clear(false)

	if !s.IsEmpty() {
		t.Fatal("expected empty card set after Clear")
	}
}

func TestRegistryCreatesLazilyAndDrops(t *testing.T) {
	r := NewRegistry()

	a := r.For(3)
	b := r.For(3)

	if a != b {
		t.Fatal("For should return the same CardSet for repeated calls with the same region id")
	}

	r.Drop(3)

	c := r.For(3)
	if c == a {
		t.Fatal("expected a fresh CardSet after Drop")
	}
}

func TestCardTableDirtyAndClaim(t *testing.T) {
	ct := NewCardTable(0, 4096)

	ct.Dirty(600) // card 1 (600/512)

	var got []CardAddr
	ct.ClaimDirtyChunk(0, 8, func(c CardAddr) { got = append(got, c) })

	if len(got) != 1 || got[0] != 1 {
		t.Fatalf("got %v, want [1]", got)
	}

	if ct.State(1) != Clean {
		t.Fatal("claimed card should be cleared")
	}
}
