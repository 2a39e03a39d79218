package cset

import (
	"testing"

	"github.com/orizon-lang/g1core/internal/heap"
)

func TestNewCollectionSetLayout(t *testing.T) {
	eden := []heap.RegionID{1, 2, 3}
	survivor := []heap.RegionID{4}

	cs := NewCollectionSet(eden, survivor)

	if cs.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", cs.Len())
	}

	if len(cs.Eden()) != 3 || cs.Eden()[0] != 1 {
		t.Fatalf("Eden() = %+v", cs.Eden())
	}

	if len(cs.Survivor()) != 1 || cs.Survivor()[0] != 4 {
		t.Fatalf("Survivor() = %+v", cs.Survivor())
	}

	if len(cs.Old()) != 0 {
		t.Fatalf("Old() should be empty before AddInitialOld, got %+v", cs.Old())
	}
}

func TestAddInitialOldPreservesYoungPrecedesOld(t *testing.T) {
	cs := NewCollectionSet([]heap.RegionID{1}, []heap.RegionID{2})
	cs.AddInitialOld(10)
	cs.AddInitialOld(11)

	if cs.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", cs.Len())
	}

	old := cs.Old()
	if len(old) != 2 || old[0] != 10 || old[1] != 11 {
		t.Fatalf("Old() = %+v, want [10 11]", old)
	}

	if !cs.Contains(1) || !cs.Contains(11) {
		t.Fatal("expected Contains true for both young and old members")
	}

	if cs.Contains(999) {
		t.Fatal("expected Contains false for a region never added")
	}
}

func TestPromoteOptionalMovesRegionIntoActiveSet(t *testing.T) {
	cs := NewCollectionSet(nil, nil)
	cs.AddOptionalOld(20)
	cs.AddOptionalOld(21)

	id, ok := cs.PromoteOptional()
	if !ok || id != 20 {
		t.Fatalf("PromoteOptional() = (%v, %v), want (20, true)", id, ok)
	}

	if cs.InitialOldLen != 1 || cs.Len() != 1 {
		t.Fatalf("expected promoted region folded into active set, InitialOldLen=%d Len=%d", cs.InitialOldLen, cs.Len())
	}

	if len(cs.OptionalOld) != 1 || cs.OptionalOld[0] != 21 {
		t.Fatalf("expected region 21 still pending, got %+v", cs.OptionalOld)
	}

	if !cs.Contains(20) {
		t.Fatal("expected promoted region to satisfy Contains")
	}
}

func TestPromoteOptionalEmptyReturnsFalse(t *testing.T) {
	cs := NewCollectionSet(nil, nil)

	if _, ok := cs.PromoteOptional(); ok {
		t.Fatal("expected PromoteOptional to fail on empty OptionalOld list")
	}
}
