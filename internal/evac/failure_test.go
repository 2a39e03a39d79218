package evac

import (
	"testing"

	"github.com/orizon-lang/g1core/internal/heap"
)

func TestSelfForwardAndIsSelfForward(t *testing.T) {
	ft := NewForwardingTable()

	got := SelfForward(ft, 42)
	if got != 42 {
		t.Fatalf("SelfForward = %d, want 42", got)
	}

	if !IsSelfForward(ft, 42) {
		t.Fatal("expected IsSelfForward true")
	}

	ft2 := NewForwardingTable()
	ft2.Install(42, 100)

	if IsSelfForward(ft2, 42) {
		t.Fatal("expected IsSelfForward false for a real forward")
	}
}

func TestRemoveSelfForwardsRetainsAffectedRegions(t *testing.T) {
	g := buildTestGridForEvac(t, 2)

	id, err := g.AllocateRegion(heap.Old)
	if err != nil {
		t.Fatalf("AllocateRegion: %v", err)
	}

	r := g.Region(id)
	r.SetTop(r.Bottom() + 2) // two 1-word objects

	mover := &fakeMover{refs: map[uint64][]uint64{}}
	forward := NewForwardingTable()

	SelfForward(forward, uint64(r.Bottom())) // first object failed to evacuate

	var retained []heap.RegionID

	fr := &FailureRecovery{
		Grid:     g,
		Forward:  forward,
		Mover:    mover,
		Retained: func(rid heap.RegionID) { retained = append(retained, rid) },
	}

	fr.RemoveSelfForwards([]heap.RegionID{id})

	if len(retained) != 1 || retained[0] != id {
		t.Fatalf("expected region %v retained, got %+v", id, retained)
	}

	if r.Kind() != heap.Old {
		t.Fatalf("expected region kind Old after recovery, got %v", r.Kind())
	}

	if r.RemSetState() != heap.Complete {
		t.Fatalf("expected remset state Complete after recovery, got %v", r.RemSetState())
	}
}

func TestRemoveSelfForwardsSkipsRegionWithoutFailures(t *testing.T) {
	g := buildTestGridForEvac(t, 2)

	id, err := g.AllocateRegion(heap.Old)
	if err != nil {
		t.Fatalf("AllocateRegion: %v", err)
	}

	r := g.Region(id)
	r.SetTop(r.Bottom() + 1)

	mover := &fakeMover{refs: map[uint64][]uint64{}}
	forward := NewForwardingTable()

	var retained []heap.RegionID

	fr := &FailureRecovery{
		Grid:     g,
		Forward:  forward,
		Mover:    mover,
		Retained: func(rid heap.RegionID) { retained = append(retained, rid) },
	}

	fr.RemoveSelfForwards([]heap.RegionID{id})

	if len(retained) != 0 {
		t.Fatalf("expected no retained regions, got %+v", retained)
	}
}
