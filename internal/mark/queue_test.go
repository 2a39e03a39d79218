package mark

import "testing"

func TestQueuePushPopLIFO(t *testing.T) {
	q := NewQueue()
	q.PushLocal(Task{Obj: 1})
	q.PushLocal(Task{Obj: 2})

	t1, ok := q.PopLocal()
	if !ok || t1.Obj != 2 {
		t.Fatalf("got %+v, want Obj=2", t1)
	}
}

func TestQueueStealFromFIFO(t *testing.T) {
	victim := NewQueue()
	victim.PushLocal(Task{Obj: 1})
	victim.PushLocal(Task{Obj: 2})

	thief := NewQueue()

	stolen, ok := thief.StealFrom(victim)
	if !ok || stolen.Obj != 1 {
		t.Fatalf("stole %+v, want Obj=1 (FIFO end)", stolen)
	}

	if victim.Len() != 1 {
		t.Fatalf("victim len = %d, want 1", victim.Len())
	}
}

func TestQueueDrainToTarget(t *testing.T) {
	q := NewQueue()
	for i := 0; i < 10; i++ {
		q.PushLocal(Task{Obj: uint64(i)})
	}

	var drained []Task
	q.DrainTo(3, func(t Task) { drained = append(drained, t) })

	if q.Len() != 3 {
		t.Fatalf("remaining len = %d, want 3", q.Len())
	}

	if len(drained) != 7 {
		t.Fatalf("drained %d entries, want 7", len(drained))
	}
}

func TestOverflowStackPushPopAndCap(t *testing.T) {
	s := NewOverflowStack(2)

	entries := make([]Task, chunkSize)

	if s.PushChunk(entries) {
		t.Fatal("first chunk should not overflow")
	}

	if s.PushChunk(entries) {
		t.Fatal("second chunk should not overflow (cap=2)")
	}

	if !s.PushChunk(entries) {
		t.Fatal("third chunk should overflow (cap=2)")
	}

	if !s.HasOverflowed() {
		t.Fatal("expected HasOverflowed to be true")
	}

	s.Reset()

	if s.HasOverflowed() {
		t.Fatal("expected overflow flag cleared after Reset")
	}

	if !s.IsEmpty() {
		t.Fatal("expected stack empty after Reset")
	}
}
