package mark

import "sync"

// TaskKind distinguishes a plain object reference from a chunked
// array-slice descriptor (§3.5).
type TaskKind uint8

const (
	TaskObject TaskKind = iota
	TaskSlice
)

// Task is one mark-queue entry: either an object reference or an
// array-slice descriptor {base, start, length}. Exactly 2 words on a
// 64-bit platform in the original design; here it is a small fixed
// struct, deliberately kept free of pointers to heap-owned data beyond
// the addresses themselves.
type Task struct {
	Kind   TaskKind
	Obj    uint64 // object header address (TaskObject) or array base (TaskSlice)
	Start  uint64 // first slot index to scan (TaskSlice only)
	Length uint64 // number of slots to scan from Start (TaskSlice only)
}

// Queue is a worker-owned deque supporting owner push/pop at one end and
// steals from the other, grounded on the Chase-Lev discipline named in
// §4.7 and on the local/global split in the pack's mgcwork.go (push
// local, overflow to a shared structure when full). Unlike a textbook
// Chase-Lev ring buffer, g1core's queue grows unbounded via a backing
// slice guarded by a mutex — mark queues are per-worker and short-lived
// per pause, so the extra generality of a lock-free ring is not worth the
// complexity budget here; the mutex only ever contends with steals, which
// are rare relative to owner push/pop.
type Queue struct {
	mu    sync.Mutex
	items []Task
}

func NewQueue() *Queue { return &Queue{} }

// PushLocal appends to the owner end.
func (q *Queue) PushLocal(t Task) {
	q.mu.Lock()
	q.items = append(q.items, t)
	q.mu.Unlock()
}

// PopLocal removes from the owner end (LIFO, for cache locality on
// recently-grayed objects).
func (q *Queue) PopLocal() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.items)
	if n == 0 {
		return Task{}, false
	}

	t := q.items[n-1]
	q.items = q.items[:n-1]

	return t, true
}

// StealFrom removes one entry from the victim's non-owner end (FIFO, so
// steals and owner pops rarely race on the same entry).
func (q *Queue) StealFrom(victim *Queue) (Task, bool) {
	victim.mu.Lock()
	defer victim.mu.Unlock()

	if len(victim.items) == 0 {
		return Task{}, false
	}

	t := victim.items[0]
	victim.items = victim.items[1:]

	return t, true
}

// Len reports the current local depth (racy snapshot; used only for
// heuristics such as "drain to a target size").
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}

// DrainTo pops from the owner end until the queue's length is at most
// target, invoking fn for each popped entry. Used to partially drain into
// the global overflow stack while leaving work for other workers to steal
// (§4.3.3 step 2).
func (q *Queue) DrainTo(target int, fn func(Task)) {
	for {
		q.mu.Lock()
		if len(q.items) <= target {
			q.mu.Unlock()
			return
		}

		n := len(q.items)
		t := q.items[n-1]
		q.items = q.items[:n-1]
		q.mu.Unlock()

		fn(t)
	}
}
