package mark

import "sync"

// chunkSize is the number of entries per overflow-stack chunk (§3.5: "N
// entries, e.g. 1024").
const chunkSize = 1024

type chunk struct {
	entries [chunkSize]Task
	n       int
}

// OverflowStack is the global append-only mark stack: a growing list of
// fixed-size chunks. Push/pop operate on the chunk list; allocating a new
// chunk grows a bucket array in doubling steps up to maxChunks. Reaching
// the cap signals overflow (§3.5, §4.3.6) rather than growing further.
type OverflowStack struct {
	mu        sync.Mutex
	buckets   []*chunk // doubling-capacity bucket array
	maxChunks int

	overflowed bool
}

// NewOverflowStack creates an empty stack that may grow to at most
// maxChunks chunks (maxChunks*chunkSize entries) before signaling
// overflow.
func NewOverflowStack(maxChunks int) *OverflowStack {
	if maxChunks < 1 {
		maxChunks = 1
	}

	return &OverflowStack{maxChunks: maxChunks}
}

// PushChunk appends a full chunk's worth of entries in one step —
// workers hand over whole chunks, not individual entries, to keep the
// chunk-list lock contended only rarely (§5: "chunk allocation uses a
// mutex because it may grow the bucket array").
func (s *OverflowStack) PushChunk(entries []Task) (overflowed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.buckets) >= s.maxChunks {
		s.overflowed = true
		return true
	}

	c := &chunk{}
	c.n = copy(c.entries[:], entries)
	s.buckets = append(s.buckets, c)

	return false
}

// PopChunk removes and returns the most recently pushed chunk's entries,
// or (nil, false) if the stack is empty.
func (s *OverflowStack) PopChunk() ([]Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.buckets)
	if n == 0 {
		return nil, false
	}

	c := s.buckets[n-1]
	s.buckets = s.buckets[:n-1]

	return append([]Task(nil), c.entries[:c.n]...), true
}

// HasOverflowed reports whether the cap was reached since the last Reset.
func (s *OverflowStack) HasOverflowed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.overflowed
}

// Reset clears all chunks and the overflow flag; called by worker 0
// during the two-phase overflow-recovery barrier (§4.3.6).
func (s *OverflowStack) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buckets = nil
	s.overflowed = false
}

// IsEmpty reports whether the stack holds no chunks.
func (s *OverflowStack) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.buckets) == 0
}
