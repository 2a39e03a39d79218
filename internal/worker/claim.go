package worker

import "sync/atomic"

// SequentialSubTasksDone hands out dynamically-partitioned sequential
// task indices (striding), grounded on
// original_source/.../gc/shared/workerUtils.hpp's class of the same name.
// Used for the handful of "every worker must run this exact step once,
// claimed in order" moments the spec calls out — e.g. each worker
// flushing its mark-stats cache into the global per-region live-bytes
// array during remark (§4.3.7 step 6).
type SequentialSubTasksDone struct {
	numTasks uint32
	claimed  atomic.Uint32
}

// NewSequentialSubTasksDone creates a claimer for numTasks sequential
// indices.
func NewSequentialSubTasksDone(numTasks uint32) *SequentialSubTasksDone {
	return &SequentialSubTasksDone{numTasks: numTasks}
}

// TryClaimTask claims the next unclaimed index in sequence. Returns false
// once every index has been claimed.
func (s *SequentialSubTasksDone) TryClaimTask() (idx uint32, ok bool) {
	for {
		cur := s.claimed.Load()
		if cur >= s.numTasks {
			return 0, false
		}

		if s.claimed.CompareAndSwap(cur, cur+1) {
			return cur, true
		}
	}
}

// SubTasksDone claims tasks identified by arbitrary enumeration values
// rather than a dense sequence, grounded on the same header's
// SubTasksDone. Used when the task set is a small fixed enum (e.g. "root
// category X has been scanned") rather than "region index 0..N".
type SubTasksDone struct {
	claimed []atomic.Bool
}

// NewSubTasksDone creates a claimer for n independently-claimable tasks.
func NewSubTasksDone(n int) *SubTasksDone {
	return &SubTasksDone{claimed: make([]atomic.Bool, n)}
}

// TryClaimTask attempts to claim task t, returning true only for the
// first caller.
func (s *SubTasksDone) TryClaimTask(t int) bool {
	return s.claimed[t].CompareAndSwap(false, true)
}
