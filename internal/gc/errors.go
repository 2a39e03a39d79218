// Package gc implements the outer collector state machine (§2) and the
// external-collaborator contracts (§6.1-§6.4) every phase package treats
// as an abstract seam: object headers, reference processing, weak
// storage, and the mutator write barriers that feed SATB and the card
// table.
package gc

import (
	"errors"
	"fmt"
)

// Error kinds per §7's taxonomy. Each is a distinct sentinel so callers
// can errors.Is against the kind without parsing a generic message.
var (
	// ErrAllocationExhausted is raised by the region manager or a
	// promotion lab when no Free region remains and the committed heap
	// cannot expand. Recoverable: the caller retries after expansion, or
	// escalates to the next phase (young -> mixed -> full).
	ErrAllocationExhausted = errors.New("gc: allocation exhausted")

	// ErrMarkStackOverflow is raised by the global mark stack's push path
	// when every chunk bucket is exhausted. Recoverable: abort the
	// current cycle and request a new concurrent-mark cycle.
	ErrMarkStackOverflow = errors.New("gc: mark stack overflow")

	// ErrEvacuationFailure is raised per object when destination
	// allocation fails during copy-and-push. Recoverable locally (the
	// object self-forwards); cumulative failures across a pause trigger
	// a full GC.
	ErrEvacuationFailure = errors.New("gc: evacuation failure")

	// ErrSafepointTimeout is raised when a handshake or barrier sync
	// fails to complete. Fatal: there is no local handling.
	ErrSafepointTimeout = errors.New("gc: safepoint timeout")

	// ErrInvariantViolation is raised when a region fails the
	// bottom <= TAMS <= top <= end check that RunFullGC performs after
	// compaction. Fatal; the check runs in every build.
	ErrInvariantViolation = errors.New("gc: invariant violation")

	// ErrReferenceProcessingOverflow is raised by the reference
	// processor's complete_gc step when its own work queue overflows.
	// Handled the same way as ErrMarkStackOverflow.
	ErrReferenceProcessingOverflow = errors.New("gc: reference processing overflow")
)

// Recoverable reports whether err's kind is one of the three phase-level
// recoverable kinds (§7 propagation policy): AllocationExhausted,
// MarkStackOverflow, EvacuationFailure. Everything else — safepoint
// timeout, invariant violation, reference-processing overflow — is fatal
// or handled identically to MarkStackOverflow by the caller, never
// silently absorbed.
func Recoverable(err error) bool {
	return errors.Is(err, ErrAllocationExhausted) ||
		errors.Is(err, ErrMarkStackOverflow) ||
		errors.Is(err, ErrEvacuationFailure)
}

// Fatal reports whether err must terminate the process with a diagnostic
// dump rather than be handled by any phase (§7, §9: "invariant failures
// are unrecoverable").
func Fatal(err error) bool {
	return errors.Is(err, ErrSafepointTimeout) || errors.Is(err, ErrInvariantViolation)
}

// WrapPhase annotates err with the phase it occurred in, preserving the
// sentinel for errors.Is the way region_alloc.go wraps heap.ErrHeapExhausted.
func WrapPhase(phase Phase, err error) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("gc: phase %s: %w", phase, err)
}
