package gc

import (
	"context"

	"github.com/orizon-lang/g1core/internal/worker"
)

// ObjectHeader is the external object/header contract (§6.1). Every
// managed object must expose this; the collector never assumes a
// concrete layout and instead threads this interface through the phase
// packages that need it (mark.ObjectScanner, evac.ObjectMover,
// compact.HeaderIO/RefRewriter are each a narrower slice of this same
// contract, scoped to what that one phase actually touches).
type ObjectHeader interface {
	// Size returns the object's size in heap words. Must be callable on
	// a live object, a forwarded object, and a not-yet-scavenged object
	// with a swapped header.
	Size(addr uint64) uint64

	// Klass returns the object's class/type reference. Implementations
	// keep this available across a forwarding-pointer install, either by
	// storing it out-of-line or by preserving the klass bits through the
	// forward.
	Klass(addr uint64) KlassRef

	// OopIterate invokes do for every outgoing reference slot of the
	// object at addr; do may both read and rewrite the slot.
	OopIterate(addr uint64, do func(slot uint64) uint64)

	MarkWord(addr uint64) uint64
	SetMarkWord(addr uint64, w uint64)
	CASMarkWord(addr uint64, expected, new uint64) bool

	IsForwarded(addr uint64) bool
	Forwardee(addr uint64) uint64

	// InitMark resets the mark word to the prototype for this object's
	// class, undoing any forwarding/locking/age bits.
	InitMark(addr uint64)
}

// KlassRef is an opaque class/type handle; the collector never
// dereferences it beyond pointer/value equality (used to recognize the
// two special filler classes below).
type KlassRef uintptr

// FillerArrayKlass and FillerObjectKlass are recognizable by pointer
// equality and scan as zero references (§6.1).
var (
	FillerArrayKlass  KlassRef
	FillerObjectKlass KlassRef
)

func init() {
	// Distinct non-zero sentinels so neither collides with a real
	// KlassRef(0) and the two are distinguishable from each other.
	FillerArrayKlass = 1
	FillerObjectKlass = 2
}

// ReferenceTask supplies the per-worker closures the reference processor
// drives, in the order §6.2 specifies (is_alive, then keep_alive /
// enqueue_discovered_field as references are classified, then
// complete_gc to drive further marking to fixed point).
type ReferenceTask interface {
	IsAlive(addr uint64) bool
	KeepAlive(addr uint64)
	EnqueueDiscoveredField(addr uint64)
	CompleteGC()
}

// ReferenceStats summarizes one reference-processing round.
type ReferenceStats struct {
	SoftCleared    int
	WeakCleared    int
	FinalEnqueued  int
	PhantomCleared int
}

// ReferenceProcessor is the external reference-processor contract (§6.2).
// The collector supplies the ReferenceTask closures; the processor only
// sequences them according to its own soft/weak/final/phantom policy
// (clear-all-on-full, clear-on-request, clear-by-age — policy is out of
// scope here per §1, only the sequencing contract is specified).
type ReferenceProcessor interface {
	ProcessDiscoveredReferences(task ReferenceTask, phaseTimes PhaseTimesSink) ReferenceStats
}

// PhaseTimesSink is the minimal surface ReferenceProcessor needs to
// record timing without this package depending on gcevent's concrete
// type (avoids an import cycle: gcevent is the sink, gc is a producer).
type PhaseTimesSink interface {
	RecordSubPhase(name string, nanos int64)
}

// WeakProcessor is the external weak-processor contract (§6.3): iterate
// every registered weak-oop storage, invoking isAlive once per slot and
// clearing slots whose referent is dead. Safe to call from any STW
// phase.
type WeakProcessor interface {
	Process(ctx context.Context, pool *worker.Pool, isAlive func(addr uint64) bool) error
}
