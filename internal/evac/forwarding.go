package evac

import "sync"

// ForwardingTable stands in for the header-embedded forwarding pointer
// HotSpot installs directly on the object (g1EvacFailure.hpp): since the
// object layout here is an external collaborator (§6.1), evacuation
// records the from->to mapping in a side table instead of mutating
// object headers it does not own.
//
// Install behaves like a CAS on the object header: the first caller for
// a given `from` wins and every other caller observes the same winning
// `to`, which is what lets two workers race to evacuate the same object
// without double-copying (§4.5 copy-and-push).
type ForwardingTable struct {
	m sync.Map // uint64 -> uint64
}

func NewForwardingTable() *ForwardingTable { return &ForwardingTable{} }

// Install attempts to record from->to. It returns the winning
// destination (which may belong to a different caller) and whether this
// call was the winner.
func (t *ForwardingTable) Install(from, to uint64) (winningTo uint64, won bool) {
	actual, loaded := t.m.LoadOrStore(from, to)
	return actual.(uint64), !loaded
}

// Lookup returns the forwarding destination for from, if any.
func (t *ForwardingTable) Lookup(from uint64) (uint64, bool) {
	v, ok := t.m.Load(from)
	if !ok {
		return 0, false
	}

	return v.(uint64), true
}

// Clear drops every recorded mapping. Called between evacuation pauses;
// a stale mapping would otherwise be read as "already evacuated" in a
// later, unrelated pause.
func (t *ForwardingTable) Clear() {
	t.m.Range(func(k, _ any) bool {
		t.m.Delete(k)
		return true
	})
}
