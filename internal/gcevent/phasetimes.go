package gcevent

import (
	"sort"
	"sync"
	"time"
)

// PhaseTimes accumulates per-phase, per-worker timing within one pause,
// grounded on original_source's g1Trace.hpp breakdown of a pause into
// named sub-phases (root-scan, object-copy, termination, …) rather than
// one opaque total (§C supplement).
type PhaseTimes struct {
	mu         sync.Mutex
	phases     map[string][]time.Duration // phase name -> per-worker durations
	numWorkers int
}

// NewPhaseTimes creates an empty accumulator sized for numWorkers.
func NewPhaseTimes(numWorkers int) *PhaseTimes {
	return &PhaseTimes{phases: make(map[string][]time.Duration), numWorkers: numWorkers}
}

// Record notes that workerID spent d on phase name.
func (p *PhaseTimes) Record(name string, workerID int, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	slice, ok := p.phases[name]
	if !ok {
		slice = make([]time.Duration, p.numWorkers)
	}

	if workerID >= 0 && workerID < len(slice) {
		slice[workerID] += d
	}

	p.phases[name] = slice
}

// Summary returns, per phase, the min/max/sum across workers — the same
// shape G1's phase-times logging reports.
type Summary struct {
	Name           string
	Min, Max, Mean time.Duration
	Sum            time.Duration
}

func (p *PhaseTimes) Summaries() []Summary {
	p.mu.Lock()
	defer p.mu.Unlock()

	names := make([]string, 0, len(p.phases))
	for n := range p.phases {
		names = append(names, n)
	}

	sort.Strings(names)

	out := make([]Summary, 0, len(names))

	for _, n := range names {
		durs := p.phases[n]
		if len(durs) == 0 {
			continue
		}

		s := Summary{Name: n, Min: durs[0], Max: durs[0]}
		for _, d := range durs {
			s.Sum += d

			if d < s.Min {
				s.Min = d
			}

			if d > s.Max {
				s.Max = d
			}
		}

		s.Mean = s.Sum / time.Duration(len(durs))
		out = append(out, s)
	}

	return out
}
