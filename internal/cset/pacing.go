package cset

import "sync"

// PacingPredictor tracks a running cost estimate for evacuation pauses,
// mirroring g1IHOPControl.cpp's role of smoothing past marking/allocation
// observations into a single predicted figure via an exponentially
// weighted moving average (not the full IHOP control loop — trigger
// policy for starting a marking cycle is out of scope here; this is
// purely the "how expensive was the last one, and the one before that"
// estimator). The engine feeds it through Observe after each evacuation
// pause; the chooser and the pruning step do not read
// PredictedPauseTimeNanos.
type PacingPredictor struct {
	mu     sync.Mutex
	alpha  float64
	warm   bool
	nanosPerByte float64
}

// NewPacingPredictor builds a predictor with the given smoothing factor;
// alpha closer to 1 weights recent samples more heavily.
func NewPacingPredictor(alpha float64) *PacingPredictor {
	if alpha <= 0 || alpha > 1 {
		alpha = 0.3
	}

	return &PacingPredictor{alpha: alpha}
}

// Observe records one pause's actual cost: copiedBytes bytes evacuated in
// elapsedNanos.
func (p *PacingPredictor) Observe(copiedBytes uint64, elapsedNanos int64) {
	if copiedBytes == 0 {
		return
	}

	sample := float64(elapsedNanos) / float64(copiedBytes)

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.warm {
		p.nanosPerByte = sample
		p.warm = true

		return
	}

	p.nanosPerByte = p.alpha*sample + (1-p.alpha)*p.nanosPerByte
}

// PredictedPauseTimeNanos estimates how long copying copyBytes would take,
// based on past observations. Returns 0 until at least one sample has
// been recorded (callers should treat that as "no prediction available"
// rather than "instant").
func (p *PacingPredictor) PredictedPauseTimeNanos(copyBytes uint64) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.warm {
		return 0
	}

	return int64(p.nanosPerByte * float64(copyBytes))
}
