package cset

import "testing"

func TestPacingPredictorNoPredictionBeforeFirstObservation(t *testing.T) {
	p := NewPacingPredictor(0.3)

	if got := p.PredictedPauseTimeNanos(1024); got != 0 {
		t.Fatalf("PredictedPauseTimeNanos before any Observe = %d, want 0", got)
	}
}

func TestPacingPredictorTracksConstantRate(t *testing.T) {
	p := NewPacingPredictor(0.5)

	// 1 byte per nanosecond, repeated until the EMA converges.
	for i := 0; i < 20; i++ {
		p.Observe(1000, 1000)
	}

	got := p.PredictedPauseTimeNanos(500)
	if got < 450 || got > 550 {
		t.Fatalf("PredictedPauseTimeNanos(500) = %d, want close to 500", got)
	}
}

func TestPacingPredictorIgnoresZeroByteObservation(t *testing.T) {
	p := NewPacingPredictor(0.5)

	p.Observe(1000, 1000)
	p.Observe(0, 5000) // must not corrupt the running estimate

	got := p.PredictedPauseTimeNanos(1000)
	if got != 1000 {
		t.Fatalf("PredictedPauseTimeNanos(1000) after zero-byte Observe = %d, want 1000", got)
	}
}
