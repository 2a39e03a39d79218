// Package config holds the tunables the collector exposes as
// constants/parameters elsewhere in this tree (GrainWords,
// live_threshold_percent, allowed_waste, min_old_cset_length,
// MarkSweepDeadRatio, keep_pinned_count, worker counts, chunk sizes, time
// targets), loaded from JSON and hot-reloadable via Watcher.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Tunables is the full set of operator-adjustable GC knobs. Field names
// mirror the identifiers spec.md uses for each value; JSON tags use the
// same snake_case the teacher's own cmd/orizon-config ProjectConfig uses
// for its on-disk format.
type Tunables struct {
	// Heap shape (§3.1). Changing GrainWords or MaxRegions requires a
	// fresh heap.Grid; Load/Validate only check these are sane, they do
	// not re-carve an already-reserved heap.
	GrainWords uint64 `json:"grain_words"`
	MaxRegions uint32 `json:"max_regions"`

	// Marking-candidate selection (§4.4).
	LiveThresholdPercent int    `json:"live_threshold_percent"`
	MinOldCSetLength     int    `json:"min_old_cset_length"`
	AllowedWaste         uint64 `json:"allowed_waste"`
	KeepPinnedCount      uint32 `json:"keep_pinned_count"`

	// MarkSweepDeadRatio is the legacy dense-prefix waste budget
	// (§4.6.1, `MarkSweepDeadRatio × old_capacity / 100`). The forward-
	// first compaction pipeline this repo implements has no dense-prefix
	// selection step (see DESIGN.md), so this value is accepted and
	// validated but otherwise unused; it is kept on the wire format so a
	// config file shared with a dense-prefix implementation still loads.
	MarkSweepDeadRatio int `json:"mark_sweep_dead_ratio"`

	// Worker pool and marking (§5, §3.2).
	MaxWorkers         int    `json:"max_workers"`
	OverflowMaxChunk   int    `json:"overflow_max_chunk"`
	ClockIntervalWords uint64 `json:"clock_interval_words"`

	// MarkStepTargetMillis bounds one DoMarkingStep call's time budget
	// (§4.3.3). Stored in milliseconds since JSON has no duration type;
	// MarkStepTarget converts it.
	MarkStepTargetMillis int64 `json:"mark_step_target_millis"`
}

// MarkStepTarget converts MarkStepTargetMillis to a time.Duration.
func (t Tunables) MarkStepTarget() time.Duration {
	return time.Duration(t.MarkStepTargetMillis) * time.Millisecond
}

// Default returns the tunables this repo ships with absent a config
// file.
func Default() Tunables {
	return Tunables{
		GrainWords:           1 << 20,
		MaxRegions:           2048,
		LiveThresholdPercent: 85,
		MinOldCSetLength:     4,
		AllowedWaste:         1 << 20,
		KeepPinnedCount:      3,
		MarkSweepDeadRatio:   20,
		MaxWorkers:           8,
		OverflowMaxChunk:     256,
		ClockIntervalWords:   1 << 16,
		MarkStepTargetMillis: 10,
	}
}

// Validate rejects tunables that would violate an invariant downstream
// packages assume rather than re-check (§9: GrainWords must be a power
// of two, percentages must fit in [0, 100]).
func (t Tunables) Validate() error {
	if t.GrainWords == 0 || t.GrainWords&(t.GrainWords-1) != 0 {
		return fmt.Errorf("config: grain_words must be a power of two, got %d", t.GrainWords)
	}

	if t.MaxRegions == 0 {
		return fmt.Errorf("config: max_regions must be positive")
	}

	if t.LiveThresholdPercent < 0 || t.LiveThresholdPercent > 100 {
		return fmt.Errorf("config: live_threshold_percent must be in [0, 100], got %d", t.LiveThresholdPercent)
	}

	if t.MarkSweepDeadRatio < 0 || t.MarkSweepDeadRatio > 100 {
		return fmt.Errorf("config: mark_sweep_dead_ratio must be in [0, 100], got %d", t.MarkSweepDeadRatio)
	}

	if t.MaxWorkers <= 0 {
		return fmt.Errorf("config: max_workers must be positive")
	}

	if t.OverflowMaxChunk <= 0 {
		return fmt.Errorf("config: overflow_max_chunk must be positive")
	}

	if t.MarkStepTargetMillis <= 0 {
		return fmt.Errorf("config: mark_step_target_millis must be positive")
	}

	return nil
}

// Load reads and validates tunables from path.
func Load(path string) (Tunables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Tunables{}, err
	}

	t := Default()
	if err := json.Unmarshal(data, &t); err != nil {
		return Tunables{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := t.Validate(); err != nil {
		return Tunables{}, err
	}

	return t, nil
}

// Save writes t to path as indented JSON, creating parent directories as
// needed.
func Save(path string, t Tunables) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	return os.WriteFile(path, data, 0o644)
}
