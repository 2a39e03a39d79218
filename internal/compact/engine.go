package compact

import (
	"context"

	"github.com/orizon-lang/g1core/internal/heap"
	"github.com/orizon-lang/g1core/internal/mark"
	"github.com/orizon-lang/g1core/internal/worker"
)

// EngineConfig wires every external collaborator the full-compaction
// backstop needs: the object model's header accessor, reference rewriter,
// and mover, plus the grid and worker pool it runs on (§6.1, §4.6).
type EngineConfig struct {
	Grid      *heap.Grid
	Pool      *worker.Pool
	Marker    *mark.Marker
	HeaderIO  HeaderIO
	Rewriter  RefRewriter
	Mover     Mover
	ScanRoots func(grey func(addr uint64))

	// ObjectStartGranularityWords sizes the object-start table built for
	// every surviving region; callers pick this to match their smallest
	// object alignment.
	ObjectStartGranularityWords uint64
}

// Engine drives one full-GC cycle end to end: mark, summarize, forward,
// adjust, compact (§4.6). Each parallel phase is a single pool.RunTask
// fan-out; the phases themselves run strictly in sequence because each
// depends on state the previous one finished writing (the forward table
// populated by phase 2 is read by both phase 3 and phase 4).
type Engine struct {
	cfg EngineConfig
}

func NewEngine(cfg EngineConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Run executes one full-compaction cycle and returns the surviving
// region list (now compacted, with tops advanced and object-start tables
// populated) so the caller can fold them back into the grid's free/old
// accounting.
func (e *Engine) Run(ctx context.Context) ([]CompactionRegion, map[heap.RegionID]*ObjectStartTable, error) {
	if err := FullMark(ctx, e.cfg.Pool, e.cfg.Marker, e.cfg.Grid, e.cfg.ScanRoots); err != nil {
		return nil, nil, err
	}

	regions := Summarize(e.cfg.Grid)

	table := NewForwardTable(e.cfg.HeaderIO)

	numWorkers := e.cfg.Pool.ActiveWorkers()

	if err := e.cfg.Pool.RunTask(ctx, func(workerID int) {
		AssignForwards(workerID, numWorkers, regions, e.cfg.Marker.Bitmap(), e.cfg.HeaderIO, table)
	}); err != nil {
		return nil, nil, err
	}

	if err := e.cfg.Pool.RunTask(ctx, func(workerID int) {
		AdjustPointers(workerID, numWorkers, regions, e.cfg.Marker.Bitmap(), e.cfg.HeaderIO, e.cfg.Grid, table, e.cfg.Rewriter)
	}); err != nil {
		return nil, nil, err
	}

	starts := make(map[heap.RegionID]*ObjectStartTable, len(regions))
	for _, r := range regions {
		words := uint64(r.End - r.Bottom)
		starts[r.ID] = NewObjectStartTable(uint64(r.Bottom), words, e.cfg.ObjectStartGranularityWords)
	}

	if err := e.cfg.Pool.RunTask(ctx, func(workerID int) {
		Compact(workerID, numWorkers, regions, e.cfg.Marker.Bitmap(), e.cfg.HeaderIO, e.cfg.Grid, table, e.cfg.Mover, starts)
	}); err != nil {
		return nil, nil, err
	}

	table.Clear()

	return regions, starts, nil
}
