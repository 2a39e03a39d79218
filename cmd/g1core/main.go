// Command g1core is the process entry point wiring internal/heap,
// internal/mark, internal/cset, internal/evac, internal/compact, and
// internal/gc into one running collector, grounded on cmd/orizon-config's
// flag-driven shape (flag.StringVar + custom flag.Usage, plain funcs
// returning error rather than a framework CLI).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/orizon-lang/g1core/internal/compact"
	"github.com/orizon-lang/g1core/internal/config"
	"github.com/orizon-lang/g1core/internal/cset"
	"github.com/orizon-lang/g1core/internal/evac"
	"github.com/orizon-lang/g1core/internal/gc"
	"github.com/orizon-lang/g1core/internal/gcevent"
	"github.com/orizon-lang/g1core/internal/heap"
	"github.com/orizon-lang/g1core/internal/mark"
	"github.com/orizon-lang/g1core/internal/remset"
	"github.com/orizon-lang/g1core/internal/worker"
)

func main() {
	var (
		configFile string
		initConfig bool
		cycles     int
	)

	flag.StringVar(&configFile, "config", "g1core.json", "tuning file path (hot-reloaded)")
	flag.BoolVar(&initConfig, "init-config", false, "write a default tuning file to -config and exit")
	flag.IntVar(&cycles, "cycles", 1, "number of young-pause + full-GC demonstration cycles to run")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "g1core: region-based generational collector engine.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if initConfig {
		if err := config.Save(configFile, config.Default()); err != nil {
			exitWithError("failed to write default config: %v", err)
		}

		fmt.Printf("wrote default tuning file: %s\n", configFile)

		return
	}

	if err := run(configFile, cycles); err != nil {
		exitWithError("%v", err)
	}
}

func exitWithError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "g1core: "+format+"\n", args...)
	os.Exit(1)
}

func run(configFile string, cycles int) error {
	events := gcevent.NewBus(256, gcevent.Info)
	events.AddSink(gcevent.TextSink{Write: func(line string) { fmt.Println(line) }})

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		if err := config.Save(configFile, config.Default()); err != nil {
			return fmt.Errorf("write initial config: %w", err)
		}
	}

	watcher, err := config.NewWatcher(configFile, events)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	defer watcher.Close()

	tun := watcher.Current()

	grid, storage, err := buildGrid(tun)
	if err != nil {
		return err
	}
	if closer, ok := storage.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	engine := buildEngine(grid, tun, events)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for i := 0; i < cycles; i++ {
		if ctx.Err() != nil {
			break
		}

		eden, err := grid.AllocateRegion(heap.Eden)
		if err != nil {
			return fmt.Errorf("allocate eden region: %w", err)
		}

		if err := engine.RunYoungPause(ctx, []heap.RegionID{eden}, nil); err != nil {
			return fmt.Errorf("young pause: %w", err)
		}

		if err := engine.StartConcurrentMark(ctx); err != nil {
			return fmt.Errorf("concurrent mark: %w", err)
		}

		if _, err := engine.Remark(ctx, nil, nil); err != nil {
			return fmt.Errorf("remark: %w", err)
		}

		if err := engine.RunFullGC(ctx); err != nil {
			return fmt.Errorf("full gc: %w", err)
		}

		time.Sleep(time.Millisecond)
	}

	fmt.Printf("completed %d full-gc cycles\n", engine.Cycles())

	return nil
}

func buildGrid(tun config.Tunables) (*heap.Grid, heap.Storage, error) {
	cfg := heap.Config{GrainWords: tun.GrainWords, MaxRegions: tun.MaxRegions, WordSizeBits: 3}

	storage, err := heap.NewAnonStorage(uint64(cfg.MaxRegions) * cfg.GrainWords * 8)
	if err != nil {
		return nil, nil, fmt.Errorf("reserve heap: %w", err)
	}

	grid, err := heap.NewGrid(cfg, storage)
	if err != nil {
		return nil, nil, fmt.Errorf("build grid: %w", err)
	}

	return grid, storage, nil
}

func buildEngine(grid *heap.Grid, tun config.Tunables, events *gcevent.Bus) *gc.Engine {
	model := nullObjectModel{}

	pool := worker.NewPool(tun.MaxWorkers)

	totalWords := uint64(grid.MaxRegions()) * grid.GrainWords()
	bitmap := mark.NewBitmap(0, totalWords, 3)
	satb := mark.NewSATBQueue()

	marker := mark.NewMarker(mark.Config{
		Grid: grid, Bitmap: bitmap, Scanner: model, SATB: satb,
		MaxWorkers: tun.MaxWorkers, OverflowMaxChunk: tun.OverflowMaxChunk,
		ClockIntervalWords: tun.ClockIntervalWords,
	})
	marker.SetHeapRange(0, totalWords)

	registry := remset.NewRegistry()
	forward := evac.NewForwardingTable()
	alloc := evac.NewAllocator(grid, tun.MaxWorkers)

	evacuator := &evac.Evacuator{Mover: model, Forward: forward, Alloc: alloc, InCSet: func(uint64) bool { return false }}

	pause := evac.NewPause(evac.PauseConfig{
		Grid: grid, Registry: registry, Evacuator: evacuator,
		Roots: model, Cards: model,
		Failure:    &evac.FailureRecovery{Grid: grid, Forward: forward, Mover: model},
		MaxWorkers: tun.MaxWorkers,
	})

	compactEngine := compact.NewEngine(compact.EngineConfig{
		Grid: grid, Pool: pool, Marker: marker,
		HeaderIO: model, Rewriter: model, Mover: model,
		ScanRoots:                   func(grey func(addr uint64)) {},
		ObjectStartGranularityWords: 1,
	})

	chooser := cset.ChooserConfig{
		LiveThresholdPercent: tun.LiveThresholdPercent,
		MinOldCSetLength:     tun.MinOldCSetLength,
		AllowedWaste:         tun.AllowedWaste,
		PredictedCopyCost:    func(r *heap.Region) float64 { return 0 },
	}

	return gc.NewEngine(gc.Config{
		Grid: grid, Pool: pool, Marker: marker,
		Chooser: chooser, Pacing: cset.NewPacingPredictor(0.3),
		EvacPause: pause, CompactEngine: compactEngine,
		Events: events, MarkStepTarget: tun.MarkStepTarget(),
		KeepPinnedCount: tun.KeepPinnedCount,
	})
}
