// Package evac implements the evacuation pause (§4.5): copy-and-push
// evacuation of a collection set's young and (mixed-pause) old regions,
// with self-forwarding on allocation failure and its post-pause cleanup.
package evac

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/orizon-lang/g1core/internal/cset"
	"github.com/orizon-lang/g1core/internal/heap"
	"github.com/orizon-lang/g1core/internal/remset"
	"github.com/orizon-lang/g1core/internal/worker"
)

// RootScanner is the external collaborator that enumerates every mutator
// and VM root reference, rewriting each in place with the value update
// returns (§6.1, §6.3).
type RootScanner interface {
	ScanRoots(update func(ref uint64) uint64)
}

// CardScanner is the external collaborator that, given a card or a whole
// region's address range, finds and rewrites the reference slots of
// objects that cross it (§6.1, §4.2).
type CardScanner interface {
	ScanCard(c remset.CardAddr, update func(ref uint64) uint64)
	ScanRegion(id heap.RegionID, update func(ref uint64) uint64)
}

// PauseConfig fixes one evacuation pause's collaborators.
type PauseConfig struct {
	Grid      *heap.Grid
	Registry  *remset.Registry
	Evacuator *Evacuator
	Roots     RootScanner
	Cards     CardScanner
	Failure   *FailureRecovery

	MaxWorkers int
}

// Pause drives one evacuation pause over a prepared collection set.
type Pause struct {
	cfg  PauseConfig
	pool *worker.Pool

	qmu   sync.Mutex
	queue []uint64
}

func NewPause(cfg PauseConfig) *Pause {
	return &Pause{cfg: cfg, pool: worker.NewPool(cfg.MaxWorkers)}
}

func (p *Pause) pushTask(addr uint64) {
	p.qmu.Lock()
	p.queue = append(p.queue, addr)
	p.qmu.Unlock()
}

func (p *Pause) popTask() (uint64, bool) {
	p.qmu.Lock()
	defer p.qmu.Unlock()

	n := len(p.queue)
	if n == 0 {
		return 0, false
	}

	v := p.queue[n-1]
	p.queue = p.queue[:n-1]

	return v, true
}

func (p *Pause) hasQueuedWork() bool {
	p.qmu.Lock()
	defer p.qmu.Unlock()

	return len(p.queue) > 0
}

// Run executes one evacuation pause over cs. It returns every region of
// cs (young or old) that held at least one self-forwarded object and so
// survives the pause instead of going fully empty — reported via
// cfg.Failure.Retained too, for callers that wire that up directly, but
// returned here as well since the caller (the outer engine) needs this
// set immediately to know which cset regions it may now free (§4.5 step
// 7, §4.4).
func (p *Pause) Run(ctx context.Context, cs *cset.CollectionSet) ([]heap.RegionID, error) {
	p.queue = nil
	p.cfg.Evacuator.PushTask = p.pushTask

	var eg errgroup.Group

	eg.Go(func() error {
		p.cfg.Roots.ScanRoots(func(ref uint64) uint64 {
			return p.cfg.Evacuator.CopyAndPush(0, ref)
		})

		return nil
	})

	eg.Go(func() error {
		p.scanCards(cs)
		return nil
	})

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	term := worker.NewTerminator(p.cfg.MaxWorkers)

	if err := p.pool.RunTask(ctx, func(workerID int) {
		p.drainAndUpdate(workerID, term)
	}); err != nil {
		return nil, err
	}

	retained := p.cfg.Failure.RemoveSelfForwards(cs.All())

	return retained, nil
}

func (p *Pause) scanCards(cs *cset.CollectionSet) {
	for _, id := range cs.AllOld() {
		cards := p.cfg.Registry.For(uint32(id))

		isHowl := cards.IterateForMerge(func(c remset.CardAddr) {
			p.cfg.Cards.ScanCard(c, func(ref uint64) uint64 {
				return p.cfg.Evacuator.CopyAndPush(0, ref)
			})
		})

		if isHowl {
			p.cfg.Cards.ScanRegion(id, func(ref uint64) uint64 {
				return p.cfg.Evacuator.CopyAndPush(0, ref)
			})
		}
	}
}

// drainAndUpdate repeatedly pops a copied-but-not-yet-updated object off
// the shared task queue, rewrites its outgoing references (evacuating
// each referent as needed), and offers termination once the queue looks
// empty, per the quiescence protocol already used by the marker (§4.7).
func (p *Pause) drainAndUpdate(workerID int, term *worker.Terminator) {
	for {
		for {
			addr, ok := p.popTask()
			if !ok {
				break
			}

			p.cfg.Evacuator.UpdateRefsOf(workerID, addr)
		}

		if term.OfferTermination(p.hasQueuedWork) {
			return
		}
	}
}
