package schedule

import (
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/go-git/gopack/pack/delta"
	"github.com/go-git/gopack/pack/object"
	"github.com/go-git/gopack/pack/odb"
)

// ParallelOptions configures RunParallel.
type ParallelOptions struct {
	Threads  int
	Window   int
	MaxDepth int
	MemLimit int64
}

// worker is one goroutine's share of the candidate list. list holds the
// not-yet-processed suffix; the coordinator may shrink it from the tail
// to steal work for an idle peer, and the worker itself shrinks it from
// the front as it consumes entries. Mirrors libgit2's struct
// thread_params.
type worker struct {
	mu        sync.Mutex
	cond      *sync.Cond
	list      []*object.Entry
	working   bool
	dataReady bool
	err       error

	// memUsage accumulates across every entry this worker's runWorker
	// processes. It is only ever touched by that one goroutine (the
	// coordinator never reads or writes it), so it needs no lock of
	// its own despite living next to mutex-guarded fields.
	memUsage int64
}

func (w *worker) remaining() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.list)
}

// RunParallel partitions candidates across opts.Threads goroutines and
// runs the delta search concurrently, work-stealing idle workers onto
// the busiest remaining peer until every candidate has been visited.
// Ported from libgit2's ll_find_deltas.
func RunParallel(db odb.Database, candidates []*object.Entry, opts ParallelOptions, cache *delta.Cache) error {
	if opts.Threads <= 1 || len(candidates) < 2 {
		w := NewWindow(opts.Window)
		return Run(db, candidates, w, opts.MaxDepth, cache, opts.MemLimit)
	}

	workers := partition(candidates, opts.Threads, opts.Window)

	var pmu sync.Mutex
	pcond := sync.NewCond(&pmu)

	eg := &errgroup.Group{}
	active := 0
	for _, w := range workers {
		if len(w.list) == 0 {
			continue
		}
		active++
		w := w
		eg.Go(func() error {
			runWorker(db, w, opts, cache, &pmu, pcond)
			return nil
		})
	}

	pmu.Lock()
	for active > 0 {
		var target *worker
		for target == nil {
			for _, w := range workers {
				w.mu.Lock()
				idle := !w.working
				w.mu.Unlock()
				if idle {
					target = w
					break
				}
			}
			if target == nil {
				pcond.Wait()
			}
		}

		var victim *worker
		victimRem := 2 * opts.Window
		for _, w := range workers {
			if w == target {
				continue
			}
			if rem := w.remaining(); rem > victimRem {
				victim, victimRem = w, rem
			}
		}

		var stolen []*object.Entry
		if victim != nil {
			victim.mu.Lock()
			n := len(victim.list) / 2
			cut := len(victim.list) - n
			for cut < len(victim.list) && cut > 0 &&
				victim.list[cut].NameHash != 0 &&
				victim.list[cut].NameHash == victim.list[cut-1].NameHash {
				cut++
			}
			stolen = append([]*object.Entry(nil), victim.list[cut:]...)
			victim.list = victim.list[:cut]
			victim.mu.Unlock()
		}

		// working is set even for an empty assignment: that worker
		// exits, and must not be picked as an idle target again.
		target.mu.Lock()
		target.list = stolen
		target.working = true
		target.dataReady = true
		target.cond.Signal()
		target.mu.Unlock()

		if len(stolen) == 0 {
			active--
		}
		target = nil
	}
	pmu.Unlock()

	_ = eg.Wait()
	for _, w := range workers {
		if w.err != nil {
			return w.err
		}
	}
	return nil
}

// partition splits candidates into opts.Threads contiguous chunks. A
// chunk other than the last that would hold fewer than twice the window
// is left empty instead (too small a segment finds few deltas); the last
// chunk takes whatever remains. Each boundary is extended forward across a
// run of equal name hashes so a family of similarly-named objects isn't
// torn across two workers.
func partition(candidates []*object.Entry, threads, window int) []*worker {
	workers := make([]*worker, threads)
	remaining := candidates
	left := len(candidates)

	for i := 0; i < threads; i++ {
		subSize := left / (threads - i)
		if subSize < 2*window && i+1 < threads {
			subSize = 0
		}
		for subSize > 0 && subSize < len(remaining) &&
			remaining[subSize].NameHash != 0 &&
			remaining[subSize].NameHash == remaining[subSize-1].NameHash {
			subSize++
		}
		if subSize > len(remaining) {
			subSize = len(remaining)
		}

		w := &worker{list: remaining[:subSize:subSize], working: true}
		w.cond = sync.NewCond(&w.mu)
		workers[i] = w

		remaining = remaining[subSize:]
		left -= subSize
	}
	return workers
}

// runWorker drains its assigned list one entry at a time through a
// private window, so the coordinator can safely steal from the tail of
// w.list between any two entries. It parks on w.cond whenever its list
// empties, waking either with fresh stolen work or a final empty
// assignment that tells it to exit.
func runWorker(db odb.Database, w *worker, opts ParallelOptions, cache *delta.Cache, pmu *sync.Mutex, pcond *sync.Cond) {
	win := NewWindow(opts.Window)

	for {
		w.mu.Lock()
		if len(w.list) == 0 {
			w.mu.Unlock()
		} else {
			next := w.list[0]
			w.list = w.list[1:]
			w.mu.Unlock()

			if err := runOne(db, next, win, opts.MaxDepth, &w.memUsage, cache, opts.MemLimit); err != nil {
				w.mu.Lock()
				w.err = err
				w.mu.Unlock()
			}
			continue
		}

		pmu.Lock()
		w.mu.Lock()
		w.working = false
		w.mu.Unlock()
		pcond.Signal()
		pmu.Unlock()

		// dataReady starts false before the goroutine is spawned and is
		// reset only after waking, so an assignment the coordinator
		// signals before this Wait begins is not lost.
		w.mu.Lock()
		for !w.dataReady {
			w.cond.Wait()
		}
		w.dataReady = false
		done := len(w.list) == 0
		w.mu.Unlock()

		if done {
			return
		}
	}
}
