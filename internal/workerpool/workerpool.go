// Package workerpool runs indexed tasks on a fixed set of persistent
// goroutines. Indices are handed out one at a time from an atomic counter,
// so a worker that draws a large tensor does not hold up the others.
//
//	pool := workerpool.New(runtime.GOMAXPROCS(0))
//	defer pool.Close()
//
//	err := pool.ForEach(ctx, len(items), func(i int) error {
//	    return process(items[i])
//	})
package workerpool

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
)

// Pool is a persistent worker pool. Workers are spawned once by New and
// live until Close.
type Pool struct {
	numWorkers int
	workC      chan workItem
	closeOnce  sync.Once
	closed     atomic.Bool
}

type workItem struct {
	fn      func()
	barrier *sync.WaitGroup
}

// New creates a pool with numWorkers goroutines. If numWorkers <= 0 it uses
// GOMAXPROCS.
func New(numWorkers int) *Pool {
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}
	p := &Pool{
		numWorkers: numWorkers,
		workC:      make(chan workItem, numWorkers),
	}
	for range numWorkers {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	for item := range p.workC {
		item.fn()
		item.barrier.Done()
	}
}

// NumWorkers returns the number of workers in the pool.
func (p *Pool) NumWorkers() int {
	return p.numWorkers
}

// Close shuts the pool down after pending work completes. It is safe to
// call more than once.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		close(p.workC)
	})
}

// ForEach calls fn for every index in [0, n) and blocks until all calls
// return. After the first error, or once ctx is done, no further indices
// are handed out; calls already running finish. The first error is
// returned, or ctx.Err() if the context stopped the loop.
//
// fn must not call ForEach on the same pool.
func (p *Pool) ForEach(ctx context.Context, n int, fn func(i int) error) error {
	if n <= 0 {
		return ctx.Err()
	}

	var (
		nextIdx  atomic.Int64
		stop     atomic.Bool
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() { firstErr = err })
		stop.Store(true)
	}
	loop := func() {
		for !stop.Load() {
			if err := ctx.Err(); err != nil {
				fail(err)
				return
			}
			idx := int(nextIdx.Add(1)) - 1
			if idx >= n {
				return
			}
			if err := fn(idx); err != nil {
				fail(err)
				return
			}
		}
	}

	workers := min(p.numWorkers, n)
	if workers == 1 || p.closed.Load() {
		loop()
		return firstErr
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for range workers {
		p.workC <- workItem{fn: loop, barrier: &wg}
	}
	wg.Wait()
	return firstErr
}
