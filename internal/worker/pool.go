// Package worker runs batches of independent jobs on a fixed set of
// goroutines.
package worker

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
)

// Pool is a fixed set of worker goroutines, each with its own queue. An idle
// worker steals from the other queues, so one slow image does not hold back
// the jobs queued behind it.
//
// Pool is safe for concurrent use.
type Pool struct {
	workers int
	queues  []chan func()
	wake    chan struct{} // nudges idle workers to look for work to steal
	done    chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool
}

// New starts a pool with n workers. If n is 0 or negative, GOMAXPROCS is used.
func New(n int) *Pool {
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	depth := max(n*4, 8)

	p := &Pool{
		workers: n,
		queues:  make([]chan func(), n),
		wake:    make(chan struct{}, n),
		done:    make(chan struct{}),
	}
	for i := range p.queues {
		p.queues[i] = make(chan func(), depth)
	}
	p.running.Store(true)

	p.wg.Add(n)
	for i := range n {
		go p.loop(i)
	}
	return p
}

func (p *Pool) loop(id int) {
	defer p.wg.Done()
	own := p.queues[id]

	for {
		select {
		case <-p.done:
			drain(own)
			return
		case job := <-own:
			job()
			continue
		default:
		}

		if job := p.steal(id); job != nil {
			job()
			continue
		}

		select {
		case <-p.done:
			drain(own)
			return
		case job := <-own:
			job()
		case <-p.wake:
		}
	}
}

func drain(q chan func()) {
	for {
		select {
		case job := <-q:
			job()
		default:
			return
		}
	}
}

// steal takes one job from another worker's queue, or returns nil.
func (p *Pool) steal(id int) func() {
	for i := 1; i < p.workers; i++ {
		select {
		case job := <-p.queues[(id+i)%p.workers]:
			return job
		default:
		}
	}
	return nil
}

// ExecuteAll runs every job and waits for all of them. Jobs are dealt
// round-robin across workers. After Close, jobs run on the caller's
// goroutine.
func (p *Pool) ExecuteAll(work []func()) {
	if len(work) == 0 {
		return
	}

	var wg sync.WaitGroup
	wg.Add(len(work))
	for i, fn := range work {
		job := func() {
			defer wg.Done()
			fn()
		}
		if !p.running.Load() {
			job()
			continue
		}
		select {
		case p.queues[i%p.workers] <- job:
			select {
			case p.wake <- struct{}{}:
			default:
			}
		case <-p.done:
			job()
		}
	}
	wg.Wait()
}

// ExecuteAllErr runs every job like ExecuteAll and returns their errors
// joined in job order, or nil if all succeeded.
func (p *Pool) ExecuteAllErr(work []func() error) error {
	errs := make([]error, len(work))
	wrapped := make([]func(), len(work))
	for i, fn := range work {
		wrapped[i] = func() { errs[i] = fn() }
	}
	p.ExecuteAll(wrapped)
	return errors.Join(errs...)
}

// Close stops the workers after the queued jobs finish. Close is safe to
// call more than once.
func (p *Pool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}

// Workers returns the number of workers.
func (p *Pool) Workers() int { return p.workers }

// IsRunning reports whether the pool still accepts jobs onto its queues.
func (p *Pool) IsRunning() bool { return p.running.Load() }
