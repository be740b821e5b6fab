package crawler

import (
	"context"
	"runtime"
	"sync"
)

// Pool is a fixed set of workers with per-worker queues and work stealing.
// Description of one node frequently spawns many children; keeping children
// on the worker that found them means the describer hits a warm flake cache,
// while stealing keeps otherwise idle workers busy.
//
// The pool terminates when the finder has been declared done, no unit is
// queued or in flight, and every worker is parked.
type Pool struct {
	queues []*workerQueue

	mu         sync.Mutex
	cond       *sync.Cond
	pending    int // submitted and not yet fully processed
	queued     int // submitted and not yet picked up
	finderDone bool
	stopped    bool

	nextQueue int // round-robin target for external submissions
}

// workerQueue is one worker's deque. The owner pushes and pops at the back
// (depth-first, cache-friendly); thieves steal from the front.
type workerQueue struct {
	mu    sync.Mutex
	items []string
}

func (q *workerQueue) pushBack(path string) {
	q.mu.Lock()
	q.items = append(q.items, path)
	q.mu.Unlock()
}

func (q *workerQueue) popBack() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return "", false
	}
	path := q.items[len(q.items)-1]
	q.items = q.items[:len(q.items)-1]
	return path, true
}

func (q *workerQueue) stealFront() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return "", false
	}
	path := q.items[0]
	q.items = q.items[1:]
	return path, true
}

// NewPool creates a pool with n workers; n <= 0 means one worker per CPU.
func NewPool(n int) *Pool {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	p := &Pool{queues: make([]*workerQueue, n)}
	for i := range p.queues {
		p.queues[i] = &workerQueue{}
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Workers reports the pool size.
func (p *Pool) Workers() int { return len(p.queues) }

// Submit enqueues a unit from outside the pool, distributing round-robin
// across workers. Safe from any goroutine. Units submitted after Stop are
// dropped.
func (p *Pool) Submit(path string) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	target := p.queues[p.nextQueue%len(p.queues)]
	p.nextQueue++
	p.mu.Unlock()

	target.pushBack(path)
	p.account()
}

// SubmitLocal enqueues a unit onto the submitting worker's own queue.
func (p *Pool) SubmitLocal(worker int, path string) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	p.queues[worker].pushBack(path)
	p.account()
}

// account registers one pushed unit and wakes a parked worker. The push must
// happen before account so that a woken worker's rescan finds the unit.
func (p *Pool) account() {
	p.mu.Lock()
	p.pending++
	p.queued++
	p.cond.Broadcast()
	p.mu.Unlock()
}

// FinderDone tells the pool no further external submissions will arrive. The
// pool cannot drain before this is called.
func (p *Pool) FinderDone() {
	p.mu.Lock()
	p.finderDone = true
	p.cond.Broadcast()
	p.mu.Unlock()
}

// Stop makes the pool reject new units and lets workers exit after their
// current unit. Used for unrecoverable errors and context cancellation;
// records already emitted remain valid.
func (p *Pool) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.cond.Broadcast()
	p.mu.Unlock()
}

// Run executes process over all submitted units with the pool's workers and
// blocks until the pool has drained (or was stopped). process receives the
// worker index so it can submit follow-up units locally.
func (p *Pool) Run(ctx context.Context, process func(ctx context.Context, worker int, path string)) {
	stop := context.AfterFunc(ctx, p.Stop)
	defer stop()

	var wg sync.WaitGroup
	for i := range p.queues {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for {
				path, ok := p.take(worker)
				if !ok {
					return
				}
				process(ctx, worker, path)
				p.complete()
			}
		}(i)
	}
	wg.Wait()
}

// take returns the next unit for a worker: its own queue first, then a steal
// sweep over its peers. A worker that finds nothing parks until new work or
// termination.
func (p *Pool) take(worker int) (string, bool) {
	for {
		if path, ok := p.scan(worker); ok {
			return path, true
		}

		p.mu.Lock()
		if p.stopped || (p.finderDone && p.pending == 0) {
			p.mu.Unlock()
			return "", false
		}
		if p.queued > 0 {
			// A submission raced our scan; rescan instead of parking.
			p.mu.Unlock()
			continue
		}
		p.cond.Wait()
		p.mu.Unlock()
	}
}

// scan pops locally or steals from a peer, updating the queued count on
// success.
func (p *Pool) scan(worker int) (string, bool) {
	if path, ok := p.queues[worker].popBack(); ok {
		p.taken()
		return path, true
	}
	for i := 1; i < len(p.queues); i++ {
		victim := (worker + i) % len(p.queues)
		if path, ok := p.queues[victim].stealFront(); ok {
			p.taken()
			return path, true
		}
	}
	return "", false
}

func (p *Pool) taken() {
	p.mu.Lock()
	p.queued--
	p.mu.Unlock()
}

// complete marks one unit fully processed and wakes parked workers when the
// pool has drained.
func (p *Pool) complete() {
	p.mu.Lock()
	p.pending--
	if p.pending == 0 && p.finderDone {
		p.cond.Broadcast()
	}
	p.mu.Unlock()
}
