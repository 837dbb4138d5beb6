package sched

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Pool is a fixed set of persistent worker goroutines executing task
// graphs. Mutual exclusion over cell data is structural: a worker
// claims a task's cells with compare-and-swap flags before executing,
// so no two concurrently-running tasks touch the same cell's particles,
// and no per-particle locks exist anywhere.
//
// The runnable queue is one slice guarded by a condition variable and
// lives as long as the pool: workers park on the condvar between steps
// and wake when the next step's roots arrive, so RunStep never swaps a
// queue out from under a blocked worker.
type Pool struct {
	nrWorkers int

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []*Task
	quit    bool
	started bool
	wg      sync.WaitGroup

	// Per-step state, written before the roots are enqueued.
	exec     func(*Task)
	claims   []atomic.Int32
	done     atomic.Int32
	total    int32
	stepDone chan struct{}
}

// NewPool creates a pool with the given worker count; zero or negative
// means GOMAXPROCS.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	p := &Pool{nrWorkers: workers}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Workers returns the worker count.
func (p *Pool) Workers() int { return p.nrWorkers }

// Start launches the workers. Idempotent.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	p.quit = false
	for i := 0; i < p.nrWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Stop shuts the workers down and waits for them to exit. The pool
// must not be stopped while a step is in flight.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.quit = true
	p.started = false
	p.cond.Broadcast()
	p.mu.Unlock()
	p.wg.Wait()
}

// RunStep executes one task graph to completion and acts as the step
// barrier: it returns only after every task has run exactly once. exec
// must be safe for concurrent invocation on tasks with disjoint cells.
func (p *Pool) RunStep(g *Graph, nrCells int, exec func(*Task)) {
	total := len(g.Tasks)
	if total == 0 {
		return
	}
	g.Reset()

	p.exec = exec
	if len(p.claims) < nrCells {
		p.claims = make([]atomic.Int32, nrCells)
	}
	for i := range p.claims {
		p.claims[i].Store(0)
	}
	p.done.Store(0)
	p.total = int32(total)
	p.stepDone = make(chan struct{})

	p.Start()

	p.mu.Lock()
	p.queue = append(p.queue, g.roots...)
	p.cond.Broadcast()
	p.mu.Unlock()

	<-p.stepDone
}

// enqueue hands a task to the workers.
func (p *Pool) enqueue(t *Task) {
	p.mu.Lock()
	p.queue = append(p.queue, t)
	p.cond.Signal()
	p.mu.Unlock()
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.quit {
			p.cond.Wait()
		}
		if p.quit {
			p.mu.Unlock()
			return
		}
		t := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()

		p.run(t)
	}
}

func (p *Pool) run(t *Task) {
	if t.wait.Load() != 0 {
		// A queued task with outstanding dependencies means the graph
		// is corrupt; continuing would race on cell data.
		panic("sched: runnable task has nonzero wait count")
	}

	if !p.claim(t) {
		// Cells busy; put the task back and let another worker (or a
		// later attempt) pick it up.
		p.enqueue(t)
		runtime.Gosched()
		return
	}

	p.exec(t)
	p.release(t)

	for _, u := range t.unlock {
		if u.wait.Add(-1) == 0 {
			p.enqueue(u)
		}
	}

	if p.done.Add(1) == p.total {
		close(p.stepDone)
	}
}

// claim marks the task's cells busy. Pair tasks claim the lower cell id
// first so two pairs over the same cells contend in a fixed order.
func (p *Pool) claim(t *Task) bool {
	a, b := t.CI, t.CJ
	if b >= 0 && b < a {
		a, b = b, a
	}
	if !p.claims[a].CompareAndSwap(0, 1) {
		return false
	}
	if b >= 0 && !p.claims[b].CompareAndSwap(0, 1) {
		p.claims[a].Store(0)
		return false
	}
	return true
}

func (p *Pool) release(t *Task) {
	p.claims[t.CI].Store(0)
	if t.CJ >= 0 {
		p.claims[t.CJ].Store(0)
	}
}
