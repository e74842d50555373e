package oolong

import (
	"sync"
	"sync/atomic"
)

// Task is a unit of parallel GC work. Work is invoked once per
// participating worker with that worker's id.
type Task interface {
	Name() string
	Work(worker int)
}

type task struct {
	name string
	work func(worker int)
}

func newTask(name string, work func(worker int)) Task {
	return &task{name: name, work: work}
}

func (t *task) Name() string    { return t.name }
func (t *task) Work(worker int) { t.work(worker) }

// workers is the fixed-size GC worker pool. Concurrent phases normally
// run on a reduced number of workers; boost mode widens them to the
// full pool, e.g. while an allocation is stalled.
type workers struct {
	n       int
	noBoost int
	boost   atomic.Bool
	queues  []chan func(worker int)
	stopped sync.Once
}

func newWorkers(n int) *workers {
	w := &workers{
		n:       n,
		noBoost: max(1, n/2),
		queues:  make([]chan func(worker int), n),
	}
	for i := range w.queues {
		q := make(chan func(worker int))
		w.queues[i] = q
		go func(id int) {
			for f := range q {
				f(id)
			}
		}(i)
	}
	return w
}

func (w *workers) nworkers() int { return w.n }

func (w *workers) nconcurrent() int {
	if w.boost.Load() {
		return w.n
	}
	return w.noBoost
}

func (w *workers) nconcurrentNoBoost() int { return w.noBoost }

func (w *workers) setBoost(boost bool) { w.boost.Store(boost) }

// runParallel dispatches the task to the current concurrent worker
// count and waits for all of them to finish.
func (w *workers) runParallel(t Task) {
	width := w.nconcurrent()
	var wg sync.WaitGroup
	wg.Add(width)
	for i := range width {
		w.queues[i] <- func(id int) {
			defer wg.Done()
			t.Work(id)
		}
	}
	wg.Wait()
}

// threadsDo invokes f once per worker id.
func (w *workers) threadsDo(f func(worker int)) {
	for i := range w.n {
		f(i)
	}
}

func (w *workers) stop() {
	w.stopped.Do(func() {
		for _, q := range w.queues {
			close(q)
		}
	})
}
