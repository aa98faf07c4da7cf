// Package ordered provides a small task executor that preserves submission
// order for tasks sharing a key. Tasks with the same key always run on the
// same worker, so they execute one at a time in FIFO order; tasks without a
// key are spread round-robin across workers.
package ordered

import (
	"fmt"
	"hash/fnv"
	"sync/atomic"

	"github.com/eapache/channels"

	"github.com/streamvault/bookie/utils/log"
)

type worker struct {
	tasks *channels.InfiniteChannel
	done  chan struct{}
}

func (w *worker) run(name string, idx int) {
	defer close(w.done)
	for v := range w.tasks.Out() {
		task, ok := v.(func())
		if !ok {
			log.Error("%s-%d: dropping non-task submission %v", name, idx, v)
			continue
		}
		task()
	}
}

// Executor is a fixed pool of workers each draining its own unbounded queue.
type Executor struct {
	name     string
	workers  []*worker
	next     uint32
	shutdown int32
}

func New(name string, numWorkers int) *Executor {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	e := &Executor{
		name:    name,
		workers: make([]*worker, numWorkers),
	}
	for i := range e.workers {
		w := &worker{
			tasks: channels.NewInfiniteChannel(),
			done:  make(chan struct{}),
		}
		e.workers[i] = w
		go w.run(name, i)
	}
	return e
}

// Submit runs the task on an arbitrary worker with no ordering guarantee
// relative to other unkeyed tasks.
func (e *Executor) Submit(task func()) {
	if atomic.LoadInt32(&e.shutdown) != 0 {
		log.Warn("%s: rejecting task submitted after shutdown", e.name)
		return
	}
	n := atomic.AddUint32(&e.next, 1)
	e.workers[int(n)%len(e.workers)].tasks.In() <- task
}

// SubmitOrdered runs the task on the worker owning key. All tasks for a
// given key execute sequentially in submission order.
func (e *Executor) SubmitOrdered(key interface{}, task func()) {
	if atomic.LoadInt32(&e.shutdown) != 0 {
		log.Warn("%s: rejecting task submitted after shutdown", e.name)
		return
	}
	e.workers[e.workerIdx(key)].tasks.In() <- task
}

func (e *Executor) workerIdx(key interface{}) int {
	h := fnv.New32a()
	fmt.Fprintf(h, "%v", key)
	return int(h.Sum32()) % len(e.workers)
}

// Shutdown stops accepting tasks, drains the queued ones and waits for the
// workers to exit.
func (e *Executor) Shutdown() {
	if !atomic.CompareAndSwapInt32(&e.shutdown, 0, 1) {
		return
	}
	for _, w := range e.workers {
		w.tasks.Close()
	}
	for _, w := range e.workers {
		<-w.done
	}
}
