// Package bgtask implements the background-task worker subsystem
// (component L of SPEC_FULL.md): one dedicated goroutine per task
// type, each owning its own task queue, used today for lazy-freeing
// large deleted objects off the reactor thread.
//
// Grounded on rr_bgtask.c's one-thread-per-type design (a
// mutex+condvar-guarded queue per type, a blocking dequeue loop), with
// the pthread primitives replaced by a buffered Go channel plus a
// WaitGroup for shutdown — the idiomatic equivalent the Go ecosystem
// reaches for in place of mutex/cond queues, as already modeled by the
// teacher's goroutine-based completion loop in internal/queue/runner.go.
package bgtask

import (
	"sync"

	"github.com/rhino-rox/rhino-rox/internal/logging"
	"github.com/rhino-rox/rhino-rox/internal/object"
)

// Kind identifies a background task type. Only one kind exists today
// (lazy-free), mirroring rr_bgtask.h's TASK_NTYPES == 1, but the type
// is kept open for future task kinds the way the original's dispatch
// switch is.
type Kind int

const (
	// LazyFreeObject asynchronously releases the payload of a deleted
	// Object whose free effort exceeded the keyspace's threshold
	// (rr_bgtask.h's SUBTYPE_FREE_OBJ).
	LazyFreeObject Kind = iota
)

// Task is one unit of background work.
type Task struct {
	Kind    Kind
	Payload *object.Object
}

// defaultQueueDepth bounds the number of pending tasks buffered before
// Submit blocks, keeping a runaway producer from growing memory
// without limit.
const defaultQueueDepth = 4096

// Worker runs one goroutine draining a single task queue.
type Worker struct {
	tasks chan Task
	wg    sync.WaitGroup
}

// NewWorker starts a worker goroutine and returns immediately.
func NewWorker() *Worker {
	w := &Worker{tasks: make(chan Task, defaultQueueDepth)}
	w.wg.Add(1)
	go w.run()
	return w
}

// Submit enqueues task, blocking if the queue is full.
func (w *Worker) Submit(task Task) {
	w.tasks <- task
}

// Stop closes the queue and waits for the worker to drain and exit.
func (w *Worker) Stop() {
	close(w.tasks)
	w.wg.Wait()
}

func (w *Worker) run() {
	defer w.wg.Done()
	for task := range w.tasks {
		w.process(task)
	}
}

func (w *Worker) process(task Task) {
	switch task.Kind {
	case LazyFreeObject:
		object.DecrRef(task.Payload)
	default:
		logging.Default().Warningf("bgtask: unknown task kind %d", task.Kind)
	}
}
