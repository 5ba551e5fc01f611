package recorder

import (
	"log/slog"
	"sync"
)

type task struct {
	name string
	fn   func()
}

// executor runs submitted tasks one at a time, in submission order, on a
// single goroutine. The queue is unbounded so Submit never blocks.
type executor struct {
	logger *slog.Logger

	mu     sync.Mutex
	queue  []task
	closed bool

	wake chan struct{}
	done chan struct{}
}

func newExecutor(logger *slog.Logger) *executor {
	e := &executor{
		logger: logger,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go e.run()
	return e
}

// Submit queues fn. It reports false when the executor is closed and the
// task was dropped.
func (e *executor) Submit(name string, fn func()) bool {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		e.logger.Warn("Executor closed, task dropped", "task", name)
		return false
	}
	e.queue = append(e.queue, task{name: name, fn: fn})
	e.mu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
	return true
}

// Close stops accepting tasks, waits for the queued ones to finish and
// stops the goroutine
func (e *executor) Close() {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		select {
		case e.wake <- struct{}{}:
		default:
		}
	}
	e.mu.Unlock()
	<-e.done
}

func (e *executor) run() {
	defer close(e.done)
	for {
		e.mu.Lock()
		for len(e.queue) == 0 {
			if e.closed {
				e.mu.Unlock()
				return
			}
			e.mu.Unlock()
			<-e.wake
			e.mu.Lock()
		}
		t := e.queue[0]
		e.queue[0] = task{}
		e.queue = e.queue[1:]
		e.mu.Unlock()

		e.runTask(t)
	}
}

func (e *executor) runTask(t task) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Background task panicked", "task", t.name, "panic", r)
		}
	}()
	t.fn()
}
