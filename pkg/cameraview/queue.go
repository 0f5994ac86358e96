package cameraview

import "sync"

// Executor runs posted functions one at a time, in order. Post must never
// block the caller or run fn inline.
type Executor interface {
	Post(fn func())
}

// Queue is an unbounded serial executor backed by one goroutine.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	tasks  []func()
	closed bool
	done   chan struct{}
}

// NewQueue starts a queue.
func NewQueue() *Queue {
	q := &Queue{done: make(chan struct{})}
	q.cond = sync.NewCond(&q.mu)
	go q.run()
	return q
}

// Post appends fn. Functions posted after Close are dropped.
func (q *Queue) Post(fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.tasks = append(q.tasks, fn)
	q.cond.Signal()
}

// Flush blocks until everything posted before it has run. It must not be
// called from a queued function.
func (q *Queue) Flush() {
	done := make(chan struct{})
	q.Post(func() { close(done) })
	select {
	case <-done:
	case <-q.done:
	}
}

// Close runs the remaining functions and stops the goroutine. It must not
// be called from a queued function.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Signal()
	q.mu.Unlock()
	<-q.done
}

func (q *Queue) run() {
	defer close(q.done)
	for {
		q.mu.Lock()
		for len(q.tasks) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.tasks) == 0 {
			q.mu.Unlock()
			return
		}
		fn := q.tasks[0]
		q.tasks[0] = nil
		q.tasks = q.tasks[1:]
		q.mu.Unlock()

		fn()
	}
}
