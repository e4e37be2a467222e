package reconciler

import (
	"context"
	"sync"
	"time"
)

// projectQueue is the ReconcileQueue used by the Manager.
//
// A project is listed at most once in ready and is never handed to two
// workers at once. Triggers for a project that is being synchronized are
// parked in rerun and become exactly one trailing pass when the worker
// calls Done. Retries wait in timers until they are due.
type projectQueue struct {
	mu sync.Mutex

	ready    []string
	requests map[string]ReconcileRequest
	active   map[string]bool
	rerun    map[string]ReconcileRequest
	timers   map[string]*time.Timer
	closed   bool

	// wake carries at most one pending wakeup; closing is signalled by done.
	wake chan struct{}
	done chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *projectQueue {
	return &projectQueue{
		requests: make(map[string]ReconcileRequest),
		active:   make(map[string]bool),
		rerun:    make(map[string]ReconcileRequest),
		timers:   make(map[string]*time.Timer),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Add queues req. A request already waiting for the same project is
// replaced in place and keeps its position.
func (q *projectQueue) Add(req ReconcileRequest) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.addLocked(req)
}

func (q *projectQueue) addLocked(req ReconcileRequest) {
	if q.closed {
		return
	}
	if q.active[req.Project] {
		q.rerun[req.Project] = req
		return
	}
	if _, queued := q.requests[req.Project]; !queued {
		q.ready = append(q.ready, req.Project)
	}
	q.requests[req.Project] = req
	q.signal()
}

// signal must be called with mu held.
func (q *projectQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Get blocks until a project is ready, the queue is shut down or ctx ends.
func (q *projectQueue) Get(ctx context.Context) (ReconcileRequest, bool) {
	for {
		q.mu.Lock()
		if len(q.ready) > 0 {
			name := q.ready[0]
			q.ready = q.ready[1:]
			req := q.requests[name]
			delete(q.requests, name)
			q.active[name] = true
			if len(q.ready) > 0 {
				// Another worker may be waiting for the token this one consumed.
				q.signal()
			}
			q.mu.Unlock()
			return req, true
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return ReconcileRequest{}, false
		}

		select {
		case <-ctx.Done():
			return ReconcileRequest{}, false
		case <-q.done:
		case <-q.wake:
		}
	}
}

// Done releases the project of req and queues its trailing pass, if any.
func (q *projectQueue) Done(req ReconcileRequest) {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.active, req.Project)
	if next, ok := q.rerun[req.Project]; ok {
		delete(q.rerun, req.Project)
		q.addLocked(next)
	}
}

// AddAfter queues req once delay has passed. A newer AddAfter for the same
// project replaces the pending one.
func (q *projectQueue) AddAfter(req ReconcileRequest, delay time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	if t, ok := q.timers[req.Project]; ok {
		t.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		// A replaced timer may still fire if Stop lost the race.
		if q.timers[req.Project] != timer {
			return
		}
		delete(q.timers, req.Project)
		q.addLocked(req)
	})
	q.timers[req.Project] = timer
}

// Pending reports whether a delayed request is waiting for project.
func (q *projectQueue) Pending(project string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.timers[project]
	return ok
}

// Len returns the number of projects ready to be handed out.
func (q *projectQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ready)
}

// Shutdown cancels pending retries and releases every blocked Get. Adds
// after Shutdown are ignored.
func (q *projectQueue) Shutdown() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	for name, t := range q.timers {
		t.Stop()
		delete(q.timers, name)
	}
	close(q.done)
}

var _ ReconcileQueue = (*projectQueue)(nil)
