package session

import "sync"

// eventQueue feeds the control thread. Transport readers, timers and
// Enqueue callers push from any goroutine; only Run or Drain pops.
//
// It never blocks a producer. wake holds at most one pending signal, which
// Run selects on next to ctx.Done(); closing the queue closes wake.
type eventQueue struct {
	mu     sync.Mutex
	buf    []Event
	head   int
	sealed bool
	wake   chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		buf:  make([]Event, 0, 64),
		wake: make(chan struct{}, 1),
	}
}

// Enqueue appends e. It reports false once the session has stopped.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.sealed {
		return false
	}
	q.buf = append(q.buf, e)
	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue pops the oldest event, if any.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.head == len(q.buf) {
		return Event{}, false
	}
	e := q.buf[q.head]
	// Movement payloads and task closures must not outlive their turn.
	q.buf[q.head] = Event{}
	q.head++
	switch {
	case q.head == len(q.buf):
		q.buf, q.head = q.buf[:0], 0
	case q.head >= 64 && q.head*2 >= len(q.buf):
		n := copy(q.buf, q.buf[q.head:])
		clear(q.buf[n:])
		q.buf, q.head = q.buf[:n], 0
	}
	return e, true
}

// Wait fires after an Enqueue and is closed once the queue is closed.
func (q *eventQueue) Wait() <-chan struct{} { return q.wake }

// Len is the number of events not yet popped.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf) - q.head
}

// Close refuses further events. Queued events stay poppable.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.sealed {
		q.sealed = true
		close(q.wake)
	}
}
