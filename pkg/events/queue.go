package events

import "sync"

// Queue is an unbounded FIFO of events that is safe for concurrent producers
// and consumers. Push never blocks.
type Queue struct {
	mu    sync.Mutex
	items []Event
	head  int
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Push appends an event to the tail and returns the new length.
func (q *Queue) Push(e Event) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = append(q.items, e)
	return len(q.items) - q.head
}

// Pop removes and returns the oldest event. ok is false when the queue is empty.
func (q *Queue) Pop() (e Event, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.head >= len(q.items) {
		return Event{}, false
	}
	e = q.items[q.head]
	q.items[q.head] = Event{}
	q.head++

	// Reclaim the consumed prefix once it dominates the backing array.
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head > 64 && q.head*2 > len(q.items) {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	return e, true
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}
