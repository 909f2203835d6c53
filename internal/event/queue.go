package event

// Queue is the process-wide FIFO mailbox the backtest loop drains once per
// step. It is unbounded, strictly ordered, and single-consumer; the engine
// is single-threaded so no locking is needed.
type Queue struct {
	items []Event
}

// NewQueue returns an empty queue.
func NewQueue() *Queue { return &Queue{} }

// Push appends an event to the back of the queue.
func (q *Queue) Push(ev Event) {
	q.items = append(q.items, ev)
}

// Pop removes and returns the oldest queued event, reporting false when the
// queue is empty.
func (q *Queue) Pop() (Event, bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	ev := q.items[0]
	q.items = q.items[1:]
	return ev, true
}

// Len reports the number of queued events.
func (q *Queue) Len() int { return len(q.items) }
