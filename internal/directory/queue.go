package directory

// Queue is the FIFO of call ids waiting for an agent. It is not safe for
// concurrent use on its own; Directory guards it.
type Queue struct {
	waiting []string
}

// NewQueue creates an empty queue
func NewQueue() *Queue {
	return &Queue{waiting: make([]string, 0)}
}

// Enqueue appends a call and returns its 1-based position
func (q *Queue) Enqueue(callID string) int {
	if pos := q.Position(callID); pos > 0 {
		return pos
	}
	q.waiting = append(q.waiting, callID)
	return len(q.waiting)
}

// DequeueNext removes and returns the oldest waiting call
func (q *Queue) DequeueNext() (string, bool) {
	if len(q.waiting) == 0 {
		return "", false
	}
	callID := q.waiting[0]
	q.waiting = q.waiting[1:]
	return callID, true
}

// Remove drops a call wherever it sits in line
func (q *Queue) Remove(callID string) bool {
	for i, id := range q.waiting {
		if id == callID {
			q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
			return true
		}
	}
	return false
}

// Position returns the 1-based position of a call, or 0 if it is not queued
func (q *Queue) Position(callID string) int {
	for i, id := range q.waiting {
		if id == callID {
			return i + 1
		}
	}
	return 0
}

// Len returns the number of waiting calls
func (q *Queue) Len() int {
	return len(q.waiting)
}

// IDs returns the waiting call ids in arrival order
func (q *Queue) IDs() []string {
	out := make([]string, len(q.waiting))
	copy(out, q.waiting)
	return out
}
