package server

import "sync"

type actionKind uint8

const (
	actionSubscribe actionKind = iota
	actionUnsubscribe
	actionMessage
)

func (k actionKind) String() string {
	switch k {
	case actionSubscribe:
		return "subscribe"
	case actionUnsubscribe:
		return "unsubscribe"
	case actionMessage:
		return "message"
	}
	return "unknown"
}

// action is one queued connection-set mutation or inbound message.
type action struct {
	kind    actionKind
	handle  Handle
	peer    *peer  // subscribe only
	payload []byte // message only

	// seq is assigned under the queue lock and records arrival order.
	seq uint64
}

// actionQueue is an unbounded FIFO with a blocking pop.
// It never holds its lock while an action is applied.
type actionQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []action
	seq    uint64
	closed bool
}

func newActionQueue() *actionQueue {
	q := &actionQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push appends a. It reports false once the queue is closed.
func (q *actionQueue) push(a action) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.seq++
	a.seq = q.seq
	q.items = append(q.items, a)
	q.cond.Signal()
	return true
}

// pop blocks until an action is available or the queue is closed.
func (q *actionQueue) pop() (action, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		return action{}, false
	}
	a := q.items[0]
	q.items[0] = action{}
	q.items = q.items[1:]
	return a, true
}

// close wakes the worker and returns the pending actions it will never see.
func (q *actionQueue) close() []action {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	pending := q.items
	q.items = nil
	q.cond.Broadcast()
	return pending
}

func (q *actionQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
