package sessions

import (
	"github.com/timzifer/microdash/render"
	"github.com/timzifer/microdash/runtime/widgets"
)

// Queue is the bounded outbound patch buffer of one session. Back-pressure
// is handled by coalescing: a new patch for a widget that already has one
// pending replaces it in place, so the queue never holds more than one patch
// per widget and every widget's latest state stays visible. Patches are
// never dropped across different widgets.
type Queue struct {
	capacity  int
	entries   []render.Patch
	index     map[widgets.ID]int
	coalesced uint64
}

// NewQueue creates a queue. Capacity must cover the widget count, which the
// dashboard guarantees at construction; coalescing then keeps the queue
// within bounds no matter how fast values change.
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{
		capacity: capacity,
		entries:  make([]render.Patch, 0, capacity),
		index:    make(map[widgets.ID]int, capacity),
	}
}

// Push enqueues a patch, replacing a pending patch for the same widget. It
// reports whether an older patch was coalesced away.
func (q *Queue) Push(p render.Patch) bool {
	if pos, ok := q.index[p.Widget]; ok {
		q.entries[pos] = p
		q.coalesced++
		return true
	}
	q.index[p.Widget] = len(q.entries)
	q.entries = append(q.entries, p)
	return false
}

// Len reports the number of pending patches.
func (q *Queue) Len() int { return len(q.entries) }

// Coalesced reports how many patches were replaced since creation.
func (q *Queue) Coalesced() uint64 { return q.coalesced }

// Drain hands the pending patches to fn in enqueue order, removing each one
// that was delivered. A send error stops the drain; the failed patch and its
// successors stay queued for the caller to discard with the session.
func (q *Queue) Drain(fn func(render.Patch) error) error {
	for len(q.entries) > 0 {
		p := q.entries[0]
		if err := fn(p); err != nil {
			return err
		}
		q.entries = q.entries[1:]
		delete(q.index, p.Widget)
		for widget, pos := range q.index {
			q.index[widget] = pos - 1
		}
	}
	q.entries = q.entries[:0]
	return nil
}

// Discard empties the queue without delivery.
func (q *Queue) Discard() {
	q.entries = q.entries[:0]
	for widget := range q.index {
		delete(q.index, widget)
	}
}
