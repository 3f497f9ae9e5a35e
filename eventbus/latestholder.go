package eventbus

import "sync"

// latestEventHolder implements Receiver for the DropOld policy: a
// single-slot mailbox that always holds the most recently published
// event, overwriting whatever a slow subscriber has not yet consumed.
type latestEventHolder struct {
	mu     sync.Mutex
	cond   *sync.Cond
	event  *Event
	seq    uint64
	closed bool
}

func newLatestEventHolder() *latestEventHolder {
	h := &latestEventHolder{}
	h.cond = sync.NewCond(&h.mu)
	return h
}

func (h *latestEventHolder) set(event Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrReceiverClosed
	}
	h.event = &event
	h.seq++
	h.cond.Broadcast()
	return nil
}

// Receive blocks until an event is available or the holder closes.
func (h *latestEventHolder) Receive() Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	for h.event == nil && !h.closed {
		h.cond.Wait()
	}
	if h.closed {
		return Event{}
	}
	return *h.event
}

// TryReceive returns the latest event without blocking.
func (h *latestEventHolder) TryReceive() (Event, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.event == nil {
		return Event{}, false
	}
	return *h.event, true
}

// Close wakes any blocked Receive and marks the holder unusable.
func (h *latestEventHolder) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	h.cond.Broadcast()
}
