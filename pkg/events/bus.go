package events

import "sync"

// Publisher accepts events from producers.
type Publisher interface {
	Publish(Event)
}

// Bus is an unbounded FIFO between any number of publishers and one
// draining consumer. Publication order is kept globally, which in particular
// keeps it per probe.
type Bus struct {
	mu      sync.Mutex
	pending []Event
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Publish appends e to the backlog. It never blocks on the consumer.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	b.pending = append(b.pending, e)
	b.mu.Unlock()
}

// DrainAll removes and returns the whole backlog in publication order. It
// returns nil when nothing is pending.
func (b *Bus) DrainAll() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pending) == 0 {
		return nil
	}
	out := b.pending
	b.pending = nil
	return out
}

// Len reports the number of pending events.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

var _ Publisher = (*Bus)(nil)
