// Package eventbus fans out a run's event stream to any number of live
// subscribers, replaying history to new subscribers and dropping slow
// clients rather than blocking the run.
package eventbus

import (
	"sync"

	"github.com/forgeline/healer/internal/model"
)

// Broadcaster fans out one run's events to multiple subscribers. One
// Broadcaster per run. Thread-safe.
type Broadcaster struct {
	mu      sync.Mutex
	history []model.Event
	clients map[uint64]chan model.Event
	nextID  uint64
	closed  bool
	doneCh  chan struct{}
}

// NewBroadcaster creates a new per-run event broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients: make(map[uint64]chan model.Event),
		doneCh:  make(chan struct{}),
	}
}

// Publish appends ev to history and forwards it to every live subscriber.
// A subscriber whose channel is full is dropped rather than allowed to
// stall the run.
func (b *Broadcaster) Publish(ev model.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.history = append(b.history, ev)
	for id, ch := range b.clients {
		select {
		case ch <- ev:
		default:
			close(ch)
			delete(b.clients, id)
		}
	}
}

// Subscribe returns an events channel (replays history then streams live
// events), a done channel closed only when Close is called, and an
// unsubscribe function.
func (b *Broadcaster) Subscribe() (<-chan model.Event, <-chan struct{}, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan model.Event, len(b.history)+256)
	id := b.nextID
	b.nextID++

	for _, ev := range b.history {
		ch <- ev
	}

	if b.closed {
		close(ch)
		return ch, b.doneCh, func() {}
	}

	b.clients[id] = ch
	unsub := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.clients[id]; ok {
			delete(b.clients, id)
			close(ch)
		}
	}
	return ch, b.doneCh, unsub
}

// Close signals that the run has finished; all client channels are
// closed and doneCh fires so subscribers can distinguish "run ended"
// from "I was dropped for being slow".
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.doneCh)
	for id, ch := range b.clients {
		close(ch)
		delete(b.clients, id)
	}
}

// History returns a copy of every event published so far.
func (b *Broadcaster) History() []model.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]model.Event, len(b.history))
	copy(out, b.history)
	return out
}
