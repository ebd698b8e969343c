package pubsub

import (
	"context"
	"sync"
	"time"
)

const defaultBufferSize = 64

type config struct {
	buffer int
	replay int
}

// BrokerOption configures a Broker.
type BrokerOption func(*config)

// WithBuffer sets each subscriber's channel capacity.
func WithBuffer(n int) BrokerOption {
	return func(c *config) {
		if n > 0 {
			c.buffer = n
		}
	}
}

// WithReplay keeps the last n events and delivers them to every new
// subscriber before live events.
func WithReplay(n int) BrokerOption {
	return func(c *config) {
		if n > 0 {
			c.replay = n
		}
	}
}

// Broker is a generic pub/sub event broker. Publishing never blocks: a
// subscriber whose buffer is full misses the event and the miss is counted.
type Broker[T any] struct {
	mu      sync.Mutex
	subs    map[chan Event[T]]struct{}
	done    chan struct{}
	cfg     config
	seq     uint64
	history []Event[T]
	dropped uint64
}

var (
	_ Publisher[int]  = (*Broker[int])(nil)
	_ Subscriber[int] = (*Broker[int])(nil)
)

// NewBroker creates a broker.
func NewBroker[T any](opts ...BrokerOption) *Broker[T] {
	cfg := config{buffer: defaultBufferSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Broker[T]{
		subs: make(map[chan Event[T]]struct{}),
		done: make(chan struct{}),
		cfg:  cfg,
	}
}

// closed reports whether Close has been called. Callers hold mu.
func (b *Broker[T]) closed() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}

// Subscribe returns a channel that first yields the replay history, then
// live events. It is closed when ctx is cancelled or the broker is closed.
func (b *Broker[T]) Subscribe(ctx context.Context) <-chan Event[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(chan Event[T], b.cfg.buffer+len(b.history))
	for _, ev := range b.history {
		sub <- ev
	}
	if b.closed() {
		close(sub)
		return sub
	}
	b.subs[sub] = struct{}{}

	go func() {
		select {
		case <-ctx.Done():
		case <-b.done:
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[sub]; ok {
			delete(b.subs, sub)
			close(sub)
		}
	}()

	return sub
}

// Publish sends an event to all subscribers.
func (b *Broker[T]) Publish(eventType EventType, payload T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed() {
		return
	}

	b.seq++
	event := Event[T]{
		Seq:       b.seq,
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	if b.cfg.replay > 0 {
		b.history = append(b.history, event)
		if over := len(b.history) - b.cfg.replay; over > 0 {
			b.history = append(b.history[:0:0], b.history[over:]...)
		}
	}

	for sub := range b.subs {
		select {
		case sub <- event:
		default:
			b.dropped++
		}
	}
}

// Close shuts down the broker and all subscriber channels. Safe to call twice.
func (b *Broker[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed() {
		return
	}

	close(b.done)
	for sub := range b.subs {
		close(sub)
	}
	b.subs = nil
}

// SubscriberCount returns the number of active subscribers.
func (b *Broker[T]) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Dropped returns how many deliveries were skipped because a subscriber's
// buffer was full.
func (b *Broker[T]) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
