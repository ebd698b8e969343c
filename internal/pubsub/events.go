// Package pubsub fans typed events out to subscribers. The kernel publishes
// its phase transitions and run failures through it.
package pubsub

import (
	"context"
	"time"
)

// EventType represents the type of event being published.
type EventType string

const (
	// PhaseEvent announces an orchestrator phase transition.
	PhaseEvent EventType = "phase"
	// FailedEvent announces that a run ended with a fatal error.
	FailedEvent EventType = "failed"
)

// Event is one published payload. Seq starts at 1 and increases by one per
// Publish on the same broker.
type Event[T any] struct {
	Seq       uint64
	Type      EventType
	Payload   T
	Timestamp time.Time
}

// Subscriber provides a subscription channel for events.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context) <-chan Event[T]
}

// Publisher allows publishing events with a typed payload.
type Publisher[T any] interface {
	Publish(eventType EventType, payload T)
}
