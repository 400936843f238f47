package fanout

import (
	"context"
	"time"
)

// Kind discriminates the event streams observers can receive.
type Kind string

const (
	// KindLog carries a formatted log line produced while operating a session.
	KindLog Kind = "log"
	// KindStatus carries a human-readable lifecycle status update.
	KindStatus Kind = "status"
)

// Event is one item delivered to a session's observers.
type Event struct {
	Kind    Kind      `json:"kind"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Subscriber receives the events of a single session.
// Implementations must be safe for concurrent use.
type Subscriber interface {
	// Events returns the receive channel. It is closed when the subscriber
	// or the bus shuts down.
	Events() <-chan Event

	// Close unsubscribes and releases resources. Idempotent.
	Close() error
}

// Bus fans events out to a session's subscribers. Publishing to a session
// with no subscribers is a no-op, and slow subscribers have events dropped
// rather than blocking the publisher.
type Bus interface {
	// Publish delivers the event to all current subscribers of the session.
	Publish(ctx context.Context, sessionID string, ev Event) error

	// Subscribe registers a new observer for the session. The subscription is
	// cleaned up when ctx is cancelled or the subscriber is closed.
	Subscribe(ctx context.Context, sessionID string) (Subscriber, error)

	// Close shuts the bus down and closes all subscribers.
	Close() error
}

// Log builds a log event stamped with the current time.
func Log(msg string) Event {
	return Event{Kind: KindLog, Message: msg, At: time.Now().UTC()}
}

// Status builds a status event stamped with the current time.
func Status(msg string) Event {
	return Event{Kind: KindStatus, Message: msg, At: time.Now().UTC()}
}
