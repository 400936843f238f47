package fanout

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const defaultBufferSize = 64

// MemoryBus is an in-process Bus keyed by session id.
// All methods are safe for concurrent use.
type MemoryBus struct {
	mu         sync.RWMutex
	rooms      map[string]map[string]*memorySubscriber
	bufferSize int
	closed     bool
	wg         sync.WaitGroup
}

type memorySubscriber struct {
	id        string
	sessionID string
	bus       *MemoryBus
	events    chan Event
	closeOnce sync.Once
}

// MemoryOption customizes a MemoryBus.
type MemoryOption func(*MemoryBus)

// WithBufferSize sets the per-subscriber channel buffer. Values below 1 are
// raised to 1 so sends stay non-blocking.
func WithBufferSize(n int) MemoryOption {
	return func(b *MemoryBus) {
		b.bufferSize = max(n, 1)
	}
}

// NewMemoryBus creates an empty in-process bus.
func NewMemoryBus(opts ...MemoryOption) *MemoryBus {
	b := &MemoryBus{
		rooms:      make(map[string]map[string]*memorySubscriber),
		bufferSize: defaultBufferSize,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish delivers the event to the session's current subscribers. Full
// subscriber buffers drop the event rather than blocking.
func (b *MemoryBus) Publish(ctx context.Context, sessionID string, ev Event) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrEmptySessionID
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrBusClosed
	}

	for _, sub := range b.rooms[sessionID] {
		select {
		case sub.events <- ev:
		default:
		}
	}
	return nil
}

// Subscribe registers an observer for the session. Cancelling ctx closes the
// subscription.
func (b *MemoryBus) Subscribe(ctx context.Context, sessionID string) (Subscriber, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrEmptySessionID
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrBusClosed
	}

	sub := &memorySubscriber{
		id:        uuid.NewString(),
		sessionID: sessionID,
		bus:       b,
		events:    make(chan Event, b.bufferSize),
	}

	room, ok := b.rooms[sessionID]
	if !ok {
		room = make(map[string]*memorySubscriber)
		b.rooms[sessionID] = room
	}
	room[sub.id] = sub

	if ctx.Done() != nil {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			<-ctx.Done()
			_ = sub.Close()
		}()
	}
	b.mu.Unlock()

	return sub, nil
}

// Close shuts the bus down and closes every subscriber.
// Safe to call multiple times.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true

	subs := make([]*memorySubscriber, 0)
	for _, room := range b.rooms {
		for _, sub := range room {
			subs = append(subs, sub)
		}
	}
	clear(b.rooms)
	b.mu.Unlock()

	for _, sub := range subs {
		sub.closeOnce.Do(func() { close(sub.events) })
	}
	return nil
}

// SubscriberCount reports how many observers a session currently has.
func (b *MemoryBus) SubscriberCount(sessionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.rooms[sessionID])
}

func (b *MemoryBus) unsubscribe(sub *memorySubscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	room, ok := b.rooms[sub.sessionID]
	if !ok {
		return
	}
	delete(room, sub.id)
	if len(room) == 0 {
		delete(b.rooms, sub.sessionID)
	}
}

func (s *memorySubscriber) Events() <-chan Event {
	return s.events
}

func (s *memorySubscriber) Close() error {
	s.closeOnce.Do(func() {
		s.bus.unsubscribe(s)
		close(s.events)
	})
	return nil
}
