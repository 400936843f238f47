package fanout

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

const defaultChannelPrefix = "devicelink:fanout:"

// RedisBus fans events out across process replicas via Redis Pub/Sub.
// Every replica subscribed to a session receives its events, so SSE streams
// work regardless of which replica owns the live connection.
type RedisBus struct {
	client *redis.Client
	prefix string

	mu     sync.Mutex
	closed bool
	subs   map[*redisSubscriber]struct{}
}

type redisSubscriber struct {
	bus       *RedisBus
	pubsub    *redis.PubSub
	events    chan Event
	closeOnce sync.Once
}

// RedisOption customizes a RedisBus.
type RedisOption func(*RedisBus)

// WithChannelPrefix overrides the Pub/Sub channel namespace.
func WithChannelPrefix(prefix string) RedisOption {
	return func(b *RedisBus) {
		if prefix != "" {
			b.prefix = prefix
		}
	}
}

// NewRedisBus creates a bus on top of an established Redis client.
// The caller owns the client's lifecycle.
func NewRedisBus(client *redis.Client, opts ...RedisOption) *RedisBus {
	b := &RedisBus{
		client: client,
		prefix: defaultChannelPrefix,
		subs:   make(map[*redisSubscriber]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish marshals the event and publishes it on the session's channel.
func (b *RedisBus) Publish(ctx context.Context, sessionID string, ev Event) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrEmptySessionID
	}

	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrBusClosed
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.prefix+sessionID, payload).Err()
}

// Subscribe opens a Pub/Sub subscription on the session's channel and decodes
// incoming payloads. Undecodable payloads are skipped.
func (b *RedisBus) Subscribe(ctx context.Context, sessionID string) (Subscriber, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrEmptySessionID
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrBusClosed
	}

	pubsub := b.client.Subscribe(ctx, b.prefix+sessionID)
	sub := &redisSubscriber{
		bus:    b,
		pubsub: pubsub,
		events: make(chan Event, defaultBufferSize),
	}
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	go sub.pump(ctx)

	return sub, nil
}

// Close shuts down all subscriptions. The underlying Redis client stays open.
func (b *RedisBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := make([]*redisSubscriber, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	clear(b.subs)
	b.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Close()
	}
	return nil
}

func (b *RedisBus) forget(sub *redisSubscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, sub)
}

// pump is the sole sender on and closer of s.events, so external Close calls
// cannot race a send.
func (s *redisSubscriber) pump(ctx context.Context) {
	defer func() {
		_ = s.Close()
		close(s.events)
	}()

	ch := s.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				continue
			}
			select {
			case s.events <- ev:
			default:
			}
		}
	}
}

func (s *redisSubscriber) Events() <-chan Event {
	return s.events
}

func (s *redisSubscriber) Close() error {
	s.closeOnce.Do(func() {
		s.bus.forget(s)
		_ = s.pubsub.Close()
	})
	return nil
}
