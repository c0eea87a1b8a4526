// Package inmem provides an in-process broadcast broker. Stream ids are
// unique per call, so a channel normally has exactly one subscriber for the
// lifetime of one invocation.
package inmem

import (
	"context"
	"sync"

	"github.com/turbobackend/mcpbridge/pubsub"
)

const subscriptionBuffer = 64

// Broker fans published payloads out to channel subscribers in publish
// order. Delivery is best-effort: a subscriber that stopped draining its
// buffer loses messages instead of blocking publishers.
type Broker struct {
	mu       sync.RWMutex
	channels map[string][]*subscription
}

var _ pubsub.Broker = (*Broker)(nil)

func New() *Broker {
	return &Broker{channels: make(map[string][]*subscription)}
}

type subscription struct {
	broker  *Broker
	channel string

	mu     sync.Mutex
	ch     chan []byte
	closed bool
}

var _ pubsub.Subscription = (*subscription)(nil)

func (b *Broker) Subscribe(ctx context.Context, channel string) (pubsub.Subscription, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if channel == "" {
		return nil, pubsub.ErrChannelEmpty
	}

	sub := &subscription{
		broker:  b,
		channel: channel,
		ch:      make(chan []byte, subscriptionBuffer),
	}

	b.mu.Lock()
	b.channels[channel] = append(b.channels[channel], sub)
	b.mu.Unlock()

	return sub, nil
}

// Publish delivers payload to every current subscriber of channel.
// Publishing to a channel nobody listens on is not an error.
func (b *Broker) Publish(ctx context.Context, channel string, payload []byte) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if channel == "" {
		return pubsub.ErrChannelEmpty
	}

	b.mu.RLock()
	subs := make([]*subscription, len(b.channels[channel]))
	copy(subs, b.channels[channel])
	b.mu.RUnlock()

	copied := make([]byte, len(payload))
	copy(copied, payload)

	for _, sub := range subs {
		sub.send(copied)
	}
	return nil
}

// SubscriberCount reports how many subscriptions are attached to channel.
// In-process publishers that must not race ahead of a subscriber (the
// stream relay attaches after job dispatch) can wait on this.
func (b *Broker) SubscriberCount(channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.channels[channel])
}

func (s *subscription) Messages() <-chan []byte {
	return s.ch
}

// Unsubscribe removes the subscription and closes its message channel.
// Later calls return pubsub.ErrUnsubscribed.
func (s *subscription) Unsubscribe(_ context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return pubsub.ErrUnsubscribed
	}
	s.closed = true
	close(s.ch)
	s.mu.Unlock()

	s.broker.remove(s)
	return nil
}

func (s *subscription) send(payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- payload:
	default:
	}
}

func (b *Broker) remove(target *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.channels[target.channel]
	for i, sub := range subs {
		if sub == target {
			b.channels[target.channel] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(b.channels[target.channel]) == 0 {
		delete(b.channels, target.channel)
	}
}
