// Package pubsub defines the broadcast-channel contract the execution
// substrate reports through. Subscribing yields a sequential message stream
// the relay consumes with ordinary control flow; no callbacks.
package pubsub

import (
	"context"
	"errors"
)

var (
	ErrChannelEmpty = errors.New("channel name is empty")
	ErrUnsubscribed = errors.New("subscription is closed")
)

// Subscription is one exclusive hold on a broadcast channel. Messages
// delivers payloads in publish order; the channel is closed after
// Unsubscribe. Release is the subscriber's responsibility on every exit
// path.
type Subscription interface {
	Messages() <-chan []byte
	Unsubscribe(ctx context.Context) error
}

// Broker is the pub/sub substrate contract.
type Broker interface {
	Subscribe(ctx context.Context, channel string) (Subscription, error)
	Publish(ctx context.Context, channel string, payload []byte) error
}
