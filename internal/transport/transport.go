// Package transport defines the encrypted broadcast channel the sync
// dispatcher publishes to and receives from.
package transport

import (
	"context"
	"errors"
)

var ErrUnavailable = errors.New("transport unavailable")

// Transport delivers opaque event bytes to every peer on the channel. Delivery
// is at-least-once and unordered, and a publisher may receive its own
// messages back.
type Transport interface {
	Publish(ctx context.Context, data []byte) error
	Inbound() <-chan []byte
	IsActive() bool
}
