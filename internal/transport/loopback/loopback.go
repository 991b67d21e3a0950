// Package loopback is an in-process broadcast bus. It can echo messages to
// their sender, duplicate them, and hold them for out-of-order release.
package loopback

import (
	"context"
	"slices"
	"sync"

	"noteenvelope-sync/internal/transport"
)

type Option func(*Bus)

// WithEcho delivers every message to its publisher as well.
func WithEcho() Option {
	return func(b *Bus) { b.echo = true }
}

// WithDuplicates delivers every message twice.
func WithDuplicates() Option {
	return func(b *Bus) { b.duplicate = true }
}

type held struct {
	to   *Endpoint
	data []byte
}

type Bus struct {
	mu        sync.Mutex
	endpoints []*Endpoint
	echo      bool
	duplicate bool
	holding   bool
	queue     []held
}

func NewBus(opts ...Option) *Bus {
	b := &Bus{}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bus) Join(name string) *Endpoint {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := &Endpoint{bus: b, name: name, inbound: make(chan []byte, 256), active: true}
	b.endpoints = append(b.endpoints, e)
	return e
}

// Hold queues messages instead of delivering them until Release.
func (b *Bus) Hold() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.holding = true
}

// Release delivers held messages, newest first when reverse is set.
func (b *Bus) Release(reverse bool) {
	b.mu.Lock()
	queue := b.queue
	b.queue = nil
	b.holding = false
	b.mu.Unlock()

	if reverse {
		slices.Reverse(queue)
	}
	for _, h := range queue {
		h.to.inbound <- h.data
	}
}

func (b *Bus) deliver(ctx context.Context, from *Endpoint, data []byte) error {
	b.mu.Lock()
	var targets []*Endpoint
	for _, e := range b.endpoints {
		if e == from && !b.echo {
			continue
		}
		targets = append(targets, e)
	}
	copies := 1
	if b.duplicate {
		copies = 2
	}
	if b.holding {
		for _, e := range targets {
			for i := 0; i < copies; i++ {
				b.queue = append(b.queue, held{to: e, data: slices.Clone(data)})
			}
		}
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	for _, e := range targets {
		for i := 0; i < copies; i++ {
			select {
			case e.inbound <- slices.Clone(data):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

type Endpoint struct {
	bus     *Bus
	name    string
	inbound chan []byte

	mu     sync.Mutex
	active bool
}

var _ transport.Transport = (*Endpoint)(nil)

func (e *Endpoint) Name() string {
	return e.name
}

func (e *Endpoint) SetActive(active bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active = active
}

func (e *Endpoint) IsActive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

func (e *Endpoint) Publish(ctx context.Context, data []byte) error {
	if !e.IsActive() {
		return transport.ErrUnavailable
	}
	return e.bus.deliver(ctx, e, data)
}

func (e *Endpoint) Inbound() <-chan []byte {
	return e.inbound
}
