package transport

import (
	"context"
	"sync"
)

// Switch is a Transport whose underlying session can be attached and
// detached at runtime while consumers keep reading one stable channel.
type Switch struct {
	mu      sync.RWMutex
	current Transport
	stop    chan struct{}
	inbound chan []byte
}

func NewSwitch(buffer int) *Switch {
	return &Switch{inbound: make(chan []byte, buffer)}
}

// Attach replaces the current session with t.
func (s *Switch) Attach(t Transport) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.detachLocked()
	stop := make(chan struct{})
	s.current = t
	s.stop = stop
	go s.forward(t, stop)
}

func (s *Switch) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detachLocked()
}

func (s *Switch) detachLocked() {
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
	s.current = nil
}

func (s *Switch) forward(t Transport, stop chan struct{}) {
	in := t.Inbound()
	for {
		select {
		case <-stop:
			return
		case data, ok := <-in:
			if !ok {
				return
			}
			select {
			case s.inbound <- data:
			case <-stop:
				return
			}
		}
	}
}

func (s *Switch) Publish(ctx context.Context, data []byte) error {
	s.mu.RLock()
	t := s.current
	s.mu.RUnlock()

	if t == nil || !t.IsActive() {
		return ErrUnavailable
	}
	return t.Publish(ctx, data)
}

func (s *Switch) Inbound() <-chan []byte {
	return s.inbound
}

func (s *Switch) IsActive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current != nil && s.current.IsActive()
}
