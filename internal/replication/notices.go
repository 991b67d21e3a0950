package replication

import (
	"sync"

	"noteenvelope-sync/internal/domain"
)

const recentNotices = 50

// Notices fans conflict notices out to subscribers and keeps the most
// recent ones for late readers.
type Notices struct {
	mu     sync.Mutex
	subs   map[int]chan domain.Notice
	nextID int
	recent []domain.Notice
}

func NewNotices() *Notices {
	return &Notices{subs: make(map[int]chan domain.Notice)}
}

// Publish never blocks; a subscriber with a full buffer misses the notice.
func (n *Notices) Publish(notice domain.Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.recent = append(n.recent, notice)
	if len(n.recent) > recentNotices {
		n.recent = n.recent[len(n.recent)-recentNotices:]
	}
	for _, ch := range n.subs {
		select {
		case ch <- notice:
		default:
		}
	}
}

func (n *Notices) Subscribe(buffer int) (<-chan domain.Notice, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	ch := make(chan domain.Notice, buffer)
	n.subs[id] = ch

	return ch, func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if _, ok := n.subs[id]; ok {
			delete(n.subs, id)
			close(ch)
		}
	}
}

// Recent returns the retained notices, newest first.
func (n *Notices) Recent() []domain.Notice {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]domain.Notice, 0, len(n.recent))
	for i := len(n.recent) - 1; i >= 0; i-- {
		out = append(out, n.recent[i])
	}
	return out
}
