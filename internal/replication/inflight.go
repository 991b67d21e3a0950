package replication

import (
	"crypto/sha256"
	"sync"
	"time"
)

// InFlight remembers recently published events so their echoes can be
// recognized. Entries are keyed by a digest of the encoded event and expire
// after ttl.
type InFlight struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	marks map[[sha256.Size]byte]time.Time
}

func NewInFlight(ttl time.Duration, now func() time.Time) *InFlight {
	if now == nil {
		now = time.Now
	}
	return &InFlight{
		ttl:   ttl,
		now:   now,
		marks: make(map[[sha256.Size]byte]time.Time),
	}
}

func (f *InFlight) Mark(data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	for k, expires := range f.marks {
		if now.After(expires) {
			delete(f.marks, k)
		}
	}
	f.marks[sha256.Sum256(data)] = now.Add(f.ttl)
}

// Take clears the mark for data and reports whether it was present.
func (f *InFlight) Take(data []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := sha256.Sum256(data)
	expires, ok := f.marks[key]
	if !ok {
		return false
	}
	delete(f.marks, key)
	return !f.now().After(expires)
}

func (f *InFlight) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.marks)
}
