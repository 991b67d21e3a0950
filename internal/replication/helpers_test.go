package replication

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"noteenvelope-sync/internal/domain"
	"noteenvelope-sync/internal/metrics"
	"noteenvelope-sync/internal/repository"
	"noteenvelope-sync/internal/transport"
	"noteenvelope-sync/pkg/logging"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeTransport struct {
	mu     sync.Mutex
	active bool
	err    error
	sent   [][]byte
	in     chan []byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{active: true, in: make(chan []byte, 16)}
}

func (f *fakeTransport) Publish(_ context.Context, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, data)
	return nil
}

func (f *fakeTransport) Inbound() <-chan []byte { return f.in }

func (f *fakeTransport) IsActive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

func (f *fakeTransport) last(t *testing.T) []byte {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent, "nothing was published")
	return f.sent[len(f.sent)-1]
}

var _ transport.Transport = (*fakeTransport)(nil)

func newTestStore(t *testing.T) *repository.Store {
	t.Helper()
	backend, err := repository.OpenBadgerInMemory()
	require.NoError(t, err)
	store := repository.NewStore(backend)
	t.Cleanup(func() { store.Close() })
	return store
}

func testMetrics() *metrics.Sync {
	return metrics.New(prometheus.NewRegistry())
}

// device is one simulated install driving its dispatcher directly.
type device struct {
	id        string
	store     *repository.Store
	transport *fakeTransport
	notices   *Notices
	d         *Dispatcher
	clock     *testClock
}

func newDevice(t *testing.T, id string, clock *testClock) *device {
	t.Helper()
	store := newTestStore(t)
	tr := newFakeTransport()
	notices := NewNotices()
	d := NewDispatcher(Config{DeviceID: id, InFlightTTL: time.Minute, Now: clock.Now},
		tr, store, notices, testMetrics(), logging.Discard())
	return &device{id: id, store: store, transport: tr, notices: notices, d: d, clock: clock}
}

func (dv *device) note(t *testing.T, id string) domain.Note {
	t.Helper()
	n, err := dv.store.Notes.FindByID(context.Background(), id)
	require.NoError(t, err)
	return n
}

func (dv *device) hasNote(t *testing.T, id string) bool {
	t.Helper()
	_, err := dv.store.Notes.FindByID(context.Background(), id)
	if errors.Is(err, repository.ErrNotFound) {
		return false
	}
	require.NoError(t, err)
	return true
}

func (dv *device) publishNote(t *testing.T, kind domain.EventKind, n domain.Note) []byte {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, dv.store.Notes.UpsertAll(ctx, []domain.Note{n}))
	ev, err := domain.NewRecordEvent(kind, domain.CollectionNote, n.Meta, n, dv.id, dv.clock.Now())
	require.NoError(t, err)
	require.Equal(t, Sent, dv.d.Publish(ctx, ev))
	return dv.transport.last(t)
}

func (dv *device) create(t *testing.T, id, title, content string) []byte {
	t.Helper()
	n := NewNote(id, domain.NotePatch{Title: &title, Content: &content}, dv.id, dv.clock.Now())
	return dv.publishNote(t, domain.RecordAdded, n)
}

func (dv *device) editContent(t *testing.T, id, content string) []byte {
	t.Helper()
	n := ApplyLocalMutation(dv.note(t, id), domain.NotePatch{Content: &content}, dv.id, dv.clock.Now())
	return dv.publishNote(t, domain.RecordUpdated, n)
}

func (dv *device) receive(t *testing.T, data []byte) Outcome {
	t.Helper()
	outcome, err := dv.d.OnReceive(context.Background(), data)
	require.NoError(t, err)
	return outcome
}
