package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"noteenvelope-sync/internal/domain"
	"noteenvelope-sync/internal/metrics"
	"noteenvelope-sync/internal/replication"
	"noteenvelope-sync/internal/repository"
	"noteenvelope-sync/internal/transport/loopback"
	"noteenvelope-sync/pkg/logging"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

type testNode struct {
	id        string
	store     *repository.Store
	engine    *replication.Engine
	notes     *NoteService
	envelopes *EnvelopeService
	labels    *LabelService
	transfer  *TransferService
}

func startTestNode(t *testing.T, ctx context.Context, id string, ep *loopback.Endpoint) *testNode {
	t.Helper()
	backend, err := repository.OpenBadgerInMemory()
	require.NoError(t, err)
	return startTestNodeOn(t, ctx, id, ep, backend)
}

func startTestNodeOn(t *testing.T, ctx context.Context, id string, ep *loopback.Endpoint, backend repository.Backend) *testNode {
	t.Helper()
	store := repository.NewStore(backend)
	t.Cleanup(func() { store.Close() })

	logger := logging.Discard()
	m := metrics.New(prometheus.NewRegistry())
	d := replication.NewDispatcher(replication.Config{DeviceID: id}, ep, store, replication.NewNotices(), m, logger)
	engine := replication.NewEngine(d, ep.Inbound(), 64, m, logger, replication.WithResyncInterval(time.Hour))
	go engine.Run(ctx)

	return &testNode{
		id:        id,
		store:     store,
		engine:    engine,
		notes:     NewNoteService(engine, store, logger),
		envelopes: NewEnvelopeService(engine, store),
		labels:    NewLabelService(engine, store),
		transfer:  NewTransferService(engine, store, logger),
	}
}

// failingBackend fails writes to one collection once armed.
type failingBackend struct {
	repository.Backend
	collection string
	armed      atomic.Bool
}

var errDiskFull = errors.New("disk full")

func (b *failingBackend) PutAll(ctx context.Context, collection string, docs []repository.Document) error {
	if b.armed.Load() && collection == b.collection {
		return errDiskFull
	}
	return b.Backend.PutAll(ctx, collection, docs)
}

// observer collects every event published on the bus.
type observer struct {
	ep    *loopback.Endpoint
	codec *replication.Codec
}

func newObserver(bus *loopback.Bus) *observer {
	return &observer{ep: bus.Join("observer"), codec: replication.NewCodec()}
}

func (o *observer) next(t *testing.T) domain.SyncEvent {
	t.Helper()
	select {
	case data := <-o.ep.Inbound():
		ev, err := o.codec.Decode(data)
		require.NoError(t, err)
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("no event published")
		return domain.SyncEvent{}
	}
}

func (o *observer) quiet(t *testing.T) {
	t.Helper()
	select {
	case data := <-o.ep.Inbound():
		t.Fatalf("unexpected event published: %s", data)
	case <-time.After(100 * time.Millisecond):
	}
}

func startSingle(t *testing.T) (context.Context, *testNode, *observer) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	bus := loopback.NewBus()
	node := startTestNode(t, ctx, "dev-a", bus.Join("a"))
	return ctx, node, newObserver(bus)
}

func ptr[T any](v T) *T {
	return &v
}
