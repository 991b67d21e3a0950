package replication

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"noteenvelope-sync/internal/domain"
	"noteenvelope-sync/internal/metrics"
)

var ErrEngineStopped = errors.New("sync engine stopped")

const defaultResyncInterval = 2 * time.Second

// Mutation runs inside the engine loop with exclusive access to the record
// store. The returned events are queued for publishing even when it also
// returns an error: they describe writes that were already persisted.
type Mutation func(ctx context.Context) ([]domain.SyncEvent, error)

type operation struct {
	fn   Mutation
	done chan error
}

type EngineOption func(*Engine)

// WithResyncInterval sets how often the engine checks the transport and
// re-offers pending records.
func WithResyncInterval(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.resyncEvery = d
		}
	}
}

// Engine is the single consumer that serializes local mutations and inbound
// events. Publishing runs on a separate goroutine so local writes never wait
// on the network.
type Engine struct {
	dispatcher  *Dispatcher
	inbound     <-chan []byte
	ops         chan operation
	outbox      chan domain.SyncEvent
	stopped     chan struct{}
	resyncEvery time.Duration
	online      bool
	metrics     *metrics.Sync
	logger      *slog.Logger
}

func NewEngine(d *Dispatcher, inbound <-chan []byte, outboxSize int, m *metrics.Sync, logger *slog.Logger, opts ...EngineOption) *Engine {
	if outboxSize <= 0 {
		outboxSize = 256
	}
	e := &Engine{
		dispatcher:  d,
		inbound:     inbound,
		ops:         make(chan operation),
		outbox:      make(chan domain.SyncEvent, outboxSize),
		stopped:     make(chan struct{}),
		resyncEvery: defaultResyncInterval,
		metrics:     m,
		logger:      logger.With("component", "engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Dispatcher() *Dispatcher {
	return e.dispatcher
}

// Run processes operations and inbound events until ctx is done. It returns
// after the publish loop has exited, so the store can be closed afterwards.
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.stopped)
	published := make(chan struct{})
	go func() {
		defer close(published)
		e.publishLoop(ctx)
	}()
	defer func() { <-published }()

	ticker := time.NewTicker(e.resyncEvery)
	defer ticker.Stop()

	e.logger.Info("sync engine started", "device_id", e.dispatcher.DeviceID())
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("sync engine stopped")
			return ctx.Err()

		case op := <-e.ops:
			events, err := op.fn(ctx)
			for _, ev := range events {
				e.enqueue(ctx, ev)
			}
			op.done <- err

		case data, ok := <-e.inbound:
			if !ok {
				e.inbound = nil
				continue
			}
			outcome, err := e.dispatcher.OnReceive(ctx, data)
			if err != nil {
				e.logger.Error("failed to apply inbound event", "error", err)
				continue
			}
			if outcome == Requested {
				e.announce(ctx)
			}

		case <-ticker.C:
			e.resync(ctx)
		}
	}
}

// Do runs fn on the engine loop and waits for it to finish. Once the loop
// has accepted fn, Do reports its result even if ctx is cancelled meanwhile.
func (e *Engine) Do(ctx context.Context, fn Mutation) error {
	op := operation{fn: fn, done: make(chan error, 1)}
	select {
	case e.ops <- op:
	case <-e.stopped:
		return ErrEngineStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-op.done
}

// resync announces the local state and asks peers for theirs when the
// transport comes up, then re-offers pending records while it stays up.
func (e *Engine) resync(ctx context.Context) {
	if !e.dispatcher.Online() {
		if e.online {
			e.logger.Info("transport offline")
		}
		e.online = false
		return
	}
	if !e.online {
		e.online = true
		e.logger.Info("transport online, exchanging state with peers")
		e.enqueue(ctx, domain.NewSyncRequest(e.dispatcher.DeviceID(), e.dispatcher.Now()))
		e.announce(ctx)
	}
	e.flushPending(ctx)
}

func (e *Engine) flushPending(ctx context.Context) {
	pending, err := e.dispatcher.Pending(ctx)
	if err != nil {
		e.logger.Error("failed to list pending records", "error", err)
		return
	}
	for _, p := range pending {
		ev, ok, err := e.dispatcher.Resend(ctx, p.Collection, p.ID)
		if err != nil {
			e.logger.Error("failed to load pending record", "collection", p.Collection, "record_id", p.ID, "error", err)
			return
		}
		// clear before queueing so a failed publish can mark it again
		if err := e.dispatcher.ClearPending(ctx, p); err != nil {
			e.logger.Error("failed to clear pending record", "record_id", p.ID, "error", err)
			return
		}
		if ok && !e.enqueue(ctx, ev) {
			return
		}
	}
	if len(pending) > 0 {
		e.logger.Debug("re-offered pending records", "count", len(pending))
	}
}

// announce queues the full local state for a peer that asked for it.
func (e *Engine) announce(ctx context.Context) {
	events, err := e.dispatcher.Announce(ctx)
	if err != nil {
		e.logger.Error("failed to build announce", "error", err)
		return
	}
	for _, ev := range events {
		e.enqueue(ctx, ev)
	}
	e.logger.Debug("announced local state", "events", len(events))
}

// enqueue queues ev for publishing. A full outbox marks the record pending
// instead.
func (e *Engine) enqueue(ctx context.Context, ev domain.SyncEvent) bool {
	select {
	case e.outbox <- ev:
		e.metrics.OutboxDepth.Set(float64(len(e.outbox)))
		return true
	default:
		e.logger.Warn("outbox full, deferring event", "collection", ev.Collection, "record_id", ev.RecordID)
		e.metrics.Dropped.WithLabelValues("outbox_full").Inc()
		e.dispatcher.MarkPending(ctx, ev)
		return false
	}
}

func (e *Engine) publishLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-e.outbox:
			e.metrics.OutboxDepth.Set(float64(len(e.outbox)))
			outcome := e.dispatcher.Publish(ctx, ev)
			if outcome != Sent {
				e.logger.Debug("event not sent",
					"outcome", outcome, "collection", ev.Collection, "record_id", ev.RecordID)
			}
		}
	}
}
