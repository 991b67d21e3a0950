package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"noteenvelope-sync/internal/config"
	"noteenvelope-sync/internal/identity"
	"noteenvelope-sync/internal/metrics"
	"noteenvelope-sync/internal/replication"
	"noteenvelope-sync/internal/repository"
	"noteenvelope-sync/internal/service"
	"noteenvelope-sync/internal/settings"
	"noteenvelope-sync/internal/transport"
	"noteenvelope-sync/internal/transport/relay"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// node is one fully wired device: record store, sync engine and services.
type node struct {
	deviceID string
	store    *repository.Store
	engine   *replication.Engine
	registry *prometheus.Registry

	notes     *service.NoteService
	envelopes *service.EnvelopeService
	labels    *service.LabelService
	transfer  *service.TransferService
	sync      *service.SyncService
	devices   *service.DeviceService
	conflicts *service.ConflictService
}

func openNode(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*node, error) {
	if err := os.MkdirAll(cfg.Storage.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	deviceID, err := identity.LoadOrCreate(cfg.Storage.DataDir)
	if err != nil {
		return nil, err
	}

	backend, err := repository.OpenBackend(ctx, cfg.Storage.Repository(), logger)
	if err != nil {
		return nil, err
	}
	store := repository.NewStore(backend)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	sw := transport.NewSwitch(cfg.Sync.OutboxSize)
	notices := replication.NewNotices()
	dispatcher := replication.NewDispatcher(replication.Config{
		DeviceID:    deviceID,
		InFlightTTL: cfg.Sync.InFlightTTL,
	}, sw, store, notices, m, logger)
	engine := replication.NewEngine(dispatcher, sw.Inbound(), cfg.Sync.OutboxSize, m, logger,
		replication.WithResyncInterval(cfg.Sync.ResyncInterval))

	session := service.RelaySession(relay.Config{
		URL:        cfg.Relay.URL,
		Secret:     cfg.Relay.Secret,
		TokenTTL:   cfg.Relay.TokenTTL,
		MinBackoff: cfg.Sync.MinReconnect,
		MaxBackoff: cfg.Sync.MaxReconnect,
		WriteWait:  cfg.WebSocket.WriteWait,
		Logger:     logger,
	}, deviceID)

	return &node{
		deviceID:  deviceID,
		store:     store,
		engine:    engine,
		registry:  registry,
		notes:     service.NewNoteService(engine, store, logger),
		envelopes: service.NewEnvelopeService(engine, store),
		labels:    service.NewLabelService(engine, store),
		transfer:  service.NewTransferService(engine, store, logger),
		sync:      service.NewSyncService(deviceID, settings.NewStore(cfg.Storage.DataDir, logger), sw, session, notices, logger),
		devices:   service.NewDeviceService(deviceID, store.Devices),
		conflicts: service.NewConflictService(store.Conflicts),
	}, nil
}

// run starts the engine and returns a function that stops it and closes
// the store.
func (n *node) run(ctx context.Context) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		n.engine.Run(ctx)
	}()
	return func() {
		cancel()
		<-done
		n.store.Close()
	}
}
