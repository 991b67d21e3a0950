package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"noteenvelope-sync/internal/domain"
	"noteenvelope-sync/internal/replication"
	"noteenvelope-sync/internal/settings"
	"noteenvelope-sync/internal/transport"
	"noteenvelope-sync/internal/transport/relay"
	"noteenvelope-sync/pkg/seal"
)

// SessionFunc opens a transport session for the channel derived from box.
// The session must stop when ctx is done.
type SessionFunc func(ctx context.Context, box *seal.Box) transport.Transport

// RelaySession returns a SessionFunc that connects to the websocket relay
// described by base. Box and DeviceID are filled in per session.
func RelaySession(base relay.Config, deviceID string) SessionFunc {
	return func(ctx context.Context, box *seal.Box) transport.Transport {
		cfg := base
		cfg.Box = box
		cfg.DeviceID = deviceID
		client := relay.New(cfg)
		go client.Run(ctx)
		return client
	}
}

// SyncService owns the user-facing sync settings and keeps the transport
// switch attached to a session that matches them.
type SyncService struct {
	deviceID string
	settings *settings.Store
	sw       *transport.Switch
	open     SessionFunc
	notices  *replication.Notices
	logger   *slog.Logger

	mu         sync.Mutex
	ctx        context.Context
	current    domain.SyncSettings
	topic      string
	stop       context.CancelFunc
	lastNotice *time.Time
}

func NewSyncService(
	deviceID string,
	settingsStore *settings.Store,
	sw *transport.Switch,
	open SessionFunc,
	notices *replication.Notices,
	logger *slog.Logger,
) *SyncService {
	return &SyncService{
		deviceID: deviceID,
		settings: settingsStore,
		sw:       sw,
		open:     open,
		notices:  notices,
		logger:   logger.With("component", "sync_service"),
		ctx:      context.Background(),
	}
}

// Start applies the saved settings and follows later edits of the settings
// file until ctx is done.
func (s *SyncService) Start(ctx context.Context) error {
	saved, err := s.settings.Load()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	if err := s.Apply(saved); err != nil {
		s.logger.Warn("saved sync settings not applied", "error", err)
	}
	if err := s.settings.Watch(ctx, func(changed domain.SyncSettings) {
		if err := s.Apply(changed); err != nil {
			s.logger.Warn("sync settings not applied", "error", err)
		}
	}); err != nil {
		return err
	}

	notices, cancel := s.notices.Subscribe(16)
	go func() {
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case n, ok := <-notices:
				if !ok {
					return
				}
				s.mu.Lock()
				at := n.DetectedAt
				s.lastNotice = &at
				s.mu.Unlock()
			}
		}
	}()
	return nil
}

// Apply attaches or detaches the transport session so that it matches
// settings. Re-applying the active settings is a no-op.
func (s *SyncService) Apply(cfg domain.SyncSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !cfg.Enabled || cfg.Key == "" {
		s.detachLocked()
		s.current = cfg
		return nil
	}

	key, err := seal.DecodeKey(cfg.Key)
	if err != nil {
		return err
	}
	box, err := seal.NewBox(key)
	if err != nil {
		return err
	}
	if s.stop != nil && s.topic == box.Topic() {
		s.current = cfg
		return nil
	}

	s.detachLocked()
	ctx, stop := context.WithCancel(s.ctx)
	s.sw.Attach(s.open(ctx, box))
	s.stop = stop
	s.topic = box.Topic()
	s.current = cfg
	s.logger.Info("sync enabled", "topic", s.topic)
	return nil
}

func (s *SyncService) detachLocked() {
	if s.stop == nil {
		return
	}
	s.sw.Detach()
	s.stop()
	s.stop = nil
	s.topic = ""
	s.logger.Info("sync disabled")
}

// UpdateSettings persists new settings and applies them. Enabling sync
// needs a password unless a key was saved before.
func (s *SyncService) UpdateSettings(ctx context.Context, req *domain.UpdateSyncSettingsRequest) (domain.SyncStatus, error) {
	s.mu.Lock()
	next := s.current
	s.mu.Unlock()

	next.Enabled = req.Enabled
	if req.Password != "" {
		next.Key = seal.EncodeKey(seal.DeriveKey(req.Password))
	}
	if next.Enabled && next.Key == "" {
		return domain.SyncStatus{}, ErrSyncKeyMissing
	}

	if err := s.settings.Save(next); err != nil {
		return domain.SyncStatus{}, err
	}
	if err := s.Apply(next); err != nil {
		return domain.SyncStatus{}, err
	}
	return s.Status(ctx), nil
}

func (s *SyncService) Status(ctx context.Context) domain.SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.SyncStatus{
		DeviceID:   s.deviceID,
		Enabled:    s.current.Enabled,
		Active:     s.sw.IsActive(),
		HasKey:     s.current.Key != "",
		Topic:      s.topic,
		LastNotice: s.lastNotice,
	}
}

// Notices returns the most recent conflict notices, newest first.
func (s *SyncService) Notices() []domain.Notice {
	return s.notices.Recent()
}
