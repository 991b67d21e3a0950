// Package settings persists the user-controlled sync settings as YAML and
// reloads them when the file changes on disk.
package settings

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"noteenvelope-sync/internal/domain"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

const FileName = "settings.yaml"

type Store struct {
	path   string
	mu     sync.Mutex
	logger *slog.Logger
}

func NewStore(dir string, logger *slog.Logger) *Store {
	return &Store{
		path:   filepath.Join(dir, FileName),
		logger: logger.With("component", "settings"),
	}
}

func (s *Store) Path() string {
	return s.path
}

// Load returns the persisted settings, or disabled defaults when the file
// does not exist yet.
func (s *Store) Load() (domain.SyncSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() (domain.SyncSettings, error) {
	var settings domain.SyncSettings
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return settings, nil
	}
	if err != nil {
		return settings, fmt.Errorf("failed to read settings: %w", err)
	}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return settings, fmt.Errorf("failed to parse settings: %w", err)
	}
	return settings, nil
}

func (s *Store) Save(settings domain.SyncSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace settings: %w", err)
	}
	return nil
}

// Watch calls fn with the new settings each time the file changes, until ctx
// is done. Unparseable edits are logged and skipped.
func (s *Store) Watch(ctx context.Context, fn func(domain.SyncSettings)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create settings watcher: %w", err)
	}
	// watch the directory so atomic renames are seen
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch settings directory: %w", err)
	}

	last, _ := s.Load()
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(s.path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				current, err := s.Load()
				if err != nil {
					s.logger.Warn("ignoring settings change", "error", err)
					continue
				}
				if current == last {
					continue
				}
				last = current
				s.logger.Info("settings changed", "sync_enabled", current.Enabled)
				fn(current)

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("settings watcher error", "error", err)
			}
		}
	}()
	return nil
}
