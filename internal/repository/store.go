package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"noteenvelope-sync/internal/domain"
)

const (
	DriverBadger   = "badger"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverCouchDB  = "couchdb"
)

const (
	collectionTombstone = "tombstone"
	collectionConflict  = "conflict"
	collectionDevice    = "device"
	collectionPending   = "pending"
)

type Config struct {
	Driver  string
	DataDir string
	DSN     string
	Couch   CouchConfig
}

// OpenBackend opens the backend selected by cfg.Driver.
func OpenBackend(ctx context.Context, cfg Config, logger *slog.Logger) (Backend, error) {
	switch cfg.Driver {
	case DriverBadger, "":
		return OpenBadger(BadgerConfig{
			Path:       filepath.Join(cfg.DataDir, "records"),
			SyncWrites: true,
			Logger:     logger,
		})
	case DriverSQLite:
		dsn := cfg.DSN
		if dsn == "" {
			dsn = filepath.Join(cfg.DataDir, "records.db")
		}
		return OpenSQL(ctx, DialectSQLite, dsn)
	case DriverPostgres:
		return OpenSQL(ctx, DialectPostgres, cfg.DSN)
	case DriverCouchDB:
		return OpenCouch(ctx, cfg.Couch)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// Store groups the typed repositories sharing one backend.
type Store struct {
	Notes      Repository[domain.Note]
	Envelopes  Repository[domain.Envelope]
	Labels     Repository[domain.Label]
	Tombstones Repository[domain.Tombstone]
	Conflicts  Repository[domain.Conflict]
	Devices    Repository[domain.Device]
	Pending    Repository[domain.PendingRecord]

	backend Backend
}

func NewStore(backend Backend) *Store {
	return &Store{
		Notes: NewRepository(backend, string(domain.CollectionNote),
			func(n domain.Note) string { return n.ID }),
		Envelopes: NewRepository(backend, string(domain.CollectionEnvelope),
			func(e domain.Envelope) string { return e.ID }),
		Labels: NewRepository(backend, string(domain.CollectionLabel),
			func(l domain.Label) string { return l.ID }),
		Tombstones: NewRepository(backend, collectionTombstone,
			func(t domain.Tombstone) string { return t.Key }),
		Conflicts: NewRepository(backend, collectionConflict,
			func(c domain.Conflict) string { return c.ID }),
		Devices: NewRepository(backend, collectionDevice,
			func(d domain.Device) string { return d.ID }),
		Pending: NewRepository(backend, collectionPending,
			func(p domain.PendingRecord) string { return p.Key }),
		backend: backend,
	}
}

// IsTombstoned reports whether id in collection was deleted.
func (s *Store) IsTombstoned(ctx context.Context, collection domain.Collection, id string) (bool, error) {
	_, err := s.Tombstones.FindByID(ctx, domain.TombstoneKey(collection, id))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return false, err
}

func (s *Store) Close() error {
	return s.backend.Close()
}
