package service

import (
	"context"
	"errors"

	"noteenvelope-sync/internal/domain"
	"noteenvelope-sync/internal/replication"
	"noteenvelope-sync/internal/repository"
)

// Engine is the part of the sync engine services mutate through.
type Engine interface {
	Do(ctx context.Context, fn replication.Mutation) error
	Dispatcher() *replication.Dispatcher
}

func recordEvent[R domain.Record[R]](d *replication.Dispatcher, kind domain.EventKind, collection domain.Collection, r R) (domain.SyncEvent, error) {
	return domain.NewRecordEvent(kind, collection, r.Metadata(), r, d.DeviceID(), d.Now())
}

// saveNoteEdit applies patch to n as a new local version and persists it.
func saveNoteEdit(ctx context.Context, d *replication.Dispatcher, store *repository.Store, n domain.Note, patch domain.NotePatch) (domain.Note, domain.SyncEvent, error) {
	n = replication.ApplyLocalMutation(n, patch, d.DeviceID(), d.Now())
	if err := store.Notes.UpsertAll(ctx, []domain.Note{n}); err != nil {
		return n, domain.SyncEvent{}, err
	}
	ev, err := recordEvent(d, domain.RecordUpdated, domain.CollectionNote, n)
	return n, ev, err
}

// buryRecord tombstones and removes a record. The delete event is returned
// as soon as the tombstone is persisted, even if removing the record fails.
func buryRecord(ctx context.Context, d *replication.Dispatcher, collection domain.Collection, meta domain.Meta, remove func(context.Context, string) error) ([]domain.SyncEvent, error) {
	if err := d.Bury(ctx, collection, meta.ID, meta.Version, domain.KnownDevice(d.DeviceID())); err != nil {
		return nil, err
	}
	events := []domain.SyncEvent{domain.NewDeleteEvent(collection, meta.ID, meta.Version, d.DeviceID(), d.Now())}
	if err := remove(ctx, meta.ID); err != nil {
		return events, err
	}
	return events, nil
}

func findOr[R any](ctx context.Context, repo repository.Repository[R], id string, notFound error) (R, error) {
	r, err := repo.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return r, notFound
	}
	return r, err
}
