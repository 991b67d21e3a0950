package service

import (
	"context"
	"time"

	"noteenvelope-sync/internal/domain"
	"noteenvelope-sync/internal/repository"
)

// Seed records use fixed ids, an unknown origin and a fixed timestamp so
// that every fresh install produces identical records that converge without
// conflicts.
var seedTime = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

func seedMeta(id string) domain.Meta {
	return domain.Meta{ID: id, Version: 1, UpdatedAt: seedTime}
}

func defaultEnvelopes() []domain.Envelope {
	return []domain.Envelope{
		{Meta: seedMeta("env1"), Name: "Personal"},
		{Meta: seedMeta("env2"), Name: "Work"},
		{Meta: seedMeta("env3"), Name: "Ideas"},
	}
}

func defaultLabels() []domain.Label {
	return []domain.Label{
		{Meta: seedMeta("lbl1"), Name: "Important", Color: "#f97316"},
		{Meta: seedMeta("lbl2"), Name: "Urgent", Color: "#dc2626"},
		{Meta: seedMeta("lbl3"), Name: "Later", Color: "#8b5cf6"},
	}
}

func defaultNotes() []domain.Note {
	return []domain.Note{{
		Meta:       seedMeta("note1"),
		Title:      "Welcome to NoteEnvelope",
		Content:    "This is your first note! Organize your thoughts with envelopes and labels.",
		EnvelopeID: "env1",
		LabelIDs:   []string{"lbl1"},
		Comments: []domain.Comment{{
			ID:        "comment1",
			Content:   "You can add comments to notes too!",
			CreatedAt: seedTime,
		}},
		CreatedAt: seedTime,
	}}
}

// SeedDefaults fills empty collections with the starter records. Seeding is
// local only and never published.
func SeedDefaults(ctx context.Context, engine Engine, store *repository.Store) error {
	return engine.Do(ctx, func(ctx context.Context) ([]domain.SyncEvent, error) {
		if err := seedCollection(ctx, store, domain.CollectionEnvelope, store.Envelopes, defaultEnvelopes()); err != nil {
			return nil, err
		}
		if err := seedCollection(ctx, store, domain.CollectionLabel, store.Labels, defaultLabels()); err != nil {
			return nil, err
		}
		if err := seedCollection(ctx, store, domain.CollectionNote, store.Notes, defaultNotes()); err != nil {
			return nil, err
		}
		return nil, nil
	})
}

func seedCollection[R domain.Record[R]](ctx context.Context, store *repository.Store, collection domain.Collection, repo repository.Repository[R], defaults []R) error {
	existing, err := repo.List(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	var fresh []R
	for _, r := range defaults {
		gone, err := store.IsTombstoned(ctx, collection, r.RecordID())
		if err != nil {
			return err
		}
		if !gone {
			fresh = append(fresh, r)
		}
	}
	return repo.UpsertAll(ctx, fresh)
}
