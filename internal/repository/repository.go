package repository

import (
	"context"
	"encoding/json"
	"fmt"
)

type Repository[R any] interface {
	List(ctx context.Context) ([]R, error)
	FindByID(ctx context.Context, id string) (R, error)
	UpsertAll(ctx context.Context, records []R) error
	Delete(ctx context.Context, id string) error
}

type jsonRepository[R any] struct {
	backend    Backend
	collection string
	key        func(R) string
}

// NewRepository stores records of one collection as JSON documents keyed by key.
func NewRepository[R any](backend Backend, collection string, key func(R) string) Repository[R] {
	return &jsonRepository[R]{
		backend:    backend,
		collection: collection,
		key:        key,
	}
}

func (r *jsonRepository[R]) List(ctx context.Context) ([]R, error) {
	docs, err := r.backend.List(ctx, r.collection)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", r.collection, err)
	}

	records := make([]R, 0, len(docs))
	for _, doc := range docs {
		var record R
		if err := json.Unmarshal(doc.Data, &record); err != nil {
			return nil, fmt.Errorf("failed to decode %s %s: %w", r.collection, doc.ID, err)
		}
		records = append(records, record)
	}
	return records, nil
}

func (r *jsonRepository[R]) FindByID(ctx context.Context, id string) (R, error) {
	var record R
	data, err := r.backend.Get(ctx, r.collection, id)
	if err != nil {
		return record, fmt.Errorf("failed to find %s %s: %w", r.collection, id, err)
	}
	if err := json.Unmarshal(data, &record); err != nil {
		return record, fmt.Errorf("failed to decode %s %s: %w", r.collection, id, err)
	}
	return record, nil
}

func (r *jsonRepository[R]) UpsertAll(ctx context.Context, records []R) error {
	if len(records) == 0 {
		return nil
	}
	docs := make([]Document, 0, len(records))
	for _, record := range records {
		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", r.collection, err)
		}
		docs = append(docs, Document{ID: r.key(record), Data: data})
	}
	if err := r.backend.PutAll(ctx, r.collection, docs); err != nil {
		return fmt.Errorf("failed to upsert %s: %w", r.collection, err)
	}
	return nil
}

func (r *jsonRepository[R]) Delete(ctx context.Context, id string) error {
	if err := r.backend.Delete(ctx, r.collection, id); err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", r.collection, id, err)
	}
	return nil
}
