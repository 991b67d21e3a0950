package repository

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("record not found")

type Document struct {
	ID   string
	Data []byte
}

// Backend is a durable document store partitioned by collection. PutAll is
// durable once it returns. Badger and SQL apply it atomically; CouchDB has no
// multi-document transaction and may keep part of a failed batch.
type Backend interface {
	List(ctx context.Context, collection string) ([]Document, error)
	Get(ctx context.Context, collection, id string) ([]byte, error)
	PutAll(ctx context.Context, collection string, docs []Document) error
	Delete(ctx context.Context, collection, id string) error
	Close() error
}
