package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-kivik/kivik/v4"
	_ "github.com/go-kivik/kivik/v4/couchdb"
)

// couchListLimit bounds a single collection scan; _find defaults to 25 rows.
const couchListLimit = 100000

type CouchConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

func (c CouchConfig) URL() string {
	return fmt.Sprintf("http://%s:%s@%s:%s", c.User, c.Password, c.Host, c.Port)
}

type couchDoc struct {
	ID         string          `json:"_id"`
	Rev        string          `json:"_rev,omitempty"`
	Collection string          `json:"collection"`
	Data       json.RawMessage `json:"data"`
}

// CouchBackend stores each record as a document with id "<collection>:<id>".
type CouchBackend struct {
	client *kivik.Client
	dbName string
}

func OpenCouch(ctx context.Context, cfg CouchConfig) (*CouchBackend, error) {
	client, err := kivik.New("couch", cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to CouchDB: %w", err)
	}

	exists, err := client.DBExists(ctx, cfg.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to check database existence: %w", err)
	}
	if !exists {
		if err := client.CreateDB(ctx, cfg.Name); err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	return &CouchBackend{client: client, dbName: cfg.Name}, nil
}

func couchDocID(collection, id string) string {
	return fmt.Sprintf("%s:%s", collection, id)
}

func (b *CouchBackend) List(ctx context.Context, collection string) ([]Document, error) {
	db := b.client.DB(b.dbName)

	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"collection": collection,
		},
		"limit": couchListLimit,
	}

	rows := db.Find(ctx, query)
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}
	defer rows.Close()

	prefix := len(collection) + 1
	var docs []Document
	for rows.Next() {
		var doc couchDoc
		if err := rows.ScanDoc(&doc); err != nil {
			return nil, err
		}
		docs = append(docs, Document{ID: doc.ID[prefix:], Data: doc.Data})
	}
	return docs, rows.Err()
}

func (b *CouchBackend) Get(ctx context.Context, collection, id string) ([]byte, error) {
	db := b.client.DB(b.dbName)

	var doc couchDoc
	if err := db.Get(ctx, couchDocID(collection, id)).ScanDoc(&doc); err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc.Data, nil
}

func (b *CouchBackend) rev(ctx context.Context, docID string) (string, error) {
	rev, err := b.client.DB(b.dbName).GetRev(ctx, docID)
	if kivik.HTTPStatus(err) == http.StatusNotFound {
		return "", nil
	}
	return rev, err
}

// PutAll writes all documents in one _bulk_docs request. CouchDB applies a
// bulk request per document, so on error some documents may be stored.
func (b *CouchBackend) PutAll(ctx context.Context, collection string, docs []Document) error {
	revs := make(map[string]string, len(docs))
	for _, d := range docs {
		docID := couchDocID(collection, d.ID)
		rev, err := b.rev(ctx, docID)
		if err != nil {
			return fmt.Errorf("failed to fetch revision of %s: %w", docID, err)
		}
		revs[docID] = rev
	}

	results, err := b.client.DB(b.dbName).BulkDocs(ctx, bulkDocs(collection, docs, revs))
	if err != nil {
		return fmt.Errorf("failed to write %s documents: %w", collection, err)
	}
	return bulkError(results)
}

func bulkDocs(collection string, docs []Document, revs map[string]string) []interface{} {
	out := make([]interface{}, 0, len(docs))
	for _, d := range docs {
		docID := couchDocID(collection, d.ID)
		out = append(out, couchDoc{
			ID:         docID,
			Rev:        revs[docID],
			Collection: collection,
			Data:       json.RawMessage(d.Data),
		})
	}
	return out
}

// bulkError joins the per-document failures of a bulk write.
func bulkError(results []kivik.BulkResult) error {
	var errs []error
	for _, r := range results {
		if r.Error != nil {
			errs = append(errs, fmt.Errorf("failed to put %s: %w", r.ID, r.Error))
		}
	}
	return errors.Join(errs...)
}

func (b *CouchBackend) Delete(ctx context.Context, collection, id string) error {
	docID := couchDocID(collection, id)
	rev, err := b.rev(ctx, docID)
	if err != nil {
		return err
	}
	if rev == "" {
		return nil
	}
	_, err = b.client.DB(b.dbName).Delete(ctx, docID, rev)
	return err
}

func (b *CouchBackend) Close() error {
	return b.client.Close()
}
