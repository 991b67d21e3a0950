package domain

import "time"

type Collection string

const (
	CollectionNote     Collection = "note"
	CollectionEnvelope Collection = "envelope"
	CollectionLabel    Collection = "label"
)

// Meta is the replication header shared by every synced record.
type Meta struct {
	ID        string       `json:"id"`
	Version   int64        `json:"version"`
	UpdatedAt time.Time    `json:"updated_at"`
	Origin    OriginDevice `json:"origin_device"`
}

func (m Meta) RecordID() string {
	return m.ID
}

func (m Meta) Metadata() Meta {
	return m
}

// Stamp returns the header of the next locally authored version.
func (m Meta) Stamp(self string, now time.Time) Meta {
	return Meta{
		ID:        m.ID,
		Version:   m.Version + 1,
		UpdatedAt: now,
		Origin:    KnownDevice(self),
	}
}

// Record is implemented by every collection the resolver can merge.
type Record[R any] interface {
	RecordID() string
	Metadata() Meta
	SameContent(other R) bool
	// Archive returns the receiver with loser recorded in its history.
	// Unknown loser origins resolve to fallback. The bool reports whether
	// an entry was appended.
	Archive(loser R, fallback string) (R, bool)
	WithOrigin(origin OriginDevice) R
}

// Tombstone marks a deleted record id. Tombstoned ids are never accepted again.
type Tombstone struct {
	Key        string       `json:"key"`
	Collection Collection   `json:"collection"`
	ID         string       `json:"id"`
	Version    int64        `json:"version"`
	DeletedAt  time.Time    `json:"deleted_at"`
	Origin     OriginDevice `json:"origin_device"`
}

func TombstoneKey(collection Collection, id string) string {
	return RecordKey(collection, id)
}

func RecordKey(collection Collection, id string) string {
	return string(collection) + ":" + id
}

// PendingRecord marks a record whose latest state may not have reached any
// peer. It is cleared once the current state is queued again.
type PendingRecord struct {
	Key        string     `json:"key"`
	Collection Collection `json:"collection"`
	ID         string     `json:"id"`
	MarkedAt   time.Time  `json:"marked_at"`
}
