package domain

import (
	"encoding/json"
	"time"
)

type EventKind string

const (
	RecordAdded   EventKind = "record_added"
	RecordUpdated EventKind = "record_updated"
	RecordDeleted EventKind = "record_deleted"
	// SyncRequested asks every peer to announce its full state. It names no
	// record.
	SyncRequested EventKind = "sync_requested"
)

// SyncEvent is the unit exchanged between devices. Added and updated events
// carry the full record as payload. Deleted events carry no payload; Version
// is the highest version the deleting device had seen.
type SyncEvent struct {
	Kind       EventKind       `json:"kind" validate:"required,oneof=record_added record_updated record_deleted sync_requested"`
	Collection Collection      `json:"collection" validate:"required,oneof=note envelope label"`
	RecordID   string          `json:"record_id" validate:"required,max=200"`
	Version    int64           `json:"version" validate:"min=1"`
	Origin     string          `json:"origin" validate:"required"`
	SentAt     time.Time       `json:"sent_at"`
	Payload    json.RawMessage `json:"payload,omitempty" validate:"required_unless=Kind record_deleted"`
}

// NewRecordEvent builds an added or updated event for record r.
func NewRecordEvent(kind EventKind, collection Collection, meta Meta, record any, origin string, now time.Time) (SyncEvent, error) {
	payload, err := json.Marshal(record)
	if err != nil {
		return SyncEvent{}, err
	}
	return SyncEvent{
		Kind:       kind,
		Collection: collection,
		RecordID:   meta.ID,
		Version:    meta.Version,
		Origin:     origin,
		SentAt:     now,
		Payload:    payload,
	}, nil
}

func NewDeleteEvent(collection Collection, id string, version int64, origin string, now time.Time) SyncEvent {
	return SyncEvent{
		Kind:       RecordDeleted,
		Collection: collection,
		RecordID:   id,
		Version:    version,
		Origin:     origin,
		SentAt:     now,
	}
}

func NewSyncRequest(origin string, now time.Time) SyncEvent {
	return SyncEvent{Kind: SyncRequested, Origin: origin, SentAt: now}
}
