// Package replication implements versioning, conflict resolution and the
// sync dispatcher that keeps devices eventually consistent.
package replication

import (
	"time"

	"noteenvelope-sync/internal/domain"
)

// ApplyLocalMutation archives the current state of n, applies patch and
// stamps the result as the next version authored by self.
func ApplyLocalMutation(n domain.Note, patch domain.NotePatch, self string, now time.Time) domain.Note {
	n.History.Push(n.Snapshot(self))
	n = patch.Apply(n)
	n.Meta = n.Meta.Stamp(self, now)
	return n
}

// NewNote returns version 1 of a note authored by self.
func NewNote(id string, patch domain.NotePatch, self string, now time.Time) domain.Note {
	n := patch.Apply(domain.Note{
		Meta:      domain.Meta{ID: id, Version: 1, UpdatedAt: now, Origin: domain.KnownDevice(self)},
		LabelIDs:  []string{},
		Comments:  []domain.Comment{},
		CreatedAt: now,
	})
	return n
}
