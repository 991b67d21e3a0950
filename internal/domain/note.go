package domain

import (
	"slices"
	"time"
)

type Comment struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type Note struct {
	Meta
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	EnvelopeID   string    `json:"envelope_id,omitempty"`
	LabelIDs     []string  `json:"label_ids"`
	Comments     []Comment `json:"comments"`
	CreatedAt    time.Time `json:"created_at"`
	RestoredFrom int64     `json:"restored_from,omitempty"`
	History      History   `json:"history"`
}

// Snapshot captures the content-bearing fields of the current state. An
// unknown origin resolves to fallback.
func (n Note) Snapshot(fallback string) VersionSnapshot {
	origin := n.Origin
	if fallback != "" {
		origin = origin.OrSelf(fallback)
	}
	return VersionSnapshot{
		Version:    n.Version,
		UpdatedAt:  n.UpdatedAt,
		Origin:     origin,
		Title:      n.Title,
		Content:    n.Content,
		EnvelopeID: n.EnvelopeID,
		LabelIDs:   slices.Clone(n.LabelIDs),
	}
}

func (n Note) SameContent(other Note) bool {
	return n.Title == other.Title && n.Content == other.Content
}

func (n Note) Archive(loser Note, fallback string) (Note, bool) {
	s := loser.Snapshot(fallback)
	if n.History.Contains(s.Version, s.Origin) {
		return n, false
	}
	n.History.Push(s)
	return n, true
}

func (n Note) WithOrigin(origin OriginDevice) Note {
	n.Origin = origin
	return n
}

func (n Note) HasLabel(labelID string) bool {
	return slices.Contains(n.LabelIDs, labelID)
}

// LatestCommentAt returns the creation time of the newest comment, or the
// zero time when there are none.
func (n Note) LatestCommentAt() time.Time {
	var latest time.Time
	for _, c := range n.Comments {
		if c.CreatedAt.After(latest) {
			latest = c.CreatedAt
		}
	}
	return latest
}

// NotePatch is a partial update of a note's fields. Nil fields are left as is.
type NotePatch struct {
	Title        *string
	Content      *string
	EnvelopeID   *string
	LabelIDs     *[]string
	Comments     *[]Comment
	RestoredFrom int64
}

// Apply returns n with the patch applied. It does not touch Meta or History.
func (p NotePatch) Apply(n Note) Note {
	if p.Title != nil {
		n.Title = *p.Title
	}
	if p.Content != nil {
		n.Content = *p.Content
	}
	if p.EnvelopeID != nil {
		n.EnvelopeID = *p.EnvelopeID
	}
	if p.LabelIDs != nil {
		n.LabelIDs = slices.Clone(*p.LabelIDs)
	}
	if p.Comments != nil {
		n.Comments = slices.Clone(*p.Comments)
	}
	n.RestoredFrom = p.RestoredFrom
	return n
}

type NoteSort string

const (
	SortDateNewest    NoteSort = "date_newest"
	SortDateOldest    NoteSort = "date_oldest"
	SortEnvelope      NoteSort = "envelope"
	SortLatestComment NoteSort = "latest_comment"
)

type NoteFilter struct {
	EnvelopeID string   `validate:"omitempty"`
	LabelID    string   `validate:"omitempty"`
	Query      string   `validate:"max=500"`
	Sort       NoteSort `validate:"omitempty,oneof=date_newest date_oldest envelope latest_comment"`
}

type CreateNoteRequest struct {
	Title      string   `json:"title" validate:"max=1000"`
	Content    string   `json:"content"`
	EnvelopeID string   `json:"envelope_id"`
	LabelIDs   []string `json:"label_ids" validate:"dive,required"`
}

type UpdateNoteRequest struct {
	Title      *string   `json:"title" validate:"omitempty,max=1000"`
	Content    *string   `json:"content"`
	EnvelopeID *string   `json:"envelope_id"`
	LabelIDs   *[]string `json:"label_ids" validate:"omitempty,dive,required"`
}

func (r UpdateNoteRequest) Patch() NotePatch {
	return NotePatch{
		Title:      r.Title,
		Content:    r.Content,
		EnvelopeID: r.EnvelopeID,
		LabelIDs:   r.LabelIDs,
	}
}

type AddCommentRequest struct {
	Content string `json:"content" validate:"required,max=10000"`
}
