package domain

import (
	"encoding/json"
	"slices"
	"time"
)

// HistoryCapacity is the number of snapshots a note retains.
const HistoryCapacity = 10

type VersionSnapshot struct {
	Version    int64        `json:"version"`
	UpdatedAt  time.Time    `json:"updated_at"`
	Origin     OriginDevice `json:"origin_device"`
	Title      string       `json:"title"`
	Content    string       `json:"content"`
	EnvelopeID string       `json:"envelope_id,omitempty"`
	LabelIDs   []string     `json:"label_ids"`
}

func (s VersionSnapshot) SameKey(version int64, origin OriginDevice) bool {
	return s.Version == version && s.Origin == origin
}

// History is a fixed-capacity ring of snapshots. Pushing onto a full ring
// evicts the oldest entry. It serializes as an array ordered oldest to newest.
type History struct {
	slots [HistoryCapacity]VersionSnapshot
	start int
	size  int
}

func NewHistory(snapshots ...VersionSnapshot) History {
	var h History
	for _, s := range snapshots {
		h.Push(s)
	}
	return h
}

func (h History) Len() int {
	return h.size
}

func (h *History) Push(s VersionSnapshot) {
	s.LabelIDs = slices.Clone(s.LabelIDs)
	if h.size < HistoryCapacity {
		h.slots[(h.start+h.size)%HistoryCapacity] = s
		h.size++
		return
	}
	h.slots[h.start] = s
	h.start = (h.start + 1) % HistoryCapacity
}

// At returns the i-th snapshot counting from the oldest.
func (h History) At(i int) VersionSnapshot {
	return h.slots[(h.start+i)%HistoryCapacity]
}

func (h History) Snapshots() []VersionSnapshot {
	out := make([]VersionSnapshot, 0, h.size)
	for i := 0; i < h.size; i++ {
		out = append(out, h.At(i))
	}
	return out
}

// NewestFirst returns the snapshots in display order.
func (h History) NewestFirst() []VersionSnapshot {
	out := make([]VersionSnapshot, 0, h.size)
	for i := h.size - 1; i >= 0; i-- {
		out = append(out, h.At(i))
	}
	return out
}

func (h History) Contains(version int64, origin OriginDevice) bool {
	for i := 0; i < h.size; i++ {
		if h.At(i).SameKey(version, origin) {
			return true
		}
	}
	return false
}

// Find returns the newest snapshot recorded for version.
func (h History) Find(version int64) (VersionSnapshot, bool) {
	for i := h.size - 1; i >= 0; i-- {
		if s := h.At(i); s.Version == version {
			return s, true
		}
	}
	return VersionSnapshot{}, false
}

func (h History) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.Snapshots())
}

func (h *History) UnmarshalJSON(data []byte) error {
	var snapshots []VersionSnapshot
	if err := json.Unmarshal(data, &snapshots); err != nil {
		return err
	}
	*h = NewHistory(snapshots...)
	return nil
}
