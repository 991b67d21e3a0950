package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snap(v int64, origin string) VersionSnapshot {
	return VersionSnapshot{
		Version:   v,
		UpdatedAt: time.Date(2024, 1, 1, 0, 0, int(v), 0, time.UTC),
		Origin:    KnownDevice(origin),
		Title:     "t",
		Content:   "c",
	}
}

func TestHistory_PushEvictsOldest(t *testing.T) {
	var h History
	for v := int64(1); v <= HistoryCapacity+3; v++ {
		h.Push(snap(v, "a"))
	}

	require.Equal(t, HistoryCapacity, h.Len())
	got := h.Snapshots()
	assert.Equal(t, int64(4), got[0].Version)
	assert.Equal(t, int64(HistoryCapacity+3), got[len(got)-1].Version)

	newest := h.NewestFirst()
	assert.Equal(t, int64(HistoryCapacity+3), newest[0].Version)
	assert.Equal(t, int64(4), newest[len(newest)-1].Version)
}

func TestHistory_ContainsAndFind(t *testing.T) {
	h := NewHistory(snap(1, "a"), snap(2, "a"), snap(2, "b"))

	assert.True(t, h.Contains(2, KnownDevice("b")))
	assert.False(t, h.Contains(3, KnownDevice("a")))
	assert.False(t, h.Contains(1, UnknownDevice))

	s, ok := h.Find(2)
	require.True(t, ok)
	assert.Equal(t, KnownDevice("b"), s.Origin)

	_, ok = h.Find(9)
	assert.False(t, ok)
}

func TestHistory_JSONKeepsOrder(t *testing.T) {
	var h History
	for v := int64(1); v <= HistoryCapacity+2; v++ {
		h.Push(snap(v, "a"))
	}

	data, err := json.Marshal(h)
	require.NoError(t, err)

	var back History
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, h.Snapshots(), back.Snapshots())

	var empty History
	require.NoError(t, json.Unmarshal([]byte("null"), &empty))
	assert.Equal(t, 0, empty.Len())
}

func TestHistory_UnmarshalTruncatesToCapacity(t *testing.T) {
	var list []VersionSnapshot
	for v := int64(1); v <= 15; v++ {
		list = append(list, snap(v, "a"))
	}
	data, err := json.Marshal(list)
	require.NoError(t, err)

	var h History
	require.NoError(t, json.Unmarshal(data, &h))
	require.Equal(t, HistoryCapacity, h.Len())
	assert.Equal(t, int64(6), h.At(0).Version)
}

func TestHistory_PushCopiesLabels(t *testing.T) {
	labels := []string{"l1"}
	s := snap(1, "a")
	s.LabelIDs = labels

	h := NewHistory(s)
	labels[0] = "changed"

	assert.Equal(t, []string{"l1"}, h.At(0).LabelIDs)
}
