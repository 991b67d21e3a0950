package service

import (
	"testing"

	"noteenvelope-sync/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabelService_CreateUpdate(t *testing.T) {
	ctx, node, _ := startSingle(t)

	label, err := node.labels.Create(ctx, &domain.CreateLabelRequest{Name: "Urgent", Color: "#dc2626"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), label.Version)

	updated, err := node.labels.Update(ctx, label.ID, &domain.UpdateLabelRequest{Color: ptr("#000000")})
	require.NoError(t, err)
	assert.Equal(t, "Urgent", updated.Name)
	assert.Equal(t, "#000000", updated.Color)
	assert.Equal(t, int64(2), updated.Version)

	_, err = node.labels.Update(ctx, "missing", &domain.UpdateLabelRequest{})
	assert.ErrorIs(t, err, ErrLabelNotFound)
}

func TestLabelService_DeleteStripsNotes(t *testing.T) {
	ctx, node, _ := startSingle(t)

	keep, err := node.labels.Create(ctx, &domain.CreateLabelRequest{Name: "Keep", Color: "#111111"})
	require.NoError(t, err)
	drop, err := node.labels.Create(ctx, &domain.CreateLabelRequest{Name: "Drop", Color: "#222222"})
	require.NoError(t, err)

	note, err := node.notes.Create(ctx, &domain.CreateNoteRequest{Title: "tagged", LabelIDs: []string{keep.ID, drop.ID}})
	require.NoError(t, err)

	require.NoError(t, node.labels.Delete(ctx, drop.ID))

	got, err := node.notes.Get(ctx, note.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{keep.ID}, got.LabelIDs)
	assert.Equal(t, int64(2), got.Version)

	labels, err := node.labels.List(ctx)
	require.NoError(t, err)
	require.Len(t, labels, 1)
	assert.Equal(t, keep.ID, labels[0].ID)

	assert.ErrorIs(t, node.labels.Delete(ctx, drop.ID), ErrLabelNotFound)
}
