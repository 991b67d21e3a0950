package service

import (
	"context"
	"testing"

	"noteenvelope-sync/internal/domain"
	"noteenvelope-sync/internal/repository"
	"noteenvelope-sync/internal/transport/loopback"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeService_ListWithNoteCounts(t *testing.T) {
	ctx, node, _ := startSingle(t)

	work, err := node.envelopes.Create(ctx, &domain.CreateEnvelopeRequest{Name: "work"})
	require.NoError(t, err)
	home, err := node.envelopes.Create(ctx, &domain.CreateEnvelopeRequest{Name: "Home"})
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err := node.notes.Create(ctx, &domain.CreateNoteRequest{Title: "task", EnvelopeID: work.ID})
		require.NoError(t, err)
	}

	list, err := node.envelopes.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, home.ID, list[0].ID)
	assert.Zero(t, list[0].NoteCount)
	assert.Equal(t, work.ID, list[1].ID)
	assert.Equal(t, 2, list[1].NoteCount)
}

func TestEnvelopeService_Update(t *testing.T) {
	ctx, node, obs := startSingle(t)

	created, err := node.envelopes.Create(ctx, &domain.CreateEnvelopeRequest{Name: "Personal"})
	require.NoError(t, err)
	obs.next(t)

	updated, err := node.envelopes.Update(ctx, created.ID, &domain.UpdateEnvelopeRequest{Name: "Private"})
	require.NoError(t, err)
	assert.Equal(t, "Private", updated.Name)
	assert.Equal(t, int64(2), updated.Version)

	ev := obs.next(t)
	assert.Equal(t, domain.CollectionEnvelope, ev.Collection)
	assert.Equal(t, domain.RecordUpdated, ev.Kind)

	_, err = node.envelopes.Update(ctx, "missing", &domain.UpdateEnvelopeRequest{Name: "x"})
	assert.ErrorIs(t, err, ErrEnvelopeNotFound)
}

func TestEnvelopeService_DeleteDetachesNotes(t *testing.T) {
	ctx, node, obs := startSingle(t)

	env, err := node.envelopes.Create(ctx, &domain.CreateEnvelopeRequest{Name: "Trips"})
	require.NoError(t, err)
	inside, err := node.notes.Create(ctx, &domain.CreateNoteRequest{Title: "Lisbon", EnvelopeID: env.ID})
	require.NoError(t, err)
	outside, err := node.notes.Create(ctx, &domain.CreateNoteRequest{Title: "Misc"})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		obs.next(t)
	}

	require.NoError(t, node.envelopes.Delete(ctx, env.ID))

	ev := obs.next(t)
	assert.Equal(t, domain.CollectionNote, ev.Collection)
	assert.Equal(t, inside.ID, ev.RecordID)
	assert.Equal(t, int64(2), ev.Version)

	ev = obs.next(t)
	assert.Equal(t, domain.RecordDeleted, ev.Kind)
	assert.Equal(t, env.ID, ev.RecordID)
	obs.quiet(t)

	detached, err := node.notes.Get(ctx, inside.ID)
	require.NoError(t, err)
	assert.Empty(t, detached.EnvelopeID)
	assert.Equal(t, env.ID, detached.History.At(0).EnvelopeID)

	untouched, err := node.notes.Get(ctx, outside.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), untouched.Version)

	_, err = node.envelopes.Get(ctx, env.ID)
	assert.ErrorIs(t, err, ErrEnvelopeNotFound)
}

func TestEnvelopeService_DeleteFailurePublishesDetachedNotes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	inner, err := repository.OpenBadgerInMemory()
	require.NoError(t, err)
	backend := &failingBackend{Backend: inner, collection: "tombstone"}
	bus := loopback.NewBus()
	node := startTestNodeOn(t, ctx, "dev-a", bus.Join("a"), backend)
	obs := newObserver(bus)

	env, err := node.envelopes.Create(ctx, &domain.CreateEnvelopeRequest{Name: "Trips"})
	require.NoError(t, err)
	var inside []string
	for _, title := range []string{"Lisbon", "Porto"} {
		n, err := node.notes.Create(ctx, &domain.CreateNoteRequest{Title: title, EnvelopeID: env.ID})
		require.NoError(t, err)
		inside = append(inside, n.ID)
	}
	for i := 0; i < 3; i++ {
		obs.next(t)
	}

	backend.armed.Store(true)
	err = node.envelopes.Delete(ctx, env.ID)
	require.ErrorIs(t, err, errDiskFull)

	var published []string
	for i := 0; i < 2; i++ {
		ev := obs.next(t)
		assert.Equal(t, domain.CollectionNote, ev.Collection)
		assert.Equal(t, int64(2), ev.Version)
		published = append(published, ev.RecordID)
	}
	assert.ElementsMatch(t, inside, published)
	obs.quiet(t)

	// the envelope was never tombstoned, so it is still there
	_, err = node.envelopes.Get(ctx, env.ID)
	assert.NoError(t, err)
}
