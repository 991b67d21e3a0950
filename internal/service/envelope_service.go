package service

import (
	"context"
	"slices"
	"strings"

	"noteenvelope-sync/internal/domain"
	"noteenvelope-sync/internal/repository"

	"github.com/google/uuid"
)

type EnvelopeService struct {
	engine Engine
	store  *repository.Store
}

func NewEnvelopeService(engine Engine, store *repository.Store) *EnvelopeService {
	return &EnvelopeService{
		engine: engine,
		store:  store,
	}
}

func (s *EnvelopeService) Create(ctx context.Context, req *domain.CreateEnvelopeRequest) (*domain.EnvelopeResponse, error) {
	var envelope domain.Envelope
	err := s.engine.Do(ctx, func(ctx context.Context) ([]domain.SyncEvent, error) {
		d := s.engine.Dispatcher()
		envelope = domain.Envelope{
			Meta: domain.Meta{ID: uuid.New().String()}.Stamp(d.DeviceID(), d.Now()),
			Name: req.Name,
		}
		if err := s.store.Envelopes.UpsertAll(ctx, []domain.Envelope{envelope}); err != nil {
			return nil, err
		}
		ev, err := recordEvent(d, domain.RecordAdded, domain.CollectionEnvelope, envelope)
		if err != nil {
			return nil, err
		}
		return []domain.SyncEvent{ev}, nil
	})
	if err != nil {
		return nil, err
	}
	return &domain.EnvelopeResponse{Envelope: envelope}, nil
}

// List returns all envelopes ordered by name, with their note counts.
func (s *EnvelopeService) List(ctx context.Context) ([]*domain.EnvelopeResponse, error) {
	envelopes, err := s.store.Envelopes.List(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := s.noteCounts(ctx)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(envelopes, func(a, b domain.Envelope) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	responses := make([]*domain.EnvelopeResponse, len(envelopes))
	for i, e := range envelopes {
		responses[i] = &domain.EnvelopeResponse{Envelope: e, NoteCount: counts[e.ID]}
	}
	return responses, nil
}

func (s *EnvelopeService) Get(ctx context.Context, id string) (*domain.EnvelopeResponse, error) {
	envelope, err := findOr(ctx, s.store.Envelopes, id, ErrEnvelopeNotFound)
	if err != nil {
		return nil, err
	}
	counts, err := s.noteCounts(ctx)
	if err != nil {
		return nil, err
	}
	return &domain.EnvelopeResponse{Envelope: envelope, NoteCount: counts[id]}, nil
}

func (s *EnvelopeService) Update(ctx context.Context, id string, req *domain.UpdateEnvelopeRequest) (*domain.EnvelopeResponse, error) {
	var envelope domain.Envelope
	err := s.engine.Do(ctx, func(ctx context.Context) ([]domain.SyncEvent, error) {
		current, err := findOr(ctx, s.store.Envelopes, id, ErrEnvelopeNotFound)
		if err != nil {
			return nil, err
		}
		d := s.engine.Dispatcher()
		envelope = current
		envelope.Name = req.Name
		envelope.Meta = current.Meta.Stamp(d.DeviceID(), d.Now())
		if err := s.store.Envelopes.UpsertAll(ctx, []domain.Envelope{envelope}); err != nil {
			return nil, err
		}
		ev, err := recordEvent(d, domain.RecordUpdated, domain.CollectionEnvelope, envelope)
		if err != nil {
			return nil, err
		}
		return []domain.SyncEvent{ev}, nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, envelope.ID)
}

// Delete removes the envelope and detaches its notes. Every detached note is
// a new local version and is propagated like any other edit.
func (s *EnvelopeService) Delete(ctx context.Context, id string) error {
	return s.engine.Do(ctx, func(ctx context.Context) ([]domain.SyncEvent, error) {
		envelope, err := findOr(ctx, s.store.Envelopes, id, ErrEnvelopeNotFound)
		if err != nil {
			return nil, err
		}
		notes, err := s.store.Notes.List(ctx)
		if err != nil {
			return nil, err
		}

		d := s.engine.Dispatcher()
		var events []domain.SyncEvent
		none := ""
		for _, n := range notes {
			if n.EnvelopeID != id {
				continue
			}
			_, ev, err := saveNoteEdit(ctx, d, s.store, n, domain.NotePatch{EnvelopeID: &none})
			if err != nil {
				// earlier notes are already stored
				return events, err
			}
			events = append(events, ev)
		}

		buried, err := buryRecord(ctx, d, domain.CollectionEnvelope, envelope.Meta, s.store.Envelopes.Delete)
		return append(events, buried...), err
	})
}

func (s *EnvelopeService) noteCounts(ctx context.Context) (map[string]int, error) {
	notes, err := s.store.Notes.List(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, n := range notes {
		if n.EnvelopeID != "" {
			counts[n.EnvelopeID]++
		}
	}
	return counts, nil
}
