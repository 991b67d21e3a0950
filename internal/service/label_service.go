package service

import (
	"context"
	"slices"
	"strings"

	"noteenvelope-sync/internal/domain"
	"noteenvelope-sync/internal/repository"

	"github.com/google/uuid"
)

type LabelService struct {
	engine Engine
	store  *repository.Store
}

func NewLabelService(engine Engine, store *repository.Store) *LabelService {
	return &LabelService{
		engine: engine,
		store:  store,
	}
}

func (s *LabelService) List(ctx context.Context) ([]domain.Label, error) {
	labels, err := s.store.Labels.List(ctx)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(labels, func(a, b domain.Label) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return labels, nil
}

func (s *LabelService) Create(ctx context.Context, req *domain.CreateLabelRequest) (domain.Label, error) {
	var label domain.Label
	err := s.engine.Do(ctx, func(ctx context.Context) ([]domain.SyncEvent, error) {
		d := s.engine.Dispatcher()
		label = domain.Label{
			Meta:  domain.Meta{ID: uuid.New().String()}.Stamp(d.DeviceID(), d.Now()),
			Name:  req.Name,
			Color: req.Color,
		}
		if err := s.store.Labels.UpsertAll(ctx, []domain.Label{label}); err != nil {
			return nil, err
		}
		ev, err := recordEvent(d, domain.RecordAdded, domain.CollectionLabel, label)
		if err != nil {
			return nil, err
		}
		return []domain.SyncEvent{ev}, nil
	})
	return label, err
}

func (s *LabelService) Update(ctx context.Context, id string, req *domain.UpdateLabelRequest) (domain.Label, error) {
	var label domain.Label
	err := s.engine.Do(ctx, func(ctx context.Context) ([]domain.SyncEvent, error) {
		current, err := findOr(ctx, s.store.Labels, id, ErrLabelNotFound)
		if err != nil {
			return nil, err
		}
		d := s.engine.Dispatcher()
		label = current
		if req.Name != nil {
			label.Name = *req.Name
		}
		if req.Color != nil {
			label.Color = *req.Color
		}
		label.Meta = current.Meta.Stamp(d.DeviceID(), d.Now())
		if err := s.store.Labels.UpsertAll(ctx, []domain.Label{label}); err != nil {
			return nil, err
		}
		ev, err := recordEvent(d, domain.RecordUpdated, domain.CollectionLabel, label)
		if err != nil {
			return nil, err
		}
		return []domain.SyncEvent{ev}, nil
	})
	return label, err
}

// Delete removes the label and strips it from every note carrying it.
func (s *LabelService) Delete(ctx context.Context, id string) error {
	return s.engine.Do(ctx, func(ctx context.Context) ([]domain.SyncEvent, error) {
		label, err := findOr(ctx, s.store.Labels, id, ErrLabelNotFound)
		if err != nil {
			return nil, err
		}
		notes, err := s.store.Notes.List(ctx)
		if err != nil {
			return nil, err
		}

		d := s.engine.Dispatcher()
		var events []domain.SyncEvent
		for _, n := range notes {
			if !n.HasLabel(id) {
				continue
			}
			labels := slices.DeleteFunc(slices.Clone(n.LabelIDs), func(l string) bool { return l == id })
			_, ev, err := saveNoteEdit(ctx, d, s.store, n, domain.NotePatch{LabelIDs: &labels})
			if err != nil {
				// earlier notes are already stored
				return events, err
			}
			events = append(events, ev)
		}

		buried, err := buryRecord(ctx, d, domain.CollectionLabel, label.Meta, s.store.Labels.Delete)
		return append(events, buried...), err
	})
}
