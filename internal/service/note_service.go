package service

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"strings"

	"noteenvelope-sync/internal/domain"
	"noteenvelope-sync/internal/replication"
	"noteenvelope-sync/internal/repository"

	"github.com/google/uuid"
)

type NoteService struct {
	engine Engine
	store  *repository.Store
	logger *slog.Logger
}

func NewNoteService(engine Engine, store *repository.Store, logger *slog.Logger) *NoteService {
	return &NoteService{
		engine: engine,
		store:  store,
		logger: logger.With("component", "note_service"),
	}
}

func (s *NoteService) Create(ctx context.Context, req *domain.CreateNoteRequest) (domain.Note, error) {
	labels := req.LabelIDs
	if labels == nil {
		labels = []string{}
	}
	patch := domain.NotePatch{
		Title:      &req.Title,
		Content:    &req.Content,
		EnvelopeID: &req.EnvelopeID,
		LabelIDs:   &labels,
	}

	var note domain.Note
	err := s.engine.Do(ctx, func(ctx context.Context) ([]domain.SyncEvent, error) {
		if err := s.checkEnvelope(ctx, req.EnvelopeID); err != nil {
			return nil, err
		}
		d := s.engine.Dispatcher()
		note = replication.NewNote(uuid.New().String(), patch, d.DeviceID(), d.Now())
		if err := s.store.Notes.UpsertAll(ctx, []domain.Note{note}); err != nil {
			return nil, err
		}
		ev, err := recordEvent(d, domain.RecordAdded, domain.CollectionNote, note)
		if err != nil {
			return nil, err
		}
		return []domain.SyncEvent{ev}, nil
	})
	return note, err
}

func (s *NoteService) Get(ctx context.Context, id string) (domain.Note, error) {
	return findOr(ctx, s.store.Notes, id, ErrNoteNotFound)
}

// List returns the notes matching filter, newest first unless filter.Sort
// says otherwise.
func (s *NoteService) List(ctx context.Context, filter domain.NoteFilter) ([]domain.Note, error) {
	notes, err := s.store.Notes.List(ctx)
	if err != nil {
		return nil, err
	}

	query := strings.ToLower(strings.TrimSpace(filter.Query))
	notes = slices.DeleteFunc(notes, func(n domain.Note) bool {
		if filter.EnvelopeID != "" && n.EnvelopeID != filter.EnvelopeID {
			return true
		}
		if filter.LabelID != "" && !n.HasLabel(filter.LabelID) {
			return true
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(n.Title), query) &&
			!strings.Contains(strings.ToLower(n.Content), query) {
			return true
		}
		return false
	})

	newest := func(a, b domain.Note) int {
		return cmpOr(b.UpdatedAt.Compare(a.UpdatedAt), cmp.Compare(a.ID, b.ID))
	}

	switch filter.Sort {
	case domain.SortDateOldest:
		slices.SortFunc(notes, func(a, b domain.Note) int { return newest(b, a) })
	case domain.SortLatestComment:
		slices.SortFunc(notes, func(a, b domain.Note) int {
			return cmpOr(b.LatestCommentAt().Compare(a.LatestCommentAt()), newest(a, b))
		})
	case domain.SortEnvelope:
		names, err := s.envelopeNames(ctx)
		if err != nil {
			return nil, err
		}
		slices.SortFunc(notes, func(a, b domain.Note) int {
			an, bn := names[a.EnvelopeID], names[b.EnvelopeID]
			// notes without an envelope go last
			if (an == "") != (bn == "") {
				if an == "" {
					return 1
				}
				return -1
			}
			return cmpOr(strings.Compare(strings.ToLower(an), strings.ToLower(bn)), newest(a, b))
		})
	default:
		slices.SortFunc(notes, newest)
	}
	return notes, nil
}

func (s *NoteService) envelopeNames(ctx context.Context) (map[string]string, error) {
	envelopes, err := s.store.Envelopes.List(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(envelopes))
	for _, e := range envelopes {
		names[e.ID] = e.Name
	}
	return names, nil
}

func (s *NoteService) Update(ctx context.Context, id string, req *domain.UpdateNoteRequest) (domain.Note, error) {
	return s.edit(ctx, id, func(n domain.Note) (domain.NotePatch, error) {
		if req.EnvelopeID != nil {
			if err := s.checkEnvelope(ctx, *req.EnvelopeID); err != nil {
				return domain.NotePatch{}, err
			}
		}
		return req.Patch(), nil
	})
}

func (s *NoteService) Delete(ctx context.Context, id string) error {
	return s.engine.Do(ctx, func(ctx context.Context) ([]domain.SyncEvent, error) {
		note, err := findOr(ctx, s.store.Notes, id, ErrNoteNotFound)
		if err != nil {
			return nil, err
		}
		events, err := buryRecord(ctx, s.engine.Dispatcher(), domain.CollectionNote, note.Meta, s.store.Notes.Delete)
		if err != nil {
			return events, err
		}
		s.logger.Info("note deleted", "note_id", id, "version", note.Version)
		return events, nil
	})
}

// ListVersions returns the archived versions of a note, newest first.
func (s *NoteService) ListVersions(ctx context.Context, id string) ([]domain.VersionSnapshot, error) {
	note, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return note.History.NewestFirst(), nil
}

// RestoreVersion makes an archived version current again. The restore is a
// new version; the history is never rewound.
func (s *NoteService) RestoreVersion(ctx context.Context, id string, version int64) (domain.Note, error) {
	return s.edit(ctx, id, func(n domain.Note) (domain.NotePatch, error) {
		snap, ok := n.History.Find(version)
		if !ok {
			return domain.NotePatch{}, ErrVersionNotFound
		}
		s.logger.Info("restoring note version", "note_id", id, "from_version", snap.Version, "current_version", n.Version)
		labels := snap.LabelIDs
		if labels == nil {
			labels = []string{}
		}
		return domain.NotePatch{
			Title:        &snap.Title,
			Content:      &snap.Content,
			EnvelopeID:   &snap.EnvelopeID,
			LabelIDs:     &labels,
			RestoredFrom: snap.Version,
		}, nil
	})
}

func (s *NoteService) AddComment(ctx context.Context, id string, req *domain.AddCommentRequest) (domain.Note, error) {
	return s.edit(ctx, id, func(n domain.Note) (domain.NotePatch, error) {
		comments := append(slices.Clone(n.Comments), domain.Comment{
			ID:        uuid.New().String(),
			Content:   req.Content,
			CreatedAt: s.engine.Dispatcher().Now(),
		})
		return domain.NotePatch{Comments: &comments}, nil
	})
}

func (s *NoteService) DeleteComment(ctx context.Context, id, commentID string) (domain.Note, error) {
	return s.edit(ctx, id, func(n domain.Note) (domain.NotePatch, error) {
		i := slices.IndexFunc(n.Comments, func(c domain.Comment) bool { return c.ID == commentID })
		if i < 0 {
			return domain.NotePatch{}, ErrCommentNotFound
		}
		comments := slices.Delete(slices.Clone(n.Comments), i, i+1)
		return domain.NotePatch{Comments: &comments}, nil
	})
}

func (s *NoteService) edit(ctx context.Context, id string, change func(domain.Note) (domain.NotePatch, error)) (domain.Note, error) {
	var note domain.Note
	err := s.engine.Do(ctx, func(ctx context.Context) ([]domain.SyncEvent, error) {
		current, err := findOr(ctx, s.store.Notes, id, ErrNoteNotFound)
		if err != nil {
			return nil, err
		}
		patch, err := change(current)
		if err != nil {
			return nil, err
		}
		updated, ev, err := saveNoteEdit(ctx, s.engine.Dispatcher(), s.store, current, patch)
		if err != nil {
			return nil, err
		}
		note = updated
		return []domain.SyncEvent{ev}, nil
	})
	return note, err
}

func (s *NoteService) checkEnvelope(ctx context.Context, envelopeID string) error {
	if envelopeID == "" {
		return nil
	}
	_, err := findOr(ctx, s.store.Envelopes, envelopeID, ErrEnvelopeNotFound)
	return err
}

// cmpOr mirrors cmp.Or (Go 1.22+): it returns the first non-zero value.
func cmpOr[T comparable](vals ...T) T {
	var zero T
	for _, v := range vals {
		if v != zero {
			return v
		}
	}
	return zero
}
