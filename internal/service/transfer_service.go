package service

import (
	"context"
	"fmt"
	"log/slog"

	"noteenvelope-sync/internal/domain"
	"noteenvelope-sync/internal/replication"
	"noteenvelope-sync/internal/repository"
)

// TransferService exports the whole record store and merges exports back in.
type TransferService struct {
	engine Engine
	store  *repository.Store
	logger *slog.Logger
}

func NewTransferService(engine Engine, store *repository.Store, logger *slog.Logger) *TransferService {
	return &TransferService{
		engine: engine,
		store:  store,
		logger: logger.With("component", "transfer_service"),
	}
}

func (s *TransferService) Export(ctx context.Context) (*domain.ExportData, error) {
	notes, err := s.store.Notes.List(ctx)
	if err != nil {
		return nil, err
	}
	envelopes, err := s.store.Envelopes.List(ctx)
	if err != nil {
		return nil, err
	}
	labels, err := s.store.Labels.List(ctx)
	if err != nil {
		return nil, err
	}
	return &domain.ExportData{
		Notes:      notes,
		Envelopes:  envelopes,
		Labels:     labels,
		Version:    domain.ExportFormatVersion,
		ExportedAt: s.engine.Dispatcher().Now(),
	}, nil
}

// Import merges data through the conflict resolver as if every record had
// arrived from a peer. Records whose local state changed are published.
func (s *TransferService) Import(ctx context.Context, data *domain.ExportData) (*domain.ImportResult, error) {
	if data == nil || data.Version != domain.ExportFormatVersion {
		return nil, ErrInvalidImport
	}

	result := &domain.ImportResult{}
	err := s.engine.Do(ctx, func(ctx context.Context) ([]domain.SyncEvent, error) {
		*result = domain.ImportResult{}
		var events []domain.SyncEvent
		d := s.engine.Dispatcher()

		// envelopes and labels first so notes never reference missing records
		// records merged before a failure stay stored and are still published
		evs, err := importRecords(ctx, d, domain.CollectionEnvelope, s.store.Envelopes, data.Envelopes, result)
		events = append(events, evs...)
		if err != nil {
			return events, err
		}
		evs, err = importRecords(ctx, d, domain.CollectionLabel, s.store.Labels, data.Labels, result)
		events = append(events, evs...)
		if err != nil {
			return events, err
		}
		evs, err = importRecords(ctx, d, domain.CollectionNote, s.store.Notes, data.Notes, result)
		return append(events, evs...), err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("import finished",
		"adopted", result.Adopted, "updated", result.Updated,
		"unchanged", result.Unchanged, "rejected", result.Rejected)
	return result, nil
}

func importRecords[R domain.Record[R]](
	ctx context.Context,
	d *replication.Dispatcher,
	collection domain.Collection,
	repo repository.Repository[R],
	records []R,
	result *domain.ImportResult,
) ([]domain.SyncEvent, error) {
	var events []domain.SyncEvent
	for _, r := range records {
		meta := r.Metadata()
		if meta.ID == "" || meta.Version < 1 {
			result.Rejected++
			continue
		}

		res, err := replication.Merge(ctx, d, collection, repo, r)
		if err != nil {
			return events, fmt.Errorf("failed to import %s %s: %w", collection, meta.ID, err)
		}

		kind := domain.RecordUpdated
		switch {
		case res.Outcome == replication.Tombstoned:
			result.Rejected++
			continue
		case !res.Write:
			result.Unchanged++
			continue
		case res.Outcome == replication.Adopted:
			result.Adopted++
			kind = domain.RecordAdded
		default:
			result.Updated++
		}

		ev, err := domain.NewRecordEvent(kind, collection, res.Record.Metadata(), res.Record, d.DeviceID(), d.Now())
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
	return events, nil
}
