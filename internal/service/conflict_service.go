package service

import (
	"context"
	"slices"

	"noteenvelope-sync/internal/domain"
	"noteenvelope-sync/internal/repository"
)

type ConflictService struct {
	conflictRepo repository.Repository[domain.Conflict]
}

func NewConflictService(conflictRepo repository.Repository[domain.Conflict]) *ConflictService {
	return &ConflictService{
		conflictRepo: conflictRepo,
	}
}

// List returns the conflict log, newest first.
func (s *ConflictService) List(ctx context.Context) ([]domain.Conflict, error) {
	conflicts, err := s.conflictRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(conflicts, func(a, b domain.Conflict) int {
		return b.DetectedAt.Compare(a.DetectedAt)
	})
	return conflicts, nil
}

func (s *ConflictService) ListByRecord(ctx context.Context, recordID string) ([]domain.Conflict, error) {
	conflicts, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(conflicts, func(c domain.Conflict) bool {
		return c.RecordID != recordID
	}), nil
}
