package service

import (
	"context"
	"slices"

	"noteenvelope-sync/internal/domain"
	"noteenvelope-sync/internal/repository"
)

type DeviceService struct {
	deviceID string
	repo     repository.Repository[domain.Device]
}

func NewDeviceService(deviceID string, repo repository.Repository[domain.Device]) *DeviceService {
	return &DeviceService{
		deviceID: deviceID,
		repo:     repo,
	}
}

// List returns this device followed by the peers seen on the sync channel,
// most recently active first.
func (s *DeviceService) List(ctx context.Context) ([]domain.Device, error) {
	peers, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	peers = slices.DeleteFunc(peers, func(d domain.Device) bool { return d.ID == s.deviceID })
	slices.SortFunc(peers, func(a, b domain.Device) int {
		return b.LastSeen.Compare(a.LastSeen)
	})
	return append([]domain.Device{{ID: s.deviceID, IsSelf: true}}, peers...), nil
}
