package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jengzang/travel-behavior-backend-go/internal/models"
	"github.com/jengzang/travel-behavior-backend-go/internal/repository"
)

// ErrInvalidSnapshot is returned for ingest batches the store cannot accept
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// SnapshotService ingests raw snapshots for later analysis
type SnapshotService struct {
	repo *repository.SnapshotRepository
}

// NewSnapshotService creates a new snapshot service
func NewSnapshotService(repo *repository.SnapshotRepository) *SnapshotService {
	return &SnapshotService{repo: repo}
}

// IngestSnapshots stores activity snapshots. Snapshots without activities are
// kept as they are; the segmenter skips them as malformed.
func (s *SnapshotService) IngestSnapshots(ctx context.Context, userID string, snapshots []models.RawSnapshot) (*models.SnapshotsResponse, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: missing user id", ErrInvalidSnapshot)
	}
	for i, snap := range snapshots {
		if snap.ID == "" {
			return nil, fmt.Errorf("%w: snapshot %d has no id", ErrInvalidSnapshot, i)
		}
	}

	n, err := s.repo.InsertSnapshots(ctx, userID, snapshots)
	if err != nil {
		return nil, err
	}
	return &models.SnapshotsResponse{UserID: userID, Inserted: n}, nil
}

// IngestDeviceSnapshots stores device state snapshots
func (s *SnapshotService) IngestDeviceSnapshots(ctx context.Context, userID string, devices []models.DeviceSnapshot) (*models.SnapshotsResponse, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: missing user id", ErrInvalidSnapshot)
	}
	for i, d := range devices {
		if d.ID == "" {
			return nil, fmt.Errorf("%w: device snapshot %d has no id", ErrInvalidSnapshot, i)
		}
	}

	n, err := s.repo.InsertDeviceSnapshots(ctx, userID, devices)
	if err != nil {
		return nil, err
	}
	return &models.SnapshotsResponse{UserID: userID, Inserted: n}, nil
}
