package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"streamgate/internal/core/domain"
	"streamgate/internal/core/ports"
	"streamgate/pkg/validation"
)

type ProgressUpdate struct {
	ProgressSeconds int  `json:"progress_seconds"`
	Completed       bool `json:"is_completed"`
}

// ProgressService records how far a viewer got in a video. Both operations run the
// same entitlement check as playback.
type ProgressService struct {
	entitlements *EntitlementService
	progress     ports.ProgressRepository
	lookup       storeLookup
	now          func() time.Time
	logger       *zap.SugaredLogger
}

func NewProgressService(entitlements *EntitlementService, progress ports.ProgressRepository, lookupTimeout time.Duration, logger *zap.SugaredLogger) *ProgressService {
	return &ProgressService{
		entitlements: entitlements,
		progress:     progress,
		lookup:       newStoreLookup(lookupTimeout),
		now:          time.Now,
		logger:       logger,
	}
}

// GetProgress returns the stored position, or a zero record when the viewer never started.
func (s *ProgressService) GetProgress(ctx context.Context, identity *domain.Identity, videoID domain.VideoID) (*domain.WatchProgress, error) {
	if _, err := s.entitlements.Check(ctx, identity, videoID); err != nil {
		return nil, err
	}

	progress, err := lookup(ctx, s.lookup, "get progress", func(ctx context.Context) (*domain.WatchProgress, error) {
		return s.progress.Get(ctx, identity.UserID, videoID)
	})
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.WatchProgress{UserID: identity.UserID, VideoID: videoID}, nil
	}
	return progress, err
}

func (s *ProgressService) UpdateProgress(ctx context.Context, identity *domain.Identity, videoID domain.VideoID, update ProgressUpdate) (*domain.WatchProgress, error) {
	if err := validation.ValidateProgress(update.ProgressSeconds); err != nil {
		return nil, err
	}
	if _, err := s.entitlements.Check(ctx, identity, videoID); err != nil {
		return nil, err
	}

	progress := &domain.WatchProgress{
		UserID:          identity.UserID,
		VideoID:         videoID,
		ProgressSeconds: update.ProgressSeconds,
		Completed:       update.Completed,
		LastWatchedAt:   s.now().UTC(),
	}
	if err := s.progress.Upsert(ctx, progress); err != nil {
		return nil, storeWriteError("upsert progress", err)
	}

	s.logger.Debugw("progress updated",
		"user_id", identity.UserID,
		"video_id", videoID,
		"progress_seconds", progress.ProgressSeconds,
		"completed", progress.Completed,
	)
	return progress, nil
}
