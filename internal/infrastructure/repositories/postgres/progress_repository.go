package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"streamgate/internal/core/domain"
	"streamgate/pkg/tracing"
)

type ProgressRepository struct {
	pool *pgxpool.Pool
}

func NewProgressRepository(pool *pgxpool.Pool) *ProgressRepository {
	return &ProgressRepository{pool: pool}
}

func (r *ProgressRepository) Get(ctx context.Context, userID domain.UserID, videoID domain.VideoID) (*domain.WatchProgress, error) {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "select", "watch_history")
	defer span.End()

	p := &domain.WatchProgress{}
	err := r.pool.QueryRow(ctx, `
		SELECT user_id, video_id, progress_seconds, is_completed, last_watched_at
		FROM watch_history WHERE user_id = $1 AND video_id = $2`,
		userID, videoID,
	).Scan(&p.UserID, &p.VideoID, &p.ProgressSeconds, &p.Completed, &p.LastWatchedAt)
	if err != nil {
		return nil, mapError("get progress", err, domain.ErrProgressNotFound)
	}
	return p, nil
}

func (r *ProgressRepository) Upsert(ctx context.Context, p *domain.WatchProgress) error {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "upsert", "watch_history")
	defer span.End()

	_, err := r.pool.Exec(ctx, `
		INSERT INTO watch_history (user_id, video_id, progress_seconds, is_completed, last_watched_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, video_id) DO UPDATE SET
			progress_seconds = EXCLUDED.progress_seconds,
			is_completed     = EXCLUDED.is_completed,
			last_watched_at  = EXCLUDED.last_watched_at`,
		p.UserID, p.VideoID, p.ProgressSeconds, p.Completed, p.LastWatchedAt,
	)
	return mapError("upsert progress", err, domain.ErrVideoNotFound)
}

func (r *ProgressRepository) DeleteByVideo(ctx context.Context, videoID domain.VideoID) error {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "delete", "watch_history")
	defer span.End()

	_, err := r.pool.Exec(ctx, `DELETE FROM watch_history WHERE video_id = $1`, videoID)
	return mapError("delete video progress", err, domain.ErrProgressNotFound)
}
