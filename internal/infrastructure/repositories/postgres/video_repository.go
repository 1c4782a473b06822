package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"streamgate/internal/core/domain"
	"streamgate/pkg/tracing"
)

const videoColumns = `id, course_id, title, description, content_ref, thumbnail_url,
	duration_seconds, order_index, require_signed_url, created_at`

type VideoRepository struct {
	pool *pgxpool.Pool
}

func NewVideoRepository(pool *pgxpool.Pool) *VideoRepository {
	return &VideoRepository{pool: pool}
}

func (r *VideoRepository) Create(ctx context.Context, v *domain.Video) error {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "insert", "videos")
	defer span.End()

	_, err := r.pool.Exec(ctx, `
		INSERT INTO videos (`+videoColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		v.ID, v.CourseID, v.Title, v.Description, v.ContentRef, v.ThumbnailURL,
		v.DurationSeconds, v.OrderIndex, v.RequireSignedURL, v.CreatedAt,
	)
	return mapError("create video", err, domain.ErrVideoNotFound)
}

func (r *VideoRepository) GetByID(ctx context.Context, id domain.VideoID) (*domain.Video, error) {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "select", "videos")
	defer span.End()

	video, err := scanVideo(r.pool.QueryRow(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = $1`, id))
	if err != nil {
		return nil, mapError("get video", err, domain.ErrVideoNotFound)
	}
	return video, nil
}

func (r *VideoRepository) ListByCourse(ctx context.Context, courseID domain.CourseID) ([]*domain.Video, error) {
	return r.list(ctx, `SELECT `+videoColumns+` FROM videos WHERE course_id = $1 ORDER BY order_index, created_at`, courseID)
}

func (r *VideoRepository) List(ctx context.Context) ([]*domain.Video, error) {
	return r.list(ctx, `SELECT `+videoColumns+` FROM videos ORDER BY created_at DESC`)
}

func (r *VideoRepository) list(ctx context.Context, query string, args ...interface{}) ([]*domain.Video, error) {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "select", "videos")
	defer span.End()

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError("list videos", err, domain.ErrVideoNotFound)
	}
	defer rows.Close()

	videos := []*domain.Video{}
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, mapError("scan video", err, domain.ErrVideoNotFound)
		}
		videos = append(videos, video)
	}
	return videos, mapError("list videos", rows.Err(), domain.ErrVideoNotFound)
}

// Update writes the editable fields; course_id, content_ref and created_at are left alone.
func (r *VideoRepository) Update(ctx context.Context, v *domain.Video) error {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "update", "videos")
	defer span.End()

	result, err := r.pool.Exec(ctx, `
		UPDATE videos
		SET title = $2, description = $3, thumbnail_url = $4, duration_seconds = $5,
			order_index = $6, require_signed_url = $7
		WHERE id = $1`,
		v.ID, v.Title, v.Description, v.ThumbnailURL, v.DurationSeconds, v.OrderIndex, v.RequireSignedURL,
	)
	if err != nil {
		return mapError("update video", err, domain.ErrVideoNotFound)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrVideoNotFound
	}
	return nil
}

func (r *VideoRepository) Delete(ctx context.Context, id domain.VideoID) error {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "delete", "videos")
	defer span.End()

	result, err := r.pool.Exec(ctx, `DELETE FROM videos WHERE id = $1`, id)
	if err != nil {
		return mapError("delete video", err, domain.ErrVideoNotFound)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrVideoNotFound
	}
	return nil
}

func scanVideo(row pgx.Row) (*domain.Video, error) {
	v := &domain.Video{}
	err := row.Scan(&v.ID, &v.CourseID, &v.Title, &v.Description, &v.ContentRef, &v.ThumbnailURL,
		&v.DurationSeconds, &v.OrderIndex, &v.RequireSignedURL, &v.CreatedAt)
	if err != nil {
		return nil, err
	}
	return v, nil
}
