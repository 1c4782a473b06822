package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"streamgate/internal/core/domain"
	"streamgate/pkg/tracing"
)

const courseColumns = `id, title, description, thumbnail_url, is_published, created_at`

type CourseRepository struct {
	pool *pgxpool.Pool
}

func NewCourseRepository(pool *pgxpool.Pool) *CourseRepository {
	return &CourseRepository{pool: pool}
}

func (r *CourseRepository) Create(ctx context.Context, course *domain.Course) error {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "insert", "courses")
	defer span.End()

	_, err := r.pool.Exec(ctx, `
		INSERT INTO courses (`+courseColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		course.ID, course.Title, course.Description, course.ThumbnailURL, course.Published, course.CreatedAt,
	)
	return mapError("create course", err, domain.ErrCourseNotFound)
}

func (r *CourseRepository) GetByID(ctx context.Context, id domain.CourseID) (*domain.Course, error) {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "select", "courses")
	defer span.End()

	row := r.pool.QueryRow(ctx, `SELECT `+courseColumns+` FROM courses WHERE id = $1`, id)
	course, err := scanCourse(row)
	if err != nil {
		return nil, mapError("get course", err, domain.ErrCourseNotFound)
	}
	return course, nil
}

func (r *CourseRepository) List(ctx context.Context) ([]*domain.Course, error) {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "select", "courses")
	defer span.End()

	rows, err := r.pool.Query(ctx, `SELECT `+courseColumns+` FROM courses ORDER BY created_at DESC`)
	if err != nil {
		return nil, mapError("list courses", err, domain.ErrCourseNotFound)
	}
	defer rows.Close()

	courses := []*domain.Course{}
	for rows.Next() {
		course, err := scanCourse(rows)
		if err != nil {
			return nil, mapError("scan course", err, domain.ErrCourseNotFound)
		}
		courses = append(courses, course)
	}
	return courses, mapError("list courses", rows.Err(), domain.ErrCourseNotFound)
}

func (r *CourseRepository) Update(ctx context.Context, course *domain.Course) error {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "update", "courses")
	defer span.End()

	result, err := r.pool.Exec(ctx, `
		UPDATE courses
		SET title = $2, description = $3, thumbnail_url = $4, is_published = $5
		WHERE id = $1`,
		course.ID, course.Title, course.Description, course.ThumbnailURL, course.Published,
	)
	if err != nil {
		return mapError("update course", err, domain.ErrCourseNotFound)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrCourseNotFound
	}
	return nil
}

func (r *CourseRepository) Delete(ctx context.Context, id domain.CourseID) error {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "delete", "courses")
	defer span.End()

	result, err := r.pool.Exec(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return mapError("delete course", err, domain.ErrCourseNotFound)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrCourseNotFound
	}
	return nil
}

func scanCourse(row pgx.Row) (*domain.Course, error) {
	c := &domain.Course{}
	if err := row.Scan(&c.ID, &c.Title, &c.Description, &c.ThumbnailURL, &c.Published, &c.CreatedAt); err != nil {
		return nil, err
	}
	return c, nil
}
