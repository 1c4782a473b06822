package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"streamgate/internal/core/domain"
	"streamgate/pkg/tracing"
)

const enrollmentColumns = `id, user_id, course_id, enrolled_at, expires_at`

type EnrollmentRepository struct {
	pool *pgxpool.Pool
}

func NewEnrollmentRepository(pool *pgxpool.Pool) *EnrollmentRepository {
	return &EnrollmentRepository{pool: pool}
}

func (r *EnrollmentRepository) Create(ctx context.Context, e *domain.Enrollment) error {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "insert", "enrollments")
	defer span.End()

	_, err := r.pool.Exec(ctx, `
		INSERT INTO enrollments (`+enrollmentColumns+`)
		VALUES ($1, $2, $3, $4, $5)`,
		e.ID, e.UserID, e.CourseID, e.EnrolledAt, e.ExpiresAt,
	)
	return mapError("create enrollment", err, domain.ErrEnrollmentNotFound)
}

// CreateUnlessActive serializes concurrent enrollments for one user and course on a
// transaction-scoped advisory lock, so two requests cannot both pass the active check.
func (r *EnrollmentRepository) CreateUnlessActive(ctx context.Context, e *domain.Enrollment, now time.Time) error {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "insert", "enrollments")
	defer span.End()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return mapError("begin enrollment", err, domain.ErrEnrollmentNotFound)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, string(e.UserID)+":"+string(e.CourseID)); err != nil {
		return mapError("lock enrollment", err, domain.ErrEnrollmentNotFound)
	}

	var active bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM enrollments
			WHERE user_id = $1 AND course_id = $2 AND (expires_at IS NULL OR expires_at > $3)
		)`,
		e.UserID, e.CourseID, now,
	).Scan(&active)
	if err != nil {
		return mapError("check enrollment", err, domain.ErrEnrollmentNotFound)
	}
	if active {
		return domain.ErrAlreadyEnrolled
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO enrollments (`+enrollmentColumns+`)
		VALUES ($1, $2, $3, $4, $5)`,
		e.ID, e.UserID, e.CourseID, e.EnrolledAt, e.ExpiresAt,
	); err != nil {
		return mapError("create enrollment", err, domain.ErrEnrollmentNotFound)
	}
	return mapError("commit enrollment", tx.Commit(ctx), domain.ErrEnrollmentNotFound)
}

func (r *EnrollmentRepository) GetByID(ctx context.Context, id domain.EnrollmentID) (*domain.Enrollment, error) {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "select", "enrollments")
	defer span.End()

	e, err := scanEnrollment(r.pool.QueryRow(ctx, `SELECT `+enrollmentColumns+` FROM enrollments WHERE id = $1`, id))
	if err != nil {
		return nil, mapError("get enrollment", err, domain.ErrEnrollmentNotFound)
	}
	return e, nil
}

// FindByUserAndCourse returns every enrollment row for the pair, expired ones included.
// Deciding which are active is left to the caller's clock.
func (r *EnrollmentRepository) FindByUserAndCourse(ctx context.Context, userID domain.UserID, courseID domain.CourseID) ([]*domain.Enrollment, error) {
	return r.list(ctx, `SELECT `+enrollmentColumns+` FROM enrollments WHERE user_id = $1 AND course_id = $2`, userID, courseID)
}

func (r *EnrollmentRepository) ListByUser(ctx context.Context, userID domain.UserID) ([]*domain.Enrollment, error) {
	return r.list(ctx, `SELECT `+enrollmentColumns+` FROM enrollments WHERE user_id = $1 ORDER BY enrolled_at DESC`, userID)
}

func (r *EnrollmentRepository) List(ctx context.Context) ([]*domain.Enrollment, error) {
	return r.list(ctx, `SELECT `+enrollmentColumns+` FROM enrollments ORDER BY enrolled_at DESC`)
}

func (r *EnrollmentRepository) list(ctx context.Context, query string, args ...interface{}) ([]*domain.Enrollment, error) {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "select", "enrollments")
	defer span.End()

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError("list enrollments", err, domain.ErrEnrollmentNotFound)
	}
	defer rows.Close()

	enrollments := []*domain.Enrollment{}
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, mapError("scan enrollment", err, domain.ErrEnrollmentNotFound)
		}
		enrollments = append(enrollments, e)
	}
	return enrollments, mapError("list enrollments", rows.Err(), domain.ErrEnrollmentNotFound)
}

func (r *EnrollmentRepository) Delete(ctx context.Context, id domain.EnrollmentID) error {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "delete", "enrollments")
	defer span.End()

	result, err := r.pool.Exec(ctx, `DELETE FROM enrollments WHERE id = $1`, id)
	if err != nil {
		return mapError("delete enrollment", err, domain.ErrEnrollmentNotFound)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrEnrollmentNotFound
	}
	return nil
}

func (r *EnrollmentRepository) DeleteByCourse(ctx context.Context, courseID domain.CourseID) error {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "delete", "enrollments")
	defer span.End()

	_, err := r.pool.Exec(ctx, `DELETE FROM enrollments WHERE course_id = $1`, courseID)
	return mapError("delete course enrollments", err, domain.ErrEnrollmentNotFound)
}

func (r *EnrollmentRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "delete", "enrollments")
	defer span.End()

	result, err := r.pool.Exec(ctx, `DELETE FROM enrollments WHERE expires_at IS NOT NULL AND expires_at < $1`, cutoff)
	if err != nil {
		return 0, mapError("delete expired enrollments", err, domain.ErrEnrollmentNotFound)
	}
	return result.RowsAffected(), nil
}

func scanEnrollment(row pgx.Row) (*domain.Enrollment, error) {
	e := &domain.Enrollment{}
	if err := row.Scan(&e.ID, &e.UserID, &e.CourseID, &e.EnrolledAt, &e.ExpiresAt); err != nil {
		return nil, err
	}
	return e, nil
}
