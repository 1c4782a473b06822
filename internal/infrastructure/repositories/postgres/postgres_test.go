package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"streamgate/internal/core/domain"
	"streamgate/pkg/config"
)

func TestMapError(t *testing.T) {
	driverErr := errors.New("conn reset by peer")

	tests := []struct {
		name   string
		err    error
		target error
	}{
		{"no rows", pgx.ErrNoRows, domain.ErrVideoNotFound},
		{"wrapped no rows", fmt.Errorf("scan: %w", pgx.ErrNoRows), domain.ErrVideoNotFound},
		{"unique violation", &pgconn.PgError{Code: codeUniqueViolation, ConstraintName: "videos_pkey"}, domain.ErrConflict},
		{"foreign key violation", &pgconn.PgError{Code: codeForeignKeyViolation}, domain.ErrNotFound},
		{"driver error", driverErr, driverErr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapError("get video", tt.err, domain.ErrVideoNotFound)
			assert.ErrorIs(t, err, tt.target)
		})
	}

	assert.NoError(t, mapError("noop", nil, domain.ErrVideoNotFound))
}

func TestMapError_UnclassifiedIsNotDomainOutcome(t *testing.T) {
	err := mapError("list courses", &pgconn.PgError{Code: "57P01"}, domain.ErrCourseNotFound)
	assert.False(t, errors.Is(err, domain.ErrNotFound))
	assert.Contains(t, err.Error(), "postgres list courses")
}

func TestMigrations_Ordered(t *testing.T) {
	migrations := getMigrations()
	require.NotEmpty(t, migrations)
	for i, m := range migrations {
		assert.Equal(t, i+1, m.Version)
		assert.NotEmpty(t, m.Statements)
	}
}

// newTestPool connects to the database named by STREAMGATE_TEST_DATABASE_URL.
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("STREAMGATE_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("STREAMGATE_TEST_DATABASE_URL not set")
	}

	cfg := config.DefaultConfig()
	cfg.Database.URL = url
	pool, err := NewPool(context.Background(), cfg, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestRecordStore_Integration(t *testing.T) {
	pool := newTestPool(t)
	store := NewRecordStore(pool)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	courseID := domain.CourseID(uuid.NewString())
	videoID := domain.VideoID(uuid.NewString())
	userID := domain.UserID(uuid.NewString())

	require.NoError(t, store.Courses.Create(ctx, &domain.Course{ID: courseID, Title: "Go", CreatedAt: now}))
	t.Cleanup(func() { _ = store.Courses.Delete(context.Background(), courseID) })

	require.NoError(t, store.Videos.Create(ctx, &domain.Video{
		ID: videoID, CourseID: courseID, Title: "Intro", ContentRef: "vid-123", RequireSignedURL: true, CreatedAt: now,
	}))
	err := store.Videos.Create(ctx, &domain.Video{ID: videoID, CourseID: courseID, CreatedAt: now})
	assert.ErrorIs(t, err, domain.ErrConflict)

	video, err := store.Videos.GetByID(ctx, videoID)
	require.NoError(t, err)
	assert.Equal(t, domain.ContentRef("vid-123"), video.ContentRef)
	assert.True(t, video.RequireSignedURL)

	_, err = store.Videos.GetByID(ctx, domain.VideoID(uuid.NewString()))
	assert.ErrorIs(t, err, domain.ErrVideoNotFound)

	past := now.Add(-48 * time.Hour)
	require.NoError(t, store.Enrollments.Create(ctx, &domain.Enrollment{
		ID: domain.EnrollmentID(uuid.NewString()), UserID: userID, CourseID: courseID, EnrolledAt: now, ExpiresAt: &past,
	}))
	enrollments, err := store.Enrollments.FindByUserAndCourse(ctx, userID, courseID)
	require.NoError(t, err)
	require.Len(t, enrollments, 1)
	assert.False(t, enrollments[0].ActiveAt(now))

	removed, err := store.Enrollments.DeleteExpiredBefore(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, removed, int64(1))

	enrollments, err = store.Enrollments.FindByUserAndCourse(ctx, userID, courseID)
	require.NoError(t, err)
	assert.Empty(t, enrollments)

	var created int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.Enrollments.CreateUnlessActive(ctx, &domain.Enrollment{
				ID: domain.EnrollmentID(uuid.NewString()), UserID: userID, CourseID: courseID, EnrolledAt: now,
			}, now)
			if err == nil {
				atomic.AddInt32(&created, 1)
				return
			}
			assert.ErrorIs(t, err, domain.ErrAlreadyEnrolled)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), created, "concurrent enrollments for one pair are serialized")

	require.NoError(t, store.Progress.Upsert(ctx, &domain.WatchProgress{UserID: userID, VideoID: videoID, ProgressSeconds: 30, LastWatchedAt: now}))
	require.NoError(t, store.Progress.Upsert(ctx, &domain.WatchProgress{UserID: userID, VideoID: videoID, ProgressSeconds: 90, Completed: true, LastWatchedAt: now}))
	progress, err := store.Progress.Get(ctx, userID, videoID)
	require.NoError(t, err)
	assert.Equal(t, 90, progress.ProgressSeconds)
	assert.True(t, progress.Completed)

	exists, err := store.Profiles.Exists(ctx, userID)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.Courses.Update(ctx, &domain.Course{ID: courseID, Title: "Go, revised", Published: true}))
	course, err := store.Courses.GetByID(ctx, courseID)
	require.NoError(t, err)
	assert.Equal(t, "Go, revised", course.Title)
	assert.True(t, course.Published)
	assert.True(t, course.CreatedAt.Equal(now), "creation time is not rewritten")
	assert.ErrorIs(t, store.Courses.Update(ctx, &domain.Course{ID: domain.CourseID(uuid.NewString()), Title: "x"}), domain.ErrCourseNotFound)

	video.Title = "Intro, revised"
	video.OrderIndex = 3
	video.RequireSignedURL = false
	require.NoError(t, store.Videos.Update(ctx, video))
	video, err = store.Videos.GetByID(ctx, videoID)
	require.NoError(t, err)
	assert.Equal(t, "Intro, revised", video.Title)
	assert.Equal(t, 3, video.OrderIndex)
	assert.False(t, video.RequireSignedURL)
	assert.Equal(t, domain.ContentRef("vid-123"), video.ContentRef)

	_, err = pool.Exec(ctx, `INSERT INTO profiles (id, email, role) VALUES ($1, $2, 'student')`, userID, "viewer@example.com")
	require.NoError(t, err)
	t.Cleanup(func() { _, _ = pool.Exec(context.Background(), `DELETE FROM profiles WHERE id = $1`, userID) })

	profile, err := store.Profiles.UpdateRole(ctx, userID, domain.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, profile.Role)
	assert.Equal(t, "viewer@example.com", profile.Email)

	profiles, err := store.Profiles.List(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, profiles)

	_, err = store.Profiles.UpdateRole(ctx, domain.UserID(uuid.NewString()), domain.RoleAdmin)
	assert.ErrorIs(t, err, domain.ErrProfileNotFound)

	mine, err := store.Enrollments.ListByUser(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}
