package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"streamgate/internal/core/ports"
)

func NewRecordStore(pool *pgxpool.Pool) *ports.RecordStore {
	return &ports.RecordStore{
		Courses:     NewCourseRepository(pool),
		Videos:      NewVideoRepository(pool),
		Enrollments: NewEnrollmentRepository(pool),
		Progress:    NewProgressRepository(pool),
		Profiles:    NewProfileRepository(pool),
	}
}
