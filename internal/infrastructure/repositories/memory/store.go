package memory

import "streamgate/internal/core/ports"

// NewRecordStore returns an empty in-memory record store along with its profile
// repository, which callers seed directly.
func NewRecordStore() (*ports.RecordStore, *MemoryProfileRepository) {
	profiles := NewMemoryProfileRepository()
	return &ports.RecordStore{
		Courses:     NewMemoryCourseRepository(),
		Videos:      NewMemoryVideoRepository(),
		Enrollments: NewMemoryEnrollmentRepository(),
		Progress:    NewMemoryProgressRepository(),
		Profiles:    profiles,
	}, profiles
}
