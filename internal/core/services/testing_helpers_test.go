package services

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"streamgate/internal/core/domain"
	"streamgate/internal/core/ports"
	"streamgate/internal/infrastructure/repositories/memory"
	"streamgate/internal/infrastructure/signing"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store    *ports.RecordStore
	profiles *memory.MemoryProfileRepository
}

// newFixture seeds published course c-1 with video v-1 (content ref vid-123), user u-1 enrolled,
// user u-2 with an expired enrollment, user u-3 with none, user u-4 enrolled without
// expiry, and admin a-1.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store, profiles := memory.NewRecordStore()

	require.NoError(t, store.Courses.Create(ctx, &domain.Course{ID: "c-1", Title: "Go", Published: true, CreatedAt: fixedNow}))
	require.NoError(t, store.Videos.Create(ctx, &domain.Video{ID: "v-1", CourseID: "c-1", Title: "Intro", ContentRef: "vid-123", RequireSignedURL: true}))
	require.NoError(t, store.Videos.Create(ctx, &domain.Video{ID: "v-open", CourseID: "c-1", Title: "Trailer", ContentRef: "vid-open"}))
	require.NoError(t, store.Videos.Create(ctx, &domain.Video{ID: "v-pending", CourseID: "c-1", Title: "Not uploaded"}))

	expired := fixedNow.Add(-time.Minute)
	future := fixedNow.Add(24 * time.Hour)
	require.NoError(t, store.Enrollments.Create(ctx, &domain.Enrollment{ID: "e-1", UserID: "u-1", CourseID: "c-1", ExpiresAt: &future}))
	require.NoError(t, store.Enrollments.Create(ctx, &domain.Enrollment{ID: "e-2", UserID: "u-2", CourseID: "c-1", ExpiresAt: &expired}))
	require.NoError(t, store.Enrollments.Create(ctx, &domain.Enrollment{ID: "e-4", UserID: "u-4", CourseID: "c-1"}))

	profiles.Put(domain.Profile{ID: "u-1", Role: domain.RoleStudent})
	profiles.Put(domain.Profile{ID: "u-2", Role: domain.RoleStudent})
	profiles.Put(domain.Profile{ID: "u-3", Role: domain.RoleStudent})
	profiles.Put(domain.Profile{ID: "u-4", Role: domain.RoleStudent})
	profiles.Put(domain.Profile{ID: "a-1", Role: domain.RoleAdmin})

	return &fixture{store: store, profiles: profiles}
}

func student(id string) *domain.Identity {
	return &domain.Identity{UserID: domain.UserID(id), Role: domain.RoleStudent}
}

func admin(id string) *domain.Identity {
	return &domain.Identity{UserID: domain.UserID(id), Role: domain.RoleAdmin}
}

// countingSigner wraps a signer and counts Sign calls.
type countingSigner struct {
	ports.TokenSigner
	mu    sync.Mutex
	calls int
}

func (s *countingSigner) Sign(ref domain.ContentRef, issuedAt, expiresAt time.Time, r *domain.AccessRestrictions) (*domain.SignedGrant, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.TokenSigner.Sign(ref, issuedAt, expiresAt, r)
}

func (s *countingSigner) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newCountingHashSigner() *countingSigner {
	return &countingSigner{TokenSigner: signing.NewHashSigner("bunny-key")}
}

// MockVideoRepository lets tests inject record store failures.
type MockVideoRepository struct {
	mock.Mock
}

func (m *MockVideoRepository) Create(ctx context.Context, video *domain.Video) error {
	return m.Called(ctx, video).Error(0)
}

func (m *MockVideoRepository) GetByID(ctx context.Context, id domain.VideoID) (*domain.Video, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*domain.Video), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockVideoRepository) ListByCourse(ctx context.Context, courseID domain.CourseID) ([]*domain.Video, error) {
	args := m.Called(ctx, courseID)
	return args.Get(0).([]*domain.Video), args.Error(1)
}

func (m *MockVideoRepository) List(ctx context.Context) ([]*domain.Video, error) {
	args := m.Called(ctx)
	return args.Get(0).([]*domain.Video), args.Error(1)
}

func (m *MockVideoRepository) Update(ctx context.Context, video *domain.Video) error {
	return m.Called(ctx, video).Error(0)
}

func (m *MockVideoRepository) Delete(ctx context.Context, id domain.VideoID) error {
	return m.Called(ctx, id).Error(0)
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (o *recordingObserver) ObserveGrant(outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func (o *recordingObserver) Outcomes() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.outcomes...)
}

var (
	rsaKeyOnce sync.Once
	rsaKey     *rsa.PrivateKey
)

func testRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	rsaKeyOnce.Do(func() {
		var err error
		rsaKey, err = rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
	})
	return rsaKey
}

type MockCDNAdmin struct {
	mock.Mock
}

func (m *MockCDNAdmin) Provider() string { return "bunny" }

func (m *MockCDNAdmin) CreateVideo(ctx context.Context, title string) (*domain.UploadTarget, error) {
	args := m.Called(ctx, title)
	if v := args.Get(0); v != nil {
		return v.(*domain.UploadTarget), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCDNAdmin) GetVideo(ctx context.Context, ref domain.ContentRef) (*domain.CDNVideo, error) {
	args := m.Called(ctx, ref)
	if v := args.Get(0); v != nil {
		return v.(*domain.CDNVideo), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCDNAdmin) ListVideos(ctx context.Context) ([]*domain.CDNVideo, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.([]*domain.CDNVideo), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCDNAdmin) DeleteVideo(ctx context.Context, ref domain.ContentRef) error {
	return m.Called(ctx, ref).Error(0)
}
