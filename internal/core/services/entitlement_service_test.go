package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"streamgate/internal/core/domain"
)

func newEntitlements(t *testing.T, f *fixture) *EntitlementService {
	s := NewEntitlementService(f.store, time.Second, zaptest.NewLogger(t).Sugar())
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestEntitlementService_Check(t *testing.T) {
	tests := []struct {
		name     string
		identity *domain.Identity
		videoID  domain.VideoID
		reason   AccessReason
		wantErr  error
	}{
		{"enrolled student", student("u-1"), "v-1", ReasonGranted, nil},
		{"expired enrollment", student("u-2"), "v-1", "", domain.ErrForbidden},
		{"no enrollment", student("u-3"), "v-1", "", domain.ErrForbidden},
		{"unknown video", student("u-1"), "v-missing", "", domain.ErrNotFound},
		{"admin without enrollment", admin("a-1"), "v-1", ReasonAdminOverride, nil},
		{"admin still needs the video", admin("a-1"), "v-missing", "", domain.ErrNotFound},
		{"anonymous", nil, "v-1", "", domain.ErrUnauthenticated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newEntitlements(t, newFixture(t))

			decision, err := s.Check(context.Background(), tt.identity, tt.videoID)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, decision)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.reason, decision.Reason)
			assert.Equal(t, tt.videoID, decision.Video.ID)
		})
	}
}

func TestEntitlementService_ExpiryBoundary(t *testing.T) {
	f := newFixture(t)
	s := newEntitlements(t, f)

	exp := fixedNow
	require.NoError(t, f.store.Enrollments.Create(context.Background(),
		&domain.Enrollment{ID: "e-edge", UserID: "u-3", CourseID: "c-1", ExpiresAt: &exp}))

	_, err := s.Check(context.Background(), student("u-3"), "v-1")
	assert.ErrorIs(t, err, domain.ErrForbidden, "an enrollment expiring exactly now is no longer active")
}

func TestEntitlementService_RevocationTakesEffectImmediately(t *testing.T) {
	f := newFixture(t)
	s := newEntitlements(t, f)
	ctx := context.Background()

	_, err := s.Check(ctx, student("u-1"), "v-1")
	require.NoError(t, err)

	require.NoError(t, f.store.Enrollments.Delete(ctx, "e-1"))
	_, err = s.Check(ctx, student("u-1"), "v-1")
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestEntitlementService_AdminOverrideIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	f := newFixture(t)
	s := NewEntitlementService(f.store, time.Second, zap.New(core).Sugar())

	_, err := s.Check(context.Background(), admin("a-1"), "v-1")
	require.NoError(t, err)

	entries := logs.FilterMessage("entitlement granted by admin override").All()
	require.Len(t, entries, 1)
	assert.Equal(t, string(ReasonAdminOverride), entries[0].ContextMap()["reason"])
}

func TestEntitlementService_StoreFailureRetriedOnceThenUnavailable(t *testing.T) {
	f := newFixture(t)
	videos := new(MockVideoRepository)
	videos.On("GetByID", mock.Anything, domain.VideoID("v-1")).Return(nil, errors.New("connection refused")).Twice()
	f.store.Videos = videos

	s := newEntitlements(t, f)
	_, err := s.Check(context.Background(), student("u-1"), "v-1")

	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	assert.NotErrorIs(t, err, domain.ErrForbidden)
	videos.AssertNumberOfCalls(t, "GetByID", 2)
}

func TestEntitlementService_TransientFailureRecovers(t *testing.T) {
	f := newFixture(t)
	videos := new(MockVideoRepository)
	videos.On("GetByID", mock.Anything, domain.VideoID("v-1")).Return(nil, errors.New("connection reset")).Once()
	videos.On("GetByID", mock.Anything, domain.VideoID("v-1")).Return(&domain.Video{ID: "v-1", CourseID: "c-1", ContentRef: "vid-123"}, nil).Once()
	f.store.Videos = videos

	decision, err := newEntitlements(t, f).Check(context.Background(), student("u-1"), "v-1")
	require.NoError(t, err)
	assert.Equal(t, ReasonGranted, decision.Reason)
}

func TestEntitlementService_NotFoundIsNotRetried(t *testing.T) {
	f := newFixture(t)
	videos := new(MockVideoRepository)
	videos.On("GetByID", mock.Anything, domain.VideoID("v-9")).Return(nil, domain.ErrVideoNotFound).Once()
	f.store.Videos = videos

	_, err := newEntitlements(t, f).Check(context.Background(), student("u-1"), "v-9")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	videos.AssertNumberOfCalls(t, "GetByID", 1)
}
