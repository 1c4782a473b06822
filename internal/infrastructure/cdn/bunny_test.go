package cdn

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"streamgate/internal/core/domain"
)

type recordedCall struct {
	provider, operation, outcome string
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (o *recordingObserver) ObserveCDNCall(provider, operation, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, recordedCall{provider, operation, outcome})
}

func testClientOptions(observer CallObserver) ClientOptions {
	return ClientOptions{
		Timeout:      2 * time.Second,
		MaxFailures:  3,
		ResetTimeout: time.Minute,
		RetryDelay:   time.Millisecond,
		Observer:     observer,
	}
}

func newTestBunny(t *testing.T, handler http.HandlerFunc, observer CallObserver) *BunnyAdmin {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewBunnyAdmin(BunnyOptions{APIBaseURL: server.URL + "/", LibraryID: "4242", APIKey: "lib-key"},
		testClientOptions(observer), zaptest.NewLogger(t).Sugar())
}

func TestBunnyAdmin_CreateVideo(t *testing.T) {
	var baseURL string
	bunny := newTestBunny(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/library/4242/videos", r.URL.Path)
		assert.Equal(t, "lib-key", r.Header.Get("AccessKey"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Lesson 1", body["title"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"guid":"guid-1","title":"Lesson 1","status":0}`))
	}, nil)
	baseURL = bunny.opts.APIBaseURL

	target, err := bunny.CreateVideo(context.Background(), "Lesson 1")
	require.NoError(t, err)
	assert.Equal(t, domain.ContentRef("guid-1"), target.Ref)
	assert.Equal(t, baseURL+"/library/4242/videos/guid-1", target.UploadURL)
	assert.Equal(t, http.MethodPut, target.Method)
	assert.Equal(t, "lib-key", target.Headers["AccessKey"])
}

func TestBunnyAdmin_GetVideo(t *testing.T) {
	bunny := newTestBunny(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/library/4242/videos/guid-1", r.URL.Path)
		_, _ = w.Write([]byte(`{"guid":"guid-1","title":"Intro","status":4,"length":95}`))
	}, nil)

	video, err := bunny.GetVideo(context.Background(), "guid-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ContentStatusReady, video.Status)
	assert.True(t, video.ReadyToStream())
	assert.Equal(t, 95, video.DurationSeconds)
}

func TestBunnyAdmin_ListVideos(t *testing.T) {
	bunny := newTestBunny(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "100", r.URL.Query().Get("itemsPerPage"))
		_, _ = w.Write([]byte(`{"items":[{"guid":"a","status":2},{"guid":"b","status":6}]}`))
	}, nil)

	videos, err := bunny.ListVideos(context.Background())
	require.NoError(t, err)
	require.Len(t, videos, 2)
	assert.Equal(t, domain.ContentStatusProcessing, videos[0].Status)
	assert.Equal(t, domain.ContentStatusError, videos[1].Status)
}

func TestBunnyAdmin_NotFoundIsNotRetried(t *testing.T) {
	var hits int32
	observer := &recordingObserver{}
	bunny := newTestBunny(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.NotFound(w, r)
	}, observer)

	_, err := bunny.GetVideo(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	require.Len(t, observer.calls, 1)
	assert.Equal(t, recordedCall{"bunny", "get_video", "not_found"}, observer.calls[0])
}

func TestBunnyAdmin_ServerErrorRetriedOnce(t *testing.T) {
	var hits int32
	bunny := newTestBunny(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}, nil)

	err := bunny.DeleteVideo(context.Background(), "guid-1")
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
}

func TestBunnyAdmin_TransientFailureRecovers(t *testing.T) {
	var hits int32
	bunny := newTestBunny(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}, nil)

	require.NoError(t, bunny.DeleteVideo(context.Background(), "guid-1"))
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestBunnyAdmin_RejectedCredentials(t *testing.T) {
	bunny := newTestBunny(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}, nil)

	_, err := bunny.ListVideos(context.Background())
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestBunnyAdmin_CircuitOpensAfterRepeatedFailures(t *testing.T) {
	var hits int32
	bunny := newTestBunny(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}, nil)

	for i := 0; i < 3; i++ {
		_, err := bunny.GetVideo(context.Background(), "guid-1")
		require.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	}
	before := atomic.LoadInt32(&hits)

	_, err := bunny.GetVideo(context.Background(), "guid-1")
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	assert.Contains(t, err.Error(), "circuit breaker open")
	assert.Equal(t, before, atomic.LoadInt32(&hits), "an open breaker does not reach the API")
}

func TestBunnyAdmin_UnreachableIsUpstreamUnavailable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	bunny := NewBunnyAdmin(BunnyOptions{APIBaseURL: url, LibraryID: "1", APIKey: "k"},
		testClientOptions(nil), zaptest.NewLogger(t).Sugar())

	_, err := bunny.GetVideo(context.Background(), "guid-1")
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
}

func TestBunnyAdmin_CancelledContext(t *testing.T) {
	bunny := newTestBunny(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := bunny.DeleteVideo(ctx, "guid-1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBunnyStatus(t *testing.T) {
	tests := map[int]domain.ContentStatus{
		0:  domain.ContentStatusCreated,
		1:  domain.ContentStatusUploaded,
		2:  domain.ContentStatusProcessing,
		3:  domain.ContentStatusTranscoding,
		4:  domain.ContentStatusReady,
		5:  domain.ContentStatusError,
		6:  domain.ContentStatusError,
		42: domain.ContentStatusUnknown,
	}
	for code, want := range tests {
		assert.Equal(t, want, BunnyStatus(code), "status %d", code)
	}
}
