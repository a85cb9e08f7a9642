package ratings

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursegate/internal/cache"
	"coursegate/internal/ratelimit"
	dErrors "coursegate/pkg/domain-errors"
	"coursegate/pkg/platform/middleware/metadata"
	"coursegate/pkg/testutil"
)

// fakeAuthority records calls and returns canned payloads.
type fakeAuthority struct {
	ratings   json.RawMessage
	addResult json.RawMessage
	err       error

	getCalls int32
	addCalls int32
}

func (f *fakeAuthority) GetRatings(ctx context.Context, resourceID int64) (json.RawMessage, error) {
	atomic.AddInt32(&f.getCalls, 1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.ratings, nil
}

func (f *fakeAuthority) AddRating(ctx context.Context, resourceID int64, rating int, identity string) (json.RawMessage, error) {
	atomic.AddInt32(&f.addCalls, 1)
	if f.err != nil {
		return nil, f.err
	}
	return f.addResult, nil
}

func newTestHandler(t *testing.T, authority *fakeAuthority) (http.Handler, *cache.MemoryStore) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	store := cache.NewMemoryStore()
	limiter := ratelimit.New(store, logger)
	h := New(authority, store, limiter, logger)

	r := chi.NewRouter()
	r.Use(metadata.ClientMetadata)
	h.Register(r)
	return r, store
}

func TestGet_InvalidResourceID(t *testing.T) {
	authority := &fakeAuthority{ratings: json.RawMessage(`{"average":4,"count":2}`)}
	router, _ := newTestHandler(t, authority)

	for _, query := range []string{"", "?resourceId=abc", "?resourceId=0", "?courseId=0", "?resourceId=-4"} {
		rec := testutil.Get(t, router, "/ratings"+query)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "query %q", query)
	}
	assert.Zero(t, atomic.LoadInt32(&authority.getCalls), "validation failures must not reach cache or authority")
}

func TestGet_MissFetchesAndPopulatesCache(t *testing.T) {
	payload := `{"average":4.5,"count":12}`
	authority := &fakeAuthority{ratings: json.RawMessage(payload)}
	router, store := newTestHandler(t, authority)

	rec := testutil.Get(t, router, "/ratings?resourceId=42")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, payload, rec.Body.String())
	assert.Equal(t, int32(1), atomic.LoadInt32(&authority.getCalls))

	// Cache population is detached from the response path.
	assert.Eventually(t, func() bool {
		val, ok, err := store.Get(context.Background(), "ratings:42")
		return err == nil && ok && val == payload
	}, time.Second, 5*time.Millisecond)
}

func TestGet_HitServesFromCache(t *testing.T) {
	authority := &fakeAuthority{ratings: json.RawMessage(`{"average":1,"count":1}`)}
	router, store := newTestHandler(t, authority)

	cached := `{"average":4.8,"count":100}`
	require.NoError(t, store.Put(context.Background(), "ratings:42", cached, time.Minute))

	rec := testutil.Get(t, router, "/ratings?resourceId=42")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, cached, rec.Body.String())
	assert.Zero(t, atomic.LoadInt32(&authority.getCalls), "cache hits must not contact the authority")
}

func TestGet_LegacyCourseIDAlias(t *testing.T) {
	payload := `{"average":3,"count":9}`
	authority := &fakeAuthority{ratings: json.RawMessage(payload)}
	router, _ := newTestHandler(t, authority)

	rec := testutil.Get(t, router, "/ratings?courseId=7")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, payload, rec.Body.String())
}

func TestGet_FetchSurvivesClientAbort(t *testing.T) {
	payload := `{"average":4.2,"count":7}`
	authority := &fakeAuthority{ratings: json.RawMessage(payload)}
	router, _ := newTestHandler(t, authority)

	// The collapsed fetch is shared by every waiter on the same key, so a
	// cancelled inbound request must not poison it.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := httptest.NewRequest(http.MethodGet, "/ratings?resourceId=42", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, payload, rec.Body.String())
}

func TestGet_UpstreamFailure(t *testing.T) {
	authority := &fakeAuthority{err: dErrors.New(dErrors.CodeUpstreamUnavailable, "verification service unavailable")}
	router, _ := newTestHandler(t, authority)

	rec := testutil.Get(t, router, "/ratings?resourceId=42")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestPost_Success_InvalidatesCache(t *testing.T) {
	result := `{"status":"success","average":4.6,"count":13}`
	authority := &fakeAuthority{addResult: json.RawMessage(result)}
	router, store := newTestHandler(t, authority)

	require.NoError(t, store.Put(context.Background(), "ratings:42", `{"average":4.5,"count":12}`, time.Hour))

	rec := testutil.PostJSON(t, router, "/ratings", `{"resourceId":42,"rating":5}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, result, rec.Body.String(), "authority payload is returned verbatim")

	// Invalidation is asynchronous best-effort; the entry must disappear
	// well before its TTL.
	assert.Eventually(t, func() bool {
		_, ok, err := store.Get(context.Background(), "ratings:42")
		return err == nil && !ok
	}, time.Second, 5*time.Millisecond)
}

func TestPost_RatingOutOfRange(t *testing.T) {
	authority := &fakeAuthority{addResult: json.RawMessage(`{}`)}
	router, _ := newTestHandler(t, authority)

	for _, body := range []string{
		`{"resourceId":42,"rating":6}`,
		`{"resourceId":42,"rating":0}`,
		`{"resourceId":42,"rating":-1}`,
		`{"resourceId":42,"rating":4.5}`,
		`{"resourceId":42}`,
	} {
		rec := testutil.PostJSON(t, router, "/ratings", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %s", body)
		assert.Contains(t, rec.Body.String(), "Rating must be 1-5")
	}
	assert.Zero(t, atomic.LoadInt32(&authority.addCalls), "invalid ratings must not reach the authority")
}

func TestPost_InvalidResourceID(t *testing.T) {
	authority := &fakeAuthority{addResult: json.RawMessage(`{}`)}
	router, _ := newTestHandler(t, authority)

	rec := testutil.PostJSON(t, router, "/ratings", `{"resourceId":0,"rating":3}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, atomic.LoadInt32(&authority.addCalls))
}

func TestPost_WrongContentType(t *testing.T) {
	authority := &fakeAuthority{addResult: json.RawMessage(`{}`)}
	router, _ := newTestHandler(t, authority)

	rec := testutil.PostJSON(t, router, "/ratings", "rating=5", func(r *http.Request) {
		r.Header.Set("Content-Type", "text/plain")
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, atomic.LoadInt32(&authority.addCalls))
}

func TestPost_UpstreamFailure_LeavesCacheIntact(t *testing.T) {
	authority := &fakeAuthority{err: dErrors.New(dErrors.CodeUpstreamUnavailable, "verification service unavailable")}
	router, store := newTestHandler(t, authority)

	cached := `{"average":4.5,"count":12}`
	require.NoError(t, store.Put(context.Background(), "ratings:42", cached, time.Hour))

	rec := testutil.PostJSON(t, router, "/ratings", `{"resourceId":42,"rating":5}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	val, ok, err := store.Get(context.Background(), "ratings:42")
	require.NoError(t, err)
	require.True(t, ok, "a failed write must not invalidate the cache")
	assert.Equal(t, cached, val)
}

func TestPost_WriteRateLimit(t *testing.T) {
	authority := &fakeAuthority{addResult: json.RawMessage(`{"status":"success"}`)}
	router, _ := newTestHandler(t, authority)

	// ratings_write allows 3 per minute per client.
	for i := 0; i < 3; i++ {
		rec := testutil.PostJSON(t, router, "/ratings", `{"resourceId":42,"rating":4}`)
		require.Equal(t, http.StatusOK, rec.Code, "write %d", i+1)
	}

	rec := testutil.PostJSON(t, router, "/ratings", `{"resourceId":42,"rating":4}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, int32(3), atomic.LoadInt32(&authority.addCalls))
}
