package authority

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "coursegate/pkg/domain-errors"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestGetLocation(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_ = json.NewEncoder(w).Encode(map[string]string{"driveUrl": "https://drive.example.com/folder/abc"})
	}))
	defer srv.Close()

	client := New(srv.URL, "shared-key", testLogger())

	loc, err := client.GetLocation(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "https://drive.example.com/folder/abc", loc)

	assert.Equal(t, "getLocation", captured["action"])
	assert.Equal(t, "shared-key", captured["apiKey"], "shared API key must ride along on every call")
	assert.Equal(t, float64(42), captured["resourceId"])
}

func TestGetLocation_EmptyLocationIsUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer srv.Close()

	client := New(srv.URL, "k", testLogger())

	_, err := client.GetLocation(context.Background(), 42)
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeUpstreamUnavailable, dErrors.CodeOf(err))
}

func TestVerifyAccess(t *testing.T) {
	valid := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "verifyAccess", req["action"])
		assert.Equal(t, "user@example.com", req["email"])
		_ = json.NewEncoder(w).Encode(map[string]bool{"valid": valid})
	}))
	defer srv.Close()

	client := New(srv.URL, "k", testLogger())

	ok, err := client.VerifyAccess(context.Background(), 7, "user@example.com", "hunter22")
	require.NoError(t, err)
	assert.True(t, ok)

	valid = false
	ok, err = client.VerifyAccess(context.Background(), 7, "user@example.com", "wrong")
	require.NoError(t, err, "a definitive rejection is not an error")
	assert.False(t, ok)
}

func TestCall_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "stack trace with secrets", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := New(srv.URL, "k", testLogger())

	_, err := client.GetRatings(context.Background(), 7)
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeUpstreamUnavailable, dErrors.CodeOf(err))
	assert.NotContains(t, dErrors.MessageOf(err), "stack trace", "upstream bodies must not leak")
}

func TestCall_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	client := New(srv.URL, "k", testLogger())

	_, err := client.GetRatings(context.Background(), 7)
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeUpstreamUnavailable, dErrors.CodeOf(err))
}

func TestCall_ConnectionRefused(t *testing.T) {
	// A server that is already closed refuses connections.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := New(srv.URL, "k", testLogger())

	_, err := client.GetRatings(context.Background(), 7)
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeUpstreamUnavailable, dErrors.CodeOf(err))
}

func TestAddRating_PassesIdentityAndReturnsPayloadVerbatim(t *testing.T) {
	payload := `{"status":"success","average":4.2,"count":13}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "addRating", req["action"])
		assert.Equal(t, float64(5), req["rating"])
		assert.Equal(t, "203.0.113.9", req["identity"])
		_, _ = w.Write([]byte(payload))
	}))
	defer srv.Close()

	client := New(srv.URL, "k", testLogger())

	got, err := client.AddRating(context.Background(), 7, 5, "203.0.113.9")
	require.NoError(t, err)
	assert.JSONEq(t, payload, string(got))
}
