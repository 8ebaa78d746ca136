package network

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSession(t *testing.T) {
	var gotAuth, gotContentType string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-type")
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Location", "https://upload.example.com/session/abc123")
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	params := SessionParams{
		Endpoint:    server.URL,
		Metadata:    map[string]interface{}{"name": "video.mp4", "mimeType": "video/mp4"},
		AccessToken: "test-token",
	}

	sessionURL, err := OpenSession(context.Background(), params, log.NewLogger())

	require.NoError(t, err)
	assert.Equal(t, "https://upload.example.com/session/abc123", sessionURL)
	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Equal(t, "application/json", gotContentType)

	var metadata map[string]interface{}
	require.NoError(t, json.Unmarshal(gotBody, &metadata))
	assert.Equal(t, "video.mp4", metadata["name"])
}

func TestOpenSession_DefaultMetadata(t *testing.T) {
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Location", "https://upload.example.com/session/abc123")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	params := SessionParams{Endpoint: server.URL}

	_, err := OpenSession(context.Background(), params, log.NewLogger())

	require.NoError(t, err)
	assert.JSONEq(t, "{}", string(gotBody))
}

func TestOpenSession_NoAuthHeaderWithoutToken(t *testing.T) {
	var gotAuth string
	var hasAuth bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, hasAuth = r.Header["Authorization"]
		w.Header().Set("Location", "https://upload.example.com/session/abc123")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	_, err := OpenSession(context.Background(), SessionParams{Endpoint: server.URL}, log.NewLogger())

	require.NoError(t, err)
	assert.False(t, hasAuth, "no Authorization header expected, got %q", gotAuth)
}

func TestOpenSession_ErrorResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error": "quota exceeded"}`))
	}))
	defer server.Close()

	_, err := OpenSession(context.Background(), SessionParams{Endpoint: server.URL}, log.NewLogger())

	require.Error(t, err)
	var sessionErr SessionError
	require.True(t, errors.As(err, &sessionErr))
	assert.Equal(t, http.StatusForbidden, sessionErr.Status)
	assert.Equal(t, `{"error": "quota exceeded"}`, sessionErr.Body)
}

func TestOpenSession_NoRetryOnServerError(t *testing.T) {
	var requestCount int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requestCount, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := OpenSession(context.Background(), SessionParams{Endpoint: server.URL}, log.NewLogger())

	require.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&requestCount), "session negotiation is one-shot")
}

func TestOpenSession_MissingLocationHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	_, err := OpenSession(context.Background(), SessionParams{Endpoint: server.URL}, log.NewLogger())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no Location header")
}

func TestOpenSession_EmptyEndpoint(t *testing.T) {
	_, err := OpenSession(context.Background(), SessionParams{}, log.NewLogger())

	require.Error(t, err)
}
