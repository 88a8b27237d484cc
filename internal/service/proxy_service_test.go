package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amitxd75/github-api-backend/internal/cache"
	"github.com/amitxd75/github-api-backend/internal/upstream"
)

func newProxyService(t *testing.T, handler http.HandlerFunc) (*ProxyService, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	c := cache.New(cache.Policy{
		EndpointTTL:   time.Minute,
		StatsTTL:      time.Minute,
		MaxEntries:    100,
		MaxTotalBytes: 1 << 20,
	})
	client := upstream.NewClient(srv.URL, "", upstream.NewFetcher(nil, 0))
	return NewProxyService(c, client), &calls
}

func TestProxyRejectsRelativeEndpoint(t *testing.T) {
	s, calls := newProxyService(t, func(w http.ResponseWriter, r *http.Request) {})

	_, err := s.Handle(context.Background(), "users/octocat", true)
	require.Error(t, err)

	var upErr *upstream.Error
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, upstream.KindValidation, upErr.Kind)
	assert.Zero(t, calls.Load())
}

func TestProxyAnnotatesFreshObject(t *testing.T) {
	s, _ := newProxyService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "55")
		w.Write([]byte(`{"login":"octocat"}`))
	})

	payload, err := s.Handle(context.Background(), "/users/octocat", true)
	require.NoError(t, err)

	obj := payload.(map[string]any)
	assert.Equal(t, "octocat", obj["login"])

	meta := obj["_metadata"].(map[string]any)
	assert.Equal(t, false, meta["cached"])
	assert.Equal(t, "/users/octocat", meta["endpoint"])
	assert.Equal(t, 55, meta["rateLimit"])
}

func TestProxyCacheHitAnnotation(t *testing.T) {
	s, calls := newProxyService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"login":"octocat"}`))
	})

	_, err := s.Handle(context.Background(), "/users/octocat", true)
	require.NoError(t, err)

	payload, err := s.Handle(context.Background(), "/users/octocat", true)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load(), "second request served from cache")

	obj := payload.(map[string]any)
	assert.Equal(t, true, obj["_cached"])
	assert.Contains(t, obj, "_cacheAge")
	assert.NotContains(t, obj, "_metadata", "cached payload stays unannotated")
}

func TestProxyArrayPassthrough(t *testing.T) {
	s, _ := newProxyService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"name":"a"},{"name":"b"}]`))
	})

	payload, err := s.Handle(context.Background(), "/users/octocat/repos", true)
	require.NoError(t, err)

	arr, isArray := payload.([]any)
	require.True(t, isArray)
	assert.Len(t, arr, 2)
}

func TestProxyCacheDisabled(t *testing.T) {
	s, calls := newProxyService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})

	for i := 0; i < 2; i++ {
		_, err := s.Handle(context.Background(), "/rate_limit", false)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), calls.Load())
}

func TestProxyPropagatesUpstreamFailure(t *testing.T) {
	s, _ := newProxyService(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})

	_, err := s.Handle(context.Background(), "/users/ghost", true)
	require.Error(t, err)

	var upErr *upstream.Error
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, upstream.KindNotFound, upErr.Kind)
}
