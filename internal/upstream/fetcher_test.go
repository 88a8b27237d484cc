package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedServer replays a fixed sequence of status codes and counts
// how many requests it served.
func scriptedServer(t *testing.T, statuses ...int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1)) - 1
		if n >= len(statuses) {
			n = len(statuses) - 1
		}
		w.WriteHeader(statuses[n])
		fmt.Fprintf(w, `{"attempt":%d}`, n)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func fastFetcher(maxRetries int) *Fetcher {
	f := NewFetcher(nil, maxRetries)
	f.backoffUnit = time.Millisecond
	return f
}

func get(t *testing.T, f *Fetcher, url string) (*Response, error) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	return f.Fetch(context.Background(), req)
}

func TestRetriesUntilSuccess(t *testing.T) {
	srv, calls := scriptedServer(t, 500, 500, 200)

	resp, err := get(t, fastFetcher(2), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestExhaustedRetriesReturnLastResponse(t *testing.T) {
	srv, calls := scriptedServer(t, 500, 500, 500)

	resp, err := get(t, fastFetcher(2), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, 500, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load(), "no attempt beyond maxRetries")
}

func TestAuthStatusesAreTerminal(t *testing.T) {
	for _, status := range []int{401, 403} {
		t.Run(fmt.Sprintf("%d", status), func(t *testing.T) {
			srv, calls := scriptedServer(t, status)

			start := time.Now()
			resp, err := get(t, fastFetcher(2), srv.URL)
			require.NoError(t, err)
			assert.Equal(t, status, resp.StatusCode)
			assert.Equal(t, int32(1), calls.Load())
			assert.Less(t, time.Since(start), 100*time.Millisecond, "no backoff before returning")
		})
	}
}

func TestClientErrorsAreTerminal(t *testing.T) {
	srv, calls := scriptedServer(t, 404)

	resp, err := get(t, fastFetcher(2), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestConnectionRefusedRetriedThenFails(t *testing.T) {
	// A closed listener gives connection refused on every attempt.
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := get(t, fastFetcher(1), url)
	require.Error(t, err)

	var upErr *Error
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, KindNetwork, upErr.Kind)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, isTransient(syscall.ECONNREFUSED))
	assert.True(t, isTransient(syscall.ECONNRESET))
	assert.True(t, isTransient(context.DeadlineExceeded))
	assert.True(t, isTransient(errors.New("dial tcp: connection refused")))
	assert.False(t, isTransient(errors.New("unsupported protocol scheme")))
}

func TestRateLimitHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "42")
		w.Header().Set("X-RateLimit-Reset", "1700000000")
		w.WriteHeader(200)
	}))
	t.Cleanup(srv.Close)

	resp, err := get(t, fastFetcher(0), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, 42, resp.RateLimitRemaining())
	assert.Equal(t, time.Unix(1700000000, 0), resp.RateLimitReset())
}
