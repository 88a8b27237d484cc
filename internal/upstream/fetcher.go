package upstream

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// DefaultMaxRetries is the number of additional attempts after the
// first one.
const DefaultMaxRetries = 2

// Response is a fully-read upstream response. The body is buffered so
// the connection can be reused between retry attempts.
type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

// RateLimitRemaining reports the X-RateLimit-Remaining header, or -1
// when absent.
func (r *Response) RateLimitRemaining() int {
	v := r.Header.Get("X-RateLimit-Remaining")
	if v == "" {
		return -1
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return -1
	}
	return n
}

// RateLimitReset reports the X-RateLimit-Reset header as a time, or the
// zero time when absent.
func (r *Response) RateLimitReset() time.Time {
	v := r.Header.Get("X-RateLimit-Reset")
	if v == "" {
		return time.Time{}
	}
	sec, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}

// Fetcher issues a single upstream request and retries transient
// failures with exponential backoff. Statuses below 500 are terminal,
// 401/403 included: retrying cannot fix credentials or an exhausted
// quota. Statuses >= 500 and a closed set of transport failures get up
// to maxRetries additional attempts; after exhaustion the last response
// or transport error is returned.
type Fetcher struct {
	httpClient *http.Client
	maxRetries int

	// backoffUnit is one second in production; tests shrink it.
	backoffUnit time.Duration
}

func NewFetcher(httpClient *http.Client, maxRetries int) *Fetcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Fetcher{
		httpClient:  httpClient,
		maxRetries:  maxRetries,
		backoffUnit: time.Second,
	}
}

// Fetch performs the request with retries. The returned Response may
// carry any status code; callers classify it. A nil Response means the
// transport never produced one.
func (f *Fetcher) Fetch(ctx context.Context, req *http.Request) (*Response, error) {
	var last *Response
	var lastErr error

	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if attempt > 0 {
			// 2^(attempt-1) units after the attempt that failed.
			delay := f.backoffUnit * (1 << (attempt - 1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return last, &Error{Kind: KindNetwork, Message: "request cancelled", Err: ctx.Err()}
			}
		}

		resp, err := f.httpClient.Do(req.WithContext(ctx))
		if err != nil {
			if !isTransient(err) {
				return nil, &Error{Kind: KindNetwork, Message: "upstream request failed", Err: err}
			}
			lastErr = err
			last = nil
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			last = nil
			continue
		}

		last = &Response{StatusCode: resp.StatusCode, Body: body, Header: resp.Header}
		lastErr = nil

		if resp.StatusCode < 500 {
			return last, nil
		}
		// 5xx: retry, keeping the response in case this was the
		// final attempt.
	}

	if last != nil {
		return last, nil
	}
	if lastErr != nil {
		return nil, &Error{Kind: KindNetwork, Message: "upstream unreachable after retries", Err: lastErr}
	}
	return nil, &Error{Kind: KindUnknown, Message: "max retries exceeded"}
}

// isTransient reports whether a transport failure is worth retrying:
// refused or reset connections, DNS failures, and timeouts. Anything
// else propagates immediately.
func isTransient(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	// url.Error sometimes hides the cause behind a plain string.
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "no such host")
}
