package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/amitxd75/github-api-backend/internal/cache"
	"github.com/amitxd75/github-api-backend/internal/upstream"
)

// ProxyService passes a single upstream endpoint through the cache.
// Concurrent misses for the same endpoint are collapsed into one
// upstream call via singleflight.
type ProxyService struct {
	cache  *cache.ResponseCache
	client *upstream.Client
	group  singleflight.Group
}

func NewProxyService(c *cache.ResponseCache, client *upstream.Client) *ProxyService {
	return &ProxyService{cache: c, client: client}
}

// fetched pairs an upstream payload with the rate-limit budget observed
// on the response that produced it.
type fetched struct {
	payload   any
	rateLimit int
}

// Handle serves one proxy request. Object payloads come back annotated
// with cache metadata; array payloads pass through unchanged.
func (s *ProxyService) Handle(ctx context.Context, endpoint string, useCache bool) (any, error) {
	if !strings.HasPrefix(endpoint, "/") {
		return nil, &upstream.Error{
			Kind:    upstream.KindValidation,
			Message: fmt.Sprintf("endpoint must start with '/', got %q", endpoint),
		}
	}

	if useCache {
		if value, age, ok := s.cache.Get(endpoint); ok {
			return annotateCached(value, age), nil
		}
	}

	result, err, _ := s.group.Do(endpoint, func() (any, error) {
		return s.fetch(ctx, endpoint)
	})
	if err != nil {
		return nil, err
	}
	f := result.(fetched)

	if useCache {
		s.cache.Set(endpoint, f.payload)
	}
	return annotateFresh(f.payload, endpoint, f.rateLimit), nil
}

func (s *ProxyService) fetch(ctx context.Context, endpoint string) (fetched, error) {
	resp, err := s.client.Get(ctx, endpoint)
	if err != nil {
		return fetched{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fetched{}, upstream.StatusError(resp.StatusCode, string(resp.Body), resp.RateLimitReset())
	}

	var payload any
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return fetched{}, &upstream.Error{
			Kind:    upstream.KindUnknown,
			Message: "upstream returned malformed JSON",
			Err:     err,
		}
	}
	return fetched{payload: payload, rateLimit: resp.RateLimitRemaining()}, nil
}

func annotateFresh(payload any, endpoint string, rateLimit int) any {
	obj, isObject := payload.(map[string]any)
	if !isObject {
		return payload
	}
	out := make(map[string]any, len(obj)+1)
	for k, v := range obj {
		out[k] = v
	}
	out["_metadata"] = map[string]any{
		"cached":    false,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"endpoint":  endpoint,
		"rateLimit": rateLimit,
	}
	return out
}

func annotateCached(payload any, age time.Duration) any {
	obj, isObject := payload.(map[string]any)
	if !isObject {
		return payload
	}
	out := make(map[string]any, len(obj)+2)
	for k, v := range obj {
		out[k] = v
	}
	out["_cached"] = true
	out["_cacheAge"] = int(age.Seconds())
	return out
}
