package cache

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// StatsKeyPrefix marks entries belonging to the stats namespace, which
// carries its own (shorter) TTL. Every other key is treated as a raw
// endpoint entry.
const StatsKeyPrefix = "stats_"

// Policy configures the cache limits. Two TTLs apply depending on the
// key namespace.
type Policy struct {
	EndpointTTL   time.Duration
	StatsTTL      time.Duration
	MaxEntries    int
	MaxTotalBytes int
}

type entry struct {
	value    any
	storedAt time.Time
	size     int
}

// ResponseCache is a bounded in-memory store for upstream responses and
// computed stats records. Expired entries are treated as absent on read
// and physically removed by the eviction pass that follows writes.
type ResponseCache struct {
	policy Policy

	mu      sync.RWMutex
	entries map[string]entry

	// Metrics
	hits   atomic.Int64
	misses atomic.Int64
}

func New(policy Policy) *ResponseCache {
	return &ResponseCache{
		policy:  policy,
		entries: make(map[string]entry),
	}
}

func (c *ResponseCache) ttlFor(key string) time.Duration {
	if strings.HasPrefix(key, StatsKeyPrefix) {
		return c.policy.StatsTTL
	}
	return c.policy.EndpointTTL
}

// Get returns the stored value and its age. A missing or expired entry
// reports ok=false; expired entries are left in place for the next
// eviction pass.
func (c *ResponseCache) Get(key string) (value any, age time.Duration, ok bool) {
	c.mu.RLock()
	e, found := c.entries[key]
	c.mu.RUnlock()

	if !found {
		c.misses.Add(1)
		return nil, 0, false
	}

	age = time.Since(e.storedAt)
	if age >= c.ttlFor(key) {
		c.misses.Add(1)
		return nil, 0, false
	}

	c.hits.Add(1)
	return e.value, age, true
}

// Set stores a value and schedules an eviction pass off the write path.
func (c *ResponseCache) Set(key string, value any) {
	size := 0
	if b, err := json.Marshal(value); err == nil {
		size = len(b)
	}

	c.mu.Lock()
	c.entries[key] = entry{value: value, storedAt: time.Now(), size: size}
	c.mu.Unlock()

	go c.evict()
}

// Delete removes a single entry. A key that is neither found verbatim
// nor namespaced gets a retry with a leading slash, so callers may pass
// endpoint paths without the separator.
func (c *ResponseCache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, found := c.entries[key]; found {
		delete(c.entries, key)
		return true
	}
	if !strings.HasPrefix(key, "/") && !strings.HasPrefix(key, StatsKeyPrefix) {
		alt := "/" + key
		if _, found := c.entries[alt]; found {
			delete(c.entries, alt)
			return true
		}
	}
	return false
}

// Clear removes every entry and returns how many were dropped.
func (c *ResponseCache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.entries)
	c.entries = make(map[string]entry)
	return n
}

// evict trims the oldest entries once either limit is exceeded. Passes
// serialize on the cache mutex; a pass that finds the limits respected
// returns immediately, so stacked-up passes are cheap.
func (c *ResponseCache) evict() {
	c.mu.Lock()
	defer c.mu.Unlock()

	totalSize := 0
	for _, e := range c.entries {
		totalSize += e.size
	}
	if len(c.entries) <= c.policy.MaxEntries && totalSize <= c.policy.MaxTotalBytes {
		return
	}

	type aged struct {
		key      string
		storedAt time.Time
	}
	byAge := make([]aged, 0, len(c.entries))
	for k, e := range c.entries {
		byAge = append(byAge, aged{key: k, storedAt: e.storedAt})
	}
	sort.Slice(byAge, func(i, j int) bool {
		return byAge[i].storedAt.Before(byAge[j].storedAt)
	})

	// Trim to 80% of the entry limit so back-to-back writes do not
	// re-trigger eviction immediately. Size is not re-checked within
	// the same pass; the next write gets another pass.
	target := c.policy.MaxEntries * 8 / 10
	for _, a := range byAge {
		if len(c.entries) <= target {
			break
		}
		delete(c.entries, a.key)
	}
}

// NamespaceStatus summarizes one cache namespace.
type NamespaceStatus struct {
	Entries          int `json:"entries"`
	SizeBytes        int `json:"sizeBytes"`
	OldestAgeSeconds int `json:"oldestAgeSeconds"`
}

// Status is the admin-facing cache summary.
type Status struct {
	EntryCount     int                        `json:"entryCount"`
	TotalSizeBytes int                        `json:"totalSizeBytes"`
	Hits           int64                      `json:"hits"`
	Misses         int64                      `json:"misses"`
	Namespaces     map[string]NamespaceStatus `json:"namespaces"`
}

func (c *ResponseCache) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := time.Now()
	namespaces := map[string]NamespaceStatus{
		"endpoints": {},
		"stats":     {},
	}
	total := 0
	for k, e := range c.entries {
		ns := "endpoints"
		if strings.HasPrefix(k, StatsKeyPrefix) {
			ns = "stats"
		}
		s := namespaces[ns]
		s.Entries++
		s.SizeBytes += e.size
		if age := int(now.Sub(e.storedAt).Seconds()); age > s.OldestAgeSeconds {
			s.OldestAgeSeconds = age
		}
		namespaces[ns] = s
		total += e.size
	}

	return Status{
		EntryCount:     len(c.entries),
		TotalSizeBytes: total,
		Hits:           c.hits.Load(),
		Misses:         c.misses.Load(),
		Namespaces:     namespaces,
	}
}
