package service

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/amitxd75/github-api-backend/internal/cache"
	"github.com/amitxd75/github-api-backend/internal/models"
	"github.com/amitxd75/github-api-backend/internal/stats"
	"github.com/amitxd75/github-api-backend/internal/upstream"
)

const (
	// languageBatchSize bounds concurrent per-repo language calls.
	languageBatchSize = 5
	// languageBatchPause spaces batches out to stay inside the
	// upstream rate limit.
	languageBatchPause = 100 * time.Millisecond
)

// StatsService computes and caches aggregated user statistics.
// Concurrent misses for the same username are collapsed into one
// computation via singleflight.
type StatsService struct {
	cache  *cache.ResponseCache
	client *upstream.Client
	group  singleflight.Group

	// batchPause is overridable so tests do not sleep.
	batchPause time.Duration
}

func NewStatsService(c *cache.ResponseCache, client *upstream.Client) *StatsService {
	return &StatsService{cache: c, client: client, batchPause: languageBatchPause}
}

// CacheKey returns the cache key for a username's stats record.
func CacheKey(username string) string {
	return cache.StatsKeyPrefix + username
}

// Handle serves one stats request. A live cached record comes back with
// CacheAgeSeconds populated; a fresh computation comes back without it.
func (s *StatsService) Handle(ctx context.Context, username string, force bool) (models.StatsRecord, error) {
	key := CacheKey(username)

	if !force {
		if value, age, ok := s.cache.Get(key); ok {
			record := value.(models.StatsRecord)
			record.CacheAgeSeconds = int(age.Seconds())
			return record, nil
		}
	}

	result, err, _ := s.group.Do(key, func() (any, error) {
		return s.compute(ctx, username)
	})
	if err != nil {
		return models.StatsRecord{}, err
	}
	record := result.(models.StatsRecord)

	s.cache.Set(key, record)
	return record, nil
}

func (s *StatsService) compute(ctx context.Context, username string) (models.StatsRecord, error) {
	user, err := s.client.GetUser(ctx, username)
	if err != nil {
		return models.StatsRecord{}, err
	}
	repos, err := s.client.GetRepos(ctx, username)
	if err != nil {
		return models.StatsRecord{}, err
	}
	events, err := s.client.GetEvents(ctx, username)
	if err != nil {
		return models.StatsRecord{}, err
	}

	languages := s.fetchLanguages(ctx, repos)

	return stats.Aggregate(user, repos, events, languages), nil
}

// fetchLanguages collects per-repo language bytes for the user's own
// repositories, five concurrent calls per batch with a pause between
// batches. A failed call contributes an empty map; one bad repo must
// not sink the whole aggregation.
func (s *StatsService) fetchLanguages(ctx context.Context, repos []models.Repo) map[string]map[string]int64 {
	own := make([]models.Repo, 0, len(repos))
	for _, repo := range repos {
		if !repo.Fork {
			own = append(own, repo)
		}
	}

	languages := make(map[string]map[string]int64, len(own))
	var mu sync.Mutex

	for start := 0; start < len(own); start += languageBatchSize {
		end := start + languageBatchSize
		if end > len(own) {
			end = len(own)
		}

		var wg sync.WaitGroup
		for _, repo := range own[start:end] {
			wg.Add(1)
			go func(fullName string) {
				defer wg.Done()
				langs, err := s.client.GetLanguages(ctx, fullName)
				if err != nil {
					log.Printf("language fetch for %s failed: %v", fullName, err)
					langs = map[string]int64{}
				}
				mu.Lock()
				languages[fullName] = langs
				mu.Unlock()
			}(repo.FullName)
		}
		wg.Wait()

		if end < len(own) {
			time.Sleep(s.batchPause)
		}
	}

	return languages
}
