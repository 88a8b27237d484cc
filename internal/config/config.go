package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds every tunable the server reads from the environment.
type Config struct {
	Port        string
	GitHubToken string
	GitHubAPI   string

	EndpointTTL   time.Duration
	StatsTTL      time.Duration
	MaxEntries    int
	MaxTotalBytes int

	MaxRetries int
}

// Load reads the environment, falling back to defaults suitable for
// local development.
func Load() Config {
	return Config{
		Port:        getEnv("PORT", "8080"),
		GitHubToken: os.Getenv("GITHUB_TOKEN"),
		GitHubAPI:   getEnv("GITHUB_API_BASE", "https://api.github.com"),

		EndpointTTL:   getDuration("CACHE_ENDPOINT_TTL", 10*time.Minute),
		StatsTTL:      getDuration("CACHE_STATS_TTL", 5*time.Minute),
		MaxEntries:    getInt("CACHE_MAX_ENTRIES", 500),
		MaxTotalBytes: getInt("CACHE_MAX_BYTES", 50*1024*1024),

		MaxRetries: getInt("UPSTREAM_MAX_RETRIES", 2),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
