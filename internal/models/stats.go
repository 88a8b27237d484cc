package models

import "time"

// LanguageShare is one entry of the ranked language breakdown.
type LanguageShare struct {
	Language   string `json:"language"`
	Percentage int    `json:"percentage"`
}

// StatsRecord is the aggregated statistics for one user. It is computed
// once, cached as-is, and never mutated afterwards.
type StatsRecord struct {
	Username     string    `json:"username"`
	Name         string    `json:"name,omitempty"`
	AvatarURL    string    `json:"avatarUrl,omitempty"`
	Followers    int       `json:"followers"`
	Following    int       `json:"following"`
	PublicRepos  int       `json:"publicRepos"`
	PublicGists  int       `json:"publicGists"`
	AccountSince time.Time `json:"accountSince"`

	TotalRepos         int `json:"totalRepos"`
	ContributedTo      int `json:"contributedTo"`
	TotalStars         int `json:"totalStars"`
	TotalForks         int `json:"totalForks"`
	RecentRepoActivity int `json:"recentRepoActivity"`

	TopLanguages []LanguageShare `json:"topLanguages"`

	TotalCommits int `json:"totalCommits"`
	TotalPRs     int `json:"totalPRs"`
	TotalIssues  int `json:"totalIssues"`

	CurrentStreak int `json:"currentStreak"`
	LongestStreak int `json:"longestStreak"`

	LastActivity time.Time `json:"lastActivity"`
	ComputedAt   time.Time `json:"computedAt"`

	// CacheAgeSeconds is set only when the record was served from cache.
	CacheAgeSeconds int `json:"cacheAgeSeconds,omitempty"`
}

// ErrorResponse is the JSON shape for every failure the API returns.
type ErrorResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}
