package models

import "time"

// User is the subset of the GitHub user profile the service consumes.
type User struct {
	Login       string    `json:"login"`
	Name        string    `json:"name"`
	AvatarURL   string    `json:"avatar_url"`
	Followers   int       `json:"followers"`
	Following   int       `json:"following"`
	PublicRepos int       `json:"public_repos"`
	PublicGists int       `json:"public_gists"`
	CreatedAt   time.Time `json:"created_at"`
}

// Repo is a single entry from the per-user repository listing.
type Repo struct {
	Name            string    `json:"name"`
	FullName        string    `json:"full_name"`
	StargazersCount int       `json:"stargazers_count"`
	ForksCount      int       `json:"forks_count"`
	Language        string    `json:"language"`
	PushedAt        time.Time `json:"pushed_at"`
	Fork            bool      `json:"fork"`
}

// Event is a single entry from the per-user public event stream,
// delivered newest-first by the API.
type Event struct {
	Type      string       `json:"type"`
	CreatedAt time.Time    `json:"created_at"`
	Payload   EventPayload `json:"payload"`
}

// EventPayload carries the commit list for push events; other event
// types leave it empty.
type EventPayload struct {
	Commits []Commit `json:"commits"`
}

// Commit is a commit descriptor inside a push event payload.
type Commit struct {
	SHA     string `json:"sha"`
	Message string `json:"message"`
}
