package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/amitxd75/github-api-backend/internal/models"
)

const (
	// DefaultBaseURL is the public GitHub REST API.
	DefaultBaseURL = "https://api.github.com"

	acceptHeader = "application/vnd.github.v3+json"
	userAgent    = "github-api-backend"

	// perPage is the listing page size for repos and events.
	perPage = 100
)

// Client talks to the GitHub REST API through the retrying Fetcher.
// A configured token is attached as a bearer credential; without one
// the client runs against the unauthenticated quota.
type Client struct {
	baseURL string
	token   string
	fetcher *Fetcher
}

func NewClient(baseURL, token string, fetcher *Fetcher) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if fetcher == nil {
		fetcher = NewFetcher(nil, DefaultMaxRetries)
	}
	return &Client{baseURL: baseURL, token: token, fetcher: fetcher}
}

// Get fetches an arbitrary API path (must start with "/") and returns
// the response whatever its status. Transport failures surface as
// *Error after retries.
func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, &Error{Kind: KindValidation, Message: fmt.Sprintf("invalid endpoint %q", path), Err: err}
	}
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("User-Agent", userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return c.fetcher.Fetch(ctx, req)
}

// getJSON fetches a path and decodes a 200 response into out. Any other
// status becomes a classified *Error.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.Get(ctx, path)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return StatusError(resp.StatusCode, string(resp.Body), resp.RateLimitReset())
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return &Error{Kind: KindUnknown, Message: fmt.Sprintf("decoding %s response", path), Err: err}
	}
	return nil
}

// GetUser fetches the user profile.
func (c *Client) GetUser(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := c.getJSON(ctx, "/users/"+username, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetRepos fetches the first page of the user's repositories, most
// recently updated first.
func (c *Client) GetRepos(ctx context.Context, username string) ([]models.Repo, error) {
	var repos []models.Repo
	path := fmt.Sprintf("/users/%s/repos?per_page=%d&sort=updated", username, perPage)
	if err := c.getJSON(ctx, path, &repos); err != nil {
		return nil, err
	}
	return repos, nil
}

// GetEvents fetches the user's public event stream, newest first.
func (c *Client) GetEvents(ctx context.Context, username string) ([]models.Event, error) {
	var events []models.Event
	path := fmt.Sprintf("/users/%s/events/public?per_page=%d", username, perPage)
	if err := c.getJSON(ctx, path, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// GetLanguages fetches the language byte breakdown for one repository,
// identified by its owner-qualified name.
func (c *Client) GetLanguages(ctx context.Context, fullName string) (map[string]int64, error) {
	var langs map[string]int64
	if err := c.getJSON(ctx, "/repos/"+fullName+"/languages", &langs); err != nil {
		return nil, err
	}
	return langs, nil
}
