// pkg/client/client.go
package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github-star-crawler/internal/database"
)

// Client is the API client for the crawler service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// TopRepositories retrieves the most-starred repositories.
func (c *Client) TopRepositories(limit int) ([]database.Repository, error) {
	var repos []database.Repository
	if err := c.get("/v1/repos/top", limitParams(limit), &repos); err != nil {
		return nil, err
	}
	return repos, nil
}

// RecentRepositories retrieves the most recently updated repositories.
func (c *Client) RecentRepositories(limit int) ([]database.Repository, error) {
	var repos []database.Repository
	if err := c.get("/v1/repos/recent", limitParams(limit), &repos); err != nil {
		return nil, err
	}
	return repos, nil
}

// OwnerRepositories retrieves all stored repositories for one owner.
func (c *Client) OwnerRepositories(owner string) ([]database.Repository, error) {
	var repos []database.Repository
	path := fmt.Sprintf("/v1/repos/%s", url.PathEscape(owner))
	if err := c.get(path, nil, &repos); err != nil {
		return nil, err
	}
	return repos, nil
}

// Repository retrieves a single repository by owner and name.
func (c *Client) Repository(owner, name string) (*database.Repository, error) {
	var repo database.Repository
	path := fmt.Sprintf("/v1/repos/%s/%s", url.PathEscape(owner), url.PathEscape(name))
	if err := c.get(path, nil, &repo); err != nil {
		return nil, err
	}
	return &repo, nil
}

// Stats retrieves aggregate star statistics.
func (c *Client) Stats() (*database.RepositoryStats, error) {
	var stats database.RepositoryStats
	if err := c.get("/v1/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Runs retrieves recent crawl runs, newest first.
func (c *Client) Runs(limit int) ([]database.CrawlRun, error) {
	var runs []database.CrawlRun
	if err := c.get("/v1/runs", limitParams(limit), &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

// LatestRun retrieves the most recently started crawl run.
func (c *Client) LatestRun() (*database.CrawlRun, error) {
	var run database.CrawlRun
	if err := c.get("/v1/runs/latest", nil, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// HealthCheck checks if the API is healthy.
func (c *Client) HealthCheck() error {
	var response struct {
		Status string `json:"status"`
	}
	if err := c.get("/health", nil, &response); err != nil {
		return err
	}
	if response.Status != "ok" {
		return fmt.Errorf("unexpected health status: %q", response.Status)
	}
	return nil
}

func (c *Client) get(path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	resp, err := c.httpClient.Get(u)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("API error (%d): %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func limitParams(limit int) url.Values {
	if limit <= 0 {
		return nil
	}
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	return params
}
