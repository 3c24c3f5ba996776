// internal/github/client.go
package github

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"

	custom_errors "github-star-crawler/internal/errors"
	"github-star-crawler/internal/model"
)

const (
	// Total attempts per API call before giving up on transient failures.
	maxRetries = 4

	// The search API never returns more than 1000 results for one query,
	// regardless of pagination.
	perQueryResultCap = 1000

	baseBackoff = 500 * time.Millisecond
)

// Client is a wrapper around the go-github client, scoped to repository
// search.
type Client struct {
	gh     *github.Client
	logger *slog.Logger
}

// NewClient creates and configures a new Client instance.
// The provided token is used to create an authenticated http.Client.
func NewClient(token string, logger *slog.Logger) *Client {
	ctx := context.Background()
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(ctx, ts)

	return &Client{
		gh:     github.NewClient(tc),
		logger: logger,
	}
}

// WithBaseURL points the client at an alternative API endpoint. Used for
// GitHub Enterprise deployments and for tests.
func (c *Client) WithBaseURL(rawURL string) error {
	gh, err := c.gh.WithEnterpriseURLs(rawURL, rawURL)
	if err != nil {
		return err
	}
	c.gh = gh
	return nil
}

// SearchByStarRange searches repositories within one star-count bucket and
// streams results to fn in page-sized batches, handling pagination
// transparently. maxResults <= 0 means as many as the API will give; either
// way the 1000-result cap applies. Returns the number of repositories
// delivered. An error from fn aborts the search and is returned as-is.
func (c *Client) SearchByStarRange(ctx context.Context, rng model.StarRange, batchSize, maxResults int, fn func([]model.Repository) error) (int, error) {
	if batchSize < 1 || batchSize > 100 {
		return 0, &custom_errors.ErrInvalidBatchSize{Size: batchSize}
	}
	if maxResults <= 0 || maxResults > perQueryResultCap {
		maxResults = perQueryResultCap
	}

	opts := &github.SearchOptions{
		Sort: "updated",
		ListOptions: github.ListOptions{
			PerPage: batchSize,
		},
	}

	total := 0
	for total < maxResults {
		c.logger.Debug("Fetching search page", "range", rng.Query(), "page", opts.Page)

		result, resp, err := c.searchPage(ctx, rng.Query(), opts)
		if err != nil {
			return total, err
		}

		now := time.Now().UTC()
		batch := make([]model.Repository, 0, len(result.Repositories))
		for _, r := range result.Repositories {
			if r.GetID() == 0 || r.GetOwner().GetLogin() == "" || r.GetName() == "" {
				c.logger.Warn("Skipping malformed search result", "full_name", r.GetFullName())
				continue
			}
			if total+len(batch) >= maxResults {
				break
			}
			batch = append(batch, toRepository(r, now))
		}

		if len(batch) > 0 {
			if err := fn(batch); err != nil {
				return total, err
			}
			total += len(batch)
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return total, nil
}

// searchPage issues one search request with retry handling: primary rate
// limits wait until the reported reset, secondary rate limits honor
// Retry-After, and 5xx responses back off exponentially.
func (c *Client) searchPage(ctx context.Context, query string, opts *github.SearchOptions) (*github.RepositoriesSearchResult, *github.Response, error) {
	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		result, resp, err := c.gh.Search.Repositories(ctx, query, opts)
		if err == nil {
			return result, resp, nil
		}
		lastErr = err

		var (
			rateErr  *github.RateLimitError
			abuseErr *github.AbuseRateLimitError
			respErr  *github.ErrorResponse
		)
		switch {
		case errors.As(err, &rateErr):
			if attempt == maxRetries {
				return nil, nil, err
			}
			wait := time.Until(rateErr.Rate.Reset.Time)
			if wait < 0 {
				wait = 0
			}
			c.logger.Warn("Rate limit exceeded, waiting for reset", "wait", wait.String())
			if err := sleepContext(ctx, wait+time.Second); err != nil {
				return nil, nil, err
			}
		case errors.As(err, &abuseErr):
			if attempt == maxRetries {
				return nil, nil, err
			}
			wait := abuseErr.GetRetryAfter()
			c.logger.Warn("Secondary rate limit hit, backing off", "wait", wait.String())
			if err := sleepContext(ctx, wait); err != nil {
				return nil, nil, err
			}
		case errors.As(err, &respErr) && respErr.Response != nil && respErr.Response.StatusCode >= 500:
			if attempt == maxRetries {
				return nil, nil, err
			}
			backoff := baseBackoff * time.Duration(1<<(attempt-1))
			c.logger.Warn("GitHub server error, retrying", "status", respErr.Response.StatusCode, "backoff", backoff.String())
			if err := sleepContext(ctx, backoff); err != nil {
				return nil, nil, err
			}
		default:
			return nil, nil, err
		}
	}

	return nil, nil, lastErr
}

// toRepository translates a github.Repository search result to our internal
// model.
func toRepository(r *github.Repository, fetchedAt time.Time) model.Repository {
	fullName := r.GetFullName()
	if fullName == "" {
		fullName = r.GetOwner().GetLogin() + "/" + r.GetName()
	}
	return model.Repository{
		ID:             r.GetID(),
		NodeID:         r.GetNodeID(),
		FullName:       fullName,
		OwnerLogin:     r.GetOwner().GetLogin(),
		Name:           r.GetName(),
		StargazerCount: r.GetStargazersCount(),
		FetchedAt:      fetchedAt,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
