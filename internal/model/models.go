// internal/model/models.go
package model

import (
	"fmt"
	"time"
)

// Repository is the crawler's view of a GitHub repository, as returned by the
// search API. It is a transfer object; the persisted row lives in the
// database package.
type Repository struct {
	ID             int64     `json:"id"`
	NodeID         string    `json:"node_id"`
	FullName       string    `json:"full_name"`
	OwnerLogin     string    `json:"owner_login"`
	Name           string    `json:"name"`
	StargazerCount int       `json:"stargazer_count"`
	FetchedAt      time.Time `json:"fetched_at"`
}

// CrawlStats summarizes a single completed crawl cycle.
type CrawlStats struct {
	RunID         int32         `json:"run_id"`
	TotalCrawled  int           `json:"total_crawled"`
	TotalUpserted int64         `json:"total_upserted"`
	BatchCount    int           `json:"batch_count"`
	StartedAt     time.Time     `json:"started_at"`
	CompletedAt   time.Time     `json:"completed_at"`
	Duration      time.Duration `json:"duration"`
}

// ReposPerSecond returns the average crawl speed, 0 for an empty or
// instantaneous run.
func (s CrawlStats) ReposPerSecond() float64 {
	secs := s.Duration.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(s.TotalCrawled) / secs
}

// StarRange is one partition of the repository search space. The GitHub
// search API returns at most 1000 results per query, so the crawler splits
// the full space into star-count buckets and searches each one separately.
// MaxStars < 0 means unbounded.
type StarRange struct {
	MinStars int
	MaxStars int
}

// Query renders the range as a GitHub search qualifier.
func (r StarRange) Query() string {
	switch {
	case r.MaxStars < 0:
		return fmt.Sprintf("stars:>=%d", r.MinStars)
	case r.MinStars == r.MaxStars:
		return fmt.Sprintf("stars:%d", r.MinStars)
	default:
		return fmt.Sprintf("stars:%d..%d", r.MinStars, r.MaxStars)
	}
}

func (r StarRange) String() string {
	return r.Query()
}

// DefaultStarRanges partitions the search space from the most-starred
// repositories down to zero-star ones. High buckets are narrow enough that
// each stays under the 1000-result cap.
func DefaultStarRanges() []StarRange {
	return []StarRange{
		{100000, -1},
		{50000, 99999},
		{20000, 49999},
		{10000, 19999},
		{5000, 9999},
		{2000, 4999},
		{1000, 1999},
		{500, 999},
		{200, 499},
		{100, 199},
		{50, 99},
		{20, 49},
		{10, 19},
		{5, 9},
		{2, 4},
		{1, 1},
		{0, 0},
	}
}
