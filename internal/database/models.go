// internal/database/models.go
package database

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// Crawl run status values enforced by the crawl_runs check constraint.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Repository is a row of the repositories table. ID and NodeID are GitHub's
// identifiers; full_name, node_id and id are each unique.
type Repository struct {
	ID             int64     `json:"id"`
	NodeID         string    `json:"node_id"`
	FullName       string    `json:"full_name"`
	OwnerLogin     string    `json:"owner_login"`
	Name           string    `json:"name"`
	StargazerCount int32     `json:"stargazer_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CrawlRun is a row of the crawl_runs table. CompletedAt is null while the
// run is in progress.
type CrawlRun struct {
	ID           int32              `json:"id"`
	StartedAt    time.Time          `json:"started_at"`
	CompletedAt  pgtype.Timestamptz `json:"completed_at"`
	ReposCrawled int32              `json:"repos_crawled"`
	Status       string             `json:"status"`
}

// RepositoryStats aggregates star counts over the whole repositories table.
type RepositoryStats struct {
	TotalRepos int64   `json:"total_repos"`
	AvgStars   float64 `json:"avg_stars"`
	MaxStars   int64   `json:"max_stars"`
	MinStars   int64   `json:"min_stars"`
	TotalStars int64   `json:"total_stars"`
}
