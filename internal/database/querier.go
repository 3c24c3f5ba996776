// internal/database/querier.go
package database

import "context"

// Querier is the query surface consumed by the crawler and the API. Tests
// substitute a mock; production code uses New with a pool or transaction.
type Querier interface {
	UpsertRepositories(ctx context.Context, arg []UpsertRepositoriesParams) (int64, error)
	GetRepositoryByFullName(ctx context.Context, fullName string) (Repository, error)
	ListRepositoriesByOwner(ctx context.Context, ownerLogin string) ([]Repository, error)
	ListTopRepositories(ctx context.Context, limit int32) ([]Repository, error)
	ListRecentlyUpdated(ctx context.Context, limit int32) ([]Repository, error)
	CountRepositories(ctx context.Context) (int64, error)
	GetRepositoryStats(ctx context.Context) (RepositoryStats, error)

	CreateCrawlRun(ctx context.Context) (CrawlRun, error)
	IncrementCrawlRun(ctx context.Context, arg IncrementCrawlRunParams) error
	FinishCrawlRun(ctx context.Context, arg FinishCrawlRunParams) (CrawlRun, error)
	GetCrawlRun(ctx context.Context, id int32) (CrawlRun, error)
	GetLatestCrawlRun(ctx context.Context) (CrawlRun, error)
	ListCrawlRuns(ctx context.Context, limit int32) ([]CrawlRun, error)
}

var _ Querier = (*Queries)(nil)
