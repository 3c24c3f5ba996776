// internal/crawler/crawler.go
package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github-star-crawler/internal/database"
	"github-star-crawler/internal/github"
	"github-star-crawler/internal/model"
)

const (
	// Number of star ranges to crawl in parallel. Each range holds one
	// search query open against the API at a time.
	concurrency = 3

	// Progress is logged every N upserted batches.
	progressEvery = 10
)

// errBudgetReached stops a range crawl once the global repository budget is
// exhausted. It never escapes RunOnce.
var errBudgetReached = errors.New("crawl budget reached")

// Crawler orchestrates the fetching and storing of repository data.
type Crawler struct {
	dbpool     *pgxpool.Pool
	ghClient   *github.Client
	logger     *slog.Logger
	ranges     []model.StarRange
	maxRepos   int
	batchSize  int
	interval   time.Duration
	exportPath string
}

// New creates a new Crawler instance. exportPath may be empty to disable the
// CSV export step.
func New(dbpool *pgxpool.Pool, ghClient *github.Client, logger *slog.Logger, maxRepos, batchSize int, interval time.Duration, exportPath string) (*Crawler, error) {
	if maxRepos <= 0 {
		return nil, fmt.Errorf("maxRepos must be positive, got %d", maxRepos)
	}
	if batchSize < 1 || batchSize > 100 {
		return nil, fmt.Errorf("batchSize must be between 1 and 100, got %d", batchSize)
	}

	return &Crawler{
		dbpool:     dbpool,
		ghClient:   ghClient,
		logger:     logger,
		ranges:     model.DefaultStarRanges(),
		maxRepos:   maxRepos,
		batchSize:  batchSize,
		interval:   interval,
		exportPath: exportPath,
	}, nil
}

// Start begins the continuous crawl process: one cycle immediately, then one
// per interval until the context is cancelled.
func (c *Crawler) Start(ctx context.Context) {
	c.logger.Info("Starting crawler",
		"interval", c.interval.String(),
		"max_repos", c.maxRepos,
		"batch_size", c.batchSize,
		"concurrency", concurrency)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.runCycle(ctx) // Initial crawl

	for {
		select {
		case <-ticker.C:
			c.runCycle(ctx)
		case <-ctx.Done():
			c.logger.Info("Crawler shutting down", "reason", ctx.Err())
			return
		}
	}
}

func (c *Crawler) runCycle(ctx context.Context) {
	stats, err := c.RunOnce(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			c.logger.Error("Crawl cycle failed", "error", err)
		}
		return
	}
	c.logger.Info("Crawl cycle finished",
		"run_id", stats.RunID,
		"crawled", stats.TotalCrawled,
		"db_affected", stats.TotalUpserted,
		"duration", stats.Duration.Round(time.Millisecond).String(),
		"repos_per_sec", fmt.Sprintf("%.1f", stats.ReposPerSecond()))
}

// RunOnce performs a single full crawl: it opens a crawl_runs record, walks
// every star range, and finalizes the record as completed or failed. The
// returned stats are valid even when an error is returned.
func (c *Crawler) RunOnce(ctx context.Context) (model.CrawlStats, error) {
	q := database.New(c.dbpool)

	run, err := q.CreateCrawlRun(ctx)
	if err != nil {
		return model.CrawlStats{}, fmt.Errorf("failed to create crawl run: %w", err)
	}
	logger := c.logger.With("run_id", run.ID)
	logger.Info("Crawl run started", "target", c.maxRepos)

	stats := model.CrawlStats{RunID: run.ID, StartedAt: run.StartedAt}
	crawlErr := c.crawlRanges(ctx, run.ID, &stats)

	status := database.RunStatusCompleted
	if crawlErr != nil {
		status = database.RunStatusFailed
	}

	// Finalize with a fresh context so a cancelled crawl still gets its
	// terminal status written.
	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	finished, err := q.FinishCrawlRun(finishCtx, database.FinishCrawlRunParams{ID: run.ID, Status: status})
	if err != nil {
		if crawlErr != nil {
			return stats, crawlErr
		}
		return stats, fmt.Errorf("failed to finish crawl run: %w", err)
	}
	stats.CompletedAt = finished.CompletedAt.Time
	stats.Duration = stats.CompletedAt.Sub(stats.StartedAt)

	if crawlErr != nil {
		return stats, crawlErr
	}

	if c.exportPath != "" {
		exported, err := c.ExportCSV(ctx, c.exportPath)
		if err != nil {
			return stats, fmt.Errorf("failed to export CSV: %w", err)
		}
		logger.Info("Exported repositories to CSV", "path", c.exportPath, "rows", exported)
	}

	return stats, nil
}

// crawlRanges walks the star-range partition with bounded concurrency,
// deduplicating repositories that surface in more than one range and
// stopping once maxRepos unique repositories have been stored.
func (c *Crawler) crawlRanges(ctx context.Context, runID int32, stats *model.CrawlStats) error {
	var mu sync.Mutex
	seen := make(map[int64]struct{}, c.maxRepos)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, rng := range c.ranges {
		rng := rng
		g.Go(func() error {
			mu.Lock()
			done := stats.TotalCrawled >= c.maxRepos
			mu.Unlock()
			if done || gctx.Err() != nil {
				return nil
			}

			_, err := c.ghClient.SearchByStarRange(gctx, rng, c.batchSize, 0, func(batch []model.Repository) error {
				unique, budgetFull := admit(batch, seen, &stats.TotalCrawled, c.maxRepos, &mu)

				if len(unique) > 0 {
					affected, err := c.upsertBatchInTransaction(gctx, runID, unique)
					if err != nil {
						return err
					}
					mu.Lock()
					stats.TotalUpserted += affected
					stats.BatchCount++
					if stats.BatchCount%progressEvery == 0 {
						c.logger.Info("Crawl progress",
							"run_id", runID,
							"range", rng.Query(),
							"crawled", stats.TotalCrawled,
							"target", c.maxRepos,
							"db_affected", stats.TotalUpserted)
					}
					mu.Unlock()
				}

				if budgetFull {
					return errBudgetReached
				}
				return nil
			})
			if errors.Is(err, errBudgetReached) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("range %s: %w", rng.Query(), err)
			}
			return nil
		})
	}

	return g.Wait()
}

// admit filters a fetched batch down to unseen repositories within the
// remaining budget. The second return value is true once the budget is
// exhausted.
func admit(batch []model.Repository, seen map[int64]struct{}, crawled *int, maxRepos int, mu *sync.Mutex) ([]model.Repository, bool) {
	mu.Lock()
	defer mu.Unlock()

	unique := make([]model.Repository, 0, len(batch))
	for _, repo := range batch {
		if *crawled >= maxRepos {
			break
		}
		if _, ok := seen[repo.ID]; ok {
			continue
		}
		seen[repo.ID] = struct{}{}
		unique = append(unique, repo)
		*crawled++
	}
	return unique, *crawled >= maxRepos
}

// upsertBatchInTransaction commits a batch upsert together with the run
// counter increment, so repos_crawled never drifts from the stored rows.
func (c *Crawler) upsertBatchInTransaction(ctx context.Context, runID int32, repos []model.Repository) (int64, error) {
	tx, err := c.dbpool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx) // Rollback is a no-op if the transaction is already committed.

	qtx := database.New(tx)
	affected, err := c.upsertBatch(ctx, qtx, runID, repos)
	if err != nil {
		return 0, err
	}

	return affected, tx.Commit(ctx)
}

// upsertBatch stores one batch of repositories and advances the run counter
// through the given querier.
func (c *Crawler) upsertBatch(ctx context.Context, q database.Querier, runID int32, repos []model.Repository) (int64, error) {
	affected, err := q.UpsertRepositories(ctx, prepareUpsertParams(repos))
	if err != nil {
		return 0, err
	}

	err = q.IncrementCrawlRun(ctx, database.IncrementCrawlRunParams{
		ID:    runID,
		Count: int32(len(repos)),
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

const exportRepositoriesCSV = `
COPY (
    SELECT id, node_id, full_name, owner_login, name,
           stargazer_count, created_at, updated_at
    FROM repositories
    ORDER BY stargazer_count DESC
) TO STDOUT WITH CSV HEADER`

// ExportCSV writes every stored repository to path, most-starred first,
// using the server-side COPY protocol.
func (c *Crawler) ExportCSV(ctx context.Context, path string) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	conn, err := c.dbpool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	tag, err := conn.Conn().PgConn().CopyTo(ctx, f, exportRepositoriesCSV)
	if err != nil {
		return 0, err
	}
	if err := f.Close(); err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func prepareUpsertParams(repos []model.Repository) []database.UpsertRepositoriesParams {
	params := make([]database.UpsertRepositoriesParams, len(repos))
	for i, r := range repos {
		params[i] = database.UpsertRepositoriesParams{
			ID:             r.ID,
			NodeID:         r.NodeID,
			FullName:       r.FullName,
			OwnerLogin:     r.OwnerLogin,
			Name:           r.Name,
			StargazerCount: int32(r.StargazerCount),
			UpdatedAt:      r.FetchedAt,
		}
	}
	return params
}
