// internal/database/crawl_runs.go
package database

import (
	"context"

	"github.com/jackc/pgx/v5"
)

const crawlRunColumns = `id, started_at, completed_at, repos_crawled, status`

const createCrawlRun = `
INSERT INTO crawl_runs DEFAULT VALUES
RETURNING ` + crawlRunColumns

// CreateCrawlRun opens a new run. Column defaults set started_at to now and
// status to running.
func (q *Queries) CreateCrawlRun(ctx context.Context) (CrawlRun, error) {
	row := q.db.QueryRow(ctx, createCrawlRun)
	return scanCrawlRun(row)
}

const incrementCrawlRun = `
UPDATE crawl_runs
SET repos_crawled = repos_crawled + $2
WHERE id = $1
`

type IncrementCrawlRunParams struct {
	ID    int32
	Count int32
}

// IncrementCrawlRun adds to the run's running repository counter.
func (q *Queries) IncrementCrawlRun(ctx context.Context, arg IncrementCrawlRunParams) error {
	_, err := q.db.Exec(ctx, incrementCrawlRun, arg.ID, arg.Count)
	return err
}

const finishCrawlRun = `
UPDATE crawl_runs
SET status = $2, completed_at = now()
WHERE id = $1
RETURNING ` + crawlRunColumns

type FinishCrawlRunParams struct {
	ID     int32
	Status string
}

// FinishCrawlRun finalizes a run. It is the only write that sets status or
// completed_at, which keeps the two in lockstep.
func (q *Queries) FinishCrawlRun(ctx context.Context, arg FinishCrawlRunParams) (CrawlRun, error) {
	row := q.db.QueryRow(ctx, finishCrawlRun, arg.ID, arg.Status)
	return scanCrawlRun(row)
}

const getCrawlRun = `
SELECT ` + crawlRunColumns + `
FROM crawl_runs
WHERE id = $1
`

func (q *Queries) GetCrawlRun(ctx context.Context, id int32) (CrawlRun, error) {
	row := q.db.QueryRow(ctx, getCrawlRun, id)
	return scanCrawlRun(row)
}

const getLatestCrawlRun = `
SELECT ` + crawlRunColumns + `
FROM crawl_runs
ORDER BY started_at DESC, id DESC
LIMIT 1
`

func (q *Queries) GetLatestCrawlRun(ctx context.Context) (CrawlRun, error) {
	row := q.db.QueryRow(ctx, getLatestCrawlRun)
	return scanCrawlRun(row)
}

const listCrawlRuns = `
SELECT ` + crawlRunColumns + `
FROM crawl_runs
ORDER BY started_at DESC, id DESC
LIMIT $1
`

func (q *Queries) ListCrawlRuns(ctx context.Context, limit int32) ([]CrawlRun, error) {
	rows, err := q.db.Query(ctx, listCrawlRuns, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []CrawlRun
	for rows.Next() {
		r, err := scanCrawlRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func scanCrawlRun(row pgx.Row) (CrawlRun, error) {
	var r CrawlRun
	err := row.Scan(&r.ID, &r.StartedAt, &r.CompletedAt, &r.ReposCrawled, &r.Status)
	return r, err
}
