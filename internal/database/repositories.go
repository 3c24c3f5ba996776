// internal/database/repositories.go
package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

const upsertRepository = `
INSERT INTO repositories
    (id, node_id, full_name, owner_login, name, stargazer_count, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET
    node_id = EXCLUDED.node_id,
    full_name = EXCLUDED.full_name,
    owner_login = EXCLUDED.owner_login,
    name = EXCLUDED.name,
    stargazer_count = EXCLUDED.stargazer_count,
    updated_at = EXCLUDED.updated_at
WHERE repositories.stargazer_count IS DISTINCT FROM EXCLUDED.stargazer_count
   OR repositories.full_name IS DISTINCT FROM EXCLUDED.full_name
`

type UpsertRepositoriesParams struct {
	ID             int64
	NodeID         string
	FullName       string
	OwnerLogin     string
	Name           string
	StargazerCount int32
	UpdatedAt      time.Time
}

// UpsertRepositories inserts or updates repositories in one round trip and
// returns the number of rows actually written. Rows whose star count and
// full name are unchanged are left untouched.
func (q *Queries) UpsertRepositories(ctx context.Context, arg []UpsertRepositoriesParams) (int64, error) {
	if len(arg) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, a := range arg {
		batch.Queue(upsertRepository,
			a.ID, a.NodeID, a.FullName, a.OwnerLogin, a.Name, a.StargazerCount, a.UpdatedAt)
	}

	br := q.db.SendBatch(ctx, batch)
	var affected int64
	for range arg {
		tag, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return 0, err
		}
		affected += tag.RowsAffected()
	}
	return affected, br.Close()
}

const repositoryColumns = `id, node_id, full_name, owner_login, name, stargazer_count, created_at, updated_at`

const getRepositoryByFullName = `
SELECT ` + repositoryColumns + `
FROM repositories
WHERE full_name = $1
`

func (q *Queries) GetRepositoryByFullName(ctx context.Context, fullName string) (Repository, error) {
	row := q.db.QueryRow(ctx, getRepositoryByFullName, fullName)
	return scanRepository(row)
}

const listRepositoriesByOwner = `
SELECT ` + repositoryColumns + `
FROM repositories
WHERE owner_login = $1
ORDER BY stargazer_count DESC
`

func (q *Queries) ListRepositoriesByOwner(ctx context.Context, ownerLogin string) ([]Repository, error) {
	rows, err := q.db.Query(ctx, listRepositoriesByOwner, ownerLogin)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRepositories(rows)
}

const listTopRepositories = `
SELECT ` + repositoryColumns + `
FROM repositories
ORDER BY stargazer_count DESC
LIMIT $1
`

// ListTopRepositories returns the most-starred repositories. The descending
// stargazer_count index serves this scan directly.
func (q *Queries) ListTopRepositories(ctx context.Context, limit int32) ([]Repository, error) {
	rows, err := q.db.Query(ctx, listTopRepositories, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRepositories(rows)
}

const listRecentlyUpdated = `
SELECT ` + repositoryColumns + `
FROM repositories
ORDER BY updated_at DESC
LIMIT $1
`

func (q *Queries) ListRecentlyUpdated(ctx context.Context, limit int32) ([]Repository, error) {
	rows, err := q.db.Query(ctx, listRecentlyUpdated, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRepositories(rows)
}

const countRepositories = `SELECT COUNT(*) FROM repositories`

func (q *Queries) CountRepositories(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countRepositories).Scan(&count)
	return count, err
}

const getRepositoryStats = `
SELECT
    COUNT(*)::bigint                        AS total_repos,
    COALESCE(AVG(stargazer_count), 0)::float8 AS avg_stars,
    COALESCE(MAX(stargazer_count), 0)::bigint AS max_stars,
    COALESCE(MIN(stargazer_count), 0)::bigint AS min_stars,
    COALESCE(SUM(stargazer_count), 0)::bigint AS total_stars
FROM repositories
`

func (q *Queries) GetRepositoryStats(ctx context.Context) (RepositoryStats, error) {
	var s RepositoryStats
	err := q.db.QueryRow(ctx, getRepositoryStats).
		Scan(&s.TotalRepos, &s.AvgStars, &s.MaxStars, &s.MinStars, &s.TotalStars)
	return s, err
}

func scanRepository(row pgx.Row) (Repository, error) {
	var r Repository
	err := row.Scan(
		&r.ID, &r.NodeID, &r.FullName, &r.OwnerLogin,
		&r.Name, &r.StargazerCount, &r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}

func scanRepositories(rows pgx.Rows) ([]Repository, error) {
	var repos []Repository
	for rows.Next() {
		r, err := scanRepository(rows)
		if err != nil {
			return nil, err
		}
		repos = append(repos, r)
	}
	return repos, rows.Err()
}
