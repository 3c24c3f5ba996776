//go:build integration

// cmd/service/integration_test.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github-star-crawler/internal/crawler"
	"github-star-crawler/internal/database"
	"github-star-crawler/internal/github"
)

const (
	uniqueViolation  = "23505"
	notNullViolation = "23502"
	checkViolation   = "23514"
)

func setupTestDatabase(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()

	pgContainer, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("test-db"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(context.Background()))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	m, err := migrate.New("file://../../migrations", connStr)
	require.NoError(t, err)
	require.NoError(t, m.Up())

	dbpool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(dbpool.Close)

	return dbpool
}

func pgErrCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func TestSchemaConstraints_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	dbpool := setupTestDatabase(ctx, t)

	insertRepo := `INSERT INTO repositories (id, node_id, full_name, owner_login, name) VALUES ($1, $2, $3, $4, $5)`
	_, err := dbpool.Exec(ctx, insertRepo, 1, "R_one", "octocat/hello-world", "octocat", "hello-world")
	require.NoError(t, err)

	t.Run("duplicate full_name is rejected", func(t *testing.T) {
		_, err := dbpool.Exec(ctx, insertRepo, 2, "R_two", "octocat/hello-world", "octocat", "hello-world")
		assert.Equal(t, uniqueViolation, pgErrCode(err))
	})

	t.Run("duplicate node_id is rejected", func(t *testing.T) {
		_, err := dbpool.Exec(ctx, insertRepo, 2, "R_one", "octocat/spoon-knife", "octocat", "spoon-knife")
		assert.Equal(t, uniqueViolation, pgErrCode(err))
	})

	t.Run("missing required columns are rejected", func(t *testing.T) {
		_, err := dbpool.Exec(ctx,
			`INSERT INTO repositories (id, node_id, full_name, owner_login) VALUES (3, 'R_three', 'a/b', 'a')`)
		assert.Equal(t, notNullViolation, pgErrCode(err))
	})

	t.Run("negative star counts are rejected", func(t *testing.T) {
		_, err := dbpool.Exec(ctx,
			`INSERT INTO repositories (id, node_id, full_name, owner_login, name, stargazer_count)
			 VALUES (4, 'R_four', 'c/d', 'c', 'd', -1)`)
		assert.Equal(t, checkViolation, pgErrCode(err))
	})

	t.Run("repository defaults apply", func(t *testing.T) {
		q := database.New(dbpool)
		repo, err := q.GetRepositoryByFullName(ctx, "octocat/hello-world")
		require.NoError(t, err)
		assert.Equal(t, int32(0), repo.StargazerCount)
		assert.False(t, repo.CreatedAt.IsZero())
		assert.False(t, repo.UpdatedAt.IsZero())
	})

	t.Run("crawl run defaults apply", func(t *testing.T) {
		q := database.New(dbpool)
		run, err := q.CreateCrawlRun(ctx)
		require.NoError(t, err)
		assert.Equal(t, database.RunStatusRunning, run.Status)
		assert.False(t, run.CompletedAt.Valid)
		assert.Equal(t, int32(0), run.ReposCrawled)
	})

	t.Run("unknown run status is rejected", func(t *testing.T) {
		_, err := dbpool.Exec(ctx, `INSERT INTO crawl_runs (status) VALUES ('paused')`)
		assert.Equal(t, checkViolation, pgErrCode(err))
	})

	t.Run("top-N ordering is deterministic for distinct star counts", func(t *testing.T) {
		_, err := dbpool.Exec(ctx,
			`INSERT INTO repositories (id, node_id, full_name, owner_login, name, stargazer_count) VALUES
			 (10, 'R_ten', 'x/ten', 'x', 'ten', 10),
			 (11, 'R_eleven', 'x/eleven', 'x', 'eleven', 30),
			 (12, 'R_twelve', 'x/twelve', 'x', 'twelve', 20)`)
		require.NoError(t, err)

		repos, err := database.New(dbpool).ListTopRepositories(ctx, 3)
		require.NoError(t, err)
		require.Len(t, repos, 3)
		assert.Equal(t, "x/eleven", repos[0].FullName)
		assert.Equal(t, "x/twelve", repos[1].FullName)
		assert.Equal(t, "x/ten", repos[2].FullName)
	})

	t.Run("top-N query uses the stargazer_count index", func(t *testing.T) {
		conn, err := dbpool.Acquire(ctx)
		require.NoError(t, err)
		defer conn.Release()

		// The table is tiny here, so the planner would otherwise seq-scan.
		_, err = conn.Exec(ctx, "SET enable_seqscan = off")
		require.NoError(t, err)

		rows, err := conn.Query(ctx,
			"EXPLAIN SELECT * FROM repositories ORDER BY stargazer_count DESC LIMIT 10")
		require.NoError(t, err)
		defer rows.Close()

		var plan strings.Builder
		for rows.Next() {
			var line string
			require.NoError(t, rows.Scan(&line))
			plan.WriteString(line)
			plan.WriteByte('\n')
		}
		require.NoError(t, rows.Err())
		assert.Contains(t, plan.String(), "idx_repositories_stargazer_count")
	})
}

// newMockGitHub serves search results for the highest star bucket and empty
// pages for every other range query.
func newMockGitHub(t *testing.T) *httptest.Server {
	t.Helper()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The enterprise-style base URL puts requests under /api/v3.
		if !strings.HasSuffix(r.URL.Path, "/search/repositories") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if !strings.HasPrefix(r.URL.Query().Get("q"), "stars:>=100000") {
			fmt.Fprintln(w, `{"total_count": 0, "incomplete_results": false, "items": []}`)
			return
		}
		fmt.Fprintln(w, `{"total_count": 2, "incomplete_results": false, "items": [
			{"id": 101, "node_id": "R_101", "full_name": "big/one", "name": "one", "owner": {"login": "big"}, "stargazers_count": 250000},
			{"id": 102, "node_id": "R_102", "full_name": "big/two", "name": "two", "owner": {"login": "big"}, "stargazers_count": 180000}
		]`)
	})
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func TestCrawler_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	dbpool := setupTestDatabase(ctx, t)
	server := newMockGitHub(t)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ghClient := github.NewClient("", logger)
	require.NoError(t, ghClient.WithBaseURL(server.URL))

	appCrawler, err := crawler.New(dbpool, ghClient, logger, 1000, 100, time.Hour, "")
	require.NoError(t, err)

	// --- ACT ---
	stats, err := appCrawler.RunOnce(ctx)
	require.NoError(t, err)

	// --- ASSERT ---
	assert.Equal(t, 2, stats.TotalCrawled)
	assert.Equal(t, int64(2), stats.TotalUpserted)

	q := database.New(dbpool)
	repo, err := q.GetRepositoryByFullName(ctx, "big/one")
	require.NoError(t, err)
	assert.Equal(t, int64(101), repo.ID)
	assert.Equal(t, "R_101", repo.NodeID)
	assert.Equal(t, int32(250000), repo.StargazerCount)

	run, err := q.GetCrawlRun(ctx, stats.RunID)
	require.NoError(t, err)
	assert.Equal(t, database.RunStatusCompleted, run.Status)
	assert.Equal(t, int32(2), run.ReposCrawled)
	assert.True(t, run.CompletedAt.Valid)
	assert.False(t, run.CompletedAt.Time.Before(run.StartedAt))

	// A second identical crawl records a new run but rewrites nothing.
	stats2, err := appCrawler.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats2.TotalCrawled)
	assert.Equal(t, int64(0), stats2.TotalUpserted)
	assert.NotEqual(t, stats.RunID, stats2.RunID)

	count, err := q.CountRepositories(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// CSV export, most-starred first.
	exportPath := filepath.Join(t.TempDir(), "repositories.csv")
	rows, err := appCrawler.ExportCSV(ctx, exportPath)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rows)

	content, err := os.ReadFile(exportPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "id,node_id,full_name"))
	assert.Contains(t, lines[1], "big/one")
	assert.Contains(t, lines[2], "big/two")
}
