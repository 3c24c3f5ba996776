// internal/api/handler.go
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5"

	"github-star-crawler/internal/database"
)

// Handler is the container for API dependencies.
type Handler struct {
	db     database.Querier
	logger *slog.Logger
}

// NewRouter creates and configures a new chi router with all API routes.
func NewRouter(db database.Querier, logger *slog.Logger) http.Handler {
	h := &Handler{
		db:     db,
		logger: logger,
	}

	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger) // Chi's default logger
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// API Routes
	r.Get("/health", h.healthCheck)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/repos/top", h.getTopRepositories)
		r.Get("/repos/recent", h.getRecentRepositories)
		r.Get("/repos/{owner}", h.getOwnerRepositories)
		r.Get("/repos/{owner}/{name}", h.getRepository)
		r.Get("/stats", h.getStats)
		r.Get("/runs", h.listRuns)
		r.Get("/runs/latest", h.getLatestRun)
	})

	return r
}

// healthCheck is a simple health endpoint.
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// getTopRepositories returns the most-starred repositories.
// GET /v1/repos/top?limit=N
func (h *Handler) getTopRepositories(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	repos, err := h.db.ListTopRepositories(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list top repositories", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondWithJSON(w, http.StatusOK, repos)
}

// getRecentRepositories returns the most recently updated repositories.
// GET /v1/repos/recent?limit=N
func (h *Handler) getRecentRepositories(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	repos, err := h.db.ListRecentlyUpdated(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list recent repositories", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondWithJSON(w, http.StatusOK, repos)
}

// getOwnerRepositories lists all stored repositories for one owner.
// GET /v1/repos/{owner}
func (h *Handler) getOwnerRepositories(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")

	repos, err := h.db.ListRepositoriesByOwner(r.Context(), owner)
	if err != nil {
		h.logger.Error("Failed to list repositories by owner", "owner", owner, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if len(repos) == 0 {
		respondWithError(w, http.StatusNotFound, "No repositories found for owner")
		return
	}

	respondWithJSON(w, http.StatusOK, repos)
}

// getRepository returns a single repository by full name.
// GET /v1/repos/{owner}/{name}
func (h *Handler) getRepository(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	name := chi.URLParam(r, "name")

	repo, err := h.db.GetRepositoryByFullName(r.Context(), owner+"/"+name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respondWithError(w, http.StatusNotFound, "Repository not found")
			return
		}
		h.logger.Error("Failed to get repository", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondWithJSON(w, http.StatusOK, repo)
}

// getStats returns aggregate star statistics across all stored repositories.
// GET /v1/stats
func (h *Handler) getStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.db.GetRepositoryStats(r.Context())
	if err != nil {
		h.logger.Error("Failed to get repository stats", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondWithJSON(w, http.StatusOK, stats)
}

// listRuns returns recent crawl runs, newest first.
// GET /v1/runs?limit=N
func (h *Handler) listRuns(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	runs, err := h.db.ListCrawlRuns(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list crawl runs", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondWithJSON(w, http.StatusOK, runs)
}

// getLatestRun returns the most recently started crawl run.
// GET /v1/runs/latest
func (h *Handler) getLatestRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.db.GetLatestCrawlRun(r.Context())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respondWithError(w, http.StatusNotFound, "No crawl runs recorded yet")
			return
		}
		h.logger.Error("Failed to get latest crawl run", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondWithJSON(w, http.StatusOK, run)
}

// parseLimit reads the optional limit query parameter, writing a 400 response
// and returning false when it is invalid.
func parseLimit(w http.ResponseWriter, r *http.Request) (int32, bool) {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		limitStr = "10" // Default limit
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 || limit > 100 {
		respondWithError(w, http.StatusBadRequest, "Invalid 'limit' parameter. Must be an integer between 1 and 100.")
		return 0, false
	}
	return int32(limit), true
}
