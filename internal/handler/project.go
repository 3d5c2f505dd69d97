package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/github-scraper/internal/apperror"
	"github.com/sakif/github-scraper/internal/model"
)

// ProjectResolver is what the project and ranking handlers need from the
// service layer. *service.ProjectService and *service.RankingService
// satisfy these; tests pass fakes.
type ProjectResolver interface {
	ResolveUserProjects(ctx context.Context, username string) ([]model.ProjectView, error)
}

type Ranker interface {
	ListRecentUsers(ctx context.Context, n int) ([]model.UserView, error)
	ListTopProjects(ctx context.Context, n int) ([]model.ProjectView, error)
}

// ProjectHandler serves the per-user project list.
type ProjectHandler struct {
	projects ProjectResolver
	logger   *slog.Logger
}

func NewProjectHandler(projects ProjectResolver, logger *slog.Logger) *ProjectHandler {
	return &ProjectHandler{projects: projects, logger: logger}
}

// HandleUserProjects returns the cached (or freshly fetched) projects of a user.
//
// HTTP: GET /users/{username}/projects
//
// RESPONSE FORMAT:
//
//	[
//	  {"id":1,"name":"Hello-World","description":"My first repository","stars":10,"forks":2,"user_id":1},
//	  ...
//	]
//
// A user with no repositories gets 200 and [].
func (h *ProjectHandler) HandleUserProjects(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	projects, err := h.projects.ResolveUserProjects(r.Context(), username)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, projects)
}

// RankingHandler serves the two "top n" listings.
type RankingHandler struct {
	ranker Ranker
	logger *slog.Logger
}

func NewRankingHandler(ranker Ranker, logger *slog.Logger) *RankingHandler {
	return &RankingHandler{ranker: ranker, logger: logger}
}

// HandleRecentUsers returns the n most recently cached users.
//
// HTTP: GET /users/recent/{n}
func (h *RankingHandler) HandleRecentUsers(w http.ResponseWriter, r *http.Request) {
	n, err := limitParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	users, err := h.ranker.ListRecentUsers(r.Context(), n)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, users)
}

// HandleMostStarred returns the n most starred cached projects.
//
// HTTP: GET /projects/most-starred/{n}
func (h *RankingHandler) HandleMostStarred(w http.ResponseWriter, r *http.Request) {
	n, err := limitParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	projects, err := h.ranker.ListTopProjects(r.Context(), n)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, projects)
}

// limitParam parses the {n} path segment. Range checks belong to the
// service; here we only insist on an integer.
func limitParam(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "n")
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.ValidationFailed("n", "n must be an integer")
	}
	return n, nil
}
