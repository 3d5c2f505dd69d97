// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, decides local vs remote, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// The service is the only layer that knows the caching rule:
// "serve from the database if we have seen this user before, otherwise ask
// GitHub once and remember the answer forever". Handlers and the CLI never
// talk to GitHub or SQL directly.
//
// DEPENDENCY INJECTION:
// ProjectService takes a repository.Store and a RepoFetcher (both interfaces),
// NOT a *sqlstore.DB or a *github.Client. Tests pass in-memory fakes
// (see project_test.go); production passes the real thing (see server.New).
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"golang.org/x/sync/singleflight"

	"github.com/sakif/github-scraper/internal/apperror"
	"github.com/sakif/github-scraper/internal/github"
	"github.com/sakif/github-scraper/internal/model"
	"github.com/sakif/github-scraper/internal/repository"
)

// GitHub login rules: 1 to 39 characters, letters, digits and hyphens.
const MaxUsernameLength = 39

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9-]+$`)

// RepoFetcher is the slice of the GitHub client the service depends on.
//
// DEFINE INTERFACES WHERE THEY ARE USED:
// The interface lives here, next to its consumer, not in the github package.
// *github.Client satisfies it without knowing it exists.
type RepoFetcher interface {
	FetchRepositories(ctx context.Context, username string) ([]github.RawRepo, error)
}

// ProjectService resolves a username to its cached project list.
type ProjectService struct {
	store  repository.Store
	remote RepoFetcher
	logger *slog.Logger

	// fills collapses concurrent first-time resolutions of the same username
	// into a single fetch+persist. Keyed by username.
	fills singleflight.Group
}

func NewProjectService(store repository.Store, remote RepoFetcher, logger *slog.Logger) *ProjectService {
	return &ProjectService{
		store:  store,
		remote: remote,
		logger: logger,
	}
}

// ValidateUsername enforces GitHub's login format before anything touches
// the database or the network.
func ValidateUsername(username string) error {
	if username == "" {
		return apperror.ValidationFailed("username", "username is required")
	}
	if len(username) > MaxUsernameLength {
		return apperror.ValidationFailed("username",
			fmt.Sprintf("username must be %d characters or less", MaxUsernameLength))
	}
	if !usernamePattern.MatchString(username) {
		return apperror.ValidationFailed("username",
			"username may only contain letters, digits and hyphens")
	}
	return nil
}

// ResolveUserProjects returns the projects of username, from the local
// store when the user is known, from GitHub otherwise.
//
// THE CACHING RULE:
//
//	user row exists?  ── yes ──→ return its projects (maybe []); GitHub is NOT called
//	      │
//	      no
//	      ↓
//	fetch from GitHub ── 404 ──→ ErrNotFound, nothing written
//	      │          ── fail ─→ ErrRemoteService, nothing written
//	      ok
//	      ↓
//	write user + projects in one transaction, return them
//
// Once a user row exists it is never refreshed. A user whose GitHub account
// had zero repositories stays cached with zero projects.
//
// CONCURRENCY:
// The miss path runs inside a per-username singleflight call, so N
// simultaneous requests for a brand-new username produce one GitHub call and
// one user row. The store's unique constraint on username backs this up
// across processes.
func (s *ProjectService) ResolveUserProjects(ctx context.Context, username string) ([]model.ProjectView, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}

	projects, found, err := s.lookupLocal(ctx, username)
	if err != nil {
		return nil, err
	}
	if found {
		s.logger.Debug("serving cached projects",
			slog.String("username", username),
			slog.Int("count", len(projects)),
		)
		return model.ProjectViews(projects), nil
	}

	// The shared call must not die because the first caller hung up: the
	// other waiters still want the result. The GitHub client applies its
	// own timeout, so the fill stays bounded.
	fillCtx := context.WithoutCancel(ctx)
	v, err, shared := s.fills.Do(username, func() (any, error) {
		return s.fill(fillCtx, username)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.Debug("joined in-flight fetch", slog.String("username", username))
	}

	// ProjectViews builds a fresh slice, so sharing v between waiters is safe.
	return model.ProjectViews(v.([]model.Project)), nil
}

// lookupLocal reports whether username is already cached and, if so, its
// projects.
func (s *ProjectService) lookupLocal(ctx context.Context, username string) ([]model.Project, bool, error) {
	user, err := s.store.FindUserByUsername(ctx, username)
	if err != nil {
		s.logger.Error("failed to look up user",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		return nil, false, asStorage(fmt.Sprintf("finding user %q", username), err)
	}
	if user == nil {
		return nil, false, nil
	}

	projects, err := s.store.FindProjectsByUserID(ctx, user.ID)
	if err != nil {
		s.logger.Error("failed to load cached projects",
			slog.String("username", username),
			slog.Int64("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return nil, false, asStorage(fmt.Sprintf("listing projects for %q", username), err)
	}
	return projects, true, nil
}

// fill is the cache-miss path. It runs at most once at a time per username.
func (s *ProjectService) fill(ctx context.Context, username string) ([]model.Project, error) {
	// Another caller may have finished filling between our lookup and
	// entering the singleflight group.
	projects, found, err := s.lookupLocal(ctx, username)
	if err != nil {
		return nil, err
	}
	if found {
		return projects, nil
	}

	raw, err := s.remote.FetchRepositories(ctx, username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			// Not an error from our side: a normal 404 for the caller.
			s.logger.Info("github user does not exist", slog.String("username", username))
			return nil, err
		}
		s.logger.Warn("github fetch failed",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		if apperror.Kind(err) == nil {
			err = apperror.RemoteService("fetching repositories from github", err)
		}
		return nil, err
	}

	records := s.toNewProjects(username, raw)

	// The user row and its projects commit together: a failed batch must not
	// leave a user that later lookups would treat as cached with no projects.
	user, saved, created, err := s.store.CreateUserWithProjects(ctx, username, records)
	if err != nil {
		s.logger.Error("failed to cache user",
			slog.String("username", username),
			slog.Int("count", len(records)),
			slog.String("error", err.Error()),
		)
		return nil, asStorage(fmt.Sprintf("caching user %q", username), err)
	}

	if !created {
		// Another process inserted this user after our lookup. Its batch is
		// the canonical one, so the fetched data is dropped.
		s.logger.Info("user cached concurrently, discarding fetched data",
			slog.String("username", username),
			slog.Int64("user_id", user.ID),
		)
		return saved, nil
	}

	s.logger.Info("cached user from github",
		slog.String("username", username),
		slog.Int64("user_id", user.ID),
		slog.Int("projects", len(saved)),
	)
	return saved, nil
}

// toNewProjects maps GitHub's records onto storable projects.
//
//	stargazers_count / forks_count missing → 0
//	negative count                         → 0 (the schema forbids it)
//	empty name                             → skipped, logged
func (s *ProjectService) toNewProjects(username string, raw []github.RawRepo) []model.NewProject {
	records := make([]model.NewProject, 0, len(raw))
	for i, r := range raw {
		if r.Name == "" {
			s.logger.Warn("skipping github repository without a name",
				slog.String("username", username),
				slog.Int("index", i),
			)
			continue
		}
		records = append(records, model.NewProject{
			Name:        r.Name,
			Description: r.Description,
			Stars:       count(r.StargazersCount),
			Forks:       count(r.ForksCount),
		})
	}
	return records
}

func count(v *int) int {
	if v == nil || *v < 0 {
		return 0
	}
	return *v
}

// asStorage keeps classified errors as they are and files everything else
// under ErrStorage, so a store fault can never surface as "not found" or
// as an empty success.
func asStorage(op string, err error) error {
	if apperror.Kind(err) != nil {
		return err
	}
	return apperror.Storage(op, err)
}
