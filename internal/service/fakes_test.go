package service

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sakif/github-scraper/internal/apperror"
	"github.com/sakif/github-scraper/internal/github"
	"github.com/sakif/github-scraper/internal/model"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// fakeStore is an in-memory repository.Store. A mutex guards everything so
// the concurrency tests can hammer it from many goroutines.
type fakeStore struct {
	mu       sync.Mutex
	users    []model.User
	projects []model.Project
	nextUID  int64
	nextPID  int64
	clock    time.Time

	// failure injection: set to a non-nil error to simulate a database fault.
	// createUserErr and createProjectsErr fail the user insert and the
	// project batch of CreateUserWithProjects; either way nothing is kept.
	findUserErr       error
	findProjectsErr   error
	createUserErr     error
	createProjectsErr error
	rankingErr        error

	// invisible hides usernames from FindUserByUsername while the create
	// methods still see them. This simulates another process inserting the user
	// between our lookup and our insert.
	invisible map[string]bool

	persistCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		nextUID:   1,
		nextPID:   1,
		clock:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		invisible: make(map[string]bool),
	}
}

// seedUser inserts a user with the given projects directly, bypassing the
// service. Each seeded user is one second newer than the last.
func (f *fakeStore) seedUser(username string, projects ...model.NewProject) model.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.insertUserLocked(username)
	f.insertProjectsLocked(u.ID, projects)
	return u
}

func (f *fakeStore) insertUserLocked(username string) model.User {
	f.clock = f.clock.Add(time.Second)
	u := model.User{ID: f.nextUID, Username: username, CreatedAt: f.clock}
	f.nextUID++
	f.users = append(f.users, u)
	return u
}

func (f *fakeStore) insertProjectsLocked(userID int64, records []model.NewProject) []model.Project {
	out := make([]model.Project, 0, len(records))
	for _, r := range records {
		p := model.Project{
			ID:          f.nextPID,
			Name:        r.Name,
			Description: r.Description,
			Stars:       r.Stars,
			Forks:       r.Forks,
			UserID:      userID,
		}
		f.nextPID++
		f.projects = append(f.projects, p)
		out = append(out, p)
	}
	return out
}

func (f *fakeStore) FindUserByUsername(ctx context.Context, username string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findUserErr != nil {
		return nil, f.findUserErr
	}
	if f.invisible[username] {
		return nil, nil
	}
	if u, ok := f.userLocked(username); ok {
		return &u, nil
	}
	return nil, nil
}

func (f *fakeStore) CreateUser(ctx context.Context, username string) (*model.User, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createUserErr != nil {
		return nil, false, f.createUserErr
	}
	if u, ok := f.userLocked(username); ok {
		return &u, false, nil
	}
	u := f.insertUserLocked(username)
	return &u, true, nil
}

// CreateUserWithProjects mirrors the transactional store: on any injected
// fault neither the user nor its projects are written.
func (f *fakeStore) CreateUserWithProjects(ctx context.Context, username string, records []model.NewProject) (*model.User, []model.Project, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.persistCalls++
	if f.createUserErr != nil {
		return nil, nil, false, f.createUserErr
	}
	if u, ok := f.userLocked(username); ok {
		return &u, f.projectsOfLocked(u.ID), false, nil
	}
	if f.createProjectsErr != nil && len(records) > 0 {
		return nil, nil, false, f.createProjectsErr
	}
	u := f.insertUserLocked(username)
	return &u, f.insertProjectsLocked(u.ID, records), true, nil
}

func (f *fakeStore) userLocked(username string) (model.User, bool) {
	for _, u := range f.users {
		if u.Username == username {
			return u, true
		}
	}
	return model.User{}, false
}

func (f *fakeStore) projectsOfLocked(userID int64) []model.Project {
	out := []model.Project{}
	for _, p := range f.projects {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out
}

func (f *fakeStore) MostRecentUsers(ctx context.Context, n int) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rankingErr != nil {
		return nil, f.rankingErr
	}
	users := append([]model.User(nil), f.users...)
	sort.Slice(users, func(i, j int) bool {
		if !users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].CreatedAt.After(users[j].CreatedAt)
		}
		return users[i].ID > users[j].ID
	})
	if len(users) > n {
		users = users[:n]
	}
	if users == nil {
		users = []model.User{}
	}
	return users, nil
}

func (f *fakeStore) FindProjectsByUserID(ctx context.Context, userID int64) ([]model.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findProjectsErr != nil {
		return nil, f.findProjectsErr
	}
	return f.projectsOfLocked(userID), nil
}

func (f *fakeStore) CreateProjects(ctx context.Context, userID int64, records []model.NewProject) ([]model.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createProjectsErr != nil {
		return nil, f.createProjectsErr
	}
	return f.insertProjectsLocked(userID, records), nil
}

func (f *fakeStore) MostStarredProjects(ctx context.Context, n int) ([]model.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rankingErr != nil {
		return nil, f.rankingErr
	}
	projects := append([]model.Project(nil), f.projects...)
	sort.Slice(projects, func(i, j int) bool {
		if projects[i].Stars != projects[j].Stars {
			return projects[i].Stars > projects[j].Stars
		}
		return projects[i].ID < projects[j].ID
	})
	if len(projects) > n {
		projects = projects[:n]
	}
	if projects == nil {
		projects = []model.Project{}
	}
	return projects, nil
}

// clearFaults removes every injected error, as if the database recovered.
func (f *fakeStore) clearFaults() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.findUserErr = nil
	f.findProjectsErr = nil
	f.createUserErr = nil
	f.createProjectsErr = nil
	f.rankingErr = nil
}

func (f *fakeStore) userCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.users)
}

func (f *fakeStore) projectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.projects)
}

// fakeRemote stands in for the GitHub client. Usernames missing from repos
// are reported as not found, like a GitHub 404.
type fakeRemote struct {
	mu    sync.Mutex
	repos map[string][]github.RawRepo
	err   error
	delay time.Duration
	calls atomic.Int64
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{repos: make(map[string][]github.RawRepo)}
}

func (f *fakeRemote) FetchRepositories(ctx context.Context, username string) ([]github.RawRepo, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	repos, ok := f.repos[username]
	if !ok {
		return nil, apperror.NotFound("github user", username)
	}
	return append([]github.RawRepo{}, repos...), nil
}

func (f *fakeRemote) set(username string, repos ...github.RawRepo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.repos[username] = repos
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func repo(name string, stars, forks int) github.RawRepo {
	return github.RawRepo{Name: name, StargazersCount: intPtr(stars), ForksCount: intPtr(forks)}
}
