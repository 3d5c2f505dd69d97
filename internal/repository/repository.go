// Package repository declares the storage contracts the service layer depends on.
//
// Services import these interfaces, never a concrete database package, so the
// orchestration logic can be tested against in-memory fakes and run against
// SQLite or Postgres without changing a line.
//
// ERROR CONTRACT:
// Every method returns an error carrying apperror.ErrStorage for any database
// fault. "Nothing found" is NOT an error for these methods: lookups return nil
// or an empty slice.
package repository

import (
	"context"

	"github.com/sakif/github-scraper/internal/model"
)

type UserRepository interface {
	// FindUserByUsername returns (nil, nil) when no such user is stored.
	FindUserByUsername(ctx context.Context, username string) (*model.User, error)

	// CreateUser inserts a user. If the username already exists (typically
	// because a concurrent request won the race) it returns the existing
	// row with created=false instead of a conflict error.
	CreateUser(ctx context.Context, username string) (user *model.User, created bool, err error)

	// MostRecentUsers orders by created_at DESC, then id DESC.
	MostRecentUsers(ctx context.Context, n int) ([]model.User, error)
}

type ProjectRepository interface {
	FindProjectsByUserID(ctx context.Context, userID int64) ([]model.Project, error)

	// CreateProjects writes the whole batch in one transaction: all rows or none.
	CreateProjects(ctx context.Context, userID int64, records []model.NewProject) ([]model.Project, error)

	// MostStarredProjects orders by stars DESC, then id ASC.
	MostStarredProjects(ctx context.Context, n int) ([]model.Project, error)
}

// Store is everything the service layer needs from the database.
type Store interface {
	UserRepository
	ProjectRepository

	// CreateUserWithProjects inserts a user and its project batch in one
	// transaction. A failure leaves neither behind. If the username already
	// exists it returns that user and its stored projects with created=false
	// and writes nothing.
	CreateUserWithProjects(ctx context.Context, username string, records []model.NewProject) (user *model.User, projects []model.Project, created bool, err error)
}
