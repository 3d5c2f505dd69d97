package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sakif/github-scraper/internal/apperror"
	"github.com/sakif/github-scraper/internal/model"
	"github.com/sakif/github-scraper/internal/repository"
)

// compile-time check that *DB implements the whole store contract
var _ repository.Store = (*DB)(nil)

// FindUserByUsername looks a user up by their exact (case-sensitive) login.
//
// sql.ErrNoRows IS NOT AN ERROR HERE:
// A miss is the normal "not cached yet" answer, so it comes back as (nil, nil).
// Only real database failures become apperror.ErrStorage.
func (db *DB) FindUserByUsername(ctx context.Context, username string) (*model.User, error) {
	var u model.User
	err := db.conn.GetContext(ctx, &u, db.rebind(
		`SELECT id, username, created_at FROM users WHERE username = ?`),
		username,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperror.Storage(fmt.Sprintf("finding user %q", username), err)
	}
	return &u, nil
}

// CreateUser inserts a new user and returns it with the database-assigned ID.
//
// THE DUPLICATE-INSERT RACE:
// Two requests for a brand-new username can both miss the cache, both fetch
// from GitHub and both reach this INSERT. The UNIQUE constraint on username
// lets exactly one of them win. The loser gets a unique-violation error,
// which we recognise and turn into "read the row the winner wrote". From the
// caller's point of view CreateUser is idempotent.
//
// The created flag tells the caller which side of the race it was on.
func (db *DB) CreateUser(ctx context.Context, username string) (*model.User, bool, error) {
	u, err := db.insertUser(ctx, db.conn, username)
	if err == nil {
		return u, true, nil
	}
	if !db.dialect.isUniqueViolation(err) {
		return nil, false, apperror.Storage(fmt.Sprintf("creating user %q", username), err)
	}

	existing, err := db.existingUser(ctx, username, err)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// CreateUserWithProjects caches a freshly fetched user in one transaction:
// the user row and its whole project batch commit together or not at all.
//
// WHY ONE TRANSACTION?
// A user row is the cache-hit marker. If it could commit without its
// projects, a failed batch would leave the user "cached" with zero projects
// and every later request would get [] without asking GitHub again.
//
// THE LOSING SIDE OF THE RACE:
// A conflicting INSERT does not fail straight away. Postgres blocks it until
// the winner's transaction ends, and SQLite lets only one writer in at a
// time (busy_timeout makes the others wait). By the time the loser sees the
// unique violation the winner has committed, so re-reading returns the
// winner's complete batch with created=false.
func (db *DB) CreateUserWithProjects(ctx context.Context, username string, records []model.NewProject) (*model.User, []model.Project, bool, error) {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, false, apperror.Storage("beginning user batch", err)
	}
	defer tx.Rollback()

	u, err := db.insertUser(ctx, tx, username)
	if err != nil {
		if !db.dialect.isUniqueViolation(err) {
			return nil, nil, false, apperror.Storage(fmt.Sprintf("creating user %q", username), err)
		}
		// The transaction is dead after the violation (Postgres aborts it)
		// and may hold the only connection (":memory:"), so end it before
		// reading through the pool.
		tx.Rollback()

		existing, err := db.existingUser(ctx, username, err)
		if err != nil {
			return nil, nil, false, err
		}
		projects, err := db.FindProjectsByUserID(ctx, existing.ID)
		if err != nil {
			return nil, nil, false, err
		}
		return existing, projects, false, nil
	}

	projects, err := db.insertProjects(ctx, tx, u.ID, records)
	if err != nil {
		return nil, nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, false, apperror.Storage(fmt.Sprintf("committing user %q", username), err)
	}
	return u, projects, true, nil
}

// insertUser runs the INSERT on q, which is the pool or an open transaction.
// The raw driver error is returned so callers can test for a unique violation.
func (db *DB) insertUser(ctx context.Context, q sqlx.QueryerContext, username string) (*model.User, error) {
	u := model.User{
		Username:  username,
		CreatedAt: db.timestamp(),
	}
	err := q.QueryRowxContext(ctx, db.rebind(
		`INSERT INTO users (username, created_at) VALUES (?, ?) RETURNING id`),
		u.Username, u.CreatedAt,
	).Scan(&u.ID)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// existingUser re-reads the row that made an INSERT fail with conflict.
func (db *DB) existingUser(ctx context.Context, username string, conflict error) (*model.User, error) {
	existing, err := db.FindUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		// The conflicting row vanished between INSERT and SELECT. Users are
		// never deleted, so this means the database is not behaving.
		return nil, apperror.Storage(
			fmt.Sprintf("re-reading user %q after unique violation", username), conflict)
	}
	return existing, nil
}

// MostRecentUsers returns up to n users, newest first.
//
// TIE-BREAK:
// Two users created in the same microsecond are ordered by id DESC, so the
// result is stable between calls.
func (db *DB) MostRecentUsers(ctx context.Context, n int) ([]model.User, error) {
	if n <= 0 {
		// SQLite reads LIMIT -1 as "no limit"; never let that through.
		return []model.User{}, nil
	}

	users := make([]model.User, 0, n)
	err := db.conn.SelectContext(ctx, &users, db.rebind(
		`SELECT id, username, created_at
		 FROM users
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`),
		n,
	)
	if err != nil {
		return nil, apperror.Storage("listing most recent users", err)
	}
	return users, nil
}
