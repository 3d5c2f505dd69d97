package sqlstore

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sakif/github-scraper/internal/apperror"
	"github.com/sakif/github-scraper/internal/model"
)

// FindProjectsByUserID returns every cached project owned by userID.
// An empty slice is a valid answer: the user exists but has no repositories.
func (db *DB) FindProjectsByUserID(ctx context.Context, userID int64) ([]model.Project, error) {
	projects := []model.Project{}
	err := db.conn.SelectContext(ctx, &projects, db.rebind(
		`SELECT id, name, description, stars, forks, user_id
		 FROM projects
		 WHERE user_id = ?
		 ORDER BY id ASC`),
		userID,
	)
	if err != nil {
		return nil, apperror.Storage(fmt.Sprintf("listing projects for user %d", userID), err)
	}
	return projects, nil
}

// CreateProjects persists one fetch worth of repositories as a single batch.
//
// ALL OR NOTHING:
// The inserts run inside one transaction. If any row fails (constraint
// violation, lost connection, cancelled context) the deferred Rollback undoes
// the rows already written, so a user never ends up with half a project list.
//
// TRANSACTION PATTERN:
//
//	tx := Begin
//	defer Rollback   ← no-op after a successful Commit
//	... work ...
//	Commit
func (db *DB) CreateProjects(ctx context.Context, userID int64, records []model.NewProject) ([]model.Project, error) {
	if len(records) == 0 {
		return []model.Project{}, nil
	}

	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return nil, apperror.Storage("beginning project batch", err)
	}
	defer tx.Rollback()

	projects, err := db.insertProjects(ctx, tx, userID, records)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, apperror.Storage("committing project batch", err)
	}
	return projects, nil
}

// insertProjects writes records inside tx. The caller owns Commit/Rollback.
func (db *DB) insertProjects(ctx context.Context, tx *sqlx.Tx, userID int64, records []model.NewProject) ([]model.Project, error) {
	projects := make([]model.Project, 0, len(records))
	if len(records) == 0 {
		return projects, nil
	}

	stmt, err := tx.PreparexContext(ctx, db.rebind(
		`INSERT INTO projects (name, description, stars, forks, user_id)
		 VALUES (?, ?, ?, ?, ?)
		 RETURNING id`))
	if err != nil {
		return nil, apperror.Storage("preparing project insert", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		p := model.Project{
			Name:        rec.Name,
			Description: rec.Description,
			Stars:       rec.Stars,
			Forks:       rec.Forks,
			UserID:      userID,
		}
		if err := stmt.QueryRowxContext(ctx,
			p.Name, p.Description, p.Stars, p.Forks, p.UserID,
		).Scan(&p.ID); err != nil {
			return nil, apperror.Storage(fmt.Sprintf("inserting project %q for user %d", rec.Name, userID), err)
		}
		projects = append(projects, p)
	}
	return projects, nil
}

// MostStarredProjects returns up to n projects across all users, most stars
// first. Equal star counts fall back to id ASC so the order is deterministic.
func (db *DB) MostStarredProjects(ctx context.Context, n int) ([]model.Project, error) {
	if n <= 0 {
		return []model.Project{}, nil
	}

	projects := make([]model.Project, 0, n)
	err := db.conn.SelectContext(ctx, &projects, db.rebind(
		`SELECT id, name, description, stars, forks, user_id
		 FROM projects
		 ORDER BY stars DESC, id ASC
		 LIMIT ?`),
		n,
	)
	if err != nil {
		return nil, apperror.Storage("listing most starred projects", err)
	}
	return projects, nil
}
