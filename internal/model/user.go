// Package model defines the data structures used throughout the application.
// Each entity comes in two shapes: the stored struct (with db tags for sqlx)
// and a View, the JSON shape returned to API clients.
package model

import "time"

// User is a GitHub account whose repositories have been cached locally.
//
// A User row is the cache-hit marker: once it exists, the user's projects are
// always served from the database, even when there are none.
//
// WHY ID int64?
// The ID is a surrogate key assigned by the database (INTEGER PRIMARY KEY in
// SQLite, an identity column in Postgres). It has nothing to do with GitHub's own
// numeric account IDs.
type User struct {
	ID        int64     `json:"id"         db:"id"`
	Username  string    `json:"username"   db:"username"` // GitHub login, case-sensitive
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// UserView is the read-facing representation returned by the API.
type UserView struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// View converts a stored User into its outward representation.
func (u User) View() UserView {
	return UserView{
		ID:        u.ID,
		Username:  u.Username,
		CreatedAt: u.CreatedAt,
	}
}

// UserViews converts a slice, always returning a non-nil slice so an empty
// result encodes as [] rather than null.
func UserViews(users []User) []UserView {
	views := make([]UserView, 0, len(users))
	for _, u := range users {
		views = append(views, u.View())
	}
	return views
}
