package model

// Project is one cached GitHub repository.
//
// WHY Description *string?
// GitHub returns "description": null for repositories without one. A pointer
// keeps "no description" distinct from an empty string, and maps straight to
// a nullable TEXT column.
type Project struct {
	ID          int64   `json:"id"          db:"id"`
	Name        string  `json:"name"        db:"name"`
	Description *string `json:"description" db:"description"`
	Stars       int     `json:"stars"       db:"stars"`
	Forks       int     `json:"forks"       db:"forks"`
	UserID      int64   `json:"user_id"     db:"user_id"`
}

// NewProject is a project that has not been persisted yet: no ID, no owner.
// The store assigns both when the batch is written.
type NewProject struct {
	Name        string
	Description *string
	Stars       int
	Forks       int
}

// ProjectView is the read-facing representation returned by the API.
type ProjectView struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Stars       int     `json:"stars"`
	Forks       int     `json:"forks"`
	UserID      int64   `json:"user_id"`
}

func (p Project) View() ProjectView {
	return ProjectView{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Stars:       p.Stars,
		Forks:       p.Forks,
		UserID:      p.UserID,
	}
}

// ProjectViews converts a slice; the result is never nil.
func ProjectViews(projects []Project) []ProjectView {
	views := make([]ProjectView, 0, len(projects))
	for _, p := range projects {
		views = append(views, p.View())
	}
	return views
}
