package types

type Session struct {
	ID          string  `json:"id" db:"id"`
	UserID      string  `json:"user_id" db:"user_id"`
	Title       string  `json:"title" db:"title"`
	Description string  `json:"description" db:"description"`
	Category    string  `json:"category" db:"category"`
	ProjectData JSONMap `json:"project_data" db:"project_data"`
	IsActive    bool    `json:"is_active" db:"is_active"`
	CreatedAt   int64   `json:"created_at" db:"created_at"`
	UpdatedAt   int64   `json:"updated_at" db:"updated_at"`
}

// HasProject reports whether the session carries any project metadata worth
// surfacing to the model.
func (s *Session) HasProject() bool {
	return s != nil && (s.Title != "" || s.Description != "" || s.Category != "" || len(s.ProjectData) > 0)
}

type ListSessionOptions struct {
	UserID     string
	OnlyActive bool
	// IdleBefore selects sessions whose last update is older than the unix timestamp.
	IdleBefore int64
}
