package models

import "time"

type User struct {
	ID        string    `json:"id" validate:"omitempty,uuid"`
	Username  string    `json:"username" validate:"required,min=1,max=50"`
	Email     string    `json:"email" validate:"required,email"`
	Password  string    `json:"-" validate:"required,min=8"`
	CreatedAt time.Time `json:"createdAt"`
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=1,max=50"`
	Email    string `json:"email" validate:"required"`
	// bcrypt only hashes the first 72 bytes and rejects anything longer
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type Task struct {
	ID          string    `json:"id" validate:"omitempty,uuid"`
	Title       string    `json:"title" validate:"required,min=1,max=200"`
	Description string    `json:"description" validate:"required,min=1,max=2000"`
	Priority    string    `json:"priority" validate:"required,oneof=Low Medium High"`
	Deadline    time.Time `json:"deadline"`
	Completed   bool      `json:"completed"`
	UserID      string    `json:"user"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Deleted     bool      `json:"-"`
}

type CreateTaskRequest struct {
	Title       string    `json:"title" validate:"required,min=1,max=200"`
	Description string    `json:"description" validate:"required,min=1,max=2000"`
	Priority    string    `json:"priority" validate:"required,oneof=Low Medium High"`
	Deadline    time.Time `json:"deadline" validate:"required"`
}

type UpdateTaskRequest struct {
	Title       string    `json:"title" validate:"required,min=1,max=200"`
	Description string    `json:"description" validate:"required,min=1,max=2000"`
	Priority    string    `json:"priority" validate:"required,oneof=Low Medium High"`
	Deadline    time.Time `json:"deadline" validate:"required"`
}

// TaskFilter narrows the owner-scoped task listing. Completed is a
// tri-state: nil means no completion filter.
type TaskFilter struct {
	Page      int
	Limit     int
	Priority  string
	Completed *bool
	FilterBy  string
}

const (
	FilterToday    = "today"
	FilterUpcoming = "upcoming"
)
