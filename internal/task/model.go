package task

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("task not found")
	ErrConflict = errors.New("task was modified concurrently")

	ErrTitleRequired = errors.New("title is required")
	ErrTitleTooLong  = errors.New("title must be at most 200 characters")
	ErrInvalidStatus = errors.New("invalid task status")
)

// Status is the task workflow state
type Status string

const (
	StatusTodo       Status = "Todo"
	StatusInProgress Status = "InProgress"
	StatusDone       Status = "Done"
)

// ParseStatus validates a status string from client input
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusTodo, StatusInProgress, StatusDone:
		return Status(s), nil
	default:
		return "", ErrInvalidStatus
	}
}

// Task is a unit of work owned by exactly one user. Version backs
// optimistic concurrency: every successful update increments it.
type Task struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      Status     `json:"status"`
	DueDate     *time.Time `json:"due_date"`
	UserID      uuid.UUID  `json:"user_id"`
	Version     int64      `json:"-"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
