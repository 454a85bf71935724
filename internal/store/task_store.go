package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/wolfeidau/pcfhub/internal/models"
)

// Sentinel errors for task store operations
var (
	ErrTaskNotFound      = errors.New("task not found")
	ErrTaskAlreadyExists = errors.New("task already exists for event")
)

// TaskQuery selects tasks for the operator inbox.
type TaskQuery struct {
	OrgIDs []uuid.UUID         // tasks whose client or recipient is one of these
	Status []models.TaskStatus // empty means any
	Limit  int
	Offset int
}

// TaskStore defines the interface for task storage operations.
type TaskStore interface {
	// CreateTask stores a task.
	// Returns ErrTaskAlreadyExists if a task with the same direction and event ID exists.
	CreateTask(ctx context.Context, task *models.Task) error

	// GetTask retrieves a task by ID.
	GetTask(ctx context.Context, taskID uuid.UUID) (*models.Task, error)

	// GetTaskByEventID retrieves the task correlated with an envelope ID.
	GetTaskByEventID(ctx context.Context, direction models.TaskDirection, eventID string) (*models.Task, error)

	// UpdateTask persists status, message and payload of a task.
	UpdateTask(ctx context.Context, task *models.Task) error

	// DeleteTask removes a task.
	DeleteTask(ctx context.Context, taskID uuid.UUID) error

	// ListTasks returns tasks matching the query, newest first.
	ListTasks(ctx context.Context, q TaskQuery) ([]*models.Task, error)
}
