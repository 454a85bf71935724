package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TaskType is the kind of protocol exchange a task records.
type TaskType string

const (
	TaskTypeNotification    TaskType = "Notification"
	TaskTypeRequest         TaskType = "Request"
	TaskTypeContractRequest TaskType = "ContractRequest"
)

// TaskStatus is the lifecycle status of a task.
type TaskStatus string

const (
	TaskStatusUnread    TaskStatus = "Unread"
	TaskStatusPending   TaskStatus = "Pending"
	TaskStatusRejected  TaskStatus = "Rejected"
	TaskStatusCompleted TaskStatus = "Completed" // terminal
)

// TaskDirection tells whether the task was created on receipt or on send.
type TaskDirection string

const (
	TaskDirectionInbound  TaskDirection = "inbound"
	TaskDirectionOutbound TaskDirection = "outbound"
)

// Task is the durable record of one protocol exchange.
type Task struct {
	TaskID         uuid.UUID
	ClientOrgID    uuid.UUID // organization that initiated the exchange
	RecipientOrgID uuid.UUID // organization the exchange is addressed to
	Type           TaskType
	Direction      TaskDirection
	Status         TaskStatus
	Message        string
	EventID        string // envelope id, used for idempotency and reply matching
	Source         string // remote event address, inbound only
	Payload        json.RawMessage

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsTerminal returns true once the task can no longer change.
func (t *Task) IsTerminal() bool {
	return t.Status == TaskStatusCompleted
}
