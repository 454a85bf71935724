package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/pcfhub/internal/models"
	"github.com/wolfeidau/pcfhub/internal/store"
)

const taskColumns = `task_id, client_org_id, recipient_org_id, task_type, direction, status, message, event_id, source, payload, created_at, updated_at`

// CreateTask inserts a task. The (direction, event_id) unique constraint makes
// duplicate deliveries surface as ErrTaskAlreadyExists.
func (q *queries) CreateTask(ctx context.Context, t *models.Task) error {
	query := `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (direction, event_id) DO NOTHING
	`

	tag, err := q.db.Exec(ctx, query,
		t.TaskID,
		t.ClientOrgID,
		t.RecipientOrgID,
		t.Type,
		t.Direction,
		t.Status,
		t.Message,
		t.EventID,
		t.Source,
		nullableJSON(t.Payload),
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", mapPostgresError(err))
	}
	// a duplicate is skipped rather than raised so an enclosing transaction
	// stays usable
	if tag.RowsAffected() == 0 {
		return store.ErrTaskAlreadyExists
	}

	log.Debug().
		Str("task_id", t.TaskID.String()).
		Str("type", string(t.Type)).
		Str("direction", string(t.Direction)).
		Str("event_id", t.EventID).
		Msg("Created task")

	return nil
}

// GetTask retrieves a task by ID.
func (q *queries) GetTask(ctx context.Context, taskID uuid.UUID) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE task_id = $1`
	return q.getTask(ctx, query, taskID)
}

// GetTaskByEventID retrieves the task correlated with an envelope ID.
func (q *queries) GetTaskByEventID(ctx context.Context, direction models.TaskDirection, eventID string) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE direction = $1 AND event_id = $2`
	return q.getTask(ctx, query, direction, eventID)
}

func (q *queries) getTask(ctx context.Context, query string, args ...any) (*models.Task, error) {
	t, err := scanTask(q.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return t, nil
}

// UpdateTask persists status, message and payload.
func (q *queries) UpdateTask(ctx context.Context, t *models.Task) error {
	t.UpdatedAt = time.Now()

	query := `
		UPDATE tasks SET
			status = $2,
			message = $3,
			payload = $4,
			updated_at = $5
		WHERE task_id = $1
	`

	result, err := q.db.Exec(ctx, query, t.TaskID, t.Status, t.Message, nullableJSON(t.Payload), t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", mapPostgresError(err))
	}
	if result.RowsAffected() == 0 {
		return store.ErrTaskNotFound
	}

	log.Debug().
		Str("task_id", t.TaskID.String()).
		Str("status", string(t.Status)).
		Msg("Updated task")

	return nil
}

// DeleteTask deletes a task by ID.
func (q *queries) DeleteTask(ctx context.Context, taskID uuid.UUID) error {
	result, err := q.db.Exec(ctx, `DELETE FROM tasks WHERE task_id = $1`, taskID)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if result.RowsAffected() == 0 {
		return store.ErrTaskNotFound
	}

	log.Debug().Str("task_id", taskID.String()).Msg("Deleted task")
	return nil
}

// ListTasks returns tasks whose client or recipient is in the query's
// organizations, newest first.
func (q *queries) ListTasks(ctx context.Context, tq store.TaskQuery) ([]*models.Task, error) {
	var sb strings.Builder
	args := []any{tq.OrgIDs}
	sb.WriteString(`SELECT ` + taskColumns + ` FROM tasks WHERE (client_org_id = ANY($1) OR recipient_org_id = ANY($1))`)

	if len(tq.Status) > 0 {
		statuses := make([]string, len(tq.Status))
		for i, s := range tq.Status {
			statuses[i] = string(s)
		}
		args = append(args, statuses)
		fmt.Fprintf(&sb, " AND status = ANY($%d)", len(args))
	}
	sb.WriteString(" ORDER BY created_at DESC, task_id DESC")
	if tq.Limit > 0 {
		args = append(args, tq.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	if tq.Offset > 0 {
		args = append(args, tq.Offset)
		fmt.Fprintf(&sb, " OFFSET $%d", len(args))
	}

	rows, err := q.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return tasks, nil
}

func scanTask(row pgx.Row) (*models.Task, error) {
	var t models.Task
	var payload []byte
	err := row.Scan(
		&t.TaskID,
		&t.ClientOrgID,
		&t.RecipientOrgID,
		&t.Type,
		&t.Direction,
		&t.Status,
		&t.Message,
		&t.EventID,
		&t.Source,
		&payload,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(payload) > 0 {
		t.Payload = payload
	}
	return &t, nil
}

// nullableJSON keeps empty payloads as NULL instead of invalid JSON.
func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
