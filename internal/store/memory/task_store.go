package memory

import (
	"context"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/pcfhub/internal/models"
	"github.com/wolfeidau/pcfhub/internal/store"
)

// CreateTask stores a task; direction and event ID are unique together.
func (q *queries) CreateTask(ctx context.Context, t *models.Task) error {
	st, unlock := q.write()
	defer unlock()

	for _, existing := range st.tasks {
		if existing.Direction == t.Direction && existing.EventID == t.EventID {
			return store.ErrTaskAlreadyExists
		}
	}
	st.tasks[t.TaskID] = cloneTask(t)
	return nil
}

func (q *queries) GetTask(ctx context.Context, taskID uuid.UUID) (*models.Task, error) {
	st, unlock := q.read()
	defer unlock()

	t, ok := st.tasks[taskID]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	return cloneTask(t), nil
}

func (q *queries) GetTaskByEventID(ctx context.Context, direction models.TaskDirection, eventID string) (*models.Task, error) {
	st, unlock := q.read()
	defer unlock()

	for _, t := range st.tasks {
		if t.Direction == direction && t.EventID == eventID {
			return cloneTask(t), nil
		}
	}
	return nil, store.ErrTaskNotFound
}

// UpdateTask persists status, message and payload.
func (q *queries) UpdateTask(ctx context.Context, t *models.Task) error {
	st, unlock := q.write()
	defer unlock()

	existing, ok := st.tasks[t.TaskID]
	if !ok {
		return store.ErrTaskNotFound
	}

	t.UpdatedAt = time.Now()
	updated := cloneTask(existing)
	updated.Status = t.Status
	updated.Message = t.Message
	updated.Payload = slices.Clone(t.Payload)
	updated.UpdatedAt = t.UpdatedAt
	st.tasks[t.TaskID] = updated
	return nil
}

func (q *queries) DeleteTask(ctx context.Context, taskID uuid.UUID) error {
	st, unlock := q.write()
	defer unlock()

	if _, ok := st.tasks[taskID]; !ok {
		return store.ErrTaskNotFound
	}
	delete(st.tasks, taskID)
	return nil
}

// ListTasks returns matching tasks, newest first.
func (q *queries) ListTasks(ctx context.Context, tq store.TaskQuery) ([]*models.Task, error) {
	st, unlock := q.read()
	defer unlock()

	var out []*models.Task
	for _, t := range st.tasks {
		if !slices.Contains(tq.OrgIDs, t.ClientOrgID) && !slices.Contains(tq.OrgIDs, t.RecipientOrgID) {
			continue
		}
		if len(tq.Status) > 0 && !slices.Contains(tq.Status, t.Status) {
			continue
		}
		out = append(out, cloneTask(t))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].TaskID.String() > out[j].TaskID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return paginate(out, tq.Limit, tq.Offset), nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
