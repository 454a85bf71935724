// Package tasks implements the operator inbox and outbox of protocol
// exchanges.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/pcfhub/internal/apperr"
	"github.com/wolfeidau/pcfhub/internal/models"
	"github.com/wolfeidau/pcfhub/internal/store"
)

var transitions = map[models.TaskStatus][]models.TaskStatus{
	models.TaskStatusUnread:    {models.TaskStatusPending, models.TaskStatusRejected, models.TaskStatusCompleted},
	models.TaskStatusPending:   {models.TaskStatusRejected, models.TaskStatusCompleted},
	models.TaskStatusRejected:  {models.TaskStatusCompleted},
	models.TaskStatusCompleted: nil,
}

// CanTransition reports whether a task may move from one status to another.
func CanTransition(from, to models.TaskStatus) bool {
	return slices.Contains(transitions[from], to)
}

// Transition moves task to status, recording message when not empty.
func Transition(task *models.Task, to models.TaskStatus, message string) error {
	if !CanTransition(task.Status, to) {
		return apperr.Request("task %s cannot move from %s to %s", task.TaskID, task.Status, to)
	}
	task.Status = to
	if message != "" {
		task.Message = message
	}
	task.UpdatedAt = time.Now().UTC()
	return nil
}

// Service exposes tasks to operators, scoped to the caller's tenant tree.
type Service struct {
	store store.Store
}

// NewService returns a task service backed by s.
func NewService(s store.Store) *Service {
	return &Service{store: s}
}

// ListOptions filters List.
type ListOptions struct {
	Status []models.TaskStatus
	Limit  int
	Offset int
}

// List returns the tasks of the caller's tenant, newest first.
func (s *Service) List(ctx context.Context, callerOrg uuid.UUID, opts ListOptions) ([]*models.Task, error) {
	orgIDs, err := TenantTree(ctx, s.store, callerOrg)
	if err != nil {
		return nil, err
	}

	tasks, err := s.store.ListTasks(ctx, store.TaskQuery{
		OrgIDs: orgIDs,
		Status: opts.Status,
		Limit:  opts.Limit,
		Offset: opts.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// Get returns one task. Tasks outside the caller's tenant are reported as
// not found.
func (s *Service) Get(ctx context.Context, callerOrg, taskID uuid.UUID) (*models.Task, error) {
	return Load(ctx, s.store, callerOrg, taskID)
}

// UpdateStatus moves a task to status.
func (s *Service) UpdateStatus(ctx context.Context, callerOrg, taskID uuid.UUID, status models.TaskStatus, message string) (*models.Task, error) {
	var task *models.Task
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		var err error
		task, err = Load(ctx, q, callerOrg, taskID)
		if err != nil {
			return err
		}
		if err := Transition(task, status, message); err != nil {
			return err
		}
		return q.UpdateTask(ctx, task)
	})
	if err != nil {
		return nil, err
	}

	log.Ctx(ctx).Info().Str("task_id", taskID.String()).Str("status", string(status)).Msg("Updated task")
	return task, nil
}

// Delete removes an Unread task.
func (s *Service) Delete(ctx context.Context, callerOrg, taskID uuid.UUID) error {
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		task, err := Load(ctx, q, callerOrg, taskID)
		if err != nil {
			return err
		}
		if task.Status != models.TaskStatusUnread {
			return apperr.Request("task %s is %s, only unread tasks can be deleted", taskID, task.Status)
		}
		return q.DeleteTask(ctx, taskID)
	})
	if err != nil {
		return err
	}

	log.Ctx(ctx).Info().Str("task_id", taskID.String()).Msg("Deleted task")
	return nil
}

// Load returns a task visible to callerOrg. Tasks outside the caller's
// tenant are reported as not found.
func Load(ctx context.Context, q store.Queries, callerOrg, taskID uuid.UUID) (*models.Task, error) {
	task, err := q.GetTask(ctx, taskID)
	if errors.Is(err, store.ErrTaskNotFound) {
		return nil, apperr.NotFound("task %s not found", taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	orgIDs, err := TenantTree(ctx, q, callerOrg)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(orgIDs, task.ClientOrgID) && !slices.Contains(orgIDs, task.RecipientOrgID) {
		return nil, apperr.NotFound("task %s not found", taskID)
	}
	return task, nil
}

// TenantTree returns every organization of the tenant callerOrg belongs to.
func TenantTree(ctx context.Context, q store.OrganizationStore, callerOrg uuid.UUID) ([]uuid.UUID, error) {
	ancestry, err := q.OrganizationAncestry(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load organization tree: %w", err)
	}
	root, err := ancestry.Root(callerOrg)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindState, err, "organization tree is inconsistent")
	}
	return ancestry.Descendants(root), nil
}
