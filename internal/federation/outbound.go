package federation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/wolfeidau/pcfhub/internal/apperr"
	"github.com/wolfeidau/pcfhub/internal/event"
	"github.com/wolfeidau/pcfhub/internal/models"
	"github.com/wolfeidau/pcfhub/internal/pcf"
	"github.com/wolfeidau/pcfhub/internal/store"
	"github.com/wolfeidau/pcfhub/internal/tasks"
)

// Notify announces footprints of the caller's tenant to a partner.
func (d *Dispatcher) Notify(ctx context.Context, callerOrg, partnerOrg uuid.UUID, dataIDs []uuid.UUID) (*models.Task, error) {
	if len(dataIDs) == 0 {
		return nil, apperr.Request("at least one footprint id is required")
	}

	var task *models.Task
	err := d.store.WithTx(ctx, func(q store.Queries) error {
		tree, err := tasks.TenantTree(ctx, q, callerOrg)
		if err != nil {
			return err
		}
		if !slices.Contains(tree, partnerOrg) {
			return apperr.NotFound("organization %s not found", partnerOrg)
		}

		own, err := internalOrgs(ctx, q, callerOrg)
		if err != nil {
			return err
		}
		pfIDs := make([]string, len(dataIDs))
		for i, dataID := range dataIDs {
			if _, err := ownFootprint(ctx, q, own, dataID); err != nil {
				return err
			}
			pfIDs[i] = dataID.String()
		}

		ds, err := d.route(ctx, q, partnerOrg)
		if err != nil {
			return err
		}

		ev := &event.Published{PfIDs: pfIDs}
		raw, err := d.encode(ev)
		if err != nil {
			return err
		}

		task, err = newTask(models.TaskDirectionOutbound, models.TaskTypeNotification, callerOrg, partnerOrg, ev.ID)
		if err != nil {
			return err
		}
		task.Status = models.TaskStatusCompleted
		task.Message = fmt.Sprintf("%d footprints announced", len(pfIDs))
		if task.Payload, err = json.Marshal(map[string][]string{"pfIds": pfIDs}); err != nil {
			return fmt.Errorf("failed to encode task payload: %w", err)
		}
		if err := q.CreateTask(ctx, task); err != nil {
			return fmt.Errorf("failed to create task: %w", err)
		}

		return d.post(ctx, ds, ev, raw)
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// RequestFootprint asks a partner for footprints matching wish, a partial
// footprint document.
func (d *Dispatcher) RequestFootprint(ctx context.Context, callerOrg, partnerOrg uuid.UUID, wish json.RawMessage, comment string) (*models.Task, error) {
	var probe map[string]any
	if err := json.Unmarshal(wish, &probe); err != nil || len(probe) == 0 {
		return nil, apperr.Request("the requested footprint must be a non-empty object")
	}

	var task *models.Task
	err := d.store.WithTx(ctx, func(q store.Queries) error {
		if err := checkPartner(ctx, q, callerOrg, partnerOrg); err != nil {
			return err
		}

		ds, err := d.route(ctx, q, partnerOrg)
		if err != nil {
			return err
		}

		ev := &event.RequestCreated{PF: wish, Comment: comment}
		raw, err := d.encode(ev)
		if err != nil {
			return err
		}

		task, err = newTask(models.TaskDirectionOutbound, models.TaskTypeRequest, callerOrg, partnerOrg, ev.ID)
		if err != nil {
			return err
		}
		task.Status = models.TaskStatusPending
		task.Message = comment
		task.Payload = wish
		if err := q.CreateTask(ctx, task); err != nil {
			return fmt.Errorf("failed to create task: %w", err)
		}

		return d.post(ctx, ds, ev, raw)
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// Fulfill answers an inbound request with footprints of the caller's tenant
// and completes the task.
func (d *Dispatcher) Fulfill(ctx context.Context, callerOrg, taskID uuid.UUID, dataIDs []uuid.UUID) (*models.Task, error) {
	if len(dataIDs) == 0 {
		return nil, apperr.Request("at least one footprint id is required")
	}

	var task *models.Task
	err := d.store.WithTx(ctx, func(q store.Queries) error {
		var err error
		task, err = inboundTask(ctx, q, callerOrg, taskID, models.TaskTypeRequest)
		if err != nil {
			return err
		}
		if err := transition(task, models.TaskStatusCompleted, fmt.Sprintf("%d footprints sent", len(dataIDs))); err != nil {
			return err
		}

		own, err := internalOrgs(ctx, q, callerOrg)
		if err != nil {
			return err
		}
		pfs := make([]json.RawMessage, len(dataIDs))
		for i, dataID := range dataIDs {
			fp, err := ownFootprint(ctx, q, own, dataID)
			if err != nil {
				return err
			}
			wire, err := toWire(ctx, q, fp)
			if err != nil {
				return err
			}
			if pfs[i], err = json.Marshal(wire); err != nil {
				return fmt.Errorf("failed to encode footprint: %w", err)
			}
		}

		ds, err := d.route(ctx, q, task.ClientOrgID)
		if err != nil {
			return err
		}

		ev := &event.RequestFulfilled{RequestEventID: task.EventID, PFs: pfs}
		raw, err := d.encode(ev)
		if err != nil {
			return err
		}
		if err := q.UpdateTask(ctx, task); err != nil {
			return fmt.Errorf("failed to update task: %w", err)
		}

		return d.post(ctx, ds, ev, raw)
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// Reject declines an inbound footprint or contract request.
func (d *Dispatcher) Reject(ctx context.Context, callerOrg, taskID uuid.UUID, message string) (*models.Task, error) {
	if message == "" {
		message = "request rejected"
	}

	var task *models.Task
	err := d.store.WithTx(ctx, func(q store.Queries) error {
		var err error
		task, err = inboundTask(ctx, q, callerOrg, taskID, models.TaskTypeRequest, models.TaskTypeContractRequest)
		if err != nil {
			return err
		}
		if err := transition(task, models.TaskStatusRejected, message); err != nil {
			return err
		}

		ds, err := d.route(ctx, q, task.ClientOrgID)
		if err != nil {
			return err
		}

		ev := &event.RequestRejected{
			RequestEventID: task.EventID,
			Error:          apperr.ProtocolError{Code: apperr.CodeBadRequest, Message: message},
		}
		raw, err := d.encode(ev)
		if err != nil {
			return err
		}
		if err := q.UpdateTask(ctx, task); err != nil {
			return fmt.Errorf("failed to update task: %w", err)
		}

		return d.post(ctx, ds, ev, raw)
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// inboundTask loads a task the caller may act on and checks its kind.
func inboundTask(ctx context.Context, q store.Queries, callerOrg, taskID uuid.UUID, types ...models.TaskType) (*models.Task, error) {
	task, err := tasks.Load(ctx, q, callerOrg, taskID)
	if err != nil {
		return nil, err
	}
	if task.Direction != models.TaskDirectionInbound || !slices.Contains(types, task.Type) {
		return nil, apperr.Request("task %s is a %s %s task", taskID, task.Direction, task.Type)
	}
	return task, nil
}

// ownFootprint returns the latest row of a lineage owned by one of orgIDs.
func ownFootprint(ctx context.Context, q store.Queries, orgIDs []uuid.UUID, dataID uuid.UUID) (*models.ProductFootprint, error) {
	fp, err := q.GetLatestFootprintByDataID(ctx, dataID)
	if errors.Is(err, store.ErrFootprintNotFound) {
		return nil, apperr.NotFound("footprint %s not found", dataID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get footprint: %w", err)
	}
	if !slices.Contains(orgIDs, fp.OrgID) {
		return nil, apperr.NotFound("footprint %s not found", dataID)
	}
	return fp, nil
}

func toWire(ctx context.Context, q store.Queries, fp *models.ProductFootprint) (*pcf.ProductFootprint, error) {
	product, err := q.GetProduct(ctx, fp.ProductID)
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	org, err := q.GetOrganization(ctx, fp.OrgID)
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return pcf.ToWire(fp, product, org)
}
