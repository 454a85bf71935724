// Package federation exchanges footprints, requests and contracts with
// partner and hub nodes. Inbound events arrive through Handle; the operator
// triggers outbound flows through the exported methods.
package federation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/wolfeidau/pcfhub/internal/apperr"
	"github.com/wolfeidau/pcfhub/internal/auth"
	"github.com/wolfeidau/pcfhub/internal/event"
	"github.com/wolfeidau/pcfhub/internal/models"
	"github.com/wolfeidau/pcfhub/internal/store"
	"github.com/wolfeidau/pcfhub/internal/telemetry"
	"github.com/wolfeidau/pcfhub/internal/vault"
)

// Paths of the protocol endpoints every node serves.
const (
	PathToken      = "/auth/token"
	PathFootprints = "/2/footprints"
	PathEvents     = "/2/events"
)

// Tokens obtains access tokens from a remote Authenticate endpoint.
type Tokens interface {
	Token(ctx context.Context, endpoint, username, password string) (string, error)
}

// Transport performs signed protocol calls against remote nodes.
type Transport interface {
	PostEvent(ctx context.Context, endpoint, token string, body []byte) error
	GetFootprint(ctx context.Context, endpoint, token, id string) (json.RawMessage, error)
}

// Dispatcher routes inbound events and runs outbound flows.
type Dispatcher struct {
	store     store.Store
	vault     *vault.Vault
	keys      *auth.KeyManager
	tokens    Tokens
	transport Transport
	baseURL   string
	metrics   *telemetry.Metrics
}

// NewDispatcher creates a dispatcher for the node reachable at baseURL.
func NewDispatcher(s store.Store, v *vault.Vault, keys *auth.KeyManager, tokens Tokens, transport Transport, baseURL string) *Dispatcher {
	return &Dispatcher{
		store:     s,
		vault:     v,
		keys:      keys,
		tokens:    tokens,
		transport: transport,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		metrics:   telemetry.GetMetrics(),
	}
}

// Handle processes one inbound event envelope sent by the caller id.
func (d *Dispatcher) Handle(ctx context.Context, id *auth.Identity, raw []byte) error {
	start := time.Now()
	ctx, span := telemetry.Tracer().Start(ctx, "federation.Handle")
	defer span.End()

	ev, err := event.Decode(raw)
	if err != nil {
		d.metrics.EventsRejectedTotal.Add(ctx, 1)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	h := ev.Header()
	span.SetAttributes(attribute.String("event.type", h.Type), attribute.String("event.id", h.ID))
	logger := log.Ctx(ctx).With().Str("event_type", h.Type).Str("event_id", h.ID).Logger()
	ctx = logger.WithContext(ctx)

	switch e := ev.(type) {
	case *event.Published:
		err = d.handleAnnounced(ctx, id, h, e.PfIDs)
	case *event.FootprintUpdated:
		err = d.handleAnnounced(ctx, id, h, e.PfIDs)
	case *event.RequestCreated:
		err = d.handleRequestCreated(ctx, id, e)
	case *event.RequestFulfilled:
		err = d.handleRequestFulfilled(ctx, id, e)
	case *event.RequestRejected:
		err = d.handleRequestRejected(ctx, id, e)
	case *event.ContractRequest:
		err = d.handleContractRequest(ctx, id, e)
	case *event.ContractReply:
		err = d.handleContractReply(ctx, id, e)
	case *event.CompanyUpdated:
		err = d.handleCompanyUpdated(ctx, id, e)
	case *event.Ignored:
		logger.Warn().Msg("Ignoring unsupported event type")
		err = apperr.NotImplemented("event type %s is not supported", h.Type)
	default:
		err = fmt.Errorf("unhandled event %T", ev)
	}

	attrs := metric.WithAttributes(attribute.String("type", h.Type))
	d.metrics.EventHandleDuration.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
	if err != nil {
		d.metrics.EventsRejectedTotal.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn().Err(err).Msg("Failed to handle event")
		return err
	}

	d.metrics.EventsReceivedTotal.Add(ctx, 1, attrs)
	logger.Info().Msg("Handled event")
	return nil
}

// sender returns the organization the caller acts for.
func (d *Dispatcher) sender(ctx context.Context, q store.Queries, id *auth.Identity) (*models.Organization, error) {
	if id == nil {
		return nil, apperr.Authorization("not authenticated")
	}
	org, err := q.GetOrganization(ctx, id.OrganizationID)
	if errors.Is(err, store.ErrOrganizationNotFound) {
		return nil, apperr.Authorization("caller organization is not registered")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return org, nil
}

func (d *Dispatcher) handleAnnounced(ctx context.Context, id *auth.Identity, h *event.Envelope, pfIDs []string) error {
	sender, err := d.sender(ctx, d.store, id)
	if err != nil {
		return err
	}
	// footprints are stored under the sender, which must not be one of ours
	if sender.Type != models.OrganizationTypeBusinessPartner {
		return apperr.Authorization("only business partners can announce footprints")
	}

	if done, err := d.seen(ctx, h.ID); err != nil || done {
		return err
	}

	decoded, err := d.fetchFootprints(ctx, sender.OrgID, pfIDs)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(map[string][]string{"pfIds": pfIDs})
	if err != nil {
		return fmt.Errorf("failed to encode task payload: %w", err)
	}

	var outcomes []string
	err = d.store.WithTx(ctx, func(q store.Queries) error {
		outcomes, err = d.ingestAll(ctx, q, sender.OrgID, decoded)
		if err != nil {
			return err
		}

		root, err := tenantRoot(ctx, q, sender.OrgID)
		if err != nil {
			return err
		}
		task, err := newTask(models.TaskDirectionInbound, models.TaskTypeNotification, sender.OrgID, root, h.ID)
		if err != nil {
			return err
		}
		task.Status = models.TaskStatusUnread
		task.Source = h.Source
		task.Message = fmt.Sprintf("%d footprints announced by %s", len(pfIDs), sender.Name)
		task.Payload = payload
		return createInboundTask(ctx, q, task)
	})
	if err != nil {
		return err
	}

	d.recordIngest(ctx, outcomes)
	return nil
}

func (d *Dispatcher) handleRequestCreated(ctx context.Context, id *auth.Identity, e *event.RequestCreated) error {
	if done, err := d.seen(ctx, e.ID); err != nil || done {
		return err
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode task payload: %w", err)
	}

	return d.store.WithTx(ctx, func(q store.Queries) error {
		sender, err := d.sender(ctx, q, id)
		if err != nil {
			return err
		}
		root, err := tenantRoot(ctx, q, sender.OrgID)
		if err != nil {
			return err
		}

		task, err := newTask(models.TaskDirectionInbound, models.TaskTypeRequest, sender.OrgID, root, e.ID)
		if err != nil {
			return err
		}
		task.Status = models.TaskStatusUnread
		task.Source = e.Source
		task.Message = e.Comment
		task.Payload = payload
		return createInboundTask(ctx, q, task)
	})
}

func (d *Dispatcher) handleRequestFulfilled(ctx context.Context, id *auth.Identity, e *event.RequestFulfilled) error {
	decoded, err := decodeFootprints(e.PFs)
	if err != nil {
		return err
	}

	var outcomes []string
	err = d.store.WithTx(ctx, func(q store.Queries) error {
		sender, err := d.sender(ctx, q, id)
		if err != nil {
			return err
		}
		task, err := outboundTask(ctx, q, e.RequestEventID, sender.OrgID, models.TaskTypeRequest)
		if err != nil {
			return err
		}

		// a hub relays replies as the tenant root, so the owner is the
		// organization that was asked
		owner, err := q.GetOrganization(ctx, task.RecipientOrgID)
		if err != nil {
			return fmt.Errorf("failed to get organization: %w", err)
		}
		if owner.Type != models.OrganizationTypeBusinessPartner {
			return apperr.State("request %s was not addressed to a business partner", e.RequestEventID)
		}

		outcomes, err = d.ingestAll(ctx, q, owner.OrgID, decoded)
		if err != nil {
			return err
		}

		if err := transition(task, models.TaskStatusCompleted, fmt.Sprintf("%d footprints received", len(decoded))); err != nil {
			return err
		}
		return q.UpdateTask(ctx, task)
	})
	if err != nil {
		return err
	}

	d.recordIngest(ctx, outcomes)
	return nil
}

func (d *Dispatcher) handleRequestRejected(ctx context.Context, id *auth.Identity, e *event.RequestRejected) error {
	return d.store.WithTx(ctx, func(q store.Queries) error {
		sender, err := d.sender(ctx, q, id)
		if err != nil {
			return err
		}
		task, err := outboundTask(ctx, q, e.RequestEventID, sender.OrgID, models.TaskTypeRequest, models.TaskTypeContractRequest)
		if err != nil {
			return err
		}

		message := e.Error.Message
		if message == "" {
			message = "rejected"
		}
		if err := transition(task, models.TaskStatusRejected, message); err != nil {
			return err
		}
		return q.UpdateTask(ctx, task)
	})
}

func (d *Dispatcher) handleCompanyUpdated(ctx context.Context, id *auth.Identity, e *event.CompanyUpdated) error {
	return d.store.WithTx(ctx, func(q store.Queries) error {
		sender, err := d.sender(ctx, q, id)
		if err != nil {
			return err
		}
		if sender.Type != models.OrganizationTypeBusinessPartner {
			return apperr.Authorization("only business partners can update their company")
		}

		sender.Name = e.Name
		if ids := parseCompanyIDs(e.IDs); len(ids) > 0 {
			sender.Identifiers = ids
		}
		sender.UpdatedAt = time.Now().UTC()
		if err := q.UpdateOrganization(ctx, sender); err != nil {
			return fmt.Errorf("failed to update organization: %w", err)
		}

		log.Ctx(ctx).Info().Str("org_id", sender.OrgID.String()).Msg("Updated partner company")
		return nil
	})
}

// seen reports whether an inbound event was already handled.
func (d *Dispatcher) seen(ctx context.Context, eventID string) (bool, error) {
	_, err := d.store.GetTaskByEventID(ctx, models.TaskDirectionInbound, eventID)
	switch {
	case err == nil:
		log.Ctx(ctx).Info().Msg("Event already handled")
		return true, nil
	case errors.Is(err, store.ErrTaskNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("failed to get task: %w", err)
	}
}

// outboundTask finds the outbound task a reply refers to. The reply must come
// from the addressed organization, or from the tenant root when a hub relays
// it. Anything else is reported as not found.
func outboundTask(ctx context.Context, q store.Queries, requestEventID string, sender uuid.UUID, types ...models.TaskType) (*models.Task, error) {
	task, err := q.GetTaskByEventID(ctx, models.TaskDirectionOutbound, requestEventID)
	if errors.Is(err, store.ErrTaskNotFound) {
		return nil, apperr.NotFound("no request %s", requestEventID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	if !slices.Contains(types, task.Type) {
		return nil, apperr.NotFound("no request %s", requestEventID)
	}

	if task.RecipientOrgID != sender {
		root, err := tenantRoot(ctx, q, task.ClientOrgID)
		if err != nil {
			return nil, err
		}
		if root != sender {
			return nil, apperr.NotFound("no request %s", requestEventID)
		}
	}
	return task, nil
}

func createInboundTask(ctx context.Context, q store.Queries, task *models.Task) error {
	err := q.CreateTask(ctx, task)
	if errors.Is(err, store.ErrTaskAlreadyExists) {
		log.Ctx(ctx).Info().Msg("Event already handled")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

func newTask(direction models.TaskDirection, typ models.TaskType, client, recipient uuid.UUID, eventID string) (*models.Task, error) {
	taskID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate task ID: %w", err)
	}
	now := time.Now().UTC()
	return &models.Task{
		TaskID:         taskID,
		ClientOrgID:    client,
		RecipientOrgID: recipient,
		Type:           typ,
		Direction:      direction,
		EventID:        eventID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func tenantRoot(ctx context.Context, q store.OrganizationStore, orgID uuid.UUID) (uuid.UUID, error) {
	ancestry, err := q.OrganizationAncestry(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to load organization tree: %w", err)
	}
	root, err := ancestry.Root(orgID)
	if err != nil {
		return uuid.Nil, apperr.Wrap(apperr.KindState, err, "organization tree is inconsistent")
	}
	return root, nil
}
