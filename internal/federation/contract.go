package federation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/wolfeidau/pcfhub/internal/apperr"
	"github.com/wolfeidau/pcfhub/internal/auth"
	"github.com/wolfeidau/pcfhub/internal/event"
	"github.com/wolfeidau/pcfhub/internal/models"
	"github.com/wolfeidau/pcfhub/internal/pcf"
	"github.com/wolfeidau/pcfhub/internal/store"
	"github.com/wolfeidau/pcfhub/internal/vault"
)

// ContractRequest describes the counterpart a contract is requested from.
type ContractRequest struct {
	CompanyName string   `json:"companyName"`
	CompanyIDs  []string `json:"companyIds,omitempty"`
	Message     string   `json:"message,omitempty"`
}

// Bundle is the credential set a node hands out when it accepts a contract.
// It travels sealed for the requester's key.
type Bundle struct {
	Username  string           `json:"username"`
	Password  string           `json:"password"`
	Endpoints []BundleEndpoint `json:"endpoints"`
}

// BundleEndpoint is one typed URL of a bundle.
type BundleEndpoint struct {
	Type models.EndpointType `json:"type"`
	URL  string              `json:"url"`
}

// RequestContract asks a counterpart, reached through the tenant's hub, for
// access credentials.
func (d *Dispatcher) RequestContract(ctx context.Context, callerOrg uuid.UUID, req ContractRequest) (*models.Task, error) {
	if req.CompanyName == "" {
		return nil, apperr.Request("companyName is required")
	}
	publicKey, err := d.keys.PublicKeyPEM()
	if err != nil {
		return nil, fmt.Errorf("failed to encode public key: %w", err)
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode task payload: %w", err)
	}

	var task *models.Task
	err = d.store.WithTx(ctx, func(q store.Queries) error {
		caller, err := q.GetOrganization(ctx, callerOrg)
		if err != nil {
			return fmt.Errorf("failed to get organization: %w", err)
		}
		root, err := tenantRoot(ctx, q, callerOrg)
		if err != nil {
			return err
		}
		counterpart, err := resolveCounterpart(ctx, q, root, req.CompanyName, pcf.ParseOrganizationURNs(req.CompanyIDs), "")
		if err != nil {
			return err
		}
		ds, err := d.hub(ctx, q, callerOrg)
		if err != nil {
			return err
		}

		ev := &event.ContractRequest{
			Requester: company(caller),
			Recipient: event.Company{Name: req.CompanyName, IDs: req.CompanyIDs},
			Message:   req.Message,
			PublicKey: publicKey,
		}
		raw, err := d.encode(ev)
		if err != nil {
			return err
		}

		task, err = newTask(models.TaskDirectionOutbound, models.TaskTypeContractRequest, callerOrg, counterpart.OrgID, ev.ID)
		if err != nil {
			return err
		}
		task.Status = models.TaskStatusPending
		task.Message = req.Message
		task.Payload = payload
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

// ReplyContract accepts an inbound contract request: it issues credentials to
// the requester and sends them back sealed for the requester's key.
func (d *Dispatcher) ReplyContract(ctx context.Context, callerOrg, taskID uuid.UUID) (*models.Task, error) {
	publicKey, err := d.keys.PublicKeyPEM()
	if err != nil {
		return nil, fmt.Errorf("failed to encode public key: %w", err)
	}

	var task *models.Task
	err = d.store.WithTx(ctx, func(q store.Queries) error {
		task, err = inboundTask(ctx, q, callerOrg, taskID, models.TaskTypeContractRequest)
		if err != nil {
			return err
		}
		if err := transition(task, models.TaskStatusCompleted, "contract accepted"); err != nil {
			return err
		}

		counterpart, err := q.GetOrganization(ctx, task.ClientOrgID)
		if err != nil {
			return fmt.Errorf("failed to get organization: %w", err)
		}
		if counterpart.PublicKey == "" {
			return apperr.State("organization %s has no public key", counterpart.OrgID)
		}
		recipientKey, err := auth.ParsePublicKeyPEM(counterpart.PublicKey)
		if err != nil {
			return apperr.Wrap(apperr.KindState, err, "public key of organization %s is unusable", counterpart.OrgID)
		}
		replier, err := q.GetOrganization(ctx, task.RecipientOrgID)
		if err != nil {
			return fmt.Errorf("failed to get organization: %w", err)
		}

		client, secret, err := auth.NewPartnerClient(counterpart.OrgID)
		if err != nil {
			return err
		}
		if err := q.CreatePartnerClient(ctx, client); err != nil {
			return fmt.Errorf("failed to create partner client: %w", err)
		}

		bundle, err := json.Marshal(Bundle{
			Username: client.ClientID,
			Password: secret,
			Endpoints: []BundleEndpoint{
				{Type: models.EndpointAuthenticate, URL: d.baseURL + PathToken},
				{Type: models.EndpointGetFootprints, URL: d.baseURL + PathFootprints},
				{Type: models.EndpointUpdateEvent, URL: d.baseURL + PathEvents},
			},
		})
		if err != nil {
			return fmt.Errorf("failed to encode bundle: %w", err)
		}
		sealed, err := vault.SealFor(recipientKey, bundle)
		if err != nil {
			return err
		}

		ds, err := d.hub(ctx, q, callerOrg)
		if err != nil {
			return err
		}

		ev := &event.ContractReply{
			RequestEventID: task.EventID,
			Replier:        company(replier),
			Recipient:      company(counterpart),
			PublicKey:      publicKey,
			Bundle:         sealed,
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

	d.metrics.ContractsEstablishedTotal.Add(ctx, 1)
	return task, nil
}

func (d *Dispatcher) handleContractRequest(ctx context.Context, id *auth.Identity, e *event.ContractRequest) error {
	if _, err := auth.ParsePublicKeyPEM(e.PublicKey); err != nil {
		return apperr.Request("publicKey is not a P-256 public key")
	}
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

		counterpart, err := resolveCounterpart(ctx, q, root, e.Requester.Name, pcf.ParseOrganizationURNs(e.Requester.IDs), e.PublicKey)
		if err != nil {
			return err
		}
		recipient, err := resolveInternal(ctx, q, root, pcf.ParseOrganizationURNs(e.Recipient.IDs))
		if err != nil {
			return err
		}

		task, err := newTask(models.TaskDirectionInbound, models.TaskTypeContractRequest, counterpart.OrgID, recipient, e.ID)
		if err != nil {
			return err
		}
		task.Status = models.TaskStatusUnread
		task.Source = e.Source
		task.Message = e.Message
		task.Payload = payload
		return createInboundTask(ctx, q, task)
	})
}

func (d *Dispatcher) handleContractReply(ctx context.Context, id *auth.Identity, e *event.ContractReply) error {
	plain, err := vault.Open(d.keys.PrivateKey(), e.Bundle)
	if err != nil {
		return apperr.Request("bundle cannot be opened with this node's key")
	}
	bundle, err := parseBundle(plain)
	if err != nil {
		return err
	}
	if e.PublicKey != "" {
		if _, err := auth.ParsePublicKeyPEM(e.PublicKey); err != nil {
			return apperr.Request("publicKey is not a P-256 public key")
		}
	}

	err = d.store.WithTx(ctx, func(q store.Queries) error {
		sender, err := d.sender(ctx, q, id)
		if err != nil {
			return err
		}
		task, err := outboundTask(ctx, q, e.RequestEventID, sender.OrgID, models.TaskTypeContractRequest)
		if err != nil {
			return err
		}
		if err := transition(task, models.TaskStatusCompleted, "contract established"); err != nil {
			return err
		}

		counterpart, err := q.GetOrganization(ctx, task.RecipientOrgID)
		if err != nil {
			return fmt.Errorf("failed to get organization: %w", err)
		}
		if e.PublicKey != "" && counterpart.PublicKey != e.PublicKey {
			counterpart.PublicKey = e.PublicKey
			counterpart.UpdatedAt = time.Now().UTC()
			if err := q.UpdateOrganization(ctx, counterpart); err != nil {
				return fmt.Errorf("failed to update organization: %w", err)
			}
		}

		password, err := d.vault.Encrypt(bundle.Password, counterpart.Salt())
		if err != nil {
			return err
		}
		dsID, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate data source ID: %w", err)
		}
		now := time.Now().UTC()
		ds := &models.DataSource{
			DataSourceID: dsID,
			OrgID:        counterpart.OrgID,
			Type:         models.DataSourceTypePartner,
			Name:         counterpart.Name,
			Username:     bundle.Username,
			Password:     password,
			PublicKey:    e.PublicKey,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		for _, ep := range bundle.Endpoints {
			ds.Endpoints = append(ds.Endpoints, models.Endpoint{Type: ep.Type, URL: ep.URL})
		}
		if err := q.CreateDataSource(ctx, ds); err != nil {
			return fmt.Errorf("failed to create data source: %w", err)
		}

		log.Ctx(ctx).Info().
			Str("org_id", counterpart.OrgID.String()).
			Str("data_source_id", dsID.String()).
			Msg("Contract established")
		return q.UpdateTask(ctx, task)
	})
	if err != nil {
		return err
	}

	d.metrics.ContractsEstablishedTotal.Add(ctx, 1)
	return nil
}

// parseBundle decodes and validates an opened bundle. Every URL must be an
// absolute http(s) URL, and Authenticate and GetFootprints are required.
func parseBundle(plain []byte) (*Bundle, error) {
	var b Bundle
	if err := json.Unmarshal(plain, &b); err != nil {
		return nil, apperr.Request("bundle is not valid JSON")
	}
	if b.Username == "" || b.Password == "" {
		return nil, apperr.Request("bundle must carry username and password")
	}

	seen := map[models.EndpointType]bool{}
	for _, ep := range b.Endpoints {
		switch ep.Type {
		case models.EndpointAuthenticate, models.EndpointGetFootprints,
			models.EndpointUpdateEvent, models.EndpointUpdateDataSource:
		default:
			return nil, apperr.Request("bundle endpoint type %q is unknown", ep.Type)
		}
		if err := validateEndpointURL(ep.URL); err != nil {
			return nil, err
		}
		seen[ep.Type] = true
	}
	if !seen[models.EndpointAuthenticate] || !seen[models.EndpointGetFootprints] {
		return nil, apperr.Request("bundle must include Authenticate and GetFootprints endpoints")
	}
	return &b, nil
}

func validateEndpointURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return apperr.Request("endpoint %q is not an absolute http(s) URL", raw)
	}
	return nil
}

// resolveCounterpart finds the business partner of the tenant matching ids,
// then name, and creates it under the tenant root when neither matches. A
// non-empty publicKey replaces the stored one only on an identifier match;
// a name match may only fill in a missing key.
func resolveCounterpart(ctx context.Context, q store.Queries, root uuid.UUID, name string, ids []models.Identifier, publicKey string) (*models.Organization, error) {
	ancestry, err := q.OrganizationAncestry(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load organization tree: %w", err)
	}
	pick := func(orgs []*models.Organization) *models.Organization {
		for _, org := range orgs {
			if org.Type != models.OrganizationTypeBusinessPartner {
				continue
			}
			if ok, err := ancestry.IsWithin(org.OrgID, root); err == nil && ok {
				return org
			}
		}
		return nil
	}

	var found *models.Organization
	byIdentifier := false
	for _, ident := range ids {
		orgs, err := q.FindOrganizationsByIdentifier(ctx, ident)
		if err != nil {
			return nil, fmt.Errorf("failed to find organizations: %w", err)
		}
		if found = pick(orgs); found != nil {
			byIdentifier = true
			break
		}
	}
	if found == nil && name != "" {
		orgs, err := q.FindOrganizationsByName(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to find organizations: %w", err)
		}
		found = pick(orgs)
	}

	now := time.Now().UTC()
	if found != nil {
		if publicKey != "" && found.PublicKey != publicKey && (byIdentifier || found.PublicKey == "") {
			found.PublicKey = publicKey
			found.UpdatedAt = now
			if err := q.UpdateOrganization(ctx, found); err != nil {
				return nil, fmt.Errorf("failed to update organization: %w", err)
			}
		}
		if publicKey != "" && found.PublicKey != publicKey {
			log.Ctx(ctx).Warn().Str("org_id", found.OrgID.String()).Msg("Kept stored key of partner matched by name")
		}
		return found, nil
	}

	orgID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate organization ID: %w", err)
	}
	org := &models.Organization{
		OrgID:       orgID,
		ParentID:    &root,
		Name:        name,
		Type:        models.OrganizationTypeBusinessPartner,
		Identifiers: ids,
		PublicKey:   publicKey,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := q.CreateOrganization(ctx, org); err != nil {
		return nil, fmt.Errorf("failed to create organization: %w", err)
	}
	log.Ctx(ctx).Info().Str("org_id", orgID.String()).Str("name", name).Msg("Created business partner")
	return org, nil
}

// resolveInternal returns the internal organization of the tenant carrying
// one of ids, or the tenant root.
func resolveInternal(ctx context.Context, q store.Queries, root uuid.UUID, ids []models.Identifier) (uuid.UUID, error) {
	ancestry, err := q.OrganizationAncestry(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to load organization tree: %w", err)
	}
	for _, ident := range ids {
		orgs, err := q.FindOrganizationsByIdentifier(ctx, ident)
		if err != nil {
			return uuid.Nil, fmt.Errorf("failed to find organizations: %w", err)
		}
		for _, org := range orgs {
			if org.Type != models.OrganizationTypeInternal {
				continue
			}
			if ok, err := ancestry.IsWithin(org.OrgID, root); err == nil && ok {
				return org.OrgID, nil
			}
		}
	}
	return root, nil
}

func company(org *models.Organization) event.Company {
	return event.Company{Name: org.Name, IDs: pcf.OrganizationURNs(org.Identifiers)}
}
