package federation

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/wolfeidau/pcfhub/internal/apperr"
	"github.com/wolfeidau/pcfhub/internal/auth"
	"github.com/wolfeidau/pcfhub/internal/models"
	"github.com/wolfeidau/pcfhub/internal/store"
	"github.com/wolfeidau/pcfhub/internal/tasks"
)

// DataSourceInput registers a remote node. Hubs always attach to the tenant
// root; partner data sources attach to OrgID.
type DataSourceInput struct {
	OrgID     uuid.UUID             `json:"orgId"`
	Type      models.DataSourceType `json:"type"`
	Name      string                `json:"name"`
	Username  string                `json:"username"`
	Password  string                `json:"password"`
	Endpoints []BundleEndpoint      `json:"endpoints"`
	PublicKey string                `json:"publicKey,omitempty"`
}

// RegisterDataSource stores a data source with its password encrypted for
// the owning organization.
func (d *Dispatcher) RegisterDataSource(ctx context.Context, callerOrg uuid.UUID, in DataSourceInput) (*models.DataSource, error) {
	if in.Username == "" || in.Password == "" {
		return nil, apperr.Request("username and password are required")
	}
	required := []models.EndpointType{models.EndpointAuthenticate, models.EndpointUpdateEvent}
	switch in.Type {
	case models.DataSourceTypeHub:
	case models.DataSourceTypePartner:
		required = append(required, models.EndpointGetFootprints)
	default:
		return nil, apperr.Request("data source type must be %q or %q", models.DataSourceTypePartner, models.DataSourceTypeHub)
	}
	var present []models.EndpointType
	for _, ep := range in.Endpoints {
		if err := validateEndpointURL(ep.URL); err != nil {
			return nil, err
		}
		present = append(present, ep.Type)
	}
	for _, t := range required {
		if !slices.Contains(present, t) {
			return nil, apperr.Request("%s endpoint is required", t)
		}
	}
	if in.PublicKey != "" {
		if _, err := auth.ParsePublicKeyPEM(in.PublicKey); err != nil {
			return nil, apperr.Request("publicKey is not a P-256 public key")
		}
	}

	var ds *models.DataSource
	err := d.store.WithTx(ctx, func(q store.Queries) error {
		ownerID := in.OrgID
		if in.Type == models.DataSourceTypeHub {
			root, err := tenantRoot(ctx, q, callerOrg)
			if err != nil {
				return err
			}
			ownerID = root
		} else {
			if err := checkPartner(ctx, q, callerOrg, ownerID); err != nil {
				return err
			}
		}

		password, err := d.vault.Encrypt(in.Password, ownerID[:])
		if err != nil {
			return err
		}
		dsID, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate data source ID: %w", err)
		}
		now := time.Now().UTC()
		ds = &models.DataSource{
			DataSourceID: dsID,
			OrgID:        ownerID,
			Type:         in.Type,
			Name:         in.Name,
			Username:     in.Username,
			Password:     password,
			PublicKey:    in.PublicKey,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		for _, ep := range in.Endpoints {
			ds.Endpoints = append(ds.Endpoints, models.Endpoint{Type: ep.Type, URL: ep.URL})
		}

		err = q.CreateDataSource(ctx, ds)
		if errors.Is(err, store.ErrHubAlreadyRegistered) {
			return apperr.Request("tenant already has a hub data source")
		}
		if err != nil {
			return fmt.Errorf("failed to create data source: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Ctx(ctx).Info().
		Str("data_source_id", ds.DataSourceID.String()).
		Str("org_id", ds.OrgID.String()).
		Str("type", string(ds.Type)).
		Msg("Registered data source")
	return ds, nil
}

// IssueClient creates token endpoint credentials for orgID, which must be
// the tenant root (for a hub) or a business partner of the tenant. The
// secret is returned once and only its hash is stored.
func (d *Dispatcher) IssueClient(ctx context.Context, callerOrg, orgID uuid.UUID) (*models.PartnerClient, string, error) {
	var (
		client *models.PartnerClient
		secret string
	)
	err := d.store.WithTx(ctx, func(q store.Queries) error {
		root, err := tenantRoot(ctx, q, callerOrg)
		if err != nil {
			return err
		}
		if orgID != root {
			if err := checkPartner(ctx, q, callerOrg, orgID); err != nil {
				return err
			}
		}

		client, secret, err = auth.NewPartnerClient(orgID)
		if err != nil {
			return err
		}
		if err := q.CreatePartnerClient(ctx, client); err != nil {
			return fmt.Errorf("failed to create partner client: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, "", err
	}

	log.Ctx(ctx).Info().Str("client_id", client.ClientID).Str("org_id", orgID.String()).Msg("Issued partner client")
	return client, secret, nil
}

// checkPartner fails unless orgID is a business partner in callerOrg's tenant.
func checkPartner(ctx context.Context, q store.Queries, callerOrg, orgID uuid.UUID) error {
	tree, err := tasks.TenantTree(ctx, q, callerOrg)
	if err != nil {
		return err
	}
	if !slices.Contains(tree, orgID) {
		return apperr.NotFound("organization %s not found", orgID)
	}
	org, err := q.GetOrganization(ctx, orgID)
	if err != nil {
		return fmt.Errorf("failed to get organization: %w", err)
	}
	if org.Type != models.OrganizationTypeBusinessPartner {
		return apperr.Request("organization %s is not a business partner", orgID)
	}
	return nil
}
