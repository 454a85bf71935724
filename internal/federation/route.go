package federation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/wolfeidau/pcfhub/internal/apperr"
	"github.com/wolfeidau/pcfhub/internal/event"
	"github.com/wolfeidau/pcfhub/internal/models"
	"github.com/wolfeidau/pcfhub/internal/store"
)

// route picks the data source used to reach orgID: the first partner data
// source found walking up from orgID, else the hub of the tenant root.
func (d *Dispatcher) route(ctx context.Context, q store.Queries, orgID uuid.UUID) (*models.DataSource, error) {
	ancestry, err := q.OrganizationAncestry(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load organization tree: %w", err)
	}
	path, err := ancestry.Path(orgID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindState, err, "organization tree is inconsistent")
	}

	var sources []*models.DataSource
	for _, id := range path {
		sources, err = q.ListDataSourcesByOrganization(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to list data sources: %w", err)
		}
		for _, ds := range sources {
			if ds.Type == models.DataSourceTypePartner {
				return ds, nil
			}
		}
	}

	// sources now holds those of the root
	for _, ds := range sources {
		if ds.Type == models.DataSourceTypeHub {
			return ds, nil
		}
	}
	return nil, apperr.State("no data source registered for organization %s", orgID)
}

// hub returns the hub data source of orgID's tenant.
func (d *Dispatcher) hub(ctx context.Context, q store.Queries, orgID uuid.UUID) (*models.DataSource, error) {
	root, err := tenantRoot(ctx, q, orgID)
	if err != nil {
		return nil, err
	}
	sources, err := q.ListDataSourcesByOrganization(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("failed to list data sources: %w", err)
	}
	for _, ds := range sources {
		if ds.Type == models.DataSourceTypeHub {
			return ds, nil
		}
	}
	return nil, apperr.State("no hub registered for tenant %s", root)
}

// token authenticates against the data source with its stored credentials.
func (d *Dispatcher) token(ctx context.Context, ds *models.DataSource) (string, error) {
	endpoint, ok := ds.Endpoint(models.EndpointAuthenticate)
	if !ok {
		return "", apperr.State("data source %s has no Authenticate endpoint", ds.DataSourceID)
	}
	password, err := d.vault.Decrypt(ds.Password, ds.OrgID[:])
	if err != nil {
		return "", apperr.Wrap(apperr.KindState, err, "credentials of data source %s cannot be decrypted", ds.DataSourceID)
	}
	return d.tokens.Token(ctx, endpoint, ds.Username, password)
}

// encode stamps ev with a new envelope id. The id is known before delivery
// so the outbound task can record it in the same transaction.
func (d *Dispatcher) encode(ev event.Event) ([]byte, error) {
	raw, err := event.New(d.baseURL+PathEvents, ev)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event: %w", err)
	}
	return raw, nil
}

// post delivers an encoded event to the data source's UpdateEvent endpoint.
func (d *Dispatcher) post(ctx context.Context, ds *models.DataSource, ev event.Event, raw []byte) error {
	h := ev.Header()
	attrs := metric.WithAttributes(attribute.String("type", h.Type))

	endpoint, ok := ds.Endpoint(models.EndpointUpdateEvent)
	if !ok {
		return apperr.State("data source %s has no UpdateEvent endpoint", ds.DataSourceID)
	}
	token, err := d.token(ctx, ds)
	if err != nil {
		d.metrics.OutboundFailuresTotal.Add(ctx, 1, attrs)
		return err
	}
	if err := d.transport.PostEvent(ctx, endpoint, token, raw); err != nil {
		d.metrics.OutboundFailuresTotal.Add(ctx, 1, attrs)
		return err
	}

	d.metrics.EventsSentTotal.Add(ctx, 1, attrs)
	log.Ctx(ctx).Info().
		Str("event_type", h.Type).
		Str("event_id", h.ID).
		Str("data_source_id", ds.DataSourceID.String()).
		Msg("Sent event")
	return nil
}
