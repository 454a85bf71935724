package federation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/wolfeidau/pcfhub/internal/apperr"
	"github.com/wolfeidau/pcfhub/internal/footprint"
	"github.com/wolfeidau/pcfhub/internal/models"
	"github.com/wolfeidau/pcfhub/internal/pcf"
	"github.com/wolfeidau/pcfhub/internal/store"
	"github.com/wolfeidau/pcfhub/internal/tasks"
)

// fetchFootprints downloads the announced footprints from the sender's
// GetFootprints endpoint. All fetches run concurrently and the first failure
// cancels the rest.
func (d *Dispatcher) fetchFootprints(ctx context.Context, senderOrg uuid.UUID, pfIDs []string) ([]*pcf.Decoded, error) {
	ds, err := d.route(ctx, d.store, senderOrg)
	if err != nil {
		return nil, err
	}
	endpoint, ok := ds.Endpoint(models.EndpointGetFootprints)
	if !ok {
		return nil, apperr.State("data source %s has no GetFootprints endpoint", ds.DataSourceID)
	}
	token, err := d.token(ctx, ds)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	results := make([]*pcf.Decoded, len(pfIDs))
	g, gctx := errgroup.WithContext(ctx)
	for i, pfID := range pfIDs {
		g.Go(func() error {
			raw, err := d.transport.GetFootprint(gctx, endpoint, token, pfID)
			if err != nil {
				return err
			}
			decoded, err := decodeFootprint(raw)
			if err != nil {
				return fmt.Errorf("footprint %s: %w", pfID, err)
			}
			results[i] = decoded
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		d.metrics.OutboundFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", "get_footprint")))
		return nil, err
	}

	d.metrics.FootprintFetchDuration.Record(ctx, float64(time.Since(start).Milliseconds()))
	log.Ctx(ctx).Debug().Int("count", len(results)).Str("data_source_id", ds.DataSourceID.String()).Msg("Fetched footprints")
	return results, nil
}

func decodeFootprint(raw json.RawMessage) (*pcf.Decoded, error) {
	wire, err := pcf.Decode(raw)
	if err != nil {
		return nil, err
	}
	return pcf.FromWire(wire)
}

func decodeFootprints(raws []json.RawMessage) ([]*pcf.Decoded, error) {
	out := make([]*pcf.Decoded, 0, len(raws))
	for i, raw := range raws {
		decoded, err := decodeFootprint(raw)
		if err != nil {
			return nil, fmt.Errorf("footprint %d: %w", i, err)
		}
		out = append(out, decoded)
	}
	return out, nil
}

func (d *Dispatcher) ingestAll(ctx context.Context, q store.Queries, orgID uuid.UUID, decoded []*pcf.Decoded) ([]string, error) {
	outcomes := make([]string, 0, len(decoded))
	for _, dec := range decoded {
		_, outcome, err := footprint.Ingest(ctx, q, orgID, dec)
		if err != nil {
			return nil, fmt.Errorf("failed to ingest footprint %s: %w", dec.Footprint.DataID, err)
		}
		outcomes = append(outcomes, outcome.String())
	}
	return outcomes, nil
}

func (d *Dispatcher) recordIngest(ctx context.Context, outcomes []string) {
	for _, outcome := range outcomes {
		d.metrics.FootprintsIngestedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}

func transition(task *models.Task, to models.TaskStatus, message string) error {
	return tasks.Transition(task, to, message)
}

func parseCompanyIDs(urns []string) []models.Identifier {
	return pcf.ParseOrganizationURNs(urns)
}
