package federation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/wolfeidau/pcfhub/internal/apperr"
	"github.com/wolfeidau/pcfhub/internal/filter"
	"github.com/wolfeidau/pcfhub/internal/footprint"
	"github.com/wolfeidau/pcfhub/internal/models"
	"github.com/wolfeidau/pcfhub/internal/pcf"
	"github.com/wolfeidau/pcfhub/internal/store"
)

// DefaultPageSize applies when a catalog listing names no limit.
const DefaultPageSize = 100

// Catalog serves the footprints of a tenant's internal organizations.
type Catalog struct {
	store store.Store
}

// NewCatalog returns a catalog backed by s.
func NewCatalog(s store.Store) *Catalog {
	return &Catalog{store: s}
}

// ListFootprints returns the latest footprint of every lineage visible to
// callerOrg that matches the filter expression.
func (c *Catalog) ListFootprints(ctx context.Context, callerOrg uuid.UUID, expr string, limit, offset int) ([]*pcf.ProductFootprint, error) {
	if limit < 0 || offset < 0 {
		return nil, apperr.Request("limit and offset must not be negative")
	}
	if limit == 0 {
		limit = DefaultPageSize
	}
	cond, err := filter.ParseAndCompile(expr)
	if err != nil {
		return nil, err
	}

	orgIDs, err := internalOrgs(ctx, c.store, callerOrg)
	if err != nil {
		return nil, err
	}
	fps, err := c.store.ListFootprints(ctx, store.FootprintQuery{
		OrgIDs:    orgIDs,
		Condition: cond,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list footprints: %w", err)
	}

	out := make([]*pcf.ProductFootprint, 0, len(fps))
	for _, fp := range fps {
		wire, err := toWire(ctx, c.store, fp)
		if err != nil {
			return nil, err
		}
		out = append(out, wire)
	}

	log.Ctx(ctx).Debug().Int("count", len(out)).Bool("filtered", cond != nil).Msg("Listed footprints")
	return out, nil
}

// GetFootprint returns the latest version of a lineage. Lineages outside the
// caller's view are reported as not found.
func (c *Catalog) GetFootprint(ctx context.Context, callerOrg, dataID uuid.UUID) (*pcf.ProductFootprint, error) {
	orgIDs, err := internalOrgs(ctx, c.store, callerOrg)
	if err != nil {
		return nil, err
	}
	fp, err := ownFootprint(ctx, c.store, orgIDs, dataID)
	if err != nil {
		return nil, err
	}
	return toWire(ctx, c.store, fp)
}

// SaveFootprint validates a footprint document authored by callerOrg and
// stores it as the active footprint of its product.
func (c *Catalog) SaveFootprint(ctx context.Context, callerOrg uuid.UUID, raw json.RawMessage) (*models.ProductFootprint, footprint.Outcome, error) {
	wire, err := pcf.Decode(raw)
	if err != nil {
		return nil, 0, err
	}
	decoded, err := pcf.FromWire(wire)
	if err != nil {
		return nil, 0, err
	}

	var (
		saved   *models.ProductFootprint
		outcome footprint.Outcome
	)
	err = c.store.WithTx(ctx, func(q store.Queries) error {
		org, err := q.GetOrganization(ctx, callerOrg)
		if err != nil {
			return fmt.Errorf("failed to get organization: %w", err)
		}
		if org.Type != models.OrganizationTypeInternal {
			return apperr.Authorization("only internal organizations author footprints")
		}

		product, err := footprint.ResolveProduct(ctx, q, callerOrg, decoded)
		if err != nil {
			return err
		}
		fp := decoded.Footprint
		fp.OrgID = callerOrg
		fp.ProductID = product.ProductID

		saved, outcome, err = footprint.Save(ctx, q, fp)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return saved, outcome, nil
}

// internalOrgs returns the internal organizations of orgID's tenant.
func internalOrgs(ctx context.Context, q store.OrganizationStore, orgID uuid.UUID) ([]uuid.UUID, error) {
	ancestry, err := q.OrganizationAncestry(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load organization tree: %w", err)
	}
	root, err := ancestry.Root(orgID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindState, err, "organization tree is inconsistent")
	}

	var out []uuid.UUID
	for _, id := range ancestry.Descendants(root) {
		org, err := q.GetOrganization(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to get organization: %w", err)
		}
		if org.Type == models.OrganizationTypeInternal {
			out = append(out, id)
		}
	}
	return out, nil
}
