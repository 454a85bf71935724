// Package footprint maintains footprint lineages: the Active row of a product,
// its versions and the deprecated rows it superseded.
package footprint

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/pcfhub/internal/models"
	"github.com/wolfeidau/pcfhub/internal/pcf"
	"github.com/wolfeidau/pcfhub/internal/store"
)

// Outcome tells what an upsert did.
type Outcome int

const (
	// Created is the first footprint of a product.
	Created Outcome = iota
	// Unchanged is an identical resubmission; nothing was written.
	Unchanged
	// Revised is a minor change: same DataID, next version.
	Revised
	// Replaced is a major change: new DataID at version 0.
	Replaced
)

func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case Unchanged:
		return "unchanged"
	case Revised:
		return "revised"
	case Replaced:
		return "replaced"
	default:
		return "unknown"
	}
}

// Save upserts a locally authored footprint for next.ProductID. Lineage ids
// are always assigned here; any DataID or Version on next is ignored.
// A minor revision always moves the version on by exactly one.
func Save(ctx context.Context, q store.Queries, next *models.ProductFootprint) (*models.ProductFootprint, Outcome, error) {
	return upsert(ctx, q, next, false)
}

// Ingest upserts a footprint received from the organization orgID, resolving
// or creating its product under that organization. The sender's DataID is
// kept so later revisions from the same lineage line up.
func Ingest(ctx context.Context, q store.Queries, orgID uuid.UUID, d *pcf.Decoded) (*models.ProductFootprint, Outcome, error) {
	product, err := ResolveProduct(ctx, q, orgID, d)
	if err != nil {
		return nil, 0, err
	}

	fp := d.Footprint
	fp.OrgID = orgID
	fp.ProductID = product.ProductID

	return upsert(ctx, q, fp, true)
}

// ResolveProduct finds the product of orgID carrying one of the decoded
// product identifiers, creating it when none matches.
func ResolveProduct(ctx context.Context, q store.Queries, orgID uuid.UUID, d *pcf.Decoded) (*models.Product, error) {
	for _, id := range d.ProductIDs {
		products, err := q.FindProductsByIdentifier(ctx, orgID, id)
		if err != nil {
			return nil, fmt.Errorf("failed to find product: %w", err)
		}
		if len(products) > 0 {
			return products[0], nil
		}
	}

	// identifiers in unknown URN schemes decode to nothing, so fall back to
	// the product of an existing lineage
	if dataID := d.Footprint.DataID; dataID != uuid.Nil {
		latest, err := q.GetLatestFootprintByDataID(ctx, dataID)
		switch {
		case err == nil && latest.OrgID == orgID:
			product, err := q.GetProduct(ctx, latest.ProductID)
			if err != nil {
				return nil, fmt.Errorf("failed to get product: %w", err)
			}
			return product, nil
		case err != nil && !errors.Is(err, store.ErrFootprintNotFound):
			return nil, fmt.Errorf("failed to get latest footprint: %w", err)
		}
	}

	productID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate product ID: %w", err)
	}
	name := d.ProductName
	if name == "" {
		name = d.ProductDescription
	}
	product := &models.Product{
		ProductID:   productID,
		OrgID:       orgID,
		Name:        name,
		Description: d.ProductDescription,
		CPC:         d.ProductCategoryCpc,
		Identifiers: d.ProductIDs,
		UnitAmount:  d.Footprint.UnitaryProductAmount,
		Unit:        d.Footprint.DeclaredUnit,
	}
	if err := q.CreateProduct(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	log.Ctx(ctx).Debug().Str("product_id", productID.String()).Str("org_id", orgID.String()).Msg("Created product for inbound footprint")
	return product, nil
}

func upsert(ctx context.Context, q store.Queries, next *models.ProductFootprint, external bool) (*models.ProductFootprint, Outcome, error) {
	current, err := q.GetActiveFootprintByProduct(ctx, next.ProductID)
	if err != nil && !errors.Is(err, store.ErrFootprintNotFound) {
		return nil, 0, fmt.Errorf("failed to get active footprint: %w", err)
	}

	now := time.Now().UTC()
	footprintID, err := uuid.NewV7()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to generate footprint ID: %w", err)
	}
	next.FootprintID = footprintID
	next.Status = models.FootprintStatusActive
	next.StatusComment = ""
	if next.CreatedAt.IsZero() {
		next.CreatedAt = now
	}
	next.UpdatedAt = now

	var outcome Outcome
	switch {
	case current == nil:
		outcome = Created
		if !external || next.DataID == uuid.Nil {
			if next.DataID, err = uuid.NewV7(); err != nil {
				return nil, 0, fmt.Errorf("failed to generate data ID: %w", err)
			}
			next.Version = 0
		}

	case sameContent(current, next):
		return current, Unchanged, nil

	case external && next.DataID != uuid.Nil && next.DataID != current.DataID:
		// the sender started a new lineage
		outcome = Replaced
		next.PrecedingDataIDs = appendPreceding(current, next.PrecedingDataIDs)

	case current.IsMajorChange(next):
		outcome = Replaced
		if next.DataID, err = uuid.NewV7(); err != nil {
			return nil, 0, fmt.Errorf("failed to generate data ID: %w", err)
		}
		next.Version = 0
		next.PrecedingDataIDs = appendPreceding(current, current.PrecedingDataIDs)

	default:
		outcome = Revised
		next.DataID = current.DataID
		next.Version = current.Version + 1
		next.PrecedingDataIDs = current.PrecedingDataIDs
	}

	if err := bumpPastExisting(ctx, q, next); err != nil {
		return nil, 0, err
	}

	if current != nil {
		comment := fmt.Sprintf("superseded by %s version %d", next.DataID, next.Version)
		if err := q.DeprecateFootprint(ctx, current.FootprintID, comment); err != nil {
			return nil, 0, fmt.Errorf("failed to deprecate footprint: %w", err)
		}
	}

	if err := q.InsertFootprint(ctx, next); err != nil {
		return nil, 0, fmt.Errorf("failed to insert footprint: %w", err)
	}

	log.Ctx(ctx).Info().
		Str("data_id", next.DataID.String()).
		Int("version", next.Version).
		Str("product_id", next.ProductID.String()).
		Stringer("outcome", outcome).
		Msg("Saved footprint")

	return next, outcome, nil
}

// bumpPastExisting keeps (DataID, Version) unique when a sender reuses a
// version number.
func bumpPastExisting(ctx context.Context, q store.Queries, next *models.ProductFootprint) error {
	latest, err := q.GetLatestFootprintByDataID(ctx, next.DataID)
	if errors.Is(err, store.ErrFootprintNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get latest footprint: %w", err)
	}
	if latest.Version >= next.Version {
		next.Version = latest.Version + 1
	}
	return nil
}

func appendPreceding(current *models.ProductFootprint, preceding []uuid.UUID) []uuid.UUID {
	for _, id := range preceding {
		if id == current.DataID {
			return preceding
		}
	}
	return append(append([]uuid.UUID(nil), preceding...), current.DataID)
}

// sameContent compares everything except identity, lineage and bookkeeping
// fields.
func sameContent(a, b *models.ProductFootprint) bool {
	ja, errA := json.Marshal(contentOf(a))
	jb, errB := json.Marshal(contentOf(b))
	return errA == nil && errB == nil && bytes.Equal(ja, jb)
}

func contentOf(fp *models.ProductFootprint) models.ProductFootprint {
	c := *fp
	c.FootprintID = uuid.Nil
	c.DataID = uuid.Nil
	c.Version = 0
	c.Status = ""
	c.StatusComment = ""
	c.OrgID = uuid.Nil
	c.ProductID = uuid.Nil
	c.PrecedingDataIDs = nil
	c.CreatedAt = time.Time{}
	c.UpdatedAt = time.Time{}

	c.ReferencePeriodStart = c.ReferencePeriodStart.UTC()
	c.ReferencePeriodEnd = c.ReferencePeriodEnd.UTC()
	c.ValidityPeriodStart = utc(c.ValidityPeriodStart)
	c.ValidityPeriodEnd = utc(c.ValidityPeriodEnd)
	if c.Assurance != nil {
		a := *c.Assurance
		a.CompletedAt = utc(a.CompletedAt)
		c.Assurance = &a
	}

	if len(c.SecondaryEmissionFactorSources) == 0 {
		c.SecondaryEmissionFactorSources = nil
	}
	if len(c.GWPReports) == 0 {
		c.GWPReports = nil
	}
	if len(c.AccountingStandards) == 0 {
		c.AccountingStandards = nil
	}
	if len(c.CarbonAccountingRules) == 0 {
		c.CarbonAccountingRules = nil
	} else {
		rules := make([]models.CarbonAccountingRule, len(c.CarbonAccountingRules))
		for i, r := range c.CarbonAccountingRules {
			if len(r.RuleNames) == 0 {
				r.RuleNames = nil
			}
			rules[i] = r
		}
		c.CarbonAccountingRules = rules
	}
	return c
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
