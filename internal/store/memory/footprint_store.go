package memory

import (
	"context"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/pcfhub/internal/filter"
	"github.com/wolfeidau/pcfhub/internal/models"
	"github.com/wolfeidau/pcfhub/internal/store"
)

// InsertFootprint stores a footprint row. At most one row per product may be Active.
func (q *queries) InsertFootprint(ctx context.Context, fp *models.ProductFootprint) error {
	st, unlock := q.write()
	defer unlock()

	if _, ok := st.products[fp.ProductID]; !ok {
		return store.ErrProductNotFound
	}
	if fp.Status == models.FootprintStatusActive {
		for _, existing := range st.footprints {
			if existing.ProductID == fp.ProductID && existing.Status == models.FootprintStatusActive {
				return store.ErrFootprintAlreadyActive
			}
		}
	}
	st.footprints[fp.FootprintID] = cloneFootprint(fp)
	return nil
}

func (q *queries) GetFootprint(ctx context.Context, footprintID uuid.UUID) (*models.ProductFootprint, error) {
	st, unlock := q.read()
	defer unlock()

	fp, ok := st.footprints[footprintID]
	if !ok {
		return nil, store.ErrFootprintNotFound
	}
	return cloneFootprint(fp), nil
}

func (q *queries) GetActiveFootprintByProduct(ctx context.Context, productID uuid.UUID) (*models.ProductFootprint, error) {
	st, unlock := q.read()
	defer unlock()

	for _, fp := range st.footprints {
		if fp.ProductID == productID && fp.Status == models.FootprintStatusActive {
			return cloneFootprint(fp), nil
		}
	}
	return nil, store.ErrFootprintNotFound
}

func (q *queries) GetLatestFootprintByDataID(ctx context.Context, dataID uuid.UUID) (*models.ProductFootprint, error) {
	st, unlock := q.read()
	defer unlock()

	var latest *models.ProductFootprint
	for _, fp := range st.footprints {
		if fp.DataID == dataID && (latest == nil || fp.Version > latest.Version) {
			latest = fp
		}
	}
	if latest == nil {
		return nil, store.ErrFootprintNotFound
	}
	return cloneFootprint(latest), nil
}

func (q *queries) DeprecateFootprint(ctx context.Context, footprintID uuid.UUID, comment string) error {
	st, unlock := q.write()
	defer unlock()

	fp, ok := st.footprints[footprintID]
	if !ok || fp.Status != models.FootprintStatusActive {
		return store.ErrNoRowsAffected
	}

	updated := cloneFootprint(fp)
	updated.Status = models.FootprintStatusDeprecated
	updated.StatusComment = comment
	updated.UpdatedAt = time.Now()
	st.footprints[footprintID] = updated
	return nil
}

// ListFootprints evaluates the query condition against each lineage's latest row.
func (q *queries) ListFootprints(ctx context.Context, fq store.FootprintQuery) ([]*models.ProductFootprint, error) {
	st, unlock := q.read()
	defer unlock()

	latest := make(map[uuid.UUID]*models.ProductFootprint)
	for _, fp := range st.footprints {
		if !slices.Contains(fq.OrgIDs, fp.OrgID) {
			continue
		}
		if cur, ok := latest[fp.DataID]; !ok || fp.Version > cur.Version {
			latest[fp.DataID] = fp
		}
	}

	var out []*models.ProductFootprint
	for _, fp := range latest {
		record := filter.Record{
			Footprint:    fp,
			Product:      st.products[fp.ProductID],
			Organization: st.organizations[fp.OrgID],
		}
		if record.Product == nil || record.Organization == nil {
			continue
		}
		if fq.Condition.Match(record) {
			out = append(out, cloneFootprint(fp))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].FootprintID.String() > out[j].FootprintID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return paginate(out, fq.Limit, fq.Offset), nil
}
