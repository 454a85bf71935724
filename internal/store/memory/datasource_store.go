package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/wolfeidau/pcfhub/internal/models"
	"github.com/wolfeidau/pcfhub/internal/store"
)

// CreateDataSource stores a data source, enforcing one hub per organization.
func (q *queries) CreateDataSource(ctx context.Context, ds *models.DataSource) error {
	st, unlock := q.write()
	defer unlock()

	if ds.Type == models.DataSourceTypeHub {
		for _, existing := range st.dataSources {
			if existing.OrgID == ds.OrgID && existing.Type == models.DataSourceTypeHub {
				return store.ErrHubAlreadyRegistered
			}
		}
	}
	st.dataSources[ds.DataSourceID] = cloneDataSource(ds)
	return nil
}

func (q *queries) GetDataSource(ctx context.Context, dataSourceID uuid.UUID) (*models.DataSource, error) {
	st, unlock := q.read()
	defer unlock()

	ds, ok := st.dataSources[dataSourceID]
	if !ok {
		return nil, store.ErrDataSourceNotFound
	}
	return cloneDataSource(ds), nil
}

func (q *queries) ListDataSourcesByOrganization(ctx context.Context, orgID uuid.UUID) ([]*models.DataSource, error) {
	st, unlock := q.read()
	defer unlock()

	var out []*models.DataSource
	for _, ds := range st.dataSources {
		if ds.OrgID == orgID {
			out = append(out, cloneDataSource(ds))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
