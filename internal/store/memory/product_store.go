package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/wolfeidau/pcfhub/internal/models"
	"github.com/wolfeidau/pcfhub/internal/store"
)

func (q *queries) CreateProduct(ctx context.Context, p *models.Product) error {
	st, unlock := q.write()
	defer unlock()

	if _, ok := st.organizations[p.OrgID]; !ok {
		return store.ErrOrganizationNotFound
	}
	st.products[p.ProductID] = cloneProduct(p)
	return nil
}

func (q *queries) GetProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	st, unlock := q.read()
	defer unlock()

	p, ok := st.products[productID]
	if !ok {
		return nil, store.ErrProductNotFound
	}
	return cloneProduct(p), nil
}

func (q *queries) FindProductsByIdentifier(ctx context.Context, orgID uuid.UUID, id models.Identifier) ([]*models.Product, error) {
	st, unlock := q.read()
	defer unlock()

	var out []*models.Product
	for _, p := range st.products {
		if p.OrgID != orgID {
			continue
		}
		for _, existing := range p.Identifiers {
			if existing == id {
				out = append(out, cloneProduct(p))
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
