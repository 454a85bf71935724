package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/pcfhub/internal/models"
	"github.com/wolfeidau/pcfhub/internal/store"
)

// CreateOrganization stores a copy of org.
func (q *queries) CreateOrganization(ctx context.Context, org *models.Organization) error {
	st, unlock := q.write()
	defer unlock()

	if _, exists := st.organizations[org.OrgID]; exists {
		return store.ErrOrganizationAlreadyExists
	}
	st.organizations[org.OrgID] = cloneOrganization(org)
	return nil
}

// GetOrganization retrieves an organization by ID.
func (q *queries) GetOrganization(ctx context.Context, orgID uuid.UUID) (*models.Organization, error) {
	st, unlock := q.read()
	defer unlock()

	org, exists := st.organizations[orgID]
	if !exists {
		return nil, store.ErrOrganizationNotFound
	}
	return cloneOrganization(org), nil
}

// UpdateOrganization replaces name, public key and identifiers.
func (q *queries) UpdateOrganization(ctx context.Context, org *models.Organization) error {
	st, unlock := q.write()
	defer unlock()

	existing, exists := st.organizations[org.OrgID]
	if !exists {
		return store.ErrOrganizationNotFound
	}

	org.UpdatedAt = time.Now()
	updated := cloneOrganization(existing)
	updated.Name = org.Name
	updated.PublicKey = org.PublicKey
	updated.Identifiers = cloneOrganization(org).Identifiers
	updated.UpdatedAt = org.UpdatedAt
	st.organizations[org.OrgID] = updated
	return nil
}

// FindOrganizationsByIdentifier returns organizations carrying the identifier.
func (q *queries) FindOrganizationsByIdentifier(ctx context.Context, id models.Identifier) ([]*models.Organization, error) {
	return q.findOrganizations(func(o *models.Organization) bool { return o.HasIdentifier(id) }), nil
}

// FindOrganizationsByName returns organizations with exactly this name.
func (q *queries) FindOrganizationsByName(ctx context.Context, name string) ([]*models.Organization, error) {
	return q.findOrganizations(func(o *models.Organization) bool { return o.Name == name }), nil
}

func (q *queries) findOrganizations(match func(*models.Organization) bool) []*models.Organization {
	st, unlock := q.read()
	defer unlock()

	var out []*models.Organization
	for _, o := range st.organizations {
		if match(o) {
			out = append(out, cloneOrganization(o))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// OrganizationAncestry returns the child to parent map.
func (q *queries) OrganizationAncestry(ctx context.Context) (store.Ancestry, error) {
	st, unlock := q.read()
	defer unlock()

	ancestry := store.Ancestry{}
	for id, o := range st.organizations {
		if o.ParentID != nil {
			ancestry[id] = *o.ParentID
		}
	}
	return ancestry, nil
}
