package memory

import (
	"context"

	"github.com/wolfeidau/pcfhub/internal/models"
	"github.com/wolfeidau/pcfhub/internal/store"
)

func (q *queries) CreatePartnerClient(ctx context.Context, c *models.PartnerClient) error {
	st, unlock := q.write()
	defer unlock()

	if _, exists := st.partnerClients[c.ClientID]; exists {
		return store.ErrPartnerClientAlreadyExists
	}
	st.partnerClients[c.ClientID] = clonePartnerClient(c)
	return nil
}

func (q *queries) GetPartnerClient(ctx context.Context, clientID string) (*models.PartnerClient, error) {
	st, unlock := q.read()
	defer unlock()

	c, ok := st.partnerClients[clientID]
	if !ok || c.IsRevoked() {
		return nil, store.ErrPartnerClientNotFound
	}
	return clonePartnerClient(c), nil
}
