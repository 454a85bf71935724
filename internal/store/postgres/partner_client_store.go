package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/pcfhub/internal/models"
	"github.com/wolfeidau/pcfhub/internal/store"
)

// CreatePartnerClient stores an issued client credential.
func (q *queries) CreatePartnerClient(ctx context.Context, c *models.PartnerClient) error {
	query := `
		INSERT INTO partner_clients (client_id, org_id, secret_hash, created_at, revoked_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := q.db.Exec(ctx, query, c.ClientID, c.OrgID, c.SecretHash, c.CreatedAt, c.RevokedAt)
	if err != nil {
		return fmt.Errorf("failed to create partner client: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("client_id", c.ClientID).
		Str("org_id", c.OrgID.String()).
		Msg("Created partner client")

	return nil
}

// GetPartnerClient retrieves an active client credential.
func (q *queries) GetPartnerClient(ctx context.Context, clientID string) (*models.PartnerClient, error) {
	query := `
		SELECT client_id, org_id, secret_hash, created_at, revoked_at
		FROM partner_clients
		WHERE client_id = $1 AND revoked_at IS NULL
	`

	var c models.PartnerClient
	err := q.db.QueryRow(ctx, query, clientID).Scan(
		&c.ClientID,
		&c.OrgID,
		&c.SecretHash,
		&c.CreatedAt,
		&c.RevokedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrPartnerClientNotFound
		}
		return nil, fmt.Errorf("failed to get partner client: %w", err)
	}
	return &c, nil
}
