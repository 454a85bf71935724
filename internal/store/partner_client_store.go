package store

import (
	"context"
	"errors"

	"github.com/wolfeidau/pcfhub/internal/models"
)

// Sentinel errors for partner client store operations
var (
	ErrPartnerClientNotFound      = errors.New("partner client not found")
	ErrPartnerClientAlreadyExists = errors.New("partner client already exists")
)

// PartnerClientStore stores credentials issued to partners for our token endpoint.
type PartnerClientStore interface {
	CreatePartnerClient(ctx context.Context, client *models.PartnerClient) error

	// GetPartnerClient returns ErrPartnerClientNotFound for unknown or revoked clients.
	GetPartnerClient(ctx context.Context, clientID string) (*models.PartnerClient, error)
}
