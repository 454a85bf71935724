package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/wolfeidau/pcfhub/internal/models"
)

// ErrProductNotFound is returned when a product doesn't exist.
var ErrProductNotFound = errors.New("product not found")

// ProductStore defines the product operations the federation core needs.
// Full product management lives outside this service.
type ProductStore interface {
	// CreateProduct stores the product together with its identifiers.
	CreateProduct(ctx context.Context, product *models.Product) error

	// GetProduct retrieves a product by ID.
	// Returns ErrProductNotFound if the product doesn't exist.
	GetProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error)

	// FindProductsByIdentifier returns the products of orgID carrying the identifier.
	FindProductsByIdentifier(ctx context.Context, orgID uuid.UUID, id models.Identifier) ([]*models.Product, error)
}
