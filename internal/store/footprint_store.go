package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/wolfeidau/pcfhub/internal/filter"
	"github.com/wolfeidau/pcfhub/internal/models"
)

// Sentinel errors for footprint store operations
var (
	ErrFootprintNotFound      = errors.New("footprint not found")
	ErrFootprintAlreadyActive = errors.New("product already has an active footprint")
)

// FootprintQuery selects footprints for the partner catalog.
type FootprintQuery struct {
	OrgIDs    []uuid.UUID       // owning organizations to include
	Condition *filter.Condition // nil matches everything
	Limit     int               // 0 means no limit
	Offset    int
}

// FootprintStore defines the interface for footprint storage operations.
type FootprintStore interface {
	// InsertFootprint stores a footprint row and its child collections.
	InsertFootprint(ctx context.Context, fp *models.ProductFootprint) error

	// GetFootprint retrieves one footprint row by its internal ID.
	GetFootprint(ctx context.Context, footprintID uuid.UUID) (*models.ProductFootprint, error)

	// GetActiveFootprintByProduct returns the Active row of a product.
	GetActiveFootprintByProduct(ctx context.Context, productID uuid.UUID) (*models.ProductFootprint, error)

	// GetLatestFootprintByDataID returns the highest version of a lineage.
	GetLatestFootprintByDataID(ctx context.Context, dataID uuid.UUID) (*models.ProductFootprint, error)

	// DeprecateFootprint marks an Active row Deprecated.
	// Returns ErrNoRowsAffected if the row is not Active.
	DeprecateFootprint(ctx context.Context, footprintID uuid.UUID, comment string) error

	// ListFootprints returns the latest row of every lineage matching the query,
	// newest first.
	ListFootprints(ctx context.Context, q FootprintQuery) ([]*models.ProductFootprint, error)
}
