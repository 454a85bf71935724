package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/wolfeidau/pcfhub/internal/models"
)

// Sentinel errors for data source store operations
var (
	ErrDataSourceNotFound   = errors.New("data source not found")
	ErrHubAlreadyRegistered = errors.New("organization already has a hub data source")
)

// DataSourceStore defines the interface for data source storage operations.
type DataSourceStore interface {
	// CreateDataSource stores a data source and its endpoints.
	// Returns ErrHubAlreadyRegistered when a second hub is added to an organization.
	CreateDataSource(ctx context.Context, ds *models.DataSource) error

	// GetDataSource retrieves a data source by ID.
	GetDataSource(ctx context.Context, dataSourceID uuid.UUID) (*models.DataSource, error)

	// ListDataSourcesByOrganization returns the data sources registered for orgID,
	// oldest first.
	ListDataSourcesByOrganization(ctx context.Context, orgID uuid.UUID) ([]*models.DataSource, error)
}
