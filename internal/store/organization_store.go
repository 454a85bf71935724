package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/wolfeidau/pcfhub/internal/models"
)

// Sentinel errors for organization store operations
var (
	ErrOrganizationNotFound      = errors.New("organization not found")
	ErrOrganizationAlreadyExists = errors.New("organization already exists")
)

// OrganizationStore defines the interface for organization storage operations.
// Organizations form trees whose roots are tenants.
type OrganizationStore interface {
	// CreateOrganization stores the organization together with its identifiers.
	// Returns ErrOrganizationAlreadyExists if the ID is taken.
	CreateOrganization(ctx context.Context, org *models.Organization) error

	// GetOrganization retrieves an organization by ID.
	// Returns ErrOrganizationNotFound if the organization doesn't exist.
	GetOrganization(ctx context.Context, orgID uuid.UUID) (*models.Organization, error)

	// UpdateOrganization replaces name, public key and identifiers.
	// Returns ErrOrganizationNotFound if the organization doesn't exist.
	UpdateOrganization(ctx context.Context, org *models.Organization) error

	// FindOrganizationsByIdentifier returns every organization carrying the identifier.
	FindOrganizationsByIdentifier(ctx context.Context, id models.Identifier) ([]*models.Organization, error)

	// FindOrganizationsByName returns every organization with exactly this name.
	FindOrganizationsByName(ctx context.Context, name string) ([]*models.Organization, error)

	// OrganizationAncestry returns the child to parent map of all organizations.
	OrganizationAncestry(ctx context.Context) (Ancestry, error)
}
