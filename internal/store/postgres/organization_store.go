package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/pcfhub/internal/models"
	"github.com/wolfeidau/pcfhub/internal/store"
)

const organizationColumns = `org_id, parent_id, name, org_type, public_key, created_at, updated_at`

// CreateOrganization inserts the organization and its identifiers.
func (q *queries) CreateOrganization(ctx context.Context, org *models.Organization) error {
	query := `
		INSERT INTO organizations (` + organizationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := q.db.Exec(ctx, query,
		org.OrgID,
		org.ParentID,
		org.Name,
		org.Type,
		org.PublicKey,
		org.CreatedAt,
		org.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", mapPostgresError(err))
	}

	if err := q.insertOrganizationIdentifiers(ctx, org.OrgID, org.Identifiers); err != nil {
		return err
	}

	log.Debug().
		Str("org_id", org.OrgID.String()).
		Str("name", org.Name).
		Msg("Created organization")

	return nil
}

// GetOrganization retrieves an organization by ID.
func (q *queries) GetOrganization(ctx context.Context, orgID uuid.UUID) (*models.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE org_id = $1`

	org, err := scanOrganization(q.db.QueryRow(ctx, query, orgID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	if err := q.loadOrganizationIdentifiers(ctx, []*models.Organization{org}); err != nil {
		return nil, err
	}
	return org, nil
}

// UpdateOrganization replaces name, public key and identifiers.
func (q *queries) UpdateOrganization(ctx context.Context, org *models.Organization) error {
	org.UpdatedAt = time.Now()

	query := `
		UPDATE organizations SET
			name = $2,
			public_key = $3,
			updated_at = $4
		WHERE org_id = $1
	`

	result, err := q.db.Exec(ctx, query, org.OrgID, org.Name, org.PublicKey, org.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update organization: %w", mapPostgresError(err))
	}
	if result.RowsAffected() == 0 {
		return store.ErrOrganizationNotFound
	}

	if _, err := q.db.Exec(ctx, `DELETE FROM organization_identifiers WHERE org_id = $1`, org.OrgID); err != nil {
		return fmt.Errorf("failed to clear organization identifiers: %w", err)
	}
	if err := q.insertOrganizationIdentifiers(ctx, org.OrgID, org.Identifiers); err != nil {
		return err
	}

	log.Debug().
		Str("org_id", org.OrgID.String()).
		Msg("Updated organization")

	return nil
}

// FindOrganizationsByIdentifier returns organizations carrying the identifier.
func (q *queries) FindOrganizationsByIdentifier(ctx context.Context, id models.Identifier) ([]*models.Organization, error) {
	query := `
		SELECT ` + organizationColumns + `
		FROM organizations
		WHERE org_id IN (
			SELECT org_id FROM organization_identifiers WHERE id_type = $1 AND value = $2
		)
		ORDER BY created_at
	`
	return q.listOrganizations(ctx, query, id.Type, id.Value)
}

// FindOrganizationsByName returns organizations with exactly this name.
func (q *queries) FindOrganizationsByName(ctx context.Context, name string) ([]*models.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE name = $1 ORDER BY created_at`
	return q.listOrganizations(ctx, query, name)
}

// OrganizationAncestry loads the parent link of every organization.
func (q *queries) OrganizationAncestry(ctx context.Context) (store.Ancestry, error) {
	rows, err := q.db.Query(ctx, `SELECT org_id, parent_id FROM organizations WHERE parent_id IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("failed to load organization tree: %w", err)
	}
	defer rows.Close()

	ancestry := store.Ancestry{}
	for rows.Next() {
		var child, parent uuid.UUID
		if err := rows.Scan(&child, &parent); err != nil {
			return nil, fmt.Errorf("failed to scan organization link: %w", err)
		}
		ancestry[child] = parent
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating organization tree: %w", err)
	}
	return ancestry, nil
}

func (q *queries) listOrganizations(ctx context.Context, query string, args ...any) ([]*models.Organization, error) {
	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}

	var orgs []*models.Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		orgs = append(orgs, org)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating organizations: %w", err)
	}

	if err := q.loadOrganizationIdentifiers(ctx, orgs); err != nil {
		return nil, err
	}
	return orgs, nil
}

func scanOrganization(row pgx.Row) (*models.Organization, error) {
	var org models.Organization
	err := row.Scan(
		&org.OrgID,
		&org.ParentID,
		&org.Name,
		&org.Type,
		&org.PublicKey,
		&org.CreatedAt,
		&org.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (q *queries) insertOrganizationIdentifiers(ctx context.Context, orgID uuid.UUID, ids []models.Identifier) error {
	for _, id := range ids {
		_, err := q.db.Exec(ctx,
			`INSERT INTO organization_identifiers (org_id, id_type, value) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
			orgID, id.Type, id.Value)
		if err != nil {
			return fmt.Errorf("failed to insert organization identifier: %w", mapPostgresError(err))
		}
	}
	return nil
}

func (q *queries) loadOrganizationIdentifiers(ctx context.Context, orgs []*models.Organization) error {
	if len(orgs) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*models.Organization, len(orgs))
	ids := make([]uuid.UUID, 0, len(orgs))
	for _, o := range orgs {
		byID[o.OrgID] = o
		ids = append(ids, o.OrgID)
	}

	rows, err := q.db.Query(ctx,
		`SELECT org_id, id_type, value FROM organization_identifiers WHERE org_id = ANY($1) ORDER BY id_type, value`, ids)
	if err != nil {
		return fmt.Errorf("failed to load organization identifiers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var orgID uuid.UUID
		var id models.Identifier
		if err := rows.Scan(&orgID, &id.Type, &id.Value); err != nil {
			return fmt.Errorf("failed to scan organization identifier: %w", err)
		}
		byID[orgID].Identifiers = append(byID[orgID].Identifiers, id)
	}
	return rows.Err()
}
