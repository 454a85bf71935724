package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/pcfhub/internal/models"
	"github.com/wolfeidau/pcfhub/internal/store"
)

const productColumns = `product_id, org_id, parent_id, name, description, cpc, unit_amount, unit, created_at, updated_at`

// CreateProduct inserts the product and its identifiers.
func (q *queries) CreateProduct(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := q.db.Exec(ctx, query,
		p.ProductID,
		p.OrgID,
		p.ParentID,
		p.Name,
		p.Description,
		p.CPC,
		p.UnitAmount,
		p.Unit,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", mapPostgresError(err))
	}

	for _, id := range p.Identifiers {
		_, err := q.db.Exec(ctx,
			`INSERT INTO product_identifiers (product_id, id_type, value) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
			p.ProductID, id.Type, id.Value)
		if err != nil {
			return fmt.Errorf("failed to insert product identifier: %w", mapPostgresError(err))
		}
	}

	log.Debug().
		Str("product_id", p.ProductID.String()).
		Str("org_id", p.OrgID.String()).
		Msg("Created product")

	return nil
}

// GetProduct retrieves a product by ID.
func (q *queries) GetProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE product_id = $1`

	p, err := scanProduct(q.db.QueryRow(ctx, query, productID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	if err := q.loadProductIdentifiers(ctx, []*models.Product{p}); err != nil {
		return nil, err
	}
	return p, nil
}

// FindProductsByIdentifier returns the products of orgID carrying the identifier.
func (q *queries) FindProductsByIdentifier(ctx context.Context, orgID uuid.UUID, id models.Identifier) ([]*models.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE org_id = $1 AND product_id IN (
			SELECT product_id FROM product_identifiers WHERE id_type = $2 AND value = $3
		)
		ORDER BY created_at
	`

	rows, err := q.db.Query(ctx, query, orgID, id.Type, id.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to find products: %w", err)
	}

	var products []*models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	if err := q.loadProductIdentifiers(ctx, products); err != nil {
		return nil, err
	}
	return products, nil
}

func scanProduct(row pgx.Row) (*models.Product, error) {
	var p models.Product
	err := row.Scan(
		&p.ProductID,
		&p.OrgID,
		&p.ParentID,
		&p.Name,
		&p.Description,
		&p.CPC,
		&p.UnitAmount,
		&p.Unit,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (q *queries) loadProductIdentifiers(ctx context.Context, products []*models.Product) error {
	if len(products) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*models.Product, len(products))
	ids := make([]uuid.UUID, 0, len(products))
	for _, p := range products {
		byID[p.ProductID] = p
		ids = append(ids, p.ProductID)
	}

	rows, err := q.db.Query(ctx,
		`SELECT product_id, id_type, value FROM product_identifiers WHERE product_id = ANY($1) ORDER BY id_type, value`, ids)
	if err != nil {
		return fmt.Errorf("failed to load product identifiers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var productID uuid.UUID
		var id models.Identifier
		if err := rows.Scan(&productID, &id.Type, &id.Value); err != nil {
			return fmt.Errorf("failed to scan product identifier: %w", err)
		}
		byID[productID].Identifiers = append(byID[productID].Identifiers, id)
	}
	return rows.Err()
}
