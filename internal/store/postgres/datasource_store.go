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

const dataSourceColumns = `data_source_id, org_id, ds_type, name, username, password, public_key, created_at, updated_at`

// CreateDataSource inserts a data source and its endpoints. The partial
// unique index on hub data sources turns a second hub into ErrHubAlreadyRegistered.
func (q *queries) CreateDataSource(ctx context.Context, ds *models.DataSource) error {
	query := `
		INSERT INTO data_sources (` + dataSourceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := q.db.Exec(ctx, query,
		ds.DataSourceID,
		ds.OrgID,
		ds.Type,
		ds.Name,
		ds.Username,
		ds.Password,
		ds.PublicKey,
		ds.CreatedAt,
		ds.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create data source: %w", mapPostgresError(err))
	}

	for _, e := range ds.Endpoints {
		_, err := q.db.Exec(ctx,
			`INSERT INTO data_source_endpoints (data_source_id, endpoint_type, url) VALUES ($1, $2, $3)`,
			ds.DataSourceID, e.Type, e.URL)
		if err != nil {
			return fmt.Errorf("failed to insert data source endpoint: %w", mapPostgresError(err))
		}
	}

	log.Debug().
		Str("data_source_id", ds.DataSourceID.String()).
		Str("org_id", ds.OrgID.String()).
		Str("type", string(ds.Type)).
		Msg("Created data source")

	return nil
}

// GetDataSource retrieves a data source by ID.
func (q *queries) GetDataSource(ctx context.Context, dataSourceID uuid.UUID) (*models.DataSource, error) {
	query := `SELECT ` + dataSourceColumns + ` FROM data_sources WHERE data_source_id = $1`

	ds, err := scanDataSource(q.db.QueryRow(ctx, query, dataSourceID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrDataSourceNotFound
		}
		return nil, fmt.Errorf("failed to get data source: %w", err)
	}

	if err := q.loadEndpoints(ctx, []*models.DataSource{ds}); err != nil {
		return nil, err
	}
	return ds, nil
}

// ListDataSourcesByOrganization returns the data sources of orgID, oldest first.
func (q *queries) ListDataSourcesByOrganization(ctx context.Context, orgID uuid.UUID) ([]*models.DataSource, error) {
	query := `SELECT ` + dataSourceColumns + ` FROM data_sources WHERE org_id = $1 ORDER BY created_at`

	rows, err := q.db.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list data sources: %w", err)
	}

	var out []*models.DataSource
	for rows.Next() {
		ds, err := scanDataSource(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan data source: %w", err)
		}
		out = append(out, ds)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating data sources: %w", err)
	}

	if err := q.loadEndpoints(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func scanDataSource(row pgx.Row) (*models.DataSource, error) {
	var ds models.DataSource
	err := row.Scan(
		&ds.DataSourceID,
		&ds.OrgID,
		&ds.Type,
		&ds.Name,
		&ds.Username,
		&ds.Password,
		&ds.PublicKey,
		&ds.CreatedAt,
		&ds.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ds, nil
}

func (q *queries) loadEndpoints(ctx context.Context, sources []*models.DataSource) error {
	if len(sources) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*models.DataSource, len(sources))
	ids := make([]uuid.UUID, 0, len(sources))
	for _, ds := range sources {
		byID[ds.DataSourceID] = ds
		ids = append(ids, ds.DataSourceID)
	}

	rows, err := q.db.Query(ctx,
		`SELECT data_source_id, endpoint_type, url FROM data_source_endpoints WHERE data_source_id = ANY($1) ORDER BY endpoint_type`, ids)
	if err != nil {
		return fmt.Errorf("failed to load data source endpoints: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		var e models.Endpoint
		if err := rows.Scan(&id, &e.Type, &e.URL); err != nil {
			return fmt.Errorf("failed to scan data source endpoint: %w", err)
		}
		byID[id].Endpoints = append(byID[id].Endpoints, e)
	}
	return rows.Err()
}
