package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/pcfhub/internal/models"
	"github.com/wolfeidau/pcfhub/internal/store"
)

var footprintColumnList = []string{
	"footprint_id", "data_id", "version", "status", "status_comment", "org_id", "product_id",
	"preceding_data_ids", "spec_version", "comment", "created_at", "updated_at",
	"validity_period_start", "validity_period_end", "declared_unit", "unitary_product_amount",
	"pcf_excluding_biogenic", "pcf_including_biogenic", "fossil_ghg_emissions", "fossil_carbon_content",
	"biogenic_carbon_content", "dluc_ghg_emissions", "land_management_ghg_emissions",
	"other_biogenic_ghg_emissions", "iluc_ghg_emissions", "biogenic_carbon_withdrawal",
	"aircraft_ghg_emissions", "biogenic_accounting_methodology", "boundary_processes_description",
	"reference_period_start", "reference_period_end", "geography_country",
	"geography_country_subdivision", "geography_region_or_subregion", "exempted_emissions_percent",
	"exempted_emissions_description", "packaging_emissions_included", "packaging_ghg_emissions",
	"allocation_rules_description", "uncertainty_assessment_description", "primary_data_share",
	"secondary_emission_factor_sources",
}

var (
	footprintColumns         = strings.Join(footprintColumnList, ", ")
	footprintColumnsAliased  = "f." + strings.Join(footprintColumnList, ", f.")
	footprintInsertArguments = placeholders(len(footprintColumnList))
)

func placeholders(n int) string {
	p := make([]string, n)
	for i := range p {
		p[i] = fmt.Sprintf("$%d", i+1)
	}
	return strings.Join(p, ", ")
}

// InsertFootprint stores a footprint and its child collections. Callers run
// it inside WithTx so a failing child insert leaves no orphan row.
func (q *queries) InsertFootprint(ctx context.Context, fp *models.ProductFootprint) error {
	sources, err := json.Marshal(orEmpty(fp.SecondaryEmissionFactorSources))
	if err != nil {
		return fmt.Errorf("failed to encode emission factor sources: %w", err)
	}

	query := `INSERT INTO product_footprints (` + footprintColumns + `) VALUES (` + footprintInsertArguments + `)`
	_, err = q.db.Exec(ctx, query,
		fp.FootprintID, fp.DataID, fp.Version, fp.Status, fp.StatusComment, fp.OrgID, fp.ProductID,
		orEmpty(fp.PrecedingDataIDs), fp.SpecVersion, fp.Comment, fp.CreatedAt, fp.UpdatedAt,
		fp.ValidityPeriodStart, fp.ValidityPeriodEnd, fp.DeclaredUnit, fp.UnitaryProductAmount,
		fp.PCFExcludingBiogenic, fp.PCFIncludingBiogenic, fp.FossilGHGEmissions, fp.FossilCarbonContent,
		fp.BiogenicCarbonContent, fp.DLUCGHGEmissions, fp.LandManagementGHGEmissions,
		fp.OtherBiogenicGHGEmissions, fp.ILUCGHGEmissions, fp.BiogenicCarbonWithdrawal,
		fp.AircraftGHGEmissions, fp.BiogenicAccountingMethodology, fp.BoundaryProcessesDescription,
		fp.ReferencePeriodStart, fp.ReferencePeriodEnd, fp.GeographyCountry,
		fp.GeographyCountrySubdivision, fp.GeographyRegionOrSubregion, fp.ExemptedEmissionsPercent,
		fp.ExemptedEmissionsDescription, fp.PackagingEmissionsIncluded, fp.PackagingGHGEmissions,
		fp.AllocationRulesDescription, fp.UncertaintyAssessmentDescription, fp.PrimaryDataShare,
		string(sources),
	)
	if err != nil {
		return fmt.Errorf("failed to insert footprint: %w", mapPostgresError(err))
	}

	if err := q.insertFootprintChildren(ctx, fp); err != nil {
		return err
	}

	log.Debug().
		Str("footprint_id", fp.FootprintID.String()).
		Str("data_id", fp.DataID.String()).
		Int("version", fp.Version).
		Msg("Inserted footprint")

	return nil
}

func (q *queries) insertFootprintChildren(ctx context.Context, fp *models.ProductFootprint) error {
	for i, r := range fp.GWPReports {
		if _, err := q.db.Exec(ctx,
			`INSERT INTO footprint_gwp_reports (footprint_id, position, source) VALUES ($1, $2, $3)`,
			fp.FootprintID, i, r.Source); err != nil {
			return fmt.Errorf("failed to insert gwp report: %w", mapPostgresError(err))
		}
	}
	for i, s := range fp.AccountingStandards {
		if _, err := q.db.Exec(ctx,
			`INSERT INTO footprint_accounting_standards (footprint_id, position, name) VALUES ($1, $2, $3)`,
			fp.FootprintID, i, s.Name); err != nil {
			return fmt.Errorf("failed to insert accounting standard: %w", mapPostgresError(err))
		}
	}
	for i, r := range fp.CarbonAccountingRules {
		if _, err := q.db.Exec(ctx,
			`INSERT INTO footprint_carbon_accounting_rules (footprint_id, position, operator, rule_names, other_operator_name)
			 VALUES ($1, $2, $3, $4, $5)`,
			fp.FootprintID, i, r.Operator, orEmpty(r.RuleNames), r.OtherOperatorName); err != nil {
			return fmt.Errorf("failed to insert carbon accounting rule: %w", mapPostgresError(err))
		}
	}
	if dq := fp.DataQuality; dq != nil {
		if _, err := q.db.Exec(ctx,
			`INSERT INTO footprint_data_quality (footprint_id, coverage_percent, technological_dqr, temporal_dqr,
			 geographical_dqr, completeness_dqr, reliability_dqr) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			fp.FootprintID, dq.CoveragePercent, dq.TechnologicalDQR, dq.TemporalDQR,
			dq.GeographicalDQR, dq.CompletenessDQR, dq.ReliabilityDQR); err != nil {
			return fmt.Errorf("failed to insert data quality: %w", mapPostgresError(err))
		}
	}
	if a := fp.Assurance; a != nil {
		if _, err := q.db.Exec(ctx,
			`INSERT INTO footprint_assurance (footprint_id, assurance, coverage, level, boundary, provider_name,
			 completed_at, standard_name, comments) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			fp.FootprintID, a.Assurance, a.Coverage, a.Level, a.Boundary, a.ProviderName,
			a.CompletedAt, a.StandardName, a.Comments); err != nil {
			return fmt.Errorf("failed to insert assurance: %w", mapPostgresError(err))
		}
	}
	return nil
}

// GetFootprint retrieves one footprint row by internal ID.
func (q *queries) GetFootprint(ctx context.Context, footprintID uuid.UUID) (*models.ProductFootprint, error) {
	query := `SELECT ` + footprintColumns + ` FROM product_footprints WHERE footprint_id = $1`
	return q.getFootprint(ctx, query, footprintID)
}

// GetActiveFootprintByProduct returns the Active row of a product.
func (q *queries) GetActiveFootprintByProduct(ctx context.Context, productID uuid.UUID) (*models.ProductFootprint, error) {
	query := `SELECT ` + footprintColumns + ` FROM product_footprints WHERE product_id = $1 AND status = 'Active'`
	return q.getFootprint(ctx, query, productID)
}

// GetLatestFootprintByDataID returns the highest version of a lineage.
func (q *queries) GetLatestFootprintByDataID(ctx context.Context, dataID uuid.UUID) (*models.ProductFootprint, error) {
	query := `SELECT ` + footprintColumns + ` FROM product_footprints WHERE data_id = $1 ORDER BY version DESC LIMIT 1`
	return q.getFootprint(ctx, query, dataID)
}

func (q *queries) getFootprint(ctx context.Context, query string, args ...any) (*models.ProductFootprint, error) {
	fp, err := scanFootprint(q.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrFootprintNotFound
		}
		return nil, fmt.Errorf("failed to get footprint: %w", err)
	}
	if err := q.loadFootprintChildren(ctx, []*models.ProductFootprint{fp}); err != nil {
		return nil, err
	}
	return fp, nil
}

// DeprecateFootprint marks an Active row Deprecated.
func (q *queries) DeprecateFootprint(ctx context.Context, footprintID uuid.UUID, comment string) error {
	query := `
		UPDATE product_footprints SET
			status = 'Deprecated',
			status_comment = $2,
			updated_at = $3
		WHERE footprint_id = $1 AND status = 'Active'
	`

	result, err := q.db.Exec(ctx, query, footprintID, comment, time.Now())
	if err != nil {
		return fmt.Errorf("failed to deprecate footprint: %w", mapPostgresError(err))
	}
	if result.RowsAffected() == 0 {
		return store.ErrNoRowsAffected
	}

	log.Debug().Str("footprint_id", footprintID.String()).Msg("Deprecated footprint")
	return nil
}

// ListFootprints returns the latest row of each lineage owned by the query's
// organizations that matches its condition, newest first.
func (q *queries) ListFootprints(ctx context.Context, fq store.FootprintQuery) ([]*models.ProductFootprint, error) {
	args := []any{fq.OrgIDs}
	where, args := fq.Condition.SQL(args)

	var sb strings.Builder
	sb.WriteString(`
		SELECT ` + footprintColumnsAliased + `
		FROM product_footprints f
		JOIN products p ON p.product_id = f.product_id
		JOIN organizations o ON o.org_id = f.org_id
		WHERE f.org_id = ANY($1)
		  AND f.version = (SELECT max(l.version) FROM product_footprints l WHERE l.data_id = f.data_id)
		  AND `)
	sb.WriteString(where)
	sb.WriteString(` ORDER BY f.created_at DESC, f.footprint_id DESC`)
	if fq.Limit > 0 {
		args = append(args, fq.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	if fq.Offset > 0 {
		args = append(args, fq.Offset)
		fmt.Fprintf(&sb, " OFFSET $%d", len(args))
	}

	rows, err := q.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list footprints: %w", mapPostgresError(err))
	}

	var out []*models.ProductFootprint
	for rows.Next() {
		fp, err := scanFootprint(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan footprint: %w", err)
		}
		out = append(out, fp)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating footprints: %w", err)
	}

	if err := q.loadFootprintChildren(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func scanFootprint(row pgx.Row) (*models.ProductFootprint, error) {
	var fp models.ProductFootprint
	var sources []byte
	err := row.Scan(
		&fp.FootprintID, &fp.DataID, &fp.Version, &fp.Status, &fp.StatusComment, &fp.OrgID, &fp.ProductID,
		&fp.PrecedingDataIDs, &fp.SpecVersion, &fp.Comment, &fp.CreatedAt, &fp.UpdatedAt,
		&fp.ValidityPeriodStart, &fp.ValidityPeriodEnd, &fp.DeclaredUnit, &fp.UnitaryProductAmount,
		&fp.PCFExcludingBiogenic, &fp.PCFIncludingBiogenic, &fp.FossilGHGEmissions, &fp.FossilCarbonContent,
		&fp.BiogenicCarbonContent, &fp.DLUCGHGEmissions, &fp.LandManagementGHGEmissions,
		&fp.OtherBiogenicGHGEmissions, &fp.ILUCGHGEmissions, &fp.BiogenicCarbonWithdrawal,
		&fp.AircraftGHGEmissions, &fp.BiogenicAccountingMethodology, &fp.BoundaryProcessesDescription,
		&fp.ReferencePeriodStart, &fp.ReferencePeriodEnd, &fp.GeographyCountry,
		&fp.GeographyCountrySubdivision, &fp.GeographyRegionOrSubregion, &fp.ExemptedEmissionsPercent,
		&fp.ExemptedEmissionsDescription, &fp.PackagingEmissionsIncluded, &fp.PackagingGHGEmissions,
		&fp.AllocationRulesDescription, &fp.UncertaintyAssessmentDescription, &fp.PrimaryDataShare,
		&sources,
	)
	if err != nil {
		return nil, err
	}
	if len(sources) > 0 {
		if err := json.Unmarshal(sources, &fp.SecondaryEmissionFactorSources); err != nil {
			return nil, fmt.Errorf("failed to decode emission factor sources: %w", err)
		}
	}
	if len(fp.PrecedingDataIDs) == 0 {
		fp.PrecedingDataIDs = nil
	}
	return &fp, nil
}

// loadFootprintChildren fills the child collections of fps. It runs after the
// parent rows are closed since a transaction connection can't interleave queries.
func (q *queries) loadFootprintChildren(ctx context.Context, fps []*models.ProductFootprint) error {
	if len(fps) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*models.ProductFootprint, len(fps))
	ids := make([]uuid.UUID, 0, len(fps))
	for _, fp := range fps {
		byID[fp.FootprintID] = fp
		ids = append(ids, fp.FootprintID)
	}

	err := q.eachRow(ctx, `SELECT footprint_id, source FROM footprint_gwp_reports WHERE footprint_id = ANY($1) ORDER BY footprint_id, position`, ids,
		func(rows pgx.Rows) error {
			var id uuid.UUID
			var r models.GWPReport
			if err := rows.Scan(&id, &r.Source); err != nil {
				return err
			}
			byID[id].GWPReports = append(byID[id].GWPReports, r)
			return nil
		})
	if err != nil {
		return fmt.Errorf("failed to load gwp reports: %w", err)
	}

	err = q.eachRow(ctx, `SELECT footprint_id, name FROM footprint_accounting_standards WHERE footprint_id = ANY($1) ORDER BY footprint_id, position`, ids,
		func(rows pgx.Rows) error {
			var id uuid.UUID
			var s models.AccountingStandard
			if err := rows.Scan(&id, &s.Name); err != nil {
				return err
			}
			byID[id].AccountingStandards = append(byID[id].AccountingStandards, s)
			return nil
		})
	if err != nil {
		return fmt.Errorf("failed to load accounting standards: %w", err)
	}

	err = q.eachRow(ctx, `SELECT footprint_id, operator, rule_names, other_operator_name FROM footprint_carbon_accounting_rules WHERE footprint_id = ANY($1) ORDER BY footprint_id, position`, ids,
		func(rows pgx.Rows) error {
			var id uuid.UUID
			var r models.CarbonAccountingRule
			if err := rows.Scan(&id, &r.Operator, &r.RuleNames, &r.OtherOperatorName); err != nil {
				return err
			}
			byID[id].CarbonAccountingRules = append(byID[id].CarbonAccountingRules, r)
			return nil
		})
	if err != nil {
		return fmt.Errorf("failed to load carbon accounting rules: %w", err)
	}

	err = q.eachRow(ctx, `SELECT footprint_id, coverage_percent, technological_dqr, temporal_dqr, geographical_dqr, completeness_dqr, reliability_dqr FROM footprint_data_quality WHERE footprint_id = ANY($1)`, ids,
		func(rows pgx.Rows) error {
			var id uuid.UUID
			var dq models.DataQualityIndicator
			if err := rows.Scan(&id, &dq.CoveragePercent, &dq.TechnologicalDQR, &dq.TemporalDQR, &dq.GeographicalDQR, &dq.CompletenessDQR, &dq.ReliabilityDQR); err != nil {
				return err
			}
			byID[id].DataQuality = &dq
			return nil
		})
	if err != nil {
		return fmt.Errorf("failed to load data quality: %w", err)
	}

	err = q.eachRow(ctx, `SELECT footprint_id, assurance, coverage, level, boundary, provider_name, completed_at, standard_name, comments FROM footprint_assurance WHERE footprint_id = ANY($1)`, ids,
		func(rows pgx.Rows) error {
			var id uuid.UUID
			var a models.Assurance
			if err := rows.Scan(&id, &a.Assurance, &a.Coverage, &a.Level, &a.Boundary, &a.ProviderName, &a.CompletedAt, &a.StandardName, &a.Comments); err != nil {
				return err
			}
			byID[id].Assurance = &a
			return nil
		})
	if err != nil {
		return fmt.Errorf("failed to load assurance: %w", err)
	}

	return nil
}

func (q *queries) eachRow(ctx context.Context, query string, ids []uuid.UUID, fn func(pgx.Rows) error) error {
	rows, err := q.db.Query(ctx, query, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
