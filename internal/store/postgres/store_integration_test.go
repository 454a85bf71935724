//go:build integration

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/wolfeidau/pcfhub/internal/filter"
	"github.com/wolfeidau/pcfhub/internal/models"
	"github.com/wolfeidau/pcfhub/internal/store"
)

func setupPostgresContainer(t *testing.T, ctx context.Context) (*Store, func()) {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	pool, err := NewPool(ctx, &PoolConfig{
		ConnString: fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port()),
	})
	require.NoError(t, err)
	require.NoError(t, Migrate(ctx, pool))

	// second run is a no-op
	require.NoError(t, Migrate(ctx, pool))

	s := NewStore(pool)
	cleanup := func() {
		s.Close()
		_ = container.Terminate(ctx)
	}
	return s, cleanup
}

func newOrg(name string, parent *uuid.UUID) *models.Organization {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.Organization{
		OrgID:     uuid.Must(uuid.NewV7()),
		ParentID:  parent,
		Name:      name,
		Type:      models.OrganizationTypeInternal,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestIntegration_Store(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	tenant := newOrg("Tenant", nil)
	tenant.Identifiers = []models.Identifier{{Type: models.IdentifierLEI, Value: "LEI-T"}}
	require.NoError(t, s.CreateOrganization(ctx, tenant))

	partner := newOrg("Partner", &tenant.OrgID)
	partner.Type = models.OrganizationTypeBusinessPartner
	require.NoError(t, s.CreateOrganization(ctx, partner))

	t.Run("organization lookups", func(t *testing.T) {
		got, err := s.GetOrganization(ctx, tenant.OrgID)
		require.NoError(t, err)
		require.Equal(t, tenant.Identifiers, got.Identifiers)

		found, err := s.FindOrganizationsByIdentifier(ctx, models.Identifier{Type: models.IdentifierLEI, Value: "LEI-T"})
		require.NoError(t, err)
		require.Len(t, found, 1)

		ancestry, err := s.OrganizationAncestry(ctx)
		require.NoError(t, err)
		root, err := ancestry.Root(partner.OrgID)
		require.NoError(t, err)
		require.Equal(t, tenant.OrgID, root)

		require.ErrorIs(t, s.CreateOrganization(ctx, tenant), store.ErrOrganizationAlreadyExists)
	})

	t.Run("one hub per organization", func(t *testing.T) {
		hub := func() *models.DataSource {
			return &models.DataSource{
				DataSourceID: uuid.Must(uuid.NewV7()),
				OrgID:        tenant.OrgID,
				Type:         models.DataSourceTypeHub,
				Username:     "u",
				Password:     "p",
				Endpoints:    []models.Endpoint{{Type: models.EndpointUpdateEvent, URL: "https://hub.example/2/events"}},
				CreatedAt:    time.Now(),
				UpdatedAt:    time.Now(),
			}
		}
		require.NoError(t, s.CreateDataSource(ctx, hub()))
		require.ErrorIs(t, s.CreateDataSource(ctx, hub()), store.ErrHubAlreadyRegistered)

		list, err := s.ListDataSourcesByOrganization(ctx, tenant.OrgID)
		require.NoError(t, err)
		require.Len(t, list, 1)
		require.Len(t, list[0].Endpoints, 1)
	})

	t.Run("transaction rolls back", func(t *testing.T) {
		orphan := newOrg("Orphan", nil)
		err := s.WithTx(ctx, func(q store.Queries) error {
			if err := q.CreateOrganization(ctx, orphan); err != nil {
				return err
			}
			return fmt.Errorf("late failure")
		})
		require.Error(t, err)

		_, err = s.GetOrganization(ctx, orphan.OrgID)
		require.ErrorIs(t, err, store.ErrOrganizationNotFound)
	})

	t.Run("footprints", func(t *testing.T) {
		product := &models.Product{
			ProductID:   uuid.Must(uuid.NewV7()),
			OrgID:       tenant.OrgID,
			Name:        "Coil",
			CPC:         "3342",
			Identifiers: []models.Identifier{{Type: models.IdentifierSGTIN, Value: "1"}},
			CreatedAt:   time.Now(),
			UpdatedAt:   time.Now(),
		}
		require.NoError(t, s.CreateProduct(ctx, product))

		share := 42.5
		fp := &models.ProductFootprint{
			FootprintID:                    uuid.Must(uuid.NewV7()),
			DataID:                         uuid.Must(uuid.NewV7()),
			Status:                         models.FootprintStatusActive,
			OrgID:                          tenant.OrgID,
			ProductID:                      product.ProductID,
			SpecVersion:                    "2.2.0",
			CreatedAt:                      time.Now().UTC().Truncate(time.Microsecond),
			UpdatedAt:                      time.Now().UTC().Truncate(time.Microsecond),
			DeclaredUnit:                   "kg",
			UnitaryProductAmount:           1,
			PCFExcludingBiogenic:           2.5,
			PrimaryDataShare:               &share,
			ReferencePeriodStart:           time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
			ReferencePeriodEnd:             time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			GeographyCountry:               "DE",
			SecondaryEmissionFactorSources: []models.EmissionFactorSource{{Name: "ecoinvent", Version: "3.9"}},
			GWPReports:                     []models.GWPReport{{Source: "AR6"}, {Source: "AR5"}},
			CarbonAccountingRules:          []models.CarbonAccountingRule{{Operator: "PEF", RuleNames: []string{"a", "b"}}},
			DataQuality:                    &models.DataQualityIndicator{CoveragePercent: 90, TechnologicalDQR: 1},
			Assurance:                      &models.Assurance{Assurance: true, ProviderName: "V"},
		}
		require.NoError(t, s.WithTx(ctx, func(q store.Queries) error {
			return q.InsertFootprint(ctx, fp)
		}))

		got, err := s.GetActiveFootprintByProduct(ctx, product.ProductID)
		require.NoError(t, err)
		require.Equal(t, fp.GWPReports, got.GWPReports)
		require.Equal(t, fp.CarbonAccountingRules, got.CarbonAccountingRules)
		require.Equal(t, fp.DataQuality, got.DataQuality)
		require.Equal(t, fp.SecondaryEmissionFactorSources, got.SecondaryEmissionFactorSources)
		require.Equal(t, fp.PrimaryDataShare, got.PrimaryDataShare)

		cond, err := filter.ParseAndCompile("productIds/any(p:(p eq 'urn:epc:id:sgtin:1')) and pcf/declaredUnit eq 'kilogram'")
		require.NoError(t, err)
		list, err := s.ListFootprints(ctx, store.FootprintQuery{OrgIDs: []uuid.UUID{tenant.OrgID}, Condition: cond})
		require.NoError(t, err)
		require.Len(t, list, 1)

		cond, err = filter.ParseAndCompile("pcf/geographyCountry eq 'FR'")
		require.NoError(t, err)
		list, err = s.ListFootprints(ctx, store.FootprintQuery{OrgIDs: []uuid.UUID{tenant.OrgID}, Condition: cond})
		require.NoError(t, err)
		require.Empty(t, list)

		require.NoError(t, s.DeprecateFootprint(ctx, fp.FootprintID, "superseded"))
		require.ErrorIs(t, s.DeprecateFootprint(ctx, fp.FootprintID, "again"), store.ErrNoRowsAffected)
	})

	t.Run("tasks", func(t *testing.T) {
		task := &models.Task{
			TaskID:         uuid.Must(uuid.NewV7()),
			ClientOrgID:    partner.OrgID,
			RecipientOrgID: tenant.OrgID,
			Type:           models.TaskTypeRequest,
			Direction:      models.TaskDirectionInbound,
			Status:         models.TaskStatusUnread,
			EventID:        "evt-1",
			Payload:        json.RawMessage(`{"productIds":["urn:epc:id:sgtin:1"]}`),
			CreatedAt:      time.Now(),
			UpdatedAt:      time.Now(),
		}
		require.NoError(t, s.CreateTask(ctx, task))

		dup := *task
		dup.TaskID = uuid.Must(uuid.NewV7())
		require.ErrorIs(t, s.CreateTask(ctx, &dup), store.ErrTaskAlreadyExists)

		// a duplicate inside a transaction leaves it committable
		var touched models.Organization
		require.NoError(t, s.WithTx(ctx, func(q store.Queries) error {
			again := *task
			again.TaskID = uuid.Must(uuid.NewV7())
			if err := q.CreateTask(ctx, &again); !errors.Is(err, store.ErrTaskAlreadyExists) {
				return fmt.Errorf("expected duplicate, got %v", err)
			}
			org, err := q.GetOrganization(ctx, partner.OrgID)
			if err != nil {
				return err
			}
			org.Name = "Partner after redelivery"
			touched = *org
			return q.UpdateOrganization(ctx, org)
		}))
		stored, err := s.GetOrganization(ctx, partner.OrgID)
		require.NoError(t, err)
		require.Equal(t, touched.Name, stored.Name)

		got, err := s.GetTaskByEventID(ctx, models.TaskDirectionInbound, "evt-1")
		require.NoError(t, err)
		require.JSONEq(t, string(task.Payload), string(got.Payload))

		list, err := s.ListTasks(ctx, store.TaskQuery{OrgIDs: []uuid.UUID{tenant.OrgID}, Status: []models.TaskStatus{models.TaskStatusUnread}})
		require.NoError(t, err)
		require.Len(t, list, 1)

		require.NoError(t, s.DeleteTask(ctx, task.TaskID))
		_, err = s.GetTask(ctx, task.TaskID)
		require.ErrorIs(t, err, store.ErrTaskNotFound)
	})
}
