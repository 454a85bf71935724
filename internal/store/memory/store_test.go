package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/pcfhub/internal/filter"
	"github.com/wolfeidau/pcfhub/internal/models"
	"github.com/wolfeidau/pcfhub/internal/store"
)

func seedOrganization(t *testing.T, s *Store, name string, parent *uuid.UUID) *models.Organization {
	t.Helper()
	org := &models.Organization{
		OrgID:     uuid.Must(uuid.NewV7()),
		ParentID:  parent,
		Name:      name,
		Type:      models.OrganizationTypeInternal,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, s.CreateOrganization(context.Background(), org))
	return org
}

func TestWithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	org := seedOrganization(t, s, "Tenant", nil)

	errBoom := errors.New("boom")
	err := s.WithTx(ctx, func(q store.Queries) error {
		require.NoError(t, q.CreateProduct(ctx, &models.Product{ProductID: uuid.Must(uuid.NewV7()), OrgID: org.OrgID, Name: "p"}))
		org.Name = "Renamed"
		require.NoError(t, q.UpdateOrganization(ctx, org))
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	got, err := s.GetOrganization(ctx, org.OrgID)
	require.NoError(t, err)
	require.Equal(t, "Tenant", got.Name)
}

func TestWithTxCommits(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	var orgID uuid.UUID
	err := s.WithTx(ctx, func(q store.Queries) error {
		org := &models.Organization{OrgID: uuid.Must(uuid.NewV7()), Name: "Tenant"}
		orgID = org.OrgID
		return q.CreateOrganization(ctx, org)
	})
	require.NoError(t, err)

	_, err = s.GetOrganization(ctx, orgID)
	require.NoError(t, err)
}

func TestReturnedEntitiesAreCopies(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	org := seedOrganization(t, s, "Tenant", nil)

	got, err := s.GetOrganization(ctx, org.OrgID)
	require.NoError(t, err)
	got.Name = "mutated"
	got.Identifiers = append(got.Identifiers, models.Identifier{Type: models.IdentifierLEI, Value: "x"})

	again, err := s.GetOrganization(ctx, org.OrgID)
	require.NoError(t, err)
	require.Equal(t, "Tenant", again.Name)
	require.Empty(t, again.Identifiers)
}

func TestOneHubPerOrganization(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	org := seedOrganization(t, s, "Tenant", nil)

	hub := func() *models.DataSource {
		return &models.DataSource{DataSourceID: uuid.Must(uuid.NewV7()), OrgID: org.OrgID, Type: models.DataSourceTypeHub}
	}
	require.NoError(t, s.CreateDataSource(ctx, hub()))
	require.ErrorIs(t, s.CreateDataSource(ctx, hub()), store.ErrHubAlreadyRegistered)

	partner := &models.DataSource{DataSourceID: uuid.Must(uuid.NewV7()), OrgID: org.OrgID, Type: models.DataSourceTypePartner}
	require.NoError(t, s.CreateDataSource(ctx, partner))

	list, err := s.ListDataSourcesByOrganization(ctx, org.OrgID)
	require.NoError(t, err)
	require.Len(t, list, 2)
}

func TestTaskEventIDIsUniquePerDirection(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	org := seedOrganization(t, s, "Tenant", nil)

	task := func(dir models.TaskDirection) *models.Task {
		return &models.Task{
			TaskID:         uuid.Must(uuid.NewV7()),
			ClientOrgID:    org.OrgID,
			RecipientOrgID: org.OrgID,
			Type:           models.TaskTypeNotification,
			Direction:      dir,
			Status:         models.TaskStatusUnread,
			EventID:        "evt",
			CreatedAt:      time.Now(),
		}
	}
	require.NoError(t, s.CreateTask(ctx, task(models.TaskDirectionInbound)))
	require.ErrorIs(t, s.CreateTask(ctx, task(models.TaskDirectionInbound)), store.ErrTaskAlreadyExists)
	require.NoError(t, s.CreateTask(ctx, task(models.TaskDirectionOutbound)))

	list, err := s.ListTasks(ctx, store.TaskQuery{OrgIDs: []uuid.UUID{org.OrgID}, Limit: 1})
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestListFootprints(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	org := seedOrganization(t, s, "Tenant", nil)
	other := seedOrganization(t, s, "Other", nil)

	product := &models.Product{
		ProductID:   uuid.Must(uuid.NewV7()),
		OrgID:       org.OrgID,
		CPC:         "3342",
		Identifiers: []models.Identifier{{Type: models.IdentifierSGTIN, Value: "1"}},
	}
	require.NoError(t, s.CreateProduct(ctx, product))

	dataID := uuid.Must(uuid.NewV7())
	v0 := &models.ProductFootprint{
		FootprintID: uuid.Must(uuid.NewV7()), DataID: dataID, Version: 0,
		Status: models.FootprintStatusDeprecated, OrgID: org.OrgID, ProductID: product.ProductID,
		DeclaredUnit: "kg", CreatedAt: time.Now().Add(-time.Hour),
	}
	v1 := &models.ProductFootprint{
		FootprintID: uuid.Must(uuid.NewV7()), DataID: dataID, Version: 1,
		Status: models.FootprintStatusActive, OrgID: org.OrgID, ProductID: product.ProductID,
		DeclaredUnit: "kg", CreatedAt: time.Now(),
	}
	require.NoError(t, s.InsertFootprint(ctx, v0))
	require.NoError(t, s.InsertFootprint(ctx, v1))

	dup := *v1
	dup.FootprintID = uuid.Must(uuid.NewV7())
	require.ErrorIs(t, s.InsertFootprint(ctx, &dup), store.ErrFootprintAlreadyActive)

	cond, err := filter.ParseAndCompile("productIds/any(p:(p eq 'urn:epc:id:sgtin:1'))")
	require.NoError(t, err)

	list, err := s.ListFootprints(ctx, store.FootprintQuery{OrgIDs: []uuid.UUID{org.OrgID}, Condition: cond})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, 1, list[0].Version)

	list, err = s.ListFootprints(ctx, store.FootprintQuery{OrgIDs: []uuid.UUID{other.OrgID}})
	require.NoError(t, err)
	require.Empty(t, list)

	require.NoError(t, s.DeprecateFootprint(ctx, v1.FootprintID, "replaced"))
	require.ErrorIs(t, s.DeprecateFootprint(ctx, v1.FootprintID, "replaced"), store.ErrNoRowsAffected)

	_, err = s.GetActiveFootprintByProduct(ctx, product.ProductID)
	require.ErrorIs(t, err, store.ErrFootprintNotFound)

	latest, err := s.GetLatestFootprintByDataID(ctx, dataID)
	require.NoError(t, err)
	require.Equal(t, models.FootprintStatusDeprecated, latest.Status)
	require.Equal(t, "replaced", latest.StatusComment)
}
