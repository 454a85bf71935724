package federation

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/wolfeidau/pcfhub/internal/apperr"
	"github.com/wolfeidau/pcfhub/internal/auth"
	"github.com/wolfeidau/pcfhub/internal/event"
	"github.com/wolfeidau/pcfhub/internal/models"
	"github.com/wolfeidau/pcfhub/internal/pcf"
	"github.com/wolfeidau/pcfhub/internal/store"
	"github.com/wolfeidau/pcfhub/internal/store/memory"
	"github.com/wolfeidau/pcfhub/internal/vault"
)

const (
	supplierLEI = "529900T8BM49AURSDO55"
	unitLEI     = "5493001KJTIIGC8Y1R12"
)

type tokenCall struct {
	endpoint, username, password string
}

type fakeTokens struct {
	mu    sync.Mutex
	calls []tokenCall
}

func (f *fakeTokens) Token(_ context.Context, endpoint, username, password string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, tokenCall{endpoint, username, password})
	return "token-" + username, nil
}

type posted struct {
	endpoint, token string
	body            []byte
}

type fakeTransport struct {
	mu         sync.Mutex
	posts      []posted
	postErr    error
	footprints map[string]json.RawMessage
}

func (f *fakeTransport) PostEvent(_ context.Context, endpoint, token string, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil {
		return f.postErr
	}
	f.posts = append(f.posts, posted{endpoint, token, body})
	return nil
}

func (f *fakeTransport) GetFootprint(_ context.Context, _, _, id string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.footprints[id]
	if !ok {
		return nil, &apperr.ProtocolError{Code: apperr.CodeNoSuchFootprint, Message: "unknown " + id}
	}
	return raw, nil
}

func (f *fakeTransport) last(t *testing.T) (posted, event.Event) {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.posts)
	p := f.posts[len(f.posts)-1]
	ev, err := event.Decode(p.body)
	require.NoError(t, err)
	return p, ev
}

type fixture struct {
	store     *memory.Store
	vault     *vault.Vault
	tokens    *fakeTokens
	transport *fakeTransport
	d         *Dispatcher
	catalog   *Catalog

	tenant, unit, supplier, stranger *models.Organization
	partnerID                        *auth.Identity
}

func newVault(t *testing.T) *vault.Vault {
	t.Helper()
	v, err := vault.New(bytes.Repeat([]byte("k"), vault.MinSecretLength))
	require.NoError(t, err)
	return v
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	keys, err := auth.GenerateKeyManager()
	require.NoError(t, err)

	f := &fixture{
		store:     memory.NewStore(),
		vault:     newVault(t),
		tokens:    &fakeTokens{},
		transport: &fakeTransport{footprints: map[string]json.RawMessage{}},
	}
	f.d = NewDispatcher(f.store, f.vault, keys, f.tokens, f.transport, "https://us.example/")
	f.catalog = NewCatalog(f.store)

	org := func(name string, parent *uuid.UUID, typ models.OrganizationType, ids ...models.Identifier) *models.Organization {
		o := &models.Organization{OrgID: uuid.Must(uuid.NewV7()), ParentID: parent, Name: name, Type: typ, Identifiers: ids}
		require.NoError(t, f.store.CreateOrganization(ctx, o))
		return o
	}
	f.tenant = org("Tenant", nil, models.OrganizationTypeInternal)
	f.unit = org("Plant", &f.tenant.OrgID, models.OrganizationTypeInternal, models.Identifier{Type: models.IdentifierLEI, Value: unitLEI})
	f.supplier = org("Supplier", &f.tenant.OrgID, models.OrganizationTypeBusinessPartner, models.Identifier{Type: models.IdentifierLEI, Value: supplierLEI})
	f.stranger = org("Stranger", &f.tenant.OrgID, models.OrganizationTypeBusinessPartner)

	_, err = f.d.RegisterDataSource(ctx, f.tenant.OrgID, DataSourceInput{
		OrgID:    f.supplier.OrgID,
		Type:     models.DataSourceTypePartner,
		Name:     "supplier node",
		Username: "us-at-supplier",
		Password: "s3cret",
		Endpoints: []BundleEndpoint{
			{Type: models.EndpointAuthenticate, URL: "https://supplier.example/auth/token"},
			{Type: models.EndpointGetFootprints, URL: "https://supplier.example/2/footprints"},
			{Type: models.EndpointUpdateEvent, URL: "https://supplier.example/2/events"},
		},
	})
	require.NoError(t, err)

	f.partnerID = &auth.Identity{UserID: "client", OrganizationID: f.supplier.OrgID, Roles: []string{auth.RolePartner}}
	return f
}

func (f *fixture) tasks(t *testing.T) []*models.Task {
	t.Helper()
	tasks, err := f.store.ListTasks(context.Background(), store.TaskQuery{
		OrgIDs: []uuid.UUID{f.tenant.OrgID, f.unit.OrgID, f.supplier.OrgID, f.stranger.OrgID},
	})
	require.NoError(t, err)
	return tasks
}

func wireFootprint(t *testing.T, companyName string, companyLEI string, dataID uuid.UUID, value float64) json.RawMessage {
	t.Helper()
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	org := &models.Organization{
		OrgID:       uuid.Must(uuid.NewV7()),
		Name:        companyName,
		Identifiers: []models.Identifier{{Type: models.IdentifierLEI, Value: companyLEI}},
	}
	product := &models.Product{
		ProductID:   uuid.Must(uuid.NewV7()),
		OrgID:       org.OrgID,
		Name:        "Cold rolled coil",
		Description: "Steel coil, 2mm",
		CPC:         "41231",
		Identifiers: []models.Identifier{{Type: models.IdentifierSGTIN, Value: "0614141.107346.2018"}},
	}
	fp := &models.ProductFootprint{
		FootprintID:          uuid.Must(uuid.NewV7()),
		DataID:               dataID,
		Status:               models.FootprintStatusActive,
		OrgID:                org.OrgID,
		ProductID:            product.ProductID,
		SpecVersion:          pcf.SpecVersion,
		CreatedAt:            created,
		UpdatedAt:            created,
		DeclaredUnit:         "kg",
		UnitaryProductAmount: 1000,
		PCFExcludingBiogenic: value,
		FossilGHGEmissions:   value,
		ReferencePeriodStart: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		ReferencePeriodEnd:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		GeographyCountry:     "DE",
		GWPReports:           []models.GWPReport{{Source: "AR6"}},
		AccountingStandards:  []models.AccountingStandard{{Name: "GHG Protocol Product standard"}},
		CarbonAccountingRules: []models.CarbonAccountingRule{
			{Operator: "EPD International", RuleNames: []string{"PCR 2019:14"}},
		},
		BoundaryProcessesDescription: "mining to rolling",
	}
	wire, err := pcf.ToWire(fp, product, org)
	require.NoError(t, err)
	raw, err := json.Marshal(wire)
	require.NoError(t, err)
	return raw
}

func newEvent(t *testing.T, ev event.Event) []byte {
	t.Helper()
	raw, err := event.New("https://supplier.example/2/events", ev)
	require.NoError(t, err)
	return raw
}

func TestHandlePublishedIngestsFootprints(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	dataID := uuid.Must(uuid.NewV7())
	f.transport.footprints[dataID.String()] = wireFootprint(t, "Supplier", supplierLEI, dataID, 1.85)

	raw := newEvent(t, &event.Published{PfIDs: []string{dataID.String()}})
	require.NoError(t, f.d.Handle(ctx, f.partnerID, raw))

	fp, err := f.store.GetLatestFootprintByDataID(ctx, dataID)
	require.NoError(t, err)
	require.Equal(t, f.supplier.OrgID, fp.OrgID)
	require.Equal(t, 1.85, fp.PCFExcludingBiogenic)

	require.Len(t, f.tokens.calls, 1)
	require.Equal(t, "https://supplier.example/auth/token", f.tokens.calls[0].endpoint)
	require.Equal(t, "s3cret", f.tokens.calls[0].password)

	tasks := f.tasks(t)
	require.Len(t, tasks, 1)
	require.Equal(t, models.TaskTypeNotification, tasks[0].Type)
	require.Equal(t, models.TaskDirectionInbound, tasks[0].Direction)
	require.Equal(t, models.TaskStatusUnread, tasks[0].Status)
	require.Equal(t, f.tenant.OrgID, tasks[0].RecipientOrgID)

	t.Run("redelivery is a no-op", func(t *testing.T) {
		require.NoError(t, f.d.Handle(ctx, f.partnerID, raw))
		require.Len(t, f.tasks(t), 1)
		require.Len(t, f.tokens.calls, 1)
	})

	t.Run("missing footprint fails the whole event", func(t *testing.T) {
		missing := newEvent(t, &event.Published{PfIDs: []string{dataID.String(), uuid.NewString()}})
		err := f.d.Handle(ctx, f.partnerID, missing)
		require.Error(t, err)
		_, body := apperr.ToProtocol(err)
		require.Equal(t, apperr.CodeNoSuchFootprint, body.Code)
		require.Len(t, f.tasks(t), 1)
	})
}

func TestHandleRejectsBadEvents(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tests := []struct {
		name string
		id   *auth.Identity
		raw  []byte
		code string
	}{
		{"garbage", f.partnerID, []byte("{"), apperr.CodeBadRequest},
		{"unsupported type", f.partnerID, []byte(`{"type":"org.example.Other.v1","specversion":"1.0","id":"1","source":"x","data":{}}`), apperr.CodeNotImplemented},
		{"unknown caller", &auth.Identity{OrganizationID: uuid.Must(uuid.NewV7())}, newEvent(t, &event.RequestCreated{PF: json.RawMessage(`{"productIds":["urn:x"]}`)}), apperr.CodeAccessDenied},
		{"fulfilment of unknown request", f.partnerID, newEvent(t, &event.RequestFulfilled{RequestEventID: "nope", PFs: []json.RawMessage{wireFootprint(t, "Supplier", supplierLEI, uuid.Must(uuid.NewV7()), 1)}}), apperr.CodeNoSuchFootprint},
		{"company update from internal unit", &auth.Identity{OrganizationID: f.unit.OrgID}, newEvent(t, &event.CompanyUpdated{Company: event.Company{Name: "x"}}), apperr.CodeAccessDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.d.Handle(ctx, tt.id, tt.raw)
			require.Error(t, err)
			_, body := apperr.ToProtocol(err)
			require.Equal(t, tt.code, body.Code)
		})
	}
	require.Empty(t, f.tasks(t))
}

func TestHandleCompanyUpdated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	raw := newEvent(t, &event.CompanyUpdated{Company: event.Company{
		Name: "Supplier AG",
		IDs:  []string{"urn:lei:" + supplierLEI, "urn:pathfinder:company:customcode:buyer-assigned:S-1"},
	}})
	require.NoError(t, f.d.Handle(ctx, f.partnerID, raw))

	org, err := f.store.GetOrganization(ctx, f.supplier.OrgID)
	require.NoError(t, err)
	require.Equal(t, "Supplier AG", org.Name)
	require.Contains(t, org.Identifiers, models.Identifier{Type: models.IdentifierLEI, Value: supplierLEI})
}

func TestRequestFootprintRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	wish := json.RawMessage(`{"productIds":["urn:epc:id:sgtin:0614141.107346.2018"]}`)
	task, err := f.d.RequestFootprint(ctx, f.unit.OrgID, f.supplier.OrgID, wish, "please share")
	require.NoError(t, err)
	require.Equal(t, models.TaskStatusPending, task.Status)
	require.Equal(t, models.TaskDirectionOutbound, task.Direction)

	p, ev := f.transport.last(t)
	require.Equal(t, "https://supplier.example/2/events", p.endpoint)
	require.Equal(t, "token-us-at-supplier", p.token)
	created, ok := ev.(*event.RequestCreated)
	require.True(t, ok)
	require.Equal(t, task.EventID, created.ID)
	require.Equal(t, "https://us.example/2/events", created.Source)
	require.JSONEq(t, string(wish), string(created.PF))

	dataID := uuid.Must(uuid.NewV7())
	fulfilled := &event.RequestFulfilled{
		RequestEventID: task.EventID,
		PFs:            []json.RawMessage{wireFootprint(t, "Supplier", supplierLEI, dataID, 2.2)},
	}

	t.Run("another partner cannot answer", func(t *testing.T) {
		other := &auth.Identity{OrganizationID: f.stranger.OrgID}
		err := f.d.Handle(ctx, other, newEvent(t, fulfilled))
		require.True(t, apperr.Is(err, apperr.KindNotFound))
	})

	require.NoError(t, f.d.Handle(ctx, f.partnerID, newEvent(t, fulfilled)))

	got, err := f.store.GetTask(ctx, task.TaskID)
	require.NoError(t, err)
	require.Equal(t, models.TaskStatusCompleted, got.Status)

	fp, err := f.store.GetLatestFootprintByDataID(ctx, dataID)
	require.NoError(t, err)
	require.Equal(t, f.supplier.OrgID, fp.OrgID)
}

func TestRequestRejectedByPartner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	task, err := f.d.RequestFootprint(ctx, f.unit.OrgID, f.supplier.OrgID, json.RawMessage(`{"productIds":["urn:x"]}`), "")
	require.NoError(t, err)

	raw := newEvent(t, &event.RequestRejected{
		RequestEventID: task.EventID,
		Error:          apperr.ProtocolError{Code: apperr.CodeBadRequest, Message: "we do not sell that"},
	})
	require.NoError(t, f.d.Handle(ctx, f.partnerID, raw))

	got, err := f.store.GetTask(ctx, task.TaskID)
	require.NoError(t, err)
	require.Equal(t, models.TaskStatusRejected, got.Status)
	require.Equal(t, "we do not sell that", got.Message)
}

func TestHubRelayedFulfilment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.d.RegisterDataSource(ctx, f.tenant.OrgID, DataSourceInput{
		Type:     models.DataSourceTypeHub,
		Name:     "hub",
		Username: "us-at-hub",
		Password: "hub-secret",
		Endpoints: []BundleEndpoint{
			{Type: models.EndpointAuthenticate, URL: "https://hub.example/auth/token"},
			{Type: models.EndpointUpdateEvent, URL: "https://hub.example/2/events"},
		},
	})
	require.NoError(t, err)

	task, err := f.d.RequestFootprint(ctx, f.unit.OrgID, f.stranger.OrgID, json.RawMessage(`{"productIds":["urn:x"]}`), "")
	require.NoError(t, err)
	p, _ := f.transport.last(t)
	require.Equal(t, "https://hub.example/2/events", p.endpoint)

	hub := &auth.Identity{OrganizationID: f.tenant.OrgID}
	dataID := uuid.Must(uuid.NewV7())
	fulfilled := &event.RequestFulfilled{
		RequestEventID: task.EventID,
		PFs:            []json.RawMessage{wireFootprint(t, "Stranger", supplierLEI, dataID, 3.1)},
	}
	require.NoError(t, f.d.Handle(ctx, hub, newEvent(t, fulfilled)))

	fp, err := f.store.GetLatestFootprintByDataID(ctx, dataID)
	require.NoError(t, err)
	require.Equal(t, f.stranger.OrgID, fp.OrgID)

	served, err := f.catalog.ListFootprints(ctx, f.supplier.OrgID, "", 10, 0)
	require.NoError(t, err)
	require.Empty(t, served)

	t.Run("announcements from the tenant itself are refused", func(t *testing.T) {
		announced := uuid.Must(uuid.NewV7())
		f.transport.footprints[announced.String()] = wireFootprint(t, "Tenant", unitLEI, announced, 1)

		err := f.d.Handle(ctx, hub, newEvent(t, &event.Published{PfIDs: []string{announced.String()}}))
		require.True(t, apperr.Is(err, apperr.KindAuthorization))
		_, err = f.store.GetLatestFootprintByDataID(ctx, announced)
		require.ErrorIs(t, err, store.ErrFootprintNotFound)
	})
}

func TestRequestCreatedRedelivery(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	raw := newEvent(t, &event.RequestCreated{PF: json.RawMessage(`{"productIds":["urn:x"]}`), Comment: "please"})
	require.NoError(t, f.d.Handle(ctx, f.partnerID, raw))
	require.NoError(t, f.d.Handle(ctx, f.partnerID, raw))

	tasks := f.tasks(t)
	require.Len(t, tasks, 1)
	require.Equal(t, models.TaskTypeRequest, tasks[0].Type)
	require.Equal(t, models.TaskStatusUnread, tasks[0].Status)
}

func TestOutboundFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.transport.postErr = apperr.State("partner returned 503")

	_, err := f.d.RequestFootprint(ctx, f.unit.OrgID, f.supplier.OrgID, json.RawMessage(`{"productIds":["urn:x"]}`), "")
	require.True(t, apperr.Is(err, apperr.KindState))
	require.Empty(t, f.tasks(t))
}

func TestOutboundValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	outsider := uuid.Must(uuid.NewV7())

	_, err := f.d.RequestFootprint(ctx, f.unit.OrgID, f.supplier.OrgID, json.RawMessage(`{}`), "")
	require.True(t, apperr.Is(err, apperr.KindRequest))

	_, err = f.d.RequestFootprint(ctx, f.unit.OrgID, outsider, json.RawMessage(`{"a":1}`), "")
	require.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = f.d.RequestFootprint(ctx, f.unit.OrgID, f.tenant.OrgID, json.RawMessage(`{"a":1}`), "")
	require.True(t, apperr.Is(err, apperr.KindRequest))

	_, err = f.d.Notify(ctx, f.unit.OrgID, f.supplier.OrgID, nil)
	require.True(t, apperr.Is(err, apperr.KindRequest))

	_, err = f.d.Notify(ctx, f.unit.OrgID, f.supplier.OrgID, []uuid.UUID{uuid.Must(uuid.NewV7())})
	require.True(t, apperr.Is(err, apperr.KindNotFound))

	t.Run("no route", func(t *testing.T) {
		_, err := f.d.RequestFootprint(ctx, f.unit.OrgID, f.stranger.OrgID, json.RawMessage(`{"a":1}`), "")
		require.True(t, apperr.Is(err, apperr.KindState))
	})
}

func TestNotifyAndFulfil(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	saved, _, err := f.catalog.SaveFootprint(ctx, f.unit.OrgID, wireFootprint(t, "Plant", unitLEI, uuid.Must(uuid.NewV7()), 3.3))
	require.NoError(t, err)

	t.Run("notify", func(t *testing.T) {
		task, err := f.d.Notify(ctx, f.unit.OrgID, f.supplier.OrgID, []uuid.UUID{saved.DataID})
		require.NoError(t, err)
		require.Equal(t, models.TaskStatusCompleted, task.Status)
		require.Equal(t, models.TaskTypeNotification, task.Type)

		_, ev := f.transport.last(t)
		published, ok := ev.(*event.Published)
		require.True(t, ok)
		require.Equal(t, []string{saved.DataID.String()}, published.PfIDs)
		require.Equal(t, task.EventID, published.ID)

		stored, err := f.store.GetTask(ctx, task.TaskID)
		require.NoError(t, err)
		require.JSONEq(t, `{"pfIds":["`+saved.DataID.String()+`"]}`, string(stored.Payload))
	})

	t.Run("partner footprints cannot be announced", func(t *testing.T) {
		dataID := uuid.Must(uuid.NewV7())
		f.transport.footprints[dataID.String()] = wireFootprint(t, "Supplier", supplierLEI, dataID, 1)
		require.NoError(t, f.d.Handle(ctx, f.partnerID, newEvent(t, &event.Published{PfIDs: []string{dataID.String()}})))

		_, err := f.d.Notify(ctx, f.unit.OrgID, f.supplier.OrgID, []uuid.UUID{dataID})
		require.True(t, apperr.Is(err, apperr.KindNotFound))
	})

	t.Run("fulfil inbound request", func(t *testing.T) {
		request := newEvent(t, &event.RequestCreated{PF: json.RawMessage(`{"productIds":["urn:epc:id:sgtin:0614141.107346.2018"]}`), Comment: "need it"})
		require.NoError(t, f.d.Handle(ctx, f.partnerID, request))

		var inbound *models.Task
		for _, task := range f.tasks(t) {
			if task.Type == models.TaskTypeRequest && task.Direction == models.TaskDirectionInbound {
				inbound = task
			}
		}
		require.NotNil(t, inbound)
		require.Equal(t, models.TaskStatusUnread, inbound.Status)
		require.Equal(t, "need it", inbound.Message)

		task, err := f.d.Fulfill(ctx, f.tenant.OrgID, inbound.TaskID, []uuid.UUID{saved.DataID})
		require.NoError(t, err)
		require.Equal(t, models.TaskStatusCompleted, task.Status)

		p, ev := f.transport.last(t)
		require.Equal(t, "https://supplier.example/2/events", p.endpoint)
		fulfilled, ok := ev.(*event.RequestFulfilled)
		require.True(t, ok)
		require.Equal(t, inbound.EventID, fulfilled.RequestEventID)
		require.Len(t, fulfilled.PFs, 1)

		wire, err := pcf.Decode(fulfilled.PFs[0])
		require.NoError(t, err)
		require.Equal(t, saved.DataID.String(), wire.ID)

		_, err = f.d.Fulfill(ctx, f.tenant.OrgID, inbound.TaskID, []uuid.UUID{saved.DataID})
		require.True(t, apperr.Is(err, apperr.KindRequest))
	})
}

func TestRejectInboundRequest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	raw := newEvent(t, &event.RequestCreated{PF: json.RawMessage(`{"productIds":["urn:x"]}`)})
	require.NoError(t, f.d.Handle(ctx, f.partnerID, raw))
	tasks := f.tasks(t)
	require.Len(t, tasks, 1)

	task, err := f.d.Reject(ctx, f.unit.OrgID, tasks[0].TaskID, "not available")
	require.NoError(t, err)
	require.Equal(t, models.TaskStatusRejected, task.Status)

	_, ev := f.transport.last(t)
	rejected, ok := ev.(*event.RequestRejected)
	require.True(t, ok)
	require.Equal(t, tasks[0].EventID, rejected.RequestEventID)
	require.Equal(t, apperr.CodeBadRequest, rejected.Error.Code)
	require.Equal(t, "not available", rejected.Error.Message)

	t.Run("outbound tasks cannot be rejected", func(t *testing.T) {
		out, err := f.d.RequestFootprint(ctx, f.unit.OrgID, f.supplier.OrgID, json.RawMessage(`{"a":1}`), "")
		require.NoError(t, err)
		_, err = f.d.Reject(ctx, f.unit.OrgID, out.TaskID, "")
		require.True(t, apperr.Is(err, apperr.KindRequest))
	})
}

func TestCatalog(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	saved, _, err := f.catalog.SaveFootprint(ctx, f.unit.OrgID, wireFootprint(t, "Plant", unitLEI, uuid.Must(uuid.NewV7()), 3.3))
	require.NoError(t, err)

	_, _, err = f.catalog.SaveFootprint(ctx, f.supplier.OrgID, wireFootprint(t, "Supplier", supplierLEI, uuid.Must(uuid.NewV7()), 1))
	require.True(t, apperr.Is(err, apperr.KindAuthorization))

	_, _, err = f.catalog.SaveFootprint(ctx, f.unit.OrgID, json.RawMessage(`{"id":"x"}`))
	require.True(t, apperr.Is(err, apperr.KindRequest))

	t.Run("list", func(t *testing.T) {
		all, err := f.catalog.ListFootprints(ctx, f.supplier.OrgID, "", 0, 0)
		require.NoError(t, err)
		require.Len(t, all, 1)
		require.Equal(t, saved.DataID.String(), all[0].ID)

		none, err := f.catalog.ListFootprints(ctx, f.supplier.OrgID, "pcf/declaredUnit eq 'liter'", 0, 0)
		require.NoError(t, err)
		require.Empty(t, none)

		_, err = f.catalog.ListFootprints(ctx, f.supplier.OrgID, "created eq", 0, 0)
		require.True(t, apperr.Is(err, apperr.KindRequest))
	})

	t.Run("get", func(t *testing.T) {
		got, err := f.catalog.GetFootprint(ctx, f.supplier.OrgID, saved.DataID)
		require.NoError(t, err)
		require.Equal(t, "Plant", got.CompanyName)

		_, err = f.catalog.GetFootprint(ctx, f.supplier.OrgID, uuid.Must(uuid.NewV7()))
		require.True(t, apperr.Is(err, apperr.KindNotFound))

		other := memory.NewStore()
		outsider := &models.Organization{OrgID: uuid.Must(uuid.NewV7()), Name: "Elsewhere", Type: models.OrganizationTypeInternal}
		require.NoError(t, other.CreateOrganization(ctx, outsider))
		_, err = NewCatalog(other).GetFootprint(ctx, outsider.OrgID, saved.DataID)
		require.True(t, apperr.Is(err, apperr.KindNotFound))
	})
}

func TestRegisterDataSource(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	hubEndpoints := []BundleEndpoint{
		{Type: models.EndpointAuthenticate, URL: "https://hub.example/auth/token"},
		{Type: models.EndpointUpdateEvent, URL: "https://hub.example/2/events"},
	}

	ds, err := f.d.RegisterDataSource(ctx, f.unit.OrgID, DataSourceInput{
		Type: models.DataSourceTypeHub, Name: "hub", Username: "u", Password: "p", Endpoints: hubEndpoints,
	})
	require.NoError(t, err)
	require.Equal(t, f.tenant.OrgID, ds.OrgID)
	require.NotEqual(t, "p", ds.Password)

	plain, err := f.vault.Decrypt(ds.Password, f.tenant.OrgID[:])
	require.NoError(t, err)
	require.Equal(t, "p", plain)

	tests := []struct {
		name string
		in   DataSourceInput
		kind apperr.Kind
	}{
		{"second hub", DataSourceInput{Type: models.DataSourceTypeHub, Username: "u", Password: "p", Endpoints: hubEndpoints}, apperr.KindRequest},
		{"unknown type", DataSourceInput{Type: "relay", Username: "u", Password: "p", Endpoints: hubEndpoints}, apperr.KindRequest},
		{"missing credentials", DataSourceInput{Type: models.DataSourceTypeHub, Endpoints: hubEndpoints}, apperr.KindRequest},
		{"partner without GetFootprints", DataSourceInput{OrgID: f.stranger.OrgID, Type: models.DataSourceTypePartner, Username: "u", Password: "p", Endpoints: hubEndpoints}, apperr.KindRequest},
		{"relative url", DataSourceInput{Type: models.DataSourceTypeHub, Username: "u", Password: "p", Endpoints: []BundleEndpoint{{Type: models.EndpointAuthenticate, URL: "/auth/token"}}}, apperr.KindRequest},
		{"partner for internal unit", DataSourceInput{OrgID: f.unit.OrgID, Type: models.DataSourceTypePartner, Username: "u", Password: "p", Endpoints: append(hubEndpoints, BundleEndpoint{Type: models.EndpointGetFootprints, URL: "https://hub.example/2/footprints"})}, apperr.KindRequest},
		{"partner outside tenant", DataSourceInput{OrgID: uuid.Must(uuid.NewV7()), Type: models.DataSourceTypePartner, Username: "u", Password: "p", Endpoints: append(hubEndpoints, BundleEndpoint{Type: models.EndpointGetFootprints, URL: "https://hub.example/2/footprints"})}, apperr.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.d.RegisterDataSource(ctx, f.unit.OrgID, tt.in)
			require.Error(t, err)
			require.Equal(t, tt.kind, apperr.KindOf(err))
		})
	}
}

func TestIssueClient(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	client, secret, err := f.d.IssueClient(ctx, f.unit.OrgID, f.supplier.OrgID)
	require.NoError(t, err)
	require.NotEmpty(t, secret)

	stored, err := f.store.GetPartnerClient(ctx, client.ClientID)
	require.NoError(t, err)
	require.Equal(t, f.supplier.OrgID, stored.OrgID)

	_, _, err = f.d.IssueClient(ctx, f.unit.OrgID, f.tenant.OrgID)
	require.NoError(t, err)

	_, _, err = f.d.IssueClient(ctx, f.unit.OrgID, f.unit.OrgID)
	require.True(t, apperr.Is(err, apperr.KindRequest))
}

func TestParseBundle(t *testing.T) {
	valid := `[{"type":"Authenticate","url":"https://b.example/auth/token"},{"type":"GetFootprints","url":"http://b.example/2/footprints"}]`

	tests := []struct {
		name  string
		input string
		ok    bool
	}{
		{"valid", `{"username":"u","password":"p","endpoints":` + valid + `}`, true},
		{"not json", `nope`, false},
		{"missing password", `{"username":"u","endpoints":` + valid + `}`, false},
		{"missing GetFootprints", `{"username":"u","password":"p","endpoints":[{"type":"Authenticate","url":"https://b.example/auth/token"}]}`, false},
		{"relative url", `{"username":"u","password":"p","endpoints":[{"type":"Authenticate","url":"/auth/token"},{"type":"GetFootprints","url":"https://b.example/2/footprints"}]}`, false},
		{"ftp url", `{"username":"u","password":"p","endpoints":[{"type":"Authenticate","url":"ftp://b.example/token"},{"type":"GetFootprints","url":"https://b.example/2/footprints"}]}`, false},
		{"unknown endpoint type", `{"username":"u","password":"p","endpoints":[{"type":"Teleport","url":"https://b.example/x"}]}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseBundle([]byte(tt.input))
			if tt.ok {
				require.NoError(t, err)
				return
			}
			require.True(t, apperr.Is(err, apperr.KindRequest))
		})
	}
}

func TestMissingIdentity(t *testing.T) {
	f := newFixture(t)
	err := f.d.Handle(context.Background(), nil, newEvent(t, &event.RequestCreated{PF: json.RawMessage(`{"a":1}`)}))
	require.True(t, apperr.Is(err, apperr.KindAuthorization))
}
