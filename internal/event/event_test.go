package event

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/pcfhub/internal/apperr"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		check func(t *testing.T, ev Event)
	}{
		{
			name: "published",
			raw:  `{"type":"org.wbcsd.pathfinder.ProductFootprint.Published.v1","specversion":"1.0","id":"e1","source":"https://a.example/2/events","time":"2024-05-01T10:00:00Z","data":{"pfIds":["p1","p2"]}}`,
			check: func(t *testing.T, ev Event) {
				p, ok := ev.(*Published)
				require.True(t, ok)
				require.Equal(t, []string{"p1", "p2"}, p.PfIDs)
				require.Equal(t, "e1", p.ID)
				require.Equal(t, "https://a.example/2/events", p.Source)
			},
		},
		{
			name: "request created",
			raw:  `{"type":"org.wbcsd.pathfinder.ProductFootprintRequest.Created.v1","specversion":"1.0","id":"e2","source":"s","time":"2024-05-01T10:00:00Z","data":{"pf":{"productIds":["urn:uuid:x"]},"comment":"please"}}`,
			check: func(t *testing.T, ev Event) {
				r, ok := ev.(*RequestCreated)
				require.True(t, ok)
				require.Equal(t, "please", r.Comment)
				require.JSONEq(t, `{"productIds":["urn:uuid:x"]}`, string(r.PF))
			},
		},
		{
			name: "request rejected",
			raw:  `{"type":"org.wbcsd.pathfinder.ProductFootprintRequest.Rejected.v1","specversion":"1.0","id":"e3","source":"s","time":"2024-05-01T10:00:00Z","data":{"requestEventId":"e2","error":{"code":"NotFound","message":"no such product"}}}`,
			check: func(t *testing.T, ev Event) {
				r, ok := ev.(*RequestRejected)
				require.True(t, ok)
				require.Equal(t, "e2", r.RequestEventID)
				require.Equal(t, "no such product", r.Error.Message)
			},
		},
		{
			name: "company updated",
			raw:  `{"type":"org.wbcsd.pathfinder.Company.Updated.v1","specversion":"1.0","id":"e4","source":"s","time":"2024-05-01T10:00:00Z","data":{"companyName":"Acme","companyIds":["urn:lei:123"]}}`,
			check: func(t *testing.T, ev Event) {
				c, ok := ev.(*CompanyUpdated)
				require.True(t, ok)
				require.Equal(t, "Acme", c.Name)
				require.Equal(t, []string{"urn:lei:123"}, c.IDs)
			},
		},
		{
			name: "unknown type is ignored",
			raw:  `{"type":"org.example.Other.v1","specversion":"1.0","id":"e5","source":"s","time":"2024-05-01T10:00:00Z","data":{}}`,
			check: func(t *testing.T, ev Event) {
				i, ok := ev.(*Ignored)
				require.True(t, ok)
				require.Equal(t, "org.example.Other.v1", i.Type)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Decode([]byte(tt.raw))
			require.NoError(t, err)
			tt.check(t, ev)
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `{`},
		{"wrong specversion", `{"type":"org.wbcsd.pathfinder.ProductFootprint.Published.v1","specversion":"0.3","id":"e1","data":{"pfIds":["p"]}}`},
		{"missing id", `{"type":"org.wbcsd.pathfinder.ProductFootprint.Published.v1","specversion":"1.0","data":{"pfIds":["p"]}}`},
		{"missing data", `{"type":"org.wbcsd.pathfinder.ProductFootprint.Published.v1","specversion":"1.0","id":"e1"}`},
		{"empty pfIds", `{"type":"org.wbcsd.pathfinder.ProductFootprint.Published.v1","specversion":"1.0","id":"e1","data":{"pfIds":[]}}`},
		{"wrong data shape", `{"type":"org.wbcsd.pathfinder.ProductFootprint.Published.v1","specversion":"1.0","id":"e1","data":{"pfIds":"p"}}`},
		{"fulfilled without request id", `{"type":"org.wbcsd.pathfinder.ProductFootprintRequest.Fulfilled.v1","specversion":"1.0","id":"e1","data":{"pfs":[{}]}}`},
		{"reply without bundle", `{"type":"org.wbcsd.pathfinder.Contract.Reply.v1","specversion":"1.0","id":"e1","data":{"requestEventId":"e0"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.raw))
			require.Error(t, err)
			require.True(t, apperr.Is(err, apperr.KindRequest))
		})
	}
}

func TestNewRoundTrip(t *testing.T) {
	ev := &ContractRequest{
		Requester: Company{Name: "Acme", IDs: []string{"urn:lei:1"}},
		Recipient: Company{Name: "Globex"},
		Message:   "let's trade",
		PublicKey: "-----BEGIN PUBLIC KEY-----",
	}

	raw, err := New("https://acme.example/2/events", ev)
	require.NoError(t, err)
	require.NotEmpty(t, ev.ID)
	require.Equal(t, TypeContractRequest, ev.Type)

	var env map[string]any
	require.NoError(t, json.Unmarshal(raw, &env))
	require.Equal(t, "1.0", env["specversion"])

	decoded, err := Decode(raw)
	require.NoError(t, err)
	got, ok := decoded.(*ContractRequest)
	require.True(t, ok)
	require.Equal(t, ev.ID, got.ID)
	require.Equal(t, ev.Requester, got.Requester)
	require.Equal(t, ev.Message, got.Message)
}

func TestNewRejectsIgnored(t *testing.T) {
	_, err := New("s", &Ignored{})
	require.Error(t, err)
}
