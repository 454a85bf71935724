package models

import (
	"time"

	"github.com/google/uuid"
)

// DataSourceType distinguishes direct partner connections from hubs.
type DataSourceType string

const (
	DataSourceTypePartner DataSourceType = "partner"
	DataSourceTypeHub     DataSourceType = "hub"
)

// EndpointType names the remote operation an endpoint URL serves.
type EndpointType string

const (
	EndpointAuthenticate     EndpointType = "Authenticate"
	EndpointGetFootprints    EndpointType = "GetFootprints"
	EndpointUpdateEvent      EndpointType = "UpdateEvent"
	EndpointUpdateDataSource EndpointType = "UpdateDataSource"
)

// Endpoint is one typed URL of a remote node.
type Endpoint struct {
	Type EndpointType
	URL  string
}

// DataSource is a registered remote node with the credentials used to call it.
// An organization has at most one hub data source.
type DataSource struct {
	DataSourceID uuid.UUID
	OrgID        uuid.UUID // partner organization, or the tenant root for hubs
	Type         DataSourceType
	Name         string
	Username     string
	Password     string // base64 vault ciphertext, salted with the owning organization
	Endpoints    []Endpoint
	PublicKey    string // PEM encoded key of the remote node, optional

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Endpoint returns the URL registered for t.
func (d *DataSource) Endpoint(t EndpointType) (string, bool) {
	for _, e := range d.Endpoints {
		if e.Type == t {
			return e.URL, true
		}
	}
	return "", false
}
