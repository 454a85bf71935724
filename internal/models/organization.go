package models

import (
	"time"

	"github.com/google/uuid"
)

// OrganizationType distinguishes the tenant's own units from trading partners.
type OrganizationType string

const (
	OrganizationTypeInternal        OrganizationType = "internal"         // Unit of the tenant itself
	OrganizationTypeBusinessPartner OrganizationType = "business_partner" // Supplier or customer known through the network
)

// IdentifierType is the scheme of an organization or product identifier.
type IdentifierType string

const (
	IdentifierUUID             IdentifierType = "uuid"
	IdentifierSGLN             IdentifierType = "sgln"  // organizations only
	IdentifierLEI              IdentifierType = "lei"   // organizations only
	IdentifierSGTIN            IdentifierType = "sgtin" // products only
	IdentifierSupplierSpecific IdentifierType = "supplier_specific"
	IdentifierBuyerSpecific    IdentifierType = "buyer_specific"
)

// Identifier is a typed identifier attached to an organization or product.
type Identifier struct {
	Type  IdentifierType
	Value string
}

// Organization represents a node in a tenant's organization tree.
// Roots are tenants; internal units and business partners hang below them.
type Organization struct {
	OrgID       uuid.UUID  // UUIDv7
	ParentID    *uuid.UUID // nil for tenant roots
	Name        string
	Type        OrganizationType
	Identifiers []Identifier

	// PublicKey is the PEM encoded ECDSA key of a partner node, learned
	// during contract negotiation. Empty for internal units.
	PublicKey string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Salt returns the per-organization salt used by the credential vault.
func (o *Organization) Salt() []byte {
	return o.OrgID[:]
}

// HasIdentifier reports whether the organization carries the identifier.
func (o *Organization) HasIdentifier(id Identifier) bool {
	for _, existing := range o.Identifiers {
		if existing == id {
			return true
		}
	}
	return false
}
