package pcf

import (
	"strings"

	"github.com/wolfeidau/pcfhub/internal/models"
)

type urnScheme struct {
	Type   models.IdentifierType
	Prefix string
}

var organizationSchemes = []urnScheme{
	{models.IdentifierUUID, "urn:uuid:"},
	{models.IdentifierSGLN, "urn:epc:id:sgln:"},
	{models.IdentifierLEI, "urn:lei:"},
	{models.IdentifierSupplierSpecific, "urn:pathfinder:company:customcode:vendor-assigned:"},
	{models.IdentifierBuyerSpecific, "urn:pathfinder:company:customcode:buyer-assigned:"},
}

var productSchemes = []urnScheme{
	{models.IdentifierUUID, "urn:uuid:"},
	{models.IdentifierSGTIN, "urn:epc:id:sgtin:"},
	{models.IdentifierSupplierSpecific, "urn:pathfinder:product:customcode:vendor-assigned:"},
	{models.IdentifierBuyerSpecific, "urn:pathfinder:product:customcode:buyer-assigned:"},
}

func encodeURN(schemes []urnScheme, id models.Identifier) (string, bool) {
	if id.Value == "" {
		return "", false
	}
	for _, s := range schemes {
		if s.Type == id.Type {
			return s.Prefix + id.Value, true
		}
	}
	return "", false
}

func decodeURN(schemes []urnScheme, urn string) (models.Identifier, bool) {
	for _, s := range schemes {
		if len(urn) > len(s.Prefix) && strings.EqualFold(urn[:len(s.Prefix)], s.Prefix) {
			return models.Identifier{Type: s.Type, Value: urn[len(s.Prefix):]}, true
		}
	}
	return models.Identifier{}, false
}

// OrganizationURN encodes an organization identifier. Types without an
// organization scheme report false.
func OrganizationURN(id models.Identifier) (string, bool) {
	return encodeURN(organizationSchemes, id)
}

// ParseOrganizationURN decodes a companyIds entry.
func ParseOrganizationURN(urn string) (models.Identifier, bool) {
	return decodeURN(organizationSchemes, urn)
}

// ProductURN encodes a product identifier.
func ProductURN(id models.Identifier) (string, bool) {
	return encodeURN(productSchemes, id)
}

// ParseProductURN decodes a productIds entry.
func ParseProductURN(urn string) (models.Identifier, bool) {
	return decodeURN(productSchemes, urn)
}

// OrganizationURNs encodes ids, dropping the ones without a scheme.
func OrganizationURNs(ids []models.Identifier) []string {
	return encodeAll(organizationSchemes, ids)
}

// ProductURNs encodes ids, dropping the ones without a scheme.
func ProductURNs(ids []models.Identifier) []string {
	return encodeAll(productSchemes, ids)
}

// ParseOrganizationURNs decodes urns, dropping unrecognized ones.
func ParseOrganizationURNs(urns []string) []models.Identifier {
	return decodeAll(organizationSchemes, urns)
}

// ParseProductURNs decodes urns, dropping unrecognized ones.
func ParseProductURNs(urns []string) []models.Identifier {
	return decodeAll(productSchemes, urns)
}

func encodeAll(schemes []urnScheme, ids []models.Identifier) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if urn, ok := encodeURN(schemes, id); ok {
			out = append(out, urn)
		}
	}
	return out
}

func decodeAll(schemes []urnScheme, urns []string) []models.Identifier {
	out := make([]models.Identifier, 0, len(urns))
	for _, urn := range urns {
		if id, ok := decodeURN(schemes, urn); ok {
			out = append(out, id)
		}
	}
	return out
}
