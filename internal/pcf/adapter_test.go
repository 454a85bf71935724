package pcf

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/pcfhub/internal/apperr"
	"github.com/wolfeidau/pcfhub/internal/models"
)

func ptr[T any](v T) *T { return &v }

func sampleFootprint(t *testing.T) (*models.ProductFootprint, *models.Product, *models.Organization) {
	t.Helper()

	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	org := &models.Organization{
		OrgID: uuid.Must(uuid.NewV7()),
		Name:  "Acme Steel",
		Identifiers: []models.Identifier{
			{Type: models.IdentifierLEI, Value: "5493001KJTIIGC8Y1R12"},
			{Type: models.IdentifierSupplierSpecific, Value: "ACME-1"},
		},
	}
	product := &models.Product{
		ProductID:   uuid.Must(uuid.NewV7()),
		OrgID:       org.OrgID,
		Name:        "Cold rolled coil",
		Description: "Steel coil, 2mm",
		CPC:         "41231",
		Identifiers: []models.Identifier{
			{Type: models.IdentifierSGTIN, Value: "0614141.107346.2018"},
			{Type: models.IdentifierBuyerSpecific, Value: "B-77"},
		},
	}
	fp := &models.ProductFootprint{
		FootprintID:                  uuid.Must(uuid.NewV7()),
		DataID:                       uuid.Must(uuid.NewV7()),
		Version:                      3,
		Status:                       models.FootprintStatusActive,
		OrgID:                        org.OrgID,
		ProductID:                    product.ProductID,
		PrecedingDataIDs:             []uuid.UUID{uuid.Must(uuid.NewV7())},
		SpecVersion:                  "2.2.0",
		Comment:                      "cradle to gate",
		CreatedAt:                    created,
		UpdatedAt:                    created,
		DeclaredUnit:                 "kg",
		UnitaryProductAmount:         1000,
		PCFExcludingBiogenic:         1.85,
		PCFIncludingBiogenic:         ptr(1.9),
		FossilGHGEmissions:           1.8,
		FossilCarbonContent:          0.01,
		BiogenicCarbonContent:        0,
		DLUCGHGEmissions:             ptr(0.05),
		AircraftGHGEmissions:         ptr(0.0),
		BoundaryProcessesDescription: "mining to rolling",
		ReferencePeriodStart:         time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		ReferencePeriodEnd:           time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		GeographyCountry:             "DE",
		ExemptedEmissionsPercent:     1.5,
		ExemptedEmissionsDescription: "office energy",
		PackagingEmissionsIncluded:   true,
		PackagingGHGEmissions:        ptr(0.02),
		PrimaryDataShare:             ptr(56.1),
		SecondaryEmissionFactorSources: []models.EmissionFactorSource{
			{Name: "ecoinvent", Version: "3.9.1"},
		},
		GWPReports:            []models.GWPReport{{Source: "AR6"}},
		AccountingStandards:   []models.AccountingStandard{{Name: "GHG Protocol Product standard"}},
		CarbonAccountingRules: []models.CarbonAccountingRule{{Operator: "EPD International", RuleNames: []string{"PCR 2019:14"}}},
		DataQuality: &models.DataQualityIndicator{
			CoveragePercent: 80, TechnologicalDQR: 1.6, TemporalDQR: 2, GeographicalDQR: 2.2, CompletenessDQR: 1.4, ReliabilityDQR: 1.3,
		},
		Assurance: &models.Assurance{Assurance: true, Level: "limited", ProviderName: "Verifier GmbH"},
	}
	return fp, product, org
}

func TestRoundTrip(t *testing.T) {
	fp, product, org := sampleFootprint(t)

	wire, err := ToWire(fp, product, org)
	require.NoError(t, err)
	require.Equal(t, "kilogram", wire.PCF.DeclaredUnit)
	require.Contains(t, wire.CompanyIDs, "urn:lei:5493001KJTIIGC8Y1R12")
	require.Contains(t, wire.ProductIDs, "urn:epc:id:sgtin:0614141.107346.2018")

	raw, err := json.Marshal(wire)
	require.NoError(t, err)
	require.NoError(t, Validate(raw))

	decodedWire, err := Decode(raw)
	require.NoError(t, err)

	got, err := FromWire(decodedWire)
	require.NoError(t, err)

	back := got.Footprint
	require.Equal(t, fp.DataID, back.DataID)
	require.Equal(t, fp.Version, back.Version)
	require.Equal(t, fp.DeclaredUnit, back.DeclaredUnit)
	require.Equal(t, fp.UnitaryProductAmount, back.UnitaryProductAmount)
	require.Equal(t, fp.PCFExcludingBiogenic, back.PCFExcludingBiogenic)
	require.Equal(t, fp.PCFIncludingBiogenic, back.PCFIncludingBiogenic)
	require.Equal(t, fp.FossilGHGEmissions, back.FossilGHGEmissions)
	require.Equal(t, fp.FossilCarbonContent, back.FossilCarbonContent)
	require.Equal(t, fp.BiogenicCarbonContent, back.BiogenicCarbonContent)
	require.Equal(t, fp.DLUCGHGEmissions, back.DLUCGHGEmissions)
	require.Equal(t, fp.AircraftGHGEmissions, back.AircraftGHGEmissions)
	require.Equal(t, fp.PackagingGHGEmissions, back.PackagingGHGEmissions)
	require.Equal(t, fp.PrimaryDataShare, back.PrimaryDataShare)
	require.Equal(t, fp.ExemptedEmissionsPercent, back.ExemptedEmissionsPercent)
	require.Equal(t, fp.PrecedingDataIDs, back.PrecedingDataIDs)
	require.Equal(t, fp.GWPReports, back.GWPReports)
	require.Equal(t, fp.AccountingStandards, back.AccountingStandards)
	require.Equal(t, fp.CarbonAccountingRules, back.CarbonAccountingRules)
	require.Equal(t, fp.DataQuality, back.DataQuality)
	require.Equal(t, fp.Assurance, back.Assurance)

	require.Equal(t, org.Identifiers, got.CompanyIDs)
	require.Equal(t, product.Identifiers, got.ProductIDs)
	require.Equal(t, product.CPC, got.ProductCategoryCpc)
	require.Equal(t, org.Name, got.CompanyName)
}

func TestToWireRejectsUnmappedUnit(t *testing.T) {
	fp, product, org := sampleFootprint(t)
	fp.DeclaredUnit = "furlong"

	_, err := ToWire(fp, product, org)
	require.Error(t, err)
	require.True(t, apperr.Is(err, apperr.KindRequest))
}

func TestFromWireRejectsUnmappedUnit(t *testing.T) {
	fp, product, org := sampleFootprint(t)
	wire, err := ToWire(fp, product, org)
	require.NoError(t, err)

	wire.PCF.DeclaredUnit = "bushel"
	_, err = FromWire(wire)
	require.Error(t, err)
}

func TestUnrecognizedURNsAreDropped(t *testing.T) {
	ids := ParseOrganizationURNs([]string{
		"urn:uuid:0190a0c4-8d7c-7000-8000-000000000001",
		"urn:example:unknown:1",
		"urn:epc:id:sgtin:not-an-org-scheme",
	})
	require.Equal(t, []models.Identifier{
		{Type: models.IdentifierUUID, Value: "0190a0c4-8d7c-7000-8000-000000000001"},
	}, ids)

	urns := OrganizationURNs([]models.Identifier{{Type: models.IdentifierSGTIN, Value: "x"}})
	require.Empty(t, urns)
}

func TestValidateReportsFields(t *testing.T) {
	err := Validate([]byte(`{"id":"nope","specVersion":"2.2.0"}`))
	require.Error(t, err)
	require.True(t, apperr.Is(err, apperr.KindRequest))
	require.Contains(t, err.Error(), "pcf")
}

func TestDecimalAcceptsNumbers(t *testing.T) {
	var d Decimal
	require.NoError(t, json.Unmarshal([]byte(`12.5`), &d))
	require.Equal(t, Decimal(12.5), d)
	require.NoError(t, json.Unmarshal([]byte(`"0.25"`), &d))
	require.Equal(t, Decimal(0.25), d)

	out, err := json.Marshal(Decimal(1000))
	require.NoError(t, err)
	require.JSONEq(t, `"1000"`, string(out))
}
