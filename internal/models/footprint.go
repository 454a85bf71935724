package models

import (
	"time"

	"github.com/google/uuid"
)

// FootprintStatus is the lifecycle status of a footprint row.
type FootprintStatus string

const (
	FootprintStatusActive     FootprintStatus = "Active"
	FootprintStatusDeprecated FootprintStatus = "Deprecated"
)

// ProductFootprint is the internal record of one PCF revision.
//
// DataID is the externally visible identifier and stays constant across
// minor revisions; Version increments with each of them. Only one row per
// product is Active at any time.
type ProductFootprint struct {
	FootprintID      uuid.UUID
	DataID           uuid.UUID
	Version          int
	Status           FootprintStatus
	StatusComment    string
	OrgID            uuid.UUID
	ProductID        uuid.UUID
	PrecedingDataIDs []uuid.UUID
	SpecVersion      string
	Comment          string

	CreatedAt           time.Time
	UpdatedAt           time.Time
	ValidityPeriodStart *time.Time
	ValidityPeriodEnd   *time.Time

	DeclaredUnit                     string // internal unit code, e.g. "kg"
	UnitaryProductAmount             float64
	PCFExcludingBiogenic             float64
	PCFIncludingBiogenic             *float64
	FossilGHGEmissions               float64
	FossilCarbonContent              float64
	BiogenicCarbonContent            float64
	DLUCGHGEmissions                 *float64
	LandManagementGHGEmissions       *float64
	OtherBiogenicGHGEmissions        *float64
	ILUCGHGEmissions                 *float64
	BiogenicCarbonWithdrawal         *float64
	AircraftGHGEmissions             *float64
	BiogenicAccountingMethodology    string
	BoundaryProcessesDescription     string
	ReferencePeriodStart             time.Time
	ReferencePeriodEnd               time.Time
	GeographyCountry                 string
	GeographyCountrySubdivision      string
	GeographyRegionOrSubregion       string
	ExemptedEmissionsPercent         float64
	ExemptedEmissionsDescription     string
	PackagingEmissionsIncluded       bool
	PackagingGHGEmissions            *float64
	AllocationRulesDescription       string
	UncertaintyAssessmentDescription string
	PrimaryDataShare                 *float64
	SecondaryEmissionFactorSources   []EmissionFactorSource

	GWPReports            []GWPReport
	AccountingStandards   []AccountingStandard
	CarbonAccountingRules []CarbonAccountingRule
	DataQuality           *DataQualityIndicator
	Assurance             *Assurance
}

// IsMajorChange reports whether replacing f with next breaks comparability,
// which requires a new DataID instead of a new version.
func (f *ProductFootprint) IsMajorChange(next *ProductFootprint) bool {
	return f.DeclaredUnit != next.DeclaredUnit || f.UnitaryProductAmount != next.UnitaryProductAmount
}

// EmissionFactorSource names a secondary emission factor database.
type EmissionFactorSource struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// GWPReport records the IPCC assessment report the characterization
// factors were taken from (e.g. "AR6").
type GWPReport struct {
	Source string
}

// AccountingStandard is a cross-sectoral standard the footprint follows.
type AccountingStandard struct {
	Name string
}

// CarbonAccountingRule is a product or sector specific rule set.
type CarbonAccountingRule struct {
	Operator          string
	RuleNames         []string
	OtherOperatorName string
}

// DataQualityIndicator holds the data quality ratings of a footprint.
type DataQualityIndicator struct {
	CoveragePercent  float64
	TechnologicalDQR float64
	TemporalDQR      float64
	GeographicalDQR  float64
	CompletenessDQR  float64
	ReliabilityDQR   float64
}

// Assurance describes third party verification of a footprint.
type Assurance struct {
	Assurance    bool
	Coverage     string
	Level        string
	Boundary     string
	ProviderName string
	CompletedAt  *time.Time
	StandardName string
	Comments     string
}
