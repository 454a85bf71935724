// Package pcf holds the wire representation of product carbon footprints and
// the mapping between it and the internal records.
package pcf

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// SpecVersion is the footprint data model version this node emits.
const SpecVersion = "2.2.0"

// Decimal is a number carried as a JSON string, as the data model requires.
// Plain JSON numbers are accepted on input.
type Decimal float64

func (d Decimal) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatFloat(float64(d), 'f', -1, 64))
}

func (d *Decimal) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		var f float64
		if err := json.Unmarshal(b, &f); err != nil {
			return fmt.Errorf("decimal must be a string or number: %w", err)
		}
		*d = Decimal(f)
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	*d = Decimal(f)
	return nil
}

// ProductFootprint is the partner-facing footprint document.
type ProductFootprint struct {
	ID                  string          `json:"id"`
	SpecVersion         string          `json:"specVersion"`
	PrecedingPfIDs      []string        `json:"precedingPfIds,omitempty"`
	Version             int             `json:"version"`
	Created             time.Time       `json:"created"`
	Updated             *time.Time      `json:"updated,omitempty"`
	Status              string          `json:"status"`
	StatusComment       string          `json:"statusComment,omitempty"`
	ValidityPeriodStart *time.Time      `json:"validityPeriodStart,omitempty"`
	ValidityPeriodEnd   *time.Time      `json:"validityPeriodEnd,omitempty"`
	CompanyName         string          `json:"companyName"`
	CompanyIDs          []string        `json:"companyIds"`
	ProductDescription  string          `json:"productDescription"`
	ProductIDs          []string        `json:"productIds"`
	ProductCategoryCpc  string          `json:"productCategoryCpc"`
	ProductNameCompany  string          `json:"productNameCompany"`
	Comment             string          `json:"comment"`
	PCF                 CarbonFootprint `json:"pcf"`
}

// CarbonFootprint is the emissions payload of a footprint.
type CarbonFootprint struct {
	DeclaredUnit                      string                        `json:"declaredUnit"`
	UnitaryProductAmount              Decimal                       `json:"unitaryProductAmount"`
	PCFExcludingBiogenic              Decimal                       `json:"pCfExcludingBiogenic"`
	PCFIncludingBiogenic              *Decimal                      `json:"pCfIncludingBiogenic,omitempty"`
	FossilGHGEmissions                Decimal                       `json:"fossilGhgEmissions"`
	FossilCarbonContent               Decimal                       `json:"fossilCarbonContent"`
	BiogenicCarbonContent             Decimal                       `json:"biogenicCarbonContent"`
	DLUCGHGEmissions                  *Decimal                      `json:"dLucGhgEmissions,omitempty"`
	LandManagementGHGEmissions        *Decimal                      `json:"landManagementGhgEmissions,omitempty"`
	OtherBiogenicGHGEmissions         *Decimal                      `json:"otherBiogenicGhgEmissions,omitempty"`
	ILUCGHGEmissions                  *Decimal                      `json:"iLucGhgEmissions,omitempty"`
	BiogenicCarbonWithdrawal          *Decimal                      `json:"biogenicCarbonWithdrawal,omitempty"`
	AircraftGHGEmissions              *Decimal                      `json:"aircraftGhgEmissions,omitempty"`
	IPCCCharacterizationFactorSources []string                      `json:"ipccCharacterizationFactorsSources"`
	CrossSectoralStandardsUsed        []string                      `json:"crossSectoralStandardsUsed"`
	ProductOrSectorSpecificRules      []ProductOrSectorSpecificRule `json:"productOrSectorSpecificRules,omitempty"`
	BiogenicAccountingMethodology     string                        `json:"biogenicAccountingMethodology,omitempty"`
	BoundaryProcessesDescription      string                        `json:"boundaryProcessesDescription"`
	ReferencePeriodStart              time.Time                     `json:"referencePeriodStart"`
	ReferencePeriodEnd                time.Time                     `json:"referencePeriodEnd"`
	GeographyCountrySubdivision       string                        `json:"geographyCountrySubdivision,omitempty"`
	GeographyCountry                  string                        `json:"geographyCountry,omitempty"`
	GeographyRegionOrSubregion        string                        `json:"geographyRegionOrSubregion,omitempty"`
	SecondaryEmissionFactorSources    []EmissionFactorDS            `json:"secondaryEmissionFactorSources,omitempty"`
	ExemptedEmissionsPercent          float64                       `json:"exemptedEmissionsPercent"`
	ExemptedEmissionsDescription      string                        `json:"exemptedEmissionsDescription"`
	PackagingEmissionsIncluded        bool                          `json:"packagingEmissionsIncluded"`
	PackagingGHGEmissions             *Decimal                      `json:"packagingGhgEmissions,omitempty"`
	AllocationRulesDescription        string                        `json:"allocationRulesDescription,omitempty"`
	UncertaintyAssessmentDescription  string                        `json:"uncertaintyAssessmentDescription,omitempty"`
	PrimaryDataShare                  *float64                      `json:"primaryDataShare,omitempty"`
	DQI                               *DataQualityIndicators        `json:"dqi,omitempty"`
	Assurance                         *Assurance                    `json:"assurance,omitempty"`
}

// ProductOrSectorSpecificRule names rules published by an operator.
type ProductOrSectorSpecificRule struct {
	Operator          string   `json:"operator"`
	RuleNames         []string `json:"ruleNames"`
	OtherOperatorName string   `json:"otherOperatorName,omitempty"`
}

// EmissionFactorDS is a secondary emission factor database reference.
type EmissionFactorDS struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// DataQualityIndicators are the data quality ratings.
type DataQualityIndicators struct {
	CoveragePercent  float64 `json:"coveragePercent"`
	TechnologicalDQR float64 `json:"technologicalDQR"`
	TemporalDQR      float64 `json:"temporalDQR"`
	GeographicalDQR  float64 `json:"geographicalDQR"`
	CompletenessDQR  float64 `json:"completenessDQR"`
	ReliabilityDQR   float64 `json:"reliabilityDQR"`
}

// Assurance describes third party verification.
type Assurance struct {
	Assurance    bool       `json:"assurance"`
	Coverage     string     `json:"coverage,omitempty"`
	Level        string     `json:"level,omitempty"`
	Boundary     string     `json:"boundary,omitempty"`
	ProviderName string     `json:"providerName,omitempty"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	StandardName string     `json:"standardName,omitempty"`
	Comments     string     `json:"comments,omitempty"`
}

// FootprintPage is the body of a footprint list response.
type FootprintPage struct {
	Data []ProductFootprint `json:"data"`
}

// FootprintDocument is the body of a single footprint response.
type FootprintDocument struct {
	Data ProductFootprint `json:"data"`
}
