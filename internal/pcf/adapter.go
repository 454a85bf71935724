package pcf

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/wolfeidau/pcfhub/internal/apperr"
	"github.com/wolfeidau/pcfhub/internal/models"
)

// Decoded is an inbound footprint split into the internal record and the
// product and company details it describes.
type Decoded struct {
	Footprint          *models.ProductFootprint
	CompanyName        string
	CompanyIDs         []models.Identifier
	ProductName        string
	ProductDescription string
	ProductCategoryCpc string
	ProductIDs         []models.Identifier
}

// ToWire renders a stored footprint with its product and owning organization.
func ToWire(fp *models.ProductFootprint, product *models.Product, org *models.Organization) (*ProductFootprint, error) {
	unit, err := UnitToWire(fp.DeclaredUnit)
	if err != nil {
		return nil, fmt.Errorf("failed to render footprint %s: %w", fp.DataID, err)
	}

	w := &ProductFootprint{
		ID:                  fp.DataID.String(),
		SpecVersion:         fp.SpecVersion,
		Version:             fp.Version,
		Created:             fp.CreatedAt.UTC(),
		Status:              string(fp.Status),
		StatusComment:       fp.StatusComment,
		ValidityPeriodStart: fp.ValidityPeriodStart,
		ValidityPeriodEnd:   fp.ValidityPeriodEnd,
		CompanyName:         org.Name,
		CompanyIDs:          OrganizationURNs(org.Identifiers),
		ProductDescription:  product.Description,
		ProductIDs:          ProductURNs(product.Identifiers),
		ProductCategoryCpc:  product.CPC,
		ProductNameCompany:  product.Name,
		Comment:             fp.Comment,
	}
	if w.SpecVersion == "" {
		w.SpecVersion = SpecVersion
	}
	if !fp.UpdatedAt.IsZero() && !fp.UpdatedAt.Equal(fp.CreatedAt) {
		updated := fp.UpdatedAt.UTC()
		w.Updated = &updated
	}
	for _, id := range fp.PrecedingDataIDs {
		w.PrecedingPfIDs = append(w.PrecedingPfIDs, id.String())
	}

	w.PCF = CarbonFootprint{
		DeclaredUnit:                      unit,
		UnitaryProductAmount:              Decimal(fp.UnitaryProductAmount),
		PCFExcludingBiogenic:              Decimal(fp.PCFExcludingBiogenic),
		PCFIncludingBiogenic:              toDecimal(fp.PCFIncludingBiogenic),
		FossilGHGEmissions:                Decimal(fp.FossilGHGEmissions),
		FossilCarbonContent:               Decimal(fp.FossilCarbonContent),
		BiogenicCarbonContent:             Decimal(fp.BiogenicCarbonContent),
		DLUCGHGEmissions:                  toDecimal(fp.DLUCGHGEmissions),
		LandManagementGHGEmissions:        toDecimal(fp.LandManagementGHGEmissions),
		OtherBiogenicGHGEmissions:         toDecimal(fp.OtherBiogenicGHGEmissions),
		ILUCGHGEmissions:                  toDecimal(fp.ILUCGHGEmissions),
		BiogenicCarbonWithdrawal:          toDecimal(fp.BiogenicCarbonWithdrawal),
		AircraftGHGEmissions:              toDecimal(fp.AircraftGHGEmissions),
		BiogenicAccountingMethodology:     fp.BiogenicAccountingMethodology,
		BoundaryProcessesDescription:      fp.BoundaryProcessesDescription,
		ReferencePeriodStart:              fp.ReferencePeriodStart.UTC(),
		ReferencePeriodEnd:                fp.ReferencePeriodEnd.UTC(),
		GeographyCountrySubdivision:       fp.GeographyCountrySubdivision,
		GeographyCountry:                  fp.GeographyCountry,
		GeographyRegionOrSubregion:        fp.GeographyRegionOrSubregion,
		ExemptedEmissionsPercent:          fp.ExemptedEmissionsPercent,
		ExemptedEmissionsDescription:      fp.ExemptedEmissionsDescription,
		PackagingEmissionsIncluded:        fp.PackagingEmissionsIncluded,
		PackagingGHGEmissions:             toDecimal(fp.PackagingGHGEmissions),
		AllocationRulesDescription:        fp.AllocationRulesDescription,
		UncertaintyAssessmentDescription:  fp.UncertaintyAssessmentDescription,
		PrimaryDataShare:                  fp.PrimaryDataShare,
		IPCCCharacterizationFactorSources: []string{},
		CrossSectoralStandardsUsed:        []string{},
	}

	for _, r := range fp.GWPReports {
		w.PCF.IPCCCharacterizationFactorSources = append(w.PCF.IPCCCharacterizationFactorSources, r.Source)
	}
	for _, s := range fp.AccountingStandards {
		w.PCF.CrossSectoralStandardsUsed = append(w.PCF.CrossSectoralStandardsUsed, s.Name)
	}
	for _, r := range fp.CarbonAccountingRules {
		w.PCF.ProductOrSectorSpecificRules = append(w.PCF.ProductOrSectorSpecificRules, ProductOrSectorSpecificRule{
			Operator:          r.Operator,
			RuleNames:         r.RuleNames,
			OtherOperatorName: r.OtherOperatorName,
		})
	}
	for _, s := range fp.SecondaryEmissionFactorSources {
		w.PCF.SecondaryEmissionFactorSources = append(w.PCF.SecondaryEmissionFactorSources, EmissionFactorDS(s))
	}
	if dq := fp.DataQuality; dq != nil {
		w.PCF.DQI = &DataQualityIndicators{
			CoveragePercent:  dq.CoveragePercent,
			TechnologicalDQR: dq.TechnologicalDQR,
			TemporalDQR:      dq.TemporalDQR,
			GeographicalDQR:  dq.GeographicalDQR,
			CompletenessDQR:  dq.CompletenessDQR,
			ReliabilityDQR:   dq.ReliabilityDQR,
		}
	}
	if a := fp.Assurance; a != nil {
		w.PCF.Assurance = &Assurance{
			Assurance:    a.Assurance,
			Coverage:     a.Coverage,
			Level:        a.Level,
			Boundary:     a.Boundary,
			ProviderName: a.ProviderName,
			CompletedAt:  a.CompletedAt,
			StandardName: a.StandardName,
			Comments:     a.Comments,
		}
	}

	return w, nil
}

// FromWire converts an inbound footprint document. The returned footprint has
// no internal, product or organization IDs yet; the caller assigns them.
func FromWire(w *ProductFootprint) (*Decoded, error) {
	dataID, err := uuid.Parse(w.ID)
	if err != nil {
		return nil, apperr.Request("invalid footprint id %q", w.ID)
	}
	unit, err := UnitFromWire(w.PCF.DeclaredUnit)
	if err != nil {
		return nil, err
	}

	fp := &models.ProductFootprint{
		DataID:              dataID,
		Version:             w.Version,
		Status:              models.FootprintStatusActive,
		StatusComment:       w.StatusComment,
		SpecVersion:         w.SpecVersion,
		Comment:             w.Comment,
		CreatedAt:           w.Created,
		UpdatedAt:           w.Created,
		ValidityPeriodStart: w.ValidityPeriodStart,
		ValidityPeriodEnd:   w.ValidityPeriodEnd,

		DeclaredUnit:                     unit,
		UnitaryProductAmount:             float64(w.PCF.UnitaryProductAmount),
		PCFExcludingBiogenic:             float64(w.PCF.PCFExcludingBiogenic),
		PCFIncludingBiogenic:             fromDecimal(w.PCF.PCFIncludingBiogenic),
		FossilGHGEmissions:               float64(w.PCF.FossilGHGEmissions),
		FossilCarbonContent:              float64(w.PCF.FossilCarbonContent),
		BiogenicCarbonContent:            float64(w.PCF.BiogenicCarbonContent),
		DLUCGHGEmissions:                 fromDecimal(w.PCF.DLUCGHGEmissions),
		LandManagementGHGEmissions:       fromDecimal(w.PCF.LandManagementGHGEmissions),
		OtherBiogenicGHGEmissions:        fromDecimal(w.PCF.OtherBiogenicGHGEmissions),
		ILUCGHGEmissions:                 fromDecimal(w.PCF.ILUCGHGEmissions),
		BiogenicCarbonWithdrawal:         fromDecimal(w.PCF.BiogenicCarbonWithdrawal),
		AircraftGHGEmissions:             fromDecimal(w.PCF.AircraftGHGEmissions),
		BiogenicAccountingMethodology:    w.PCF.BiogenicAccountingMethodology,
		BoundaryProcessesDescription:     w.PCF.BoundaryProcessesDescription,
		ReferencePeriodStart:             w.PCF.ReferencePeriodStart,
		ReferencePeriodEnd:               w.PCF.ReferencePeriodEnd,
		GeographyCountry:                 w.PCF.GeographyCountry,
		GeographyCountrySubdivision:      w.PCF.GeographyCountrySubdivision,
		GeographyRegionOrSubregion:       w.PCF.GeographyRegionOrSubregion,
		ExemptedEmissionsPercent:         w.PCF.ExemptedEmissionsPercent,
		ExemptedEmissionsDescription:     w.PCF.ExemptedEmissionsDescription,
		PackagingEmissionsIncluded:       w.PCF.PackagingEmissionsIncluded,
		PackagingGHGEmissions:            fromDecimal(w.PCF.PackagingGHGEmissions),
		AllocationRulesDescription:       w.PCF.AllocationRulesDescription,
		UncertaintyAssessmentDescription: w.PCF.UncertaintyAssessmentDescription,
		PrimaryDataShare:                 w.PCF.PrimaryDataShare,
	}
	if w.Updated != nil {
		fp.UpdatedAt = *w.Updated
	}
	if w.Status == string(models.FootprintStatusDeprecated) {
		fp.Status = models.FootprintStatusDeprecated
	}

	for _, id := range w.PrecedingPfIDs {
		prev, err := uuid.Parse(id)
		if err != nil {
			return nil, apperr.Request("invalid preceding footprint id %q", id)
		}
		fp.PrecedingDataIDs = append(fp.PrecedingDataIDs, prev)
	}
	for _, src := range w.PCF.IPCCCharacterizationFactorSources {
		fp.GWPReports = append(fp.GWPReports, models.GWPReport{Source: src})
	}
	for _, std := range w.PCF.CrossSectoralStandardsUsed {
		fp.AccountingStandards = append(fp.AccountingStandards, models.AccountingStandard{Name: std})
	}
	for _, r := range w.PCF.ProductOrSectorSpecificRules {
		fp.CarbonAccountingRules = append(fp.CarbonAccountingRules, models.CarbonAccountingRule{
			Operator:          r.Operator,
			RuleNames:         r.RuleNames,
			OtherOperatorName: r.OtherOperatorName,
		})
	}
	for _, s := range w.PCF.SecondaryEmissionFactorSources {
		fp.SecondaryEmissionFactorSources = append(fp.SecondaryEmissionFactorSources, models.EmissionFactorSource(s))
	}
	if dq := w.PCF.DQI; dq != nil {
		fp.DataQuality = &models.DataQualityIndicator{
			CoveragePercent:  dq.CoveragePercent,
			TechnologicalDQR: dq.TechnologicalDQR,
			TemporalDQR:      dq.TemporalDQR,
			GeographicalDQR:  dq.GeographicalDQR,
			CompletenessDQR:  dq.CompletenessDQR,
			ReliabilityDQR:   dq.ReliabilityDQR,
		}
	}
	if a := w.PCF.Assurance; a != nil {
		fp.Assurance = &models.Assurance{
			Assurance:    a.Assurance,
			Coverage:     a.Coverage,
			Level:        a.Level,
			Boundary:     a.Boundary,
			ProviderName: a.ProviderName,
			CompletedAt:  a.CompletedAt,
			StandardName: a.StandardName,
			Comments:     a.Comments,
		}
	}

	return &Decoded{
		Footprint:          fp,
		CompanyName:        w.CompanyName,
		CompanyIDs:         ParseOrganizationURNs(w.CompanyIDs),
		ProductName:        w.ProductNameCompany,
		ProductDescription: w.ProductDescription,
		ProductCategoryCpc: w.ProductCategoryCpc,
		ProductIDs:         ParseProductURNs(w.ProductIDs),
	}, nil
}

func toDecimal(f *float64) *Decimal {
	if f == nil {
		return nil
	}
	d := Decimal(*f)
	return &d
}

func fromDecimal(d *Decimal) *float64 {
	if d == nil {
		return nil
	}
	f := float64(*d)
	return &f
}
