package memory

import (
	"slices"

	"github.com/wolfeidau/pcfhub/internal/models"
)

func cloneOrganization(o *models.Organization) *models.Organization {
	c := *o
	c.Identifiers = slices.Clone(o.Identifiers)
	if o.ParentID != nil {
		p := *o.ParentID
		c.ParentID = &p
	}
	return &c
}

func cloneProduct(p *models.Product) *models.Product {
	c := *p
	c.Identifiers = slices.Clone(p.Identifiers)
	if p.ParentID != nil {
		parent := *p.ParentID
		c.ParentID = &parent
	}
	return &c
}

func cloneDataSource(d *models.DataSource) *models.DataSource {
	c := *d
	c.Endpoints = slices.Clone(d.Endpoints)
	return &c
}

func clonePartnerClient(p *models.PartnerClient) *models.PartnerClient {
	c := *p
	c.SecretHash = slices.Clone(p.SecretHash)
	return &c
}

func cloneTask(t *models.Task) *models.Task {
	c := *t
	c.Payload = slices.Clone(t.Payload)
	return &c
}

func cloneFootprint(f *models.ProductFootprint) *models.ProductFootprint {
	c := *f
	c.PrecedingDataIDs = slices.Clone(f.PrecedingDataIDs)
	c.SecondaryEmissionFactorSources = slices.Clone(f.SecondaryEmissionFactorSources)
	c.GWPReports = slices.Clone(f.GWPReports)
	c.AccountingStandards = slices.Clone(f.AccountingStandards)
	c.CarbonAccountingRules = make([]models.CarbonAccountingRule, 0, len(f.CarbonAccountingRules))
	for _, r := range f.CarbonAccountingRules {
		r.RuleNames = slices.Clone(r.RuleNames)
		c.CarbonAccountingRules = append(c.CarbonAccountingRules, r)
	}
	if len(c.CarbonAccountingRules) == 0 {
		c.CarbonAccountingRules = nil
	}
	if f.DataQuality != nil {
		dq := *f.DataQuality
		c.DataQuality = &dq
	}
	if f.Assurance != nil {
		a := *f.Assurance
		c.Assurance = &a
	}
	c.PCFIncludingBiogenic = cloneFloat(f.PCFIncludingBiogenic)
	c.DLUCGHGEmissions = cloneFloat(f.DLUCGHGEmissions)
	c.LandManagementGHGEmissions = cloneFloat(f.LandManagementGHGEmissions)
	c.OtherBiogenicGHGEmissions = cloneFloat(f.OtherBiogenicGHGEmissions)
	c.ILUCGHGEmissions = cloneFloat(f.ILUCGHGEmissions)
	c.BiogenicCarbonWithdrawal = cloneFloat(f.BiogenicCarbonWithdrawal)
	c.AircraftGHGEmissions = cloneFloat(f.AircraftGHGEmissions)
	c.PackagingGHGEmissions = cloneFloat(f.PackagingGHGEmissions)
	c.PrimaryDataShare = cloneFloat(f.PrimaryDataShare)
	return &c
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
