package filter

import (
	"time"

	"github.com/wolfeidau/pcfhub/internal/models"
)

// Record is the in-memory view a condition is evaluated against.
type Record struct {
	Footprint    *models.ProductFootprint
	Product      *models.Product
	Organization *models.Organization
}

type valueKind int

const (
	kindString valueKind = iota
	kindNumber
	kindTime
	kindBool
	kindUUID
)

// field maps a property path to a column of the footprint list query and a
// getter for the memory store. Columns are qualified with the aliases used by
// the catalog query: f (product_footprints), p (products), o (organizations).
type field struct {
	column string
	kind   valueKind
	unit   bool // literal is a declared unit name that must be translated
	get    func(Record) any
}

var fields = map[string]field{
	"id":                  {column: "f.data_id", kind: kindUUID, get: func(r Record) any { return r.Footprint.DataID.String() }},
	"specVersion":         {column: "f.spec_version", kind: kindString, get: func(r Record) any { return r.Footprint.SpecVersion }},
	"version":             {column: "f.version", kind: kindNumber, get: func(r Record) any { return float64(r.Footprint.Version) }},
	"created":             {column: "f.created_at", kind: kindTime, get: func(r Record) any { return r.Footprint.CreatedAt }},
	"updated":             {column: "f.updated_at", kind: kindTime, get: func(r Record) any { return r.Footprint.UpdatedAt }},
	"status":              {column: "f.status", kind: kindString, get: func(r Record) any { return string(r.Footprint.Status) }},
	"validityPeriodStart": {column: "f.validity_period_start", kind: kindTime, get: func(r Record) any { return optTime(r.Footprint.ValidityPeriodStart) }},
	"validityPeriodEnd":   {column: "f.validity_period_end", kind: kindTime, get: func(r Record) any { return optTime(r.Footprint.ValidityPeriodEnd) }},
	"comment":             {column: "f.comment", kind: kindString, get: func(r Record) any { return r.Footprint.Comment }},
	"companyName":         {column: "o.name", kind: kindString, get: func(r Record) any { return r.Organization.Name }},
	"productDescription":  {column: "p.description", kind: kindString, get: func(r Record) any { return r.Product.Description }},
	"productCategoryCpc":  {column: "p.cpc", kind: kindString, get: func(r Record) any { return r.Product.CPC }},
	"productNameCompany":  {column: "p.name", kind: kindString, get: func(r Record) any { return r.Product.Name }},

	"pcf.declaredUnit":                {column: "f.declared_unit", kind: kindString, unit: true, get: func(r Record) any { return r.Footprint.DeclaredUnit }},
	"pcf.unitaryProductAmount":        {column: "f.unitary_product_amount", kind: kindNumber, get: func(r Record) any { return r.Footprint.UnitaryProductAmount }},
	"pcf.pCfExcludingBiogenic":        {column: "f.pcf_excluding_biogenic", kind: kindNumber, get: func(r Record) any { return r.Footprint.PCFExcludingBiogenic }},
	"pcf.pCfIncludingBiogenic":        {column: "f.pcf_including_biogenic", kind: kindNumber, get: func(r Record) any { return optFloat(r.Footprint.PCFIncludingBiogenic) }},
	"pcf.fossilGhgEmissions":          {column: "f.fossil_ghg_emissions", kind: kindNumber, get: func(r Record) any { return r.Footprint.FossilGHGEmissions }},
	"pcf.fossilCarbonContent":         {column: "f.fossil_carbon_content", kind: kindNumber, get: func(r Record) any { return r.Footprint.FossilCarbonContent }},
	"pcf.biogenicCarbonContent":       {column: "f.biogenic_carbon_content", kind: kindNumber, get: func(r Record) any { return r.Footprint.BiogenicCarbonContent }},
	"pcf.primaryDataShare":            {column: "f.primary_data_share", kind: kindNumber, get: func(r Record) any { return optFloat(r.Footprint.PrimaryDataShare) }},
	"pcf.exemptedEmissionsPercent":    {column: "f.exempted_emissions_percent", kind: kindNumber, get: func(r Record) any { return r.Footprint.ExemptedEmissionsPercent }},
	"pcf.packagingEmissionsIncluded":  {column: "f.packaging_emissions_included", kind: kindBool, get: func(r Record) any { return r.Footprint.PackagingEmissionsIncluded }},
	"pcf.geographyCountry":            {column: "f.geography_country", kind: kindString, get: func(r Record) any { return r.Footprint.GeographyCountry }},
	"pcf.geographyCountrySubdivision": {column: "f.geography_country_subdivision", kind: kindString, get: func(r Record) any { return r.Footprint.GeographyCountrySubdivision }},
	"pcf.geographyRegionOrSubregion":  {column: "f.geography_region_or_subregion", kind: kindString, get: func(r Record) any { return r.Footprint.GeographyRegionOrSubregion }},
	"pcf.referencePeriodStart":        {column: "f.reference_period_start", kind: kindTime, get: func(r Record) any { return r.Footprint.ReferencePeriodStart }},
	"pcf.referencePeriodEnd":          {column: "f.reference_period_end", kind: kindTime, get: func(r Record) any { return r.Footprint.ReferencePeriodEnd }},
}

func optTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func optFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
