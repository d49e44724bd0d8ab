package model

import "slices"

// Darwin Core terms handled by the review engine.
const (
	TermCatalogNumber      = "catalogNumber"
	TermScientificName     = "scientificName"
	TermEventDate          = "eventDate"
	TermRecordedBy         = "recordedBy"
	TermCountry            = "country"
	TermStateProvince      = "stateProvince"
	TermLocality           = "locality"
	TermCounty             = "county"
	TermRecordNumber       = "recordNumber"
	TermHabitat            = "habitat"
	TermDecimalLatitude    = "decimalLatitude"
	TermDecimalLongitude   = "decimalLongitude"
	TermIdentifiedBy       = "identifiedBy"
	TermDateIdentified     = "dateIdentified"
	TermInstitutionCode    = "institutionCode"
	TermCollectionCode     = "collectionCode"
	TermOccurrenceRemarks  = "occurrenceRemarks"
	TermVerbatimElevation  = "verbatimElevation"
	TermVerbatimEventDate  = "verbatimEventDate"
	TermScientificNameAuth = "scientificNameAuthorship"
	TermFamily             = "family"
	TermGenus              = "genus"
	TermSpecificEpithet    = "specificEpithet"
	TermTypeStatus         = "typeStatus"
)

// DefaultRequiredFields are the terms a record needs before publication.
var DefaultRequiredFields = []string{
	TermCatalogNumber,
	TermScientificName,
	TermEventDate,
	TermRecordedBy,
	TermCountry,
	TermStateProvince,
	TermLocality,
}

// DarwinCoreTerms is the vocabulary a correction may target in addition to
// whatever the extractor produced for a specimen.
var DarwinCoreTerms = map[string]bool{
	TermCatalogNumber:      true,
	TermScientificName:     true,
	TermEventDate:          true,
	TermRecordedBy:         true,
	TermCountry:            true,
	TermStateProvince:      true,
	TermLocality:           true,
	TermCounty:             true,
	TermRecordNumber:       true,
	TermHabitat:            true,
	TermDecimalLatitude:    true,
	TermDecimalLongitude:   true,
	TermIdentifiedBy:       true,
	TermDateIdentified:     true,
	TermInstitutionCode:    true,
	TermCollectionCode:     true,
	TermOccurrenceRemarks:  true,
	TermVerbatimElevation:  true,
	TermVerbatimEventDate:  true,
	TermScientificNameAuth: true,
	TermFamily:             true,
	TermGenus:              true,
	TermSpecificEpithet:    true,
	TermTypeStatus:         true,
}

// IsKnownField reports whether field may be corrected on s: a vocabulary
// term, a key the extractor emitted, or one of the extra names (the
// configured required fields).
func IsKnownField(s *Specimen, field string, extra ...string) bool {
	if DarwinCoreTerms[field] || slices.Contains(extra, field) {
		return true
	}
	if s == nil {
		return false
	}
	_, ok := s.Raw.Fields[field]
	return ok
}
