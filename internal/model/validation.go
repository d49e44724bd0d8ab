package model

import (
	"slices"
	"time"
)

// IssueSeverity grades a validation finding.
type IssueSeverity string

const (
	SeverityCritical IssueSeverity = "critical"
	SeverityError    IssueSeverity = "error"
	SeverityWarning  IssueSeverity = "warning"
)

// ValidationIssue is one finding from the taxonomic or locality validator.
type ValidationIssue struct {
	Code     string        `json:"code"`
	Field    string        `json:"field,omitempty"`
	Message  string        `json:"message"`
	Severity IssueSeverity `json:"severity"`
}

// ValidationResult is the read-only outcome of external validation, stored
// on the record and consumed by the priority rule.
type ValidationResult struct {
	Verified    bool              `json:"verified"`
	Confidence  float64           `json:"confidence"`
	Issues      []ValidationIssue `json:"issues,omitempty"`
	MatchedName string            `json:"matched_name,omitempty"`
	Source      string            `json:"source,omitempty"`
	ValidatedAt time.Time         `json:"validated_at"`
	// Stale is set when a validated field was corrected after ValidatedAt.
	Stale bool `json:"stale,omitempty"`
}

// validatedGroups maps each validator input to the fields whose findings
// depend on it. Coordinate findings are reported on decimalLatitude.
var validatedGroups = map[string][]string{
	TermScientificName:   {TermScientificName},
	TermDecimalLatitude:  {TermDecimalLatitude, TermDecimalLongitude, TermCountry},
	TermDecimalLongitude: {TermDecimalLatitude, TermDecimalLongitude, TermCountry},
	TermCountry:          {TermCountry},
}

// Invalidate returns the result as it stands after field was corrected:
// a stale copy without the findings that depended on the old value. v is
// returned unchanged when field is not a validator input.
func (v *ValidationResult) Invalidate(field string) *ValidationResult {
	group, ok := validatedGroups[field]
	if v == nil || !ok {
		return v
	}
	out := *v
	out.Stale = true
	out.Issues = nil
	for _, is := range v.Issues {
		if !slices.Contains(group, is.Field) {
			out.Issues = append(out.Issues, is)
		}
	}
	if field == TermScientificName {
		out.MatchedName = ""
		out.Confidence = 0
	}
	return &out
}

// HasSeverity reports whether any issue has severity sev.
func (v *ValidationResult) HasSeverity(sev IssueSeverity) bool {
	if v == nil {
		return false
	}
	for _, is := range v.Issues {
		if is.Severity == sev {
			return true
		}
	}
	return false
}

// Unresolved reports whether the validator could not verify the record or
// returned blocking (error-level) issues. A stale verdict is not trusted;
// only its surviving issues count.
func (v *ValidationResult) Unresolved() bool {
	if v == nil {
		return false
	}
	if v.Stale {
		return v.HasSeverity(SeverityError)
	}
	return !v.Verified || v.HasSeverity(SeverityError)
}
