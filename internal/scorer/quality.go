package scorer

import (
	"math"
	"sort"
	"strings"

	"github.com/sells-group/herbarium-review/internal/config"
	"github.com/sells-group/herbarium-review/internal/model"
)

// Score computes the derived quality block for a record from its current
// fields, correction ledger and stored validation result. It does not
// modify rec.
func Score(rec *model.Specimen, cfg config.QualityConfig) model.Quality {
	missing := MissingRequired(rec, cfg.RequiredFields)

	var completeness float64
	if n := len(cfg.RequiredFields); n > 0 {
		completeness = float64(n-len(missing)) / float64(n) * 100
	}
	confidence := ConfidenceScore(rec, cfg)
	quality := completeness*cfg.CompletenessWeight + confidence*100*cfg.ConfidenceWeight

	q := model.Quality{
		CompletenessScore: round2(completeness),
		ConfidenceScore:   round4(confidence),
		QualityScore:      round2(quality),
		MissingRequired:   missing,
	}
	q.Priority = Priority(q.QualityScore, len(missing) > 0, rec.Validation, cfg)
	return q
}

// Priority assigns the review tier. Rules are evaluated in order and the
// first match wins.
func Priority(qualityScore float64, missingRequired bool, v *model.ValidationResult, cfg config.QualityConfig) model.Priority {
	switch {
	case missingRequired || v.HasSeverity(model.SeverityCritical):
		return model.PriorityCritical
	case qualityScore < cfg.HighThreshold || v.Unresolved():
		return model.PriorityHigh
	case qualityScore < cfg.MediumThreshold:
		return model.PriorityMedium
	case v.HasSeverity(model.SeverityWarning):
		return model.PriorityLow
	default:
		return model.PriorityMinimal
	}
}

// MissingRequired returns the required fields that are absent or blank, in
// configured order.
func MissingRequired(rec *model.Specimen, required []string) []string {
	var missing []string
	for _, f := range required {
		if strings.TrimSpace(rec.Fields[f]) == "" {
			missing = append(missing, f)
		}
	}
	return missing
}

// ConfidenceScore is the mean per-field confidence in [0,1]. Corrected
// fields count at cfg.CorrectedConfidence; uncorrected fields use the
// extractor's confidence and are skipped when it reported none.
func ConfidenceScore(rec *model.Specimen, cfg config.QualityConfig) float64 {
	confs := FieldConfidences(rec, cfg)
	if len(confs) == 0 {
		return 0
	}
	var sum float64
	for _, c := range confs {
		sum += c
	}
	return sum / float64(len(confs))
}

// FieldConfidences returns the effective confidence of every current field
// that has one.
func FieldConfidences(rec *model.Specimen, cfg config.QualityConfig) map[string]float64 {
	corrected := make(map[string]bool, len(rec.Corrections))
	for _, c := range rec.Corrections {
		corrected[c.Field] = true
	}

	out := make(map[string]float64, len(rec.Fields))
	for name := range rec.Fields {
		if corrected[name] {
			out[name] = cfg.CorrectedConfidence
			continue
		}
		if raw, ok := rec.Raw.Fields[name]; ok && raw.Confidence != nil {
			out[name] = *raw.Confidence
		}
	}
	return out
}

// NeedsReextraction reports whether the record's extraction is weak enough
// that a curator should send it back for another extraction pass.
func NeedsReextraction(rec *model.Specimen, cfg config.QualityConfig) bool {
	if len(FieldConfidences(rec, cfg)) == 0 {
		return true
	}
	return ConfidenceScore(rec, cfg) < cfg.ReextractionConfidence
}

// LowConfidenceFields lists uncorrected fields whose extractor confidence is
// below the re-extraction cutoff, sorted by name.
func LowConfidenceFields(rec *model.Specimen, cfg config.QualityConfig) []string {
	var out []string
	for name, raw := range rec.Raw.Fields {
		if rec.IsCorrected(name) || raw.Confidence == nil {
			continue
		}
		if *raw.Confidence < cfg.ReextractionConfidence {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
