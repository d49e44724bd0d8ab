// Package ledger applies single-field corrections to specimen records and
// keeps the append-only correction audit trail.
package ledger

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/herbarium-review/internal/config"
	"github.com/sells-group/herbarium-review/internal/model"
	"github.com/sells-group/herbarium-review/internal/scorer"
)

// Request is one human correction of one field.
type Request struct {
	Field  string `json:"field"`
	Value  string `json:"value"`
	Actor  string `json:"actor"`
	Reason string `json:"reason,omitempty"`
}

// Validate checks the request against rec without modifying anything.
// Configured required fields are always correctable, so a record missing
// one can be completed by hand.
func Validate(rec *model.Specimen, req Request, cfg config.QualityConfig) error {
	field := strings.TrimSpace(req.Field)
	if field == "" {
		return model.NewError(model.KindInvalidCorrection, rec.ID, "field is required")
	}
	if !model.IsKnownField(rec, field, cfg.RequiredFields...) {
		return model.NewError(model.KindInvalidCorrection, rec.ID, "unknown field %q", field)
	}
	if strings.TrimSpace(req.Actor) == "" {
		return model.NewError(model.KindInvalidCorrection, rec.ID, "actor is required")
	}
	return nil
}

// NormalizeValue trims surrounding whitespace and converts to NFC so that
// visually identical label transcriptions compare equal.
func NormalizeValue(v string) string {
	return norm.NFC.String(strings.TrimSpace(v))
}

// Apply corrects one field of rec in place and returns the ledger entry.
// Validator findings about the corrected field are dropped and the result
// marked stale until the record is validated again. rec must be a private
// copy (store mutators receive one). On error rec is left untouched.
func Apply(rec *model.Specimen, req Request, now time.Time, cfg config.QualityConfig) (model.Correction, error) {
	if err := Validate(rec, req, cfg); err != nil {
		return model.Correction{}, err
	}
	field := strings.TrimSpace(req.Field)
	value := NormalizeValue(req.Value)

	entry := model.Correction{
		ID:        uuid.New().String(),
		Field:     field,
		Value:     value,
		Actor:     strings.TrimSpace(req.Actor),
		Timestamp: now,
		Reason:    strings.TrimSpace(req.Reason),
	}
	if prev, ok := rec.Fields[field]; ok {
		entry.PreviousValue = &prev
	}
	_, inRaw := rec.Raw.Fields[field]
	entry.WasAIExtracted = inRaw && !rec.IsCorrected(field)

	if rec.Fields == nil {
		rec.Fields = make(map[string]string)
	}
	rec.Corrections = append(rec.Corrections, entry)
	rec.Fields[field] = value
	MarkModified(rec)
	rec.Validation = rec.Validation.Invalidate(field)
	rec.Quality = scorer.Score(rec, cfg)

	return entry, nil
}

// MarkModified flips an exported record to modified_since_export. Only a new
// export clears the flag.
func MarkModified(rec *model.Specimen) {
	if rec.Export.Status == model.ExportStatusExported {
		rec.Export.Status = model.ExportStatusModifiedSinceExport
	}
}

// History returns the ledger entries for field, oldest first.
func History(rec *model.Specimen, field string) []model.Correction {
	var out []model.Correction
	for _, c := range rec.Corrections {
		if c.Field == field {
			out = append(out, c)
		}
	}
	return out
}

// Provenance reports for each current field whether it is raw or corrected.
func Provenance(rec *model.Specimen) map[string]string {
	out := make(map[string]string, len(rec.Fields))
	for name := range rec.Fields {
		if rec.IsCorrected(name) {
			out[name] = "corrected"
		} else {
			out[name] = "raw"
		}
	}
	return out
}
