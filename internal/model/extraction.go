package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// ExtractionField is one field in an ingestion payload.
type ExtractionField struct {
	Value      string   `json:"value"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// ExtractionPayload is what the OCR/AI collaborator delivers per specimen.
type ExtractionPayload struct {
	SpecimenID  string                     `json:"specimen_id"`
	SourceImage string                     `json:"source_image,omitempty"`
	Fields      map[string]ExtractionField `json:"fields"`
	Model       string                     `json:"model,omitempty"`
	Provider    string                     `json:"provider,omitempty"`
	Timestamp   time.Time                  `json:"timestamp"`
}

// SpecimenIDFromImage derives the stable specimen id from source image bytes.
func SpecimenIDFromImage(image []byte) string {
	sum := sha256.Sum256(image)
	return hex.EncodeToString(sum[:])
}

// NewSpecimen builds a fresh PENDING record from an ingestion payload. The
// raw extraction and the working fields start identical. Quality is left
// zero; the caller scores the record before persisting it.
func NewSpecimen(p ExtractionPayload, now time.Time) *Specimen {
	raw := RawExtraction{
		Fields:      make(map[string]FieldValue, len(p.Fields)),
		Model:       p.Model,
		Provider:    p.Provider,
		ExtractedAt: p.Timestamp,
	}
	if raw.ExtractedAt.IsZero() {
		raw.ExtractedAt = now
	}
	fields := make(map[string]string, len(p.Fields))
	for name, f := range p.Fields {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		fv := FieldValue{Value: f.Value}
		if f.Confidence != nil {
			c := clamp01(*f.Confidence)
			fv.Confidence = &c
		}
		raw.Fields[name] = fv
		fields[name] = f.Value
	}
	return &Specimen{
		ID:          p.SpecimenID,
		SourceImage: p.SourceImage,
		Raw:         raw,
		Fields:      fields,
		State:       StatePending,
		Export:      ExportBlock{Status: ExportStatusNone},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
