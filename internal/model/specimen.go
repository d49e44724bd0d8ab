package model

import (
	"encoding/json"
	"time"
)

// FieldValue is a single extracted Darwin Core value with the extractor's
// confidence. Confidence is nil when the extractor did not report one.
type FieldValue struct {
	Value      string   `json:"value"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// Conf returns a pointer to c, for building FieldValues in literals.
func Conf(c float64) *float64 {
	return &c
}

// RawExtraction is the untouched output of the OCR/AI collaborator. It is
// written once at ingestion and never mutated afterwards.
type RawExtraction struct {
	Fields      map[string]FieldValue `json:"fields"`
	Model       string                `json:"model,omitempty"`
	Provider    string                `json:"provider,omitempty"`
	ExtractedAt time.Time             `json:"extracted_at"`
}

// Correction is an immutable ledger entry for one human field change.
type Correction struct {
	ID             string    `json:"id"`
	Field          string    `json:"field"`
	Value          string    `json:"value"`
	Actor          string    `json:"actor"`
	Timestamp      time.Time `json:"timestamp"`
	PreviousValue  *string   `json:"previous_value,omitempty"`
	WasAIExtracted bool      `json:"was_ai_extracted"`
	Reason         string    `json:"reason,omitempty"`
}

// TransitionEntry records one accepted workflow transition.
type TransitionEntry struct {
	ID        string    `json:"id"`
	From      State     `json:"from"`
	To        State     `json:"to"`
	Action    Action    `json:"action"`
	Actor     string    `json:"actor"`
	Notes     string    `json:"notes,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Quality holds the derived scores. It is recomputed, never edited by hand.
type Quality struct {
	CompletenessScore float64  `json:"completeness_score"`
	ConfidenceScore   float64  `json:"confidence_score"`
	QualityScore      float64  `json:"quality_score"`
	Priority          Priority `json:"priority"`
	MissingRequired   []string `json:"missing_required,omitempty"`
}

// ExportStatus tracks whether the published snapshot still matches the record.
type ExportStatus string

const (
	ExportStatusNone                ExportStatus = "not_exported"
	ExportStatusExported            ExportStatus = "exported"
	ExportStatusModifiedSinceExport ExportStatus = "modified_since_export"
)

// ExportEvent is an immutable snapshot of one successful publication.
type ExportEvent struct {
	ID              string            `json:"id"`
	Timestamp       time.Time         `json:"timestamp"`
	Format          string            `json:"format"`
	Destination     string            `json:"destination"`
	Actor           string            `json:"actor"`
	Fields          map[string]string `json:"fields"`
	CorrectionCount int               `json:"correction_count"`
}

// ExportBlock is the export state carried on a specimen.
type ExportBlock struct {
	Status  ExportStatus  `json:"status"`
	History []ExportEvent `json:"history,omitempty"`
	Count   int           `json:"count"`
}

// Decision is an entrant or supervisor verdict.
type Decision string

const (
	DecisionNone     Decision = ""
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// Specimen is the review record for one physical herbarium specimen.
type Specimen struct {
	ID          string `json:"specimen_id"`
	SourceImage string `json:"source_image,omitempty"`

	Raw         RawExtraction     `json:"raw_extraction"`
	Fields      map[string]string `json:"current_fields"`
	Corrections []Correction      `json:"corrections"`

	State              State             `json:"state"`
	AssignedTo         string            `json:"assigned_to,omitempty"`
	EntrantDecision    Decision          `json:"entrant_decision,omitempty"`
	EntrantNotes       string            `json:"entrant_notes,omitempty"`
	SupervisorDecision Decision          `json:"supervisor_decision,omitempty"`
	SupervisorNotes    string            `json:"supervisor_notes,omitempty"`
	Transitions        []TransitionEntry `json:"transitions,omitempty"`

	Flagged    bool   `json:"flagged"`
	FlagReason string `json:"flag_reason,omitempty"`

	Validation *ValidationResult `json:"validation,omitempty"`
	Quality    Quality           `json:"quality"`
	Export     ExportBlock       `json:"export"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy. Records are copy-on-read: nothing outside a
// store holds a reference to stored state.
func (s *Specimen) Clone() *Specimen {
	if s == nil {
		return nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		// Specimen holds only JSON-safe values.
		panic(err)
	}
	var out Specimen
	if err := json.Unmarshal(data, &out); err != nil {
		panic(err)
	}
	return &out
}

// IsCorrected reports whether field has at least one ledger entry.
func (s *Specimen) IsCorrected(field string) bool {
	for _, c := range s.Corrections {
		if c.Field == field {
			return true
		}
	}
	return false
}

// LatestCorrection returns the most recent correction for field, if any.
func (s *Specimen) LatestCorrection(field string) (Correction, bool) {
	for i := len(s.Corrections) - 1; i >= 0; i-- {
		if s.Corrections[i].Field == field {
			return s.Corrections[i], true
		}
	}
	return Correction{}, false
}

// CorrectedFields returns the distinct corrected field names in first-correction order.
func (s *Specimen) CorrectedFields() []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range s.Corrections {
		if !seen[c.Field] {
			seen[c.Field] = true
			out = append(out, c.Field)
		}
	}
	return out
}

// CanonicalJSON returns the stored JSON form of the specimen.
func (s *Specimen) CanonicalJSON() ([]byte, error) {
	return json.Marshal(s)
}
