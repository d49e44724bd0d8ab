package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/herbarium-review/internal/model"
	"github.com/sells-group/herbarium-review/internal/scorer"
)

var now = time.Date(2025, 4, 2, 15, 0, 0, 0, time.UTC)

func newRecord() *model.Specimen {
	return model.NewSpecimen(model.ExtractionPayload{
		SpecimenID: "spec-1",
		Fields: map[string]model.ExtractionField{
			model.TermScientificName: {Value: "Setaria Viridis", Confidence: model.Conf(0.75)},
			model.TermCountry:        {Value: "United States", Confidence: model.Conf(0.92)},
			"labelNotes":             {Value: "det. illegible", Confidence: model.Conf(0.3)},
		},
		Model:    "vision-v2",
		Provider: "openai",
	}, now)
}

func TestApply_FirstCorrection(t *testing.T) {
	rec := newRecord()
	raw := rec.Clone().Raw

	entry, err := Apply(rec, Request{
		Field:  model.TermScientificName,
		Value:  "Setaria viridis (L.) Beauv.",
		Actor:  "alice",
		Reason: "authority missing",
	}, now, scorer.DefaultConfig())
	require.NoError(t, err)

	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, "alice", entry.Actor)
	assert.Equal(t, now, entry.Timestamp)
	require.NotNil(t, entry.PreviousValue)
	assert.Equal(t, "Setaria Viridis", *entry.PreviousValue)
	assert.True(t, entry.WasAIExtracted)
	assert.Equal(t, "authority missing", entry.Reason)

	assert.Equal(t, "Setaria viridis (L.) Beauv.", rec.Fields[model.TermScientificName])
	assert.Len(t, rec.Corrections, 1)
	assert.Equal(t, raw, rec.Raw, "raw extraction must not change")
	assert.True(t, rec.IsCorrected(model.TermScientificName))
	assert.False(t, rec.IsCorrected(model.TermCountry))
}

func TestApply_RepeatedCorrectionsAppend(t *testing.T) {
	rec := newRecord()
	cfg := scorer.DefaultConfig()

	for _, v := range []string{"Setaria viridis", "Setaria viridis (L.) P.Beauv.", "Setaria viridis"} {
		_, err := Apply(rec, Request{Field: model.TermScientificName, Value: v, Actor: "alice"}, now, cfg)
		require.NoError(t, err)
	}

	hist := History(rec, model.TermScientificName)
	require.Len(t, hist, 3)
	assert.True(t, hist[0].WasAIExtracted)
	assert.False(t, hist[1].WasAIExtracted, "previous value was human-authored")
	assert.Equal(t, "Setaria viridis (L.) P.Beauv.", *hist[2].PreviousValue)

	latest, ok := rec.LatestCorrection(model.TermScientificName)
	require.True(t, ok)
	assert.Equal(t, "Setaria viridis", latest.Value)
}

func TestApply_NewFieldHasNoPreviousValue(t *testing.T) {
	rec := newRecord()

	entry, err := Apply(rec, Request{Field: model.TermCatalogNumber, Value: "MICH-001234", Actor: "alice"}, now, scorer.DefaultConfig())
	require.NoError(t, err)
	assert.Nil(t, entry.PreviousValue)
	assert.False(t, entry.WasAIExtracted)
	assert.Equal(t, "MICH-001234", rec.Fields[model.TermCatalogNumber])
}

func TestApply_ExtractorOnlyFieldIsKnown(t *testing.T) {
	rec := newRecord()
	_, err := Apply(rec, Request{Field: "labelNotes", Value: "det. A. Gray", Actor: "alice"}, now, scorer.DefaultConfig())
	assert.NoError(t, err)
}

func TestApply_NormalizesValue(t *testing.T) {
	rec := newRecord()
	// "e" followed by a combining acute accent.
	_, err := Apply(rec, Request{Field: model.TermLocality, Value: "  Bois de la Cure\u0301  ", Actor: "alice"}, now, scorer.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, "Bois de la Cur\u00e9", rec.Fields[model.TermLocality])
}

func TestApply_Invalid(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{name: "empty field", req: Request{Field: "", Value: "x", Actor: "alice"}},
		{name: "blank field", req: Request{Field: "  ", Value: "x", Actor: "alice"}},
		{name: "unknown field", req: Request{Field: "favouriteColour", Value: "x", Actor: "alice"}},
		{name: "empty actor", req: Request{Field: model.TermCountry, Value: "USA", Actor: ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newRecord()
			before := rec.Clone()

			_, err := Apply(rec, tt.req, now, scorer.DefaultConfig())
			require.Error(t, err)
			assert.ErrorIs(t, err, model.ErrInvalidCorrection)
			assert.Equal(t, before, rec, "failed correction must not mutate")
		})
	}
}

func TestApply_ExportedBecomesModified(t *testing.T) {
	rec := newRecord()
	rec.State = model.StateExported
	rec.Export = model.ExportBlock{Status: model.ExportStatusExported, Count: 1}

	_, err := Apply(rec, Request{Field: model.TermCountry, Value: "USA", Actor: "alice"}, now, scorer.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, model.ExportStatusModifiedSinceExport, rec.Export.Status)
	assert.Equal(t, model.StateExported, rec.State, "state does not change on correction")

	// Further corrections keep the flag.
	_, err = Apply(rec, Request{Field: model.TermCountry, Value: "United States", Actor: "alice"}, now, scorer.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, model.ExportStatusModifiedSinceExport, rec.Export.Status)
}

func TestApply_NotExportedStaysNotExported(t *testing.T) {
	rec := newRecord()
	_, err := Apply(rec, Request{Field: model.TermCountry, Value: "USA", Actor: "alice"}, now, scorer.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, model.ExportStatusNone, rec.Export.Status)
}

func TestApply_RecomputesQuality(t *testing.T) {
	rec := newRecord()
	cfg := scorer.DefaultConfig()
	rec.Quality = scorer.Score(rec, cfg)
	before := rec.Quality

	_, err := Apply(rec, Request{Field: model.TermCatalogNumber, Value: "MICH-1", Actor: "alice"}, now, cfg)
	require.NoError(t, err)
	assert.Greater(t, rec.Quality.CompletenessScore, before.CompletenessScore)
	assert.NotContains(t, rec.Quality.MissingRequired, model.TermCatalogNumber)
}

func TestApply_PassesInvariantCheck(t *testing.T) {
	before := newRecord()
	before.Export = model.ExportBlock{Status: model.ExportStatusExported, Count: 1}
	after := before.Clone()

	_, err := Apply(after, Request{Field: model.TermCountry, Value: "USA", Actor: "alice"}, now, scorer.DefaultConfig())
	require.NoError(t, err)
	assert.NoError(t, model.CheckInvariants(before, after))
}

func TestProvenance(t *testing.T) {
	rec := newRecord()
	_, err := Apply(rec, Request{Field: model.TermCountry, Value: "USA", Actor: "alice"}, now, scorer.DefaultConfig())
	require.NoError(t, err)

	prov := Provenance(rec)
	assert.Equal(t, "corrected", prov[model.TermCountry])
	assert.Equal(t, "raw", prov[model.TermScientificName])
}

func TestApply_ConfiguredRequiredFieldIsKnown(t *testing.T) {
	rec := newRecord()
	_, err := Apply(rec, Request{Field: "occurrenceID", Value: "urn:catalog:MICH:104233", Actor: "alice"}, now, scorer.DefaultConfig())
	assert.ErrorIs(t, err, model.ErrInvalidCorrection, "not in the vocabulary by default")

	cfg := scorer.DefaultConfig()
	cfg.RequiredFields = append(cfg.RequiredFields, "occurrenceID")
	rec.Quality = scorer.Score(rec, cfg)
	require.Contains(t, rec.Quality.MissingRequired, "occurrenceID")

	_, err = Apply(rec, Request{Field: "occurrenceID", Value: "urn:catalog:MICH:104233", Actor: "alice"}, now, cfg)
	require.NoError(t, err)
	assert.Equal(t, "urn:catalog:MICH:104233", rec.Fields["occurrenceID"])
	assert.NotContains(t, rec.Quality.MissingRequired, "occurrenceID")
}

func TestApply_InvalidatesFindingsOnCorrectedField(t *testing.T) {
	rec := newRecord()
	rec.Validation = &model.ValidationResult{
		Verified:    false,
		MatchedName: "Setaria",
		Issues: []model.ValidationIssue{
			{Code: "name_unmatched", Field: model.TermScientificName, Severity: model.SeverityError},
			{Code: "country_mismatch", Field: model.TermCountry, Severity: model.SeverityError},
		},
	}

	_, err := Apply(rec, Request{Field: model.TermScientificName, Value: "Setaria viridis", Actor: "alice"}, now, scorer.DefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, rec.Validation)
	assert.True(t, rec.Validation.Stale)
	assert.Empty(t, rec.Validation.MatchedName)
	require.Len(t, rec.Validation.Issues, 1)
	assert.Equal(t, "country_mismatch", rec.Validation.Issues[0].Code)
}

func TestApply_UnvalidatedFieldKeepsResult(t *testing.T) {
	rec := newRecord()
	v := &model.ValidationResult{Verified: true, Source: "gbif"}
	rec.Validation = v

	_, err := Apply(rec, Request{Field: model.TermLocality, Value: "Dexter", Actor: "alice"}, now, scorer.DefaultConfig())
	require.NoError(t, err)
	assert.Same(t, v, rec.Validation)
	assert.False(t, rec.Validation.Stale)
}
