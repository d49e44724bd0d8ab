// Package export gates publication of specimen records and keeps their
// export history.
package export

import (
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/herbarium-review/internal/model"
	"github.com/sells-group/herbarium-review/internal/workflow"
)

// Supported snapshot formats. The archive writer downstream owns the file
// layout; the engine only records which format was produced.
const (
	FormatDwCA = "dwc-a"
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// Formats lists the supported export formats.
var Formats = []string{FormatDwCA, FormatCSV, FormatJSON}

// Request describes one export.
type Request struct {
	Format      string `json:"format"`
	Destination string `json:"destination,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// CanExport reports whether rec may be exported.
func CanExport(rec *model.Specimen) bool {
	return rec.State == model.StateReadyForExport
}

// MarkExported records a successful export of rec and moves it to EXPORTED.
// rec must be a private copy; on error it is left unchanged and no event is
// appended.
func MarkExported(rec *model.Specimen, actor model.Actor, req Request, now time.Time) (model.ExportEvent, error) {
	if !CanExport(rec) {
		return model.ExportEvent{}, model.NewError(model.KindNotReadyForExport, rec.ID,
			"state is %s, export requires %s", rec.State, model.StateReadyForExport)
	}
	format := strings.ToLower(strings.TrimSpace(req.Format))
	if format == "" {
		format = FormatDwCA
	}
	if !slices.Contains(Formats, format) {
		return model.ExportEvent{}, model.NewError(model.KindNotReadyForExport, rec.ID,
			"unsupported export format %q", req.Format)
	}
	if err := workflow.Check(rec, actor, model.ActionMarkExported); err != nil {
		return model.ExportEvent{}, err
	}

	event := model.ExportEvent{
		ID:              uuid.New().String(),
		Timestamp:       now,
		Format:          format,
		Destination:     strings.TrimSpace(req.Destination),
		Actor:           actor.ID,
		Fields:          maps.Clone(rec.Fields),
		CorrectionCount: len(rec.Corrections),
	}
	if event.Fields == nil {
		event.Fields = map[string]string{}
	}

	if _, err := workflow.ApplyExport(rec, actor, req.Notes, now); err != nil {
		return model.ExportEvent{}, err
	}
	rec.Export.History = append(rec.Export.History, event)
	rec.Export.Count++
	rec.Export.Status = model.ExportStatusExported
	return event, nil
}

// LastExport returns the most recent export event, if any.
func LastExport(rec *model.Specimen) (model.ExportEvent, bool) {
	if n := len(rec.Export.History); n > 0 {
		return rec.Export.History[n-1], true
	}
	return model.ExportEvent{}, false
}

// ChangedSinceExport lists the fields whose current value differs from the
// last export snapshot, sorted by name. It is empty for never-exported records.
func ChangedSinceExport(rec *model.Specimen) []string {
	last, ok := LastExport(rec)
	if !ok {
		return nil
	}
	var out []string
	for name, v := range rec.Fields {
		if prev, ok := last.Fields[name]; !ok || prev != v {
			out = append(out, name)
		}
	}
	for name := range last.Fields {
		if _, ok := rec.Fields[name]; !ok {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}
