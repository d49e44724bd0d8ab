// Package report renders review queues and backlog statistics as XLSX
// workbooks for curators who work offline in a spreadsheet.
package report

import (
	"io"
	"slices"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/herbarium-review/internal/model"
	"github.com/sells-group/herbarium-review/internal/query"
)

// Sheet names.
const (
	SheetQueue      = "Queue"
	SheetStatistics = "Statistics"
)

var queueHeader = []string{
	"specimen_id", "state", "priority", "quality_score", "completeness_score",
	"confidence_score", "missing_required", "assigned_to", "flagged",
	"export_status", "version", "updated_at",
}

// Write renders page and stats into a two-sheet workbook.
func Write(w io.Writer, page query.Page, stats query.Stats) error {
	f := xlsx.NewFile()
	if err := addQueue(f, page); err != nil {
		return err
	}
	if err := addStatistics(f, stats); err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "xlsx: write workbook")
	}
	return nil
}

func addQueue(f *xlsx.File, page query.Page) error {
	sheet, err := f.AddSheet(SheetQueue)
	if err != nil {
		return eris.Wrap(err, "xlsx: add queue sheet")
	}
	addStrings(sheet.AddRow(), queueHeader...)

	for i := range page.Items {
		rec := &page.Items[i]
		row := sheet.AddRow()
		addStrings(row, rec.ID, string(rec.State), string(rec.Quality.Priority))
		row.AddCell().SetFloat(rec.Quality.QualityScore)
		row.AddCell().SetFloat(rec.Quality.CompletenessScore)
		row.AddCell().SetFloat(rec.Quality.ConfidenceScore)
		addStrings(row, strings.Join(rec.Quality.MissingRequired, ", "), rec.AssignedTo)
		row.AddCell().SetBool(rec.Flagged)
		addStrings(row, string(rec.Export.Status))
		row.AddCell().SetInt64(rec.Version)
		addStrings(row, rec.UpdatedAt.UTC().Format(time.RFC3339))
	}
	return nil
}

func addStatistics(f *xlsx.File, s query.Stats) error {
	sheet, err := f.AddSheet(SheetStatistics)
	if err != nil {
		return eris.Wrap(err, "xlsx: add statistics sheet")
	}
	addStrings(sheet.AddRow(), "metric", "key", "value")

	metric := func(name, key string, v float64) {
		row := sheet.AddRow()
		addStrings(row, name, key)
		row.AddCell().SetFloat(v)
	}

	metric("total", "", float64(s.Total))
	for _, st := range model.States {
		metric("by_state", string(st), float64(s.ByState[st]))
	}
	for _, p := range model.Priorities {
		metric("by_priority", string(p), float64(s.ByPriority[p]))
	}
	metric("mean_quality_score", "", s.MeanQualityScore)
	metric("mean_completeness_score", "", s.MeanCompleteness)
	metric("modified_since_export", "", float64(s.ModifiedSinceExport))
	metric("exported", "", float64(s.Exported))
	metric("flagged", "", float64(s.Flagged))
	for _, id := range sortedKeys(s.AssignedPerEntrant) {
		metric("assigned_per_entrant", id, float64(s.AssignedPerEntrant[id]))
	}
	return nil
}

func addStrings(row *xlsx.Row, values ...string) {
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
