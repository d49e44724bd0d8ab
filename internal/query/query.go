// Package query filters, orders and aggregates specimen records for review
// queues and dashboards. Everything here is read-only.
package query

import (
	"math"
	"sort"

	"github.com/sells-group/herbarium-review/internal/model"
)

const (
	// DefaultLimit is the page size when a filter does not set one.
	DefaultLimit = 50
	// MaxLimit caps the page size.
	MaxLimit = 500
)

// Filter selects records for a queue page. Zero values match everything.
type Filter struct {
	State      model.State    `json:"state,omitempty"`
	Priority   model.Priority `json:"priority,omitempty"`
	Flagged    *bool          `json:"flagged,omitempty"`
	AssignedTo string         `json:"assigned_to,omitempty"`
	Limit      int            `json:"limit,omitempty"`
	Offset     int            `json:"offset,omitempty"`
}

// Page is one slice of an ordered queue.
type Page struct {
	Items  []model.Specimen `json:"items"`
	Total  int              `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

// Matches reports whether rec passes every set criterion of f.
func (f Filter) Matches(rec *model.Specimen) bool {
	if f.State != "" && rec.State != f.State {
		return false
	}
	if f.Priority != "" && rec.Quality.Priority != f.Priority {
		return false
	}
	if f.Flagged != nil && rec.Flagged != *f.Flagged {
		return false
	}
	if f.AssignedTo != "" && rec.AssignedTo != f.AssignedTo {
		return false
	}
	return true
}

func (f Filter) window() (limit, offset int) {
	limit, offset = f.Limit, f.Offset
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// Queue returns the page of records matching f, most urgent first: priority
// by severity, then quality score ascending, then specimen id. records is
// not modified.
func Queue(records []model.Specimen, f Filter) Page {
	matched := make([]model.Specimen, 0, len(records))
	for i := range records {
		if f.Matches(&records[i]) {
			matched = append(matched, records[i])
		}
	}
	SortByUrgency(matched)

	limit, offset := f.window()
	page := Page{Items: []model.Specimen{}, Total: len(matched), Limit: limit, Offset: offset}
	if offset >= len(matched) {
		return page
	}
	end := min(offset+limit, len(matched))
	page.Items = matched[offset:end]
	return page
}

// SortByUrgency orders records in queue order.
func SortByUrgency(records []model.Specimen) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if ra, rb := a.Quality.Priority.Rank(), b.Quality.Priority.Rank(); ra != rb {
			return ra < rb
		}
		if a.Quality.QualityScore != b.Quality.QualityScore {
			return a.Quality.QualityScore < b.Quality.QualityScore
		}
		return a.ID < b.ID
	})
}

// Stats aggregates the record population.
type Stats struct {
	Total               int                    `json:"total"`
	ByState             map[model.State]int    `json:"by_state"`
	ByPriority          map[model.Priority]int `json:"by_priority"`
	MeanQualityScore    float64                `json:"mean_quality_score"`
	MeanCompleteness    float64                `json:"mean_completeness_score"`
	ModifiedSinceExport int                    `json:"modified_since_export"`
	Exported            int                    `json:"exported"`
	Flagged             int                    `json:"flagged"`
	AssignedPerEntrant  map[string]int         `json:"assigned_per_entrant"`
}

// Statistics aggregates records. Assignment counts include only records
// currently awaiting their entrant's decision.
func Statistics(records []model.Specimen) Stats {
	s := Stats{
		Total:              len(records),
		ByState:            make(map[model.State]int, len(model.States)),
		ByPriority:         make(map[model.Priority]int, len(model.Priorities)),
		AssignedPerEntrant: make(map[string]int),
	}
	for _, st := range model.States {
		s.ByState[st] = 0
	}
	for _, p := range model.Priorities {
		s.ByPriority[p] = 0
	}

	var qualitySum, completenessSum float64
	for i := range records {
		rec := &records[i]
		s.ByState[rec.State]++
		if rec.Quality.Priority != "" {
			s.ByPriority[rec.Quality.Priority]++
		}
		qualitySum += rec.Quality.QualityScore
		completenessSum += rec.Quality.CompletenessScore

		switch rec.Export.Status {
		case model.ExportStatusModifiedSinceExport:
			s.ModifiedSinceExport++
		case model.ExportStatusExported:
			s.Exported++
		}
		if rec.Flagged {
			s.Flagged++
		}
		if rec.State == model.StateEntrantReview && rec.AssignedTo != "" {
			s.AssignedPerEntrant[rec.AssignedTo]++
		}
	}
	if n := len(records); n > 0 {
		s.MeanQualityScore = round2(qualitySum / float64(n))
		s.MeanCompleteness = round2(completenessSum / float64(n))
	}
	return s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
