package review

import (
	"context"
	"time"

	"github.com/sells-group/herbarium-review/internal/metrics"
	"github.com/sells-group/herbarium-review/internal/model"
	"github.com/sells-group/herbarium-review/internal/query"
	"github.com/sells-group/herbarium-review/internal/scorer"
)

// Queue returns a page of the review queue. Read-only.
func (s *Service) Queue(ctx context.Context, f query.Filter) (query.Page, error) {
	start := time.Now()
	records, err := s.store.List(ctx)
	metrics.Observe("queue", start, err)
	if err != nil {
		return query.Page{}, err
	}
	return query.Queue(records, f), nil
}

// Statistics aggregates the whole record population. Read-only.
func (s *Service) Statistics(ctx context.Context) (query.Stats, error) {
	start := time.Now()
	records, err := s.store.List(ctx)
	metrics.Observe("statistics", start, err)
	if err != nil {
		return query.Stats{}, err
	}
	return query.Statistics(records), nil
}

// Assessment is the scorer's view of one record.
type Assessment struct {
	SpecimenID          string        `json:"specimen_id"`
	Version             int64         `json:"version"`
	State               model.State   `json:"state"`
	Quality             model.Quality `json:"quality"`
	NeedsReextraction   bool          `json:"needs_reextraction"`
	LowConfidenceFields []string      `json:"low_confidence_fields,omitempty"`
}

// Assess scores the current record and reports whether its extraction is
// weak enough to send back. Read-only.
func (s *Service) Assess(ctx context.Context, id string) (*Assessment, error) {
	start := time.Now()
	rec, err := s.store.Get(ctx, id)
	metrics.Observe("assess", start, err)
	if err != nil {
		return nil, err
	}
	return &Assessment{
		SpecimenID:          rec.ID,
		Version:             rec.Version,
		Quality:             scorer.Score(rec, s.quality),
		NeedsReextraction:   scorer.NeedsReextraction(rec, s.quality),
		LowConfidenceFields: scorer.LowConfidenceFields(rec, s.quality),
		State:               rec.State,
	}, nil
}
