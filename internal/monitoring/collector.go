package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/herbarium-review/internal/metrics"
	"github.com/sells-group/herbarium-review/internal/model"
	"github.com/sells-group/herbarium-review/internal/query"
)

// BacklogSnapshot holds a point-in-time view of the review backlog.
type BacklogSnapshot struct {
	Total               int            `json:"total"`
	Critical            int            `json:"critical"`
	ModifiedSinceExport int            `json:"modified_since_export"`
	ReadyForExport      int            `json:"ready_for_export"`
	Flagged             int            `json:"flagged"`
	MeanQualityScore    float64        `json:"mean_quality_score"`
	AssignedPerEntrant  map[string]int `json:"assigned_per_entrant"`
	CollectedAt         time.Time      `json:"collected_at"`
}

// Lister abstracts the store method the collector needs.
type Lister interface {
	List(ctx context.Context) ([]model.Specimen, error)
}

// Collector gathers backlog figures from the record store.
type Collector struct {
	store Lister
	now   func() time.Time
}

// NewCollector creates a new backlog collector.
func NewCollector(st Lister) *Collector {
	return &Collector{store: st, now: time.Now}
}

// Collect aggregates the current record population and refreshes the
// Prometheus backlog gauges.
func (c *Collector) Collect(ctx context.Context) (*BacklogSnapshot, error) {
	records, err := c.store.List(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list records")
	}

	stats := query.Statistics(records)
	metrics.Backlog(stats.ByState, stats.ByPriority, stats.ModifiedSinceExport, stats.MeanQualityScore)

	return &BacklogSnapshot{
		Total:               stats.Total,
		Critical:            stats.ByPriority[model.PriorityCritical],
		ModifiedSinceExport: stats.ModifiedSinceExport,
		ReadyForExport:      stats.ByState[model.StateReadyForExport],
		Flagged:             stats.Flagged,
		MeanQualityScore:    stats.MeanQualityScore,
		AssignedPerEntrant:  stats.AssignedPerEntrant,
		CollectedAt:         c.now().UTC(),
	}, nil
}
