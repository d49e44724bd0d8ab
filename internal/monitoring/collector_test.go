package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/herbarium-review/internal/model"
)

type mockLister struct {
	records []model.Specimen
	err     error
}

func (m *mockLister) List(_ context.Context) ([]model.Specimen, error) {
	return m.records, m.err
}

func rec(id string, state model.State, p model.Priority, score float64) model.Specimen {
	return model.Specimen{
		ID:      id,
		State:   state,
		Quality: model.Quality{Priority: p, QualityScore: score},
		Export:  model.ExportBlock{Status: model.ExportStatusNone},
	}
}

func TestCollector_EmptyStore(t *testing.T) {
	c := NewCollector(&mockLister{})
	snap, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Total)
	assert.Equal(t, 0, snap.Critical)
	assert.Empty(t, snap.AssignedPerEntrant)
}

func TestCollector_Backlog(t *testing.T) {
	modified := rec("d", model.StateNeedsCorrection, model.PriorityLow, 90)
	modified.Export.Status = model.ExportStatusModifiedSinceExport
	assigned := rec("e", model.StateEntrantReview, model.PriorityMinimal, 95)
	assigned.AssignedTo = "bob"
	flagged := rec("f", model.StateReadyForExport, model.PriorityMinimal, 100)
	flagged.Flagged = true

	st := &mockLister{records: []model.Specimen{
		rec("a", model.StatePending, model.PriorityCritical, 40),
		rec("b", model.StatePending, model.PriorityCritical, 30),
		rec("c", model.StateInReview, model.PriorityHigh, 45),
		modified, assigned, flagged,
	}}
	c := NewCollector(st)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	snap, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, snap.Total)
	assert.Equal(t, 2, snap.Critical)
	assert.Equal(t, 1, snap.ModifiedSinceExport)
	assert.Equal(t, 1, snap.ReadyForExport)
	assert.Equal(t, 1, snap.Flagged)
	assert.Equal(t, map[string]int{"bob": 1}, snap.AssignedPerEntrant)
	assert.InDelta(t, 66.67, snap.MeanQualityScore, 0.01)
	assert.Equal(t, fixed, snap.CollectedAt)
}

func TestCollector_StoreError(t *testing.T) {
	c := NewCollector(&mockLister{err: errors.New("connection refused")})
	_, err := c.Collect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monitoring: list records")
}
