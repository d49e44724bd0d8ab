package monitoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/herbarium-review/internal/config"
)

func thresholds() config.MonitoringConfig {
	return config.MonitoringConfig{
		CriticalBacklog:        10,
		ModifiedSinceExport:    1,
		EntrantBacklogPerActor: 5,
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name  string
		snap  BacklogSnapshot
		types []AlertType
	}{
		{
			name:  "under thresholds",
			snap:  BacklogSnapshot{Total: 50, Critical: 3, AssignedPerEntrant: map[string]int{"bob": 2}},
			types: nil,
		},
		{
			name:  "critical backlog",
			snap:  BacklogSnapshot{Total: 40, Critical: 12},
			types: []AlertType{AlertCriticalBacklog},
		},
		{
			name:  "stale exports",
			snap:  BacklogSnapshot{ModifiedSinceExport: 2},
			types: []AlertType{AlertModifiedSinceExport},
		},
		{
			name: "all rules in order",
			snap: BacklogSnapshot{
				Critical:            10,
				ModifiedSinceExport: 1,
				AssignedPerEntrant:  map[string]int{"bob": 5},
			},
			types: []AlertType{AlertCriticalBacklog, AlertModifiedSinceExport, AlertEntrantBacklog},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alerts := Evaluate(thresholds(), &tt.snap)
			var got []AlertType
			for _, a := range alerts {
				got = append(got, a.Type)
			}
			assert.Equal(t, tt.types, got)
		})
	}
}

func TestEvaluate_CriticalMessage(t *testing.T) {
	alerts := Evaluate(thresholds(), &BacklogSnapshot{Total: 40, Critical: 12})
	require.Len(t, alerts, 1)
	assert.Equal(t, "high", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "12 CRITICAL")
	assert.Equal(t, 40, alerts[0].Details["total"])
}

func TestEvaluate_EntrantsSorted(t *testing.T) {
	alerts := Evaluate(thresholds(), &BacklogSnapshot{
		AssignedPerEntrant: map[string]int{"zoe": 9, "bob": 5, "dave": 1},
	})
	require.Len(t, alerts, 2)
	assert.Equal(t, "bob", alerts[0].Details["entrant"])
	assert.Equal(t, "zoe", alerts[1].Details["entrant"])
}

func TestEvaluate_ZeroThresholdsDisabled(t *testing.T) {
	alerts := Evaluate(config.MonitoringConfig{}, &BacklogSnapshot{
		Critical:            999,
		ModifiedSinceExport: 999,
		AssignedPerEntrant:  map[string]int{"bob": 999},
	})
	assert.Empty(t, alerts)
}

func TestEvaluate_TimestampFromSnapshot(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	alerts := Evaluate(thresholds(), &BacklogSnapshot{Critical: 10, CollectedAt: at})
	require.Len(t, alerts, 1)
	assert.Equal(t, at, alerts[0].Timestamp)
}
