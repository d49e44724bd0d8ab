package monitoring

import (
	"fmt"
	"sort"
	"time"

	"github.com/sells-group/herbarium-review/internal/config"
)

// AlertType names a backlog condition.
type AlertType string

const (
	AlertCriticalBacklog     AlertType = "critical_backlog"
	AlertModifiedSinceExport AlertType = "modified_since_export"
	AlertEntrantBacklog      AlertType = "entrant_backlog"
)

// Alert is one breached threshold.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// rule inspects a snapshot. Rules whose threshold is zero never fire.
type rule func(cfg config.MonitoringConfig, snap *BacklogSnapshot, at time.Time) []Alert

var rules = []rule{criticalBacklog, staleExports, entrantBacklog}

// Evaluate returns the alerts snap triggers under cfg, in rule order.
func Evaluate(cfg config.MonitoringConfig, snap *BacklogSnapshot) []Alert {
	at := snap.CollectedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	var out []Alert
	for _, r := range rules {
		out = append(out, r(cfg, snap, at)...)
	}
	return out
}

func criticalBacklog(cfg config.MonitoringConfig, snap *BacklogSnapshot, at time.Time) []Alert {
	limit := cfg.CriticalBacklog
	if limit <= 0 || snap.Critical < limit {
		return nil
	}
	return []Alert{{
		Type:      AlertCriticalBacklog,
		Severity:  "high",
		Message:   fmt.Sprintf("%d CRITICAL records awaiting review (threshold %d)", snap.Critical, limit),
		Details:   map[string]any{"critical": snap.Critical, "threshold": limit, "total": snap.Total},
		Timestamp: at,
	}}
}

// Exported data is stale until these records are exported again.
func staleExports(cfg config.MonitoringConfig, snap *BacklogSnapshot, at time.Time) []Alert {
	limit := cfg.ModifiedSinceExport
	if limit <= 0 || snap.ModifiedSinceExport < limit {
		return nil
	}
	return []Alert{{
		Type:      AlertModifiedSinceExport,
		Severity:  "medium",
		Message:   fmt.Sprintf("%d exported record(s) changed since their last export", snap.ModifiedSinceExport),
		Details:   map[string]any{"modified_since_export": snap.ModifiedSinceExport, "threshold": limit},
		Timestamp: at,
	}}
}

func entrantBacklog(cfg config.MonitoringConfig, snap *BacklogSnapshot, at time.Time) []Alert {
	limit := cfg.EntrantBacklogPerActor
	if limit <= 0 {
		return nil
	}
	ids := make([]string, 0, len(snap.AssignedPerEntrant))
	for id, n := range snap.AssignedPerEntrant {
		if n >= limit {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	out := make([]Alert, 0, len(ids))
	for _, id := range ids {
		n := snap.AssignedPerEntrant[id]
		out = append(out, Alert{
			Type:      AlertEntrantBacklog,
			Severity:  "low",
			Message:   fmt.Sprintf("entrant %s has %d records awaiting decision (threshold %d)", id, n, limit),
			Details:   map[string]any{"entrant": id, "assigned": n, "threshold": limit},
			Timestamp: at,
		})
	}
	return out
}
