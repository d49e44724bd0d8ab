package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/herbarium-review/internal/config"
)

const defaultCheckInterval = 5 * time.Minute

// Checker periodically collects a backlog snapshot, evaluates it and
// notifies the webhook of any breached thresholds.
type Checker struct {
	collector *Collector
	notifier  *Notifier
	cfg       config.MonitoringConfig
}

// NewChecker wires a Checker. notifier may be nil, in which case alerts
// are only logged.
func NewChecker(collector *Collector, notifier *Notifier, cfg config.MonitoringConfig) *Checker {
	return &Checker{collector: collector, notifier: notifier, cfg: cfg}
}

func (c *Checker) interval() time.Duration {
	if c.cfg.CheckIntervalSecs <= 0 {
		return defaultCheckInterval
	}
	return time.Duration(c.cfg.CheckIntervalSecs) * time.Second
}

// Run blocks until ctx is done. The first check happens immediately so
// the backlog gauges are populated on startup.
func (c *Checker) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "monitoring.checker"))
	every := c.interval()
	log.Info("backlog checker started", zap.Duration("interval", every))
	defer log.Info("backlog checker stopped")

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for ctx.Err() == nil {
		c.Check(ctx, log)
		select {
		case <-ctx.Done():
		case <-ticker.C:
		}
	}
}

// Check runs one collection and returns the alerts it raised.
func (c *Checker) Check(ctx context.Context, log *zap.Logger) []Alert {
	snap, err := c.collector.Collect(ctx)
	if err != nil {
		log.Error("monitoring: collect backlog", zap.Error(err))
		return nil
	}

	alerts := Evaluate(c.cfg, snap)
	for _, a := range alerts {
		log.Warn("monitoring: threshold breached",
			zap.String("type", string(a.Type)),
			zap.String("severity", a.Severity),
			zap.String("message", a.Message),
		)
	}
	if len(alerts) == 0 || !c.notifier.Enabled() {
		return alerts
	}

	if err := c.notifier.Notify(ctx, snap, alerts); err != nil {
		log.Error("monitoring: webhook delivery failed", zap.Int("alerts", len(alerts)), zap.Error(err))
	}
	return alerts
}
