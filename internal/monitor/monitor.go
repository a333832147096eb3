package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spondex/internal/shared"
)

// Runner executes one monitoring pass: run every check, persist metrics,
// prune history, and notify on alerts.
type Runner struct {
	cfg      shared.MonitorConfig
	store    *StateStore
	notifier *Notifier
	logger   *log.Logger
	checks   []Check
}

// Result is the outcome of one monitoring run.
type Result struct {
	Metrics []Metric
	Alerts  []Alert
	Report  string
}

// NewRunner creates a Runner over an opened state store.
func NewRunner(cfg shared.MonitorConfig, store *StateStore, logger *log.Logger) *Runner {
	return &Runner{
		cfg:      cfg,
		store:    store,
		notifier: NewNotifier(cfg.Notification),
		logger:   logger,
		checks:   AllChecks(),
	}
}

// Run executes all checks once. Notifications are attempted only when
// alerts triggered and notify is set; notification errors are reported in
// the returned error but do not discard the result.
func (r *Runner) Run(ctx context.Context, notify bool) (*Result, error) {
	now := time.Now()
	checkCtx := &CheckContext{Config: r.cfg, Store: r.store, Logger: r.logger, Now: now}

	var metrics []Metric
	var alerts []Alert
	for _, check := range r.checks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m, a := check(ctx, checkCtx)
		metrics = append(metrics, m...)
		alerts = append(alerts, a...)
	}

	if len(metrics) > 0 {
		if err := r.store.SaveMetrics(metrics); err != nil {
			return nil, fmt.Errorf("failed to persist metrics: %w", err)
		}
		retention := r.cfg.RetentionDays
		if retention <= 0 {
			retention = 365
		}
		cutoff := now.AddDate(0, 0, -retention)
		if err := r.store.PruneMetricsOlderThan(cutoff); err != nil {
			return nil, fmt.Errorf("failed to prune metrics: %w", err)
		}
	}

	result := &Result{
		Metrics: metrics,
		Alerts:  alerts,
		Report:  FormatReport(now, alerts, metrics),
	}

	r.logger.Info("monitoring run finished", "metrics", len(metrics), "alerts", len(alerts))

	if notify && len(alerts) > 0 {
		if err := r.notifier.Notify(alerts, result.Report, false); err != nil {
			return result, fmt.Errorf("notification delivery: %w", err)
		}
	}
	return result, nil
}

// TestNotify sends the given report through every enabled channel
// regardless of alerts, verifying delivery configuration.
func (r *Runner) TestNotify(report string) error {
	return r.notifier.Notify(nil, report, true)
}

// PollSubscribers refreshes the Telegram subscriber store.
func (r *Runner) PollSubscribers() error {
	return r.notifier.PollSubscribers()
}
