package main

import (
	"context"

	"github.com/desertthunder/spondex/internal/monitor"
	"github.com/urfave/cli/v3"
)

// MonitorRun executes all configured checks once, persisting metrics and
// notifying subscribers when alerts fire.
func (r *Runner) MonitorRun(ctx context.Context, cmd *cli.Command) error {
	store, err := monitor.OpenStateStore(r.config.Monitor.StatePath)
	if err != nil {
		return err
	}
	defer store.Close()

	mon := monitor.NewRunner(r.config.Monitor, store, r.logger)

	if cmd.Bool("poll-subscribers") {
		if err := mon.PollSubscribers(); err != nil {
			r.logger.Warn("subscriber polling failed", "error", err)
		}
	}

	result, runErr := mon.Run(ctx, cmd.Bool("notify"))
	if result != nil {
		if len(result.Alerts) == 0 {
			r.writePlain("✓ All checks passed (%d metrics recorded)\n", len(result.Metrics))
		} else {
			r.writePlain("%s", result.Report)
		}
	}

	return runErr
}

// MonitorReport runs all checks and prints the report without alert routing.
func (r *Runner) MonitorReport(ctx context.Context, cmd *cli.Command) error {
	store, err := monitor.OpenStateStore(r.config.Monitor.StatePath)
	if err != nil {
		return err
	}
	defer store.Close()

	mon := monitor.NewRunner(r.config.Monitor, store, r.logger)

	result, err := mon.Run(ctx, false)
	if err != nil {
		return err
	}

	r.writePlain("%s", result.Report)

	if cmd.Bool("send") {
		if err := mon.TestNotify(result.Report); err != nil {
			return err
		}
		r.writePlain("\n✓ Report delivered\n")
	}

	return nil
}
