// Package monitor implements the host and service health monitoring loop.
//
// # Checks
//
// Each check inspects one aspect of the host (load average, memory, disk,
// Docker containers, database reachability, application status endpoint,
// log files, reboots) and reports [Metric] samples plus any triggered
// [Alert]s. Checks never abort the run; a failing subsystem becomes an
// alert, not an error.
//
// # State
//
// The [StateStore] persists metric history and small key-value state
// (log offsets, disk counters, boot timestamps) in its own SQLite file,
// separate from the sync engine's database. Metric history feeds windowed
// evaluations such as the hourly load average, and is pruned by retention.
//
// # Notifications
//
// When a run triggers alerts, the formatted report is delivered through the
// enabled channels: a Telegram bot (with an optional self-service subscriber
// store fed by /start messages) and local SMTP mail. Channel failures are
// collected and reported together; one broken channel never silences the
// others.
package monitor
