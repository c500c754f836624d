// Package daemon coordinates the long-running backlogd process.
//
// It wires configuration, the features store, the progress engine, the
// notification dispatcher and the HTTP API into a single lifecycle with
// flock-based locking so only one daemon writes to a data directory. A cron
// scheduler runs progress cycles on the configured schedule without ever
// overlapping two runs.
//
// Keep orchestration here: queue and progress semantics live in their own
// packages while the daemon focuses on startup, shutdown, and routing.
package daemon
